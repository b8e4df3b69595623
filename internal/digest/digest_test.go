package digest

import (
	"encoding/hex"
	"testing"

	"github.com/ge0rg/bytestream5/pkg/jid"
)

func TestComputeDeterministic(t *testing.T) {
	init := jid.MustParse("romeo@montague.lit/orchard")
	tgt := jid.MustParse("juliet@capulet.lit/balcony")

	d1, err := Compute("session-1", init, tgt)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	d2, err := Compute("session-1", init, tgt)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if d1 != d2 {
		t.Errorf("Compute is not deterministic: %q != %q", d1, d2)
	}
}

func TestComputeShape(t *testing.T) {
	d, err := Compute("session-1", jid.MustParse("a@b"), jid.MustParse("c@d"))
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	if len(d) != 40 {
		t.Errorf("expected 40 hex chars, got %d (%q)", len(d), d)
	}
	if _, err := hex.DecodeString(d); err != nil {
		t.Errorf("digest is not valid hex: %v", err)
	}
	for _, r := range d {
		if r >= 'A' && r <= 'F' {
			t.Errorf("digest contains uppercase hex: %q", d)
			break
		}
	}
}

func TestComputeVariesWithInputs(t *testing.T) {
	a := jid.MustParse("a@b")
	c := jid.MustParse("c@d")
	e := jid.MustParse("e@f")

	d1, _ := Compute("sid1", a, c)
	d2, _ := Compute("sid2", a, c)
	d3, _ := Compute("sid1", e, c)
	d4, _ := Compute("sid1", a, e)

	seen := map[string]bool{d1: true}
	for _, d := range []string{d2, d3, d4} {
		if seen[d] {
			t.Errorf("collision between distinct inputs: %q", d)
		}
		seen[d] = true
	}
}

func TestComputeRejectsEmptySessionID(t *testing.T) {
	if _, err := Compute("", jid.MustParse("a@b"), jid.MustParse("c@d")); err != ErrEmptySessionID {
		t.Errorf("expected ErrEmptySessionID, got %v", err)
	}
}

func TestMustComputePanicsOnEmptySessionID(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected MustCompute to panic on empty session id")
		}
	}()
	MustCompute("", jid.MustParse("a@b"), jid.MustParse("c@d"))
}
