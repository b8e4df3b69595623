package proxycache

import (
	"context"
	"testing"

	"github.com/ge0rg/bytestream5/pkg/jid"
)

func TestMemoryStoreBlacklistIsMonotonic(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	candidate := jid.MustParse("proxy.example.com")

	ok, _ := s.IsBlacklisted(ctx, candidate)
	if ok {
		t.Fatal("candidate should not start blacklisted")
	}

	if err := s.Blacklist(ctx, candidate); err != nil {
		t.Fatalf("Blacklist: %v", err)
	}
	ok, _ = s.IsBlacklisted(ctx, candidate)
	if !ok {
		t.Fatal("candidate should be blacklisted after Blacklist")
	}

	// Blacklisting again must not un-blacklist or error.
	if err := s.Blacklist(ctx, candidate); err != nil {
		t.Fatalf("second Blacklist: %v", err)
	}
	ok, _ = s.IsBlacklisted(ctx, candidate)
	if !ok {
		t.Fatal("candidate must remain blacklisted")
	}
}

func TestMemoryStoreLastSuccessUnsetInitially(t *testing.T) {
	s := NewMemoryStore()
	_, ok, err := s.LastSuccess(context.Background())
	if err != nil {
		t.Fatalf("LastSuccess: %v", err)
	}
	if ok {
		t.Fatal("expected no last-success recorded initially")
	}
}

func TestMemoryStoreSetLastSuccess(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	candidate := jid.MustParse("proxy.example.com")

	if err := s.SetLastSuccess(ctx, candidate); err != nil {
		t.Fatalf("SetLastSuccess: %v", err)
	}
	got, ok, err := s.LastSuccess(ctx)
	if err != nil {
		t.Fatalf("LastSuccess: %v", err)
	}
	if !ok || !got.Equal(candidate) {
		t.Fatalf("LastSuccess = (%v, %v), want (%v, true)", got, ok, candidate)
	}

	other := jid.MustParse("proxy2.example.com")
	s.SetLastSuccess(ctx, other)
	got, _, _ = s.LastSuccess(ctx)
	if !got.Equal(other) {
		t.Fatalf("LastSuccess did not overwrite: got %v, want %v", got, other)
	}
}

func TestMemoryStoreBlacklistDistinguishesJIDs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	a := jid.MustParse("a.example.com")
	b := jid.MustParse("b.example.com")

	s.Blacklist(ctx, a)
	okA, _ := s.IsBlacklisted(ctx, a)
	okB, _ := s.IsBlacklisted(ctx, b)
	if !okA || okB {
		t.Fatalf("blacklist bled across JIDs: a=%v b=%v", okA, okB)
	}
}

func TestNewRedisStoreFailsFastOnUnreachableServer(t *testing.T) {
	_, err := NewRedisStore(RedisConfig{Addr: "127.0.0.1:1"})
	if err == nil {
		t.Fatal("expected error connecting to an unreachable redis server")
	}
}
