// Package digest computes the SOCKS5 rendezvous digest used both to
// build the SOCKS5 request address on the client side and to match
// incoming connections to pending transfers on the local proxy side.
package digest

import (
	"crypto/sha1"
	"encoding/hex"
	"errors"

	"github.com/ge0rg/bytestream5/pkg/jid"
)

// ErrEmptySessionID is returned when Compute is called with a blank
// session ID; Manager never does this, but the function is exercised
// directly in tests.
var ErrEmptySessionID = errors.New("digest: empty session id")

// Compute derives the 40-character lowercase hex SHA-1 digest of
// sessionID || initiator.String() || target.String(), with no separator,
// per XEP-0065 §4. Compute is a pure function of its inputs.
func Compute(sessionID string, initiator, target jid.JID) (string, error) {
	if sessionID == "" {
		return "", ErrEmptySessionID
	}
	h := sha1.New()
	h.Write([]byte(sessionID))
	h.Write([]byte(initiator.String()))
	h.Write([]byte(target.String()))
	return hex.EncodeToString(h.Sum(nil)), nil
}

// MustCompute is Compute, panicking on error. Only sessionID can make
// Compute fail, so this is safe wherever a non-empty session ID is
// already guaranteed by the caller (e.g. inside Manager).
func MustCompute(sessionID string, initiator, target jid.JID) string {
	d, err := Compute(sessionID, initiator, target)
	if err != nil {
		panic(err)
	}
	return d
}
