// Package jid implements the XMPP addressable-identity value type used
// throughout the bytestream negotiation core.
package jid

import (
	"fmt"
	"strings"
)

// JID is an opaque messaging identity: local@domain/resource, local@domain,
// or domain. The zero value is not a valid JID.
type JID struct {
	Local    string
	Domain   string
	Resource string
}

// Parse splits a JID string of the form "local@domain/resource",
// "local@domain", or "domain" into its parts.
func Parse(s string) (JID, error) {
	if s == "" {
		return JID{}, fmt.Errorf("jid: empty string")
	}

	var j JID
	rest := s

	if slash := strings.IndexByte(rest, '/'); slash >= 0 {
		j.Resource = rest[slash+1:]
		rest = rest[:slash]
		if j.Resource == "" {
			return JID{}, fmt.Errorf("jid: empty resource in %q", s)
		}
	}

	if at := strings.IndexByte(rest, '@'); at >= 0 {
		j.Local = rest[:at]
		j.Domain = rest[at+1:]
		if j.Local == "" || j.Domain == "" {
			return JID{}, fmt.Errorf("jid: malformed bare part in %q", s)
		}
	} else {
		j.Domain = rest
	}

	if j.Domain == "" {
		return JID{}, fmt.Errorf("jid: missing domain in %q", s)
	}

	return j, nil
}

// MustParse is Parse, panicking on error. Intended for literals in tests
// and static configuration, never for untrusted input.
func MustParse(s string) JID {
	j, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return j
}

// IsDomain reports whether j is a bare server/domain JID (no local part).
func (j JID) IsDomain() bool {
	return j.Local == "" && j.Resource == ""
}

// IsBare reports whether j has a local part but no resource.
func (j JID) IsBare() bool {
	return j.Local != "" && j.Resource == ""
}

// IsFull reports whether j carries a resource (an EntityFull JID).
func (j JID) IsFull() bool {
	return j.Resource != ""
}

// Bare returns the bare-JID form of j (local@domain, or domain if j has no
// local part), dropping any resource.
func (j JID) Bare() JID {
	j.Resource = ""
	return j
}

// String renders the canonical "local@domain/resource" form.
func (j JID) String() string {
	var b strings.Builder
	if j.Local != "" {
		b.WriteString(j.Local)
		b.WriteByte('@')
	}
	b.WriteString(j.Domain)
	if j.Resource != "" {
		b.WriteByte('/')
		b.WriteString(j.Resource)
	}
	return b.String()
}

// Equal reports whether j and other refer to the same identity.
func (j JID) Equal(other JID) bool {
	return j.Local == other.Local && j.Domain == other.Domain && j.Resource == other.Resource
}

// Less defines a total order over JIDs: domain, then local, then resource.
func (j JID) Less(other JID) bool {
	if j.Domain != other.Domain {
		return j.Domain < other.Domain
	}
	if j.Local != other.Local {
		return j.Local < other.Local
	}
	return j.Resource < other.Resource
}

// IsZero reports whether j is the zero value.
func (j JID) IsZero() bool {
	return j.Local == "" && j.Domain == "" && j.Resource == ""
}
