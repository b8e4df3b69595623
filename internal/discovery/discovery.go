// Package discovery adapts the external XMPP service-discovery transport
// to the three operations the stream-host resolver needs, per spec.md
// §4.4. The transport itself is out of scope (spec.md §1): Requester is
// a narrow capability interface exercised in production by a caller's
// own XMPP stack and in tests by a hand-written fake, mirroring the
// interface+DefaultX+New adapter shape of internal/s3/coordinator.go.
package discovery

import (
	"context"

	"github.com/ge0rg/bytestream5/pkg/jid"
)

// Identity is a single disco#info identity (category/type/name triple).
type Identity struct {
	Category string
	Type     string
	Name     string
}

// Item is a single disco#items entry (jid/name/node triple).
type Item struct {
	JID  jid.JID
	Name string
	Node string
}

// Requester is the external transport this package adapts: one round
// trip per disco operation against a live XMPP connection.
type Requester interface {
	Supports(ctx context.Context, target jid.JID, feature string) (bool, error)
	Items(ctx context.Context, target jid.JID) ([]Item, error)
	Identities(ctx context.Context, target jid.JID) ([]Identity, error)
}

// Gateway is the Discovery Gateway described in spec.md §4.4.
type Gateway interface {
	Supports(ctx context.Context, target jid.JID, feature string) (bool, error)
	Items(ctx context.Context, target jid.JID) ([]Item, error)
	Identities(ctx context.Context, target jid.JID) ([]Identity, error)
}

// DefaultGateway implements Gateway over an injected Requester.
type DefaultGateway struct {
	requester Requester
}

// New returns a Gateway backed by requester.
func New(requester Requester) Gateway {
	return &DefaultGateway{requester: requester}
}

func (g *DefaultGateway) Supports(ctx context.Context, target jid.JID, feature string) (bool, error) {
	return g.requester.Supports(ctx, target, feature)
}

func (g *DefaultGateway) Items(ctx context.Context, target jid.JID) ([]Item, error) {
	return g.requester.Items(ctx, target)
}

func (g *DefaultGateway) Identities(ctx context.Context, target jid.JID) ([]Identity, error) {
	return g.requester.Identities(ctx, target)
}

// IsProxy reports whether identities contains a category="proxy",
// type="bytestreams" pair, per spec.md §4.5 step 3.
func IsProxy(identities []Identity) bool {
	for _, id := range identities {
		if id.Category == "proxy" && id.Type == "bytestreams" {
			return true
		}
	}
	return false
}
