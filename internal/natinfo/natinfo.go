// Package natinfo discovers this host's public address via STUN so a
// client announcing a local stream host (spec.md §4.3) can offer an
// address a NAT'd peer can actually dial, not just the loopback default.
// Grounded on the teacher's internal/stun/client.go.
package natinfo

import (
	"context"
	"fmt"
	"net"

	"github.com/pion/stun"
)

// Client discovers a host's public IP address via a STUN server.
type Client interface {
	DiscoverPublicAddress(ctx context.Context, stunServer string) (string, error)
}

// DefaultClient implements Client against a real STUN server over UDP.
type DefaultClient struct{}

// New returns the default STUN-backed Client.
func New() Client {
	return &DefaultClient{}
}

// DiscoverPublicAddress opens a UDP socket to stunServer, sends a
// binding request, and returns the XOR-mapped address it reports.
func (c *DefaultClient) DiscoverPublicAddress(ctx context.Context, stunServer string) (string, error) {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "udp", stunServer)
	if err != nil {
		return "", fmt.Errorf("natinfo: dial STUN server: %w", err)
	}
	defer conn.Close()

	client, err := stun.NewClient(conn)
	if err != nil {
		return "", fmt.Errorf("natinfo: create STUN client: %w", err)
	}
	defer client.Close()

	message := stun.MustBuild(stun.TransactionID, stun.BindingRequest)

	var publicAddr string
	var stunErr error
	err = client.Do(message, func(res stun.Event) {
		if res.Error != nil {
			stunErr = res.Error
			return
		}
		var xorAddr stun.XORMappedAddress
		if err := xorAddr.GetFrom(res.Message); err != nil {
			stunErr = err
			return
		}
		publicAddr = xorAddr.IP.String()
	})
	if stunErr != nil {
		return "", fmt.Errorf("natinfo: STUN binding failed: %w", stunErr)
	}
	if err != nil {
		return "", fmt.Errorf("natinfo: STUN request failed: %w", err)
	}

	return publicAddr, nil
}
