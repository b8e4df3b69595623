// Package socks5client implements the SOCKS5 CONNECT handshake the
// initiator runs against a remote stream host, mirroring the server-side
// byte layout the teacher repeats across
// internal/socks5/proxy.go's handleSOCKS5Connection* family.
package socks5client

import (
	"context"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/ge0rg/bytestream5/internal/socks5proto"
	"github.com/ge0rg/bytestream5/pkg/bserror"
	"github.com/ge0rg/bytestream5/pkg/bytestream"
)

// Dialer abstracts net.Dialer so tests can substitute an in-memory pipe.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

type netDialer struct{}

func (netDialer) DialContext(ctx context.Context, network, address string) (net.Conn, error) {
	var d net.Dialer
	return d.DialContext(ctx, network, address)
}

// DefaultDialer is the production net.Dialer-backed Dialer.
var DefaultDialer Dialer = netDialer{}

// Connect opens a TCP connection to host and runs the SOCKS5 CONNECT
// handshake with the given digest as the ATYP=DomainName request
// address, per spec.md §4.2. deadline bounds the total handshake time.
func Connect(ctx context.Context, dialer Dialer, host bytestream.StreamHost, digest string, deadline time.Duration) (net.Conn, error) {
	if dialer == nil {
		dialer = DefaultDialer
	}
	if len(digest) > socks5proto.MaxDigestLen {
		return nil, &bserror.ProtocolError{At: bserror.AtRequest, Detail: "digest too long for ATYP=domain"}
	}

	dialCtx := ctx
	var cancel context.CancelFunc
	if deadline > 0 {
		dialCtx, cancel = context.WithTimeout(ctx, deadline)
		defer cancel()
	}

	addr := fmt.Sprintf("%s:%d", host.Address, host.Port)
	conn, err := dialer.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		return nil, classifyDialError(dialCtx, err)
	}

	if deadline > 0 {
		conn.SetDeadline(time.Now().Add(deadline))
		defer conn.SetDeadline(time.Time{})
	}

	if err := handshake(conn, digest); err != nil {
		conn.Close()
		return nil, err
	}

	return conn, nil
}

func handshake(conn net.Conn, digest string) error {
	if _, err := conn.Write([]byte{socks5proto.Version, 0x01, socks5proto.MethodNoAuth}); err != nil {
		return transportOrTimeout(err)
	}

	reply := make([]byte, 2)
	if _, err := io.ReadFull(conn, reply); err != nil {
		return transportOrTimeout(err)
	}
	if reply[0] != socks5proto.Version || reply[1] != socks5proto.MethodNoAuth {
		return &bserror.ProtocolError{At: bserror.AtGreeting, Detail: fmt.Sprintf("unexpected greeting reply % x", reply)}
	}

	digestBytes := []byte(digest)
	req := make([]byte, 0, 7+len(digestBytes))
	req = append(req, socks5proto.Version, socks5proto.CmdConnect, 0x00, socks5proto.ATYPDomain, byte(len(digestBytes)))
	req = append(req, digestBytes...)
	req = append(req, 0x00, 0x00) // PORT=0
	if _, err := conn.Write(req); err != nil {
		return transportOrTimeout(err)
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(conn, header); err != nil {
		return transportOrTimeout(err)
	}
	if header[0] != socks5proto.Version {
		return &bserror.ProtocolError{At: bserror.AtReply, Detail: "bad version in reply", Rep: header[1]}
	}
	if header[1] != socks5proto.ReplySucceeded {
		return &bserror.ProtocolError{At: bserror.AtReply, Detail: "non-success reply code", Rep: header[1]}
	}

	if err := consumeBoundAddress(conn, header[3]); err != nil {
		return err
	}

	return nil
}

// consumeBoundAddress reads and discards the remainder of a SOCKS5 reply
// (BND.ADDR, BND.PORT) according to its address type.
func consumeBoundAddress(conn net.Conn, atyp byte) error {
	var n int
	switch atyp {
	case socks5proto.ATYPIPv4:
		n = 4 + 2
	case socks5proto.ATYPIPv6:
		n = 16 + 2
	case socks5proto.ATYPDomain:
		lenBuf := make([]byte, 1)
		if _, err := io.ReadFull(conn, lenBuf); err != nil {
			return transportOrTimeout(err)
		}
		n = int(lenBuf[0]) + 2
	default:
		return &bserror.ProtocolError{At: bserror.AtReply, Detail: fmt.Sprintf("unsupported ATYP 0x%02x in reply", atyp)}
	}

	if n == 0 {
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(conn, buf); err != nil {
		return transportOrTimeout(err)
	}
	return nil
}

func transportOrTimeout(err error) error {
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return &bserror.TimeoutError{Operation: "socks5 handshake"}
	}
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return &bserror.TransportError{Kind: bserror.TransportEOF, Cause: err}
	}
	return &bserror.TransportError{Kind: bserror.TransportOther, Cause: err}
}

func classifyDialError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return &bserror.TimeoutError{Operation: "socks5 connect"}
	}
	if ne, ok := err.(net.Error); ok && ne.Timeout() {
		return &bserror.TimeoutError{Operation: "socks5 connect"}
	}
	kind := bserror.TransportOther
	if strings.Contains(err.Error(), "refused") {
		kind = bserror.TransportConnectRefused
	}
	return &bserror.TransportError{Kind: kind, Cause: err}
}
