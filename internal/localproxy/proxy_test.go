package localproxy

import (
	"context"
	"fmt"
	"io"
	"net"
	"testing"
	"time"

	"github.com/ge0rg/bytestream5/internal/socks5proto"
	"github.com/ge0rg/bytestream5/pkg/bserror"
)

func dial(t *testing.T, port int) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	return conn
}

func runHandshake(t *testing.T, conn net.Conn, digest string) []byte {
	t.Helper()
	if _, err := conn.Write(socks5proto.Greeting); err != nil {
		t.Fatalf("write greeting: %v", err)
	}
	greetReply := make([]byte, 2)
	if _, err := io.ReadFull(conn, greetReply); err != nil {
		t.Fatalf("read greeting reply: %v", err)
	}

	req := append([]byte{socks5proto.Version, socks5proto.CmdConnect, 0x00, socks5proto.ATYPDomain, byte(len(digest))}, digest...)
	req = append(req, 0x00, 0x00)
	if _, err := conn.Write(req); err != nil {
		t.Fatalf("write request: %v", err)
	}

	header := make([]byte, 5)
	if _, err := io.ReadFull(conn, header); err != nil {
		t.Fatalf("read reply header: %v", err)
	}
	rest := make([]byte, int(header[4])+2)
	io.ReadFull(conn, rest)
	return header
}

func TestAddTransferThenPair(t *testing.T) {
	p := New()
	if err := p.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	digest := "deadbeef"
	p.AddTransfer(digest)

	conn := dial(t, p.Port())
	defer conn.Close()

	header := runHandshake(t, conn, digest)
	if header[1] != socks5proto.ReplySucceeded {
		t.Fatalf("reply code = 0x%02x, want success", header[1])
	}

	socket, err := p.SocketFor(context.Background(), digest, time.Second)
	if err != nil {
		t.Fatalf("SocketFor: %v", err)
	}
	defer socket.Close()
}

func TestSocketForUnknownDigestFails(t *testing.T) {
	p := New()
	if err := p.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	_, err := p.SocketFor(context.Background(), "unregistered", 10*time.Millisecond)
	if _, ok := err.(*bserror.ProtocolError); !ok {
		t.Fatalf("expected *bserror.ProtocolError, got %T (%v)", err, err)
	}
}

func TestUnpairedDigestGetsHostUnreachable(t *testing.T) {
	p := New()
	if err := p.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	conn := dial(t, p.Port())
	defer conn.Close()

	header := runHandshake(t, conn, "not-pending")
	if header[1] != socks5proto.ReplyHostUnreachable {
		t.Fatalf("reply code = 0x%02x, want host-unreachable", header[1])
	}
}

func TestSocketForTimesOut(t *testing.T) {
	p := New()
	if err := p.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()

	p.AddTransfer("never-arrives")
	_, err := p.SocketFor(context.Background(), "never-arrives", 20*time.Millisecond)
	if _, ok := err.(*bserror.TimeoutError); !ok {
		t.Fatalf("expected *bserror.TimeoutError, got %T (%v)", err, err)
	}
}

func TestStopCancelsPendingTransfers(t *testing.T) {
	p := New()
	if err := p.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}

	p.AddTransfer("will-be-canceled")
	done := make(chan error, 1)
	go func() {
		_, err := p.SocketFor(context.Background(), "will-be-canceled", 5*time.Second)
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	p.Stop()

	select {
	case err := <-done:
		if _, ok := err.(*bserror.CanceledError); !ok {
			t.Fatalf("expected *bserror.CanceledError, got %T (%v)", err, err)
		}
	case <-time.After(time.Second):
		t.Fatal("SocketFor did not return after Stop")
	}
}

func TestAddLocalAddressAppends(t *testing.T) {
	p := New()
	p.AddLocalAddress("203.0.113.5")
	addrs := p.LocalAddresses()
	if len(addrs) != 2 || addrs[0] != "127.0.0.1" || addrs[1] != "203.0.113.5" {
		t.Fatalf("LocalAddresses = %v, want [127.0.0.1 203.0.113.5]", addrs)
	}
}

func TestStartIdempotent(t *testing.T) {
	p := New()
	if err := p.Start(0); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer p.Stop()
	port := p.Port()
	if err := p.Start(0); err != nil {
		t.Fatalf("second Start: %v", err)
	}
	if p.Port() != port {
		t.Fatalf("port changed across idempotent Start: %d != %d", p.Port(), port)
	}
}
