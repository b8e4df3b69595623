// Package localproxy implements the optional local SOCKS5 listener that
// lets this process itself act as a stream host: it accepts inbound
// CONNECT requests keyed by digest, pairs them with a pending transfer
// registered before the offer was sent, and hands the paired socket back
// to the initiator. Grounded on the accept-loop-with-graceful-shutdown
// shape of the teacher's DefaultProxy.StartWithContext in
// internal/socks5/proxy.go and the mutex-guarded map pattern of
// dashboard.ConnectionTracker.
package localproxy

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ge0rg/bytestream5/internal/socks5proto"
	"github.com/ge0rg/bytestream5/pkg/bserror"
	"github.com/ge0rg/bytestream5/pkg/bslog"
)

// pendingTransfer carries the one-shot completion slot for a digest
// registered ahead of an offer, so the race window between "offer sent"
// and "peer connects" never drops an inbound socket.
type pendingTransfer struct {
	result chan net.Conn
	once   sync.Once
	done   chan struct{}
}

func newPendingTransfer() *pendingTransfer {
	return &pendingTransfer{
		result: make(chan net.Conn, 1),
		done:   make(chan struct{}),
	}
}

func (p *pendingTransfer) complete(conn net.Conn) bool {
	select {
	case p.result <- conn:
		return true
	default:
		return false
	}
}

func (p *pendingTransfer) cancel() {
	p.once.Do(func() { close(p.done) })
}

// Proxy is the local SOCKS5 listener. The zero value is not usable; build
// one with New.
type Proxy struct {
	mu            sync.RWMutex
	listener      net.Listener
	localAddrs    []string
	transfers     map[string]*pendingTransfer
	running       bool
	cancel        context.CancelFunc
	wg            sync.WaitGroup
}

// New returns an idle Proxy advertising loopback as its sole local
// address. Call Start to bind and begin accepting.
func New() *Proxy {
	return &Proxy{
		localAddrs: []string{"127.0.0.1"},
		transfers:  make(map[string]*pendingTransfer),
	}
}

// AddLocalAddress appends addr to the set of advertised local addresses.
// Addresses are never replaced, only appended, so every call to
// LocalAddresses after this one includes addr.
func (p *Proxy) AddLocalAddress(addr string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.localAddrs = append(p.localAddrs, addr)
}

// LocalAddresses returns the current set of advertised local addresses.
func (p *Proxy) LocalAddresses() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, len(p.localAddrs))
	copy(out, p.localAddrs)
	return out
}

// Port returns the bound listener port, or 0 if the proxy is not running.
func (p *Proxy) Port() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.listener == nil {
		return 0
	}
	return p.listener.Addr().(*net.TCPAddr).Port
}

// Running reports whether the accept loop is active.
func (p *Proxy) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.running
}

// AddTransfer registers a pending slot for digest, replacing any existing
// one for the same digest (last writer wins), per spec.md §4.3.
func (p *Proxy) AddTransfer(digest string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.transfers[digest]; ok {
		old.cancel()
	}
	p.transfers[digest] = newPendingTransfer()
}

// RemoveTransfer cancels and drops the pending slot for digest, if any.
func (p *Proxy) RemoveTransfer(digest string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if t, ok := p.transfers[digest]; ok {
		t.cancel()
		delete(p.transfers, digest)
	}
}

// SocketFor blocks until the accepted socket for digest appears, deadline
// elapses, or the proxy is stopped, whichever comes first.
func (p *Proxy) SocketFor(ctx context.Context, digest string, deadline time.Duration) (net.Conn, error) {
	p.mu.RLock()
	t, ok := p.transfers[digest]
	p.mu.RUnlock()
	if !ok {
		return nil, &bserror.ProtocolError{At: bserror.AtRequest, Detail: fmt.Sprintf("no pending transfer for digest %q", digest)}
	}

	timer := time.NewTimer(deadline)
	defer timer.Stop()

	select {
	case conn := <-t.result:
		p.RemoveTransfer(digest)
		return conn, nil
	case <-t.done:
		return nil, &bserror.CanceledError{Operation: "local socket wait"}
	case <-timer.C:
		p.RemoveTransfer(digest)
		return nil, &bserror.TimeoutError{Operation: "local socket wait"}
	case <-ctx.Done():
		p.RemoveTransfer(digest)
		return nil, &bserror.CanceledError{Operation: "local socket wait"}
	}
}

// Start binds a TCP listener on port (0 for ephemeral) and begins
// accepting connections in the background. Start is idempotent: calling
// it again while already running is a no-op.
func (p *Proxy) Start(port int) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return nil
	}

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		p.mu.Unlock()
		return &bserror.TransportError{Kind: bserror.TransportOther, Cause: err}
	}
	ctx, cancel := context.WithCancel(context.Background())
	p.listener = ln
	p.cancel = cancel
	p.running = true
	p.mu.Unlock()

	bslog.Network("local proxy listening", slog.Int("port", ln.Addr().(*net.TCPAddr).Port))

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	p.wg.Add(1)
	go p.acceptLoop(ctx, ln)

	return nil
}

func (p *Proxy) acceptLoop(ctx context.Context, ln net.Listener) {
	defer p.wg.Done()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				bslog.Network("local proxy accept loop stopped")
				return
			}
			if ne, ok := err.(net.Error); ok && !ne.Temporary() {
				return
			}
			bslog.Error("local proxy accept", err)
			continue
		}
		go p.handleConn(conn)
	}
}

// handleConn runs the SOCKS5 server side of the handshake described in
// spec.md §4.2/§4.3: greeting, request, then either pair the digest to a
// pending transfer or reply host-unreachable.
func (p *Proxy) handleConn(conn net.Conn) {
	ok := false
	defer func() {
		if !ok {
			conn.Close()
		}
	}()

	greeting := make([]byte, 3)
	if _, err := io.ReadFull(conn, greeting); err != nil {
		return
	}
	if greeting[0] != socks5proto.Version {
		return
	}
	conn.Write(socks5proto.GreetingReply)

	header := make([]byte, 5)
	if _, err := io.ReadFull(conn, header); err != nil {
		return
	}
	if header[0] != socks5proto.Version || header[1] != socks5proto.CmdConnect || header[3] != socks5proto.ATYPDomain {
		return
	}
	digestLen := int(header[4])
	payload := make([]byte, digestLen+2)
	if _, err := io.ReadFull(conn, payload); err != nil {
		return
	}
	digest := string(payload[:digestLen])

	p.mu.RLock()
	t, exists := p.transfers[digest]
	p.mu.RUnlock()
	if !exists {
		conn.Write(replyFor(socks5proto.ReplyHostUnreachable, digest))
		return
	}

	reply := replyFor(socks5proto.ReplySucceeded, digest)
	if _, err := conn.Write(reply); err != nil {
		return
	}

	if !t.complete(conn) {
		return
	}
	ok = true
}

func replyFor(rep byte, digest string) []byte {
	out := make([]byte, 0, 5+len(digest)+2)
	out = append(out, socks5proto.Version, rep, 0x00, socks5proto.ATYPDomain, byte(len(digest)))
	out = append(out, digest...)
	out = append(out, 0x00, 0x00)
	return out
}

// Stop closes the listener and cancels every pending transfer with
// Canceled. Stop is idempotent.
func (p *Proxy) Stop() {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return
	}
	p.running = false
	p.listener = nil
	cancel := p.cancel
	transfers := p.transfers
	p.transfers = make(map[string]*pendingTransfer)
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	for _, t := range transfers {
		t.cancel()
	}
	p.wg.Wait()
	bslog.Network("local proxy stopped")
}
