// Package bytestream holds the data model shared by every collaborator
// in the SOCKS5 bytestream initiator core: stream hosts, session
// identifiers, proxy classification, and the duplex session handle
// returned to callers once a negotiation completes.
package bytestream

import (
	"io"
	"net"
	"sync"

	"github.com/ge0rg/bytestream5/internal/bsmetrics"
	"github.com/ge0rg/bytestream5/pkg/jid"
)

// FeatureNamespace is the disco#info feature string probed to check
// whether a target supports SOCKS5 bytestreams.
const FeatureNamespace = "SOCKS5-bytestreams-ns"

// FeatureLabel is the human-readable feature name carried in
// FeatureNotSupportedError.
const FeatureLabel = "SOCKS5 Bytestream"

// StreamHost is a (jid, address, port) triple advertised to a target as a
// candidate rendezvous point.
type StreamHost struct {
	JID     jid.JID
	Address string // IPv4/IPv6 literal or DNS name
	Port    int    // 1..65535
}

// SessionID is the initiator-chosen opaque identifier for a bytestream
// negotiation, unique among currently-live sessions on a connection.
type SessionID string

// ProxyClassification is the result of probing a candidate's identities.
type ProxyClassification int

const (
	ClassificationUnknown ProxyClassification = iota
	ClassificationSOCKS5
	ClassificationNotSOCKS5
)

// Session is the duplex byte stream handed back by a successful
// negotiation. It is destroyed when Close is called. Its SessionID is
// already free for reuse once the negotiation that produced it returns;
// closing the Session does not affect that.
type Session interface {
	io.Reader
	io.Writer
	io.Closer
	// Underlying exposes the raw connection for callers that need deadlines
	// or address introspection beyond the Reader/Writer surface.
	Underlying() net.Conn
}

// connSession is the default Session implementation: a thin wrapper
// around a net.Conn, mirroring the teacher's streamConn adapter in
// internal/socks5/proxy.go (there: quic.Stream -> net.Conn; here the
// identity wrap is enough since the underlying socket already is one).
type connSession struct {
	conn      net.Conn
	closeOnce sync.Once
}

// NewSession wraps a live connection as a Session.
func NewSession(conn net.Conn) Session {
	return &connSession{conn: conn}
}

func (s *connSession) Read(p []byte) (int, error) {
	n, err := s.conn.Read(p)
	if n > 0 {
		bsmetrics.RecordBytesTransferred(int64(n))
	}
	return n, err
}

func (s *connSession) Write(p []byte) (int, error) {
	n, err := s.conn.Write(p)
	if n > 0 {
		bsmetrics.RecordBytesTransferred(int64(n))
	}
	return n, err
}

func (s *connSession) Close() error {
	s.closeOnce.Do(bsmetrics.RecordSessionClosed)
	return s.conn.Close()
}

func (s *connSession) Underlying() net.Conn { return s.conn }
