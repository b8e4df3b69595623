// Package bserror defines the error taxonomy for the bytestream
// initiator core: kinds of failure, not exception types to pattern-match
// on by string. Every exported error type is a pointer-receiver struct
// that callers match with errors.As. RemoteRejectedError,
// RemoteErrorError and TransportError also wrap a cause and expose it
// through Unwrap, so errors.Is reaches that cause.
package bserror

import (
	"fmt"

	"github.com/ge0rg/bytestream5/pkg/jid"
)

// FeatureNotSupportedError is returned when the target lacks SOCKS5
// bytestream support.
type FeatureNotSupportedError struct {
	Feature string
	JID     jid.JID
}

func (e *FeatureNotSupportedError) Error() string {
	return fmt.Sprintf("%s: feature %q not supported by %s", "bytestream", e.Feature, e.JID)
}

// NoProxiesAvailableError is returned when the resolved stream-host list
// ends up empty.
type NoProxiesAvailableError struct{}

func (e *NoProxiesAvailableError) Error() string {
	return "bytestream: no proxies available"
}

// RemoteRejectedError is returned when the target replies to the offer
// with a stanza error.
type RemoteRejectedError struct {
	StanzaError error
}

func (e *RemoteRejectedError) Error() string {
	return fmt.Sprintf("bytestream: remote rejected offer: %v", e.StanzaError)
}

func (e *RemoteRejectedError) Unwrap() error { return e.StanzaError }

// UnknownUsedHostError is returned when the used-host JID reported by the
// target was not among the offered hosts.
type UnknownUsedHostError struct {
	Reported jid.JID
}

func (e *UnknownUsedHostError) Error() string {
	return fmt.Sprintf("bytestream: target reported unknown used host %s", e.Reported)
}

// RemoteErrorError is returned when activation of a remote proxy fails.
type RemoteErrorError struct {
	StanzaError error
}

func (e *RemoteErrorError) Error() string {
	return fmt.Sprintf("bytestream: proxy activation failed: %v", e.StanzaError)
}

func (e *RemoteErrorError) Unwrap() error { return e.StanzaError }

// TransportErrorKind distinguishes causes of a TransportError.
type TransportErrorKind string

const (
	TransportConnectRefused TransportErrorKind = "connect_refused"
	TransportTimeout        TransportErrorKind = "timeout"
	TransportReset          TransportErrorKind = "reset"
	TransportEOF            TransportErrorKind = "eof"
	TransportOther          TransportErrorKind = "other"
)

// TransportError wraps a low-level network failure.
type TransportError struct {
	Kind  TransportErrorKind
	Cause error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("bytestream: transport error (%s): %v", e.Kind, e.Cause)
}

func (e *TransportError) Unwrap() error { return e.Cause }

// ProtocolErrorAt names the handshake phase a ProtocolError occurred in.
type ProtocolErrorAt string

const (
	AtGreeting ProtocolErrorAt = "greeting"
	AtRequest  ProtocolErrorAt = "request"
	AtReply    ProtocolErrorAt = "reply"
)

// ProtocolError is returned when a peer violates the SOCKS5 handshake.
type ProtocolError struct {
	At     ProtocolErrorAt
	Detail string
	Rep    byte // valid when At == AtReply
}

func (e *ProtocolError) Error() string {
	if e.At == AtReply {
		return fmt.Sprintf("bytestream: protocol error at %s (rep=0x%02x): %s", e.At, e.Rep, e.Detail)
	}
	return fmt.Sprintf("bytestream: protocol error at %s: %s", e.At, e.Detail)
}

// TimeoutError is returned when an operation's deadline expires.
type TimeoutError struct {
	Operation string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("bytestream: %s timed out", e.Operation)
}

func (e *TimeoutError) Timeout() bool { return true }

// CanceledError is returned when an operation is aborted by the caller or
// by local-proxy shutdown.
type CanceledError struct {
	Operation string
}

func (e *CanceledError) Error() string {
	return fmt.Sprintf("bytestream: %s canceled", e.Operation)
}

// SessionIDInUseError is returned when establishSession is called with a
// SessionID that another establishSession call on the same Manager is
// still negotiating. A SessionID whose negotiation has already returned
// is not reported, even while its Session is open.
type SessionIDInUseError struct {
	SessionID string
}

func (e *SessionIDInUseError) Error() string {
	return fmt.Sprintf("bytestream: session id %q already in use", e.SessionID)
}
