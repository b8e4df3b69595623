// Package bsmetrics exposes process-wide counters for the bytestream
// initiator core over expvar, grounded verbatim on the teacher's
// internal/metrics/metrics.go package-level var block and atomic update
// helper style.
package bsmetrics

import (
	"expvar"
	"sync/atomic"
)

var (
	sessionsEstablished = expvar.NewInt("bytestream_sessions_established_total")
	sessionsFailed      = expvar.NewInt("bytestream_sessions_failed_total")
	sessionsActive      = expvar.NewInt("bytestream_sessions_active")
	bytesTransferred    = expvar.NewInt("bytestream_bytes_transferred_total")

	localHostWins   = expvar.NewInt("bytestream_local_host_wins_total")
	remoteProxyWins = expvar.NewInt("bytestream_remote_proxy_wins_total")

	blacklistAdditions = expvar.NewInt("bytestream_proxy_blacklist_additions_total")
	priorityCacheHits  = expvar.NewInt("bytestream_priority_cache_hits_total")

	identityProbesIssued = expvar.NewInt("bytestream_identity_probes_total")

	bytesAtomic int64
)

// RecordSessionEstablished increments the established-session counter
// and the currently-active gauge.
func RecordSessionEstablished() {
	sessionsEstablished.Add(1)
	sessionsActive.Add(1)
}

// RecordSessionClosed decrements the currently-active gauge.
func RecordSessionClosed() {
	sessionsActive.Add(-1)
}

// RecordSessionFailed increments the failed-session counter.
func RecordSessionFailed() {
	sessionsFailed.Add(1)
}

// RecordBytesTransferred adds n to the cumulative bytes-transferred
// counter using an atomic add before publishing to expvar, mirroring the
// teacher's bytesTransferredAtomic pattern for high-frequency updates.
func RecordBytesTransferred(n int64) {
	atomic.AddInt64(&bytesAtomic, n)
	bytesTransferred.Add(n)
}

// RecordLocalHostWin increments the local-stream-host selection counter.
func RecordLocalHostWin() {
	localHostWins.Add(1)
}

// RecordRemoteProxyWin increments the remote-proxy selection counter.
func RecordRemoteProxyWin() {
	remoteProxyWins.Add(1)
}

// RecordBlacklistAddition increments the blacklist-growth counter, which
// by construction never decreases (spec.md §4.6: additions only).
func RecordBlacklistAddition() {
	blacklistAdditions.Add(1)
}

// RecordPriorityCacheHit increments the priority-reordering hit counter.
func RecordPriorityCacheHit() {
	priorityCacheHits.Add(1)
}

// RecordIdentityProbe increments the identity-probe counter, useful for
// asserting the blacklist-skips-re-probing invariant in integration tests.
func RecordIdentityProbe() {
	identityProbesIssued.Add(1)
}

// Snapshot is a point-in-time read of every counter, for handing to a
// reporting surface (the dashboard's JSON/websocket feed) without
// exposing the expvar.Int vars themselves.
type Snapshot struct {
	SessionsEstablished int64
	SessionsFailed      int64
	SessionsActive      int64
	BytesTransferred    int64
	LocalHostWins       int64
	RemoteProxyWins     int64
	BlacklistAdditions  int64
	PriorityCacheHits   int64
	IdentityProbes      int64
}

// Read takes a Snapshot of the current counter values.
func Read() Snapshot {
	return Snapshot{
		SessionsEstablished: sessionsEstablished.Value(),
		SessionsFailed:      sessionsFailed.Value(),
		SessionsActive:      sessionsActive.Value(),
		BytesTransferred:    bytesTransferred.Value(),
		LocalHostWins:       localHostWins.Value(),
		RemoteProxyWins:     remoteProxyWins.Value(),
		BlacklistAdditions:  blacklistAdditions.Value(),
		PriorityCacheHits:   priorityCacheHits.Value(),
		IdentityProbes:      identityProbesIssued.Value(),
	}
}
