// Package manager implements the Bytestream Manager of spec.md §4.7: a
// per-connection singleton that runs the feature-check, discovery,
// offer, connect, and activate state machine described there, wired to
// the resolver, local proxy, SOCKS5 client, and priority cache built
// elsewhere in this module. The per-connection registry mirrors the
// sync.Map-keyed session table in the pack's fsak server/handler.go; the
// mutex-guarded config mirrors the teacher's ConnManager in
// internal/manager/manager.go.
package manager

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ge0rg/bytestream5/internal/bsmetrics"
	"github.com/ge0rg/bytestream5/internal/digest"
	"github.com/ge0rg/bytestream5/internal/discovery"
	"github.com/ge0rg/bytestream5/internal/localproxy"
	"github.com/ge0rg/bytestream5/internal/proxycache"
	"github.com/ge0rg/bytestream5/internal/resolver"
	"github.com/ge0rg/bytestream5/internal/socks5client"
	"github.com/ge0rg/bytestream5/pkg/bserror"
	"github.com/ge0rg/bytestream5/pkg/bslog"
	"github.com/ge0rg/bytestream5/pkg/bytestream"
	"github.com/ge0rg/bytestream5/pkg/jid"
)

// ConnectionKey identifies the XMPP connection a Manager is bound to.
// Any comparable value naming a connection works; callers typically use
// the pointer to their own connection object.
type ConnectionKey any

// Messenger sends the XEP-0065 IQs this core emits (spec.md §6). A
// stanza-error reply to Offer must come back as *bserror.RemoteRejectedError
// and a stanza-error reply to Activate as *bserror.RemoteErrorError; any
// other failure comes back as *bserror.TransportError/*bserror.TimeoutError.
// Messenger is an external-transport capability interface, mockable per
// spec.md §9.
type Messenger interface {
	Offer(ctx context.Context, target jid.JID, sessionID string, hosts []bytestream.StreamHost) (usedHost jid.JID, err error)
	Activate(ctx context.Context, proxy jid.JID, sessionID string, target jid.JID) error
}

// FeatureAdvertiser toggles whether the SOCKS5-bytestream feature is
// advertised through the discovery collaborator.
type FeatureAdvertiser interface {
	EnableFeature(ctx context.Context) error
	DisableFeature(ctx context.Context) error
}

// Config holds the Manager's runtime toggles, per spec.md §4.7/§6.
type Config struct {
	AnnounceLocalStreamHost bool
	PrioritizationEnabled   bool
	SessionTimeout          time.Duration
}

// DefaultConfig returns the spec's documented defaults.
func DefaultConfig() Config {
	return Config{
		AnnounceLocalStreamHost: true,
		PrioritizationEnabled:   true,
		SessionTimeout:          30 * time.Second,
	}
}

// Collaborators bundles every external dependency a Manager needs. Store,
// LocalProxy, and Dialer may be left zero to get sane defaults; Gateway,
// Fetcher, and Messenger must be supplied by the caller.
type Collaborators struct {
	Gateway    discovery.Gateway
	Fetcher    resolver.StreamHostInfoFetcher
	Messenger  Messenger
	Advertiser FeatureAdvertiser
	Store      proxycache.Store
	LocalProxy *localproxy.Proxy
	Dialer     socks5client.Dialer
}

// Manager is the per-connection negotiation state machine.
type Manager struct {
	conn       ConnectionKey
	initiator  jid.JID
	serviceJID jid.JID

	gw         discovery.Gateway
	fetcher    resolver.StreamHostInfoFetcher
	messenger  Messenger
	advertiser FeatureAdvertiser
	store      proxycache.Store
	localProxy *localproxy.Proxy
	dialer     socks5client.Dialer

	mu             sync.RWMutex
	cfg            Config
	serviceEnabled bool

	inflight sync.Map // sessionID (string) -> struct{}
}

var registry sync.Map // ConnectionKey -> *Manager

// GetOrCreate returns the Manager bound to conn, creating it on first
// call. Subsequent calls with the same conn return the identical
// *Manager (reference-equal), per spec.md §8's singleton invariant.
func GetOrCreate(conn ConnectionKey, initiator, serviceJID jid.JID, cfg Config, collab Collaborators) *Manager {
	if existing, ok := registry.Load(conn); ok {
		return existing.(*Manager)
	}

	store := collab.Store
	if store == nil {
		store = proxycache.NewMemoryStore()
	}
	dialer := collab.Dialer
	if dialer == nil {
		dialer = socks5client.DefaultDialer
	}

	m := &Manager{
		conn:           conn,
		initiator:      initiator,
		serviceJID:     serviceJID,
		gw:             collab.Gateway,
		fetcher:        collab.Fetcher,
		messenger:      collab.Messenger,
		advertiser:     collab.Advertiser,
		store:          store,
		localProxy:     collab.LocalProxy,
		dialer:         dialer,
		cfg:            cfg,
		serviceEnabled: true,
	}

	actual, _ := registry.LoadOrStore(conn, m)
	return actual.(*Manager)
}

// Forget removes conn's Manager from the registry, freeing it for
// garbage collection once the connection tears down.
func Forget(conn ConnectionKey) {
	registry.Delete(conn)
}

// EstablishSession runs the full negotiation state machine of spec.md
// §4.7 against target and returns a live duplex session on success. An
// empty sessionID is auto-generated.
func (m *Manager) EstablishSession(ctx context.Context, target jid.JID, sessionID string) (session bytestream.Session, err error) {
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if _, loaded := m.inflight.LoadOrStore(sessionID, struct{}{}); loaded {
		return nil, &bserror.SessionIDInUseError{SessionID: sessionID}
	}
	defer m.inflight.Delete(sessionID)
	defer func() {
		if err != nil {
			bsmetrics.RecordSessionFailed()
		} else {
			bsmetrics.RecordSessionEstablished()
		}
	}()

	cfg := m.snapshotConfig()
	ctx, cancel := context.WithTimeout(ctx, cfg.SessionTimeout)
	defer cancel()

	bslog.Progress("establishing bytestream session",
		slog.String("session_id", sessionID), slog.String("target", target.String()))

	d, err := digest.Compute(sessionID, m.initiator, target)
	if err != nil {
		return nil, err
	}

	announceLocal := cfg.AnnounceLocalStreamHost && m.localProxy != nil
	if announceLocal {
		// Registered before the offer is sent: the target's incoming
		// SOCKS5 connect must never race ahead of this waiter (spec.md §5).
		m.localProxy.AddTransfer(d)
		defer m.localProxy.RemoveTransfer(d)
	}

	hosts, err := resolver.Resolve(ctx, m.gw, m.fetcher, m.store, m.localHostSource(), m.initiator, m.serviceJID, target, resolver.Config{
		AnnounceLocalStreamHost: announceLocal,
		PrioritizationEnabled:   cfg.PrioritizationEnabled,
	})
	if err != nil {
		return nil, err
	}

	usedHost, err := m.messenger.Offer(ctx, target, sessionID, hosts)
	if err != nil {
		return nil, err
	}

	matched, ok := findHost(hosts, usedHost)
	if !ok {
		return nil, &bserror.UnknownUsedHostError{Reported: usedHost}
	}

	isLocal := matched.JID.Equal(m.initiator)

	var conn net.Conn
	if isLocal {
		conn, err = m.localProxy.SocketFor(ctx, d, cfg.SessionTimeout)
	} else {
		conn, err = socks5client.Connect(ctx, m.dialer, matched, d, cfg.SessionTimeout)
	}
	if err != nil {
		return nil, err
	}

	if isLocal {
		bsmetrics.RecordLocalHostWin()
	} else {
		bsmetrics.RecordRemoteProxyWin()
	}

	if !isLocal {
		if err := m.messenger.Activate(ctx, matched.JID, sessionID, target); err != nil {
			conn.Close()
			return nil, err
		}
		if cfg.PrioritizationEnabled {
			m.store.SetLastSuccess(ctx, matched.JID)
		}
	}

	bslog.Success("bytestream session established",
		slog.String("session_id", sessionID), slog.String("used_host", matched.JID.String()))

	return bytestream.NewSession(conn), nil
}

// SessionIDInUse reports whether sessionID names a currently in-flight
// establishSession call on this Manager.
func (m *Manager) SessionIDInUse(sessionID string) bool {
	_, ok := m.inflight.Load(sessionID)
	return ok
}

// DisableService turns off advertising the SOCKS5-bytestream feature
// through the discovery collaborator. Idempotent.
func (m *Manager) DisableService(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.serviceEnabled {
		return nil
	}
	if err := m.advertiser.DisableFeature(ctx); err != nil {
		return err
	}
	m.serviceEnabled = false
	return nil
}

// EnableService restores advertising the SOCKS5-bytestream feature.
// Idempotent.
func (m *Manager) EnableService(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.serviceEnabled {
		return nil
	}
	if err := m.advertiser.EnableFeature(ctx); err != nil {
		return err
	}
	m.serviceEnabled = true
	return nil
}

// ServiceEnabled reports whether the SOCKS5-bytestream feature is
// currently advertised.
func (m *Manager) ServiceEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.serviceEnabled
}

// SetAnnounceLocalStreamHost toggles local stream-host advertisement.
func (m *Manager) SetAnnounceLocalStreamHost(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.AnnounceLocalStreamHost = v
}

// AnnounceLocalStreamHost reports the current local stream-host toggle.
func (m *Manager) AnnounceLocalStreamHost() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.AnnounceLocalStreamHost
}

// SetProxyPrioritizationEnabled toggles remote-proxy priority reordering.
func (m *Manager) SetProxyPrioritizationEnabled(v bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cfg.PrioritizationEnabled = v
}

// ProxyPrioritizationEnabled reports the current prioritization toggle.
func (m *Manager) ProxyPrioritizationEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg.PrioritizationEnabled
}

func (m *Manager) snapshotConfig() Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cfg
}

func (m *Manager) localHostSource() resolver.LocalHostSource {
	if m.localProxy == nil {
		return nil
	}
	return m.localProxy
}

func findHost(hosts []bytestream.StreamHost, used jid.JID) (bytestream.StreamHost, bool) {
	for _, h := range hosts {
		if h.JID.Equal(used) {
			return h, true
		}
	}
	return bytestream.StreamHost{}, false
}
