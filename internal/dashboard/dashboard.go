// Package dashboard serves a live view of the initiator core's state:
// the counters from internal/bsmetrics plus the per-connection Manager
// toggles and proxy-priority cache, over both a JSON poll endpoint and a
// websocket push feed. Grounded on the teacher's internal/dashboard
// package (DashboardCollector/DashboardServer split, upgrader/clients
// map/broadcast-channel websocket plumbing, periodic-ticker broadcaster),
// adapted from NAT-proxy connection/session analytics to this domain's
// negotiation counters and cache state.
package dashboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ge0rg/bytestream5/internal/bsmetrics"
	"github.com/ge0rg/bytestream5/internal/proxycache"
	"github.com/ge0rg/bytestream5/pkg/bslog"
)

// StatsSource supplies a Manager's current toggles, satisfied by
// *manager.Manager. It is a narrow interface so the dashboard never needs
// to import internal/manager directly, avoiding a dependency from a
// reporting package back onto the core state machine.
type StatsSource interface {
	ServiceEnabled() bool
	AnnounceLocalStreamHost() bool
	ProxyPrioritizationEnabled() bool
}

// Snapshot is the JSON shape served by both /api/dashboard and the
// websocket feed.
type Snapshot struct {
	Uptime                  string            `json:"uptime"`
	ServiceEnabled          bool              `json:"service_enabled"`
	AnnounceLocalStreamHost bool              `json:"announce_local_stream_host"`
	PrioritizationEnabled   bool              `json:"prioritization_enabled"`
	LastSuccessJID          string            `json:"last_success_jid,omitempty"`
	Counters                bsmetrics.Snapshot `json:"counters"`
}

// Collector gathers a Snapshot from a StatsSource and a proxycache.Store.
type Collector struct {
	source    StatsSource
	store     proxycache.Store
	startTime time.Time
}

// NewCollector builds a Collector over source and store.
func NewCollector(source StatsSource, store proxycache.Store) *Collector {
	return &Collector{source: source, store: store, startTime: time.Now()}
}

// Collect gathers a fresh Snapshot.
func (c *Collector) Collect(ctx context.Context) Snapshot {
	snap := Snapshot{
		Uptime:                  time.Since(c.startTime).String(),
		ServiceEnabled:          c.source.ServiceEnabled(),
		AnnounceLocalStreamHost: c.source.AnnounceLocalStreamHost(),
		PrioritizationEnabled:   c.source.ProxyPrioritizationEnabled(),
		Counters:                bsmetrics.Read(),
	}
	if winner, ok, err := c.store.LastSuccess(ctx); err == nil && ok {
		snap.LastSuccessJID = winner.String()
	}
	return snap
}

// Server exposes a Collector over HTTP: a polling JSON endpoint and a
// websocket feed refreshed on a fixed interval, mirroring the teacher's
// DashboardServer.
type Server struct {
	collector *Collector
	mux       *http.ServeMux
	upgrader  websocket.Upgrader

	clientsMu sync.RWMutex
	clients   map[*websocket.Conn]struct{}

	broadcast chan []byte
	shutdown  chan struct{}
	wg        sync.WaitGroup
}

// NewServer builds a Server over collector and wires its routes and
// background broadcaster goroutines.
func NewServer(collector *Collector) *Server {
	s := &Server{
		collector: collector,
		mux:       http.NewServeMux(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:   make(map[*websocket.Conn]struct{}),
		broadcast: make(chan []byte),
		shutdown:  make(chan struct{}),
	}
	s.mux.HandleFunc("/api/dashboard", s.handleSnapshot)
	s.mux.HandleFunc("/ws", s.handleWebSocket)
	s.startBroadcaster()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	snap := s.collector.Collect(r.Context())
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		bslog.Error("encode dashboard snapshot", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		bslog.Error("upgrade websocket connection", err)
		return
	}

	s.clientsMu.Lock()
	s.clients[conn] = struct{}{}
	s.clientsMu.Unlock()

	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, conn)
		s.clientsMu.Unlock()
		conn.Close()
	}()

	if jsonData, err := json.Marshal(s.collector.Collect(r.Context())); err == nil {
		conn.WriteMessage(websocket.TextMessage, jsonData)
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) startBroadcaster() {
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case message := <-s.broadcast:
				s.clientsMu.RLock()
				for client := range s.clients {
					if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
						client.Close()
						delete(s.clients, client)
					}
				}
				s.clientsMu.RUnlock()
			case <-s.shutdown:
				return
			}
		}
	}()

	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.clientsMu.RLock()
				hasClients := len(s.clients) > 0
				s.clientsMu.RUnlock()
				if !hasClients {
					continue
				}
				jsonData, err := json.Marshal(s.collector.Collect(context.Background()))
				if err != nil {
					continue
				}
				select {
				case s.broadcast <- jsonData:
				case <-s.shutdown:
					return
				}
			case <-s.shutdown:
				return
			}
		}
	}()
}

// Shutdown stops the broadcaster goroutines and closes every connected
// websocket client. Shutdown is not idempotent: it must be called at most
// once, and a second call panics.
func (s *Server) Shutdown() {
	close(s.shutdown)
	s.wg.Wait()

	s.clientsMu.Lock()
	for client := range s.clients {
		client.Close()
	}
	s.clients = make(map[*websocket.Conn]struct{})
	s.clientsMu.Unlock()

	bslog.Info("dashboard server shut down", slog.Int("remaining_clients", 0))
}
