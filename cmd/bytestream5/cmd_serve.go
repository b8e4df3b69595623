package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ge0rg/bytestream5/internal/config"
	"github.com/ge0rg/bytestream5/internal/dashboard"
	"github.com/ge0rg/bytestream5/internal/localproxy"
	"github.com/ge0rg/bytestream5/internal/natinfo"
	"github.com/ge0rg/bytestream5/internal/proxycache"
	"github.com/ge0rg/bytestream5/pkg/bslog"
)

// serveCmd starts the local SOCKS5 mini-server, the proxy-cache backend,
// and (optionally) the dashboard. It does not by itself run a Manager,
// since EstablishSession needs a live Messenger/Gateway pair bound to a
// real XMPP connection; an embedding application constructs a Manager
// over this same infrastructure via manager.GetOrCreate.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local SOCKS5 mini-server and supporting infrastructure",
	Long: `Start the local SOCKS5 bytestream mini-server (internal/localproxy),
the proxy-cache backend (internal/proxycache), and, if enabled, the live
state dashboard (internal/dashboard).

This command hosts the infrastructure a bytestream5 Manager is built on;
it does not itself negotiate bytestreams, since that requires a live
Messenger/Gateway pair bound to a real XMPP connection.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	serveCmd.Flags().IntP("port", "p", 0, "override proxy.local_port")
}

func runServe(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadCLIConfig(configPath)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	if port, _ := cmd.Flags().GetInt("port"); cmd.Flags().Changed("port") {
		cfg.Proxy.LocalPort = port
	}

	if errs := config.ValidateCLIConfig(cfg); len(errs) > 0 {
		fmt.Fprintln(os.Stderr, "configuration validation errors:")
		for _, e := range errs {
			fmt.Fprintf(os.Stderr, "  - %s\n", e.Error())
		}
		return fmt.Errorf("configuration error: invalid configuration")
	}

	store, err := newProxyCacheStore(cfg.Cache)
	if err != nil {
		return err
	}
	if closer, ok := store.(interface{ Close() error }); ok {
		defer closer.Close()
	}

	lp := localproxy.New()
	existing := make(map[string]bool)
	for _, addr := range lp.LocalAddresses() {
		existing[addr] = true
	}
	for _, addr := range cfg.Proxy.LocalAddresses {
		if !existing[addr] {
			lp.AddLocalAddress(addr)
			existing[addr] = true
		}
	}
	if err := lp.Start(cfg.Proxy.LocalPort); err != nil {
		return fmt.Errorf("bind local SOCKS5 mini-server: %w", err)
	}
	defer lp.Stop()
	bslog.Network("local SOCKS5 mini-server listening", slog.Int("port", lp.Port()))

	stunClient := natinfo.New()
	if publicAddr, err := stunClient.DiscoverPublicAddress(cmd.Context(), cfg.Proxy.STUNServer); err == nil {
		lp.AddLocalAddress(publicAddr)
		bslog.Info("discovered public address via STUN", slog.String("address", publicAddr))
	} else {
		bslog.Warn("STUN discovery failed, continuing with configured local addresses", slog.String("error", err.Error()))
	}

	var dashSrv *dashboard.Server
	if cfg.Dashboard.Enabled {
		dashSrv = dashboard.NewServer(dashboard.NewCollector(&staticStats{}, store))
		httpSrv := &http.Server{Addr: cfg.Dashboard.Addr, Handler: dashSrv}
		go func() {
			if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				bslog.Error("dashboard server exited", err)
			}
		}()
		defer httpSrv.Close()
		bslog.Network("dashboard listening", slog.String("addr", cfg.Dashboard.Addr))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	bslog.Close("shutting down")
	if dashSrv != nil {
		dashSrv.Shutdown()
	}
	return nil
}

func newProxyCacheStore(cfg config.CacheConfig) (proxycache.Store, error) {
	switch cfg.Backend {
	case config.CacheBackendRedis:
		return proxycache.NewRedisStore(proxycache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
	default:
		return proxycache.NewMemoryStore(), nil
	}
}

// staticStats reports a serve-command-level dashboard.StatsSource since
// there is no live Manager to read toggles from outside an embedding
// application: it reports every toggle as true and does not read the
// loaded configuration.
type staticStats struct{}

func (staticStats) ServiceEnabled() bool             { return true }
func (staticStats) AnnounceLocalStreamHost() bool     { return true }
func (staticStats) ProxyPrioritizationEnabled() bool { return true }
