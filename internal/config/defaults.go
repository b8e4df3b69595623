package config

import (
	"strings"
	"time"
)

// Default STUN/SOCKS5 settings mirror the widely-used public defaults the
// teacher ships (its shared.DefaultSTUNServer/DefaultSOCKS5Port).
const (
	DefaultSTUNServer     = "stun.l.google.com:19302"
	DefaultLocalPort      = 1080
	DefaultSessionTimeout = 30 * time.Second
)

// DefaultCLIConfig returns a CLIConfig with every field at its documented
// default, per spec.md §6/§9.
func DefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Proxy: ProxyConfig{
			LocalPort:               DefaultLocalPort,
			LocalAddresses:          []string{"127.0.0.1"},
			STUNServer:              DefaultSTUNServer,
			AnnounceLocalStreamHost: true,
			PrioritizationEnabled:   true,
			SessionTimeout:          DefaultSessionTimeout,
		},
		Cache: CacheConfig{
			Backend: CacheBackendMemory,
			RedisDB: 0,
		},
		Dashboard: DashboardConfig{
			Enabled: false,
			Addr:    ":8089",
		},
	}
}

// ConfigError names the field and offending value behind a validation
// failure.
type ConfigError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

// ValidateCLIConfig checks cfg against the constraints spec.md §4.2/§6
// imply (valid port ranges, a usable cache backend) and returns every
// violation found.
func ValidateCLIConfig(cfg *CLIConfig) []error {
	var errs []error

	if cfg.Proxy.LocalPort < 1 || cfg.Proxy.LocalPort > 65535 {
		errs = append(errs, &ConfigError{
			Field:   "proxy.local_port",
			Value:   cfg.Proxy.LocalPort,
			Message: "local_port must be between 1 and 65535",
		})
	} else if cfg.Proxy.LocalPort < 1024 {
		errs = append(errs, &ConfigError{
			Field:   "proxy.local_port",
			Value:   cfg.Proxy.LocalPort,
			Message: "ports below 1024 require elevated privileges",
		})
	}

	if cfg.Proxy.AnnounceLocalStreamHost && len(cfg.Proxy.LocalAddresses) == 0 {
		errs = append(errs, &ConfigError{
			Field:   "proxy.local_addresses",
			Value:   cfg.Proxy.LocalAddresses,
			Message: "at least one local address is required when announcing a local stream host",
		})
	}

	if cfg.Proxy.STUNServer != "" && !strings.Contains(cfg.Proxy.STUNServer, ":") {
		errs = append(errs, &ConfigError{
			Field:   "proxy.stun_server",
			Value:   cfg.Proxy.STUNServer,
			Message: "stun_server must be in format host:port",
		})
	}

	if cfg.Proxy.SessionTimeout <= 0 {
		errs = append(errs, &ConfigError{
			Field:   "proxy.session_timeout",
			Value:   cfg.Proxy.SessionTimeout,
			Message: "session_timeout must be positive",
		})
	}

	switch cfg.Cache.Backend {
	case CacheBackendMemory:
	case CacheBackendRedis:
		if cfg.Cache.RedisAddr == "" {
			errs = append(errs, &ConfigError{
				Field:   "cache.redis_addr",
				Value:   cfg.Cache.RedisAddr,
				Message: "redis_addr is required when cache.backend is \"redis\"",
			})
		}
	default:
		errs = append(errs, &ConfigError{
			Field:   "cache.backend",
			Value:   string(cfg.Cache.Backend),
			Message: "backend must be one of: memory, redis",
		})
	}

	return errs
}
