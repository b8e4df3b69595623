package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultCLIConfig(t *testing.T) {
	cfg := DefaultCLIConfig()

	if cfg.Proxy.LocalPort != DefaultLocalPort {
		t.Errorf("LocalPort = %d, want %d", cfg.Proxy.LocalPort, DefaultLocalPort)
	}
	if cfg.Proxy.STUNServer == "" {
		t.Error("expected a default STUN server")
	}
	if !cfg.Proxy.AnnounceLocalStreamHost {
		t.Error("expected AnnounceLocalStreamHost true by default")
	}
	if cfg.Cache.Backend != CacheBackendMemory {
		t.Errorf("Cache.Backend = %q, want %q", cfg.Cache.Backend, CacheBackendMemory)
	}
}

func TestLoadCLIConfigDefaultsWithoutFile(t *testing.T) {
	dir := t.TempDir()
	cwd, _ := os.Getwd()
	defer os.Chdir(cwd)
	os.Chdir(dir)

	cfg, err := LoadCLIConfig("")
	if err != nil {
		t.Fatalf("LoadCLIConfig: %v", err)
	}
	if cfg.Proxy.LocalPort != DefaultLocalPort {
		t.Errorf("LocalPort = %d, want %d", cfg.Proxy.LocalPort, DefaultLocalPort)
	}
}

func TestLoadCLIConfigExplicitFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bytestream5.yaml")
	content := []byte("proxy:\n  local_port: 1081\n  stun_server: \"stun.example.com:3478\"\n")
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	cfg, err := LoadCLIConfig(path)
	if err != nil {
		t.Fatalf("LoadCLIConfig: %v", err)
	}
	if cfg.Proxy.LocalPort != 1081 {
		t.Errorf("LocalPort = %d, want 1081", cfg.Proxy.LocalPort)
	}
	if cfg.Proxy.STUNServer != "stun.example.com:3478" {
		t.Errorf("STUNServer = %q, want stun.example.com:3478", cfg.Proxy.STUNServer)
	}
}

func TestValidateCLIConfigRejectsBadPort(t *testing.T) {
	cfg := DefaultCLIConfig()
	cfg.Proxy.LocalPort = 70000

	errs := ValidateCLIConfig(cfg)
	if len(errs) == 0 {
		t.Fatal("expected a validation error for an out-of-range port")
	}
}

func TestValidateCLIConfigRequiresRedisAddr(t *testing.T) {
	cfg := DefaultCLIConfig()
	cfg.Cache.Backend = CacheBackendRedis
	cfg.Cache.RedisAddr = ""

	errs := ValidateCLIConfig(cfg)
	if len(errs) == 0 {
		t.Fatal("expected a validation error for a redis backend without redis_addr")
	}
}

func TestValidateCLIConfigAcceptsDefaults(t *testing.T) {
	cfg := DefaultCLIConfig()
	if errs := ValidateCLIConfig(cfg); len(errs) != 0 {
		t.Fatalf("expected no errors for default config, got %v", errs)
	}
}

func TestMergeOverridesNonZeroFields(t *testing.T) {
	base := DefaultCLIConfig()
	override := &CLIConfig{
		Proxy: ProxyConfig{LocalPort: 9999},
	}

	base.Merge(override)
	if base.Proxy.LocalPort != 9999 {
		t.Errorf("LocalPort = %d, want 9999", base.Proxy.LocalPort)
	}
	if base.Proxy.STUNServer == "" {
		t.Error("Merge must not clear a field left zero on the override")
	}
}

func TestWriteExampleConfigCreatesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bytestream5.yaml")

	if err := WriteExampleConfig(path); err != nil {
		t.Fatalf("WriteExampleConfig: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected config file to exist: %v", err)
	}
}
