package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/adrg/xdg"
	"github.com/spf13/viper"
)

const appName = "bytestream5"

// LoadCLIConfig loads configuration from an explicit file (if configPath
// is non-empty), XDG-compliant search paths otherwise, environment
// variables, and falls back to DefaultCLIConfig for anything unset.
// Grounded on the teacher's LoadCLIConfig (internal/config/loader.go).
func LoadCLIConfig(configPath string) (*CLIConfig, error) {
	cfg := DefaultCLIConfig()

	v := viper.New()
	v.SetConfigName(appName)
	v.SetConfigType("yaml")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(xdg.ConfigHome, appName))
		v.AddConfigPath(filepath.Join("/etc", appName))
		for _, dir := range xdg.ConfigDirs {
			v.AddConfigPath(filepath.Join(dir, appName))
		}
	}

	v.SetEnvPrefix("BYTESTREAM5")
	v.AutomaticEnv()
	v.BindEnv("proxy.local_port", "SOCKS5_PORT")
	v.BindEnv("proxy.stun_server", "STUN_SERVER")
	v.BindEnv("cache.backend", "CACHE_BACKEND")
	v.BindEnv("cache.redis_addr", "REDIS_ADDR")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	return cfg, nil
}

// WriteExampleConfig writes an annotated example configuration file to
// filePath, creating its parent directory if needed.
func WriteExampleConfig(filePath string) error {
	const example = `# bytestream5 configuration file
# Every field documented here is the default value.

proxy:
  local_port: 1080                        # local SOCKS5 mini-server port
  local_addresses:
    - "127.0.0.1"                         # advertised local stream-host addresses
  stun_server: "stun.l.google.com:19302"  # used to discover the public address to announce
  announce_local_stream_host: true
  prioritization_enabled: true
  session_timeout: 30s

cache:
  backend: "memory"                       # memory | redis
  redis_addr: ""
  redis_password: ""
  redis_db: 0

dashboard:
  enabled: false
  addr: ":8089"
`

	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if err := os.WriteFile(filePath, []byte(example), 0644); err != nil {
		return fmt.Errorf("failed to write config file %s: %w", filePath, err)
	}
	return nil
}

// FindConfigFile searches the XDG-compliant locations for an existing
// config file, returning the first match.
func FindConfigFile() (string, error) {
	searchPaths := []string{
		appName + ".yaml",
		appName + ".yml",
		filepath.Join(xdg.ConfigHome, appName, appName+".yaml"),
		filepath.Join(xdg.ConfigHome, appName, appName+".yml"),
		filepath.Join("/etc", appName, appName+".yaml"),
		filepath.Join("/etc", appName, appName+".yml"),
	}
	for _, dir := range xdg.ConfigDirs {
		searchPaths = append(searchPaths,
			filepath.Join(dir, appName, appName+".yaml"),
			filepath.Join(dir, appName, appName+".yml"),
		)
	}

	for _, path := range searchPaths {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no config file found in standard locations")
}

// GetDefaultConfigPath returns the path WriteExampleConfig should target
// when the user didn't specify one.
func GetDefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, appName+".yaml")
}
