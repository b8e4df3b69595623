package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ge0rg/bytestream5/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management commands",
	Long: `Manage bytestream5 configuration files.

Configuration is loaded from multiple sources in order of precedence:
1. Command line flags
2. Environment variables (SOCKS5_PORT, STUN_SERVER, CACHE_BACKEND, REDIS_ADDR)
3. Configuration file
4. Default values

The configuration file is searched in:
- Current directory (bytestream5.yaml)
- ~/.config/bytestream5/bytestream5.yaml (XDG config home)
- /etc/bytestream5/bytestream5.yaml (system-wide)`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a configuration file with default values",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigInit(cmd)
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the merged configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runConfigShow(cmd)
	},
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)

	configInitCmd.Flags().StringP("output", "o", "", "output file path (defaults to the XDG config directory)")
	configInitCmd.Flags().BoolP("force", "f", false, "overwrite an existing config file")
}

func runConfigInit(cmd *cobra.Command) error {
	outputPath, _ := cmd.Flags().GetString("output")
	force, _ := cmd.Flags().GetBool("force")

	if outputPath == "" {
		outputPath = config.GetDefaultConfigPath()
	}

	if _, err := os.Stat(outputPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists at %s (use --force to overwrite)", outputPath)
	}

	if err := config.WriteExampleConfig(outputPath); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	fmt.Printf("Configuration file created: %s\n", outputPath)
	return nil
}

func runConfigShow(cmd *cobra.Command) error {
	configPath, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadCLIConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	fmt.Printf("# configuration loaded from: %s\n\n", configSource(configPath))

	encoder := yaml.NewEncoder(os.Stdout)
	encoder.SetIndent(2)
	defer encoder.Close()
	return encoder.Encode(cfg)
}

func configSource(configPath string) string {
	if configPath != "" {
		return configPath
	}
	if found, err := config.FindConfigFile(); err == nil {
		return found
	}
	return "defaults (no config file found)"
}
