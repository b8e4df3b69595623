package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ge0rg/bytestream5/pkg/bslog"
)

// executeCliCommand runs the cobra command tree.
func executeCliCommand() error {
	return rootCmd.Execute()
}

var rootCmd = &cobra.Command{
	Use:   "bytestream5",
	Short: "A XEP-0065 SOCKS5 Bytestream initiator core",
	Long: `bytestream5 hosts the supporting infrastructure for a SOCKS5
Bytestream (XEP-0065) initiator: the local SOCKS5 mini-server, the proxy
blacklist/priority cache, and a live state dashboard. Wiring it to an
actual XMPP connection is left to the embedding application, which
supplies the Messenger and Gateway collaborators.`,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("bytestream5 v0.1.0")
	},
}

func init() {
	bslog.Init(&bslog.Config{Level: slog.LevelInfo, Format: "text", ServiceName: "bytestream5-cli"})

	rootCmd.PersistentFlags().StringP("config", "c", "", "config file path")
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(configCmd)
}
