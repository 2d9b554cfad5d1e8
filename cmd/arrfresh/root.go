package main

import (
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string
	serverURL  string
)

var rootCmd = &cobra.Command{
	Use:   "arrfresh",
	Short: "Library refresh relay for Emby, Jellyfin and Plex",
	Long: `arrfresh - library refresh relay

Listens for transfer-complete notifications and tells your media
servers to refresh their library view of the imported items,
coalescing bursts of notifications for the same path into a single
delayed refresh.

Run 'arrfresh serve' to start the daemon.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "http://localhost:8475", "Daemon URL")

	rootCmd.Version = version
	rootCmd.SetVersionTemplate("arrfresh {{.Version}}\n")
}
