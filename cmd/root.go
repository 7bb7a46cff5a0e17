package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile   string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "wxserverd",
	Short: "Ingestion and query server for a home weather station",
	Long: `wxserverd receives periodic observations from a weather station sensor
feed, persists them as an append-only time series in SQLite or PostgreSQL,
and serves time-windowed queries for visualization along with a current
conditions summary, lightning proximity tracking, and a derived display
scene (storm/rain/sunset/day/night).`,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "log format (text or json)")
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
