// Package cli wires configuration, storage, the scan engine, and the
// HTTP API into the scanhub command.
package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version information (set by build flags)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "scanhub",
	Short: "Security scan orchestration service",
	Long: `scanhub - security scan orchestration service

Runs security scans against a target URL, persists findings and
compliance scores to a relational store, and serves them over a REST
API for the dashboard.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)

	// Server flags
	serveCmd.Flags().String("listen", ":8080", "Address to serve the API on")
	serveCmd.Flags().String("db", "scanhub.db", "Path to the SQLite database file")
	serveCmd.Flags().String("jwt-secret", "", "HMAC secret used to verify bearer tokens")

	// Scanner flags
	serveCmd.Flags().Duration("scan-timeout", 5*time.Minute, "Maximum duration of a single scan")
	serveCmd.Flags().Duration("request-timeout", 10*time.Second, "Timeout for outbound checker requests")
	serveCmd.Flags().Float64("max-rps", 0, "Maximum outbound requests per second (0 = unlimited)")
	serveCmd.Flags().Bool("insecure-skip-verify", false, "Skip TLS verification on outbound requests")
	serveCmd.Flags().StringSlice("attested-control", nil, "Security control attested as implemented (repeatable)")

	// Output flags
	serveCmd.Flags().IntP("verbose", "v", 0, "Verbosity level (0-3)")

	for _, name := range []string{
		"listen", "db", "jwt-secret", "scan-timeout", "request-timeout",
		"max-rps", "insecure-skip-verify", "attested-control", "verbose",
	} {
		_ = viper.BindPFlag(name, serveCmd.Flags().Lookup(name))
	}

	// Environment variable support (SCANHUB_LISTEN, SCANHUB_JWT_SECRET, ...)
	viper.SetEnvPrefix("SCANHUB")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("scanhub %s (commit: %s, built: %s)\n", version, commit, date)
	},
}
