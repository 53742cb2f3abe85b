// Package main is the entry point for the agent bridge server.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"agentbridge/internal/version"
)

var (
	// Global flags (override config when set)
	flagLogLevel string
	flagHost     string
	flagPort     string
)

var rootCmd = &cobra.Command{
	Use:   "agentbridge",
	Short: "Ollama-compatible HTTP bridge to agent CLIs",
	Long: `agentbridge exposes an Ollama-style chat/generate API and serves each request by
running a non-interactive agent backend: the codex CLI, or gemini through its CLI or remote API.`,
	SilenceUsage: true,
	RunE:         runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP bridge (default)",
	RunE:  runServe,
}

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Run backend readiness checks and exit non-zero if any fails",
	RunE:  runProbe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.Info())
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "log level: debug, info, warn, error (overrides LOG_LEVEL)")
	for _, c := range []*cobra.Command{rootCmd, serveCmd} {
		c.Flags().StringVar(&flagHost, "host", "", "listen host (overrides BRIDGE_HOST)")
		c.Flags().StringVar(&flagPort, "port", "", "listen port (overrides BRIDGE_PORT)")
	}
	rootCmd.AddCommand(serveCmd, probeCmd, versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
