// Package main provides the CLI entry point for Octo, a terminal coding
// agent built around a provider-agnostic turn loop, a permission-gated
// tool dispatcher, and a filesystem-backed team coordination substrate
// for spawning and talking to sub-agent processes.
//
// # Basic usage
//
// Start an interactive session in the current directory:
//
//	octo
//
// Run a single non-interactive turn (used internally by the spawn_agent
// tool to fork sub-agents, but usable standalone too):
//
//	octo -p "summarize this package"
//
// # Environment variables
//
// Configuration can be provided via a YAML file (--config) or environment
// variables, which always win over the file:
//
//   - OCTO_BASE_URL: provider endpoint
//   - OCTO_API_KEY: provider API key
//   - OCTO_MODEL: model ID from the registry
//   - OCTO_MAX_TOKENS: output token cap
//   - OCTO_CODEINTEL_URL: code-intel server base URL
//   - OCTO_TEAM_BASE_DIR: team filesystem root
//   - OCTO_CONTEXT_PATHS: comma-separated files prepended to the system prompt
//   - OCTO_DB_PATH: sqlite file path for session/message storage (default "octo.db")
//   - OCTO_DB_PURE_GO: non-empty selects the pure-Go sqlite driver over the cgo one
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath   string
	promptFlag   string
	teamNameFlag string
	agentFlag    string
	metricsAddr  string
	logLevelFlag string
)

func main() {
	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRootCmd builds the command tree. Separated from main for testability.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "octo",
		Short: "Octo - a terminal coding agent",
		Long: `Octo drives a turn-based agent loop against an OpenAI-chat-completions-shaped
provider, dispatching file, shell, code-intel, and team-coordination tools
behind a permission gate.

Run with no arguments for an interactive session, or with -p for a single
non-interactive turn.`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
		RunE:         runRoot,
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "octo.yaml", "path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "address to serve Prometheus /metrics on (empty disables it)")

	rootCmd.Flags().StringVarP(&promptFlag, "prompt", "p", "", "run a single turn non-interactively with this prompt and exit")
	rootCmd.Flags().StringVar(&teamNameFlag, "team-name", "", "join this team as a non-lead member (set by spawn_agent)")
	rootCmd.Flags().StringVar(&agentFlag, "agent-name", "", "agent name to join the team as (set by spawn_agent)")

	return rootCmd
}

func parseLogLevel(s string) zerolog.Level {
	lvl, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.InfoLevel
	}
	return lvl
}
