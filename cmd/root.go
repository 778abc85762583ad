// Package cmd provides the helpdesk CLI commands.
//
// Commands:
//   - ingest: load a document directory and build the vector index
//   - ask: answer one question from the terminal, streamed to stdout
//   - serve: HTTP API server with SSE streaming
//   - version: show version information
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ai4ai/helpdesk/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "helpdesk",
	Short: "Role-aware helpdesk assistant over a private document base",
	Long: `helpdesk answers questions from an access-tagged document corpus.

Documents are tagged with a role by filename suffix, chunked, embedded,
and stored in PostgreSQL with pgvector. Retrieval filters by access
level inside the nearest-neighbor query, so a requester can never see a
passage above their role.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.
func Execute() error {
	slog.SetDefault(initLogger())
	return rootCmd.Execute()
}

// initLogger builds the process logger. DEBUG in the environment (any
// value) switches to debug level; logs always go to stderr so stdout
// stays clean for answer streaming.
func initLogger() *slog.Logger {
	cfg := log.Config{Level: slog.LevelInfo}
	if os.Getenv("DEBUG") != "" {
		cfg.Level = slog.LevelDebug
	}
	return log.New(cfg)
}
