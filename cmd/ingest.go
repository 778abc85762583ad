package cmd

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/ai4ai/helpdesk/internal/app"
	"github.com/ai4ai/helpdesk/internal/config"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Build the vector index from a document directory",
	Long: `Loads every allowed file under the directory (default: the configured
docs_dir), resolves each file's access tag from its name, chunks the text,
embeds the passages, and atomically replaces the persisted index.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	dir := cfg.DocsDir
	if len(args) > 0 {
		dir = args[0]
	}

	ctx := cmd.Context()
	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	stats, err := a.Ingest(ctx, dir)
	if err != nil {
		return err
	}

	fmt.Printf("Indexed %d passages from %d documents (%d skipped, %d failed) in %s\n",
		stats.Passages, stats.Documents, stats.Skipped, stats.Failed,
		stats.Duration.Round(time.Millisecond))
	return nil
}
