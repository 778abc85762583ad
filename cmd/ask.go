package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ai4ai/helpdesk/internal/answer"
	"github.com/ai4ai/helpdesk/internal/app"
	"github.com/ai4ai/helpdesk/internal/config"
)

var askRole string

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask one question and stream the answer to stdout",
	Long: `Answers a single question as the given role. The answer streams to
stdout as it is generated; the exit status reflects the outcome
(0 answered or unanswerable, 1 invalid role or system error).`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	askCmd.Flags().StringVar(&askRole, "role", "", "requester role (default: the configured default access tag)")
	rootCmd.AddCommand(askCmd)
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	role := askRole
	if role == "" {
		role = cfg.DefaultAccessTag
	}
	question := strings.Join(args, " ")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			slog.Warn("shutdown error", "error", closeErr)
		}
	}()

	pipeline := a.Factory.ForRole(role)
	var event *answer.Event
	for delta := range pipeline.Answer(ctx, question) {
		if delta.Event != nil {
			event = delta.Event
			continue
		}
		fmt.Print(delta.Text)
	}
	fmt.Println()

	if event == nil {
		// Stream canceled before the terminal delta.
		return ctx.Err()
	}

	switch event.Classification {
	case answer.Unanswerable:
		fmt.Fprintln(os.Stderr, "No grounded answer was found; consider opening a support ticket.")
		return nil
	case answer.InvalidRole, answer.SystemError:
		return fmt.Errorf("question not answered: %s", event.Classification)
	default:
		return nil
	}
}
