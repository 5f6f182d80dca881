package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/CosmoTheDev/coursewatch/internal/agent"
	"github.com/CosmoTheDev/coursewatch/internal/config"
	"github.com/spf13/cobra"
)

var runDryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the portal once and send notifications",
	Long: `Logs in to the portal, then reconciles notices and calendar deadlines
against the record store. New eligible events are sent to the configured
notification channel and recorded.

The first run of each class only records what is already there and
sends a single confirmation message.

Exit status is 0 when the run completes (including when the channel hit
its daily quota) and 1 on any error.

Examples:
  coursewatch run
  coursewatch run --dry-run -v`,
	RunE: runOnce,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false,
		"log messages instead of sending them and leave records untouched")
}

func runOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	orch := agent.NewOrchestrator(cfg, agent.OrchestratorOptions{DryRun: runDryRun})
	rep, err := orch.Run(ctx)
	if err != nil {
		return err
	}
	for _, res := range rep.Results {
		slog.Info("Run summary",
			"class", res.Class,
			"bootstrap", res.Bootstrap,
			"new", res.New,
			"notified", res.Notified,
			"ignored", res.Ignored,
			"skipped", res.Skipped,
		)
	}
	return nil
}
