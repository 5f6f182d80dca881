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
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var (
	watchSchedule string
	watchNow      bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the portal on a cron schedule",
	Long: `Keeps running and performs a poll every time the schedule fires.
A poll that is still running when the next one is due causes that tick
to be skipped. Errors are logged and the next tick runs as usual.

The config file is re-read on every tick.

Examples:
  coursewatch watch                        # every 30 minutes
  coursewatch watch --cron "@every 10m"
  coursewatch watch --cron "0 8-22 * * *" --now`,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchSchedule, "cron", "*/30 * * * *",
		"cron expression or descriptor (@hourly, @every 15m)")
	watchCmd.Flags().BoolVar(&watchNow, "now", false,
		"poll once immediately before waiting for the schedule")
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Fail fast on a broken config instead of logging the same error every tick.
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := cron.VerbosePrintfLogger(slog.NewLogLogger(slog.Default().Handler(), slog.LevelDebug))
	c := cron.New(cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)))
	poll := func() { pollOnce(ctx) }
	if _, err := c.AddFunc(watchSchedule, poll); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", watchSchedule, err)
	}

	if watchNow {
		poll()
	}
	c.Start()
	slog.Info("Watching course portal", "schedule", watchSchedule)

	<-ctx.Done()
	slog.Info("Shutting down, waiting for the running poll to finish")
	<-c.Stop().Done()
	return nil
}

func pollOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		slog.Error("Loading config failed", "error", err)
		return
	}
	rep, err := agent.NewOrchestrator(cfg, agent.OrchestratorOptions{}).Run(ctx)
	if err != nil {
		slog.Error("Poll failed", "error", err)
		return
	}
	notified := 0
	for _, res := range rep.Results {
		notified += res.Notified
	}
	slog.Info("Poll finished", "notified", notified, "degraded", rep.Degraded)
}
