package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile   string
	verbose   bool
	logFormat string
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "coursewatch",
	Short: "Course portal notices and deadlines, delivered to your phone or inbox",
	Long: `coursewatch polls the course portal for new notices and upcoming
assignment deadlines and notifies you through a single channel (email,
Bark, ServerChan, Telegram, Slack or a webhook).

Every run remembers what it has already seen, so it can be scheduled
from cron or CI and will only tell you about things once.

Get started:
  coursewatch onboard    Interactive setup wizard
  coursewatch doctor     Verify configuration and record store
  coursewatch run        Poll the portal once
  coursewatch watch      Poll on a cron schedule`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ./coursewatch.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text",
		"log output format: text|json")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		onboardCmd,
		runCmd,
		watchCmd,
		recordsCmd,
		configCmd,
		doctorCmd,
	)
}

func initLogging() {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if logFormat == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, opts)))
	} else {
		slog.SetLogLoggerLevel(level)
	}
	slog.Debug("Verbose logging enabled")
}
