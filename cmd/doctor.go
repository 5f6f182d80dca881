package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/CosmoTheDev/coursewatch/internal/config"
	"github.com/CosmoTheDev/coursewatch/internal/notify"
	"github.com/CosmoTheDev/coursewatch/internal/portal"
	"github.com/CosmoTheDev/coursewatch/internal/records"
	"github.com/CosmoTheDev/coursewatch/models"
	"github.com/spf13/cobra"
)

var doctorLogin bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify configuration, record store and portal access",
	Long: `Checks that the configuration is valid, the notification channel is
complete, and the record store can be opened. For each class it reports
whether the next run will bootstrap.

Use --login to also sign in to the portal with the configured credentials.
No notification is ever sent.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorLogin, "login", false,
		"also test the portal login")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	allOK := true
	fail := func(err error) {
		fmt.Println(failStyle.Render(fmt.Sprintf("FAIL (%s)", err)))
		allOK = false
	}

	fmt.Println(headerStyle.Render("=== coursewatch doctor ==="))

	fmt.Print("Configuration ............ ")
	if err := cfg.Validate(); err != nil {
		fail(err)
	} else {
		fmt.Println(successStyle.Render("OK"))
	}

	fmt.Print("Classes .................. ")
	switch {
	case cfg.Notice.Enabled && cfg.Assignment.Enabled:
		fmt.Printf("notice, assignment (deadlines %dh ahead)\n", cfg.Assignment.AdvanceHours)
	case cfg.Notice.Enabled:
		fmt.Println("notice")
	case cfg.Assignment.Enabled:
		fmt.Printf("assignment (deadlines %dh ahead)\n", cfg.Assignment.AdvanceHours)
	default:
		fmt.Println(warnStyle.Render("WARN (none enabled, runs will do nothing)"))
		allOK = false
	}

	fmt.Print("Notify channel ........... ")
	if d, err := notify.New(cfg.Notify); err != nil {
		fail(err)
	} else {
		fmt.Println(successStyle.Render("OK") + " " + dimStyle.Render("("+d.Channel()+")"))
	}

	fmt.Print("Record store ............. ")
	backend, err := records.Open(ctx, cfg.Store)
	if err != nil {
		fail(err)
	} else {
		defer backend.Close() //nolint:errcheck
		fmt.Println(successStyle.Render("OK") + " " + dimStyle.Render("("+backend.Describe()+")"))
		for _, class := range models.Classes() {
			fmt.Printf("  %-22s . ", class)
			items, exists, err := backend.Load(ctx, class)
			switch {
			case err != nil:
				fail(err)
			case !exists:
				fmt.Println(warnStyle.Render("no records yet (next run bootstraps)"))
			default:
				fmt.Printf("%d records\n", len(items))
			}
		}
	}

	if doctorLogin {
		fmt.Print("Portal login ............. ")
		client, err := portal.New(cfg.Portal)
		if err == nil {
			err = client.Login(ctx)
		}
		if err != nil {
			fail(err)
		} else {
			fmt.Println(successStyle.Render("OK") + " " + dimStyle.Render("("+cfg.Portal.Username+")"))
		}
	}

	fmt.Println()
	if allOK {
		fmt.Println(successStyle.Render("All checks passed! coursewatch is ready."))
	} else {
		fmt.Println(warnStyle.Render("Some checks failed. Run 'coursewatch onboard' or edit the config to fix."))
	}
	return nil
}
