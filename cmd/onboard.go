package cmd

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/CosmoTheDev/coursewatch/internal/config"
	"github.com/CosmoTheDev/coursewatch/internal/notify"
	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
)

var onboardCmd = &cobra.Command{
	Use:   "onboard",
	Short: "Interactive setup wizard for coursewatch",
	Long: `Walks you through configuring coursewatch:
  - Portal account (IAAA student or staff id and password)
  - Notification channel (email, Bark, ServerChan, Telegram, Slack, webhook)
  - Which notice categories to forward
  - How far ahead to remind you of deadlines
  - Where processed records are kept

Existing values are offered as defaults, so the wizard can be re-run to
change a single setting.`,
	RunE: runOnboard,
}

func runOnboard(cmd *cobra.Command, args []string) error {
	fmt.Println()
	fmt.Println(headerStyle.Render("  coursewatch · course portal reminders"))
	fmt.Println(dimStyle.Render("  New notices and upcoming deadlines, sent to wherever you read them.\n"))

	// Load existing config or start from the defaults.
	cfg, err := config.Load(cfgFile)
	if err != nil {
		cfg = config.Default()
	}

	// --- Step 1: Portal account ---
	fmt.Println(headerStyle.Render("  Step 1/5 · Portal Account"))
	fmt.Println(dimStyle.Render("  The same id and password you use on the unified login page.\n"))

	accountForm := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Student / staff id").
				Value(&cfg.Portal.Username).
				Validate(required("id")),
			huh.NewInput().
				Title("Password").
				EchoMode(huh.EchoModePassword).
				Value(&cfg.Portal.Password).
				Validate(required("password")),
		),
	)
	if err := accountForm.Run(); err != nil {
		return err
	}

	// --- Step 2: Notification channel ---
	fmt.Println(headerStyle.Render("\n  Step 2/5 · Notification Channel"))
	if cfg.Notify.Method == "" {
		cfg.Notify.Method = "email"
	}
	methodForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("How should coursewatch reach you?").
				Options(
					huh.NewOption("Email to yourself (pku / stu.pku / qq / 163 / 126)", "email"),
					huh.NewOption("Bark (iOS push)", "bark"),
					huh.NewOption("ServerChan Turbo (WeChat, daily quota)", "sct"),
					huh.NewOption("ServerChan 3 (app push)", "sc3"),
					huh.NewOption("Telegram bot", "telegram"),
					huh.NewOption("Slack incoming webhook", "slack"),
					huh.NewOption("Generic JSON webhook", "webhook"),
				).
				Value(&cfg.Notify.Method),
		),
	)
	if err := methodForm.Run(); err != nil {
		return err
	}
	if err := channelForm(cfg).Run(); err != nil {
		return err
	}
	if _, err := notify.New(cfg.Notify); err != nil {
		fmt.Println(warnStyle.Render("  " + err.Error()))
		fmt.Println(dimStyle.Render("  Saved anyway; fix it later with 'coursewatch config edit'."))
	}

	// --- Step 3: Notices ---
	fmt.Println(headerStyle.Render("\n  Step 3/5 · Notices"))
	categories := strings.Split(cfg.Notice.AllowedEvents, "")
	blocked := strings.Join(cfg.Notice.BlockedCourses, ", ")
	noticeForm := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Forward new portal notices?").
				Value(&cfg.Notice.Enabled),
			huh.NewMultiSelect[string]().
				Title("Notice categories").
				Options(
					huh.NewOption("Assignments", "1"),
					huh.NewOption("Course content", "2"),
					huh.NewOption("Announcements and everything else", "3"),
				).
				Value(&categories),
			huh.NewInput().
				Title("Courses to mute (comma separated, optional)").
				Value(&blocked),
		),
	)
	if err := noticeForm.Run(); err != nil {
		return err
	}
	sort.Strings(categories)
	cfg.Notice.AllowedEvents = strings.Join(categories, "")
	cfg.Notice.BlockedCourses = splitList(blocked)

	// --- Step 4: Deadlines ---
	fmt.Println(headerStyle.Render("\n  Step 4/5 · Deadlines"))
	advance := strconv.Itoa(cfg.Assignment.AdvanceHours)
	if cfg.Assignment.AdvanceHours <= 0 {
		advance = "24"
	}
	deadlineForm := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Remind you of upcoming deadlines?").
				Value(&cfg.Assignment.Enabled),
			huh.NewInput().
				Title("Hours before the deadline").
				Description("Each assignment is reported once, as soon as it is due within this window.").
				Value(&advance).
				Validate(func(s string) error {
					n, err := strconv.Atoi(strings.TrimSpace(s))
					if err != nil || n <= 0 {
						return errors.New("enter a positive whole number")
					}
					return nil
				}),
		),
	)
	if err := deadlineForm.Run(); err != nil {
		return err
	}
	cfg.Assignment.AdvanceHours, _ = strconv.Atoi(strings.TrimSpace(advance))

	// --- Step 5: Record store ---
	fmt.Println(headerStyle.Render("\n  Step 5/5 · Record Store"))
	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "file"
	}
	storeForm := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Where should processed events be remembered?").
				Options(
					huh.NewOption("JSON files (commit them back in CI)", "file"),
					huh.NewOption("SQLite database", "sqlite"),
					huh.NewOption("MySQL server", "mysql"),
				).
				Value(&cfg.Store.Driver),
		),
	)
	if err := storeForm.Run(); err != nil {
		return err
	}
	if err := storeLocationForm(cfg).Run(); err != nil {
		return err
	}

	cfg.Normalize()
	cfgPath, _ := config.ConfigPath(cfgFile)
	if err := config.Save(cfg, cfgPath); err != nil {
		return fmt.Errorf("saving config: %w", err)
	}

	fmt.Println()
	fmt.Println(headerStyle.Render("  Setup complete!"))
	fmt.Printf("  Config saved to: %s\n\n", dimStyle.Render(cfgPath))
	if err := cfg.Validate(); err != nil {
		fmt.Println(warnStyle.Render("  " + err.Error()))
		fmt.Println()
	}
	fmt.Println(dimStyle.Render("  Next steps:"))
	fmt.Println(dimStyle.Render("    coursewatch doctor --login   verify the config and portal login"))
	fmt.Println(dimStyle.Render("    coursewatch run              first run: record what is there, send one confirmation"))
	fmt.Println(dimStyle.Render("    coursewatch watch            keep polling every 30 minutes"))
	fmt.Println()

	slog.Debug("Onboarding complete", "config", cfgPath)
	return nil
}

// channelForm asks for the settings of the selected notify method.
func channelForm(cfg *config.Config) *huh.Form {
	n := &cfg.Notify
	var fields []huh.Field
	switch n.Method {
	case "email":
		fields = []huh.Field{
			huh.NewInput().Title("Email address").Value(&n.Email.Address).Validate(required("address")),
			huh.NewInput().
				Title("Password or SMTP authorisation code").
				EchoMode(huh.EchoModePassword).
				Value(&n.Email.Password).
				Validate(required("password")),
			huh.NewInput().
				Title("SMTP host (optional)").
				Description("Only needed for domains other than pku.edu.cn, stu.pku.edu.cn, qq.com, 163.com, 126.com.").
				Value(&n.Email.SMTPHost),
		}
	case "bark":
		fields = []huh.Field{
			huh.NewInput().Title("Bark device key").EchoMode(huh.EchoModePassword).Value(&n.Bark.Key).Validate(required("key")),
			huh.NewInput().Title("Bark server").Value(&n.Bark.Server),
		}
	case "sct", "sc3":
		fields = []huh.Field{
			huh.NewInput().
				Title("ServerChan SendKey").
				Description("Turbo keys start with SCT, ServerChan 3 keys with sctp.").
				EchoMode(huh.EchoModePassword).
				Value(&n.SendKey).
				Validate(required("SendKey")),
		}
	case "telegram":
		fields = []huh.Field{
			huh.NewInput().Title("Bot token").EchoMode(huh.EchoModePassword).Value(&n.Telegram.BotToken).Validate(required("token")),
			huh.NewInput().Title("Chat id").Value(&n.Telegram.ChatID).Validate(required("chat id")),
		}
	case "slack":
		fields = []huh.Field{
			huh.NewInput().Title("Incoming webhook URL").EchoMode(huh.EchoModePassword).Value(&n.Slack.WebhookURL).Validate(required("URL")),
		}
	default:
		fields = []huh.Field{
			huh.NewInput().Title("Webhook URL").Value(&n.Webhook.URL).Validate(required("URL")),
			huh.NewInput().
				Title("Signing secret (optional)").
				Description("Sent as an HMAC-SHA256 X-Coursewatch-Signature header.").
				EchoMode(huh.EchoModePassword).
				Value(&n.Webhook.Secret),
		}
	}
	return huh.NewForm(huh.NewGroup(fields...))
}

func storeLocationForm(cfg *config.Config) *huh.Form {
	s := &cfg.Store
	switch s.Driver {
	case "sqlite":
		return huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("SQLite file").Value(&s.Path).Validate(required("path")),
		))
	case "mysql":
		return huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("MySQL DSN").
				Placeholder("user:pass@tcp(127.0.0.1:3306)/coursewatch").
				EchoMode(huh.EchoModePassword).
				Value(&s.DSN).
				Validate(required("DSN")),
		))
	default:
		return huh.NewForm(huh.NewGroup(
			huh.NewInput().Title("Record directory").Value(&s.Dir).Validate(required("directory")),
		))
	}
}

func required(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
