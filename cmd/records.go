package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/CosmoTheDev/coursewatch/internal/config"
	"github.com/CosmoTheDev/coursewatch/internal/records"
	"github.com/CosmoTheDev/coursewatch/internal/tui"
	"github.com/CosmoTheDev/coursewatch/models"
	"github.com/spf13/cobra"
)

var (
	recordsClass string
	recordsJSON  bool
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "Inspect the record store",
}

var recordsBrowseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Browse records in an interactive terminal view",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		backend, err := records.Open(context.Background(), cfg.Store)
		if err != nil {
			return fmt.Errorf("opening record store: %w", err)
		}
		defer backend.Close() //nolint:errcheck
		return tui.NewApp(func(ctx context.Context) (tui.Snapshot, error) {
			return tui.LoadSnapshot(ctx, backend)
		}).Run()
	},
}

var recordsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the records of a class",
	Long: `Prints every record of the given class, oldest first.

Examples:
  coursewatch records list
  coursewatch records list --class assignment --json`,
	RunE: runRecordsList,
}

func init() {
	recordsListCmd.Flags().StringVar(&recordsClass, "class", string(models.ClassNotice),
		"record class: notice|assignment")
	recordsListCmd.Flags().BoolVar(&recordsJSON, "json", false, "print records as JSON")
	recordsCmd.AddCommand(recordsListCmd, recordsBrowseCmd)
}

func runRecordsList(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	class := models.Class(strings.ToLower(recordsClass))
	if !class.Valid() {
		return fmt.Errorf("unknown class %q (want notice or assignment)", recordsClass)
	}

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	backend, err := records.Open(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("opening record store: %w", err)
	}
	defer backend.Close() //nolint:errcheck

	if class == models.ClassNotice {
		return listRecords(ctx, records.NewStore[models.NoticeRecord](backend, class), func(r models.NoticeRecord) string {
			mark := successStyle.Render("notify")
			if !r.ShouldNotify {
				mark = dimStyle.Render("ignore")
			}
			return fmt.Sprintf("%s  %s  %s  %s", dimStyle.Render(r.Time), mark, r.Course, r.Title)
		})
	}
	return listRecords(ctx, records.NewStore[models.AssignmentRecord](backend, class), func(r models.AssignmentRecord) string {
		mark := warnStyle.Render("open  ")
		if r.HasAttempted {
			mark = successStyle.Render("done  ")
		}
		return fmt.Sprintf("%s  %s  %s  %s", dimStyle.Render(r.Time), mark, r.Course, r.Title)
	})
}

func listRecords[T models.Record](ctx context.Context, store *records.Store[T], line func(T) string) error {
	recs, exists, err := store.Load(ctx)
	if err != nil {
		return err
	}
	if recordsJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(recs)
	}
	if !exists {
		fmt.Println(warnStyle.Render(fmt.Sprintf("No %s records yet: the next run will bootstrap this class.", store.Class())))
		return nil
	}
	fmt.Println(headerStyle.Render(fmt.Sprintf("%d %s records", len(recs), store.Class())))
	for _, r := range recs {
		fmt.Println(line(r))
	}
	return nil
}
