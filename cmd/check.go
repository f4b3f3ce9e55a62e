package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/go-faster/errors"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"github.com/tgdrive/clouddrive/internal/blob"
	"github.com/tgdrive/clouddrive/internal/config"
	"github.com/tgdrive/clouddrive/pkg/services"
	"github.com/tgdrive/clouddrive/pkg/store"
	"go.uber.org/zap"
	"golang.org/x/term"
)

var termWidth = func() (width int, err error) {
	width, _, err = term.GetSize(int(os.Stdout.Fd()))
	if err == nil {
		return width, nil
	}
	return 0, err
}

type exportFile struct {
	ID       string `json:"id"`
	OwnerID  string `json:"owner_id"`
	Name     string `json:"name"`
	BlobPath string `json:"blob_path"`
	Size     int64  `json:"size"`
	Actual   *int64 `json:"actual_size,omitempty"`
	Problem  string `json:"problem"`
}

type checkExport struct {
	Timestamp string       `json:"timestamp"`
	Scanned   int          `json:"scanned"`
	Files     []exportFile `json:"files"`
}

type checkOptions struct {
	exportFile string
	clean      bool
	reclaim    bool
	yes        bool
	verbose    bool
}

func NewCheckCmd() *cobra.Command {
	var (
		cfg  config.CheckCmdConfig
		opts checkOptions
	)
	loader := config.NewConfigLoader()
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Check that every file record has an intact blob",
		Long: `Compare file records with the blob store. Reports files whose blob is
missing or whose stored size differs from the record.

Examples:
  # Report problems and export them
  clouddrive check --export-file problems.json

  # Drop records whose blob is gone after confirmation
  clouddrive check --clean

  # Also delete blobs left behind by failed writes
  clouddrive check --reclaim --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheckCmd(cmd.Context(), &cfg, &opts)
		},
	}
	loadConfig(cmd, loader, &cfg)
	cmd.Flags().StringVar(&opts.exportFile, "export-file", "", "Write problems to this JSON file")
	cmd.Flags().BoolVar(&opts.clean, "clean", false, "Remove records whose blob is missing")
	cmd.Flags().BoolVar(&opts.reclaim, "reclaim", false, "Delete recorded orphan blobs")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Do not ask for confirmation")
	cmd.Flags().BoolVar(&opts.verbose, "verbose", false, "Print every checked problem")
	return cmd
}

func runCheckCmd(ctx context.Context, cfg *config.CheckCmdConfig, opts *checkOptions) error {
	if cfg.DB.DataSource == "" {
		return errors.New("required configuration values not set: db-data-source")
	}
	ctx, lg := setupLogger(ctx, &cfg.Log)
	defer lg.Sync()

	db, err := openDatabase(ctx, &cfg.DB, lg, false)
	if err != nil {
		return err
	}
	defer db.Close()

	blobs, err := blob.Open(ctx, &cfg.Storage, lg)
	if err != nil {
		return errors.Wrap(err, "open blob storage")
	}
	defer blobs.Close()

	svc := services.New(services.Options{
		Store: store.NewPostgres(db),
		Blob:  blobs,
		Config: &config.ServerCmdConfig{
			DB:      cfg.DB,
			Log:     cfg.Log,
			Storage: cfg.Storage,
			Trash:   cfg.Trash,
		},
		Logger: lg,
	})

	start := time.Now()
	report, err := svc.Sweeper.VerifyBlobs(ctx)
	if err != nil {
		return errors.Wrap(err, "verify blobs")
	}
	lg.Info("blob check finished",
		zap.Int("scanned", report.Scanned),
		zap.Int("missing", len(report.Missing)),
		zap.Int("mismatched", len(report.Mismatched)),
		zap.Duration("took", time.Since(start)))

	if opts.verbose || !report.OK() {
		printReport(report)
	}

	if opts.exportFile != "" && !report.OK() {
		if err := exportReport(opts.exportFile, report); err != nil {
			return err
		}
		lg.Sugar().Infof("Exported %d problems to %s", len(report.Missing)+len(report.Mismatched), opts.exportFile)
	}

	cleaned := 0
	if opts.clean && len(report.Missing) > 0 {
		if opts.yes || confirm(fmt.Sprintf("Remove %d records with missing blobs", len(report.Missing))) {
			for _, f := range report.Missing {
				if err := svc.Sweeper.DropMissing(ctx, f); err != nil {
					lg.Error("failed to drop record", zap.String("file_id", f.ID), zap.Error(err))
					continue
				}
				cleaned++
			}
		}
	}

	var reclaimed services.ReclaimResult
	if opts.reclaim {
		if opts.yes || confirm("Delete all recorded orphan blobs") {
			reclaimed, err = svc.Sweeper.ReclaimOrphans(ctx)
			if err != nil {
				return errors.Wrap(err, "reclaim orphans")
			}
		}
	}

	fmt.Println("\n=== Check Summary ===")
	fmt.Printf("Files checked: %d\n", report.Scanned)
	fmt.Printf("Missing blobs: %s\n", count(len(report.Missing)))
	fmt.Printf("Size mismatches: %s\n", count(len(report.Mismatched)))
	if opts.clean {
		fmt.Printf("Removed records: %d\n", cleaned)
	}
	if opts.reclaim {
		fmt.Printf("Reclaimed orphans: %d (failed %d)\n", reclaimed.Deleted, reclaimed.Failed)
	}
	return nil
}

func count(n int) string {
	if n == 0 {
		return color.GreenString("0")
	}
	return color.RedString("%d", n)
}

func printReport(report *services.BlobReport) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	width := 100
	if w, err := termWidth(); err == nil {
		width = w
	}
	t.SetAllowedRowLength(width)
	t.Style().Color.Header = text.Colors{text.FgHiCyan, text.Bold}
	t.AppendHeader(table.Row{"File", "Owner", "Name", "Size", "Problem"})
	for _, f := range report.Missing {
		t.AppendRow(table.Row{f.ID, f.OwnerID, f.Name, f.Size, color.RedString("missing blob")})
	}
	for _, m := range report.Mismatched {
		t.AppendRow(table.Row{m.File.ID, m.File.OwnerID, m.File.Name, m.File.Size,
			color.YellowString("blob has %d bytes", m.Actual)})
	}
	t.AppendFooter(table.Row{"", "", "Scanned", report.Scanned, ""})
	t.Render()
}

func exportReport(path string, report *services.BlobReport) error {
	out := checkExport{
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Scanned:   report.Scanned,
		Files:     make([]exportFile, 0, len(report.Missing)+len(report.Mismatched)),
	}
	for _, f := range report.Missing {
		out.Files = append(out.Files, exportFile{
			ID: f.ID, OwnerID: f.OwnerID, Name: f.Name, BlobPath: f.BlobPath, Size: f.Size,
			Problem: "missing",
		})
	}
	for _, m := range report.Mismatched {
		actual := m.Actual
		out.Files = append(out.Files, exportFile{
			ID: m.File.ID, OwnerID: m.File.OwnerID, Name: m.File.Name, BlobPath: m.File.BlobPath,
			Size: m.File.Size, Actual: &actual, Problem: "size mismatch",
		})
	}
	data, err := json.MarshalIndent(out, "", "    ")
	if err != nil {
		return errors.Wrap(err, "encode export")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrap(err, "write export")
	}
	return nil
}

func confirm(label string) bool {
	prompt := promptui.Prompt{
		Label:     label,
		IsConfirm: true,
	}
	_, err := prompt.Run()
	return err == nil
}
