package main

import (
	"database/sql"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sokoine/go-docsort/core/queue"
	"github.com/sokoine/go-docsort/excel"
	"github.com/sokoine/go-docsort/organizer"
	"github.com/sokoine/go-docsort/pdf"
	"github.com/sokoine/go-docsort/sqlite"
)

var (
	processPDF     string
	processFilters []string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Match, rename, and file one PDF",
	Long: `Process a PDF through the queue: match the --filter values against
the configured spreadsheet columns, move the file to the path the output
template renders, point the row's hyperlink at it, and record the outcome
in the history database.

Without --pdf, the next file in the configured source folder is taken.`,
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
	processCmd.Flags().StringVar(&processPDF, "pdf", "",
		"PDF to process (default: next file in the source folder)")
	processCmd.Flags().StringArrayVar(&processFilters, "filter", nil,
		"filter value for each configured column, in order; repeatable")
}

func runProcess(cmd *cobra.Command, _ []string) error {
	cfg, err := configManager()
	if err != nil {
		return err
	}
	s := cfg.Settings()
	if s.SourceFolder == "" || s.ExcelFile == "" || s.ExcelSheet == "" {
		return fmt.Errorf("source folder, excel file, and sheet must be configured; see docsort presets")
	}
	columns := s.FilterColumns()
	if len(processFilters) != len(columns) {
		return fmt.Errorf("expected %d --filter values for columns %s, got %d",
			len(columns), strings.Join(columns, ", "), len(processFilters))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	files := pdf.NewManager(logger)
	org := organizer.New(cfg, excel.NewManager(logger), files, logger)

	pdfPath := processPDF
	if pdfPath == "" {
		pdfPath, err = files.NextPDF(s.SourceFolder)
		if err != nil {
			return err
		}
		if pdfPath == "" {
			fmt.Fprintf(cmd.OutOrStdout(), "no PDFs waiting in %s\n", s.SourceFolder)
			return nil
		}
	}

	store, closeStore, err := openHistory()
	if err != nil {
		return err
	}
	defer closeStore()

	q, err := queue.New(org.Processor(), store, logger)
	if err != nil {
		return err
	}
	q.Start(ctx)
	defer q.Stop()

	q.Add(queue.NewTask(pdfPath, processFilters))
	if err := q.Drain(ctx); err != nil {
		return err
	}

	snapshot := q.Snapshot()
	if failed := snapshot[queue.StatusFailed]; len(failed) > 0 {
		return fmt.Errorf("processing %s failed: %s", failed[0].PDFPath, failed[0].ErrorMsg)
	}
	for _, task := range snapshot[queue.StatusCompleted] {
		fmt.Fprintln(cmd.OutOrStdout(), task.ProcessedLocation)
	}
	return nil
}

// openHistory opens the task history store, creating the database file on
// first use.
func openHistory() (*sqlite.TaskStore, func(), error) {
	path := viper.GetString("history")
	if path == "" {
		dir, err := defaultConfigDir()
		if err != nil {
			return nil, nil, err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, nil, fmt.Errorf("could not create config directory: %w", err)
		}
		path = filepath.Join(dir, "history.db")
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, nil, fmt.Errorf("could not open history database: %w", err)
	}
	store, err := sqlite.NewTaskStore(db, logger)
	if err != nil {
		db.Close()
		return nil, nil, err
	}
	return store, func() { db.Close() }, nil
}
