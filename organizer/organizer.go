// Package organizer wires the template engine, spreadsheet access, and
// file moves into the queue's processing callback. One task flows through
// it as: match the spreadsheet row from the task's filter values, build
// the template data from that row, move the PDF to the rendered path, and
// point the row's hyperlink at the new location.
package organizer

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sokoine/go-docsort/core/config"
	"github.com/sokoine/go-docsort/core/queue"
	"github.com/sokoine/go-docsort/core/template"
	"github.com/sokoine/go-docsort/excel"
	"github.com/sokoine/go-docsort/pdf"
)

// Organizer performs the per-task work for the processing queue.
type Organizer struct {
	cfg    *config.Manager
	sheets *excel.Manager
	files  *pdf.Manager
	logger *zap.Logger
}

// New builds an Organizer. A nil logger disables logging.
func New(cfg *config.Manager, sheets *excel.Manager, files *pdf.Manager, logger *zap.Logger) *Organizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Organizer{cfg: cfg, sheets: sheets, files: files, logger: logger}
}

// Processor exposes the per-task callback in the shape the queue expects.
func (o *Organizer) Processor() queue.Processor {
	return o.processTask
}

func (o *Organizer) processTask(ctx context.Context, task *queue.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s := o.cfg.Settings()

	sheet, err := o.sheets.LoadSheet(s.ExcelFile, s.ExcelSheet)
	if err != nil {
		return fmt.Errorf("could not load spreadsheet: %w", err)
	}
	columns := s.FilterColumns()
	row, rowIdx, err := sheet.FindMatchingRow(columns, task.FilterValues)
	if err != nil {
		return fmt.Errorf("could not match spreadsheet row: %w", err)
	}
	task.RowIndex = rowIdx

	tpl, err := template.Cached(s.OutputTemplate)
	if err != nil {
		return fmt.Errorf("output template rejected: %w", err)
	}

	dest, err := o.files.Process(task.PDFPath, tpl, TemplateData(row, s))
	if err != nil {
		return err
	}
	task.ProcessedLocation = dest

	prior, err := o.sheets.UpdatePDFLink(s.ExcelFile, s.ExcelSheet, rowIdx, dest, linkColumn(s))
	if err != nil {
		// The PDF has already moved; pull it back so a retry starts clean.
		if rerr := o.files.Restore(dest, task.PDFPath); rerr != nil {
			o.logger.Error("Could not restore PDF after hyperlink failure",
				zap.String("pdf", dest),
				zap.Error(rerr))
		} else {
			task.ProcessedLocation = ""
		}
		return fmt.Errorf("could not update spreadsheet hyperlink: %w", err)
	}
	task.OriginalHyperlink = prior
	return nil
}

// Revert undoes a completed task: the PDF moves back to where it was
// picked up and the row's hyperlink returns to its previous target.
func (o *Organizer) Revert(ctx context.Context, task queue.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if task.Status != queue.StatusCompleted {
		return fmt.Errorf("only completed tasks can be reverted, task is %s", task.Status)
	}
	s := o.cfg.Settings()

	if err := o.files.Restore(task.ProcessedLocation, task.OriginalLocation); err != nil {
		return err
	}
	if task.RowIndex >= 0 {
		if err := o.sheets.RevertPDFLink(s.ExcelFile, s.ExcelSheet, task.RowIndex,
			linkColumn(s), task.OriginalHyperlink, ""); err != nil {
			return err
		}
	}
	o.logger.Info("Reverted task",
		zap.String("id", task.ID),
		zap.String("pdf", task.OriginalLocation))
	return nil
}

// TemplateData flattens a matched row into the evaluation row: every
// spreadsheet column under its own name, the positional filter1..filter3
// aliases the default template uses, and the destination folder.
func TemplateData(row template.Row, s config.Settings) template.Row {
	data := make(template.Row, len(row)+4)
	for k, v := range row {
		data[k] = v
	}
	for i, col := range []string{s.Filter1Column, s.Filter2Column, s.Filter3Column} {
		if col == "" {
			continue
		}
		data[fmt.Sprintf("filter%d", i+1)] = row[col]
	}
	data["processed_folder"] = s.ProcessedFolder
	return data
}

// linkColumn is where the processed-PDF hyperlink lands. The second filter
// column traditionally holds the invoice number, which is the cell users
// click; fall back to the first configured column when it is unset.
func linkColumn(s config.Settings) string {
	if s.Filter2Column != "" {
		return s.Filter2Column
	}
	cols := s.FilterColumns()
	if len(cols) > 0 {
		return cols[0]
	}
	return ""
}
