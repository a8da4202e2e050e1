package excel

import (
	"fmt"
	"os"
	"path/filepath"

	gocache "github.com/patrickmn/go-cache"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// UpdatePDFLink points the cell at (rowIdx, column) to the processed PDF
// with a hyperlink relative to the workbook, and returns the hyperlink the
// cell carried before, if any. rowIdx is the zero-based data row index as
// returned by FindMatchingRow; the on-sheet row is rowIdx+2 to account for
// the header. A .bak copy of the workbook is written first and restored if
// the save fails.
func (m *Manager) UpdatePDFLink(file, sheetName string, rowIdx int, pdfPath, column string) (string, error) {
	var original string
	err := m.withRetry("update pdf link", func() error {
		f, err := excelize.OpenFile(file)
		if err != nil {
			return err
		}
		defer f.Close()

		cell, err := m.columnCell(f, sheetName, rowIdx, column)
		if err != nil {
			return err
		}

		if has, target, err := f.GetCellHyperLink(sheetName, cell); err == nil && has {
			original = target
		}

		backup := file + ".bak"
		if err := copyFile(file, backup); err != nil {
			return fmt.Errorf("failed to back up workbook: %w", err)
		}

		relative, err := filepath.Rel(filepath.Dir(file), pdfPath)
		if err != nil {
			relative = pdfPath
		}

		display, _ := f.GetCellValue(sheetName, cell)
		if err := f.SetCellHyperLink(sheetName, cell, relative, "External", excelize.HyperlinkOpts{
			Display: &display,
		}); err != nil {
			return fmt.Errorf("failed to set hyperlink: %w", err)
		}

		if err := f.Save(); err != nil {
			if rerr := copyFile(backup, file); rerr != nil {
				m.logger.Error("Failed to restore workbook backup",
					zap.String("backup", backup),
					zap.Error(rerr))
			}
			return fmt.Errorf("failed to save workbook: %w", err)
		}

		m.hyperlinkCacheSet(file, sheetName, column, rowIdx, true)
		m.logger.Info("Updated PDF hyperlink",
			zap.String("file", file),
			zap.Int("row", rowIdx),
			zap.String("target", relative))
		return nil
	})
	if err != nil {
		return "", err
	}
	return original, nil
}

// RevertPDFLink restores a cell to its pre-update state: either the
// original hyperlink or none. An empty originalValue leaves the cell text
// alone, since UpdatePDFLink keeps the display text unchanged.
func (m *Manager) RevertPDFLink(file, sheetName string, rowIdx int, column, originalLink, originalValue string) error {
	return m.withRetry("revert pdf link", func() error {
		f, err := excelize.OpenFile(file)
		if err != nil {
			return err
		}
		defer f.Close()

		cell, err := m.columnCell(f, sheetName, rowIdx, column)
		if err != nil {
			return err
		}

		if originalValue != "" {
			if err := f.SetCellValue(sheetName, cell, originalValue); err != nil {
				return fmt.Errorf("failed to restore cell value: %w", err)
			}
		}
		if originalLink != "" {
			err = f.SetCellHyperLink(sheetName, cell, originalLink, "External")
		} else {
			err = f.SetCellHyperLink(sheetName, cell, "", "None")
		}
		if err != nil {
			return fmt.Errorf("failed to restore hyperlink: %w", err)
		}

		if err := f.Save(); err != nil {
			return fmt.Errorf("failed to save workbook: %w", err)
		}

		m.hyperlinkCacheSet(file, sheetName, column, rowIdx, originalLink != "")
		m.logger.Info("Reverted PDF hyperlink",
			zap.String("file", file),
			zap.Int("row", rowIdx))
		return nil
	})
}

// HasHyperlink reports whether the cell at (rowIdx, column) carries a
// hyperlink, consulting the per-column cache populated by
// CacheHyperlinks or a previous writeback.
func (m *Manager) HasHyperlink(file, sheetName string, rowIdx int, column string) (bool, error) {
	if v, ok := m.cache.Get(hyperlinkKey(file, sheetName, column, rowIdx)); ok {
		return v.(bool), nil
	}
	if err := m.CacheHyperlinks(file, sheetName, column); err != nil {
		return false, err
	}
	v, ok := m.cache.Get(hyperlinkKey(file, sheetName, column, rowIdx))
	return ok && v.(bool), nil
}

// CacheHyperlinks scans one column and caches the hyperlink status of
// every data row, so the queue display can badge already-linked records
// without reopening the workbook per row.
func (m *Manager) CacheHyperlinks(file, sheetName, column string) error {
	return m.withRetry("cache hyperlinks", func() error {
		f, err := excelize.OpenFile(file)
		if err != nil {
			return err
		}
		defer f.Close()

		rows, err := f.GetRows(sheetName)
		if err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		colIdx := -1
		for i, header := range rows[0] {
			if header == column {
				colIdx = i
				break
			}
		}
		if colIdx < 0 {
			return fmt.Errorf("column %q not found in sheet %q", column, sheetName)
		}

		for rowIdx := 0; rowIdx < len(rows)-1; rowIdx++ {
			cell, err := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if err != nil {
				return err
			}
			has, _, err := f.GetCellHyperLink(sheetName, cell)
			if err != nil {
				return err
			}
			m.hyperlinkCacheSet(file, sheetName, column, rowIdx, has)
		}
		m.logger.Debug("Cached hyperlink statuses",
			zap.String("column", column),
			zap.Int("rows", len(rows)-1))
		return nil
	})
}

// columnCell resolves the A1-style cell reference for a data row in a
// named column.
func (m *Manager) columnCell(f *excelize.File, sheetName string, rowIdx int, column string) (string, error) {
	rows, err := f.GetRows(sheetName)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("sheet %q is empty", sheetName)
	}
	for i, header := range rows[0] {
		if header == column {
			return excelize.CoordinatesToCellName(i+1, rowIdx+2)
		}
	}
	return "", fmt.Errorf("column %q not found in sheet %q", column, sheetName)
}

func hyperlinkKey(file, sheetName, column string, rowIdx int) string {
	return fmt.Sprintf("link|%s|%s|%s|%d", file, sheetName, column, rowIdx)
}

func (m *Manager) hyperlinkCacheSet(file, sheetName, column string, rowIdx int, has bool) {
	m.cache.Set(hyperlinkKey(file, sheetName, column, rowIdx), has, gocache.DefaultExpiration)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0o644)
}
