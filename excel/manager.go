// Package excel supplies spreadsheet rows to the template engine and
// writes processed-PDF hyperlinks back into the workbook. Sheets load into
// plain template.Row maps keyed by header name; loads are cached briefly
// and invalidated by file modification time so repeated matching against
// the same workbook does not reread it.
package excel

import (
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/sokoine/go-docsort/core/template"
)

// Sheet is one loaded worksheet: the header row and every data row as a
// field-name-to-value map. Values in columns whose header mentions DATE
// are coerced to time.Time where possible; amount-like columns to float64.
type Sheet struct {
	File    string
	Name    string
	Columns []string
	Rows    []template.Row
}

// Manager loads workbooks and performs hyperlink writeback. Safe for
// concurrent use; the underlying cache is.
type Manager struct {
	logger      *zap.Logger
	cache       *gocache.Cache
	maxAttempts int
	retryDelay  time.Duration
}

type cachedSheet struct {
	modTime time.Time
	sheet   *Sheet
}

// NewManager builds a Manager. A nil logger disables logging.
func NewManager(logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		logger:      logger,
		cache:       gocache.New(5*time.Minute, 10*time.Minute),
		maxAttempts: 5,
		retryDelay:  time.Second,
	}
}

// withRetry retries fn with exponential backoff and jitter, for network
// shares that drop intermittently.
func (m *Manager) withRetry(what string, fn func() error) error {
	delay := m.retryDelay
	var err error
	for attempt := 1; attempt <= m.maxAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt == m.maxAttempts {
			break
		}
		m.logger.Warn("Retrying operation",
			zap.String("operation", what),
			zap.Int("attempt", attempt),
			zap.Error(err))
		jitter := time.Duration(rand.Int63n(int64(delay)/10 + 1))
		time.Sleep(delay + jitter)
		delay *= 2
	}
	return fmt.Errorf("%s failed after %d attempts: %w", what, m.maxAttempts, err)
}

// SheetNames lists the worksheets of a workbook.
func (m *Manager) SheetNames(file string) ([]string, error) {
	var names []string
	err := m.withRetry("list sheets", func() error {
		f, err := excelize.OpenFile(file)
		if err != nil {
			return err
		}
		defer f.Close()
		names = f.GetSheetList()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return names, nil
}

// ColumnNames returns the header row of a worksheet.
func (m *Manager) ColumnNames(file, sheetName string) ([]string, error) {
	sheet, err := m.LoadSheet(file, sheetName)
	if err != nil {
		return nil, err
	}
	return sheet.Columns, nil
}

// LoadSheet reads a worksheet into memory, reusing the cached copy while
// the file's modification time is unchanged.
func (m *Manager) LoadSheet(file, sheetName string) (*Sheet, error) {
	info, err := os.Stat(file)
	if err != nil {
		return nil, fmt.Errorf("workbook not accessible: %w", err)
	}

	key := file + "|" + sheetName
	if entry, ok := m.cache.Get(key); ok {
		cached := entry.(*cachedSheet)
		if cached.modTime.Equal(info.ModTime()) {
			m.logger.Debug("Using cached sheet", zap.String("key", key))
			return cached.sheet, nil
		}
	}

	var sheet *Sheet
	err = m.withRetry("load sheet", func() error {
		f, err := excelize.OpenFile(file)
		if err != nil {
			return err
		}
		defer f.Close()
		rows, err := f.GetRows(sheetName)
		if err != nil {
			return err
		}
		sheet = buildSheet(file, sheetName, rows)
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.cache.Set(key, &cachedSheet{modTime: info.ModTime(), sheet: sheet}, gocache.DefaultExpiration)
	m.logger.Info("Sheet loaded",
		zap.String("file", file),
		zap.String("sheet", sheetName),
		zap.Int("rows", len(sheet.Rows)))
	return sheet, nil
}

// buildSheet converts raw cell text into typed rows. The first row is the
// header; short rows are padded with empty strings.
func buildSheet(file, sheetName string, raw [][]string) *Sheet {
	sheet := &Sheet{File: file, Name: sheetName}
	if len(raw) == 0 {
		return sheet
	}
	sheet.Columns = raw[0]
	for _, cells := range raw[1:] {
		row := make(template.Row, len(sheet.Columns))
		for i, col := range sheet.Columns {
			var text string
			if i < len(cells) {
				text = cells[i]
			}
			row[col] = coerceCell(col, text)
		}
		sheet.Rows = append(sheet.Rows, row)
	}
	return sheet
}

// dateLayouts are the accepted spreadsheet date formats, day-first ahead
// of ISO to match the data this tool is pointed at.
var dateLayouts = []string{
	"02/01/2006",
	"02-01-2006",
	"2006-01-02",
	"2006/01/02",
	"01-02-06",
	"02_01_2006",
}

func coerceCell(column, text string) any {
	if text == "" {
		return ""
	}
	if isDateColumn(column) {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, text); err == nil {
				return t
			}
		}
		return text
	}
	if isAmountColumn(column) {
		if f, ok := parseAmount(text); ok {
			return f
		}
	}
	return text
}

func isDateColumn(column string) bool {
	return strings.Contains(strings.ToUpper(column), "DATE")
}

// isAmountColumn recognizes the numeric column naming conventions of the
// invoice spreadsheets this tool grew up with.
func isAmountColumn(column string) bool {
	upper := strings.ToUpper(column)
	for _, marker := range []string{"MNT", "MONTANT", "NOMBRE", "NUM", "PRIX"} {
		if strings.Contains(upper, marker) {
			return true
		}
	}
	return false
}

// parseAmount normalizes French-style number formatting: spaces as digit
// grouping, comma as decimal separator.
func parseAmount(text string) (float64, bool) {
	cleaned := strings.ReplaceAll(text, " ", "")
	cleaned = strings.ReplaceAll(cleaned, " ", "")
	cleaned = strings.ReplaceAll(cleaned, ",", ".")
	f, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}
