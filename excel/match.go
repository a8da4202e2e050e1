package excel

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sokoine/go-docsort/core/template"
)

// ErrNoMatch is returned when no row satisfies all filters.
var ErrNoMatch = errors.New("no matching row found")

// FindMatchingRow returns the single row whose values match all filters.
// Comparison is type-aware: date columns compare by calendar day, amount
// columns numerically, everything else as trimmed strings. Zero matches
// yield ErrNoMatch; more than one is reported as an error because renaming
// against an ambiguous row would file the PDF under the wrong record.
func (s *Sheet) FindMatchingRow(columns, values []string) (template.Row, int, error) {
	if len(columns) != len(values) {
		return nil, -1, fmt.Errorf("filter columns (%d) and values (%d) must pair up", len(columns), len(values))
	}
	for _, col := range columns {
		if !s.hasColumn(col) {
			return nil, -1, fmt.Errorf("column %q not found in sheet %q; available: %s",
				col, s.Name, strings.Join(s.Columns, ", "))
		}
	}

	matchIdx := -1
	matches := 0
	for idx, row := range s.Rows {
		if rowMatches(row, columns, values) {
			matches++
			if matchIdx < 0 {
				matchIdx = idx
			}
		}
	}
	switch matches {
	case 0:
		return nil, -1, ErrNoMatch
	case 1:
		return s.Rows[matchIdx], matchIdx, nil
	default:
		return nil, -1, fmt.Errorf("%d rows match the filters; expected exactly one", matches)
	}
}

func (s *Sheet) hasColumn(name string) bool {
	for _, col := range s.Columns {
		if col == name {
			return true
		}
	}
	return false
}

func rowMatches(row template.Row, columns, values []string) bool {
	for i, col := range columns {
		if !cellMatches(col, row[col], values[i]) {
			return false
		}
	}
	return true
}

func cellMatches(column string, cell any, filter string) bool {
	if isDateColumn(column) {
		if want, ok := parseFilterDate(filter); ok {
			if have, ok := cell.(time.Time); ok {
				return sameDay(have, want)
			}
			// Column cell stayed a string; fall through to text compare.
		}
	}
	if isAmountColumn(column) {
		if want, ok := parseAmount(filter); ok {
			if have, ok := toFloat(cell); ok {
				return have == want
			}
		}
	}
	return strings.TrimSpace(template.Stringify(cell)) == strings.TrimSpace(filter)
}

func parseFilterDate(text string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, strings.TrimSpace(text)); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}

func toFloat(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		return parseAmount(val)
	default:
		return 0, false
	}
}
