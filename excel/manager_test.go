package excel

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/sokoine/go-docsort/core/template"
)

// writeTestWorkbook creates a small invoice-shaped workbook and returns
// its path.
func writeTestWorkbook(t *testing.T) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	cells := [][]any{
		{"FOURNISSEUR", "FACTURE", "DATE FACTURE", "MNT TTC"},
		{"ACME", "N° 1042", "15/07/2023", "1 250,50"},
		{"ACME", "N° 1043", "16/07/2023", "80,00"},
		{"GLOBEX", "N° 77", "15/07/2023", "1 250,50"},
	}
	for r, rowCells := range cells {
		for c, value := range rowCells {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue("Sheet1", cell, value))
		}
	}

	path := filepath.Join(t.TempDir(), "invoices.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestLoadSheet(t *testing.T) {
	m := NewManager(nil)
	path := writeTestWorkbook(t)

	sheet, err := m.LoadSheet(path, "Sheet1")
	require.NoError(t, err)
	assert.Equal(t, []string{"FOURNISSEUR", "FACTURE", "DATE FACTURE", "MNT TTC"}, sheet.Columns)
	require.Len(t, sheet.Rows, 3)

	t.Run("date columns coerced to time", func(t *testing.T) {
		d, ok := sheet.Rows[0]["DATE FACTURE"].(time.Time)
		require.True(t, ok, "expected a time.Time, got %T", sheet.Rows[0]["DATE FACTURE"])
		assert.Equal(t, 2023, d.Year())
		assert.Equal(t, time.July, d.Month())
		assert.Equal(t, 15, d.Day())
	})

	t.Run("amount columns coerced to float", func(t *testing.T) {
		amount, ok := sheet.Rows[0]["MNT TTC"].(float64)
		require.True(t, ok, "expected a float64, got %T", sheet.Rows[0]["MNT TTC"])
		assert.InDelta(t, 1250.50, amount, 0.001)
	})

	t.Run("cached while unmodified", func(t *testing.T) {
		again, err := m.LoadSheet(path, "Sheet1")
		require.NoError(t, err)
		assert.Same(t, sheet, again)
	})
}

func TestSheetNames(t *testing.T) {
	m := NewManager(nil)
	path := writeTestWorkbook(t)
	names, err := m.SheetNames(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1"}, names)

	cols, err := m.ColumnNames(path, "Sheet1")
	require.NoError(t, err)
	assert.Equal(t, []string{"FOURNISSEUR", "FACTURE", "DATE FACTURE", "MNT TTC"}, cols)
}

func testSheet() *Sheet {
	return &Sheet{
		Name:    "Sheet1",
		Columns: []string{"FOURNISSEUR", "FACTURE", "DATE FACTURE", "MNT TTC"},
		Rows: []template.Row{
			{"FOURNISSEUR": "ACME", "FACTURE": "N° 1042", "DATE FACTURE": time.Date(2023, 7, 15, 0, 0, 0, 0, time.UTC), "MNT TTC": 1250.50},
			{"FOURNISSEUR": "ACME", "FACTURE": "N° 1043", "DATE FACTURE": time.Date(2023, 7, 16, 0, 0, 0, 0, time.UTC), "MNT TTC": 80.0},
			{"FOURNISSEUR": "GLOBEX", "FACTURE": "N° 77", "DATE FACTURE": time.Date(2023, 7, 15, 0, 0, 0, 0, time.UTC), "MNT TTC": 1250.50},
		},
	}
}

func TestFindMatchingRow(t *testing.T) {
	sheet := testSheet()

	t.Run("single match by string column", func(t *testing.T) {
		row, idx, err := sheet.FindMatchingRow([]string{"FACTURE"}, []string{"N° 1043"})
		require.NoError(t, err)
		assert.Equal(t, 1, idx)
		assert.Equal(t, "ACME", row["FOURNISSEUR"])
	})

	t.Run("trims whitespace on string compare", func(t *testing.T) {
		_, idx, err := sheet.FindMatchingRow([]string{"FACTURE"}, []string{"  N° 77 "})
		require.NoError(t, err)
		assert.Equal(t, 2, idx)
	})

	t.Run("date filter matches by calendar day", func(t *testing.T) {
		row, _, err := sheet.FindMatchingRow(
			[]string{"FOURNISSEUR", "DATE FACTURE"},
			[]string{"GLOBEX", "15/07/2023"},
		)
		require.NoError(t, err)
		assert.Equal(t, "N° 77", row["FACTURE"])
	})

	t.Run("amount filter matches numerically", func(t *testing.T) {
		row, _, err := sheet.FindMatchingRow(
			[]string{"FOURNISSEUR", "MNT TTC"},
			[]string{"ACME", "1 250,50"},
		)
		require.NoError(t, err)
		assert.Equal(t, "N° 1042", row["FACTURE"])
	})

	t.Run("no match", func(t *testing.T) {
		_, _, err := sheet.FindMatchingRow([]string{"FOURNISSEUR"}, []string{"INITECH"})
		assert.ErrorIs(t, err, ErrNoMatch)
	})

	t.Run("ambiguous match is an error", func(t *testing.T) {
		_, _, err := sheet.FindMatchingRow([]string{"DATE FACTURE"}, []string{"15/07/2023"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "2 rows match")
	})

	t.Run("unknown column lists available columns", func(t *testing.T) {
		_, _, err := sheet.FindMatchingRow([]string{"NOPE"}, []string{"x"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "FOURNISSEUR")
	})

	t.Run("mismatched filter lengths", func(t *testing.T) {
		_, _, err := sheet.FindMatchingRow([]string{"A", "B"}, []string{"x"})
		require.Error(t, err)
	})
}

func TestUpdateAndRevertPDFLink(t *testing.T) {
	m := NewManager(nil)
	path := writeTestWorkbook(t)
	pdf := filepath.Join(filepath.Dir(path), "out", "ACME - N° 1042.pdf")

	original, err := m.UpdatePDFLink(path, "Sheet1", 0, pdf, "FACTURE")
	require.NoError(t, err)
	assert.Empty(t, original, "fresh workbook should have no prior hyperlink")

	t.Run("backup written", func(t *testing.T) {
		assert.FileExists(t, path+".bak")
	})

	t.Run("hyperlink present and cached", func(t *testing.T) {
		has, err := m.HasHyperlink(path, "Sheet1", 0, "FACTURE")
		require.NoError(t, err)
		assert.True(t, has)

		has, err = m.HasHyperlink(path, "Sheet1", 1, "FACTURE")
		require.NoError(t, err)
		assert.False(t, has)
	})

	t.Run("second update reports the previous target", func(t *testing.T) {
		prior, err := m.UpdatePDFLink(path, "Sheet1", 0, pdf+".v2.pdf", "FACTURE")
		require.NoError(t, err)
		assert.Contains(t, prior, "ACME - N° 1042.pdf")
	})

	t.Run("revert restores value and clears link", func(t *testing.T) {
		require.NoError(t, m.RevertPDFLink(path, "Sheet1", 0, "FACTURE", "", "N° 1042"))

		f, err := excelize.OpenFile(path)
		require.NoError(t, err)
		defer f.Close()
		value, err := f.GetCellValue("Sheet1", "B2")
		require.NoError(t, err)
		assert.Equal(t, "N° 1042", value)
		has, _, err := f.GetCellHyperLink("Sheet1", "B2")
		require.NoError(t, err)
		assert.False(t, has)
	})
}
