package export

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/fieldsnap/internal/model"
)

func TestWriteXLSX(t *testing.T) {
	cv := 0.75
	leads := []model.Lead{
		{
			ID:                   "lead-1",
			CreatedAt:            time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
			ProcessingStatus:     model.StatusCompleted,
			QualificationStatus:  model.Qualified,
			LeadScore:            72.5,
			BusinessName:         "ABC Plumbing",
			PhoneNumber:          "555-123-4567",
			Services:             []string{"Plumbing", "HVAC"},
			CrossValidationScore: &cv,
		},
		{ID: "lead-2", ProcessingStatus: model.StatusFailed, ProcessingError: "extraction: boom"},
	}
	path := filepath.Join(t.TempDir(), "leads.xlsx")
	require.NoError(t, WriteXLSX(leads, path))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	sheet, ok := f.Sheet[sheetName]
	require.True(t, ok)
	require.Len(t, sheet.Rows, 3)

	header := rowToStrings(sheet.Rows[0])
	assert.Equal(t, Columns, header)

	first := rowToStrings(sheet.Rows[1])
	assert.Equal(t, "lead-1", first[0])
	assert.Equal(t, "2026-03-01 12:00:00", first[1])
	assert.Equal(t, "qualified", first[3])
	assert.Equal(t, "ABC Plumbing", first[5])
	assert.Equal(t, "Plumbing, HVAC", first[10])

	second := rowToStrings(sheet.Rows[2])
	assert.Equal(t, "extraction: boom", second[len(second)-1])
}

func TestWriteXLSX_BadPath(t *testing.T) {
	err := WriteXLSX(nil, filepath.Join(t.TempDir(), "missing", "leads.xlsx"))
	assert.Error(t, err)
}

func writeWorkbook(t *testing.T, rows [][]string) string {
	t.Helper()
	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Sheet1")
	require.NoError(t, err)
	for _, r := range rows {
		row := sheet.AddRow()
		for _, c := range r {
			row.AddCell().SetString(c)
		}
	}
	path := filepath.Join(t.TempDir(), "in.xlsx")
	require.NoError(t, f.Save(path))
	return path
}

func TestReadImageRequests(t *testing.T) {
	path := writeWorkbook(t, [][]string{
		{"Notes", "Image URL", "Location"},
		{"red van", "https://img.example.com/1.jpg", "Main St"},
		{"", "  ", ""},
		{"", "https://img.example.com/2.jpg"},
	})

	reqs, err := ReadImageRequests(path)
	require.NoError(t, err)
	require.Len(t, reqs, 2)
	assert.Equal(t, model.IngestRequest{
		ImageURL:       "https://img.example.com/1.jpg",
		SourceLocation: "Main St",
		SourceNotes:    "red van",
	}, reqs[0])
	assert.Equal(t, "https://img.example.com/2.jpg", reqs[1].ImageURL)
	assert.Empty(t, reqs[1].SourceLocation)
}

func TestReadImageRequests_FirstColumnFallback(t *testing.T) {
	path := writeWorkbook(t, [][]string{
		{"photos"},
		{"https://img.example.com/1.jpg"},
	})
	reqs, err := ReadImageRequests(path)
	require.NoError(t, err)
	require.Len(t, reqs, 1)
	assert.Equal(t, "https://img.example.com/1.jpg", reqs[0].ImageURL)
}

func TestReadImageRequests_Missing(t *testing.T) {
	_, err := ReadImageRequests(filepath.Join(t.TempDir(), "nope.xlsx"))
	assert.Error(t, err)
}
