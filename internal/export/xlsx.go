// Package export reads and writes lead spreadsheets.
package export

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/fieldsnap/internal/model"
)

const sheetName = "Leads"

// Columns is the header row written by WriteXLSX.
var Columns = []string{
	"Lead ID", "Created", "Status", "Qualification", "Score",
	"Business Name", "Phone", "Email", "Website", "Address", "Services",
	"Source Location", "Image URL", "Extraction Provider", "Cross Validation",
	"Qualification Notes", "Error",
}

// WriteXLSX writes one row per lead to a new workbook at path.
func WriteXLSX(leads []model.Lead, path string) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, c := range Columns {
		header.AddCell().SetString(c)
	}

	for i := range leads {
		l := &leads[i]
		row := sheet.AddRow()
		row.AddCell().SetString(l.ID)
		row.AddCell().SetString(l.CreatedAt.UTC().Format("2006-01-02 15:04:05"))
		row.AddCell().SetString(string(l.ProcessingStatus))
		row.AddCell().SetString(string(l.QualificationStatus))
		row.AddCell().SetFloat(l.LeadScore)
		row.AddCell().SetString(l.BusinessName)
		row.AddCell().SetString(l.PhoneNumber)
		row.AddCell().SetString(l.Email)
		row.AddCell().SetString(l.Website)
		row.AddCell().SetString(l.Address)
		row.AddCell().SetString(strings.Join(l.Services, ", "))
		row.AddCell().SetString(l.SourceLocation)
		row.AddCell().SetString(l.ImageURL)
		row.AddCell().SetString(l.ExtractionProvider)
		cv := row.AddCell()
		if l.CrossValidationScore != nil {
			cv.SetFloat(*l.CrossValidationScore)
		}
		row.AddCell().SetString(l.QualificationNotes)
		row.AddCell().SetString(l.ProcessingError)
	}

	if err := f.Save(path); err != nil {
		return eris.Wrapf(err, "export: save %s", path)
	}
	return nil
}

// ReadImageRequests reads ingestion requests from the first sheet of a
// workbook. The first row is a header; the image URL column is found by a
// header of "image_url", "imageUrl" or "Image URL", falling back to the
// first column. Optional "location" and "notes" columns are picked up the
// same way. Rows with a blank URL are skipped.
func ReadImageRequests(path string) ([]model.IngestRequest, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "export: open file")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("export: %s has no sheets", path)
	}
	rows := f.Sheets[0].Rows
	if len(rows) == 0 {
		return nil, nil
	}

	header := rowToStrings(rows[0])
	urlCol := findColumn(header, "imageurl", "image url", "image_url", "url")
	if urlCol < 0 {
		urlCol = 0
	}
	locCol := findColumn(header, "sourcelocation", "source location", "location")
	notesCol := findColumn(header, "sourcenotes", "source notes", "notes")

	var out []model.IngestRequest
	for _, row := range rows[1:] {
		cells := rowToStrings(row)
		url := cellAt(cells, urlCol)
		if url == "" {
			continue
		}
		out = append(out, model.IngestRequest{
			ImageURL:       url,
			SourceLocation: cellAt(cells, locCol),
			SourceNotes:    cellAt(cells, notesCol),
		})
	}
	return out, nil
}

func findColumn(header []string, names ...string) int {
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(h))
		for _, n := range names {
			if h == n {
				return i
			}
		}
	}
	return -1
}

func cellAt(cells []string, i int) string {
	if i < 0 || i >= len(cells) {
		return ""
	}
	return strings.TrimSpace(cells[i])
}

func rowToStrings(row *xlsx.Row) []string {
	cells := make([]string, len(row.Cells))
	for j, cell := range row.Cells {
		cells[j] = cell.String()
	}
	return cells
}
