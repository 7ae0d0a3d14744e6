// CLAUDE:SUMMARY Format, Sheet and Workbook types produced by the spreadsheet reader, plus its sentinel errors.
package workbook

import (
	"errors"

	"github.com/merceaemil/taxonomy-navigator/sheet"
)

// Format identifies a source file type.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatCSV  Format = "csv"
)

// Sheet is one named grid.
type Sheet struct {
	Name string     `json:"name"`
	Grid sheet.Grid `json:"grid"`
}

// Workbook is a source file read into sheets, in the file's own order.
type Workbook struct {
	Name   string  `json:"name"`
	Format Format  `json:"format"`
	Sheets []Sheet `json:"sheets"`
}

// Names returns the sheet names in workbook order.
func (w *Workbook) Names() []string {
	out := make([]string, len(w.Sheets))
	for i, s := range w.Sheets {
		out[i] = s.Name
	}
	return out
}

var (
	// ErrUnreadable means the bytes could not be parsed into sheets. It is
	// terminal for an ingestion run.
	ErrUnreadable = errors.New("workbook: source unreadable")

	// ErrUnsupportedFormat means the file extension has no reader.
	ErrUnsupportedFormat = errors.New("workbook: unsupported format")

	// ErrTooLarge means the source exceeds Config.MaxFileSize.
	ErrTooLarge = errors.New("workbook: source too large")
)
