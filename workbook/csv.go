package workbook

import (
	"bytes"
	"encoding/csv"
	"path/filepath"
	"strings"
)

// readCSV reads a comma-separated file as one sheet named after the file,
// so "Climate Mitigation.csv" matches the mitigation category.
func readCSV(name string, data []byte) ([]Sheet, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	return []Sheet{{Name: base, Grid: toGrid(records)}}, nil
}
