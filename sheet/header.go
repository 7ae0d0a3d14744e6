package sheet

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/merceaemil/taxonomy-navigator/normalize"
	"github.com/merceaemil/taxonomy-navigator/taxonomy"
)

// ErrHeaderMismatch is returned by CheckHeader when an anchor column does
// not carry the expected label.
var ErrHeaderMismatch = errors.New("sheet: header mismatch")

// anchors are the columns whose labels identify a layout. A header cell
// matches when its lower-cased text contains the keyword. Only columns that
// are stable across published workbook revisions are listed.
var anchors = map[taxonomy.Category]map[int]string{
	taxonomy.Mitigation: {0: "sr", 1: "isic", 4: "sector", 5: "activit"},
	taxonomy.Adaptation: {0: "sr", 3: "sector", 4: "hazard", 6: "investment"},
	taxonomy.Various:    {0: "sr", 3: "sector", 4: "sub"},
}

// CheckHeader validates the header row of g against the column layout the
// transform for c assumes. Grids without a header pass: there is nothing to
// mis-map.
func CheckHeader(c taxonomy.Category, g Grid) error {
	want, ok := anchors[c]
	if !ok {
		return fmt.Errorf("sheet: check header %q: %w", c, taxonomy.ErrUnknownCategory)
	}
	header := g.Header()
	if header == nil {
		return nil
	}

	cols := make([]int, 0, len(want))
	for i := range want {
		cols = append(cols, i)
	}
	sort.Ints(cols)

	var bad []string
	for _, i := range cols {
		got := strings.ToLower(normalize.CleanField(header.Cell(i)))
		if !strings.Contains(got, want[i]) {
			bad = append(bad, fmt.Sprintf("column %d is %q, want label containing %q", i, got, want[i]))
		}
	}
	if len(bad) > 0 {
		return fmt.Errorf("%w: %s: %s", ErrHeaderMismatch, c, strings.Join(bad, "; "))
	}
	return nil
}

// headers are the canonical column labels of each layout.
var headers = map[taxonomy.Category]Row{
	taxonomy.Mitigation: {"Sr. No", "ISIC Codes", "Document", "Taxonomy Reference", "Sector", "Activity",
		"Activity Description", "Substantial Contribution Criteria", "Ineligibility Criteria", "General DNSH",
		"DNSH Climate Adaptation", "DNSH Water Resources", "DNSH Circular Economy", "DNSH Pollution Prevention",
		"DNSH Biodiversity", "Remarks"},
	taxonomy.Adaptation: {"Sr. No", "Document", "Code", "Sector", "Hazard", "Division", "Investment",
		"Expected Effect", "Expected Result", "Type", "Level", "Criteria Type", "Generic DNSH"},
	taxonomy.Various: {"Sr. No", "Document", "Taxonomy Reference", "Sector", "Sub-sector",
		"Eligible Practices", "Category", "Description", "Eligible Input", "Ineligible Practices", "Generic DNSH"},
}

// Headers returns a copy of the canonical header row for c, or nil for an
// unknown category. The row passes CheckHeader.
func Headers(c taxonomy.Category) Row {
	h, ok := headers[c]
	if !ok {
		return nil
	}
	return append(Row(nil), h...)
}
