package ingest

import (
	"strings"

	"github.com/merceaemil/taxonomy-navigator/taxonomy"
)

// sheetNames are the names a category's sheet is published under, and the
// keyword that identifies it when the name has been edited.
var sheetNames = map[taxonomy.Category]struct {
	exact   []string
	keyword string
}{
	taxonomy.Mitigation: {[]string{"Climate Mitigation", "I. Climate Mitigation"}, "mitigation"},
	taxonomy.Adaptation: {[]string{"Climate Adaptation", "II. Climate Adaptation"}, "adaptation"},
	taxonomy.Various:    {[]string{"Various Objectives", "III. Various Objectives"}, "various"},
}

// MatchSheet picks the sheet for c from names, given in workbook order.
// A sheet whose trimmed name equals a published name (ignoring case) wins;
// otherwise the first sheet whose name contains the category keyword does.
// ok is false when nothing matches.
func MatchSheet(c taxonomy.Category, names []string) (name string, ok bool) {
	published, known := sheetNames[c]
	if !known {
		return "", false
	}
	for _, n := range names {
		trimmed := strings.TrimSpace(n)
		for _, want := range published.exact {
			if strings.EqualFold(trimmed, want) {
				return n, true
			}
		}
	}
	for _, n := range names {
		if strings.Contains(strings.ToLower(n), published.keyword) {
			return n, true
		}
	}
	return "", false
}
