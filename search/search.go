// CLAUDE:SUMMARY Free-text AND search over a record set plus filter facet extraction (distinct values in first-seen order).
// Package search answers free-text queries over a category's records and
// lists the values available to each filter.
package search

import (
	"strings"

	"github.com/merceaemil/taxonomy-navigator/taxonomy"
)

// MaxResults caps the number of records a query returns.
const MaxResults = 100

// Text is the searchable text of r: name, description, sector, hazard and
// division or sub-sector, lowercased.
func Text(r taxonomy.Record) string {
	place := r.Value(taxonomy.FieldDivision)
	if place == "" {
		place = r.Value(taxonomy.FieldSubSector)
	}
	return strings.ToLower(strings.Join([]string{
		r.Value(taxonomy.FieldName),
		r.Value(taxonomy.FieldDescription),
		r.Value(taxonomy.FieldSector),
		r.Value(taxonomy.FieldHazard),
		place,
	}, " "))
}

// Search returns the records whose text contains every whitespace-separated
// query term, case-insensitively, that also pass filters. Results keep input
// order and stop at MaxResults. A blank query matches every record.
func Search(records []taxonomy.Record, query string, filters taxonomy.Filters) []taxonomy.Record {
	terms := strings.Fields(strings.ToLower(query))
	out := make([]taxonomy.Record, 0, min(len(records), MaxResults))
	for _, r := range records {
		if !filters.Match(r) || !matches(Text(r), terms) {
			continue
		}
		out = append(out, r)
		if len(out) == MaxResults {
			break
		}
	}
	return out
}

func matches(text string, terms []string) bool {
	for _, t := range terms {
		if !strings.Contains(text, t) {
			return false
		}
	}
	return true
}

// FacetValues lists the distinct non-blank values each filter can take.
type FacetValues struct {
	Types         []string `json:"types"`
	Levels        []string `json:"levels"`
	CriteriaTypes []string `json:"criteriaTypes"`
	ISICCodes     []string `json:"isicCodes"`
	Categories    []string `json:"categories"`
}

// Facets gathers facet values from records in first-seen order.
// ISIC code lists are split on commas and each code trimmed.
func Facets(records []taxonomy.Record) FacetValues {
	var (
		types    = newDistinct()
		levels   = newDistinct()
		criteria = newDistinct()
		isic     = newDistinct()
		cats     = newDistinct()
	)
	for _, r := range records {
		types.add(r.Value(taxonomy.FieldType))
		levels.add(r.Value(taxonomy.FieldLevel))
		criteria.add(r.Value(taxonomy.FieldCriteriaType))
		cats.add(r.Value(taxonomy.FieldCategory))
		if codes := r.Value(taxonomy.FieldISICCodes); codes != "" {
			for _, c := range strings.Split(codes, ",") {
				isic.add(strings.TrimSpace(c))
			}
		}
	}
	return FacetValues{
		Types:         types.list,
		Levels:        levels.list,
		CriteriaTypes: criteria.list,
		ISICCodes:     isic.list,
		Categories:    cats.list,
	}
}

type distinct struct {
	seen map[string]struct{}
	list []string
}

func newDistinct() *distinct {
	return &distinct{seen: make(map[string]struct{}), list: []string{}}
}

func (d *distinct) add(v string) {
	if v == "" {
		return
	}
	if _, ok := d.seen[v]; ok {
		return
	}
	d.seen[v] = struct{}{}
	d.list = append(d.list, v)
}
