// CLAUDE:SUMMARY Positional sheet transforms: raw grid (header + data rows) to typed mitigation/adaptation/various records.
// Package sheet maps raw spreadsheet grids onto taxonomy records.
//
// Row 0 is the header and never carries data. Columns are mapped by
// position; the header labels are only consulted by CheckHeader. Rows with
// no identity-bearing value (serial number, sector or primary name) are
// dropped without error.
package sheet

import (
	"fmt"
	"strconv"

	"github.com/merceaemil/taxonomy-navigator/normalize"
	"github.com/merceaemil/taxonomy-navigator/taxonomy"
)

// Row is one spreadsheet row. Cells are string, a number, or nil. Rows may
// be ragged; missing trailing cells read as nil.
type Row []any

// Cell returns the value at column i, or nil past the end of the row.
func (r Row) Cell(i int) any {
	if i < 0 || i >= len(r) {
		return nil
	}
	return r[i]
}

// Grid is a sheet: a header row followed by data rows.
type Grid []Row

// Header returns row 0, or nil for an empty grid.
func (g Grid) Header() Row {
	if len(g) == 0 {
		return nil
	}
	return g[0]
}

// data returns the rows after the header. Grids with fewer than two rows
// have no data.
func (g Grid) data() []Row {
	if len(g) < 2 {
		return nil
	}
	return g[1:]
}

// Stats counts what a transform did with a sheet's data rows.
type Stats struct {
	Rows    int `json:"rows"`
	Kept    int `json:"kept"`
	Dropped int `json:"dropped"`
}

// Transformer applies the column maps. Rich converts rich-text columns; nil
// means normalize.TextToHTML.
type Transformer struct {
	Rich func(any) string
}

// Default converts rich text without escaping.
var Default = &Transformer{}

func (t *Transformer) rich(v any) string {
	if t == nil || t.Rich == nil {
		return normalize.TextToHTML(v)
	}
	return t.Rich(v)
}

func clean(r Row, i int) string { return normalize.CleanField(r.Cell(i)) }

func recordID(c taxonomy.Category, index int) string {
	return string(c) + "_" + strconv.Itoa(index)
}

// Mitigation transforms a Climate Mitigation sheet.
func (t *Transformer) Mitigation(g Grid) ([]taxonomy.MitigationRecord, Stats) {
	rows := g.data()
	out := make([]taxonomy.MitigationRecord, 0, len(rows))
	for i, r := range rows {
		rec := taxonomy.MitigationRecord{
			ID:                      recordID(taxonomy.Mitigation, i),
			SrNo:                    clean(r, 0),
			ISICCodes:               clean(r, 1),
			Document:                clean(r, 2),
			TaxonomyReference:       clean(r, 3),
			Sector:                  clean(r, 4),
			Activity:                clean(r, 5),
			ActivityDescription:     t.rich(r.Cell(6)),
			SubstantialContribution: t.rich(r.Cell(7)),
			IneligibilityCriteria:   t.rich(r.Cell(8)),
			GeneralDNSH:             t.rich(r.Cell(9)),
			DNSHClimateAdaptation:   t.rich(r.Cell(10)),
			DNSHWaterResources:      t.rich(r.Cell(11)),
			DNSHCircularEconomy:     t.rich(r.Cell(12)),
			DNSHPollutionPrevention: t.rich(r.Cell(13)),
			DNSHBiodiversity:        t.rich(r.Cell(14)),
			Remarks:                 t.rich(r.Cell(15)),
			Type:                    taxonomy.MitigationType,
			Category:                string(taxonomy.Mitigation),
		}
		if rec.SrNo == "" && rec.Sector == "" && rec.Activity == "" {
			continue
		}
		out = append(out, rec)
	}
	return out, stats(len(rows), len(out))
}

// Adaptation transforms a Climate Adaptation sheet. The type column is
// taken from the sheet as-is.
func (t *Transformer) Adaptation(g Grid) ([]taxonomy.AdaptationRecord, Stats) {
	rows := g.data()
	out := make([]taxonomy.AdaptationRecord, 0, len(rows))
	for i, r := range rows {
		rec := taxonomy.AdaptationRecord{
			ID:             recordID(taxonomy.Adaptation, i),
			SrNo:           clean(r, 0),
			Document:       clean(r, 1),
			Code:           clean(r, 2),
			Sector:         clean(r, 3),
			Hazard:         clean(r, 4),
			Division:       clean(r, 5),
			Investment:     clean(r, 6),
			ExpectedEffect: t.rich(r.Cell(7)),
			ExpectedResult: clean(r, 8),
			Type:           clean(r, 9),
			Level:          clean(r, 10),
			CriteriaType:   clean(r, 11),
			GenericDNSH:    t.rich(r.Cell(12)),
			Category:       string(taxonomy.Adaptation),
		}
		if rec.SrNo == "" && rec.Sector == "" && rec.Investment == "" {
			continue
		}
		out = append(out, rec)
	}
	return out, stats(len(rows), len(out))
}

// Various transforms a Various Objectives sheet. Column 6 fills the
// record's own category attribute.
func (t *Transformer) Various(g Grid) ([]taxonomy.VariousRecord, Stats) {
	rows := g.data()
	out := make([]taxonomy.VariousRecord, 0, len(rows))
	for i, r := range rows {
		rec := taxonomy.VariousRecord{
			ID:                  recordID(taxonomy.Various, i),
			SrNo:                clean(r, 0),
			Document:            clean(r, 1),
			TaxonomyReference:   clean(r, 2),
			Sector:              clean(r, 3),
			SubSector:           clean(r, 4),
			EligiblePractices:   clean(r, 5),
			Category:            clean(r, 6),
			Description:         t.rich(r.Cell(7)),
			EligibleInput:       t.rich(r.Cell(8)),
			IneligiblePractices: t.rich(r.Cell(9)),
			GenericDNSH:         t.rich(r.Cell(10)),
			Type:                taxonomy.VariousType,
			MainCategory:        string(taxonomy.Various),
		}
		if rec.SrNo == "" && rec.Sector == "" && rec.EligiblePractices == "" {
			continue
		}
		out = append(out, rec)
	}
	return out, stats(len(rows), len(out))
}

// Apply transforms g as category c and stores the result in doc, replacing
// whatever doc held for c.
func (t *Transformer) Apply(c taxonomy.Category, g Grid, doc *taxonomy.Document) (Stats, error) {
	var st Stats
	switch c {
	case taxonomy.Mitigation:
		doc.Mitigation, st = t.Mitigation(g)
	case taxonomy.Adaptation:
		doc.Adaptation, st = t.Adaptation(g)
	case taxonomy.Various:
		doc.Various, st = t.Various(g)
	default:
		return st, fmt.Errorf("sheet: apply %q: %w", c, taxonomy.ErrUnknownCategory)
	}
	return st, nil
}

// Mitigation transforms with the default rich-text conversion.
func Mitigation(g Grid) []taxonomy.MitigationRecord {
	out, _ := Default.Mitigation(g)
	return out
}

// Adaptation transforms with the default rich-text conversion.
func Adaptation(g Grid) []taxonomy.AdaptationRecord {
	out, _ := Default.Adaptation(g)
	return out
}

// Various transforms with the default rich-text conversion.
func Various(g Grid) []taxonomy.VariousRecord {
	out, _ := Default.Various(g)
	return out
}

func stats(rows, kept int) Stats {
	return Stats{Rows: rows, Kept: kept, Dropped: rows - kept}
}
