// CLAUDE:SUMMARY Record variants (mitigation, adaptation, various), the Record union interface and field accessors.
// Package taxonomy defines the records produced from a sustainable-finance
// taxonomy workbook and the document that groups them per category.
//
// Each category has its own fixed-field record type. Consumers discriminate
// on Record.Kind, never on which fields happen to be populated.
package taxonomy

import (
	"fmt"
	"strings"
)

// Category is one of the three taxonomy domains.
type Category string

const (
	Mitigation Category = "mitigation"
	Adaptation Category = "adaptation"
	Various    Category = "various"
)

// Categories lists every category in document order.
var Categories = []Category{Mitigation, Adaptation, Various}

// ParseCategory validates a category tag.
func ParseCategory(s string) (Category, error) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	switch c {
	case Mitigation, Adaptation, Various:
		return c, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownCategory, s)
}

// Label is the display name used for tabs and export headings.
func (c Category) Label() string {
	switch c {
	case Mitigation:
		return "Climate Mitigation"
	case Adaptation:
		return "Climate Adaptation"
	case Various:
		return "Various Objectives"
	}
	return string(c)
}

// Field names a record attribute that filters, search and grouping read.
type Field int

const (
	FieldType Field = iota
	FieldLevel
	FieldCriteriaType
	FieldISICCodes
	FieldCategory // the JSON "category" attribute, not the owning Category
	FieldSector
	FieldHazard
	FieldDivision
	FieldSubSector
	FieldName        // investment | activity | eligiblePractices
	FieldDescription // expectedEffect | activityDescription | description
)

// Record is one normalized spreadsheet row.
type Record interface {
	RecordID() string
	Kind() Category
	// Value returns the attribute, or "" when the variant has no such field.
	Value(f Field) string
}

// MitigationRecord is a row of the Climate Mitigation sheet.
// Field order matches the wire format.
type MitigationRecord struct {
	ID                      string `json:"id"`
	SrNo                    string `json:"srNo"`
	ISICCodes               string `json:"isicCodes"`
	Document                string `json:"document"`
	TaxonomyReference       string `json:"taxonomyReference"`
	Sector                  string `json:"sector"`
	Activity                string `json:"activity"`
	ActivityDescription     string `json:"activityDescription"`
	SubstantialContribution string `json:"substantialContribution"`
	IneligibilityCriteria   string `json:"ineligibilityCriteria"`
	GeneralDNSH             string `json:"generalDNSH"`
	DNSHClimateAdaptation   string `json:"dnshClimateAdaptation"`
	DNSHWaterResources      string `json:"dnshWaterResources"`
	DNSHCircularEconomy     string `json:"dnshCircularEconomy"`
	DNSHPollutionPrevention string `json:"dnshPollutionPrevention"`
	DNSHBiodiversity        string `json:"dnshBiodiversity"`
	Remarks                 string `json:"remarks"`
	Type                    string `json:"type"`
	Category                string `json:"category"`
}

func (r *MitigationRecord) RecordID() string { return r.ID }
func (r *MitigationRecord) Kind() Category   { return Mitigation }

func (r *MitigationRecord) Value(f Field) string {
	switch f {
	case FieldType:
		return r.Type
	case FieldISICCodes:
		return r.ISICCodes
	case FieldCategory:
		return r.Category
	case FieldSector:
		return r.Sector
	case FieldName:
		return r.Activity
	case FieldDescription:
		return r.ActivityDescription
	}
	return ""
}

// AdaptationRecord is a row of the Climate Adaptation sheet.
// Type comes from the sheet; there is no constant type label.
type AdaptationRecord struct {
	ID             string `json:"id"`
	SrNo           string `json:"srNo"`
	Document       string `json:"document"`
	Code           string `json:"code"`
	Sector         string `json:"sector"`
	Hazard         string `json:"hazard"`
	Division       string `json:"division"`
	Investment     string `json:"investment"`
	ExpectedEffect string `json:"expectedEffect"`
	ExpectedResult string `json:"expectedResult"`
	Type           string `json:"type"`
	Level          string `json:"level"`
	CriteriaType   string `json:"criteriaType"`
	GenericDNSH    string `json:"genericDNSH"`
	Category       string `json:"category"`
}

func (r *AdaptationRecord) RecordID() string { return r.ID }
func (r *AdaptationRecord) Kind() Category   { return Adaptation }

func (r *AdaptationRecord) Value(f Field) string {
	switch f {
	case FieldType:
		return r.Type
	case FieldLevel:
		return r.Level
	case FieldCriteriaType:
		return r.CriteriaType
	case FieldCategory:
		return r.Category
	case FieldSector:
		return r.Sector
	case FieldHazard:
		return r.Hazard
	case FieldDivision:
		return r.Division
	case FieldName:
		return r.Investment
	case FieldDescription:
		return r.ExpectedEffect
	}
	return ""
}

// VariousRecord is a row of the Various Objectives sheet.
// Category holds the sheet's own category column; the owning category is
// carried in MainCategory.
type VariousRecord struct {
	ID                  string `json:"id"`
	SrNo                string `json:"srNo"`
	Document            string `json:"document"`
	TaxonomyReference   string `json:"taxonomyReference"`
	Sector              string `json:"sector"`
	SubSector           string `json:"subSector"`
	EligiblePractices   string `json:"eligiblePractices"`
	Category            string `json:"category"`
	Description         string `json:"description"`
	EligibleInput       string `json:"eligibleInput"`
	IneligiblePractices string `json:"ineligiblePractices"`
	GenericDNSH         string `json:"genericDNSH"`
	Type                string `json:"type"`
	MainCategory        string `json:"mainCategory"`
}

func (r *VariousRecord) RecordID() string { return r.ID }
func (r *VariousRecord) Kind() Category   { return Various }

func (r *VariousRecord) Value(f Field) string {
	switch f {
	case FieldType:
		return r.Type
	case FieldCategory:
		return r.Category
	case FieldSector:
		return r.Sector
	case FieldSubSector:
		return r.SubSector
	case FieldName:
		return r.EligiblePractices
	case FieldDescription:
		return r.Description
	}
	return ""
}

// Display type labels and category tags stamped on every record.
const (
	MitigationType = "Mitigation"
	VariousType    = "Various"
)
