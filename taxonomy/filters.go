package taxonomy

import "strings"

// Filters are the structured predicates shared by hierarchy building and
// search. Empty fields are inactive. Active fields are ANDed; all compare
// exactly except ISICCodes, which is a substring match.
type Filters struct {
	Type         string `json:"type,omitempty"`
	Level        string `json:"level,omitempty"`
	CriteriaType string `json:"criteriaType,omitempty"`
	ISICCodes    string `json:"isicCodes,omitempty"`
	Category     string `json:"category,omitempty"`
}

// Active counts the filters in use.
func (f Filters) Active() int {
	n := 0
	for _, v := range []string{f.Type, f.Level, f.CriteriaType, f.ISICCodes, f.Category} {
		if v != "" {
			n++
		}
	}
	return n
}

// Match reports whether r passes every active filter.
func (f Filters) Match(r Record) bool {
	if f.Type != "" && r.Value(FieldType) != f.Type {
		return false
	}
	if f.Level != "" && r.Value(FieldLevel) != f.Level {
		return false
	}
	if f.CriteriaType != "" && r.Value(FieldCriteriaType) != f.CriteriaType {
		return false
	}
	if f.ISICCodes != "" && !strings.Contains(r.Value(FieldISICCodes), f.ISICCodes) {
		return false
	}
	if f.Category != "" && r.Value(FieldCategory) != f.Category {
		return false
	}
	return true
}
