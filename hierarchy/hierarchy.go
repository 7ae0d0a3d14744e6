// CLAUDE:SUMMARY Groups one category's records into an insertion-ordered sector tree (adaptation 3 levels, various 2, mitigation 1).
// Package hierarchy groups records into the nested structure the browsing
// UI drills into:
//
//	adaptation: sector -> hazard -> division -> [records]
//	mitigation: sector -> [records]
//	various:    sector -> subSector -> [records]
//
// Records failing the filters are left out before grouping. Blank grouping
// values fall under a placeholder label. Groups and records keep the order
// in which they were first seen; nothing is sorted.
package hierarchy

import (
	"bytes"
	"encoding/json"

	"github.com/merceaemil/taxonomy-navigator/taxonomy"
)

// Level is one grouping step.
type Level struct {
	Name        string         `json:"name"`
	Field       taxonomy.Field `json:"-"`
	Placeholder string         `json:"placeholder"`
}

var (
	sector    = Level{Name: "sector", Field: taxonomy.FieldSector, Placeholder: "Unknown Sector"}
	hazard    = Level{Name: "hazard", Field: taxonomy.FieldHazard, Placeholder: "Unknown Hazard"}
	division  = Level{Name: "division", Field: taxonomy.FieldDivision, Placeholder: "Unknown Division"}
	subSector = Level{Name: "subSector", Field: taxonomy.FieldSubSector, Placeholder: "Unknown Sub-sector"}
)

// Levels returns the grouping levels for c, outermost first.
func Levels(c taxonomy.Category) []Level {
	switch c {
	case taxonomy.Adaptation:
		return []Level{sector, hazard, division}
	case taxonomy.Mitigation:
		return []Level{sector}
	case taxonomy.Various:
		return []Level{sector, subSector}
	}
	return nil
}

// Group is one node of the tree. Inner groups hold Groups; groups at the
// last level hold Records.
type Group struct {
	Key     string
	Groups  []*Group
	Records []taxonomy.Record

	index map[string]*Group
}

func (g *Group) child(key string) *Group {
	if c, ok := g.index[key]; ok {
		return c
	}
	c := &Group{Key: key}
	if g.index == nil {
		g.index = make(map[string]*Group)
	}
	g.index[key] = c
	g.Groups = append(g.Groups, c)
	return c
}

// Count returns the number of records under g.
func (g *Group) Count() int {
	n := len(g.Records)
	for _, c := range g.Groups {
		n += c.Count()
	}
	return n
}

// Tree is the grouping of one category.
type Tree struct {
	Category taxonomy.Category
	Levels   []Level
	root     Group
}

// Build groups records of category c that pass filters. It does not modify
// the records. An unknown category yields an empty tree.
func Build(c taxonomy.Category, records []taxonomy.Record, filters taxonomy.Filters) *Tree {
	t := &Tree{Category: c, Levels: Levels(c)}
	if len(t.Levels) == 0 {
		return t
	}
	for _, r := range records {
		if !filters.Match(r) {
			continue
		}
		g := &t.root
		for _, lv := range t.Levels {
			key := r.Value(lv.Field)
			if key == "" {
				key = lv.Placeholder
			}
			g = g.child(key)
		}
		g.Records = append(g.Records, r)
	}
	return t
}

// Groups returns the top-level groups.
func (t *Tree) Groups() []*Group { return t.root.Groups }

// Len returns the number of grouped records.
func (t *Tree) Len() int { return t.root.Count() }

// Find follows keys from the top level down. It returns nil when a key is
// missing.
func (t *Tree) Find(keys ...string) *Group {
	g := &t.root
	for _, k := range keys {
		next, ok := g.index[k]
		if !ok {
			return nil
		}
		g = next
	}
	return g
}

// Flatten returns every grouped record, walking groups depth-first in order.
func (t *Tree) Flatten() []taxonomy.Record {
	out := make([]taxonomy.Record, 0, t.Len())
	var walk func(g *Group)
	walk = func(g *Group) {
		out = append(out, g.Records...)
		for _, c := range g.Groups {
			walk(c)
		}
	}
	walk(&t.root)
	return out
}

// MarshalJSON writes the tree as nested objects keyed by group label, with
// record arrays at the last level, in insertion order.
func (t *Tree) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := writeGroups(&buf, t.root.Groups, len(t.Levels)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeGroups(buf *bytes.Buffer, groups []*Group, depth int) error {
	buf.WriteByte('{')
	for i, g := range groups {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeValue(buf, g.Key); err != nil {
			return err
		}
		buf.WriteByte(':')
		if depth <= 1 {
			recs := g.Records
			if recs == nil {
				recs = []taxonomy.Record{}
			}
			if err := writeValue(buf, recs); err != nil {
				return err
			}
			continue
		}
		if err := writeGroups(buf, g.Groups, depth-1); err != nil {
			return err
		}
	}
	buf.WriteByte('}')
	return nil
}

// writeValue encodes v without escaping markup, so rich-text fields come out
// as stored.
func writeValue(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
