package taxonomy

import (
	"bytes"
	"encoding/json"
)

// Document is the result of one ingestion run.
//
// A nil slice means the workbook had no sheet for that category and the key
// is absent on the wire. A non-nil empty slice is emitted as [].
type Document struct {
	Mitigation []MitigationRecord `json:"mitigation"`
	Adaptation []AdaptationRecord `json:"adaptation"`
	Various    []VariousRecord    `json:"various"`
}

// Has reports whether the category key is present.
func (d *Document) Has(c Category) bool {
	if d == nil {
		return false
	}
	switch c {
	case Mitigation:
		return d.Mitigation != nil
	case Adaptation:
		return d.Adaptation != nil
	case Various:
		return d.Various != nil
	}
	return false
}

// Count returns the number of records for a category.
func (d *Document) Count(c Category) int {
	if d == nil {
		return 0
	}
	switch c {
	case Mitigation:
		return len(d.Mitigation)
	case Adaptation:
		return len(d.Adaptation)
	case Various:
		return len(d.Various)
	}
	return 0
}

// Records returns the category's records in document order. The returned
// records point into the document; callers must not modify them.
func (d *Document) Records(c Category) []Record {
	if d == nil {
		return nil
	}
	var out []Record
	switch c {
	case Mitigation:
		out = make([]Record, len(d.Mitigation))
		for i := range d.Mitigation {
			out[i] = &d.Mitigation[i]
		}
	case Adaptation:
		out = make([]Record, len(d.Adaptation))
		for i := range d.Adaptation {
			out[i] = &d.Adaptation[i]
		}
	case Various:
		out = make([]Record, len(d.Various))
		for i := range d.Various {
			out[i] = &d.Various[i]
		}
	}
	return out
}

// MarshalJSON writes present categories in mitigation, adaptation, various
// order and omits absent ones.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(key string, v any) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, _ := json.Marshal(key)
		buf.Write(k)
		buf.WriteByte(':')
		b, err := marshalNoEscape(v)
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
	if d.Mitigation != nil {
		if err := write(string(Mitigation), d.Mitigation); err != nil {
			return nil, err
		}
	}
	if d.Adaptation != nil {
		if err := write(string(Adaptation), d.Adaptation); err != nil {
			return nil, err
		}
	}
	if d.Various != nil {
		if err := write(string(Various), d.Various); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Encode renders the document the way snapshots are stored: two-space
// indentation, markup left unescaped, no trailing newline.
func Encode(d *Document) ([]byte, error) {
	raw, err := marshalNoEscape(d)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// Decode parses a stored snapshot.
func Decode(data []byte) (*Document, error) {
	var d Document
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
