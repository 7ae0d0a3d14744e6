// CLAUDE:SUMMARY Cell cleaning and plain-text to display-markup conversion for spreadsheet values.
// Package normalize turns raw spreadsheet cell values into record fields.
//
// CleanField produces plain scalars. TextToHTML produces the display markup
// stored in rich-text fields: line breaks become <br>, tabs and bullets are
// indented with &nbsp; entities. Other HTML-significant characters are left
// as-is, so the output is trusted content unless a Normalizer with a
// sanitizing policy is used.
package normalize

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

const (
	lineBreak = "<br>"
	indent    = "&nbsp;&nbsp;&nbsp;&nbsp;"
	bullet    = "•"
)

// markup applies every substitution in a single pass. Earlier pairs win, so
// CRLF and LFCR are consumed before a lone CR or LF.
var markup = strings.NewReplacer(
	"\r\n", lineBreak,
	"\n\r", lineBreak,
	"\n", lineBreak,
	"\r", lineBreak,
	"\t", indent,
	bullet, indent+" "+bullet,
)

// CleanField returns the trimmed string form of a cell, or "" for nil and
// empty cells.
func CleanField(v any) string {
	return strings.TrimSpace(stringify(v))
}

// TextToHTML converts a free-text cell to display markup.
func TextToHTML(v any) string {
	s := stringify(v)
	if s == "" {
		return ""
	}
	return strings.TrimSpace(markup.Replace(s))
}

// Normalizer converts rich-text cells, optionally escaping source markup
// before the substitutions run.
type Normalizer struct {
	policy *bluemonday.Policy
}

// New returns a Normalizer. With sanitize set, tags in the source text are
// stripped and &, <, > are escaped before line breaks and bullets are
// converted, so the only markup in the result is what TextToHTML adds.
func New(sanitize bool) *Normalizer {
	n := &Normalizer{}
	if sanitize {
		n.policy = bluemonday.StrictPolicy()
	}
	return n
}

// TextToHTML is TextToHTML with the Normalizer's escaping applied.
func (n *Normalizer) TextToHTML(v any) string {
	if n == nil || n.policy == nil {
		return TextToHTML(v)
	}
	s := stringify(v)
	if s == "" {
		return ""
	}
	return TextToHTML(n.policy.Sanitize(s))
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case bool:
		return strconv.FormatBool(x)
	case fmt.Stringer:
		return x.String()
	}
	return fmt.Sprint(v)
}

// formatFloat renders numbers the way spreadsheet exports print them:
// integers without a fraction, no exponent below 1e21.
func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	if math.Abs(f) >= 1e21 {
		return strconv.FormatFloat(f, 'g', -1, 64)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
