// CLAUDE:SUMMARY Writes a document as snapshot JSON, or one category's hierarchy as a markdown outline with rich text converted via html-to-markdown.
// Package export renders taxonomy data for use outside the browsing UI.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"

	"github.com/merceaemil/taxonomy-navigator/hierarchy"
	"github.com/merceaemil/taxonomy-navigator/taxonomy"
)

// JSON writes doc in the stored snapshot format.
func JSON(w io.Writer, doc *taxonomy.Document) error {
	data, err := taxonomy.Encode(doc)
	if err != nil {
		return fmt.Errorf("export: encode: %w", err)
	}
	_, err = w.Write(data)
	return err
}

// Exporter converts rich-text fields to markdown.
type Exporter struct {
	conv *converter.Converter
}

// New creates an Exporter.
func New() *Exporter {
	return &Exporter{
		conv: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

var defaultExporter = New()

// Markdown writes tree with the default Exporter.
func Markdown(w io.Writer, tree *hierarchy.Tree) error {
	return defaultExporter.Markdown(w, tree)
}

// Markdown writes tree as an outline: the category label as the title, one
// heading per group level, then a bullet per record with its description
// indented below it.
func (e *Exporter) Markdown(w io.Writer, tree *hierarchy.Tree) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "# %s\n", tree.Category.Label())
	for _, g := range tree.Groups() {
		if err := e.group(bw, g, 2); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func (e *Exporter) group(w *bufio.Writer, g *hierarchy.Group, depth int) error {
	fmt.Fprintf(w, "\n%s %s\n", strings.Repeat("#", depth), g.Key)
	if len(g.Records) > 0 {
		w.WriteByte('\n')
	}
	for _, r := range g.Records {
		if err := e.record(w, r); err != nil {
			return err
		}
	}
	for _, child := range g.Groups {
		if err := e.group(w, child, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) record(w *bufio.Writer, r taxonomy.Record) error {
	name := r.Value(taxonomy.FieldName)
	if name == "" {
		name = r.RecordID()
	}
	fmt.Fprintf(w, "- **%s** (%s)\n", name, r.RecordID())

	desc := r.Value(taxonomy.FieldDescription)
	if desc == "" {
		return nil
	}
	md, err := e.conv.ConvertString(desc)
	if err != nil {
		return fmt.Errorf("export: %s: %w", r.RecordID(), err)
	}
	md = strings.TrimSpace(md)
	if md == "" {
		return nil
	}
	w.WriteByte('\n')
	for _, line := range strings.Split(md, "\n") {
		if line == "" {
			w.WriteByte('\n')
			continue
		}
		fmt.Fprintf(w, "  %s\n", line)
	}
	w.WriteByte('\n')
	return nil
}
