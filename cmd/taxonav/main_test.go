package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/merceaemil/taxonomy-navigator/ingest"
	"github.com/merceaemil/taxonomy-navigator/navigator"
	"github.com/merceaemil/taxonomy-navigator/sheet"
	"github.com/merceaemil/taxonomy-navigator/taxonomy"
	"github.com/merceaemil/taxonomy-navigator/workbook"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	cfg, err := loadConfig("", envMap(map[string]string{
		"PORT":          "8099",
		"DATA_DIR":      "/tmp/taxonav",
		"LOG_LEVEL":     "debug",
		"TAXONAV_STORE": "sqlite",
	}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":8099" || cfg.DataDir != "/tmp/taxonav" || cfg.LogLevel != "debug" || cfg.Store != navigator.StoreSQLite {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "taxonav.yaml")
	if err := os.WriteFile(path, []byte("listen: \":4000\"\ndata_dir: /srv/tax\nmax_file_mb: 5\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig("", envMap(map[string]string{"TAXONAV_CONFIG": path, "PORT": "4100"}))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Listen != ":4100" {
		t.Errorf("PORT should override the file, got %q", cfg.Listen)
	}
	if cfg.DataDir != "/srv/tax" || cfg.MaxFileMB != 5 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadConfig_BadStore(t *testing.T) {
	if _, err := loadConfig("", envMap(map[string]string{"TAXONAV_STORE": "postgres"})); err == nil {
		t.Error("expected a validation error")
	}
}

func TestWriteTemplate(t *testing.T) {
	var buf bytes.Buffer
	if err := writeTemplate(&buf); err != nil {
		t.Fatal(err)
	}
	wb, err := workbook.New(workbook.Config{}).Read(context.Background(), "template.xlsx", &buf)
	if err != nil {
		t.Fatal(err)
	}
	for _, c := range taxonomy.Categories {
		name, ok := ingest.MatchSheet(c, wb.Names())
		if !ok {
			t.Fatalf("no sheet for %s in %v", c, wb.Names())
		}
		for _, s := range wb.Sheets {
			if s.Name == name {
				if err := sheet.CheckHeader(c, s.Grid); err != nil {
					t.Errorf("%s: %v", c, err)
				}
			}
		}
	}
}

func exportService(t *testing.T) *navigator.Service {
	t.Helper()
	cfg := navigator.DefaultConfig()
	cfg.DataDir = t.TempDir()
	svc, err := navigator.New(cfg, navigator.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { svc.Close() })

	src := filepath.Join(t.TempDir(), "Taxonomy.xlsx")
	f, err := os.Create(src)
	if err != nil {
		t.Fatal(err)
	}
	err = workbook.WriteXLSX(f, []workbook.Sheet{{Name: "Climate Adaptation", Grid: sheet.Grid{
		sheet.Headers(taxonomy.Adaptation),
		{"1", "Doc", "A.1", "Water", "Flood", "Urban", "Dikes", "Fewer floods\nSafer towns", "", "Structural", "Basic"},
		{"2", "Doc", "A.2", "Water", "Drought", "", "Reservoirs", "", "", "Structural", "Advanced"},
	}}})
	f.Close()
	if err != nil {
		t.Fatal(err)
	}

	res, err := ingestFile(context.Background(), svc.Orchestrator(), src)
	if err != nil {
		t.Fatal(err)
	}
	if !res.Processed {
		t.Fatalf("res = %+v", res)
	}
	if _, err := os.Stat(src); err != nil {
		t.Errorf("a file ingested by path must stay in place: %v", err)
	}
	return svc
}

func TestRunExport_Markdown(t *testing.T) {
	svc := exportService(t)
	var buf bytes.Buffer
	err := runExport(context.Background(), svc, exportOptions{category: "adaptation", format: "markdown", filters: taxonomy.Filters{Level: "Basic"}}, &buf)
	if err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	for _, want := range []string{"# Climate Adaptation", "## Water", "### Flood", "#### Urban", "- **Dikes** (adaptation_0)", "Safer towns"} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
	if strings.Contains(out, "Reservoirs") {
		t.Error("level filter not applied")
	}
}

func TestRunExport_JSON(t *testing.T) {
	svc := exportService(t)
	var buf bytes.Buffer
	if err := runExport(context.Background(), svc, exportOptions{format: "json"}, &buf); err != nil {
		t.Fatal(err)
	}
	doc, err := taxonomy.Decode(buf.Bytes())
	if err != nil {
		t.Fatal(err)
	}
	if doc.Count(taxonomy.Adaptation) != 2 || doc.Has(taxonomy.Mitigation) {
		t.Errorf("doc = %+v", doc)
	}
	if !strings.Contains(buf.String(), "Fewer floods<br>Safer towns") {
		t.Error("rich text should keep literal markup")
	}
}

func TestRunExport_Errors(t *testing.T) {
	svc := exportService(t)
	if err := runExport(context.Background(), svc, exportOptions{format: "markdown", category: "climate"}, io.Discard); err == nil {
		t.Error("expected an error for an unknown category")
	}
	if err := runExport(context.Background(), svc, exportOptions{format: "pdf"}, io.Discard); err == nil {
		t.Error("expected an error for an unknown format")
	}
}
