package snapshot

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/merceaemil/taxonomy-navigator/dbopen"
	"github.com/merceaemil/taxonomy-navigator/taxonomy"
)

func TestName(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	tests := []struct {
		source, want string
	}{
		{"Taxonomy.xlsx", "1700000000123-Taxonomy.json"},
		{"old.XLS", "1700000000123-old.json"},
		{"/data/uploads/Climate Mitigation.csv", "1700000000123-Climate Mitigation.json"},
		{"already.json", "1700000000123-already.json"},
		{"noext", "1700000000123-noext.json"},
	}
	for _, tt := range tests {
		if got := Name(at, tt.source); got != tt.want {
			t.Errorf("Name(%q) = %q, want %q", tt.source, got, tt.want)
		}
	}
}

func steppingClock(start int64) func() time.Time {
	ms := start
	return func() time.Time {
		ms += 1000
		return time.UnixMilli(ms)
	}
}

func sampleDoc(sector string) *taxonomy.Document {
	return &taxonomy.Document{
		Mitigation: []taxonomy.MitigationRecord{{ID: "mitigation_0", Sector: sector, ActivityDescription: "a<br>b"}},
	}
}

// storeContract exercises the behaviour both backends share.
func storeContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	if _, _, err := Latest(ctx, s); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty store: expected ErrNotFound, got %v", err)
	}

	first, err := s.Put(ctx, "book.xlsx", sampleDoc("Energy"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(first.ID, "-book.json") || first.Source != "book.json" {
		t.Fatalf("info = %+v", first)
	}
	second, err := s.Put(ctx, "book.xlsx", sampleDoc("Water"))
	if err != nil {
		t.Fatal(err)
	}
	if second.ID == first.ID {
		t.Fatal("second put reused the first id")
	}

	infos, err := s.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 2 || infos[0].ID != second.ID {
		t.Fatalf("list = %+v, want newest first", infos)
	}

	info, doc, err := Latest(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if info.ID != second.ID || doc.Mitigation[0].Sector != "Water" {
		t.Fatalf("latest = %s sector %q", info.ID, doc.Mitigation[0].Sector)
	}
	if doc.Mitigation[0].ActivityDescription != "a<br>b" {
		t.Errorf("markup changed in storage: %q", doc.Mitigation[0].ActivityDescription)
	}
	if doc.Has(taxonomy.Adaptation) {
		t.Error("absent category became present")
	}

	// The earlier snapshot survives.
	old, err := s.Get(ctx, first.ID)
	if err != nil || old.Mitigation[0].Sector != "Energy" {
		t.Fatalf("get first: %v", err)
	}

	if _, err := s.Get(ctx, "nope.json"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing id: expected ErrNotFound, got %v", err)
	}
}

func TestFileStore(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, WithClock(steppingClock(1700000000000)))
	if err != nil {
		t.Fatal(err)
	}
	storeContract(t, s)

	// No temp files are left behind.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestFileStore_EncodedOnDisk(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir, WithClock(func() time.Time { return time.UnixMilli(1) }))
	if err != nil {
		t.Fatal(err)
	}
	info, err := s.Put(context.Background(), "a.xlsx", &taxonomy.Document{Various: []taxonomy.VariousRecord{}})
	if err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(filepath.Join(dir, info.ID))
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "{\n  \"various\": []\n}" {
		t.Fatalf("file content = %q", data)
	}
}

func TestFileStore_SameMillisecond(t *testing.T) {
	s, err := NewFileStore(t.TempDir(), WithClock(func() time.Time { return time.UnixMilli(5000) }))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	a, err := s.Put(ctx, "x.xlsx", sampleDoc("A"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := s.Put(ctx, "x.xlsx", sampleDoc("B"))
	if err != nil {
		t.Fatal(err)
	}
	if a.ID != "5000-x.json" || b.ID != "5001-x.json" {
		t.Fatalf("ids = %s, %s", a.ID, b.ID)
	}
}

func TestFileStore_RecencyIsModTime(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	write := func(name, sector string, mod time.Time) {
		data, err := taxonomy.Encode(sampleDoc(sector))
		if err != nil {
			t.Fatal(err)
		}
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(path, mod, mod); err != nil {
			t.Fatal(err)
		}
	}
	now := time.Now()
	// The name with the larger timestamp is older on disk.
	write("9000-late-name.json", "Old", now.Add(-time.Hour))
	write("1000-early-name.json", "New", now)
	// Non-snapshot files are ignored.
	os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644)

	info, doc, err := Latest(context.Background(), s)
	if err != nil {
		t.Fatal(err)
	}
	if info.ID != "1000-early-name.json" || doc.Mitigation[0].Sector != "New" {
		t.Fatalf("latest = %s", info.ID)
	}
}

func TestFileStore_GetRejectsTraversal(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	for _, id := range []string{"../secret.json", "a/b.json", ""} {
		if _, err := s.Get(context.Background(), id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Get(%q) = %v, want ErrNotFound", id, err)
		}
	}
}

func TestFileStore_CorruptIsUnavailable(t *testing.T) {
	dir := t.TempDir()
	s, err := NewFileStore(dir)
	if err != nil {
		t.Fatal(err)
	}
	os.WriteFile(filepath.Join(dir, "1-bad.json"), []byte("{not json"), 0o644)
	_, _, err = Latest(context.Background(), s)
	if !errors.Is(err, ErrUnavailable) || errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestSQLiteStore(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	s := NewSQLiteStore(db)
	s.SetClock(steppingClock(1700000000000))
	storeContract(t, s)
}

func TestSQLiteStore_SameMillisecondOrdersBySequence(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(Schema))
	s := NewSQLiteStore(db)
	s.SetClock(func() time.Time { return time.UnixMilli(42) })
	ctx := context.Background()

	if _, err := s.Put(ctx, "a.xlsx", sampleDoc("A")); err != nil {
		t.Fatal(err)
	}
	b, err := s.Put(ctx, "b.xlsx", sampleDoc("B"))
	if err != nil {
		t.Fatal(err)
	}
	info, doc, err := Latest(ctx, s)
	if err != nil {
		t.Fatal(err)
	}
	if info.ID != b.ID || doc.Mitigation[0].Sector != "B" {
		t.Fatalf("latest = %s, want %s", info.ID, b.ID)
	}
}

func TestSQLiteStore_ClosedIsUnavailable(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "snapshots.db"))
	if err != nil {
		t.Fatal(err)
	}
	s.Close()
	if _, err := s.List(context.Background()); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestOpenSQLite(t *testing.T) {
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "snapshots.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	s.SetClock(steppingClock(1700000000000))
	storeContract(t, s)
}

// vanishingStore lists ids whose Get reports ErrNotFound, as when a file is
// removed between List and Get.
type vanishingStore struct {
	Store
	gone map[string]bool
}

func (v vanishingStore) Get(ctx context.Context, id string) (*taxonomy.Document, error) {
	if v.gone[id] {
		return nil, ErrNotFound
	}
	return v.Store.Get(ctx, id)
}

func TestLatest_SkipsVanishedSnapshot(t *testing.T) {
	fs, err := NewFileStore(t.TempDir(), WithClock(steppingClock(1700000000000)))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	older, err := fs.Put(ctx, "a.xlsx", sampleDoc("Energy"))
	if err != nil {
		t.Fatal(err)
	}
	newer, err := fs.Put(ctx, "b.xlsx", sampleDoc("Water"))
	if err != nil {
		t.Fatal(err)
	}

	info, doc, err := Latest(ctx, vanishingStore{Store: fs, gone: map[string]bool{newer.ID: true}})
	if err != nil {
		t.Fatal(err)
	}
	if info.ID != older.ID || doc.Mitigation[0].Sector != "Energy" {
		t.Errorf("latest = %s, want %s", info.ID, older.ID)
	}

	_, _, err = Latest(ctx, vanishingStore{Store: fs, gone: map[string]bool{newer.ID: true, older.ID: true}})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("all vanished: expected ErrNotFound, got %v", err)
	}
}
