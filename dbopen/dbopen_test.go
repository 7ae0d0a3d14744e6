package dbopen_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/merceaemil/taxonomy-navigator/dbopen"
)

func TestOpenMemory_Pragmas(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithBusyTimeout(2500))

	var fk int
	if err := db.QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatal(err)
	}
	if fk != 1 {
		t.Fatalf("foreign_keys = %d, want 1", fk)
	}

	var busy int
	if err := db.QueryRow("PRAGMA busy_timeout").Scan(&busy); err != nil {
		t.Fatal(err)
	}
	if busy != 2500 {
		t.Fatalf("busy_timeout = %d, want 2500", busy)
	}
}

func TestOpen_MkdirAllAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "snapshots.db")
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(),
		dbopen.WithSchema(`CREATE TABLE IF NOT EXISTS t (id TEXT PRIMARY KEY)`))
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if _, err := db.Exec(`INSERT INTO t (id) VALUES ('a')`); err != nil {
		t.Fatalf("schema not applied: %v", err)
	}
}

func TestIsBusy(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("SQLITE_BUSY"), true},
		{errors.New("database is locked"), true},
		{errors.New("no such table"), false},
	}
	for _, tt := range tests {
		if got := dbopen.IsBusy(tt.err); got != tt.want {
			t.Errorf("IsBusy(%v) = %v, want %v", tt.err, got, tt.want)
		}
	}
}

func TestRunTx(t *testing.T) {
	db := dbopen.OpenMemory(t, dbopen.WithSchema(`CREATE TABLE t (v INTEGER)`))
	ctx := context.Background()

	err := dbopen.RunTx(ctx, db, func(tx *sql.Tx) error {
		_, err := tx.Exec(`INSERT INTO t (v) VALUES (1)`)
		return err
	})
	if err != nil {
		t.Fatal(err)
	}

	boom := errors.New("boom")
	err = dbopen.RunTx(ctx, db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`INSERT INTO t (v) VALUES (2)`); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM t`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("rows = %d, want 1 (second tx rolled back)", n)
	}
}
