package snapshot

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/merceaemil/taxonomy-navigator/dbopen"
	"github.com/merceaemil/taxonomy-navigator/taxonomy"

	_ "modernc.org/sqlite"
)

// Schema is the snapshot log table. seq orders snapshots created in the same
// millisecond.
const Schema = `
CREATE TABLE IF NOT EXISTS snapshots (
    seq         INTEGER PRIMARY KEY AUTOINCREMENT,
    id          TEXT NOT NULL UNIQUE,
    source      TEXT NOT NULL,
    created_at  INTEGER NOT NULL,
    body        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_snapshots_recency ON snapshots(created_at DESC, seq DESC);
`

// SQLiteStore keeps snapshots as rows of an append-only table. "Latest" is
// the greatest (created_at, seq), independent of any filesystem clock.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path and applies Schema.
func OpenSQLite(path string) (*SQLiteStore, error) {
	db, err := dbopen.Open(path, dbopen.WithMkdirAll(), dbopen.WithSchema(Schema))
	if err != nil {
		return nil, unavailable("open", err)
	}
	return NewSQLiteStore(db), nil
}

// NewSQLiteStore wraps an open database that already has Schema applied.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// SetClock replaces time.Now.
func (s *SQLiteStore) SetClock(now func() time.Time) { s.now = now }

// Close closes the underlying database.
func (s *SQLiteStore) Close() error { return s.db.Close() }

// Put appends a snapshot.
func (s *SQLiteStore) Put(ctx context.Context, source string, doc *taxonomy.Document) (Info, error) {
	data, err := taxonomy.Encode(doc)
	if err != nil {
		return Info{}, fmt.Errorf("snapshot: encode: %w", err)
	}
	at := s.now()
	info := Info{Source: sourceOf(Name(at, source)), Size: int64(len(data))}

	err = dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		// Same millisecond and source: step the timestamp rather than collide.
		for {
			info.ID = Name(at, source)
			var n int
			if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM snapshots WHERE id = ?`, info.ID).Scan(&n); err != nil {
				return err
			}
			if n == 0 {
				break
			}
			at = at.Add(time.Millisecond)
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO snapshots (id, source, created_at, body) VALUES (?, ?, ?, ?)`,
			info.ID, info.Source, at.UnixMilli(), string(data))
		return err
	})
	if err != nil {
		if ctx.Err() != nil {
			return Info{}, ctx.Err()
		}
		return Info{}, unavailable("put", err)
	}
	info.CreatedAt = time.UnixMilli(at.UnixMilli())
	return info, nil
}

// List returns all snapshots, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]Info, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source, created_at, length(CAST(body AS BLOB)) FROM snapshots ORDER BY created_at DESC, seq DESC`)
	if err != nil {
		return nil, unavailable("list", err)
	}
	defer rows.Close()

	var infos []Info
	for rows.Next() {
		var (
			info Info
			ms   int64
		)
		if err := rows.Scan(&info.ID, &info.Source, &ms, &info.Size); err != nil {
			return nil, unavailable("scan", err)
		}
		info.CreatedAt = time.UnixMilli(ms)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("list", err)
	}
	return infos, nil
}

// Get decodes one snapshot.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*taxonomy.Document, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM snapshots WHERE id = ?`, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if err != nil {
		return nil, unavailable("get "+id, err)
	}
	doc, err := taxonomy.Decode([]byte(body))
	if err != nil {
		return nil, unavailable("decode "+id, err)
	}
	return doc, nil
}
