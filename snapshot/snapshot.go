// CLAUDE:SUMMARY Snapshot store contract (put/list/get), naming scheme and the Latest lookup shared by file and SQLite backends.
// Package snapshot persists ingestion results.
//
// A snapshot is one encoded taxonomy.Document. Snapshots are append-only:
// Put never replaces or deletes an earlier snapshot, and "latest" is purely
// a function of what the store holds.
package snapshot

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/merceaemil/taxonomy-navigator/taxonomy"
)

var (
	// ErrNotFound means the store holds no snapshot (or no snapshot with the
	// requested id). It is a normal condition, not a failure.
	ErrNotFound = errors.New("snapshot: not found")

	// ErrUnavailable means the store could not be read or written.
	ErrUnavailable = errors.New("snapshot: store unavailable")
)

// Info describes a stored snapshot. List returns the newest first. Source is
// the id without its timestamp prefix.
type Info struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"createdAt"`
	Size      int64     `json:"size"`
}

// Store is an append-only snapshot log.
type Store interface {
	Put(ctx context.Context, source string, doc *taxonomy.Document) (Info, error)
	List(ctx context.Context) ([]Info, error)
	Get(ctx context.Context, id string) (*taxonomy.Document, error)
}

// Latest returns the newest snapshot. It returns ErrNotFound when the store
// is empty and wraps ErrUnavailable when the store fails. A snapshot removed
// after List is skipped in favour of the next newest.
func Latest(ctx context.Context, s Store) (Info, *taxonomy.Document, error) {
	infos, err := s.List(ctx)
	if err != nil {
		return Info{}, nil, err
	}
	for _, info := range infos {
		doc, err := s.Get(ctx, info.ID)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return Info{}, nil, err
		}
		return info, doc, nil
	}
	return Info{}, nil, ErrNotFound
}

// Name builds the snapshot id for a source: the creation time in Unix
// milliseconds, a hyphen, then the source's base name with its spreadsheet
// extension (.xlsx, .xls, .csv) replaced by .json.
func Name(at time.Time, source string) string {
	base := filepath.Base(source)
	lower := strings.ToLower(base)
	switch {
	case strings.HasSuffix(lower, ".xlsx"):
		base = base[:len(base)-len(".xlsx")] + ".json"
	case strings.HasSuffix(lower, ".xls"):
		base = base[:len(base)-len(".xls")] + ".json"
	case strings.HasSuffix(lower, ".csv"):
		base = base[:len(base)-len(".csv")] + ".json"
	case !strings.HasSuffix(lower, ".json"):
		base += ".json"
	}
	return strconv.FormatInt(at.UnixMilli(), 10) + "-" + base
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrUnavailable, op, err)
}
