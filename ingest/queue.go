package ingest

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/merceaemil/taxonomy-navigator/horosafe"
	"github.com/merceaemil/taxonomy-navigator/workbook"
)

// RejectedSuffix is appended to sources that failed to ingest.
const RejectedSuffix = ".rejected"

// Queue is the intake side of ingestion: sources waiting to be processed.
type Queue interface {
	// Root identifies the storage location; runs against the same root are
	// serialized.
	Root() string
	// Pending lists unprocessed sources in processing order.
	Pending(ctx context.Context) ([]string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	// Remove deletes a consumed source.
	Remove(ctx context.Context, name string) error
	// Reject sets a failed source aside so it is not retried.
	Reject(ctx context.Context, name string) error
}

// DirQueue is a Queue over the spreadsheet files of one directory.
type DirQueue struct {
	Dir string
}

// NewDirQueue creates the directory if needed.
func NewDirQueue(dir string) (*DirQueue, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("ingest: mkdir %s: %w", dir, err)
	}
	return &DirQueue{Dir: dir}, nil
}

func (q *DirQueue) Root() string { return q.Dir }

// Pending lists the directory's spreadsheet files sorted by name.
func (q *DirQueue) Pending(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(q.Dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ingest: list %s: %w", q.Dir, err)
	}
	var names []string
	for _, e := range entries {
		if e.Type().IsRegular() && workbook.IsSource(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}

func (q *DirQueue) Open(_ context.Context, name string) (io.ReadCloser, error) {
	path, err := q.path(name)
	if err != nil {
		return nil, err
	}
	return os.Open(path)
}

func (q *DirQueue) Remove(_ context.Context, name string) error {
	path, err := q.path(name)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

func (q *DirQueue) Reject(_ context.Context, name string) error {
	path, err := q.path(name)
	if err != nil {
		return err
	}
	return os.Rename(path, path+RejectedSuffix)
}

func (q *DirQueue) path(name string) (string, error) {
	if err := horosafe.ValidateName(name); err != nil {
		return "", fmt.Errorf("ingest: source %q: %w", name, err)
	}
	path, err := horosafe.SafePath(q.Dir, name)
	if err != nil {
		return "", fmt.Errorf("ingest: source %q: %w", name, err)
	}
	return filepath.Clean(path), nil
}
