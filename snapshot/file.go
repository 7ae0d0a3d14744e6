package snapshot

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/merceaemil/taxonomy-navigator/horosafe"
	"github.com/merceaemil/taxonomy-navigator/taxonomy"
)

// FileStore keeps each snapshot as a .json file in one directory. Recency is
// the file's modification time, ties broken by the greater name, so
// snapshots copied in by hand are picked up like any other.
type FileStore struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// FileOption customises a FileStore.
type FileOption func(*FileStore)

// WithClock replaces time.Now for naming and timestamping snapshots.
func WithClock(now func() time.Time) FileOption { return func(s *FileStore) { s.now = now } }

// WithLogger sets the store's logger. Default: slog.Default().
func WithLogger(l *slog.Logger) FileOption { return func(s *FileStore) { s.logger = l } }

// NewFileStore creates the directory if needed.
func NewFileStore(dir string, opts ...FileOption) (*FileStore, error) {
	s := &FileStore{dir: dir, now: time.Now, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, unavailable("mkdir "+dir, err)
	}
	return s, nil
}

// Dir returns the snapshot directory.
func (s *FileStore) Dir() string { return s.dir }

// Put writes doc atomically (temp file then rename) under a fresh name.
func (s *FileStore) Put(ctx context.Context, source string, doc *taxonomy.Document) (Info, error) {
	if err := ctx.Err(); err != nil {
		return Info{}, err
	}
	data, err := taxonomy.Encode(doc)
	if err != nil {
		return Info{}, fmt.Errorf("snapshot: encode: %w", err)
	}

	at := s.now()
	name := Name(at, source)
	// Same millisecond and source: step the timestamp rather than overwrite.
	for i := 0; ; i++ {
		if _, err := os.Stat(filepath.Join(s.dir, name)); errors.Is(err, fs.ErrNotExist) {
			break
		}
		if i == 1000 {
			return Info{}, unavailable("name", fmt.Errorf("no free name for %s", source))
		}
		at = at.Add(time.Millisecond)
		name = Name(at, source)
	}

	target, err := horosafe.SafePath(s.dir, name)
	if err != nil {
		return Info{}, fmt.Errorf("snapshot: %s: %w", name, err)
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return Info{}, unavailable("write tmp", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return Info{}, unavailable("rename", err)
	}

	info := Info{ID: name, Source: sourceOf(name), CreatedAt: at, Size: int64(len(data))}
	if st, err := os.Stat(target); err == nil {
		info.CreatedAt = st.ModTime()
	}
	s.logger.Debug("snapshot written", "id", name, "bytes", len(data))
	return info, nil
}

// List returns every .json snapshot, newest first.
func (s *FileStore) List(ctx context.Context) ([]Info, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, unavailable("list", err)
	}

	infos := make([]Info, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}
		infos = append(infos, Info{
			ID:        e.Name(),
			Source:    sourceOf(e.Name()),
			CreatedAt: fi.ModTime(),
			Size:      fi.Size(),
		})
	}
	sort.SliceStable(infos, func(i, j int) bool {
		if !infos[i].CreatedAt.Equal(infos[j].CreatedAt) {
			return infos[i].CreatedAt.After(infos[j].CreatedAt)
		}
		return infos[i].ID > infos[j].ID
	})
	return infos, nil
}

// Get reads and decodes one snapshot.
func (s *FileStore) Get(ctx context.Context, id string) (*taxonomy.Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := horosafe.ValidateName(id); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	path, err := horosafe.SafePath(s.dir, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
		}
		return nil, unavailable("read "+id, err)
	}
	doc, err := taxonomy.Decode(data)
	if err != nil {
		return nil, unavailable("decode "+id, err)
	}
	return doc, nil
}

// sourceOf recovers the source part of "<ms>-<source>.json".
func sourceOf(id string) string {
	prefix, rest, ok := strings.Cut(id, "-")
	if !ok {
		return id
	}
	if _, err := strconv.ParseInt(prefix, 10, 64); err != nil {
		return id
	}
	return rest
}
