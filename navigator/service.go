// CLAUDE:SUMMARY Navigator service: wires store, intake queue, orchestrator and metrics; read operations (latest, hierarchy, search, facets, snapshots) over the newest snapshot.
// Package navigator is the UI-facing surface of taxonav. A Service owns the
// snapshot store and the ingestion orchestrator and answers the questions the
// browsing UI asks about the newest snapshot. Handler exposes it over HTTP
// and RegisterMCP over MCP.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/merceaemil/taxonomy-navigator/hierarchy"
	"github.com/merceaemil/taxonomy-navigator/ingest"
	"github.com/merceaemil/taxonomy-navigator/metrics"
	"github.com/merceaemil/taxonomy-navigator/normalize"
	"github.com/merceaemil/taxonomy-navigator/search"
	"github.com/merceaemil/taxonomy-navigator/sheet"
	"github.com/merceaemil/taxonomy-navigator/snapshot"
	"github.com/merceaemil/taxonomy-navigator/taxonomy"
	"github.com/merceaemil/taxonomy-navigator/watch"
	"github.com/merceaemil/taxonomy-navigator/workbook"
)

// Service answers taxonomy queries and runs ingestion.
type Service struct {
	cfg     *Config
	store   snapshot.Store
	queue   ingest.Queue
	orch    *ingest.Orchestrator
	metrics *metrics.Metrics
	logger  *slog.Logger
	closers []io.Closer
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// WithStore replaces the store built from the config.
func WithStore(st snapshot.Store) Option { return func(s *Service) { s.store = st } }

// WithQueue replaces the uploads directory queue. Watch still polls the
// uploads directory.
func WithQueue(q ingest.Queue) Option { return func(s *Service) { s.queue = q } }

// WithMetrics shares a metrics instance. Default: a fresh one.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Service) { s.metrics = m } }

// New validates cfg, creates the data directories and opens the store.
func New(cfg *Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("navigator: config: %w", err)
	}
	s := &Service{cfg: cfg}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.metrics == nil {
		s.metrics = metrics.New()
	}

	if s.queue == nil {
		q, err := ingest.NewDirQueue(cfg.Uploads())
		if err != nil {
			return nil, err
		}
		s.queue = q
	}

	if s.store == nil {
		st, err := s.openStore()
		if err != nil {
			return nil, err
		}
		s.store = st
	}

	n := normalize.New(cfg.SanitizeRichText)
	var err error
	s.orch, err = ingest.New(ingest.Config{
		Store:         s.store,
		Queue:         s.queue,
		Reader:        workbook.New(workbook.Config{MaxFileSize: cfg.MaxFileBytes(), Logger: s.logger}),
		Transformer:   &sheet.Transformer{Rich: n.TextToHTML},
		StrictHeaders: cfg.StrictHeaders,
		Quarantine:    cfg.QuarantineFailed,
		Metrics:       s.metrics,
		Logger:        s.logger,
	})
	if err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) openStore() (snapshot.Store, error) {
	switch s.cfg.Store {
	case StoreSQLite:
		st, err := snapshot.OpenSQLite(s.cfg.SQLite())
		if err != nil {
			return nil, err
		}
		s.closers = append(s.closers, st)
		return st, nil
	default:
		return snapshot.NewFileStore(s.cfg.Parsed(), snapshot.WithLogger(s.logger))
	}
}

// Close releases the store.
func (s *Service) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c.Close())
	}
	s.closers = nil
	return errors.Join(errs...)
}

// Metrics returns the service's collectors.
func (s *Service) Metrics() *metrics.Metrics { return s.metrics }

// Store returns the snapshot store.
func (s *Service) Store() snapshot.Store { return s.store }

// Orchestrator returns the ingestion orchestrator.
func (s *Service) Orchestrator() *ingest.Orchestrator { return s.orch }

// Latest returns the newest snapshot, or snapshot.ErrNotFound.
func (s *Service) Latest(ctx context.Context) (snapshot.Info, *taxonomy.Document, error) {
	return snapshot.Latest(ctx, s.store)
}

// ProcessAndLatest ingests the first pending source, if any, then returns
// the newest snapshot. A failed ingestion fails the call; the newest older
// snapshot is not served in its place.
func (s *Service) ProcessAndLatest(ctx context.Context) (snapshot.Info, *taxonomy.Document, error) {
	if _, err := s.orch.ProcessPending(ctx); err != nil {
		return snapshot.Info{}, nil, err
	}
	return s.Latest(ctx)
}

// Ingest processes pending sources until none is left or one fails. It
// returns the results of the runs that processed something. A source that
// could not be removed after its snapshot ends the batch, since the next
// run would pick it up again.
func (s *Service) Ingest(ctx context.Context) ([]*ingest.Result, error) {
	var out []*ingest.Result
	seen := make(map[string]bool)
	for {
		res, err := s.orch.ProcessPending(ctx)
		if res != nil && res.RunID != "" {
			out = append(out, res)
		}
		if err != nil {
			return out, err
		}
		if !res.Processed {
			return out, nil
		}
		if !res.Removed || seen[res.Source] {
			s.logger.Warn("source still pending after ingest, stopping batch", "source", res.Source, "run_id", res.RunID)
			return out, nil
		}
		seen[res.Source] = true
	}
}

// Summary describes the newest snapshot without its records.
type Summary struct {
	FileName string                    `json:"fileName"`
	Snapshot snapshot.Info             `json:"snapshot"`
	Counts   map[taxonomy.Category]int `json:"counts"`
}

// Summary returns record counts per category present in the newest
// snapshot.
func (s *Service) Summary(ctx context.Context) (*Summary, error) {
	info, doc, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	sum := &Summary{FileName: info.ID, Snapshot: info, Counts: make(map[taxonomy.Category]int)}
	for _, c := range taxonomy.Categories {
		if doc.Has(c) {
			sum.Counts[c] = doc.Count(c)
		}
	}
	return sum, nil
}

func (s *Service) records(ctx context.Context, c taxonomy.Category) ([]taxonomy.Record, error) {
	_, doc, err := s.Latest(ctx)
	if err != nil {
		return nil, err
	}
	return doc.Records(c), nil
}

// Hierarchy groups the newest snapshot's records of category c.
func (s *Service) Hierarchy(ctx context.Context, c taxonomy.Category, f taxonomy.Filters) (*hierarchy.Tree, error) {
	recs, err := s.records(ctx, c)
	if err != nil {
		return nil, err
	}
	return hierarchy.Build(c, recs, f), nil
}

// Search runs a free-text query over the newest snapshot's records of
// category c.
func (s *Service) Search(ctx context.Context, c taxonomy.Category, query string, f taxonomy.Filters) ([]taxonomy.Record, error) {
	recs, err := s.records(ctx, c)
	if err != nil {
		return nil, err
	}
	out := search.Search(recs, query, f)
	s.metrics.RecordSearch(len(out))
	return out, nil
}

// Facets lists filter values for category c in the newest snapshot.
func (s *Service) Facets(ctx context.Context, c taxonomy.Category) (search.FacetValues, error) {
	recs, err := s.records(ctx, c)
	if err != nil {
		return search.FacetValues{}, err
	}
	return search.Facets(recs), nil
}

// Snapshots lists stored snapshots, newest first.
func (s *Service) Snapshots(ctx context.Context) ([]snapshot.Info, error) {
	infos, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if infos == nil {
		infos = []snapshot.Info{}
	}
	return infos, nil
}

// Snapshot loads one stored snapshot by id.
func (s *Service) Snapshot(ctx context.Context, id string) (*taxonomy.Document, error) {
	return s.store.Get(ctx, id)
}

// Watch polls the uploads directory and ingests new sources as they appear.
// It blocks until ctx is cancelled. A zero watch interval returns at once.
func (s *Service) Watch(ctx context.Context) {
	if s.cfg.WatchInterval <= 0 {
		return
	}
	w := watch.New(watch.Options{
		Interval: s.cfg.WatchInterval,
		Debounce: s.cfg.WatchInterval,
		Detector: watch.DirDetector(s.cfg.Uploads(), workbook.IsSource),
		Logger:   s.logger,
	})
	s.logger.Info("watching uploads", "dir", s.cfg.Uploads(), "interval", s.cfg.WatchInterval)
	w.OnChange(ctx, func() error {
		_, err := s.Ingest(ctx)
		return err
	})
	st := w.Stats()
	s.logger.Info("uploads watcher stopped", "checks", st.Checks, "changes", st.ChangesDetected,
		"ingests", st.Reloads, "errors", st.Errors)
}
