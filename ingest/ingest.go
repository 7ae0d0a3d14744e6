// CLAUDE:SUMMARY Ingestion orchestrator: sheet matching, per-category transform, all-or-nothing snapshot write, pending-source lifecycle with a per-root run lock.
// Package ingest turns spreadsheet sources into persisted snapshots.
//
// A run reads one workbook, matches a sheet to each category, transforms
// the matched sheets and writes the assembled document as a new snapshot.
// Either every matched category transforms and the snapshot is written, or
// the run fails and nothing is written. A consumed source is deleted after
// its snapshot is durable; a failed delete is only logged.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/merceaemil/taxonomy-navigator/idgen"
	"github.com/merceaemil/taxonomy-navigator/metrics"
	"github.com/merceaemil/taxonomy-navigator/sheet"
	"github.com/merceaemil/taxonomy-navigator/snapshot"
	"github.com/merceaemil/taxonomy-navigator/taxonomy"
	"github.com/merceaemil/taxonomy-navigator/workbook"
)

// Config configures an Orchestrator.
type Config struct {
	// Store receives snapshots. Required.
	Store snapshot.Store
	// Queue supplies pending sources. Without one ProcessPending is idle.
	Queue Queue
	// Reader parses sources. Default: workbook.New with default limits.
	Reader *workbook.Reader
	// Transformer maps grids to records. Default: sheet.Default.
	Transformer *sheet.Transformer
	// StrictHeaders validates each matched sheet's header row and fails the
	// run on a mismatch.
	StrictHeaders bool
	// Quarantine renames sources that fail to ingest so they are not
	// retried on every run.
	Quarantine bool
	// Metrics is optional.
	Metrics *metrics.Metrics
	// NewRunID names runs in logs. Default: "run_" + UUIDv7.
	NewRunID idgen.Generator
	// Logger for run logs.
	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Reader == nil {
		c.Reader = workbook.New(workbook.Config{Logger: c.Logger})
	}
	if c.Transformer == nil {
		c.Transformer = sheet.Default
	}
	if c.NewRunID == nil {
		c.NewRunID = idgen.Prefixed("run_", idgen.UUIDv7())
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// CategoryResult reports what happened to one category in a run.
type CategoryResult struct {
	Sheet string `json:"sheet"`
	sheet.Stats
}

// Result describes one run.
type Result struct {
	RunID       string                               `json:"runId"`
	Source      string                               `json:"source,omitempty"`
	Processed   bool                                 `json:"processed"`
	Categories  map[taxonomy.Category]CategoryResult `json:"categories,omitempty"`
	Snapshot    snapshot.Info                        `json:"snapshot,omitzero"`
	// Removed is set once a processed source has left the queue. A processed
	// source that is not removed stays pending and is picked up again.
	Removed     bool                                 `json:"removed,omitempty"`
	Quarantined bool                                 `json:"quarantined,omitempty"`
}

// Orchestrator runs ingestion.
type Orchestrator struct {
	cfg    Config
	logger *slog.Logger
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, errors.New("ingest: store is required")
	}
	cfg.defaults()
	return &Orchestrator{cfg: cfg, logger: cfg.Logger}, nil
}

// Transform assembles a document from wb. Categories with no matching sheet
// are absent from the document. The only error is a header mismatch under
// StrictHeaders; it fails the whole document.
func (o *Orchestrator) Transform(ctx context.Context, wb *workbook.Workbook) (*taxonomy.Document, map[taxonomy.Category]CategoryResult, error) {
	names := wb.Names()
	doc := &taxonomy.Document{}
	results := make(map[taxonomy.Category]CategoryResult)

	for _, c := range taxonomy.Categories {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}
		name, ok := MatchSheet(c, names)
		if !ok {
			continue
		}
		g := gridOf(wb, name)
		if o.cfg.StrictHeaders {
			if err := sheet.CheckHeader(c, g); err != nil {
				return nil, nil, fmt.Errorf("ingest: sheet %q: %w", name, err)
			}
		}
		st, err := o.cfg.Transformer.Apply(c, g, doc)
		if err != nil {
			return nil, nil, fmt.Errorf("ingest: sheet %q: %w", name, err)
		}
		results[c] = CategoryResult{Sheet: name, Stats: st}
	}
	return doc, results, nil
}

// Ingest reads one source and persists its snapshot.
func (o *Orchestrator) Ingest(ctx context.Context, name string, src io.Reader) (*Result, error) {
	res := &Result{RunID: o.cfg.NewRunID(), Source: name}
	log := o.logger.With("run_id", res.RunID, "source", name)
	start := time.Now()

	if err := o.ingest(ctx, log, name, src, res); err != nil {
		o.cfg.Metrics.RecordRun(metrics.OutcomeFailed, time.Since(start))
		log.Error("ingest failed", "error", err)
		return res, err
	}
	o.cfg.Metrics.RecordRun(metrics.OutcomeOK, time.Since(start))
	return res, nil
}

func (o *Orchestrator) ingest(ctx context.Context, log *slog.Logger, name string, src io.Reader, res *Result) error {
	wb, err := o.cfg.Reader.Read(ctx, name, src)
	if err != nil {
		return err
	}
	log.Debug("workbook read", "sheets", wb.Names())

	doc, results, err := o.Transform(ctx, wb)
	if err != nil {
		return err
	}
	res.Categories = results
	for _, c := range taxonomy.Categories {
		r, ok := results[c]
		if !ok {
			log.Info("no sheet for category", "category", c)
			continue
		}
		o.cfg.Metrics.RecordRows(string(c), r.Kept, r.Dropped)
		log.Info("category transformed", "category", c, "sheet", r.Sheet, "kept", r.Kept, "dropped", r.Dropped)
	}

	info, err := o.cfg.Store.Put(ctx, name, doc)
	if err != nil {
		return err
	}
	o.cfg.Metrics.RecordSnapshot()
	res.Snapshot = info
	res.Processed = true
	log.Info("snapshot written", "snapshot", info.ID, "bytes", info.Size)
	return nil
}

// ProcessPending ingests the first pending source, if any, then deletes it.
// Concurrent calls against the same queue root run one at a time. A result
// with Processed false and a nil error means there was nothing to do.
func (o *Orchestrator) ProcessPending(ctx context.Context) (*Result, error) {
	q := o.cfg.Queue
	if q == nil {
		return &Result{}, nil
	}

	mu := runLock(q.Root())
	mu.Lock()
	defer mu.Unlock()

	pending, err := q.Pending(ctx)
	if err != nil {
		return nil, err
	}
	if len(pending) == 0 {
		o.cfg.Metrics.RecordRun(metrics.OutcomeIdle, 0)
		return &Result{}, nil
	}
	name := pending[0]

	rc, err := q.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("ingest: open %s: %w", name, err)
	}
	res, err := o.Ingest(ctx, name, rc)
	rc.Close()

	log := o.logger.With("run_id", res.RunID, "source", name)
	if err != nil {
		if o.cfg.Quarantine && quarantinable(err) {
			if qerr := q.Reject(ctx, name); qerr != nil {
				log.Warn("quarantine failed", "error", qerr)
			} else {
				res.Quarantined = true
				log.Warn("source quarantined", "as", name+RejectedSuffix)
			}
		}
		return res, err
	}

	if err := q.Remove(ctx, name); err != nil {
		o.cfg.Metrics.RecordDeleteFailure()
		log.Warn("source not removed after snapshot", "error", err)
		return res, nil
	}
	res.Removed = true
	return res, nil
}

// quarantinable reports whether a failure is a property of the source
// rather than of the environment. Store outages and cancellations leave the
// source in place for the next run.
func quarantinable(err error) bool {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, snapshot.ErrUnavailable):
		return false
	}
	return true
}

func gridOf(wb *workbook.Workbook, name string) sheet.Grid {
	for _, s := range wb.Sheets {
		if s.Name == name {
			return s.Grid
		}
	}
	return nil
}

var runLocks sync.Map // root -> *sync.Mutex

func runLock(root string) *sync.Mutex {
	mu, _ := runLocks.LoadOrStore(root, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
