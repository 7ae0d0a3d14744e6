// CLAUDE:SUMMARY Poll loop that detects changes through a version token and runs a debounced action; includes a directory detector.
// Package watch provides a "poll, detect change, debounce, act" loop. The
// navigator uses it to ingest new spreadsheets as soon as they land in the
// uploads directory.
//
// Typical usage:
//
//	w := watch.New(watch.Options{Interval: 2 * time.Second, Detector: watch.DirDetector(dir, workbook.IsSource)})
//	go w.OnChange(ctx, func() error { _, err := orch.ProcessPending(ctx); return err })
package watch

import (
	"context"
	"encoding/binary"
	"hash/fnv"
	"log/slog"
	"os"
	"sort"
	"sync/atomic"
	"time"
)

// ChangeDetector returns a version token. Two calls that return different
// values mean "something changed". Tokens are non-negative.
type ChangeDetector func(ctx context.Context) (int64, error)

// Options tunes the watcher behaviour.
type Options struct {
	// Interval is the polling frequency. Default: 1s.
	Interval time.Duration
	// Debounce is the quiet period after a change before the action fires.
	// Further changes during the window restart it. 0 fires immediately.
	Debounce time.Duration
	// Detector produces the version token. Required.
	Detector ChangeDetector
	// Logger overrides the default slog logger.
	Logger *slog.Logger
}

func (o *Options) defaults() {
	if o.Interval <= 0 {
		o.Interval = time.Second
	}
	if o.Detector == nil {
		o.Detector = func(context.Context) (int64, error) { return 0, nil }
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
}

// Watcher polls a detector and runs an action when the token changes.
type Watcher struct {
	opts Options

	version atomic.Int64

	checks   atomic.Int64
	changes  atomic.Int64
	errors   atomic.Int64
	reloads  atomic.Int64
	reloadNs atomic.Int64
}

// Stats are point-in-time counters.
type Stats struct {
	Checks          int64         `json:"checks"`
	ChangesDetected int64         `json:"changes_detected"`
	Errors          int64         `json:"errors"`
	Reloads         int64         `json:"reloads"`
	AvgReloadTime   time.Duration `json:"avg_reload_time"`
}

// New creates a Watcher. Call OnChange to start the loop.
func New(opts Options) *Watcher {
	opts.defaults()
	return &Watcher{opts: opts}
}

// Stats returns the current counters.
func (w *Watcher) Stats() Stats {
	s := Stats{
		Checks:          w.checks.Load(),
		ChangesDetected: w.changes.Load(),
		Errors:          w.errors.Load(),
		Reloads:         w.reloads.Load(),
	}
	if s.Reloads > 0 {
		s.AvgReloadTime = time.Duration(w.reloadNs.Load() / s.Reloads)
	}
	return s
}

// Version returns the last version the action succeeded for.
func (w *Watcher) Version() int64 { return w.version.Load() }

// OnChange blocks until ctx is cancelled. The token seen at start is the
// baseline; the action runs when a later token differs and the debounce
// window passes. A failed action leaves the version unchanged so the next
// poll retries it.
func (w *Watcher) OnChange(ctx context.Context, action func() error) {
	log := w.opts.Logger

	v, err := w.opts.Detector(ctx)
	if err != nil {
		log.Warn("watch: initial version check failed", "error", err)
	} else {
		w.version.Store(v)
	}

	ticker := time.NewTicker(w.opts.Interval)
	defer ticker.Stop()

	var debounceTimer *time.Timer
	var debounceCh <-chan time.Time
	pending := int64(-1)

	log.Info("watch: started", "interval", w.opts.Interval, "debounce", w.opts.Debounce)

	for {
		select {
		case <-ctx.Done():
			log.Info("watch: stopped")
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			return

		case <-ticker.C:
			w.checks.Add(1)
			cur, err := w.opts.Detector(ctx)
			if err != nil {
				w.errors.Add(1)
				log.Warn("watch: version check failed", "error", err)
				continue
			}
			if cur == w.version.Load() || cur == pending {
				continue
			}
			w.changes.Add(1)
			pending = cur
			if w.opts.Debounce <= 0 {
				w.fire(log, action, pending)
				pending = -1
				continue
			}
			if debounceTimer != nil {
				debounceTimer.Stop()
			}
			debounceTimer = time.NewTimer(w.opts.Debounce)
			debounceCh = debounceTimer.C
			log.Debug("watch: change detected, debouncing", "pending_version", cur)

		case <-debounceCh:
			debounceCh = nil
			if pending >= 0 {
				w.fire(log, action, pending)
				pending = -1
			}
		}
	}
}

func (w *Watcher) fire(log *slog.Logger, action func() error, ver int64) {
	start := time.Now()
	if err := action(); err != nil {
		w.errors.Add(1)
		log.Error("watch: action failed", "error", err, "version", ver)
		return
	}
	elapsed := time.Since(start)
	w.reloads.Add(1)
	w.reloadNs.Add(int64(elapsed))
	w.version.Store(ver)
	log.Debug("watch: action complete", "version", ver, "duration", elapsed)
}

// DirDetector fingerprints the regular files in dir that keep accepts (all
// files when keep is nil): name, size and modification time. Any file
// added, removed, rewritten or touched changes the token. A missing
// directory reads as empty.
func DirDetector(dir string, keep func(name string) bool) ChangeDetector {
	return func(ctx context.Context) (int64, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			if os.IsNotExist(err) {
				return 0, nil
			}
			return 0, err
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

		h := fnv.New64a()
		var buf [16]byte
		for _, e := range entries {
			if !e.Type().IsRegular() || (keep != nil && !keep(e.Name())) {
				continue
			}
			fi, err := e.Info()
			if err != nil {
				continue
			}
			h.Write([]byte(e.Name()))
			binary.LittleEndian.PutUint64(buf[:8], uint64(fi.Size()))
			binary.LittleEndian.PutUint64(buf[8:], uint64(fi.ModTime().UnixNano()))
			h.Write(buf[:])
		}
		return int64(h.Sum64() >> 1), nil
	}
}
