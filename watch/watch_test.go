package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func counter() (ChangeDetector, *atomic.Int64) {
	var v atomic.Int64
	return func(context.Context) (int64, error) { return v.Load(), nil }, &v
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestOnChange_FiresOnChange(t *testing.T) {
	det, v := counter()
	w := New(Options{Interval: 10 * time.Millisecond, Detector: det})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int64
	go w.OnChange(ctx, func() error { calls.Add(1); return nil })

	time.Sleep(30 * time.Millisecond)
	if calls.Load() != 0 {
		t.Fatal("action fired without a change")
	}

	v.Store(1)
	waitFor(t, "first action", func() bool { return calls.Load() == 1 })
	waitFor(t, "version advance", func() bool { return w.Version() == 1 })
}

func TestOnChange_Debounce(t *testing.T) {
	det, v := counter()
	w := New(Options{Interval: 5 * time.Millisecond, Debounce: 60 * time.Millisecond, Detector: det})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int64
	go w.OnChange(ctx, func() error { calls.Add(1); return nil })

	time.Sleep(15 * time.Millisecond)
	for i := int64(1); i <= 3; i++ {
		v.Store(i)
		time.Sleep(15 * time.Millisecond)
	}
	waitFor(t, "debounced action", func() bool { return calls.Load() >= 1 })
	time.Sleep(100 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("calls = %d, want 1 after a burst", n)
	}
	if w.Version() != 3 {
		t.Fatalf("version = %d, want 3", w.Version())
	}
}

func TestOnChange_RetriesFailedAction(t *testing.T) {
	det, v := counter()
	w := New(Options{Interval: 5 * time.Millisecond, Detector: det})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int64
	go w.OnChange(ctx, func() error {
		if calls.Add(1) == 1 {
			return errors.New("first attempt fails")
		}
		return nil
	})

	time.Sleep(15 * time.Millisecond)
	v.Store(7)
	waitFor(t, "retry", func() bool { return w.Version() == 7 })
	if st := w.Stats(); st.Errors < 1 || st.Reloads != 1 {
		t.Fatalf("stats = %+v", st)
	}
}

func TestDirDetector(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	det := DirDetector(dir, func(name string) bool { return strings.HasSuffix(name, ".xlsx") })

	empty, err := det(ctx)
	if err != nil {
		t.Fatal(err)
	}

	os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("x"), 0o644)
	if v, _ := det(ctx); v != empty {
		t.Error("filtered file changed the token")
	}

	os.WriteFile(filepath.Join(dir, "book.xlsx"), []byte("x"), 0o644)
	added, _ := det(ctx)
	if added == empty {
		t.Fatal("new source did not change the token")
	}
	if added < 0 {
		t.Fatalf("negative token %d", added)
	}

	os.Remove(filepath.Join(dir, "book.xlsx"))
	if v, _ := det(ctx); v != empty {
		t.Error("removing the source should restore the empty token")
	}

	missing := DirDetector(filepath.Join(dir, "nope"), nil)
	if _, err := missing(ctx); err != nil {
		t.Errorf("missing dir: %v", err)
	}
}
