package polling

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/railtrack-insight/trackwatch/pkg/expiry"
	"github.com/railtrack-insight/trackwatch/pkg/inventory"
	"github.com/railtrack-insight/trackwatch/pkg/storage"
)

type fakeSource struct {
	mu    sync.Mutex
	items []inventory.Item
	err   error
	calls int
}

func (f *fakeSource) List(ctx context.Context) ([]inventory.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.items, f.err
}

func (f *fakeSource) callsSafe() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func at(day int) func() time.Time {
	return func() time.Time { return time.Date(2025, 12, day, 0, 0, 0, 0, time.UTC) }
}

func sampleItems() []inventory.Item {
	return []inventory.Item{
		{ID: "1", LotNumber: "L-1", ItemType: "Rail Clip", InstallDate: "2023-12-20", WarrantyPeriod: "2"},
		{ID: "2", LotNumber: "L-2", ItemType: "Liner", InstallDate: "2024-01-10", WarrantyPeriod: "2 Years"},
		{ID: "3", LotNumber: "L-3", ItemType: "Sleeper", InstallDate: "not a date", WarrantyPeriod: "2"},
	}
}

func TestEvaluateWithoutDB(t *testing.T) {
	src := &fakeSource{items: sampleItems()}
	res, err := Evaluate(context.Background(), Config{Source: src, Now: at(1)})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if res.RunID == "" {
		t.Fatal("expected a run id")
	}
	// L-1 ends 2025-12-20 (19 days), L-2 ends 2026-01-10 (40 days).
	if res.Report.Total != 1 || res.Report.Warning != 1 || len(res.Report.Invalid) != 1 {
		t.Fatalf("unexpected report: %#v", res.Report)
	}
	if res.Changes != nil {
		t.Fatalf("no changes expected without a db, got %#v", res.Changes)
	}
}

func TestEvaluateRecordsChanges(t *testing.T) {
	ctx := context.Background()
	db, err := storage.Open(filepath.Join(t.TempDir(), "trackwatch.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	src := &fakeSource{items: sampleItems()}
	var seen []storage.Change
	cfg := Config{Source: src, DB: db, Now: at(1), OnChanges: func(c []storage.Change) { seen = append(seen, c...) }}

	res, err := Evaluate(ctx, cfg)
	if err != nil {
		t.Fatalf("first Evaluate: %v", err)
	}
	if !res.IsFirstRun || len(res.Changes) != 0 || len(seen) != 0 {
		t.Fatalf("first run should not report changes: %#v", res)
	}

	// Two weeks later L-1 is critical and L-2 enters the window.
	cfg.Now = at(15)
	res, err = Evaluate(ctx, cfg)
	if err != nil {
		t.Fatalf("second Evaluate: %v", err)
	}
	var got []string
	for _, c := range res.Changes {
		got = append(got, c.ChangeType+" "+c.LotNumber+" "+c.Severity)
	}
	want := []string{"updated L-1 critical", "added L-2 warning"}
	if res.IsFirstRun || !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected changes.\nwant: %#v\ngot:  %#v", want, got)
	}
	if len(seen) != 2 {
		t.Fatalf("OnChanges should receive the changes, got %d", len(seen))
	}

	st, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if st.Runs != 2 || st.ActiveCritical != 1 || st.ActiveWarning != 1 {
		t.Fatalf("unexpected stats: %#v", st)
	}
}

func TestEvaluateErrors(t *testing.T) {
	if _, err := Evaluate(context.Background(), Config{}); err == nil {
		t.Fatal("expected error without source")
	}
	boom := errors.New("boom")
	if _, err := Evaluate(context.Background(), Config{Source: &fakeSource{err: boom}}); !errors.Is(err, boom) {
		t.Fatalf("expected source error, got %v", err)
	}
	bad := Config{Source: &fakeSource{}, Thresholds: expiry.Thresholds{AlertDays: 5, CriticalDays: 10}}
	if _, err := Evaluate(context.Background(), bad); err == nil {
		t.Fatal("expected threshold validation error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	src := &fakeSource{}
	cfg := Config{Source: src}
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg, time.Hour) }()

	deadline := time.After(5 * time.Second)
	for src.callsSafe() == 0 {
		select {
		case <-deadline:
			t.Fatal("Run did not evaluate")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if err := Run(context.Background(), cfg, 0); err == nil {
		t.Fatal("expected error for zero interval")
	}
}

type countingLock struct {
	held, locks, unlocks int
	err                  error
}

func (l *countingLock) LockContext(ctx context.Context) error {
	if l.err != nil {
		return l.err
	}
	l.locks++
	l.held++
	return nil
}

func (l *countingLock) Unlock() error {
	l.unlocks++
	l.held--
	return nil
}

func TestEvaluateLocksOnlyAroundRecording(t *testing.T) {
	ctx := context.Background()
	lock := &countingLock{}

	if _, err := Evaluate(ctx, Config{Source: &fakeSource{items: sampleItems()}, Lock: lock, Now: at(1)}); err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	if lock.locks != 0 {
		t.Fatalf("lock taken without a db: %d", lock.locks)
	}

	db, err := storage.Open(filepath.Join(t.TempDir(), "trackwatch.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer db.Close()

	cfg := Config{Source: &fakeSource{items: sampleItems()}, DB: db, Lock: lock, Now: at(1)}
	for i := 0; i < 2; i++ {
		if _, err := Evaluate(ctx, cfg); err != nil {
			t.Fatalf("Evaluate %d: %v", i, err)
		}
	}
	if lock.locks != 2 || lock.unlocks != 2 || lock.held != 0 {
		t.Fatalf("unexpected lock usage: %#v", lock)
	}

	lock.err = errors.New("busy")
	if _, err := Evaluate(ctx, cfg); !errors.Is(err, lock.err) {
		t.Fatalf("expected lock error, got %v", err)
	}
}
