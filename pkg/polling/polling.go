package polling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/railtrack-insight/trackwatch/pkg/expiry"
	"github.com/railtrack-insight/trackwatch/pkg/inventory"
	"github.com/railtrack-insight/trackwatch/pkg/storage"
)

// Logger abstracts logging so callers can use logrus, stdlib log, or any
// other logger that satisfies this interface.
type Logger interface {
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
}

// nopLogger silently discards all messages.
type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

// Source lists the current inventory. *inventory.Client satisfies it.
type Source interface {
	List(ctx context.Context) ([]inventory.Item, error)
}

// Locker guards database writes shared with other processes.
// *utils.DBLock satisfies it.
type Locker interface {
	LockContext(ctx context.Context) error
	Unlock() error
}

// Config holds everything Evaluate needs for one run.
type Config struct {
	Source     Source
	DB         *storage.DB // optional; nil = evaluate without recording
	Lock       Locker      // optional; held only while the run is recorded
	Thresholds expiry.Thresholds
	Now        func() time.Time // optional; defaults to time.Now
	Log        Logger           // optional; nil = no logging

	// OnChanges is called after a recorded run with the changes it produced.
	// Not called on the first run. Nil = no callback.
	OnChanges func(changes []storage.Change)
}

// Result holds the outcome of one evaluation.
type Result struct {
	RunID      string
	Report     expiry.Report
	Changes    []storage.Change
	IsFirstRun bool
}

// Evaluate fetches the inventory, aggregates alerts and, when a DB is set,
// records the run and reconciles the alerting set.
func Evaluate(ctx context.Context, cfg Config) (*Result, error) {
	if cfg.Source == nil {
		return nil, errors.New("polling: source is required")
	}
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	th := cfg.Thresholds
	if th == (expiry.Thresholds{}) {
		th = expiry.DefaultThresholds()
	}
	if err := th.Validate(); err != nil {
		return nil, err
	}

	items, err := cfg.Source.List(ctx)
	if err != nil {
		return nil, err
	}

	res := &Result{RunID: uuid.NewString()}
	res.Report = expiry.Aggregate(items, now(), th)
	for _, inv := range res.Report.Invalid {
		log.Warnf("Skipping item %s (lot %s): %s", inv.Item.Key(), inv.Item.LotNumber, inv.Error)
	}
	log.Debugf("Evaluated %d items: %d critical, %d warning, %d expired", len(items), res.Report.Critical, res.Report.Warning, res.Report.Expired)

	if cfg.DB == nil {
		return res, nil
	}

	changes, err := record(ctx, cfg, res, log)
	if err != nil {
		return nil, err
	}
	if res.IsFirstRun {
		return res, nil
	}

	res.Changes = changes
	if cfg.OnChanges != nil && len(changes) > 0 {
		cfg.OnChanges(changes)
	}
	return res, nil
}

func record(ctx context.Context, cfg Config, res *Result, log Logger) ([]storage.Change, error) {
	if cfg.Lock != nil {
		if err := cfg.Lock.LockContext(ctx); err != nil {
			return nil, err
		}
		defer func() {
			if err := cfg.Lock.Unlock(); err != nil {
				log.Warnf("%v", err)
			}
		}()
	}

	var err error
	res.IsFirstRun, err = cfg.DB.IsFirstRun(ctx)
	if err != nil {
		log.Warnf("Could not check previous runs: %v", err)
	}
	if res.IsFirstRun {
		log.Infof("First run, populating database...")
	}

	run := storage.Run{
		ID:       res.RunID,
		RanAt:    res.Report.EvaluatedAt,
		Critical: res.Report.Critical,
		Warning:  res.Report.Warning,
		Expired:  res.Report.Expired,
		Invalid:  len(res.Report.Invalid),
	}
	return cfg.DB.UpsertAlerts(ctx, run, BuildEntries(res.Report))
}

// BuildEntries converts the alerts of a report into storage rows.
func BuildEntries(r expiry.Report) []storage.AlertEntry {
	entries := make([]storage.AlertEntry, 0, len(r.Alerts))
	for _, a := range r.Alerts {
		entries = append(entries, storage.AlertEntry{
			ItemKey:        a.Item.Key(),
			ItemID:         a.Item.ID,
			LotNumber:      a.Item.LotNumber,
			ItemType:       a.Item.ItemType,
			RailPoleNumber: a.Item.RailPoleNumber,
			Vendor:         a.Item.Vendor,
			Severity:       string(a.Severity),
			DaysRemaining:  a.Assessment.DaysRemaining,
			WarrantyEnd:    a.Assessment.WarrantyEnd,
		})
	}
	return entries
}

// Run evaluates once immediately and then on every tick until ctx is done.
// Errors from a single run are logged and do not stop the loop.
func Run(ctx context.Context, cfg Config, interval time.Duration) error {
	if interval <= 0 {
		return errors.New("polling: interval must be positive")
	}
	log := cfg.Log
	if log == nil {
		log = nopLogger{}
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if res, err := Evaluate(ctx, cfg); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Errorf("Evaluation failed: %v", err)
		} else {
			log.Infof("Run %s: %d critical, %d warning, %d changes", res.RunID, res.Report.Critical, res.Report.Warning, len(res.Changes))
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
