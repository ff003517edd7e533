package storage

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

type DB struct {
	sql *sql.DB
}

func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	// Ensure schema exists for convenience.
	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS alert_runs (
  run_id    TEXT PRIMARY KEY,
  ran_at    TEXT NOT NULL,
  critical  INTEGER NOT NULL,
  warning   INTEGER NOT NULL,
  expired   INTEGER NOT NULL,
  invalid   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_time ON alert_runs(ran_at);
CREATE TABLE IF NOT EXISTS alert_entries (
  item_key          TEXT PRIMARY KEY,
  item_id           TEXT,
  lot_number        TEXT NOT NULL,
  item_type         TEXT,
  rail_pole_number  TEXT,
  vendor            TEXT,
  severity          TEXT NOT NULL CHECK (severity IN ('critical','warning')),
  days_remaining    INTEGER NOT NULL,
  warranty_end      TEXT NOT NULL,
  run_id            TEXT NOT NULL,
  first_seen_at     TEXT NOT NULL,
  last_seen_at      TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS alert_changes (
  id                INTEGER PRIMARY KEY,
  occurred_at       TEXT NOT NULL,
  run_id            TEXT NOT NULL,
  item_key          TEXT NOT NULL,
  lot_number        TEXT NOT NULL,
  item_type         TEXT,
  rail_pole_number  TEXT,
  severity          TEXT NOT NULL,
  previous_severity TEXT,
  days_remaining    INTEGER NOT NULL,
  change_type       TEXT NOT NULL CHECK (change_type IN ('added','updated','removed'))
);
CREATE INDEX IF NOT EXISTS idx_changes_time ON alert_changes(occurred_at);
CREATE INDEX IF NOT EXISTS idx_changes_item ON alert_changes(item_key, occurred_at);
CREATE TABLE IF NOT EXISTS notifications (
  id                INTEGER PRIMARY KEY,
  sent_at           TEXT NOT NULL,
  item_key          TEXT NOT NULL,
  lot_number        TEXT NOT NULL,
  item_type         TEXT,
  rail_pole_number  TEXT,
  channel           TEXT NOT NULL,
  message           TEXT NOT NULL,
  status            TEXT NOT NULL CHECK (status IN ('sent','failed')),
  error             TEXT
);
CREATE INDEX IF NOT EXISTS idx_notifications_time ON notifications(sent_at);
    `); err != nil {
		db.Close()
		return nil, err
	}
	return &DB{sql: db}, nil
}

func (d *DB) Close() error {
	if d == nil || d.sql == nil {
		return nil
	}
	return d.sql.Close()
}

// IsFirstRun reports whether no evaluation has been recorded yet.
func (d *DB) IsFirstRun(ctx context.Context) (bool, error) {
	var n int
	if err := d.sql.QueryRowContext(ctx, "SELECT COUNT(*) FROM alert_runs").Scan(&n); err != nil {
		return false, err
	}
	return n == 0, nil
}

// UpsertAlerts records a run and reconciles the alerting set with entries.
// Items that start alerting are "added", items whose severity moved are
// "updated", and items that dropped out of the window are "removed".
func (d *DB) UpsertAlerts(ctx context.Context, run Run, entries []AlertEntry) (changes []Change, err error) {
	if run.ID == "" {
		return nil, errors.New("run id is required")
	}
	now := run.RanAt.UTC()
	nowStr := now.Format(timeLayout)

	tx, err := d.sql.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `INSERT INTO alert_runs(run_id, ran_at, critical, warning, expired, invalid) VALUES(?,?,?,?,?,?)`,
		run.ID, nowStr, run.Critical, run.Warning, run.Expired, run.Invalid); err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, "SELECT item_key, severity FROM alert_entries")
	if err != nil {
		return nil, err
	}
	existing := make(map[string]string)
	for rows.Next() {
		var key, sev string
		if err = rows.Scan(&key, &sev); err != nil {
			rows.Close()
			return nil, err
		}
		existing[key] = sev
	}
	if err = rows.Close(); err != nil {
		return nil, err
	}

	for _, e := range entries {
		prev, existed := existing[e.ItemKey]
		end := e.WarrantyEnd.UTC().Format(timeLayout)

		if !existed {
			_, err = tx.ExecContext(ctx, `INSERT INTO alert_entries(item_key, item_id, lot_number, item_type, rail_pole_number, vendor, severity, days_remaining, warranty_end, run_id, first_seen_at, last_seen_at) VALUES(?,?,?,?,?,?,?,?,?,?,?,?)`,
				e.ItemKey, nullIfEmpty(e.ItemID), e.LotNumber, nullIfEmpty(e.ItemType), nullIfEmpty(e.RailPoleNumber), nullIfEmpty(e.Vendor), e.Severity, e.DaysRemaining, end, run.ID, nowStr, nowStr)
			if err != nil {
				return nil, err
			}
			changes = append(changes, changeFor(e, run.ID, now, ChangeAdded, ""))
			existing[e.ItemKey] = e.Severity
			continue
		}

		_, err = tx.ExecContext(ctx, `UPDATE alert_entries SET item_id = ?, lot_number = ?, item_type = ?, rail_pole_number = ?, vendor = ?, severity = ?, days_remaining = ?, warranty_end = ?, run_id = ?, last_seen_at = ? WHERE item_key = ?`,
			nullIfEmpty(e.ItemID), e.LotNumber, nullIfEmpty(e.ItemType), nullIfEmpty(e.RailPoleNumber), nullIfEmpty(e.Vendor), e.Severity, e.DaysRemaining, end, run.ID, nowStr, e.ItemKey)
		if err != nil {
			return nil, err
		}
		if prev != e.Severity {
			changes = append(changes, changeFor(e, run.ID, now, ChangeUpdated, prev))
			existing[e.ItemKey] = e.Severity
		}
	}

	// Sweep: entries not touched in this run stopped alerting.
	staleRows, err := tx.QueryContext(ctx, "SELECT item_key, lot_number, item_type, rail_pole_number, severity, days_remaining FROM alert_entries WHERE run_id != ?", run.ID)
	if err != nil {
		return nil, err
	}
	var removed []Change
	for staleRows.Next() {
		var c Change
		var itemType, pole sql.NullString
		if err = staleRows.Scan(&c.ItemKey, &c.LotNumber, &itemType, &pole, &c.Severity, &c.DaysRemaining); err != nil {
			staleRows.Close()
			return nil, err
		}
		c.ItemType = itemType.String
		c.RailPoleNumber = pole.String
		c.OccurredAt = now
		c.RunID = run.ID
		c.PreviousSeverity = c.Severity
		c.ChangeType = ChangeRemoved
		removed = append(removed, c)
	}
	if err = staleRows.Close(); err != nil {
		return nil, err
	}
	if len(removed) > 0 {
		if _, err = tx.ExecContext(ctx, `DELETE FROM alert_entries WHERE run_id != ?`, run.ID); err != nil {
			return nil, err
		}
		changes = append(changes, removed...)
	}

	for _, c := range changes {
		_, err = tx.ExecContext(ctx, `INSERT INTO alert_changes(occurred_at, run_id, item_key, lot_number, item_type, rail_pole_number, severity, previous_severity, days_remaining, change_type) VALUES(?,?,?,?,?,?,?,?,?,?)`,
			nowStr, c.RunID, c.ItemKey, c.LotNumber, nullIfEmpty(c.ItemType), nullIfEmpty(c.RailPoleNumber), c.Severity, nullIfEmpty(c.PreviousSeverity), c.DaysRemaining, c.ChangeType)
		if err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, err
	}
	return changes, nil
}

func changeFor(e AlertEntry, runID string, at time.Time, changeType, prev string) Change {
	return Change{
		OccurredAt:       at,
		RunID:            runID,
		ItemKey:          e.ItemKey,
		LotNumber:        e.LotNumber,
		ItemType:         e.ItemType,
		RailPoleNumber:   e.RailPoleNumber,
		Severity:         e.Severity,
		PreviousSeverity: prev,
		DaysRemaining:    e.DaysRemaining,
		ChangeType:       changeType,
	}
}

// ListActiveAlerts returns the alerting set recorded by the latest run.
func (d *DB) ListActiveAlerts(ctx context.Context) ([]AlertEntry, error) {
	rows, err := d.sql.QueryContext(ctx, `SELECT item_key, item_id, lot_number, item_type, rail_pole_number, vendor, severity, days_remaining, warranty_end, first_seen_at, last_seen_at FROM alert_entries ORDER BY days_remaining, lot_number`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []AlertEntry
	for rows.Next() {
		var e AlertEntry
		var itemID, itemType, pole, vendor sql.NullString
		var end, first, last string
		if err := rows.Scan(&e.ItemKey, &itemID, &e.LotNumber, &itemType, &pole, &vendor, &e.Severity, &e.DaysRemaining, &end, &first, &last); err != nil {
			return nil, err
		}
		e.ItemID = itemID.String
		e.ItemType = itemType.String
		e.RailPoleNumber = pole.String
		e.Vendor = vendor.String
		e.WarrantyEnd = parseTime(end)
		e.FirstSeenAt = parseTime(first)
		e.LastSeenAt = parseTime(last)
		out = append(out, e)
	}
	return out, rows.Err()
}

// ListRecentChanges returns the most recent N changes.
func (d *DB) ListRecentChanges(ctx context.Context, limit int) ([]Change, error) {
	if limit <= 0 {
		limit = 50
	}
	q := "SELECT occurred_at, run_id, item_key, lot_number, item_type, rail_pole_number, severity, previous_severity, days_remaining, change_type FROM alert_changes ORDER BY occurred_at DESC, id DESC LIMIT ?"
	rows, err := d.sql.QueryContext(ctx, q, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	changes := []Change{}
	for rows.Next() {
		var c Change
		var occurredAt string
		var itemType, pole, prev sql.NullString
		if err := rows.Scan(&occurredAt, &c.RunID, &c.ItemKey, &c.LotNumber, &itemType, &pole, &c.Severity, &prev, &c.DaysRemaining, &c.ChangeType); err != nil {
			return nil, err
		}
		c.OccurredAt = parseTime(occurredAt)
		c.ItemType = itemType.String
		c.RailPoleNumber = pole.String
		c.PreviousSeverity = prev.String
		changes = append(changes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return changes, nil
}

// RecordNotification stores a send attempt and returns its row id.
func (d *DB) RecordNotification(ctx context.Context, n Notification) (int64, error) {
	if n.Status != StatusSent && n.Status != StatusFailed {
		return 0, errors.New("notification status must be sent or failed")
	}
	res, err := d.sql.ExecContext(ctx, `INSERT INTO notifications(sent_at, item_key, lot_number, item_type, rail_pole_number, channel, message, status, error) VALUES(?,?,?,?,?,?,?,?,?)`,
		n.SentAt.UTC().Format(timeLayout), n.ItemKey, n.LotNumber, nullIfEmpty(n.ItemType), nullIfEmpty(n.RailPoleNumber), n.Channel, n.Message, n.Status, nullIfEmpty(n.Error))
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListNotifications returns the most recent N send attempts.
func (d *DB) ListNotifications(ctx context.Context, limit int) ([]Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.sql.QueryContext(ctx, `SELECT id, sent_at, item_key, lot_number, item_type, rail_pole_number, channel, message, status, error FROM notifications ORDER BY sent_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Notification{}
	for rows.Next() {
		var n Notification
		var sentAt string
		var itemType, pole, errText sql.NullString
		if err := rows.Scan(&n.ID, &sentAt, &n.ItemKey, &n.LotNumber, &itemType, &pole, &n.Channel, &n.Message, &n.Status, &errText); err != nil {
			return nil, err
		}
		n.SentAt = parseTime(sentAt)
		n.ItemType = itemType.String
		n.RailPoleNumber = pole.String
		n.Error = errText.String
		out = append(out, n)
	}
	return out, rows.Err()
}

func (d *DB) GetStats(ctx context.Context) (Stats, error) {
	var s Stats
	var lastRun sql.NullString
	query := `
		SELECT
			(SELECT COUNT(*) FROM alert_runs),
			(SELECT MAX(ran_at) FROM alert_runs),
			(SELECT COUNT(*) FROM alert_entries WHERE severity = 'critical'),
			(SELECT COUNT(*) FROM alert_entries WHERE severity = 'warning'),
			(SELECT COUNT(*) FROM alert_changes),
			(SELECT COUNT(*) FROM notifications WHERE status = 'sent'),
			(SELECT COUNT(*) FROM notifications WHERE status = 'failed');
	`
	if err := d.sql.QueryRowContext(ctx, query).Scan(&s.Runs, &lastRun, &s.ActiveCritical, &s.ActiveWarning, &s.Changes, &s.NotificationsSent, &s.NotificationsFailed); err != nil {
		return Stats{}, err
	}
	if lastRun.Valid {
		s.LastRunAt = parseTime(lastRun.String)
	}
	return s, nil
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(timeLayout, s); err == nil {
		return t
	}
	if t, err := time.Parse("2006-01-02 15:04:05", s); err == nil {
		return t
	}
	return time.Time{}
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
