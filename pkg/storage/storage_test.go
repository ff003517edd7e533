package storage

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"
	"time"
)

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "nested", "trackwatch.sqlite"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func entry(key, lot, sev string, days int) AlertEntry {
	return AlertEntry{
		ItemKey:        key,
		LotNumber:      lot,
		ItemType:       "Liner",
		RailPoleNumber: "RP-" + lot,
		Severity:       sev,
		DaysRemaining:  days,
		WarrantyEnd:    time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func changeSummary(changes []Change) []string {
	var out []string
	for _, c := range changes {
		out = append(out, c.ChangeType+" "+c.ItemKey+" "+c.PreviousSeverity+">"+c.Severity)
	}
	return out
}

func TestUpsertAlertsLifecycle(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	day := time.Date(2025, 12, 1, 8, 0, 0, 0, time.UTC)

	first, err := db.IsFirstRun(ctx)
	if err != nil || !first {
		t.Fatalf("expected first run, got %v (%v)", first, err)
	}

	changes, err := db.UpsertAlerts(ctx, Run{ID: "r1", RanAt: day, Warning: 2}, []AlertEntry{
		entry("id:1", "A", "warning", 20),
		entry("id:2", "B", "warning", 12),
	})
	if err != nil {
		t.Fatalf("run 1: %v", err)
	}
	want := []string{"added id:1 >warning", "added id:2 >warning"}
	if got := changeSummary(changes); !reflect.DeepEqual(got, want) {
		t.Fatalf("run 1 changes.\nwant: %#v\ngot:  %#v", want, got)
	}

	// Next day: B escalates, A only counts down, C appears.
	changes, err = db.UpsertAlerts(ctx, Run{ID: "r2", RanAt: day.AddDate(0, 0, 6)}, []AlertEntry{
		entry("id:1", "A", "warning", 14),
		entry("id:2", "B", "critical", 6),
		entry("id:3", "C", "warning", 30),
	})
	if err != nil {
		t.Fatalf("run 2: %v", err)
	}
	want = []string{"updated id:2 warning>critical", "added id:3 >warning"}
	if got := changeSummary(changes); !reflect.DeepEqual(got, want) {
		t.Fatalf("run 2 changes.\nwant: %#v\ngot:  %#v", want, got)
	}

	// B expires and drops out.
	changes, err = db.UpsertAlerts(ctx, Run{ID: "r3", RanAt: day.AddDate(0, 0, 13)}, []AlertEntry{
		entry("id:1", "A", "critical", 7),
		entry("id:3", "C", "warning", 23),
	})
	if err != nil {
		t.Fatalf("run 3: %v", err)
	}
	want = []string{"updated id:1 warning>critical", "removed id:2 critical>critical"}
	if got := changeSummary(changes); !reflect.DeepEqual(got, want) {
		t.Fatalf("run 3 changes.\nwant: %#v\ngot:  %#v", want, got)
	}

	active, err := db.ListActiveAlerts(ctx)
	if err != nil {
		t.Fatalf("ListActiveAlerts: %v", err)
	}
	if len(active) != 2 || active[0].ItemKey != "id:1" || active[0].DaysRemaining != 7 {
		t.Fatalf("unexpected active alerts: %#v", active)
	}
	if !active[0].FirstSeenAt.Equal(day) {
		t.Fatalf("first_seen_at should be kept from run 1, got %s", active[0].FirstSeenAt)
	}

	recent, err := db.ListRecentChanges(ctx, 2)
	if err != nil {
		t.Fatalf("ListRecentChanges: %v", err)
	}
	if len(recent) != 2 || recent[0].ChangeType != ChangeRemoved || recent[0].LotNumber != "B" {
		t.Fatalf("unexpected recent changes: %#v", recent)
	}

	first, err = db.IsFirstRun(ctx)
	if err != nil || first {
		t.Fatalf("expected recorded runs, got first=%v (%v)", first, err)
	}

	st, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if st.Runs != 3 || st.ActiveCritical != 1 || st.ActiveWarning != 1 || st.Changes != 6 {
		t.Fatalf("unexpected stats: %#v", st)
	}
	if !st.LastRunAt.Equal(day.AddDate(0, 0, 13)) {
		t.Fatalf("unexpected last run %s", st.LastRunAt)
	}
}

func TestUpsertAlertsDuplicateKeys(t *testing.T) {
	db := openTestDB(t)
	changes, err := db.UpsertAlerts(context.Background(), Run{ID: "r1", RanAt: time.Now()}, []AlertEntry{
		entry("lot:A/", "A", "warning", 20),
		entry("lot:A/", "A", "critical", 3),
	})
	if err != nil {
		t.Fatalf("UpsertAlerts: %v", err)
	}
	if len(changes) != 2 || changes[1].ChangeType != ChangeUpdated {
		t.Fatalf("unexpected changes: %#v", changes)
	}
}

func TestUpsertAlertsRequiresRunID(t *testing.T) {
	db := openTestDB(t)
	if _, err := db.UpsertAlerts(context.Background(), Run{}, nil); err == nil {
		t.Fatal("expected error without run id")
	}
}

func TestNotifications(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	at := time.Date(2025, 5, 25, 9, 0, 0, 0, time.UTC)

	if _, err := db.RecordNotification(ctx, Notification{SentAt: at, ItemKey: "id:1", LotNumber: "A", Channel: "SMS", Message: "m1", Status: StatusSent}); err != nil {
		t.Fatalf("RecordNotification: %v", err)
	}
	if _, err := db.RecordNotification(ctx, Notification{SentAt: at.Add(time.Minute), ItemKey: "id:1", LotNumber: "A", Channel: "Email", Message: "m2", Status: StatusFailed, Error: "status 503"}); err != nil {
		t.Fatalf("RecordNotification: %v", err)
	}
	if _, err := db.RecordNotification(ctx, Notification{SentAt: at, Status: "queued"}); err == nil {
		t.Fatal("expected error for unknown status")
	}

	list, err := db.ListNotifications(ctx, 10)
	if err != nil {
		t.Fatalf("ListNotifications: %v", err)
	}
	if len(list) != 2 || list[0].Channel != "Email" || list[0].Error != "status 503" || !list[1].SentAt.Equal(at) {
		t.Fatalf("unexpected notifications: %#v", list)
	}

	st, err := db.GetStats(ctx)
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if st.NotificationsSent != 1 || st.NotificationsFailed != 1 || st.Runs != 0 || !st.LastRunAt.IsZero() {
		t.Fatalf("unexpected stats: %#v", st)
	}
}
