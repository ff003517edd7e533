package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/railtrack-insight/trackwatch/pkg/expiry"
	"github.com/railtrack-insight/trackwatch/pkg/inventory"
	"github.com/railtrack-insight/trackwatch/pkg/storage"
)

func sampleReport() expiry.Report {
	items := []inventory.Item{
		{ID: "a1", LotNumber: "LOT-7", ItemType: "Rail Clip", RailPoleNumber: "RP-7", Vendor: "Acme", InstallDate: "2023-06-01", WarrantyPeriod: "2"},
		{ID: "a2", LotNumber: "LOT-9", ItemType: "Liner", RailPoleNumber: "RP-9", InstallDate: "2023-06-18", WarrantyPeriod: "2 Years"},
		{ID: "a3", LotNumber: "LOT-X", InstallDate: "", WarrantyPeriod: "2"},
	}
	return expiry.Aggregate(items, time.Date(2025, 5, 25, 0, 0, 0, 0, time.UTC), expiry.DefaultThresholds())
}

func TestPrintAlerts(t *testing.T) {
	tests := []struct {
		name      string
		flags     string
		delimiter string
		want      string
	}{
		{name: "lot only", flags: "l", delimiter: " ", want: "LOT-7\nLOT-9\n"},
		{name: "lot days severity", flags: "lds", delimiter: ",", want: "LOT-7,7,critical\nLOT-9,24,warning\n"},
		{name: "pole end vendor id", flags: "pevi", delimiter: " | ", want: "RP-7 | 2025-06-01 | Acme | a1\nRP-9 | 2025-06-18 |  | a2\n"},
		{name: "type", flags: "t", delimiter: " ", want: "Rail Clip\nLiner\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			if err := PrintAlerts(&buf, sampleReport(), tt.flags, tt.delimiter); err != nil {
				t.Fatalf("PrintAlerts: %v", err)
			}
			if buf.String() != tt.want {
				t.Fatalf("unexpected output.\nwant: %q\ngot:  %q", tt.want, buf.String())
			}
		})
	}
}

func TestPrintAlertsInvalidFlag(t *testing.T) {
	if err := PrintAlerts(&bytes.Buffer{}, sampleReport(), "lz", " "); err == nil {
		t.Fatal("expected error for unknown flag")
	}
}

func TestPrintTable(t *testing.T) {
	var buf bytes.Buffer
	PrintTable(&buf, sampleReport())
	out := buf.String()
	for _, want := range []string{"Alerts: 2 (critical 1, warning 1)", "invalid: 1", "CRITICAL", "LOT-9", "2025-06-18"} {
		if !strings.Contains(out, want) {
			t.Fatalf("table missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	PrintInvalid(&buf, sampleReport())
	if !strings.Contains(buf.String(), "id:a3") {
		t.Fatalf("unexpected invalid output: %q", buf.String())
	}
}

func TestPrintChanges(t *testing.T) {
	ts := time.Date(2025, 5, 25, 10, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	PrintChanges(&buf, []storage.Change{
		{OccurredAt: ts, ChangeType: storage.ChangeUpdated, LotNumber: "LOT-7", ItemType: "Rail Clip", PreviousSeverity: "warning", Severity: "critical", DaysRemaining: 7},
		{OccurredAt: ts, ChangeType: storage.ChangeAdded, LotNumber: "LOT-9", ItemType: "Liner", Severity: "warning", DaysRemaining: 24},
	})
	want := "2025-05-25 10:00:00  updated  LOT-7  Rail Clip  warning -> critical  days=7\n" +
		"2025-05-25 10:00:00  added    LOT-9  Liner  warning  days=24\n"
	if buf.String() != want {
		t.Fatalf("unexpected output.\nwant: %q\ngot:  %q", want, buf.String())
	}
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintJSON(&buf, sampleReport()); err != nil {
		t.Fatalf("PrintJSON: %v", err)
	}
	if !strings.Contains(buf.String(), `"critical": 1`) {
		t.Fatalf("unexpected json: %s", buf.String())
	}
}
