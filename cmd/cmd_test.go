package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/railtrack-insight/trackwatch/internal/utils"
	"github.com/railtrack-insight/trackwatch/pkg/expiry"
	"github.com/railtrack-insight/trackwatch/pkg/inventory"
	"github.com/tidwall/gjson"
)

const inventoryJSON = `[
	{"id":1,"lot_number":"L-CRIT","item_type":"Rail Clips","rail_pole_number":"P1","install_date":"2023-12-20","warranty_period":"2"},
	{"id":2,"lot_number":"L-WARN","item_type":"Liner","rail_pole_number":"P2","install_date":"2024-01-01","warranty_period":"2 Years"},
	{"id":3,"lot_number":"L-OLD","item_type":"Sleeper","rail_pole_number":"P3","install_date":"2020-01-01","warranty_period":"1"}
]`

func newInventoryServer(t *testing.T, alerts *[]string) *http.ServeMux {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /inventory", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(inventoryJSON))
	})
	mux.HandleFunc("POST /send-alert", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		*alerts = append(*alerts, string(b))
		w.Write([]byte(`{"success":true}`))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	t.Setenv("HOME", t.TempDir())
	t.Setenv("TRACKWATCH_API_URL", srv.URL)
	t.Setenv("TRACKWATCH_API_RETRIES", "0")
	return mux
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(io.Discard)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestAlertsCommandJSON(t *testing.T) {
	var alerts []string
	newInventoryServer(t, &alerts)

	out, err := execute(t, "alerts", "--now", "2025-12-15", "--json", "--sort", "urgency")
	if err != nil {
		t.Fatalf("alerts: %v", err)
	}
	var rep expiry.Report
	if err := json.Unmarshal([]byte(out), &rep); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	var got []string
	for _, a := range rep.Alerts {
		got = append(got, a.Item.LotNumber+" "+string(a.Severity))
	}
	want := []string{"L-CRIT critical", "L-WARN warning"}
	if !reflect.DeepEqual(got, want) || rep.Expired != 1 {
		t.Fatalf("unexpected alerts.\nwant: %#v\ngot:  %#v (expired %d)", want, got, rep.Expired)
	}
}

func TestNotifyCommandAll(t *testing.T) {
	var alerts []string
	newInventoryServer(t, &alerts)
	dbPath := filepath.Join(t.TempDir(), "tw.sqlite")

	out, err := execute(t, "notify", "--all", "--channel", "sms", "--db", "--dbpath", dbPath)
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	// Evaluated against the real clock, so only check that every send went out.
	if strings.Count(out, "Sent: ") != len(alerts) {
		t.Fatalf("output and requests disagree: %d requests\n%s", len(alerts), out)
	}
	for _, body := range alerts {
		if !strings.Contains(body, `"alertType":"SMS"`) {
			t.Fatalf("unexpected body %s", body)
		}
	}
}

func TestSelectOne(t *testing.T) {
	items := []inventory.Item{
		{ID: "1", LotNumber: "L1", RailPoleNumber: "P1"},
		{ID: "2", LotNumber: "L1", RailPoleNumber: "P2"},
	}
	if _, err := selectOne(items, "", "L1", ""); err == nil || !strings.Contains(err.Error(), "P1, P2") {
		t.Fatalf("expected ambiguity error naming poles, got %v", err)
	}
	got, err := selectOne(items, "", "L1", "P2")
	if err != nil || len(got) != 1 || got[0].ID != "2" {
		t.Fatalf("unexpected selection %#v (%v)", got, err)
	}
	if _, err := selectOne(items, "", "L9", ""); err == nil {
		t.Fatal("expected error for unknown lot")
	}
}

func TestValidateNewItem(t *testing.T) {
	valid := inventory.Item{LotNumber: "L1", ItemType: "Liner", InstallDate: "2024-01-01", WarrantyPeriod: "2 Years", RailPoleNumber: "P1"}
	tests := []struct {
		name    string
		mutate  func(*inventory.Item)
		wantErr string
	}{
		{name: "valid", mutate: func(*inventory.Item) {}},
		{name: "missing fields", mutate: func(i *inventory.Item) { i.LotNumber, i.RailPoleNumber = "", "" }, wantErr: "--lot, --pole"},
		{name: "bad install date", mutate: func(i *inventory.Item) { i.InstallDate = "01/01/2024" }, wantErr: "--installed"},
		{name: "bad warranty", mutate: func(i *inventory.Item) { i.WarrantyPeriod = "two" }, wantErr: "--warranty"},
		{name: "bad manufacture date", mutate: func(i *inventory.Item) { i.ManufactureDate = "soon" }, wantErr: "--manufactured"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			item := valid
			tt.mutate(&item)
			err := validateNewItem(item)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPrettyItem(t *testing.T) {
	got := prettyItem(inventory.Item{Raw: `{"id":7,"lot_number":"L7"}`})
	want := "{\n  \"id\": 7,\n  \"lot_number\": \"L7\"\n}"
	if got != want {
		t.Fatalf("unexpected output.\nwant: %q\ngot:  %q", want, got)
	}
}

func TestHistoryDoesNotWaitForWriterLock(t *testing.T) {
	var alerts []string
	newInventoryServer(t, &alerts)
	dbPath := filepath.Join(t.TempDir(), "tw.sqlite")

	writer, err := utils.NewDBLock(dbPath)
	if err != nil {
		t.Fatalf("NewDBLock: %v", err)
	}
	if err := writer.Lock(); err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer writer.Unlock()

	type result struct {
		out string
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := execute(t, "history", "changes", "--dbpath", dbPath)
		done <- result{out, err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			t.Fatalf("history changes: %v", r.err)
		}
		if !strings.Contains(r.out, "No changes recorded yet.") {
			t.Fatalf("unexpected output %q", r.out)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("history changes blocked on the writer lock")
	}
}

func TestInventoryAddSendsInspectionFields(t *testing.T) {
	var alerts []string
	mux := newInventoryServer(t, &alerts)
	var created string
	mux.HandleFunc("POST /inventory", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		created = string(b)
		w.Write([]byte(`{"id":"9"}`))
	})

	out, err := execute(t, "inventory", "add", "--lot", "L9", "--type", "Liner", "--installed", "2024-01-01",
		"--warranty", "2", "--pole", "P9", "--inspector", "INS-2", "--inspection-date", "2024-02-01", "--defect", "crack")
	if err != nil {
		t.Fatalf("inventory add: %v", err)
	}
	if !strings.Contains(out, "Saved item 9") {
		t.Fatalf("unexpected output %q", out)
	}
	got := []string{
		gjson.Get(created, "inspector_code").String(),
		gjson.Get(created, "inspection_date").String(),
		gjson.Get(created, "defect_type").String(),
	}
	want := []string{"INS-2", "2024-02-01", "crack"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected inspection fields.\nwant: %#v\ngot:  %#v", want, got)
	}
}

func TestInventoryInspectUsesConfiguredPassword(t *testing.T) {
	var alerts []string
	mux := newInventoryServer(t, &alerts)
	t.Setenv("TRACKWATCH_INSPECTOR_PASSWORD", "from-env")

	var updated bool
	mux.HandleFunc("POST /auth/inspector", func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		if gjson.GetBytes(b, "password").String() != "from-env" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"success":true}`))
	})
	mux.HandleFunc("PUT /inventory/{id}", func(w http.ResponseWriter, r *http.Request) {
		updated = r.PathValue("id") == "7"
		w.Write([]byte(`{}`))
	})

	if _, err := execute(t, "inventory", "inspect", "7", "--inspector", "INS-1", "--date", "2025-01-02"); err != nil {
		t.Fatalf("inventory inspect: %v", err)
	}
	if !updated {
		t.Fatal("inspection was not sent")
	}
}
