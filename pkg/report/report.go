// Package report renders expiry reports and change lists for the terminal.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/railtrack-insight/trackwatch/pkg/expiry"
	"github.com/railtrack-insight/trackwatch/pkg/storage"
)

const dateLayout = "2006-01-02"

// PrintAlerts writes one line per alert built from outputFlags:
//
//	l lot number, t item type, p rail pole, v vendor,
//	d days remaining, e warranty end, s severity, i item id
func PrintAlerts(w io.Writer, r expiry.Report, outputFlags, delimiter string) error {
	for _, a := range r.Alerts {
		line, err := createLine(a, outputFlags, delimiter)
		if err != nil {
			return err
		}
		if len(line) > 0 {
			fmt.Fprintln(w, line)
		}
	}
	return nil
}

func createLine(a expiry.Alert, outputFlags, delimiter string) (string, error) {
	var line string
	for _, f := range outputFlags {
		switch f {
		case 'l':
			line += a.Item.LotNumber + delimiter
		case 't':
			line += a.Item.ItemType + delimiter
		case 'p':
			line += a.Item.RailPoleNumber + delimiter
		case 'v':
			line += a.Item.Vendor + delimiter
		case 'd':
			line += strconv.Itoa(a.Assessment.DaysRemaining) + delimiter
		case 'e':
			line += a.Assessment.WarrantyEnd.Format(dateLayout) + delimiter
		case 's':
			line += string(a.Severity) + delimiter
		case 'i':
			line += a.Item.ID + delimiter
		default:
			return "", fmt.Errorf("invalid print flag %q", f)
		}
	}
	return strings.TrimSuffix(line, delimiter), nil
}

// PrintTable writes the summary counts followed by an aligned alert table.
func PrintTable(out io.Writer, r expiry.Report) {
	fmt.Fprintf(out, "Alerts: %d (critical %d, warning %d)  expired: %d  invalid: %d\n",
		r.Total, r.Critical, r.Warning, r.Expired, len(r.Invalid))
	if len(r.Alerts) == 0 {
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "SEVERITY\tLOT\tTYPE\tRAIL POLE\tWARRANTY END\tDAYS\t")
	for _, a := range r.Alerts {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\t\n",
			strings.ToUpper(string(a.Severity)), a.Item.LotNumber, a.Item.ItemType, a.Item.RailPoleNumber,
			a.Assessment.WarrantyEnd.Format(dateLayout), a.Assessment.DaysRemaining)
	}
	w.Flush()
}

// PrintInvalid lists items that were skipped, one per line.
func PrintInvalid(out io.Writer, r expiry.Report) {
	for _, inv := range r.Invalid {
		fmt.Fprintf(out, "[invalid] %s  lot=%s  %s\n", inv.Item.Key(), inv.Item.LotNumber, inv.Error)
	}
}

// PrintJSON writes v as indented JSON.
func PrintJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// PrintChanges writes one line per change.
func PrintChanges(out io.Writer, changes []storage.Change) {
	for _, c := range changes {
		ts := c.OccurredAt.Format("2006-01-02 15:04:05")
		switch c.ChangeType {
		case storage.ChangeUpdated:
			fmt.Fprintf(out, "%s  %-7s  %s  %s  %s -> %s  days=%d\n", ts, c.ChangeType, c.LotNumber, c.ItemType, c.PreviousSeverity, c.Severity, c.DaysRemaining)
		default:
			fmt.Fprintf(out, "%s  %-7s  %s  %s  %s  days=%d\n", ts, c.ChangeType, c.LotNumber, c.ItemType, c.Severity, c.DaysRemaining)
		}
	}
}

// PrintNotifications writes the notification log as a table.
func PrintNotifications(out io.Writer, list []storage.Notification) {
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "SENT\tSTATUS\tCHANNEL\tLOT\tRAIL POLE\tERROR\t")
	for _, n := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n", n.SentAt.Format("2006-01-02 15:04:05"), n.Status, n.Channel, n.LotNumber, n.RailPoleNumber, n.Error)
	}
	w.Flush()
}
