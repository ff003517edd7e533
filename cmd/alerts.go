package cmd

import (
	"fmt"
	"time"

	"github.com/railtrack-insight/trackwatch/internal/utils"
	"github.com/railtrack-insight/trackwatch/pkg/polling"
	"github.com/railtrack-insight/trackwatch/pkg/report"
	"github.com/spf13/cobra"
)

// alertsCmd implements: trackwatch alerts
//
//	--now string        Evaluate as of this date (YYYY-MM-DD) instead of today
//	--db                Record the run in the database and print changes
//	--sort string       "input" (default) or "urgency"
//	-o, --output        Line output flags instead of the table
//	--json              Print the full report as JSON
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Evaluate warranty expiry and list critical and warning alerts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			return fmt.Errorf("unknown command: '%s'. See 'trackwatch alerts --help'", args[0])
		}

		nowFlag, _ := cmd.Flags().GetString("now")
		useDB, _ := cmd.Flags().GetBool("db")
		sortBy, _ := cmd.Flags().GetString("sort")
		asJSON, _ := cmd.Flags().GetBool("json")
		output, _ := cmd.Flags().GetString("output")
		delimiter, _ := cmd.Flags().GetString("delimiter")

		if sortBy != "input" && sortBy != "urgency" {
			return fmt.Errorf("invalid --sort %q (expected input or urgency)", sortBy)
		}
		now, err := parseNow(nowFlag)
		if err != nil {
			return err
		}
		th, err := thresholdsFromConfig()
		if err != nil {
			return err
		}
		client, err := newInventoryClient(cmd)
		if err != nil {
			return err
		}

		cfg := polling.Config{
			Source:     client,
			Thresholds: th,
			Now:        func() time.Time { return now },
			Log:        utils.Log,
		}
		if useDB {
			db, lock, err := openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()
			cfg.DB = db
			cfg.Lock = lock
		}

		res, err := polling.Evaluate(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		rep := res.Report
		if sortBy == "urgency" {
			rep.SortByUrgency()
		}

		out := cmd.OutOrStdout()
		switch {
		case asJSON:
			if err := report.PrintJSON(out, rep); err != nil {
				return err
			}
		case cmd.Flags().Changed("output"):
			if err := report.PrintAlerts(out, rep, output, delimiter); err != nil {
				return err
			}
		default:
			report.PrintTable(out, rep)
			report.PrintInvalid(cmd.ErrOrStderr(), rep)
		}

		if useDB {
			printRunChanges(cmd, res)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(alertsCmd)
	alertsCmd.Flags().String("now", "", "Evaluate as of this date (YYYY-MM-DD) instead of the current time")
	alertsCmd.Flags().Bool("db", false, "Record the run in the database and print changes since the last run")
	alertsCmd.Flags().String("dbpath", "", "Path to SQLite DB file (default: db.path from config)")
	alertsCmd.Flags().String("sort", "input", "Alert order: input or urgency")
	alertsCmd.Flags().Bool("json", false, "Print the full report as JSON")
	alertsCmd.Flags().StringP("output", "o", "lds", "Output flags. Supported: l (lot), t (type), p (rail pole), v (vendor), d (days left), e (warranty end), s (severity), i (id). Example: -o ltpd")
	alertsCmd.Flags().StringP("delimiter", "d", " ", "Delimiter to use with --output")
}

func parseNow(v string) (time.Time, error) {
	if v == "" {
		return time.Now(), nil
	}
	t, err := time.Parse("2006-01-02", v)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --now %q (expected YYYY-MM-DD)", v)
	}
	return t, nil
}

func printRunChanges(cmd *cobra.Command, res *polling.Result) {
	w := cmd.ErrOrStderr()
	if res.IsFirstRun {
		fmt.Fprintln(w, "First run recorded, database populated.")
		return
	}
	if len(res.Changes) == 0 {
		fmt.Fprintln(w, "No changes since the last run.")
		return
	}
	fmt.Fprintf(w, "%d changes since the last run:\n", len(res.Changes))
	report.PrintChanges(w, res.Changes)
}

