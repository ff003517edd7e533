package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints inventory counters and per-type analytics from the inventory service.",
	Long:  "Prints inventory counters and per-type analytics from the inventory service.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newInventoryClient(cmd)
		if err != nil {
			return err
		}

		stats, err := client.Stats(cmd.Context())
		if err != nil {
			return err
		}
		analytics, err := client.Analytics(cmd.Context())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Total: %d  Defective: %d  Pending inspection: %d  Warranty expired: %d\n\n",
			stats.Total, stats.Defective, stats.PendingInspection, stats.WarrantyExpired)

		if len(analytics) == 0 {
			fmt.Fprintln(out, "No analytics available.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 3, ' ', tabwriter.AlignRight)
		fmt.Fprintln(w, "ITEM TYPE\tTOTAL\tDEFECTIVE\t")

		var total, defective int64
		for _, a := range analytics {
			fmt.Fprintf(w, "%s\t%d\t%d\t\n", a.ItemType, a.TotalCount, a.DefectiveCount)
			total += a.TotalCount
			defective += a.DefectiveCount
		}

		fmt.Fprintln(w, " \t \t \t")
		fmt.Fprintf(w, "TOTAL\t%d\t%d\t\n", total, defective)

		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(statsCmd)
}
