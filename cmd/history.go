package cmd

import (
	"fmt"

	"github.com/railtrack-insight/trackwatch/pkg/report"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded alert changes and notifications",
}

var historyChangesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Show recent alert changes (default 50)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		changes, err := db.ListRecentChanges(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(changes) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No changes recorded yet.")
			return nil
		}
		report.PrintChanges(cmd.OutOrStdout(), changes)
		return nil
	},
}

var historyNotificationsCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Show recent notification attempts (default 50)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		list, err := db.ListNotifications(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No notifications recorded yet.")
			return nil
		}
		report.PrintNotifications(cmd.OutOrStdout(), list)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historyChangesCmd, historyNotificationsCmd)
	historyCmd.PersistentFlags().String("dbpath", "", "Path to SQLite DB file (default: db.path from config)")
	historyCmd.PersistentFlags().Int("limit", 50, "Number of recent entries to show")
}
