package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"text/tabwriter"

	"github.com/railtrack-insight/trackwatch/internal/utils"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// dbCmd represents the db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Interact with the trackwatch database",
}

// shellCmd represents the shell command
var shellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Start an interactive shell to the database",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("dbpath")
		if path == "" {
			path = viper.GetString("db.path")
		}
		dbPath, err := utils.GetAbsDBPath(path)
		if err != nil {
			return err
		}

		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return fmt.Errorf("database file not found: %s", dbPath)
		}

		// Check if sqlite3 is in PATH
		sqlitePath, err := exec.LookPath("sqlite3")
		if err != nil {
			return fmt.Errorf("sqlite3 command not found in your PATH. Please install it to use the db shell")
		}

		fmt.Println("--> Database schema:")
		schemaCmd := exec.Command(sqlitePath, dbPath, ".schema")
		schemaCmd.Stdout = os.Stdout
		schemaCmd.Stderr = os.Stderr
		if err := schemaCmd.Run(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: couldn't retrieve schema: %v\n", err)
		}
		fmt.Println("\n--> Starting interactive shell... (Ctrl+D to exit)")

		c := exec.Command(sqlitePath, dbPath)
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr

		return c.Run()
	},
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints statistics about recorded runs, alerts and notifications.",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, _, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats(cmd.Context())
		if err != nil {
			return err
		}

		if stats.Runs == 0 && stats.NotificationsSent+stats.NotificationsFailed == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No data in the database to generate stats.")
			return nil
		}

		lastRun := "never"
		if !stats.LastRunAt.IsZero() {
			lastRun = stats.LastRunAt.Local().Format("2006-01-02 15:04:05")
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintf(w, "Runs\t%d\t\n", stats.Runs)
		fmt.Fprintf(w, "Last run\t%s\t\n", lastRun)
		fmt.Fprintf(w, "Active critical\t%d\t\n", stats.ActiveCritical)
		fmt.Fprintf(w, "Active warning\t%d\t\n", stats.ActiveWarning)
		fmt.Fprintf(w, "Changes\t%d\t\n", stats.Changes)
		fmt.Fprintf(w, "Notifications sent\t%d\t\n", stats.NotificationsSent)
		fmt.Fprintf(w, "Notifications failed\t%d\t\n", stats.NotificationsFailed)
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(dbCmd)
	dbCmd.AddCommand(shellCmd)
	dbCmd.AddCommand(dbStatsCmd)
	dbCmd.PersistentFlags().String("dbpath", "", "Path to SQLite DB file (default: db.path from config)")
}
