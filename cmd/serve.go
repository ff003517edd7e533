package cmd

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/railtrack-insight/trackwatch/internal/server"
	"github.com/railtrack-insight/trackwatch/internal/utils"
	"github.com/railtrack-insight/trackwatch/pkg/storage"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the trackwatch HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		listenAddr, _ := cmd.Flags().GetString("listen")
		if listenAddr == "" {
			listenAddr = viper.GetString("server.listen")
		}
		pollInterval := viper.GetInt("server.poll_interval")
		if cmd.Flags().Changed("poll-interval") {
			pollInterval, _ = cmd.Flags().GetInt("poll-interval")
		}
		noDB, _ := cmd.Flags().GetBool("no-db")

		th, err := thresholdsFromConfig()
		if err != nil {
			return err
		}
		client, err := newInventoryClient(cmd)
		if err != nil {
			return err
		}
		notifier, err := newNotifier(cmd)
		if err != nil {
			return err
		}

		var db *storage.DB
		var lock *utils.DBLock
		if !noDB {
			db, lock, err = openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()
		}

		s := server.New(client, notifier, db, th)
		if lock != nil {
			s.Lock = lock
		}
		s.Username = viper.GetString("server.username")
		s.Password = viper.GetString("server.password")
		s.LoginUsername = viper.GetString("login.username")
		s.LoginPassword = viper.GetString("login.password")
		s.PollInterval = time.Duration(pollInterval) * time.Minute

		if s.LoginUsername == "" {
			utils.Log.Warn("login.username is not set; POST /api/login will reject every attempt")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return s.Start(ctx, listenAddr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("listen", "", "HTTP listen address (default: server.listen from config)")
	serveCmd.Flags().Int("poll-interval", 60, "Minutes between recorded evaluations (0 to disable)")
	serveCmd.Flags().String("dbpath", "", "Path to SQLite DB file (default: db.path from config)")
	serveCmd.Flags().Bool("no-db", false, "Run without alert history")
}
