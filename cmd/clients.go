package cmd

import (
	"os"
	"path/filepath"
	"time"

	"github.com/railtrack-insight/trackwatch/internal/utils"
	"github.com/railtrack-insight/trackwatch/pkg/expiry"
	"github.com/railtrack-insight/trackwatch/pkg/inventory"
	"github.com/railtrack-insight/trackwatch/pkg/notify"
	"github.com/railtrack-insight/trackwatch/pkg/storage"
	"github.com/railtrack-insight/trackwatch/pkg/whttp"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func clientOptions(cmd *cobra.Command, retries int) whttp.ClientOptions {
	proxy, _ := cmd.Flags().GetString("proxy")
	return whttp.ClientOptions{
		Proxy:   proxy,
		Retries: retries,
		Timeout: time.Duration(viper.GetInt("api.timeout")) * time.Second,
	}
}

// newInventoryClient builds the read client. Reads retry per api.retries.
func newInventoryClient(cmd *cobra.Command) (*inventory.Client, error) {
	hc, err := whttp.NewClient(clientOptions(cmd, viper.GetInt("api.retries")))
	if err != nil {
		return nil, err
	}
	return inventory.NewClient(viper.GetString("api.url"), hc), nil
}

// newNotifier uses its own HTTP client so the read client keeps its retries.
func newNotifier(cmd *cobra.Command) (*notify.Notifier, error) {
	hc, err := whttp.NewClient(clientOptions(cmd, 0))
	if err != nil {
		return nil, err
	}
	return notify.NewNotifier(viper.GetString("api.url"), hc), nil
}

func thresholdsFromConfig() (expiry.Thresholds, error) {
	th := expiry.Thresholds{
		AlertDays:    viper.GetInt("alerts.window_days"),
		CriticalDays: viper.GetInt("alerts.critical_days"),
	}
	return th, th.Validate()
}

// openDB resolves the path and opens the database without locking it.
// Writers take the returned lock around each recorded write.
func openDB(cmd *cobra.Command) (*storage.DB, *utils.DBLock, error) {
	path, _ := cmd.Flags().GetString("dbpath")
	if path == "" {
		path = viper.GetString("db.path")
	}
	absPath, err := utils.GetAbsDBPath(path)
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(absPath), 0o755); err != nil {
		return nil, nil, err
	}
	lock, err := utils.NewDBLock(absPath)
	if err != nil {
		return nil, nil, err
	}

	db, err := storage.Open(absPath)
	if err != nil {
		return nil, nil, err
	}
	utils.Log.Debugf("Using database %s", absPath)
	return db, lock, nil
}
