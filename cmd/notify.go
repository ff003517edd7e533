package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/railtrack-insight/trackwatch/internal/utils"
	"github.com/railtrack-insight/trackwatch/pkg/inventory"
	"github.com/railtrack-insight/trackwatch/pkg/notify"
	"github.com/railtrack-insight/trackwatch/pkg/polling"
	"github.com/railtrack-insight/trackwatch/pkg/storage"
	"github.com/spf13/cobra"
)

var notifyCmd = &cobra.Command{
	Use:   "notify",
	Short: "Send an SMS or Email alert for a component",
	Long: `Send an SMS or Email alert through the inventory service.

Select a single component with --lot (plus --pole when the lot is installed on
several poles) or --key, or use --all to alert every component currently in the
alert window. Each alert is one request; failures are reported and not retried.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		lot, _ := cmd.Flags().GetString("lot")
		pole, _ := cmd.Flags().GetString("pole")
		key, _ := cmd.Flags().GetString("key")
		all, _ := cmd.Flags().GetBool("all")
		channel, _ := cmd.Flags().GetString("channel")
		useDB, _ := cmd.Flags().GetBool("db")

		ch, err := notify.ParseChannel(channel)
		if err != nil {
			return err
		}
		if all == (lot != "" || key != "") {
			return errors.New("use either --all or one of --lot/--key")
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
		if useDB {
			db, lock, err = openDB(cmd)
			if err != nil {
				return err
			}
			defer db.Close()
		}

		var targets []inventory.Item
		if all {
			th, err := thresholdsFromConfig()
			if err != nil {
				return err
			}
			res, err := polling.Evaluate(cmd.Context(), polling.Config{Source: client, Thresholds: th, Log: utils.Log})
			if err != nil {
				return err
			}
			for _, a := range res.Report.Alerts {
				targets = append(targets, a.Item)
			}
			if len(targets) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No components in the alert window.")
				return nil
			}
		} else {
			items, err := client.List(cmd.Context())
			if err != nil {
				return err
			}
			targets, err = selectOne(items, key, lot, pole)
			if err != nil {
				return err
			}
		}

		var failed int
		for _, item := range targets {
			d, sendErr := notifier.Send(cmd.Context(), item, ch)
			recordDelivery(cmd.Context(), db, lock, d, sendErr)
			if sendErr != nil {
				failed++
				utils.Log.Errorf("%v", sendErr)
				continue
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Sent: %s\n", d.Message)
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d alerts failed", failed, len(targets))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(notifyCmd)
	notifyCmd.Flags().String("lot", "", "Lot number of the component")
	notifyCmd.Flags().String("pole", "", "Rail pole number, to pick one component when a lot spans several poles")
	notifyCmd.Flags().String("key", "", "Item key as printed by 'alerts --json' (id:<id> or lot:<lot>/<pole>)")
	notifyCmd.Flags().Bool("all", false, "Alert every component currently in the alert window")
	notifyCmd.Flags().StringP("channel", "c", "", "Alert channel: sms or email")
	notifyCmd.Flags().Bool("db", false, "Record each attempt in the database")
	notifyCmd.Flags().String("dbpath", "", "Path to SQLite DB file (default: db.path from config)")
	notifyCmd.MarkFlagRequired("channel")
}

func selectOne(items []inventory.Item, key, lot, pole string) ([]inventory.Item, error) {
	matches := inventory.Match(items, key, lot, pole)
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("no inventory item matches lot %q pole %q key %q", lot, pole, key)
	case 1:
		return matches, nil
	}
	poles := make([]string, 0, len(matches))
	for _, m := range matches {
		poles = append(poles, m.RailPoleNumber)
	}
	return nil, fmt.Errorf("lot %s is installed on %d poles (%s); add --pole", lot, len(matches), strings.Join(poles, ", "))
}

func recordDelivery(ctx context.Context, db *storage.DB, lock *utils.DBLock, d notify.Delivery, sendErr error) {
	if db == nil {
		return
	}
	n := storage.Notification{
		SentAt:         d.SentAt,
		ItemKey:        d.ItemKey,
		LotNumber:      d.LotNumber,
		ItemType:       d.ItemType,
		RailPoleNumber: d.RailPoleNumber,
		Channel:        string(d.Channel),
		Message:        d.Message,
		Status:         storage.StatusSent,
	}
	if n.SentAt.IsZero() {
		n.SentAt = time.Now()
	}
	if sendErr != nil {
		n.Status = storage.StatusFailed
		n.Error = sendErr.Error()
	}
	if err := lock.LockContext(ctx); err != nil {
		utils.Log.Warnf("Could not record notification for %s: %v", d.LotNumber, err)
		return
	}
	defer lock.Unlock()
	if _, err := db.RecordNotification(ctx, n); err != nil {
		utils.Log.Warnf("Could not record notification for %s: %v", d.LotNumber, err)
	}
}
