package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/railtrack-insight/trackwatch/pkg/expiry"
	"github.com/railtrack-insight/trackwatch/pkg/inventory"
	"github.com/skip2/go-qrcode"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tidwall/gjson"
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Browse and edit the track-fitting inventory",
}

var inventoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered components",
	RunE: func(cmd *cobra.Command, args []string) error {
		itemType, _ := cmd.Flags().GetString("type")
		client, err := newInventoryClient(cmd)
		if err != nil {
			return err
		}
		items, err := client.List(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tLOT\tTYPE\tRAIL POLE\tINSTALLED\tWARRANTY\tDEFECT\t")
		for _, it := range items {
			if itemType != "" && !strings.EqualFold(it.ItemType, itemType) {
				continue
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n", it.ID, it.LotNumber, it.ItemType, it.RailPoleNumber, it.InstallDate, it.WarrantyPeriod, it.DefectType)
		}
		return w.Flush()
	},
}

var inventoryGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Show one component as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newInventoryClient(cmd)
		if err != nil {
			return err
		}
		item, err := client.Get(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), prettyItem(item))
		return nil
	},
}

var inventoryAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new component and print its QR details link",
	RunE: func(cmd *cobra.Command, args []string) error {
		item := inventory.Item{}
		item.Vendor, _ = cmd.Flags().GetString("vendor")
		item.VendorID, _ = cmd.Flags().GetString("vendor-id")
		item.LotNumber, _ = cmd.Flags().GetString("lot")
		item.ItemType, _ = cmd.Flags().GetString("type")
		item.ItemMaterial, _ = cmd.Flags().GetString("material")
		item.ManufactureDate, _ = cmd.Flags().GetString("manufactured")
		item.InstallDate, _ = cmd.Flags().GetString("installed")
		item.WarrantyPeriod, _ = cmd.Flags().GetString("warranty")
		item.RailPoleNumber, _ = cmd.Flags().GetString("pole")
		item.InspectorCode, _ = cmd.Flags().GetString("inspector")
		item.InspectionDate, _ = cmd.Flags().GetString("inspection-date")
		item.DefectType, _ = cmd.Flags().GetString("defect")
		qrPath, _ := cmd.Flags().GetString("qr")
		qrTerminal, _ := cmd.Flags().GetBool("qr-terminal")

		if err := validateNewItem(item); err != nil {
			return err
		}

		client, err := newInventoryClient(cmd)
		if err != nil {
			return err
		}
		id, err := client.Create(cmd.Context(), item)
		if err != nil {
			return err
		}
		link := inventory.DetailsURL(viper.GetString("api.base_url"), id)
		fmt.Fprintf(cmd.OutOrStdout(), "Saved item %s\n%s\n", id, link)

		if qrPath != "" {
			if err := qrcode.WriteFile(link, qrcode.Medium, 256, qrPath); err != nil {
				return fmt.Errorf("writing QR code: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "QR code written to %s\n", qrPath)
		}
		if qrTerminal {
			q, err := qrcode.New(link, qrcode.Medium)
			if err != nil {
				return err
			}
			fmt.Fprint(cmd.OutOrStdout(), q.ToSmallString(false))
		}
		return nil
	},
}

var inventoryInspectCmd = &cobra.Command{
	Use:   "inspect ID",
	Short: "Record an inspection for a component",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := inventory.Inspection{}
		in.InspectorCode, _ = cmd.Flags().GetString("inspector")
		in.InspectionDate, _ = cmd.Flags().GetString("date")
		in.DefectType, _ = cmd.Flags().GetString("defect")
		password := inspectorPassword(cmd)

		if in.InspectorCode == "" {
			return errors.New("--inspector is required")
		}
		if in.InspectionDate == "" {
			in.InspectionDate = time.Now().Format("2006-01-02")
		} else if _, err := time.Parse("2006-01-02", in.InspectionDate); err != nil {
			return fmt.Errorf("invalid --date %q (expected YYYY-MM-DD)", in.InspectionDate)
		}

		client, err := newInventoryClient(cmd)
		if err != nil {
			return err
		}
		if err := client.AuthenticateInspector(cmd.Context(), password); err != nil {
			return err
		}
		if err := client.UpdateInspection(cmd.Context(), args[0], in); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Inspection recorded for %s\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(inventoryCmd)
	inventoryCmd.AddCommand(inventoryListCmd, inventoryGetCmd, inventoryAddCmd, inventoryInspectCmd)

	inventoryListCmd.Flags().String("type", "", "Only list this item type")

	inventoryAddCmd.Flags().String("vendor", "", "Vendor name")
	inventoryAddCmd.Flags().String("vendor-id", "", "Vendor id")
	inventoryAddCmd.Flags().String("lot", "", "Lot number")
	inventoryAddCmd.Flags().String("type", "", "Item type: "+strings.Join(inventory.ItemTypes, ", "))
	inventoryAddCmd.Flags().String("material", "", "Item material")
	inventoryAddCmd.Flags().String("manufactured", "", "Manufacture date (YYYY-MM-DD)")
	inventoryAddCmd.Flags().String("installed", "", "Install date (YYYY-MM-DD)")
	inventoryAddCmd.Flags().String("warranty", "", "Warranty period in years, e.g. 2")
	inventoryAddCmd.Flags().String("pole", "", "Rail pole number")
	inventoryAddCmd.Flags().String("inspector", "", "Inspector code (optional)")
	inventoryAddCmd.Flags().String("inspection-date", "", "Inspection date (YYYY-MM-DD, optional)")
	inventoryAddCmd.Flags().String("defect", "", "Defect type (optional)")
	inventoryAddCmd.Flags().String("qr", "", "Write the QR code PNG to this file")
	inventoryAddCmd.Flags().Bool("qr-terminal", false, "Print the QR code to the terminal")

	inventoryInspectCmd.Flags().String("inspector", "", "Inspector code")
	inventoryInspectCmd.Flags().String("date", "", "Inspection date (YYYY-MM-DD, default today)")
	inventoryInspectCmd.Flags().String("defect", "", "Defect type, empty when none")
	inventoryInspectCmd.Flags().String("password", "", "Inspector password (default: inspector.password from config)")
}

func validateNewItem(item inventory.Item) error {
	var missing []string
	for name, v := range map[string]string{
		"--lot":       item.LotNumber,
		"--type":      item.ItemType,
		"--installed": item.InstallDate,
		"--warranty":  item.WarrantyPeriod,
		"--pole":      item.RailPoleNumber,
	} {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return fmt.Errorf("missing required flags: %s", strings.Join(missing, ", "))
	}
	if _, err := time.Parse("2006-01-02", item.InstallDate); err != nil {
		return fmt.Errorf("invalid --installed %q (expected YYYY-MM-DD)", item.InstallDate)
	}
	if _, err := expiry.ParseWarrantyYears(item.WarrantyPeriod); err != nil {
		return fmt.Errorf("invalid --warranty: %w", err)
	}
	if item.InspectionDate != "" {
		if _, err := time.Parse("2006-01-02", item.InspectionDate); err != nil {
			return fmt.Errorf("invalid --inspection-date %q (expected YYYY-MM-DD)", item.InspectionDate)
		}
	}
	if item.ManufactureDate != "" {
		if _, err := time.Parse("2006-01-02", item.ManufactureDate); err != nil {
			return fmt.Errorf("invalid --manufactured %q (expected YYYY-MM-DD)", item.ManufactureDate)
		}
	}
	return nil
}

func inspectorPassword(cmd *cobra.Command) string {
	if cmd.Flags().Changed("password") {
		p, _ := cmd.Flags().GetString("password")
		return p
	}
	return viper.GetString("inspector.password")
}

// prettyItem prints the service's own JSON when available.
func prettyItem(item inventory.Item) string {
	if item.Raw != "" {
		return strings.TrimSpace(gjson.Get(item.Raw, "@pretty").String())
	}
	b, _ := json.MarshalIndent(item, "", "  ")
	return string(b)
}
