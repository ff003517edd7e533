package inventory

import (
	"net/url"
	"strings"
)

// Item is a track-fitting component record as stored by the inventory
// service. Every field is kept as text because the service is not strict
// about numbers versus strings.
type Item struct {
	ID              string `json:"id,omitempty"`
	Vendor          string `json:"vendor"`
	VendorID        string `json:"vendor_id"`
	LotNumber       string `json:"lot_number"`
	ItemType        string `json:"item_type"`
	ItemMaterial    string `json:"item_material"`
	ManufactureDate string `json:"manufacture_date"`
	InstallDate     string `json:"install_date"`
	WarrantyPeriod  string `json:"warranty_period"`
	RailPoleNumber  string `json:"rail_pole_number"`
	InspectorCode   string `json:"inspector_code"`
	InspectionDate  string `json:"inspection_date"`
	DefectType      string `json:"defect_type"`

	// Raw is the item JSON exactly as the service returned it.
	Raw string `json:"-"`
}

// Key identifies an item across evaluations: the service id when present,
// otherwise lot number plus rail pole.
func (i Item) Key() string {
	if i.ID != "" {
		return "id:" + i.ID
	}
	return "lot:" + i.LotNumber + "/" + i.RailPoleNumber
}

// Inspection holds the fields an inspector may change after installation.
type Inspection struct {
	InspectionDate string `json:"inspection_date"`
	InspectorCode  string `json:"inspector_code"`
	DefectType     string `json:"defect_type"`
}

// Stats mirrors the counters served by /inventory/stats.
type Stats struct {
	Total             int64 `json:"total"`
	Defective         int64 `json:"defective"`
	PendingInspection int64 `json:"pending_inspection"`
	WarrantyExpired   int64 `json:"warranty_expired"`
}

// TypeAnalytics is one row of /analytics.
type TypeAnalytics struct {
	ItemType       string `json:"item_type"`
	TotalCount     int64  `json:"total_count"`
	DefectiveCount int64  `json:"defective_count"`
}

// ItemTypes lists the component kinds the registration form offers.
var ItemTypes = []string{"Rail Clips", "Rubber Pad", "Sleeper", "Liner"}

// DetailsURL builds the link encoded in an item's QR code.
func DetailsURL(baseURL, id string) string {
	return strings.TrimRight(baseURL, "/") + "/details?id=" + url.QueryEscape(id)
}

// Match returns the items selected by key, or by lot number and optionally
// rail pole when key is empty.
func Match(items []Item, key, lot, pole string) []Item {
	var out []Item
	for _, it := range items {
		switch {
		case key != "":
			if it.Key() != key {
				continue
			}
		case lot != "":
			if it.LotNumber != lot || (pole != "" && it.RailPoleNumber != pole) {
				continue
			}
		default:
			continue
		}
		out = append(out, it)
	}
	return out
}
