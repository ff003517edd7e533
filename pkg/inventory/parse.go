package inventory

import (
	"errors"
	"fmt"

	"github.com/tidwall/gjson"
)

// ParseItems decodes the JSON array returned by GET /inventory.
func ParseItems(body string) ([]Item, error) {
	if !gjson.Valid(body) {
		return nil, errors.New("inventory response is not valid JSON")
	}
	res := gjson.Parse(body)
	if !res.IsArray() {
		return nil, fmt.Errorf("inventory response is a %s, expected an array", res.Type)
	}
	items := make([]Item, 0, int(res.Get("#").Int()))
	res.ForEach(func(_, v gjson.Result) bool {
		if v.IsObject() {
			items = append(items, ParseItem(v))
		}
		return true
	})
	return items, nil
}

// ParseItem reads a single item object. Numbers are kept as their JSON text
// and null or missing fields become empty strings.
func ParseItem(v gjson.Result) Item {
	return Item{
		ID:              firstString(v, "id", "_id"),
		Vendor:          v.Get("vendor").String(),
		VendorID:        v.Get("vendor_id").String(),
		LotNumber:       v.Get("lot_number").String(),
		ItemType:        v.Get("item_type").String(),
		ItemMaterial:    v.Get("item_material").String(),
		ManufactureDate: v.Get("manufacture_date").String(),
		InstallDate:     v.Get("install_date").String(),
		WarrantyPeriod:  v.Get("warranty_period").String(),
		RailPoleNumber:  v.Get("rail_pole_number").String(),
		InspectorCode:   v.Get("inspector_code").String(),
		InspectionDate:  v.Get("inspection_date").String(),
		DefectType:      v.Get("defect_type").String(),
		Raw:             v.Raw,
	}
}

// ParseStats decodes GET /inventory/stats, where every counter is wrapped in
// a one-element array of {count}.
func ParseStats(body string) (Stats, error) {
	if !gjson.Valid(body) {
		return Stats{}, errors.New("stats response is not valid JSON")
	}
	return Stats{
		Total:             gjson.Get(body, "total.0.count").Int(),
		Defective:         gjson.Get(body, "defective.0.count").Int(),
		PendingInspection: gjson.Get(body, "pendingInspection.0.count").Int(),
		WarrantyExpired:   gjson.Get(body, "warrantyExpired.0.count").Int(),
	}, nil
}

// ParseAnalytics decodes GET /analytics.
func ParseAnalytics(body string) ([]TypeAnalytics, error) {
	if !gjson.Valid(body) {
		return nil, errors.New("analytics response is not valid JSON")
	}
	res := gjson.Parse(body)
	if !res.IsArray() {
		return nil, fmt.Errorf("analytics response is a %s, expected an array", res.Type)
	}
	var out []TypeAnalytics
	for _, v := range res.Array() {
		out = append(out, TypeAnalytics{
			ItemType:       v.Get("item_type").String(),
			TotalCount:     v.Get("total_count").Int(),
			DefectiveCount: v.Get("defective_count").Int(),
		})
	}
	return out, nil
}

func firstString(v gjson.Result, paths ...string) string {
	for _, p := range paths {
		if r := v.Get(p); r.Exists() && r.String() != "" {
			return r.String()
		}
	}
	return ""
}
