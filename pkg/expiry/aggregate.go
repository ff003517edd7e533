package expiry

import (
	"sort"
	"time"

	"github.com/railtrack-insight/trackwatch/pkg/inventory"
)

// Alert is an item inside the warranty window together with its assessment.
type Alert struct {
	Item       inventory.Item `json:"item"`
	Assessment Assessment     `json:"assessment"`
	Severity   Severity       `json:"severity"`
}

// InvalidItem is an item whose dates could not be evaluated.
type InvalidItem struct {
	Item  inventory.Item `json:"item"`
	Error string         `json:"error"`
}

// Report is the outcome of one evaluation. Total always equals
// Critical+Warning and len(Alerts).
type Report struct {
	EvaluatedAt time.Time     `json:"evaluated_at"`
	Thresholds  Thresholds    `json:"thresholds"`
	Critical    int           `json:"critical"`
	Warning     int           `json:"warning"`
	Total       int           `json:"total"`
	Expired     int           `json:"expired"`
	Alerts      []Alert       `json:"alerts"`
	Invalid     []InvalidItem `json:"invalid,omitempty"`
}

// Evaluate parses one item and computes its assessment.
func Evaluate(item inventory.Item, now time.Time) (Assessment, error) {
	installed, err := ParseInstallDate(item.InstallDate)
	if err != nil {
		return Assessment{}, err
	}
	years, err := ParseWarrantyYears(item.WarrantyPeriod)
	if err != nil {
		return Assessment{}, err
	}
	return ComputeExpiry(installed, years, now), nil
}

// Aggregate evaluates every item against now. Alerts keep the input order.
func Aggregate(items []inventory.Item, now time.Time, th Thresholds) Report {
	r := Report{EvaluatedAt: now, Thresholds: th, Alerts: []Alert{}}
	for _, item := range items {
		a, err := Evaluate(item, now)
		if err != nil {
			r.Invalid = append(r.Invalid, InvalidItem{Item: item, Error: err.Error()})
			continue
		}
		sev, ok := Classify(a.DaysRemaining, th)
		if !ok {
			if a.DaysRemaining <= 0 {
				r.Expired++
			}
			continue
		}
		switch sev {
		case SeverityCritical:
			r.Critical++
		case SeverityWarning:
			r.Warning++
		}
		r.Alerts = append(r.Alerts, Alert{Item: item, Assessment: a, Severity: sev})
	}
	r.Total = r.Critical + r.Warning
	return r
}

// SortByUrgency orders alerts by days remaining, soonest first. Ties keep
// their input order.
func (r *Report) SortByUrgency() {
	sort.SliceStable(r.Alerts, func(i, j int) bool {
		return r.Alerts[i].Assessment.DaysRemaining < r.Alerts[j].Assessment.DaysRemaining
	})
}

// Find returns the alert for an item key, if it is alerting.
func (r *Report) Find(key string) (Alert, bool) {
	for _, a := range r.Alerts {
		if a.Item.Key() == key {
			return a, true
		}
	}
	return Alert{}, false
}
