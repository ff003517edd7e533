package expiry

import "fmt"

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
)

const (
	DefaultAlertDays    = 30
	DefaultCriticalDays = 7
)

// Thresholds bound the alert window. Items expiring within AlertDays are
// reported; those within CriticalDays are critical.
type Thresholds struct {
	AlertDays    int `json:"alert_days"`
	CriticalDays int `json:"critical_days"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{AlertDays: DefaultAlertDays, CriticalDays: DefaultCriticalDays}
}

func (th Thresholds) Validate() error {
	if th.AlertDays <= 0 || th.CriticalDays <= 0 {
		return fmt.Errorf("alert thresholds must be positive (window %d, critical %d)", th.AlertDays, th.CriticalDays)
	}
	if th.CriticalDays > th.AlertDays {
		return fmt.Errorf("critical threshold %d exceeds alert window %d", th.CriticalDays, th.AlertDays)
	}
	return nil
}

// Classify returns false when the item should not alert: already expired or
// not yet inside the window.
func Classify(daysRemaining int, th Thresholds) (Severity, bool) {
	switch {
	case daysRemaining <= 0 || daysRemaining > th.AlertDays:
		return "", false
	case daysRemaining <= th.CriticalDays:
		return SeverityCritical, true
	default:
		return SeverityWarning, true
	}
}
