// Package expiry computes warranty expiry for installed track fittings and
// decides which of them need an operator alert.
package expiry

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

var (
	ErrInvalidDate     = errors.New("invalid install date")
	ErrInvalidWarranty = errors.New("invalid warranty period")
)

// Assessment is derived fresh on every evaluation and never stored on its own.
type Assessment struct {
	WarrantyEnd   time.Time `json:"warranty_end"`
	DaysRemaining int       `json:"days_remaining"`
}

// ComputeExpiry adds warrantyYears*12 calendar months to installDate and
// counts the whole days left until then, rounding up. The count is negative
// once the warranty has lapsed.
func ComputeExpiry(installDate time.Time, warrantyYears int, now time.Time) Assessment {
	end := installDate.AddDate(0, warrantyYears*12, 0)
	return Assessment{
		WarrantyEnd:   end,
		DaysRemaining: daysUntil(end, now),
	}
}

func daysUntil(end, now time.Time) int {
	d := end.Sub(now)
	return int(math.Ceil(float64(d) / float64(24*time.Hour)))
}

var dateLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseInstallDate accepts the date forms the inventory service emits.
// Values without a zone are read as UTC.
func ParseInstallDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("%w: empty", ErrInvalidDate)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
}

// ParseWarrantyYears reads the leading whole number of a warranty period
// such as "2", "2 Years" or "1 Year".
func ParseWarrantyYears(s string) (int, error) {
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWarranty, s)
	}
	years, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidWarranty, s)
	}
	// Anything past a few centuries would overflow time arithmetic.
	if years > 1000 {
		return 0, fmt.Errorf("%w: %q is out of range", ErrInvalidWarranty, s)
	}
	return years, nil
}
