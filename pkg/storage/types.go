package storage

import "time"

// Run is one recorded evaluation of the inventory.
type Run struct {
	ID       string
	RanAt    time.Time
	Critical int
	Warning  int
	Expired  int
	Invalid  int
}

// AlertEntry is an item that is alerting as of the latest run.
type AlertEntry struct {
	ItemKey        string    `json:"item_key"`
	ItemID         string    `json:"item_id,omitempty"`
	LotNumber      string    `json:"lot_number"`
	ItemType       string    `json:"item_type"`
	RailPoleNumber string    `json:"rail_pole_number"`
	Vendor         string    `json:"vendor"`
	Severity       string    `json:"severity"`
	DaysRemaining  int       `json:"days_remaining"`
	WarrantyEnd    time.Time `json:"warranty_end"`
	FirstSeenAt    time.Time `json:"first_seen_at"`
	LastSeenAt     time.Time `json:"last_seen_at"`
}

// Change captures a single change to the alerting set for auditing or printing.
type Change struct {
	OccurredAt time.Time `json:"occurred_at"`
	RunID      string    `json:"run_id"`

	// Item info
	ItemKey        string `json:"item_key"`
	LotNumber      string `json:"lot_number"`
	ItemType       string `json:"item_type"`
	RailPoleNumber string `json:"rail_pole_number"`

	Severity         string `json:"severity"`
	PreviousSeverity string `json:"previous_severity,omitempty"`
	DaysRemaining    int    `json:"days_remaining"`
	ChangeType       string `json:"change_type"` // added | updated | removed
}

const (
	ChangeAdded   = "added"
	ChangeUpdated = "updated"
	ChangeRemoved = "removed"
)

// Notification is one recorded send attempt.
type Notification struct {
	ID             int64     `json:"id"`
	SentAt         time.Time `json:"sent_at"`
	ItemKey        string    `json:"item_key"`
	LotNumber      string    `json:"lot_number"`
	ItemType       string    `json:"item_type"`
	RailPoleNumber string    `json:"rail_pole_number"`
	Channel        string    `json:"channel"`
	Message        string    `json:"message"`
	Status         string    `json:"status"` // sent | failed
	Error          string    `json:"error,omitempty"`
}

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

// Stats summarizes the database contents.
type Stats struct {
	Runs                int       `json:"runs"`
	LastRunAt           time.Time `json:"last_run_at"`
	ActiveCritical      int       `json:"active_critical"`
	ActiveWarning       int       `json:"active_warning"`
	Changes             int       `json:"changes"`
	NotificationsSent   int       `json:"notifications_sent"`
	NotificationsFailed int       `json:"notifications_failed"`
}
