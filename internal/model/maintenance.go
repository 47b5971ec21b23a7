package model

import (
	"strconv"
	"strings"
	"time"
)

// DateLayout is the calendar date format used for record dates in forms and views.
const DateLayout = "2006-01-02"

// MaintenanceRecord is a single service entry for a user's vehicle.
type MaintenanceRecord struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Date        time.Time `json:"date"`
	ServiceType string    `json:"service_type"`
	Cost        float64   `json:"cost"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// DateString returns the record date as YYYY-MM-DD.
func (r *MaintenanceRecord) DateString() string {
	return r.Date.Format(DateLayout)
}

// CostString returns the cost exactly as stored, padded to at least two
// decimal places.
func (r *MaintenanceRecord) CostString() string {
	s := strconv.FormatFloat(r.Cost, 'f', -1, 64)
	dot := strings.IndexByte(s, '.')
	switch {
	case dot < 0:
		return s + ".00"
	case len(s)-dot-1 < 2:
		return s + "0"
	default:
		return s
	}
}

// TruncateToDate drops the clock part of t, keeping the calendar day in UTC.
func TruncateToDate(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
