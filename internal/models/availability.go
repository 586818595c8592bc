package models

import "time"

// Observation is one per-date data point returned by a booking source.
type Observation struct {
	Date              time.Time
	Free              int
	Total             int
	ReservationStatus string
	TypeTag           string
	Link              string
}

// Availability is the current state of an entity for one target date.
// Unique on (EntityID, Date).
type Availability struct {
	ID                uint64
	EntityID          uint64
	Date              time.Time
	Source            string
	SourceID          string
	Free              int
	Total             int
	OccupancyPercent  float64
	OccupancySteps    int
	OccupancyStatus   string
	ReservationStatus string
	TypeTag           string
	Link              string
	FirstChecked      time.Time
	LastChecked       time.Time
}

// HistoryEntry is an append-only snapshot of one distinct observed state.
type HistoryEntry struct {
	ID                uint64
	AvailabilityID    uint64
	EntityID          uint64
	Date              time.Time
	Free              int
	Total             int
	OccupancyPercent  float64
	OccupancyStatus   string
	ReservationStatus string
	TypeTag           string
	FirstChecked      time.Time
	LastChecked       time.Time
}

// Duration is how long this state was observed to hold.
func (h *HistoryEntry) Duration() time.Duration {
	return h.LastChecked.Sub(h.FirstChecked)
}

// DateKey identifies an availability row.
type DateKey struct {
	EntityID uint64
	Date     time.Time
}

// NewDateKey truncates the date to midnight UTC so keys compare equal.
func NewDateKey(entityID uint64, d time.Time) DateKey {
	return DateKey{EntityID: entityID, Date: DateOnly(d)}
}

// DateOnly normalizes t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
