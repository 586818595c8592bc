package models

import "time"

// StatusRecord is the per-entity poll bookkeeping.
type StatusRecord struct {
	EntityID            uint64     `json:"entity_id"`
	LastChecked         time.Time  `json:"last_checked"`
	LastSuccess         *time.Time `json:"last_success,omitempty"`
	HasData             bool       `json:"has_data"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
}

// MarkSuccess records a poll that returned data.
func (s *StatusRecord) MarkSuccess(now time.Time) {
	s.LastChecked = now
	t := now
	s.LastSuccess = &t
	s.HasData = true
	s.ConsecutiveFailures = 0
}

// MarkFailure records a poll that failed or returned nothing.
// HasData and LastSuccess are left untouched.
func (s *StatusRecord) MarkFailure(now time.Time) {
	s.LastChecked = now
	s.ConsecutiveFailures++
}
