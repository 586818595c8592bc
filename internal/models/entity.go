package models

import "fmt"

// SourceRef points at an entity in an external booking system.
type SourceRef struct {
	Source   string `json:"source"`
	SourceID string `json:"source_id"`
	Bookable bool   `json:"bookable"`
}

// Key is the identifier handed to the booking client, e.g. "hrs:1234".
func (r SourceRef) Key() string {
	return fmt.Sprintf("%s:%s", r.Source, r.SourceID)
}

func (r SourceRef) Valid() bool {
	return r.Bookable && r.Source != "" && r.SourceID != ""
}

// Entity is a tracked lodging as seen by the directory.
type Entity struct {
	ID      uint64      `json:"id"`
	Slug    string      `json:"slug"`
	Name    string      `json:"name"`
	Sources []SourceRef `json:"sources"`
}

// BookingRef returns the first valid bookable source reference.
func (e *Entity) BookingRef() (SourceRef, bool) {
	for _, s := range e.Sources {
		if s.Valid() {
			return s, true
		}
	}
	return SourceRef{}, false
}
