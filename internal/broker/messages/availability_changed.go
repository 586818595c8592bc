package messages

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// AvailabilityChanged is published once per entity whose persisted
// availability produced at least one history entry during a run.
type AvailabilityChanged struct {
	EntityID  uint64    `json:"entity_id"`
	CheckedAt time.Time `json:"checked_at"`

	Dates []string `json:"dates,omitempty"`

	RecordsCreated int `json:"records_created"`
	RecordsUpdated int `json:"records_updated"`
	HistoryEntries int `json:"history_entries"`
}

func (m AvailabilityChanged) Key() []byte {
	return []byte(strconv.FormatUint(m.EntityID, 10))
}

func (m AvailabilityChanged) Marshal() ([]byte, error) {
	b, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(err, "marshal availability changed")
	}
	return b, nil
}

func UnmarshalAvailabilityChanged(b []byte) (AvailabilityChanged, error) {
	var m AvailabilityChanged
	if err := json.Unmarshal(b, &m); err != nil {
		return AvailabilityChanged{}, errors.Wrap(err, "unmarshal availability changed")
	}
	if m.EntityID == 0 {
		return AvailabilityChanged{}, errors.New("entity_id is required")
	}
	return m, nil
}
