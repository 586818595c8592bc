package messages

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAvailabilityChanged_RoundTripKeepsKeyAndDates(t *testing.T) {
	now := time.Date(2026, 7, 1, 8, 0, 0, 0, time.UTC)
	m := AvailabilityChanged{
		EntityID:       42,
		CheckedAt:      now,
		Dates:          []string{"2026-07-01", "2026-07-03"},
		RecordsCreated: 1,
		RecordsUpdated: 1,
		HistoryEntries: 2,
	}
	require.Equal(t, []byte("42"), m.Key())

	b, err := m.Marshal()
	require.NoError(t, err)
	require.Contains(t, string(b), `"entity_id":42`)

	got, err := UnmarshalAvailabilityChanged(b)
	require.NoError(t, err)
	require.Equal(t, m, got)
}

func TestUnmarshalAvailabilityChanged_Invalid(t *testing.T) {
	_, err := UnmarshalAvailabilityChanged([]byte("{"))
	require.Error(t, err)

	_, err = UnmarshalAvailabilityChanged([]byte(`{"checked_at":"2026-07-01T00:00:00Z"}`))
	require.Error(t, err)
}
