package reconcile

import (
	"testing"
	"time"

	"github.com/BearBump/AvailBox/internal/models"
	"github.com/stretchr/testify/require"
)

var (
	day1 = time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	day2 = time.Date(2026, 7, 2, 0, 0, 0, 0, time.UTC)
	t0   = time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
)

func obs(d time.Time, free, total int) models.Observation {
	return models.Observation{Date: d, Free: free, Total: total, ReservationStatus: models.ReservationPossible, TypeTag: "open", Link: "https://book/1"}
}

func existingRow(id uint64, d time.Time, free, total int) *models.Availability {
	occ := models.DeriveOccupancy(free, total)
	return &models.Availability{
		ID: id, EntityID: 1, Date: d, Free: free, Total: total,
		OccupancyPercent: occ.Percent, OccupancySteps: occ.Steps, OccupancyStatus: occ.Status,
		ReservationStatus: models.ReservationPossible, TypeTag: "open",
		FirstChecked: t0.Add(-time.Hour), LastChecked: t0.Add(-time.Hour),
	}
}

func TestBuild_CreatesWithInitialHistory(t *testing.T) {
	batch := []EntityObservations{{EntityID: 1, Source: "hrs", SourceID: "42", Observations: []models.Observation{obs(day1, 5, 10), obs(day2, 0, 10)}}}

	p := Build(nil, batch, t0)
	require.Len(t, p.Creates, 2)
	require.Empty(t, p.Changes)
	require.Empty(t, p.Touches)

	a := p.Creates[0]
	require.Equal(t, t0, a.FirstChecked)
	require.Equal(t, t0, a.LastChecked)
	require.Equal(t, "hrs", a.Source)
	require.Equal(t, "42", a.SourceID)
	require.Equal(t, models.OccupancyMedium, a.OccupancyStatus)
	require.Equal(t, models.OccupancyFull, p.Creates[1].OccupancyStatus)

	st := p.Stats[1]
	require.Equal(t, 2, st.RecordsCreated)
	require.Equal(t, 2, st.HistoryEntries)
	require.Equal(t, []string{"2026-07-01", "2026-07-02"}, st.ChangedDates)
}

func TestBuild_ChangeAppendsOneHistoryEntry(t *testing.T) {
	existing := map[models.DateKey]*models.Availability{
		models.NewDateKey(1, day1): existingRow(11, day1, 5, 10),
	}
	batch := []EntityObservations{{EntityID: 1, Observations: []models.Observation{obs(day1, 2, 10)}}}

	p := Build(existing, batch, t0)
	require.Empty(t, p.Creates)
	require.Empty(t, p.Touches)
	require.Len(t, p.Changes, 1)

	c := p.Changes[0]
	require.Equal(t, uint64(11), c.Current.ID)
	require.Equal(t, 2, c.Current.Free)
	require.Equal(t, 10, c.Current.Total)
	require.Equal(t, t0, c.Current.LastChecked)
	require.Equal(t, t0.Add(-time.Hour), c.Current.FirstChecked)
	require.Equal(t, models.OccupancyHigh, c.Current.OccupancyStatus)

	require.Equal(t, uint64(11), c.History.AvailabilityID)
	require.Equal(t, 2, c.History.Free)
	require.Equal(t, t0, c.History.FirstChecked)
	require.Equal(t, t0, c.History.LastChecked)

	require.Equal(t, 1, p.Stats[1].RecordsUpdated)
	require.Equal(t, 1, p.Stats[1].HistoryEntries)

	// the input row is not mutated
	require.Equal(t, 5, existing[models.NewDateKey(1, day1)].Free)
}

func TestBuild_UnchangedOnlyTouches(t *testing.T) {
	existing := map[models.DateKey]*models.Availability{
		models.NewDateKey(1, day1): existingRow(11, day1, 2, 10),
	}
	batch := []EntityObservations{{EntityID: 1, Observations: []models.Observation{obs(day1, 2, 10)}}}

	p := Build(existing, batch, t0)
	require.Equal(t, []uint64{11}, p.Touches)
	require.Empty(t, p.Changes)
	require.Empty(t, p.Creates)
	require.Equal(t, 0, p.Stats[1].HistoryEntries)
	require.Empty(t, p.Stats[1].ChangedDates)
}

func TestBuild_DerivedFieldsIgnoredForComparison(t *testing.T) {
	row := existingRow(11, day1, 2, 10)
	row.OccupancyStatus = models.OccupancyUnknown
	row.OccupancyPercent = 0
	existing := map[models.DateKey]*models.Availability{models.NewDateKey(1, day1): row}

	o := obs(day1, 2, 10)
	o.Link = "https://other"
	p := Build(existing, []EntityObservations{{EntityID: 1, Observations: []models.Observation{o}}}, t0)
	require.Equal(t, []uint64{11}, p.Touches)
}

func TestBuild_TypeTagAndReservationStatusAreTracked(t *testing.T) {
	existing := map[models.DateKey]*models.Availability{
		models.NewDateKey(1, day1): existingRow(11, day1, 2, 10),
		models.NewDateKey(1, day2): existingRow(12, day2, 2, 10),
	}
	closed := obs(day1, 2, 10)
	closed.TypeTag = "closed"
	offline := obs(day2, 2, 10)
	offline.ReservationStatus = "NOT_ONLINE"

	p := Build(existing, []EntityObservations{{EntityID: 1, Observations: []models.Observation{closed, offline}}}, t0)
	require.Len(t, p.Changes, 2)
	require.Equal(t, "closed", p.Changes[0].Current.TypeTag)
	require.Equal(t, models.ReservationNotOnline, p.Changes[1].Current.ReservationStatus)
}

func TestBuild_DefaultsBlankFields(t *testing.T) {
	o := models.Observation{Date: day1.Add(13 * time.Hour), Free: 1, Total: 2}
	p := Build(nil, []EntityObservations{{EntityID: 3, Observations: []models.Observation{o}}}, t0)
	require.Len(t, p.Creates, 1)
	require.Equal(t, day1, p.Creates[0].Date)
	require.Equal(t, models.ReservationUnknown, p.Creates[0].ReservationStatus)
	require.Equal(t, "unknown", p.Creates[0].TypeTag)
}

func TestBuild_DuplicateDateLastWins(t *testing.T) {
	p := Build(nil, []EntityObservations{{EntityID: 1, Observations: []models.Observation{obs(day1, 5, 10), obs(day1, 3, 10)}}}, t0)
	require.Len(t, p.Creates, 1)
	require.Equal(t, 3, p.Creates[0].Free)
	require.Equal(t, 1, p.Stats[1].HistoryEntries)
}

func TestBuild_EntityWithoutObservationsGetsZeroStats(t *testing.T) {
	p := Build(nil, []EntityObservations{{EntityID: 8}}, t0)
	require.True(t, p.Empty())
	require.NotNil(t, p.Stats[8])
}

func TestBuild_SecondIdenticalRunIsIdempotent(t *testing.T) {
	batch := []EntityObservations{{EntityID: 1, Observations: []models.Observation{obs(day1, 2, 10)}}}
	first := Build(nil, batch, t0)
	require.Len(t, first.Creates, 1)

	row := first.Creates[0]
	row.ID = 100
	existing := map[models.DateKey]*models.Availability{models.NewDateKey(1, day1): &row}

	second := Build(existing, batch, t0.Add(time.Minute))
	require.Empty(t, second.Creates)
	require.Empty(t, second.Changes)
	require.Equal(t, []uint64{100}, second.Touches)
}

func TestKeys(t *testing.T) {
	keys := Keys([]EntityObservations{
		{EntityID: 1, Observations: []models.Observation{obs(day1, 1, 2), obs(day1.Add(time.Hour), 1, 2), obs(day2, 1, 2)}},
		{EntityID: 2, Observations: []models.Observation{obs(day1, 1, 2)}},
	})
	require.Equal(t, []models.DateKey{
		models.NewDateKey(1, day1), models.NewDateKey(1, day2), models.NewDateKey(2, day1),
	}, keys)
}
