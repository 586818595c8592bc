package pgavailability

import (
	"context"
	"time"

	"github.com/BearBump/AvailBox/internal/models"
	"github.com/BearBump/AvailBox/internal/services/scheduler"
	"github.com/pkg/errors"
)

// ListStaleAvailabilityEntities returns entities with an in-window record whose
// occupancy class matches a cutoff and whose last_checked is older than it.
func (s *Storage) ListStaleAvailabilityEntities(ctx context.Context, from, to time.Time, cutoffs []scheduler.TierCutoff) ([]uint64, error) {
	var statuses []string
	var before []time.Time
	for _, c := range cutoffs {
		for _, st := range c.Statuses {
			statuses = append(statuses, st)
			before = append(before, c.Before)
		}
	}
	if len(statuses) == 0 {
		return []uint64{}, nil
	}

	return s.queryIDs(ctx, "select stale availability", `
SELECT DISTINCT a.entity_id
FROM availability a
JOIN unnest($3::text[], $4::timestamptz[]) AS c(status, before)
  ON a.occupancy_status = c.status
WHERE a.date BETWEEN $1::date AND $2::date
  AND a.last_checked < c.before
ORDER BY a.entity_id
`, from, to, statuses, before)
}

// ListAvailabilityRange returns current-state rows dated within [from, to].
// entityID 0 means all entities.
func (s *Storage) ListAvailabilityRange(ctx context.Context, entityID uint64, from, to time.Time) ([]*models.Availability, error) {
	rows, err := s.db.Query(ctx, `
SELECT`+availabilityCols+`
FROM availability a
WHERE a.date BETWEEN $1::date AND $2::date
  AND ($3::bigint = 0 OR a.entity_id = $3)
ORDER BY a.entity_id, a.date
`, from, to, entityID)
	if err != nil {
		return nil, errors.Wrap(err, "select availability range")
	}
	defer rows.Close()

	out := []*models.Availability{}
	for rows.Next() {
		var a models.Availability
		if err := scanAvailability(rows, &a); err != nil {
			return nil, errors.Wrap(err, "scan availability")
		}
		out = append(out, &a)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ListHistoryTrend returns history for (entity, date) first seen at or after since,
// oldest first.
func (s *Storage) ListHistoryTrend(ctx context.Context, entityID uint64, date, since time.Time) ([]*models.HistoryEntry, error) {
	rows, err := s.db.Query(ctx, `
SELECT id, availability_id, entity_id, date, free, total,
       occupancy_percent, occupancy_status, reservation_status, type_tag,
       first_checked, last_checked
FROM availability_history
WHERE entity_id = $1 AND date = $2::date AND first_checked >= $3
ORDER BY first_checked, id
`, entityID, models.DateOnly(date), since)
	if err != nil {
		return nil, errors.Wrap(err, "select history trend")
	}
	defer rows.Close()

	out := []*models.HistoryEntry{}
	for rows.Next() {
		var h models.HistoryEntry
		if err := rows.Scan(
			&h.ID, &h.AvailabilityID, &h.EntityID, &h.Date, &h.Free, &h.Total,
			&h.OccupancyPercent, &h.OccupancyStatus, &h.ReservationStatus, &h.TypeTag,
			&h.FirstChecked, &h.LastChecked,
		); err != nil {
			return nil, errors.Wrap(err, "scan history")
		}
		out = append(out, &h)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}
