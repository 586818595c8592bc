package pgavailability

import (
	"context"
	"time"

	"github.com/BearBump/AvailBox/internal/models"
	"github.com/BearBump/AvailBox/internal/services/reconcile"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const availabilityCols = `
  a.id, a.entity_id, a.date, a.source, a.source_id,
  a.free, a.total,
  a.occupancy_percent, a.occupancy_steps, a.occupancy_status,
  a.reservation_status, a.type_tag, a.link,
  a.first_checked, a.last_checked`

func scanAvailability(row pgx.Row, a *models.Availability) error {
	return row.Scan(
		&a.ID, &a.EntityID, &a.Date, &a.Source, &a.SourceID,
		&a.Free, &a.Total,
		&a.OccupancyPercent, &a.OccupancySteps, &a.OccupancyStatus,
		&a.ReservationStatus, &a.TypeTag, &a.Link,
		&a.FirstChecked, &a.LastChecked,
	)
}

// PersistBatch reconciles one batch against the current-state table and writes
// the result in a single transaction. With extendHistory set, reconfirmed rows
// also bump last_checked of their latest history entry.
func (s *Storage) PersistBatch(ctx context.Context, batch []reconcile.EntityObservations, now time.Time, extendHistory bool) (map[uint64]*models.PersistStats, error) {
	keys := reconcile.Keys(batch)
	if len(keys) == 0 {
		plan := reconcile.Build(nil, batch, now)
		return plan.Stats, nil
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, errors.Wrap(err, "begin tx")
	}
	defer func() { _ = tx.Rollback(ctx) }()

	existing, err := lockExisting(ctx, tx, keys)
	if err != nil {
		return nil, err
	}

	plan := reconcile.Build(existing, batch, now)

	if err := insertCreates(ctx, tx, plan.Creates, now); err != nil {
		return nil, err
	}
	if err := applyChanges(ctx, tx, plan.Changes, now); err != nil {
		return nil, err
	}
	if len(plan.Touches) > 0 {
		if _, err := tx.Exec(ctx, `UPDATE availability SET last_checked = $1 WHERE id = ANY($2)`, now, plan.Touches); err != nil {
			return nil, errors.Wrap(err, "touch availability")
		}
		if extendHistory {
			if err := extendLatestHistory(ctx, tx, plan.Touches, now); err != nil {
				return nil, err
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, errors.Wrap(err, "commit tx")
	}
	return plan.Stats, nil
}

func lockExisting(ctx context.Context, tx pgx.Tx, keys []models.DateKey) (map[models.DateKey]*models.Availability, error) {
	entityIDs := make([]uint64, len(keys))
	dates := make([]time.Time, len(keys))
	for i, k := range keys {
		entityIDs[i] = k.EntityID
		dates[i] = k.Date
	}

	rows, err := tx.Query(ctx, `
SELECT`+availabilityCols+`
FROM availability a
JOIN unnest($1::bigint[], $2::date[]) AS k(entity_id, date)
  ON a.entity_id = k.entity_id AND a.date = k.date
FOR UPDATE OF a
`, entityIDs, dates)
	if err != nil {
		return nil, errors.Wrap(err, "select existing availability")
	}
	defer rows.Close()

	out := make(map[models.DateKey]*models.Availability, len(keys))
	for rows.Next() {
		var a models.Availability
		if err := scanAvailability(rows, &a); err != nil {
			return nil, errors.Wrap(err, "scan availability")
		}
		out[models.NewDateKey(a.EntityID, a.Date)] = &a
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

func insertCreates(ctx context.Context, tx pgx.Tx, creates []models.Availability, now time.Time) error {
	if len(creates) == 0 {
		return nil
	}
	n := len(creates)
	var (
		entityIDs   = make([]uint64, n)
		dates       = make([]time.Time, n)
		sources     = make([]string, n)
		sourceIDs   = make([]string, n)
		free        = make([]int, n)
		total       = make([]int, n)
		percents    = make([]float64, n)
		steps       = make([]int, n)
		statuses    = make([]string, n)
		reservation = make([]string, n)
		typeTags    = make([]string, n)
		links       = make([]string, n)
	)
	for i, a := range creates {
		entityIDs[i] = a.EntityID
		dates[i] = a.Date
		sources[i] = a.Source
		sourceIDs[i] = a.SourceID
		free[i] = a.Free
		total[i] = a.Total
		percents[i] = a.OccupancyPercent
		steps[i] = a.OccupancySteps
		statuses[i] = a.OccupancyStatus
		reservation[i] = a.ReservationStatus
		typeTags[i] = a.TypeTag
		links[i] = a.Link
	}

	// Каждая новая запись сразу получает начальную запись в истории.
	_, err := tx.Exec(ctx, `
WITH ins AS (
  INSERT INTO availability (
    entity_id, date, source, source_id, free, total,
    occupancy_percent, occupancy_steps, occupancy_status,
    reservation_status, type_tag, link, first_checked, last_checked
  )
  SELECT u.entity_id, u.date, u.source, u.source_id, u.free, u.total,
         u.occupancy_percent, u.occupancy_steps, u.occupancy_status,
         u.reservation_status, u.type_tag, u.link, $13, $13
  FROM unnest(
    $1::bigint[], $2::date[], $3::text[], $4::text[], $5::int[], $6::int[],
    $7::float8[], $8::int[], $9::text[], $10::text[], $11::text[], $12::text[]
  ) AS u(entity_id, date, source, source_id, free, total,
         occupancy_percent, occupancy_steps, occupancy_status,
         reservation_status, type_tag, link)
  RETURNING id, entity_id, date, free, total, occupancy_percent, occupancy_status, reservation_status, type_tag
)
INSERT INTO availability_history (
  availability_id, entity_id, date, free, total,
  occupancy_percent, occupancy_status, reservation_status, type_tag,
  first_checked, last_checked
)
SELECT id, entity_id, date, free, total,
       occupancy_percent, occupancy_status, reservation_status, type_tag,
       $13, $13
FROM ins
`, entityIDs, dates, sources, sourceIDs, free, total, percents, steps, statuses, reservation, typeTags, links, now)
	if err != nil {
		return errors.Wrap(err, "insert availability")
	}
	return nil
}

func applyChanges(ctx context.Context, tx pgx.Tx, changes []reconcile.Change, now time.Time) error {
	if len(changes) == 0 {
		return nil
	}
	n := len(changes)
	var (
		ids         = make([]uint64, n)
		entityIDs   = make([]uint64, n)
		dates       = make([]time.Time, n)
		free        = make([]int, n)
		total       = make([]int, n)
		percents    = make([]float64, n)
		steps       = make([]int, n)
		statuses    = make([]string, n)
		reservation = make([]string, n)
		typeTags    = make([]string, n)
	)
	for i, c := range changes {
		a := c.Current
		ids[i] = a.ID
		entityIDs[i] = a.EntityID
		dates[i] = a.Date
		free[i] = a.Free
		total[i] = a.Total
		percents[i] = a.OccupancyPercent
		steps[i] = a.OccupancySteps
		statuses[i] = a.OccupancyStatus
		reservation[i] = a.ReservationStatus
		typeTags[i] = a.TypeTag
	}

	_, err := tx.Exec(ctx, `
UPDATE availability a SET
  free = u.free,
  total = u.total,
  occupancy_percent = u.occupancy_percent,
  occupancy_steps = u.occupancy_steps,
  occupancy_status = u.occupancy_status,
  reservation_status = u.reservation_status,
  type_tag = u.type_tag,
  last_checked = $9
FROM unnest($1::bigint[], $2::int[], $3::int[], $4::float8[], $5::int[], $6::text[], $7::text[], $8::text[])
  AS u(id, free, total, occupancy_percent, occupancy_steps, occupancy_status, reservation_status, type_tag)
WHERE a.id = u.id
`, ids, free, total, percents, steps, statuses, reservation, typeTags, now)
	if err != nil {
		return errors.Wrap(err, "update availability")
	}

	_, err = tx.Exec(ctx, `
INSERT INTO availability_history (
  availability_id, entity_id, date, free, total,
  occupancy_percent, occupancy_status, reservation_status, type_tag,
  first_checked, last_checked
)
SELECT u.id, u.entity_id, u.date, u.free, u.total,
       u.occupancy_percent, u.occupancy_status, u.reservation_status, u.type_tag,
       $10, $10
FROM unnest($1::bigint[], $2::bigint[], $3::date[], $4::int[], $5::int[], $6::float8[], $7::text[], $8::text[], $9::text[])
  AS u(id, entity_id, date, free, total, occupancy_percent, occupancy_status, reservation_status, type_tag)
`, ids, entityIDs, dates, free, total, percents, statuses, reservation, typeTags, now)
	if err != nil {
		return errors.Wrap(err, "insert availability history")
	}
	return nil
}

// extendLatestHistory moves last_checked of the most recently created history
// entry of every given availability row, in one set-based statement.
func extendLatestHistory(ctx context.Context, tx pgx.Tx, availabilityIDs []uint64, now time.Time) error {
	_, err := tx.Exec(ctx, `
UPDATE availability_history h
SET last_checked = $1
FROM (
  SELECT DISTINCT ON (availability_id) id
  FROM availability_history
  WHERE availability_id = ANY($2)
  ORDER BY availability_id, first_checked DESC, id DESC
) latest
WHERE h.id = latest.id
`, now, availabilityIDs)
	if err != nil {
		return errors.Wrap(err, "extend latest history")
	}
	return nil
}
