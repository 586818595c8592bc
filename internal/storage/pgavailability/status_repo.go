package pgavailability

import (
	"context"
	"time"

	"github.com/BearBump/AvailBox/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/pkg/errors"
)

const statusCols = `entity_id, last_checked, last_success, has_data, consecutive_failures`

func scanStatus(row pgx.Row) (*models.StatusRecord, error) {
	var st models.StatusRecord
	if err := row.Scan(&st.EntityID, &st.LastChecked, &st.LastSuccess, &st.HasData, &st.ConsecutiveFailures); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *Storage) GetStatuses(ctx context.Context, ids []uint64) (map[uint64]*models.StatusRecord, error) {
	out := make(map[uint64]*models.StatusRecord, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	rows, err := s.db.Query(ctx, `SELECT `+statusCols+` FROM availability_status WHERE entity_id = ANY($1)`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "select statuses")
	}
	defer rows.Close()

	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan status")
		}
		out[st.EntityID] = st
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// UpsertStatuses writes already-computed status records in one statement.
func (s *Storage) UpsertStatuses(ctx context.Context, recs []*models.StatusRecord) error {
	if len(recs) == 0 {
		return nil
	}
	n := len(recs)
	ids := make([]uint64, n)
	checked := make([]time.Time, n)
	success := make([]*time.Time, n)
	hasData := make([]bool, n)
	failures := make([]int, n)
	for i, r := range recs {
		ids[i] = r.EntityID
		checked[i] = r.LastChecked
		success[i] = r.LastSuccess
		hasData[i] = r.HasData
		failures[i] = r.ConsecutiveFailures
	}

	_, err := s.db.Exec(ctx, `
INSERT INTO availability_status (`+statusCols+`)
SELECT * FROM unnest($1::bigint[], $2::timestamptz[], $3::timestamptz[], $4::bool[], $5::int[])
ON CONFLICT (entity_id) DO UPDATE SET
  last_checked = EXCLUDED.last_checked,
  last_success = EXCLUDED.last_success,
  has_data = EXCLUDED.has_data,
  consecutive_failures = EXCLUDED.consecutive_failures
`, ids, checked, success, hasData, failures)
	if err != nil {
		return errors.Wrap(err, "upsert statuses")
	}
	return nil
}

func (s *Storage) ListStatuses(ctx context.Context, limit, offset int) ([]*models.StatusRecord, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+statusCols+`
FROM availability_status
ORDER BY consecutive_failures DESC, entity_id
LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "select statuses")
	}
	defer rows.Close()

	var out []*models.StatusRecord
	for rows.Next() {
		st, err := scanStatus(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scan status")
		}
		out = append(out, st)
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	return out, nil
}

// ListStatusCheckedBefore returns bookable entities whose last poll attempt is older than t.
func (s *Storage) ListStatusCheckedBefore(ctx context.Context, t time.Time) ([]uint64, error) {
	return s.queryIDs(ctx, "select recheck candidates", `
SELECT st.entity_id
FROM availability_status st
WHERE st.last_checked < $1
  AND EXISTS (
    SELECT 1 FROM entity_sources es
    WHERE es.entity_id = st.entity_id AND es.bookable AND es.source <> '' AND es.source_id <> ''
  )
ORDER BY st.entity_id
`, t)
}

func (s *Storage) queryIDs(ctx context.Context, what, q string, args ...any) ([]uint64, error) {
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, errors.Wrap(err, what)
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[uint64])
	if err != nil {
		return nil, errors.Wrap(err, what)
	}
	return ids, nil
}
