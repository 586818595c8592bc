package pgavailability

import (
	"context"

	"github.com/BearBump/AvailBox/internal/models"
	"github.com/pkg/errors"
)

func (s *Storage) GetEntitiesByIDs(ctx context.Context, ids []uint64) ([]*models.Entity, error) {
	if len(ids) == 0 {
		return []*models.Entity{}, nil
	}
	return s.loadEntities(ctx, `SELECT id, slug, name FROM entities WHERE id = ANY($1) ORDER BY id`, ids)
}

func (s *Storage) GetEntitiesBySlugs(ctx context.Context, slugs []string) ([]*models.Entity, error) {
	if len(slugs) == 0 {
		return []*models.Entity{}, nil
	}
	return s.loadEntities(ctx, `SELECT id, slug, name FROM entities WHERE slug = ANY($1) ORDER BY id`, slugs)
}

// ListBookableEntityIDs returns every entity with at least one valid bookable reference.
func (s *Storage) ListBookableEntityIDs(ctx context.Context) ([]uint64, error) {
	return s.queryIDs(ctx, "select bookable entities", `
SELECT DISTINCT entity_id
FROM entity_sources
WHERE bookable AND source <> '' AND source_id <> ''
ORDER BY entity_id
`)
}

// ListUncheckedBookableEntities returns bookable entities that were never polled.
func (s *Storage) ListUncheckedBookableEntities(ctx context.Context) ([]uint64, error) {
	return s.queryIDs(ctx, "select unchecked entities", `
SELECT DISTINCT es.entity_id
FROM entity_sources es
WHERE es.bookable AND es.source <> '' AND es.source_id <> ''
  AND NOT EXISTS (SELECT 1 FROM availability_status st WHERE st.entity_id = es.entity_id)
ORDER BY es.entity_id
`)
}

func (s *Storage) loadEntities(ctx context.Context, q string, arg any) ([]*models.Entity, error) {
	rows, err := s.db.Query(ctx, q, arg)
	if err != nil {
		return nil, errors.Wrap(err, "select entities")
	}
	defer rows.Close()

	var out []*models.Entity
	byID := make(map[uint64]*models.Entity)
	for rows.Next() {
		var e models.Entity
		if err := rows.Scan(&e.ID, &e.Slug, &e.Name); err != nil {
			return nil, errors.Wrap(err, "scan entity")
		}
		out = append(out, &e)
		byID[e.ID] = &e
	}
	if rows.Err() != nil {
		return nil, errors.Wrap(rows.Err(), "rows")
	}
	if len(out) == 0 {
		return []*models.Entity{}, nil
	}

	ids := make([]uint64, 0, len(out))
	for _, e := range out {
		ids = append(ids, e.ID)
	}
	srows, err := s.db.Query(ctx, `
SELECT entity_id, source, source_id, bookable
FROM entity_sources
WHERE entity_id = ANY($1)
ORDER BY entity_id, bookable DESC, source
`, ids)
	if err != nil {
		return nil, errors.Wrap(err, "select entity sources")
	}
	defer srows.Close()

	for srows.Next() {
		var id uint64
		var ref models.SourceRef
		if err := srows.Scan(&id, &ref.Source, &ref.SourceID, &ref.Bookable); err != nil {
			return nil, errors.Wrap(err, "scan entity source")
		}
		if e, ok := byID[id]; ok {
			e.Sources = append(e.Sources, ref)
		}
	}
	if srows.Err() != nil {
		return nil, errors.Wrap(srows.Err(), "rows")
	}
	return out, nil
}
