package tracker

import (
	"context"
	"sort"
	"time"

	"github.com/BearBump/AvailBox/internal/models"
	"github.com/pkg/errors"
)

type Repository interface {
	GetStatuses(ctx context.Context, entityIDs []uint64) (map[uint64]*models.StatusRecord, error)
	UpsertStatuses(ctx context.Context, recs []*models.StatusRecord) error
}

// Tracker reads and writes per-entity poll status.
type Tracker struct {
	repo Repository
}

func New(repo Repository) *Tracker {
	return &Tracker{repo: repo}
}

func (t *Tracker) MarkSuccess(ctx context.Context, entityID uint64, now time.Time) error {
	return t.BulkUpdate(ctx, []uint64{entityID}, nil, now)
}

func (t *Tracker) MarkFailure(ctx context.Context, entityID uint64, now time.Time) error {
	return t.BulkUpdate(ctx, nil, []uint64{entityID}, now)
}

// BulkUpdate loads existing records once, applies the transitions in memory and
// writes everything back in a single upsert.
func (t *Tracker) BulkUpdate(ctx context.Context, succeeded, failed []uint64, now time.Time) error {
	ids := make([]uint64, 0, len(succeeded)+len(failed))
	ids = append(ids, succeeded...)
	ids = append(ids, failed...)
	if len(ids) == 0 {
		return nil
	}

	existing, err := t.repo.GetStatuses(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "get statuses")
	}

	recs := Apply(existing, succeeded, failed, now)
	if err := t.repo.UpsertStatuses(ctx, recs); err != nil {
		return errors.Wrap(err, "upsert statuses")
	}
	return nil
}

// Apply computes the new status records. Entities without a prior record get a
// fresh one. An id present in both sets is counted once, as a failure.
func Apply(existing map[uint64]*models.StatusRecord, succeeded, failed []uint64, now time.Time) []*models.StatusRecord {
	out := make(map[uint64]*models.StatusRecord, len(succeeded)+len(failed))
	get := func(id uint64) *models.StatusRecord {
		if r, ok := out[id]; ok {
			return r
		}
		r := &models.StatusRecord{EntityID: id}
		if prev, ok := existing[id]; ok && prev != nil {
			cp := *prev
			r = &cp
		}
		out[id] = r
		return r
	}

	seen := make(map[uint64]struct{}, len(succeeded)+len(failed))
	for _, id := range failed {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		get(id).MarkFailure(now)
	}
	for _, id := range succeeded {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		get(id).MarkSuccess(now)
	}

	recs := make([]*models.StatusRecord, 0, len(out))
	for _, r := range out {
		recs = append(recs, r)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].EntityID < recs[j].EntityID })
	return recs
}
