package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// TierCutoff selects records of the given status classes checked before Before.
type TierCutoff struct {
	Tier     Tier
	Statuses []string
	Before   time.Time
}

// Repository is the read side the scheduler needs from storage.
type Repository interface {
	// ListStaleAvailabilityEntities returns distinct entity ids that have at least one
	// current-state record dated within [from, to] matching any cutoff.
	ListStaleAvailabilityEntities(ctx context.Context, from, to time.Time, cutoffs []TierCutoff) ([]uint64, error)
	// ListStatusCheckedBefore returns entity ids whose status record was last checked before t.
	ListStatusCheckedBefore(ctx context.Context, t time.Time) ([]uint64, error)
	// ListUncheckedBookableEntities returns bookable entity ids without any status record.
	ListUncheckedBookableEntities(ctx context.Context) ([]uint64, error)
}

type Scheduler struct {
	repo Repository
	th   Thresholds
}

func New(repo Repository, th Thresholds) *Scheduler {
	return &Scheduler{repo: repo, th: th.withDefaults()}
}

func (s *Scheduler) Thresholds() Thresholds { return s.th }

// Selection is the scheduler output split by reason.
type Selection struct {
	Stale     []uint64
	Recheck   []uint64
	New       []uint64
	EntityIDs []uint64
}

// DueEntities returns the distinct union of stale, recheck and never-polled entities.
// An entity that has a status record but no current-state record in the window and
// is not past the inactive threshold is deliberately left out.
func (s *Scheduler) DueEntities(ctx context.Context, now time.Time) (Selection, error) {
	from, to := s.th.Window(now)

	cutoffs := make([]TierCutoff, 0, len(Tiers))
	for _, tier := range Tiers {
		cutoffs = append(cutoffs, TierCutoff{
			Tier:     tier,
			Statuses: StatusesFor(tier),
			Before:   s.th.Cutoff(tier, now),
		})
	}

	var sel Selection
	var err error
	sel.Stale, err = s.repo.ListStaleAvailabilityEntities(ctx, from, to, cutoffs)
	if err != nil {
		return Selection{}, errors.Wrap(err, "list stale availability")
	}
	sel.Recheck, err = s.repo.ListStatusCheckedBefore(ctx, s.th.Cutoff(TierInactive, now))
	if err != nil {
		return Selection{}, errors.Wrap(err, "list recheck candidates")
	}
	sel.New, err = s.repo.ListUncheckedBookableEntities(ctx)
	if err != nil {
		return Selection{}, errors.Wrap(err, "list new entities")
	}

	sel.EntityIDs = union(sel.Stale, sel.Recheck, sel.New)
	slog.Info("scheduler selection",
		"stale", len(sel.Stale), "recheck", len(sel.Recheck), "new", len(sel.New), "total", len(sel.EntityIDs))
	return sel, nil
}

func union(sets ...[]uint64) []uint64 {
	seen := make(map[uint64]struct{})
	var out []uint64
	for _, set := range sets {
		for _, id := range set {
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
