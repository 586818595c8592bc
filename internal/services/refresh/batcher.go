package refresh

import (
	"context"
	"log/slog"
	"time"

	"github.com/BearBump/AvailBox/internal/integrations/booking"
	"github.com/BearBump/AvailBox/internal/models"
	"github.com/BearBump/AvailBox/internal/services/reconcile"
)

const (
	DefaultBatchSize = 30
	DefaultDays      = 14
)

// Persister writes one reconciled batch atomically.
type Persister interface {
	PersistBatch(ctx context.Context, batch []reconcile.EntityObservations, now time.Time, extendHistory bool) (map[uint64]*models.PersistStats, error)
}

// BatchOptions controls one pass of the batch orchestrator.
type BatchOptions struct {
	BatchSize       int
	Start           time.Time
	Days            int
	RequestInterval time.Duration
	ExtendHistory   bool
	Observer        Observer
}

// BatchResult is what one batch produced, outcomes in entity order.
// A cancelled batch carries no outcomes: its entities keep their status.
type BatchResult struct {
	Index      int
	CheckedAt  time.Time
	Outcomes   []models.PollOutcome
	FetchErr   error
	PersistErr error
	Cancelled  bool
}

func (r BatchResult) Failed() bool {
	return r.FetchErr != nil || r.PersistErr != nil
}

// Batcher drives fetch and persist over consecutive batches. A failing batch
// only fails its own entities.
type Batcher struct {
	client    booking.Client
	persister Persister
	now       func() time.Time
}

func NewBatcher(client booking.Client, persister Persister) *Batcher {
	return &Batcher{
		client:    client,
		persister: persister,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Process runs every batch in order and calls onBatch after each one.
// It stops when ctx is done, either between batches or after the batch it
// interrupted, and returns ctx.Err().
func (b *Batcher) Process(ctx context.Context, entities []*models.Entity, opts BatchOptions, onBatch func(BatchResult)) error {
	size := opts.BatchSize
	if size <= 0 {
		size = DefaultBatchSize
	}
	if opts.Days <= 0 {
		opts.Days = DefaultDays
	}
	obs := opts.Observer
	if obs == nil {
		obs = NoopObserver{}
	}

	for i, start := 0, 0; start < len(entities); i, start = i+1, start+size {
		if err := ctx.Err(); err != nil {
			return err
		}
		end := min(start+size, len(entities))
		res := b.processBatch(ctx, i, entities[start:end], opts, obs)
		if onBatch != nil {
			onBatch(res)
		}
		if res.Cancelled {
			return ctx.Err()
		}
	}
	return nil
}

func (b *Batcher) processBatch(ctx context.Context, index int, batch []*models.Entity, opts BatchOptions, obs Observer) BatchResult {
	res := BatchResult{Index: index}
	outcomes := make([]models.PollOutcome, len(batch))
	refs := make([]models.SourceRef, len(batch))
	hasRef := make([]bool, len(batch))

	keys := make([]string, 0, len(batch))
	for i, e := range batch {
		outcomes[i] = models.PollOutcome{EntityID: e.ID, Slug: e.Slug, Batch: index}
		refs[i], hasRef[i] = e.BookingRef()
		if hasRef[i] {
			keys = append(keys, refs[i].Key())
		}
	}

	var fetched map[string][]models.Observation
	if len(keys) > 0 {
		fetched, res.FetchErr = b.client.Fetch(ctx, booking.FetchRequest{
			SourceKeys:      keys,
			Start:           opts.Start,
			Days:            opts.Days,
			RequestInterval: opts.RequestInterval,
		})
	}
	if res.FetchErr != nil && ctx.Err() != nil {
		slog.Warn("batch fetch cancelled", "batch", index, "entities", len(batch))
		res.Cancelled = true
		return res
	}
	for _, e := range batch {
		obs.OnFetchProgress(e)
	}

	if res.FetchErr != nil {
		slog.Error("batch fetch failed", "batch", index, "entities", len(batch), "error", res.FetchErr.Error())
		for i := range outcomes {
			fail(&outcomes[i], models.FailureFetch, models.ReasonFetchError)
		}
		res.Outcomes = outcomes
		return res
	}

	var toPersist []reconcile.EntityObservations
	var persistIdx []int
	for i, e := range batch {
		if !hasRef[i] {
			fail(&outcomes[i], models.FailureNoData, models.ReasonNoBookingRef)
			continue
		}
		data := fetched[refs[i].Key()]
		if len(data) == 0 {
			slog.Debug("no booking data", "entity_id", e.ID, "source", refs[i].Source)
			fail(&outcomes[i], models.FailureNoData, models.ReasonNoData)
			continue
		}
		toPersist = append(toPersist, reconcile.EntityObservations{
			EntityID:     e.ID,
			Source:       refs[i].Source,
			SourceID:     refs[i].SourceID,
			Observations: data,
		})
		persistIdx = append(persistIdx, i)
	}

	res.CheckedAt = b.now()
	if len(toPersist) > 0 {
		stats, err := b.persister.PersistBatch(ctx, toPersist, res.CheckedAt, opts.ExtendHistory)
		if err != nil && ctx.Err() != nil {
			// транзакция откатилась вместе с контекстом
			slog.Warn("batch persist cancelled", "batch", index, "entities", len(toPersist))
			return BatchResult{Index: index, CheckedAt: res.CheckedAt, Cancelled: true}
		}
		if err != nil {
			res.PersistErr = err
			slog.Error("batch persist failed", "batch", index, "entities", len(toPersist), "error", err.Error())
		}
		for _, i := range persistIdx {
			if err != nil {
				fail(&outcomes[i], models.FailurePersist, models.ReasonPersistError)
			} else {
				outcomes[i].Success = true
				if st := stats[outcomes[i].EntityID]; st != nil {
					outcomes[i].PersistStats = *st
				}
			}
			obs.OnPersistProgress(batch[i])
		}
	}

	res.Outcomes = outcomes
	return res
}

func fail(o *models.PollOutcome, kind models.FailureKind, reason string) {
	o.Success = false
	o.Kind = kind
	o.Reason = reason
}
