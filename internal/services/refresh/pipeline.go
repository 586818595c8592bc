package refresh

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BearBump/AvailBox/internal/broker/messages"
	"github.com/BearBump/AvailBox/internal/models"
	"github.com/BearBump/AvailBox/internal/services/scheduler"
	"github.com/pkg/errors"
)

type Selector interface {
	DueEntities(ctx context.Context, now time.Time) (scheduler.Selection, error)
}

// Directory resolves entity identity and booking references.
type Directory interface {
	GetEntitiesByIDs(ctx context.Context, ids []uint64) ([]*models.Entity, error)
	GetEntitiesBySlugs(ctx context.Context, slugs []string) ([]*models.Entity, error)
	ListBookableEntityIDs(ctx context.Context) ([]uint64, error)
}

type StatusUpdater interface {
	BulkUpdate(ctx context.Context, succeeded, failed []uint64, now time.Time) error
}

type ChangePublisher interface {
	PublishChanges(ctx context.Context, msgs []messages.AvailabilityChanged)
}

type Metrics interface {
	RecordEntity(success bool, kind string)
	RecordPersist(created, updated, history int)
	RecordBatch(ok bool)
	RecordRun(candidates int, d time.Duration)
}

type Mode string

const (
	ModePriority Mode = "priority"
	ModeIDs      Mode = "ids"
	ModeSlugs    Mode = "slugs"
	ModeAll      Mode = "all"
)

type RunOptions struct {
	Mode   Mode
	IDs    []uint64
	Slugs  []string
	DryRun bool

	BatchSize int
	// StartDate разбирается на каждом запуске ("" = сегодня).
	StartDate       string
	Days            int
	RequestInterval time.Duration
	ExtendHistory   bool

	Observer Observer
}

type Pipeline struct {
	sched   Selector
	dir     Directory
	batcher *Batcher
	status  StatusUpdater
	pub     ChangePublisher
	metrics Metrics
	now     func() time.Time
}

func NewPipeline(sched Selector, dir Directory, batcher *Batcher, status StatusUpdater) *Pipeline {
	return &Pipeline{
		sched:   sched,
		dir:     dir,
		batcher: batcher,
		status:  status,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func (p *Pipeline) WithPublisher(pub ChangePublisher) *Pipeline {
	p.pub = pub
	return p
}

func (p *Pipeline) WithMetrics(m Metrics) *Pipeline {
	p.metrics = m
	return p
}

// WithClock replaces the time source for both selection and persistence.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	p.batcher.now = now
	return p
}

// Run selects candidates, refreshes them batch by batch and records one bulk
// status update. Only a selection failure returns an error without a result;
// a cancelled context returns the partial result together with ctx.Err().
// Entities of the batch that was interrupted are left out of the result and
// keep their status.
func (p *Pipeline) Run(ctx context.Context, opts RunOptions) (*models.RunResult, error) {
	started := p.now()
	res := &models.RunResult{StartedAt: started, DryRun: opts.DryRun}

	start, err := models.ParseStartDate(opts.StartDate, started)
	if err != nil {
		return nil, errors.Wrap(err, "parse start date")
	}

	entities, err := p.selectEntities(ctx, opts, started)
	if err != nil {
		return nil, errors.Wrap(err, "select entities")
	}
	res.Candidates = make([]uint64, 0, len(entities))
	for _, e := range entities {
		res.Candidates = append(res.Candidates, e.ID)
	}

	if opts.DryRun {
		res.Duration = p.now().Sub(started)
		slog.Info("refresh dry run", "mode", string(opts.Mode), "candidates", len(entities))
		return res, nil
	}

	var succeeded, failed []uint64
	runErr := p.batcher.Process(ctx, entities, BatchOptions{
		BatchSize:       opts.BatchSize,
		Start:           start,
		Days:            opts.Days,
		RequestInterval: opts.RequestInterval,
		ExtendHistory:   opts.ExtendHistory,
		Observer:        opts.Observer,
	}, func(br BatchResult) {
		if br.Cancelled {
			return
		}
		res.Batches++
		if br.Failed() {
			res.FailedBatches++
		}
		if p.metrics != nil {
			p.metrics.RecordBatch(!br.Failed())
		}

		var changed []messages.AvailabilityChanged
		for _, o := range br.Outcomes {
			res.Add(o)
			if o.Success {
				succeeded = append(succeeded, o.EntityID)
			} else {
				failed = append(failed, o.EntityID)
			}
			if p.metrics != nil {
				p.metrics.RecordEntity(o.Success, string(o.Kind))
				p.metrics.RecordPersist(o.RecordsCreated, o.RecordsUpdated, o.HistoryEntries)
			}
			if o.Success && o.HistoryEntries > 0 {
				changed = append(changed, messages.AvailabilityChanged{
					EntityID:       o.EntityID,
					CheckedAt:      br.CheckedAt,
					Dates:          o.ChangedDates,
					RecordsCreated: o.RecordsCreated,
					RecordsUpdated: o.RecordsUpdated,
					HistoryEntries: o.HistoryEntries,
				})
			}
		}
		if p.pub != nil && len(changed) > 0 {
			p.pub.PublishChanges(ctx, changed)
		}
	})

	if len(succeeded)+len(failed) > 0 {
		// статусы пишем даже если запуск прервали
		if err := p.status.BulkUpdate(context.WithoutCancel(ctx), succeeded, failed, p.now()); err != nil {
			res.StatusError = err.Error()
			slog.Error("bulk status update", "succeeded", len(succeeded), "failed", len(failed), "error", err.Error())
		}
	}

	res.Duration = p.now().Sub(started)
	if p.metrics != nil {
		p.metrics.RecordRun(len(entities), res.Duration)
	}
	slog.Info("refresh run finished",
		"mode", string(opts.Mode),
		"candidates", len(entities),
		"succeeded", res.Succeeded,
		"failed", res.Failed,
		"no_data", res.NoData,
		"batches", res.Batches,
		"failed_batches", res.FailedBatches,
		"records_created", res.RecordsCreated,
		"records_updated", res.RecordsUpdated,
		"history_entries", res.HistoryEntries,
		"duration", res.Duration.String(),
	)

	if runErr != nil {
		return res, runErr
	}
	return res, nil
}

func (p *Pipeline) selectEntities(ctx context.Context, opts RunOptions, now time.Time) ([]*models.Entity, error) {
	switch opts.Mode {
	case ModeIDs:
		if len(opts.IDs) == 0 {
			return nil, errors.New("no entity ids given")
		}
		es, err := p.dir.GetEntitiesByIDs(ctx, opts.IDs)
		if err != nil {
			return nil, err
		}
		return orderByIDs(es, opts.IDs)
	case ModeSlugs:
		if len(opts.Slugs) == 0 {
			return nil, errors.New("no entity slugs given")
		}
		es, err := p.dir.GetEntitiesBySlugs(ctx, opts.Slugs)
		if err != nil {
			return nil, err
		}
		return orderBySlugs(es, opts.Slugs)
	case ModeAll:
		ids, err := p.dir.ListBookableEntityIDs(ctx)
		if err != nil {
			return nil, err
		}
		return p.load(ctx, ids)
	case ModePriority, "":
		sel, err := p.sched.DueEntities(ctx, now)
		if err != nil {
			return nil, err
		}
		return p.load(ctx, sel.EntityIDs)
	default:
		return nil, errors.Errorf("unknown selection mode %q", opts.Mode)
	}
}

func (p *Pipeline) load(ctx context.Context, ids []uint64) ([]*models.Entity, error) {
	if len(ids) == 0 {
		return []*models.Entity{}, nil
	}
	es, err := p.dir.GetEntitiesByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	sort.Slice(es, func(i, j int) bool { return es[i].ID < es[j].ID })
	return es, nil
}

// orderByIDs returns entities in the requested order, skipping duplicates.
func orderByIDs(es []*models.Entity, ids []uint64) ([]*models.Entity, error) {
	byID := make(map[uint64]*models.Entity, len(es))
	for _, e := range es {
		byID[e.ID] = e
	}
	out := make([]*models.Entity, 0, len(ids))
	seen := make(map[uint64]struct{}, len(ids))
	var missing []string
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		e, ok := byID[id]
		if !ok {
			missing = append(missing, formatID(id))
			continue
		}
		out = append(out, e)
	}
	if len(missing) > 0 {
		return nil, errors.Errorf("unknown entity ids: %s", strings.Join(missing, ","))
	}
	return out, nil
}

func orderBySlugs(es []*models.Entity, slugs []string) ([]*models.Entity, error) {
	bySlug := make(map[string]*models.Entity, len(es))
	for _, e := range es {
		bySlug[e.Slug] = e
	}
	out := make([]*models.Entity, 0, len(slugs))
	seen := make(map[string]struct{}, len(slugs))
	var missing []string
	for _, s := range slugs {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		e, ok := bySlug[s]
		if !ok {
			missing = append(missing, s)
			continue
		}
		out = append(out, e)
	}
	if len(missing) > 0 {
		return nil, errors.Errorf("unknown entity slugs: %s", strings.Join(missing, ","))
	}
	return out, nil
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}
