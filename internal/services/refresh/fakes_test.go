package refresh

import (
	"context"
	"sync"
	"time"

	"github.com/BearBump/AvailBox/internal/broker/messages"
	"github.com/BearBump/AvailBox/internal/integrations/booking"
	"github.com/BearBump/AvailBox/internal/models"
	"github.com/BearBump/AvailBox/internal/services/reconcile"
	"github.com/BearBump/AvailBox/internal/services/scheduler"
	"github.com/BearBump/AvailBox/internal/services/tracker"
	"github.com/pkg/errors"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// memStore keeps current state and history in memory and reconciles with the
// same planner the Postgres storage uses.
type memStore struct {
	current map[models.DateKey]*models.Availability
	history map[models.DateKey][]models.HistoryEntry
	nextID  uint64
	calls   int
	failOn  map[int]error

	// onCall runs before the call with the given number
	onCall map[int]func()
}

func newMemStore() *memStore {
	return &memStore{
		current: map[models.DateKey]*models.Availability{},
		history: map[models.DateKey][]models.HistoryEntry{},
		failOn:  map[int]error{},
		onCall:  map[int]func(){},
	}
}

func (m *memStore) PersistBatch(ctx context.Context, batch []reconcile.EntityObservations, now time.Time, extendHistory bool) (map[uint64]*models.PersistStats, error) {
	m.calls++
	if f := m.onCall[m.calls]; f != nil {
		f()
	}
	if err := m.failOn[m.calls]; err != nil {
		return nil, err
	}
	plan := reconcile.Build(m.current, batch, now)
	for _, a := range plan.Creates {
		m.nextID++
		a.ID = m.nextID
		k := models.NewDateKey(a.EntityID, a.Date)
		cp := a
		m.current[k] = &cp
		m.history[k] = append(m.history[k], reconcile.HistoryFrom(cp, now))
	}
	for _, c := range plan.Changes {
		k := models.NewDateKey(c.Current.EntityID, c.Current.Date)
		cp := c.Current
		m.current[k] = &cp
		m.history[k] = append(m.history[k], c.History)
	}
	for _, id := range plan.Touches {
		for k, a := range m.current {
			if a.ID != id {
				continue
			}
			a.LastChecked = now
			if extendHistory {
				h := m.history[k]
				h[len(h)-1].LastChecked = now
			}
		}
	}
	return plan.Stats, nil
}

type fakeClient struct {
	data     map[string][]models.Observation
	failKeys map[string]bool
	calls    [][]string
	lastReq  booking.FetchRequest

	// cancelKeys cancels the run from inside Fetch, like a SIGTERM mid-request
	cancelKeys map[string]context.CancelFunc
}

func (c *fakeClient) Fetch(ctx context.Context, req booking.FetchRequest) (map[string][]models.Observation, error) {
	c.calls = append(c.calls, req.SourceKeys)
	c.lastReq = req
	out := map[string][]models.Observation{}
	for _, k := range req.SourceKeys {
		if cancel := c.cancelKeys[k]; cancel != nil {
			cancel()
			return nil, errors.Wrap(ctx.Err(), "do request")
		}
		if c.failKeys[k] {
			return nil, errors.New("source unreachable")
		}
		if obs, ok := c.data[k]; ok {
			out[k] = obs
		}
	}
	return out, nil
}

type fakeDirectory struct {
	entities map[uint64]*models.Entity
	err      error
}

func newDirectory(es ...*models.Entity) *fakeDirectory {
	d := &fakeDirectory{entities: map[uint64]*models.Entity{}}
	for _, e := range es {
		d.entities[e.ID] = e
	}
	return d
}

func (d *fakeDirectory) GetEntitiesByIDs(ctx context.Context, ids []uint64) ([]*models.Entity, error) {
	if d.err != nil {
		return nil, d.err
	}
	var out []*models.Entity
	for _, id := range ids {
		if e, ok := d.entities[id]; ok {
			out = append(out, e)
		}
	}
	return out, nil
}

func (d *fakeDirectory) GetEntitiesBySlugs(ctx context.Context, slugs []string) ([]*models.Entity, error) {
	var out []*models.Entity
	for _, s := range slugs {
		for _, e := range d.entities {
			if e.Slug == s {
				out = append(out, e)
			}
		}
	}
	return out, nil
}

func (d *fakeDirectory) ListBookableEntityIDs(ctx context.Context) ([]uint64, error) {
	var out []uint64
	for id, e := range d.entities {
		if _, ok := e.BookingRef(); ok {
			out = append(out, id)
		}
	}
	return out, nil
}

type fakeSelector struct {
	ids   []uint64
	err   error
	calls int
}

func (s *fakeSelector) DueEntities(ctx context.Context, now time.Time) (scheduler.Selection, error) {
	s.calls++
	if s.err != nil {
		return scheduler.Selection{}, s.err
	}
	return scheduler.Selection{Stale: s.ids, EntityIDs: s.ids}, nil
}

type memStatus struct {
	recs  map[uint64]*models.StatusRecord
	err   error
	calls int
}

func newMemStatus() *memStatus {
	return &memStatus{recs: map[uint64]*models.StatusRecord{}}
}

func (s *memStatus) BulkUpdate(ctx context.Context, succeeded, failed []uint64, now time.Time) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	for _, r := range tracker.Apply(s.recs, succeeded, failed, now) {
		s.recs[r.EntityID] = r
	}
	return nil
}

type recordingPublisher struct {
	msgs []messages.AvailabilityChanged
}

func (p *recordingPublisher) PublishChanges(ctx context.Context, msgs []messages.AvailabilityChanged) {
	p.msgs = append(p.msgs, msgs...)
}

type recordingObserver struct {
	events []string
}

func (o *recordingObserver) OnFetchProgress(e *models.Entity) {
	o.events = append(o.events, "fetch:"+e.Slug)
}

func (o *recordingObserver) OnPersistProgress(e *models.Entity) {
	o.events = append(o.events, "persist:"+e.Slug)
}

type countingMetrics struct {
	entities map[string]int
	batches  map[bool]int
	created  int
	history  int
	runs     int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{entities: map[string]int{}, batches: map[bool]int{}}
}

func (m *countingMetrics) RecordEntity(success bool, kind string) {
	if success {
		m.entities["success"]++
		return
	}
	m.entities[kind]++
}

func (m *countingMetrics) RecordPersist(created, updated, history int) {
	m.created += created
	m.history += history
}

func (m *countingMetrics) RecordBatch(ok bool) { m.batches[ok]++ }

func (m *countingMetrics) RecordRun(candidates int, d time.Duration) { m.runs++ }
