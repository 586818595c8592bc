// Package reconcile turns one batch of fetched observations into a write plan
// against the current-state table. It does no I/O; storage executes the plan
// inside a single transaction.
package reconcile

import (
	"sort"
	"strings"
	"time"

	"github.com/BearBump/AvailBox/internal/models"
)

const dateLayout = "2006-01-02"

// EntityObservations is what the fetcher returned for one entity.
type EntityObservations struct {
	EntityID     uint64
	Source       string
	SourceID     string
	Observations []models.Observation
}

// Change is an existing record whose tracked fields moved.
type Change struct {
	Current models.Availability
	History models.HistoryEntry
}

// Plan is the full set of writes for one batch.
type Plan struct {
	Now time.Time
	// Creates are new current-state rows; each gets an initial history entry.
	Creates []models.Availability
	Changes []Change
	// Touches are ids of unchanged rows that only need last_checked bumped.
	Touches []uint64
	Stats   map[uint64]*models.PersistStats
}

// Keys returns the (entity, date) pairs the batch refers to, so storage can
// load the matching current-state rows.
func Keys(batch []EntityObservations) []models.DateKey {
	seen := make(map[models.DateKey]struct{})
	var out []models.DateKey
	for _, eo := range batch {
		for _, o := range eo.Observations {
			k := models.NewDateKey(eo.EntityID, o.Date)
			if _, ok := seen[k]; ok {
				continue
			}
			seen[k] = struct{}{}
			out = append(out, k)
		}
	}
	return out
}

// Changed compares only the tracked tuple {free, total, type tag, reservation status}.
// Derived occupancy fields are not part of the comparison.
func Changed(cur *models.Availability, o models.Observation) bool {
	o = normalize(o)
	return cur.Free != o.Free ||
		cur.Total != o.Total ||
		cur.TypeTag != o.TypeTag ||
		cur.ReservationStatus != o.ReservationStatus
}

// Build reconciles the batch against existing rows keyed by (entity, date).
// When the same (entity, date) appears more than once in a batch the last
// observation wins.
func Build(existing map[models.DateKey]*models.Availability, batch []EntityObservations, now time.Time) Plan {
	plan := Plan{Now: now, Stats: make(map[uint64]*models.PersistStats, len(batch))}

	type item struct {
		eo  *EntityObservations
		obs models.Observation
	}
	latest := make(map[models.DateKey]item)
	var order []models.DateKey
	for i := range batch {
		eo := &batch[i]
		if _, ok := plan.Stats[eo.EntityID]; !ok {
			plan.Stats[eo.EntityID] = &models.PersistStats{}
		}
		for _, o := range eo.Observations {
			k := models.NewDateKey(eo.EntityID, o.Date)
			if _, ok := latest[k]; !ok {
				order = append(order, k)
			}
			latest[k] = item{eo: eo, obs: normalize(o)}
		}
	}

	for _, k := range order {
		it := latest[k]
		st := plan.Stats[k.EntityID]
		cur, ok := existing[k]
		switch {
		case !ok || cur == nil:
			plan.Creates = append(plan.Creates, newAvailability(k, it.eo, it.obs, now))
			st.RecordsCreated++
			st.HistoryEntries++
			st.ChangedDates = append(st.ChangedDates, k.Date.Format(dateLayout))
		case Changed(cur, it.obs):
			next := *cur
			apply(&next, it.obs)
			next.LastChecked = now
			plan.Changes = append(plan.Changes, Change{Current: next, History: HistoryFrom(next, now)})
			st.RecordsUpdated++
			st.HistoryEntries++
			st.ChangedDates = append(st.ChangedDates, k.Date.Format(dateLayout))
		default:
			plan.Touches = append(plan.Touches, cur.ID)
		}
	}

	for _, st := range plan.Stats {
		sort.Strings(st.ChangedDates)
	}
	return plan
}

// Empty reports whether the plan has nothing to write.
func (p *Plan) Empty() bool {
	return len(p.Creates) == 0 && len(p.Changes) == 0 && len(p.Touches) == 0
}

// HistoryFrom snapshots a current-state row into a fresh history entry.
func HistoryFrom(a models.Availability, now time.Time) models.HistoryEntry {
	return models.HistoryEntry{
		AvailabilityID:    a.ID,
		EntityID:          a.EntityID,
		Date:              a.Date,
		Free:              a.Free,
		Total:             a.Total,
		OccupancyPercent:  a.OccupancyPercent,
		OccupancyStatus:   a.OccupancyStatus,
		ReservationStatus: a.ReservationStatus,
		TypeTag:           a.TypeTag,
		FirstChecked:      now,
		LastChecked:       now,
	}
}

func newAvailability(k models.DateKey, eo *EntityObservations, o models.Observation, now time.Time) models.Availability {
	a := models.Availability{
		EntityID:     k.EntityID,
		Date:         k.Date,
		Source:       eo.Source,
		SourceID:     eo.SourceID,
		Link:         o.Link,
		FirstChecked: now,
		LastChecked:  now,
	}
	apply(&a, o)
	return a
}

// apply overwrites the mutable fields and recomputes the derived ones.
// The booking link is set on creation only.
func apply(a *models.Availability, o models.Observation) {
	occ := models.DeriveOccupancy(o.Free, o.Total)
	a.Free = o.Free
	a.Total = o.Total
	a.ReservationStatus = o.ReservationStatus
	a.TypeTag = o.TypeTag
	a.OccupancyPercent = occ.Percent
	a.OccupancySteps = occ.Steps
	a.OccupancyStatus = occ.Status
}

func normalize(o models.Observation) models.Observation {
	o.Date = models.DateOnly(o.Date)
	o.ReservationStatus = strings.ToLower(strings.TrimSpace(o.ReservationStatus))
	if o.ReservationStatus == "" {
		o.ReservationStatus = models.ReservationUnknown
	}
	o.TypeTag = strings.TrimSpace(o.TypeTag)
	if o.TypeTag == "" {
		o.TypeTag = "unknown"
	}
	return o
}
