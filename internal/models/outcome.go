package models

import (
	"time"

	"github.com/pkg/errors"
)

var (
	ErrFetch   = errors.New("batch fetch error")
	ErrNoData  = errors.New("no booking data")
	ErrPersist = errors.New("batch persist error")
)

// FailureKind classifies a failed outcome.
type FailureKind string

const (
	FailureNone    FailureKind = ""
	FailureFetch   FailureKind = "fetch"
	FailureNoData  FailureKind = "no_data"
	FailurePersist FailureKind = "persist"
)

const (
	ReasonFetchError   = "batch fetch error"
	ReasonNoData       = "no booking data"
	ReasonNoBookingRef = "no booking reference"
	ReasonPersistError = "batch persist error"
)

// PersistStats counts what reconciliation wrote for one entity.
type PersistStats struct {
	RecordsCreated int      `json:"records_created"`
	RecordsUpdated int      `json:"records_updated"`
	HistoryEntries int      `json:"history_entries"`
	ChangedDates   []string `json:"changed_dates,omitempty"`
}

// PollOutcome is the result of refreshing one entity.
type PollOutcome struct {
	EntityID uint64      `json:"entity_id"`
	Slug     string      `json:"slug"`
	Success  bool        `json:"success"`
	Kind     FailureKind `json:"kind,omitempty"`
	Reason   string      `json:"reason,omitempty"`
	Batch    int         `json:"batch"`
	PersistStats
}

// Err maps the outcome back to the error taxonomy.
func (o PollOutcome) Err() error {
	switch o.Kind {
	case FailureFetch:
		return errors.Wrap(ErrFetch, o.Reason)
	case FailureNoData:
		return ErrNoData
	case FailurePersist:
		return errors.Wrap(ErrPersist, o.Reason)
	}
	return nil
}

// RunResult aggregates one pipeline run.
type RunResult struct {
	StartedAt      time.Time     `json:"started_at"`
	Duration       time.Duration `json:"duration"`
	DryRun         bool          `json:"dry_run"`
	Candidates     []uint64      `json:"candidates,omitempty"`
	Total          int           `json:"total"`
	Succeeded      int           `json:"succeeded"`
	Failed         int           `json:"failed"`
	NoData         int           `json:"no_data"`
	Batches        int           `json:"batches"`
	FailedBatches  int           `json:"failed_batches"`
	RecordsCreated int           `json:"records_created"`
	RecordsUpdated int           `json:"records_updated"`
	HistoryEntries int           `json:"history_entries"`
	StatusError    string        `json:"status_error,omitempty"`
	Outcomes       []PollOutcome `json:"outcomes"`
}

// Add folds one outcome into the totals.
func (r *RunResult) Add(o PollOutcome) {
	r.Total++
	if o.Success {
		r.Succeeded++
	} else {
		r.Failed++
		if o.Kind == FailureNoData {
			r.NoData++
		}
	}
	r.RecordsCreated += o.RecordsCreated
	r.RecordsUpdated += o.RecordsUpdated
	r.HistoryEntries += o.HistoryEntries
	r.Outcomes = append(r.Outcomes, o)
}
