package refresh

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/BearBump/AvailBox/internal/models"
)

type Runner interface {
	Run(ctx context.Context, opts RunOptions) (*models.RunResult, error)
}

// Worker runs the pipeline on an interval and on demand. Runs never overlap.
type Worker struct {
	runner   Runner
	opts     RunOptions
	interval time.Duration

	triggerCh chan struct{}

	startedAtUnixNano   int64
	lastRunUnixNano     atomic.Int64
	lastTriggerUnixNano atomic.Int64
	totalRuns           atomic.Int64
	failedRuns          atomic.Int64
	totalSucceeded      atomic.Int64
	totalFailed         atomic.Int64
	running             atomic.Bool

	mu      sync.Mutex
	lastErr string
	lastRun *RunSummary
}

func NewWorker(runner Runner, opts RunOptions, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &Worker{
		runner:            runner,
		opts:              opts,
		interval:          interval,
		triggerCh:         make(chan struct{}, 1),
		startedAtUnixNano: time.Now().UTC().UnixNano(),
	}
}

func (w *Worker) Interval() time.Duration { return w.interval }

// Trigger asks for an immediate run (best-effort, non-blocking).
func (w *Worker) Trigger() {
	w.lastTriggerUnixNano.Store(time.Now().UTC().UnixNano())
	select {
	case w.triggerCh <- struct{}{}:
	default:
	}
}

func (w *Worker) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			w.runOnce(ctx)
		case <-w.triggerCh:
			w.runOnce(ctx)
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) {
	w.running.Store(true)
	defer w.running.Store(false)
	w.lastRunUnixNano.Store(time.Now().UTC().UnixNano())
	w.totalRuns.Add(1)

	res, err := w.runner.Run(ctx, w.opts)
	if res != nil {
		w.totalSucceeded.Add(int64(res.Succeeded))
		w.totalFailed.Add(int64(res.Failed))
		sum := summarize(res)
		w.mu.Lock()
		w.lastRun = &sum
		w.mu.Unlock()
	}
	if err != nil {
		w.failedRuns.Add(1)
		w.mu.Lock()
		w.lastErr = err.Error()
		w.mu.Unlock()
		slog.Error("refresh run", "error", err.Error())
	}
}

// RunSummary is a RunResult without the per-entity outcomes.
type RunSummary struct {
	StartedAt      time.Time `json:"startedAt"`
	DurationMs     int64     `json:"durationMs"`
	Candidates     int       `json:"candidates"`
	Succeeded      int       `json:"succeeded"`
	Failed         int       `json:"failed"`
	NoData         int       `json:"noData"`
	Batches        int       `json:"batches"`
	FailedBatches  int       `json:"failedBatches"`
	RecordsCreated int       `json:"recordsCreated"`
	RecordsUpdated int       `json:"recordsUpdated"`
	HistoryEntries int       `json:"historyEntries"`
	StatusError    string    `json:"statusError,omitempty"`
}

func summarize(r *models.RunResult) RunSummary {
	return RunSummary{
		StartedAt:      r.StartedAt,
		DurationMs:     r.Duration.Milliseconds(),
		Candidates:     len(r.Candidates),
		Succeeded:      r.Succeeded,
		Failed:         r.Failed,
		NoData:         r.NoData,
		Batches:        r.Batches,
		FailedBatches:  r.FailedBatches,
		RecordsCreated: r.RecordsCreated,
		RecordsUpdated: r.RecordsUpdated,
		HistoryEntries: r.HistoryEntries,
		StatusError:    r.StatusError,
	}
}

type Stats struct {
	StartedAt      time.Time   `json:"startedAt"`
	LastRunAt      *time.Time  `json:"lastRunAt,omitempty"`
	LastTriggerAt  *time.Time  `json:"lastTriggerAt,omitempty"`
	TotalRuns      int64       `json:"totalRuns"`
	FailedRuns     int64       `json:"failedRuns"`
	TotalSucceeded int64       `json:"totalSucceeded"`
	TotalFailed    int64       `json:"totalFailed"`
	Running        bool        `json:"running"`
	LastError      string      `json:"lastError,omitempty"`
	LastRun        *RunSummary `json:"lastRun,omitempty"`
}

func (w *Worker) Stats() Stats {
	st := Stats{
		StartedAt:      time.Unix(0, w.startedAtUnixNano).UTC(),
		TotalRuns:      w.totalRuns.Load(),
		FailedRuns:     w.failedRuns.Load(),
		TotalSucceeded: w.totalSucceeded.Load(),
		TotalFailed:    w.totalFailed.Load(),
		Running:        w.running.Load(),
	}
	if n := w.lastRunUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastRunAt = &t
	}
	if n := w.lastTriggerUnixNano.Load(); n > 0 {
		t := time.Unix(0, n).UTC()
		st.LastTriggerAt = &t
	}
	w.mu.Lock()
	st.LastError = w.lastErr
	if w.lastRun != nil {
		cp := *w.lastRun
		st.LastRun = &cp
	}
	w.mu.Unlock()
	return st
}
