package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/BearBump/AvailBox/config"
	"github.com/BearBump/AvailBox/internal/models"
	"github.com/BearBump/AvailBox/internal/services/refresh"
	"github.com/BearBump/AvailBox/internal/services/scheduler"
	"github.com/pkg/errors"
)

type cliOptions struct {
	ids    []uint64
	slugs  []string
	all    bool
	dryRun bool

	days            int
	requestInterval time.Duration
	batchSize       int
	start           string
	extendHistory   bool

	highMinutes     int
	mediumMinutes   int
	lowMinutes      int
	inactiveMinutes int
	lookaheadDays   int

	quiet bool
}

// parseFlags reads the command line; cfg supplies defaults for unset flags.
func parseFlags(args []string, cfg *config.Config, stderr io.Writer) (cliOptions, error) {
	if cfg == nil {
		cfg = &config.Config{}
	}
	c := cfg.AvailBox

	fs := flag.NewFlagSet("avail-refresh", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var o cliOptions
	var ids, slugs string
	var intervalMs int

	fs.StringVar(&ids, "ids", "", "comma separated entity ids to refresh")
	fs.StringVar(&slugs, "slugs", "", "comma separated entity slugs to refresh")
	fs.BoolVar(&o.all, "all", false, "refresh every bookable entity")
	fs.BoolVar(&o.dryRun, "dry-run", false, "print selected entities without fetching")

	fs.IntVar(&o.days, "days", orInt(c.Days, refresh.DefaultDays), "days to fetch from the start date")
	fs.IntVar(&intervalMs, "request-interval", c.RequestIntervalMs, "milliseconds between booking requests")
	fs.IntVar(&o.batchSize, "batch-size", orInt(c.BatchSize, refresh.DefaultBatchSize), "entities per fetch+persist batch")
	fs.StringVar(&o.start, "start", orString(c.StartDate, "now"), "start date: now, weekend, dd.mm.yyyy, yyyy-mm-dd, ...")
	fs.BoolVar(&o.extendHistory, "extend-history", c.ExtendHistoryDuration, "extend last_checked of the latest history entry on reconfirmation")

	fs.IntVar(&o.highMinutes, "high-priority-minutes", orInt(c.HighPriorityMinutes, 30), "staleness threshold for high/full occupancy")
	fs.IntVar(&o.mediumMinutes, "medium-priority-minutes", orInt(c.MediumPriorityMinutes, 180), "staleness threshold for medium occupancy")
	fs.IntVar(&o.lowMinutes, "low-priority-minutes", orInt(c.LowPriorityMinutes, 1440), "staleness threshold for low occupancy")
	fs.IntVar(&o.inactiveMinutes, "inactive-priority-minutes", orInt(c.InactivePriorityMinutes, 10080), "staleness threshold for closed/unknown and recheck")
	fs.IntVar(&o.lookaheadDays, "lookahead-days", orInt(c.LookaheadDays, 14), "scheduler window in days")

	fs.BoolVar(&o.quiet, "quiet", false, "do not print per-entity progress")

	if err := fs.Parse(args); err != nil {
		return cliOptions{}, err
	}

	var err error
	if o.ids, err = parseIDList(ids); err != nil {
		return cliOptions{}, err
	}
	o.slugs = splitList(slugs)
	o.requestInterval = time.Duration(intervalMs) * time.Millisecond

	modes := 0
	for _, set := range []bool{len(o.ids) > 0, len(o.slugs) > 0, o.all} {
		if set {
			modes++
		}
	}
	if modes > 1 {
		return cliOptions{}, errors.New("-ids, -slugs and -all are mutually exclusive")
	}
	if o.days <= 0 {
		return cliOptions{}, errors.New("-days must be positive")
	}
	if o.batchSize <= 0 {
		return cliOptions{}, errors.New("-batch-size must be positive")
	}
	if o.requestInterval < 0 {
		return cliOptions{}, errors.New("-request-interval must not be negative")
	}
	if _, err := models.ParseStartDate(o.start, time.Now()); err != nil {
		return cliOptions{}, err
	}
	return o, nil
}

func (o cliOptions) thresholds() scheduler.Thresholds {
	return scheduler.ThresholdsFromMinutes(o.highMinutes, o.mediumMinutes, o.lowMinutes, o.inactiveMinutes, o.lookaheadDays)
}

func (o cliOptions) runOptions(obs refresh.Observer) refresh.RunOptions {
	ro := refresh.RunOptions{
		Mode:            refresh.ModePriority,
		DryRun:          o.dryRun,
		BatchSize:       o.batchSize,
		StartDate:       o.start,
		Days:            o.days,
		RequestInterval: o.requestInterval,
		ExtendHistory:   o.extendHistory,
		Observer:        obs,
	}
	switch {
	case len(o.ids) > 0:
		ro.Mode, ro.IDs = refresh.ModeIDs, o.ids
	case len(o.slugs) > 0:
		ro.Mode, ro.Slugs = refresh.ModeSlugs, o.slugs
	case o.all:
		ro.Mode = refresh.ModeAll
	}
	return ro
}

// progressPrinter renders observer callbacks as numbered progress lines.
type progressPrinter struct {
	w         io.Writer
	fetched   atomic.Int64
	persisted atomic.Int64
}

func newProgressPrinter(w io.Writer) *progressPrinter {
	return &progressPrinter{w: w}
}

func (p *progressPrinter) OnFetchProgress(e *models.Entity) {
	n := p.fetched.Add(1)
	fmt.Fprintf(p.w, "fetch   #%d %s (id=%d)\n", n, e.Slug, e.ID)
}

func (p *progressPrinter) OnPersistProgress(e *models.Entity) {
	n := p.persisted.Add(1)
	fmt.Fprintf(p.w, "persist #%d %s (id=%d)\n", n, e.Slug, e.ID)
}

func printSummary(w io.Writer, res *models.RunResult) {
	if res == nil {
		return
	}
	if res.DryRun {
		fmt.Fprintf(w, "dry run: %d entities selected\n", len(res.Candidates))
		for _, id := range res.Candidates {
			fmt.Fprintf(w, "  %d\n", id)
		}
		return
	}

	fmt.Fprintf(w, "\nrefresh finished in %s\n", res.Duration.Round(time.Millisecond))
	fmt.Fprintf(w, "  entities:  %d (succeeded %d, failed %d, no data %d)\n", res.Total, res.Succeeded, res.Failed, res.NoData)
	fmt.Fprintf(w, "  batches:   %d (failed %d)\n", res.Batches, res.FailedBatches)
	fmt.Fprintf(w, "  records:   created %d, updated %d\n", res.RecordsCreated, res.RecordsUpdated)
	fmt.Fprintf(w, "  history:   %d entries\n", res.HistoryEntries)
	if res.StatusError != "" {
		fmt.Fprintf(w, "  status update failed: %s\n", res.StatusError)
	}
	for _, o := range res.Outcomes {
		if !o.Success {
			fmt.Fprintf(w, "  - %s (id=%d): %s\n", o.Slug, o.EntityID, o.Reason)
		}
	}
}

// runRefresh executes one pipeline run and prints its summary.
// Returns the process exit code.
func runRefresh(ctx context.Context, runner refresh.Runner, o cliOptions, stdout, stderr io.Writer) int {
	var obs refresh.Observer = refresh.NoopObserver{}
	if !o.quiet && !o.dryRun {
		obs = newProgressPrinter(stdout)
	}

	res, err := runner.Run(ctx, o.runOptions(obs))
	printSummary(stdout, res)
	if err != nil {
		fmt.Fprintf(stderr, "refresh failed: %v\n", err)
		return 1
	}
	if res != nil && !res.DryRun && res.Total > 0 && res.Succeeded == 0 {
		// всё упало: пусть cron это заметит
		return 2
	}
	return 0
}

func parseIDList(s string) ([]uint64, error) {
	parts := splitList(s)
	out := make([]uint64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseUint(p, 10, 64)
		if err != nil || id == 0 {
			return nil, errors.Errorf("invalid entity id %q", p)
		}
		out = append(out, id)
	}
	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func orInt(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func orString(v, def string) string {
	if v != "" {
		return v
	}
	return def
}
