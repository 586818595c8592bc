package scheduler

import (
	"time"

	"github.com/BearBump/AvailBox/internal/models"
)

// Tier is a refresh priority bucket.
type Tier string

const (
	TierHigh     Tier = "high"
	TierMedium   Tier = "medium"
	TierLow      Tier = "low"
	TierInactive Tier = "inactive"
)

// Tiers lists every tier in priority order.
var Tiers = []Tier{TierHigh, TierMedium, TierLow, TierInactive}

type Thresholds struct {
	High     time.Duration // default: 30 minutes
	Medium   time.Duration // default: 180 minutes
	Low      time.Duration // default: 1440 minutes
	Inactive time.Duration // default: 10080 minutes

	LookaheadDays int // default: 14
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		High:          30 * time.Minute,
		Medium:        180 * time.Minute,
		Low:           1440 * time.Minute,
		Inactive:      10080 * time.Minute,
		LookaheadDays: 14,
	}
}

// ThresholdsFromMinutes builds thresholds from the CLI/config minute values.
// Non-positive values fall back to defaults.
func ThresholdsFromMinutes(high, medium, low, inactive, lookaheadDays int) Thresholds {
	return Thresholds{
		High:          time.Duration(high) * time.Minute,
		Medium:        time.Duration(medium) * time.Minute,
		Low:           time.Duration(low) * time.Minute,
		Inactive:      time.Duration(inactive) * time.Minute,
		LookaheadDays: lookaheadDays,
	}.withDefaults()
}

func (t Thresholds) withDefaults() Thresholds {
	def := DefaultThresholds()
	if t.High <= 0 {
		t.High = def.High
	}
	if t.Medium <= 0 {
		t.Medium = def.Medium
	}
	if t.Low <= 0 {
		t.Low = def.Low
	}
	if t.Inactive <= 0 {
		t.Inactive = def.Inactive
	}
	if t.LookaheadDays <= 0 {
		t.LookaheadDays = def.LookaheadDays
	}
	return t
}

// Interval returns the staleness threshold of a tier.
func (t Thresholds) Interval(tier Tier) time.Duration {
	switch tier {
	case TierHigh:
		return t.High
	case TierMedium:
		return t.Medium
	case TierLow:
		return t.Low
	default:
		return t.Inactive
	}
}

// Cutoff is the last_checked value below which a record of the tier is stale.
func (t Thresholds) Cutoff(tier Tier, now time.Time) time.Time {
	return now.Add(-t.Interval(tier))
}

// Window returns the inclusive [today, today+lookahead] date range.
func (t Thresholds) Window(now time.Time) (time.Time, time.Time) {
	from := models.DateOnly(now.UTC())
	return from, from.AddDate(0, 0, t.LookaheadDays)
}

// TierFor maps an occupancy status class to its tier.
func TierFor(status string) Tier {
	switch status {
	case models.OccupancyHigh, models.OccupancyFull:
		return TierHigh
	case models.OccupancyMedium:
		return TierMedium
	case models.OccupancyLow, models.OccupancyEmpty:
		return TierLow
	default:
		return TierInactive
	}
}

// StatusesFor is the inverse of TierFor for the known status classes.
func StatusesFor(tier Tier) []string {
	var out []string
	for _, s := range []string{
		models.OccupancyEmpty, models.OccupancyLow, models.OccupancyMedium,
		models.OccupancyHigh, models.OccupancyFull, models.OccupancyUnknown,
	} {
		if TierFor(s) == tier {
			out = append(out, s)
		}
	}
	return out
}

// IsStale reports whether one current-state record makes its entity due.
func (t Thresholds) IsStale(status string, lastChecked, now time.Time) bool {
	return now.Sub(lastChecked) > t.Interval(TierFor(status))
}
