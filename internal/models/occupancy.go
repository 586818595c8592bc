package models

import "math"

// Occupancy status classes.
const (
	OccupancyEmpty   = "empty"
	OccupancyLow     = "low"
	OccupancyMedium  = "medium"
	OccupancyHigh    = "high"
	OccupancyFull    = "full"
	OccupancyUnknown = "unknown"
)

// Reservation statuses reported by booking sources.
const (
	ReservationUnknown     = "unknown"
	ReservationPossible    = "possible"
	ReservationNotPossible = "not_possible"
	ReservationNotOnline   = "not_online"
)

// Occupancy is the derived view of a free/total pair.
type Occupancy struct {
	Percent float64
	Steps   int
	Status  string
}

// DeriveOccupancy computes percent, 10-step bucket and status class.
// total <= 0 (including the closed marker free=0,total=0) is unknown.
func DeriveOccupancy(free, total int) Occupancy {
	if total <= 0 {
		return Occupancy{Percent: 0, Steps: 0, Status: OccupancyUnknown}
	}
	if free < 0 {
		free = 0
	}
	if free > total {
		free = total
	}
	pct := float64(total-free) / float64(total) * 100
	pct = math.Round(pct*10) / 10
	steps := int(math.Round(pct/10)) * 10

	var status string
	switch {
	case free == total:
		status = OccupancyEmpty
	case free == 0:
		status = OccupancyFull
	case pct > 75:
		status = OccupancyHigh
	case pct > 25:
		status = OccupancyMedium
	default:
		status = OccupancyLow
	}
	return Occupancy{Percent: pct, Steps: steps, Status: status}
}
