package booking

import (
	"context"
	"time"

	"github.com/BearBump/AvailBox/internal/models"
)

type FetchRequest struct {
	// SourceKeys are models.SourceRef keys ("source:id").
	SourceKeys      []string
	Start           time.Time
	Days            int
	RequestInterval time.Duration
}

// Client fetches per-date availability from external booking sources.
// Unknown keys are omitted from the result rather than reported as errors.
// Implementations space per-key requests by at least RequestInterval.
type Client interface {
	Fetch(ctx context.Context, req FetchRequest) (map[string][]models.Observation, error)
}
