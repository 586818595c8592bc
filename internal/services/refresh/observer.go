package refresh

import "github.com/BearBump/AvailBox/internal/models"

// Observer receives per-entity progress. It never affects control flow.
type Observer interface {
	// OnFetchProgress fires once per entity after its batch was fetched (or failed to).
	OnFetchProgress(e *models.Entity)
	// OnPersistProgress fires once per entity handed to the persister.
	OnPersistProgress(e *models.Entity)
}

type NoopObserver struct{}

func (NoopObserver) OnFetchProgress(*models.Entity)   {}
func (NoopObserver) OnPersistProgress(*models.Entity) {}
