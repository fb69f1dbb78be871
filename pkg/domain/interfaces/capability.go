package interfaces

import (
	"context"

	"github.com/secmon-lab/osnit/pkg/domain/model"
)

// Classifier labels a text with an incident type, severity and confidence
type Classifier interface {
	Classify(ctx context.Context, text string) (*model.Classification, error)
}

// EntityExtractor finds persons, organizations and locations in a text
type EntityExtractor interface {
	Extract(ctx context.Context, text string) (*model.Entities, error)
}

// Geocoder resolves a place name. An unresolved name is a result with a nil point, not an error.
type Geocoder interface {
	Geocode(ctx context.Context, name string) (*model.GeocodeResult, error)
}

// RegionResolver attributes a list of place names to a country and state.
// It works offline and never fails.
type RegionResolver interface {
	ResolveRegion(locations []string) model.Region
}

// Embedder produces a vector for a text. An unavailable embedding is a result with a nil vector.
type Embedder interface {
	Embed(ctx context.Context, text string) (*model.EmbeddingResult, error)
}

// Collector fetches raw candidates from one external feed
type Collector interface {
	Name() string
	Collect(ctx context.Context) ([]*model.Candidate, error)
}

// AlertNotifier delivers newly created alerts to people
type AlertNotifier interface {
	Notify(ctx context.Context, alerts []*model.Alert) error
}
