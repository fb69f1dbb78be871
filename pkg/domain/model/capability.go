package model

import "github.com/secmon-lab/osnit/pkg/domain/types"

// Classification is the incident label produced for a record's text
type Classification struct {
	IncidentType string
	Severity     types.Severity
	Confidence   float64
}

// Entities are named entities found in a record's text
type Entities struct {
	Persons       []string `json:"persons,omitempty"`
	Organizations []string `json:"organizations,omitempty"`
	Locations     []string `json:"locations,omitempty"`
}

// GeocodeResult carries the resolved point, or nil when the name could not be resolved
type GeocodeResult struct {
	Point *GeoPoint
}

// EmbeddingResult carries the vector, or nil when embedding is unavailable for the text
type EmbeddingResult struct {
	Vector []float32
}
