package model

import "github.com/secmon-lab/osnit/pkg/domain/types"

const (
	trustedSourceWeight = 1.2
	defaultSourceWeight = 1.0
	geoWeight           = 1.1
	noGeoWeight         = 1.0
)

// RiskInput is everything the risk score depends on
type RiskInput struct {
	Confidence float64
	Severity   types.Severity
	Source     string
	HasGeo     bool
}

// RiskScorer computes the multiplicative risk score of an enriched record.
// The score is not clamped; with the default weights it ranges over [0, 3.96].
type RiskScorer struct {
	trusted map[string]struct{}
}

// NewRiskScorer creates a scorer. Source names are matched exactly.
func NewRiskScorer(trustedSources []string) *RiskScorer {
	trusted := make(map[string]struct{}, len(trustedSources))
	for _, s := range trustedSources {
		trusted[s] = struct{}{}
	}
	return &RiskScorer{trusted: trusted}
}

// Score returns confidence x severity weight x source weight x geo weight, rounded to 3 places
func (s *RiskScorer) Score(in RiskInput) float64 {
	sourceWeight := defaultSourceWeight
	if _, ok := s.trusted[in.Source]; ok {
		sourceWeight = trustedSourceWeight
	}

	gw := noGeoWeight
	if in.HasGeo {
		gw = geoWeight
	}

	return Round3(in.Confidence * SeverityWeight(in.Severity) * sourceWeight * gw)
}

// SeverityWeight maps high=3, medium=2 and everything else to 1
func SeverityWeight(s types.Severity) float64 {
	switch s {
	case types.SeverityHigh:
		return 3
	case types.SeverityMedium:
		return 2
	default:
		return 1
	}
}
