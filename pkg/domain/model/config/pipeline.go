package config

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// PipelineConfig holds thresholds and limits of the enrichment and correlation pipeline
type PipelineConfig struct {
	// TrustedSources get the higher source weight in the risk score. Exact, case-sensitive match.
	TrustedSources []string

	EnrichWorkers      int
	MaxFailures        int
	CapabilityTimeout  time.Duration
	CapabilityAttempts int
	CapabilityBackoff  time.Duration

	SimilarityThreshold       float64
	AlertRiskThreshold        float64
	AlertClusterSizeThreshold int
}

// DefaultPipelineConfig returns the configuration used when nothing is overridden
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		TrustedSources:            []string{"gdelt"},
		EnrichWorkers:             4,
		MaxFailures:               3,
		CapabilityTimeout:         30 * time.Second,
		CapabilityAttempts:        2,
		CapabilityBackoff:         500 * time.Millisecond,
		SimilarityThreshold:       0.80,
		AlertRiskThreshold:        2.0,
		AlertClusterSizeThreshold: 5,
	}
}

// Validate checks value ranges
func (c *PipelineConfig) Validate() error {
	if c.EnrichWorkers < 1 {
		return goerr.New("enrich workers must be positive", goerr.V("workers", c.EnrichWorkers))
	}
	if c.MaxFailures < 1 {
		return goerr.New("max failures must be positive", goerr.V("max_failures", c.MaxFailures))
	}
	if c.CapabilityAttempts < 1 {
		return goerr.New("capability attempts must be positive", goerr.V("attempts", c.CapabilityAttempts))
	}
	if c.CapabilityTimeout < 0 || c.CapabilityBackoff < 0 {
		return goerr.New("capability timeout and backoff must not be negative",
			goerr.V("timeout", c.CapabilityTimeout),
			goerr.V("backoff", c.CapabilityBackoff))
	}
	if c.SimilarityThreshold < -1 || c.SimilarityThreshold > 1 {
		return goerr.New("similarity threshold must be within [-1, 1]", goerr.V("threshold", c.SimilarityThreshold))
	}
	if c.AlertClusterSizeThreshold < 1 {
		return goerr.New("alert cluster size threshold must be positive", goerr.V("threshold", c.AlertClusterSizeThreshold))
	}
	return nil
}
