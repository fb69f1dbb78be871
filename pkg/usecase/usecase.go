package usecase

import (
	"time"

	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
	"github.com/secmon-lab/osnit/pkg/domain/model/config"
)

type UseCases struct {
	repo           interfaces.Repository
	pipelineConfig *config.PipelineConfig
	capabilities   Capabilities
	collectors     []interfaces.Collector
	notifier       interfaces.AlertNotifier
	autoProcess    bool
	now            func() time.Time

	Ingest     *IngestUseCase
	Enrich     *EnrichUseCase
	Correlate  *CorrelateUseCase
	Alert      *AlertUseCase
	Pipeline   *PipelineUseCase
	Similarity *SimilarityUseCase
	Query      *QueryUseCase
}

// Capabilities bundles the model-backed operations used by enrichment.
// Classifier is required; the others may be nil and then yield empty results.
type Capabilities struct {
	Classifier interfaces.Classifier
	Extractor  interfaces.EntityExtractor
	Geocoder   interfaces.Geocoder
	Regions    interfaces.RegionResolver
	Embedder   interfaces.Embedder
}

type Option func(*UseCases)

func WithPipelineConfig(cfg *config.PipelineConfig) Option {
	return func(uc *UseCases) {
		uc.pipelineConfig = cfg
	}
}

func WithCapabilities(c Capabilities) Option {
	return func(uc *UseCases) {
		uc.capabilities = c
	}
}

func WithCollectors(collectors ...interfaces.Collector) Option {
	return func(uc *UseCases) {
		uc.collectors = append(uc.collectors, collectors...)
	}
}

func WithAlertNotifier(n interfaces.AlertNotifier) Option {
	return func(uc *UseCases) {
		uc.notifier = n
	}
}

// WithAutoProcess makes ingestion dispatch a pipeline run in the background
// whenever new records were inserted
func WithAutoProcess(enabled bool) Option {
	return func(uc *UseCases) {
		uc.autoProcess = enabled
	}
}

// WithClock replaces the time source, for tests
func WithClock(now func() time.Time) Option {
	return func(uc *UseCases) {
		uc.now = now
	}
}

func New(repo interfaces.Repository, opts ...Option) *UseCases {
	uc := &UseCases{
		repo:           repo,
		pipelineConfig: config.DefaultPipelineConfig(),
		now:            func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(uc)
	}

	cfg := uc.pipelineConfig
	uc.Enrich = NewEnrichUseCase(repo, uc.capabilities, cfg, uc.now)
	uc.Correlate = NewCorrelateUseCase(repo, cfg.SimilarityThreshold)
	uc.Alert = NewAlertUseCase(repo, cfg, uc.notifier, uc.now)
	uc.Pipeline = NewPipelineUseCase(uc.Enrich, uc.Correlate, uc.Alert)
	uc.Ingest = NewIngestUseCase(repo, uc.collectors, uc.now)
	if uc.autoProcess {
		uc.Ingest.onInserted = uc.Pipeline.runDetached
	}
	uc.Similarity = NewSimilarityUseCase(repo)
	uc.Query = NewQueryUseCase(repo)

	return uc
}
