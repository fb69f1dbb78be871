package usecase

import (
	"context"
	"errors"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/utils/logging"
)

// PipelineUseCase chains enrichment, correlation and alerting.
// Runs are serialized so correlation and alerting never overlap.
type PipelineUseCase struct {
	enrich    *EnrichUseCase
	correlate *CorrelateUseCase
	alert     *AlertUseCase

	mu sync.Mutex
}

func NewPipelineUseCase(enrich *EnrichUseCase, correlate *CorrelateUseCase, alert *AlertUseCase) *PipelineUseCase {
	return &PipelineUseCase{
		enrich:    enrich,
		correlate: correlate,
		alert:     alert,
	}
}

// PipelineResult aggregates the stage results of one run
type PipelineResult struct {
	Enrich    *EnrichResult
	Correlate *CorrelateResult
	Alert     *AlertResult
}

// Run executes enrich -> correlate -> alert once
func (uc *PipelineUseCase) Run(ctx context.Context) (*PipelineResult, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	result := &PipelineResult{}

	enrichResult, err := uc.enrich.RunBatch(ctx)
	if err != nil && !errors.Is(err, ErrClassifierNotConfigured) {
		return result, goerr.Wrap(err, "enrichment stage failed")
	}
	if errors.Is(err, ErrClassifierNotConfigured) {
		logging.From(ctx).Warn("skipping enrichment, no classifier configured")
	}
	result.Enrich = enrichResult

	correlateResult, alertResult, err := uc.correlateAndAlert(ctx)
	result.Correlate = correlateResult
	result.Alert = alertResult
	return result, err
}

// Correlate executes correlate -> alert once, without enrichment
func (uc *PipelineUseCase) Correlate(ctx context.Context) (*CorrelateResult, *AlertResult, error) {
	uc.mu.Lock()
	defer uc.mu.Unlock()

	return uc.correlateAndAlert(ctx)
}

func (uc *PipelineUseCase) correlateAndAlert(ctx context.Context) (*CorrelateResult, *AlertResult, error) {
	correlateResult, err := uc.correlate.Recluster(ctx)
	if err != nil {
		return correlateResult, nil, goerr.Wrap(err, "correlation stage failed")
	}

	alertResult, err := uc.alert.Generate(ctx)
	if err != nil {
		return correlateResult, alertResult, goerr.Wrap(err, "alert stage failed")
	}
	return correlateResult, alertResult, nil
}

func (uc *PipelineUseCase) runDetached(ctx context.Context) error {
	_, err := uc.Run(ctx)
	return err
}
