package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/domain/model/config"
	"github.com/secmon-lab/osnit/pkg/utils/errutil"
	"github.com/secmon-lab/osnit/pkg/utils/logging"
	"github.com/secmon-lab/osnit/pkg/utils/metrics"
	"github.com/secmon-lab/osnit/pkg/utils/retry"
	"golang.org/x/sync/errgroup"
)

// EnrichUseCase classifies, geolocates, scores and embeds unprocessed records
type EnrichUseCase struct {
	repo        interfaces.Repository
	caps        Capabilities
	scorer      *model.RiskScorer
	policy      retry.Policy
	workers     int
	maxFailures int
	now         func() time.Time

	// one batch at a time so that two batches never pick up the same record
	mu sync.Mutex
}

func NewEnrichUseCase(repo interfaces.Repository, caps Capabilities, cfg *config.PipelineConfig, now func() time.Time) *EnrichUseCase {
	if cfg == nil {
		cfg = config.DefaultPipelineConfig()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &EnrichUseCase{
		repo:   repo,
		caps:   caps,
		scorer: model.NewRiskScorer(cfg.TrustedSources),
		policy: retry.Policy{
			Attempts: cfg.CapabilityAttempts,
			Timeout:  cfg.CapabilityTimeout,
			Backoff:  cfg.CapabilityBackoff,
		},
		workers:     max(cfg.EnrichWorkers, 1),
		maxFailures: max(cfg.MaxFailures, 1),
		now:         now,
	}
}

// EnrichResult holds the counts of one enrichment batch
type EnrichResult struct {
	Succeeded int
	Failed    int
	// Flagged counts records that reached the failure limit in this batch
	Flagged int
}

// RunBatch enriches every pending record. A failure of one record never affects
// the others; it is counted and recorded on the record itself.
func (uc *EnrichUseCase) RunBatch(ctx context.Context) (*EnrichResult, error) {
	if uc.caps.Classifier == nil {
		return nil, goerr.Wrap(ErrClassifierNotConfigured, "cannot run enrichment")
	}

	uc.mu.Lock()
	defer uc.mu.Unlock()

	records, err := uc.repo.Record().ListUnprocessed(ctx, 0)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list unprocessed records")
	}

	logger := logging.From(ctx)
	logger.Info("enrichment batch started", "records", len(records), "workers", uc.workers)

	result := &EnrichResult{}
	var mu sync.Mutex
	count := func(f func(r *EnrichResult)) {
		mu.Lock()
		defer mu.Unlock()
		f(result)
	}

	var eg errgroup.Group
	eg.SetLimit(uc.workers)
	for _, rec := range records {
		if ctx.Err() != nil {
			break
		}
		eg.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			uc.processRecord(ctx, rec, count)
			return nil
		})
	}
	_ = eg.Wait()

	logger.Info("enrichment batch finished",
		"succeeded", result.Succeeded,
		"failed", result.Failed,
		"flagged", result.Flagged)

	if err := ctx.Err(); err != nil {
		return result, goerr.Wrap(err, "enrichment batch interrupted")
	}
	return result, nil
}

func (uc *EnrichUseCase) processRecord(ctx context.Context, rec *model.Record, count func(func(*EnrichResult))) {
	enriched, err := uc.enrichRecord(ctx, rec)
	if err == nil {
		err = uc.repo.Record().Update(ctx, enriched)
		if err == nil {
			metrics.EnrichOutcome("succeeded")
			count(func(r *EnrichResult) { r.Succeeded++ })
			return
		}
		err = goerr.Wrap(err, "failed to persist enriched record", goerr.V(RecordIDKey, rec.ID))
	}

	_ = errutil.Handle(ctx, err, "failed to enrich record")

	flagged, updateErr := uc.recordFailure(ctx, rec, err)
	if updateErr != nil {
		_ = errutil.Handle(ctx, updateErr, "failed to record enrichment failure")
	}

	metrics.EnrichOutcome("failed")
	count(func(r *EnrichResult) {
		r.Failed++
		if flagged {
			r.Flagged++
		}
	})
	if flagged {
		metrics.EnrichOutcome("flagged")
	}
}

// recordFailure bumps the failure counter and flags the record once it reaches the limit
func (uc *EnrichUseCase) recordFailure(ctx context.Context, rec *model.Record, cause error) (bool, error) {
	failed := rec.Copy()
	failed.FailureCount++
	failed.LastError = cause.Error()
	if failed.FailureCount >= uc.maxFailures {
		failed.Flagged = true
		logging.From(ctx).Warn("record flagged after repeated enrichment failures",
			"record_id", rec.ID,
			"failures", failed.FailureCount,
			"last_error", failed.LastError)
	}

	if err := uc.repo.Record().Update(ctx, failed); err != nil {
		return false, goerr.Wrap(err, "failed to update failure count", goerr.V(RecordIDKey, rec.ID))
	}
	return failed.Flagged, nil
}

// enrichRecord computes every enrichment field on a copy of rec
func (uc *EnrichUseCase) enrichRecord(ctx context.Context, rec *model.Record) (*model.Record, error) {
	out := rec.Copy()

	cls, err := callCapability(ctx, uc.policy, "classify", func(ctx context.Context) (*model.Classification, error) {
		return uc.caps.Classifier.Classify(ctx, rec.Content)
	})
	if err != nil {
		return nil, goerr.Wrap(err, "classification failed", goerr.V(RecordIDKey, rec.ID))
	}
	out.IncidentType = cls.IncidentType
	out.Severity = cls.Severity
	out.Confidence = min(max(cls.Confidence, 0), 1)

	out.Entities = model.Entities{}
	if uc.caps.Extractor != nil {
		ents, err := callCapability(ctx, uc.policy, "extract", func(ctx context.Context) (*model.Entities, error) {
			return uc.caps.Extractor.Extract(ctx, rec.Content)
		})
		if err != nil {
			return nil, goerr.Wrap(err, "entity extraction failed", goerr.V(RecordIDKey, rec.ID))
		}
		out.Entities = *ents
	}
	out.Locations = out.Entities.Locations

	out.Geo = nil
	if len(out.Locations) > 0 && uc.caps.Geocoder != nil {
		out.Geo = uc.geocode(ctx, rec.ID, out.Locations[0])
	}

	var region model.Region
	if uc.caps.Regions != nil {
		region = uc.caps.Regions.ResolveRegion(out.Locations)
	}
	out.Country = region.Country
	out.State = region.State
	out.Summary = model.Summarize(out.IncidentType, region)

	out.RiskScore = uc.scorer.Score(model.RiskInput{
		Confidence: out.Confidence,
		Severity:   out.Severity,
		Source:     out.Source,
		HasGeo:     out.Geo != nil,
	})

	out.Embedding = nil
	if uc.caps.Embedder != nil {
		emb, err := callCapability(ctx, uc.policy, "embed", func(ctx context.Context) (*model.EmbeddingResult, error) {
			return uc.caps.Embedder.Embed(ctx, rec.Content)
		})
		if err != nil {
			return nil, goerr.Wrap(err, "embedding failed", goerr.V(RecordIDKey, rec.ID))
		}
		out.Embedding = emb.Vector
	}

	now := uc.now()
	out.Processed = true
	out.EnrichedAt = &now
	out.FailureCount = 0
	out.Flagged = false
	out.LastError = ""
	return out, nil
}

// geocode never fails the record; errors only cost the geo weight
func (uc *EnrichUseCase) geocode(ctx context.Context, id model.RecordID, name string) *model.GeoPoint {
	res, err := callCapability(ctx, uc.policy, "geocode", func(ctx context.Context) (*model.GeocodeResult, error) {
		return uc.caps.Geocoder.Geocode(ctx, name)
	})
	if err != nil {
		logging.From(ctx).Warn("geocoding failed, continuing without coordinates",
			"record_id", id,
			"location", name,
			"error", err.Error())
		return nil
	}
	return res.Point
}

func callCapability[T any](ctx context.Context, p retry.Policy, name string, fn func(ctx context.Context) (*T, error)) (*T, error) {
	begin := time.Now()
	v, err := retry.Do(ctx, p, fn)
	metrics.ObserveCapability(name, begin, err)
	if err != nil {
		return nil, goerr.Wrap(err, "capability call failed", goerr.V("capability", name))
	}
	if v == nil {
		return nil, goerr.Wrap(interfaces.ErrCapability, "capability returned no result", goerr.V("capability", name))
	}
	return v, nil
}
