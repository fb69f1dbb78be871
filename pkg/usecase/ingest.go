package usecase

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/utils/async"
	"github.com/secmon-lab/osnit/pkg/utils/errutil"
	"github.com/secmon-lab/osnit/pkg/utils/logging"
	"github.com/secmon-lab/osnit/pkg/utils/metrics"
	"golang.org/x/sync/errgroup"
)

// IngestUseCase deduplicates candidates into the record store
type IngestUseCase struct {
	repo       interfaces.Repository
	collectors []interfaces.Collector
	now        func() time.Time

	// onInserted is dispatched in the background after a collection inserted records
	onInserted func(ctx context.Context) error
}

func NewIngestUseCase(repo interfaces.Repository, collectors []interfaces.Collector, now func() time.Time) *IngestUseCase {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &IngestUseCase{
		repo:       repo,
		collectors: collectors,
		now:        now,
	}
}

// IngestResult reports whether a candidate became a new record
type IngestResult struct {
	Inserted bool
	Record   *model.Record
}

// Ingest stores the candidate unless a record with identical content exists.
// Blank content is rejected: it is logged and reported as not inserted without error.
func (uc *IngestUseCase) Ingest(ctx context.Context, c *model.Candidate) (IngestResult, error) {
	if strings.TrimSpace(c.Content) == "" {
		logging.From(ctx).Warn("rejected candidate with empty content",
			"source", c.Source,
			"url", c.URL,
			"error", ErrEmptyContent)
		metrics.IngestOutcome(c.Source, "rejected")
		return IngestResult{}, nil
	}

	created, err := uc.repo.Record().Create(ctx, model.NewRecord(c, uc.now()))
	if err != nil {
		if errors.Is(err, interfaces.ErrDuplicate) {
			metrics.IngestOutcome(c.Source, "duplicate")
			return IngestResult{}, nil
		}
		return IngestResult{}, goerr.Wrap(err, "failed to insert record",
			goerr.V(SourceKey, c.Source),
			goerr.V("url", c.URL))
	}

	metrics.IngestOutcome(c.Source, "inserted")
	return IngestResult{Inserted: true, Record: created}, nil
}

// SourceResult holds per-collector counts of one collection run
type SourceResult struct {
	Source     string
	Fetched    int
	Inserted   int
	Duplicates int
	Rejected   int
	Errors     int
	Err        error
}

// CollectResult holds the result of a collection fan-out
type CollectResult struct {
	Sources []*SourceResult
}

// Inserted returns the total number of new records
func (r *CollectResult) Inserted() int {
	n := 0
	for _, s := range r.Sources {
		n += s.Inserted
	}
	return n
}

// Collect runs every configured collector concurrently and ingests what they return.
// A failing collector never affects its siblings.
func (uc *IngestUseCase) Collect(ctx context.Context) (*CollectResult, error) {
	return uc.CollectFrom(ctx, uc.collectors...)
}

// CollectFrom is Collect over an explicit set of collectors
func (uc *IngestUseCase) CollectFrom(ctx context.Context, collectors ...interfaces.Collector) (*CollectResult, error) {
	result := &CollectResult{
		Sources: make([]*SourceResult, len(collectors)),
	}

	// Plain group: one source failing must not cancel the others
	var eg errgroup.Group
	for i, collector := range collectors {
		eg.Go(func() error {
			result.Sources[i] = uc.collectOne(ctx, collector)
			return nil
		})
	}
	_ = eg.Wait()

	inserted := result.Inserted()
	logging.From(ctx).Info("collection finished",
		"sources", len(collectors),
		"inserted", inserted)

	if inserted > 0 && uc.onInserted != nil {
		async.Dispatch(ctx, "pipeline", uc.onInserted)
	}

	return result, nil
}

func (uc *IngestUseCase) collectOne(ctx context.Context, collector interfaces.Collector) *SourceResult {
	res := &SourceResult{Source: collector.Name()}
	logger := logging.From(ctx).With("source", res.Source)

	candidates, err := collector.Collect(ctx)
	if err != nil {
		res.Err = goerr.Wrap(err, "collector failed", goerr.V(SourceKey, res.Source))
		metrics.CollectorError(res.Source)
		_ = errutil.Handle(ctx, res.Err, "failed to collect from source")
		return res
	}
	res.Fetched = len(candidates)

	for _, c := range candidates {
		if ctx.Err() != nil {
			break
		}
		if c.Source == "" {
			c.Source = res.Source
		}

		ir, err := uc.Ingest(ctx, c)
		switch {
		case err != nil:
			res.Errors++
			_ = errutil.Handle(ctx, err, "failed to ingest candidate")
		case ir.Inserted:
			res.Inserted++
		case strings.TrimSpace(c.Content) == "":
			res.Rejected++
		default:
			res.Duplicates++
		}
	}

	logger.Info("source collected",
		"fetched", res.Fetched,
		"inserted", res.Inserted,
		"duplicates", res.Duplicates,
		"rejected", res.Rejected,
		"errors", res.Errors)
	return res
}
