package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/domain/model/config"
	"github.com/secmon-lab/osnit/pkg/utils/errutil"
	"github.com/secmon-lab/osnit/pkg/utils/logging"
	"github.com/secmon-lab/osnit/pkg/utils/metrics"
)

// AlertUseCase raises alerts for high-risk records and surging clusters
type AlertUseCase struct {
	repo                 interfaces.Repository
	notifier             interfaces.AlertNotifier
	riskThreshold        float64
	clusterSizeThreshold int
	now                  func() time.Time
}

func NewAlertUseCase(repo interfaces.Repository, cfg *config.PipelineConfig, notifier interfaces.AlertNotifier, now func() time.Time) *AlertUseCase {
	if cfg == nil {
		cfg = config.DefaultPipelineConfig()
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &AlertUseCase{
		repo:                 repo,
		notifier:             notifier,
		riskThreshold:        cfg.AlertRiskThreshold,
		clusterSizeThreshold: cfg.AlertClusterSizeThreshold,
		now:                  now,
	}
}

// AlertResult holds the outcome of one alert generation run
type AlertResult struct {
	Created []*model.Alert
	// Skipped counts subjects that already had an alert from an earlier run
	Skipped int
	Failed  int
}

// Generate evaluates both rules over the processed records. Each subject is alerted
// at most once across all runs; the repository's dedup key constraint decides.
func (uc *AlertUseCase) Generate(ctx context.Context) (*AlertResult, error) {
	records, err := uc.repo.Record().ListProcessed(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list processed records")
	}

	now := uc.now()
	var candidates []*model.Alert

	members := make(map[int64][]*model.Record)
	var clusterOrder []int64
	for _, rec := range records {
		if rec.RiskScore >= uc.riskThreshold {
			candidates = append(candidates, model.NewHighRiskAlert(rec, uc.riskThreshold, now))
		}
		if rec.ClusterID != nil {
			cid := *rec.ClusterID
			if _, ok := members[cid]; !ok {
				clusterOrder = append(clusterOrder, cid)
			}
			members[cid] = append(members[cid], rec)
		}
	}
	for _, cid := range clusterOrder {
		if len(members[cid]) >= uc.clusterSizeThreshold {
			candidates = append(candidates, model.NewClusterSurgeAlert(cid, members[cid], uc.clusterSizeThreshold, now))
		}
	}

	result := &AlertResult{}
	for _, alert := range candidates {
		if err := ctx.Err(); err != nil {
			return result, goerr.Wrap(err, "alert generation interrupted")
		}

		if err := uc.repo.Alert().Create(ctx, alert); err != nil {
			if errors.Is(err, interfaces.ErrDuplicate) {
				result.Skipped++
				continue
			}
			result.Failed++
			_ = errutil.Handle(ctx, goerr.Wrap(err, "failed to create alert", goerr.V("dedup_key", alert.DedupKey)),
				"failed to store alert")
			continue
		}

		metrics.AlertCreated(alert.Rule.String())
		result.Created = append(result.Created, alert)
	}

	logging.From(ctx).Info("alert generation finished",
		"created", len(result.Created),
		"skipped", result.Skipped,
		"failed", result.Failed)

	if len(result.Created) > 0 && uc.notifier != nil {
		if err := uc.notifier.Notify(ctx, result.Created); err != nil {
			_ = errutil.Handle(ctx, goerr.Wrap(err, "failed to notify alerts", goerr.V("count", len(result.Created))),
				"alert notification failed")
		}
	}

	return result, nil
}
