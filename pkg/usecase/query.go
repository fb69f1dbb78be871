package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
	"github.com/secmon-lab/osnit/pkg/domain/model"
)

const (
	DefaultAlertLimit    = 20
	MaxAlertLimit        = 100
	DefaultTopRiskLimit  = 10
	MaxTopRiskLimit      = 100
	DefaultSimilarTopK   = 5
	MaxSimilarTopK       = 100
	ClusterPreviewLength = 200
)

// QueryUseCase serves the read-only views over records and alerts
type QueryUseCase struct {
	repo interfaces.Repository
}

func NewQueryUseCase(repo interfaces.Repository) *QueryUseCase {
	return &QueryUseCase{repo: repo}
}

func clampLimit(limit, def, maxLimit int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, maxLimit)
}

// ListAlerts returns alerts newest first
func (uc *QueryUseCase) ListAlerts(ctx context.Context, offset, limit int) ([]*model.Alert, error) {
	alerts, err := uc.repo.Alert().List(ctx, max(offset, 0), clampLimit(limit, DefaultAlertLimit, MaxAlertLimit))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list alerts")
	}
	return alerts, nil
}

// TopRisk returns processed records with the highest risk scores
func (uc *QueryUseCase) TopRisk(ctx context.Context, limit int) ([]*model.Record, error) {
	records, err := uc.repo.Record().ListTopRisk(ctx, clampLimit(limit, DefaultTopRiskLimit, MaxTopRiskLimit))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list top risk records")
	}
	return records, nil
}

// Clusters returns cluster sizes, largest first
func (uc *QueryUseCase) Clusters(ctx context.Context) ([]*model.ClusterSummary, error) {
	clusters, err := uc.repo.Record().ListClusters(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list clusters")
	}
	return clusters, nil
}

// ClusterMembers returns the records of one cluster in ID order
func (uc *QueryUseCase) ClusterMembers(ctx context.Context, clusterID int64) ([]*model.Record, error) {
	records, err := uc.repo.Record().ListByCluster(ctx, clusterID)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list cluster members", goerr.V("cluster_id", clusterID))
	}
	return records, nil
}

// Preview truncates content for list views, keeping whole runes
func Preview(content string) string {
	runes := []rune(content)
	if len(runes) <= ClusterPreviewLength {
		return content
	}
	return string(runes[:ClusterPreviewLength])
}
