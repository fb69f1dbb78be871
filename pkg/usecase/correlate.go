package usecase

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/utils/errutil"
	"github.com/secmon-lab/osnit/pkg/utils/logging"
	"github.com/secmon-lab/osnit/pkg/utils/metrics"
)

// CorrelateUseCase groups processed records into clusters of related reports
type CorrelateUseCase struct {
	repo      interfaces.Repository
	threshold float64
}

func NewCorrelateUseCase(repo interfaces.Repository, threshold float64) *CorrelateUseCase {
	return &CorrelateUseCase{
		repo:      repo,
		threshold: threshold,
	}
}

// CorrelateResult holds the outcome of one recluster run
type CorrelateResult struct {
	ClustersAssigned int
	RecordsAssigned  int
	Unassigned       int
	// Updated is the number of records whose cluster id changed and was written
	Updated int
	Failed  int
	// ClusterSizes maps each cluster of this run to its member count
	ClusterSizes map[int64]int
}

// Recluster recomputes cluster ids over the whole processed population.
// Records are written one by one and only when their cluster id changed.
func (uc *CorrelateUseCase) Recluster(ctx context.Context) (*CorrelateResult, error) {
	records, err := uc.repo.Record().ListProcessed(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list processed records")
	}

	assignment := model.AssignClusters(records, uc.threshold)

	result := &CorrelateResult{
		ClustersAssigned: assignment.Count,
		RecordsAssigned:  len(assignment.Clusters),
		Unassigned:       len(assignment.Unassigned),
		ClusterSizes:     make(map[int64]int, assignment.Count),
	}
	for _, cid := range assignment.Clusters {
		result.ClusterSizes[cid]++
	}

	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return result, goerr.Wrap(err, "recluster interrupted")
		}

		var next *int64
		if cid, ok := assignment.Clusters[rec.ID]; ok {
			next = model.Int64Ptr(cid)
		}
		if sameCluster(rec.ClusterID, next) {
			continue
		}

		if err := uc.repo.Record().UpdateClusterID(ctx, rec.ID, next); err != nil {
			result.Failed++
			_ = errutil.Handle(ctx, goerr.Wrap(err, "failed to update cluster id", goerr.V(RecordIDKey, rec.ID)),
				"failed to write cluster assignment")
			continue
		}
		result.Updated++
	}

	metrics.SetClusters(result.ClustersAssigned)
	logging.From(ctx).Info("recluster finished",
		"clusters", result.ClustersAssigned,
		"assigned", result.RecordsAssigned,
		"unassigned", result.Unassigned,
		"updated", result.Updated,
		"failed", result.Failed)

	return result, nil
}

func sameCluster(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
