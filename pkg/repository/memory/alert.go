package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/domain/model"
)

type alertRepository struct {
	mu     sync.RWMutex
	alerts []*model.Alert
	keys   map[string]struct{}
}

func newAlertRepository() *alertRepository {
	return &alertRepository{
		keys: make(map[string]struct{}),
	}
}

func copyAlert(a *model.Alert) *model.Alert {
	c := *a
	c.RecordIDs = slices.Clone(a.RecordIDs)
	if a.ClusterID != nil {
		c.ClusterID = model.Int64Ptr(*a.ClusterID)
	}
	return &c
}

func (r *alertRepository) Create(ctx context.Context, alert *model.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.keys[alert.DedupKey]; exists {
		return goerr.Wrap(ErrDuplicate, "alert already raised", goerr.V("dedup_key", alert.DedupKey))
	}

	r.keys[alert.DedupKey] = struct{}{}
	r.alerts = append(r.alerts, copyAlert(alert))
	return nil
}

func (r *alertRepository) Exists(ctx context.Context, dedupKey string) (bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.keys[dedupKey]
	return exists, nil
}

func (r *alertRepository) List(ctx context.Context, offset, limit int) ([]*model.Alert, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sorted := make([]*model.Alert, len(r.alerts))
	for i, a := range r.alerts {
		sorted[i] = copyAlert(a)
	}
	slices.SortStableFunc(sorted, func(a, b *model.Alert) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})

	if offset >= len(sorted) {
		return []*model.Alert{}, nil
	}
	sorted = sorted[max(offset, 0):]
	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}
	return sorted, nil
}
