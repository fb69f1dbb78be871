package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/domain/model"
)

type recordRepository struct {
	mu      sync.RWMutex
	records map[model.RecordID]*model.Record
	hashes  map[string]model.RecordID
	nextID  model.RecordID
}

func newRecordRepository() *recordRepository {
	return &recordRepository{
		records: make(map[model.RecordID]*model.Record),
		hashes:  make(map[string]model.RecordID),
		nextID:  1,
	}
}

func (r *recordRepository) Create(ctx context.Context, record *model.Record) (*model.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, exists := r.hashes[record.ContentHash]; exists {
		return nil, goerr.Wrap(ErrDuplicate, "record with same content hash exists",
			goerr.V("hash", record.ContentHash), goerr.V("existing_id", id))
	}

	created := record.Copy()
	created.ID = r.nextID
	r.nextID++

	r.records[created.ID] = created
	r.hashes[created.ContentHash] = created.ID
	return created.Copy(), nil
}

func (r *recordRepository) Get(ctx context.Context, id model.RecordID) (*model.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.records[id]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "record not found", goerr.V("id", id))
	}
	return record.Copy(), nil
}

func (r *recordRepository) GetByHash(ctx context.Context, hash string) (*model.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.hashes[hash]
	if !exists {
		return nil, goerr.Wrap(ErrNotFound, "record not found", goerr.V("hash", hash))
	}
	return r.records[id].Copy(), nil
}

func (r *recordRepository) Update(ctx context.Context, record *model.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.records[record.ID]
	if !exists {
		return goerr.Wrap(ErrNotFound, "record not found", goerr.V("id", record.ID))
	}

	updated := record.Copy()
	updated.Source = existing.Source
	updated.Content = existing.Content
	updated.ContentHash = existing.ContentHash
	updated.URL = existing.URL
	updated.Metadata = existing.Metadata
	updated.CollectedAt = existing.CollectedAt
	updated.ClusterID = existing.ClusterID

	r.records[record.ID] = updated
	return nil
}

// list returns copies of records matching filter, ascending by ID. Caller must hold the lock.
func (r *recordRepository) list(filter func(*model.Record) bool) []*model.Record {
	var result []*model.Record
	for _, record := range r.records {
		if filter(record) {
			result = append(result, record.Copy())
		}
	}
	slices.SortFunc(result, func(a, b *model.Record) int {
		return cmp.Compare(a.ID, b.ID)
	})
	return result
}

func (r *recordRepository) ListUnprocessed(ctx context.Context, limit int) ([]*model.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := r.list(func(rec *model.Record) bool {
		return !rec.Processed && !rec.Flagged
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *recordRepository) ListProcessed(ctx context.Context) ([]*model.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.list(func(rec *model.Record) bool { return rec.Processed }), nil
}

func (r *recordRepository) ListTopRisk(ctx context.Context, limit int) ([]*model.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := r.list(func(rec *model.Record) bool { return rec.Processed })
	slices.SortStableFunc(result, func(a, b *model.Record) int {
		return cmp.Compare(b.RiskScore, a.RiskScore)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (r *recordRepository) ListByCluster(ctx context.Context, clusterID int64) ([]*model.Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.list(func(rec *model.Record) bool {
		return rec.ClusterID != nil && *rec.ClusterID == clusterID
	}), nil
}

func (r *recordRepository) ListClusters(ctx context.Context) ([]*model.ClusterSummary, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	counts := make(map[int64]int)
	for _, rec := range r.records {
		if rec.ClusterID != nil {
			counts[*rec.ClusterID]++
		}
	}

	summaries := make([]*model.ClusterSummary, 0, len(counts))
	for id, n := range counts {
		summaries = append(summaries, &model.ClusterSummary{ClusterID: id, Count: n})
	}
	model.SortClusterSummaries(summaries)
	return summaries, nil
}

func (r *recordRepository) UpdateClusterID(ctx context.Context, id model.RecordID, clusterID *int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.records[id]
	if !exists {
		return goerr.Wrap(ErrNotFound, "record not found", goerr.V("id", id))
	}

	if clusterID == nil {
		record.ClusterID = nil
	} else {
		record.ClusterID = model.Int64Ptr(*clusterID)
	}
	return nil
}
