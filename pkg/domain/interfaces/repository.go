package interfaces

import (
	"context"

	"github.com/secmon-lab/osnit/pkg/domain/model"
)

// Repository defines the interface for data persistence
type Repository interface {
	Record() RecordRepository
	Alert() AlertRepository
	Close() error
}

type RecordRepository interface {
	// Create inserts a record with an auto-generated ID. It fails with ErrDuplicate
	// when a record with the same content hash exists; the check and insert are atomic.
	Create(ctx context.Context, record *model.Record) (*model.Record, error)

	// Get retrieves a record by ID. Returns ErrNotFound when absent.
	Get(ctx context.Context, id model.RecordID) (*model.Record, error)

	// GetByHash retrieves a record by content hash. Returns ErrNotFound when absent.
	GetByHash(ctx context.Context, hash string) (*model.Record, error)

	// Update persists enrichment output and failure tracking of an existing record.
	// Source, content, hash and cluster assignment are left untouched.
	Update(ctx context.Context, record *model.Record) error

	// ListUnprocessed returns records that are neither processed nor flagged, ascending by ID.
	// limit <= 0 means no limit.
	ListUnprocessed(ctx context.Context, limit int) ([]*model.Record, error)

	// ListProcessed returns all processed records ascending by ID
	ListProcessed(ctx context.Context) ([]*model.Record, error)

	// ListTopRisk returns processed records by risk score descending, ties by ID ascending
	ListTopRisk(ctx context.Context, limit int) ([]*model.Record, error)

	// ListByCluster returns members of a cluster ascending by ID
	ListByCluster(ctx context.Context, clusterID int64) ([]*model.Record, error)

	// ListClusters returns member counts by count descending, ties by cluster ID ascending
	ListClusters(ctx context.Context) ([]*model.ClusterSummary, error)

	// UpdateClusterID sets or clears (nil) the cluster assignment of a record
	UpdateClusterID(ctx context.Context, id model.RecordID, clusterID *int64) error
}

type AlertRepository interface {
	// Create stores an alert. It fails with ErrDuplicate when an alert with the same dedup key exists.
	Create(ctx context.Context, alert *model.Alert) error

	// Exists reports whether an alert with the dedup key was already raised
	Exists(ctx context.Context, dedupKey string) (bool, error)

	// List returns alerts newest first
	List(ctx context.Context, offset, limit int) ([]*model.Alert, error)
}
