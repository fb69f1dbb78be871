package firestore

import (
	"context"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type alertDocument struct {
	ID        string    `firestore:"id"`
	CreatedAt time.Time `firestore:"created_at"`
	Rule      string    `firestore:"rule"`
	Severity  string    `firestore:"severity"`
	Reason    string    `firestore:"reason"`
	RecordIDs []int64   `firestore:"record_ids"`
	ClusterID *int64    `firestore:"cluster_id"`
	DedupKey  string    `firestore:"dedup_key"`
}

type alertRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newAlertRepository(client *firestore.Client) *alertRepository {
	return &alertRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *alertRepository) alertsCollection() *firestore.CollectionRef {
	return r.client.Collection(prefixed(r.collectionPrefix, "alerts"))
}

// alertRef keys alert documents by dedup key so that Create enforces uniqueness
func (r *alertRepository) alertRef(dedupKey string) *firestore.DocumentRef {
	return r.alertsCollection().Doc(strings.ReplaceAll(dedupKey, "/", "_"))
}

func (r *alertRepository) Create(ctx context.Context, alert *model.Alert) error {
	ids := make([]int64, len(alert.RecordIDs))
	for i, id := range alert.RecordIDs {
		ids[i] = int64(id)
	}

	doc := &alertDocument{
		ID:        string(alert.ID),
		CreatedAt: alert.CreatedAt,
		Rule:      string(alert.Rule),
		Severity:  string(alert.Severity),
		Reason:    alert.Reason,
		RecordIDs: ids,
		ClusterID: alert.ClusterID,
		DedupKey:  alert.DedupKey,
	}

	if _, err := r.alertRef(alert.DedupKey).Create(ctx, doc); err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return goerr.Wrap(ErrDuplicate, "alert already raised", goerr.V("dedup_key", alert.DedupKey))
		}
		return goerr.Wrap(err, "failed to create alert", goerr.V("id", alert.ID))
	}
	return nil
}

func (r *alertRepository) Exists(ctx context.Context, dedupKey string) (bool, error) {
	if _, err := r.alertRef(dedupKey).Get(ctx); err != nil {
		if status.Code(err) == codes.NotFound {
			return false, nil
		}
		return false, goerr.Wrap(err, "failed to get alert", goerr.V("dedup_key", dedupKey))
	}
	return true, nil
}

func (r *alertRepository) List(ctx context.Context, offset, limit int) ([]*model.Alert, error) {
	q := r.alertsCollection().
		OrderBy("created_at", firestore.Desc).
		OrderBy("id", firestore.Desc).
		Offset(max(offset, 0))
	if limit > 0 {
		q = q.Limit(limit)
	}

	iter := q.Documents(ctx)
	defer iter.Stop()

	alerts := []*model.Alert{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate alerts")
		}

		var d alertDocument
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal alert", goerr.V("doc", doc.Ref.ID))
		}

		ids := make([]model.RecordID, len(d.RecordIDs))
		for i, id := range d.RecordIDs {
			ids[i] = model.RecordID(id)
		}
		alerts = append(alerts, &model.Alert{
			ID:        model.AlertID(d.ID),
			CreatedAt: d.CreatedAt,
			Rule:      types.AlertRule(d.Rule),
			Severity:  types.Severity(d.Severity),
			Reason:    d.Reason,
			RecordIDs: ids,
			ClusterID: d.ClusterID,
			DedupKey:  d.DedupKey,
		})
	}
	return alerts, nil
}
