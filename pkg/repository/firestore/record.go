package firestore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type geoDocument struct {
	Latitude  float64 `firestore:"latitude"`
	Longitude float64 `firestore:"longitude"`
}

// recordDocument is the Firestore representation of model.Record.
// Embedding is stored as firestore.Vector32 so the field can carry a vector index.
type recordDocument struct {
	ID          int64          `firestore:"id"`
	Source      string         `firestore:"source"`
	Content     string         `firestore:"content"`
	ContentHash string         `firestore:"content_hash"`
	URL         string         `firestore:"url"`
	Metadata    map[string]any `firestore:"metadata"`
	CollectedAt time.Time      `firestore:"collected_at"`

	Processed     bool               `firestore:"processed"`
	IncidentType  string             `firestore:"incident_type"`
	Severity      string             `firestore:"severity"`
	Confidence    float64            `firestore:"confidence"`
	Persons       []string           `firestore:"persons"`
	Organizations []string           `firestore:"organizations"`
	EntityPlaces  []string           `firestore:"entity_locations"`
	Locations     []string           `firestore:"locations"`
	Geo           *geoDocument       `firestore:"geo"`
	RiskScore     float64            `firestore:"risk_score"`
	Embedding     firestore.Vector32 `firestore:"embedding,omitempty"`
	ClusterID     *int64             `firestore:"cluster_id"`
	EnrichedAt    *time.Time         `firestore:"enriched_at"`

	FailureCount int    `firestore:"failure_count"`
	Flagged      bool   `firestore:"flagged"`
	LastError    string `firestore:"last_error"`

	Country string `firestore:"country"`
	State   string `firestore:"state"`
	Summary string `firestore:"summary"`
}

func toRecordDocument(r *model.Record) *recordDocument {
	doc := &recordDocument{
		ID:            int64(r.ID),
		Source:        r.Source,
		Content:       r.Content,
		ContentHash:   r.ContentHash,
		URL:           r.URL,
		Metadata:      r.Metadata,
		CollectedAt:   r.CollectedAt,
		Processed:     r.Processed,
		IncidentType:  r.IncidentType,
		Severity:      string(r.Severity),
		Confidence:    r.Confidence,
		Persons:       r.Entities.Persons,
		Organizations: r.Entities.Organizations,
		EntityPlaces:  r.Entities.Locations,
		Locations:     r.Locations,
		RiskScore:     r.RiskScore,
		ClusterID:     r.ClusterID,
		EnrichedAt:    r.EnrichedAt,
		FailureCount:  r.FailureCount,
		Flagged:       r.Flagged,
		LastError:     r.LastError,
		Country:       r.Country,
		State:         r.State,
		Summary:       r.Summary,
	}
	if r.Geo != nil {
		doc.Geo = &geoDocument{Latitude: r.Geo.Latitude, Longitude: r.Geo.Longitude}
	}
	if len(r.Embedding) > 0 {
		doc.Embedding = firestore.Vector32(r.Embedding)
	}
	return doc
}

func fromRecordDocument(d *recordDocument) *model.Record {
	r := &model.Record{
		ID:           model.RecordID(d.ID),
		Source:       d.Source,
		Content:      d.Content,
		ContentHash:  d.ContentHash,
		URL:          d.URL,
		Metadata:     d.Metadata,
		CollectedAt:  d.CollectedAt,
		Processed:    d.Processed,
		IncidentType: d.IncidentType,
		Severity:     types.Severity(d.Severity),
		Confidence:   d.Confidence,
		Entities: model.Entities{
			Persons:       d.Persons,
			Organizations: d.Organizations,
			Locations:     d.EntityPlaces,
		},
		Locations:    d.Locations,
		RiskScore:    d.RiskScore,
		ClusterID:    d.ClusterID,
		EnrichedAt:   d.EnrichedAt,
		FailureCount: d.FailureCount,
		Flagged:      d.Flagged,
		LastError:    d.LastError,
		Country:      d.Country,
		State:        d.State,
		Summary:      d.Summary,
	}
	if d.Geo != nil {
		r.Geo = &model.GeoPoint{Latitude: d.Geo.Latitude, Longitude: d.Geo.Longitude}
	}
	if len(d.Embedding) > 0 {
		r.Embedding = []float32(d.Embedding)
	}
	return r
}

type recordRepository struct {
	client           *firestore.Client
	collectionPrefix string
}

func newRecordRepository(client *firestore.Client) *recordRepository {
	return &recordRepository{
		client:           client,
		collectionPrefix: "",
	}
}

func (r *recordRepository) recordsCollection() *firestore.CollectionRef {
	return r.client.Collection(prefixed(r.collectionPrefix, "records"))
}

// hashesCollection holds one guard document per content hash, keyed by the hash
func (r *recordRepository) hashesCollection() *firestore.CollectionRef {
	return r.client.Collection(prefixed(r.collectionPrefix, "record_hashes"))
}

func (r *recordRepository) counterRef() *firestore.DocumentRef {
	return r.client.Collection(prefixed(r.collectionPrefix, "counters")).Doc("record_counter")
}

func (r *recordRepository) recordRef(id model.RecordID) *firestore.DocumentRef {
	return r.recordsCollection().Doc(fmt.Sprintf("%d", id))
}

func (r *recordRepository) Create(ctx context.Context, record *model.Record) (*model.Record, error) {
	var created *model.Record

	// Hash guard, id counter and record are written in one transaction so that two
	// ingesters racing on the same content cannot both insert.
	err := r.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		hashRef := r.hashesCollection().Doc(record.ContentHash)
		if _, err := tx.Get(hashRef); err == nil {
			return goerr.Wrap(ErrDuplicate, "record with same content hash exists", goerr.V("hash", record.ContentHash))
		} else if status.Code(err) != codes.NotFound {
			return goerr.Wrap(err, "failed to check content hash", goerr.V("hash", record.ContentHash))
		}

		counterRef := r.counterRef()
		var nextID int64 = 1
		counter, err := tx.Get(counterRef)
		switch {
		case err == nil:
			v, err := counter.DataAt("value")
			if err != nil {
				return goerr.Wrap(err, "failed to get counter value")
			}
			current, ok := v.(int64)
			if !ok {
				return goerr.New("unexpected counter value type", goerr.V("value", v))
			}
			nextID = current + 1
		case status.Code(err) == codes.NotFound:
		default:
			return goerr.Wrap(err, "failed to get counter")
		}

		c := record.Copy()
		c.ID = model.RecordID(nextID)
		if c.CollectedAt.IsZero() {
			c.CollectedAt = time.Now().UTC()
		}

		if err := tx.Set(counterRef, map[string]any{"value": nextID}); err != nil {
			return goerr.Wrap(err, "failed to update counter")
		}
		if err := tx.Create(hashRef, map[string]any{"id": nextID}); err != nil {
			return goerr.Wrap(err, "failed to create hash guard")
		}
		if err := tx.Create(r.recordRef(c.ID), toRecordDocument(c)); err != nil {
			return goerr.Wrap(err, "failed to create record", goerr.V("id", c.ID))
		}

		created = c
		return nil
	})
	if err != nil {
		if status.Code(err) == codes.AlreadyExists {
			return nil, goerr.Wrap(ErrDuplicate, "record with same content hash exists", goerr.V("hash", record.ContentHash))
		}
		return nil, goerr.Wrap(err, "failed to create record")
	}

	return created, nil
}

func (r *recordRepository) Get(ctx context.Context, id model.RecordID) (*model.Record, error) {
	doc, err := r.recordRef(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "record not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get record", goerr.V("id", id))
	}

	var d recordDocument
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal record", goerr.V("id", id))
	}
	return fromRecordDocument(&d), nil
}

func (r *recordRepository) GetByHash(ctx context.Context, hash string) (*model.Record, error) {
	guard, err := r.hashesCollection().Doc(hash).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(ErrNotFound, "record not found", goerr.V("hash", hash))
		}
		return nil, goerr.Wrap(err, "failed to get hash guard", goerr.V("hash", hash))
	}

	v, err := guard.DataAt("id")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read hash guard", goerr.V("hash", hash))
	}
	id, ok := v.(int64)
	if !ok {
		return nil, goerr.New("unexpected hash guard id type", goerr.V("hash", hash), goerr.V("value", v))
	}
	return r.Get(ctx, model.RecordID(id))
}

func (r *recordRepository) Update(ctx context.Context, record *model.Record) error {
	d := toRecordDocument(record)

	var embedding any
	if len(d.Embedding) > 0 {
		embedding = d.Embedding
	}
	var geo any
	if d.Geo != nil {
		geo = d.Geo
	}
	var enrichedAt any
	if d.EnrichedAt != nil {
		enrichedAt = *d.EnrichedAt
	}

	_, err := r.recordRef(record.ID).Update(ctx, []firestore.Update{
		{Path: "processed", Value: d.Processed},
		{Path: "incident_type", Value: d.IncidentType},
		{Path: "severity", Value: d.Severity},
		{Path: "confidence", Value: d.Confidence},
		{Path: "persons", Value: d.Persons},
		{Path: "organizations", Value: d.Organizations},
		{Path: "entity_locations", Value: d.EntityPlaces},
		{Path: "locations", Value: d.Locations},
		{Path: "geo", Value: geo},
		{Path: "risk_score", Value: d.RiskScore},
		{Path: "embedding", Value: embedding},
		{Path: "enriched_at", Value: enrichedAt},
		{Path: "failure_count", Value: d.FailureCount},
		{Path: "flagged", Value: d.Flagged},
		{Path: "last_error", Value: d.LastError},
		{Path: "country", Value: d.Country},
		{Path: "state", Value: d.State},
		{Path: "summary", Value: d.Summary},
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "record not found", goerr.V("id", record.ID))
		}
		return goerr.Wrap(err, "failed to update record", goerr.V("id", record.ID))
	}
	return nil
}

func (r *recordRepository) queryRecords(ctx context.Context, q firestore.Query) ([]*model.Record, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	records := []*model.Record{}
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate records")
		}

		var d recordDocument
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal record", goerr.V("doc", doc.Ref.ID))
		}
		records = append(records, fromRecordDocument(&d))
	}
	return records, nil
}

func (r *recordRepository) ListUnprocessed(ctx context.Context, limit int) ([]*model.Record, error) {
	q := r.recordsCollection().
		Where("processed", "==", false).
		Where("flagged", "==", false).
		OrderBy("id", firestore.Asc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return r.queryRecords(ctx, q)
}

func (r *recordRepository) ListProcessed(ctx context.Context) ([]*model.Record, error) {
	q := r.recordsCollection().
		Where("processed", "==", true).
		OrderBy("id", firestore.Asc)
	return r.queryRecords(ctx, q)
}

func (r *recordRepository) ListTopRisk(ctx context.Context, limit int) ([]*model.Record, error) {
	q := r.recordsCollection().
		Where("processed", "==", true).
		OrderBy("risk_score", firestore.Desc).
		OrderBy("id", firestore.Asc)
	if limit > 0 {
		q = q.Limit(limit)
	}
	return r.queryRecords(ctx, q)
}

func (r *recordRepository) ListByCluster(ctx context.Context, clusterID int64) ([]*model.Record, error) {
	q := r.recordsCollection().
		Where("cluster_id", "==", clusterID).
		OrderBy("id", firestore.Asc)
	return r.queryRecords(ctx, q)
}

// ListClusters counts members client-side; Firestore has no grouped aggregation
func (r *recordRepository) ListClusters(ctx context.Context) ([]*model.ClusterSummary, error) {
	iter := r.recordsCollection().
		Where("cluster_id", "!=", nil).
		Select("cluster_id").
		Documents(ctx)
	defer iter.Stop()

	counts := make(map[int64]int)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate cluster ids")
		}

		v, err := doc.DataAt("cluster_id")
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read cluster id", goerr.V("doc", doc.Ref.ID))
		}
		if id, ok := v.(int64); ok {
			counts[id]++
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
	var v any
	if clusterID != nil {
		v = *clusterID
	}

	if _, err := r.recordRef(id).Update(ctx, []firestore.Update{
		{Path: "cluster_id", Value: v},
	}); err != nil {
		if status.Code(err) == codes.NotFound {
			return goerr.Wrap(ErrNotFound, "record not found", goerr.V("id", id))
		}
		return goerr.Wrap(err, "failed to update cluster id", goerr.V("id", id))
	}
	return nil
}
