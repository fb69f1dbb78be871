package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"math"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/domain/types"
)

const recordColumns = `id, source, content, content_hash, url, metadata, collected_at,
	processed, incident_type, severity, confidence, entities, locations, latitude, longitude,
	risk_score, embedding, cluster_id, enriched_at, failure_count, flagged, last_error,
	country, state, summary`

type recordRepository struct {
	db *sql.DB
}

type rowScanner interface {
	Scan(dest ...any) error
}

func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, x := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(x))
	}
	return buf
}

func decodeEmbedding(b []byte) []float32 {
	if len(b) == 0 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func nullTime(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.UnixNano(), Valid: true}
}

func nullInt64(v *int64) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *v, Valid: true}
}

func scanRecord(row rowScanner) (*model.Record, error) {
	var (
		rec         model.Record
		metadata    string
		collectedAt int64
		severity    string
		entities    string
		locations   string
		lat, lon    sql.NullFloat64
		embedding   []byte
		clusterID   sql.NullInt64
		enrichedAt  sql.NullInt64
	)

	if err := row.Scan(
		&rec.ID, &rec.Source, &rec.Content, &rec.ContentHash, &rec.URL, &metadata, &collectedAt,
		&rec.Processed, &rec.IncidentType, &severity, &rec.Confidence, &entities, &locations, &lat, &lon,
		&rec.RiskScore, &embedding, &clusterID, &enrichedAt, &rec.FailureCount, &rec.Flagged, &rec.LastError,
		&rec.Country, &rec.State, &rec.Summary,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(metadata), &rec.Metadata); err != nil {
		return nil, goerr.Wrap(err, "failed to decode metadata", goerr.V("id", rec.ID))
	}
	if len(rec.Metadata) == 0 {
		rec.Metadata = nil
	}
	if err := json.Unmarshal([]byte(entities), &rec.Entities); err != nil {
		return nil, goerr.Wrap(err, "failed to decode entities", goerr.V("id", rec.ID))
	}
	if err := json.Unmarshal([]byte(locations), &rec.Locations); err != nil {
		return nil, goerr.Wrap(err, "failed to decode locations", goerr.V("id", rec.ID))
	}
	if len(rec.Locations) == 0 {
		rec.Locations = nil
	}

	rec.CollectedAt = time.Unix(0, collectedAt).UTC()
	rec.Severity = types.Severity(severity)
	if lat.Valid && lon.Valid {
		rec.Geo = &model.GeoPoint{Latitude: lat.Float64, Longitude: lon.Float64}
	}
	rec.Embedding = decodeEmbedding(embedding)
	if clusterID.Valid {
		rec.ClusterID = model.Int64Ptr(clusterID.Int64)
	}
	if enrichedAt.Valid {
		t := time.Unix(0, enrichedAt.Int64).UTC()
		rec.EnrichedAt = &t
	}

	return &rec, nil
}

func (r *recordRepository) queryRecords(ctx context.Context, query string, args ...any) ([]*model.Record, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query records")
	}
	defer rows.Close()

	var records []*model.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to scan record")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate records")
	}
	return records, nil
}

func (r *recordRepository) Create(ctx context.Context, record *model.Record) (*model.Record, error) {
	metadata, err := json.Marshal(record.Metadata)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to encode metadata")
	}
	if record.Metadata == nil {
		metadata = []byte("{}")
	}

	collectedAt := record.CollectedAt
	if collectedAt.IsZero() {
		collectedAt = time.Now().UTC()
	}

	// The unique constraint on content_hash decides races between concurrent ingesters
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO records (source, content, content_hash, url, metadata, collected_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(content_hash) DO NOTHING`,
		record.Source, record.Content, record.ContentHash, record.URL, string(metadata), collectedAt.UnixNano(),
	)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to insert record", goerr.V("hash", record.ContentHash))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get affected rows")
	}
	if affected == 0 {
		return nil, goerr.Wrap(ErrDuplicate, "record with same content hash exists", goerr.V("hash", record.ContentHash))
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get inserted id")
	}

	return r.Get(ctx, model.RecordID(id))
}

func (r *recordRepository) Get(ctx context.Context, id model.RecordID) (*model.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(ErrNotFound, "record not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get record", goerr.V("id", id))
	}
	return rec, nil
}

func (r *recordRepository) GetByHash(ctx context.Context, hash string) (*model.Record, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM records WHERE content_hash = ?`, hash)
	rec, err := scanRecord(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, goerr.Wrap(ErrNotFound, "record not found", goerr.V("hash", hash))
		}
		return nil, goerr.Wrap(err, "failed to get record", goerr.V("hash", hash))
	}
	return rec, nil
}

func (r *recordRepository) Update(ctx context.Context, record *model.Record) error {
	entities, err := json.Marshal(record.Entities)
	if err != nil {
		return goerr.Wrap(err, "failed to encode entities", goerr.V("id", record.ID))
	}
	locations, err := json.Marshal(record.Locations)
	if err != nil {
		return goerr.Wrap(err, "failed to encode locations", goerr.V("id", record.ID))
	}
	if record.Locations == nil {
		locations = []byte("[]")
	}

	var lat, lon sql.NullFloat64
	if record.Geo != nil {
		lat = sql.NullFloat64{Float64: record.Geo.Latitude, Valid: true}
		lon = sql.NullFloat64{Float64: record.Geo.Longitude, Valid: true}
	}

	res, err := r.db.ExecContext(ctx, `
		UPDATE records SET
			processed = ?, incident_type = ?, severity = ?, confidence = ?, entities = ?, locations = ?,
			latitude = ?, longitude = ?, risk_score = ?, embedding = ?, enriched_at = ?,
			failure_count = ?, flagged = ?, last_error = ?, country = ?, state = ?, summary = ?
		WHERE id = ?`,
		record.Processed, record.IncidentType, string(record.Severity), record.Confidence, string(entities), string(locations),
		lat, lon, record.RiskScore, encodeEmbedding(record.Embedding), nullTime(record.EnrichedAt),
		record.FailureCount, record.Flagged, record.LastError, record.Country, record.State, record.Summary,
		record.ID,
	)
	if err != nil {
		return goerr.Wrap(err, "failed to update record", goerr.V("id", record.ID))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return goerr.Wrap(err, "failed to get affected rows", goerr.V("id", record.ID))
	}
	if affected == 0 {
		return goerr.Wrap(ErrNotFound, "record not found", goerr.V("id", record.ID))
	}
	return nil
}

func (r *recordRepository) ListUnprocessed(ctx context.Context, limit int) ([]*model.Record, error) {
	if limit <= 0 {
		limit = -1
	}
	return r.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM records WHERE processed = 0 AND flagged = 0 ORDER BY id LIMIT ?`, limit)
}

func (r *recordRepository) ListProcessed(ctx context.Context) ([]*model.Record, error) {
	return r.queryRecords(ctx, `SELECT `+recordColumns+` FROM records WHERE processed = 1 ORDER BY id`)
}

func (r *recordRepository) ListTopRisk(ctx context.Context, limit int) ([]*model.Record, error) {
	if limit <= 0 {
		limit = -1
	}
	return r.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM records WHERE processed = 1 ORDER BY risk_score DESC, id LIMIT ?`, limit)
}

func (r *recordRepository) ListByCluster(ctx context.Context, clusterID int64) ([]*model.Record, error) {
	return r.queryRecords(ctx,
		`SELECT `+recordColumns+` FROM records WHERE cluster_id = ? ORDER BY id`, clusterID)
}

func (r *recordRepository) ListClusters(ctx context.Context) ([]*model.ClusterSummary, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT cluster_id, COUNT(*) AS n FROM records
		WHERE cluster_id IS NOT NULL
		GROUP BY cluster_id
		ORDER BY n DESC, cluster_id`)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query clusters")
	}
	defer rows.Close()

	summaries := []*model.ClusterSummary{}
	for rows.Next() {
		var s model.ClusterSummary
		if err := rows.Scan(&s.ClusterID, &s.Count); err != nil {
			return nil, goerr.Wrap(err, "failed to scan cluster summary")
		}
		summaries = append(summaries, &s)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate clusters")
	}
	return summaries, nil
}

func (r *recordRepository) UpdateClusterID(ctx context.Context, id model.RecordID, clusterID *int64) error {
	res, err := r.db.ExecContext(ctx, `UPDATE records SET cluster_id = ? WHERE id = ?`, nullInt64(clusterID), id)
	if err != nil {
		return goerr.Wrap(err, "failed to update cluster id", goerr.V("id", id))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return goerr.Wrap(err, "failed to get affected rows", goerr.V("id", id))
	}
	if affected == 0 {
		return goerr.Wrap(ErrNotFound, "record not found", goerr.V("id", id))
	}
	return nil
}
