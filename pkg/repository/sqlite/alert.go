package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/domain/types"
)

type alertRepository struct {
	db *sql.DB
}

func (r *alertRepository) Create(ctx context.Context, alert *model.Alert) error {
	recordIDs, err := json.Marshal(alert.RecordIDs)
	if err != nil {
		return goerr.Wrap(err, "failed to encode record ids", goerr.V("id", alert.ID))
	}

	res, err := r.db.ExecContext(ctx, `
		INSERT INTO alerts (id, created_at, rule, severity, reason, record_ids, cluster_id, dedup_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(dedup_key) DO NOTHING`,
		string(alert.ID), alert.CreatedAt.UnixNano(), string(alert.Rule), string(alert.Severity),
		alert.Reason, string(recordIDs), nullInt64(alert.ClusterID), alert.DedupKey,
	)
	if err != nil {
		return goerr.Wrap(err, "failed to insert alert", goerr.V("id", alert.ID))
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return goerr.Wrap(err, "failed to get affected rows")
	}
	if affected == 0 {
		return goerr.Wrap(ErrDuplicate, "alert already raised", goerr.V("dedup_key", alert.DedupKey))
	}
	return nil
}

func (r *alertRepository) Exists(ctx context.Context, dedupKey string) (bool, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM alerts WHERE dedup_key = ?`, dedupKey).Scan(&n); err != nil {
		return false, goerr.Wrap(err, "failed to check alert", goerr.V("dedup_key", dedupKey))
	}
	return n > 0, nil
}

func (r *alertRepository) List(ctx context.Context, offset, limit int) ([]*model.Alert, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, created_at, rule, severity, reason, record_ids, cluster_id, dedup_key
		FROM alerts ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`, limit, max(offset, 0))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to query alerts")
	}
	defer rows.Close()

	alerts := []*model.Alert{}
	for rows.Next() {
		var (
			a         model.Alert
			id        string
			createdAt int64
			rule      string
			severity  string
			recordIDs string
			clusterID sql.NullInt64
		)
		if err := rows.Scan(&id, &createdAt, &rule, &severity, &a.Reason, &recordIDs, &clusterID, &a.DedupKey); err != nil {
			return nil, goerr.Wrap(err, "failed to scan alert")
		}
		if err := json.Unmarshal([]byte(recordIDs), &a.RecordIDs); err != nil {
			return nil, goerr.Wrap(err, "failed to decode record ids", goerr.V("id", id))
		}
		a.ID = model.AlertID(id)
		a.CreatedAt = time.Unix(0, createdAt).UTC()
		a.Rule = types.AlertRule(rule)
		a.Severity = types.Severity(severity)
		if clusterID.Valid {
			a.ClusterID = model.Int64Ptr(clusterID.Int64)
		}
		alerts = append(alerts, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, goerr.Wrap(err, "failed to iterate alerts")
	}
	return alerts, nil
}
