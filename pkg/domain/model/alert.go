package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/osnit/pkg/domain/types"
)

// AlertID is a time-ordered UUID (v7)
type AlertID string

func NewAlertID() AlertID {
	return AlertID(uuid.Must(uuid.NewV7()).String())
}

func (id AlertID) String() string {
	return string(id)
}

// Alert is an immutable notification raised by a threshold rule
type Alert struct {
	ID        AlertID         `json:"id"`
	CreatedAt time.Time       `json:"created_at"`
	Rule      types.AlertRule `json:"rule"`
	Severity  types.Severity  `json:"severity"`
	Reason    string          `json:"reason"`
	RecordIDs []RecordID      `json:"record_ids"`
	ClusterID *int64          `json:"cluster_id,omitempty"`
	// DedupKey is unique across all alerts; it is built from the rule and its subject
	DedupKey string `json:"dedup_key"`
}

// HighRiskDedupKey is the dedup key of the high-risk alert for a record
func HighRiskDedupKey(id RecordID) string {
	return fmt.Sprintf("%s:record:%d", types.AlertRuleHighRisk, id)
}

// ClusterSurgeDedupKey is the dedup key of the surge alert for a cluster
func ClusterSurgeDedupKey(clusterID int64) string {
	return fmt.Sprintf("%s:cluster:%d", types.AlertRuleClusterSurge, clusterID)
}

// NewHighRiskAlert builds the alert for a record whose risk crossed the threshold
func NewHighRiskAlert(r *Record, threshold float64, now time.Time) *Alert {
	return &Alert{
		ID:        NewAlertID(),
		CreatedAt: now,
		Rule:      types.AlertRuleHighRisk,
		Severity:  r.Severity,
		Reason: fmt.Sprintf("record %d from %s scored risk %.3f (threshold %.3f): %s",
			r.ID, r.Source, r.RiskScore, threshold, r.IncidentType),
		RecordIDs: []RecordID{r.ID},
		DedupKey:  HighRiskDedupKey(r.ID),
	}
}

// NewClusterSurgeAlert builds the alert for a cluster whose size crossed the threshold.
// Severity is the highest member severity.
func NewClusterSurgeAlert(clusterID int64, members []*Record, threshold int, now time.Time) *Alert {
	sev := types.SeverityUnknown
	ids := make([]RecordID, len(members))
	for i, m := range members {
		sev = sev.Max(m.Severity)
		ids[i] = m.ID
	}

	return &Alert{
		ID:        NewAlertID(),
		CreatedAt: now,
		Rule:      types.AlertRuleClusterSurge,
		Severity:  sev,
		Reason: fmt.Sprintf("cluster %d has %d related records (threshold %d)",
			clusterID, len(members), threshold),
		RecordIDs: ids,
		ClusterID: Int64Ptr(clusterID),
		DedupKey:  ClusterSurgeDedupKey(clusterID),
	}
}
