package model

import (
	"cmp"
	"crypto/sha256"
	"encoding/hex"
	"maps"
	"slices"
	"strconv"
	"time"

	"github.com/secmon-lab/osnit/pkg/domain/types"
)

// RecordID is assigned by the repository at insertion and increases monotonically
type RecordID int64

func (id RecordID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseRecordID parses the decimal form used in URLs
func ParseRecordID(s string) (RecordID, error) {
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return RecordID(v), nil
}

// GeoPoint is a resolved coordinate. A record either has both latitude and
// longitude or no point at all.
type GeoPoint struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Candidate is a raw item handed over by a collector before deduplication
type Candidate struct {
	Source   string
	Content  string
	URL      string
	Metadata map[string]any
}

// Record is a single deduplicated report and its enrichment output
type Record struct {
	ID          RecordID       `json:"id"`
	Source      string         `json:"source"`
	Content     string         `json:"content"`
	ContentHash string         `json:"content_hash"`
	URL         string         `json:"url,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	CollectedAt time.Time      `json:"collected_at"`

	Processed    bool           `json:"processed"`
	IncidentType string         `json:"incident_type,omitempty"`
	Severity     types.Severity `json:"severity,omitempty"`
	Confidence   float64        `json:"confidence"`
	Entities     Entities       `json:"entities"`
	Locations    []string       `json:"locations,omitempty"`
	Geo          *GeoPoint      `json:"geo,omitempty"`
	Country      string         `json:"country,omitempty"`
	State        string         `json:"state,omitempty"`
	Summary      string         `json:"summary,omitempty"`
	RiskScore    float64        `json:"risk_score"`
	Embedding    []float32      `json:"-"`
	ClusterID    *int64         `json:"cluster_id,omitempty"`
	EnrichedAt   *time.Time     `json:"enriched_at,omitempty"`

	FailureCount int    `json:"failure_count,omitempty"`
	Flagged      bool   `json:"flagged,omitempty"`
	LastError    string `json:"last_error,omitempty"`
}

// HasEmbedding reports whether the record carries a usable vector
func (r *Record) HasEmbedding() bool {
	return len(r.Embedding) > 0
}

// Copy returns a deep copy so that repositories never share mutable state with callers
func (r *Record) Copy() *Record {
	if r == nil {
		return nil
	}
	c := *r
	c.Metadata = maps.Clone(r.Metadata)
	c.Entities = Entities{
		Persons:       slices.Clone(r.Entities.Persons),
		Organizations: slices.Clone(r.Entities.Organizations),
		Locations:     slices.Clone(r.Entities.Locations),
	}
	c.Locations = slices.Clone(r.Locations)
	c.Embedding = slices.Clone(r.Embedding)
	if r.Geo != nil {
		g := *r.Geo
		c.Geo = &g
	}
	if r.ClusterID != nil {
		v := *r.ClusterID
		c.ClusterID = &v
	}
	if r.EnrichedAt != nil {
		v := *r.EnrichedAt
		c.EnrichedAt = &v
	}
	return &c
}

// ContentHash returns the lowercase hex SHA-256 of the exact content bytes
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// NewRecord builds an unprocessed record from a candidate
func NewRecord(c *Candidate, now time.Time) *Record {
	return &Record{
		Source:      c.Source,
		Content:     c.Content,
		ContentHash: ContentHash(c.Content),
		URL:         c.URL,
		Metadata:    maps.Clone(c.Metadata),
		CollectedAt: now,
	}
}

// ClusterSummary is the read-side projection of a cluster
type ClusterSummary struct {
	ClusterID int64 `json:"cluster_id"`
	Count     int   `json:"count"`
}

// Int64Ptr is a helper for optional cluster ids
func Int64Ptr(v int64) *int64 {
	return &v
}

// SortClusterSummaries orders summaries by count descending, ties by cluster id ascending
func SortClusterSummaries(s []*ClusterSummary) {
	slices.SortFunc(s, func(a, b *ClusterSummary) int {
		if c := cmp.Compare(b.Count, a.Count); c != 0 {
			return c
		}
		return cmp.Compare(a.ClusterID, b.ClusterID)
	})
}
