package usecase_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/domain/model/config"
)

func testConfig() *config.PipelineConfig {
	cfg := config.DefaultPipelineConfig()
	cfg.CapabilityTimeout = time.Second
	cfg.CapabilityBackoff = time.Millisecond
	return cfg
}

func fixedClock() func() time.Time {
	t0 := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t0 }
}

// vectorAt returns a unit vector in the plane at the given angle in degrees
func vectorAt(deg float64) []float32 {
	rad := deg * math.Pi / 180
	return []float32{float32(math.Cos(rad)), float32(math.Sin(rad))}
}

// seedProcessed inserts a record and stores it as processed with the given fields
func seedProcessed(t *testing.T, repo interfaces.Repository, content string, mutate func(r *model.Record)) *model.Record {
	t.Helper()
	ctx := context.Background()

	rec, err := repo.Record().Create(ctx, model.NewRecord(&model.Candidate{Source: "rss", Content: content}, time.Now().UTC()))
	gt.NoError(t, err).Required()

	rec.Processed = true
	now := time.Now().UTC()
	rec.EnrichedAt = &now
	if mutate != nil {
		mutate(rec)
	}
	gt.NoError(t, repo.Record().Update(ctx, rec)).Required()

	if rec.ClusterID != nil {
		gt.NoError(t, repo.Record().UpdateClusterID(ctx, rec.ID, rec.ClusterID)).Required()
	}
	return rec
}
