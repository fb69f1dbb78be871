package usecase_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/domain/types"
	"github.com/secmon-lab/osnit/pkg/repository/memory"
	"github.com/secmon-lab/osnit/pkg/usecase"
)

func TestQueryTopRisk(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := usecase.New(repo)

	for i := 0; i < 15; i++ {
		seedProcessed(t, repo, strings.Repeat("r", i+1), func(r *model.Record) { r.RiskScore = float64(i) / 10 })
	}

	t.Run("default limit", func(t *testing.T) {
		got, err := uc.Query.TopRisk(ctx, 0)
		gt.NoError(t, err).Required()
		gt.A(t, got).Length(usecase.DefaultTopRiskLimit).Required()
		gt.V(t, got[0].RiskScore).Equal(1.4)
		for i := 1; i < len(got); i++ {
			gt.B(t, got[i-1].RiskScore >= got[i].RiskScore).True()
		}
	})

	t.Run("explicit limit", func(t *testing.T) {
		got, err := uc.Query.TopRisk(ctx, 3)
		gt.NoError(t, err).Required()
		gt.A(t, got).Length(3)
	})
}

func TestQueryListAlerts(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := usecase.New(repo)

	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		rec := &model.Record{ID: model.RecordID(i + 1), Severity: types.SeverityHigh, RiskScore: 3}
		gt.NoError(t, repo.Alert().Create(ctx, model.NewHighRiskAlert(rec, 2, base.Add(time.Duration(i)*time.Minute)))).Required()
	}

	first, err := uc.Query.ListAlerts(ctx, 0, 0)
	gt.NoError(t, err).Required()
	gt.A(t, first).Length(usecase.DefaultAlertLimit).Required()
	gt.V(t, first[0].RecordIDs).Equal([]model.RecordID{25})

	rest, err := uc.Query.ListAlerts(ctx, 20, 20)
	gt.NoError(t, err).Required()
	gt.A(t, rest).Length(5).Required()
	gt.V(t, rest[4].RecordIDs).Equal([]model.RecordID{1})
}

func TestQueryClusterMembers(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := usecase.New(repo)

	a := seedProcessed(t, repo, "a", func(r *model.Record) { r.ClusterID = model.Int64Ptr(3) })
	seedProcessed(t, repo, "b", func(r *model.Record) { r.ClusterID = model.Int64Ptr(4) })
	c := seedProcessed(t, repo, "c", func(r *model.Record) { r.ClusterID = model.Int64Ptr(3) })

	got, err := uc.Query.ClusterMembers(ctx, 3)
	gt.NoError(t, err).Required()
	gt.A(t, got).Length(2).Required()
	gt.V(t, got[0].ID).Equal(a.ID)
	gt.V(t, got[1].ID).Equal(c.ID)

	none, err := uc.Query.ClusterMembers(ctx, 99)
	gt.NoError(t, err).Required()
	gt.A(t, none).Length(0)
}

func TestPreview(t *testing.T) {
	gt.V(t, usecase.Preview("short")).Equal("short")

	long := strings.Repeat("あ", usecase.ClusterPreviewLength+10)
	got := usecase.Preview(long)
	gt.V(t, len([]rune(got))).Equal(usecase.ClusterPreviewLength)
}
