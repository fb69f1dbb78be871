package usecase_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/domain/types"
	"github.com/secmon-lab/osnit/pkg/repository/memory"
	"github.com/secmon-lab/osnit/pkg/usecase"
)

func TestAlertGenerate(t *testing.T) {
	ctx := context.Background()

	t.Run("high risk record raises exactly one alert", func(t *testing.T) {
		repo := memory.New()
		notifier := &fakeNotifier{}
		uc := usecase.New(repo,
			usecase.WithPipelineConfig(testConfig()),
			usecase.WithAlertNotifier(notifier),
			usecase.WithClock(fixedClock()),
		)

		risky := seedProcessed(t, repo, "risky", func(r *model.Record) {
			r.RiskScore = 2.5
			r.Severity = types.SeverityHigh
			r.IncidentType = "cyber_attack"
		})
		seedProcessed(t, repo, "calm", func(r *model.Record) {
			r.RiskScore = 0.3
			r.Severity = types.SeverityLow
		})

		result, err := uc.Alert.Generate(ctx)
		gt.NoError(t, err).Required()
		gt.A(t, result.Created).Length(1).Required()

		alert := result.Created[0]
		gt.V(t, alert.Rule).Equal(types.AlertRuleHighRisk)
		gt.V(t, alert.Severity).Equal(types.SeverityHigh)
		gt.V(t, alert.RecordIDs).Equal([]model.RecordID{risky.ID})
		gt.V(t, alert.CreatedAt).Equal(fixedClock()())
		gt.String(t, alert.Reason).Contains("2.500")

		gt.A(t, notifier.alerts).Length(1)

		again, err := uc.Alert.Generate(ctx)
		gt.NoError(t, err).Required()
		gt.A(t, again.Created).Length(0)
		gt.V(t, again.Skipped).Equal(1)
		gt.A(t, notifier.alerts).Length(1)

		listed, err := uc.Query.ListAlerts(ctx, 0, 0)
		gt.NoError(t, err).Required()
		gt.A(t, listed).Length(1)
	})

	t.Run("threshold is inclusive", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo, usecase.WithPipelineConfig(testConfig()))
		seedProcessed(t, repo, "edge", func(r *model.Record) { r.RiskScore = 2.0 })

		result, err := uc.Alert.Generate(ctx)
		gt.NoError(t, err).Required()
		gt.A(t, result.Created).Length(1)
	})

	t.Run("cluster surge is alerted once", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo, usecase.WithPipelineConfig(testConfig()))

		cid := int64(7)
		sevs := []types.Severity{types.SeverityLow, types.SeverityMedium, types.SeverityHigh, types.SeverityLow, types.SeverityLow}
		for i, sev := range sevs {
			seedProcessed(t, repo, string(rune('a'+i)), func(r *model.Record) {
				r.ClusterID = model.Int64Ptr(cid)
				r.Severity = sev
				r.RiskScore = 0.5
			})
		}

		result, err := uc.Alert.Generate(ctx)
		gt.NoError(t, err).Required()
		gt.A(t, result.Created).Length(1).Required()
		surge := result.Created[0]
		gt.V(t, surge.Rule).Equal(types.AlertRuleClusterSurge)
		gt.V(t, surge.Severity).Equal(types.SeverityHigh)
		gt.V(t, *surge.ClusterID).Equal(cid)
		gt.A(t, surge.RecordIDs).Length(5)

		seedProcessed(t, repo, "sixth", func(r *model.Record) {
			r.ClusterID = model.Int64Ptr(cid)
			r.RiskScore = 0.5
		})

		again, err := uc.Alert.Generate(ctx)
		gt.NoError(t, err).Required()
		gt.A(t, again.Created).Length(0)
		gt.V(t, again.Skipped).Equal(1)
	})

	t.Run("small clusters stay quiet", func(t *testing.T) {
		repo := memory.New()
		uc := usecase.New(repo, usecase.WithPipelineConfig(testConfig()))
		for _, c := range []string{"x", "y", "z", "w"} {
			seedProcessed(t, repo, c, func(r *model.Record) { r.ClusterID = model.Int64Ptr(1) })
		}

		result, err := uc.Alert.Generate(ctx)
		gt.NoError(t, err).Required()
		gt.A(t, result.Created).Length(0)
	})

	t.Run("notifier failure does not fail generation", func(t *testing.T) {
		repo := memory.New()
		notifier := &fakeNotifier{err: errModelDown}
		uc := usecase.New(repo, usecase.WithPipelineConfig(testConfig()), usecase.WithAlertNotifier(notifier))
		seedProcessed(t, repo, "risky", func(r *model.Record) { r.RiskScore = 4 })

		result, err := uc.Alert.Generate(ctx)
		gt.NoError(t, err).Required()
		gt.A(t, result.Created).Length(1)

		exists, err := repo.Alert().Exists(ctx, model.HighRiskDedupKey(result.Created[0].RecordIDs[0]))
		gt.NoError(t, err).Required()
		gt.B(t, exists).True()
	})
}
