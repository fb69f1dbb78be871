package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/domain/types"
)

func runAlertRepositoryTest(t *testing.T, newRepo func(t *testing.T) interfaces.Repository) {
	t.Helper()

	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	t.Run("Create and Exists", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		rec := &model.Record{ID: 7, Source: "rss", Severity: types.SeverityHigh, RiskScore: 2.5}
		alert := model.NewHighRiskAlert(rec, 2.0, base)

		exists, err := repo.Alert().Exists(ctx, alert.DedupKey)
		gt.NoError(t, err).Required()
		gt.B(t, exists).False()

		gt.NoError(t, repo.Alert().Create(ctx, alert)).Required()

		exists, err = repo.Alert().Exists(ctx, alert.DedupKey)
		gt.NoError(t, err).Required()
		gt.B(t, exists).True()
	})

	t.Run("Create rejects a duplicate dedup key", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		members := []*model.Record{{ID: 1}, {ID: 2}}
		gt.NoError(t, repo.Alert().Create(ctx, model.NewClusterSurgeAlert(3, members, 2, base))).Required()

		again := model.NewClusterSurgeAlert(3, append(members, &model.Record{ID: 4}), 2, base.Add(time.Minute))
		gt.Error(t, repo.Alert().Create(ctx, again)).Is(interfaces.ErrDuplicate)

		alerts, err := repo.Alert().List(ctx, 0, 10)
		gt.NoError(t, err).Required()
		gt.A(t, alerts).Length(1)
	})

	t.Run("List returns newest first with paging", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		for i := 1; i <= 3; i++ {
			rec := &model.Record{ID: model.RecordID(i), Severity: types.SeverityLow, RiskScore: 2}
			gt.NoError(t, repo.Alert().Create(ctx, model.NewHighRiskAlert(rec, 2.0, base.Add(time.Duration(i)*time.Minute)))).Required()
		}

		all, err := repo.Alert().List(ctx, 0, 10)
		gt.NoError(t, err).Required()
		gt.A(t, all).Length(3).Required()
		gt.V(t, all[0].RecordIDs).Equal([]model.RecordID{3})
		gt.V(t, all[2].RecordIDs).Equal([]model.RecordID{1})
		gt.V(t, all[0].Rule).Equal(types.AlertRuleHighRisk)
		gt.B(t, all[0].CreatedAt.Equal(base.Add(3*time.Minute))).True()

		page, err := repo.Alert().List(ctx, 1, 1)
		gt.NoError(t, err).Required()
		gt.A(t, page).Length(1).Required()
		gt.V(t, page[0].RecordIDs).Equal([]model.RecordID{2})

		empty, err := repo.Alert().List(ctx, 10, 10)
		gt.NoError(t, err).Required()
		gt.A(t, empty).Length(0)
	})

	t.Run("cluster alert keeps cluster id and members", func(t *testing.T) {
		repo := newRepo(t)
		ctx := context.Background()

		members := []*model.Record{{ID: 1, Severity: types.SeverityLow}, {ID: 2, Severity: types.SeverityHigh}}
		gt.NoError(t, repo.Alert().Create(ctx, model.NewClusterSurgeAlert(9, members, 2, base))).Required()

		alerts, err := repo.Alert().List(ctx, 0, 0)
		gt.NoError(t, err).Required()
		gt.A(t, alerts).Length(1).Required()
		gt.V(t, alerts[0].ClusterID).NotNil()
		gt.V(t, *alerts[0].ClusterID).Equal(int64(9))
		gt.V(t, alerts[0].Severity).Equal(types.SeverityHigh)
		gt.V(t, alerts[0].RecordIDs).Equal([]model.RecordID{1, 2})
	})
}

func TestAlertRepository(t *testing.T) {
	for name, newRepo := range backends {
		t.Run(name, func(t *testing.T) {
			runAlertRepositoryTest(t, newRepo)
		})
	}
}
