package usecase_test

import (
	"context"
	"testing"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/osnit/pkg/domain/model"
	"github.com/secmon-lab/osnit/pkg/repository/memory"
	"github.com/secmon-lab/osnit/pkg/usecase"
)

func TestFindSimilar(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()
	uc := usecase.New(repo)

	query := seedProcessed(t, repo, "query", func(r *model.Record) { r.Embedding = vectorAt(0) })
	near := seedProcessed(t, repo, "near", func(r *model.Record) { r.Embedding = vectorAt(10) })
	twinA := seedProcessed(t, repo, "twin-a", func(r *model.Record) { r.Embedding = vectorAt(45) })
	twinB := seedProcessed(t, repo, "twin-b", func(r *model.Record) { r.Embedding = vectorAt(45) })
	far := seedProcessed(t, repo, "far", func(r *model.Record) { r.Embedding = vectorAt(180) })
	seedProcessed(t, repo, "blank", nil)
	bare := seedProcessed(t, repo, "bare", nil)

	t.Run("orders by score then id and excludes the query", func(t *testing.T) {
		got, err := uc.Similarity.FindSimilar(ctx, query.ID, 10)
		gt.NoError(t, err).Required()
		gt.A(t, got).Length(4).Required()

		ids := make([]model.RecordID, len(got))
		for i, s := range got {
			ids[i] = s.Record.ID
		}
		gt.V(t, ids).Equal([]model.RecordID{near.ID, twinA.ID, twinB.ID, far.ID})
		gt.V(t, got[1].Score).Equal(got[2].Score)
		gt.B(t, got[3].Score < 0).True()
	})

	t.Run("truncates to top k", func(t *testing.T) {
		got, err := uc.Similarity.FindSimilar(ctx, query.ID, 2)
		gt.NoError(t, err).Required()
		gt.A(t, got).Length(2)
	})

	t.Run("zero k is empty", func(t *testing.T) {
		got, err := uc.Similarity.FindSimilar(ctx, query.ID, 0)
		gt.NoError(t, err).Required()
		gt.A(t, got).Length(0)
	})

	t.Run("unknown record", func(t *testing.T) {
		_, err := uc.Similarity.FindSimilar(ctx, 9999, 5)
		gt.Error(t, err).Is(usecase.ErrRecordNotFound)
	})

	t.Run("record without embedding", func(t *testing.T) {
		_, err := uc.Similarity.FindSimilar(ctx, bare.ID, 5)
		gt.Error(t, err).Is(usecase.ErrNoEmbedding)
	})
}
