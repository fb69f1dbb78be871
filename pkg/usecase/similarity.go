package usecase

import (
	"cmp"
	"context"
	"errors"
	"slices"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/osnit/pkg/domain/interfaces"
	"github.com/secmon-lab/osnit/pkg/domain/model"
)

// SimilarityUseCase answers nearest-neighbor queries over record embeddings
type SimilarityUseCase struct {
	repo interfaces.Repository
}

func NewSimilarityUseCase(repo interfaces.Repository) *SimilarityUseCase {
	return &SimilarityUseCase{repo: repo}
}

// SimilarRecord is a neighbor of the query record with its cosine similarity
type SimilarRecord struct {
	Record *model.Record
	Score  float64
}

// FindSimilar returns up to topK processed records most similar to the given one,
// by score descending then ID ascending. The query record itself is excluded.
func (uc *SimilarityUseCase) FindSimilar(ctx context.Context, id model.RecordID, topK int) ([]*SimilarRecord, error) {
	query, err := uc.repo.Record().Get(ctx, id)
	if err != nil {
		if errors.Is(err, interfaces.ErrNotFound) {
			return nil, goerr.Wrap(ErrRecordNotFound, "query record not found", goerr.V(RecordIDKey, id))
		}
		return nil, goerr.Wrap(err, "failed to get query record", goerr.V(RecordIDKey, id))
	}
	if !query.HasEmbedding() {
		return nil, goerr.Wrap(ErrNoEmbedding, "query record has no embedding", goerr.V(RecordIDKey, id))
	}

	if topK <= 0 {
		return []*SimilarRecord{}, nil
	}

	records, err := uc.repo.Record().ListProcessed(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to list processed records")
	}

	candidates := make([]*SimilarRecord, 0, len(records))
	for _, rec := range records {
		if rec.ID == query.ID || !rec.HasEmbedding() {
			continue
		}
		candidates = append(candidates, &SimilarRecord{
			Record: rec,
			Score:  model.CosineSimilarity(query.Embedding, rec.Embedding),
		})
	}

	slices.SortFunc(candidates, func(a, b *SimilarRecord) int {
		if c := cmp.Compare(b.Score, a.Score); c != 0 {
			return c
		}
		return cmp.Compare(a.Record.ID, b.Record.ID)
	})

	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates, nil
}
