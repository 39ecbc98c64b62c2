package usecase

import (
	"context"
	"fmt"
	"sync"

	"github.com/signatlas/signrag/internal/core/domain"
	"github.com/signatlas/signrag/internal/core/ports"
)

const (
	defaultTopK         = 5
	defaultMergeEpsilon = 1e-3
)

type RetrieveUseCase struct {
	embedder ports.Embedder
	gen      *IndexGeneration
	epsilon  float64
}

func NewRetrieveUseCase(embedder ports.Embedder, gen *IndexGeneration, epsilon float64) *RetrieveUseCase {
	if epsilon <= 0 {
		epsilon = defaultMergeEpsilon
	}
	return &RetrieveUseCase{
		embedder: embedder,
		gen:      gen,
		epsilon:  epsilon,
	}
}

// Retrieve embeds the query text once and searches the current index
// generation. With preference "any" it issues both modality sub-searches
// in parallel and merges the ranked lists.
func (uc *RetrieveUseCase) Retrieve(ctx context.Context, query domain.Query) (domain.RetrievalResult, error) {
	if query.TopK <= 0 {
		query.TopK = defaultTopK
	}

	store, _, _ := uc.gen.Snapshot()
	if store == nil {
		return domain.RetrievalResult{}, nil
	}
	if uc.embedder == nil {
		return domain.RetrievalResult{}, domain.WrapError(domain.ErrEmbeddingUnavailable, "retrieve",
			fmt.Errorf("no embedder configured"))
	}

	vector, err := uc.embedder.EmbedText(ctx, query.Text)
	if err != nil {
		return domain.RetrievalResult{}, fmt.Errorf("embed query: %w", err)
	}
	vector = l2Normalize(vector)
	version := uc.embedder.ModelVersion()

	var hits []domain.ScoredEntry
	switch query.Preference {
	case domain.PreferImage, domain.PreferText:
		filter := query.Filter
		filter.Modality = domain.Modality(query.Preference)
		hits, err = store.Search(ctx, vector, query.TopK, filter, version)
		if err != nil {
			return domain.RetrievalResult{}, fmt.Errorf("search vector store: %w", err)
		}
	default:
		hits, err = uc.searchBothModalities(ctx, store, vector, query, version)
		if err != nil {
			return domain.RetrievalResult{}, err
		}
	}

	merged := dedupByClassModality(sortScored(hits))
	interleaveBands(merged, uc.epsilon)
	if len(merged) > query.TopK {
		merged = merged[:query.TopK]
	}

	result := domain.RetrievalResult{Entries: make([]domain.RetrievedEntry, len(merged))}
	for i, hit := range merged {
		result.Entries[i] = domain.RetrievedEntry{
			Entry: hit.Entry,
			Score: hit.Score,
			Rank:  i,
		}
	}
	return result, nil
}

func (uc *RetrieveUseCase) searchBothModalities(
	ctx context.Context,
	store ports.VectorStore,
	vector []float32,
	query domain.Query,
	version string,
) ([]domain.ScoredEntry, error) {
	var (
		wg       sync.WaitGroup
		results  [2][]domain.ScoredEntry
		errs     [2]error
		variants = [2]domain.Modality{domain.ModalityImage, domain.ModalityText}
	)

	for i, modality := range variants {
		wg.Add(1)
		go func(i int, modality domain.Modality) {
			defer wg.Done()
			filter := query.Filter
			filter.Modality = modality
			results[i], errs[i] = store.Search(ctx, vector, query.TopK, filter, version)
		}(i, modality)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("search %s modality: %w", variants[i], err)
		}
	}
	return append(results[0], results[1]...), nil
}
