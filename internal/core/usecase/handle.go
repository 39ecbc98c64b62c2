package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/signatlas/signrag/internal/core/domain"
	"github.com/signatlas/signrag/internal/core/ports"
)

// QueryOrchestrator runs the linear query pipeline:
// Received -> Retrieved -> Grounded -> Done, or Received -> Failed on the
// first stage error. No stage is retried here; retry policy belongs to the
// capability decorators.
type QueryOrchestrator struct {
	retriever ports.Retriever
	grounder  ports.Grounder
	gen       *IndexGeneration

	retrieveTimeout time.Duration
	generateTimeout time.Duration
	logger          *slog.Logger
}

func NewQueryOrchestrator(
	retriever ports.Retriever,
	grounder ports.Grounder,
	gen *IndexGeneration,
	retrieveTimeout, generateTimeout time.Duration,
	logger *slog.Logger,
) *QueryOrchestrator {
	if retrieveTimeout <= 0 {
		retrieveTimeout = 10 * time.Second
	}
	if generateTimeout <= 0 {
		generateTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &QueryOrchestrator{
		retriever:       retriever,
		grounder:        grounder,
		gen:             gen,
		retrieveTimeout: retrieveTimeout,
		generateTimeout: generateTimeout,
		logger:          logger,
	}
}

func (uc *QueryOrchestrator) Handle(ctx context.Context, query domain.Query) (domain.GroundedAnswer, error) {
	if strings.TrimSpace(query.Text) == "" {
		return domain.GroundedAnswer{}, domain.WrapError(domain.ErrInvalidInput, "handle query",
			fmt.Errorf("empty query text"))
	}

	retrieveCtx, cancelRetrieve := context.WithTimeout(ctx, uc.retrieveTimeout)
	retrieval, err := uc.retriever.Retrieve(retrieveCtx, query)
	cancelRetrieve()
	if err != nil {
		return domain.GroundedAnswer{}, fmt.Errorf("retrieve stage: %w", err)
	}

	// Stage boundary: a caller cancellation lands here, before generation.
	if err := ctx.Err(); err != nil {
		return domain.GroundedAnswer{}, err
	}

	generateCtx, cancelGenerate := context.WithTimeout(ctx, uc.generateTimeout)
	defer cancelGenerate()
	answer, err := uc.grounder.Ground(generateCtx, query, retrieval)
	if err != nil {
		return domain.GroundedAnswer{}, fmt.Errorf("ground stage: %w", err)
	}

	uc.logger.Debug("query handled",
		"retrieved", len(retrieval.Entries),
		"citations", len(answer.Citations),
		"unsupported_claims", answer.UnsupportedClaimCount,
	)
	return answer, nil
}

func (uc *QueryOrchestrator) Stats(ctx context.Context) (domain.CorpusStats, error) {
	store, corpus, indexedAt := uc.gen.Snapshot()
	stats := domain.CorpusStats{
		Classes:      corpus.Size(),
		PartialCount: corpus.PartialCount(),
		IndexedAt:    indexedAt,
	}
	if store != nil {
		count, err := store.Count(ctx)
		if err != nil {
			return domain.CorpusStats{}, domain.WrapError(domain.ErrVectorStoreIO, "count index entries", err)
		}
		stats.IndexedItems = count
	}
	return stats, nil
}
