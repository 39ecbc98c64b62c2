package ports

import (
	"context"

	"github.com/signatlas/signrag/internal/core/domain"
)

// CorpusValidator is the inbound contract for ingestion.
type CorpusValidator interface {
	Validate(ctx context.Context, images []RawImage, descriptions map[string]RawDescription) (*domain.Corpus, *domain.ValidationReport, error)
}

// RawImage is one raw ingestion tuple: a class directory name and the
// image bytes found under it.
type RawImage struct {
	ClassDirName string
	Filename     string
	Data         []byte
}

// RawDescription is one raw description entry keyed by class id string.
type RawDescription struct {
	OfficialName string `json:"official_name"`
	Description  string `json:"description"`
	Category     string `json:"category"`
}

// IndexBuilder is the inbound contract for the batch indexing phase.
type IndexBuilder interface {
	BuildIndex(ctx context.Context, corpus *domain.Corpus) (*domain.IndexReport, error)
}

// Retriever executes a query against the current index generation.
type Retriever interface {
	Retrieve(ctx context.Context, query domain.Query) (domain.RetrievalResult, error)
}

// Grounder binds generation to retrieved evidence.
type Grounder interface {
	Ground(ctx context.Context, query domain.Query, retrieval domain.RetrievalResult) (domain.GroundedAnswer, error)
}

// QueryService is the full query pipeline consumed by CLI and HTTP callers.
type QueryService interface {
	Handle(ctx context.Context, query domain.Query) (domain.GroundedAnswer, error)
	Stats(ctx context.Context) (domain.CorpusStats, error)
}
