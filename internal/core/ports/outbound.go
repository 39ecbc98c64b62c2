package ports

import (
	"context"

	"github.com/signatlas/signrag/internal/core/domain"
)

// Embedder maps images and text into one shared vector space. Both paths
// must emit vectors of the same dimensionality and model version.
type Embedder interface {
	EmbedImage(ctx context.Context, asset []byte) ([]float32, error)
	EmbedText(ctx context.Context, text string) ([]float32, error)
	Dimension() int
	ModelVersion() string
}

// VectorStore persists index entries and answers nearest-neighbor queries.
// Put is idempotent by (modality, id).
type VectorStore interface {
	Put(ctx context.Context, entries []domain.IndexEntry) error
	Search(ctx context.Context, queryVector []float32, topK int, filter domain.SearchFilter, modelVersion string) ([]domain.ScoredEntry, error)
	Count(ctx context.Context) (int, error)
	Persist(ctx context.Context) error
	Load(ctx context.Context) error
}

// AnswerGenerator produces the final answer text from a fully built prompt.
type AnswerGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// CatalogRepository persists the validated corpus bridge artifact:
// sign records plus one row per image asset.
type CatalogRepository interface {
	SaveCorpus(ctx context.Context, corpus *domain.Corpus) error
	LoadCorpus(ctx context.Context) (*domain.Corpus, error)
}

// AssetStorage stores ingested image bytes under append-only keys.
type AssetStorage interface {
	Save(ctx context.Context, key string, data []byte) error
	Open(ctx context.Context, key string) ([]byte, error)
	Exists(ctx context.Context, key string) (bool, error)
}

// Chunker splits regulatory text into bounded-length passages.
type Chunker interface {
	Split(text string) []string
}

// MessageQueue publishes/consumes corpus lifecycle events.
type MessageQueue interface {
	PublishCorpusBuilt(ctx context.Context, corpusRef string) error
	SubscribeCorpusBuilt(ctx context.Context, handler func(context.Context, string) error) error
}

// RegulatoryTextExtractor pulls long-form regulatory text for a class,
// when a source document exists. Empty result means no supplement.
type RegulatoryTextExtractor interface {
	ExtractForClass(ctx context.Context, classID string) (string, error)
}
