package usecase

import (
	"sync"
	"time"

	"github.com/signatlas/signrag/internal/core/domain"
	"github.com/signatlas/signrag/internal/core/ports"
)

// IndexGeneration is the copy-on-write pointer to the current consistent
// index snapshot. A rebuild indexes into a fresh store instance and swaps
// it in here, so in-flight queries never observe a half-written index.
type IndexGeneration struct {
	mu        sync.RWMutex
	store     ports.VectorStore
	corpus    *domain.Corpus
	indexedAt time.Time
}

func NewIndexGeneration() *IndexGeneration {
	return &IndexGeneration{}
}

func (g *IndexGeneration) Swap(store ports.VectorStore, corpus *domain.Corpus, indexedAt time.Time) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.store = store
	g.corpus = corpus
	g.indexedAt = indexedAt
}

func (g *IndexGeneration) Snapshot() (ports.VectorStore, *domain.Corpus, time.Time) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.store, g.corpus, g.indexedAt
}
