package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/signatlas/signrag/internal/core/domain"
)

type fakeEmbedder struct {
	dimension    int
	modelVersion string
	vector       []float32
	embedErr     error
	failOn       map[string]bool

	mu         sync.Mutex
	imageCalls int
	textCalls  int
}

func newFakeEmbedder(dimension int) *fakeEmbedder {
	vector := make([]float32, dimension)
	vector[0] = 1
	return &fakeEmbedder{
		dimension:    dimension,
		modelVersion: "clip-test-v1",
		vector:       vector,
	}
}

func (f *fakeEmbedder) EmbedImage(_ context.Context, _ []byte) ([]float32, error) {
	f.mu.Lock()
	f.imageCalls++
	f.mu.Unlock()
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.vector, nil
}

func (f *fakeEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	f.textCalls++
	f.mu.Unlock()
	if f.failOn[text] {
		return nil, fmt.Errorf("embed server rejected %q", text)
	}
	if f.embedErr != nil {
		return nil, f.embedErr
	}
	return f.vector, nil
}

func (f *fakeEmbedder) Dimension() int       { return f.dimension }
func (f *fakeEmbedder) ModelVersion() string { return f.modelVersion }

type fakeVectorStore struct {
	mu      sync.Mutex
	entries map[string]domain.IndexEntry
	results map[domain.Modality][]domain.ScoredEntry

	searchErr  error
	putErr     error
	persistErr error

	searchFilters []domain.SearchFilter
	persisted     bool
}

func newFakeVectorStore() *fakeVectorStore {
	return &fakeVectorStore{
		entries: make(map[string]domain.IndexEntry),
		results: make(map[domain.Modality][]domain.ScoredEntry),
	}
}

func (f *fakeVectorStore) Put(_ context.Context, entries []domain.IndexEntry) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, entry := range entries {
		f.entries[entry.Key()] = entry
	}
	return nil
}

func (f *fakeVectorStore) Search(
	_ context.Context,
	_ []float32,
	topK int,
	filter domain.SearchFilter,
	_ string,
) ([]domain.ScoredEntry, error) {
	f.mu.Lock()
	f.searchFilters = append(f.searchFilters, filter)
	f.mu.Unlock()
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	hits := f.results[filter.Modality]
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (f *fakeVectorStore) Count(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.entries), nil
}

func (f *fakeVectorStore) Persist(context.Context) error {
	if f.persistErr != nil {
		return f.persistErr
	}
	f.persisted = true
	return nil
}

func (f *fakeVectorStore) Load(context.Context) error { return nil }

type fakeAssetStorage struct {
	mu    sync.Mutex
	files map[string][]byte

	saveErr   error
	existsErr error
}

func newFakeAssetStorage() *fakeAssetStorage {
	return &fakeAssetStorage{files: make(map[string][]byte)}
}

func (f *fakeAssetStorage) Save(_ context.Context, key string, data []byte) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = data
	return nil
}

func (f *fakeAssetStorage) Open(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[key]
	if !ok {
		return nil, fmt.Errorf("no such asset: %s", key)
	}
	return data, nil
}

func (f *fakeAssetStorage) Exists(_ context.Context, key string) (bool, error) {
	if f.existsErr != nil {
		return false, f.existsErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.files[key]
	return ok, nil
}

type fakeChunker struct {
	size int
}

func (f *fakeChunker) Split(text string) []string {
	if f.size <= 0 {
		return []string{text}
	}
	var out []string
	for len(text) > f.size {
		out = append(out, text[:f.size])
		text = text[f.size:]
	}
	if strings.TrimSpace(text) != "" {
		out = append(out, text)
	}
	return out
}

type fakeExtractor struct {
	texts map[string]string
	err   error
}

func (f *fakeExtractor) ExtractForClass(_ context.Context, classID string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.texts[classID], nil
}

type fakeGenerator struct {
	answer string
	err    error

	mu         sync.Mutex
	calls      int
	lastPrompt string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.lastPrompt = prompt
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

func scoredEntry(classID string, modality domain.Modality, sourceRef string, score float64) domain.ScoredEntry {
	return domain.ScoredEntry{
		Entry: domain.IndexEntry{
			ID: string(modality) + "-" + classID + "-" + sourceRef,
			Metadata: domain.EntryMetadata{
				ClassID:   classID,
				Modality:  modality,
				SourceRef: sourceRef,
				Text:      "text for class " + classID,
			},
		},
		Score: score,
	}
}
