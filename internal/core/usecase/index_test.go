package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/signatlas/signrag/internal/core/domain"
)

func indexCorpus() (*domain.Corpus, *fakeAssetStorage) {
	storage := newFakeAssetStorage()
	storage.files["class_1/img_00000.png"] = []byte("pixels-1")
	storage.files["class_2/img_00000.png"] = []byte("pixels-2")

	return &domain.Corpus{
		Records: map[string]domain.SignRecord{
			"1": {ClassID: "1", OfficialName: "Speed limit 30", Category: domain.CategoryProhibitory},
			"2": {ClassID: "2", OfficialName: "Stop", Category: domain.CategoryMandatory},
		},
		Assets: []domain.ImageAsset{
			{ID: "asset-1", ClassID: "1", Path: "class_1/img_00000.png", Slot: 0},
			{ID: "asset-2", ClassID: "2", Path: "class_2/img_00000.png", Slot: 0},
		},
		Chunks: []domain.TextChunk{
			{ID: "chunk-1", ClassID: "1", Text: "Limits speed to 30 km/h.", ChunkIndex: 0, SourceRef: "desc/1#0"},
			{ID: "chunk-2", ClassID: "2", Text: "Requires a full stop.", ChunkIndex: 0, SourceRef: "desc/2#0"},
		},
		Partial: map[string]bool{"2": true},
		BuiltAt: time.Now().UTC(),
	}, storage
}

func TestBuildIndexEmbedsAllModalities(t *testing.T) {
	corpus, storage := indexCorpus()
	embedder := newFakeEmbedder(4)
	store := newFakeVectorStore()
	uc := NewBuildIndexUseCase(embedder, store, storage, nil, 2, nil)

	report, err := uc.BuildIndex(context.Background(), corpus)
	if err != nil {
		t.Fatalf("build index: %v", err)
	}
	if report.Indexed != 4 {
		t.Fatalf("expected 4 indexed items, got %d", report.Indexed)
	}
	if report.ModelVersion != "clip-test-v1" {
		t.Fatalf("unexpected model version %q", report.ModelVersion)
	}
	if !store.persisted {
		t.Fatalf("expected store to be persisted after build")
	}

	imageEntry, ok := store.entries["image:asset-2"]
	if !ok {
		t.Fatalf("expected image entry for asset-2, have %v", store.entries)
	}
	if imageEntry.Metadata.Text != "Traffic sign: Stop. Category: mandatory." {
		t.Fatalf("unexpected image surrogate text %q", imageEntry.Metadata.Text)
	}
	if !imageEntry.Metadata.Partial {
		t.Fatalf("entries of a partial class must carry the partial flag")
	}
	if imageEntry.Metadata.ModelVersion != "clip-test-v1" {
		t.Fatalf("every entry must be tagged with the embedder model version")
	}
}

func TestBuildIndexSkipsDimensionMismatches(t *testing.T) {
	corpus, storage := indexCorpus()
	embedder := newFakeEmbedder(4)
	embedder.vector = []float32{1, 0} // shorter than the declared dimension
	store := newFakeVectorStore()
	uc := NewBuildIndexUseCase(embedder, store, storage, nil, 2, nil)

	report, err := uc.BuildIndex(context.Background(), corpus)
	if err != nil {
		t.Fatalf("mismatches must not fail the batch: %v", err)
	}
	if report.Indexed != 0 {
		t.Fatalf("expected 0 indexed, got %d", report.Indexed)
	}
	if report.SkippedDimension != 4 {
		t.Fatalf("expected 4 dimension skips, got %d", report.SkippedDimension)
	}
	if len(report.FailedItems) != 4 {
		t.Fatalf("expected 4 failed items recorded, got %v", report.FailedItems)
	}
}

func TestBuildIndexIsolatesEmbedFailures(t *testing.T) {
	corpus, storage := indexCorpus()
	embedder := newFakeEmbedder(4)
	embedder.failOn = map[string]bool{"Requires a full stop.": true}
	store := newFakeVectorStore()
	uc := NewBuildIndexUseCase(embedder, store, storage, nil, 2, nil)

	report, err := uc.BuildIndex(context.Background(), corpus)
	if err != nil {
		t.Fatalf("item failures must not fail the batch: %v", err)
	}
	if report.Indexed != 3 {
		t.Fatalf("expected 3 indexed items, got %d", report.Indexed)
	}
	if report.SkippedEmbedErrors != 1 {
		t.Fatalf("expected 1 embed error skip, got %d", report.SkippedEmbedErrors)
	}
	if len(report.FailedItems) != 1 || report.FailedItems[0] != "text:desc/2#0" {
		t.Fatalf("unexpected failed items %v", report.FailedItems)
	}
}

func TestBuildIndexNormalizesVectors(t *testing.T) {
	corpus, storage := indexCorpus()
	embedder := newFakeEmbedder(4)
	embedder.vector = []float32{3, 4, 0, 0}
	store := newFakeVectorStore()
	uc := NewBuildIndexUseCase(embedder, store, storage, nil, 1, nil)

	if _, err := uc.BuildIndex(context.Background(), corpus); err != nil {
		t.Fatalf("build index: %v", err)
	}
	entry := store.entries["text:chunk-1"]
	if entry.Vector[0] != 0.6 || entry.Vector[1] != 0.8 {
		t.Fatalf("expected unit-norm vector, got %v", entry.Vector)
	}
}

func TestBuildIndexRejectsEmptyCorpus(t *testing.T) {
	uc := NewBuildIndexUseCase(newFakeEmbedder(4), newFakeVectorStore(), newFakeAssetStorage(), nil, 1, nil)
	_, err := uc.BuildIndex(context.Background(), &domain.Corpus{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}

func TestBuildIndexRequiresEmbedder(t *testing.T) {
	corpus, storage := indexCorpus()
	uc := NewBuildIndexUseCase(nil, newFakeVectorStore(), storage, nil, 1, nil)
	_, err := uc.BuildIndex(context.Background(), corpus)
	if !domain.IsKind(err, domain.ErrEmbeddingUnavailable) {
		t.Fatalf("expected embedding unavailable, got %v", err)
	}
}

func TestBuildIndexIsIdempotentPerItem(t *testing.T) {
	corpus, storage := indexCorpus()
	embedder := newFakeEmbedder(4)
	store := newFakeVectorStore()
	uc := NewBuildIndexUseCase(embedder, store, storage, nil, 2, nil)

	if _, err := uc.BuildIndex(context.Background(), corpus); err != nil {
		t.Fatalf("first build: %v", err)
	}
	if _, err := uc.BuildIndex(context.Background(), corpus); err != nil {
		t.Fatalf("second build: %v", err)
	}
	if len(store.entries) != 4 {
		t.Fatalf("re-indexing the same items must upsert, got %d entries", len(store.entries))
	}
}
