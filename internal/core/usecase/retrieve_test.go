package usecase

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/signatlas/signrag/internal/core/domain"
)

func retrieveFixture(store *fakeVectorStore, epsilon float64) *RetrieveUseCase {
	gen := NewIndexGeneration()
	if store != nil {
		gen.Swap(store, &domain.Corpus{}, time.Now())
	}
	return NewRetrieveUseCase(newFakeEmbedder(4), gen, epsilon)
}

func TestRetrieveEmptyStoreReturnsEmptyResult(t *testing.T) {
	uc := retrieveFixture(nil, 0)

	result, err := uc.Retrieve(context.Background(), domain.Query{Text: "stop sign"})
	if err != nil {
		t.Fatalf("empty index must not error: %v", err)
	}
	if !result.Empty() {
		t.Fatalf("expected empty result, got %d entries", len(result.Entries))
	}
}

func TestRetrieveSingleModalitySearchesOnce(t *testing.T) {
	store := newFakeVectorStore()
	store.results[domain.ModalityText] = []domain.ScoredEntry{
		scoredEntry("1", domain.ModalityText, "desc/1#0", 0.9),
	}
	uc := retrieveFixture(store, 0)

	result, err := uc.Retrieve(context.Background(), domain.Query{
		Text:       "speed limit",
		Preference: domain.PreferText,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(store.searchFilters) != 1 || store.searchFilters[0].Modality != domain.ModalityText {
		t.Fatalf("expected one text-filtered search, got %v", store.searchFilters)
	}
	if len(result.Entries) != 1 || result.Entries[0].Rank != 0 {
		t.Fatalf("unexpected result %+v", result.Entries)
	}
}

func TestRetrieveAnySearchesBothModalities(t *testing.T) {
	store := newFakeVectorStore()
	store.results[domain.ModalityImage] = []domain.ScoredEntry{
		scoredEntry("1", domain.ModalityImage, "class_1/img_00000.png", 0.95),
	}
	store.results[domain.ModalityText] = []domain.ScoredEntry{
		scoredEntry("2", domain.ModalityText, "desc/2#0", 0.60),
	}
	uc := retrieveFixture(store, 0)

	result, err := uc.Retrieve(context.Background(), domain.Query{
		Text:       "stop sign",
		Preference: domain.PreferAny,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(store.searchFilters) != 2 {
		t.Fatalf("expected both modality sub-searches, got %d", len(store.searchFilters))
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected merged entries from both modalities, got %d", len(result.Entries))
	}
	if result.Entries[0].Score != 0.95 || result.Entries[1].Score != 0.60 {
		t.Fatalf("scores outside the tie band must stay score-ordered: %+v", result.Entries)
	}
}

func TestRetrieveDeduplicatesPerClassAndModality(t *testing.T) {
	store := newFakeVectorStore()
	store.results[domain.ModalityImage] = []domain.ScoredEntry{
		scoredEntry("1", domain.ModalityImage, "class_1/img_00000.png", 0.90),
		scoredEntry("1", domain.ModalityImage, "class_1/img_00001.png", 0.89),
		scoredEntry("2", domain.ModalityImage, "class_2/img_00000.png", 0.40),
	}
	uc := retrieveFixture(store, 0)

	result, err := uc.Retrieve(context.Background(), domain.Query{
		Text:       "stop sign",
		Preference: domain.PreferImage,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(result.Entries) != 2 {
		t.Fatalf("expected one representative per class, got %d", len(result.Entries))
	}
	if result.Entries[0].Entry.Metadata.SourceRef != "class_1/img_00000.png" {
		t.Fatalf("dedup must keep the highest-scoring representative, got %+v", result.Entries[0])
	}
}

func TestRetrieveInterleavesEpsilonTies(t *testing.T) {
	store := newFakeVectorStore()
	store.results[domain.ModalityImage] = []domain.ScoredEntry{
		scoredEntry("1", domain.ModalityImage, "class_1/img_00000.png", 0.9004),
		scoredEntry("2", domain.ModalityImage, "class_2/img_00000.png", 0.9002),
	}
	store.results[domain.ModalityText] = []domain.ScoredEntry{
		scoredEntry("3", domain.ModalityText, "desc/3#0", 0.9003),
		scoredEntry("4", domain.ModalityText, "desc/4#0", 0.9001),
	}
	uc := retrieveFixture(store, 1e-3)

	result, err := uc.Retrieve(context.Background(), domain.Query{
		Text:       "stop sign",
		Preference: domain.PreferAny,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	var modalities []domain.Modality
	for _, e := range result.Entries {
		modalities = append(modalities, e.Entry.Metadata.Modality)
	}
	want := []domain.Modality{
		domain.ModalityImage, domain.ModalityText,
		domain.ModalityImage, domain.ModalityText,
	}
	for i := range want {
		if modalities[i] != want[i] {
			t.Fatalf("expected round-robin interleave %v, got %v", want, modalities)
		}
	}
}

func TestRetrieveTruncatesToTopK(t *testing.T) {
	store := newFakeVectorStore()
	for i := 0; i < 8; i++ {
		store.results[domain.ModalityText] = append(store.results[domain.ModalityText],
			scoredEntry(fmt.Sprintf("%d", i), domain.ModalityText, fmt.Sprintf("desc/%d#0", i), 0.9-float64(i)*0.1))
	}
	uc := retrieveFixture(store, 0)

	result, err := uc.Retrieve(context.Background(), domain.Query{
		Text:       "signs",
		Preference: domain.PreferText,
		TopK:       3,
	})
	if err != nil {
		t.Fatalf("retrieve: %v", err)
	}
	if len(result.Entries) != 3 {
		t.Fatalf("expected top_k entries, got %d", len(result.Entries))
	}
	for i, e := range result.Entries {
		if e.Rank != i {
			t.Fatalf("ranks must be contiguous from 0, got %+v", result.Entries)
		}
	}
}

func TestRetrievePropagatesSearchErrors(t *testing.T) {
	store := newFakeVectorStore()
	store.searchErr = fmt.Errorf("connection refused")
	uc := retrieveFixture(store, 0)

	_, err := uc.Retrieve(context.Background(), domain.Query{Text: "stop", Preference: domain.PreferAny})
	if err == nil {
		t.Fatalf("expected search error to propagate")
	}
}
