package chunking

import (
	"strings"
	"testing"
)

func TestSplitShortTextIsSingleChunk(t *testing.T) {
	s := NewSplitter(100, 10)
	chunks := s.Split("Give way to crossing traffic.")
	if len(chunks) != 1 {
		t.Fatalf("expected single chunk, got %d", len(chunks))
	}
}

func TestSplitEmptyTextIsNil(t *testing.T) {
	s := NewSplitter(100, 10)
	if chunks := s.Split("   \n  "); chunks != nil {
		t.Fatalf("expected nil for blank text, got %v", chunks)
	}
}

func TestSplitPrefersSentenceBoundaries(t *testing.T) {
	s := NewSplitter(40, 0)
	text := "First sentence here. Second sentence follows. Third one ends it."
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %v", chunks)
	}
	if !strings.HasSuffix(chunks[0], ".") {
		t.Fatalf("expected a sentence-boundary break, got %q", chunks[0])
	}
}

func TestSplitRespectsChunkSize(t *testing.T) {
	s := NewSplitter(50, 10)
	text := strings.Repeat("road sign regulation paragraph text ", 30)
	for _, chunk := range s.Split(text) {
		if len([]rune(chunk)) > 50 {
			t.Fatalf("chunk exceeds size limit: %d runes", len([]rune(chunk)))
		}
	}
}

func TestSplitOverlapCarriesContext(t *testing.T) {
	s := NewSplitter(30, 10)
	text := strings.Repeat("alpha beta gamma delta ", 10)
	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	// with overlap the total rune count exceeds the input length
	total := 0
	for _, chunk := range chunks {
		total += len([]rune(chunk))
	}
	if total <= len([]rune(strings.TrimSpace(text))) {
		t.Fatalf("expected overlapping chunks to repeat context")
	}
}

func TestNewSplitterClampsBadOverlap(t *testing.T) {
	s := NewSplitter(100, 200)
	if s.Overlap >= s.ChunkSize {
		t.Fatalf("overlap must stay below chunk size, got %d/%d", s.Overlap, s.ChunkSize)
	}
}
