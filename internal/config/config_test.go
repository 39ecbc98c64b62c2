package config

import (
	"testing"
	"time"
)

func TestLoadRetrievalDefaults(t *testing.T) {
	t.Setenv("TOP_K", "")
	t.Setenv("MERGE_EPSILON", "")
	t.Setenv("RETRIEVE_TIMEOUT", "")
	t.Setenv("GENERATE_TIMEOUT", "")

	cfg := Load()
	if cfg.TopK != 5 {
		t.Fatalf("expected default top k 5, got %d", cfg.TopK)
	}
	if cfg.MergeEpsilon != 0.001 {
		t.Fatalf("expected default merge epsilon 0.001, got %v", cfg.MergeEpsilon)
	}
	if cfg.RetrieveTimeout != 10*time.Second {
		t.Fatalf("expected default retrieve timeout 10s, got %v", cfg.RetrieveTimeout)
	}
	if cfg.GenerateTimeout != 60*time.Second {
		t.Fatalf("expected default generate timeout 60s, got %v", cfg.GenerateTimeout)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("STORE_BACKEND", "qdrant")
	t.Setenv("INDEX_WORKERS", "8")
	t.Setenv("EMBED_RATE_RPS", "2.5")
	t.Setenv("RETRIEVE_TIMEOUT", "3s")
	t.Setenv("CHUNK_SIZE", "250")

	cfg := Load()
	if cfg.StoreBackend != "qdrant" {
		t.Fatalf("expected store backend override, got %q", cfg.StoreBackend)
	}
	if cfg.IndexWorkers != 8 {
		t.Fatalf("expected index workers 8, got %d", cfg.IndexWorkers)
	}
	if cfg.EmbedRateRPS != 2.5 {
		t.Fatalf("expected embed rate 2.5, got %v", cfg.EmbedRateRPS)
	}
	if cfg.RetrieveTimeout != 3*time.Second {
		t.Fatalf("expected retrieve timeout 3s, got %v", cfg.RetrieveTimeout)
	}
	if cfg.ChunkSize != 250 {
		t.Fatalf("expected chunk size 250, got %d", cfg.ChunkSize)
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("TOP_K", "not-a-number")
	t.Setenv("MERGE_EPSILON", "wat")
	t.Setenv("GENERATE_TIMEOUT", "soon")

	cfg := Load()
	if cfg.TopK != 5 {
		t.Fatalf("expected fallback top k 5, got %d", cfg.TopK)
	}
	if cfg.MergeEpsilon != 0.001 {
		t.Fatalf("expected fallback merge epsilon, got %v", cfg.MergeEpsilon)
	}
	if cfg.GenerateTimeout != 60*time.Second {
		t.Fatalf("expected fallback generate timeout, got %v", cfg.GenerateTimeout)
	}
}
