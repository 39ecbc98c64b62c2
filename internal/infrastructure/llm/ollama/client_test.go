package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/signatlas/signrag/internal/core/domain"
	"github.com/signatlas/signrag/internal/infrastructure/resilience"
)

func testExecutor() *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: 1 * time.Millisecond,
		RetryMaxBackoff:     2 * time.Millisecond,
		RetryMultiplier:     2,
		BreakerEnabled:      false,
	})
}

func TestGenerateSendsPromptWithoutStreaming(t *testing.T) {
	var captured map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&captured)
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "  A stop sign requires a full stop. [class 14]  "})
	}))
	defer server.Close()

	client := New(server.URL, "llama3.1:8b", testExecutor())
	answer, err := client.Generate(context.Background(), "question with evidence")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if answer != "A stop sign requires a full stop. [class 14]" {
		t.Fatalf("expected trimmed answer, got %q", answer)
	}
	if captured["model"] != "llama3.1:8b" || captured["stream"] != false {
		t.Fatalf("unexpected request body %v", captured)
	}
}

func TestGenerateRetriesServerErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"response": "ok answer"})
	}))
	defer server.Close()

	client := New(server.URL, "llama3.1:8b", testExecutor())
	if _, err := client.Generate(context.Background(), "q"); err != nil {
		t.Fatalf("expected retry to succeed, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestGenerateMarksExhaustedRetriesTemporary(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := New(server.URL, "llama3.1:8b", testExecutor())
	_, err := client.Generate(context.Background(), "q")
	if !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error kind, got %v", err)
	}
}

func TestGenerateDoesNotRetryBadRequests(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		http.Error(w, "unknown model", http.StatusBadRequest)
	}))
	defer server.Close()

	client := New(server.URL, "llama3.1:8b", testExecutor())
	if _, err := client.Generate(context.Background(), "q"); err == nil {
		t.Fatalf("expected error")
	}
	if attempts != 1 {
		t.Fatalf("4xx must not be retried, got %d attempts", attempts)
	}
}
