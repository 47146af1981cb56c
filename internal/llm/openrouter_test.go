package llm

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestOpenRouterCompleteJoinsDeltas(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		if r.URL.Path != "/chat/completions" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Fatalf("unexpected auth header: %q", got)
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		rawBody := string(body)
		if !strings.Contains(rawBody, `"model":"openai/gpt-oss-20b"`) {
			t.Fatalf("request body missing model: %s", rawBody)
		}
		if !strings.Contains(rawBody, `"temperature":0`) {
			t.Fatalf("request body missing temperature: %s", rawBody)
		}
		if !strings.Contains(rawBody, `"stream":true`) {
			t.Fatalf("request body missing stream=true: %s", rawBody)
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(": keep-alive\n\n"))
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\"{\\\"score\\\":\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: {\"choices\":[{\"delta\":{\"content\":\" 8}\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer server.Close()

	client := NewOpenRouterClient("test-key", server.URL+"/", server.Client())
	zero := 0.0
	got, err := client.Complete(context.Background(), Request{
		Model:       "openai/gpt-oss-20b",
		Messages:    []Message{{Role: "user", Content: "score this link"}},
		Temperature: &zero,
	})
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if got != `{"score": 8}` {
		t.Fatalf("unexpected completion: %q", got)
	}
}

func TestOpenRouterCompleteStatusError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewOpenRouterClient("test-key", server.URL, server.Client())
	_, err := client.Complete(context.Background(), Request{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}})

	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("expected 429 status error, got %v", err)
	}
	if !IsRetryable(err) {
		t.Fatal("429 should be retryable")
	}
}

func TestOpenRouterCompleteStreamError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"error\":{\"message\":\"provider overloaded\"}}\n\n"))
	}))
	defer server.Close()

	client := NewOpenRouterClient("test-key", server.URL, server.Client())
	_, err := client.Complete(context.Background(), Request{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}})
	if err == nil || err.Error() != "provider overloaded" {
		t.Fatalf("expected in-stream error, got %v", err)
	}
}

func TestOpenRouterCompleteRequiresKey(t *testing.T) {
	t.Parallel()

	client := NewOpenRouterClient(" ", "https://openrouter.ai/api/v1", nil)
	_, err := client.Complete(context.Background(), Request{Model: "m", Messages: []Message{{Role: "user", Content: "hi"}}})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

func TestOpenRouterListModels(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models" {
			t.Fatalf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[
			{"id":"z-ai/glm","name":"","context_length":0,"top_provider":{"context_length":65536}},
			{"id":"openai/gpt-oss-20b","name":"GPT OSS 20B","context_length":131072,"supported_parameters":["temperature","Reasoning"]},
			{"id":"","name":"broken"}
		]}`))
	}))
	defer server.Close()

	models, err := NewOpenRouterClient("test-key", server.URL, server.Client()).ListModels(context.Background())
	if err != nil {
		t.Fatalf("list models: %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if models[0].ID != "openai/gpt-oss-20b" || !models[0].SupportsReasoning {
		t.Fatalf("unexpected first model: %+v", models[0])
	}
	if models[1].Name != "z-ai/glm" || models[1].ContextWindow != 65536 {
		t.Fatalf("unexpected fallback fields: %+v", models[1])
	}
}
