package embedding

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"sitescout/internal/explore"
)

func TestOllamaEngineEmbedBatch(t *testing.T) {
	var prompts []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/embeddings", r.URL.Path)
		var req ollamaEmbedRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nomic-embed-text", req.Model)
		prompts = append(prompts, req.Prompt)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embedding: []float32{float32(len(req.Prompt)), 1}})
	}))
	defer server.Close()

	engine := NewOllamaEngine(server.URL+"/", "", server.Client())
	vectors, err := engine.EmbedBatch(context.Background(), []string{"ab", "abcd"})
	require.NoError(t, err)

	assert.Equal(t, [][]float32{{2, 1}, {4, 1}}, vectors)
	assert.Equal(t, []string{"ab", "abcd"}, prompts)
	assert.Equal(t, "ollama:nomic-embed-text", engine.Name())
}

func TestOllamaEngineStatusError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	_, err := NewOllamaEngine(server.URL, "missing", server.Client()).EmbedBatch(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 404")
}

func newTestGenAIEngine(t *testing.T, handler http.HandlerFunc) *GenAIEngine {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	engine, err := newGenAIEngine(context.Background(), &genai.ClientConfig{
		APIKey:      "test-key",
		HTTPClient:  server.Client(),
		HTTPOptions: genai.HTTPOptions{BaseURL: server.URL + "/"},
	}, "")
	require.NoError(t, err)
	return engine
}

func TestGenAIEngineEmbedBatch(t *testing.T) {
	var body map[string]any
	engine := newTestGenAIEngine(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "models/gemini-embedding-001:batchEmbedContents"), r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-goog-api-key"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embeddings": [{"values": [1, 0]}, {"values": [0, 1]}]}`))
	})

	vectors, err := engine.EmbedBatch(context.Background(), []string{"pricing", "docs"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1, 0}, {0, 1}}, vectors)
	assert.Equal(t, "genai:gemini-embedding-001", engine.Name())

	requests, _ := body["requests"].([]any)
	require.Len(t, requests, 2)
	first, _ := requests[0].(map[string]any)
	assert.Equal(t, genaiTaskType, first["taskType"])
}

func TestGenAIEngineRejectsShortBatch(t *testing.T) {
	engine := newTestGenAIEngine(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"embeddings": [{"values": [1, 0]}]}`))
	})

	_, err := engine.EmbedBatch(context.Background(), []string{"a", "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 vectors back for 2 texts")
}

func TestGenAIEngineSkipsEmptyBatch(t *testing.T) {
	engine := newTestGenAIEngine(t, func(http.ResponseWriter, *http.Request) {
		t.Error("no request expected for an empty batch")
	})

	vectors, err := engine.EmbedBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, vectors)
}

func TestLexicalEngineClustersSharedWording(t *testing.T) {
	engine := NewLexicalEngine(0)
	vectors, err := engine.EmbedBatch(context.Background(), []string{
		"Blue running shoe product card",
		"Red running shoe product card",
		"Shipping and returns policy",
		"",
	})
	require.NoError(t, err)
	require.Len(t, vectors, 4)

	similar := explore.CosineSimilarity(vectors[0], vectors[1])
	unrelated := explore.CosineSimilarity(vectors[0], vectors[2])
	assert.Greater(t, similar, explore.DefaultGroupThreshold)
	assert.Less(t, unrelated, explore.DefaultGroupThreshold)
	assert.Zero(t, explore.CosineSimilarity(vectors[0], vectors[3]))
}

func TestLexicalEngineRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewLexicalEngine(8).EmbedBatch(ctx, []string{"a"})
	require.ErrorIs(t, err, context.Canceled)
}

func TestNewEngine(t *testing.T) {
	engine, err := NewEngine(context.Background(), Config{})
	require.NoError(t, err)
	assert.Equal(t, "lexical", engine.Name())

	engine, err = NewEngine(context.Background(), Config{Provider: "Ollama", OllamaModel: "embeddinggemma"})
	require.NoError(t, err)
	assert.Equal(t, "ollama:embeddinggemma", engine.Name())

	_, err = NewEngine(context.Background(), Config{Provider: "genai"})
	require.Error(t, err)

	_, err = NewEngine(context.Background(), Config{Provider: "word2vec"})
	require.Error(t, err)
}
