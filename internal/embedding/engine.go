// Package embedding turns link descriptions into vectors so similar links can
// be scored once. Backends: a local lexical hasher, Ollama and Google GenAI.
package embedding

import (
	"context"
	"fmt"
	"strings"
)

// Engine generates vector embeddings for text.
type Engine interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Name() string
}

type Config struct {
	// Provider: "lexical", "ollama" or "genai"
	Provider string

	OllamaEndpoint string
	OllamaModel    string

	GenAIAPIKey string
	GenAIModel  string
}

func NewEngine(ctx context.Context, cfg Config) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", "lexical":
		return NewLexicalEngine(0), nil
	case "ollama":
		return NewOllamaEngine(cfg.OllamaEndpoint, cfg.OllamaModel, nil), nil
	case "genai":
		return NewGenAIEngine(ctx, cfg.GenAIAPIKey, cfg.GenAIModel)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
}
