package embedding

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const (
	defaultGenAIModel = "gemini-embedding-001"
	// Link descriptions are compared with each other, never with a query.
	genaiTaskType = "CLUSTERING"
)

// GenAIEngine embeds a whole batch of link descriptions in one
// batchEmbedContents call against the Gemini API.
type GenAIEngine struct {
	models *genai.Models
	model  string
}

func NewGenAIEngine(ctx context.Context, apiKey, model string) (*GenAIEngine, error) {
	return newGenAIEngine(ctx, &genai.ClientConfig{APIKey: apiKey}, model)
}

func newGenAIEngine(ctx context.Context, cc *genai.ClientConfig, model string) (*GenAIEngine, error) {
	if strings.TrimSpace(cc.APIKey) == "" {
		return nil, errors.New("genai: GENAI_API_KEY is not set")
	}
	cc.Backend = genai.BackendGeminiAPI

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("genai: %w", err)
	}
	return &GenAIEngine{
		models: client.Models,
		model:  cmp.Or(strings.TrimSpace(model), defaultGenAIModel),
	}, nil
}

func (e *GenAIEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	batch := make([]*genai.Content, 0, len(texts))
	for _, text := range texts {
		batch = append(batch, genai.NewContentFromText(text, genai.RoleUser))
	}
	resp, err := e.models.EmbedContent(ctx, e.model, batch, &genai.EmbedContentConfig{TaskType: genaiTaskType})
	if err != nil {
		return nil, fmt.Errorf("genai: embed %d texts with %s: %w", len(texts), e.model, err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("genai: %d vectors back for %d texts", len(resp.Embeddings), len(texts))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Values) == 0 {
			return nil, fmt.Errorf("genai: text %d came back without a vector", i)
		}
		vectors[i] = emb.Values
	}
	return vectors, nil
}

func (e *GenAIEngine) Name() string {
	return "genai:" + e.model
}
