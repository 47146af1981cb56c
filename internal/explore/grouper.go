package explore

import (
	"context"
	"math"

	"sitescout/internal/fetch"
)

const DefaultGroupThreshold = 0.5

// EmbeddingGrouper clusters links whose anchor and surrounding text embed
// close together, so that one scoring call can stand for the whole cluster.
type EmbeddingGrouper struct {
	embedder Embedder
}

func NewEmbeddingGrouper(embedder Embedder) EmbeddingGrouper {
	return EmbeddingGrouper{embedder: embedder}
}

// Group walks links in order. Each link not yet placed seeds a new group
// and absorbs every later unplaced link whose similarity to the seed is at
// least threshold. Members are compared to the seed only, never to each
// other. Groups are disjoint and together cover every input URL. When
// embedding fails every link becomes its own group.
func (g EmbeddingGrouper) Group(ctx context.Context, links []fetch.Link, threshold float64) [][]string {
	if len(links) == 0 {
		return [][]string{}
	}
	vectors := g.embed(ctx, links)
	if vectors == nil {
		return singletonGroups(links)
	}

	assigned := make([]bool, len(links))
	groups := make([][]string, 0, len(links))
	for i := range links {
		if assigned[i] {
			continue
		}
		assigned[i] = true
		group := []string{links[i].URL}
		for j := i + 1; j < len(links); j++ {
			if assigned[j] {
				continue
			}
			if CosineSimilarity(vectors[i], vectors[j]) >= threshold {
				assigned[j] = true
				group = append(group, links[j].URL)
			}
		}
		groups = append(groups, group)
	}
	return groups
}

func (g EmbeddingGrouper) embed(ctx context.Context, links []fetch.Link) [][]float32 {
	if g.embedder == nil {
		return nil
	}
	texts := make([]string, len(links))
	for i, link := range links {
		texts[i] = link.Context.AnchorText + " " + link.Context.ParentContext
	}
	vectors, err := g.embedder.EmbedBatch(ctx, texts)
	if err != nil || len(vectors) != len(links) {
		return nil
	}
	return vectors
}

func singletonGroups(links []fetch.Link) [][]string {
	groups := make([][]string, len(links))
	for i, link := range links {
		groups[i] = []string{link.URL}
	}
	return groups
}

// CosineSimilarity returns 0 for mismatched or zero-length vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
