package embedding

import (
	"context"
	"hash/fnv"
	"math"
	"strings"
	"unicode"
)

const defaultLexicalDimensions = 256

// LexicalEngine hashes word tokens into a fixed-size vector. It needs no
// network and is good enough to cluster links that share wording, such as
// a row of product cards.
type LexicalEngine struct {
	dims int
}

func NewLexicalEngine(dims int) LexicalEngine {
	if dims <= 0 {
		dims = defaultLexicalDimensions
	}
	return LexicalEngine{dims: dims}
}

func (e LexicalEngine) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(text)
	}
	return out, nil
}

func (e LexicalEngine) embed(text string) []float32 {
	vector := make([]float32, e.dims)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, token := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vector[h.Sum32()%uint32(e.dims)]++
	}

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vector
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vector {
		vector[i] *= scale
	}
	return vector
}

func (e LexicalEngine) Name() string {
	return "lexical"
}
