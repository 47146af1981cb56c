package explore

import (
	"context"
	"encoding/json"
	"math"
	"strings"

	"sitescout/internal/fetch"
)

type DataType string

const (
	DataTypeActual     DataType = "actual_data"
	DataTypeCategories DataType = "categories"
	DataTypeNavigation DataType = "navigation"
	DataTypeNone       DataType = "none"
)

func parseDataType(raw string) DataType {
	switch DataType(strings.ToLower(strings.TrimSpace(raw))) {
	case DataTypeActual:
		return DataTypeActual
	case DataTypeCategories:
		return DataTypeCategories
	case DataTypeNavigation:
		return DataTypeNavigation
	default:
		return DataTypeNone
	}
}

type Strategy string

const (
	StrategyFirstPageSufficient Strategy = "first_page_sufficient"
	StrategyBatch               Strategy = "batch_exploration"
	StrategyMultiBatch          Strategy = "multi_batch_exploration"
	StrategyExhaustive          Strategy = "exhaustive_exploration"
)

// Result is what the extractor concluded about one page.
type Result struct {
	Data          json.RawMessage `json:"data"`
	Confidence    float64         `json:"confidence"`
	URL           string          `json:"url"`
	Reasoning     string          `json:"reasoning"`
	ItemCount     int             `json:"item_count"`
	SatisfiesGoal bool            `json:"satisfies_goal"`
	DataType      DataType        `json:"data_type"`
}

// Normalize clamps confidence and item count and maps unknown data types to none.
func (r Result) Normalize() Result {
	r.Confidence = ClampScore(r.Confidence)
	if r.ItemCount < 0 {
		r.ItemCount = 0
	}
	r.DataType = parseDataType(string(r.DataType))
	if len(r.Data) == 0 {
		r.Data = json.RawMessage("null")
	}
	return r
}

func emptyResult(url, reasoning string) Result {
	return Result{
		Data:      json.RawMessage("null"),
		URL:       url,
		Reasoning: reasoning,
		DataType:  DataTypeNone,
	}
}

type LinkCandidate struct {
	Score     float64           `json:"score"`
	URL       string            `json:"url"`
	Reasoning string            `json:"reasoning"`
	Context   fetch.LinkContext `json:"context"`
}

// ClampScore maps a model-reported score onto [0, 10]. Values strictly
// between 0 and 1 are read as fractions of 10.
func ClampScore(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v > 0 && v < 1 {
		v *= 10
	}
	return math.Max(0, math.Min(10, v))
}

type Responder interface {
	Respond(ctx context.Context, prompt string) (string, error)
}

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (fetch.Page, error)
}

type LinkScorer interface {
	Score(ctx context.Context, url string, link fetch.LinkContext, goal string) (float64, string)
}

type LinkGrouper interface {
	Group(ctx context.Context, links []fetch.Link, threshold float64) [][]string
}

type ContentExtractor interface {
	Extract(ctx context.Context, pageText, goal, url string) Result
}

// Notifier decides whether the finished payload should be delivered
// somewhere and reports the outcome in-band.
type Notifier interface {
	Notify(ctx context.Context, goal string, payload Payload) Delivery
}

type Delivery struct {
	Sent    bool
	Message string
}
