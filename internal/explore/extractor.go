package explore

import (
	"context"
	"encoding/json"
	"strings"
)

var extractSchema = MustCompileSchema("extract.json", `{
  "type": "object",
  "properties": {
    "satisfies_goal": {"type": ["boolean", "string", "null"]},
    "confidence": {"type": ["number", "string"]},
    "item_count": {"type": ["number", "string", "null"]},
    "data_type": {"type": ["string", "null"]},
    "reasoning": {"type": ["string", "null"]}
  }
}`)

type extractResponse struct {
	SatisfiesGoal LooseBool       `json:"satisfies_goal"`
	Data          json.RawMessage `json:"data"`
	Confidence    looseFloat      `json:"confidence"`
	ItemCount     looseFloat      `json:"item_count"`
	DataType      string          `json:"data_type"`
	Reasoning     string          `json:"reasoning"`
}

// JSONExtractor asks a Responder what a page says about the goal.
type JSONExtractor struct {
	responder Responder
}

func NewJSONExtractor(responder Responder) JSONExtractor {
	return JSONExtractor{responder: responder}
}

// Extract never fails: a collaborator error or malformed response yields a
// zero-confidence, unsatisfied result with data type none.
func (e JSONExtractor) Extract(ctx context.Context, pageText, goal, url string) Result {
	if e.responder == nil {
		return emptyResult(url, "extraction unavailable")
	}
	raw, err := e.responder.Respond(ctx, buildExtractPrompt(pageText, goal, url))
	if err != nil {
		return emptyResult(url, "extraction failed: "+err.Error())
	}
	var parsed extractResponse
	if err := DecodeResponse(raw, extractSchema, &parsed); err != nil {
		return emptyResult(url, "extraction response unusable: "+err.Error())
	}
	return Result{
		Data:          parsed.Data,
		Confidence:    float64(parsed.Confidence),
		URL:           url,
		Reasoning:     strings.TrimSpace(parsed.Reasoning),
		ItemCount:     int(parsed.ItemCount),
		SatisfiesGoal: bool(parsed.SatisfiesGoal),
		DataType:      DataType(parsed.DataType),
	}.Normalize()
}
