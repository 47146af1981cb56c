package explore

import (
	"context"
	"strings"

	"sitescout/internal/fetch"
)

const scoringFailed = "scoring failed"

var scoreSchema = MustCompileSchema("score.json", `{
  "type": "object",
  "required": ["score"],
  "properties": {
    "score": {"type": ["number", "string"]},
    "reasoning": {"type": ["string", "null"]}
  }
}`)

type scoreResponse struct {
	Score     looseFloat `json:"score"`
	Reasoning string     `json:"reasoning"`
}

// JSONScorer asks a Responder to rate a single link.
type JSONScorer struct {
	responder Responder
}

func NewJSONScorer(responder Responder) JSONScorer {
	return JSONScorer{responder: responder}
}

// Score never fails: a collaborator error or unusable response yields
// (0, "scoring failed").
func (s JSONScorer) Score(ctx context.Context, url string, link fetch.LinkContext, goal string) (float64, string) {
	if s.responder == nil {
		return 0, scoringFailed
	}
	raw, err := s.responder.Respond(ctx, buildScorePrompt(url, link, goal))
	if err != nil {
		return 0, scoringFailed
	}
	var parsed scoreResponse
	if err := DecodeResponse(raw, scoreSchema, &parsed); err != nil {
		return 0, scoringFailed
	}
	return ClampScore(float64(parsed.Score)), strings.TrimSpace(parsed.Reasoning)
}
