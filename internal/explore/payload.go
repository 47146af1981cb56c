package explore

import (
	"encoding/json"
	"time"
)

// Payload is the final answer of a run. It marshals to one of two shapes:
// a success object that always carries a data key, or an error object that
// never does.
type Payload struct {
	Data         json.RawMessage
	Error        string
	Metadata     Metadata
	EmailSent    bool
	EmailMessage string
}

type Metadata struct {
	StartURL           string
	SuccessfulURL      string
	PagesProcessed     int
	ExplorationHistory []string
	Confidence         float64
	ItemCount          int
	Strategy           Strategy
	SatisfiesGoal      bool
	BatchesExplored    int
	PartialResult      bool
	Timestamp          time.Time
}

func (p Payload) Failed() bool {
	return p.Error != ""
}

type successMetadataJSON struct {
	StartURL           string   `json:"start_url"`
	SuccessfulURL      string   `json:"successful_url"`
	PagesProcessed     int      `json:"pages_processed"`
	ExplorationHistory []string `json:"exploration_history"`
	Confidence         float64  `json:"confidence"`
	ItemCount          int      `json:"item_count"`
	Strategy           Strategy `json:"strategy"`
	SatisfiesGoal      bool     `json:"satisfies_goal"`
	BatchesExplored    int      `json:"batches_explored"`
	PartialResult      bool     `json:"partial_result"`
	Timestamp          string   `json:"timestamp"`
}

type successJSON struct {
	Data         json.RawMessage     `json:"data"`
	Metadata     successMetadataJSON `json:"metadata"`
	EmailSent    bool                `json:"email_sent"`
	EmailMessage string              `json:"email_message,omitempty"`
}

type errorMetadataJSON struct {
	StartURL           string   `json:"start_url"`
	PagesProcessed     int      `json:"pages_processed"`
	ExplorationHistory []string `json:"exploration_history"`
	Timestamp          string   `json:"timestamp"`
}

type errorJSON struct {
	Error        string            `json:"error"`
	Metadata     errorMetadataJSON `json:"metadata"`
	EmailSent    bool              `json:"email_sent"`
	EmailMessage string            `json:"email_message,omitempty"`
}

func (p Payload) MarshalJSON() ([]byte, error) {
	history := p.Metadata.ExplorationHistory
	if history == nil {
		history = []string{}
	}
	timestamp := p.Metadata.Timestamp.UTC().Format(time.RFC3339Nano)

	if p.Failed() {
		return json.Marshal(errorJSON{
			Error: p.Error,
			Metadata: errorMetadataJSON{
				StartURL:           p.Metadata.StartURL,
				PagesProcessed:     p.Metadata.PagesProcessed,
				ExplorationHistory: history,
				Timestamp:          timestamp,
			},
			EmailSent:    p.EmailSent,
			EmailMessage: p.EmailMessage,
		})
	}

	data := p.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return json.Marshal(successJSON{
		Data: data,
		Metadata: successMetadataJSON{
			StartURL:           p.Metadata.StartURL,
			SuccessfulURL:      p.Metadata.SuccessfulURL,
			PagesProcessed:     p.Metadata.PagesProcessed,
			ExplorationHistory: history,
			Confidence:         p.Metadata.Confidence,
			ItemCount:          p.Metadata.ItemCount,
			Strategy:           p.Metadata.Strategy,
			SatisfiesGoal:      p.Metadata.SatisfiesGoal,
			BatchesExplored:    p.Metadata.BatchesExplored,
			PartialResult:      p.Metadata.PartialResult,
			Timestamp:          timestamp,
		},
		EmailSent:    p.EmailSent,
		EmailMessage: p.EmailMessage,
	})
}
