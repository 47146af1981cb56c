package fetch

import (
	"context"
	"time"
)

// LinkContext is the text surrounding an anchor on the page it was harvested from.
type LinkContext struct {
	AnchorText    string `json:"anchor_text"`
	ParentContext string `json:"parent_context"`
	Title         string `json:"title,omitempty"`
	AriaLabel     string `json:"aria_label,omitempty"`
	URLPath       string `json:"url_path"`
}

type Link struct {
	URL     string      `json:"url"`
	Context LinkContext `json:"context"`
}

// Document is what a Renderer hands back before any text or link extraction.
type Document struct {
	URL         string
	FinalURL    string
	ContentType string
	Body        []byte
	Truncated   bool
	Status      string
	FetchedAt   time.Time
}

type Page struct {
	URL       string    `json:"url"`
	FinalURL  string    `json:"final_url"`
	Title     string    `json:"title,omitempty"`
	Text      string    `json:"text"`
	Links     []Link    `json:"links"`
	Truncated bool      `json:"truncated,omitempty"`
	FetchedAt time.Time `json:"fetched_at"`
}

type Renderer interface {
	Render(ctx context.Context, rawURL string) (Document, error)
}
