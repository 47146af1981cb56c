package fetch

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const defaultMaxTextRunes = 60_000

var ErrEmptyContent = errors.New("extracted content is empty")

type Fetcher struct {
	renderer     Renderer
	maxTextRunes int
}

func NewFetcher(renderer Renderer, maxTextRunes int) Fetcher {
	if maxTextRunes <= 0 {
		maxTextRunes = defaultMaxTextRunes
	}
	return Fetcher{renderer: renderer, maxTextRunes: maxTextRunes}
}

// Fetch renders rawURL and returns its visible text and same-site links.
// Any error, including an empty page, means the page yielded nothing usable.
func (f Fetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	if f.renderer == nil {
		return Page{}, errors.New("fetcher has no renderer")
	}
	doc, err := f.renderer.Render(ctx, rawURL)
	if err != nil {
		return Page{URL: rawURL}, fmt.Errorf("render %s (%s): %w", rawURL, doc.Status, err)
	}

	page := Page{
		URL:       rawURL,
		FinalURL:  doc.FinalURL,
		Truncated: doc.Truncated,
		FetchedAt: doc.FetchedAt,
	}
	if page.FinalURL == "" {
		page.FinalURL = rawURL
	}

	title, text, err := extractText(doc.ContentType, doc.Body, f.maxTextRunes)
	if err != nil {
		return page, fmt.Errorf("extract %s: %w", rawURL, err)
	}
	page.Title = title
	page.Text = text
	if strings.TrimSpace(page.Text) == "" {
		return page, ErrEmptyContent
	}

	if isHTML(doc.ContentType) {
		links, err := HarvestLinks(page.FinalURL, doc.Body)
		if err != nil {
			return page, fmt.Errorf("harvest links %s: %w", rawURL, err)
		}
		page.Links = links
	}
	return page, nil
}

func isHTML(contentType string) bool {
	switch strings.ToLower(strings.TrimSpace(contentType)) {
	case "text/html", "application/xhtml+xml":
		return true
	}
	return false
}
