package fetch

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const maxParentContextRunes = 200

// HarvestLinks collects same-site anchors from an HTML body in document
// order. The first occurrence of a canonical URL wins.
func HarvestLinks(pageURL string, body []byte) ([]Link, error) {
	base, err := url.Parse(strings.TrimSpace(pageURL))
	if err != nil {
		return nil, fmt.Errorf("parse page url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	links := make([]Link, 0)
	seen := make(map[string]struct{})
	doc.Find("a[href]").Each(func(_ int, anchor *goquery.Selection) {
		href, _ := anchor.Attr("href")
		canonical, parsed, ok := resolveSameSite(base, href)
		if !ok {
			return
		}
		if _, exists := seen[canonical]; exists {
			return
		}
		seen[canonical] = struct{}{}

		title, _ := anchor.Attr("title")
		ariaLabel, _ := anchor.Attr("aria-label")
		links = append(links, Link{
			URL: canonical,
			Context: LinkContext{
				AnchorText:    collapseSpace(anchor.Text()),
				ParentContext: trimToRunes(collapseSpace(anchor.Parent().Text()), maxParentContextRunes),
				Title:         strings.TrimSpace(title),
				AriaLabel:     strings.TrimSpace(ariaLabel),
				URLPath:       parsed.Path,
			},
		})
	})
	return links, nil
}

func collapseSpace(raw string) string {
	return strings.Join(strings.Fields(raw), " ")
}
