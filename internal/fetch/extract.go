package fetch

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"rsc.io/pdf"
)

var ErrUnsupportedContentType = errors.New("unsupported content type")

const maxPDFRunes = 200_000

func extractText(contentType string, body []byte, maxRunes int) (title, text string, err error) {
	mediaType := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case mediaType == "text/html", mediaType == "application/xhtml+xml":
		title, text, err = extractHTMLText(body)
	case mediaType == "application/json":
		text = extractJSONText(body)
	case mediaType == "application/pdf":
		text, err = extractPDFText(body)
	case strings.HasPrefix(mediaType, "text/"):
		text = string(body)
	default:
		return "", "", ErrUnsupportedContentType
	}
	if err != nil {
		return "", "", err
	}
	return trimToRunes(strings.TrimSpace(title), 240), trimToRunes(normalizeText(text), maxRunes), nil
}

func extractJSONText(data []byte) string {
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		return string(data)
	}
	return pretty.String()
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var builder strings.Builder
	runes := 0
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		for _, item := range page.Content().Text {
			chunk := strings.TrimSpace(item.S)
			if chunk == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteByte('\n')
			}
			builder.WriteString(chunk)
			runes += utf8.RuneCountInString(chunk) + 1
			if runes >= maxPDFRunes {
				return builder.String(), nil
			}
		}
	}
	return builder.String(), nil
}

func extractHTMLText(data []byte) (title, text string, err error) {
	doc, err := html.Parse(bytes.NewReader(data))
	if err != nil {
		return "", "", err
	}
	var builder strings.Builder
	walkVisibleText(doc, false, &builder)
	return findTitle(doc), builder.String(), nil
}

func findTitle(node *html.Node) string {
	if node == nil {
		return ""
	}
	if node.Type == html.ElementNode && strings.EqualFold(node.Data, "title") {
		var builder strings.Builder
		for child := node.FirstChild; child != nil; child = child.NextSibling {
			if child.Type == html.TextNode {
				builder.WriteString(child.Data)
			}
		}
		return strings.TrimSpace(builder.String())
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		if value := findTitle(child); value != "" {
			return value
		}
	}
	return ""
}

// walkVisibleText writes one line per text node, skipping anything a
// browser would not show.
func walkVisibleText(node *html.Node, skip bool, out *strings.Builder) {
	if node.Type == html.ElementNode {
		switch strings.ToLower(node.Data) {
		case "script", "style", "noscript", "template", "svg", "head":
			skip = true
		}
	}
	if node.Type == html.TextNode && !skip {
		if trimmed := strings.TrimSpace(node.Data); trimmed != "" {
			out.WriteString(trimmed)
			out.WriteByte('\n')
		}
	}
	for child := node.FirstChild; child != nil; child = child.NextSibling {
		walkVisibleText(child, skip, out)
	}
}

func normalizeText(raw string) string {
	normalized := strings.ReplaceAll(raw, "\r\n", "\n")
	normalized = strings.ToValidUTF8(normalized, "")

	lines := strings.Split(normalized, "\n")
	compact := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		compact = append(compact, strings.Join(strings.Fields(trimmed), " "))
	}
	return strings.Join(compact, "\n")
}

func trimToRunes(raw string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(raw) <= limit {
		return raw
	}
	return string([]rune(raw)[:limit])
}
