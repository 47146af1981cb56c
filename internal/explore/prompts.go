package explore

import (
	"fmt"
	"strings"

	"sitescout/internal/fetch"
)

const (
	maxPromptPageRunes    = 4000
	maxPromptContextRunes = 100
	notAvailable          = "N/A"
)

func buildScorePrompt(url string, link fetch.LinkContext, goal string) string {
	var b strings.Builder
	b.WriteString("You score how likely a link on a website leads to the answer for a user goal. Respond with strict JSON only.\n")
	b.WriteString("Schema: {\"score\":number,\"reasoning\":string}\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Anchor text, URL path or surrounding context that literally matches the goal's key terms (product, item, keyword) scores 9-10.\n")
	b.WriteString("- Prefer links that name the thing asked about over generic calls to action such as \"Shop now\" or \"Learn more\".\n")
	b.WriteString("- Purely navigational, category, help, shipping or unrelated links score 0-3.\n")
	b.WriteString("- Everything else scores 4-8 by how closely it relates to the goal.\n")
	b.WriteString("- The score must be between 0 and 10. Reasoning is one line.\n")
	b.WriteString("\nGoal:\n")
	b.WriteString(strings.TrimSpace(goal))
	b.WriteString("\n\nLink:\n")
	b.WriteString(fmt.Sprintf("URL: %s\n", url))
	b.WriteString(fmt.Sprintf("Anchor text: %s\n", orNotAvailable(link.AnchorText)))
	b.WriteString(fmt.Sprintf("Title attribute: %s\n", orNotAvailable(link.Title)))
	b.WriteString(fmt.Sprintf("Aria label: %s\n", orNotAvailable(link.AriaLabel)))
	b.WriteString(fmt.Sprintf("URL path: %s\n", orNotAvailable(link.URLPath)))
	b.WriteString(fmt.Sprintf("Surrounding context: %s\n", orNotAvailable(truncateRunes(link.ParentContext, maxPromptContextRunes))))
	return strings.TrimSpace(b.String())
}

func buildExtractPrompt(pageText, goal, url string) string {
	var b strings.Builder
	b.WriteString("You extract data from a web page that answers a user goal. Respond with strict JSON only.\n")
	b.WriteString("Schema: {\"satisfies_goal\":boolean,\"data\":any,\"confidence\":number,\"item_count\":integer,\"data_type\":\"actual_data|categories|navigation|none\",\"reasoning\":string}\n")
	b.WriteString("Rules:\n")
	b.WriteString("- Only literal instance-level data counts as an answer: component names (Button, Card, Dialog), prices ($10/month), endpoint paths (/api/users).\n")
	b.WriteString("- A page that only names the topic (\"Components\", \"Pricing\", \"API docs\") without the data itself gets confidence 0-3 and satisfies_goal false.\n")
	b.WriteString("- Literal data gets confidence 7-10 and satisfies_goal true.\n")
	b.WriteString("- Confidence must be between 0 and 10. item_count is the number of data items found.\n")
	b.WriteString("- Set data to null when nothing was found.\n")
	b.WriteString("\nGoal:\n")
	b.WriteString(strings.TrimSpace(goal))
	b.WriteString(fmt.Sprintf("\n\nURL: %s\n", url))
	b.WriteString(fmt.Sprintf("\nPage content (first %d characters):\n", maxPromptPageRunes))
	b.WriteString(truncateRunes(pageText, maxPromptPageRunes))
	return strings.TrimSpace(b.String())
}

func orNotAvailable(value string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return notAvailable
}

func truncateRunes(raw string, limit int) string {
	runes := []rune(raw)
	if len(runes) <= limit {
		return raw
	}
	return string(runes[:limit])
}
