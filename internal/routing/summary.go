package routing

import (
	"strings"
	"unicode/utf8"

	"github.com/edgard/jaiminho/internal/domain"
)

const (
	maxBodyRunes    = 100
	maxSummaryRunes = 150
	ellipsis        = "..."
)

// Summarize builds "<sender>: <body>", with body cut to 100 characters and the
// whole summary capped at 150 characters ending in an ellipsis when cut.
func Summarize(sender, body string) string {
	body = strings.Join(strings.Fields(body), " ")
	body = truncateRunes(body, maxBodyRunes)

	summary := body
	if sender = strings.TrimSpace(sender); sender != "" {
		summary = sender + ": " + body
	}
	return truncateRunes(summary, maxSummaryRunes)
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return strings.TrimSpace(string(runes[:limit-len(ellipsis)])) + ellipsis
}

func messageSummary(msg *domain.NormalizedMessage, classifierSummary string) string {
	body := strings.TrimSpace(classifierSummary)
	if body == "" {
		body = msg.FullText()
	}
	if body == "" {
		body = "[" + string(msg.Type) + "]"
	}
	return Summarize(msg.DisplaySender(), body)
}
