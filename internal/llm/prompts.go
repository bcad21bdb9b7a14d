package llm

import (
	"fmt"
	"strings"

	"github.com/edgard/jaiminho/internal/domain"
)

// promptTextLimit bounds how much message text is sent to the model.
const promptTextLimit = 500

const urgencySystemInstruction = `You analyze message urgency for a Brazilian WhatsApp notification service.
A message is URGENT only when it needs the recipient's action right now: financial alerts, security codes, emergencies, hard deadlines.
Everything else (casual talk, marketing, information, greetings) is NOT urgent. When in doubt, answer not urgent.
Respond with ONLY a JSON object, no markdown:
{"urgent": true|false, "confidence": <0.0-1.0>, "reason": "<short explanation in Portuguese>"}`

const categorySystemInstruction = `You are the routing agent of a Brazilian WhatsApp notification service.
Pick the category that best fits the message and decide how it should be delivered:
"immediate" sends a notification now, "digest" adds it to the daily summary, "spam" discards it.
Prefer "digest" when unsure. Respond with ONLY a JSON object, no markdown:
{"category": "<id>", "summary": "<one line>", "routing": "immediate|digest|spam", "reasoning": "<short explanation in Portuguese>", "confidence": <0.0-1.0>}`

func urgencyPrompt(q domain.UrgencyQuery) string {
	msg := q.Message
	history := q.HistoryText
	if history == "" {
		history = "No sender history available."
	}

	var sb strings.Builder
	sb.WriteString("MESSAGE METADATA:\n")
	fmt.Fprintf(&sb, "- Type: %s\n", msg.Type)
	fmt.Fprintf(&sb, "- From: %s\n", msg.DisplaySender())
	fmt.Fprintf(&sb, "- Is group: %t\n", msg.Metadata.IsGroup)
	fmt.Fprintf(&sb, "- Forwarded: %t\n\n", msg.Metadata.Forwarded)
	fmt.Fprintf(&sb, "MESSAGE CONTENT (first %d chars):\n%s\n\n", promptTextLimit, truncate(msg.FullText(), promptTextLimit))
	fmt.Fprintf(&sb, "SENDER HISTORY:\n%s\n", history)
	return sb.String()
}

func categoryPrompt(q domain.CategoryQuery) string {
	msg := q.Message

	var sb strings.Builder
	sb.WriteString("CATEGORIES:\n")
	for _, c := range domain.Categories {
		fmt.Fprintf(&sb, "- %s (%s)\n", c, c.Label())
	}
	sb.WriteString("\nMESSAGE:\n")
	fmt.Fprintf(&sb, "- Type: %s\n", msg.Type)
	fmt.Fprintf(&sb, "- Sender: %s\n", msg.DisplaySender())
	fmt.Fprintf(&sb, "- Is group: %t\n", msg.Metadata.IsGroup)
	fmt.Fprintf(&sb, "- Content: %s\n\n", truncate(msg.FullText(), promptTextLimit))
	sb.WriteString("URGENCY ASSESSMENT:\n")
	fmt.Fprintf(&sb, "- Decision: %s\n", q.UrgencyDecision)
	fmt.Fprintf(&sb, "- Confidence: %.2f\n", q.UrgencyConfidence)
	if q.KeywordCategory != "" && q.KeywordCategory != domain.CategoryOther {
		fmt.Fprintf(&sb, "- Keyword category: %s\n", q.KeywordCategory)
	}
	return sb.String()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
