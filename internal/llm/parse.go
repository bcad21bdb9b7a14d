package llm

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/edgard/jaiminho/internal/domain"
)

var (
	errNoJSONObject = errors.New("no JSON object in response")
	errMissingField = errors.New("missing required field")
)

// extractJSON returns the outermost {...} span of s, tolerating markdown
// code fences and chatter around the object.
func extractJSON(s string) (string, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return "", errNoJSONObject
	}
	return s[start : end+1], nil
}

type urgencyPayload struct {
	Urgent     *bool    `json:"urgent"`
	Decision   string   `json:"decision"`
	Confidence *float64 `json:"confidence"`
	Reason     string   `json:"reason"`
	Reasoning  string   `json:"reasoning"`
}

// parseUrgency accepts {"urgent": bool} or the older {"decision": "urgent"|"not_urgent"} shape.
func parseUrgency(raw string) (*domain.UrgencyVerdict, error) {
	body, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	var p urgencyPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, err
	}

	v := &domain.UrgencyVerdict{Confidence: 0.5, Reason: p.Reason}
	switch {
	case p.Urgent != nil:
		v.Urgent = *p.Urgent
	case strings.EqualFold(p.Decision, "urgent"):
		v.Urgent = true
	case strings.EqualFold(p.Decision, "not_urgent"):
		v.Urgent = false
	default:
		return nil, errors.Join(errMissingField, errors.New("urgent"))
	}
	if p.Confidence != nil {
		v.Confidence = domain.Clamp01(*p.Confidence)
	}
	if v.Reason == "" {
		v.Reason = p.Reasoning
	}
	return v, nil
}

type categoryPayload struct {
	Category       string   `json:"category"`
	Summary        string   `json:"summary"`
	Routing        string   `json:"routing"`
	Classification string   `json:"classification"`
	Reasoning      string   `json:"reasoning"`
	Confidence     *float64 `json:"confidence"`
}

func parseCategory(raw string) (*domain.CategoryVerdict, error) {
	body, err := extractJSON(raw)
	if err != nil {
		return nil, err
	}
	var p categoryPayload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, err
	}

	routing := p.Routing
	if routing == "" {
		routing = p.Classification
	}
	if p.Category == "" && routing == "" {
		return nil, errors.Join(errMissingField, errors.New("category"))
	}

	v := &domain.CategoryVerdict{
		Category:   strings.TrimSpace(p.Category),
		Summary:    strings.TrimSpace(p.Summary),
		Routing:    strings.ToLower(strings.TrimSpace(routing)),
		Reasoning:  p.Reasoning,
		Confidence: 0.5,
	}
	if p.Confidence != nil {
		v.Confidence = domain.Clamp01(*p.Confidence)
	}
	return v, nil
}
