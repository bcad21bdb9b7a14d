// Package urgency implements the deterministic urgency rule engine that
// short-circuits classifier calls for clearly urgent or clearly ignorable messages.
package urgency

import (
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/edgard/jaiminho/internal/domain"
	"github.com/edgard/jaiminho/internal/metrics"
)

const (
	maxEvidence        = 5
	minMeaningfulRunes = 10
	groupConfidence    = 0.95
	shortConfidence    = 0.70
)

type compiledRuleSet struct {
	RuleSet
	keywords []string
}

// Engine evaluates messages against an ordered evidence table.
// Evaluation is pure; the engine only keeps observability counters.
type Engine struct {
	logger *slog.Logger
	rules  []compiledRuleSet
	stats  *counters
}

// Option customizes an Engine.
type Option func(*Engine)

// WithRuleSets replaces the content rules. Order is evaluation order.
func WithRuleSets(sets ...RuleSet) Option {
	return func(e *Engine) {
		e.rules = compileRuleSets(sets)
	}
}

// NewEngine builds an engine with the default multilingual rule table.
func NewEngine(logger *slog.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	e := &Engine{
		logger: logger.With("component", "urgency_engine"),
		rules:  compileRuleSets(DefaultRuleSets()),
		stats:  newCounters(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate returns the first matching rule for msg, in order: group, content
// rules, empty or short text, and finally UNDECIDED.
func (e *Engine) Evaluate(msg *domain.NormalizedMessage) domain.RuleMatch {
	match := e.evaluate(msg)

	e.stats.record(match)
	metrics.RuleEvaluations.WithLabelValues(match.RuleName, string(match.Decision)).Inc()
	e.logger.Debug("Evaluated message urgency",
		"message_id", msg.MessageID,
		"rule", match.RuleName,
		"decision", match.Decision,
		"confidence", match.Confidence,
	)
	return match
}

func (e *Engine) evaluate(msg *domain.NormalizedMessage) domain.RuleMatch {
	if msg.Metadata.IsGroup {
		return domain.RuleMatch{
			Decision:        domain.DecisionNotUrgent,
			RuleName:        RuleGroupMessage,
			Confidence:      groupConfidence,
			MatchedEvidence: []string{},
			Reasoning:       "group messages are not urgent by rule",
		}
	}

	text := msg.FullText()
	if text != "" {
		for _, rs := range e.rules {
			evidence := rs.match(text)
			if len(evidence) == 0 || len(evidence) < rs.MinMatches {
				continue
			}
			confidence := rs.Base + rs.Step*float64(len(evidence))
			if confidence > rs.Max {
				confidence = rs.Max
			}
			capped := evidence
			if len(capped) > maxEvidence {
				capped = capped[:maxEvidence]
			}
			return domain.RuleMatch{
				Decision:        rs.Decision,
				RuleName:        rs.Name,
				Confidence:      confidence,
				MatchedEvidence: capped,
				Reasoning:       fmt.Sprintf("%s keywords/patterns detected: %d matches", rs.Label, len(evidence)),
			}
		}
	}

	if utf8.RuneCountInString(strings.TrimSpace(text)) < minMeaningfulRunes {
		return domain.RuleMatch{
			Decision:        domain.DecisionNotUrgent,
			RuleName:        RuleEmptyOrShort,
			Confidence:      shortConfidence,
			MatchedEvidence: []string{},
			Reasoning:       "empty or very short message",
		}
	}

	return domain.RuleMatch{
		Decision:        domain.DecisionUndecided,
		RuleName:        RuleNoMatch,
		Confidence:      0,
		MatchedEvidence: []string{},
		Reasoning:       "no deterministic rule matched, classifier evaluation needed",
	}
}

// Stats returns a snapshot of the evaluation counters.
func (e *Engine) Stats() Stats {
	return e.stats.snapshot()
}

// ResetStats zeroes the evaluation counters.
func (e *Engine) ResetStats() {
	e.stats.reset()
}

func compileRuleSets(sets []RuleSet) []compiledRuleSet {
	out := make([]compiledRuleSet, 0, len(sets))
	for _, rs := range sets {
		out = append(out, compiledRuleSet{RuleSet: rs, keywords: flattenKeywords(rs.Keywords)})
	}
	return out
}

// flattenKeywords lowercases and dedupes keywords, ordering languages by name
// so evaluation output is stable.
func flattenKeywords(byLang map[string][]string) []string {
	langs := make([]string, 0, len(byLang))
	for lang := range byLang {
		langs = append(langs, lang)
	}
	sort.Strings(langs)

	seen := make(map[string]struct{})
	var out []string
	for _, lang := range langs {
		for _, kw := range byLang[lang] {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw == "" {
				continue
			}
			if _, dup := seen[kw]; dup {
				continue
			}
			seen[kw] = struct{}{}
			out = append(out, kw)
		}
	}
	return out
}

// match returns distinct evidence: keyword hits first, then pattern hits.
// Evidence differing only by case counts once.
func (rs *compiledRuleSet) match(text string) []string {
	lower := strings.ToLower(text)
	seen := make(map[string]struct{})
	var evidence []string
	add := func(s string) {
		key := strings.ToLower(s)
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		evidence = append(evidence, s)
	}

	for _, kw := range rs.keywords {
		if strings.Contains(lower, kw) {
			add(kw)
		}
	}
	for _, re := range rs.Patterns {
		for _, m := range re.FindAllString(text, -1) {
			add(m)
		}
	}
	return evidence
}
