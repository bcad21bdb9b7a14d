// Package routing assigns a category and summary to a message and reconciles
// the classifier's routing proposal with the urgency outcome.
package routing

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/edgard/jaiminho/internal/domain"
	apperrors "github.com/edgard/jaiminho/internal/errors"
)

// DefaultTimeout bounds a single category classifier call.
const DefaultTimeout = 10 * time.Second

const fallbackConfidence = 0.5

// Override rule names appended to reasoning.
const (
	OverrideUrgentHighConfidence    = "urgent_high_confidence"
	OverrideLowConfidence           = "low_confidence"
	OverrideNotUrgentHighConfidence = "not_urgent_high_confidence"
	OverrideInvalidRouting          = "invalid_routing"
)

// Classifier proposes a category, summary and routing for a message.
type Classifier interface {
	ClassifyCategory(ctx context.Context, q domain.CategoryQuery) (*domain.CategoryVerdict, error)
}

// Proposal is the classification before urgency reconciliation.
type Proposal struct {
	Result          domain.ClassificationResult
	KeywordCategory domain.Category
	Fallback        bool
}

// Router classifies messages into categories and final routing.
type Router struct {
	classifier Classifier
	timeout    time.Duration
	logger     *slog.Logger
	index      keywordIndex
}

// NewRouter creates a router. A nil classifier makes every proposal a fallback.
func NewRouter(classifier Classifier, logger *slog.Logger, timeout time.Duration) *Router {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Router{
		classifier: classifier,
		timeout:    timeout,
		logger:     logger.With("component", "classification_router"),
		index:      buildKeywordIndex(categoryKeywords),
	}
}

// Classify proposes and reconciles in one step.
func (r *Router) Classify(ctx context.Context, msg *domain.NormalizedMessage, decision domain.Decision, confidence float64) domain.ClassificationResult {
	result, _ := Reconcile(r.Propose(ctx, msg, decision, confidence), decision, confidence)
	return result
}

// KeywordCategory returns the keyword-matched category for text.
func (r *Router) KeywordCategory(text string) domain.Category {
	c, _ := r.index.match(text)
	return c
}

// Propose assigns the category and summary and asks the classifier for a
// routing proposal. Classifier failures produce the fallback proposal.
func (r *Router) Propose(ctx context.Context, msg *domain.NormalizedMessage, decision domain.Decision, confidence float64) Proposal {
	keywordCat := r.KeywordCategory(msg.FullText())

	verdict, err := r.classify(ctx, msg, keywordCat, decision, confidence)
	if err != nil {
		r.logger.WarnContext(ctx, "Category classifier failed, using fallback",
			"message_id", msg.MessageID,
			"error", err,
		)
		routing := domain.RoutingDigest
		if decision == domain.DecisionUrgent {
			routing = domain.RoutingImmediate
		}
		return Proposal{
			Result: domain.ClassificationResult{
				Category:   domain.CategoryOther,
				Summary:    messageSummary(msg, ""),
				Routing:    routing,
				Reasoning:  "classification fallback: " + err.Error(),
				Confidence: fallbackConfidence,
			},
			KeywordCategory: keywordCat,
			Fallback:        true,
		}
	}

	category := keywordCat
	if category == domain.CategoryOther {
		if c, ok := domain.ParseCategory(strings.TrimSpace(verdict.Category)); ok {
			category = c
		}
	}

	reasoning := strings.TrimSpace(verdict.Reasoning)
	routing, ok := domain.ParseRouting(strings.ToLower(strings.TrimSpace(verdict.Routing)))
	if !ok {
		reasoning = appendNote(reasoning, OverrideInvalidRouting)
	}

	return Proposal{
		Result: domain.ClassificationResult{
			Category:   category,
			Summary:    messageSummary(msg, verdict.Summary),
			Routing:    routing,
			Reasoning:  reasoning,
			Confidence: domain.Clamp01(verdict.Confidence),
		},
		KeywordCategory: keywordCat,
	}
}

// Reconcile applies the urgency overrides to a proposal, in order, and returns
// the final result and the overrides that changed the routing.
func Reconcile(p Proposal, decision domain.Decision, confidence float64) (domain.ClassificationResult, []string) {
	res := p.Result
	var fired []string
	set := func(to domain.Routing, rule string) {
		if res.Routing == to {
			return
		}
		res.Routing = to
		res.Reasoning = appendNote(res.Reasoning, rule)
		fired = append(fired, rule)
	}

	if decision == domain.DecisionUrgent && confidence > 0.75 {
		set(domain.RoutingImmediate, OverrideUrgentHighConfidence)
	}
	if confidence < 0.5 && res.Routing == domain.RoutingImmediate {
		set(domain.RoutingDigest, OverrideLowConfidence)
	}
	if decision == domain.DecisionNotUrgent && confidence > 0.7 && res.Routing == domain.RoutingImmediate {
		set(domain.RoutingDigest, OverrideNotUrgentHighConfidence)
	}
	return res, fired
}

func appendNote(reasoning, rule string) string {
	note := fmt.Sprintf("[routing adjusted: %s]", rule)
	if reasoning == "" {
		return note
	}
	return reasoning + " " + note
}

func (r *Router) classify(ctx context.Context, msg *domain.NormalizedMessage, keywordCat domain.Category, decision domain.Decision, confidence float64) (*domain.CategoryVerdict, error) {
	if r.classifier == nil {
		return nil, apperrors.NewClassifierUnavailableError("classifier not configured", nil)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	verdict, err := r.classifier.ClassifyCategory(callCtx, domain.CategoryQuery{
		Message:           *msg,
		KeywordCategory:   keywordCat,
		UrgencyDecision:   decision,
		UrgencyConfidence: confidence,
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewClassifierUnavailableError("classifier timed out", err)
		}
		return nil, err
	}
	if verdict == nil {
		return nil, apperrors.NewMalformedResponseError("classifier returned no verdict", nil)
	}
	if math.IsNaN(verdict.Confidence) {
		return nil, apperrors.NewMalformedResponseError("classifier confidence is not a number", nil)
	}
	return verdict, nil
}
