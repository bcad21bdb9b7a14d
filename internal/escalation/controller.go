// Package escalation asks an external classifier about messages the rule
// engine could not settle, then applies conservative overrides to its verdict.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/edgard/jaiminho/internal/domain"
	apperrors "github.com/edgard/jaiminho/internal/errors"
	"github.com/edgard/jaiminho/internal/metrics"
)

// DefaultTimeout bounds a single classifier call.
const DefaultTimeout = 10 * time.Second

// fallbackConfidence is the confidence reported when the classifier fails.
const fallbackConfidence = 0.5

// Classifier answers whether a message is urgent.
type Classifier interface {
	ClassifyUrgency(ctx context.Context, q domain.UrgencyQuery) (*domain.UrgencyVerdict, error)
}

// StatsProvider supplies sender history. It returns nil, nil for unknown senders.
type StatsProvider interface {
	GetSenderHistory(ctx context.Context, tenantID, userID, senderPhone string) (*domain.HistoricalInterruptionData, error)
}

// Outcome is the escalation result plus what produced it.
type Outcome struct {
	Result    domain.UrgencyResult
	Verdict   *domain.UrgencyVerdict
	Overrides []string
	Fallback  bool
	History   *domain.HistoricalInterruptionData
}

// Controller runs escalation for undecided messages.
type Controller struct {
	classifier Classifier
	stats      StatsProvider
	timeout    time.Duration
	logger     *slog.Logger
}

// NewController creates a controller. classifier and stats may be nil; a nil
// classifier makes every escalation fall back to not urgent.
func NewController(classifier Classifier, stats StatsProvider, logger *slog.Logger, timeout time.Duration) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Controller{
		classifier: classifier,
		stats:      stats,
		timeout:    timeout,
		logger:     logger.With("component", "escalation"),
	}
}

// Escalate returns the adjusted urgency verdict for msg. It never fails: any
// classifier problem yields a not-urgent result naming the failure.
func (c *Controller) Escalate(ctx context.Context, msg *domain.NormalizedMessage, hist *domain.HistoricalInterruptionData) domain.UrgencyResult {
	return c.Decide(ctx, msg, hist).Result
}

// Decide is Escalate with the intermediate verdict and fired overrides exposed.
func (c *Controller) Decide(ctx context.Context, msg *domain.NormalizedMessage, hist *domain.HistoricalInterruptionData) Outcome {
	if hist == nil {
		hist = c.fetchHistory(ctx, msg)
	}

	verdict, err := c.classify(ctx, msg, hist)
	if err != nil {
		kind := failureKind(err)
		c.logger.WarnContext(ctx, "Urgency classifier failed, using conservative default",
			"message_id", msg.MessageID,
			"failure", kind,
			"error", err,
		)
		metrics.EscalationOutcomes.WithLabelValues("fallback").Inc()
		return Outcome{
			Result: domain.UrgencyResult{
				Urgent:     false,
				Confidence: fallbackConfidence,
				Reason:     fmt.Sprintf("%s: %v", kind, err),
			},
			Fallback: true,
			History:  hist,
		}
	}

	result := domain.UrgencyResult{
		Urgent:     verdict.Urgent,
		Confidence: domain.Clamp01(verdict.Confidence),
		Reason:     verdict.Reason,
	}
	result, fired := applyOverrides(result, msg, hist)
	result.Confidence = domain.Clamp01(result.Confidence)

	outcome := "not_urgent"
	switch {
	case result.Urgent:
		outcome = "urgent"
	case len(fired) > 0:
		outcome = "downgraded"
	}
	metrics.EscalationOutcomes.WithLabelValues(outcome).Inc()

	c.logger.InfoContext(ctx, "Escalation decided",
		"message_id", msg.MessageID,
		"classifier_urgent", verdict.Urgent,
		"classifier_confidence", verdict.Confidence,
		"urgent", result.Urgent,
		"confidence", result.Confidence,
		"overrides", fired,
	)
	return Outcome{Result: result, Verdict: verdict, Overrides: fired, History: hist}
}

func (c *Controller) fetchHistory(ctx context.Context, msg *domain.NormalizedMessage) *domain.HistoricalInterruptionData {
	if c.stats == nil {
		return nil
	}
	hist, err := c.stats.GetSenderHistory(ctx, msg.TenantID, msg.UserID, msg.SenderPhone)
	if err != nil {
		c.logger.WarnContext(ctx, "Sender history unavailable, treating as first contact",
			"message_id", msg.MessageID, "error", err)
		return nil
	}
	return hist
}

func (c *Controller) classify(ctx context.Context, msg *domain.NormalizedMessage, hist *domain.HistoricalInterruptionData) (*domain.UrgencyVerdict, error) {
	if c.classifier == nil {
		return nil, apperrors.NewClassifierUnavailableError("classifier not configured", nil)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	verdict, err := c.classifier.ClassifyUrgency(callCtx, domain.UrgencyQuery{
		Message:     *msg,
		History:     hist,
		HistoryText: RenderHistory(hist),
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
	if math.IsNaN(verdict.Confidence) || math.IsInf(verdict.Confidence, 0) {
		return nil, apperrors.NewMalformedResponseError("classifier confidence is not a number", nil)
	}
	return verdict, nil
}

func failureKind(err error) string {
	switch apperrors.Code(err) {
	case apperrors.CodeMalformedResponse:
		return "malformed classifier response"
	default:
		return "classifier unavailable"
	}
}
