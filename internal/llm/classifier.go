package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/edgard/jaiminho/internal/config"
	"github.com/edgard/jaiminho/internal/domain"
	apperrors "github.com/edgard/jaiminho/internal/errors"
	"github.com/edgard/jaiminho/internal/metrics"
	"github.com/edgard/jaiminho/internal/resilience"
)

// Classifier answers urgency and category questions with a Completer. It
// satisfies both escalation.Classifier and routing.Classifier.
type Classifier struct {
	completer Completer
	breaker   *resilience.Breaker
	retry     resilience.RetryConfig
	logger    *slog.Logger
}

// NewClassifier wraps completer with a circuit breaker and retries tuned by cfg.
func NewClassifier(completer Completer, cfg config.ClassifierConfig, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	logger = logger.With("component", "classifier", "provider", completer.Name())

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries + 1
	if cfg.RetryDelay > 0 {
		retry.InitialInterval = cfg.RetryDelay
	}
	retry.Retryable = func(err error) bool { return errors.Is(err, ErrTransient) }

	breaker := resilience.NewBreaker(resilience.BreakerConfig{
		Name:          "classifier_" + completer.Name(),
		MaxFailures:   cfg.BreakerMaxFailures,
		Timeout:       cfg.Timeout,
		ResetInterval: cfg.BreakerResetInterval,
		IsFailure: func(err error) bool {
			return !errors.Is(err, context.Canceled)
		},
	}, logger)

	return &Classifier{
		completer: completer,
		breaker:   breaker,
		retry:     retry,
		logger:    logger,
	}
}

// ClassifyUrgency asks the model whether q's message is urgent.
func (c *Classifier) ClassifyUrgency(ctx context.Context, q domain.UrgencyQuery) (*domain.UrgencyVerdict, error) {
	start := time.Now()
	content, err := c.complete(ctx, &CompletionRequest{
		Call:   CallUrgency,
		System: urgencySystemInstruction,
		Prompt: urgencyPrompt(q),
	})
	if err != nil {
		metrics.RecordClassifierCall(c.completer.Name(), CallUrgency, "error", time.Since(start).Seconds())
		return nil, err
	}

	verdict, err := parseUrgency(content)
	if err != nil {
		metrics.RecordClassifierCall(c.completer.Name(), CallUrgency, "malformed", time.Since(start).Seconds())
		c.logger.WarnContext(ctx, "unparseable urgency response", "error", err, "message_id", q.Message.MessageID)
		return nil, apperrors.NewMalformedResponseError("urgency response", err)
	}
	metrics.RecordClassifierCall(c.completer.Name(), CallUrgency, "ok", time.Since(start).Seconds())
	return verdict, nil
}

// ClassifyCategory asks the model for q's category and routing suggestion.
func (c *Classifier) ClassifyCategory(ctx context.Context, q domain.CategoryQuery) (*domain.CategoryVerdict, error) {
	start := time.Now()
	content, err := c.complete(ctx, &CompletionRequest{
		Call:   CallCategory,
		System: categorySystemInstruction,
		Prompt: categoryPrompt(q),
	})
	if err != nil {
		metrics.RecordClassifierCall(c.completer.Name(), CallCategory, "error", time.Since(start).Seconds())
		return nil, err
	}

	verdict, err := parseCategory(content)
	if err != nil {
		metrics.RecordClassifierCall(c.completer.Name(), CallCategory, "malformed", time.Since(start).Seconds())
		c.logger.WarnContext(ctx, "unparseable category response", "error", err, "message_id", q.Message.MessageID)
		return nil, apperrors.NewMalformedResponseError("category response", err)
	}
	metrics.RecordClassifierCall(c.completer.Name(), CallCategory, "ok", time.Since(start).Seconds())
	return verdict, nil
}

// complete runs req through retries and the breaker and returns the raw text.
func (c *Classifier) complete(ctx context.Context, req *CompletionRequest) (string, error) {
	var content string
	err := resilience.WithRetry(ctx, c.logger, func(ctx context.Context) error {
		return c.breaker.Execute(ctx, func(ctx context.Context) error {
			resp, err := c.completer.Complete(ctx, req)
			if err != nil {
				return err
			}
			content = resp.Content
			return nil
		})
	}, c.retry)

	switch {
	case err == nil:
		return content, nil
	case errors.Is(err, ErrEmptyResponse):
		return "", apperrors.NewMalformedResponseError(req.Call+" response", err)
	default:
		c.logger.WarnContext(ctx, "classifier call failed", "call", req.Call, "error", err)
		return "", apperrors.NewClassifierUnavailableError(fmt.Sprintf("%s call failed", req.Call), err)
	}
}
