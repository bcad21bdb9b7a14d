// Package llm adapts hosted language models into the urgency and category
// classifiers used by escalation and routing.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/edgard/jaiminho/internal/config"
)

// Call names identify which classifier prompt a request carries.
const (
	CallUrgency  = "urgency"
	CallCategory = "category"
)

// ErrTransient marks provider failures worth retrying.
var ErrTransient = errors.New("transient provider error")

// ErrEmptyResponse is returned when a provider answers without text.
var ErrEmptyResponse = errors.New("empty completion")

// CompletionRequest is a single-turn JSON completion.
type CompletionRequest struct {
	Call   string
	System string
	Prompt string
}

type CompletionResponse struct {
	Content   string
	Model     string
	TokensIn  int
	TokensOut int
}

// Completer sends one prompt to a model provider.
type Completer interface {
	Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error)
	Name() string
}

// NewCompleter builds the completer selected by cfg.Provider. It returns
// nil, nil for provider "none".
func NewCompleter(ctx context.Context, cfg config.ClassifierConfig) (Completer, error) {
	switch cfg.Provider {
	case "", "none":
		return nil, nil
	case "gemini":
		return NewGeminiCompleter(ctx, cfg)
	case "openai":
		return NewOpenAICompleter(cfg)
	case "anthropic":
		return NewAnthropicCompleter(cfg)
	default:
		return nil, fmt.Errorf("unknown classifier provider %q", cfg.Provider)
	}
}

func transient(err error) error {
	return fmt.Errorf("%w: %w", ErrTransient, err)
}

func retryableStatus(code int) bool {
	return code == 429 || code >= 500
}
