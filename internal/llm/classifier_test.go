package llm

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/edgard/jaiminho/internal/config"
	"github.com/edgard/jaiminho/internal/domain"
	apperrors "github.com/edgard/jaiminho/internal/errors"
)

type fakeCompleter struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	requests  []*CompletionRequest
}

func (f *fakeCompleter) Name() string { return "fake" }

func (f *fakeCompleter) Complete(_ context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := len(f.requests)
	f.requests = append(f.requests, req)
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if i < len(f.responses) {
		return &CompletionResponse{Content: f.responses[i]}, nil
	}
	return &CompletionResponse{Content: f.responses[len(f.responses)-1]}, nil
}

func testConfig() config.ClassifierConfig {
	return config.ClassifierConfig{
		Timeout:              time.Second,
		MaxRetries:           2,
		RetryDelay:           time.Millisecond,
		BreakerMaxFailures:   10,
		BreakerResetInterval: time.Minute,
	}
}

func testMessage() domain.NormalizedMessage {
	return domain.NormalizedMessage{
		MessageID:   "m1",
		SenderPhone: "5511999990000",
		SenderName:  "Ana",
		Type:        domain.MessageText,
		Content:     domain.MessageContent{Text: "preciso falar com você agora"},
	}
}

func TestClassifyUrgency(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		response string
		want     domain.UrgencyVerdict
	}{
		{"plain json", `{"urgent": true, "confidence": 0.9, "reason": "emergência"}`, domain.UrgencyVerdict{Urgent: true, Confidence: 0.9, Reason: "emergência"}},
		{"fenced json", "```json\n{\"urgent\": false, \"confidence\": 0.7, \"reason\": \"conversa\"}\n```", domain.UrgencyVerdict{Confidence: 0.7, Reason: "conversa"}},
		{"decision shape", `{"decision": "urgent", "confidence": 0.8, "reasoning": "prazo"}`, domain.UrgencyVerdict{Urgent: true, Confidence: 0.8, Reason: "prazo"}},
		{"confidence clamped", `{"urgent": true, "confidence": 3}`, domain.UrgencyVerdict{Urgent: true, Confidence: 1}},
		{"missing confidence", `Sure: {"urgent": false}`, domain.UrgencyVerdict{Confidence: 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := NewClassifier(&fakeCompleter{responses: []string{tt.response}}, testConfig(), nil)
			got, err := c.ClassifyUrgency(context.Background(), domain.UrgencyQuery{Message: testMessage()})
			if err != nil {
				t.Fatalf("ClassifyUrgency() error = %v", err)
			}
			if *got != tt.want {
				t.Errorf("ClassifyUrgency() = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestClassifyUrgencyMalformed(t *testing.T) {
	t.Parallel()

	for _, response := range []string{"not json", `{"confidence": 0.9}`, `{"urgent": "maybe"}`} {
		c := NewClassifier(&fakeCompleter{responses: []string{response}}, testConfig(), nil)
		_, err := c.ClassifyUrgency(context.Background(), domain.UrgencyQuery{Message: testMessage()})
		if apperrors.Code(err) != apperrors.CodeMalformedResponse {
			t.Errorf("response %q: error = %v, want malformed response", response, err)
		}
	}
}

func TestClassifierRetries(t *testing.T) {
	t.Parallel()

	t.Run("transient errors are retried", func(t *testing.T) {
		t.Parallel()
		fake := &fakeCompleter{
			errs:      []error{transient(errors.New("503")), nil},
			responses: []string{"", `{"urgent": true, "confidence": 0.9}`},
		}
		c := NewClassifier(fake, testConfig(), nil)
		got, err := c.ClassifyUrgency(context.Background(), domain.UrgencyQuery{Message: testMessage()})
		if err != nil || !got.Urgent {
			t.Fatalf("ClassifyUrgency() = %+v, %v", got, err)
		}
		if len(fake.requests) != 2 {
			t.Errorf("requests = %d, want 2", len(fake.requests))
		}
	})

	t.Run("permanent errors are not retried", func(t *testing.T) {
		t.Parallel()
		fake := &fakeCompleter{errs: []error{errors.New("401 unauthorized")}, responses: []string{"{}"}}
		c := NewClassifier(fake, testConfig(), nil)
		_, err := c.ClassifyUrgency(context.Background(), domain.UrgencyQuery{Message: testMessage()})
		if apperrors.Code(err) != apperrors.CodeClassifierUnavailable {
			t.Errorf("error = %v, want classifier unavailable", err)
		}
		if len(fake.requests) != 1 {
			t.Errorf("requests = %d, want 1", len(fake.requests))
		}
	})

	t.Run("empty completion is malformed", func(t *testing.T) {
		t.Parallel()
		fake := &fakeCompleter{errs: []error{ErrEmptyResponse}, responses: []string{""}}
		c := NewClassifier(fake, testConfig(), nil)
		_, err := c.ClassifyCategory(context.Background(), domain.CategoryQuery{Message: testMessage()})
		if apperrors.Code(err) != apperrors.CodeMalformedResponse {
			t.Errorf("error = %v, want malformed response", err)
		}
	})
}

func TestClassifyCategory(t *testing.T) {
	t.Parallel()

	fake := &fakeCompleter{responses: []string{
		`{"category": "delivery", "summary": "Pedido a caminho", "routing": "Digest", "reasoning": "entrega", "confidence": 0.8}`,
	}}
	c := NewClassifier(fake, testConfig(), nil)
	got, err := c.ClassifyCategory(context.Background(), domain.CategoryQuery{
		Message:           testMessage(),
		UrgencyDecision:   domain.DecisionNotUrgent,
		UrgencyConfidence: 0.8,
	})
	if err != nil {
		t.Fatalf("ClassifyCategory() error = %v", err)
	}
	want := domain.CategoryVerdict{Category: "delivery", Summary: "Pedido a caminho", Routing: "digest", Reasoning: "entrega", Confidence: 0.8}
	if *got != want {
		t.Errorf("ClassifyCategory() = %+v, want %+v", *got, want)
	}

	req := fake.requests[0]
	if req.Call != CallCategory || !strings.Contains(req.Prompt, "NOT_URGENT") {
		t.Errorf("unexpected request %+v", req)
	}
	if !strings.Contains(req.Prompt, "financial") {
		t.Error("prompt should list category ids")
	}
}

func TestUrgencyPromptIncludesHistory(t *testing.T) {
	t.Parallel()

	prompt := urgencyPrompt(domain.UrgencyQuery{Message: testMessage(), HistoryText: "First contact: no previous messages from this sender."})
	for _, want := range []string{"Ana", "preciso falar", "First contact"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestNewCompleter(t *testing.T) {
	t.Parallel()

	c, err := NewCompleter(context.Background(), config.ClassifierConfig{Provider: "none"})
	if c != nil || err != nil {
		t.Errorf("none provider = %v, %v", c, err)
	}
	if _, err := NewCompleter(context.Background(), config.ClassifierConfig{Provider: "bogus"}); err == nil {
		t.Error("expected error for unknown provider")
	}
	if _, err := NewCompleter(context.Background(), config.ClassifierConfig{Provider: "openai"}); err == nil {
		t.Error("expected error for missing api key")
	}
	oc, err := NewCompleter(context.Background(), config.ClassifierConfig{Provider: "openai", APIKey: "k"})
	if err != nil || oc.Name() != "openai" {
		t.Errorf("openai completer = %v, %v", oc, err)
	}
}
