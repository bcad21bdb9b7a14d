package routing

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/edgard/jaiminho/internal/domain"
)

type stubClassifier struct {
	verdict *domain.CategoryVerdict
	err     error
}

func (s stubClassifier) ClassifyCategory(context.Context, domain.CategoryQuery) (*domain.CategoryVerdict, error) {
	return s.verdict, s.err
}

func msg(text string) *domain.NormalizedMessage {
	return &domain.NormalizedMessage{
		MessageID:   "m1",
		TenantID:    "t1",
		UserID:      "u1",
		SenderPhone: "5511999990000",
		SenderName:  "Ana",
		Type:        domain.MessageText,
		Content:     domain.MessageContent{Text: text},
	}
}

func TestKeywordCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		text string
		want domain.Category
	}{
		{"Sua encomenda foi enviada, código de rastreio BR123", domain.CategoryDelivery},
		{"Consulta com o dentista amanhã às 14h", domain.CategoryHealth},
		{"Reunião do projeto às 15h", domain.CategoryWork},
		{"Festa de aniversário do pai no sábado", domain.CategoryEvents},
		{"Mãe, paguei o boleto", domain.CategoryFinancial},
		{"Esta é uma mensagem automática, não responda", domain.CategoryAutomated},
		{"Promoção! Até 50% OFF, não perca!", domain.CategoryOther},
		{"Paisagem linda hoje", domain.CategoryOther},
	}

	r := NewRouter(nil, nil, 0)
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			t.Parallel()
			if got := r.KeywordCategory(tt.text); got != tt.want {
				t.Errorf("KeywordCategory() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	t.Parallel()

	if got := Summarize("Ana", "  Oi,\n tudo   bem? "); got != "Ana: Oi, tudo bem?" {
		t.Errorf("Summarize() = %q", got)
	}

	long := strings.Repeat("a", 120)
	got := Summarize("Ana", long)
	if want := "Ana: " + strings.Repeat("a", 97) + "..."; got != want {
		t.Errorf("body not cut at 100 characters: %q", got)
	}

	capped := Summarize(strings.Repeat("N", 80), strings.Repeat("b", 100))
	if n := utf8.RuneCountInString(capped); n > 150 {
		t.Errorf("summary has %d characters, want <= 150", n)
	}
	if !strings.HasSuffix(capped, "...") {
		t.Errorf("capped summary should end with an ellipsis: %q", capped)
	}

	accents := Summarize("Zé", strings.Repeat("ç", 150))
	if n := utf8.RuneCountInString(accents); n > 150 || !utf8.ValidString(accents) {
		t.Errorf("multibyte summary broken: %d runes, valid=%v", n, utf8.ValidString(accents))
	}
}

func TestReconcile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		proposed    domain.Routing
		decision    domain.Decision
		confidence  float64
		wantRouting domain.Routing
		wantRule    string
	}{
		{"urgent high confidence forces immediate", domain.RoutingDigest, domain.DecisionUrgent, 0.9, domain.RoutingImmediate, OverrideUrgentHighConfidence},
		{"urgent high confidence overrides spam", domain.RoutingSpam, domain.DecisionUrgent, 0.99, domain.RoutingImmediate, OverrideUrgentHighConfidence},
		{"urgent at threshold keeps proposal", domain.RoutingDigest, domain.DecisionUrgent, 0.75, domain.RoutingDigest, ""},
		{"low confidence demotes immediate", domain.RoutingImmediate, domain.DecisionUrgent, 0.4, domain.RoutingDigest, OverrideLowConfidence},
		{"confident not urgent demotes immediate", domain.RoutingImmediate, domain.DecisionNotUrgent, 0.8, domain.RoutingDigest, OverrideNotUrgentHighConfidence},
		{"not urgent at threshold keeps immediate", domain.RoutingImmediate, domain.DecisionNotUrgent, 0.7, domain.RoutingImmediate, ""},
		{"spam stays spam", domain.RoutingSpam, domain.DecisionNotUrgent, 0.95, domain.RoutingSpam, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := Proposal{Result: domain.ClassificationResult{Routing: tt.proposed, Reasoning: "model says so"}}
			got, fired := Reconcile(p, tt.decision, tt.confidence)
			if got.Routing != tt.wantRouting {
				t.Errorf("Routing = %q, want %q", got.Routing, tt.wantRouting)
			}
			if tt.wantRule == "" {
				if len(fired) != 0 || got.Reasoning != "model says so" {
					t.Errorf("unexpected override %v, reasoning %q", fired, got.Reasoning)
				}
				return
			}
			if len(fired) != 1 || fired[0] != tt.wantRule {
				t.Errorf("fired = %v, want [%s]", fired, tt.wantRule)
			}
			if !strings.HasPrefix(got.Reasoning, "model says so ") || !strings.Contains(got.Reasoning, "[routing adjusted: "+tt.wantRule+"]") {
				t.Errorf("Reasoning = %q", got.Reasoning)
			}
		})
	}
}

func TestConfidentNotUrgentNeverImmediate(t *testing.T) {
	t.Parallel()

	for _, conf := range []float64{0.701, 0.75, 0.9, 1} {
		for _, proposed := range []domain.Routing{domain.RoutingImmediate, domain.RoutingDigest, domain.RoutingSpam} {
			p := Proposal{Result: domain.ClassificationResult{Routing: proposed}}
			if got, _ := Reconcile(p, domain.DecisionNotUrgent, conf); got.Routing == domain.RoutingImmediate {
				t.Errorf("confidence %v, proposal %q routed immediate", conf, proposed)
			}
		}
	}
}

func TestClassify(t *testing.T) {
	t.Parallel()

	t.Run("classifier fills other category", func(t *testing.T) {
		t.Parallel()
		cl := stubClassifier{verdict: &domain.CategoryVerdict{
			Category: "💰 Financeiro", Summary: "Cobrança recebida", Routing: "digest", Reasoning: "bill", Confidence: 0.8,
		}}
		got := NewRouter(cl, nil, time.Second).Classify(context.Background(), msg("Chegou aquilo que falamos"), domain.DecisionNotUrgent, 0.6)
		if got.Category != domain.CategoryFinancial {
			t.Errorf("Category = %q, want financial", got.Category)
		}
		if got.Summary != "Ana: Cobrança recebida" {
			t.Errorf("Summary = %q", got.Summary)
		}
		if got.Routing != domain.RoutingDigest || got.Confidence != 0.8 {
			t.Errorf("unexpected result %+v", got)
		}
	})

	t.Run("keyword category wins over classifier", func(t *testing.T) {
		t.Parallel()
		cl := stubClassifier{verdict: &domain.CategoryVerdict{Category: "health", Routing: "digest", Confidence: 0.9}}
		got := NewRouter(cl, nil, time.Second).Classify(context.Background(), msg("Seu pedido saiu para entrega"), domain.DecisionNotUrgent, 0.6)
		if got.Category != domain.CategoryDelivery {
			t.Errorf("Category = %q, want delivery", got.Category)
		}
	})

	t.Run("invalid routing falls back to digest", func(t *testing.T) {
		t.Parallel()
		cl := stubClassifier{verdict: &domain.CategoryVerdict{Category: "other", Routing: "later", Confidence: 0.6}}
		got := NewRouter(cl, nil, time.Second).Classify(context.Background(), msg("Oi, tudo bem?"), domain.DecisionNotUrgent, 0.6)
		if got.Routing != domain.RoutingDigest || !strings.Contains(got.Reasoning, OverrideInvalidRouting) {
			t.Errorf("unexpected result %+v", got)
		}
	})

	t.Run("failure fallback", func(t *testing.T) {
		t.Parallel()
		r := NewRouter(stubClassifier{err: errors.New("503")}, nil, time.Second)

		urgent := r.Classify(context.Background(), msg("Reunião do projeto às 15h"), domain.DecisionUrgent, 0.7)
		if urgent.Category != domain.CategoryOther || urgent.Routing != domain.RoutingImmediate || urgent.Confidence != 0.5 {
			t.Errorf("urgent fallback = %+v", urgent)
		}

		calm := r.Classify(context.Background(), msg("Oi, tudo bem?"), domain.DecisionNotUrgent, 0.6)
		if calm.Routing != domain.RoutingDigest {
			t.Errorf("not urgent fallback routing = %q", calm.Routing)
		}

		p := r.Propose(context.Background(), msg("Oi"), domain.DecisionNotUrgent, 0.6)
		if !p.Fallback || !strings.Contains(p.Result.Reasoning, "503") {
			t.Errorf("fallback proposal = %+v", p)
		}
	})

	t.Run("nil classifier is a fallback", func(t *testing.T) {
		t.Parallel()
		p := NewRouter(nil, nil, 0).Propose(context.Background(), msg("Oi, tudo bem?"), domain.DecisionNotUrgent, 0.95)
		if !p.Fallback || p.Result.Routing != domain.RoutingDigest {
			t.Errorf("Propose() = %+v", p)
		}
	})
}
