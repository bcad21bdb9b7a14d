package urgency

import (
	"reflect"
	"regexp"
	"testing"
	"time"

	"github.com/edgard/jaiminho/internal/domain"
)

func newMessage(text string) *domain.NormalizedMessage {
	return &domain.NormalizedMessage{
		MessageID:   "msg-1",
		TenantID:    "tenant-1",
		UserID:      "user-1",
		SenderPhone: "5511999990000",
		Type:        domain.MessageText,
		Content:     domain.MessageContent{Text: text},
		Timestamp:   time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}
}

func TestEvaluate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		text           string
		wantRule       string
		wantDecision   domain.Decision
		wantConfidence float64
	}{
		{"otp with expiry", "Seu código de verificação é 123456, expira em 5 minutos", RuleSecurity, domain.DecisionUrgent, 0.99},
		{"spanish password expiry", "Su contraseña expira hoy", RuleSecurity, domain.DecisionUrgent, 0.95},
		{"security wins over financial", "Código de acesso ao banco: 482913", RuleSecurity, domain.DecisionUrgent, 0.95},
		{"single financial keyword", "Seu boleto está disponível no app", RuleFinancial, domain.DecisionUrgent, 0.90},
		{"currency amount", "Identificamos uma transação de R$ 1.250,00 no seu cartão", RuleFinancial, domain.DecisionUrgent, 0.99},
		{"portuguese promotion", "Promoção! Até 50% OFF, não perca!", RuleMarketing, domain.DecisionNotUrgent, 0.95},
		{"english promotion", "Huge discount this weekend, click here", RuleMarketing, domain.DecisionNotUrgent, 0.85},
		{"single marketing hit is not enough", "Temos uma oferta para você amanhã", RuleNoMatch, domain.DecisionUndecided, 0},
		{"empty", "", RuleEmptyOrShort, domain.DecisionNotUrgent, 0.70},
		{"short", "ok 👍", RuleEmptyOrShort, domain.DecisionNotUrgent, 0.70},
		{"greeting", "Oi, tudo bem?", RuleNoMatch, domain.DecisionUndecided, 0},
		{"english login code", "Your login code is 4821", RuleSecurity, domain.DecisionUrgent, 0.90},
		{"year and street number", "Nos vemos em 2025 na Rua Augusta 1234", RuleNoMatch, domain.DecisionUndecided, 0},
		{"order number", "Pedido 48291 saiu para entrega", RuleNoMatch, domain.DecisionUndecided, 0},
	}

	engine := NewEngine(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := engine.Evaluate(newMessage(tt.text))
			if got.RuleName != tt.wantRule {
				t.Errorf("RuleName = %q, want %q (evidence %v)", got.RuleName, tt.wantRule, got.MatchedEvidence)
			}
			if got.Decision != tt.wantDecision {
				t.Errorf("Decision = %q, want %q", got.Decision, tt.wantDecision)
			}
			if diff := got.Confidence - tt.wantConfidence; diff > 1e-9 || diff < -1e-9 {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.wantConfidence)
			}
		})
	}
}

func TestEvaluateGroupMessagesNeverUrgent(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil)
	texts := []string{
		"URGENTE: código 123456",
		"Transferência de R$ 5.000,00 bloqueada",
		"Promoção! Até 50% OFF, não perca!",
		"",
		"Oi, tudo bem?",
	}
	for _, text := range texts {
		msg := newMessage(text)
		msg.Metadata.IsGroup = true
		got := engine.Evaluate(msg)
		if got.Decision != domain.DecisionNotUrgent || got.Confidence < 0.95 || got.RuleName != RuleGroupMessage {
			t.Errorf("group message %q evaluated to %+v", text, got)
		}
	}
}

func TestEvaluateCaption(t *testing.T) {
	t.Parallel()

	msg := newMessage("")
	msg.Type = domain.MessageImage
	msg.Content.Caption = "Comprovante do PIX"

	got := NewEngine(nil).Evaluate(msg)
	if got.RuleName != RuleFinancial {
		t.Fatalf("RuleName = %q, want %q", got.RuleName, RuleFinancial)
	}
	if len(got.MatchedEvidence) != 1 {
		t.Errorf("keyword and pattern hits on the same word should count once, got %v", got.MatchedEvidence)
	}
}

func TestEvaluateIsIdempotent(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil)
	msg := newMessage("URGENTE: alerta de segurança, confirme sua senha, código 123456 expira em 5 minutos")

	first := engine.Evaluate(msg)
	second := engine.Evaluate(msg)
	if !reflect.DeepEqual(first, second) {
		t.Errorf("Evaluate not idempotent:\n%+v\n%+v", first, second)
	}
	if len(first.MatchedEvidence) != maxEvidence {
		t.Errorf("evidence should be capped at %d, got %d", maxEvidence, len(first.MatchedEvidence))
	}
}

func TestStats(t *testing.T) {
	t.Parallel()

	engine := NewEngine(nil)
	engine.Evaluate(newMessage("Seu código de verificação é 123456"))
	engine.Evaluate(newMessage("Promoção! Até 50% OFF, não perca!"))
	engine.Evaluate(newMessage("Oi, tudo bem?"))
	engine.Evaluate(newMessage("Oi, como vai?"))

	stats := engine.Stats()
	if stats.TotalEvaluations != 4 || stats.Urgent != 1 || stats.NotUrgent != 1 || stats.Undecided != 2 {
		t.Errorf("unexpected counters: %+v", stats)
	}
	if stats.RulesTriggered[RuleNoMatch] != 2 {
		t.Errorf("RulesTriggered[%s] = %d, want 2", RuleNoMatch, stats.RulesTriggered[RuleNoMatch])
	}
	if got := stats.UndecidedRate(); got != 50 {
		t.Errorf("UndecidedRate() = %v, want 50", got)
	}

	stats.RulesTriggered[RuleNoMatch] = 99
	if engine.Stats().RulesTriggered[RuleNoMatch] != 2 {
		t.Error("snapshot must not alias engine state")
	}

	engine.ResetStats()
	if got := engine.Stats(); got.TotalEvaluations != 0 || len(got.RulesTriggered) != 0 {
		t.Errorf("ResetStats() left %+v", got)
	}
}

func TestWithRuleSets(t *testing.T) {
	t.Parallel()

	custom := RuleSet{
		Name:       "shipping_content",
		Label:      "shipping",
		Decision:   domain.DecisionNotUrgent,
		Keywords:   map[string][]string{"pt": {"rastreio"}, "en": {"tracking"}},
		Patterns:   []*regexp.Regexp{regexp.MustCompile(`\b[A-Z]{2}\d{9}BR\b`)},
		MinMatches: 1,
		Base:       0.6,
		Step:       0.1,
		Max:        0.9,
	}
	engine := NewEngine(nil, WithRuleSets(custom))

	got := engine.Evaluate(newMessage("Código de rastreio QB123456789BR"))
	if got.RuleName != "shipping_content" {
		t.Fatalf("RuleName = %q, want shipping_content", got.RuleName)
	}
	if diff := got.Confidence - 0.8; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Confidence = %v, want 0.8", got.Confidence)
	}
}

func TestEvaluateFinancialBeatsMarketingByOrder(t *testing.T) {
	t.Parallel()

	// Discount language inside a bill reminder: both sets match, evaluation order decides.
	got := NewEngine(nil).Evaluate(newMessage("Promoção imperdível! Desconto especial na fatura do cartão, não perca"))
	if got.RuleName != RuleFinancial || got.Decision != domain.DecisionUrgent {
		t.Errorf("Evaluate() = %s/%s, want %s/%s", got.RuleName, got.Decision, RuleFinancial, domain.DecisionUrgent)
	}
}
