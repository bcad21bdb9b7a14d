package domain

import (
	"errors"
	"math"
	"testing"
)

func TestUrgencyRate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		h    *HistoricalInterruptionData
		want float64
	}{
		{"nil history", nil, 0},
		{"no decisions", &HistoricalInterruptionData{TotalMessages: 3}, 0},
		{"all urgent", &HistoricalInterruptionData{TotalMessages: 4, UrgentCount: 4}, 1},
		{"mixed", &HistoricalInterruptionData{TotalMessages: 10, UrgentCount: 1, NotUrgentCount: 9}, 0.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := tt.h.UrgencyRate(); math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("UrgencyRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTenantContextValidate(t *testing.T) {
	t.Parallel()

	full := TenantContext{TenantID: "t1", UserID: "u1", InstanceID: "i1", PhoneNumber: "5511999999999", Status: TenantActive}
	if err := full.Validate(); err != nil {
		t.Fatalf("Validate() on complete context: %v", err)
	}

	missing := full
	missing.UserID = ""
	if err := missing.Validate(); !errors.Is(err, ErrIncompleteTenantContext) {
		t.Errorf("Validate() = %v, want ErrIncompleteTenantContext", err)
	}

	var nilCtx *TenantContext
	if err := nilCtx.Validate(); !errors.Is(err, ErrIncompleteTenantContext) {
		t.Errorf("Validate() on nil = %v", err)
	}
}

func TestFullText(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content MessageContent
		want    string
	}{
		{"text only", MessageContent{Text: "hello"}, "hello"},
		{"caption only", MessageContent{Caption: "photo"}, "photo"},
		{"both", MessageContent{Text: "see", Caption: "invoice"}, "see invoice"},
		{"blank", MessageContent{Text: "  "}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			m := NormalizedMessage{Content: tt.content}
			if got := m.FullText(); got != tt.want {
				t.Errorf("FullText() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestParseCategoryAndRouting(t *testing.T) {
	t.Parallel()

	if c, ok := ParseCategory("💰 Financeiro"); !ok || c != CategoryFinancial {
		t.Errorf("ParseCategory(label) = %v, %v", c, ok)
	}
	if c, ok := ParseCategory("health"); !ok || c != CategoryHealth {
		t.Errorf("ParseCategory(id) = %v, %v", c, ok)
	}
	if c, ok := ParseCategory("astrology"); ok || c != CategoryOther {
		t.Errorf("ParseCategory(unknown) = %v, %v", c, ok)
	}
	if r, ok := ParseRouting("spam"); !ok || r != RoutingSpam {
		t.Errorf("ParseRouting(spam) = %v, %v", r, ok)
	}
	if r, ok := ParseRouting("later"); ok || r != RoutingDigest {
		t.Errorf("ParseRouting(invalid) = %v, %v", r, ok)
	}
}

func TestClamp01(t *testing.T) {
	t.Parallel()

	for in, want := range map[float64]float64{-0.2: 0, 0.4: 0.4, 1.7: 1} {
		if got := Clamp01(in); got != want {
			t.Errorf("Clamp01(%v) = %v, want %v", in, got, want)
		}
	}
	if got := Clamp01(math.NaN()); got != 0 {
		t.Errorf("Clamp01(NaN) = %v", got)
	}
}
