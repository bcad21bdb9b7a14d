package escalation

import (
	"fmt"
	"strings"

	"github.com/edgard/jaiminho/internal/domain"
)

// Thresholds for the conservative overrides.
const (
	BaseThreshold        = 0.75
	KnownSenderThreshold = 0.65
	KnownSenderMessages  = 5

	FirstContactThreshold   = 0.85
	FirstContactAttenuation = 0.80

	LowRateThreshold   = 0.85
	LowRateAttenuation = 0.85
	LowRateMinMessages = 10
	LowRateMaxRate     = 0.10

	GroupThreshold   = 0.90
	GroupAttenuation = 0.70
)

// override downgrades an urgent verdict whose confidence is below threshold.
// An attenuation of 1 leaves confidence untouched.
type override struct {
	name        string
	applies     func(msg *domain.NormalizedMessage, hist *domain.HistoricalInterruptionData) bool
	threshold   func(hist *domain.HistoricalInterruptionData) float64
	attenuation float64
}

func fixed(v float64) func(*domain.HistoricalInterruptionData) float64 {
	return func(*domain.HistoricalInterruptionData) float64 { return v }
}

// overrides run in order. Each is a no-op once the result is not urgent.
var overrides = []override{
	{
		name:    "insufficient_confidence",
		applies: func(*domain.NormalizedMessage, *domain.HistoricalInterruptionData) bool { return true },
		threshold: func(h *domain.HistoricalInterruptionData) float64 {
			if h.Total() >= KnownSenderMessages {
				return KnownSenderThreshold
			}
			return BaseThreshold
		},
		attenuation: 1,
	},
	{
		name: "first_contact",
		applies: func(_ *domain.NormalizedMessage, h *domain.HistoricalInterruptionData) bool {
			return h.Total() == 0
		},
		threshold:   fixed(FirstContactThreshold),
		attenuation: FirstContactAttenuation,
	},
	{
		name: "low_urgency_history",
		applies: func(_ *domain.NormalizedMessage, h *domain.HistoricalInterruptionData) bool {
			return h.Total() >= LowRateMinMessages && h.UrgencyRate() < LowRateMaxRate
		},
		threshold:   fixed(LowRateThreshold),
		attenuation: LowRateAttenuation,
	},
	{
		name: "group_message",
		applies: func(m *domain.NormalizedMessage, _ *domain.HistoricalInterruptionData) bool {
			return m.Metadata.IsGroup
		},
		threshold:   fixed(GroupThreshold),
		attenuation: GroupAttenuation,
	},
}

func applyOverrides(r domain.UrgencyResult, msg *domain.NormalizedMessage, hist *domain.HistoricalInterruptionData) (domain.UrgencyResult, []string) {
	var fired []string
	var notes []string
	for _, o := range overrides {
		if !r.Urgent || !o.applies(msg, hist) {
			continue
		}
		limit := o.threshold(hist)
		if r.Confidence >= limit {
			continue
		}
		notes = append(notes, fmt.Sprintf("[downgraded: %s %.2f < %.2f]", o.name, r.Confidence, limit))
		r.Urgent = false
		r.Confidence *= o.attenuation
		fired = append(fired, o.name)
	}
	if len(notes) > 0 {
		r.Reason = strings.TrimSpace(r.Reason + " " + strings.Join(notes, " "))
	}
	return r, fired
}

// RenderHistory formats sender history for the classifier prompt.
func RenderHistory(h *domain.HistoricalInterruptionData) string {
	if h.Total() == 0 {
		return "First contact: no previous messages from this sender."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Total messages: %d\n", h.TotalMessages)
	fmt.Fprintf(&b, "Urgent messages: %d\n", h.UrgentCount)
	fmt.Fprintf(&b, "Not urgent messages: %d\n", h.NotUrgentCount)
	fmt.Fprintf(&b, "Historical urgency rate: %.1f%%", h.UrgencyRate()*100)
	if h.AvgResponseTime != nil {
		fmt.Fprintf(&b, "\nAverage response time: %.0fs", *h.AvgResponseTime)
	}
	return b.String()
}
