package domain

// Decision is an urgency verdict.
type Decision string

const (
	DecisionUrgent    Decision = "URGENT"
	DecisionNotUrgent Decision = "NOT_URGENT"
	DecisionUndecided Decision = "UNDECIDED"
)

// RuleMatch is the outcome of deterministic rule evaluation.
type RuleMatch struct {
	Decision        Decision `json:"decision"`
	RuleName        string   `json:"rule_name"`
	Confidence      float64  `json:"confidence"`
	MatchedEvidence []string `json:"matched_evidence"`
	Reasoning       string   `json:"reasoning"`
}

// Decisive reports whether the rules settled the message without escalation.
func (r RuleMatch) Decisive() bool {
	return r.Decision != DecisionUndecided
}

// HistoricalInterruptionData summarizes user feedback for one sender.
// UrgentCount and NotUrgentCount are the important and not-important verdicts.
type HistoricalInterruptionData struct {
	SenderPhone     string   `json:"sender_phone"`
	TotalMessages   int      `json:"total_messages"`
	UrgentCount     int      `json:"urgent_count"`
	NotUrgentCount  int      `json:"not_urgent_count"`
	AvgResponseTime *float64 `json:"avg_response_time,omitempty"`
}

// UrgencyRate is urgent_count / (urgent_count + not_urgent_count), or 0 without data.
func (h *HistoricalInterruptionData) UrgencyRate() float64 {
	if h == nil {
		return 0
	}
	decided := h.UrgentCount + h.NotUrgentCount
	if decided == 0 {
		return 0
	}
	return float64(h.UrgentCount) / float64(decided)
}

// Total returns the message count, treating missing data as first contact.
func (h *HistoricalInterruptionData) Total() int {
	if h == nil {
		return 0
	}
	return h.TotalMessages
}

// FeedbackType is the user's verdict on a delivered message.
type FeedbackType string

const (
	FeedbackImportant    FeedbackType = "important"
	FeedbackNotImportant FeedbackType = "not_important"
)

// SenderFeedback is one user verdict on a message from a sender. Sender
// history is built only from these, never from the pipeline's own decisions.
type SenderFeedback struct {
	MessageID       string       `json:"message_id" validate:"required"`
	SenderPhone     string       `json:"sender_phone" validate:"required"`
	Feedback        FeedbackType `json:"feedback" validate:"required,oneof=important not_important"`
	WasInterrupted  bool         `json:"was_interrupted"`
	ResponseSeconds *float64     `json:"response_seconds,omitempty" validate:"omitempty,gte=0"`
}

// Important reports whether the user marked the message important.
func (f *SenderFeedback) Important() bool {
	return f.Feedback == FeedbackImportant
}

// UrgencyResult is the escalation outcome after conservative overrides.
type UrgencyResult struct {
	Urgent     bool    `json:"urgent"`
	Reason     string  `json:"reason"`
	Confidence float64 `json:"confidence"`
}

// Decision maps the boolean verdict onto the shared decision vocabulary.
func (u UrgencyResult) Decision() Decision {
	if u.Urgent {
		return DecisionUrgent
	}
	return DecisionNotUrgent
}

// UrgencyQuery is what the urgency classifier receives.
type UrgencyQuery struct {
	Message     NormalizedMessage
	History     *HistoricalInterruptionData
	HistoryText string
}

// UrgencyVerdict is the raw urgency classifier response.
type UrgencyVerdict struct {
	Urgent     bool    `json:"urgent"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// Clamp01 bounds v to [0,1]. NaN maps to 0.
func Clamp01(v float64) float64 {
	switch {
	case v != v:
		return 0
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
