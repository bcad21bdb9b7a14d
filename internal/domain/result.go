package domain

import "time"

// AuditStatus records how a pipeline stage concluded.
type AuditStatus string

const (
	AuditOK       AuditStatus = "ok"
	AuditSkipped  AuditStatus = "skipped"
	AuditRejected AuditStatus = "rejected"
	AuditFallback AuditStatus = "fallback"
)

// AuditEntry is one stage's snapshot of its own decision.
type AuditEntry struct {
	Stage      string            `json:"stage"`
	Status     AuditStatus       `json:"status"`
	Decision   string            `json:"decision,omitempty"`
	Confidence *float64          `json:"confidence,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
	Timestamp  time.Time         `json:"timestamp"`
}

// AuditTrail is the ordered record of one pipeline run.
type AuditTrail struct {
	ID         string       `json:"id"`
	MessageID  string       `json:"message_id"`
	TenantID   string       `json:"tenant_id,omitempty"`
	UserID     string       `json:"user_id,omitempty"`
	InstanceID string       `json:"instance_id"`
	Entries    []AuditEntry `json:"entries"`
	CreatedAt  time.Time    `json:"created_at"`
}

// FinalDecision is the routing verdict handed to the delivery layer.
type FinalDecision struct {
	Urgent     bool     `json:"urgent"`
	Routing    Routing  `json:"routing"`
	Category   Category `json:"category"`
	Summary    string   `json:"summary"`
	Confidence float64  `json:"confidence"`
	Reasoning  string   `json:"reasoning"`
}

// ProcessingResult is the terminal output of a successful pipeline run.
type ProcessingResult struct {
	MessageID          string        `json:"message_id"`
	TenantID           string        `json:"tenant_id"`
	UserID             string        `json:"user_id"`
	Decision           FinalDecision `json:"decision"`
	RuleEngineDecision Decision      `json:"rule_engine_decision"`
	RuleConfidence     float64       `json:"rule_confidence"`
	LLMUsed            bool          `json:"llm_used"`
	AuditTrail         []AuditEntry  `json:"audit_trail"`
	ProcessedAt        time.Time     `json:"processed_at"`
}
