package pipeline

import (
	"context"
	"strconv"
	"strings"

	"github.com/edgard/jaiminho/internal/domain"
	apperrors "github.com/edgard/jaiminho/internal/errors"
	"github.com/edgard/jaiminho/internal/routing"
	"github.com/edgard/jaiminho/internal/tenant"
)

// Stage names, in execution order.
const (
	StageTenantGate     = "tenant_gate"
	StageRuleEngine     = "rule_engine"
	StageEscalation     = "escalation"
	StageClassification = "classification"
	StageRouteDecision  = "route_decision"
	StageAuditFinalize  = "audit_finalize"
)

// ReasonMessageIdentity is the rejection key for a message that names a
// different tenant or user than the resolved instance.
const ReasonMessageIdentity = "message_identity"

// state is threaded through the stages. Each stage returns the updated copy.
type state struct {
	input Input
	msg   domain.NormalizedMessage

	tenant     *domain.TenantContext
	rule       domain.RuleMatch
	decision   domain.Decision
	confidence float64
	proposal   routing.Proposal
	routed     domain.ClassificationResult
	llmUsed    bool

	trail  []domain.AuditEntry
	result *domain.ProcessingResult
}

type stage struct {
	name string
	run  func(ctx context.Context, s state) (state, error)
}

func (p *Pipeline) tenantGate(ctx context.Context, s state) (state, error) {
	tc, rej := p.gate.Resolve(ctx, tenant.GateRequest{
		InstanceID:  s.input.InstanceID,
		Credential:  s.input.Credential,
		SenderPhone: s.input.SenderPhone,
		Payload:     s.input.Payload,
	})
	if !rej.Rejected() {
		rej = checkBoundary(tc, &s.msg)
	}
	if rej.Rejected() {
		s = p.record(s, domain.AuditEntry{
			Stage:   StageTenantGate,
			Status:  domain.AuditRejected,
			Reason:  "authorization rejected",
			Details: rej,
		})
		return s, apperrors.NewAuthorizationError(rej)
	}

	if err := tc.Validate(); err != nil {
		p.logger.ErrorContext(ctx, "Resolved tenant context is incomplete",
			"message_id", s.msg.MessageID,
			"instance_id", s.input.InstanceID,
			"error", err,
		)
		s = p.record(s, domain.AuditEntry{
			Stage:  StageTenantGate,
			Status: domain.AuditRejected,
			Reason: "internal invariant violation: " + err.Error(),
		})
		return s, apperrors.NewInvariantError("resolved tenant context failed validation: " + err.Error())
	}

	s.tenant = tc
	s = p.record(s, domain.AuditEntry{
		Stage:    StageTenantGate,
		Status:   domain.AuditOK,
		Decision: "accepted",
		Details: map[string]string{
			"tenant_id":   tc.TenantID,
			"user_id":     tc.UserID,
			"instance_id": tc.InstanceID,
		},
	})
	return s, nil
}

// checkBoundary enforces what only the pipeline knows: the instance must be
// active and the message may not claim another identity. Empty message
// identity fields are filled from the resolved context.
func checkBoundary(tc *domain.TenantContext, msg *domain.NormalizedMessage) domain.Rejection {
	if tc == nil {
		return nil
	}
	if tc.Status != domain.TenantActive {
		return domain.Rejection{tenant.ReasonStatus: string(tc.Status)}
	}
	if (msg.TenantID != "" && msg.TenantID != tc.TenantID) || (msg.UserID != "" && msg.UserID != tc.UserID) {
		return domain.Rejection{ReasonMessageIdentity: "mismatch"}
	}
	msg.TenantID = tc.TenantID
	msg.UserID = tc.UserID
	return nil
}

func (p *Pipeline) ruleEngine(_ context.Context, s state) (state, error) {
	s.rule = p.rules.Evaluate(&s.msg)
	s.decision = s.rule.Decision
	s.confidence = s.rule.Confidence

	details := map[string]string{"rule": s.rule.RuleName}
	if len(s.rule.MatchedEvidence) > 0 {
		details["evidence"] = strings.Join(s.rule.MatchedEvidence, ", ")
	}
	s = p.record(s, domain.AuditEntry{
		Stage:      StageRuleEngine,
		Status:     domain.AuditOK,
		Decision:   string(s.rule.Decision),
		Confidence: ptr(s.rule.Confidence),
		Reason:     s.rule.Reasoning,
		Details:    details,
	})
	return s, nil
}

func (p *Pipeline) escalation(ctx context.Context, s state) (state, error) {
	if s.rule.Decisive() {
		s = p.record(s, domain.AuditEntry{
			Stage:      StageEscalation,
			Status:     domain.AuditSkipped,
			Decision:   string(s.decision),
			Confidence: ptr(s.confidence),
			Reason:     "rule_engine_decisive",
		})
		return s, nil
	}

	out := p.escalator.Decide(ctx, &s.msg, nil)
	s.decision = out.Result.Decision()
	s.confidence = out.Result.Confidence
	if out.Verdict != nil {
		s.llmUsed = true
	}

	status := domain.AuditOK
	if out.Fallback {
		status = domain.AuditFallback
	}
	details := map[string]string{"history_total": strconv.Itoa(out.History.Total())}
	if len(out.Overrides) > 0 {
		details["overrides"] = strings.Join(out.Overrides, ",")
	}
	if out.Verdict != nil {
		details["classifier_urgent"] = strconv.FormatBool(out.Verdict.Urgent)
		details["classifier_confidence"] = strconv.FormatFloat(out.Verdict.Confidence, 'f', 3, 64)
	}
	s = p.record(s, domain.AuditEntry{
		Stage:      StageEscalation,
		Status:     status,
		Decision:   string(s.decision),
		Confidence: ptr(s.confidence),
		Reason:     out.Result.Reason,
		Details:    details,
	})
	return s, nil
}

func (p *Pipeline) classification(ctx context.Context, s state) (state, error) {
	s.proposal = p.router.Propose(ctx, &s.msg, s.decision, s.confidence)
	if !s.proposal.Fallback {
		s.llmUsed = true
	}

	status := domain.AuditOK
	if s.proposal.Fallback {
		status = domain.AuditFallback
	}
	s = p.record(s, domain.AuditEntry{
		Stage:      StageClassification,
		Status:     status,
		Decision:   string(s.proposal.Result.Routing),
		Confidence: ptr(s.proposal.Result.Confidence),
		Reason:     s.proposal.Result.Reasoning,
		Details: map[string]string{
			"category":         string(s.proposal.Result.Category),
			"keyword_category": string(s.proposal.KeywordCategory),
		},
	})
	return s, nil
}

func (p *Pipeline) routeDecision(_ context.Context, s state) (state, error) {
	result, fired := routing.Reconcile(s.proposal, s.decision, s.confidence)
	s.routed = result

	var details map[string]string
	if len(fired) > 0 {
		details = map[string]string{"overrides": strings.Join(fired, ",")}
	}
	s = p.record(s, domain.AuditEntry{
		Stage:      StageRouteDecision,
		Status:     domain.AuditOK,
		Decision:   string(result.Routing),
		Confidence: ptr(result.Confidence),
		Reason:     result.Reasoning,
		Details:    details,
	})
	return s, nil
}

func ptr(v float64) *float64 { return &v }
