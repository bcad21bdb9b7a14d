// Package pipeline runs one message through tenant isolation, urgency rules,
// escalation, classification and routing, recording an audit entry per stage.
package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/edgard/jaiminho/internal/domain"
	"github.com/edgard/jaiminho/internal/escalation"
	"github.com/edgard/jaiminho/internal/metrics"
	"github.com/edgard/jaiminho/internal/routing"
	"github.com/edgard/jaiminho/internal/tenant"
)

// auditTimeout bounds the audit sink call. It runs detached from request cancellation.
const auditTimeout = 5 * time.Second

// Gate resolves and verifies the tenant behind a request.
type Gate interface {
	Resolve(ctx context.Context, req tenant.GateRequest) (*domain.TenantContext, domain.Rejection)
}

// RuleEngine settles messages deterministically or leaves them undecided.
type RuleEngine interface {
	Evaluate(msg *domain.NormalizedMessage) domain.RuleMatch
}

// Escalator asks the urgency classifier about undecided messages.
type Escalator interface {
	Decide(ctx context.Context, msg *domain.NormalizedMessage, hist *domain.HistoricalInterruptionData) escalation.Outcome
}

// Router proposes a category and routing for the settled decision.
type Router interface {
	Propose(ctx context.Context, msg *domain.NormalizedMessage, decision domain.Decision, confidence float64) routing.Proposal
}

// AuditSink persists finished audit trails.
type AuditSink interface {
	AppendAuditTrail(ctx context.Context, trail *domain.AuditTrail) error
}

// Deps are the collaborators of a Pipeline. Audit is optional.
type Deps struct {
	Logger    *slog.Logger
	Gate      Gate
	Rules     RuleEngine
	Escalator Escalator
	Router    Router
	Audit     AuditSink
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// Input is what the webhook boundary hands over for one message.
type Input struct {
	InstanceID  string
	Credential  string
	SenderPhone string
	Payload     map[string]any
	Message     domain.NormalizedMessage
}

// Pipeline is safe for concurrent use; every call owns its own state.
type Pipeline struct {
	logger    *slog.Logger
	gate      Gate
	rules     RuleEngine
	escalator Escalator
	router    Router
	audit     AuditSink
	now       func() time.Time
	stages    []stage
}

// New validates deps and builds a pipeline.
func New(deps Deps) (*Pipeline, error) {
	switch {
	case deps.Gate == nil:
		return nil, errors.New("pipeline: gate is required")
	case deps.Rules == nil:
		return nil, errors.New("pipeline: rule engine is required")
	case deps.Escalator == nil:
		return nil, errors.New("pipeline: escalator is required")
	case deps.Router == nil:
		return nil, errors.New("pipeline: router is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}

	p := &Pipeline{
		logger:    logger.With("component", "pipeline"),
		gate:      deps.Gate,
		rules:     deps.Rules,
		escalator: deps.Escalator,
		router:    deps.Router,
		audit:     deps.Audit,
		now:       now,
	}
	p.stages = []stage{
		{StageTenantGate, p.tenantGate},
		{StageRuleEngine, p.ruleEngine},
		{StageEscalation, p.escalation},
		{StageClassification, p.classification},
		{StageRouteDecision, p.routeDecision},
	}
	return p, nil
}

// Process runs every stage once, in order. It returns an
// *apperrors.AuthorizationError when the tenant gate rejects the request and an
// invariant error when the resolved tenant is incomplete. The audit trail is
// handed to the sink in every case.
func (p *Pipeline) Process(ctx context.Context, in Input) (*domain.ProcessingResult, error) {
	s := state{input: in, msg: in.Message}

	var stageErr error
	for _, st := range p.stages {
		next, err := st.run(ctx, s)
		s = next
		if err != nil {
			p.logger.DebugContext(ctx, "Pipeline stopped", "stage", st.name, "message_id", in.Message.MessageID, "error", err)
			stageErr = err
			break
		}
	}

	s = p.finalize(ctx, s, stageErr)
	if stageErr != nil {
		return nil, stageErr
	}

	metrics.Decisions.WithLabelValues(s.tenant.TenantID, string(s.routed.Routing), strconv.FormatBool(s.llmUsed)).Inc()
	p.logger.InfoContext(ctx, "Message processed",
		"message_id", s.msg.MessageID,
		"tenant_id", s.tenant.TenantID,
		"rule", s.rule.RuleName,
		"decision", s.decision,
		"routing", s.routed.Routing,
		"category", s.routed.Category,
		"llm_used", s.llmUsed,
	)
	return s.result, nil
}

// finalize appends the audit_finalize entry, builds the result on success and
// hands the trail to the sink. Sink failures are only logged.
func (p *Pipeline) finalize(ctx context.Context, s state, stageErr error) state {
	trailID := uuid.Must(uuid.NewV7()).String()
	status := domain.AuditOK
	if stageErr != nil {
		status = domain.AuditRejected
	}
	s = p.record(s, domain.AuditEntry{
		Stage:   StageAuditFinalize,
		Status:  status,
		Details: map[string]string{"trail_id": trailID},
	})

	trail := &domain.AuditTrail{
		ID:         trailID,
		MessageID:  s.msg.MessageID,
		InstanceID: s.input.InstanceID,
		Entries:    s.trail,
		CreatedAt:  p.now(),
	}
	if s.tenant != nil {
		trail.TenantID = s.tenant.TenantID
		trail.UserID = s.tenant.UserID
	}

	if stageErr == nil {
		s.result = &domain.ProcessingResult{
			MessageID: s.msg.MessageID,
			TenantID:  s.tenant.TenantID,
			UserID:    s.tenant.UserID,
			Decision: domain.FinalDecision{
				Urgent:     s.decision == domain.DecisionUrgent,
				Routing:    s.routed.Routing,
				Category:   s.routed.Category,
				Summary:    s.routed.Summary,
				Confidence: s.routed.Confidence,
				Reasoning:  s.routed.Reasoning,
			},
			RuleEngineDecision: s.rule.Decision,
			RuleConfidence:     s.rule.Confidence,
			LLMUsed:            s.llmUsed,
			AuditTrail:         append([]domain.AuditEntry(nil), s.trail...),
			ProcessedAt:        p.now(),
		}
	}

	if p.audit != nil {
		auditCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), auditTimeout)
		defer cancel()
		if err := p.audit.AppendAuditTrail(auditCtx, trail); err != nil {
			p.logger.WarnContext(ctx, "Audit trail not persisted",
				"message_id", s.msg.MessageID, "trail_id", trailID, "error", err)
		}
	}
	return s
}

func (p *Pipeline) record(s state, e domain.AuditEntry) state {
	e.Timestamp = p.now()
	s.trail = append(s.trail, e)
	return s
}
