package tenant

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"unicode"

	"github.com/edgard/jaiminho/internal/domain"
	"github.com/edgard/jaiminho/internal/metrics"
)

// Severity of a rejected request, logged with every rejection.
const (
	SeverityCritical = "critical"
	SeverityHigh     = "high"
	SeverityMedium   = "medium"
	SeverityLow      = "low"
)

// GateRequest is what the transport boundary knows about an inbound message.
// Credential, SenderPhone and Payload are optional.
type GateRequest struct {
	InstanceID  string
	Credential  string
	SenderPhone string
	Payload     map[string]any
}

// Gate adds phone ownership and payload tampering checks on top of the resolver.
type Gate struct {
	resolver *Resolver
	owners   Store
	logger   *slog.Logger
}

// NewGate builds a gate over resolver, using store for phone ownership lookups.
func NewGate(resolver *Resolver, store Store, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Gate{
		resolver: resolver,
		owners:   store,
		logger:   logger.With("component", "tenant_gate"),
	}
}

// Resolve runs every isolation check in order and stops at the first failure.
func (g *Gate) Resolve(ctx context.Context, req GateRequest) (*domain.TenantContext, domain.Rejection) {
	tc, rej := g.resolver.Resolve(ctx, req.InstanceID, req.Credential)
	if rej.Rejected() {
		g.reject(ctx, req, rej)
		return nil, rej
	}

	if req.SenderPhone != "" {
		if rej := g.checkPhone(ctx, tc, req.SenderPhone); rej.Rejected() {
			g.reject(ctx, req, rej)
			return nil, rej
		}
	}

	if req.Payload != nil {
		if rej := checkPayload(tc, req.Payload); rej.Rejected() {
			g.reject(ctx, req, rej)
			return nil, rej
		}
	}

	return tc, nil
}

func (g *Gate) checkPhone(ctx context.Context, tc *domain.TenantContext, senderPhone string) domain.Rejection {
	sender := NormalizePhone(senderPhone)
	registered := NormalizePhone(tc.PhoneNumber)
	if sender == "" || registered == "" {
		return domain.Rejection{ReasonPhoneOwnership: "unverifiable"}
	}
	if sender != registered {
		return domain.Rejection{ReasonPhoneOwnership: "mismatch"}
	}

	owner, err := g.owners.GetOwnerByPhone(ctx, sender)
	if err != nil {
		g.logger.ErrorContext(ctx, "Phone owner lookup failed", "instance_id", tc.InstanceID, "error", err)
		return domain.Rejection{ReasonPhoneOwnership: "unavailable"}
	}
	if owner != nil && (owner.UserID != tc.UserID || owner.TenantID != tc.TenantID) {
		return domain.Rejection{ReasonPhoneOwnership: "owned_by_other_user"}
	}
	return nil
}

// checkPayload rejects a raw payload that names another tenant or carries any
// user identity. Nested objects and arrays are searched too.
func checkPayload(tc *domain.TenantContext, payload map[string]any) domain.Rejection {
	if findKey(payload, "user_id", func(any) bool { return true }) {
		return domain.Rejection{ReasonPayload: "user_id is a forbidden field"}
	}
	mismatch := func(v any) bool { return fmt.Sprint(v) != tc.TenantID }
	if findKey(payload, "tenant_id", mismatch) {
		return domain.Rejection{ReasonPayload: "tenant_id does not match resolved tenant"}
	}
	return nil
}

func findKey(v any, key string, pred func(any) bool) bool {
	switch node := v.(type) {
	case map[string]any:
		for k, child := range node {
			if k == key && pred(child) {
				return true
			}
			if findKey(child, key, pred) {
				return true
			}
		}
	case []any:
		for _, child := range node {
			if findKey(child, key, pred) {
				return true
			}
		}
	}
	return false
}

// NormalizePhone keeps only ASCII digits.
func NormalizePhone(phone string) string {
	return strings.Map(func(r rune) rune {
		if r < unicode.MaxASCII && unicode.IsDigit(r) {
			return r
		}
		return -1
	}, phone)
}

// severityOf ranks a rejection by how likely it is to be an attack.
func severityOf(rej domain.Rejection) string {
	switch {
	case rej[ReasonInstance] == "credential_mismatch":
		return SeverityCritical
	case rej[ReasonPhoneOwnership] == "mismatch", rej[ReasonPhoneOwnership] == "owned_by_other_user":
		return SeverityCritical
	case rej[ReasonPayload] != "":
		return SeverityHigh
	case rej[ReasonInstance] == "invalid", rej[ReasonStatus] != "":
		return SeverityMedium
	default:
		return SeverityLow
	}
}

func (g *Gate) reject(ctx context.Context, req GateRequest, rej domain.Rejection) {
	severity := severityOf(rej)
	for key := range rej {
		metrics.GateRejections.WithLabelValues(key).Inc()
	}

	attrs := []any{
		"instance_id", req.InstanceID,
		"severity", severity,
		"reasons", map[string]string(rej),
	}
	switch severity {
	case SeverityCritical, SeverityHigh:
		g.logger.ErrorContext(ctx, "Security gate rejected request", attrs...)
	case SeverityMedium:
		g.logger.WarnContext(ctx, "Security gate rejected request", attrs...)
	default:
		g.logger.InfoContext(ctx, "Security gate rejected request", attrs...)
	}
}
