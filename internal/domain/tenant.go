// Package domain holds the entities that flow through the message decision
// pipeline. Every value here is created fresh per message except TenantContext,
// which the tenant resolver may serve from its cache.
package domain

import (
	"errors"
	"strings"
)

// TenantStatus is the lifecycle state of a tenant instance.
type TenantStatus string

const (
	TenantActive    TenantStatus = "active"
	TenantSuspended TenantStatus = "suspended"
	TenantDisabled  TenantStatus = "disabled"
)

// Resolvable reports whether the status may resolve to a TenantContext.
// Suspended instances resolve so callers can tell them apart from unknown ones.
func (s TenantStatus) Resolvable() bool {
	return s == TenantActive || s == TenantSuspended
}

// TenantInstance is the stored mapping from a transport instance to its owner.
// Version increases on every write to the row.
type TenantInstance struct {
	InstanceID     string
	TenantID       string
	UserID         string
	PhoneNumber    string
	Status         TenantStatus
	CredentialHash string
	Version        int64
}

// PhoneOwner is the owning tenant/user of a registered phone number.
type PhoneOwner struct {
	TenantID string
	UserID   string
}

// TenantContext is the verified identity a message is processed under.
type TenantContext struct {
	TenantID    string       `json:"tenant_id"`
	UserID      string       `json:"user_id"`
	InstanceID  string       `json:"instance_id"`
	PhoneNumber string       `json:"phone_number"`
	Status      TenantStatus `json:"status"`
}

// ErrIncompleteTenantContext is returned by Validate when an identifying field is empty.
var ErrIncompleteTenantContext = errors.New("tenant context has empty identifying fields")

// Validate checks that all identifying fields are present.
func (t *TenantContext) Validate() error {
	if t == nil {
		return ErrIncompleteTenantContext
	}
	var missing []string
	if t.TenantID == "" {
		missing = append(missing, "tenant_id")
	}
	if t.UserID == "" {
		missing = append(missing, "user_id")
	}
	if t.InstanceID == "" {
		missing = append(missing, "instance_id")
	}
	if t.PhoneNumber == "" {
		missing = append(missing, "phone_number")
	}
	if len(missing) > 0 {
		return errors.Join(ErrIncompleteTenantContext, errors.New("missing "+strings.Join(missing, ", ")))
	}
	return nil
}

// Rejection maps a rejected check to the reason it failed. A nil or empty
// Rejection means the request was accepted.
type Rejection map[string]string

// Rejected reports whether any reason is present.
func (r Rejection) Rejected() bool {
	return len(r) > 0
}
