package database

import (
	"database/sql"
	"time"

	"github.com/edgard/jaiminho/internal/domain"
)

// instanceRow is a tenant_instances record.
type instanceRow struct {
	InstanceID     string    `db:"instance_id"`
	TenantID       string    `db:"tenant_id"`
	UserID         string    `db:"user_id"`
	PhoneNumber    string    `db:"phone_number"`
	Status         string    `db:"status"`
	CredentialHash string    `db:"credential_hash"`
	Version        int64     `db:"version"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

func (r *instanceRow) toDomain() *domain.TenantInstance {
	return &domain.TenantInstance{
		InstanceID:     r.InstanceID,
		TenantID:       r.TenantID,
		UserID:         r.UserID,
		PhoneNumber:    r.PhoneNumber,
		Status:         domain.TenantStatus(r.Status),
		CredentialHash: r.CredentialHash,
		Version:        r.Version,
	}
}

// senderStatsRow is a sender_stats record, derived from sender_feedback.
// Counters are scoped to one tenant/user pair so histories never cross tenants.
type senderStatsRow struct {
	TenantID           string          `db:"tenant_id"`
	UserID             string          `db:"user_id"`
	SenderPhone        string          `db:"sender_phone"`
	TotalMessages      int             `db:"total_messages"`
	UrgentCount        int             `db:"urgent_count"`
	NotUrgentCount     int             `db:"not_urgent_count"`
	AvgResponseSeconds sql.NullFloat64 `db:"avg_response_seconds"`
	UpdatedAt          time.Time       `db:"updated_at"`
}

func (r *senderStatsRow) toDomain() *domain.HistoricalInterruptionData {
	h := &domain.HistoricalInterruptionData{
		SenderPhone:    r.SenderPhone,
		TotalMessages:  r.TotalMessages,
		UrgentCount:    r.UrgentCount,
		NotUrgentCount: r.NotUrgentCount,
	}
	if r.AvgResponseSeconds.Valid {
		v := r.AvgResponseSeconds.Float64
		h.AvgResponseTime = &v
	}
	return h
}

// feedbackRow is a sender_feedback record, unique per tenant/user/message.
type feedbackRow struct {
	TenantID        string          `db:"tenant_id"`
	UserID          string          `db:"user_id"`
	MessageID       string          `db:"message_id"`
	SenderPhone     string          `db:"sender_phone"`
	Important       bool            `db:"important"`
	WasInterrupted  bool            `db:"was_interrupted"`
	ResponseSeconds sql.NullFloat64 `db:"response_seconds"`
	CreatedAt       time.Time       `db:"created_at"`
}

// auditRow is an audit_trails record. Entries are stored as a JSON array.
type auditRow struct {
	ID         string    `db:"id"`
	MessageID  string    `db:"message_id"`
	TenantID   string    `db:"tenant_id"`
	UserID     string    `db:"user_id"`
	InstanceID string    `db:"instance_id"`
	Entries    string    `db:"entries"`
	CreatedAt  time.Time `db:"created_at"`
}
