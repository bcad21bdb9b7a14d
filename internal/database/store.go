package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/edgard/jaiminho/internal/domain"
	apperrors "github.com/edgard/jaiminho/internal/errors"
)

// ErrInstanceNotFound is returned by SetInstanceStatus for unknown instances.
var ErrInstanceNotFound = errors.New("instance not found")

// Store is the persistence layer. Lookups return nil, nil when nothing matches.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	GetByInstanceID(ctx context.Context, instanceID string) (*domain.TenantInstance, error)
	// InstanceVersion returns the row version of instanceID, or 0 when it does not exist.
	// Every write to an instance bumps its version.
	InstanceVersion(ctx context.Context, instanceID string) (int64, error)
	// GetOwnerByPhone returns the owner of the oldest non-disabled instance registered for phone.
	GetOwnerByPhone(ctx context.Context, phone string) (*domain.PhoneOwner, error)
	UpsertInstance(ctx context.Context, inst *domain.TenantInstance) error
	SetInstanceStatus(ctx context.Context, instanceID string, status domain.TenantStatus) error
	ListInstances(ctx context.Context) ([]domain.TenantInstance, error)

	GetSenderHistory(ctx context.Context, tenantID, userID, senderPhone string) (*domain.HistoricalInterruptionData, error)
	// RecordFeedback stores one user verdict and refreshes the sender's counters.
	// It reports false when feedback for the message was already recorded.
	RecordFeedback(ctx context.Context, tenantID, userID string, fb *domain.SenderFeedback) (bool, error)

	AppendAuditTrail(ctx context.Context, trail *domain.AuditTrail) error
	// PurgeAuditTrails deletes trails created before the cutoff and returns how many went.
	PurgeAuditTrails(ctx context.Context, before time.Time) (int64, error)

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a Store backed by db.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) GetByInstanceID(ctx context.Context, instanceID string) (*domain.TenantInstance, error) {
	var row instanceRow
	query := `
        SELECT instance_id, tenant_id, user_id, phone_number, status, credential_hash, version, created_at, updated_at
        FROM tenant_instances
        WHERE instance_id = ?;
    `
	if err := s.db.GetContext(ctx, &row, query, instanceID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewDatabaseError("get instance "+instanceID, err)
	}
	return row.toDomain(), nil
}

func (s *sqlxStore) InstanceVersion(ctx context.Context, instanceID string) (int64, error) {
	var version int64
	err := s.db.GetContext(ctx, &version, `SELECT version FROM tenant_instances WHERE instance_id = ?;`, instanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, apperrors.NewDatabaseError("get instance version "+instanceID, err)
	}
	return version, nil
}

func (s *sqlxStore) GetOwnerByPhone(ctx context.Context, phone string) (*domain.PhoneOwner, error) {
	var owner struct {
		TenantID string `db:"tenant_id"`
		UserID   string `db:"user_id"`
	}
	query := `
        SELECT tenant_id, user_id
        FROM tenant_instances
        WHERE phone_number = ? AND status != 'disabled'
        ORDER BY created_at ASC
        LIMIT 1;
    `
	if err := s.db.GetContext(ctx, &owner, query, phone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewDatabaseError("get phone owner", err)
	}
	return &domain.PhoneOwner{TenantID: owner.TenantID, UserID: owner.UserID}, nil
}

func (s *sqlxStore) UpsertInstance(ctx context.Context, inst *domain.TenantInstance) error {
	if inst == nil {
		return fmt.Errorf("cannot save nil instance")
	}
	if inst.InstanceID == "" || inst.TenantID == "" || inst.UserID == "" || inst.PhoneNumber == "" {
		return apperrors.NewValidationError("instance requires instance_id, tenant_id, user_id and phone_number", nil)
	}
	status := inst.Status
	if status == "" {
		status = domain.TenantActive
	}

	now := time.Now().UTC()
	row := instanceRow{
		InstanceID:     inst.InstanceID,
		TenantID:       inst.TenantID,
		UserID:         inst.UserID,
		PhoneNumber:    inst.PhoneNumber,
		Status:         string(status),
		CredentialHash: inst.CredentialHash,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	query := `
        INSERT INTO tenant_instances (instance_id, tenant_id, user_id, phone_number, status, credential_hash, created_at, updated_at)
        VALUES (:instance_id, :tenant_id, :user_id, :phone_number, :status, :credential_hash, :created_at, :updated_at)
        ON CONFLICT(instance_id) DO UPDATE SET
            tenant_id = excluded.tenant_id,
            user_id = excluded.user_id,
            phone_number = excluded.phone_number,
            status = excluded.status,
            credential_hash = excluded.credential_hash,
            version = tenant_instances.version + 1,
            updated_at = excluded.updated_at;
    `
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		s.logger.ErrorContext(ctx, "Error saving instance", "instance_id", inst.InstanceID, "error", err)
		return apperrors.NewDatabaseError("save instance "+inst.InstanceID, err)
	}
	s.logger.DebugContext(ctx, "Instance saved", "instance_id", inst.InstanceID, "tenant_id", inst.TenantID)
	return nil
}

func (s *sqlxStore) SetInstanceStatus(ctx context.Context, instanceID string, status domain.TenantStatus) error {
	switch status {
	case domain.TenantActive, domain.TenantSuspended, domain.TenantDisabled:
	default:
		return apperrors.NewValidationError(fmt.Sprintf("unknown status %q", status), nil)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE tenant_instances SET status = ?, version = version + 1, updated_at = ? WHERE instance_id = ?;`,
		string(status), time.Now().UTC(), instanceID)
	if err != nil {
		return apperrors.NewDatabaseError("update instance status", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrInstanceNotFound, instanceID)
	}
	return nil
}

func (s *sqlxStore) ListInstances(ctx context.Context) ([]domain.TenantInstance, error) {
	var rows []instanceRow
	query := `
        SELECT instance_id, tenant_id, user_id, phone_number, status, credential_hash, version, created_at, updated_at
        FROM tenant_instances
        ORDER BY tenant_id, user_id, instance_id;
    `
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, apperrors.NewDatabaseError("list instances", err)
	}
	out := make([]domain.TenantInstance, 0, len(rows))
	for i := range rows {
		out = append(out, *rows[i].toDomain())
	}
	return out, nil
}

func (s *sqlxStore) GetSenderHistory(ctx context.Context, tenantID, userID, senderPhone string) (*domain.HistoricalInterruptionData, error) {
	var row senderStatsRow
	query := `
        SELECT tenant_id, user_id, sender_phone, total_messages, urgent_count, not_urgent_count, avg_response_seconds, updated_at
        FROM sender_stats
        WHERE tenant_id = ? AND user_id = ? AND sender_phone = ?;
    `
	if err := s.db.GetContext(ctx, &row, query, tenantID, userID, senderPhone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, apperrors.NewDatabaseError("get sender history", err)
	}
	return row.toDomain(), nil
}

func (s *sqlxStore) RecordFeedback(ctx context.Context, tenantID, userID string, fb *domain.SenderFeedback) (bool, error) {
	if fb == nil {
		return false, fmt.Errorf("cannot save nil feedback")
	}
	if tenantID == "" || userID == "" || fb.MessageID == "" || fb.SenderPhone == "" {
		return false, apperrors.NewValidationError("feedback requires tenant_id, user_id, message_id and sender_phone", nil)
	}
	if fb.Feedback != domain.FeedbackImportant && fb.Feedback != domain.FeedbackNotImportant {
		return false, apperrors.NewValidationError(fmt.Sprintf("unknown feedback %q", fb.Feedback), nil)
	}

	now := time.Now().UTC()
	row := feedbackRow{
		TenantID:       tenantID,
		UserID:         userID,
		MessageID:      fb.MessageID,
		SenderPhone:    fb.SenderPhone,
		Important:      fb.Important(),
		WasInterrupted: fb.WasInterrupted,
		CreatedAt:      now,
	}
	if fb.ResponseSeconds != nil {
		row.ResponseSeconds = sql.NullFloat64{Float64: *fb.ResponseSeconds, Valid: true}
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for feedback", "tenant_id", tenantID, "error", err)
		return false, apperrors.NewDatabaseError("begin feedback transaction", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(); rollbackErr != nil && !errors.Is(rollbackErr, sql.ErrTxDone) {
			s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
		}
	}()

	// A replayed message_id is ignored so retried webhooks never double-count.
	insert := `
        INSERT INTO sender_feedback (tenant_id, user_id, message_id, sender_phone, important, was_interrupted, response_seconds, created_at)
        VALUES (:tenant_id, :user_id, :message_id, :sender_phone, :important, :was_interrupted, :response_seconds, :created_at)
        ON CONFLICT(tenant_id, user_id, message_id) DO NOTHING;
    `
	res, err := tx.NamedExecContext(ctx, insert, row)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error saving feedback", "tenant_id", tenantID, "message_id", fb.MessageID, "error", err)
		return false, apperrors.NewDatabaseError("save feedback "+fb.MessageID, err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return false, apperrors.NewDatabaseError("save feedback "+fb.MessageID, err)
	} else if n == 0 {
		s.logger.DebugContext(ctx, "Duplicate feedback ignored", "tenant_id", tenantID, "message_id", fb.MessageID)
		return false, nil
	}

	refresh := `
        INSERT INTO sender_stats (tenant_id, user_id, sender_phone, total_messages, urgent_count, not_urgent_count, avg_response_seconds, updated_at)
        SELECT tenant_id, user_id, sender_phone, COUNT(*), SUM(important), SUM(1 - important), AVG(response_seconds), ?
        FROM sender_feedback
        WHERE tenant_id = ? AND user_id = ? AND sender_phone = ?
        GROUP BY tenant_id, user_id, sender_phone
        ON CONFLICT(tenant_id, user_id, sender_phone) DO UPDATE SET
            total_messages = excluded.total_messages,
            urgent_count = excluded.urgent_count,
            not_urgent_count = excluded.not_urgent_count,
            avg_response_seconds = excluded.avg_response_seconds,
            updated_at = excluded.updated_at;
    `
	if _, err := tx.ExecContext(ctx, refresh, now, tenantID, userID, fb.SenderPhone); err != nil {
		s.logger.ErrorContext(ctx, "Error refreshing sender stats", "tenant_id", tenantID, "error", err)
		return false, apperrors.NewDatabaseError("refresh sender stats", err)
	}

	if err := tx.Commit(); err != nil {
		return false, apperrors.NewDatabaseError("commit feedback", err)
	}
	s.logger.DebugContext(ctx, "Feedback recorded",
		"tenant_id", tenantID, "message_id", fb.MessageID, "feedback", fb.Feedback)
	return true, nil
}

func (s *sqlxStore) AppendAuditTrail(ctx context.Context, trail *domain.AuditTrail) error {
	if trail == nil || trail.ID == "" {
		return apperrors.NewValidationError("audit trail requires an id", nil)
	}
	entries, err := json.Marshal(trail.Entries)
	if err != nil {
		return fmt.Errorf("failed to encode audit entries: %w", err)
	}
	createdAt := trail.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	row := auditRow{
		ID:         trail.ID,
		MessageID:  trail.MessageID,
		TenantID:   trail.TenantID,
		UserID:     trail.UserID,
		InstanceID: trail.InstanceID,
		Entries:    string(entries),
		CreatedAt:  createdAt.UTC(),
	}
	query := `
        INSERT INTO audit_trails (id, message_id, tenant_id, user_id, instance_id, entries, created_at)
        VALUES (:id, :message_id, :tenant_id, :user_id, :instance_id, :entries, :created_at);
    `
	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return apperrors.NewDatabaseError("append audit trail "+trail.ID, err)
	}
	return nil
}

func (s *sqlxStore) PurgeAuditTrails(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_trails WHERE created_at < ?;`, before.UTC())
	if err != nil {
		return 0, apperrors.NewDatabaseError("purge audit trails", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.NewDatabaseError("purge audit trails", err)
	}
	return n, nil
}

// RunSQLMaintenance reclaims space and refreshes planner statistics.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM;"); err != nil {
		return apperrors.NewDatabaseError("vacuum", err)
	}
	if _, err := s.db.ExecContext(ctx, "ANALYZE;"); err != nil {
		return apperrors.NewDatabaseError("analyze", err)
	}
	return nil
}
