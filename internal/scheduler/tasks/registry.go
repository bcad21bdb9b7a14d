// Package tasks implements the scheduled maintenance tasks.
package tasks

import (
	"context"
	"io"
	"log/slog"
	"time"
)

// Task names, matching the keys under scheduler.tasks in config.
const (
	SQLMaintenance   = "sql_maintenance"
	AuditRetention   = "audit_retention"
	RuleStatsReset   = "rule_stats_reset"
	TenantCacheReset = "tenant_cache_reset"
)

// ScheduledTaskFunc is the signature of every scheduled task.
type ScheduledTaskFunc func(ctx context.Context) error

// MaintenanceStore is the persistence the tasks need.
type MaintenanceStore interface {
	RunSQLMaintenance(ctx context.Context) error
	PurgeAuditTrails(ctx context.Context, before time.Time) (int64, error)
}

// StatsResetter is the rule engine counter surface.
type StatsResetter interface {
	ResetStats()
}

// CacheResetter is the tenant resolver cache surface.
type CacheResetter interface {
	Reset() int
}

// TaskDeps are the collaborators of the scheduled tasks.
type TaskDeps struct {
	Logger         *slog.Logger
	Store          MaintenanceStore
	Rules          StatsResetter
	Tenants        CacheResetter
	AuditRetention time.Duration
	// Now overrides the clock, for tests.
	Now func() time.Time
}

// RegisterAllTasks builds every task keyed by its config name.
func RegisterAllTasks(deps TaskDeps) map[string]ScheduledTaskFunc {
	if deps.Logger == nil {
		deps.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}

	tasks := map[string]ScheduledTaskFunc{
		SQLMaintenance:   newSQLMaintenanceTask(deps),
		AuditRetention:   newAuditRetentionTask(deps),
		RuleStatsReset:   newRuleStatsResetTask(deps),
		TenantCacheReset: newTenantCacheResetTask(deps),
	}
	deps.Logger.Info("Initialized scheduled tasks", "count", len(tasks))
	return tasks
}
