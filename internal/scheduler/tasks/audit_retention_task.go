package tasks

import (
	"context"
	"fmt"
)

// newAuditRetentionTask deletes audit trails older than the retention window.
// A non-positive retention keeps everything.
func newAuditRetentionTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", AuditRetention)

	return func(ctx context.Context) error {
		if deps.AuditRetention <= 0 {
			log.DebugContext(ctx, "Audit retention disabled")
			return nil
		}
		cutoff := deps.Now().Add(-deps.AuditRetention)
		n, err := deps.Store.PurgeAuditTrails(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("audit retention failed: %w", err)
		}
		log.InfoContext(ctx, "Purged audit trails", "deleted", n, "cutoff", cutoff)
		return nil
	}
}
