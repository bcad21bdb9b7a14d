package tasks

import "context"

func newRuleStatsResetTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", RuleStatsReset)

	return func(ctx context.Context) error {
		deps.Rules.ResetStats()
		log.InfoContext(ctx, "Rule engine statistics reset")
		return nil
	}
}

// newTenantCacheResetTask drops cached tenant contexts so status changes made
// outside the service are picked up.
func newTenantCacheResetTask(deps TaskDeps) ScheduledTaskFunc {
	log := deps.Logger.With("task", TenantCacheReset)

	return func(ctx context.Context) error {
		n := deps.Tenants.Reset()
		log.InfoContext(ctx, "Tenant cache reset", "evicted", n)
		return nil
	}
}
