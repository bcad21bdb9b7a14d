package config

import (
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "JAIMINHO"

func setDefaults(v *viper.Viper) {
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.json", true)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.shutdown_timeout", 15*time.Second)
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.rate_limit", 120)
	v.SetDefault("server.rate_window", time.Minute)

	v.SetDefault("database.path", "jaiminho.db")

	v.SetDefault("tenant.cache_capacity", 1000)

	v.SetDefault("classifier.provider", "none")
	v.SetDefault("classifier.api_key", "")
	v.SetDefault("classifier.model", "")
	v.SetDefault("classifier.base_url", "")
	v.SetDefault("classifier.temperature", 0.2)
	v.SetDefault("classifier.max_tokens", 512)
	v.SetDefault("classifier.timeout", 10*time.Second)
	v.SetDefault("classifier.max_retries", 2)
	v.SetDefault("classifier.retry_delay", 500*time.Millisecond)
	v.SetDefault("classifier.breaker_max_failures", 5)
	v.SetDefault("classifier.breaker_reset_interval", 60*time.Second)

	v.SetDefault("audit.retention", 90*24*time.Hour)

	v.SetDefault("scheduler.tasks.sql_maintenance.enabled", true)
	v.SetDefault("scheduler.tasks.sql_maintenance.schedule", "0 0 3 * * *")
	v.SetDefault("scheduler.tasks.audit_retention.enabled", true)
	v.SetDefault("scheduler.tasks.audit_retention.schedule", "0 30 3 * * *")
	v.SetDefault("scheduler.tasks.rule_stats_reset.enabled", true)
	v.SetDefault("scheduler.tasks.rule_stats_reset.schedule", "0 0 0 * * *")
	v.SetDefault("scheduler.tasks.tenant_cache_reset.enabled", true)
	v.SetDefault("scheduler.tasks.tenant_cache_reset.schedule", "0 */15 * * * *")
}
