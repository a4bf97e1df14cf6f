package config

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaults registers the built-in values. Defaults live in viper rather
// than on the struct so an explicit zero, such as scheduler.run_hour = 0,
// is kept.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "pricing")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.port", "8080")

	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "pricing")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.conn_max_idle_time", 30)

	// An empty host keeps the collection guard in memory.
	v.SetDefault("redis.host", "")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output", "stdout")

	v.SetDefault("http.read_timeout", 15*time.Second)
	v.SetDefault("http.write_timeout", 30*time.Second)
	v.SetDefault("http.idle_timeout", 60*time.Second)
	v.SetDefault("http.max_header_bytes", 1<<20)

	v.SetDefault("scheduler.enabled", false)
	v.SetDefault("scheduler.run_hour", 2)
	v.SetDefault("scheduler.job_timeout", 30*time.Minute)
	v.SetDefault("scheduler.retry_attempts", 3)
	v.SetDefault("scheduler.retry_delay", 5*time.Minute)

	v.SetDefault("collector.data_dir", "/data/nfsen/profiles-data/live")
	v.SetDefault("collector.connect_timeout", 10*time.Second)
	v.SetDefault("collector.command_timeout", 5*time.Minute)
	v.SetDefault("collector.usage_type_name", "network")
	v.SetDefault("collector.guard_ttl", 20*time.Hour)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.collector_endpoint", "localhost:4317")
	v.SetDefault("telemetry.sampling_ratio", 1.0)
	v.SetDefault("telemetry.service_name", "pricing")
	v.SetDefault("telemetry.db_slow_query_threshold", 200*time.Millisecond)
	v.SetDefault("telemetry.metrics_enabled", false)
	v.SetDefault("telemetry.metrics_export_interval", 60*time.Second)
	v.SetDefault("telemetry.logs_enabled", false)
	v.SetDefault("telemetry.logs_level", "info")

	v.SetDefault("profiling.enabled", false)
	v.SetDefault("profiling.server_address", "http://localhost:4040")
	v.SetDefault("profiling.application_name", "pricing")
	v.SetDefault("profiling.span_profiles", false)

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "pricing")
	v.SetDefault("auth.token_ttl", 30*24*time.Hour)

	v.SetDefault("export.prefix", "reports")
	v.SetDefault("export.region", "us-east-1")
}
