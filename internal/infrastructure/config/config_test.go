package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	// Save original env vars and restore after tests
	originalEnv := map[string]string{
		"PRICING_APP_NAME":                  os.Getenv("PRICING_APP_NAME"),
		"PRICING_APP_ENV":                   os.Getenv("PRICING_APP_ENV"),
		"PRICING_DATABASE_HOST":             os.Getenv("PRICING_DATABASE_HOST"),
		"PRICING_DATABASE_PORT":             os.Getenv("PRICING_DATABASE_PORT"),
		"PRICING_DATABASE_PASSWORD":         os.Getenv("PRICING_DATABASE_PASSWORD"),
		"PRICING_DATABASE_SSLMODE":          os.Getenv("PRICING_DATABASE_SSLMODE"),
		"PRICING_DATABASE_MAX_OPEN_CONNS":   os.Getenv("PRICING_DATABASE_MAX_OPEN_CONNS"),
		"PRICING_DATABASE_MAX_IDLE_CONNS":   os.Getenv("PRICING_DATABASE_MAX_IDLE_CONNS"),
		"PRICING_SCHEDULER_RUN_HOUR":        os.Getenv("PRICING_SCHEDULER_RUN_HOUR"),
		"PRICING_COLLECTOR_CHANNELS":        os.Getenv("PRICING_COLLECTOR_CHANNELS"),
		"PRICING_COLLECTOR_CLASS_ADDRESSES": os.Getenv("PRICING_COLLECTOR_CLASS_ADDRESSES"),
		"PRICING_COLLECTOR_CONNECT_TIMEOUT": os.Getenv("PRICING_COLLECTOR_CONNECT_TIMEOUT"),
		"PRICING_TELEMETRY_SAMPLING_RATIO":  os.Getenv("PRICING_TELEMETRY_SAMPLING_RATIO"),
		"PRICING_TELEMETRY_DB_LOG_FULL_SQL": os.Getenv("PRICING_TELEMETRY_DB_LOG_FULL_SQL"),
		"PRICING_TELEMETRY_LOGS_LEVEL":      os.Getenv("PRICING_TELEMETRY_LOGS_LEVEL"),
		"PRICING_AUTH_JWT_SECRET":           os.Getenv("PRICING_AUTH_JWT_SECRET"),
		"PRICING_EXPORT_ACCESS_KEY":         os.Getenv("PRICING_EXPORT_ACCESS_KEY"),
	}

	defer func() {
		for k, v := range originalEnv {
			if v == "" {
				os.Unsetenv(k)
			} else {
				os.Setenv(k, v)
			}
		}
	}()

	clearEnv := func() {
		for k := range originalEnv {
			os.Unsetenv(k)
		}
	}

	t.Run("loads default values when env vars not set", func(t *testing.T) {
		clearEnv()

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "pricing", cfg.App.Name)
		assert.Equal(t, "development", cfg.App.Env)
		assert.Equal(t, "8080", cfg.App.Port)
		assert.Equal(t, "localhost", cfg.Database.Host)
		assert.Equal(t, 5432, cfg.Database.Port)
		assert.Equal(t, "pricing", cfg.Database.DBName)
		assert.Equal(t, 25, cfg.Database.MaxOpenConns)
		assert.Equal(t, 2, cfg.Scheduler.RunHour)
		assert.Equal(t, "/data/nfsen/profiles-data/live", cfg.Collector.DataDir)
		assert.Equal(t, 10*time.Second, cfg.Collector.ConnectTimeout)
		assert.Equal(t, "network", cfg.Collector.UsageTypeName)
		assert.Equal(t, "", cfg.Redis.Addr())
		assert.False(t, cfg.Scheduler.Enabled)
		assert.Equal(t, 20*time.Hour, cfg.Collector.GuardTTL)
		assert.False(t, cfg.Telemetry.MetricsEnabled)
		assert.Equal(t, time.Minute, cfg.Telemetry.MetricsExportInterval)
		assert.Equal(t, "info", cfg.Telemetry.LogsLevel)
		assert.False(t, cfg.Profiling.Enabled)
		assert.False(t, cfg.Auth.Enabled())
		assert.Equal(t, 30*24*time.Hour, cfg.Auth.TokenTTL)
		assert.Equal(t, "reports", cfg.Export.Prefix)
		assert.Empty(t, cfg.Export.Bucket)
	})

	t.Run("keeps an explicit midnight run hour", func(t *testing.T) {
		clearEnv()
		os.Setenv("PRICING_SCHEDULER_RUN_HOUR", "0")

		cfg, err := Load()
		require.NoError(t, err)
		assert.Equal(t, 0, cfg.Scheduler.RunHour)
	})

	t.Run("loads values from environment variables with PRICING prefix", func(t *testing.T) {
		clearEnv()
		os.Setenv("PRICING_APP_NAME", "pricing-test")
		os.Setenv("PRICING_DATABASE_HOST", "db.local")
		os.Setenv("PRICING_DATABASE_PORT", "5433")
		os.Setenv("PRICING_SCHEDULER_RUN_HOUR", "5")
		os.Setenv("PRICING_COLLECTOR_CHANNELS", "switch-1 switch-2")
		os.Setenv("PRICING_COLLECTOR_CLASS_ADDRESSES", `^10\.1\. ^10\.2\.`)
		os.Setenv("PRICING_COLLECTOR_CONNECT_TIMEOUT", "3s")

		cfg, err := Load()
		require.NoError(t, err)

		assert.Equal(t, "pricing-test", cfg.App.Name)
		assert.Equal(t, "db.local", cfg.Database.Host)
		assert.Equal(t, 5433, cfg.Database.Port)
		assert.Equal(t, 5, cfg.Scheduler.RunHour)
		assert.Equal(t, []string{"switch-1", "switch-2"}, cfg.Collector.Channels)
		assert.Equal(t, []string{`^10\.1\.`, `^10\.2\.`}, cfg.Collector.ClassAddresses)
		assert.Equal(t, 3*time.Second, cfg.Collector.ConnectTimeout)
	})

	t.Run("validates MaxIdleConns cannot exceed MaxOpenConns", func(t *testing.T) {
		clearEnv()
		os.Setenv("PRICING_DATABASE_MAX_OPEN_CONNS", "10")
		os.Setenv("PRICING_DATABASE_MAX_IDLE_CONNS", "20")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cannot exceed")
	})

	t.Run("rejects run hour out of range", func(t *testing.T) {
		clearEnv()
		os.Setenv("PRICING_SCHEDULER_RUN_HOUR", "24")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "run_hour")
	})

	t.Run("rejects invalid class address expression", func(t *testing.T) {
		clearEnv()
		os.Setenv("PRICING_COLLECTOR_CLASS_ADDRESSES", "10.(")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "class_addresses")
	})

	t.Run("rejects sampling ratio above one", func(t *testing.T) {
		clearEnv()
		os.Setenv("PRICING_TELEMETRY_SAMPLING_RATIO", "1.5")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sampling_ratio")
	})

	t.Run("rejects unknown log export level", func(t *testing.T) {
		clearEnv()
		os.Setenv("PRICING_TELEMETRY_LOGS_LEVEL", "chatty")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "logs_level")
	})

	t.Run("rejects a short jwt secret", func(t *testing.T) {
		clearEnv()
		os.Setenv("PRICING_AUTH_JWT_SECRET", "too-short")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "auth.jwt_secret")
	})

	t.Run("rejects an export access key without secret", func(t *testing.T) {
		clearEnv()
		os.Setenv("PRICING_EXPORT_ACCESS_KEY", "AKIAEXAMPLE")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "export.access_key")
	})

	t.Run("production requires database password", func(t *testing.T) {
		clearEnv()
		os.Setenv("PRICING_APP_ENV", "production")
		os.Setenv("PRICING_DATABASE_SSLMODE", "require")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "database.password")
	})

	t.Run("production rejects full sql logging", func(t *testing.T) {
		clearEnv()
		os.Setenv("PRICING_APP_ENV", "production")
		os.Setenv("PRICING_DATABASE_PASSWORD", "secret")
		os.Setenv("PRICING_DATABASE_SSLMODE", "require")
		os.Setenv("PRICING_TELEMETRY_DB_LOG_FULL_SQL", "true")

		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db_log_full_sql")
	})
}

func TestLoad_WithFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pricing.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[scheduler]
enabled = true
run_hour = 4

[collector]
channels = ["core-1"]
class_addresses = ["^10\\.20\\."]
guard_ttl = "12h"

[[collector.hosts]]
address = "nfsen-1.dc:22"
user = "pricing"
password = "secret"
`), 0o600))

	cfg, err := Load(WithFile(path))
	require.NoError(t, err)

	assert.True(t, cfg.Scheduler.Enabled)
	assert.Equal(t, 4, cfg.Scheduler.RunHour)
	assert.Equal(t, []string{"core-1"}, cfg.Collector.Channels)
	assert.Equal(t, []string{`^10\.20\.`}, cfg.Collector.ClassAddresses)
	assert.Equal(t, 12*time.Hour, cfg.Collector.GuardTTL)
	require.Len(t, cfg.Collector.Hosts, 1)
	assert.Equal(t, CollectorHost{Address: "nfsen-1.dc:22", User: "pricing", Password: "secret"}, cfg.Collector.Hosts[0])
	// untouched sections keep their defaults
	assert.Equal(t, "localhost", cfg.Database.Host)

	_, err = Load(WithFile(filepath.Join(t.TempDir(), "missing.toml")))
	assert.Error(t, err)
}

func TestConfig_validateCollectorHosts(t *testing.T) {
	cfg := &Config{Database: DatabaseConfig{MaxOpenConns: 1}}

	cfg.Collector.Hosts = []CollectorHost{{Address: "nfsen-1:22"}}
	cfg.Collector.Channels = []string{"switch-1"}
	err := cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user is required")

	cfg.Collector.Hosts[0].User = "pricing"
	cfg.Collector.Channels = nil
	err = cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collector.channels")

	cfg.Collector.Channels = []string{"switch-1"}
	assert.NoError(t, cfg.validate())

	cfg.App.Env = "production"
	cfg.Database.Password = "secret"
	cfg.Database.SSLMode = "require"
	err = cfg.validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "collector.known_hosts_file")

	cfg.Collector.KnownHostsFile = "/etc/pricing/known_hosts"
	assert.NoError(t, cfg.validate())
}

func TestDatabaseConfig_DSN(t *testing.T) {
	t.Run("escapes special characters in password", func(t *testing.T) {
		cfg := &DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "pricing",
			Password: "p@ss/word",
			DBName:   "pricing",
			SSLMode:  "disable",
		}

		dsn := cfg.DSN()
		assert.Contains(t, dsn, "p%40ss%2Fword")
		assert.Contains(t, dsn, "localhost:5432/pricing")
		assert.Contains(t, dsn, "sslmode=disable")
	})
}

func TestRedisConfig_Addr(t *testing.T) {
	r := &RedisConfig{Host: "cache", Port: 6380}
	assert.Equal(t, "cache:6380", r.Addr())
}
