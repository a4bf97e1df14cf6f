package config

import (
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// Config holds all application configuration
type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Log       LogConfig
	HTTP      HTTPConfig
	Scheduler SchedulerConfig
	Collector CollectorConfig
	Telemetry TelemetryConfig
	Profiling ProfilingConfig
	Auth      AuthConfig
	Export    ExportConfig
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	Output string // stdout, stderr, or file path
}

// AppConfig holds application-specific settings
type AppConfig struct {
	Name string
	Env  string
	Port string
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	DBName          string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime int // in minutes
	ConnMaxIdleTime int // in minutes
}

// RedisConfig holds Redis connection settings. An empty host disables Redis.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int
	TrustedProxies []string
}

// SchedulerConfig holds the daily collection scheduler configuration
type SchedulerConfig struct {
	Enabled       bool
	RunHour       int // hour of day (UTC) at which the previous day is collected
	JobTimeout    time.Duration
	RetryAttempts int
	RetryDelay    time.Duration
}

// CollectorHost is one traffic accounting host reached over SSH
type CollectorHost struct {
	Address  string `mapstructure:"address"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// CollectorConfig holds the network usage collector settings
type CollectorConfig struct {
	Hosts          []CollectorHost
	Channels       []string
	ClassAddresses []string // regular expressions selecting the addresses to account
	DataDir        string
	KnownHostsFile string // empty disables host key verification
	ConnectTimeout time.Duration
	CommandTimeout time.Duration
	UsageTypeName  string
	GuardTTL       time.Duration // how long a collected day stays locked against re-collection
}

// TelemetryConfig holds OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled           bool    // Whether to enable OpenTelemetry
	CollectorEndpoint string  // OTEL Collector endpoint (e.g., "localhost:4317")
	SamplingRatio     float64 // Sampling ratio (0.0-1.0, 1.0 = 100%)
	ServiceName       string  // Service name for traces
	Insecure          bool    // Use insecure (non-TLS) connection (development only)
	// Database tracing options
	DBTraceEnabled    bool          // Enable database query tracing (otelgorm)
	DBLogFullSQL      bool          // Log full SQL statements (dev only)
	DBSlowQueryThresh time.Duration // Slow query threshold for warnings

	// Metrics and log export share the collector endpoint
	MetricsEnabled        bool
	MetricsExportInterval time.Duration
	LogsEnabled           bool
	LogsLevel             string // lowest level exported over OTLP
}

// ProfilingConfig holds Pyroscope continuous profiling configuration
type ProfilingConfig struct {
	Enabled           bool
	ServerAddress     string
	ApplicationName   string
	BasicAuthUser     string
	BasicAuthPassword string
	ProfileTypes      []string // cpu, alloc_space, inuse_space, goroutines, ...
	SpanProfiles      bool     // label samples with the active span id
}

// AuthConfig protects the report API with HS256 bearer tokens. An empty
// secret leaves the API open.
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration // lifetime of tokens issued by pricingctl token
}

// Enabled reports whether requests must carry a token
func (a AuthConfig) Enabled() bool {
	return a.JWTSecret != ""
}

// ExportConfig is the S3 compatible bucket that receives exported reports
type ExportConfig struct {
	Bucket       string
	Prefix       string
	Region       string
	Endpoint     string // empty for AWS, e.g. http://minio:9000 otherwise
	AccessKey    string // empty uses the default AWS credential chain
	SecretKey    string
	UsePathStyle bool
}

// LoadOption customizes Load
type LoadOption func(*viper.Viper)

// WithFile reads configuration from path instead of searching for
// config.toml in the working directory, /etc/pricing and /app.
func WithFile(path string) LoadOption {
	return func(v *viper.Viper) {
		v.SetConfigFile(path)
	}
}

// Load reads the configuration. Environment variables prefixed with PRICING_
// (PRICING_DATABASE_PASSWORD for database.password) win over the file, and
// the file wins over the defaults in defaults.go.
func Load(opts ...LoadOption) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/pricing")
	v.AddConfigPath("/app")
	for _, opt := range opts {
		opt(v)
	}
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvPrefix("PRICING")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var hosts []CollectorHost
	if err := v.UnmarshalKey("collector.hosts", &hosts); err != nil {
		return nil, fmt.Errorf("error reading collector.hosts: %w", err)
	}

	cfg := &Config{
		App: AppConfig{
			Name: v.GetString("app.name"),
			Env:  v.GetString("app.env"),
			Port: v.GetString("app.port"),
		},
		Database: DatabaseConfig{
			Host:            v.GetString("database.host"),
			Port:            v.GetInt("database.port"),
			User:            v.GetString("database.user"),
			Password:        v.GetString("database.password"),
			DBName:          v.GetString("database.dbname"),
			SSLMode:         v.GetString("database.sslmode"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetInt("database.conn_max_lifetime"),
			ConnMaxIdleTime: v.GetInt("database.conn_max_idle_time"),
		},
		Redis: RedisConfig{
			Host:     v.GetString("redis.host"),
			Port:     v.GetInt("redis.port"),
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
			Output: v.GetString("log.output"),
		},
		HTTP: HTTPConfig{
			ReadTimeout:    v.GetDuration("http.read_timeout"),
			WriteTimeout:   v.GetDuration("http.write_timeout"),
			IdleTimeout:    v.GetDuration("http.idle_timeout"),
			MaxHeaderBytes: v.GetInt("http.max_header_bytes"),
			TrustedProxies: v.GetStringSlice("http.trusted_proxies"),
		},
		Scheduler: SchedulerConfig{
			Enabled:       v.GetBool("scheduler.enabled"),
			RunHour:       v.GetInt("scheduler.run_hour"),
			JobTimeout:    v.GetDuration("scheduler.job_timeout"),
			RetryAttempts: v.GetInt("scheduler.retry_attempts"),
			RetryDelay:    v.GetDuration("scheduler.retry_delay"),
		},
		Collector: CollectorConfig{
			Hosts:          hosts,
			Channels:       v.GetStringSlice("collector.channels"),
			ClassAddresses: v.GetStringSlice("collector.class_addresses"),
			DataDir:        v.GetString("collector.data_dir"),
			KnownHostsFile: v.GetString("collector.known_hosts_file"),
			ConnectTimeout: v.GetDuration("collector.connect_timeout"),
			CommandTimeout: v.GetDuration("collector.command_timeout"),
			UsageTypeName:  v.GetString("collector.usage_type_name"),
			GuardTTL:       v.GetDuration("collector.guard_ttl"),
		},
		Telemetry: TelemetryConfig{
			Enabled:           v.GetBool("telemetry.enabled"),
			CollectorEndpoint: v.GetString("telemetry.collector_endpoint"),
			SamplingRatio:     v.GetFloat64("telemetry.sampling_ratio"),
			ServiceName:       v.GetString("telemetry.service_name"),
			Insecure:          v.GetBool("telemetry.insecure"),
			DBTraceEnabled:    v.GetBool("telemetry.db_trace_enabled"),
			DBLogFullSQL:      v.GetBool("telemetry.db_log_full_sql"),
			DBSlowQueryThresh: v.GetDuration("telemetry.db_slow_query_threshold"),

			MetricsEnabled:        v.GetBool("telemetry.metrics_enabled"),
			MetricsExportInterval: v.GetDuration("telemetry.metrics_export_interval"),
			LogsEnabled:           v.GetBool("telemetry.logs_enabled"),
			LogsLevel:             v.GetString("telemetry.logs_level"),
		},
		Profiling: ProfilingConfig{
			Enabled:           v.GetBool("profiling.enabled"),
			ServerAddress:     v.GetString("profiling.server_address"),
			ApplicationName:   v.GetString("profiling.application_name"),
			BasicAuthUser:     v.GetString("profiling.basic_auth_user"),
			BasicAuthPassword: v.GetString("profiling.basic_auth_password"),
			ProfileTypes:      v.GetStringSlice("profiling.profile_types"),
			SpanProfiles:      v.GetBool("profiling.span_profiles"),
		},
		Auth: AuthConfig{
			JWTSecret: v.GetString("auth.jwt_secret"),
			Issuer:    v.GetString("auth.issuer"),
			TokenTTL:  v.GetDuration("auth.token_ttl"),
		},
		Export: ExportConfig{
			Bucket:       v.GetString("export.bucket"),
			Prefix:       v.GetString("export.prefix"),
			Region:       v.GetString("export.region"),
			Endpoint:     v.GetString("export.endpoint"),
			AccessKey:    v.GetString("export.access_key"),
			SecretKey:    v.GetString("export.secret_key"),
			UsePathStyle: v.GetBool("export.use_path_style"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate performs validation on the configuration
func (c *Config) validate() error {
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("database.max_open_conns must be positive")
	}
	if c.Database.MaxIdleConns < 0 {
		return fmt.Errorf("database.max_idle_conns cannot be negative")
	}
	if c.Database.MaxIdleConns > c.Database.MaxOpenConns {
		return fmt.Errorf("database.max_idle_conns (%d) cannot exceed database.max_open_conns (%d)",
			c.Database.MaxIdleConns, c.Database.MaxOpenConns)
	}

	if c.Scheduler.RunHour < 0 || c.Scheduler.RunHour > 23 {
		return fmt.Errorf("scheduler.run_hour must be between 0 and 23, got %d", c.Scheduler.RunHour)
	}

	for i, h := range c.Collector.Hosts {
		if h.Address == "" {
			return fmt.Errorf("collector.hosts[%d].address is required", i)
		}
		if h.User == "" {
			return fmt.Errorf("collector.hosts[%d].user is required", i)
		}
	}
	if len(c.Collector.Hosts) > 0 && len(c.Collector.Channels) == 0 {
		return fmt.Errorf("collector.channels is required when collector.hosts are set")
	}
	for _, expr := range c.Collector.ClassAddresses {
		if _, err := regexp.Compile(expr); err != nil {
			return fmt.Errorf("collector.class_addresses: invalid expression %q: %w", expr, err)
		}
	}

	if c.App.Env == "production" {
		if c.Database.Password == "" {
			return fmt.Errorf("database.password is required in production")
		}
		if c.Database.SSLMode == "disable" {
			return fmt.Errorf("database.sslmode cannot be 'disable' in production")
		}
		if c.Telemetry.DBLogFullSQL {
			return fmt.Errorf("telemetry.db_log_full_sql must be false in production to prevent sensitive data exposure in traces")
		}
		if len(c.Collector.Hosts) > 0 && c.Collector.KnownHostsFile == "" {
			return fmt.Errorf("collector.known_hosts_file is required in production")
		}
	}

	if c.Telemetry.SamplingRatio < 0.0 || c.Telemetry.SamplingRatio > 1.0 {
		return fmt.Errorf("telemetry.sampling_ratio must be between 0.0 and 1.0, got %f", c.Telemetry.SamplingRatio)
	}
	if _, err := zapcore.ParseLevel(c.Telemetry.LogsLevel); err != nil {
		return fmt.Errorf("telemetry.logs_level: %w", err)
	}
	if c.Auth.Enabled() && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}
	if (c.Export.AccessKey == "") != (c.Export.SecretKey == "") {
		return fmt.Errorf("export.access_key and export.secret_key must be set together")
	}

	return nil
}

// DSN returns the database connection string with properly escaped values
func (d *DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   d.DBName,
	}
	q := u.Query()
	q.Set("sslmode", d.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

// Addr returns the Redis address, or "" when Redis is not configured
func (r *RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}
