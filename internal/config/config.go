package config

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	Storage       StorageConfig       `yaml:"storage"`
	Matching      MatchingConfig      `yaml:"matching"`
	Contact       ContactConfig       `yaml:"contact"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Auth          AuthConfig          `yaml:"auth"`
	Attachments   AttachmentsConfig   `yaml:"attachments"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit"`
	Log           LogConfig           `yaml:"log"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port                int      `yaml:"port"`
	Host                string   `yaml:"host"`
	ReadTimeoutSeconds  int      `yaml:"read_timeout_seconds"`
	WriteTimeoutSeconds int      `yaml:"write_timeout_seconds"`
	AllowedOrigins      []string `yaml:"allowed_origins"`
}

// ReadTimeout returns the read timeout as a time.Duration
func (s ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(s.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the write timeout as a time.Duration
func (s ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(s.WriteTimeoutSeconds) * time.Second
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	URL          string `yaml:"url"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// RedisConfig holds Redis connection settings. An empty Addr disables Redis;
// locks, quotas and idempotency then fall back to PostgreSQL or memory.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool { return r.Addr != "" }

// StorageConfig selects the persistence backend
type StorageConfig struct {
	Type string `yaml:"type"` // "memory" or "postgres"
	// SeedFile preloads the in-memory directory (memory storage only).
	SeedFile string `yaml:"seed_file"`
}

// MatchingConfig holds request lifecycle settings
type MatchingConfig struct {
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
	LockTTLSeconds       int `yaml:"lock_ttl_seconds"`
	LockWaitMillis       int `yaml:"lock_wait_millis"`
	SuggestedLimit       int `yaml:"suggested_limit"`
}

// SweepInterval returns the expiry sweep period as a time.Duration
func (m MatchingConfig) SweepInterval() time.Duration {
	return time.Duration(m.SweepIntervalSeconds) * time.Second
}

// LockTTL returns the per-request lock TTL as a time.Duration
func (m MatchingConfig) LockTTL() time.Duration {
	return time.Duration(m.LockTTLSeconds) * time.Second
}

// LockWait returns how long a mutation waits for the request lock
func (m MatchingConfig) LockWait() time.Duration {
	return time.Duration(m.LockWaitMillis) * time.Millisecond
}

// ContactConfig holds contact-reveal quota settings
type ContactConfig struct {
	MaxViews        int            `yaml:"max_views"`
	DefaultTimezone string         `yaml:"default_timezone"`
	MaxViewsByPlan  map[string]int `yaml:"max_views_by_plan"`
}

// MaxViewsFor returns the daily allowance for a subscription plan.
func (c ContactConfig) MaxViewsFor(plan string) int {
	if n, ok := c.MaxViewsByPlan[plan]; ok && n > 0 {
		return n
	}
	return c.MaxViews
}

// NotificationsConfig holds dispatcher settings
type NotificationsConfig struct {
	Queue               string        `yaml:"queue"` // "memory" or "asynq"
	Workers             int           `yaml:"workers"`
	MaxAttempts         int           `yaml:"max_attempts"`
	BaseDelayMillis     int           `yaml:"base_delay_millis"`
	MaxDelaySeconds     int           `yaml:"max_delay_seconds"`
	IdempotencyTTLHours int           `yaml:"idempotency_ttl_hours"`
	Push                GatewayConfig `yaml:"push"`
	SMS                 GatewayConfig `yaml:"sms"`
}

// BaseDelay returns the first retry backoff as a time.Duration
func (n NotificationsConfig) BaseDelay() time.Duration {
	return time.Duration(n.BaseDelayMillis) * time.Millisecond
}

// MaxDelay returns the backoff cap as a time.Duration
func (n NotificationsConfig) MaxDelay() time.Duration {
	return time.Duration(n.MaxDelaySeconds) * time.Second
}

// IdempotencyTTL returns how long delivered keys are remembered
func (n NotificationsConfig) IdempotencyTTL() time.Duration {
	return time.Duration(n.IdempotencyTTLHours) * time.Hour
}

// GatewayConfig holds an HTTP delivery gateway's settings. An empty BaseURL
// disables the channel.
type GatewayConfig struct {
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Sender         string `yaml:"sender"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// Timeout returns the timeout as a time.Duration
func (g GatewayConfig) Timeout() time.Duration {
	return time.Duration(g.TimeoutSeconds) * time.Second
}

// AuthConfig holds actor resolution settings
type AuthConfig struct {
	JWTSecret           string `yaml:"jwt_secret"`
	TrustGatewayHeaders bool   `yaml:"trust_gateway_headers"`
}

// AttachmentsConfig holds S3 settings for chat image uploads
type AttachmentsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	S3Bucket   string `yaml:"s3_bucket"`
	S3Region   string `yaml:"s3_region"`
	AWSProfile string `yaml:"aws_profile"`
	// Static keys take precedence over the profile and instance role.
	AccessKeyID       string `yaml:"access_key_id"`
	SecretAccessKey   string `yaml:"secret_access_key"`
	KeyPrefix         string `yaml:"key_prefix"`
	PresignTTLMinutes int    `yaml:"presign_ttl_minutes"`
	MaxBytes          int64  `yaml:"max_bytes"`
}

// PresignTTL returns the upload URL lifetime as a time.Duration
func (a AttachmentsConfig) PresignTTL() time.Duration {
	return time.Duration(a.PresignTTLMinutes) * time.Minute
}

// RateLimitConfig holds per-actor API rate limits. Zero RPS disables limiting.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// LogConfig holds logger settings
type LogConfig struct {
	Level     string `yaml:"level"`
	RedactPII *bool  `yaml:"redact_pii"`
}

// Redact reports whether PII redaction is on (default true).
func (l LogConfig) Redact() bool {
	return l.RedactPII == nil || *l.RedactPII
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.ReadTimeoutSeconds == 0 {
		cfg.Server.ReadTimeoutSeconds = 15
	}
	if cfg.Server.WriteTimeoutSeconds == 0 {
		cfg.Server.WriteTimeoutSeconds = 30
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 5
	}
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "memory"
	}
	if cfg.Matching.SweepIntervalSeconds == 0 {
		cfg.Matching.SweepIntervalSeconds = 60
	}
	if cfg.Matching.LockTTLSeconds == 0 {
		cfg.Matching.LockTTLSeconds = 10
	}
	if cfg.Matching.LockWaitMillis == 0 {
		cfg.Matching.LockWaitMillis = 3000
	}
	if cfg.Matching.SuggestedLimit == 0 {
		cfg.Matching.SuggestedLimit = 20
	}
	if cfg.Contact.MaxViews == 0 {
		cfg.Contact.MaxViews = 5
	}
	if cfg.Contact.DefaultTimezone == "" {
		cfg.Contact.DefaultTimezone = "Asia/Dubai"
	}
	if cfg.Notifications.Queue == "" {
		cfg.Notifications.Queue = "memory"
	}
	if cfg.Notifications.Workers == 0 {
		cfg.Notifications.Workers = 4
	}
	if cfg.Notifications.MaxAttempts == 0 {
		cfg.Notifications.MaxAttempts = 5
	}
	if cfg.Notifications.BaseDelayMillis == 0 {
		cfg.Notifications.BaseDelayMillis = 1000
	}
	if cfg.Notifications.MaxDelaySeconds == 0 {
		cfg.Notifications.MaxDelaySeconds = 60
	}
	if cfg.Notifications.IdempotencyTTLHours == 0 {
		cfg.Notifications.IdempotencyTTLHours = 72
	}
	if cfg.Notifications.Push.TimeoutSeconds == 0 {
		cfg.Notifications.Push.TimeoutSeconds = 10
	}
	if cfg.Notifications.SMS.TimeoutSeconds == 0 {
		cfg.Notifications.SMS.TimeoutSeconds = 10
	}
	if cfg.Attachments.S3Region == "" {
		cfg.Attachments.S3Region = "me-central-1"
	}
	if cfg.Attachments.KeyPrefix == "" {
		cfg.Attachments.KeyPrefix = "chat"
	}
	if cfg.Attachments.PresignTTLMinutes == 0 {
		cfg.Attachments.PresignTTLMinutes = 15
	}
	if cfg.Attachments.MaxBytes == 0 {
		cfg.Attachments.MaxBytes = 5 << 20
	}
	if cfg.RateLimit.RPS > 0 && cfg.RateLimit.Burst == 0 {
		cfg.RateLimit.Burst = int(cfg.RateLimit.RPS) * 2
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
}

// LoadFromEnv loads configuration with environment variable overrides.
// It automatically loads a .env file (if present) before reading env vars,
// so secrets can live in .env locally and in real env vars in deployment.
func LoadFromEnv(path string) (*Config, error) {
	// Load .env file if it exists (no error if missing)
	_ = godotenv.Load()

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	// Database override (deployments keep local defaults in config.yaml)
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
		cfg.Storage.Type = "postgres"
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("PUSH_API_KEY"); v != "" {
		cfg.Notifications.Push.APIKey = v
	}
	if v := os.Getenv("SMS_API_KEY"); v != "" {
		cfg.Notifications.SMS.APIKey = v
	}
	if v := os.Getenv("ATTACHMENTS_S3_BUCKET"); v != "" {
		cfg.Attachments.S3Bucket = v
		cfg.Attachments.Enabled = true
	}
	if v := os.Getenv("ATTACHMENTS_AWS_ACCESS_KEY_ID"); v != "" {
		cfg.Attachments.AccessKeyID = v
		cfg.Attachments.SecretAccessKey = os.Getenv("ATTACHMENTS_AWS_SECRET_ACCESS_KEY")
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}

	return cfg, nil
}
