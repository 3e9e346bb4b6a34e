// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig          `mapstructure:"app"`
	Server        ServerConfig       `mapstructure:"server"`
	Database      DatabaseConfig     `mapstructure:"database"`
	Billing       BillingConfig      `mapstructure:"billing"`
	Generator     GeneratorConfig    `mapstructure:"generator"`
	Pool          PoolConfig         `mapstructure:"pool"`
	Publisher     PublisherConfig    `mapstructure:"publisher"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Audit         AuditConfig        `mapstructure:"audit"`
	Webhook       WebhookConfig      `mapstructure:"webhook"`
	Tasks         TasksConfig        `mapstructure:"tasks"`
	Logging       LoggingConfig      `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---

type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port            int `mapstructure:"port"`
	ReadTimeout     int `mapstructure:"read_timeout"`     // seconds
	WriteTimeout    int `mapstructure:"write_timeout"`    // seconds
	ShutdownTimeout int `mapstructure:"shutdown_timeout"` // seconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Redis         RedisConfig         `mapstructure:"redis"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

// --- Domain Configuration Sections ---

// BillingConfig governs subscription lifecycle behavior.
type BillingConfig struct {
	// GracePeriodDays is the window after a payment failure during which the
	// subscription stays active.
	GracePeriodDays int `mapstructure:"grace_period_days"`
	// Plans maps billing cycle kind (monthly/quarterly/annual) to the quota
	// granted per cycle, used when a first payment creates a subscription.
	Plans map[string]PlanConfig `mapstructure:"plans"`
}

type PlanConfig struct {
	QuotaPerCycle int `mapstructure:"quota_per_cycle"`
}

// QuotaFor returns the configured per-cycle quota for a cycle kind.
func (b BillingConfig) QuotaFor(kind string) int {
	if plan, ok := b.Plans[kind]; ok {
		return plan.QuotaPerCycle
	}
	return 0
}

// GeneratorConfig configures the external content-generation API client and
// its retry policy.
type GeneratorConfig struct {
	URL               string  `mapstructure:"url"`
	Timeout           int     `mapstructure:"timeout"` // milliseconds
	MaxAttempts       int     `mapstructure:"max_attempts"`
	BackoffBase       int     `mapstructure:"backoff_base"` // milliseconds
	BackoffMultiplier float64 `mapstructure:"backoff_multiplier"`
}

// PoolConfig configures the standing fallback content pool.
type PoolConfig struct {
	KeyPrefix string `mapstructure:"key_prefix"`
	// MinBuffer/MaxBuffer document the expected externally maintained buffer
	// size; the scheduler only reads from the pool.
	MinBuffer int `mapstructure:"min_buffer"`
	MaxBuffer int `mapstructure:"max_buffer"`
}

type PublisherConfig struct {
	AWSRegion string `mapstructure:"aws_region"`
	TopicARN  string `mapstructure:"topic_arn"`
}

type NotificationConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	AWSRegion string `mapstructure:"aws_region"`
	Sender    string `mapstructure:"sender"`
}

type AuditConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Index   string `mapstructure:"index"`
}

type WebhookConfig struct {
	// DedupTTL is how long processed event IDs are remembered, in hours.
	DedupTTL int `mapstructure:"dedup_ttl"`
}

// TasksConfig sets the cadences of the periodic tasks.
type TasksConfig struct {
	CycleRolloverInterval   int `mapstructure:"cycle_rollover_interval"`   // minutes
	GracePeriodInterval     int `mapstructure:"grace_period_interval"`     // minutes
	PublishDispatchInterval int `mapstructure:"publish_dispatch_interval"` // minutes
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}
