// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

func Load() (*Config, error) {
	loadEnvFile()

	// Base config
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("../../configs")
	viper.AddConfigPath(".")

	// Enable ENV override like DATABASE_POSTGRES_PASSWORD
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	// Load base config, then merge the environment overlay
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	envConfigFile := fmt.Sprintf("config.%s", env)
	viper.SetConfigName(envConfigFile)
	_ = viper.MergeInConfig() // ignore error if not found

	expandEnvVars(viper.GetViper())

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// loadEnvFile loads .env from the first location that has one; tests and
// tools run from nested directories.
func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}

	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}

// expandEnvVars resolves ${VAR} placeholders in string config values.
func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		val := v.Get(key)

		if strVal, ok := val.(string); ok {
			if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
				expanded := os.ExpandEnv(strVal)
				if expanded != strVal && expanded != "" {
					v.Set(key, expanded)
				}
			}
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "content-scheduler"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 15
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 15
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 20
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 25
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 5
	}

	if cfg.Billing.GracePeriodDays == 0 {
		cfg.Billing.GracePeriodDays = 3
	}
	if cfg.Billing.Plans == nil {
		cfg.Billing.Plans = map[string]PlanConfig{
			"monthly":   {QuotaPerCycle: 30},
			"quarterly": {QuotaPerCycle: 90},
			"annual":    {QuotaPerCycle: 365},
		}
	}

	if cfg.Generator.Timeout == 0 {
		cfg.Generator.Timeout = 10000
	}
	if cfg.Generator.MaxAttempts == 0 {
		cfg.Generator.MaxAttempts = 3
	}
	if cfg.Generator.BackoffBase == 0 {
		cfg.Generator.BackoffBase = 1000
	}
	if cfg.Generator.BackoffMultiplier == 0 {
		cfg.Generator.BackoffMultiplier = 2.0
	}

	if cfg.Pool.KeyPrefix == "" {
		cfg.Pool.KeyPrefix = "contentpool"
	}
	if cfg.Pool.MinBuffer == 0 {
		cfg.Pool.MinBuffer = 100
	}
	if cfg.Pool.MaxBuffer == 0 {
		cfg.Pool.MaxBuffer = 200
	}

	if cfg.Webhook.DedupTTL == 0 {
		cfg.Webhook.DedupTTL = 72
	}

	if cfg.Tasks.CycleRolloverInterval == 0 {
		cfg.Tasks.CycleRolloverInterval = 24 * 60
	}
	if cfg.Tasks.GracePeriodInterval == 0 {
		cfg.Tasks.GracePeriodInterval = 24 * 60
	}
	if cfg.Tasks.PublishDispatchInterval == 0 {
		cfg.Tasks.PublishDispatchInterval = 10
	}

	if cfg.Audit.Index == "" {
		cfg.Audit.Index = "publication-audit"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Billing.GracePeriodDays < 0 {
		return fmt.Errorf("billing.grace_period_days must be >= 0")
	}
	for kind, plan := range cfg.Billing.Plans {
		switch kind {
		case "monthly", "quarterly", "annual":
		default:
			return fmt.Errorf("billing.plans: unknown cycle kind %q", kind)
		}
		if plan.QuotaPerCycle < 0 {
			return fmt.Errorf("billing.plans.%s.quota_per_cycle must be >= 0", kind)
		}
	}
	if cfg.Generator.MaxAttempts < 1 {
		return fmt.Errorf("generator.max_attempts must be >= 1")
	}
	if cfg.Generator.BackoffMultiplier < 1 {
		return fmt.Errorf("generator.backoff_multiplier must be >= 1")
	}
	if cfg.Tasks.PublishDispatchInterval < 1 {
		return fmt.Errorf("tasks.publish_dispatch_interval must be >= 1 minute")
	}
	return nil
}
