package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"gopkg.in/ini.v1"
)

// Config holds all configuration
type Config struct {
	MySQL    MySQLConfig
	Redis    RedisConfig
	Sync     SyncConfig
	Secrets  SecretsConfig
	Sweeper  SweeperConfig
	Migrate  bool
	HTTPAddr string
}

// MySQLConfig holds MySQL configuration
type MySQLConfig struct {
	DSN string
}

// RedisConfig holds Redis configuration.
// An empty Addr selects the in-process response cache instead of Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// SyncConfig holds batch synchronization tunables
type SyncConfig struct {
	MaxBatchSize   int
	Concurrency    int
	HTTPTimeoutSec int
	BatchBudgetSec int
	CacheTTLSec    int
	UsePageCache   bool
}

// SecretsConfig holds the key for upstream credential encryption at rest.
// An empty key stores secrets as-is (development only).
type SecretsConfig struct {
	Key string
}

// SweeperConfig holds cache sweeper configuration
type SweeperConfig struct {
	Enabled     bool
	IntervalSec int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		MySQL: MySQLConfig{
			DSN: getEnv("MYSQL_DSN", ""),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", ""),
			Password: getEnv("REDIS_PASS", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Sync: SyncConfig{
			MaxBatchSize:   getEnvInt("SYNC_MAX_BATCH_SIZE", 250),
			Concurrency:    getEnvInt("SYNC_CONCURRENCY", 4),
			HTTPTimeoutSec: getEnvInt("SYNC_HTTP_TIMEOUT_SEC", 20),
			BatchBudgetSec: getEnvInt("SYNC_BATCH_BUDGET_SEC", 300),
			CacheTTLSec:    getEnvInt("SYNC_CACHE_TTL_SEC", 300),
			UsePageCache:   getEnv("SYNC_USE_PAGE_CACHE", "0") == "1",
		},
		Secrets: SecretsConfig{
			Key: getEnv("SECRETS_KEY", ""),
		},
		Sweeper: SweeperConfig{
			Enabled:     getEnv("CACHE_SWEEPER_ENABLED", "1") == "1",
			IntervalSec: getEnvInt("CACHE_SWEEPER_INTERVAL_SEC", 60),
		},
		Migrate:  getEnv("MIGRATE", "0") == "1",
		HTTPAddr: getEnv("HTTP_ADDR", ":8080"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromINI loads configuration from INI file with environment variable override
func LoadFromINI(iniPath string) (*Config, error) {
	cfgFile, err := ini.Load(iniPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load INI file: %w", err)
	}

	// Helper function: get value with priority: ENV > INI > default
	getValue := func(envKey, iniSection, iniKey, defaultValue string) string {
		if value := os.Getenv(envKey); value != "" {
			return value
		}
		if value := cfgFile.Section(iniSection).Key(iniKey).String(); value != "" {
			return value
		}
		return defaultValue
	}

	getValueInt := func(envKey, iniSection, iniKey string, defaultValue int) int {
		if value := os.Getenv(envKey); value != "" {
			if intValue, err := strconv.Atoi(value); err == nil {
				return intValue
			}
		}
		if cfgFile.Section(iniSection).HasKey(iniKey) {
			if value, err := cfgFile.Section(iniSection).Key(iniKey).Int(); err == nil {
				return value
			}
		}
		return defaultValue
	}

	getValueBool := func(envKey, iniSection, iniKey string, defaultValue bool) bool {
		if value := os.Getenv(envKey); value != "" {
			return value == "1" || value == "true"
		}
		if value, err := cfgFile.Section(iniSection).Key(iniKey).Bool(); err == nil {
			return value
		}
		return defaultValue
	}

	cfg := &Config{
		MySQL: MySQLConfig{
			DSN: getValue("MYSQL_DSN", "mysql", "dsn", ""),
		},
		Redis: RedisConfig{
			Addr:     getValue("REDIS_ADDR", "redis", "addr", ""),
			Password: getValue("REDIS_PASS", "redis", "pass", ""),
			DB:       getValueInt("REDIS_DB", "redis", "db", 0),
		},
		Sync: SyncConfig{
			MaxBatchSize:   getValueInt("SYNC_MAX_BATCH_SIZE", "sync", "max_batch_size", 250),
			Concurrency:    getValueInt("SYNC_CONCURRENCY", "sync", "concurrency", 4),
			HTTPTimeoutSec: getValueInt("SYNC_HTTP_TIMEOUT_SEC", "sync", "http_timeout_sec", 20),
			BatchBudgetSec: getValueInt("SYNC_BATCH_BUDGET_SEC", "sync", "batch_budget_sec", 300),
			CacheTTLSec:    getValueInt("SYNC_CACHE_TTL_SEC", "sync", "cache_ttl_sec", 300),
			UsePageCache:   getValueBool("SYNC_USE_PAGE_CACHE", "sync", "use_page_cache", false),
		},
		Secrets: SecretsConfig{
			Key: getValue("SECRETS_KEY", "secrets", "key", ""),
		},
		Sweeper: SweeperConfig{
			Enabled:     getValueBool("CACHE_SWEEPER_ENABLED", "cache_sweeper", "enabled", true),
			IntervalSec: getValueInt("CACHE_SWEEPER_INTERVAL_SEC", "cache_sweeper", "interval_sec", 60),
		},
		Migrate:  getValueBool("MIGRATE", "app", "migrate", false),
		HTTPAddr: getValue("HTTP_ADDR", "http", "addr", ":8080"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.MySQL.DSN == "" {
		return fmt.Errorf("MYSQL_DSN is required")
	}
	if c.Sync.MaxBatchSize < 1 {
		return fmt.Errorf("SYNC_MAX_BATCH_SIZE must be positive, got %d", c.Sync.MaxBatchSize)
	}
	if c.Sync.Concurrency < 1 {
		return fmt.Errorf("SYNC_CONCURRENCY must be positive, got %d", c.Sync.Concurrency)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
