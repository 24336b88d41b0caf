package config

import (
	"log"
	"os"
	"time"

	"github.com/intentdesk/IntentDesk/pkg/cache"
	"github.com/intentdesk/IntentDesk/pkg/logger"
	"github.com/intentdesk/IntentDesk/pkg/nlu"
	"github.com/intentdesk/IntentDesk/pkg/utils"
)

// Config is the global server configuration.
type Config struct {
	ServerName string `env:"SERVER_NAME"`
	Addr       string `env:"ADDR"`
	Mode       string `env:"MODE"`
	APIPrefix  string `env:"API_PREFIX"`

	DBDriver string `env:"DB_DRIVER"`
	DSN      string `env:"DSN"`

	SessionSecret     string `env:"SESSION_SECRET"`
	SessionExpireDays int    `env:"SESSION_EXPIRE_DAYS"`

	Log logger.LogConfig

	// NLU provider connection; validated at startup and injected into the
	// sync engine. An empty configuration is allowed — reconciliation then
	// marks intents with a configuration error instead of calling out.
	NLU nlu.Config

	// SyncSchedule is the cron expression for periodic reconciliation;
	// empty disables the scheduler.
	SyncSchedule string `env:"SYNC_SCHEDULE"`

	RateLimit string `env:"RATE_LIMIT"`

	Cache cache.Config
}

var GlobalConfig *Config

// Load reads .env (optional) and builds the global configuration with
// defaults for every key.
func Load() error {
	env := os.Getenv("APP_ENV")
	if err := utils.LoadEnv(env); err != nil {
		log.Printf("Note: .env file not found or failed to load: %v (using process env)", err)
	}

	GlobalConfig = &Config{
		ServerName: getStringOrDefault("SERVER_NAME", "intentdesk"),
		Addr:       getStringOrDefault("ADDR", ":7080"),
		Mode:       getStringOrDefault("MODE", "development"),
		APIPrefix:  getStringOrDefault("API_PREFIX", "/api"),

		DBDriver: getStringOrDefault("DB_DRIVER", "sqlite"),
		DSN:      getStringOrDefault("DSN", "./intentdesk.db"),

		SessionSecret:     getStringOrDefault("SESSION_SECRET", ""),
		SessionExpireDays: getIntOrDefault("SESSION_EXPIRE_DAYS", 7),

		Log: logger.LogConfig{
			Level:      getStringOrDefault("LOG_LEVEL", "info"),
			Filename:   getStringOrDefault("LOG_FILENAME", "./logs/app.log"),
			MaxSize:    getIntOrDefault("LOG_MAX_SIZE", 100),
			MaxAge:     getIntOrDefault("LOG_MAX_AGE", 30),
			MaxBackups: getIntOrDefault("LOG_MAX_BACKUPS", 5),
			Daily:      getBoolOrDefault("LOG_DAILY", true),
		},

		NLU: nlu.Config{
			BaseURL:   getStringOrDefault("NLU_BASE_URL", ""),
			APIKey:    getStringOrDefault("NLU_API_KEY", ""),
			ProjectID: getStringOrDefault("NLU_PROJECT_ID", ""),
			Timeout:   parseDuration(utils.GetEnv("NLU_TIMEOUT"), 15*time.Second),
		},

		SyncSchedule: getStringOrDefault("SYNC_SCHEDULE", ""),
		RateLimit:    getStringOrDefault("RATE_LIMIT", "1000-M"),

		Cache: loadCacheConfig(),
	}
	return nil
}

func getStringOrDefault(key, defaultValue string) string {
	value := utils.GetEnv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if utils.GetEnv(key) == "" {
		return defaultValue
	}
	return utils.GetBoolEnv(key)
}

func getIntOrDefault(key string, defaultValue int) int {
	if utils.GetEnv(key) == "" {
		return defaultValue
	}
	return int(utils.GetIntEnv(key))
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return defaultVal
	}
	return d
}

func loadCacheConfig() cache.Config {
	return cache.Config{
		Type: getStringOrDefault("CACHE_TYPE", "local"),
		Redis: cache.RedisConfig{
			Addr:         getStringOrDefault("REDIS_ADDR", "localhost:6379"),
			Password:     utils.GetEnv("REDIS_PASSWORD"),
			DB:           int(utils.GetIntEnv("REDIS_DB")),
			PoolSize:     getIntOrDefault("REDIS_POOL_SIZE", 10),
			MinIdleConns: getIntOrDefault("REDIS_MIN_IDLE_CONNS", 5),
			DialTimeout:  parseDuration(utils.GetEnv("REDIS_DIAL_TIMEOUT"), 5*time.Second),
			ReadTimeout:  parseDuration(utils.GetEnv("REDIS_READ_TIMEOUT"), 3*time.Second),
			WriteTimeout: parseDuration(utils.GetEnv("REDIS_WRITE_TIMEOUT"), 3*time.Second),
		},
		Local: cache.LocalConfig{
			DefaultExpiration: parseDuration(utils.GetEnv("LOCAL_CACHE_DEFAULT_EXPIRATION"), 5*time.Minute),
			CleanupInterval:   parseDuration(utils.GetEnv("LOCAL_CACHE_CLEANUP_INTERVAL"), 10*time.Minute),
		},
	}
}
