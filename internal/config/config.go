package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/gogotex/gogotex/backend/autosave/pkg/logger"
)

// Storage backends accepted by AUTOSAVE_BACKEND.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendBadger = "badger"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Autosave  AutosaveConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// MongoDBConfig is optional; an empty URI selects the in-memory host data layer.
type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// Addr returns host:port, or "" when Redis is not configured.
func (r RedisConfig) Addr() string {
	if r.Host == "" {
		return ""
	}
	return r.Host + ":" + r.Port
}

type JWTConfig struct {
	Secret         string
	AccessTokenTTL time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
}

// AutosaveConfig configures the revision store.
type AutosaveConfig struct {
	MinInterval      time.Duration
	Backend          string
	CapacityBytes    int64
	KeyPrefix        string
	IndexKey         string
	BadgerPath       string
	RedisNamespace   string
	ReconcileOnStart bool
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "5020")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("MONGODB_DATABASE", "gogotex")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ACCESS_TOKEN_TTL", 15)
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("RATE_LIMIT_RPS", 5.0)
	v.SetDefault("RATE_LIMIT_BURST", 20)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 1)
	v.SetDefault("AUTOSAVE_MIN_INTERVAL_MS", 60000)
	v.SetDefault("AUTOSAVE_BACKEND", BackendMemory)
	v.SetDefault("AUTOSAVE_CAPACITY_BYTES", 5*1024*1024)
	v.SetDefault("AUTOSAVE_KEY_PREFIX", "revision-")
	v.SetDefault("AUTOSAVE_INDEX_KEY", "revision-index")
	v.SetDefault("AUTOSAVE_BADGER_PATH", "data/revisions")
	v.SetDefault("AUTOSAVE_REDIS_NAMESPACE", "autosave:")
	v.SetDefault("AUTOSAVE_RECONCILE_ON_START", false)

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		JWT: JWTConfig{
			Secret:         os.Getenv("JWT_SECRET"),
			AccessTokenTTL: time.Duration(v.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
		},
		Autosave: AutosaveConfig{
			MinInterval:      time.Duration(v.GetInt64("AUTOSAVE_MIN_INTERVAL_MS")) * time.Millisecond,
			Backend:          strings.ToLower(strings.TrimSpace(v.GetString("AUTOSAVE_BACKEND"))),
			CapacityBytes:    v.GetInt64("AUTOSAVE_CAPACITY_BYTES"),
			KeyPrefix:        v.GetString("AUTOSAVE_KEY_PREFIX"),
			IndexKey:         v.GetString("AUTOSAVE_INDEX_KEY"),
			BadgerPath:       v.GetString("AUTOSAVE_BADGER_PATH"),
			RedisNamespace:   v.GetString("AUTOSAVE_REDIS_NAMESPACE"),
			ReconcileOnStart: v.GetBool("AUTOSAVE_RECONCILE_ON_START"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if cfg.JWT.Secret == "" {
		logger.Warnf("JWT_SECRET is not set; revision endpoints are unauthenticated")
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Autosave.Backend {
	case BackendMemory, BackendBadger:
	case BackendRedis:
		if c.Redis.Host == "" {
			return fmt.Errorf("AUTOSAVE_BACKEND=redis requires REDIS_HOST")
		}
	default:
		return fmt.Errorf("unknown AUTOSAVE_BACKEND %q", c.Autosave.Backend)
	}
	if c.Autosave.MinInterval <= 0 {
		return fmt.Errorf("AUTOSAVE_MIN_INTERVAL_MS must be positive")
	}
	if c.Autosave.CapacityBytes < 0 {
		return fmt.Errorf("AUTOSAVE_CAPACITY_BYTES must not be negative")
	}
	if c.Autosave.KeyPrefix == "" || c.Autosave.IndexKey == "" {
		return fmt.Errorf("AUTOSAVE_KEY_PREFIX and AUTOSAVE_INDEX_KEY must be set")
	}
	return nil
}
