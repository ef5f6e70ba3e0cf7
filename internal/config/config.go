package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	APIPort       string `mapstructure:"API_PORT"`
	MongoURI      string `mapstructure:"MONGO_URI"`
	MongoDatabase string `mapstructure:"MONGO_DATABASE"`
	JWTSecret     string `mapstructure:"JWT_SECRET"`
	Env           string `mapstructure:"APP_ENV"`
	LogLevel      string `mapstructure:"LOG_LEVEL"`
	Timezone      string `mapstructure:"APP_TIMEZONE"`
	CORSOrigins   string `mapstructure:"CORS_ORIGINS"`

	// Comma-separated proxy IPs or CIDRs allowed to set X-Forwarded-For.
	TrustedProxyList string `mapstructure:"TRUSTED_PROXIES"`

	// Redis caches doctor and treatment reference data. Empty address disables it.
	RedisAddr         string        `mapstructure:"REDIS_ADDR"`
	RedisPassword     string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB           int           `mapstructure:"REDIS_DB"`
	ReferenceCacheTTL time.Duration `mapstructure:"REFERENCE_CACHE_TTL"`

	RateLimitPerMinute int `mapstructure:"RATE_LIMIT_PER_MINUTE"`

	SMSEnabled     bool   `mapstructure:"SMS_ENABLED"`
	TextbeltAPIKey string `mapstructure:"TEXTBELT_API_KEY"`

	location *time.Location
}

var keys = []string{
	"API_PORT", "MONGO_URI", "MONGO_DATABASE", "JWT_SECRET", "APP_ENV", "LOG_LEVEL",
	"APP_TIMEZONE", "CORS_ORIGINS", "TRUSTED_PROXIES", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
	"REFERENCE_CACHE_TTL", "RATE_LIMIT_PER_MINUTE", "SMS_ENABLED", "TEXTBELT_API_KEY",
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment variables.")
	}

	v := viper.New()
	v.AutomaticEnv()
	for _, k := range keys {
		// AutomaticEnv alone is not consulted by Unmarshal.
		_ = v.BindEnv(k)
	}

	v.SetDefault("API_PORT", "8080")
	v.SetDefault("MONGO_URI", "mongodb://localhost:27017")
	v.SetDefault("MONGO_DATABASE", "clinic")
	v.SetDefault("APP_ENV", "development")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_TIMEZONE", "Local")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("TRUSTED_PROXIES", "")
	v.SetDefault("REDIS_ADDR", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REFERENCE_CACHE_TTL", time.Minute)
	v.SetDefault("RATE_LIMIT_PER_MINUTE", 120)
	v.SetDefault("SMS_ENABLED", false)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid APP_TIMEZONE %q: %w", cfg.Timezone, err)
	}
	cfg.location = loc

	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is not configured")
	}

	return &cfg, nil
}

// Location is the hospital's wall-clock zone. All dates and times of day are
// interpreted in it.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.Local
	}
	return c.location
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func (c *Config) AllowedOrigins() []string {
	return splitList(c.CORSOrigins)
}

// TrustedProxies is nil unless TRUSTED_PROXIES is set, so no proxy is trusted.
func (c *Config) TrustedProxies() []string {
	return splitList(c.TrustedProxyList)
}

func splitList(s string) []string {
	var out []string
	for _, v := range strings.Split(s, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
