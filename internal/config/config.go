package config

import (
	"fmt"
	"strings"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/spf13/viper"
)

type Config struct {
	Env      string `mapstructure:"APP_ENV"`
	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	LogLevel string `mapstructure:"LOG_LEVEL"`

	DBHost     string `mapstructure:"BLUEPRINT_DB_HOST"`
	DBPort     string `mapstructure:"BLUEPRINT_DB_PORT"`
	DBDatabase string `mapstructure:"BLUEPRINT_DB_DATABASE"`
	DBUsername string `mapstructure:"BLUEPRINT_DB_USERNAME"`
	DBPassword string `mapstructure:"BLUEPRINT_DB_PASSWORD"`
	DBSchema   string `mapstructure:"BLUEPRINT_DB_SCHEMA"`

	MPAccessToken     string `mapstructure:"MERCADO_PAGO_ACCESS_TOKEN"`
	MPNotificationURL string `mapstructure:"MERCADO_PAGO_NOTIFICATION_URL"`
	PublicBaseURL     string `mapstructure:"PUBLIC_BASE_URL"`

	RedisAddr     string `mapstructure:"REDIS_ADDR"`
	RedisPassword string `mapstructure:"REDIS_PASSWORD"`
	RedisDB       int    `mapstructure:"REDIS_DB"`

	KafkaBrokers string `mapstructure:"KAFKA_BROKERS"`
	KafkaTopic   string `mapstructure:"KAFKA_TOPIC"`

	JWTSecret   string `mapstructure:"AUTH_JWT_SECRET"`
	CORSOrigins string `mapstructure:"CORS_ORIGINS"`

	CheckoutLockTTL time.Duration `mapstructure:"CHECKOUT_LOCK_TTL"`
	SweepEnabled    bool          `mapstructure:"EXPIRY_SWEEP_ENABLED"`
	SweepInterval   time.Duration `mapstructure:"EXPIRY_SWEEP_INTERVAL"`
	SweepBatchSize  int           `mapstructure:"EXPIRY_SWEEP_BATCH"`
	RealtimeChannel string        `mapstructure:"REALTIME_PG_CHANNEL"`
}

var defaults = map[string]any{
	"APP_ENV":                       "development",
	"HTTP_ADDR":                     ":8080",
	"LOG_LEVEL":                     "info",
	"BLUEPRINT_DB_HOST":             "localhost",
	"BLUEPRINT_DB_PORT":             "5432",
	"BLUEPRINT_DB_DATABASE":         "merch",
	"BLUEPRINT_DB_USERNAME":         "postgres",
	"BLUEPRINT_DB_PASSWORD":         "postgres",
	"BLUEPRINT_DB_SCHEMA":           "public",
	"MERCADO_PAGO_ACCESS_TOKEN":     "",
	"MERCADO_PAGO_NOTIFICATION_URL": "",
	"PUBLIC_BASE_URL":               "http://localhost:3000",
	"REDIS_ADDR":                    "",
	"REDIS_PASSWORD":                "",
	"REDIS_DB":                      0,
	"KAFKA_BROKERS":                 "",
	"KAFKA_TOPIC":                   "order-notifications",
	"AUTH_JWT_SECRET":               "",
	"CORS_ORIGINS":                  "*",
	"CHECKOUT_LOCK_TTL":             "30s",
	"EXPIRY_SWEEP_ENABLED":          true,
	"EXPIRY_SWEEP_INTERVAL":         "1m",
	"EXPIRY_SWEEP_BATCH":            50,
	"REALTIME_PG_CHANNEL":           "order_changes",
}

// Load reads configuration from the environment (and .env, autoloaded).
func Load() (*Config, error) {
	v := viper.New()
	for k, val := range defaults {
		v.SetDefault(k, val)
	}
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if cfg.SweepInterval <= 0 {
		return nil, fmt.Errorf("EXPIRY_SWEEP_INTERVAL must be positive, got %s", cfg.SweepInterval)
	}
	if cfg.Production() && cfg.JWTSecret == "" {
		return nil, fmt.Errorf("AUTH_JWT_SECRET is required in production")
	}
	return cfg, nil
}

func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=disable&search_path=%s",
		c.DBUsername, c.DBPassword, c.DBHost, c.DBPort, c.DBDatabase, c.DBSchema,
	)
}

func (c *Config) KafkaBrokerList() []string {
	if c.KafkaBrokers == "" {
		return nil
	}
	var out []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}

func (c *Config) AllowedOrigins() []string {
	return strings.Split(c.CORSOrigins, ",")
}

func (c *Config) Production() bool {
	return c.Env == "production"
}
