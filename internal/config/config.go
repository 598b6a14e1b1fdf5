package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const (
	defaultDBPath      = "./pricedesk.db"
	defaultPort        = "8080"
	defaultAppEnv      = "development"
	defaultKafkaTopic  = "pricing.price-changed"
	defaultRecalcCount = 4
)

// Config holds application configuration sourced from environment variables.
type Config struct {
	AppEnv        string
	AdminEmail    string
	AdminPassword string
	SessionSecret string
	DBPath        string
	Port          string
	Logger        LoggerConfig
	Kafka         KafkaConfig
	Recalc        RecalcConfig
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

// KafkaConfig controls price-change publication. No brokers means no publishing.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

type RecalcConfig struct {
	Workers int
}

// Load reads ./.env (if present) and the environment into a Config.
func Load() Config {
	return LoadFrom(".env")
}

// LoadFrom is Load with an explicit dotenv path.
func LoadFrom(dotenvPath string) Config {
	// Best-effort: production injects real environment variables and never
	// ships a .env file. Variables already set are not overwritten.
	_ = godotenv.Load(dotenvPath)

	cfg := Config{
		AppEnv:        getEnv("APP_ENV", defaultAppEnv),
		AdminEmail:    os.Getenv("ADMIN_EMAIL"),
		AdminPassword: os.Getenv("ADMIN_PASSWORD"),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		DBPath:        getEnv("DB_PATH", defaultDBPath),
		Port:          getEnv("PORT", defaultPort),
		Logger: LoggerConfig{
			Level:    getEnv("LOG_LEVEL", ""),
			Encoding: getEnv("LOG_ENCODING", ""),
		},
		Kafka: KafkaConfig{
			Brokers: getEnvSlice("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC_PRICE_CHANGED", defaultKafkaTopic),
		},
		Recalc: RecalcConfig{
			Workers: getEnvInt("RECALC_WORKERS", defaultRecalcCount),
		},
	}

	if cfg.Logger.Level == "" {
		cfg.Logger.Level = "info"
		if cfg.IsDev() {
			cfg.Logger.Level = "debug"
		}
	}
	if cfg.Logger.Encoding == "" {
		cfg.Logger.Encoding = "json"
		if cfg.IsDev() {
			cfg.Logger.Encoding = "console"
		}
	}
	if cfg.Recalc.Workers < 1 {
		cfg.Recalc.Workers = 1
	}

	return cfg
}

// IsDev reports whether the app runs in a development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "dev", "development", "local":
		return true
	}
	return false
}

// Warnings lists missing settings the server can start without but should not.
func (c Config) Warnings() []string {
	var warnings []string
	if c.AdminEmail == "" {
		warnings = append(warnings, "ADMIN_EMAIL is not set")
	}
	if c.AdminPassword == "" {
		warnings = append(warnings, "ADMIN_PASSWORD is not set")
	}
	if c.SessionSecret == "" {
		warnings = append(warnings, "SESSION_SECRET is not set")
	}
	return warnings
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvSlice(key string) []string {
	v, ok := os.LookupEnv(key)
	if !ok {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
