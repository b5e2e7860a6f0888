package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	App       AppConfig
	Database  DatabaseConfig
	SMTP      SMTPConfig
	Engine    EngineConfig
	Cache     CacheConfig
	Trigger   TriggerConfig
	Telemetry TelemetryConfig
}

type AppConfig struct {
	Port               string
	Environment        string
	LogFilePath        string
	StreamLogFilePath  string
	CorsAllowedOrigins string
	NatsURL            string
	RedisURL           string
	JWTSecret          string
}

type DatabaseConfig struct {
	Connection      string
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	SlowQuery       time.Duration
}

type SMTPConfig struct {
	Host       string
	Port       int
	Email      string
	Password   string
	SenderName string
}

// EngineConfig points at the external Analysis Engine.
type EngineConfig struct {
	BaseURL string
	Timeout time.Duration
}

type CacheConfig struct {
	Backend       string // "memory" or "redis"
	SweepInterval time.Duration
	MaxAge        time.Duration
}

// TriggerConfig holds the re-analysis thresholds.
type TriggerConfig struct {
	NegativeRatio      float64
	MinSectionSamples  int
	RatingFloor        float64
	MinRatings         int
	CooldownMax        time.Duration
	MaxPerMinute       int
	AlertEmail         string
	AggregateIdleAfter time.Duration
}

type TelemetryConfig struct {
	OtelEnabled  bool
	OtelEndpoint string
}

func (c *Config) IsProduction() bool {
	return c.App.Environment == "production"
}

func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, usage system environment")
	}

	return &Config{
		App: AppConfig{
			Port:               getEnv("APP_PORT", "3000"),
			Environment:        getEnv("GO_ENV", "development"),
			LogFilePath:        getEnv("LOG_FILE_PATH", "logs/app.log"),
			StreamLogFilePath:  getEnv("STREAM_LOG_FILE_PATH", "logs/session_stream.log"),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
			NatsURL:            getEnv("NATS_URL", "nats://localhost:4222"),
			RedisURL:           getEnv("REDIS_URL", "redis://localhost:6379"),
			JWTSecret:          getEnv("JWT_SECRET", ""),
		},
		Database: DatabaseConfig{
			Connection:      getEnv("DB_CONNECTION_STRING", ""),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 10),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 50),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", time.Hour),
			SlowQuery:       getEnvAsDuration("DB_SLOW_QUERY_THRESHOLD", 500*time.Millisecond),
		},
		SMTP: SMTPConfig{
			Host:       getEnv("SMTP_HOST", ""),
			Port:       getEnvAsInt("SMTP_PORT", 587),
			Email:      getEnv("SMTP_EMAIL", ""),
			Password:   getEnv("SMTP_PASSWORD", ""),
			SenderName: getEnv("SMTP_SENDER_NAME", "Property Insight"),
		},
		Engine: EngineConfig{
			BaseURL: getEnv("ANALYSIS_ENGINE_URL", "http://localhost:8000"),
			Timeout: getEnvAsDuration("ANALYSIS_ENGINE_TIMEOUT", 10*time.Second),
		},
		Cache: CacheConfig{
			Backend:       getEnv("CACHE_BACKEND", "memory"),
			SweepInterval: getEnvAsDuration("CACHE_SWEEP_INTERVAL", 30*time.Second),
			MaxAge:        getEnvAsDuration("CACHE_MAX_AGE", 5*time.Minute),
		},
		Trigger: TriggerConfig{
			NegativeRatio:      getEnvAsFloat("TRIGGER_NEGATIVE_RATIO", 0.6),
			MinSectionSamples:  getEnvAsInt("TRIGGER_MIN_SECTION_SAMPLES", 3),
			RatingFloor:        getEnvAsFloat("TRIGGER_RATING_FLOOR", 2.5),
			MinRatings:         getEnvAsInt("TRIGGER_MIN_RATINGS", 3),
			CooldownMax:        getEnvAsDuration("TRIGGER_COOLDOWN_MAX", 30*time.Minute),
			MaxPerMinute:       getEnvAsInt("TRIGGER_MAX_PER_MINUTE", 30),
			AlertEmail:         getEnv("TRIGGER_ALERT_EMAIL", ""),
			AggregateIdleAfter: getEnvAsDuration("FEEDBACK_AGGREGATE_IDLE_AFTER", time.Hour),
		},
		Telemetry: TelemetryConfig{
			OtelEnabled:  getEnvAsBool("OTEL_ENABLED", false),
			OtelEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4318"),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	strValue := getEnv(key, "")
	if value, err := strconv.Atoi(strValue); err == nil {
		return value
	}
	return fallback
}

func getEnvAsFloat(key string, fallback float64) float64 {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseFloat(strValue, 64); err == nil {
		return value
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	strValue := getEnv(key, "")
	if value, err := strconv.ParseBool(strValue); err == nil {
		return value
	}
	return fallback
}

// getEnvAsDuration accepts Go duration strings ("30s", "5m").
func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	strValue := getEnv(key, "")
	if value, err := time.ParseDuration(strValue); err == nil {
		return value
	}
	return fallback
}
