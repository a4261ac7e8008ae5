package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Hacienda HaciendaConfig
	Queue    QueueConfig
	Archive  ArchiveConfig
}

type ServerConfig struct {
	Port        string
	GinMode     string
	Environment string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type JWTConfig struct {
	Secret             string
	AccessTokenExpiry  time.Duration
	RefreshTokenExpiry time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

// HaciendaConfig holds everything needed to talk to the Ministerio de
// Hacienda reception API. Hosts and token validity windows are fixed per
// environment and must never be cross-wired.
type HaciendaConfig struct {
	TestBaseURL       string
	ProductionBaseURL string
	TestTokenTTL       time.Duration
	ProductionTokenTTL time.Duration
	AuthTimeout        time.Duration
	SubmitTimeout      time.Duration
	QueryTimeout       time.Duration
}

// QueueConfig carries the transmission retry/retention policy. The policy,
// not the queue backend, is the portable contract.
type QueueConfig struct {
	MaxAttempts       int
	BackoffBase       time.Duration
	BackoffMultiplier int
	WorkerCount       int
	PollInterval      time.Duration
	DocumentLockTTL   time.Duration
	VisibilityTimeout time.Duration
	KeepCompleted     bool
	KeepFailed        bool
}

type ArchiveConfig struct {
	Region          string
	Bucket          string
	AccessKeyID     string
	SecretAccessKey string
	Enabled         bool
}

func Load() (*Config, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	config := &Config{
		Server: ServerConfig{
			Port:        getEnv("SERVER_PORT", "8080"),
			GinMode:     getEnv("GIN_MODE", "debug"),
			Environment: getEnv("ENVIRONMENT", "development"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "admin"),
			Password: getEnv("DB_PASSWORD", "1234"),
			DBName:   getEnv("DB_NAME", "facturalink"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       parseInt(getEnv("REDIS_DB", "0"), 0),
		},
		JWT: JWTConfig{
			Secret:             getEnv("JWT_SECRET", "your-secret-key"),
			AccessTokenExpiry:  parseDuration(getEnv("JWT_ACCESS_TOKEN_EXPIRY", "15m"), 15*time.Minute),
			RefreshTokenExpiry: parseDuration(getEnv("JWT_REFRESH_TOKEN_EXPIRY", "168h"), 168*time.Hour),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseSlice(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		Hacienda: HaciendaConfig{
			TestBaseURL:        getEnv("MH_TEST_BASE_URL", "https://apitest.dtes.mh.gob.sv"),
			ProductionBaseURL:  getEnv("MH_PROD_BASE_URL", "https://api.dtes.mh.gob.sv"),
			TestTokenTTL:       parseDuration(getEnv("MH_TEST_TOKEN_TTL", "8h"), 8*time.Hour),
			ProductionTokenTTL: parseDuration(getEnv("MH_PROD_TOKEN_TTL", "24h"), 24*time.Hour),
			AuthTimeout:        parseDuration(getEnv("MH_AUTH_TIMEOUT", "15s"), 15*time.Second),
			SubmitTimeout:      parseDuration(getEnv("MH_SUBMIT_TIMEOUT", "30s"), 30*time.Second),
			QueryTimeout:       parseDuration(getEnv("MH_QUERY_TIMEOUT", "10s"), 10*time.Second),
		},
		Queue: QueueConfig{
			MaxAttempts:       parseInt(getEnv("QUEUE_MAX_ATTEMPTS", "3"), 3),
			BackoffBase:       parseDuration(getEnv("QUEUE_BACKOFF_BASE", "60s"), 60*time.Second),
			BackoffMultiplier: parseInt(getEnv("QUEUE_BACKOFF_MULTIPLIER", "2"), 2),
			WorkerCount:       parseInt(getEnv("QUEUE_WORKER_COUNT", "4"), 4),
			PollInterval:      parseDuration(getEnv("QUEUE_POLL_INTERVAL", "1s"), time.Second),
			DocumentLockTTL:   parseDuration(getEnv("QUEUE_DOCUMENT_LOCK_TTL", "2m"), 2*time.Minute),
			VisibilityTimeout: parseDuration(getEnv("QUEUE_VISIBILITY_TIMEOUT", "10m"), 10*time.Minute),
			KeepCompleted:     parseBool(getEnv("QUEUE_KEEP_COMPLETED", "false")),
			KeepFailed:        parseBool(getEnv("QUEUE_KEEP_FAILED", "true")),
		},
		Archive: ArchiveConfig{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			Bucket:          getEnv("AWS_S3_BUCKET", "facturalink-dte-archive"),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
			Enabled:         parseBool(getEnv("ARCHIVE_ENABLED", "false")),
		},
	}

	return config, nil
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	duration, err := time.ParseDuration(s)
	if err != nil {
		log.Printf("Invalid duration %s, using default %s", s, fallback)
		return fallback
	}
	return duration
}

func parseInt(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		log.Printf("Invalid integer %s, using default %d", s, fallback)
		return fallback
	}
	return n
}

func parseBool(s string) bool {
	b, _ := strconv.ParseBool(s)
	return b
}

func parseSlice(s string) []string {
	if s == "" {
		return []string{}
	}
	var result []string
	for i := 0; i < len(s); {
		end := i
		for end < len(s) && s[end] != ',' {
			end++
		}
		result = append(result, s[i:end])
		i = end + 1
	}
	return result
}
