package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port          string
	Environment   string
	DatabaseURL   string
	CORSOrigins   string
	TablePrefix   string
	PublicBaseURL string
	// Authentication
	JWTSecret string
	JWTTTL    time.Duration
	JWKSURL   string // Optional external identity provider (tokens verified via JWKS)
	// Email
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPSSL      bool
	MailFrom     string
	MailQueue    string // "direct", "channel" or "redis"
	RedisURL     string
	// File storage
	StorageType      string // "minio", "s3" or "none"
	StorageEndpoint  string
	StorageAccessKey string
	StorageSecretKey string
	StorageBucket    string
	StorageRegion    string
	StorageUseSSL    bool
	// Export
	PgDumpPath string
	// Logging
	LogDir      string
	LogMaxFiles int
	// Debug flags
	Debug bool
}

func Load() *Config {
	env := getEnv("ENVIRONMENT", "dev")

	return &Config{
		Port:          getEnv("PORT", "8080"),
		Environment:   env,
		DatabaseURL:   getEnv("DATABASE_URL", ""),
		CORSOrigins:   getEnv("CORS_ORIGINS", "http://localhost:3000"),
		TablePrefix:   getTablePrefix(env),
		PublicBaseURL: getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),
		// Authentication
		JWTSecret: getEnv("JWT_SECRET", ""),
		JWTTTL:    getEnvDuration("JWT_TTL", 24*time.Hour),
		JWKSURL:   getEnv("JWKS_URL", ""),
		// Email
		SMTPHost:     getEnv("SMTP_HOST", ""),
		SMTPPort:     getEnvInt("SMTP_PORT", 465),
		SMTPUsername: getEnv("SMTP_USERNAME", ""),
		SMTPPassword: getEnv("SMTP_PASSWORD", ""),
		SMTPSSL:      getEnv("SMTP_SSL", "true") == "true",
		MailFrom:     getEnv("MAIL_FROM", "no-reply@localhost"),
		MailQueue:    getEnv("MAIL_QUEUE", "channel"),
		RedisURL:     getEnv("REDIS_URL", ""),
		// File storage
		StorageType:      getEnv("STORAGE_TYPE", "none"),
		StorageEndpoint:  getEnv("STORAGE_ENDPOINT", "localhost:9000"),
		StorageAccessKey: getEnv("STORAGE_ACCESS_KEY", ""),
		StorageSecretKey: getEnv("STORAGE_SECRET_KEY", ""),
		StorageBucket:    getEnv("STORAGE_BUCKET", "edms-documents"),
		StorageRegion:    getEnv("STORAGE_REGION", "us-east-1"),
		StorageUseSSL:    getEnv("STORAGE_USE_SSL", "false") == "true",
		// Export
		PgDumpPath: getEnv("PG_DUMP_PATH", "pg_dump"),
		// Logging
		LogDir:      getEnv("LOG_DIR", ""),
		LogMaxFiles: getEnvInt("LOG_MAX_FILES", 10),
		// Debug flags - default to true in dev/test, false in production
		Debug: getEnv("DEBUG", getDefaultDebug(env)) == "true",
	}
}

// MailEnabled reports whether an SMTP transport is configured
func (c *Config) MailEnabled() bool {
	return c.SMTPHost != ""
}

// getDefaultDebug returns the default debug setting based on environment
func getDefaultDebug(env string) string {
	if env == "prod" {
		return "false"
	}
	return "true"
}

// getTablePrefix returns the table prefix based on environment
func getTablePrefix(env string) string {
	// Allow manual override via TABLE_PREFIX env var
	if prefix := os.Getenv("TABLE_PREFIX"); prefix != "" {
		return prefix
	}

	switch env {
	case "prod":
		return "prod_"
	case "test":
		return "test_"
	case "dev":
		return "dev_"
	default:
		return "dev_"
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return n
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return d
}
