package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port            string
	Env             string
	LogLevel        string
	DefaultLanguage string

	DatabaseURL    string
	AuditFallbacks bool

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	TenantCacheSize   int
	TenantCacheTTL    time.Duration
	TenantDynamoTable string

	// TenantInvalidationQueueURL is an SQS queue carrying out-of-band tenant updates.
	TenantInvalidationQueueURL string
	InvalidationWaitSeconds    int

	// ArchetypeBucket/ArchetypeKey point at an optional S3 overlay of the archetype content bank.
	ArchetypeBucket string
	ArchetypeKey    string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	AdminJWTSecret     string
	CORSAllowedOrigins []string
	RateLimitRPS       float64
	RateLimitBurst     int
}

// Load reads configuration from environment variables
func Load() *Config {
	return &Config{
		Port:            getEnv("PORT", "8080"),
		Env:             getEnv("ENV", "development"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DefaultLanguage: strings.ToLower(strings.TrimSpace(getEnv("DEFAULT_LANGUAGE", "en"))),

		DatabaseURL:    getEnv("DATABASE_URL", ""),
		AuditFallbacks: getEnvAsBool("AUDIT_FALLBACKS", true),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		TenantCacheSize:   getEnvAsInt("TENANT_CACHE_SIZE", 1024),
		TenantCacheTTL:    getEnvAsDuration("TENANT_CACHE_TTL", 5*time.Minute),
		TenantDynamoTable: getEnv("TENANT_DYNAMO_TABLE", ""),

		TenantInvalidationQueueURL: getEnv("TENANT_INVALIDATION_QUEUE_URL", ""),
		InvalidationWaitSeconds:    getEnvAsInt("TENANT_INVALIDATION_WAIT_SECONDS", 20),

		ArchetypeBucket: getEnv("ARCHETYPE_BUCKET", ""),
		ArchetypeKey:    getEnv("ARCHETYPE_KEY", "archetypes.yaml"),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: getEnvAsList("CORS_ALLOWED_ORIGINS"),
		RateLimitRPS:       getEnvAsFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:     getEnvAsInt("RATE_LIMIT_BURST", 20),
	}
}

// LoadWithDotEnv loads the given .env files (default ".env") into the process
// environment before reading configuration. Missing files are ignored; values
// already present in the environment win.
func LoadWithDotEnv(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, file := range files {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: load %s: %w", file, err)
		}
	}
	return Load(), nil
}

// UsesAWS reports whether any AWS-backed component is configured.
func (c *Config) UsesAWS() bool {
	if c == nil {
		return false
	}
	return c.TenantDynamoTable != "" || c.TenantInvalidationQueueURL != "" || c.ArchetypeBucket != ""
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string) []string {
	raw := strings.TrimSpace(getEnv(key, ""))
	if raw == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
