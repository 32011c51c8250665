package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	ServerPort     string
	ServerHost     string
	PrivacyPort    string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxRequestBody int64

	// Database
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Redis
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int

	// Kafka
	KafkaBrokers     []string
	StudyEventsTopic string

	// Consent
	ConsentGateEnabled bool
	ConsentVersion     string
	ConsentMatrixPath  string
	ConsentCacheTTL    time.Duration

	// Pseudonymization
	PseudonymSalt        string
	PseudonymMaxAttempts int

	// Audit log
	RedactionRulesPath     string
	RetainPseudonymousData bool

	// Model endpoint
	LLMAPIKey    string
	LLMBaseURL   string
	LLMModelName string

	// Admin auth
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
	JWTTTL      time.Duration

	// OIDC (researcher sign-in)
	OIDCIssuer       string
	OIDCClientID     string
	OIDCClientSecret string
	OIDCRedirectURL  string
}

func Load() *Config {
	return &Config{
		ServerPort:     getEnv("SERVER_PORT", "8080"),
		ServerHost:     getEnv("SERVER_HOST", "0.0.0.0"),
		PrivacyPort:    getEnv("PRIVACY_SERVICE_PORT", "8081"),
		ReadTimeout:    getDuration("READ_TIMEOUT", 30*time.Second),
		WriteTimeout:   getDuration("WRITE_TIMEOUT", 30*time.Second),
		MaxRequestBody: int64(getIntEnv("MAX_REQUEST_BODY_BYTES", 1*1024*1024)),

		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "gitte"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "gitte123"),
		PostgresDB:       getEnv("POSTGRES_DB", "gitte"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		RedisHost:     getEnv("REDIS_HOST", "localhost"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		KafkaBrokers:     getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
		StudyEventsTopic: getEnv("STUDY_EVENTS_TOPIC", "study-events"),

		ConsentGateEnabled: getBoolEnv("CONSENT_GATE_ENABLED", true),
		ConsentVersion:     getEnv("CONSENT_VERSION", "1.0"),
		ConsentMatrixPath:  getEnv("CONSENT_MATRIX_PATH", ""),
		ConsentCacheTTL:    getDuration("CONSENT_CACHE_TTL", 30*time.Second),

		PseudonymSalt:        getEnv("PSEUDONYM_SALT", "gitte-study-salt"),
		PseudonymMaxAttempts: getIntEnv("PSEUDONYM_MAX_ATTEMPTS", 25),

		RedactionRulesPath:     getEnv("REDACTION_RULES_PATH", ""),
		RetainPseudonymousData: getBoolEnv("RETAIN_PSEUDONYMOUS_DATA", true),

		LLMAPIKey:    getEnv("LLM_API_KEY", ""),
		LLMBaseURL:   getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
		LLMModelName: getEnv("LLM_MODEL_NAME", "gpt-4"),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTIssuer:   getEnv("JWT_ISSUER", "gitte-privacy"),
		JWTAudience: getEnv("JWT_AUDIENCE", "gitte-staff"),
		JWTTTL:      getDuration("JWT_TTL", time.Hour),

		OIDCIssuer:       getEnv("OIDC_ISSUER", ""),
		OIDCClientID:     getEnv("OIDC_CLIENT_ID", ""),
		OIDCClientSecret: getEnv("OIDC_CLIENT_SECRET", ""),
		OIDCRedirectURL:  getEnv("OIDC_REDIRECT_URL", ""),
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getStringSliceEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return []string{value}
	}
	return defaultValue
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
