package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for our application
type Config struct {
	// Server configuration
	Port           string
	GinMode        string
	APIPrefix      string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	IdleTimeout    time.Duration
	MaxHeaderBytes int

	// Database configuration
	Database DatabaseConfig

	// Redis configuration
	Redis RedisConfig

	// JWT configuration
	JWT JWTConfig

	// Edge gatekeeper configuration
	Gateway GatewayConfig

	// Rate limiting
	RateLimit RateLimitConfig

	// Kafka audit events
	Kafka KafkaConfig

	// Tencent IM gateway
	IM IMConfig

	// Logging
	LogLevel string
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
	SSLMode  string
	DSN      string
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
	Addr     string
}

// JWTConfig holds token signing configuration. Secret has no default:
// a process without a signing secret must not start.
type JWTConfig struct {
	Secret           string
	AccessExpiresIn  time.Duration
	RefreshExpiresIn time.Duration
}

// GatewayConfig holds the static route and CORS policy lists, read once at
// startup and never mutated afterwards.
type GatewayConfig struct {
	// AllowedOrigins is the CORS allow-list; a "*" entry enables wildcard mode.
	AllowedOrigins []string

	// ProtectedRoutes lists path prefixes that require a valid access token.
	ProtectedRoutes []string

	// APIEndpoints lists the backend API namespaces (preflight + CORS scope).
	APIEndpoints []string

	// HealthPath answers uptime checks with a plaintext body, bypassing
	// CORS and auth entirely.
	HealthPath string

	// DevAllowAnyOrigin echoes unknown origins back in development. Off by
	// default and ignored in release mode.
	DevAllowAnyOrigin bool
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled         bool          `json:"enabled"`
	WindowDuration  time.Duration `json:"window_duration"`
	DefaultRequests int           `json:"default_requests"`
	AuthRequests    int           `json:"auth_requests"`
	IMRequests      int           `json:"im_requests"`
	HealthRequests  int           `json:"health_requests"`
	WhitelistedIPs  []string      `json:"whitelisted_ips"`
}

// KafkaConfig holds audit event stream configuration
type KafkaConfig struct {
	Enabled bool
	Brokers []string
	Topic   string
}

// IMConfig holds Tencent IM gateway configuration
type IMConfig struct {
	AppID          string
	Administrator  string
	SecretKey      string
	BaseURL        string
	RequestTimeout time.Duration
	SigTTL         time.Duration
}

// ErrMissingJWTSecret is returned by Validate when no signing secret is
// configured. This is a startup precondition, not a runtime error.
var ErrMissingJWTSecret = errors.New("JWT_SECRET is not set")

// Load loads configuration from environment variables
func Load() *Config {
	cfg := &Config{
		// Server configuration
		Port:           getEnv("PORT", "8080"),
		GinMode:        getEnv("GIN_MODE", "debug"),
		APIPrefix:      getEnv("API_PREFIX", "/api"),
		ReadTimeout:    getDurationEnv("READ_TIMEOUT", 15*time.Second),
		WriteTimeout:   getDurationEnv("WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:    getDurationEnv("IDLE_TIMEOUT", 60*time.Second),
		MaxHeaderBytes: getIntEnv("MAX_HEADER_BYTES", 1<<20), // 1 MB

		// Database configuration
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", "chatapi_db"),
			User:     getEnv("DB_USER", "chatapi_user"),
			Password: getEnv("DB_PASSWORD", "chatapi_password"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},

		// Redis configuration
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getIntEnv("REDIS_DB", 0),
		},

		// JWT configuration
		JWT: JWTConfig{
			Secret:           os.Getenv("JWT_SECRET"),
			AccessExpiresIn:  getDurationEnvSeconds("JWT_EXPIRES_IN", 15*time.Minute),
			RefreshExpiresIn: getDurationEnvSeconds("JWT_REFRESH_EXPIRES_IN", 7*24*time.Hour),
		},

		// Gatekeeper configuration
		Gateway: GatewayConfig{
			AllowedOrigins: getStringSliceEnv("ALLOWED_ORIGINS", []string{
				"http://localhost:3000",
				"http://localhost:8080",
				"http://localhost:8038",
			}),
			ProtectedRoutes: getStringSliceEnv("PROTECTED_ROUTES", []string{
				"/api/rest-api",
				"/api/protected",
				"/api/chat",
			}),
			APIEndpoints: getStringSliceEnv("API_ENDPOINTS", []string{
				"/api", "/trpc", "/webapi", "/oidc",
			}),
			HealthPath:        getEnv("HEALTH_PATH", "/ping"),
			DevAllowAnyOrigin: getBoolEnv("CORS_DEV_ALLOW_ANY_ORIGIN", false),
		},

		// Rate limiting
		RateLimit: RateLimitConfig{
			Enabled:         getBoolEnv("RATE_LIMIT_ENABLED", true),
			WindowDuration:  getDurationEnv("RATE_LIMIT_WINDOW_DURATION", 60*time.Second),
			DefaultRequests: getIntEnv("RATE_LIMIT_DEFAULT_REQUESTS", 60),
			AuthRequests:    getIntEnv("RATE_LIMIT_AUTH_REQUESTS", 10),
			IMRequests:      getIntEnv("RATE_LIMIT_IM_REQUESTS", 30),
			HealthRequests:  getIntEnv("RATE_LIMIT_HEALTH_REQUESTS", 120),
			WhitelistedIPs:  getStringSliceEnv("RATE_LIMIT_WHITELISTED_IPS", []string{}),
		},

		// Kafka audit events
		Kafka: KafkaConfig{
			Enabled: getBoolEnv("KAFKA_ENABLED", false),
			Brokers: getStringSliceEnv("KAFKA_BROKERS", []string{"localhost:9092"}),
			Topic:   getEnv("KAFKA_AUDIT_TOPIC", "auth-audit"),
		},

		// Tencent IM gateway
		IM: IMConfig{
			AppID:          getEnv("IM_SDK_APPID", ""),
			Administrator:  getEnv("IM_ADMINISTRATOR", ""),
			SecretKey:      getEnv("IM_SECRET_KEY", ""),
			BaseURL:        getEnv("IM_SERVER_BASE_URL", "https://console.tim.qq.com"),
			RequestTimeout: getDurationEnv("IM_REQUEST_TIMEOUT", 10*time.Second),
			SigTTL:         getDurationEnv("IM_SIG_TTL", time.Hour),
		},

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "debug"),
	}

	// Build composite values
	cfg.Database.DSN = buildDatabaseDSN(cfg.Database)
	cfg.Redis.Addr = cfg.Redis.Host + ":" + cfg.Redis.Port

	return cfg
}

// Validate checks startup preconditions. A missing signing secret is fatal:
// issuing unsigned credentials is never acceptable.
func (c *Config) Validate() error {
	if c.JWT.Secret == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

// buildDatabaseDSN builds the database connection string
func buildDatabaseDSN(db DatabaseConfig) string {
	return "host=" + db.Host +
		" port=" + db.Port +
		" user=" + db.User +
		" password=" + db.Password +
		" dbname=" + db.Name +
		" sslmode=" + db.SSLMode
}

// getEnv gets an environment variable with a fallback value
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

// getIntEnv gets an integer environment variable with a fallback value
func getIntEnv(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return fallback
}

// getDurationEnv gets a duration environment variable with a fallback value
func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return fallback
}

// getDurationEnvSeconds gets an environment variable as seconds (int) and converts to time.Duration
func getDurationEnvSeconds(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if seconds, err := strconv.Atoi(value); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

// getBoolEnv gets a boolean environment variable with a fallback value
func getBoolEnv(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return fallback
}

// getStringSliceEnv gets a comma-separated string environment variable as a slice
func getStringSliceEnv(key string, fallback []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		var result []string
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}

// IsProduction returns true if the application is running in production mode
func (c *Config) IsProduction() bool {
	return c.GinMode == "release"
}

// IsDevelopment returns true if the application is running in development mode
func (c *Config) IsDevelopment() bool {
	return c.GinMode == "debug"
}

// GetServerAddress returns the full server address
func (c *Config) GetServerAddress() string {
	return ":" + c.Port
}
