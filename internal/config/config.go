package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig
	Redis        RedisConfig
	JWT          JWTConfig
	Encryption   EncryptionConfig
	Venues       VenuesConfig
	Solana       SolanaConfig
	Orchestrator OrchestratorConfig
	Scheduler    SchedulerConfig
	CORS         CORSConfig
	RateLimit    RateLimitConfig
	Log          LogConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host string
	Port string
	Env  string
}

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

// JWTConfig holds identity token configuration
type JWTConfig struct {
	Secret   string
	TokenTTL time.Duration
}

// EncryptionConfig holds the credential vault key
type EncryptionConfig struct {
	Key string
}

// VenuesConfig holds CEX venue endpoints and the optional egress proxy
type VenuesConfig struct {
	MexcAPIURL      string
	BitmartAPIURL   string
	CoinstoreAPIURL string
	// ProxyURL routes CEX egress through a forward proxy so requests present
	// a pre-whitelisted IP. Empty means direct egress.
	ProxyURL string
}

// SolanaConfig holds chain RPC and swap aggregator endpoints
type SolanaConfig struct {
	RPCURL        string
	AggregatorURL string
	SlippageBps   int
}

// OrchestratorConfig holds the third-party order-orchestration service endpoint
type OrchestratorConfig struct {
	BaseURL  string
	APIToken string
}

// SchedulerConfig holds background loop cadences
type SchedulerConfig struct {
	TickInterval   time.Duration
	HealthInterval time.Duration
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host: getEnv("SERVER_HOST", "0.0.0.0"),
			Port: getEnv("SERVER_PORT", "8080"),
			Env:  getEnv("SERVER_ENV", "development"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnv("REDIS_PORT", "6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		JWT: JWTConfig{
			Secret:   getEnv("JWT_SECRET", ""),
			TokenTTL: time.Duration(getEnvAsInt("JWT_TOKEN_TTL_MINUTES", 60)) * time.Minute,
		},
		Encryption: EncryptionConfig{
			Key: getEnv("ENCRYPTION_KEY", ""),
		},
		Venues: VenuesConfig{
			MexcAPIURL:      getEnv("MEXC_API_URL", "https://api.mexc.com"),
			BitmartAPIURL:   getEnv("BITMART_API_URL", "https://api-cloud.bitmart.com"),
			CoinstoreAPIURL: getEnv("COINSTORE_API_URL", "https://api.coinstore.com"),
			ProxyURL:        getEnv("VENUE_PROXY_URL", ""),
		},
		Solana: SolanaConfig{
			RPCURL:        getEnv("SOLANA_RPC_URL", "https://api.mainnet-beta.solana.com"),
			AggregatorURL: getEnv("SWAP_AGGREGATOR_URL", "https://quote-api.jup.ag/v6"),
			SlippageBps:   getEnvAsInt("SWAP_SLIPPAGE_BPS", 50),
		},
		Orchestrator: OrchestratorConfig{
			BaseURL:  getEnv("ORCHESTRATOR_URL", ""),
			APIToken: getEnv("ORCHESTRATOR_API_TOKEN", ""),
		},
		Scheduler: SchedulerConfig{
			TickInterval:   time.Duration(getEnvAsInt("SCHEDULER_TICK_SECONDS", 30)) * time.Second,
			HealthInterval: time.Duration(getEnvAsInt("HEALTH_CHECK_SECONDS", 60)) * time.Second,
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvAsSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:5173"}, ","),
		},
		RateLimit: RateLimitConfig{
			RequestsPerMinute: getEnvAsInt("RATE_LIMIT_REQUESTS_PER_MINUTE", 60),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	// Validate required fields
	if cfg.JWT.Secret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}

	// The credential vault fails closed: refuse to start rather than fall
	// back to storing plaintext.
	if cfg.Encryption.Key == "" {
		return nil, fmt.Errorf("ENCRYPTION_KEY is required")
	}
	if len(cfg.Encryption.Key) != 32 {
		return nil, fmt.Errorf("ENCRYPTION_KEY must be exactly 32 bytes")
	}

	return cfg, nil
}

// Address returns the full server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%s", c.Host, c.Port)
}

// IsProduction returns true if running in production mode
func (c *ServerConfig) IsProduction() bool {
	return c.Env == "production"
}

// Helper functions

func getEnv(key string, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsSlice(key string, defaultValue []string, separator string) []string {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	return strings.Split(valueStr, separator)
}
