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
	Admin    AdminConfig
	Gateway  GatewayConfig
	Redis    RedisConfig
	Timeouts TimeoutConfig
}

type ServerConfig struct {
	Port           string
	PublicBaseURL  string
	AllowedOrigins []string
}

type AdminConfig struct {
	// Email is compared case-insensitively against authenticated
	// identities to grant the ADMIN role.
	Email string
}

// GatewayConfig selects and configures the remote data gateway.
// Kind "supabase" talks to a hosted backend over HTTP; kind "postgres"
// runs against a self-hosted database directly.
type GatewayConfig struct {
	Kind            string
	SupabaseURL     string
	SupabaseAnonKey string
	DSN             string
	JWTSecret       string
	MediaDir        string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// TimeoutConfig holds the per-call budgets. Fast-path probes get short
// budgets; full data loads get longer ones.
type TimeoutConfig struct {
	Health     time.Duration
	Session    time.Duration
	Profile    time.Duration
	Landing    time.Duration
	Businesses time.Duration
	Auth       time.Duration
	MaxWait    time.Duration
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignore error in production)
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:           getEnv("PORT", "8080"),
			PublicBaseURL:  getEnv("PUBLIC_BASE_URL", "http://localhost:8080"),
			AllowedOrigins: []string{getEnv("CORS_ORIGIN", "*")},
		},
		Admin: AdminConfig{
			Email: getEnv("ADMIN_EMAIL", ""),
		},
		Gateway: GatewayConfig{
			Kind:            getEnv("GATEWAY_KIND", "supabase"),
			SupabaseURL:     getEnv("SUPABASE_URL", ""),
			SupabaseAnonKey: getEnv("SUPABASE_ANON_KEY", ""),
			DSN:             getEnv("DB_DSN", ""),
			JWTSecret:       getEnv("JWT_SECRET", ""),
			MediaDir:        getEnv("MEDIA_DIR", "media"),
		},
		Redis: RedisConfig{
			Addr:     getEnv("REDIS_ADDR", "localhost:6379"),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
		},
		Timeouts: TimeoutConfig{
			Health:     getEnvAsDuration("TIMEOUT_HEALTH", 5*time.Second),
			Session:    getEnvAsDuration("TIMEOUT_SESSION", 5*time.Second),
			Profile:    getEnvAsDuration("TIMEOUT_PROFILE", 10*time.Second),
			Landing:    getEnvAsDuration("TIMEOUT_LANDING", 8*time.Second),
			Businesses: getEnvAsDuration("TIMEOUT_BUSINESSES", 10*time.Second),
			Auth:       getEnvAsDuration("TIMEOUT_AUTH", 15*time.Second),
			MaxWait:    getEnvAsDuration("TIMEOUT_MAX_WAIT", 8*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("PORT is required")
	}

	if c.Admin.Email == "" {
		return fmt.Errorf("ADMIN_EMAIL is required")
	}

	switch c.Gateway.Kind {
	case "supabase":
		if c.Gateway.SupabaseURL == "" {
			return fmt.Errorf("SUPABASE_URL is required for the supabase gateway")
		}
		if c.Gateway.SupabaseAnonKey == "" {
			return fmt.Errorf("SUPABASE_ANON_KEY is required for the supabase gateway")
		}
	case "postgres":
		if c.Gateway.DSN == "" {
			return fmt.Errorf("DB_DSN is required for the postgres gateway")
		}
		if c.Gateway.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required for the postgres gateway")
		}
	default:
		return fmt.Errorf("GATEWAY_KIND must be supabase or postgres, got %q", c.Gateway.Kind)
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid integer for %s, using default: %d", key, defaultValue)
		return defaultValue
	}

	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := time.ParseDuration(valueStr)
	if err != nil {
		log.Printf("Warning: Invalid duration for %s, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}
