package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Host string
	Port int

	// Supabase REST endpoint configuration
	SupabaseURL string
	SupabaseKey string

	// Telegram configuration
	BotToken            string // empty disables the bot surface
	ValidateInitData    bool   // verify Mini-App initData signatures
	DemoCoachTelegramID string // non-empty enables demo mode without host chrome

	// Static Mini-App assets
	StaticDir string

	// Public Mini-App URL, offered as a bot menu button when set
	WebAppURL string

	// Offline snapshot store
	SnapshotPath string

	// Background refresher
	RefreshInterval time.Duration

	// Metrics configuration
	MetricsEnabled bool
	MetricsHost    string
	MetricsPort    int

	// Logging configuration
	LogLevel string
}

// Load reads configuration from environment variables
// It fails fast if required variables are missing
func Load() (*Config, error) {
	cfg := &Config{
		// Optional values with defaults
		Host:                getEnv("HOST", "localhost"),
		Port:                getEnvInt("PORT", 8000),
		BotToken:            os.Getenv("TELEGRAM_BOT_TOKEN"),
		ValidateInitData:    getEnvBool("VALIDATE_INIT_DATA", true),
		DemoCoachTelegramID: os.Getenv("DEMO_COACH_TELEGRAM_ID"),
		StaticDir:           getEnv("STATIC_DIR", "./web"),
		WebAppURL:           os.Getenv("WEB_APP_URL"),
		SnapshotPath:        getEnv("SNAPSHOT_PATH", "./snapshots.db"),
		RefreshInterval:     time.Duration(getEnvInt("REFRESH_INTERVAL_SECONDS", 300)) * time.Second,
		MetricsEnabled:      getEnvBool("METRICS_ENABLED", false),
		MetricsHost:         getEnv("METRICS_HOST", "localhost"),
		MetricsPort:         getEnvInt("METRICS_PORT", 9100),
		LogLevel:            getEnv("LOG_LEVEL", "info"),
	}

	// Required values
	var missingVars []string

	cfg.SupabaseURL = os.Getenv("SUPABASE_URL")
	if cfg.SupabaseURL == "" {
		missingVars = append(missingVars, "SUPABASE_URL")
	}

	cfg.SupabaseKey = os.Getenv("SUPABASE_KEY")
	if cfg.SupabaseKey == "" {
		missingVars = append(missingVars, "SUPABASE_KEY")
	}

	if len(missingVars) > 0 {
		return nil, fmt.Errorf("missing required environment variables: %v", missingVars)
	}

	if cfg.ValidateInitData && cfg.BotToken == "" && cfg.DemoCoachTelegramID == "" {
		return nil, fmt.Errorf("VALIDATE_INIT_DATA requires TELEGRAM_BOT_TOKEN (or set DEMO_COACH_TELEGRAM_ID)")
	}

	return cfg, nil
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable or returns a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}

// getEnvBool gets a boolean environment variable or returns a default value
func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}

	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}

	return value
}
