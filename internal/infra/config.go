package infra

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	APIKey           string
	UID              string
	BaseURL          string
	Concurrency      int
	PollInterval     time.Duration
	MaxPollTime      time.Duration
	ResultsPath      string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from the environment (and an optional .env
// file) and applies defaults where needed. The API key and user id are
// required: every remote call carries both.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env", ".env.local")

	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8780"),
		APIKey:           os.Getenv("GENVR_API_KEY"),
		UID:              os.Getenv("GENVR_UID"),
		BaseURL:          getEnv("GENVR_BASE_URL", "https://api.genvrresearch.com"),
		Concurrency:      getEnvInt("BATCH_CONCURRENCY", 3),
		PollInterval:     time.Second * time.Duration(getEnvInt("POLL_INTERVAL_SECONDS", 1)),
		MaxPollTime:      time.Second * time.Duration(getEnvInt("MAX_POLL_SECONDS", 300)),
		ResultsPath:      getEnv("RESULTS_PATH", "./results"),
		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 30)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.APIKey == "" {
		return nil, fmt.Errorf("GENVR_API_KEY is required")
	}

	if cfg.UID == "" {
		return nil, fmt.Errorf("GENVR_UID is required")
	}

	if cfg.Concurrency < 1 {
		cfg.Concurrency = 1
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}
