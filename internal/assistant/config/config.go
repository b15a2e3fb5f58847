package config

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds the configuration for the assistant service.
type Config struct {
	RabbitMQURL    string
	FamilydBaseURL string
	RedisAddr      string
	InvokeEndpoint string
	InvokeAPIKey   string
	InvokeDeploy   string // optional model deployment override
	HistoryWindow  int    // conversation turns folded into the prompt
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		RabbitMQURL:    os.Getenv("RABBITMQ_URL"),
		FamilydBaseURL: getEnvOrDefault("FAMILYD_BASE_URL", "http://localhost:8081"),
		RedisAddr:      getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
		InvokeEndpoint: os.Getenv("INVOKE_ENDPOINT"),
		InvokeAPIKey:   os.Getenv("INVOKE_API_KEY"),
		InvokeDeploy:   os.Getenv("INVOKE_DEPLOYMENT"), // Optional
	}

	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL environment variable is required")
	}
	if cfg.InvokeEndpoint == "" {
		return nil, fmt.Errorf("INVOKE_ENDPOINT environment variable is required")
	}

	if raw := os.Getenv("ASSISTANT_HISTORY_WINDOW"); raw != "" {
		window, err := strconv.Atoi(raw)
		if err != nil || window <= 0 {
			return nil, fmt.Errorf("ASSISTANT_HISTORY_WINDOW must be a positive integer, got %q", raw)
		}
		cfg.HistoryWindow = window
	}

	return cfg, nil
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
