package config

import (
	"fmt"
	"os"
)

// Config holds the notifier service configuration. Twilio settings are
// optional: without them the SMS channel is disabled and web replies
// still flow.
type Config struct {
	RabbitMQURL       string
	FamilydBaseURL    string
	BroadcastURL      string
	TwilioAccountSID  string
	TwilioAuthToken   string
	TwilioPhoneNumber string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		RabbitMQURL:       os.Getenv("RABBITMQ_URL"),
		FamilydBaseURL:    getEnvOrDefault("FAMILYD_BASE_URL", "http://localhost:8081"),
		BroadcastURL:      getEnvOrDefault("BROADCAST_URL", "http://localhost:8080/internal/broadcast"),
		TwilioAccountSID:  os.Getenv("TWILIO_ACCOUNT_SID"),
		TwilioAuthToken:   os.Getenv("TWILIO_AUTH_TOKEN"),
		TwilioPhoneNumber: os.Getenv("TWILIO_PHONE_NUMBER"),
	}

	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required")
	}

	return cfg, nil
}

// SMSEnabled reports whether all Twilio settings are present.
func (c *Config) SMSEnabled() bool {
	return c.TwilioAccountSID != "" && c.TwilioAuthToken != "" && c.TwilioPhoneNumber != ""
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
