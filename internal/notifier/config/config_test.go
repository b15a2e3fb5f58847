package config

import (
	"os"
	"testing"
)

func TestLoad_Success(t *testing.T) {
	os.Setenv("RABBITMQ_URL", "amqp://localhost:5672/")
	os.Setenv("BROADCAST_URL", "http://gateway:8080/internal/broadcast")
	defer func() {
		os.Unsetenv("RABBITMQ_URL")
		os.Unsetenv("BROADCAST_URL")
	}()

	cfg, err := Load()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.RabbitMQURL != "amqp://localhost:5672/" {
		t.Errorf("expected RabbitMQURL amqp://localhost:5672/, got %s", cfg.RabbitMQURL)
	}
	if cfg.BroadcastURL != "http://gateway:8080/internal/broadcast" {
		t.Errorf("expected BroadcastURL, got %s", cfg.BroadcastURL)
	}
}

func TestLoad_MissingRabbitMQURL(t *testing.T) {
	os.Unsetenv("RABBITMQ_URL")

	cfg, err := Load()

	if err == nil {
		t.Fatal("expected error when RABBITMQ_URL is missing")
	}
	if cfg != nil {
		t.Error("expected nil config when error occurs")
	}
}

func TestLoad_Defaults(t *testing.T) {
	os.Setenv("RABBITMQ_URL", "amqp://localhost:5672/")
	os.Unsetenv("FAMILYD_BASE_URL")
	os.Unsetenv("BROADCAST_URL")
	defer os.Unsetenv("RABBITMQ_URL")

	cfg, err := Load()

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.FamilydBaseURL != "http://localhost:8081" {
		t.Errorf("expected default FamilydBaseURL, got %s", cfg.FamilydBaseURL)
	}
	if cfg.BroadcastURL != "http://localhost:8080/internal/broadcast" {
		t.Errorf("expected default BroadcastURL, got %s", cfg.BroadcastURL)
	}
}

func TestSMSEnabled(t *testing.T) {
	tests := []struct {
		name    string
		sid     string
		token   string
		number  string
		enabled bool
	}{
		{"all present", "AC123", "token", "+15550009", true},
		{"missing sid", "", "token", "+15550009", false},
		{"missing token", "AC123", "", "+15550009", false},
		{"missing number", "AC123", "token", "", false},
		{"none", "", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				TwilioAccountSID:  tt.sid,
				TwilioAuthToken:   tt.token,
				TwilioPhoneNumber: tt.number,
			}
			if cfg.SMSEnabled() != tt.enabled {
				t.Errorf("SMSEnabled() = %v, expected %v", cfg.SMSEnabled(), tt.enabled)
			}
		})
	}
}
