package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"hearth/internal/entity"
	"hearth/internal/logging"
	"hearth/internal/notifier/config"
	"hearth/internal/notifier/consumer"
	"hearth/internal/notifier/dispatch"
	"hearth/internal/notifier/push"
	"hearth/internal/notifier/sms"
)

// phoneSource resolves member phone numbers through familyd.
type phoneSource struct {
	client *entity.Client
}

func (p *phoneSource) PhoneOf(ctx context.Context, memberID string) (string, error) {
	member, err := p.client.GetMember(ctx, memberID)
	if err != nil {
		return "", err
	}
	return member.Phone, nil
}

func main() {
	logger := logging.New("notifier")
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		os.Exit(1)
	}

	var smsClient dispatch.SMSSender
	if cfg.SMSEnabled() {
		smsClient = sms.NewClient(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioPhoneNumber)
		logger.Info("Twilio client initialized")
	} else {
		logger.Info("Twilio not configured, SMS channel disabled")
	}

	pusher := push.NewClient(cfg.BroadcastURL)
	phones := &phoneSource{client: entity.NewClient(cfg.FamilydBaseURL)}
	dispatcher := dispatch.New(smsClient, pusher, phones)

	cons, err := consumer.New(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Error("Failed to create consumer: %v", err)
		os.Exit(1)
	}
	defer cons.Close()
	logger.Info("Connected to RabbitMQ")

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutting down...")
		cancel()
	}()

	logger.Info("Starting notifier, waiting for replies...")

	if err := cons.Start(ctx, dispatcher.Dispatch); err != nil && err != context.Canceled {
		logger.Error("Consumer error: %v", err)
		os.Exit(1)
	}

	logger.Info("Notifier stopped")
}
