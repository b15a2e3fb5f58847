package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hearth/internal/entity"
	"hearth/internal/gateway/config"
	"hearth/internal/gateway/handler"
	"hearth/internal/gateway/publisher"
	"hearth/internal/gateway/ws"
	"hearth/internal/logging"
)

// memberSource adapts the familyd client to the handler's SMS lookup.
type memberSource struct {
	client *entity.Client
}

func (m *memberSource) MemberByPhone(ctx context.Context, phone string) (string, string, error) {
	member, err := m.client.GetMemberByPhone(ctx, phone)
	if err != nil {
		return "", "", err
	}
	return member.ID, member.FamilyID, nil
}

func main() {
	logger := logging.New("gateway")
	defer logger.Sync()
	logger.Info("Starting gateway...")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal(err)
	}

	pub, err := publisher.New(cfg.RabbitMQURL)
	if err != nil {
		logger.Fatal(err)
	}
	defer pub.Close()
	logger.Info("Connected to RabbitMQ")

	entities := entity.NewClient(cfg.FamilydBaseURL)

	h := handler.New(pub, &memberSource{client: entities}, logger, cfg.TwilioAuthToken)
	if cfg.WebhookURL != "" {
		h.SetWebhookURL(cfg.WebhookURL)
	}

	hub := ws.NewHub(logger, h.HandleInbound)
	h.SetHub(hub)

	server := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      h.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening on port %s", cfg.HTTPPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown: %v", err)
	}

	logger.Info("Server stopped")
}
