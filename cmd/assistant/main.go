package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"hearth/internal/assistant/config"
	"hearth/internal/assistant/consumer"
	"hearth/internal/assistant/execute"
	"hearth/internal/assistant/handler"
	"hearth/internal/assistant/interpret"
	"hearth/internal/assistant/llm"
	"hearth/internal/assistant/pending"
	"hearth/internal/assistant/publisher"
	"hearth/internal/assistant/transcript"
	"hearth/internal/entity"
	"hearth/internal/logging"
)

func main() {
	logger := logging.New("assistant")
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load config: %v", err)
		os.Exit(1)
	}

	llmClient, err := llm.NewClient(cfg.InvokeEndpoint, cfg.InvokeAPIKey)
	if err != nil {
		logger.Error("Failed to create completion client: %v", err)
		os.Exit(1)
	}
	if cfg.InvokeDeploy != "" {
		llmClient.SetDeployment(cfg.InvokeDeploy)
		logger.Info("Using completion deployment: %s", cfg.InvokeDeploy)
	}

	entities := entity.NewClient(cfg.FamilydBaseURL)
	logger.Info("Using familyd at %s", cfg.FamilydBaseURL)

	cache := transcript.NewRedisCache(cfg.RedisAddr)
	defer cache.Close()

	pub, err := publisher.New(cfg.RabbitMQURL)
	if err != nil {
		logger.Error("Failed to create publisher: %v", err)
		os.Exit(1)
	}
	defer pub.Close()

	cons, err := consumer.New(cfg.RabbitMQURL, logger)
	if err != nil {
		logger.Error("Failed to create consumer: %v", err)
		os.Exit(1)
	}
	defer cons.Close()
	logger.Info("Connected to RabbitMQ")

	store := pending.NewStore()
	executor := execute.New(entities, logger, nil)
	interpreter := interpret.New(entities, executor, store, logger)
	h := handler.New(llmClient, interpreter, executor, store, entities, cache, pub, logger, cfg.HistoryWindow)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutting down...")
		cancel()
	}()

	logger.Info("Starting assistant, waiting for messages...")

	if err := cons.Start(ctx, h.Handle); err != nil && err != context.Canceled {
		logger.Error("Consumer error: %v", err)
		os.Exit(1)
	}

	logger.Info("Assistant stopped")
}
