package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hearth/internal/familyd/config"
	"hearth/internal/familyd/server"
	"hearth/internal/familyd/store"
	"hearth/internal/logging"
)

func main() {
	logger := logging.New("familyd")
	defer logger.Sync()
	logger.Info("Starting familyd...")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal(err)
	}

	db, err := store.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal(err)
	}
	defer db.Close()
	logger.Info("Connected to PostgreSQL")

	st := store.New(db)
	srv := server.New(st, logger)

	httpServer := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      srv.Router(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("HTTP server listening on port %s", cfg.HTTPPort)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown: %v", err)
	}

	logger.Info("Server stopped")
}
