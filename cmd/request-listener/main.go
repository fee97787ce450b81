package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"stockroom/internal/config"
	"stockroom/internal/listener"
	"stockroom/internal/logger"
	"stockroom/internal/storage"
)

func main() {
	log := logger.New(logger.Config{Service: "request-listener"})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal("load config", "error", err)
	}
	log = logger.New(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Service: "request-listener"})

	db, err := storage.Open(cfg.DBPath)
	if err != nil {
		log.Fatal("open database", "path", cfg.DBPath, "error", err)
	}
	defer db.Close()
	db.SetEquipmentLimit(cfg.EquipmentMaxTokens)

	svc := listener.NewService(db, cfg, log)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info("listener started", "provider", cfg.ListenerProvider, "label", cfg.ListenerLabel, "intervalSec", cfg.ListenerIntervalSec)
	if err := svc.Run(ctx); err != nil {
		log.Fatal("listener stopped", "error", err)
	}
}
