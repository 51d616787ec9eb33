package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/diegomarin28/KERANA-sub001/internal/app"
	"github.com/diegomarin28/KERANA-sub001/internal/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger := app.NewLogger(cfg.Log, cfg.Environment)
	defer logger.Sync()

	logger.Info("Starting booking service",
		zap.String("environment", cfg.Environment),
		zap.String("store", cfg.Store.Driver),
		zap.String("timezone", cfg.Booking.Timezone),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize application", zap.Error(err))
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		logger.Error("Application stopped with error", zap.Error(err))
		os.Exit(1)
	}

	logger.Info("Booking service stopped")
}
