package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/angelgru/gamification/app"
	"github.com/angelgru/gamification/config"
)

func main() {
	configFile := flag.String("config", "config.yaml", "Path to the configuration file")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.LoadConfig(*configFile)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize app: %v", err)
	}

	logger := application.Observability.Provider.Logger
	logger.Info("Starting gamification service")

	runErr := application.Run(ctx)
	if runErr != nil {
		logger.Error("Application stopped with error", "error", runErr)
	}

	if err := application.Close(); err != nil {
		logger.Error("Error during shutdown", "error", err)
	}

	logger.Info("Gamification service stopped")
	if runErr != nil {
		os.Exit(1)
	}
}
