package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/k9trials/ringsync/internal/app"
	"github.com/k9trials/ringsync/internal/export"
)

func main() {
	var configPath = flag.String("config", "config.toml", "Path to config file")
	flag.Parse()

	_ = godotenv.Load()

	service, err := app.NewService(*configPath)
	if err != nil {
		logger.Error.Fatalf("Failed to load config: %v", err)
	}
	defer service.Close()

	scheduler, err := export.StartExporters(service.Config, service.Store)
	if err != nil {
		logger.Error.Fatalf("Failed to start exporters: %v", err)
	}
	defer scheduler.Stop()

	logger.Info.Printf("Scheduled %d sheet exports", len(service.Config.Export.Sheets))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info.Println("Exporter shutting down")
}
