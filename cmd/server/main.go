package main

import (
	"flag"
	"net/http"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/k9trials/ringsync/internal/app"
	"github.com/k9trials/ringsync/internal/handlers"
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

	if err := service.Store.ApplyMigrations(service.Config.Database.MigrationsDir); err != nil {
		logger.Error.Fatalf("Failed to apply migrations: %v", err)
	}

	resultsHandler := handlers.NewResultsHandler(service)

	http.HandleFunc("GET /api/v1/shows/{license}/summary", resultsHandler.HandleShowSummary)
	http.HandleFunc("GET /api/v1/classes/{id}/results", resultsHandler.HandleClassResults)

	http.Handle("/metrics", promhttp.Handler())

	listen := service.Config.Server.Listen
	if listen == "" {
		listen = ":9099"
	}

	logger.Info.Printf("Starting ringsync results server on %s", listen)
	if err := http.ListenAndServe(listen, nil); err != nil {
		logger.Error.Fatalf("Ringsync server failed: %v", err)
	}
}
