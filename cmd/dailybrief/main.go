package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"

	"github.com/me2resh/me2resh-daily/internal/app"
	"github.com/me2resh/me2resh-daily/internal/config"
	"github.com/me2resh/me2resh-daily/internal/logger"
	"github.com/me2resh/me2resh-daily/internal/metrics"
)

func main() {
	logger.Init()

	configPath := flag.String("config", os.Getenv("DAILYBRIEF_CONFIG"), "path to YAML config")
	lookback := flag.Int("lookback", 0, "override recency window in hours for this run")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Error("startup: config load failed", "error", err)
		os.Exit(1)
	}
	if *lookback > 0 {
		cfg.Scan.LookbackHours = *lookback
	}

	if os.Getenv("ENABLE_HTTP_MONITORING") == "true" {
		go startMonitoringServer()
	}

	ctx := context.Background()

	application, err := app.New(ctx, cfg)
	if err != nil {
		logger.Error("startup: wiring failed", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	result, err := application.Run(ctx)
	if err != nil {
		logger.Error("scan failed", "error", err)
		os.Exit(1)
	}

	selected := 0
	for _, section := range result.Sections {
		selected += len(section)
	}
	logger.Info("done", "date", result.Date, "selected", selected, "raw", len(result.RawFeed))
}

func startMonitoringServer() {
	port := os.Getenv("MONITORING_PORT")
	if port == "" {
		port = "8080"
	}

	http.HandleFunc("/health", healthHandler)
	http.HandleFunc("/metrics", metricsHandler)

	logger.Info("monitoring server listening", "port", port)
	if err := http.ListenAndServe(":"+port, nil); err != nil {
		logger.Error("monitoring server error", "error", err)
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	stats := metrics.Global.GetStats()

	status := "ok"
	if !stats["is_healthy"].(bool) {
		status = "error"
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	response := map[string]interface{}{
		"status":     status,
		"last_run":   stats["last_run_time"],
		"last_error": stats["last_error"],
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

func metricsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(metrics.Global.GetStats())
}
