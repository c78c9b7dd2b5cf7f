package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cardmarket-scanner/internal/api"
	"cardmarket-scanner/internal/config"
	"cardmarket-scanner/internal/database"
	"cardmarket-scanner/internal/services"
)

func main() {
	cfg := config.Load()

	// Initialize database
	if err := database.Initialize(cfg.DatabasePath); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	// Initialize services
	store := services.NewScanStore(database.GetDB())
	baseline := services.NewBaselineEstimator(store, cfg.BaselineWindowScans)
	classifier := services.NewDealClassifier(cfg.DealPolicy())
	collector := services.NewRemoteCollector(cfg.CollectorURL, cfg.CollectorTimeout, cfg.MaxOffersPerScan)

	// Telegram notifications are optional; alerts always land in the database
	var notifier services.Notifier
	if cfg.TelegramToken != "" && cfg.TelegramChatID != 0 {
		tg, err := services.NewTelegramNotifier(cfg.TelegramToken, cfg.TelegramChatID)
		if err != nil {
			log.Printf("Telegram notifier disabled: %v", err)
		} else {
			notifier = tg
			log.Println("Telegram notifier enabled")
		}
	}

	scanner := services.NewScanner(collector, store, baseline, classifier, notifier)
	scanWorker := services.NewScanWorker(scanner, store, cfg.ScanInterval, cfg.ScanRatePerMin)
	retentionWorker := services.NewRetentionWorker(store, services.RetentionPolicy{
		OfferDays:  cfg.OfferRetentionDays,
		ScanDays:   cfg.ScanRetentionDays,
		AlertDays:  cfg.AlertRetentionDays,
		LegacyDays: cfg.LegacyRetentionDays,
	}, cfg.RetentionCheckInterval)

	// Create a cancellable context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start scan worker in background with panic recovery
	go func() {
		for {
			func() {
				defer func() {
					if r := recover(); r != nil {
						log.Printf("PANIC in scan worker: %v - restarting in 30 seconds", r)
					}
				}()
				scanWorker.Start(ctx)
			}()

			select {
			case <-ctx.Done():
				return // Graceful shutdown
			case <-time.After(30 * time.Second):
				log.Println("Scan worker restarting after panic recovery...")
			}
		}
	}()

	// Start retention worker in background
	go retentionWorker.Start(ctx)

	// Setup router
	router := api.SetupRouter(store, baseline, scanWorker, cfg.CORSOrigins)

	// Create HTTP server for graceful shutdown
	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		log.Printf("Starting server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	// Cancel the context to stop the background workers
	cancel()

	// Give outstanding requests a deadline to complete
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Server exited")
}
