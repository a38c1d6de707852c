package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/savegress/medroute/internal/admission"
	"github.com/savegress/medroute/internal/analysis"
	"github.com/savegress/medroute/internal/api"
	"github.com/savegress/medroute/internal/authgw"
	"github.com/savegress/medroute/internal/config"
	"github.com/savegress/medroute/internal/directory"
	"github.com/savegress/medroute/internal/journal"
	"github.com/savegress/medroute/internal/locator"
	"github.com/savegress/medroute/internal/routing"
	"github.com/savegress/medroute/internal/session"
)

func main() {
	log.Println("Starting MedRoute...")

	// Load configuration
	cfg := loadConfig()

	// Upstream service clients
	analysisClient := analysis.NewClient(&analysis.ClientConfig{
		BaseURL: cfg.Analysis.BaseURL,
		Timeout: cfg.Analysis.Timeout,
	})
	directoryClient := directory.NewClient(&directory.ClientConfig{
		BaseURL: cfg.Directory.BaseURL,
		Timeout: cfg.Directory.Timeout,
	})
	admissionClient := admission.NewClient(&admission.ClientConfig{
		BaseURL: cfg.Requests.BaseURL,
		Timeout: cfg.Requests.Timeout,
	})
	authClient := authgw.NewClient(&authgw.ClientConfig{
		BaseURL: cfg.Auth.BaseURL,
		Timeout: cfg.Auth.Timeout,
	})
	routingClient := routing.NewClient(&routing.ClientConfig{
		BaseURL: cfg.Routing.BaseURL,
		Timeout: cfg.Routing.Timeout,
	})

	// Triage journal
	triageJournal := journal.New()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := triageJournal.Start(ctx); err != nil {
		log.Fatalf("Failed to start triage journal: %v", err)
	}

	// Create API server
	server := api.NewServer(cfg, &api.Dependencies{
		Sessions:  session.NewManager(),
		Analysis:  analysisClient,
		Directory: directoryClient,
		Locators:  locator.NewManager(directoryClient, routingClient),
		Admission: admissionClient,
		Auth:      authClient,
		Tokens:    authgw.NewStore(),
		Journal:   triageJournal,
	})

	// Start HTTP server
	httpServer := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      server.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("MedRoute API listening on port %d", cfg.Server.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP server error: %v", err)
		}
	}()

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down MedRoute...")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
	}

	server.Close()
	triageJournal.Stop()

	log.Println("MedRoute stopped")
}

func loadConfig() *config.Config {
	configPath := os.Getenv("MEDROUTE_CONFIG")
	if configPath != "" {
		cfg, err := config.Load(configPath)
		if err != nil {
			log.Printf("Failed to load config from %s: %v, using defaults", configPath, err)
			return config.LoadFromEnv()
		}
		return cfg
	}
	return config.LoadFromEnv()
}
