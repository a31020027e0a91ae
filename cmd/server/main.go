package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"
	"github.com/tallyledger/backend/internal/app"
	"github.com/tallyledger/backend/internal/config"
	"github.com/tallyledger/backend/internal/handlers"
	mW "github.com/tallyledger/backend/internal/middleware"
	"github.com/tallyledger/backend/internal/storage/postgres"
)

// @title Tally Ledger API
// @version 1.0
// @description Double-entry bookkeeping ledger for small businesses
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https

func main() {
	config.InitViper(".env")

	ctx := context.Background()
	ledgerApp, err := app.Open(ctx)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer ledgerApp.Close()

	if err := postgres.Migrate(ctx, ledgerApp.DB); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	ledgerHandler := handlers.NewLedgerHandler(ledgerApp.Ledger, ledgerApp.Importer)

	// Setup router
	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", mW.BusinessHeader},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		status, code := "healthy", http.StatusOK
		if err := ledgerApp.DB.PingContext(r.Context()); err != nil {
			status, code = "database unavailable", http.StatusServiceUnavailable
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"status": status})
	})

	// API documentation
	r.Handle("/api-docs/*", http.StripPrefix("/api-docs", mW.StaticFileServer("./api")))
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/api-docs/openapi.yaml"),
	))

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(mW.BusinessScope)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))
			ledgerHandler.RegisterRoutes(r)
		})

		// Imports commit batch by batch under their own timeouts
		r.Group(func(r chi.Router) {
			r.Use(mW.LongRunning(ledgerApp.Config.ImportRequestTimeout))
			ledgerHandler.RegisterImportRoutes(r)
		})
	})

	viper.SetDefault("server.port", "8080")
	port := viper.GetString("server.port")

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
