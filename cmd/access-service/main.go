package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/rajatsgill7/medicalledger/internal/api"
	"github.com/rajatsgill7/medicalledger/internal/audit"
	"github.com/rajatsgill7/medicalledger/internal/authz"
	"github.com/rajatsgill7/medicalledger/internal/grants"
	"github.com/rajatsgill7/medicalledger/internal/store"
	"github.com/rajatsgill7/medicalledger/pkg/config"
	"github.com/rajatsgill7/medicalledger/pkg/database"
	"github.com/rajatsgill7/medicalledger/pkg/logger"
	"github.com/rajatsgill7/medicalledger/pkg/monitoring"
)

func main() {
	// Load .env if present; real deployments configure via environment
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.LogLevel)
	log.Info("Starting access service")

	db, err := database.NewConnection(&cfg.Database, log)
	if err != nil {
		log.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.InitSchema(); err != nil {
		log.Error("Failed to initialize database schema", "error", err)
		os.Exit(1)
	}

	entityStore := store.NewPostgresStore(db, log)

	// Core components
	engine := grants.NewEngine(entityStore, log)
	auditLogger := audit.NewLogger(entityStore, log)
	gate := authz.NewGate(entityStore, engine, auditLogger, log)

	tokens := api.NewTokenValidator(&cfg.JWT)

	var revocation api.RevocationList
	redisList, err := api.NewRedisRevocationList(&cfg.Redis)
	if err != nil {
		log.Warn("Redis unavailable, falling back to in-process token revocation", "error", err)
		revocation = api.NewMemoryRevocationList()
	} else {
		defer redisList.Close()
		revocation = redisList
	}

	loginLimiter := api.NewLoginLimiter(cfg.RateLimit.LoginBurst, time.Duration(cfg.RateLimit.LoginWindowSeconds)*time.Second)
	loginLimiter.StartCleanup(time.Hour)

	handlers := api.NewHandlers(gate, entityStore, auditLogger, tokens, revocation, loginLimiter, log)
	router := handlers.Router()

	if cfg.Monitoring.Enabled {
		router.Handle(cfg.Monitoring.MetricsPath, monitoring.Handler()).Methods("GET")
	}

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		log.Info("Starting HTTP server", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Failed to start HTTP server", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down access service...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Error("Server forced to shutdown", "error", err)
		os.Exit(1)
	}

	log.Info("Access service stopped")
}
