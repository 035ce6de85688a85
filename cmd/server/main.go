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

	"github.com/joho/godotenv"

	"gudangku/backend/internal/config"
	"gudangku/backend/internal/httpapi"
	"gudangku/backend/internal/service"
	"gudangku/backend/internal/store"
	"gudangku/backend/internal/store/sqlite"
)

func main() {
	if err := godotenv.Load(); err == nil {
		log.Println("loaded environment from .env")
	}

	cfg := config.Load()
	if err := validateSecurityConfig(cfg); err != nil {
		log.Fatalf("invalid security configuration: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// The pointer file wins over the default path; opening runs month-end
	// archival before the store serves anything.
	dbPath := store.LoadSelectedDBPath(cfg.DataDir, cfg.DefaultDBPath())
	repo, err := sqlite.Open(ctx, dbPath)
	if err != nil {
		log.Fatalf("open store %s: %v", dbPath, err)
	}
	log.Printf("repository: sqlite (%s)", dbPath)

	auth := httpapi.NewAuthManager(cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, repo)
	if err := auth.EnsureAdmin(ctx, cfg.AdminUsername, cfg.AdminPassword); err != nil {
		log.Fatalf("bootstrap admin: %v", err)
	}

	svc := service.New(repo, dbPath, service.Options{
		DataDir:           cfg.DataDir,
		ReportsDir:        cfg.ReportsDir,
		ExpiryWarningDays: cfg.ExpiryWarningDays,
		OpenStore: func(ctx context.Context, path string) (store.Repository, error) {
			return sqlite.Open(ctx, path)
		},
		// Keep user accounts bound to the active store across switches.
		OnStoreSwitched: func(repo store.Repository) {
			auth.Rebind(repo)
		},
	})

	if warnings, err := svc.StartupWarnings(ctx); err != nil {
		log.Printf("startup warnings unavailable: %v", err)
	} else {
		for _, line := range warnings {
			log.Println(line)
		}
	}

	api := httpapi.New(svc, auth, cfg.AllowedOrigin)

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		log.Printf("inventory backend listening on %s", cfg.Address())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown error: %v", err)
	}

	// Close whichever store is active after any switches.
	if err := svc.CloseStore(); err != nil {
		log.Printf("close error: %v", err)
	}

	log.Println("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	return nil
}
