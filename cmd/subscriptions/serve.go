package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"github.com/subtracker/subscriptions/internal/auth"
	"github.com/subtracker/subscriptions/internal/config"
	"github.com/subtracker/subscriptions/internal/handlers"
	"github.com/subtracker/subscriptions/internal/service"
	"github.com/subtracker/subscriptions/internal/store"
	"github.com/subtracker/subscriptions/internal/validation"
)

// openRepository returns the configured storage and a func releasing it.
func openRepository(c *config.Config) (store.Repository, func(), error) {
	if c.Storage.Driver == config.DriverMemory {
		log.Warn("using in-memory storage, data is lost on exit")
		return store.NewMemoryRepository(), func() {}, nil
	}
	db, err := sqlx.Connect("postgres", c.Postgres.DSN())
	if err != nil {
		return nil, nil, fmt.Errorf("can't connect to db: %w", err)
	}
	// run migrations on startup
	if err := store.EnsureMigrations(db); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return store.NewPostgresRepository(db, log), func() { db.Close() }, nil
}

func authConfig(c config.AuthConfig) auth.Config {
	return auth.Config{
		Secret:              c.JWTSecret,
		Issuer:              c.Issuer,
		Audience:            c.Audience,
		AllowHeaderFallback: c.AllowHeaderFallback,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	log.Infof("starting subscriptions service on %s", cfg.Server.Address)
	if cfg.Auth.JWTSecret == "" && !cfg.Auth.AllowHeaderFallback {
		log.Warn("auth.jwt_secret is empty, every request will be unauthenticated")
	}

	repo, closeRepo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	svc := service.New(repo, validation.New(), log)
	h := handlers.NewHandler(svc, log)
	r := handlers.NewRouter(h, handlers.RouterOptions{
		Auth:        authConfig(cfg.Auth),
		CORSOrigins: cfg.Server.CORSOrigins,
		Timeout:     cfg.Timeout,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errc:
		return fmt.Errorf("server error: %w", err)
	}
	log.Info("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	log.Info("server stopped")
	return nil
}
