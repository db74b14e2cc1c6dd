package main

import (
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"
	"github.com/subtracker/subscriptions/internal/store"
)

func withMigrator(fn func(m *migrate.Migrate) error) error {
	db, err := sqlx.Connect("postgres", cfg.Postgres.DSN())
	if err != nil {
		return fmt.Errorf("can't connect to db: %w", err)
	}
	log.Infof("connected to %s@%s:%d/%s", cfg.Postgres.User, cfg.Postgres.Host, cfg.Postgres.Port, cfg.Postgres.DBName)

	m, err := store.NewMigrator(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("init migrations: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			log.Warnf("closing migrator: %v, %v", srcErr, dbErr)
		}
	}()
	return fn(m)
}

func runMigrateUp(cmd *cobra.Command, args []string) error {
	return withMigrator(func(m *migrate.Migrate) error {
		err := m.Up()
		switch {
		case errors.Is(err, migrate.ErrNoChange):
			log.Info("no change: schema is up to date")
		case err != nil:
			return fmt.Errorf("apply migrations: %w", err)
		default:
			log.Info("migrations applied")
		}
		return nil
	})
}

func runMigrateDown(cmd *cobra.Command, args []string) error {
	return withMigrator(func(m *migrate.Migrate) error {
		if err := m.Steps(-1); err != nil {
			return fmt.Errorf("roll back last migration: %w", err)
		}
		log.Info("rolled back last migration")
		return nil
	})
}

func runMigrateStatus(cmd *cobra.Command, args []string) error {
	return withMigrator(func(m *migrate.Migrate) error {
		version, dirty, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			log.Info("no migrations applied yet")
			return nil
		}
		if err != nil {
			return fmt.Errorf("read schema version: %w", err)
		}
		status := ""
		if dirty {
			status = " (dirty)"
		}
		log.Infof("schema version: %d%s", version, status)
		return nil
	})
}
