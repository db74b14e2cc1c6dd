package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/subtracker/subscriptions/internal/config"
)

var (
	configDir string
	seedDir   string
	tokenUser string
	tokenMail string

	cfg *config.Config
	log = logrus.New()

	rootCmd = &cobra.Command{
		Use:           "subscriptions",
		Short:         "Subscription tracking API",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			cfg, err = config.LoadConfig(configDir)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return setupLogger(log, cfg.Log)
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe, // serve.go
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Manage the postgres schema",
	}
	migrateUpCmd = &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE:  runMigrateUp, // migrate.go
	}
	migrateDownCmd = &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration",
		RunE:  runMigrateDown,
	}
	migrateStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "Show the current schema version",
		RunE:  runMigrateStatus,
	}

	seedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Load users.json and subs.json into storage",
		RunE:  runSeed, // seed.go
	}

	tokenCmd = &cobra.Command{
		Use:   "token",
		Short: "Print a signed bearer token for local testing",
		RunE:  runToken, // token.go
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory holding config.yaml and .env")

	seedCmd.Flags().StringVar(&seedDir, "dir", "", "fixture directory (defaults to seed.dir)")

	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id placed in the token subject")
	tokenCmd.Flags().StringVar(&tokenMail, "email", "", "optional email claim")
	_ = tokenCmd.MarkFlagRequired("user")

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd, seedCmd, tokenCmd)
}

func setupLogger(l *logrus.Logger, c config.LogConfig) error {
	level, err := logrus.ParseLevel(c.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	l.SetLevel(level)
	l.SetOutput(os.Stdout)
	if c.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	return nil
}
