package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/subtracker/subscriptions/internal/seed"
)

func runSeed(cmd *cobra.Command, args []string) error {
	dir := seedDir
	if dir == "" {
		dir = cfg.Seed.Dir
	}
	repo, closeRepo, err := openRepository(cfg)
	if err != nil {
		return err
	}
	defer closeRepo()

	res, err := seed.New(repo, log).Run(cmd.Context(), dir)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), res.String())
	return nil
}
