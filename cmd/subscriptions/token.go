package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/subtracker/subscriptions/internal/auth"
)

func runToken(cmd *cobra.Command, args []string) error {
	tok, err := auth.IssueToken(authConfig(cfg.Auth), tokenUser, tokenMail, cfg.Auth.TokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), tok)
	return nil
}
