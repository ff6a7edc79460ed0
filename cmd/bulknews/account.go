// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bulknews/internal/auth"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Show the account's extraction usage and limits",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := apiConfig(cmd)
		if err != nil {
			return err
		}

		stats, err := auth.Statistics(context.Background(), newHTTPClient(cfg), cfg)
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stdout, "account: %s (%s)\n", stats.Name, stats.AccountType)
		fmt.Fprintf(os.Stdout, "extractions: %d of %d used, %d remaining\n",
			stats.CurrentlyUsedExtracts, stats.MaxAllowedExtracts, stats.RemainingExtracts)
		fmt.Fprintf(os.Stdout, "concurrent extraction limit: %d\n", stats.MaxAllowedConcurrentExtracts)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(accountCmd)
}
