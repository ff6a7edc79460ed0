// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/bulknews/internal/ledger"
	"github.com/pdiddy/bulknews/pkg/types"
)

var jobsCmd = &cobra.Command{
	Use:   "jobs",
	Short: "List jobs recorded in the local ledger",
	Long: `Jobs lists the jobs this machine has submitted, newest first. The listing
comes from the local ledger, not the API, so jobs submitted elsewhere do
not appear.`,
	RunE: runJobs,
}

func init() {
	jobsCmd.Flags().String("kind", "", "only list jobs of this kind (explain, analytics, extraction, update)")
	jobsCmd.Flags().Int("max-results", 0, "maximum number of jobs to list (default 20)")
	jobsCmd.Flags().String("ledger-dir", "", "ledger directory (default ledger)")

	rootCmd.AddCommand(jobsCmd)
}

func runJobs(cmd *cobra.Command, args []string) error {
	dir, _ := cmd.Flags().GetString("ledger-dir")
	if dir == "" {
		dir = viper.GetString("ledger_dir")
	}
	if dir == "" {
		dir = "ledger"
	}
	maxResults, _ := cmd.Flags().GetInt("max-results")
	if maxResults == 0 {
		maxResults = viper.GetInt("max_results")
	}

	l, err := ledger.Open(types.LedgerConfig{Dir: dir, MaxResults: maxResults})
	if err != nil {
		return err
	}
	defer l.Close()

	kind, _ := cmd.Flags().GetString("kind")
	entries, err := l.List(context.Background(), types.JobKind(kind))
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%-20s  %-10s  %-18s  %-19s  %5s\n",
		"SHORT ID", "KIND", "STATE", "SUBMITTED", "FILES")
	for _, e := range entries {
		fmt.Fprintf(os.Stdout, "%-20s  %-10s  %-18s  %-19s  %5d\n",
			e.ShortID, e.Kind, e.State, e.SubmittedAt.Local().Format(time.DateTime), e.FileCount)
	}
	fmt.Fprintf(os.Stdout, "\n%d jobs\n", len(entries))
	return nil
}
