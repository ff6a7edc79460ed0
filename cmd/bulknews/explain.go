// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bulknews/internal/snapshot"
)

var explainCmd = &cobra.Command{
	Use:   "explain",
	Short: "Count the archive documents a query matches",
	Long: `Explain submits the query server-side and reports how many documents it
matches, without producing any files. Run it before extract to size the
job against the account's extraction quota.`,
	RunE: runExplain,
}

func init() {
	addQueryFlags(explainCmd)
	explainCmd.Flags().Duration("poll-interval", 0, "wait between job status checks (default 20s)")

	rootCmd.AddCommand(explainCmd)
}

func runExplain(cmd *cobra.Command, args []string) error {
	q, err := buildQuery(cmd)
	if err != nil {
		return err
	}

	cfg, err := snapshotConfig(cmd)
	if err != nil {
		return err
	}
	client := snapshot.NewClient(newHTTPClient(cfg.APIConfig), cfg)

	ctx := context.Background()
	job, err := client.SubmitExplain(ctx, q)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "submitted explain job %s\n", job.ShortID)

	results, err := client.Wait(ctx, job, os.Stderr)
	recordJob(ctx, job, q.Where, 0)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "%d documents match\n", results.Explain.DocumentVolume)
	return nil
}
