// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bulknews/internal/snapshot"
)

var analyticsCmd = &cobra.Command{
	Use:   "analytics",
	Short: "Bucket matching documents over time",
	Long: `Analytics submits the query server-side and reports document counts per
time bucket (day, month, or year), optionally grouped by source code.`,
	RunE: runAnalytics,
}

func init() {
	addQueryFlags(analyticsCmd)
	analyticsCmd.Flags().String("frequency", "MONTH", "bucket size: DAY, MONTH, or YEAR")
	analyticsCmd.Flags().String("date-field", "publication_datetime", "datetime field to bucket on")
	analyticsCmd.Flags().Bool("group-by-source", false, "split each bucket by source code")
	analyticsCmd.Flags().Int("top", 10, "number of source groups to keep when grouping")
	analyticsCmd.Flags().Bool("json", false, "output buckets as JSON")
	analyticsCmd.Flags().Duration("poll-interval", 0, "wait between job status checks (default 20s)")

	rootCmd.AddCommand(analyticsCmd)
}

func runAnalytics(cmd *cobra.Command, args []string) error {
	q, err := buildQuery(cmd)
	if err != nil {
		return err
	}

	frequency, _ := cmd.Flags().GetString("frequency")
	q.Frequency = snapshot.Frequency(frequency)
	q.DateField, _ = cmd.Flags().GetString("date-field")
	q.GroupBySourceCode, _ = cmd.Flags().GetBool("group-by-source")
	q.Top, _ = cmd.Flags().GetInt("top")

	cfg, err := snapshotConfig(cmd)
	if err != nil {
		return err
	}
	client := snapshot.NewClient(newHTTPClient(cfg.APIConfig), cfg)

	ctx := context.Background()
	job, err := client.SubmitAnalytics(ctx, q)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "submitted analytics job %s\n", job.ShortID)

	results, err := client.Wait(ctx, job, os.Stderr)
	recordJob(ctx, job, q.Where, 0)
	if err != nil {
		return err
	}

	asJSON, _ := cmd.Flags().GetBool("json")
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results.Analytics)
	}

	if q.GroupBySourceCode {
		fmt.Fprintf(os.Stdout, "%-12s  %-12s  %s\n", "BUCKET", "SOURCE", "COUNT")
		for _, b := range results.Analytics {
			fmt.Fprintf(os.Stdout, "%-12s  %-12s  %d\n", b.PublicationDatetime, b.SourceCode, b.Count)
		}
	} else {
		fmt.Fprintf(os.Stdout, "%-12s  %s\n", "BUCKET", "COUNT")
		for _, b := range results.Analytics {
			fmt.Fprintf(os.Stdout, "%-12s  %d\n", b.PublicationDatetime, b.Count)
		}
	}
	fmt.Fprintf(os.Stdout, "\n%d buckets\n", len(results.Analytics))
	return nil
}
