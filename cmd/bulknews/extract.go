// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bulknews/internal/snapshot"
	"github.com/pdiddy/bulknews/pkg/types"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract matching documents into downloadable archive files",
	Long: `Extract submits an extraction job, waits for it to finish, and downloads
the produced files into download-dir/[job-id]/ with a manifest. With
--snapshot-id it reopens a finished extraction instead of submitting a
new one, which does not consume extraction quota.`,
	RunE: runExtract,
}

func init() {
	addQueryFlags(extractCmd)
	extractCmd.Flags().String("format", "avro", "file format: avro, csv, or json")
	extractCmd.Flags().Int("limit", 0, "maximum number of documents (0 = no cap)")
	extractCmd.Flags().String("select", "", "document fields to keep (comma-separated)")
	extractCmd.Flags().String("snapshot-id", "", "reopen a finished extraction by short id instead of submitting")
	extractCmd.Flags().Bool("no-download", false, "stop after the job finishes, without downloading files")
	extractCmd.Flags().String("download-dir", "downloads", "base directory for downloaded files")
	extractCmd.Flags().Duration("delay", 0, "delay between consecutive file downloads (default 1s)")
	extractCmd.Flags().Duration("poll-interval", 0, "wait between job status checks (default 20s)")

	rootCmd.AddCommand(extractCmd)
}

func runExtract(cmd *cobra.Command, args []string) error {
	cfg, err := snapshotConfig(cmd)
	if err != nil {
		return err
	}
	client := snapshot.NewClient(newHTTPClient(cfg.APIConfig), cfg)

	ctx := context.Background()

	var job *types.Job
	whereClause := ""

	snapshotID, _ := cmd.Flags().GetString("snapshot-id")
	if snapshotID != "" {
		if where, _ := cmd.Flags().GetString("where"); where != "" {
			return fmt.Errorf("--snapshot-id reopens an existing extraction and cannot be combined with --where")
		}
		job = client.OpenExtraction(snapshotID)
		fmt.Fprintf(os.Stderr, "reopening extraction %s\n", job.ShortID)
	} else {
		q, err := buildQuery(cmd)
		if err != nil {
			return err
		}
		format, _ := cmd.Flags().GetString("format")
		q.Format = snapshot.FileFormat(format)
		q.Limit, _ = cmd.Flags().GetInt("limit")
		if fields, _ := cmd.Flags().GetString("select"); fields != "" {
			q.SelectFields = strings.Split(fields, ",")
		}
		whereClause = q.Where

		job, err = client.SubmitExtraction(ctx, q)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "submitted extraction job %s\n", job.ShortID)
	}

	results, err := client.Wait(ctx, job, os.Stderr)
	if err != nil {
		recordJob(ctx, job, whereClause, 0)
		return err
	}
	fmt.Fprintf(os.Stderr, "job done: %d file(s)\n", len(results.Extraction.Files))

	noDownload, _ := cmd.Flags().GetBool("no-download")
	if noDownload {
		recordJob(ctx, job, whereClause, len(results.Extraction.Files))
		for _, uri := range results.Extraction.Files {
			fmt.Fprintln(os.Stdout, uri)
		}
		return nil
	}

	batch, err := client.Download(ctx, job, results.Extraction, cfg.DownloadDir, os.Stdout)
	recordJob(ctx, job, whereClause, len(results.Extraction.Files))
	if err != nil {
		return err
	}
	if batch.HasFailures() {
		return fmt.Errorf("%d file(s) failed to download", batch.Failed)
	}
	fmt.Fprintf(os.Stdout, "\ndownloaded %d, skipped %d -> %s\n", batch.Downloaded, batch.Skipped, batch.Dir)
	return nil
}
