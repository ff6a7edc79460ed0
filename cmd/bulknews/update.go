// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/bulknews/internal/snapshot"
	"github.com/pdiddy/bulknews/pkg/types"
)

var updateCmd = &cobra.Command{
	Use:   "update [additions|replacements|deletes] [snapshot-id]",
	Short: "Refresh a finished extraction with archive changes",
	Long: `Update submits a delta job against a finished extraction: additions ships
documents that entered the archive since the extraction ran, replacements
ships corrected versions, and deletes ships retraction notices. With
--update-id it reopens a finished update job instead of submitting.`,
	RunE: runUpdate,
}

func init() {
	updateCmd.Flags().String("update-id", "", "reopen a finished update job by its full id instead of submitting")
	updateCmd.Flags().Bool("no-download", false, "stop after the job finishes, without downloading files")
	updateCmd.Flags().String("download-dir", "downloads", "base directory for downloaded files")
	updateCmd.Flags().Duration("delay", 0, "delay between consecutive file downloads (default 1s)")
	updateCmd.Flags().Duration("poll-interval", 0, "wait between job status checks (default 20s)")

	rootCmd.AddCommand(updateCmd)
}

func runUpdate(cmd *cobra.Command, args []string) error {
	cfg, err := snapshotConfig(cmd)
	if err != nil {
		return err
	}
	client := snapshot.NewClient(newHTTPClient(cfg.APIConfig), cfg)

	ctx := context.Background()

	var job *types.Job

	updateID, _ := cmd.Flags().GetString("update-id")
	switch {
	case updateID != "" && len(args) > 0:
		return fmt.Errorf("--update-id reopens an existing update and cannot be combined with a type and snapshot id")
	case updateID != "":
		job, err = client.OpenUpdate(updateID)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "reopening update %s\n", job.ShortID)
	case len(args) == 2:
		updateType, snapshotID := args[0], args[1]
		switch updateType {
		case snapshot.UpdateAdditions, snapshot.UpdateReplacements, snapshot.UpdateDeletes:
		default:
			return fmt.Errorf("update type must be additions, replacements, or deletes, got %q", updateType)
		}
		job, err = client.SubmitUpdate(ctx, snapshotID, updateType)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "submitted %s update %s\n", updateType, job.ShortID)
	default:
		return fmt.Errorf("provide an update type and a snapshot id, or --update-id")
	}

	results, err := client.Wait(ctx, job, os.Stderr)
	if err != nil {
		recordJob(ctx, job, "", 0)
		return err
	}
	fmt.Fprintf(os.Stderr, "job done: %d file(s)\n", len(results.Extraction.Files))

	noDownload, _ := cmd.Flags().GetBool("no-download")
	if noDownload {
		recordJob(ctx, job, "", len(results.Extraction.Files))
		for _, uri := range results.Extraction.Files {
			fmt.Fprintln(os.Stdout, uri)
		}
		return nil
	}

	batch, err := client.Download(ctx, job, results.Extraction, cfg.DownloadDir, os.Stdout)
	recordJob(ctx, job, "", len(results.Extraction.Files))
	if err != nil {
		return err
	}
	if batch.HasFailures() {
		return fmt.Errorf("%d file(s) failed to download", batch.Failed)
	}
	fmt.Fprintf(os.Stdout, "\ndownloaded %d, skipped %d -> %s\n", batch.Downloaded, batch.Skipped, batch.Dir)
	return nil
}
