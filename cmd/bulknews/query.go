// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/bulknews/internal/ledger"
	"github.com/pdiddy/bulknews/internal/snapshot"
	"github.com/pdiddy/bulknews/pkg/types"
)

// addQueryFlags registers the selection flags shared by every command
// that submits a query.
func addQueryFlags(cmd *cobra.Command) {
	cmd.Flags().String("where", "", "SQL-like selection clause (e.g. \"language_code = 'en'\")")
	cmd.Flags().StringArray("include", nil, "taxonomy filter to include, as dimension=code,code (repeatable)")
	cmd.Flags().StringArray("exclude", nil, "taxonomy filter to exclude, as dimension=code,code (repeatable)")
}

// buildQuery assembles a snapshot query from the selection flags.
func buildQuery(cmd *cobra.Command) (snapshot.Query, error) {
	where, _ := cmd.Flags().GetString("where")
	q := snapshot.NewQuery(where)

	includes, _ := cmd.Flags().GetStringArray("include")
	excludes, _ := cmd.Flags().GetStringArray("exclude")

	var err error
	if q.Includes, err = parseCodeFilters(includes); err != nil {
		return snapshot.Query{}, fmt.Errorf("--include: %w", err)
	}
	if q.Excludes, err = parseCodeFilters(excludes); err != nil {
		return snapshot.Query{}, fmt.Errorf("--exclude: %w", err)
	}
	return q, nil
}

// parseCodeFilters turns "dimension=code,code" pairs into a filter map.
func parseCodeFilters(pairs []string) (map[string][]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	filters := make(map[string][]string)
	for _, pair := range pairs {
		dimension, codes, ok := strings.Cut(pair, "=")
		if !ok || dimension == "" || codes == "" {
			return nil, fmt.Errorf("want dimension=code,code, got %q", pair)
		}
		for _, code := range strings.Split(codes, ",") {
			code = strings.TrimSpace(code)
			if code != "" {
				filters[dimension] = append(filters[dimension], code)
			}
		}
	}
	return filters, nil
}

// snapshotConfig builds the snapshot client configuration from the
// shared API flags plus the command's own polling and download flags.
func snapshotConfig(cmd *cobra.Command) (types.SnapshotConfig, error) {
	api, err := apiConfig(cmd)
	if err != nil {
		return types.SnapshotConfig{}, err
	}

	cfg := types.SnapshotConfig{APIConfig: api}
	if f := cmd.Flags().Lookup("poll-interval"); f != nil {
		cfg.PollInterval, _ = cmd.Flags().GetDuration("poll-interval")
	}
	if f := cmd.Flags().Lookup("delay"); f != nil {
		cfg.DownloadDelay, _ = cmd.Flags().GetDuration("delay")
	}
	if f := cmd.Flags().Lookup("download-dir"); f != nil {
		cfg.DownloadDir, _ = cmd.Flags().GetString("download-dir")
	}
	return cfg, nil
}

// recordJob writes the job to the local ledger. Ledger failures only
// warn: the job itself already succeeded or failed on its own terms.
func recordJob(ctx context.Context, job *types.Job, whereClause string, fileCount int) {
	dir := viper.GetString("ledger_dir")
	if dir == "" {
		dir = "ledger"
	}

	l, err := ledger.Open(types.LedgerConfig{Dir: dir, MaxResults: viper.GetInt("max_results")})
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: ledger unavailable: %v\n", err)
		return
	}
	defer l.Close()

	if err := l.Record(ctx, *job, whereClause, fileCount); err != nil {
		fmt.Fprintf(os.Stderr, "warning: recording job: %v\n", err)
	}
}
