// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package snapshot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/bulknews/pkg/types"
)

const manifestFile = "manifest.yaml"

// BatchResult holds the outcome of one download run.
type BatchResult struct {
	Downloaded int
	Skipped    int
	Failed     int
	Dir        string
}

// Total returns the total number of files processed.
func (r BatchResult) Total() int {
	return r.Downloaded + r.Skipped + r.Failed
}

// HasFailures reports whether any files failed.
func (r BatchResult) HasFailures() bool {
	return r.Failed > 0
}

// Download fetches every file of a finished extraction or update job into
// dir/{shortID}/. Files already present are skipped. It continues after
// individual failures, applies the configured delay between downloads,
// and writes a YAML manifest describing the run next to the files.
func (c *Client) Download(ctx context.Context, job *types.Job, ext *types.ExtractionResult, dir string, w io.Writer) (BatchResult, error) {
	if ext == nil || len(ext.Files) == 0 {
		return BatchResult{}, fmt.Errorf("job %s has no files to download", job.ID)
	}
	if dir == "" {
		dir = c.cfg.DownloadDir
	}

	jobDir := filepath.Join(dir, job.ShortID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return BatchResult{}, fmt.Errorf("creating directory %s: %w", jobDir, err)
	}

	manifest := types.DownloadManifest{
		RunID:     uuid.NewString(),
		JobID:     job.ID,
		Kind:      job.Kind,
		Format:    ext.Format,
		StartedAt: time.Now().UTC(),
	}

	result := BatchResult{Dir: jobDir}
	for i, uri := range ext.Files {
		if i > 0 && c.cfg.DownloadDelay > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(c.cfg.DownloadDelay):
			}
		}

		name, err := fileName(uri)
		if err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", uri, err)
			result.Failed++
			manifest.Files = append(manifest.Files, types.ManifestFile{URI: uri, Status: "failed"})
			continue
		}
		destPath := filepath.Join(jobDir, name)

		if _, err := os.Stat(destPath); err == nil {
			fmt.Fprintf(w, "skipped: %s (already exists)\n", name)
			result.Skipped++
			manifest.Files = append(manifest.Files, types.ManifestFile{URI: uri, Path: destPath, Status: "skipped"})
			continue
		}

		fmt.Fprintf(w, "downloading: %s\n", name)
		if err := c.downloadFile(ctx, uri, destPath); err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", name, err)
			result.Failed++
			manifest.Files = append(manifest.Files, types.ManifestFile{URI: uri, Status: "failed"})
			continue
		}
		result.Downloaded++
		manifest.Files = append(manifest.Files, types.ManifestFile{URI: uri, Path: destPath, Status: "downloaded"})
	}

	manifest.FinishedAt = time.Now().UTC()
	if err := writeManifest(manifest, filepath.Join(jobDir, manifestFile)); err != nil {
		return result, fmt.Errorf("writing manifest: %w", err)
	}

	fmt.Fprintf(w, "\nDownload summary: %d downloaded, %d skipped, %d failed (total: %d)\n",
		result.Downloaded, result.Skipped, result.Failed, result.Total())
	return result, nil
}

// downloadFile fetches uri to destPath using a temporary file so that a
// partial download never leaves a destination file behind.
func (c *Client) downloadFile(ctx context.Context, uri, destPath string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("HTTP %d from %s", resp.StatusCode, uri)
	}

	tmpFile, err := os.CreateTemp(filepath.Dir(destPath), ".download-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	_, copyErr := io.Copy(tmpFile, resp.Body)
	closeErr := tmpFile.Close()
	if copyErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("writing download: %w", copyErr)
	}
	if closeErr != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("closing temp file: %w", closeErr)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// fileName derives the local file name from the download URI.
func fileName(uri string) (string, error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", fmt.Errorf("malformed file uri: %w", err)
	}
	name := filepath.Base(u.Path)
	if name == "" || name == "." || name == "/" {
		return "", fmt.Errorf("file uri %q has no file name", uri)
	}
	return name, nil
}

func writeManifest(m types.DownloadManifest, path string) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return fmt.Errorf("marshaling manifest: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// ReadManifest loads the manifest of an earlier download run.
func ReadManifest(dir string) (types.DownloadManifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, manifestFile))
	if err != nil {
		return types.DownloadManifest{}, err
	}
	var m types.DownloadManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return types.DownloadManifest{}, fmt.Errorf("parsing manifest: %w", err)
	}
	return m, nil
}
