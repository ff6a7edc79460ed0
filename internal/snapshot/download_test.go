// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package snapshot

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/bulknews/pkg/types"
)

func TestDownload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testKey, r.Header.Get("user-key"))
		switch r.URL.Path {
		case "/files/part-000000000000.avro":
			w.Write([]byte("avro-part-0"))
		case "/files/part-000000000001.avro":
			w.Write([]byte("avro-part-1"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer ts.Close()

	dir := t.TempDir()
	c := testClient(ts.URL)
	job := &types.Job{ID: "dj-synhub-extraction-" + testKey + "-abc123", ShortID: "abc123", Kind: types.KindExtraction}
	ext := &types.ExtractionResult{
		Format: "avro",
		Files: []string{
			ts.URL + "/files/part-000000000000.avro",
			ts.URL + "/files/part-000000000001.avro",
		},
	}

	var out strings.Builder
	result, err := c.Download(context.Background(), job, ext, dir, &out)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Downloaded)
	assert.Equal(t, 0, result.Skipped)
	assert.Equal(t, 0, result.Failed)
	assert.Equal(t, filepath.Join(dir, "abc123"), result.Dir)

	data, err := os.ReadFile(filepath.Join(dir, "abc123", "part-000000000000.avro"))
	require.NoError(t, err)
	assert.Equal(t, "avro-part-0", string(data))

	// No temp files left behind.
	entries, err := os.ReadDir(result.Dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasPrefix(e.Name(), ".download-"), "stray temp file %s", e.Name())
	}

	manifest, err := ReadManifest(result.Dir)
	require.NoError(t, err)
	assert.NotEmpty(t, manifest.RunID)
	assert.Equal(t, job.ID, manifest.JobID)
	assert.Equal(t, "avro", manifest.Format)
	require.Len(t, manifest.Files, 2)
	assert.Equal(t, "downloaded", manifest.Files[0].Status)
}

func TestDownload_SkipsExistingAndContinuesAfterFailure(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/files/good.avro" {
			w.Write([]byte("fresh"))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer ts.Close()

	dir := t.TempDir()
	jobDir := filepath.Join(dir, "abc123")
	require.NoError(t, os.MkdirAll(jobDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(jobDir, "existing.avro"), []byte("old"), 0o644))

	c := testClient(ts.URL)
	job := &types.Job{ID: "full-id", ShortID: "abc123", Kind: types.KindExtraction}
	ext := &types.ExtractionResult{
		Format: "avro",
		Files: []string{
			ts.URL + "/files/existing.avro",
			ts.URL + "/files/broken.avro",
			ts.URL + "/files/good.avro",
		},
	}

	var out strings.Builder
	result, err := c.Download(context.Background(), job, ext, dir, &out)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Downloaded)
	assert.Equal(t, 1, result.Skipped)
	assert.Equal(t, 1, result.Failed)
	assert.True(t, result.HasFailures())
	assert.Equal(t, 3, result.Total())

	// The existing file was not overwritten.
	data, err := os.ReadFile(filepath.Join(jobDir, "existing.avro"))
	require.NoError(t, err)
	assert.Equal(t, "old", string(data))

	// The failed file left nothing behind.
	_, err = os.Stat(filepath.Join(jobDir, "broken.avro"))
	assert.True(t, os.IsNotExist(err))

	manifest, err := ReadManifest(jobDir)
	require.NoError(t, err)
	statuses := map[string]int{}
	for _, f := range manifest.Files {
		statuses[f.Status]++
	}
	assert.Equal(t, map[string]int{"downloaded": 1, "skipped": 1, "failed": 1}, statuses)

	assert.Contains(t, out.String(), "skipped: existing.avro")
	assert.Contains(t, out.String(), "1 downloaded, 1 skipped, 1 failed")
}

func TestDownload_NoFiles(t *testing.T) {
	c := testClient("http://example.invalid")
	job := &types.Job{ID: "x", ShortID: "x", Kind: types.KindExtraction}

	_, err := c.Download(context.Background(), job, &types.ExtractionResult{}, t.TempDir(), &strings.Builder{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no files")
}
