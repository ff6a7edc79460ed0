// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package auth

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

const testKey = "abcd1234abcd1234abcd1234abcd1234"

func TestResolveUserKey_Explicit(t *testing.T) {
	key, err := ResolveUserKey(testKey, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, testKey, key)
}

func TestResolveUserKey_Env(t *testing.T) {
	t.Setenv(EnvUserKey, testKey)

	key, err := ResolveUserKey("", t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, testKey, key)
}

func TestResolveUserKey_ExplicitWinsOverEnv(t *testing.T) {
	other := strings.Repeat("z", 32)
	t.Setenv(EnvUserKey, other)

	key, err := ResolveUserKey(testKey, t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, testKey, key)
}

func TestResolveUserKey_SecretsFile(t *testing.T) {
	t.Setenv(EnvUserKey, "")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, SecretFile), []byte(testKey+"\n"), 0o644))

	key, err := ResolveUserKey("", dir)
	require.NoError(t, err)
	assert.Equal(t, testKey, key)
}

func TestResolveUserKey_Missing(t *testing.T) {
	t.Setenv(EnvUserKey, "")

	_, err := ResolveUserKey("", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no user key")
}

func TestResolveUserKey_BadLength(t *testing.T) {
	_, err := ResolveUserKey("tooshort", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "32 characters")
}

func TestLoadSecrets_MissingDirIsEmpty(t *testing.T) {
	s, err := LoadSecrets(filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, s)
}

func TestLoadSecrets_ReadsTrimmedValues(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bulknews-userkey"), []byte("  value \n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".hidden"), []byte("skip"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty"), []byte("   \n"), 0o644))

	s, err := LoadSecrets(dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"bulknews-userkey": "value"}, s)
}

func TestStatistics(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/alpha/accounts/"+testKey, r.URL.Path)
		assert.Equal(t, testKey, r.Header.Get("user-key"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data":{"id":"` + testKey + `","attributes":{
			"name":"Test Account","account_type":"account_with_limits",
			"max_allowed_extracts":100,"cnt_extractions":38,
			"max_allowed_concurrent_extracts":2}}}`))
	}))
	defer ts.Close()

	cfg := types.APIConfig{Host: ts.URL, UserKey: testKey}
	stats, err := Statistics(context.Background(), ts.Client(), cfg)
	require.NoError(t, err)

	assert.Equal(t, "Test Account", stats.Name)
	assert.Equal(t, 100, stats.MaxAllowedExtracts)
	assert.Equal(t, 38, stats.CurrentlyUsedExtracts)
	assert.Equal(t, 62, stats.RemainingExtracts)
	assert.Equal(t, 2, stats.MaxAllowedConcurrentExtracts)
}

func TestStatistics_InvalidKey(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer ts.Close()

	cfg := types.APIConfig{Host: ts.URL, UserKey: testKey}
	_, err := Statistics(context.Background(), ts.Client(), cfg)
	assert.ErrorIs(t, err, ErrInvalidUserKey)
}
