// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package auth resolves the archive API user key and queries account
// limits. Keys come from an explicit value, the BULKNEWS_USERKEY
// environment variable, or a plain-text file in the secrets directory.
package auth

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	// EnvUserKey is the environment variable consulted when no explicit
	// key is given.
	EnvUserKey = "BULKNEWS_USERKEY"

	// SecretFile is the file name looked up inside the secrets directory.
	SecretFile = "bulknews-userkey"

	userKeyLen = 32
)

// ResolveUserKey returns the user key from, in order: the explicit value,
// the BULKNEWS_USERKEY environment variable, or secretsDir/bulknews-userkey.
// The resolved key must be exactly 32 characters.
func ResolveUserKey(explicit, secretsDir string) (string, error) {
	key := strings.TrimSpace(explicit)
	if key == "" {
		key = strings.TrimSpace(os.Getenv(EnvUserKey))
	}
	if key == "" {
		data, err := os.ReadFile(filepath.Join(secretsDir, SecretFile))
		if err == nil {
			key = strings.TrimSpace(string(data))
		} else if !os.IsNotExist(err) {
			return "", fmt.Errorf("reading %s: %w", SecretFile, err)
		}
	}

	if key == "" {
		return "", fmt.Errorf("no user key: set --user-key, %s, or %s", EnvUserKey, filepath.Join(secretsDir, SecretFile))
	}
	if len(key) != userKeyLen {
		return "", fmt.Errorf("user key must be %d characters, got %d", userKeyLen, len(key))
	}
	return key, nil
}

// Headers returns the authentication headers for API requests.
func Headers(userKey string) map[string]string {
	return map[string]string{"user-key": userKey}
}

// LoadSecrets reads all files in dir and returns a map of filename to
// trimmed contents. A missing directory or missing files are not errors;
// LoadSecrets returns an empty map. Unreadable files produce a warning on
// stderr but do not abort.
func LoadSecrets(dir string) (map[string]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading secrets directory %s: %w", dir, err)
	}

	secrets := make(map[string]string)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			fmt.Fprintf(os.Stderr, "warning: could not read secret %s: %v\n", name, err)
			continue
		}

		value := strings.TrimSpace(string(data))
		if value != "" {
			secrets[name] = value
		}
	}

	return secrets, nil
}
