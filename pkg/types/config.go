// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// HTTPConfig holds shared HTTP settings used by every component that talks
// to the archive API.
type HTTPConfig struct {
	// Timeout is the HTTP request timeout.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// UserAgent is the User-Agent header sent with HTTP requests
	// (e.g. "bulknews/0.1").
	UserAgent string `json:"user_agent" yaml:"user_agent"`
}

// APIConfig holds the archive API location and credentials.
type APIConfig struct {
	HTTPConfig `yaml:",inline"`

	// Host is the API base URL (default "https://api.dowjones.com").
	Host string `json:"host" yaml:"host"`

	// UserKey is the 32-character account key. Resolved from the flag,
	// the BULKNEWS_USERKEY environment variable, or .secrets/.
	UserKey string `json:"user_key,omitempty" yaml:"user_key,omitempty"`
}

// SnapshotConfig holds settings for snapshot job submission and downloads.
type SnapshotConfig struct {
	APIConfig `yaml:",inline"`

	// PollInterval is the wait between job status checks (default 20s).
	PollInterval time.Duration `json:"poll_interval" yaml:"poll_interval"`

	// DownloadDelay is the delay between consecutive file downloads (default 1s).
	DownloadDelay time.Duration `json:"download_delay" yaml:"download_delay"`

	// DownloadDir is the base directory for extraction downloads. Each job
	// gets a subdirectory named after its short id.
	DownloadDir string `json:"download_dir" yaml:"download_dir"`
}

// StreamConfig holds settings for stream management and consumption.
type StreamConfig struct {
	APIConfig `yaml:",inline"`

	// QuotaCheckInterval is the wait between stream status checks while
	// consuming (default 5s).
	QuotaCheckInterval time.Duration `json:"quota_check_interval" yaml:"quota_check_interval"`

	// BatchSize is the number of messages requested per pull (default 10).
	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

// LedgerConfig holds settings for the local job ledger.
type LedgerConfig struct {
	// Dir is the directory holding the ledger database (contains jobs.db).
	Dir string `json:"dir" yaml:"dir"`

	// MaxResults is the default maximum number of listed jobs (default 20).
	MaxResults int `json:"max_results" yaml:"max_results"`
}
