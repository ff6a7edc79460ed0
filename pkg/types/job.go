// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

import "time"

// JobState is the server-side state of an asynchronous job.
type JobState string

const (
	JobStateCreated    JobState = "JOB_CREATED"
	JobStateQueued     JobState = "JOB_QUEUED"
	JobStatePending    JobState = "JOB_STATE_PENDING"
	JobStateRunning    JobState = "JOB_STATE_RUNNING"
	JobStateValidating JobState = "JOB_VALIDATING"
	JobStateDone       JobState = "JOB_STATE_DONE"
	JobStateFailed     JobState = "JOB_STATE_FAILED"
)

// Active reports whether the job is still being processed server-side.
func (s JobState) Active() bool {
	switch s {
	case JobStateCreated, JobStateQueued, JobStatePending, JobStateRunning, JobStateValidating:
		return true
	}
	return false
}

// JobKind identifies the snapshot job family.
type JobKind string

const (
	KindExplain    JobKind = "explain"
	KindAnalytics  JobKind = "analytics"
	KindExtraction JobKind = "extraction"
	KindUpdate     JobKind = "update"
)

// Job holds the state of one submitted snapshot job.
type Job struct {
	// ID is the full server-assigned job id
	// (e.g. "dj-synhub-extraction-{userkey}-{shortid}").
	ID string `json:"id" yaml:"id"`

	// ShortID is the trailing token of the id, used in folder names and
	// when reopening a snapshot.
	ShortID string `json:"short_id" yaml:"short_id"`

	Kind  JobKind  `json:"kind" yaml:"kind"`
	State JobState `json:"state" yaml:"state"`

	// Link is the self URL polled for status and results.
	Link string `json:"link,omitempty" yaml:"link,omitempty"`

	SubmittedAt time.Time `json:"submitted_at,omitempty" yaml:"submitted_at,omitempty"`
	CompletedAt time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`
}

// ExplainResult is the outcome of an explain job: the number of archive
// documents the query matches.
type ExplainResult struct {
	DocumentVolume int64 `json:"document_volume" yaml:"document_volume"`
}

// AnalyticsBucket is one row of an analytics result: a time bucket, an
// optional source code when grouping is on, and the document count.
type AnalyticsBucket struct {
	PublicationDatetime string `json:"publication_datetime" yaml:"publication_datetime"`
	SourceCode          string `json:"source_code,omitempty" yaml:"source_code,omitempty"`
	Count               int64  `json:"count" yaml:"count"`
}

// ExtractionResult is the outcome of an extraction or update job.
type ExtractionResult struct {
	// Format is the delivery format of the files (avro, csv or json).
	Format string `json:"format" yaml:"format"`

	// Files lists the download URIs of the produced archive files.
	Files []string `json:"files" yaml:"files"`
}

// AccountStatistics reports the account's usage against its limits.
type AccountStatistics struct {
	Name                         string `json:"name" yaml:"name"`
	AccountType                  string `json:"account_type" yaml:"account_type"`
	MaxAllowedExtracts           int    `json:"max_allowed_extracts" yaml:"max_allowed_extracts"`
	CurrentlyUsedExtracts        int    `json:"cnt_extractions" yaml:"cnt_extractions"`
	RemainingExtracts            int    `json:"remaining_extractions" yaml:"remaining_extractions"`
	MaxAllowedConcurrentExtracts int    `json:"max_allowed_concurrent_extracts" yaml:"max_allowed_concurrent_extracts"`
}

// DownloadManifest is the YAML sidecar written next to downloaded files.
type DownloadManifest struct {
	// RunID identifies one download run.
	RunID string `yaml:"run_id"`

	JobID      string         `yaml:"job_id"`
	Kind       JobKind        `yaml:"kind"`
	Format     string         `yaml:"format"`
	Files      []ManifestFile `yaml:"files"`
	StartedAt  time.Time      `yaml:"started_at"`
	FinishedAt time.Time      `yaml:"finished_at"`
}

// ManifestFile records the outcome for one file in a download run.
type ManifestFile struct {
	URI    string `yaml:"uri"`
	Path   string `yaml:"path"`
	Status string `yaml:"status"` // downloaded, skipped or failed
}
