// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pdiddy/bulknews/internal/auth"
	"github.com/pdiddy/bulknews/internal/httputil"
	"github.com/pdiddy/bulknews/pkg/types"
)

// API paths for the snapshot job families.
const (
	snapshotsBasePath   = "/alpha/extractions/documents"
	explainSuffix       = "/_explain"
	analyticsBasePath   = "/alpha/analytics"
	extractionsBasePath = "/alpha/extractions"

	extractionIDPrefix = "dj-synhub-extraction"
)

// Update job delta types.
const (
	UpdateAdditions    = "additions"
	UpdateReplacements = "replacements"
	UpdateDeletes      = "deletes"
)

// ErrJobNotFound is returned when the API reports no job for the polled id.
var ErrJobNotFound = errors.New("job not found")

// DefaultPollInterval is the wait between job status checks when the
// config does not set one.
const DefaultPollInterval = 20 * time.Second

// Client submits snapshot jobs and tracks them to completion.
type Client struct {
	httpClient *http.Client
	cfg        types.SnapshotConfig
}

// NewClient returns a snapshot job client for the configured API.
func NewClient(httpClient *http.Client, cfg types.SnapshotConfig) *Client {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	return &Client{httpClient: httpClient, cfg: cfg}
}

// Results holds the decoded outcome of a finished job. Only the member
// matching the job kind is set.
type Results struct {
	Explain    *types.ExplainResult
	Analytics  []types.AnalyticsBucket
	Extraction *types.ExtractionResult
}

// Wire envelope shared by submit and status responses.
type jobEnvelope struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			CurrentState types.JobState `json:"current_state"`
			Counts       int64          `json:"counts"`
			Format       string         `json:"format"`
			Files        []struct {
				URI string `json:"uri"`
			} `json:"files"`
			Results []types.AnalyticsBucket `json:"results"`
		} `json:"attributes"`
		Links struct {
			Self string `json:"self"`
		} `json:"links"`
	} `json:"data"`
}

// SubmitExplain submits an explain job counting the documents the query
// matches.
func (c *Client) SubmitExplain(ctx context.Context, q Query) (*types.Job, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	endpoint := c.cfg.Host + snapshotsBasePath + explainSuffix
	return c.submit(ctx, types.KindExplain, endpoint, q.ExplainPayload())
}

// SubmitAnalytics submits an analytics job bucketing document counts over
// time.
func (c *Client) SubmitAnalytics(ctx context.Context, q Query) (*types.Job, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	endpoint := c.cfg.Host + analyticsBasePath
	return c.submit(ctx, types.KindAnalytics, endpoint, q.AnalyticsPayload())
}

// SubmitExtraction submits an extraction job producing downloadable
// archive files.
func (c *Client) SubmitExtraction(ctx context.Context, q Query) (*types.Job, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	endpoint := c.cfg.Host + snapshotsBasePath
	return c.submit(ctx, types.KindExtraction, endpoint, q.ExtractionPayload())
}

// SubmitUpdate submits an update job producing the delta files of the
// given type for an existing snapshot.
func (c *Client) SubmitUpdate(ctx context.Context, snapshotID, updateType string) (*types.Job, error) {
	if snapshotID == "" {
		return nil, fmt.Errorf("snapshot id is required for an update job")
	}
	switch updateType {
	case UpdateAdditions, UpdateReplacements, UpdateDeletes:
	default:
		return nil, fmt.Errorf("unsupported update type %q (use additions, replacements or deletes)", updateType)
	}
	endpoint := fmt.Sprintf("%s%s/%s-%s-%s/%s",
		c.cfg.Host, extractionsBasePath, extractionIDPrefix, c.cfg.UserKey, snapshotID, updateType)
	return c.submit(ctx, types.KindUpdate, endpoint, nil)
}

// OpenExtraction rebuilds the job handle for an extraction that was
// submitted earlier, from its short snapshot id.
func (c *Client) OpenExtraction(snapshotID string) *types.Job {
	full := fmt.Sprintf("%s-%s-%s", extractionIDPrefix, c.cfg.UserKey, snapshotID)
	return &types.Job{
		ID:      full,
		ShortID: snapshotID,
		Kind:    types.KindExtraction,
		Link:    c.cfg.Host + snapshotsBasePath + "/" + full,
	}
}

// OpenUpdate rebuilds the job handle for an update job from its short id
// ("{snapshotID}-{type}-{datetime}").
func (c *Client) OpenUpdate(updateID string) (*types.Job, error) {
	if _, _, err := ParseUpdateID(updateID); err != nil {
		return nil, err
	}
	full := fmt.Sprintf("%s-%s-%s", extractionIDPrefix, c.cfg.UserKey, updateID)
	return &types.Job{
		ID:      full,
		ShortID: updateID,
		Kind:    types.KindUpdate,
		Link:    c.cfg.Host + snapshotsBasePath + "/" + full,
	}, nil
}

// ParseUpdateID splits a short update id into its snapshot id and update
// type.
func ParseUpdateID(updateID string) (snapshotID, updateType string, err error) {
	parts := strings.Split(updateID, "-")
	if len(parts) < 3 {
		return "", "", fmt.Errorf("malformed update id %q (want snapshotid-type-datetime)", updateID)
	}
	return parts[0], parts[1], nil
}

// submit posts the payload and builds the job handle from the 201 response.
func (c *Client) submit(ctx context.Context, kind types.JobKind, endpoint string, payload map[string]any) (*types.Job, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s payload: %w", kind, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, 0)
	if err != nil {
		return nil, fmt.Errorf("%s submit: %w", kind, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
	case http.StatusForbidden:
		return nil, auth.ErrInvalidUserKey
	default:
		text, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s submit returned HTTP %d: %s", kind, resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var env jobEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("parsing %s submit response: %w", kind, err)
	}

	job := &types.Job{
		ID:          env.Data.ID,
		ShortID:     shortID(kind, env.Data.ID),
		Kind:        kind,
		State:       env.Data.Attributes.CurrentState,
		Link:        env.Data.Links.Self,
		SubmittedAt: time.Now().UTC(),
	}
	if job.Link == "" {
		job.Link = c.selfLink(kind, job.ID)
	}
	return job, nil
}

// Fetch polls the job once, updating its state in place. When the job is
// done the decoded results are returned.
func (c *Client) Fetch(ctx context.Context, job *types.Job) (*Results, error) {
	if job.Link == "" {
		return nil, fmt.Errorf("job %s has no self link", job.ID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.Link, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, 0)
	if err != nil {
		return nil, fmt.Errorf("%s status: %w", job.Kind, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, job.ID)
	case http.StatusForbidden:
		return nil, auth.ErrInvalidUserKey
	default:
		text, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s status returned HTTP %d: %s", job.Kind, resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var env jobEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("parsing %s status response: %w", job.Kind, err)
	}

	job.State = env.Data.Attributes.CurrentState
	if job.State != types.JobStateDone {
		return nil, nil
	}
	job.CompletedAt = time.Now().UTC()

	results := &Results{}
	switch job.Kind {
	case types.KindExplain:
		results.Explain = &types.ExplainResult{DocumentVolume: env.Data.Attributes.Counts}
	case types.KindAnalytics:
		results.Analytics = env.Data.Attributes.Results
	case types.KindExtraction, types.KindUpdate:
		ext := &types.ExtractionResult{Format: env.Data.Attributes.Format}
		for _, f := range env.Data.Attributes.Files {
			ext.Files = append(ext.Files, f.URI)
		}
		results.Extraction = ext
	}
	return results, nil
}

// Wait polls the job until it leaves the active states, sleeping the
// configured interval between checks. It returns the results on
// JOB_STATE_DONE and an error on JOB_STATE_FAILED or ctx cancellation.
func (c *Client) Wait(ctx context.Context, job *types.Job, w io.Writer) (*Results, error) {
	for {
		results, err := c.Fetch(ctx, job)
		if err != nil {
			return nil, err
		}
		if job.State == types.JobStateDone {
			return results, nil
		}
		if job.State == types.JobStateFailed {
			return nil, fmt.Errorf("%s job %s failed server-side", job.Kind, job.ID)
		}
		if !job.State.Active() {
			return nil, fmt.Errorf("%s job %s entered unexpected state %q", job.Kind, job.ID, job.State)
		}

		fmt.Fprintf(w, "job %s: %s, checking again in %v\n", job.ShortID, job.State, c.cfg.PollInterval)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.cfg.PollInterval):
		}
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	for k, v := range auth.Headers(c.cfg.UserKey) {
		req.Header.Set(k, v)
	}
}

// selfLink rebuilds the status URL when the submit response omits links.
func (c *Client) selfLink(kind types.JobKind, id string) string {
	if kind == types.KindAnalytics {
		return c.cfg.Host + analyticsBasePath + "/" + id
	}
	return c.cfg.Host + snapshotsBasePath + "/" + id
}

// shortID extracts the trailing short id from a full job id. Extraction
// ids end in one token, update ids in three ({snapshot}-{type}-{datetime}).
func shortID(kind types.JobKind, fullID string) string {
	parts := strings.Split(fullID, "-")
	if kind == types.KindUpdate && len(parts) >= 3 {
		return strings.Join(parts[len(parts)-3:], "-")
	}
	return parts[len(parts)-1]
}
