// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package stream manages continuous article delivery: stream and
// subscription lifecycle over the REST API, and message consumption over
// the Pub/Sub transport the API hands out credentials for.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/bulknews/internal/auth"
	"github.com/pdiddy/bulknews/internal/httputil"
	"github.com/pdiddy/bulknews/internal/snapshot"
	"github.com/pdiddy/bulknews/pkg/types"
)

const (
	streamsBasePath   = "/alpha/streams"
	snapshotsBasePath = "/alpha/extractions/documents"
)

// DocCountExceeded is the stream status reported once the account's
// document quota is used up.
const DocCountExceeded = types.JobState("DOC_COUNT_EXCEEDED")

// ErrStreamNotFound is returned when the API reports no stream for the id.
var ErrStreamNotFound = errors.New("stream not found")

// Stream is the server-side state of a stream and its subscriptions.
type Stream struct {
	ID            string
	JobStatus     types.JobState
	Subscriptions []Subscription
}

// Subscription identifies one delivery channel of a stream.
type Subscription struct {
	ID   string
	Type string
}

// Client manages streams against the configured API.
type Client struct {
	httpClient *http.Client
	cfg        types.StreamConfig
}

// NewClient returns a stream client for the configured API.
func NewClient(httpClient *http.Client, cfg types.StreamConfig) *Client {
	return &Client{httpClient: httpClient, cfg: cfg}
}

// Wire envelope for stream responses.
type streamEnvelope struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			JobStatus types.JobState `json:"job_status"`
		} `json:"attributes"`
		Relationships struct {
			Subscriptions struct {
				Data []struct {
					ID   string `json:"id"`
					Type string `json:"type"`
				} `json:"data"`
			} `json:"subscriptions"`
		} `json:"relationships"`
	} `json:"data"`
}

func (e streamEnvelope) toStream() *Stream {
	s := &Stream{
		ID:        e.Data.ID,
		JobStatus: e.Data.Attributes.JobStatus,
	}
	for _, sub := range e.Data.Relationships.Subscriptions.Data {
		s.Subscriptions = append(s.Subscriptions, Subscription{ID: sub.ID, Type: sub.Type})
	}
	return s
}

// CreateFromQuery creates a stream delivering articles that match the
// query.
func (c *Client) CreateFromQuery(ctx context.Context, q snapshot.Query) (*Stream, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return c.create(ctx, c.cfg.Host+streamsBasePath, q.StreamPayload())
}

// CreateFromSnapshot creates a stream that continues an existing
// snapshot: it delivers articles matching the snapshot's query from the
// snapshot point forward.
func (c *Client) CreateFromSnapshot(ctx context.Context, snapshotID string) (*Stream, error) {
	if snapshotID == "" {
		return nil, fmt.Errorf("snapshot id is required")
	}
	endpoint := c.cfg.Host + snapshotsBasePath + "/" + snapshotID + "/streams"
	return c.create(ctx, endpoint, nil)
}

func (c *Client) create(ctx context.Context, endpoint string, payload map[string]any) (*Stream, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling stream payload: %w", err)
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
		return nil, fmt.Errorf("stream create: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
	case http.StatusForbidden:
		return nil, auth.ErrInvalidUserKey
	default:
		text, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("stream create returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var env streamEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("parsing stream response: %w", err)
	}
	return env.toStream(), nil
}

// Get fetches the current state of a stream.
func (c *Client) Get(ctx context.Context, streamID string) (*Stream, error) {
	if streamID == "" {
		return nil, fmt.Errorf("stream id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Host+streamsBasePath+"/"+streamID, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, 0)
	if err != nil {
		return nil, fmt.Errorf("stream info: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrStreamNotFound, streamID)
	default:
		text, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("stream info returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var env streamEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("parsing stream response: %w", err)
	}
	return env.toStream(), nil
}

// Delete cancels a stream. The returned state is expected to report the
// cancellation.
func (c *Client) Delete(ctx context.Context, streamID string) (*Stream, error) {
	if streamID == "" {
		return nil, fmt.Errorf("stream id is required")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.cfg.Host+streamsBasePath+"/"+streamID, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, 0)
	if err != nil {
		return nil, fmt.Errorf("stream delete: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrStreamNotFound, streamID)
	default:
		text, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("stream delete returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var env streamEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("parsing stream response: %w", err)
	}
	return env.toStream(), nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	for k, v := range auth.Headers(c.cfg.UserKey) {
		req.Header.Set(k, v)
	}
}

// StreamIDOfSubscription derives the owning stream id from a subscription
// id, which appends two tokens (e.g. "-filtered-abc123") to it.
func StreamIDOfSubscription(subscriptionID string) (string, error) {
	parts := strings.Split(subscriptionID, "-")
	if len(parts) <= 2 {
		return "", fmt.Errorf("malformed subscription id %q", subscriptionID)
	}
	return strings.Join(parts[:len(parts)-2], "-"), nil
}
