// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/bulknews/internal/auth"
	"github.com/pdiddy/bulknews/internal/httputil"
)

const credentialsPath = "/alpha/accounts/streaming-credentials"

// Credentials holds the short-lived service-account material the API
// issues for its message transport.
type Credentials struct {
	// ProjectID is the cloud project hosting the subscriptions.
	ProjectID string

	// JSON is the raw service-account key used to authenticate the
	// Pub/Sub client.
	JSON []byte
}

// FetchCredentials retrieves the streaming credentials for the account.
// The accounts endpoint wraps the service-account key as a JSON string
// inside the attributes.
func (c *Client) FetchCredentials(ctx context.Context) (*Credentials, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Host+credentialsPath, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, 0)
	if err != nil {
		return nil, fmt.Errorf("credentials request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		return nil, auth.ErrInvalidUserKey
	default:
		text, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("credentials endpoint returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}

	var env struct {
		Data struct {
			Attributes struct {
				StreamingCredentials string `json:"streaming_credentials"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("parsing credentials response: %w", err)
	}
	raw := env.Data.Attributes.StreamingCredentials
	if raw == "" {
		return nil, fmt.Errorf("credentials response carried no streaming credentials")
	}

	var key struct {
		ProjectID string `json:"project_id"`
	}
	if err := json.Unmarshal([]byte(raw), &key); err != nil {
		return nil, fmt.Errorf("parsing service-account key: %w", err)
	}
	if key.ProjectID == "" {
		return nil, fmt.Errorf("service-account key carries no project id")
	}

	return &Credentials{ProjectID: key.ProjectID, JSON: []byte(raw)}, nil
}
