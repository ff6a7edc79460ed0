// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/bulknews/internal/httputil"
)

// CreateSubscription adds a delivery channel to an existing stream and
// returns it.
func (c *Client) CreateSubscription(ctx context.Context, streamID string) (Subscription, error) {
	if streamID == "" {
		return Subscription{}, fmt.Errorf("stream id is required")
	}

	endpoint := c.cfg.Host + streamsBasePath + "/" + streamID + "/subscriptions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return Subscription{}, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, 0)
	if err != nil {
		return Subscription{}, fmt.Errorf("subscription create: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusCreated:
	case http.StatusNotFound:
		return Subscription{}, fmt.Errorf("%w: %s", ErrStreamNotFound, streamID)
	default:
		text, _ := io.ReadAll(resp.Body)
		return Subscription{}, fmt.Errorf("subscription create returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}

	// The subscription endpoint answers with a data array holding the new
	// subscription.
	var env struct {
		Data []struct {
			ID   string `json:"id"`
			Type string `json:"type"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return Subscription{}, fmt.Errorf("parsing subscription response: %w", err)
	}
	if len(env.Data) == 0 {
		return Subscription{}, fmt.Errorf("subscription create returned no subscription")
	}
	return Subscription{ID: env.Data[0].ID, Type: env.Data[0].Type}, nil
}

// DeleteSubscription removes a delivery channel from a stream.
func (c *Client) DeleteSubscription(ctx context.Context, streamID, subscriptionID string) error {
	if streamID == "" || subscriptionID == "" {
		return fmt.Errorf("stream id and subscription id are required")
	}

	endpoint := c.cfg.Host + streamsBasePath + "/" + streamID + "/subscriptions/" + subscriptionID
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, 0)
	if err != nil {
		return fmt.Errorf("subscription delete: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrStreamNotFound, streamID)
	default:
		text, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("subscription delete returned HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(text)))
	}
}
