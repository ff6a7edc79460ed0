// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/pdiddy/bulknews/internal/httputil"
	"github.com/pdiddy/bulknews/pkg/types"
)

const accountsBasePath = "/alpha/accounts"

// ErrInvalidUserKey is returned when the API rejects the user key.
var ErrInvalidUserKey = fmt.Errorf("invalid user key")

// accountResponse mirrors the accounts endpoint JSON.
type accountResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Name                         string `json:"name"`
			AccountType                  string `json:"account_type"`
			MaxAllowedExtracts           int    `json:"max_allowed_extracts"`
			CntExtractions               int    `json:"cnt_extractions"`
			MaxAllowedConcurrentExtracts int    `json:"max_allowed_concurrent_extracts"`
		} `json:"attributes"`
	} `json:"data"`
}

// Statistics fetches the account limits and usage for the user key.
func Statistics(ctx context.Context, client *http.Client, cfg types.APIConfig) (types.AccountStatistics, error) {
	reqURL := cfg.Host + accountsBasePath + "/" + cfg.UserKey

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return types.AccountStatistics{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", cfg.UserAgent)
	for k, v := range Headers(cfg.UserKey) {
		req.Header.Set(k, v)
	}

	resp, err := httputil.DoWithRetry(ctx, client, req, 0)
	if err != nil {
		return types.AccountStatistics{}, fmt.Errorf("accounts request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusForbidden:
		return types.AccountStatistics{}, ErrInvalidUserKey
	default:
		return types.AccountStatistics{}, fmt.Errorf("accounts endpoint returned HTTP %d", resp.StatusCode)
	}

	var ar accountResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return types.AccountStatistics{}, fmt.Errorf("parsing accounts response: %w", err)
	}

	attrs := ar.Data.Attributes
	stats := types.AccountStatistics{
		Name:                         attrs.Name,
		AccountType:                  attrs.AccountType,
		MaxAllowedExtracts:           attrs.MaxAllowedExtracts,
		CurrentlyUsedExtracts:        attrs.CntExtractions,
		MaxAllowedConcurrentExtracts: attrs.MaxAllowedConcurrentExtracts,
	}
	stats.RemainingExtracts = stats.MaxAllowedExtracts - stats.CurrentlyUsedExtracts
	if stats.RemainingExtracts < 0 {
		stats.RemainingExtracts = 0
	}
	return stats, nil
}
