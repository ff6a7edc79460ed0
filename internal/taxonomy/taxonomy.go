// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package taxonomy looks up the archive's reference data: taxonomy
// categories, the codes inside a category, and company metadata by code.
package taxonomy

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pdiddy/bulknews/internal/auth"
	"github.com/pdiddy/bulknews/internal/httputil"
	"github.com/pdiddy/bulknews/pkg/types"
)

const (
	taxonomiesBasePath = "/alpha/taxonomies"
	companiesBasePath  = "/alpha/companies"
)

// Code is one taxonomy entry of a category.
type Code struct {
	Code        string `json:"code" yaml:"code"`
	Description string `json:"description" yaml:"description"`
}

// Company is the archive's metadata for one company code.
type Company struct {
	ID           string `json:"id" yaml:"id"`
	FCode        string `json:"fcode" yaml:"fcode"`
	CommonName   string `json:"common_name" yaml:"common_name"`
	ISIN         string `json:"isin,omitempty" yaml:"isin,omitempty"`
	Ticker       string `json:"ticker,omitempty" yaml:"ticker,omitempty"`
	ExchangeCode string `json:"primary_exchange,omitempty" yaml:"primary_exchange,omitempty"`
}

// CompanyBatch is the outcome of a batch company lookup. The endpoint
// answers per-code, so some codes can succeed while others fail.
type CompanyBatch struct {
	Companies []Company
	Failed    []string
}

// Client performs taxonomy lookups against the configured API.
type Client struct {
	httpClient *http.Client
	cfg        types.APIConfig
}

// NewClient returns a taxonomy client for the configured API.
func NewClient(httpClient *http.Client, cfg types.APIConfig) *Client {
	return &Client{httpClient: httpClient, cfg: cfg}
}

// Categories returns the available taxonomy category names.
func (c *Client) Categories(ctx context.Context) ([]string, error) {
	resp, err := c.get(ctx, c.cfg.Host+taxonomiesBasePath)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("taxonomies endpoint returned HTTP %d", resp.StatusCode)
	}

	var env struct {
		Data []struct {
			Attributes struct {
				Name string `json:"name"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("parsing taxonomies response: %w", err)
	}

	var categories []string
	for _, entry := range env.Data {
		categories = append(categories, entry.Attributes.Name)
	}
	return categories, nil
}

// CategoryCodes returns the codes of a taxonomy category. The endpoint
// delivers them as CSV with a code column followed by a description.
func (c *Client) CategoryCodes(ctx context.Context, category string) ([]Code, error) {
	if category == "" {
		return nil, fmt.Errorf("category is required")
	}

	endpoint := c.cfg.Host + taxonomiesBasePath + "/" + category + "/csv"
	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("taxonomy category %q returned HTTP %d", category, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading category response: %w", err)
	}
	return parseCodesCSV(body)
}

// parseCodesCSV reads the category CSV. The first row is a header; rows
// with fewer than two columns are rejected.
func parseCodesCSV(body []byte) ([]Code, error) {
	reader := csv.NewReader(bytes.NewReader(body))
	reader.FieldsPerRecord = -1

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing category csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("category csv is empty")
	}

	var codes []Code
	for i, record := range records[1:] {
		if len(record) < 2 {
			return nil, fmt.Errorf("category csv row %d has %d columns, want 2", i+2, len(record))
		}
		codes = append(codes, Code{
			Code:        strings.TrimSpace(record[0]),
			Description: strings.TrimSpace(record[1]),
		})
	}
	return codes, nil
}

// Company looks up one company by code type (e.g. isin, ticker, cusip)
// and code.
func (c *Client) Company(ctx context.Context, codeType, code string) (Company, error) {
	if codeType == "" || code == "" {
		return Company{}, fmt.Errorf("code type and company code are required")
	}

	endpoint := c.cfg.Host + companiesBasePath + "/" + codeType + "/" + code
	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return Company{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return Company{}, fmt.Errorf("no company for %s %q", codeType, code)
	default:
		return Company{}, fmt.Errorf("companies endpoint returned HTTP %d", resp.StatusCode)
	}

	var env struct {
		Data struct {
			ID         string  `json:"id"`
			Attributes Company `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return Company{}, fmt.Errorf("parsing company response: %w", err)
	}
	company := env.Data.Attributes
	if company.ID == "" {
		company.ID = env.Data.ID
	}
	return company, nil
}

// Companies looks up a batch of company codes of one code type. The
// endpoint answers HTTP 207 with per-code successes and failures.
func (c *Client) Companies(ctx context.Context, codeType string, codes []string) (CompanyBatch, error) {
	if codeType == "" {
		return CompanyBatch{}, fmt.Errorf("code type is required")
	}
	if len(codes) == 0 {
		return CompanyBatch{}, fmt.Errorf("provide at least one company code")
	}

	payload := map[string]any{
		"data": map[string]any{
			"attributes": map[string]any{"ids": codes},
		},
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return CompanyBatch{}, fmt.Errorf("marshaling companies payload: %w", err)
	}

	endpoint := c.cfg.Host + companiesBasePath + "/" + codeType
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return CompanyBatch{}, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, 0)
	if err != nil {
		return CompanyBatch{}, fmt.Errorf("companies request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusMultiStatus {
		return CompanyBatch{}, fmt.Errorf("companies endpoint returned HTTP %d", resp.StatusCode)
	}

	var env struct {
		Data struct {
			Attributes struct {
				Successes []Company `json:"successes"`
				Failures  []struct {
					ID string `json:"id"`
				} `json:"failures"`
			} `json:"attributes"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return CompanyBatch{}, fmt.Errorf("parsing companies response: %w", err)
	}

	batch := CompanyBatch{Companies: env.Data.Attributes.Successes}
	for _, f := range env.Data.Attributes.Failures {
		batch.Failed = append(batch.Failed, f.ID)
	}
	return batch, nil
}

func (c *Client) get(ctx context.Context, endpoint string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	c.setHeaders(req)

	resp, err := httputil.DoWithRetry(ctx, c.httpClient, req, 0)
	if err != nil {
		return nil, fmt.Errorf("taxonomy request: %w", err)
	}
	if resp.StatusCode == http.StatusForbidden {
		resp.Body.Close()
		return nil, auth.ErrInvalidUserKey
	}
	return resp, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	for k, v := range auth.Headers(c.cfg.UserKey) {
		req.Header.Set(k, v)
	}
}
