// Package hubspot provides a client for the HubSpot CRM API
package hubspot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/salesdiver/hublink/internal/common"
	"github.com/salesdiver/hublink/internal/interfaces"
	"github.com/salesdiver/hublink/internal/models"
)

const (
	DefaultBaseURL   = "https://api.hubapi.com"
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 5 // requests per second
)

// dealProperties are the deal fields requested on fetch.
var dealProperties = []string{
	"dealname", "amount", "closedate", "dealstage",
	"forecast_category", "hs_forecast_category", "hs_lastmodifieddate",
}

// companyProperties are the company fields requested on fetch.
var companyProperties = []string{
	"name", "address", "address2", "city", "state", "zip", "lifecyclestage",
}

// Client implements the HubSpotClient interface
type Client struct {
	baseURL    string
	tokens     interfaces.TokenProvider
	httpClient *http.Client
	logger     *common.Logger
	limiter    *rate.Limiter
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithBaseURL sets the base URL
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithLogger sets the logger
func WithLogger(logger *common.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRateLimit sets the rate limit
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// NewClient creates a new HubSpot client. Every request asks the token
// provider for a fresh bearer token, so an expired access token is refreshed
// transparently before the call goes out.
func NewClient(tokens interfaces.TokenProvider, opts ...ClientOption) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		limiter: rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:  common.NewSilentLogger(),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// APIError represents a non-2xx HubSpot API response.
type APIError struct {
	StatusCode int
	Body       string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HubSpot API error: %s (status: %d, endpoint: %s)", e.Body, e.StatusCode, e.Endpoint)
}

// do performs a rate-limited authenticated request and decodes the response.
// A nil result discards the body.
func (c *Client) do(ctx context.Context, method, path string, body any, result any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}

	token, err := c.tokens.EnsureAccessToken(ctx)
	if err != nil {
		return fmt.Errorf("failed to obtain access token: %w", err)
	}

	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.logger.Debug().Str("method", method).Str("url", path).Msg("HubSpot API request")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(resp.Body)
		return &APIError{
			StatusCode: resp.StatusCode,
			Body:       string(respBody),
			Endpoint:   path,
		}
	}

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

type dealListResponse struct {
	Results []struct {
		ID         string            `json:"id"`
		Properties map[string]string `json:"properties"`
	} `json:"results"`
}

func summarize(resp dealListResponse) []*models.DealSummary {
	deals := make([]*models.DealSummary, len(resp.Results))
	for i, d := range resp.Results {
		name := strings.TrimSpace(d.Properties["dealname"])
		if name == "" {
			name = "(Unnamed deal)"
		}
		deals[i] = &models.DealSummary{ID: d.ID, Name: name}
	}
	return deals
}

// ListDeals retrieves up to limit deals
func (c *Client) ListDeals(ctx context.Context, limit int) ([]*models.DealSummary, error) {
	var resp dealListResponse
	path := fmt.Sprintf("/crm/v3/objects/deals?limit=%d", limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return summarize(resp), nil
}

// SearchDeals searches deals by free-text query
func (c *Client) SearchDeals(ctx context.Context, query string, limit int) ([]*models.DealSummary, error) {
	body := map[string]any{
		"query":      query,
		"limit":      limit,
		"properties": []string{"dealname", "amount", "closedate", "dealstage"},
	}
	var resp dealListResponse
	if err := c.do(ctx, http.MethodPost, "/crm/v3/objects/deals/search", body, &resp); err != nil {
		return nil, err
	}
	return summarize(resp), nil
}

// GetDeal fetches the full payload for one deal. The payload is kept untyped
// because HubSpot surfaces properties in several shapes; the sync package
// reads it through ordered-fallback accessors. A 404 returns (nil, nil).
func (c *Client) GetDeal(ctx context.Context, dealID string) (models.DealPayload, error) {
	var payload models.DealPayload
	path := fmt.Sprintf("/crm/v3/objects/deals/%s?properties=%s",
		url.PathEscape(dealID), strings.Join(dealProperties, ","))
	if err := c.do(ctx, http.MethodGet, path, nil, &payload); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
			return nil, nil
		}
		return nil, err
	}
	return payload, nil
}

// GetDealCompanyID resolves the first associated company id for a deal.
// HubSpot may emit toObjectId as a JSON number or string; both normalize to a
// string. Returns "" when the deal has no company association.
func (c *Client) GetDealCompanyID(ctx context.Context, dealID string) (string, error) {
	var resp struct {
		Results []struct {
			ToObjectID json.RawMessage `json:"toObjectId"`
		} `json:"results"`
	}
	path := fmt.Sprintf("/crm/v4/objects/deals/%s/associations/companies", url.PathEscape(dealID))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return "", err
	}
	if len(resp.Results) == 0 {
		return "", nil
	}

	raw := resp.Results[0].ToObjectID
	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		return asString, nil
	}
	var asInt int64
	if err := json.Unmarshal(raw, &asInt); err == nil {
		return fmt.Sprintf("%d", asInt), nil
	}
	return "", fmt.Errorf("failed to decode association for deal '%s': toObjectId is neither string nor number: %s", dealID, string(raw))
}

type companyResponse struct {
	ID         string `json:"id"`
	Properties struct {
		Name           string `json:"name"`
		Address        string `json:"address"`
		Address2       string `json:"address2"`
		City           string `json:"city"`
		State          string `json:"state"`
		Zip            string `json:"zip"`
		LifecycleStage string `json:"lifecyclestage"`
	} `json:"properties"`
}

func (r companyResponse) details() *models.CompanyDetails {
	name := strings.TrimSpace(r.Properties.Name)
	if name == "" {
		name = "(Unnamed company)"
	}
	return &models.CompanyDetails{
		ID:             r.ID,
		Name:           name,
		Address1:       r.Properties.Address,
		Address2:       r.Properties.Address2,
		City:           r.Properties.City,
		State:          r.Properties.State,
		PostalCode:     r.Properties.Zip,
		LifecycleStage: r.Properties.LifecycleStage,
	}
}

// GetCompany fetches company details by id
func (c *Client) GetCompany(ctx context.Context, companyID string) (*models.CompanyDetails, error) {
	var resp companyResponse
	path := fmt.Sprintf("/crm/v3/objects/companies/%s?properties=%s",
		url.PathEscape(companyID), strings.Join(companyProperties, ","))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.details(), nil
}

// SearchCompanyByName finds the first company whose name contains the given
// token. Returns (nil, nil) when nothing matches.
func (c *Client) SearchCompanyByName(ctx context.Context, name string) (*models.CompanyDetails, error) {
	body := map[string]any{
		"filterGroups": []map[string]any{{
			"filters": []map[string]any{{
				"propertyName": "name",
				"operator":     "CONTAINS_TOKEN",
				"value":        name,
			}},
		}},
		"properties": []string{"name", "address", "address2", "city", "state", "zip"},
		"limit":      1,
	}
	var resp struct {
		Results []companyResponse `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/crm/v3/objects/companies/search", body, &resp); err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		c.logger.Debug().Str("name", name).Msg("HubSpot company search found no match")
		return nil, nil
	}
	details := resp.Results[0].details()
	details.LifecycleStage = "" // search response does not include lifecycle stage
	return details, nil
}

// Ensure Client implements HubSpotClient
var _ interfaces.HubSpotClient = (*Client)(nil)
