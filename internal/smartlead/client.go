// Package smartlead is a typed client for the Smartlead campaign API.
// All calls go through a retrying HTTP wrapper that honors the API's
// rate-limit and gateway-error backoff behavior.
package smartlead

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/ignite/smartlead-export/internal/pkg/httpretry"
	"github.com/ignite/smartlead-export/internal/pkg/logger"
)

// Client is the Smartlead API client.
type Client struct {
	baseURL    string
	apiKey     string
	authStyle  string
	pageSize   int
	pageDelay  time.Duration
	httpClient httpretry.HTTPDoer

	// sleep paces page fetches; swappable for tests.
	sleep func(time.Duration)
}

// NewClient creates a new Smartlead API client.
func NewClient(cfg Config) *Client {
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	pageDelay := time.Duration(cfg.PageDelayMS) * time.Millisecond
	if pageDelay <= 0 {
		pageDelay = 500 * time.Millisecond
	}
	authStyle := cfg.AuthStyle
	if authStyle == "" {
		authStyle = "query"
	}
	return &Client{
		baseURL:   cfg.BaseURL,
		apiKey:    cfg.APIKey,
		authStyle: authStyle,
		pageSize:  pageSize,
		pageDelay: pageDelay,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: 60 * time.Second,
		}, cfg.MaxAttempts),
		sleep: time.Sleep,
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing).
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// SetSleep replaces the inter-page sleep function (useful for testing).
func (c *Client) SetSleep(fn func(time.Duration)) { c.sleep = fn }

// doRequest performs an authenticated GET against the Smartlead API and
// decodes the JSON response into out.
func (c *Client) doRequest(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	if params == nil {
		params = url.Values{}
	}
	if c.authStyle == "query" {
		params.Set("api_key", c.apiKey)
	}

	reqURL := c.baseURL + endpoint
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.authStyle == "bearer" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("API error (status %d) for %s", resp.StatusCode, endpoint)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to parse response for %s: %w", endpoint, err)
	}
	return nil
}

// ListCampaigns retrieves all campaigns visible to the API key.
func (c *Client) ListCampaigns(ctx context.Context) ([]Campaign, error) {
	var campaigns []Campaign
	if err := c.doRequest(ctx, "/campaigns", nil, &campaigns); err != nil {
		return nil, err
	}
	return campaigns, nil
}

// GetCampaign retrieves a single campaign by ID.
func (c *Client) GetCampaign(ctx context.Context, campaignID int64) (*Campaign, error) {
	var campaign Campaign
	endpoint := fmt.Sprintf("/campaigns/%d", campaignID)
	if err := c.doRequest(ctx, endpoint, nil, &campaign); err != nil {
		return nil, err
	}
	if campaign.ID == 0 {
		return nil, fmt.Errorf("campaign %d: response missing campaign id", campaignID)
	}
	return &campaign, nil
}

// ListLeads retrieves all leads for a campaign, paging in fixed-size
// batches until the server-reported total is reached. A failed page is
// logged and ends the walk with whatever accumulated so far; it never
// fails the campaign.
func (c *Client) ListLeads(ctx context.Context, campaignID int64) []LeadEntry {
	var all []LeadEntry
	offset := 0
	endpoint := fmt.Sprintf("/campaigns/%d/leads", campaignID)

	for {
		params := url.Values{}
		params.Set("offset", fmt.Sprintf("%d", offset))
		params.Set("limit", fmt.Sprintf("%d", c.pageSize))

		var page leadPageResponse
		if err := c.doRequest(ctx, endpoint, params, &page); err != nil {
			logger.Warn("leads page fetch failed, stopping pagination",
				"campaign_id", campaignID, "offset", offset, "error", err)
			break
		}

		for _, entry := range page.Data {
			if entry.Lead.ID == 0 || entry.Lead.Email == "" {
				logger.Warn("skipping lead with missing id or email",
					"campaign_id", campaignID, "lead_id", entry.Lead.ID)
				continue
			}
			all = append(all, entry)
		}

		total, _ := page.TotalLeads.Int64()
		if int64(offset+c.pageSize) >= total {
			break
		}
		offset += c.pageSize
		c.sleep(c.pageDelay)
	}

	return all
}

// GetMessageHistory retrieves the sent/reply event history for one lead.
func (c *Client) GetMessageHistory(ctx context.Context, campaignID, leadID int64) (*MessageHistory, error) {
	var history MessageHistory
	endpoint := fmt.Sprintf("/campaigns/%d/leads/%d/message-history", campaignID, leadID)
	if err := c.doRequest(ctx, endpoint, nil, &history); err != nil {
		return nil, err
	}
	return &history, nil
}
