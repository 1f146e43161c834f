// Package attio mirrors outreach activity into the Attio CRM: companies and
// people are created on demand, replies become notes, and pipeline list
// entries move stage as leads respond.
package attio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/ignite/smartlead-export/internal/pkg/httpretry"
)

// Client is the Attio API client. Object, list, and status identifiers are
// cached per instance to keep the sync path to a handful of calls.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient httpretry.HTTPDoer

	mu       sync.Mutex
	lists    map[string]List
	statuses map[string]string
}

// NewClient creates a new Attio API client.
func NewClient(config Config) *Client {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = "https://api.attio.com/v2"
	}
	return &Client{
		baseURL: baseURL,
		apiKey:  config.APIKey,
		httpClient: httpretry.NewRetryClient(&http.Client{
			Timeout: 30 * time.Second,
		}, 3),
		lists:    make(map[string]List),
		statuses: make(map[string]string),
	}
}

// SetHTTPClient sets a custom HTTP client (useful for testing).
func (c *Client) SetHTTPClient(client httpretry.HTTPDoer) {
	c.httpClient = client
}

// InvalidateCache drops the cached list and status identifiers.
func (c *Client) InvalidateCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lists = make(map[string]List)
	c.statuses = make(map[string]string)
}

// doRequest performs an authenticated request to the Attio API.
func (c *Client) doRequest(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("attio API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// SearchRecords queries records of an object with a filter.
func (c *Client) SearchRecords(ctx context.Context, objectSlug string, f filter) ([]Record, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/objects/"+objectSlug+"/records/query", map[string]any{
		"filter": f,
		"sorts":  []any{},
	})
	if err != nil {
		return nil, err
	}
	var env recordListEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse records response: %w", err)
	}
	return env.Data, nil
}

// CreateRecord creates a new record of an object.
func (c *Client) CreateRecord(ctx context.Context, objectSlug string, values map[string]any) (*Record, error) {
	body, err := c.doRequest(ctx, http.MethodPost, "/objects/"+objectSlug+"/records", map[string]any{
		"data": map[string]any{"values": values},
	})
	if err != nil {
		return nil, err
	}
	var env recordEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse record response: %w", err)
	}
	return &env.Data, nil
}

// GetOrCreateCompany finds a company by domain, then by name, and creates
// it when neither matches.
func (c *Client) GetOrCreateCompany(ctx context.Context, input CompanyInput) (*Record, error) {
	domain := normalizeDomain(input.Website)

	if domain != "" {
		existing, err := c.SearchRecords(ctx, "companies", filter{
			"attribute": "domains",
			"relation":  "contains",
			"value":     domain,
		})
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return &existing[0], nil
		}
	}

	if input.Name != "" {
		existing, err := c.SearchRecords(ctx, "companies", filter{
			"attribute": "name",
			"relation":  "eq",
			"value":     input.Name,
		})
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return &existing[0], nil
		}
	}

	name := input.Name
	if name == "" {
		name = "Unknown Company"
	}
	values := map[string]any{
		"name": []map[string]any{{"value": name}},
	}
	if domain != "" {
		values["domains"] = []map[string]any{{"domain": domain}}
	}
	return c.CreateRecord(ctx, "companies", values)
}

// GetOrCreatePerson finds a person by email address and creates them when
// none matches. companyRecordID optionally links the person to a company.
func (c *Client) GetOrCreatePerson(ctx context.Context, input PersonInput, companyRecordID string) (*Record, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))

	if email != "" {
		existing, err := c.SearchRecords(ctx, "people", filter{
			"attribute": "email_addresses",
			"relation":  "contains",
			"value":     email,
		})
		if err != nil {
			return nil, err
		}
		if len(existing) > 0 {
			return &existing[0], nil
		}
	}

	name := strings.TrimSpace(input.FirstName + " " + input.LastName)
	if name == "" {
		name = email
	}
	values := map[string]any{
		"name": []map[string]any{{"value": name}},
	}
	if email != "" {
		values["email_addresses"] = []map[string]any{{"email_address": email}}
	}
	if companyRecordID != "" {
		values["companies"] = []map[string]any{{
			"target_object":    "companies",
			"target_record_id": companyRecordID,
		}}
	}
	return c.CreateRecord(ctx, "people", values)
}

// GetList resolves a list by its display name, caching all lists on first use.
func (c *Client) GetList(ctx context.Context, name string) (*List, error) {
	c.mu.Lock()
	if l, ok := c.lists[name]; ok {
		c.mu.Unlock()
		return &l, nil
	}
	c.mu.Unlock()

	body, err := c.doRequest(ctx, http.MethodGet, "/lists", nil)
	if err != nil {
		return nil, err
	}
	var env listEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse lists response: %w", err)
	}

	c.mu.Lock()
	for _, l := range env.Data {
		c.lists[l.Name] = l
	}
	l, ok := c.lists[name]
	c.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("attio list %q not found", name)
	}
	return &l, nil
}

// GetListEntry finds a record's entry in a list, or nil when absent.
func (c *Client) GetListEntry(ctx context.Context, listID, recordID string) (*ListEntry, error) {
	body, err := c.doRequest(ctx, http.MethodGet, "/lists/"+listID+"/entries", nil)
	if err != nil {
		return nil, err
	}
	var env listEntryEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("failed to parse entries response: %w", err)
	}
	for i := range env.Data {
		if env.Data[i].TargetRecordID == recordID {
			return &env.Data[i], nil
		}
	}
	return nil, nil
}

// AddRecordToList puts a record on a list.
func (c *Client) AddRecordToList(ctx context.Context, listID, recordID, objectSlug string) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/lists/"+listID+"/entries", map[string]any{
		"data": map[string]any{
			"entries": []map[string]any{{
				"target_object":    objectSlug,
				"target_record_id": recordID,
			}},
		},
	})
	return err
}

// UpdateListEntryStatus moves a list entry to a status.
func (c *Client) UpdateListEntryStatus(ctx context.Context, listID, entryID, statusID string) error {
	_, err := c.doRequest(ctx, http.MethodPatch, "/lists/"+listID+"/entries/"+entryID, map[string]any{
		"data": map[string]any{
			"values": map[string]any{
				"status": []map[string]any{{"status_id": statusID}},
			},
		},
	})
	return err
}

// StatusID resolves a status option id by its title, caching every option
// of the list's status attribute on first use.
func (c *Client) StatusID(ctx context.Context, listID, statusTitle string) (string, error) {
	cacheKey := listID + ":" + statusTitle

	c.mu.Lock()
	if id, ok := c.statuses[cacheKey]; ok {
		c.mu.Unlock()
		return id, nil
	}
	c.mu.Unlock()

	body, err := c.doRequest(ctx, http.MethodGet, "/lists/"+listID, nil)
	if err != nil {
		return "", err
	}
	var detail listDetail
	if err := json.Unmarshal(body, &detail); err != nil {
		return "", fmt.Errorf("failed to parse list response: %w", err)
	}

	c.mu.Lock()
	for _, attr := range detail.Data.Attributes {
		if attr.Type != "status" {
			continue
		}
		for _, opt := range attr.Config.Options {
			c.statuses[listID+":"+opt.Title] = opt.ID
		}
	}
	id, ok := c.statuses[cacheKey]
	c.mu.Unlock()
	if !ok {
		return "", fmt.Errorf("status %q not found on list %s", statusTitle, listID)
	}
	return id, nil
}

// AddNote attaches a plaintext note to a record.
func (c *Client) AddNote(ctx context.Context, parentObject, recordID, title, content string) error {
	_, err := c.doRequest(ctx, http.MethodPost, "/notes", map[string]any{
		"data": map[string]any{
			"parent_object":    parentObject,
			"parent_record_id": recordID,
			"title":            title,
			"content":          content,
			"format":           "plaintext",
		},
	})
	return err
}

func normalizeDomain(website string) string {
	d := strings.TrimSpace(website)
	d = strings.TrimPrefix(d, "http://")
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "www.")
	if i := strings.IndexByte(d, '/'); i >= 0 {
		d = d[:i]
	}
	return d
}
