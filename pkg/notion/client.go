package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	DefaultAPIBase = "https://api.notion.com/v1"
	DefaultVersion = "2022-06-28"

	defaultHTTPTimeout = 30 * time.Second
)

// Client talks to a Notion-compatible structured store. One client per user
// token; clients are cheap and safe for concurrent use.
type Client struct {
	token      string
	apiBase    string
	version    string
	httpClient *http.Client
}

// Options overrides the API endpoint. Zero values use the public defaults.
type Options struct {
	APIBase    string
	Version    string
	HTTPClient *http.Client
}

func NewClient(token string, opts Options) (*Client, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, fmt.Errorf("notion token is required")
	}

	apiBase := strings.TrimRight(strings.TrimSpace(opts.APIBase), "/")
	if apiBase == "" {
		apiBase = DefaultAPIBase
	}
	version := strings.TrimSpace(opts.Version)
	if version == "" {
		version = DefaultVersion
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	return &Client{
		token:      token,
		apiBase:    apiBase,
		version:    version,
		httpClient: httpClient,
	}, nil
}

// Search queries the workspace. objectType filters to "page" or "database";
// empty means both.
func (c *Client) Search(ctx context.Context, query, objectType string) ([]SearchResult, error) {
	body := map[string]interface{}{
		"page_size": 50,
	}
	if query = strings.TrimSpace(query); query != "" {
		body["query"] = query
	}
	if objectType = strings.TrimSpace(objectType); objectType != "" {
		body["filter"] = map[string]string{"property": "object", "value": objectType}
	}

	var result struct {
		Results []SearchResult `json:"results"`
	}
	if err := c.do(ctx, http.MethodPost, "/search", body, &result); err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	return result.Results, nil
}

// RetrieveDatabase fetches a database with its current schema. Callers use
// this right before each write so column changes are picked up immediately.
func (c *Client) RetrieveDatabase(ctx context.Context, databaseID string) (*Database, error) {
	databaseID = strings.TrimSpace(databaseID)
	if databaseID == "" {
		return nil, fmt.Errorf("database id is required")
	}

	var db Database
	if err := c.do(ctx, http.MethodGet, "/databases/"+databaseID, nil, &db); err != nil {
		return nil, fmt.Errorf("retrieve database %s: %w", databaseID, err)
	}
	return &db, nil
}

// CreateDatabase creates a new database under a parent page. properties is a
// schema spec map built from the Spec helpers.
func (c *Client) CreateDatabase(ctx context.Context, parentPageID, title string, properties map[string]interface{}) (*Database, error) {
	parentPageID = strings.TrimSpace(parentPageID)
	if parentPageID == "" {
		return nil, fmt.Errorf("parent page id is required")
	}

	body := map[string]interface{}{
		"parent": map[string]string{
			"type":    "page_id",
			"page_id": parentPageID,
		},
		"title": []RichTextItem{
			{Type: "text", Text: &TextContent{Content: title}},
		},
		"properties": properties,
	}

	var db Database
	if err := c.do(ctx, http.MethodPost, "/databases", body, &db); err != nil {
		return nil, fmt.Errorf("create database %q: %w", title, err)
	}
	return &db, nil
}

// CreatePage inserts one row into a database. properties is a value map built
// from the Value helpers.
func (c *Client) CreatePage(ctx context.Context, databaseID string, properties map[string]interface{}) (*Page, error) {
	databaseID = strings.TrimSpace(databaseID)
	if databaseID == "" {
		return nil, fmt.Errorf("database id is required")
	}

	body := map[string]interface{}{
		"parent":     map[string]string{"database_id": databaseID},
		"properties": properties,
	}

	var page Page
	if err := c.do(ctx, http.MethodPost, "/pages", body, &page); err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	return &page, nil
}

// QueryDatabase reads rows from a database, newest API defaults, bounded by
// pageSize.
func (c *Client) QueryDatabase(ctx context.Context, databaseID string, pageSize int) (*QueryResult, error) {
	databaseID = strings.TrimSpace(databaseID)
	if databaseID == "" {
		return nil, fmt.Errorf("database id is required")
	}
	if pageSize <= 0 {
		pageSize = 10
	}

	body := map[string]interface{}{"page_size": pageSize}

	var result QueryResult
	if err := c.do(ctx, http.MethodPost, "/databases/"+databaseID+"/query", body, &result); err != nil {
		return nil, fmt.Errorf("query database %s: %w", databaseID, err)
	}
	return &result, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	if c == nil {
		return fmt.Errorf("client not initialized")
	}

	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Notion-Version", c.version)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("API request failed: status=%d error=%s", resp.StatusCode, extractAPIError(respBody))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func extractAPIError(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return "empty response body"
	}

	var payload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			if payload.Code != "" {
				return payload.Code + ": " + msg
			}
			return msg
		}
	}

	if len(trimmed) > 2000 {
		return trimmed[:2000] + "..."
	}
	return trimmed
}
