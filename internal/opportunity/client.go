// Package opportunity is a thin client for the opportunity data service. The
// four contracts are treated as opaque fetch/store: responses pass through as
// raw JSON after an existence check, never re-validated.
package opportunity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// List fetches the opportunity listing.
func (c *Client) List(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, http.MethodGet, "/opportunities", nil)
}

// Detail fetches detailed data for one opportunity.
func (c *Client) Detail(ctx context.Context, id string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/opportunities/detail", map[string]any{"opportunityId": id})
}

// GetProgress fetches previously saved drafting progress.
func (c *Client) GetProgress(ctx context.Context, id string) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/opportunities/progress/get", map[string]any{"opportunityId": id})
}

// InsertProgress stores a drafting progress payload. The payload is arbitrary
// JSON owned by the caller.
func (c *Client) InsertProgress(ctx context.Context, id string, payload json.RawMessage) (json.RawMessage, error) {
	return c.do(ctx, http.MethodPost, "/opportunities/progress/insert", map[string]any{
		"opportunityId": id,
		"payload":       payload,
	})
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("opportunity service: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("opportunity service: status %d", resp.StatusCode)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("opportunity service: empty response")
	}
	return json.RawMessage(data), nil
}
