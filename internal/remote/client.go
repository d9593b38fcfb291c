package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/conorfennell/tunequeue/internal/domain"
)

// Client speaks the Server's JSON/HTTP protocol. It implements Store,
// so the sync engine does not care whether the remote is in-process or
// across the network.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates a client for the remote at baseURL.
func NewClient(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// Upsert implements Store.
func (c *Client) Upsert(ctx context.Context, row Row) error {
	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("failed to encode row: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.baseURL+"/rows", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build upsert request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

// Delete implements Store.
func (c *Client) Delete(ctx context.Context, kind domain.EntityKind, id string) error {
	target := fmt.Sprintf("%s/rows/%s/%s", c.baseURL, url.PathEscape(string(kind)), url.PathEscape(id))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, target, nil)
	if err != nil {
		return fmt.Errorf("failed to build delete request: %w", err)
	}
	return c.do(req)
}

// Fetch implements Store.
func (c *Client) Fetch(ctx context.Context, q Query) (Result, error) {
	body, err := json.Marshal(q)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/fetch", bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("failed to build fetch request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("fetch request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("fetch returned status %d", resp.StatusCode)
	}

	var res Result
	if err := json.NewDecoder(resp.Body).Decode(&res); err != nil {
		return Result{}, fmt.Errorf("failed to decode fetch result: %w", err)
	}
	return res, nil
}

func (c *Client) do(req *http.Request) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("remote returned status %d", resp.StatusCode)
	}
	return nil
}
