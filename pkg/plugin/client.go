package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/engramlabs/engram-go/pkg/core"
)

// requestTimeout bounds every call to the service. There are no retries;
// the hooks degrade gracefully when the service is unreachable.
const requestTimeout = 30 * time.Second

// Client is a stateless HTTP/JSON client for the Engram service.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: requestTimeout},
	}
}

// do executes one JSON request. A non-2xx response becomes an error with
// the response body folded in, so callers see the server's explanation.
func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("engram client: marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("engram client: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("engram client: %s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("engram client: read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("engram client: %s %s: status %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("engram client: decode response: %w", err)
		}
	}
	return nil
}

// Store ingests a memory.
func (c *Client) Store(ctx context.Context, req *core.StoreRequest) (*core.StoreResult, error) {
	var result core.StoreResult
	if err := c.do(ctx, http.MethodPost, "/v1/memory/store", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Search retrieves memories relevant to a query.
func (c *Client) Search(ctx context.Context, req *core.SearchRequest) ([]*core.Memory, error) {
	var result struct {
		Memories []*core.Memory `json:"memories"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/memory/search", req, &result); err != nil {
		return nil, err
	}
	return result.Memories, nil
}

// Context fetches the assembled tiered context blob for a query.
func (c *Client) Context(ctx context.Context, query string, limit int) (string, error) {
	var result struct {
		Context string `json:"context"`
	}
	req := map[string]interface{}{"query": query, "limit": limit}
	if err := c.do(ctx, http.MethodPost, "/v1/memory/context", req, &result); err != nil {
		return "", err
	}
	return result.Context, nil
}

// Extract submits conversation text for knowledge extraction. skipGraph
// suppresses entity and relationship capture.
func (c *Client) Extract(ctx context.Context, text, source string, skipGraph bool) (*core.ExtractionResult, error) {
	var result core.ExtractionResult
	req := map[string]interface{}{"text": text, "source": source, "skip_graph": skipGraph}
	if err := c.do(ctx, http.MethodPost, "/v1/extract", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Supersede marks a memory as replaced by a successor.
func (c *Client) Supersede(ctx context.Context, id, successorID int64) error {
	req := map[string]int64{"id": id, "successor_id": successorID}
	return c.do(ctx, http.MethodPost, "/v1/memory/supersede", req, nil)
}

// LogWisdom records a decision in the wisdom log.
func (c *Client) LogWisdom(ctx context.Context, actionType, reasoning string, tags []string) (*core.WisdomEntry, error) {
	var entry core.WisdomEntry
	req := map[string]interface{}{
		"action_type": actionType,
		"reasoning":   reasoning,
		"tags":        tags,
	}
	if err := c.do(ctx, http.MethodPost, "/v1/wisdom/log", req, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

// RecordOutcome attaches an outcome to a wisdom entry.
func (c *Client) RecordOutcome(ctx context.Context, id, outcome, details string) error {
	req := map[string]string{"outcome": outcome, "details": details}
	return c.do(ctx, http.MethodPost, "/v1/wisdom/"+id+"/outcome", req, nil)
}

// AttachFeedback attaches a user rating to a wisdom entry.
func (c *Client) AttachFeedback(ctx context.Context, id string, score int, notes string) error {
	req := map[string]interface{}{"score": score, "notes": notes}
	return c.do(ctx, http.MethodPost, "/v1/wisdom/"+id+"/feedback", req, nil)
}

// Health checks service reachability.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/v1/health", nil, nil)
}

// Stats fetches service counters.
func (c *Client) Stats(ctx context.Context) (*core.Stats, error) {
	var stats core.Stats
	if err := c.do(ctx, http.MethodGet, "/v1/stats", nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}
