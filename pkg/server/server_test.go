package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/engramlabs/engram-go/pkg/core"
)

func newTestServer(t *testing.T, apiKey string) *httptest.Server {
	t.Helper()

	config := &core.Config{
		Database: core.DatabaseConfig{
			Provider: "sqlite",
			Path:     filepath.Join(t.TempDir(), "engram.db"),
		},
		Embedder: core.EmbedderConfig{Provider: "hash", Dimensions: 128},
		Server:   core.ServerConfig{APIKey: apiKey, LatencyBudgetMs: 500},
	}

	service, err := core.NewService(config)
	require.NoError(t, err)
	t.Cleanup(func() { _ = service.Close() })

	log := logrus.New()
	log.SetOutput(io.Discard)

	srv := New(service, &config.Server, log)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, apiKey string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequest(method, url, reader)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("X-API-Key", apiKey)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	var decoded map[string]interface{}
	if len(data) > 0 {
		_ = json.Unmarshal(data, &decoded)
	}
	return resp, decoded
}

func TestStoreEndpoint(t *testing.T) {
	ts := newTestServer(t, "")

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/memory/store", "", map[string]interface{}{
		"content":  "User prefers oat milk in coffee",
		"category": "preference",
	})
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	require.NotNil(t, body["memory"])

	// The same content again is deduplicated, not recreated.
	resp, body = doJSON(t, http.MethodPost, ts.URL+"/v1/memory/store", "", map[string]interface{}{
		"content":  "User prefers oat milk in coffee",
		"category": "preference",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["deduplicated"])
}

func TestStoreEndpointValidation(t *testing.T) {
	ts := newTestServer(t, "")

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/memory/store", "", map[string]interface{}{
		"content":  "something",
		"category": "bogus",
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, body["error"], "category")
}

func TestSearchEndpoint(t *testing.T) {
	ts := newTestServer(t, "")

	doJSON(t, http.MethodPost, ts.URL+"/v1/memory/store", "", map[string]interface{}{
		"content":  "User collects vintage vinyl records",
		"category": "preference",
	})

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/memory/search", "", map[string]interface{}{
		"query": "vinyl records",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	memories, ok := body["memories"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, memories)
}

func TestGetMemoryNotFound(t *testing.T) {
	ts := newTestServer(t, "")

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/v1/memory/999999", "", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/v1/memory/not-a-number", "", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSupersedeConflict(t *testing.T) {
	ts := newTestServer(t, "")

	store := func(content string) int64 {
		resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/memory/store", "", map[string]interface{}{
			"content":  content,
			"category": "identity",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode)
		memory := body["memory"].(map[string]interface{})
		return int64(memory["id"].(float64))
	}

	oldID := store("User lives in Berlin near the river")
	newID := store("User lives in Munich since January")
	thirdID := store("User moved to Hamburg for work")

	resp, _ := doJSON(t, http.MethodPost, ts.URL+"/v1/memory/supersede", "", map[string]int64{
		"id": oldID, "successor_id": newID,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/memory/supersede", "", map[string]int64{
		"id": oldID, "successor_id": thirdID,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestAPIKeyRequired(t *testing.T) {
	ts := newTestServer(t, "secret")

	resp, _ := doJSON(t, http.MethodGet, ts.URL+"/v1/health", "", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/v1/health", "wrong", nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodGet, ts.URL+"/v1/health", "secret", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGraphEndpoints(t *testing.T) {
	ts := newTestServer(t, "")

	resp, entity := doJSON(t, http.MethodPost, ts.URL+"/v1/graph/entities", "", map[string]interface{}{
		"name": "Maria", "entity_type": "person",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entityID := int64(entity["id"].(float64))

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/graph/relationships", "", map[string]interface{}{
		"subject_id": entityID, "predicate": "lives_in", "object_value": "Lisbon",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, profile := doJSON(t, http.MethodGet, fmt.Sprintf("%s/v1/graph/entities/%d", ts.URL, entityID), "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	relationships := profile["relationships"].(map[string]interface{})
	assert.Contains(t, relationships, "lives_in")

	resp, found := doJSON(t, http.MethodPost, ts.URL+"/v1/graph/entities/search", "", map[string]interface{}{
		"query": "mar",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, found["entities"], 1)
}

func TestWisdomEndpoints(t *testing.T) {
	ts := newTestServer(t, "")

	resp, entry := doJSON(t, http.MethodPost, ts.URL+"/v1/wisdom/log", "", map[string]interface{}{
		"action_type": "recommendation",
		"reasoning":   "Suggested the espresso blend",
		"tags":        []string{"coffee"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := entry["id"].(string)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/wisdom/"+id+"/outcome", "", map[string]interface{}{
		"outcome": "success", "details": "user loved it",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/wisdom/"+id+"/feedback", "", map[string]interface{}{
		"score": 5,
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, _ = doJSON(t, http.MethodPost, ts.URL+"/v1/wisdom/"+id+"/feedback", "", map[string]interface{}{
		"score": 9,
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, results := doJSON(t, http.MethodPost, ts.URL+"/v1/wisdom/search", "", map[string]interface{}{
		"query": "espresso",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	entries := results["entries"].([]interface{})
	require.Len(t, entries, 1)
	assert.Equal(t, "success", entries[0].(map[string]interface{})["outcome"])
}

func TestContextEndpoint(t *testing.T) {
	ts := newTestServer(t, "")

	doJSON(t, http.MethodPost, ts.URL+"/v1/memory/store", "", map[string]interface{}{
		"content": "User's name is Alex Rivera", "category": "identity",
	})

	resp, body := doJSON(t, http.MethodPost, ts.URL+"/v1/memory/context", "", map[string]interface{}{
		"query": "",
	})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, body["context"], "Alex Rivera")
}

func TestHealthAndStats(t *testing.T) {
	ts := newTestServer(t, "")

	resp, body := doJSON(t, http.MethodGet, ts.URL+"/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])

	resp, stats := doJSON(t, http.MethodGet, ts.URL+"/v1/stats", "", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, stats, "memory_count")
	assert.Contains(t, stats, "latency_budget_ms")
}
