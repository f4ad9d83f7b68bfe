// Package plugin is the host-agent side of Engram: a thin client plus
// lifecycle hooks that inject remembered context before a turn and capture
// new knowledge after it.
//
// The plugin holds no durable state; everything lives in the Engram
// service it talks to over HTTP.
package plugin

import "os"

// Default plugin settings.
const (
	// DefaultServerURL is where a locally run engramd listens.
	DefaultServerURL = "http://127.0.0.1:7700"

	// DefaultMaxRecallResults caps how many memories auto-recall injects.
	DefaultMaxRecallResults = 5

	// DefaultMaxRecallTokens budgets the injected context size in tokens.
	DefaultMaxRecallTokens = 2000
)

// Config controls plugin behavior.
type Config struct {
	// ServerURL is the base URL of the Engram service.
	ServerURL string `json:"server_url"`

	// APIKey is sent as X-API-Key when non-empty.
	APIKey string `json:"api_key,omitempty"`

	// AutoRecall injects relevant context before each turn.
	AutoRecall bool `json:"auto_recall"`

	// AutoCapture extracts knowledge from each completed turn.
	AutoCapture bool `json:"auto_capture"`

	// MaxRecallResults caps how many memories auto-recall requests.
	MaxRecallResults int `json:"max_recall_results"`

	// MaxRecallTokens budgets the injected context blob, in tokens.
	MaxRecallTokens int `json:"max_recall_tokens"`

	// EnableGraph turns on knowledge graph capture during auto-capture.
	EnableGraph bool `json:"enable_graph"`

	// EnableWisdom turns on wisdom logging for agent decisions.
	EnableWisdom bool `json:"enable_wisdom"`
}

// DefaultConfig returns the plugin defaults: recall and capture on, graph
// on, wisdom off.
func DefaultConfig() *Config {
	return &Config{
		ServerURL:        DefaultServerURL,
		AutoRecall:       true,
		AutoCapture:      true,
		MaxRecallResults: DefaultMaxRecallResults,
		MaxRecallTokens:  DefaultMaxRecallTokens,
		EnableGraph:      true,
		EnableWisdom:     false,
	}
}

// ConfigFromEnv builds a config from ENGRAM_URL and ENGRAM_API_KEY on top
// of the defaults.
func ConfigFromEnv() *Config {
	config := DefaultConfig()
	if url := os.Getenv("ENGRAM_URL"); url != "" {
		config.ServerURL = url
	}
	config.APIKey = os.Getenv("ENGRAM_API_KEY")
	return config
}

// normalize fills zero values with defaults.
func (c *Config) normalize() {
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	if c.MaxRecallResults <= 0 {
		c.MaxRecallResults = DefaultMaxRecallResults
	}
	if c.MaxRecallTokens <= 0 {
		c.MaxRecallTokens = DefaultMaxRecallTokens
	}
}
