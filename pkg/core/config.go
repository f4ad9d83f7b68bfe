package core

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config contains the complete configuration for an Engram service.
//
// Example:
//
//	config := &core.Config{
//	    Database: core.DatabaseConfig{
//	        Provider: "sqlite",
//	        Path:     "./engram.db",
//	    },
//	    Embedder: core.EmbedderConfig{
//	        Provider:   "openai",
//	        APIKey:     "sk-...",
//	        Model:      "text-embedding-3-small",
//	        Dimensions: 1536,
//	    },
//	}
type Config struct {
	// Database contains memory store configuration.
	Database DatabaseConfig `json:"database"`

	// Embedder contains embedding provider configuration.
	Embedder EmbedderConfig `json:"embedder"`

	// LLM contains LLM provider configuration (optional; extraction and
	// LLM importance scoring are disabled without it).
	LLM *LLMConfig `json:"llm,omitempty"`

	// Server contains HTTP server configuration.
	Server ServerConfig `json:"server"`

	// Search contains retrieval tuning parameters.
	Search SearchConfig `json:"search"`
}

// DatabaseConfig contains configuration for the memory store.
//
// Supported providers: sqlite, postgres, mysql. The knowledge graph and
// wisdom stores always live in the SQLite file at GraphPath, regardless of
// the memory store provider.
type DatabaseConfig struct {
	// Provider is the memory store backend (sqlite, postgres, mysql).
	Provider string `json:"provider"`

	// Path is the SQLite database file path (sqlite provider).
	Path string `json:"path,omitempty"`

	// GraphPath is the SQLite file for graph and wisdom data. Defaults to
	// Path for the sqlite provider, "./engram.db" otherwise.
	GraphPath string `json:"graph_path,omitempty"`

	// Host, Port, User, Password, DBName configure the server-based
	// providers (postgres, mysql).
	Host     string `json:"host,omitempty"`
	Port     int    `json:"port,omitempty"`
	User     string `json:"user,omitempty"`
	Password string `json:"password,omitempty"`
	DBName   string `json:"db_name,omitempty"`

	// SSLMode is the postgres sslmode (default "disable").
	SSLMode string `json:"ssl_mode,omitempty"`
}

// EmbedderConfig contains configuration for the embedding provider.
//
// Supported providers: openai, hash. The hash provider needs no API key and
// produces deterministic local vectors; it exists for offline use and tests.
type EmbedderConfig struct {
	// Provider is the embedding provider name (openai, hash).
	Provider string `json:"provider"`

	// APIKey is the API key for the embedding provider.
	APIKey string `json:"api_key,omitempty"`

	// Model is the embedding model name.
	Model string `json:"model,omitempty"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `json:"base_url,omitempty"`

	// Dimensions is the embedding vector dimension.
	Dimensions int `json:"dimensions,omitempty"`
}

// LLMConfig contains configuration for the LLM provider.
//
// Supported providers: openai (and any OpenAI-compatible endpoint via
// BaseURL).
type LLMConfig struct {
	// Provider is the LLM provider name.
	Provider string `json:"provider"`

	// APIKey is the API key for the LLM provider.
	APIKey string `json:"api_key"`

	// Model is the model name to use.
	Model string `json:"model,omitempty"`

	// BaseURL overrides the provider's default API endpoint.
	BaseURL string `json:"base_url,omitempty"`
}

// ServerConfig contains HTTP server configuration.
type ServerConfig struct {
	// Addr is the listen address (default "127.0.0.1:7700").
	Addr string `json:"addr,omitempty"`

	// APIKey, when non-empty, is required in the X-API-Key header of
	// every request.
	APIKey string `json:"api_key,omitempty"`

	// LatencyBudgetMs is the target search latency reported by stats
	// (default 500).
	LatencyBudgetMs int `json:"latency_budget_ms,omitempty"`
}

// SearchConfig contains retrieval tuning parameters. Zero values select
// the defaults.
type SearchConfig struct {
	// RRFK is the reciprocal rank fusion smoothing constant (default 60).
	RRFK int `json:"rrf_k,omitempty"`

	// DuplicateThreshold is the near-duplicate cosine similarity cutoff
	// for idempotent stores (default 0.95).
	DuplicateThreshold float64 `json:"duplicate_threshold,omitempty"`

	// DiversityThreshold is the redundancy cutoff for result diversity
	// (default 0.92).
	DiversityThreshold float64 `json:"diversity_threshold,omitempty"`

	// DecayRate is the Ebbinghaus decay rate (default 0.1).
	DecayRate float64 `json:"decay_rate,omitempty"`

	// ReinforcementFactor is the access reinforcement factor (default 0.3).
	ReinforcementFactor float64 `json:"reinforcement_factor,omitempty"`
}

// LoadConfigFromEnv loads configuration from environment variables.
//
// The function:
//  1. Searches for a .env file (up to 5 directory levels up)
//  2. Loads environment variables from the found file
//  3. Parses environment variables into a Config struct
//
// Supported environment variables:
//   - DATABASE_PROVIDER (sqlite, postgres, mysql)
//   - SQLITE_PATH, GRAPH_SQLITE_PATH
//   - POSTGRES_HOST, POSTGRES_PORT, POSTGRES_USER, POSTGRES_PASSWORD,
//     POSTGRES_DATABASE, POSTGRES_SSLMODE
//   - MYSQL_HOST, MYSQL_PORT, MYSQL_USER, MYSQL_PASSWORD, MYSQL_DATABASE
//   - EMBEDDING_PROVIDER, EMBEDDING_API_KEY, EMBEDDING_MODEL,
//     EMBEDDING_BASE_URL, EMBEDDING_DIMENSIONS
//   - LLM_PROVIDER, LLM_API_KEY, LLM_MODEL, LLM_BASE_URL
//   - ENGRAM_ADDR, ENGRAM_API_KEY, ENGRAM_LATENCY_BUDGET_MS
func LoadConfigFromEnv() (*Config, error) {
	if envPath, found := FindEnvFile(); found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	provider := getEnvOrDefault("DATABASE_PROVIDER", "sqlite")

	database := DatabaseConfig{
		Provider:  provider,
		GraphPath: getEnvOrDefault("GRAPH_SQLITE_PATH", ""),
	}

	switch provider {
	case "postgres":
		port, _ := strconv.Atoi(getEnvOrDefault("POSTGRES_PORT", "5432"))
		database.Host = getEnvOrDefault("POSTGRES_HOST", "localhost")
		database.Port = port
		database.User = getEnvOrDefault("POSTGRES_USER", "postgres")
		database.Password = os.Getenv("POSTGRES_PASSWORD")
		database.DBName = getEnvOrDefault("POSTGRES_DATABASE", "engram")
		database.SSLMode = getEnvOrDefault("POSTGRES_SSLMODE", "disable")
	case "mysql":
		port, _ := strconv.Atoi(getEnvOrDefault("MYSQL_PORT", "3306"))
		database.Host = getEnvOrDefault("MYSQL_HOST", "127.0.0.1")
		database.Port = port
		database.User = getEnvOrDefault("MYSQL_USER", "root")
		database.Password = os.Getenv("MYSQL_PASSWORD")
		database.DBName = getEnvOrDefault("MYSQL_DATABASE", "engram")
	default:
		database.Path = getEnvOrDefault("SQLITE_PATH", "./engram.db")
	}

	dims, _ := strconv.Atoi(getEnvOrDefault("EMBEDDING_DIMENSIONS", "0"))
	embedder := EmbedderConfig{
		Provider:   getEnvOrDefault("EMBEDDING_PROVIDER", "openai"),
		APIKey:     os.Getenv("EMBEDDING_API_KEY"),
		Model:      os.Getenv("EMBEDDING_MODEL"),
		BaseURL:    os.Getenv("EMBEDDING_BASE_URL"),
		Dimensions: dims,
	}

	config := &Config{
		Database: database,
		Embedder: embedder,
		Server: ServerConfig{
			Addr:            getEnvOrDefault("ENGRAM_ADDR", "127.0.0.1:7700"),
			APIKey:          os.Getenv("ENGRAM_API_KEY"),
			LatencyBudgetMs: atoiOrDefault("ENGRAM_LATENCY_BUDGET_MS", 500),
		},
	}

	if apiKey := os.Getenv("LLM_API_KEY"); apiKey != "" {
		config.LLM = &LLMConfig{
			Provider: getEnvOrDefault("LLM_PROVIDER", "openai"),
			APIKey:   apiKey,
			Model:    getEnvOrDefault("LLM_MODEL", "gpt-4o-mini"),
			BaseURL:  os.Getenv("LLM_BASE_URL"),
		}
	}

	return config, nil
}

// LoadConfigFromJSON loads configuration from a JSON file.
func LoadConfigFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, NewServiceError("LoadConfigFromJSON", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, NewServiceError("LoadConfigFromJSON", err)
	}

	return &config, nil
}

// Validate validates the configuration.
//
// The database and embedder providers must be recognized, and server-based
// database providers must name a database.
func (c *Config) Validate() error {
	switch c.Database.Provider {
	case "sqlite":
	case "postgres", "mysql":
		if c.Database.DBName == "" {
			return NewServiceError("Validate", ErrInvalidConfig)
		}
	default:
		return NewServiceError("Validate", ErrInvalidConfig)
	}

	switch c.Embedder.Provider {
	case "openai":
		if c.Embedder.APIKey == "" {
			return NewServiceError("Validate", ErrInvalidConfig)
		}
	case "hash":
	default:
		return NewServiceError("Validate", ErrInvalidConfig)
	}

	return nil
}

// getEnvOrDefault gets an environment variable or returns the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// atoiOrDefault parses an integer environment variable, falling back on the
// default for missing or malformed values.
func atoiOrDefault(key string, defaultValue int) int {
	value, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return defaultValue
	}
	return value
}

// FindEnvFile searches for a .env file in the current directory and up to 5
// directory levels up. Returns the path and whether one was found.
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", false
}
