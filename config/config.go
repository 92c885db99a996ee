// Package config loads the service configuration from a YAML file with
// sensible defaults for local use.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the full service configuration.
type Config struct {
	Database Database `yaml:"database"`
	Redis    Redis    `yaml:"redis"`
	Provider Provider `yaml:"provider"`
	Chunking Chunking `yaml:"chunking"`
	Ingest   Ingest   `yaml:"ingest"`
}

// Database configures the SQLite registry.
type Database struct {
	Path string `yaml:"path"`
}

// Redis configures the remote vector store. An empty URL selects the
// in-memory store.
type Redis struct {
	URL string `yaml:"url"`
}

// Provider selects and configures the embedding backend.
type Provider struct {
	// Name is "openai" or "gemini".
	Name string `yaml:"name"`

	// Model overrides the provider's default embedding model.
	Model string `yaml:"model"`

	// APIKeyEnv names the environment variable holding the API key. The
	// key itself never lives in the config file.
	APIKeyEnv string `yaml:"api_key_env"`
}

// APIKey resolves the provider credential from the environment.
func (p Provider) APIKey() string {
	return os.Getenv(p.APIKeyEnv)
}

// Chunking configures the token window applied to every file.
type Chunking struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// Ingest holds the pipeline tunables.
type Ingest struct {
	CostDivisor      int    `yaml:"cost_divisor"`
	EmbedConcurrency int    `yaml:"embed_concurrency"`
	UpsertBatchSize  int    `yaml:"upsert_batch_size"`
	MaxEmbedTokens   int    `yaml:"max_embed_tokens"`
	WorkDir          string `yaml:"work_dir"`
}

// Default returns the configuration used when no file is supplied.
func Default() Config {
	return Config{
		Database: Database{Path: "codesage.db"},
		Provider: Provider{
			Name:      "openai",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Chunking: Chunking{
			ChunkSize: 1000,
			Overlap:   200,
		},
		Ingest: Ingest{
			CostDivisor:      500,
			EmbedConcurrency: 5,
			UpsertBatchSize:  100,
			MaxEmbedTokens:   8191,
		},
	}
}

// Load reads path and overlays it onto the defaults. Fields absent from the
// file keep their default values. An empty path returns the defaults as-is.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.Provider.Name {
	case "openai", "gemini":
	default:
		return fmt.Errorf("config: unknown provider %q", c.Provider.Name)
	}
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("config: chunk_size must be positive, got %d", c.Chunking.ChunkSize)
	}
	if c.Chunking.Overlap < 0 || c.Chunking.Overlap >= c.Chunking.ChunkSize {
		return fmt.Errorf("config: overlap must be in [0, chunk_size), got %d", c.Chunking.Overlap)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("config: database path is required")
	}
	return nil
}
