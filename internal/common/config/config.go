// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App      AppConfig      `mapstructure:"app"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	VectorDB VectorDBConfig `mapstructure:"vectordb"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Guard    GuardConfig    `mapstructure:"guard"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address        string `mapstructure:"address"`
	AllowedOrigin  string `mapstructure:"allowed_origin"`
	RequestTimeout int    `mapstructure:"request_timeout"` // milliseconds
}

type DatabaseConfig struct {
	Redis RedisConfig `mapstructure:"redis"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// VectorDBConfig holds the qdrant connection plus the embeddings endpoint the
// index uses to turn text into vectors.
type VectorDBConfig struct {
	URL                       string `mapstructure:"url"`
	APIKey                    string `mapstructure:"api_key"`
	ProductsCollection        string `mapstructure:"products_collection"`
	TroubleshootingCollection string `mapstructure:"troubleshooting_collection"`
	VectorSize                int    `mapstructure:"vector_size"`

	Embeddings struct {
		BaseURL string `mapstructure:"base_url"`
		Timeout int    `mapstructure:"timeout"` // milliseconds
	} `mapstructure:"embeddings"`
}

type LLMConfig struct {
	APIKey     string `mapstructure:"api_key"`
	Model      string `mapstructure:"model"`
	MaxRetries int    `mapstructure:"max_retries"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
}

type CatalogConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// CacheConfig holds TTLs for the response cache, in seconds.
type CacheConfig struct {
	ResponseTTL int `mapstructure:"response_ttl"`
	NoMatchTTL  int `mapstructure:"no_match_ttl"`
}

// GuardConfig controls the domain scope guard.
type GuardConfig struct {
	// LLMCheckEnabled turns on the secondary LLM-backed scope check.
	// The heuristic deny-list always runs first; this is off by default.
	LLMCheckEnabled bool `mapstructure:"llm_check_enabled"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

func validateConfig(cfg *Config) error {
	if cfg.Server.Address == "" {
		return fmt.Errorf("server.address is required")
	}
	if cfg.Catalog.DataDir == "" {
		return fmt.Errorf("catalog.data_dir is required")
	}
	return nil
}
