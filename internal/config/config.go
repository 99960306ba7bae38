// Package config provides configuration loading and structs for the dreamcache server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Vector    VectorConfig    `yaml:"vector"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Generator GeneratorConfig `yaml:"generator"`
	Cache     CacheConfig     `yaml:"cache"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig selects and configures the content store backend.
type StorageConfig struct {
	// Backend is one of "sqlite", "filesystem", "gcs".
	Backend      string `yaml:"backend"`
	DatabasePath string `yaml:"database_path"`
	Directory    string `yaml:"directory"`
	Bucket       string `yaml:"bucket"`
	// WatchDirectory enables the fsnotify repair watcher; filesystem backend only.
	WatchDirectory bool `yaml:"watch_directory"`
}

// VectorConfig selects and configures the vector index backend.
type VectorConfig struct {
	// Backend is one of "memory", "pinecone".
	Backend   string         `yaml:"backend"`
	IndexPath string         `yaml:"index_path"`
	Pinecone  PineconeConfig `yaml:"pinecone"`
}

// PineconeConfig holds Pinecone connection settings. APIKey falls back to the
// PINECONE_API_KEY environment variable when empty.
type PineconeConfig struct {
	APIKey    string `yaml:"api_key"`
	IndexHost string `yaml:"index_host"`
	Namespace string `yaml:"namespace"`
}

// ResolveAPIKey returns the configured key or the PINECONE_API_KEY env value.
func (p *PineconeConfig) ResolveAPIKey() string {
	if p.APIKey != "" {
		return p.APIKey
	}
	return os.Getenv("PINECONE_API_KEY")
}

// EmbeddingConfig holds ONNX text-encoder settings.
type EmbeddingConfig struct {
	ModelPath  string `yaml:"model_path"`
	Dimensions int    `yaml:"dimensions"`
	MaxTokens  int    `yaml:"max_tokens"`
	CacheSize  int    `yaml:"cache_size"`
}

// GeneratorConfig holds the diffusion inference endpoint settings.
type GeneratorConfig struct {
	Endpoint       string `yaml:"endpoint"`
	AuthToken      string `yaml:"auth_token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// CacheConfig holds retrieval and reuse tuning.
type CacheConfig struct {
	// Threshold is the similarity above which a cached artifact is reused
	// instead of generating a new one.
	Threshold       float64 `yaml:"threshold"`
	SuggestTopK     int     `yaml:"suggest_top_k"`
	ImageTopK       int     `yaml:"image_top_k"`
	MinPromptLength int     `yaml:"min_prompt_length"`
	MaxSuggestions  int     `yaml:"max_suggestions"`
	// PromptIndexPath enables the keyword prompt index when non-empty.
	PromptIndexPath string `yaml:"prompt_index_path"`
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	cfg.Storage.Directory = expandPath(cfg.Storage.Directory, configDir)
	cfg.Vector.IndexPath = expandPath(cfg.Vector.IndexPath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)
	if cfg.Cache.PromptIndexPath != "" {
		cfg.Cache.PromptIndexPath = expandPath(cfg.Cache.PromptIndexPath, configDir)
	}

	return &cfg, nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
