// Package config loads and persists fototeca's configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultDataDir is the directory fototeca keeps its state in.
	DefaultDataDir = ".fototeca"
	// DefaultDBFile is the catalog database filename.
	DefaultDBFile = "catalog.db"
	// DefaultConfigFile is the config filename inside the data directory.
	DefaultConfigFile = "config.yaml"
)

// Config holds the application configuration.
type Config struct {
	// DataDir is where fototeca stores its database and index.
	DataDir string `mapstructure:"data_dir" yaml:"data_dir,omitempty"`
	// DBPath is the path to the SQLite catalog database.
	DBPath string `mapstructure:"db_path" yaml:"db_path,omitempty"`

	Library   LibraryConfig   `mapstructure:"library" yaml:"library,omitempty"`
	Embedding EmbeddingConfig `mapstructure:"embedding" yaml:"embedding,omitempty"`
	Search    SearchConfig    `mapstructure:"search" yaml:"search,omitempty"`
	Server    ServerConfig    `mapstructure:"server" yaml:"server,omitempty"`
	Watch     WatchConfig     `mapstructure:"watch" yaml:"watch,omitempty"`
}

// LibraryConfig describes the photo library being cataloged.
type LibraryConfig struct {
	// Root is the directory tree sync passes reconcile against.
	Root string `mapstructure:"root" yaml:"root,omitempty"`
	// IgnorePatterns are gitignore-style patterns excluded from scans.
	IgnorePatterns []string `mapstructure:"ignore_patterns" yaml:"ignore_patterns,omitempty"`
}

// EmbeddingConfig holds embedding sidecar settings.
type EmbeddingConfig struct {
	// URL is the CLIP sidecar base URL.
	URL string `mapstructure:"url" yaml:"url,omitempty"`
	// Model is the embedding model name.
	Model string `mapstructure:"model" yaml:"model,omitempty"`
	// Dimensions is the embedding vector length.
	Dimensions int `mapstructure:"dimensions" yaml:"dimensions,omitempty"`
	// CacheSize is the max number of cached embeddings.
	CacheSize int `mapstructure:"cache_size" yaml:"cache_size,omitempty"`
	// TimeoutSeconds bounds each model call; expiry is a per-file failure
	// during sync, not a pass abort.
	TimeoutSeconds int `mapstructure:"timeout_seconds" yaml:"timeout_seconds,omitempty"`
}

// SearchConfig selects the ranking index.
type SearchConfig struct {
	// Index is "exhaustive" (exact, default) or "veclite" (HNSW).
	Index string `mapstructure:"index" yaml:"index,omitempty"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `mapstructure:"host" yaml:"host,omitempty"`
	Port int    `mapstructure:"port" yaml:"port,omitempty"`
	// AllowedOrigins are browser origins granted CORS access.
	AllowedOrigins []string `mapstructure:"allowed_origins" yaml:"allowed_origins,omitempty"`
	// MCPEnabled serves the MCP tools alongside the HTTP API.
	MCPEnabled bool `mapstructure:"mcp_enabled" yaml:"mcp_enabled,omitempty"`
}

// WatchConfig holds library watching settings.
type WatchConfig struct {
	// DebounceSeconds is how long to coalesce filesystem events before a
	// sync pass.
	DebounceSeconds int `mapstructure:"debounce_seconds" yaml:"debounce_seconds,omitempty"`
}

// DefaultConfig returns the default configuration rooted at library.
func DefaultConfig(library string) *Config {
	return &Config{
		DataDir: DefaultDataDir,
		DBPath:  filepath.Join(DefaultDataDir, DefaultDBFile),
		Library: LibraryConfig{
			Root: library,
		},
		Embedding: EmbeddingConfig{
			URL:            "http://localhost:8060",
			Model:          "clip-ViT-B-32",
			Dimensions:     512,
			CacheSize:      2048,
			TimeoutSeconds: 30,
		},
		Search: SearchConfig{
			Index: "exhaustive",
		},
		Server: ServerConfig{
			Host: "localhost",
			Port: 8402,
			AllowedOrigins: []string{
				"http://localhost:8080",
				"http://127.0.0.1:8080",
			},
			MCPEnabled: false,
		},
		Watch: WatchConfig{
			DebounceSeconds: 2,
		},
	}
}

// Load reads configuration from baseDir/.fototeca/config.yaml, applying
// defaults and FOTOTECA_* environment overrides.
func Load(baseDir string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(filepath.Join(baseDir, DefaultDataDir, DefaultConfigFile))
	v.SetConfigType("yaml")
	v.SetEnvPrefix("FOTOTECA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	defaults := DefaultConfig(baseDir)
	v.SetDefault("data_dir", filepath.Join(baseDir, DefaultDataDir))
	v.SetDefault("db_path", filepath.Join(baseDir, DefaultDataDir, DefaultDBFile))
	v.SetDefault("library.root", defaults.Library.Root)
	v.SetDefault("library.ignore_patterns", defaults.Library.IgnorePatterns)
	v.SetDefault("embedding.url", defaults.Embedding.URL)
	v.SetDefault("embedding.model", defaults.Embedding.Model)
	v.SetDefault("embedding.dimensions", defaults.Embedding.Dimensions)
	v.SetDefault("embedding.cache_size", defaults.Embedding.CacheSize)
	v.SetDefault("embedding.timeout_seconds", defaults.Embedding.TimeoutSeconds)
	v.SetDefault("search.index", defaults.Search.Index)
	v.SetDefault("server.host", defaults.Server.Host)
	v.SetDefault("server.port", defaults.Server.Port)
	v.SetDefault("server.allowed_origins", defaults.Server.AllowedOrigins)
	v.SetDefault("server.mcp_enabled", defaults.Server.MCPEnabled)
	v.SetDefault("watch.debounce_seconds", defaults.Watch.DebounceSeconds)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Save writes the configuration as YAML into its data directory.
func (c *Config) Save() error {
	if err := os.MkdirAll(c.DataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	path := filepath.Join(c.DataDir, DefaultConfigFile)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
