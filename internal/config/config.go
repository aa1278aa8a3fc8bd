// Package config loads valkey-search configuration from defaults, YAML files
// and VALKEY_SEARCH_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Storage modes for documents in the engine.
const (
	StorageHash = "hash"
	StorageJSON = "json"
)

// Config represents the complete valkey-search configuration.
type Config struct {
	Version int           `yaml:"version" json:"version"`
	Redis   RedisConfig   `yaml:"redis" json:"redis"`
	Index   IndexConfig   `yaml:"index" json:"index"`
	Search  SearchConfig  `yaml:"search" json:"search"`
	Write   WriteConfig   `yaml:"write" json:"write"`
	Connect ConnectConfig `yaml:"connect" json:"connect"`
	Logging LoggingConfig `yaml:"logging" json:"logging"`
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`
	Watch   WatchConfig   `yaml:"watch" json:"watch"`
}

// RedisConfig configures the connection to the search engine.
type RedisConfig struct {
	Addr         string        `yaml:"addr" json:"addr"`
	Username     string        `yaml:"username" json:"username"`
	Password     string        `yaml:"password" json:"-"`
	DB           int           `yaml:"db" json:"db"`
	TLS          bool          `yaml:"tls" json:"tls"`
	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
}

// IndexConfig configures the per-workspace vector index.
type IndexConfig struct {
	// Prefix is prepended to the workspace hash to form the index name.
	Prefix string `yaml:"prefix" json:"prefix"`

	// StorageMode is "hash" (HSET) or "json" (JSON.SET, needs RedisJSON).
	StorageMode string `yaml:"storage_mode" json:"storage_mode"`

	// VectorSize must match the embedder's output dimension.
	VectorSize int `yaml:"vector_size" json:"vector_size"`

	// DistanceMetric is COSINE, L2 or IP.
	DistanceMetric string `yaml:"distance_metric" json:"distance_metric"`

	// Algorithm is HNSW or FLAT.
	Algorithm string `yaml:"algorithm" json:"algorithm"`

	HNSWM              int `yaml:"hnsw_m" json:"hnsw_m"`
	HNSWEFConstruction int `yaml:"hnsw_ef_construction" json:"hnsw_ef_construction"`

	// MinSegmentDepth is the number of path segment attributes created
	// up front. Deeper paths extend the schema on demand.
	MinSegmentDepth int `yaml:"min_segment_depth" json:"min_segment_depth"`
}

// SearchConfig holds search defaults applied when a caller passes zero values.
type SearchConfig struct {
	MinScore   float64 `yaml:"min_score" json:"min_score"`
	MaxResults int     `yaml:"max_results" json:"max_results"`
}

// WriteConfig tunes upsert and delete batching.
type WriteConfig struct {
	BatchSize int `yaml:"batch_size" json:"batch_size"`
	Workers   int `yaml:"workers" json:"workers"`
}

// ConnectConfig controls the initial connection retry and the circuit breaker
// around engine commands.
type ConnectConfig struct {
	Retries         int           `yaml:"retries" json:"retries"`
	RetryDelay      time.Duration `yaml:"retry_delay" json:"retry_delay"`
	BreakerFailures int           `yaml:"breaker_failures" json:"breaker_failures"`
	BreakerReset    time.Duration `yaml:"breaker_reset" json:"breaker_reset"`
}

// LoggingConfig configures structured logging.
type LoggingConfig struct {
	Level     string `yaml:"level" json:"level"`
	FilePath  string `yaml:"file_path" json:"file_path"`
	MaxSizeMB int    `yaml:"max_size_mb" json:"max_size_mb"`
	MaxFiles  int    `yaml:"max_files" json:"max_files"`
}

// MetricsConfig configures the Prometheus endpoint. Empty Addr disables it.
type MetricsConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// WatchConfig configures the workspace watcher.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce" json:"debounce"`
	Exclude  []string      `yaml:"exclude" json:"exclude"`
	// SkipGitignore stops the watcher from honoring .gitignore files.
	SkipGitignore bool `yaml:"skip_gitignore" json:"skip_gitignore"`
}

// defaultWatchExclude are directory names the watcher never descends into.
var defaultWatchExclude = []string{".git", "node_modules", "vendor", "dist", "build", "__pycache__"}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Redis: RedisConfig{
			Addr:         "localhost:6379",
			DialTimeout:  5 * time.Second,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Index: IndexConfig{
			Prefix:             "ws",
			StorageMode:        StorageHash,
			VectorSize:         1536,
			DistanceMetric:     "COSINE",
			Algorithm:          "HNSW",
			HNSWM:              16,
			HNSWEFConstruction: 200,
			MinSegmentDepth:    5,
		},
		Search: SearchConfig{
			MinScore:   0.4,
			MaxResults: 50,
		},
		Write: WriteConfig{
			BatchSize: 100,
			Workers:   4,
		},
		Connect: ConnectConfig{
			Retries:         5,
			RetryDelay:      2 * time.Second,
			BreakerFailures: 5,
			BreakerReset:    30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:     "info",
			MaxSizeMB: 10,
			MaxFiles:  5,
		},
		Watch: WatchConfig{
			Debounce: 500 * time.Millisecond,
			Exclude:  append([]string(nil), defaultWatchExclude...),
		},
	}
}

// GetUserConfigPath returns the path to the user configuration file:
//   - $XDG_CONFIG_HOME/valkey-search/config.yaml (if XDG_CONFIG_HOME is set)
//   - ~/.config/valkey-search/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "valkey-search", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "valkey-search", "config.yaml")
	}
	return filepath.Join(home, ".config", "valkey-search", "config.yaml")
}

// Load loads configuration for the workspace in dir. Precedence, lowest first:
//  1. Hardcoded defaults
//  2. User config (~/.config/valkey-search/config.yaml)
//  3. Project config (.valkey-search.yaml in dir)
//  4. Environment variables (VALKEY_SEARCH_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	userPath := GetUserConfigPath()
	if fileExists(userPath) {
		if err := cfg.loadYAML(userPath); err != nil {
			return nil, fmt.Errorf("failed to load user config: %w", err)
		}
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadFile loads defaults plus one explicit YAML file, then env overrides.
func LoadFile(path string) (*Config, error) {
	cfg := NewConfig()
	if err := cfg.loadYAML(path); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromFile attempts to load .valkey-search.yaml or .valkey-search.yml.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{".valkey-search.yaml", ".valkey-search.yml"} {
		path := filepath.Join(dir, name)
		if fileExists(path) {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	// Redis
	if other.Redis.Addr != "" {
		c.Redis.Addr = other.Redis.Addr
	}
	if other.Redis.Username != "" {
		c.Redis.Username = other.Redis.Username
	}
	if other.Redis.Password != "" {
		c.Redis.Password = other.Redis.Password
	}
	if other.Redis.DB != 0 {
		c.Redis.DB = other.Redis.DB
	}
	if other.Redis.TLS {
		c.Redis.TLS = true
	}
	if other.Redis.DialTimeout != 0 {
		c.Redis.DialTimeout = other.Redis.DialTimeout
	}
	if other.Redis.ReadTimeout != 0 {
		c.Redis.ReadTimeout = other.Redis.ReadTimeout
	}
	if other.Redis.WriteTimeout != 0 {
		c.Redis.WriteTimeout = other.Redis.WriteTimeout
	}

	// Index
	if other.Index.Prefix != "" {
		c.Index.Prefix = other.Index.Prefix
	}
	if other.Index.StorageMode != "" {
		c.Index.StorageMode = other.Index.StorageMode
	}
	if other.Index.VectorSize != 0 {
		c.Index.VectorSize = other.Index.VectorSize
	}
	if other.Index.DistanceMetric != "" {
		c.Index.DistanceMetric = other.Index.DistanceMetric
	}
	if other.Index.Algorithm != "" {
		c.Index.Algorithm = other.Index.Algorithm
	}
	if other.Index.HNSWM != 0 {
		c.Index.HNSWM = other.Index.HNSWM
	}
	if other.Index.HNSWEFConstruction != 0 {
		c.Index.HNSWEFConstruction = other.Index.HNSWEFConstruction
	}
	if other.Index.MinSegmentDepth != 0 {
		c.Index.MinSegmentDepth = other.Index.MinSegmentDepth
	}

	// Search. A zero min score cannot be expressed in YAML; use the env var.
	if other.Search.MinScore != 0 {
		c.Search.MinScore = other.Search.MinScore
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}

	// Write
	if other.Write.BatchSize != 0 {
		c.Write.BatchSize = other.Write.BatchSize
	}
	if other.Write.Workers != 0 {
		c.Write.Workers = other.Write.Workers
	}

	// Connect
	if other.Connect.Retries != 0 {
		c.Connect.Retries = other.Connect.Retries
	}
	if other.Connect.RetryDelay != 0 {
		c.Connect.RetryDelay = other.Connect.RetryDelay
	}
	if other.Connect.BreakerFailures != 0 {
		c.Connect.BreakerFailures = other.Connect.BreakerFailures
	}
	if other.Connect.BreakerReset != 0 {
		c.Connect.BreakerReset = other.Connect.BreakerReset
	}

	// Logging
	if other.Logging.Level != "" {
		c.Logging.Level = other.Logging.Level
	}
	if other.Logging.FilePath != "" {
		c.Logging.FilePath = other.Logging.FilePath
	}
	if other.Logging.MaxSizeMB != 0 {
		c.Logging.MaxSizeMB = other.Logging.MaxSizeMB
	}
	if other.Logging.MaxFiles != 0 {
		c.Logging.MaxFiles = other.Logging.MaxFiles
	}

	if other.Metrics.Addr != "" {
		c.Metrics.Addr = other.Metrics.Addr
	}

	// Watch
	if other.Watch.Debounce != 0 {
		c.Watch.Debounce = other.Watch.Debounce
	}
	if len(other.Watch.Exclude) > 0 {
		// Merge with defaults rather than replace
		c.Watch.Exclude = append(c.Watch.Exclude, other.Watch.Exclude...)
	}
	if other.Watch.SkipGitignore {
		c.Watch.SkipGitignore = true
	}
}

// applyEnvOverrides applies VALKEY_SEARCH_* environment variable overrides.
// Malformed numeric values are ignored.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("VALKEY_SEARCH_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("VALKEY_SEARCH_USERNAME"); v != "" {
		c.Redis.Username = v
	}
	if v := os.Getenv("VALKEY_SEARCH_PASSWORD"); v != "" {
		c.Redis.Password = v
	}
	if v := os.Getenv("VALKEY_SEARCH_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil && db >= 0 {
			c.Redis.DB = db
		}
	}
	if v := os.Getenv("VALKEY_SEARCH_TLS"); v != "" {
		c.Redis.TLS = strings.ToLower(v) == "true" || v == "1"
	}
	if v := os.Getenv("VALKEY_SEARCH_STORAGE_MODE"); v != "" {
		c.Index.StorageMode = strings.ToLower(v)
	}
	if v := os.Getenv("VALKEY_SEARCH_VECTOR_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.VectorSize = n
		}
	}
	if v := os.Getenv("VALKEY_SEARCH_DISTANCE_METRIC"); v != "" {
		c.Index.DistanceMetric = strings.ToUpper(v)
	}
	if v := os.Getenv("VALKEY_SEARCH_MIN_SCORE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			c.Search.MinScore = f
		}
	}
	if v := os.Getenv("VALKEY_SEARCH_MAX_RESULTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxResults = n
		}
	}
	if v := os.Getenv("VALKEY_SEARCH_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("VALKEY_SEARCH_METRICS_ADDR"); v != "" {
		c.Metrics.Addr = v
	}
	if v := os.Getenv("VALKEY_SEARCH_WATCH_SKIP_GITIGNORE"); v != "" {
		c.Watch.SkipGitignore = strings.ToLower(v) == "true" || v == "1"
	}
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Redis.Addr == "" {
		return fmt.Errorf("redis.addr must not be empty")
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("redis.db must be non-negative, got %d", c.Redis.DB)
	}

	if c.Index.Prefix == "" || strings.ContainsAny(c.Index.Prefix, ": \t") {
		return fmt.Errorf("index.prefix must be non-empty without spaces or colons, got %q", c.Index.Prefix)
	}
	switch c.Index.StorageMode {
	case StorageHash, StorageJSON:
	default:
		return fmt.Errorf("index.storage_mode must be 'hash' or 'json', got %s", c.Index.StorageMode)
	}
	if c.Index.VectorSize <= 0 {
		return fmt.Errorf("index.vector_size must be positive, got %d", c.Index.VectorSize)
	}
	switch strings.ToUpper(c.Index.DistanceMetric) {
	case "COSINE", "L2", "IP":
	default:
		return fmt.Errorf("index.distance_metric must be COSINE, L2 or IP, got %s", c.Index.DistanceMetric)
	}
	switch strings.ToUpper(c.Index.Algorithm) {
	case "HNSW", "FLAT":
	default:
		return fmt.Errorf("index.algorithm must be HNSW or FLAT, got %s", c.Index.Algorithm)
	}
	if c.Index.MinSegmentDepth < 1 {
		return fmt.Errorf("index.min_segment_depth must be at least 1, got %d", c.Index.MinSegmentDepth)
	}

	if c.Search.MinScore < 0 || c.Search.MinScore > 1 {
		return fmt.Errorf("search.min_score must be between 0 and 1, got %f", c.Search.MinScore)
	}
	if c.Search.MaxResults <= 0 {
		return fmt.Errorf("search.max_results must be positive, got %d", c.Search.MaxResults)
	}

	if c.Write.BatchSize <= 0 {
		return fmt.Errorf("write.batch_size must be positive, got %d", c.Write.BatchSize)
	}
	if c.Write.Workers <= 0 {
		return fmt.Errorf("write.workers must be positive, got %d", c.Write.Workers)
	}

	if c.Connect.Retries < 0 {
		return fmt.Errorf("connect.retries must be non-negative, got %d", c.Connect.Retries)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be 'debug', 'info', 'warn', or 'error', got %s", c.Logging.Level)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
