package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/askfolio/internal/domain"
)

// Config holds the askfolio configuration.
type Config struct {
	HTTP        HTTPConfig         `yaml:"http"`
	Logging     LoggingConfig      `yaml:"logging"`
	Auth        AuthConfig         `yaml:"auth"`
	Database    DatabaseConfig     `yaml:"database"`
	Embedding   EmbeddingConfig    `yaml:"embedding"`
	Completion  CompletionConfig   `yaml:"completion"`
	Chunking    ChunkingConfig     `yaml:"chunking"`
	Index       IndexConfig        `yaml:"index"`
	Collections []CollectionConfig `yaml:"collections"`
	Retrieval   RetrievalConfig    `yaml:"retrieval"`
	Ingest      IngestConfig       `yaml:"ingest"`
	Summary     SummaryConfig      `yaml:"summary"`
	Prompt      PromptConfig       `yaml:"prompt"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings. Empty means auth is off.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int      `yaml:"port"`
	ReadTimeoutSec  int      `yaml:"read_timeout_sec"`
	WriteTimeoutSec int      `yaml:"write_timeout_sec"`
	ShutdownSec     int      `yaml:"shutdown_timeout_sec"`
	CORSOrigins     []string `yaml:"cors_origins"` // empty = "*"
}

// DatabaseConfig holds Redis connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// Embedding providers.
const (
	ProviderOpenAI  = "openai"
	ProviderHashing = "hashing"
)

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Provider          string      `yaml:"provider"` // openai | hashing
	APIKey            string      `yaml:"api_key"`
	BaseURL           string      `yaml:"base_url"`
	Model             string      `yaml:"model"`
	Dimensions        int         `yaml:"dimensions"`
	TimeoutSec        int         `yaml:"timeout_sec"`
	BatchSize         int         `yaml:"batch_size"`
	RequestsPerSecond float64     `yaml:"requests_per_second"` // 0 = unlimited
	Cache             CacheConfig `yaml:"cache"`
}

// CacheConfig holds the embedding cache settings.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLHour int  `yaml:"ttl_hours"` // 0 = no expiry
}

// CompletionConfig holds chat completion settings.
type CompletionConfig struct {
	APIKey            string  `yaml:"api_key"`  // default: embedding.api_key
	BaseURL           string  `yaml:"base_url"` // default: embedding.base_url
	Model             string  `yaml:"model"`
	Temperature       float32 `yaml:"temperature"`
	MaxTokens         int     `yaml:"max_tokens"`
	TimeoutSec        int     `yaml:"timeout_sec"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
}

// ChunkingConfig holds the ingestion splitter settings.
type ChunkingConfig struct {
	ChunkSize    int `yaml:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap"`
}

// Index backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
)

// IndexConfig selects where collection vectors live.
type IndexConfig struct {
	Backend string `yaml:"backend"` // memory | file | redis
	Dir     string `yaml:"dir"`
	Metric  string `yaml:"metric"` // l2 | cosine
}

// CollectionConfig names one searchable collection and its context header.
type CollectionConfig struct {
	Name   string `yaml:"name"`
	Header string `yaml:"header"`
	Dir    string `yaml:"dir"`
}

// Retrieval modes.
const (
	ModeRAG     = "rag"
	ModeSummary = "summary"
)

// RetrievalConfig holds query-time settings.
type RetrievalConfig struct {
	Mode             string `yaml:"mode"` // rag | summary
	TopK             int    `yaml:"top_k"`
	SearchTimeoutSec int    `yaml:"search_timeout_sec"`
	MaxContextChars  int    `yaml:"max_context_chars"` // 0 = unbounded
}

// Ingest modes.
const (
	IngestIncremental = "incremental"
	IngestRebuild     = "rebuild"
)

// IngestConfig holds the ingestion pool settings.
type IngestConfig struct {
	Mode         string `yaml:"mode"`
	Workers      int    `yaml:"workers"`
	MaxRetries   int    `yaml:"max_retries"`
	RetryDelayMs int    `yaml:"retry_delay_ms"`
}

// SummaryConfig holds summarization agent settings.
type SummaryConfig struct {
	Path         string `yaml:"path"`
	ChunkSize    int    `yaml:"chunk_size"`
	ChunkOverlap int    `yaml:"chunk_overlap"`
	Workers      int    `yaml:"workers"`
}

// PromptConfig holds the system prompt source.
type PromptConfig struct {
	SystemPromptFile string `yaml:"system_prompt_file"`
}

// Load reads configuration from a YAML file by environment name (local, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from an explicit path.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands env vars, decodes, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from ASKFOLIO_ENV, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ASKFOLIO_ENV"); env != "" {
		return env
	}
	return "local"
}

// DefaultCollections mirrors the CV and GitHub split.
func DefaultCollections() []CollectionConfig {
	return []CollectionConfig{
		{Name: "cv", Header: "=== CV & Personal Info ===", Dir: "data/cv"},
		{Name: "github", Header: "=== GitHub Projects ===", Dir: "data/github"},
	}
}

// ApplyDefaults fills empty fields with default values.
//
//nolint:gocyclo // flat list of defaults
func (c *Config) ApplyDefaults() {
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8000
	}
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = ProviderOpenAI
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
		if c.Embedding.Provider == ProviderHashing {
			c.Embedding.Dimensions = 256
		}
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 64
	}

	if c.Completion.APIKey == "" {
		c.Completion.APIKey = c.Embedding.APIKey
	}
	if c.Completion.BaseURL == "" {
		c.Completion.BaseURL = c.Embedding.BaseURL
	}
	if c.Completion.Model == "" {
		c.Completion.Model = "gpt-4o-mini"
	}
	if c.Completion.MaxTokens == 0 {
		c.Completion.MaxTokens = 1024
	}
	if c.Completion.TimeoutSec <= 0 {
		c.Completion.TimeoutSec = 60
	}

	if c.Chunking.ChunkSize == 0 {
		c.Chunking.ChunkSize = 1000
		if c.Chunking.ChunkOverlap == 0 {
			c.Chunking.ChunkOverlap = 200
		}
	}

	if c.Index.Backend == "" {
		c.Index.Backend = BackendFile
	}
	if c.Index.Dir == "" {
		c.Index.Dir = "indexes"
	}
	if c.Index.Metric == "" {
		c.Index.Metric = string(domain.MetricL2)
	}

	if len(c.Collections) == 0 {
		c.Collections = DefaultCollections()
	}

	if c.Retrieval.Mode == "" {
		c.Retrieval.Mode = ModeRAG
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 5
	}
	if c.Retrieval.SearchTimeoutSec <= 0 {
		c.Retrieval.SearchTimeoutSec = 5
	}

	if c.Ingest.Mode == "" {
		c.Ingest.Mode = IngestIncremental
	}
	if c.Ingest.Workers <= 0 {
		c.Ingest.Workers = 5
	}
	if c.Ingest.MaxRetries <= 0 {
		c.Ingest.MaxRetries = 3
	}
	if c.Ingest.RetryDelayMs <= 0 {
		c.Ingest.RetryDelayMs = 500
	}

	if c.Summary.Path == "" {
		c.Summary.Path = "data/summaries.txt"
	}
	if c.Summary.ChunkSize <= 0 {
		c.Summary.ChunkSize = 200
	}
	if c.Summary.Workers <= 0 {
		c.Summary.Workers = 5
	}
}

// Validate checks the configuration for correctness. Every failure wraps domain.ErrConfig.
//
//nolint:gocyclo // flat list of checks
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return configErr("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}

	switch c.Embedding.Provider {
	case ProviderOpenAI:
		if c.Embedding.APIKey == "" {
			return configErr("embedding.api_key is required for provider %q", ProviderOpenAI)
		}
	case ProviderHashing:
	default:
		return configErr("embedding.provider must be %q or %q, got %q",
			ProviderOpenAI, ProviderHashing, c.Embedding.Provider)
	}
	if c.Embedding.Dimensions <= 0 {
		return configErr("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.RequestsPerSecond < 0 || c.Completion.RequestsPerSecond < 0 {
		return configErr("requests_per_second must not be negative")
	}

	if c.Completion.Temperature < 0 || c.Completion.Temperature > 2 {
		return configErr("completion.temperature must be in [0, 2], got %v", c.Completion.Temperature)
	}
	if c.Completion.MaxTokens <= 0 {
		return configErr("completion.max_tokens must be positive, got %d", c.Completion.MaxTokens)
	}

	if err := validateChunking("chunking", c.Chunking.ChunkSize, c.Chunking.ChunkOverlap); err != nil {
		return err
	}
	if err := validateChunking("summary", c.Summary.ChunkSize, c.Summary.ChunkOverlap); err != nil {
		return err
	}

	switch c.Index.Backend {
	case BackendMemory, BackendFile:
	case BackendRedis:
		if len(c.Database.Addrs) == 0 {
			return configErr("database.addrs is required for index backend %q", BackendRedis)
		}
	default:
		return configErr("index.backend must be memory, file or redis, got %q", c.Index.Backend)
	}
	if c.Embedding.Cache.Enabled && len(c.Database.Addrs) == 0 {
		return configErr("database.addrs is required when embedding.cache is enabled")
	}
	if _, err := domain.ParseMetric(c.Index.Metric); err != nil {
		return fmt.Errorf("index.metric: %w", err)
	}

	seen := make(map[string]struct{}, len(c.Collections))
	for i, col := range c.Collections {
		if col.Name == "" {
			return configErr("collections[%d].name is required", i)
		}
		if _, dup := seen[col.Name]; dup {
			return configErr("collection %q declared twice", col.Name)
		}
		seen[col.Name] = struct{}{}
	}

	switch c.Retrieval.Mode {
	case ModeRAG, ModeSummary:
	default:
		return configErr("retrieval.mode must be %q or %q, got %q", ModeRAG, ModeSummary, c.Retrieval.Mode)
	}
	switch c.Ingest.Mode {
	case IngestIncremental, IngestRebuild:
	default:
		return configErr("ingest.mode must be %q or %q, got %q",
			IngestIncremental, IngestRebuild, c.Ingest.Mode)
	}
	return nil
}

// Collection returns the named collection config.
func (c *Config) Collection(name string) (CollectionConfig, bool) {
	for _, col := range c.Collections {
		if col.Name == name {
			return col, true
		}
	}
	return CollectionConfig{}, false
}

func validateChunking(section string, size, overlap int) error {
	if size <= 0 {
		return configErr("%s.chunk_size must be positive, got %d", section, size)
	}
	if overlap < 0 || overlap >= size {
		return configErr("%s.chunk_overlap must be in [0, chunk_size), got %d", section, overlap)
	}
	return nil
}

func configErr(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrConfig, fmt.Sprintf(format, args...))
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
