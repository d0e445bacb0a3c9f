package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/kailas-cloud/askfolio/internal/domain"
)

func validConfig() Config {
	cfg := Config{
		Embedding: EmbeddingConfig{Provider: ProviderHashing},
		Index:     IndexConfig{Backend: BackendMemory},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_OpenAIRequiresAPIKey(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Provider = ProviderOpenAI

	err := cfg.Validate()
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}

	cfg.Embedding.APIKey = "sk-test"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error with api key: %v", err)
	}
}

func TestValidate_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"port", func(c *Config) { c.HTTP.Port = 70000 }},
		{"provider", func(c *Config) { c.Embedding.Provider = "cohere" }},
		{"temperature high", func(c *Config) { c.Completion.Temperature = 2.5 }},
		{"temperature negative", func(c *Config) { c.Completion.Temperature = -0.1 }},
		{"max tokens", func(c *Config) { c.Completion.MaxTokens = -1 }},
		{"overlap equals size", func(c *Config) { c.Chunking.ChunkOverlap = c.Chunking.ChunkSize }},
		{"negative overlap", func(c *Config) { c.Chunking.ChunkOverlap = -1 }},
		{"summary overlap", func(c *Config) { c.Summary.ChunkOverlap = 500 }},
		{"backend", func(c *Config) { c.Index.Backend = "faiss" }},
		{"redis without addrs", func(c *Config) { c.Index.Backend = BackendRedis }},
		{"cache without addrs", func(c *Config) { c.Embedding.Cache.Enabled = true }},
		{"metric", func(c *Config) { c.Index.Metric = "dot" }},
		{"retrieval mode", func(c *Config) { c.Retrieval.Mode = "hybrid" }},
		{"ingest mode", func(c *Config) { c.Ingest.Mode = "append" }},
		{"duplicate collection", func(c *Config) {
			c.Collections = append(c.Collections, CollectionConfig{Name: "cv"})
		}},
		{"unnamed collection", func(c *Config) {
			c.Collections = []CollectionConfig{{Header: "=== X ==="}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, domain.ErrConfig) {
				t.Fatalf("expected ErrConfig, got %v", err)
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 8000 {
		t.Errorf("expected Port=8000, got %d", cfg.HTTP.Port)
	}
	if cfg.Chunking.ChunkSize != 1000 || cfg.Chunking.ChunkOverlap != 200 {
		t.Errorf("expected chunking 1000/200, got %d/%d", cfg.Chunking.ChunkSize, cfg.Chunking.ChunkOverlap)
	}
	if cfg.Summary.ChunkSize != 200 || cfg.Summary.ChunkOverlap != 0 {
		t.Errorf("expected summary chunking 200/0, got %d/%d", cfg.Summary.ChunkSize, cfg.Summary.ChunkOverlap)
	}
	if cfg.Retrieval.TopK != 5 {
		t.Errorf("expected TopK=5, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Ingest.Workers != 5 {
		t.Errorf("expected Workers=5, got %d", cfg.Ingest.Workers)
	}
	if cfg.Ingest.Mode != IngestIncremental {
		t.Errorf("expected incremental ingest, got %q", cfg.Ingest.Mode)
	}
	if len(cfg.Collections) != 2 || cfg.Collections[0].Name != "cv" || cfg.Collections[1].Name != "github" {
		t.Errorf("unexpected default collections: %+v", cfg.Collections)
	}
	if cfg.Collections[0].Header != "=== CV & Personal Info ===" {
		t.Errorf("unexpected cv header: %q", cfg.Collections[0].Header)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{Port: 9000, ReadTimeoutSec: 30},
		Chunking: ChunkingConfig{ChunkSize: 500, ChunkOverlap: 0},
		Index:    IndexConfig{Backend: BackendRedis, Metric: "cosine"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.Port != 9000 || cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("http overridden: %+v", cfg.HTTP)
	}
	if cfg.Chunking.ChunkSize != 500 || cfg.Chunking.ChunkOverlap != 0 {
		t.Errorf("chunking overridden: %+v", cfg.Chunking)
	}
	if cfg.Index.Backend != BackendRedis || cfg.Index.Metric != "cosine" {
		t.Errorf("index overridden: %+v", cfg.Index)
	}
}

func TestApplyDefaults_HashingDimensions(t *testing.T) {
	cfg := Config{Embedding: EmbeddingConfig{Provider: ProviderHashing}}
	cfg.ApplyDefaults()
	if cfg.Embedding.Dimensions != 256 {
		t.Errorf("expected 256 dims for hashing, got %d", cfg.Embedding.Dimensions)
	}
}

func TestParse_ExpandsEnv(t *testing.T) {
	t.Setenv("ASKFOLIO_TEST_KEY", "sk-from-env")

	data := []byte(`
http:
  port: ${ASKFOLIO_TEST_PORT:-8123}
embedding:
  provider: openai
  api_key: ${ASKFOLIO_TEST_KEY}
index:
  backend: memory
collections:
  - name: cv
    header: "=== CV ==="
`)
	cfg, err := Parse(data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.HTTP.Port != 8123 {
		t.Errorf("expected default port 8123, got %d", cfg.HTTP.Port)
	}
	if cfg.Embedding.APIKey != "sk-from-env" {
		t.Errorf("expected api key from env, got %q", cfg.Embedding.APIKey)
	}
	if len(cfg.Collections) != 1 {
		t.Errorf("explicit collections must replace defaults, got %+v", cfg.Collections)
	}
	if col, ok := cfg.Collection("cv"); !ok || col.Header != "=== CV ===" {
		t.Errorf("Collection(cv) = %+v, %v", col, ok)
	}
}

func TestParse_MissingAPIKeyFails(t *testing.T) {
	_, err := Parse([]byte("embedding:\n  api_key: ${ASKFOLIO_UNSET_VAR}\n"))
	if !errors.Is(err, domain.ErrConfig) {
		t.Fatalf("expected ErrConfig, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte("embedding:\n  provider: hashing\nindex:\n  backend: memory\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Embedding.Provider != ProviderHashing {
		t.Errorf("unexpected provider %q", cfg.Embedding.Provider)
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestGetEnv(t *testing.T) {
	t.Setenv("ASKFOLIO_ENV", "")
	if got := GetEnv(); got != "local" {
		t.Errorf("expected local, got %q", got)
	}
	t.Setenv("ASKFOLIO_ENV", "prod")
	if got := GetEnv(); got != "prod" {
		t.Errorf("expected prod, got %q", got)
	}
}

func TestApplyDefaults_CompletionInheritsProviderCredentials(t *testing.T) {
	cfg := Config{Embedding: EmbeddingConfig{APIKey: "sk-emb", BaseURL: "http://proxy/v1"}}
	cfg.ApplyDefaults()
	if cfg.Completion.APIKey != "sk-emb" || cfg.Completion.BaseURL != "http://proxy/v1" {
		t.Errorf("completion = %+v", cfg.Completion)
	}

	cfg = Config{
		Embedding:  EmbeddingConfig{APIKey: "sk-emb"},
		Completion: CompletionConfig{APIKey: "sk-chat"},
	}
	cfg.ApplyDefaults()
	if cfg.Completion.APIKey != "sk-chat" {
		t.Errorf("completion api key overridden: %q", cfg.Completion.APIKey)
	}
}
