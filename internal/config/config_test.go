package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/ragpipe/internal/domain"
)

func validConfig() Config {
	cfg := Config{
		HTTP:        HTTPConfig{Port: 8080},
		VectorStore: VectorStoreConfig{Redis: RedisConfig{Addrs: []string{"localhost:6379"}}},
		Index:       IndexConfig{Name: "docs"},
		Embedding:   EmbeddingConfig{ProviderConfig: ProviderConfig{Model: "text-embedding-ada-002"}},
		LLM:         LLMConfig{ProviderConfig: ProviderConfig{Model: "gpt-4o-mini"}},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestValidate_OK(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{"port", func(c *Config) { c.HTTP.Port = 0 }, "http.port"},
		{"driver", func(c *Config) { c.VectorStore.Driver = "pinecone" }, "vector_store.driver"},
		{"redis addrs", func(c *Config) { c.VectorStore.Redis.Addrs = nil }, "vector_store.redis.addrs"},
		{"qdrant host", func(c *Config) { c.VectorStore.Driver = DriverQdrant }, "vector_store.qdrant.host"},
		{"index name", func(c *Config) { c.Index.Name = "" }, "index.name"},
		{"index name with colon", func(c *Config) { c.Index.Name = "docs:x" }, "index.name"},
		{"mode", func(c *Config) { c.Index.Mode = "upsert" }, "index.mode"},
		{"embedding model", func(c *Config) { c.Embedding.Model = "" }, "embedding.model"},
		{"dimension mismatch", func(c *Config) { c.Embedding.Dimensions = 768 }, "does not match"},
		{"llm model", func(c *Config) { c.LLM.Model = "" }, "llm.model"},
		{"cache without redis", func(c *Config) {
			c.VectorStore.Driver = DriverQdrant
			c.VectorStore.Qdrant.Host = "localhost"
			c.VectorStore.Redis.Addrs = nil
			c.Embedding.Cache.Enabled = true
		}, "embedding.cache"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if !errors.Is(err, domain.ErrInvalidConfiguration) {
				t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestValidate_QdrantOK(t *testing.T) {
	cfg := validConfig()
	cfg.VectorStore.Driver = DriverQdrant
	cfg.VectorStore.Redis.Addrs = nil
	cfg.VectorStore.Qdrant.Host = "localhost"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 600 {
		t.Errorf("expected WriteTimeoutSec=600, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.VectorStore.Driver != DriverRedis {
		t.Errorf("expected driver redis, got %q", cfg.VectorStore.Driver)
	}
	if cfg.VectorStore.Qdrant.Port != 6334 {
		t.Errorf("expected qdrant port 6334, got %d", cfg.VectorStore.Qdrant.Port)
	}
	if cfg.Index.Dimension != 1536 {
		t.Errorf("expected Dimension=1536, got %d", cfg.Index.Dimension)
	}
	if cfg.Index.Mode != "keep" {
		t.Errorf("expected Mode=keep, got %q", cfg.Index.Mode)
	}
	if cfg.Index.CreateTimeout() != 30*time.Second {
		t.Errorf("expected CreateTimeout=30s, got %s", cfg.Index.CreateTimeout())
	}
	if cfg.Index.UpsertBatchSize != 100 {
		t.Errorf("expected UpsertBatchSize=100, got %d", cfg.Index.UpsertBatchSize)
	}
	if cfg.Embedding.BatchSize != 128 || cfg.Embedding.Concurrency != 4 {
		t.Errorf("embedding batching = %d/%d", cfg.Embedding.BatchSize, cfg.Embedding.Concurrency)
	}
	if cfg.Retrieval.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Retrieval.TopK)
	}
	if cfg.Chunker.Size != 1000 {
		t.Errorf("expected chunker size 1000, got %d", cfg.Chunker.Size)
	}
	if cfg.Documents.Dir != "documents" {
		t.Errorf("expected documents dir, got %q", cfg.Documents.Dir)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:      HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Index:     IndexConfig{Dimension: 768, Mode: "recreate", CreateTimeoutMs: 500, UpsertBatchSize: 50},
		Retrieval: RetrievalConfig{TopK: 3},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.WriteTimeoutSec != 60 {
		t.Errorf("expected WriteTimeoutSec=60, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Index.Dimension != 768 || cfg.Index.Mode != "recreate" || cfg.Index.UpsertBatchSize != 50 {
		t.Errorf("index = %+v", cfg.Index)
	}
	if cfg.Index.CreateTimeout() != 500*time.Millisecond {
		t.Errorf("CreateTimeout = %s", cfg.Index.CreateTimeout())
	}
	if cfg.Retrieval.TopK != 3 {
		t.Errorf("TopK = %d", cfg.Retrieval.TopK)
	}
}

func TestLoadFile_ExpandsEnv(t *testing.T) {
	t.Setenv("RAGPIPE_TEST_EMBED_KEY", "sk-test")

	yml := `
http:
  port: 8080
vector_store:
  driver: qdrant
  qdrant:
    host: ${RAGPIPE_TEST_QDRANT_HOST:-qdrant.local}
index:
  name: docs
  dimension: 1024
embedding:
  model: bge-m3
  api_key: ${RAGPIPE_TEST_EMBED_KEY}
  base_url: http://localhost:11434/v1
llm:
  model: llama3
  temperature: 0.2
`
	path := filepath.Join(t.TempDir(), "test.yaml")
	if err := os.WriteFile(path, []byte(yml), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg.VectorStore.Qdrant.Host != "qdrant.local" {
		t.Errorf("default not applied: %q", cfg.VectorStore.Qdrant.Host)
	}
	if cfg.Embedding.APIKey != "sk-test" || cfg.Embedding.BaseURL != "http://localhost:11434/v1" {
		t.Errorf("embedding = %+v", cfg.Embedding)
	}
	if cfg.Index.Dimension != 1024 || cfg.LLM.Temperature != 0.2 {
		t.Errorf("cfg = %+v", cfg)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("http:\n  port: 8080\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(path); !errors.Is(err, domain.ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("RAGPIPE_TEST_SET", "value")
	got := string(expandEnvVars([]byte("a=${RAGPIPE_TEST_SET} b=${RAGPIPE_TEST_UNSET:-fallback} c=${RAGPIPE_TEST_UNSET}")))
	if got != "a=value b=fallback c=" {
		t.Errorf("expandEnvVars = %q", got)
	}
}
