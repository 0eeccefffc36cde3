package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kailas-cloud/ragpipe/internal/domain"
)

// Vector store drivers.
const (
	DriverRedis  = "redis"
	DriverQdrant = "qdrant"
)

// Config holds the ragpipe server configuration.
type Config struct {
	HTTP        HTTPConfig        `yaml:"http"`
	Logging     LoggingConfig     `yaml:"logging"`
	Auth        AuthConfig        `yaml:"auth"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Index       IndexConfig       `yaml:"index"`
	Embedding   EmbeddingConfig   `yaml:"embedding"`
	LLM         LLMConfig         `yaml:"llm"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	Documents   DocumentsConfig   `yaml:"documents"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// VectorStoreConfig selects and configures the vector index backend.
type VectorStoreConfig struct {
	Driver string       `yaml:"driver"` // redis, qdrant (default: redis)
	Redis  RedisConfig  `yaml:"redis"`
	Qdrant QdrantConfig `yaml:"qdrant"`
}

// RedisConfig holds Redis connection and HNSW settings. Addrs are also used
// by the embedding cache when the vector store is Qdrant.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
	HNSWM            int      `yaml:"hnsw_m"`
	HNSWEFConstruct  int      `yaml:"hnsw_ef_construction"`
}

// QdrantConfig holds Qdrant gRPC settings.
type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	UseTLS bool   `yaml:"use_tls"`
	APIKey string `yaml:"api_key"`
}

// IndexConfig holds index lifecycle and write settings.
type IndexConfig struct {
	Name                string `yaml:"name"`
	Dimension           int    `yaml:"dimension"`
	Mode                string `yaml:"mode"` // keep, recreate (default: keep)
	CreateTimeoutMs     int    `yaml:"create_timeout_ms"`
	UpsertBatchSize     int    `yaml:"upsert_batch_size"`
	UpsertConcurrency   int    `yaml:"upsert_concurrency"`
	DocumentConcurrency int    `yaml:"document_concurrency"`
}

// CreateTimeout returns the index creation bound.
func (c IndexConfig) CreateTimeout() time.Duration {
	return time.Duration(c.CreateTimeoutMs) * time.Millisecond
}

// ProviderConfig holds settings shared by OpenAI-compatible providers.
type ProviderConfig struct {
	Provider          string  `yaml:"provider"`
	BaseURL           string  `yaml:"base_url"`
	APIKey            string  `yaml:"api_key"`
	Model             string  `yaml:"model"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unthrottled
	Burst             int     `yaml:"burst"`
}

// EmbeddingConfig holds embedding provider and batching settings.
type EmbeddingConfig struct {
	ProviderConfig `yaml:",inline"`
	// Dimensions is sent to the provider only when positive.
	Dimensions  int         `yaml:"dimensions"`
	BatchSize   int         `yaml:"batch_size"`
	Concurrency int         `yaml:"concurrency"`
	Cache       CacheConfig `yaml:"cache"`
	// Instructions are prepended to inputs for instruction-tuned models.
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
}

// CacheConfig holds embedding cache settings.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLSec  int  `yaml:"ttl_sec"` // 0 = no expiry
}

// LLMConfig holds language model settings.
type LLMConfig struct {
	ProviderConfig `yaml:",inline"`
	Temperature    float32 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
}

// RetrievalConfig holds query-time settings.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// ChunkerConfig holds chunking settings.
type ChunkerConfig struct {
	Size int `yaml:"size"`
}

// DocumentsConfig locates the corpus.
type DocumentsConfig struct {
	Dir        string   `yaml:"dir"`
	Extensions []string `yaml:"extensions"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads, expands, defaults and validates one config file.
func LoadFile(configPath string) (Config, error) {
	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
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

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		// setup ingests the whole corpus inside one request
		c.HTTP.WriteTimeoutSec = 600
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.VectorStore.Driver == "" {
		c.VectorStore.Driver = DriverRedis
	}
	if c.VectorStore.Redis.ReadinessTimeout <= 0 {
		c.VectorStore.Redis.ReadinessTimeout = 10
	}
	if c.VectorStore.Redis.HNSWM <= 0 {
		c.VectorStore.Redis.HNSWM = 16
	}
	if c.VectorStore.Redis.HNSWEFConstruct <= 0 {
		c.VectorStore.Redis.HNSWEFConstruct = 200
	}
	if c.VectorStore.Qdrant.Port <= 0 {
		c.VectorStore.Qdrant.Port = 6334
	}
	if c.Index.Dimension <= 0 {
		c.Index.Dimension = 1536
	}
	if c.Index.Mode == "" {
		c.Index.Mode = "keep"
	}
	if c.Index.CreateTimeoutMs <= 0 {
		c.Index.CreateTimeoutMs = 30_000
	}
	if c.Index.UpsertBatchSize <= 0 {
		c.Index.UpsertBatchSize = 100
	}
	if c.Index.UpsertConcurrency <= 0 {
		c.Index.UpsertConcurrency = 4
	}
	if c.Index.DocumentConcurrency <= 0 {
		c.Index.DocumentConcurrency = 1
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.BatchSize <= 0 {
		c.Embedding.BatchSize = 128
	}
	if c.Embedding.Concurrency <= 0 {
		c.Embedding.Concurrency = 4
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.Retrieval.TopK <= 0 {
		c.Retrieval.TopK = 10
	}
	if c.Chunker.Size <= 0 {
		c.Chunker.Size = 1000
	}
	if c.Documents.Dir == "" {
		c.Documents.Dir = "documents"
	}
}

// Validate checks the configuration for correctness. Errors wrap
// domain.ErrInvalidConfiguration.
func (c *Config) Validate() error {
	if err := c.validate(); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidConfiguration, err)
	}
	return nil
}

func (c *Config) validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.VectorStore.Driver {
	case DriverRedis:
		if len(c.VectorStore.Redis.Addrs) == 0 {
			return fmt.Errorf("vector_store.redis.addrs is required")
		}
	case DriverQdrant:
		if c.VectorStore.Qdrant.Host == "" {
			return fmt.Errorf("vector_store.qdrant.host is required")
		}
		if c.VectorStore.Qdrant.Port > 65535 {
			return fmt.Errorf("vector_store.qdrant.port must be between 1 and 65535, got %d", c.VectorStore.Qdrant.Port)
		}
	default:
		return fmt.Errorf("vector_store.driver must be %q or %q, got %q", DriverRedis, DriverQdrant, c.VectorStore.Driver)
	}
	if c.Index.Name == "" {
		return fmt.Errorf("index.name is required")
	}
	if !domain.ValidIndexName(c.Index.Name) {
		return fmt.Errorf("index.name %q may only contain letters, digits, '_' and '-'", c.Index.Name)
	}
	switch c.Index.Mode {
	case "keep", "recreate":
		// ok
	default:
		return fmt.Errorf("index.mode must be \"keep\" or \"recreate\", got %q", c.Index.Mode)
	}
	if c.Embedding.Model == "" {
		return fmt.Errorf("embedding.model is required")
	}
	if c.Embedding.Dimensions > 0 && c.Embedding.Dimensions != c.Index.Dimension {
		return fmt.Errorf("embedding.dimensions %d does not match index.dimension %d",
			c.Embedding.Dimensions, c.Index.Dimension)
	}
	if c.Embedding.Cache.Enabled && len(c.VectorStore.Redis.Addrs) == 0 {
		return fmt.Errorf("embedding.cache requires vector_store.redis.addrs")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}
	return nil
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
