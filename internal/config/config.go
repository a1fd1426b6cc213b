package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the shelfindex configuration.
type Config struct {
	HTTP       HTTPConfig       `yaml:"http"`
	Database   DatabaseConfig   `yaml:"database"`
	Storage    StorageConfig    `yaml:"storage"`
	Index      IndexConfig      `yaml:"index"`
	Search     SearchConfig     `yaml:"search"`
	Expansion  ExpansionConfig  `yaml:"expansion"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Extraction ExtractionConfig `yaml:"extraction"`
	Indexing   IndexingConfig   `yaml:"indexing"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Blobs      BlobsConfig      `yaml:"blobs"`
	Auth       AuthConfig       `yaml:"auth"`
	Logging    LoggingConfig    `yaml:"logging"`
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
	MaxUploadMB     int `yaml:"max_upload_mb"`
}

// DatabaseConfig holds index store connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // redis, memory (default: redis)
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	DB               int      `yaml:"db"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds key layout settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// IndexConfig holds document index schema settings.
type IndexConfig struct {
	CategoryWeight  float64 `yaml:"category_weight"`
	Scorer          string  `yaml:"scorer"`
	Algorithm       string  `yaml:"algorithm"` // flat, hnsw
	HNSWM           int     `yaml:"hnsw_m"`
	HNSWEFConstruct int     `yaml:"hnsw_ef_construction"`
}

// SearchConfig holds retrieval thresholds and operators.
type SearchConfig struct {
	LexicalThreshold  float64 `yaml:"lexical_threshold"`
	SemanticThreshold float64 `yaml:"semantic_threshold"`
	StrictOperator    string  `yaml:"strict_operator"`   // and, or (default: and)
	ExpandedOperator  string  `yaml:"expanded_operator"` // and, or (default: or)
}

// ExpansionConfig holds query expansion settings.
type ExpansionConfig struct {
	WordNetDir       string  `yaml:"wordnet_dir"` // empty disables lexicon lookups
	MaxTermsPerWord  int     `yaml:"max_terms_per_word"`
	SimilarityFilter bool    `yaml:"similarity_filter"`
	MinSimilarity    float64 `yaml:"min_similarity"`
}

// EmbeddingConfig holds embedding provider settings. Semantic search is
// disabled when Model is empty.
type EmbeddingConfig struct {
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Provider            string `yaml:"provider"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	TimeoutSec          int    `yaml:"timeout_sec"`
	CacheTTLSec         int    `yaml:"cache_ttl_sec"` // 0 disables the cache
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`

	// MaxInputChars bounds the bytes sent in one provider call. Longer
	// documents are split into at most MaxChunks pieces and averaged.
	MaxInputChars int `yaml:"max_input_chars"`
	MaxChunks     int `yaml:"max_chunks"`
}

// Enabled reports whether an embedding model is configured.
func (e EmbeddingConfig) Enabled() bool { return e.Model != "" }

// ExtractionConfig holds PDF extraction settings.
type ExtractionConfig struct {
	MaxFileMB   int  `yaml:"max_file_mb"`
	StrictPages bool `yaml:"strict_pages"`
}

// IndexingConfig holds indexing queue settings.
type IndexingConfig struct {
	Workers          int `yaml:"workers"`
	QueueSize        int `yaml:"queue_size"`
	MaxAttempts      int `yaml:"max_attempts"`
	JobTimeoutSec    int `yaml:"job_timeout_sec"`
	InitialBackoffMS int `yaml:"initial_backoff_ms"`
	MaxBackoffSec    int `yaml:"max_backoff_sec"`
}

// CatalogConfig holds PostgreSQL settings. An empty DSN disables the
// catalog API.
type CatalogConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
	Migrate  bool   `yaml:"migrate"`
}

// BlobsConfig holds MinIO settings. An empty endpoint disables file storage.
type BlobsConfig struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Bucket    string `yaml:"bucket"`
	Region    string `yaml:"region"`
	UseSSL    bool   `yaml:"use_ssl"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	return LoadFile(findConfigPath(env))
}

// LoadFile reads configuration from path. A .env file in the working
// directory, if present, is loaded into the environment first.
func LoadFile(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
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
		c.HTTP.ReadTimeoutSec = 30
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 30
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.MaxUploadMB <= 0 {
		c.HTTP.MaxUploadMB = 64
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "redis"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "shelfindex:"
	}
	if c.Index.CategoryWeight <= 0 {
		c.Index.CategoryWeight = 3
	}
	if c.Index.Scorer == "" {
		c.Index.Scorer = "BM25STD"
	}
	if c.Index.Algorithm == "" {
		c.Index.Algorithm = "flat"
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Search.StrictOperator == "" {
		c.Search.StrictOperator = "and"
	}
	if c.Search.ExpandedOperator == "" {
		c.Search.ExpandedOperator = "or"
	}
	if c.Expansion.MaxTermsPerWord <= 0 {
		c.Expansion.MaxTermsPerWord = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.TimeoutSec <= 0 {
		c.Embedding.TimeoutSec = 30
	}
	if c.Embedding.MaxInputChars <= 0 {
		c.Embedding.MaxInputChars = 12000
	}
	if c.Embedding.MaxChunks <= 0 {
		c.Embedding.MaxChunks = 4
	}
	if c.Extraction.MaxFileMB <= 0 {
		c.Extraction.MaxFileMB = 64
	}
	if c.Indexing.Workers <= 0 {
		c.Indexing.Workers = 4
	}
	if c.Indexing.QueueSize <= 0 {
		c.Indexing.QueueSize = 256
	}
	if c.Indexing.MaxAttempts <= 0 {
		c.Indexing.MaxAttempts = 3
	}
	if c.Indexing.JobTimeoutSec <= 0 {
		c.Indexing.JobTimeoutSec = 120
	}
	if c.Indexing.InitialBackoffMS <= 0 {
		c.Indexing.InitialBackoffMS = 500
	}
	if c.Indexing.MaxBackoffSec <= 0 {
		c.Indexing.MaxBackoffSec = 30
	}
	if c.Catalog.MaxConns <= 0 {
		c.Catalog.MaxConns = 10
	}
	if c.Blobs.Bucket == "" {
		c.Blobs.Bucket = "books"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "redis":
		if len(c.Database.Addrs) == 0 {
			return fmt.Errorf("database.addrs is required")
		}
	case "memory":
	default:
		return fmt.Errorf("database.driver must be \"redis\" or \"memory\", got %q", c.Database.Driver)
	}
	switch c.Index.Algorithm {
	case "flat", "hnsw":
	default:
		return fmt.Errorf("index.algorithm must be \"flat\" or \"hnsw\", got %q", c.Index.Algorithm)
	}
	for key, op := range map[string]string{
		"search.strict_operator":   c.Search.StrictOperator,
		"search.expanded_operator": c.Search.ExpandedOperator,
	} {
		if op != "and" && op != "or" {
			return fmt.Errorf("%s must be \"and\" or \"or\", got %q", key, op)
		}
	}
	if c.Search.SemanticThreshold < -1 || c.Search.SemanticThreshold > 1 {
		return fmt.Errorf("search.semantic_threshold must be within [-1, 1], got %v", c.Search.SemanticThreshold)
	}
	if c.Search.LexicalThreshold < 0 {
		return fmt.Errorf("search.lexical_threshold must not be negative, got %v", c.Search.LexicalThreshold)
	}
	if c.Embedding.Enabled() && c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions is required when embedding.model is set")
	}
	if c.Expansion.SimilarityFilter && !c.Embedding.Enabled() {
		return fmt.Errorf("expansion.similarity_filter requires embedding.model")
	}
	return nil
}

// Duration converts a count of seconds from the config to a time.Duration.
func Duration(sec int) time.Duration {
	return time.Duration(sec) * time.Second
}

// DurationMS converts a count of milliseconds from the config to a time.Duration.
func DurationMS(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
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
