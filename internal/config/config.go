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
)

// Config holds the reportlens API configuration.
type Config struct {
	HTTP      HTTPConfig            `yaml:"http"`
	Database  DatabaseConfig        `yaml:"database"`
	Redis     RedisConfig           `yaml:"redis"`
	Embedding EmbeddingConfig       `yaml:"embedding"`
	LLM       LLMConfig             `yaml:"llm"`
	Auth      AuthConfig            `yaml:"auth"`
	Index     IndexConfig           `yaml:"index"`
	Retrieval RetrievalConfig       `yaml:"retrieval"`
	KPI       KPIConfig             `yaml:"kpi"`
	Chat      ChatConfig            `yaml:"chat"`
	Ingestion IngestionConfig       `yaml:"ingestion"`
	Plans     map[string]PlanConfig `yaml:"plans"`
	Storage   StorageConfig         `yaml:"storage"`
	Logging   LoggingConfig         `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds bearer token verification settings.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	Issuer    string `yaml:"issuer"` // optional, checked when set
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"` // streaming chat needs this above chat.stream_timeout_sec
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds relational store settings.
type DatabaseConfig struct {
	Driver string `yaml:"driver"` // sqlite, postgres (default: sqlite)
	DSN    string `yaml:"dsn"`
}

// RedisConfig holds vector store connection settings.
type RedisConfig struct {
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// IndexConfig holds HNSW index and pagination settings.
type IndexConfig struct {
	HNSWM           int `yaml:"hnsw_m"`
	HNSWEFConstruct int `yaml:"hnsw_ef_construction"`
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

// StorageConfig holds key naming settings.
type StorageConfig struct {
	KeyPrefix string `yaml:"key_prefix"`
}

// EmbeddingConfig holds embedding provider settings.
type EmbeddingConfig struct {
	Provider            string `yaml:"provider"`
	APIKey              string `yaml:"api_key"`
	BaseURL             string `yaml:"base_url"`
	Model               string `yaml:"model"`
	Dimensions          int    `yaml:"dimensions"`
	DocumentInstruction string `yaml:"document_instruction"`
	QueryInstruction    string `yaml:"query_instruction"`
	CacheEnabled        bool   `yaml:"cache_enabled"`
}

// LLMConfig holds chat model settings.
type LLMConfig struct {
	Provider        string  `yaml:"provider"`
	APIKey          string  `yaml:"api_key"`
	BaseURL         string  `yaml:"base_url"`
	ChatModel       string  `yaml:"chat_model"`       // conversational answers and overview
	ExtractionModel string  `yaml:"extraction_model"` // formula resolution and value extraction
	Temperature     float32 `yaml:"temperature"`
	RequestsPerSec  float64 `yaml:"requests_per_sec"` // 0 = unlimited
	Burst           int     `yaml:"burst"`
	TimeoutSec      int     `yaml:"timeout_sec"` // non-streaming calls
}

// RetrievalConfig holds similarity search settings.
type RetrievalConfig struct {
	ChatTopK     int `yaml:"chat_top_k"`
	ExtractTopK  int `yaml:"extract_top_k"`
	FormulaTopK  int `yaml:"formula_top_k"`
	OverviewTopK int `yaml:"overview_top_k"`
	MaxAttempts  int `yaml:"max_attempts"`
	BackoffMS    int `yaml:"backoff_ms"`
}

// KPIConfig holds KPI pipeline settings.
type KPIConfig struct {
	ResolutionMode     string `yaml:"resolution_mode"` // grounded | knowledge
	ExtractConcurrency int    `yaml:"extract_concurrency"`
}

// ChatConfig holds conversational settings.
type ChatConfig struct {
	HistoryWindow    int `yaml:"history_window"`
	StreamTimeoutSec int `yaml:"stream_timeout_sec"`
}

// IngestionConfig holds ingestion worker settings.
type IngestionConfig struct {
	Workers       int `yaml:"workers"`
	JobTimeoutSec int `yaml:"job_timeout_sec"`
	MaxFileMB     int `yaml:"max_file_mb"`
}

// PlanConfig describes one subscription tier.
type PlanConfig struct {
	Name         string `yaml:"name"`
	PDFsPerMonth int    `yaml:"pdfs_per_month"`
	PagesPerPDF  int    `yaml:"pages_per_pdf"`
	Default      bool   `yaml:"default"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse decodes YAML bytes, expands ${VAR} references, applies defaults and validates.
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

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
//
//nolint:gocyclo // flat list of defaults
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.DSN == "" && c.Database.Driver == "sqlite" {
		c.Database.DSN = "reportlens.db"
	}
	if c.Redis.ReadinessTimeout <= 0 {
		c.Redis.ReadinessTimeout = 10
	}
	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-3-small"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.ChatModel == "" {
		c.LLM.ChatModel = "gpt-4o"
	}
	if c.LLM.ExtractionModel == "" {
		c.LLM.ExtractionModel = c.LLM.ChatModel
	}
	if c.LLM.Burst <= 0 {
		c.LLM.Burst = 1
	}
	if c.LLM.TimeoutSec <= 0 {
		c.LLM.TimeoutSec = 60
	}
	if c.Index.HNSWM <= 0 {
		c.Index.HNSWM = 16
	}
	if c.Index.HNSWEFConstruct <= 0 {
		c.Index.HNSWEFConstruct = 200
	}
	if c.Index.DefaultPageSize <= 0 {
		c.Index.DefaultPageSize = 10
	}
	if c.Index.MaxPageSize <= 0 {
		c.Index.MaxPageSize = 100
	}
	if c.Retrieval.ChatTopK <= 0 {
		c.Retrieval.ChatTopK = 4
	}
	if c.Retrieval.ExtractTopK <= 0 {
		c.Retrieval.ExtractTopK = 10
	}
	if c.Retrieval.FormulaTopK <= 0 {
		c.Retrieval.FormulaTopK = 10
	}
	if c.Retrieval.OverviewTopK <= 0 {
		c.Retrieval.OverviewTopK = 6
	}
	if c.Retrieval.MaxAttempts <= 0 {
		c.Retrieval.MaxAttempts = 5
	}
	if c.Retrieval.BackoffMS <= 0 {
		c.Retrieval.BackoffMS = 200
	}
	if c.KPI.ResolutionMode == "" {
		c.KPI.ResolutionMode = "grounded"
	}
	if c.KPI.ExtractConcurrency <= 0 {
		c.KPI.ExtractConcurrency = 8
	}
	if c.Chat.HistoryWindow <= 0 {
		c.Chat.HistoryWindow = 6
	}
	if c.Chat.StreamTimeoutSec <= 0 {
		c.Chat.StreamTimeoutSec = 90
	}
	if c.Ingestion.Workers <= 0 {
		c.Ingestion.Workers = 4
	}
	if c.Ingestion.JobTimeoutSec <= 0 {
		c.Ingestion.JobTimeoutSec = 300
	}
	if c.Ingestion.MaxFileMB <= 0 {
		c.Ingestion.MaxFileMB = 16
	}
	if len(c.Plans) == 0 {
		c.Plans = map[string]PlanConfig{
			"free": {Name: "Free", PDFsPerMonth: 10, PagesPerPDF: 1000, Default: true},
			"pro":  {Name: "Pro", PDFsPerMonth: 50, PagesPerPDF: 1000},
		}
	}
	if c.Storage.KeyPrefix == "" {
		c.Storage.KeyPrefix = "reportlens:"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("redis.addrs is required")
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("database.driver must be \"sqlite\" or \"postgres\", got %q", c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	switch c.KPI.ResolutionMode {
	case "grounded", "knowledge":
	default:
		return fmt.Errorf("kpi.resolution_mode must be \"grounded\" or \"knowledge\", got %q", c.KPI.ResolutionMode)
	}
	if c.Chat.HistoryWindow > 50 {
		return fmt.Errorf("chat.history_window must be at most 50, got %d", c.Chat.HistoryWindow)
	}

	defaults := 0
	for slug, p := range c.Plans {
		if p.PagesPerPDF <= 0 {
			return fmt.Errorf("plans.%s.pages_per_pdf must be positive", slug)
		}
		if p.Default {
			defaults++
		}
	}
	if defaults != 1 {
		return fmt.Errorf("exactly one plan must be marked default, got %d", defaults)
	}
	return nil
}

// RetrievalBackoff returns the linear backoff step for retried searches.
func (c *Config) RetrievalBackoff() time.Duration {
	return time.Duration(c.Retrieval.BackoffMS) * time.Millisecond
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
