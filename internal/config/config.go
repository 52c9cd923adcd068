package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"docqa/internal/chunker"
	"docqa/internal/domain"
)

// OpenAIConfig holds connection settings for an OpenAI-compatible API.
type OpenAIConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	BatchSize         int     `yaml:"batch_size,omitempty"`
	RequestsPerSecond float64 `yaml:"requests_per_second,omitempty"`
	MaxRetries        int     `yaml:"max_retries,omitempty"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type   string        `yaml:"type"`
	OpenAI *OpenAIConfig `yaml:"openai,omitempty"`
}

// ChunkerConfig configures how documents are split into passages.
// Size and Overlap count characters.
type ChunkerConfig struct {
	Type    string `yaml:"type"`
	Size    int    `yaml:"size"`
	Overlap int    `yaml:"overlap"`
}

// IngestConfig tunes the ingestion pipeline.
type IngestConfig struct {
	Workers          int `yaml:"workers"`
	EmbedTimeoutSecs int `yaml:"embed_timeout_secs"`
}

// RetrievalConfig tunes query handling.
type RetrievalConfig struct {
	TopK           int     `yaml:"top_k"`
	MinSimilarity  float64 `yaml:"min_similarity"`
	QueryCacheSize int     `yaml:"query_cache_size"`
}

// AnswererConfig selects the answer extraction implementation.
type AnswererConfig struct {
	Type   string        `yaml:"type"`
	OpenAI *OpenAIConfig `yaml:"openai,omitempty"`
}

// SummarizerConfig configures the corpus summary.
type SummarizerConfig struct {
	MaxSentences int `yaml:"max_sentences"`
}

// LogConfig configures structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	File   string `yaml:"file,omitempty"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder   EmbedderConfig   `yaml:"embedder"`
	Chunker    ChunkerConfig    `yaml:"chunker"`
	Ingest     IngestConfig     `yaml:"ingest"`
	Retrieval  RetrievalConfig  `yaml:"retrieval"`
	Answerer   AnswererConfig   `yaml:"answerer"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Log        LogConfig        `yaml:"log"`
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return nil, err
	}
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	applyConfigDefaults(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/docqa/config.yaml.
// If neither exists, it writes defaults to ~/.config/docqa/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	cfg := Default()
	if err := Save(userPath, cfg); err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Validate rejects settings the components would refuse later.
func (c *AppConfig) Validate() error {
	switch c.Chunker.Type {
	case "fixed", "sentence":
	default:
		return fmt.Errorf("%w: unknown chunker %q", domain.ErrInvalidConfig, c.Chunker.Type)
	}
	if err := chunker.Validate(c.Chunker.Size, c.Chunker.Overlap); err != nil {
		return err
	}
	switch c.Embedder.Type {
	case "tfidf":
	case "openai":
		if c.Embedder.OpenAI == nil {
			return fmt.Errorf("%w: openai embedder config missing", domain.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown embedder %q", domain.ErrInvalidConfig, c.Embedder.Type)
	}
	switch c.Answerer.Type {
	case "sentence", "none":
	case "openai":
		if c.Answerer.OpenAI == nil {
			return fmt.Errorf("%w: openai answerer config missing", domain.ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown answerer %q", domain.ErrInvalidConfig, c.Answerer.Type)
	}
	if c.Ingest.Workers < 1 {
		return fmt.Errorf("%w: ingest.workers must be positive", domain.ErrInvalidConfig)
	}
	if c.Retrieval.TopK < 1 {
		return fmt.Errorf("%w: retrieval.top_k must be positive", domain.ErrInvalidConfig)
	}
	if c.Retrieval.MinSimilarity < 0 || c.Retrieval.MinSimilarity > 1 {
		return fmt.Errorf("%w: retrieval.min_similarity must be in [0, 1]", domain.ErrInvalidConfig)
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return fmt.Errorf("%w: log.level: %w", domain.ErrInvalidConfig, err)
	}
	switch c.Log.Format {
	case "text", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", domain.ErrInvalidConfig, c.Log.Format)
	}
	return nil
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "docqa", "config.yaml"), nil
}

// Default returns the built-in configuration.
func Default() *AppConfig {
	return &AppConfig{
		Embedder:   EmbedderConfig{Type: "tfidf"},
		Chunker:    ChunkerConfig{Type: "fixed", Size: chunker.DefaultSize, Overlap: chunker.DefaultOverlap},
		Ingest:     IngestConfig{Workers: 4},
		Retrieval:  RetrievalConfig{TopK: 3, QueryCacheSize: 128},
		Answerer:   AnswererConfig{Type: "sentence"},
		Summarizer: SummarizerConfig{MaxSentences: 5},
		Log:        LogConfig{Level: "info", Format: "text"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunker.Type == "" {
		cfg.Chunker.Type = "fixed"
	}
	// An explicit overlap of 0 is only honoured together with an explicit size.
	if cfg.Chunker.Size == 0 {
		cfg.Chunker.Size = chunker.DefaultSize
		if cfg.Chunker.Overlap == 0 {
			cfg.Chunker.Overlap = chunker.DefaultOverlap
		}
	}
	if cfg.Embedder.Type == "" {
		cfg.Embedder.Type = "tfidf"
	}
	if cfg.Embedder.Type == "openai" && cfg.Embedder.OpenAI != nil {
		applyOpenAIDefaults(cfg.Embedder.OpenAI, "text-embedding-3-small", 30)
		if cfg.Embedder.OpenAI.BatchSize == 0 {
			cfg.Embedder.OpenAI.BatchSize = 32
		}
		if cfg.Embedder.OpenAI.MaxRetries == 0 {
			cfg.Embedder.OpenAI.MaxRetries = 5
		}
	}
	if cfg.Answerer.Type == "" {
		cfg.Answerer.Type = "sentence"
	}
	if cfg.Answerer.Type == "openai" && cfg.Answerer.OpenAI != nil {
		applyOpenAIDefaults(cfg.Answerer.OpenAI, "gpt-4o-mini", 60)
	}
	if cfg.Ingest.Workers == 0 {
		cfg.Ingest.Workers = 4
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Summarizer.MaxSentences == 0 {
		cfg.Summarizer.MaxSentences = 5
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
}

func applyOpenAIDefaults(c *OpenAIConfig, model string, timeoutSecs int) {
	if c.BaseURL == "" {
		c.BaseURL = "https://api.openai.com/v1"
	}
	if c.APIKeyEnv == "" {
		c.APIKeyEnv = "OPENAI_API_KEY"
	}
	if c.Model == "" {
		c.Model = model
	}
	if c.TimeoutSecs == 0 {
		c.TimeoutSecs = timeoutSecs
	}
}
