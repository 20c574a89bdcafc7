// Package config loads application configuration from a yaml file with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns the host:port listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// AIConfig configures the embedding and chat model provider.
type AIConfig struct {
	Provider string `yaml:"provider"` // openai or azure

	APIKeyEnv string `yaml:"api_key_env"` // env var holding the API key
	BaseURL   string `yaml:"base_url"`

	EmbeddingModel string `yaml:"embedding_model"`
	ChatModel      string `yaml:"chat_model"`

	AzureInstance            string `yaml:"azure_instance"`
	AzureDeployment          string `yaml:"azure_deployment"`
	AzureEmbeddingDeployment string `yaml:"azure_embedding_deployment"`
	AzureAPIVersion          string `yaml:"azure_api_version"`

	TimeoutSecs int `yaml:"timeout_secs"`
}

// APIKey resolves the provider API key from the configured env var.
func (a AIConfig) APIKey() string {
	return os.Getenv(a.APIKeyEnv)
}

// IndexConfig selects and configures the vector index backend.
type IndexConfig struct {
	Backend string `yaml:"backend"` // memory, postgres or chroma

	SnapshotPath string `yaml:"snapshot_path"` // memory backend persistence

	PostgresURL string `yaml:"postgres_url"`

	ChromaURL        string `yaml:"chroma_url"`
	ChromaCollection string `yaml:"chroma_collection"`
}

// IngestConfig configures the ingestion pipeline.
type IngestConfig struct {
	DocumentsRoot    string `yaml:"documents_root"`
	FingerprintsPath string `yaml:"fingerprints_path"`
	ChunkSize        int    `yaml:"chunk_size"`
	ChunkOverlap     int    `yaml:"chunk_overlap"`
}

// SchedulerConfig configures the freshness scheduler.
type SchedulerConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Interval time.Duration `yaml:"interval"`
	RedisURL string        `yaml:"redis_url"` // optional distributed lock
}

// AnalyticsConfig configures the ridership analytics dataset.
type AnalyticsConfig struct {
	DatasetPath string `yaml:"dataset_path"`
}

// Config is the root application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	AI        AIConfig        `yaml:"ai"`
	Index     IndexConfig     `yaml:"index"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Analytics AnalyticsConfig `yaml:"analytics"`
	LogLevel  string          `yaml:"log_level"`
}

// Load reads a config from the given path. A missing file yields
// defaults; environment variables override file values either way.
func Load(path string) (*Config, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    120 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		AI: AIConfig{
			Provider:  "openai",
			APIKeyEnv: "OPENAI_API_KEY",
		},
		Index: IndexConfig{
			Backend:          "memory",
			ChromaCollection: "catalog",
		},
		Ingest: IngestConfig{
			DocumentsRoot:    "./documents",
			FingerprintsPath: "./data/fingerprints.json",
		},
		Scheduler: SchedulerConfig{
			Enabled:  true,
			Interval: 6 * time.Hour,
		},
		LogLevel: "info",
	}
}

// applyEnvOverrides lets deployment environments override file values
// without editing the yaml.
func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "SERVER_PORT")

	setString(&cfg.AI.Provider, "AI_PROVIDER")
	setString(&cfg.AI.BaseURL, "AI_BASE_URL")
	setString(&cfg.AI.EmbeddingModel, "AI_EMBEDDING_MODEL")
	setString(&cfg.AI.ChatModel, "AI_CHAT_MODEL")
	setString(&cfg.AI.AzureInstance, "AZURE_OPENAI_INSTANCE")
	setString(&cfg.AI.AzureDeployment, "AZURE_OPENAI_DEPLOYMENT")
	setString(&cfg.AI.AzureEmbeddingDeployment, "AZURE_OPENAI_EMBEDDING_DEPLOYMENT")
	setString(&cfg.AI.AzureAPIVersion, "AZURE_OPENAI_API_VERSION")

	setString(&cfg.Index.Backend, "INDEX_BACKEND")
	setString(&cfg.Index.SnapshotPath, "INDEX_SNAPSHOT_PATH")
	setString(&cfg.Index.PostgresURL, "DATABASE_URL")
	setString(&cfg.Index.ChromaURL, "CHROMA_URL")
	setString(&cfg.Index.ChromaCollection, "CHROMA_COLLECTION")

	setString(&cfg.Ingest.DocumentsRoot, "DOCUMENTS_ROOT")
	setString(&cfg.Ingest.FingerprintsPath, "FINGERPRINTS_PATH")

	setString(&cfg.Scheduler.RedisURL, "REDIS_URL")
	setString(&cfg.Analytics.DatasetPath, "ANALYTICS_DATASET")
	setString(&cfg.LogLevel, "LOG_LEVEL")
}

func applyDefaults(cfg *Config) {
	if cfg.AI.APIKeyEnv == "" {
		cfg.AI.APIKeyEnv = "OPENAI_API_KEY"
	}
	if cfg.Scheduler.Interval <= 0 {
		cfg.Scheduler.Interval = 6 * time.Hour
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
