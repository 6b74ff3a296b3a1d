// Package config loads service configuration from an optional .env file,
// an optional YAML file named by CONFIG_FILE, and the process environment.
// Later sources win: environment > YAML > defaults.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/custodia-labs/sercha-ingest/internal/core/domain"
)

// Run modes
const (
	ModeAPI    = "api"
	ModeWorker = "worker"
	ModeAll    = "all"
)

// Registry backends
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// QdrantConfig is the default vector store connection
type QdrantConfig struct {
	URL        string `yaml:"url"`
	APIKey     string `yaml:"api_key"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// EmbeddingConfig configures the embedding provider
type EmbeddingConfig struct {
	OpenAIAPIKey  string  `yaml:"openai_api_key"`
	OpenAIBaseURL string  `yaml:"openai_base_url"`
	Model         string  `yaml:"model"`
	RPS           float64 `yaml:"rps"`
	BatchSize     int     `yaml:"batch_size"`
}

// LockConfig tunes the per-index lock
type LockConfig struct {
	TTLSec  int `yaml:"ttl_sec"`
	WaitSec int `yaml:"wait_sec"`
}

// WorkerConfig tunes background task processing
type WorkerConfig struct {
	Concurrency    int `yaml:"concurrency"`
	DequeueTimeout int `yaml:"dequeue_timeout"`
}

// LogConfig selects the default slog handler
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the root service configuration
type Config struct {
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
	RunMode string `yaml:"run_mode"`

	RegistryBackend string `yaml:"registry_backend"`
	DatabaseURL     string `yaml:"database_url"`
	RedisURL        string `yaml:"redis_url"`

	Qdrant    QdrantConfig    `yaml:"qdrant"`
	Embedding EmbeddingConfig `yaml:"embedding"`

	MaxUploadBytes       int64        `yaml:"max_upload_bytes"`
	Lock                 LockConfig   `yaml:"lock"`
	ReconcileIntervalMin int          `yaml:"reconcile_interval_min"`
	Worker               WorkerConfig `yaml:"worker"`
	CORSOrigins          []string     `yaml:"cors_origins"`
	Log                  LogConfig    `yaml:"log"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            8000,
		RunMode:         ModeAll,
		RegistryBackend: BackendMemory,
		Qdrant: QdrantConfig{
			TimeoutSec: 30,
		},
		Embedding: EmbeddingConfig{
			OpenAIBaseURL: "https://api.openai.com/v1",
			Model:         "text-embedding-3-small",
			RPS:           5,
			BatchSize:     100,
		},
		MaxUploadBytes: domain.MaxUploadBytes,
		Lock: LockConfig{
			TTLSec:  60,
			WaitSec: 10,
		},
		ReconcileIntervalMin: 60,
		Worker: WorkerConfig{
			Concurrency:    2,
			DequeueTimeout: 5,
		},
		CORSOrigins: []string{"*"},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads envFile (missing is fine), then CONFIG_FILE if set, then the environment
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		var err error
		if cfg, err = LoadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFile reads a YAML file over the defaults. Keys absent from the file keep their default.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Host = getEnv("HOST", c.Host)
	c.Port = getEnvInt("PORT", c.Port)
	c.RunMode = getEnv("RUN_MODE", c.RunMode)

	c.RegistryBackend = getEnv("REGISTRY_BACKEND", c.RegistryBackend)
	c.DatabaseURL = getEnv("DATABASE_URL", c.DatabaseURL)
	c.RedisURL = getEnv("REDIS_URL", c.RedisURL)

	c.Qdrant.URL = getEnv("QDRANT_URL", c.Qdrant.URL)
	c.Qdrant.APIKey = getEnv("QDRANT_API_KEY", c.Qdrant.APIKey)
	c.Qdrant.TimeoutSec = getEnvInt("QDRANT_TIMEOUT_SEC", c.Qdrant.TimeoutSec)

	c.Embedding.OpenAIAPIKey = getEnv("OPENAI_API_KEY", c.Embedding.OpenAIAPIKey)
	c.Embedding.OpenAIBaseURL = getEnv("OPENAI_BASE_URL", c.Embedding.OpenAIBaseURL)
	c.Embedding.Model = getEnv("EMBEDDING_MODEL", c.Embedding.Model)
	c.Embedding.RPS = getEnvFloat("EMBEDDING_RPS", c.Embedding.RPS)
	c.Embedding.BatchSize = getEnvInt("EMBEDDING_BATCH_SIZE", c.Embedding.BatchSize)

	c.MaxUploadBytes = int64(getEnvInt("MAX_UPLOAD_BYTES", int(c.MaxUploadBytes)))
	c.Lock.TTLSec = getEnvInt("LOCK_TTL_SEC", c.Lock.TTLSec)
	c.Lock.WaitSec = getEnvInt("LOCK_WAIT_SEC", c.Lock.WaitSec)
	c.ReconcileIntervalMin = getEnvInt("RECONCILE_INTERVAL_MIN", c.ReconcileIntervalMin)
	c.Worker.Concurrency = getEnvInt("WORKER_CONCURRENCY", c.Worker.Concurrency)
	c.Worker.DequeueTimeout = getEnvInt("WORKER_DEQUEUE_TIMEOUT", c.Worker.DequeueTimeout)
	c.CORSOrigins = getEnvList("CORS_ORIGINS", c.CORSOrigins)

	c.Log.Level = getEnv("LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("LOG_FORMAT", c.Log.Format)
}

// Validate rejects combinations the service cannot start with
func (c *Config) Validate() error {
	switch c.RunMode {
	case ModeAPI, ModeWorker, ModeAll:
	default:
		return fmt.Errorf("unknown run mode %q (use: api, worker, or all)", c.RunMode)
	}

	switch c.RegistryBackend {
	case BackendMemory:
		if c.RunMode != ModeAll {
			return fmt.Errorf("registry backend memory requires run mode all, got %s", c.RunMode)
		}
	case BackendRedis:
		if c.RedisURL == "" {
			return errors.New("REDIS_URL is required for the redis backend")
		}
	case BackendPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres backend")
		}
	default:
		return fmt.Errorf("unknown registry backend %q (use: memory, redis, or postgres)", c.RegistryBackend)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max upload bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.Qdrant.URL != "" {
		if err := c.DefaultConnection().Validate(); err != nil {
			return err
		}
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		return err
	}
	return nil
}

// DefaultConnection is the vector store used when a request names none
func (c *Config) DefaultConnection() domain.Connection {
	return domain.Connection{URL: c.Qdrant.URL, APIKey: c.Qdrant.APIKey}
}

// QdrantTimeout is the per-request vector store timeout
func (c *Config) QdrantTimeout() time.Duration {
	return time.Duration(c.Qdrant.TimeoutSec) * time.Second
}

// LockTTL is the index lock lease
func (c *Config) LockTTL() time.Duration {
	return time.Duration(c.Lock.TTLSec) * time.Second
}

// LockWait is how long a mutation waits for a busy index
func (c *Config) LockWait() time.Duration {
	return time.Duration(c.Lock.WaitSec) * time.Second
}

// ReconcileInterval is the period of the scheduled sweep; zero disables it
func (c *Config) ReconcileInterval() time.Duration {
	return time.Duration(c.ReconcileIntervalMin) * time.Minute
}

// NewLogger builds a slog logger writing to w in the configured format and level
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.Log.Level)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.Log.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", s)
	}
	return level, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.Atoi(value); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if result, err := strconv.ParseFloat(value, 64); err == nil {
			return result
		}
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var items []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}
	if len(items) == 0 {
		return defaultValue
	}
	return items
}
