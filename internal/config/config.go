// Package config loads settings for the api and worker binaries from an optional
// YAML file, overridden by environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"curation-service/internal/entity"
)

type Config struct {
	HTTPAddr string `koanf:"http_addr"`
	LogMode  string `koanf:"log_mode"`

	PostgresDSN string `koanf:"postgres_dsn"`

	// Redis is optional: without it the shared cache tier and worker wake-ups are off.
	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	AuthSecret string `koanf:"auth_secret"`

	EmbeddingAPIKey  string `koanf:"embedding_api_key"`
	EmbeddingBaseURL string `koanf:"embedding_base_url"`
	EmbeddingModel   string `koanf:"embedding_model"`

	ActiveConfigTTL   time.Duration `koanf:"active_config_ttl"`
	EmbeddingCacheTTL time.Duration `koanf:"embedding_cache_ttl"`
	BulkMaxIDs        int           `koanf:"bulk_max_ids"`

	WorkerJobTypes     []entity.JobType `koanf:"worker_job_types"`
	WorkerPollInterval time.Duration    `koanf:"worker_poll_interval"`
	ScraperCommand     string           `koanf:"scraper_command"`
	PermalinkCommand   string           `koanf:"permalink_command"`
	BackfillCommand    string           `koanf:"backfill_command"`
}

var (
	ErrMissingPostgresDSN = errors.New("POSTGRES_DSN is required")
	ErrMissingAuthSecret  = errors.New("AUTH_SECRET is required")
	ErrInvalidBulkMaxIDs  = errors.New("BULK_MAX_IDS must be positive")
)

const (
	DefaultHTTPAddr           = ":8080"
	DefaultLogMode            = "development"
	DefaultEmbeddingBaseURL   = "https://api.openai.com/v1"
	DefaultEmbeddingModel     = "text-embedding-3-small"
	DefaultActiveConfigTTL    = 45 * time.Second
	DefaultEmbeddingCacheTTL  = 10 * time.Minute
	DefaultBulkMaxIDs         = 10000
	DefaultWorkerPollInterval = 30 * time.Second
)

// Load reads the optional YAML file then applies environment overrides.
// It returns every problem found rather than stopping at the first.
func Load(configFilePath string) (*Config, []error) {
	k := koanf.New(".")
	if configFilePath != "" {
		if err := k.Load(file.Provider(configFilePath), yaml.Parser()); err != nil {
			return nil, []error{fmt.Errorf("failed to load config file %s: %w", configFilePath, err)}
		}
	}

	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	cfg := &Config{
		HTTPAddr:         envOr("HTTP_ADDR", k.String("http_addr"), DefaultHTTPAddr),
		LogMode:          envOr("LOG_MODE", k.String("log_mode"), DefaultLogMode),
		PostgresDSN:      envOr("POSTGRES_DSN", k.String("postgres_dsn"), ""),
		RedisAddr:        envOr("REDIS_ADDR", k.String("redis_addr"), ""),
		RedisPassword:    envOr("REDIS_PASSWORD", k.String("redis_password"), ""),
		AuthSecret:       envOr("AUTH_SECRET", k.String("auth_secret"), ""),
		EmbeddingAPIKey:  envOr("EMBEDDING_API_KEY", k.String("embedding_api_key"), ""),
		EmbeddingBaseURL: envOr("EMBEDDING_BASE_URL", k.String("embedding_base_url"), DefaultEmbeddingBaseURL),
		EmbeddingModel:   envOr("EMBEDDING_MODEL", k.String("embedding_model"), DefaultEmbeddingModel),
		ScraperCommand:   envOr("SCRAPER_COMMAND", k.String("scraper_command"), ""),
		PermalinkCommand: envOr("PERMALINK_COMMAND", k.String("permalink_command"), ""),
		BackfillCommand:  envOr("BACKFILL_COMMAND", k.String("backfill_command"), ""),
	}

	var err error
	cfg.RedisDB, err = envInt("REDIS_DB", k.Int("redis_db"), 0)
	collect(err)
	cfg.BulkMaxIDs, err = envInt("BULK_MAX_IDS", k.Int("bulk_max_ids"), DefaultBulkMaxIDs)
	collect(err)
	cfg.ActiveConfigTTL, err = envDuration("ACTIVE_CONFIG_TTL", k.String("active_config_ttl"), DefaultActiveConfigTTL)
	collect(err)
	cfg.EmbeddingCacheTTL, err = envDuration("EMBEDDING_CACHE_TTL", k.String("embedding_cache_ttl"), DefaultEmbeddingCacheTTL)
	collect(err)
	cfg.WorkerPollInterval, err = envDuration("WORKER_POLL_INTERVAL", k.String("worker_poll_interval"), DefaultWorkerPollInterval)
	collect(err)

	typesRaw := os.Getenv("WORKER_JOB_TYPES")
	if typesRaw == "" {
		typesRaw = strings.Join(k.Strings("worker_job_types"), ",")
	}
	cfg.WorkerJobTypes, err = parseJobTypes(typesRaw)
	collect(err)

	errs = append(errs, cfg.Validate()...)
	return cfg, errs
}

// Validate checks settings shared by both binaries.
func (c *Config) Validate() []error {
	var errs []error
	if c.PostgresDSN == "" {
		errs = append(errs, ErrMissingPostgresDSN)
	}
	if c.BulkMaxIDs <= 0 {
		errs = append(errs, ErrInvalidBulkMaxIDs)
	}
	return errs
}

// ValidateAPI adds the checks only the HTTP server needs.
func (c *Config) ValidateAPI() []error {
	errs := c.Validate()
	if c.AuthSecret == "" {
		errs = append(errs, ErrMissingAuthSecret)
	}
	return errs
}

func envOr(envKey, koanfVal, def string) string {
	if v := os.Getenv(envKey); v != "" {
		return v
	}
	if koanfVal != "" {
		return koanfVal
	}
	return def
}

func envInt(envKey string, koanfVal, def int) (int, error) {
	if v := os.Getenv(envKey); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			return def, fmt.Errorf("%s must be an integer: %w", envKey, err)
		}
		return i, nil
	}
	if koanfVal != 0 {
		return koanfVal, nil
	}
	return def, nil
}

func envDuration(envKey, koanfVal string, def time.Duration) (time.Duration, error) {
	raw := os.Getenv(envKey)
	if raw == "" {
		raw = koanfVal
	}
	if raw == "" {
		return def, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return def, fmt.Errorf("%s must be a positive duration like 45s", envKey)
	}
	return d, nil
}

// parseJobTypes reads a comma-separated list; empty means every type.
func parseJobTypes(raw string) ([]entity.JobType, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return append([]entity.JobType(nil), entity.AllJobTypes...), nil
	}
	var out []entity.JobType
	for _, part := range strings.Split(raw, ",") {
		t := entity.JobType(strings.TrimSpace(part))
		if t == "" {
			continue
		}
		if !t.Valid() {
			return nil, fmt.Errorf("WORKER_JOB_TYPES: unknown job type %q", t)
		}
		out = append(out, t)
	}
	return out, nil
}
