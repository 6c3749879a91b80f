package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"curation-service/internal/entity"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"HTTP_ADDR", "LOG_MODE", "POSTGRES_DSN", "REDIS_ADDR", "REDIS_PASSWORD", "REDIS_DB",
		"AUTH_SECRET", "EMBEDDING_API_KEY", "EMBEDDING_BASE_URL", "EMBEDDING_MODEL",
		"ACTIVE_CONFIG_TTL", "EMBEDDING_CACHE_TTL", "BULK_MAX_IDS", "WORKER_JOB_TYPES",
		"WORKER_POLL_INTERVAL", "SCRAPER_COMMAND", "PERMALINK_COMMAND", "BACKFILL_COMMAND",
	} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("POSTGRES_DSN", "postgres://localhost/curation")

	cfg, errs := Load("")
	require.Empty(t, errs)

	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, 45*time.Second, cfg.ActiveConfigTTL)
	assert.Equal(t, 10*time.Minute, cfg.EmbeddingCacheTTL)
	assert.Equal(t, 10000, cfg.BulkMaxIDs)
	assert.Equal(t, entity.AllJobTypes, cfg.WorkerJobTypes)
	assert.Empty(t, cfg.RedisAddr)
}

func TestLoad_CollectsAllErrors(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDIS_DB", "one")
	t.Setenv("ACTIVE_CONFIG_TTL", "soon")
	t.Setenv("WORKER_JOB_TYPES", "run_scraper,make_coffee")

	_, errs := Load("")
	assert.Len(t, errs, 4)
	assert.Contains(t, errs, ErrMissingPostgresDSN)
}

func TestLoad_FileThenEnvOverride(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
postgres_dsn: postgres://file/curation
http_addr: ":9000"
bulk_max_ids: 500
worker_job_types: [run_scraper, fetch_permalink]
`), 0o600))
	t.Setenv("HTTP_ADDR", ":7000")

	cfg, errs := Load(path)
	require.Empty(t, errs)
	assert.Equal(t, "postgres://file/curation", cfg.PostgresDSN)
	assert.Equal(t, ":7000", cfg.HTTPAddr)
	assert.Equal(t, 500, cfg.BulkMaxIDs)
	assert.Equal(t, []entity.JobType{entity.JobTypeRunScraper, entity.JobTypeFetchPermalink}, cfg.WorkerJobTypes)
}

func TestValidateAPI_RequiresAuthSecret(t *testing.T) {
	cfg := &Config{PostgresDSN: "x", BulkMaxIDs: 1}
	assert.Empty(t, cfg.Validate())
	assert.Equal(t, []error{ErrMissingAuthSecret}, cfg.ValidateAPI())
}
