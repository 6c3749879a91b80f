package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeKVs_RedactsSecrets(t *testing.T) {
	out := sanitizeKVs([]interface{}{
		"job_id", "abc",
		"auth_token", "eyJ...",
		"EMBEDDING_API_KEY", "sk-123",
		"postgres_dsn", "postgres://app:hunter2@db:5432/curation",
		"dangling",
	})

	assert.Equal(t, []interface{}{
		"job_id", "abc",
		"auth_token", "[REDACTED]",
		"EMBEDDING_API_KEY", "[REDACTED]",
		"postgres_dsn", "postgres://app:****@db:5432/curation",
		"dangling",
	}, out)
}

func TestRedactDSN_NoPassword(t *testing.T) {
	assert.Equal(t, "postgres://app@db/curation", RedactDSN("postgres://app@db/curation"))
	assert.Equal(t, "host=db user=app", RedactDSN("host=db user=app"))
}
