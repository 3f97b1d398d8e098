package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewDefaults(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("MYSQL_DSN", "")
	t.Setenv("DB_DRIVER", "")

	cfg := New()

	assert.Equal(t, "mysql", cfg.DB.Driver)
	assert.Contains(t, cfg.DB.DSN, "@tcp(localhost:3306)/campus_match")
	assert.Equal(t, 50, cfg.Match.CandidateLimit)
	assert.True(t, cfg.RateLimit.FailOpen)
	assert.Equal(t, []string{"*"}, cfg.HTTP.CORSOrigins)
}

func TestNewPostgresDSN(t *testing.T) {
	t.Setenv("DB_DSN", "")
	t.Setenv("MYSQL_DSN", "")
	t.Setenv("DB_DRIVER", "Postgres")
	t.Setenv("DB_HOST", "db.internal")

	cfg := New()

	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Contains(t, cfg.DB.DSN, "host=db.internal port=5432")
}

func TestNewOverrides(t *testing.T) {
	t.Setenv("DB_DSN", "file::memory:")
	t.Setenv("MATCH_CANDIDATE_LIMIT", "20")
	t.Setenv("RATE_LIMIT_FAIL_OPEN", "off")
	t.Setenv("HTTP_CORS_ORIGINS", "https://a.example, https://b.example,")
	t.Setenv("REDIS_DB", "not-a-number")

	cfg := New()

	assert.Equal(t, "file::memory:", cfg.DB.DSN)
	assert.Equal(t, 20, cfg.Match.CandidateLimit)
	assert.False(t, cfg.RateLimit.FailOpen)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.HTTP.CORSOrigins)
	assert.Equal(t, 0, cfg.Redis.DB)
}
