package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "fs", cfg.StorageBackend)
	assert.Equal(t, 24*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 90, cfg.DownloadRetentionDays)
	assert.Equal(t, 15*time.Minute, cfg.S3.PresignDuration)
	assert.Equal(t, 15*time.Minute, cfg.LinkTTL)
	assert.Empty(t, cfg.AdminUsername)
	assert.False(t, cfg.InMemory())
}

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("DATABASE_URL", "MEMORY")
	t.Setenv("STORAGE_BACKEND", "s3")
	t.Setenv("TOKEN_TTL", "2h")
	t.Setenv("RATE_LIMIT_RPS", "2.5")
	t.Setenv("S3_BUCKET", "clips")
	t.Setenv("S3_USE_PATH_STYLE", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.True(t, cfg.InMemory())
	assert.Equal(t, "s3", cfg.StorageBackend)
	assert.Equal(t, 2*time.Hour, cfg.TokenTTL)
	assert.Equal(t, 2.5, cfg.RateLimitRPS)
	assert.Equal(t, "clips", cfg.S3.Bucket)
	assert.True(t, cfg.S3.UsePathStyle)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name, key, value string
	}{
		{"unknown backend", "STORAGE_BACKEND", "ftp"},
		{"zero retention", "DOWNLOAD_RETENTION_DAYS", "0"},
		{"negative ttl", "TOKEN_TTL", "-1h"},
		{"unparsable duration", "RETENTION_INTERVAL", "soon"},
		{"zero link ttl", "LINK_TTL", "0s"},
		{"admin without password", "ADMIN_USERNAME", "root"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
