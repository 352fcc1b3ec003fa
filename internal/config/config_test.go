package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GRADEBOOK_JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, CloneBackendExec, cfg.CloneBackend)
	require.Equal(t, 10*time.Minute, cfg.ScanCacheTTL)
	require.Equal(t, 2*time.Minute, cfg.CloneTimeout)
	require.Equal(t, "all-or-nothing", cfg.UploadPolicy)
	require.Equal(t, "collapsed", cfg.UploadMode)
	require.Equal(t, "partial-credit", cfg.RepositoryPolicy)
	require.Equal(t, "insensitive", cfg.RepositoryMode)
	require.Equal(t, int64(1<<20), cfg.MaxFileBytes)
	require.Equal(t, "gradebook.scoring.completed", cfg.ScoringSubject())
	require.False(t, cfg.CloudinaryEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GRADEBOOK_JWT_SECRET", "secret")
	t.Setenv("GRADEBOOK_APP_PORT", ":9000")
	t.Setenv("GRADEBOOK_CLONE_BACKEND", "Docker")
	t.Setenv("GRADEBOOK_SCAN_CACHE_TTL", "30s")
	t.Setenv("GRADEBOOK_SCAN_WORKERS", "0")
	t.Setenv("GRADEBOOK_NATS_SUBJECT_BASE", "school.")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.HTTPAddress())
	require.Equal(t, CloneBackendDocker, cfg.CloneBackend)
	require.Equal(t, 30*time.Second, cfg.ScanCacheTTL)
	require.Equal(t, 8, cfg.ScanWorkers)
	require.Equal(t, "school.scoring.completed", cfg.ScoringSubject())
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	t.Setenv("GRADEBOOK_JWT_SECRET", "")
	_, err := Load()
	require.ErrorContains(t, err, "jwt secret")

	t.Setenv("GRADEBOOK_JWT_SECRET", "secret")
	t.Setenv("GRADEBOOK_CLONE_BACKEND", "ftp")
	_, err = Load()
	require.ErrorContains(t, err, "clone backend")

	t.Setenv("GRADEBOOK_CLONE_BACKEND", "exec")
	t.Setenv("GRADEBOOK_SCAN_CACHE_TTL", "soon")
	_, err = Load()
	require.ErrorContains(t, err, "scan.cache_ttl")
}
