package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/waybill-engine/config"
	"github.com/warp/waybill-engine/generic"
	"github.com/warp/waybill-engine/waybill"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := config.LoadFiles(filepath.Join(t.TempDir(), "missing.env"))

	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.AppAddr)
	assert.Equal(t, 30*time.Second, cfg.AppShutdownTimeout)
	assert.Equal(t, "waybills.db", cfg.DBPath)
	assert.Equal(t, time.Duration(0), cfg.AuditInterval)
	assert.Equal(t, generic.DefaultRecurringSeason(), cfg.Season())

	mode, err := cfg.Mode()
	require.NoError(t, err)
	assert.Equal(t, waybill.ModeDriver, mode)
}

func TestLoad_DotenvThenEnvironment(t *testing.T) {
	// GIVEN: a .env file setting two keys, and one of them also in the environment
	// WHEN: config is loaded
	// THEN: the environment wins, the other key comes from the file

	dir := t.TempDir()
	envFile := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("DB_PATH=/tmp/from-file.db\nREVIEW_MODE=central\n"), 0o600))
	t.Setenv("DB_PATH", ":memory:")
	t.Setenv("CORS_ORIGINS", "https://a.example,https://b.example")
	t.Cleanup(func() { os.Unsetenv("REVIEW_MODE") })

	cfg, err := config.LoadFiles(envFile)

	require.NoError(t, err)
	assert.Equal(t, ":memory:", cfg.DBPath)
	assert.Equal(t, "central", cfg.ReviewMode)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
}

func TestLoad_RejectsBadSettings(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.env")

	t.Run("review mode", func(t *testing.T) {
		t.Setenv("REVIEW_MODE", "auditor")
		_, err := config.LoadFiles(missing)
		assert.ErrorIs(t, err, generic.ErrContractViolation)
	})

	t.Run("season month", func(t *testing.T) {
		t.Setenv("SEASON_WINTER_MONTH", "13")
		_, err := config.LoadFiles(missing)
		assert.ErrorIs(t, err, generic.ErrContractViolation)
	})

	t.Run("duration", func(t *testing.T) {
		t.Setenv("AUDIT_INTERVAL", "soon")
		_, err := config.LoadFiles(missing)
		assert.Error(t, err)
	})
}
