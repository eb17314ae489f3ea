package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeEnvFile(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func clearEnv(t *testing.T) {
	t.Helper()

	for _, k := range []string{"APP_ENV", "ADMIN_EMAIL", "ADMIN_PASSWORD", "SESSION_SECRET", "DB_PATH", "PORT", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
}

func TestLoadFile_ReadsValuesAndIgnoresNoise(t *testing.T) {
	clearEnv(t)

	path := writeEnvFile(t, `
# comment

ADMIN_EMAIL=admin@itabus.com
export ADMIN_PASSWORD=two
SESSION_SECRET="three"
LOG_LEVEL='debug'
`)

	cfg, err := LoadFile(path)
	require.NoError(t, err)

	assert.Equal(t, "admin@itabus.com", cfg.AdminEmail)
	assert.Equal(t, "two", cfg.AdminPassword)
	assert.Equal(t, "three", cfg.SessionSecret)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Empty(t, cfg.MissingSecrets())
}

func TestLoadFile_EnvironmentWins(t *testing.T) {
	clearEnv(t)
	t.Setenv("PORT", "9090")

	cfg, err := LoadFile(writeEnvFile(t, "PORT=7070\nDB_PATH=/tmp/file.db\n"))
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, "/tmp/file.db", cfg.DBPath)
}

func TestLoadFile_MissingFileUsesDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)

	assert.Equal(t, defaultDBPath, cfg.DBPath)
	assert.Equal(t, defaultPort, cfg.Port)
	assert.Equal(t, defaultLogLevel, cfg.LogLevel)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, []string{"ADMIN_EMAIL", "ADMIN_PASSWORD", "SESSION_SECRET"}, cfg.MissingSecrets())
}

func TestIsDev(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_ENV", " Production ")

	cfg, err := LoadFile("")
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.False(t, cfg.IsDev())
}
