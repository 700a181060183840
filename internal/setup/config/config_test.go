package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talkline/counters/internal/setup/config"
)

const testConfig = `
[http]
public_port = 9090
rest_port = 9091

[postgresql]
host = "localhost"
port = 5432
user = "counters"
password = "counters"
db_name = "counters"

[redis]
host = "localhost"
port = 6379

[session]
secret = "test-secret"

[debug]
log_level = "debug"
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	dir := t.TempDir()
	err := os.WriteFile(filepath.Join(dir, "counters.toml"), []byte(content), 0o644)
	require.NoError(t, err)

	return dir
}

func TestLoadConfigFrom(t *testing.T) {
	t.Parallel()

	dir := writeConfig(t, testConfig)

	cfg, usedPath, err := config.LoadConfigFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, usedPath)
	assert.Equal(t, 9090, cfg.HTTP.PublicPort)
	assert.Equal(t, 9091, cfg.HTTP.RESTPort)
	assert.Equal(t, "localhost", cfg.PostgreSQL.Host)
	assert.Equal(t, "test-secret", cfg.Session.Secret)
	assert.Equal(t, "debug", cfg.Debug.LogLevel)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	dir := writeConfig(t, "[postgresql]\nhost = \"db\"\n")

	cfg, _, err := config.LoadConfigFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.HTTP.PublicHost)
	assert.Equal(t, 8080, cfg.HTTP.PublicPort)
	assert.Equal(t, 50, cfg.PostgreSQL.MaxOpenConns)
	assert.Equal(t, "info", cfg.Debug.LogLevel)
}

func TestLoadConfigReadOnlyFallback(t *testing.T) {
	t.Parallel()

	dir := writeConfig(t, testConfig)

	cfg, _, err := config.LoadConfigFrom(dir)
	require.NoError(t, err)

	// No postgresql_ro section means reads go to the primary
	assert.Equal(t, cfg.PostgreSQL, cfg.PostgreSQLRO)
}

func TestLoadConfigReadOnlyOverride(t *testing.T) {
	t.Parallel()

	dir := writeConfig(t, testConfig+`
[postgresql_ro]
host = "replica"
port = 5432
user = "counters_ro"
password = "counters_ro"
db_name = "counters"
`)

	cfg, _, err := config.LoadConfigFrom(dir)
	require.NoError(t, err)

	assert.Equal(t, "replica", cfg.PostgreSQLRO.Host)
	// Pool knobs inherit from the primary when omitted
	assert.Equal(t, cfg.PostgreSQL.MaxOpenConns, cfg.PostgreSQLRO.MaxOpenConns)
}

func TestLoadConfigMissing(t *testing.T) {
	t.Parallel()

	_, _, err := config.LoadConfigFrom(t.TempDir())
	require.ErrorIs(t, err, config.ErrConfigFileNotFound)
}
