package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultAppConfig(t *testing.T) {
	cfg := DefaultAppConfig()
	assert.Equal(t, "merchantd", cfg.System.Appid)
	assert.Equal(t, 1899, cfg.Web.Port)
	assert.Equal(t, "postgres", cfg.Database.Type)
	assert.Equal(t, "database", cfg.Ledger.Store)
	assert.Equal(t, "2h", cfg.Cart.IdleTTL)
	assert.Equal(t, 3, cfg.Ledger.AppendRetries)
}

func TestLoadConfigMissingFileYieldsDefaults(t *testing.T) {
	cfg := LoadConfig("/nonexistent/merchantd.yml")
	assert.Equal(t, DefaultAppConfig().Web.Port, cfg.Web.Port)
}

func TestLoadConfigFromYaml(t *testing.T) {
	cfile := filepath.Join(t.TempDir(), "merchantd.yml")
	content := `
system:
  workdir: /tmp/merchantd-test
web:
  host: 127.0.0.1
  port: 2899
database:
  type: sqlite
ledger:
  store: bolt
  node_id: 7
cart:
  idle_ttl: 30m
`
	require.NoError(t, os.WriteFile(cfile, []byte(content), 0o644))

	cfg := LoadConfig(cfile)
	assert.Equal(t, "/tmp/merchantd-test", cfg.System.Workdir)
	assert.Equal(t, 2899, cfg.Web.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "bolt", cfg.Ledger.Store)
	assert.Equal(t, int64(7), cfg.Ledger.NodeID)
	assert.Equal(t, "30m", cfg.Cart.IdleTTL)

	// untouched sections keep their defaults
	assert.Equal(t, "merchantd", cfg.System.Appid)
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("MERCHANTD_WEB_PORT", "3899")
	t.Setenv("MERCHANTD_DB_TYPE", "sqlite")
	t.Setenv("MERCHANTD_LEDGER_STORE", "bolt")
	t.Setenv("MERCHANTD_SYSTEM_DEBUG", "false")

	cfg := LoadConfig("")
	assert.Equal(t, 3899, cfg.Web.Port)
	assert.Equal(t, "sqlite", cfg.Database.Type)
	assert.Equal(t, "bolt", cfg.Ledger.Store)
	assert.False(t, cfg.System.Debug)
}

func TestInitDirs(t *testing.T) {
	cfg := DefaultAppConfig()
	cfg.System.Workdir = t.TempDir()
	cfg.InitDirs()

	for _, sub := range []string{"data", "logs", "exports"} {
		info, err := os.Stat(filepath.Join(cfg.System.Workdir, sub))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
