package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/on-the-ground/effect_ive_todo/config"
	"github.com/on-the-ground/effect_ive_todo/effects/fault"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	cfg, err = config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "todo.toml", `
[log]
level = "debug"
format = "console"

[store]
driver = "sqlite"
path = "/tmp/todos.db"
cache_size = 10
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 256, cfg.Log.BufferSize, "unset keys keep defaults")
	assert.Equal(t, config.Store{Driver: config.DriverSQLite, Path: "/tmp/todos.db", CacheSize: 10}, cfg.Store)
	assert.Equal(t, 8, cfg.Service.BulkConcurrency)
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "todo.yaml", `
log:
  workers: 2
service:
  bulk_concurrency: 5
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Log.Workers)
	assert.Equal(t, 5, cfg.Service.BulkConcurrency)
	assert.Equal(t, config.DriverMemDB, cfg.Store.Driver)
}

func TestLoad_UnknownExtension(t *testing.T) {
	path := writeFile(t, "todo.ini", "level=debug")
	_, err := config.Load(path)
	assert.ErrorIs(t, err, config.ErrUnknownFormat)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := writeFile(t, "todo.toml", "[log\nlevel=")
	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestValidate_ReportsEveryProblemInOrder(t *testing.T) {
	cfg := config.Default()
	cfg.Log.Level = "verbose"
	cfg.Store.Driver = config.DriverSQLite
	cfg.Service.BulkConcurrency = 0

	err := cfg.Validate()
	vf, ok := fault.AsValidation(err)
	if !ok {
		t.Fatalf("expected ValidationFailed, got %v", err)
	}

	var fields []string
	for _, f := range vf.Failures {
		fields = append(fields, f.Field)
	}
	assert.Equal(t, []string{"log.level", "store.path", "service.bulk_concurrency"}, fields)
}

func TestValidate_Default(t *testing.T) {
	assert.NoError(t, config.Default().Validate())
}
