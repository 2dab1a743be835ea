package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingDefaultUsesDefaults(t *testing.T) {
	t.Chdir(t.TempDir())

	cfg, err := Load(DefaultPath)
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_MissingExplicitPathErrors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "braid.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  addr: ":9090"
log:
  level: debug
store:
  path: /tmp/braid.db
run:
  maxModelCalls: 7
model:
  provider: openai
  name: gpt-4o-mini
task:
  name: researcher
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.Addr)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "/tmp/braid.db", cfg.Store.Path)
	assert.Equal(t, 7, cfg.Run.MaxModelCalls)
	assert.Equal(t, "openai", cfg.Model.Provider)
	assert.Equal(t, "gpt-4o-mini", cfg.Model.Name)
	assert.Equal(t, "researcher", cfg.Task.Name)
	// Untouched sections keep their defaults.
	assert.Equal(t, "text", cfg.Log.Format)
	assert.Equal(t, "You are a helpful assistant.", cfg.Task.Instructions)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "braid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  addr: \":9090\"\n"), 0o644))

	t.Setenv("BRAID_ADDR", ":7070")
	t.Setenv("BRAID_MAX_MODEL_CALLS", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":7070", cfg.Server.Addr)
	assert.Equal(t, 3, cfg.Run.MaxModelCalls)
}

func TestLoad_MalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "braid.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [not a map"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte(`
# comment
export BRAID_TEST_FROM_FILE="file value"
BRAID_TEST_PRESET=from file
`), 0o644))

	t.Setenv("BRAID_TEST_PRESET", "already set")
	// Register cleanup for the variable the file will set, then clear it.
	t.Setenv("BRAID_TEST_FROM_FILE", "")
	require.NoError(t, os.Unsetenv("BRAID_TEST_FROM_FILE"))

	LoadDotEnv(path)

	assert.Equal(t, "file value", os.Getenv("BRAID_TEST_FROM_FILE"))
	assert.Equal(t, "already set", os.Getenv("BRAID_TEST_PRESET"))

	// A missing file is a no-op, not an error.
	LoadDotEnv(filepath.Join(t.TempDir(), "absent.env"))
}
