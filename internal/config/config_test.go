package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRuntimeDirRequiresXDGRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")

	_, err := runtimeDir()
	assert.Error(t, err)
}

func TestRuntimeDirReturnsXDGRuntimeDirUnchanged(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")

	d, err := runtimeDir()
	require.NoError(t, err)
	assert.Equal(t, "/run/user/1000", d)
}

func TestDataHomeFallsBackUnderHOME(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", "/home/person")

	d, err := dataHome()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/home/person", ".local", "share"), d)
}

func TestDataHomeUsesXDGDataHomeWhenSet(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/custom/data")

	d, err := dataHome()
	require.NoError(t, err)
	assert.Equal(t, "/custom/data", d)
}

func TestLoadFailsWhenXDGRuntimeDirUnset(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "")
	t.Setenv("HOME", "/home/person")

	_, err := Load()
	assert.Error(t, err)
}

func TestLoadDerivesDefaultsFromXDGRuntimeDir(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	t.Setenv("XDG_DATA_HOME", "/home/person/.local/share")
	t.Setenv("UTOPIA_SOCKET_PATH", "")
	t.Setenv("UTOPIA_PLUGIN_DIR", "")
	t.Setenv("UTOPIA_DB_SOCKET_PATH", "")
	t.Setenv("UTOPIA_DB_LISTEN_ADDR", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("/run/user/1000", "utopia.sock"), cfg.SocketPath)
	assert.Equal(t, filepath.Join("/run/user/1000", "utopia-db-ready.sock"), cfg.DBSocketPath)
	assert.Equal(t, filepath.Join("/run/user/1000", "utopia-db.sock"), cfg.DBListenAddr)
	assert.Equal(t, filepath.Join("/home/person/.local/share", "utopia", "plugins"), cfg.PluginDir)
}

func TestLoadHonorsExplicitOverrides(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", "/run/user/1000")
	t.Setenv("UTOPIA_SOCKET_PATH", "/tmp/custom.sock")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "/tmp/custom.sock", cfg.SocketPath)
}
