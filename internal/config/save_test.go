package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSet_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "config.yaml")

	require.NoError(t, Set(path, "reddit.user_agent", "bot/2.0"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "reddit:")
	require.Contains(t, string(data), "user_agent: bot/2.0")
}

func TestSet_PreservesComments(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path, false))

	require.NoError(t, Set(path, "log_level", "DEBUG"))
	require.NoError(t, Set(path, "server.addr", "127.0.0.1:9000"))
	require.NoError(t, Set(path, "tracing.enabled", "true"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "# Create a \"script\" app")

	opts := noFiles(t)
	opts.ConfigFile = path
	cfg, _, err := Load(opts)
	require.NoError(t, err)
	require.Equal(t, "DEBUG", cfg.LogLevel)
	require.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	require.True(t, cfg.Tracing.Enabled)
	require.Equal(t, "redditor/0.1.0", cfg.Reddit.UserAgent)
}

func TestSet_UnknownKey(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	err := Set(path, "reddit.favourite_color", "blue")
	require.ErrorContains(t, err, "unknown config key")

	_, statErr := os.Stat(path)
	require.True(t, os.IsNotExist(statErr))
}

func TestSet_NonMappingParent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reddit: nope\n"), 0o600))

	err := Set(path, "reddit.client_id", "abc")
	require.ErrorContains(t, err, "not a mapping")
}

func TestIsKnownKey(t *testing.T) {
	require.True(t, IsKnownKey("database.url"))
	require.True(t, IsKnownKey("debug"))
	require.False(t, IsKnownKey("reddit"))
}
