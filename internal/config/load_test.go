package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// clearEnv unsets every bound variable for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, b := range Bindings {
		t.Setenv(b.Env, "")
		require.NoError(t, os.Unsetenv(b.Env))
	}
}

func noFiles(t *testing.T) LoadOptions {
	t.Helper()
	return LoadOptions{
		EnvFile:     filepath.Join(t.TempDir(), "missing.env"),
		SearchPaths: []string{},
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, used, err := Load(noFiles(t))
	require.NoError(t, err)
	require.Empty(t, used)
	require.Equal(t, Defaults(), cfg)
}

func TestLoad_Environment(t *testing.T) {
	clearEnv(t)
	t.Setenv("REDDIT_CLIENT_ID", "abc")
	t.Setenv("REDDIT_CLIENT_SECRET", "xyz")
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant")
	t.Setenv("DATABASE_URL", "postgresql://localhost/redditor")
	t.Setenv("DATABASE_ECHO", "true")
	t.Setenv("REDDITOR_DEBUG", "1")
	t.Setenv("REDDITOR_REDDIT_MIN_REQUEST_INTERVAL", "250ms")
	t.Setenv("REDDITOR_TRACING_SAMPLE_RATE", "0.25")

	cfg, _, err := Load(noFiles(t))
	require.NoError(t, err)
	require.Equal(t, "abc", cfg.Reddit.ClientID)
	require.Equal(t, "xyz", cfg.Reddit.ClientSecret)
	require.Equal(t, "sk-ant", cfg.AI.AnthropicAPIKey)
	require.Equal(t, "postgresql://localhost/redditor", cfg.Database.URL)
	require.True(t, cfg.Database.Echo)
	require.True(t, cfg.Debug)
	require.Equal(t, 250*time.Millisecond, cfg.Reddit.MinRequestInterval)
	require.InDelta(t, 0.25, cfg.Tracing.SampleRate, 1e-9)
	require.True(t, cfg.IsRedditConfigured())
	require.True(t, cfg.IsAIConfigured())
}

func TestLoad_ConfigFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log_level: DEBUG
reddit:
  user_agent: custom/1.0
  max_retries: 5
server:
  addr: 127.0.0.1:9000
`), 0o600))

	opts := noFiles(t)
	opts.ConfigFile = path
	cfg, used, err := Load(opts)
	require.NoError(t, err)
	require.Equal(t, path, used)
	require.Equal(t, "DEBUG", cfg.LogLevel)
	require.Equal(t, "custom/1.0", cfg.Reddit.UserAgent)
	require.Equal(t, 5, cfg.Reddit.MaxRetries)
	require.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
	// untouched keys keep defaults
	require.Equal(t, time.Second, cfg.Reddit.MinRequestInterval)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reddit:\n  user_agent: from-file\n"), 0o600))
	t.Setenv("REDDIT_USER_AGENT", "from-env")

	opts := noFiles(t)
	opts.ConfigFile = path
	cfg, _, err := Load(opts)
	require.NoError(t, err)
	require.Equal(t, "from-env", cfg.Reddit.UserAgent)
}

func TestLoad_ExplicitFileMustExist(t *testing.T) {
	clearEnv(t)
	opts := noFiles(t)
	opts.ConfigFile = filepath.Join(t.TempDir(), "nope.yaml")

	_, _, err := Load(opts)
	require.ErrorContains(t, err, "reading config")
}

func TestLoad_SearchPaths(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	second := filepath.Join(dir, "second.yaml")
	require.NoError(t, os.WriteFile(second, []byte("debug: true\n"), 0o600))

	opts := noFiles(t)
	opts.SearchPaths = []string{filepath.Join(dir, "first.yaml"), second}
	cfg, used, err := Load(opts)
	require.NoError(t, err)
	require.Equal(t, second, used)
	require.True(t, cfg.Debug)
}

func TestLoad_Dotenv(t *testing.T) {
	clearEnv(t)
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte(
		"REDDIT_CLIENT_ID=dotenv-id\nREDDIT_CLIENT_SECRET=dotenv-secret\nOPENAI_API_KEY=sk-dotenv\n"), 0o600))
	t.Setenv("REDDIT_CLIENT_SECRET", "real-secret")

	opts := noFiles(t)
	opts.EnvFile = envFile
	cfg, _, err := Load(opts)
	require.NoError(t, err)
	require.Equal(t, "dotenv-id", cfg.Reddit.ClientID)
	require.Equal(t, "real-secret", cfg.Reddit.ClientSecret, "real environment wins over .env")
	require.Equal(t, "sk-dotenv", cfg.AI.OpenAIAPIKey)

	_, set := os.LookupEnv("REDDIT_CLIENT_ID")
	require.False(t, set, "dotenv must not leak into the process environment")
}

func TestLoad_InvalidYAML(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("reddit: [unterminated\n"), 0o600))

	opts := noFiles(t)
	opts.ConfigFile = path
	_, _, err := Load(opts)
	require.Error(t, err)
}
