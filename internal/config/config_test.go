package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/agenticcompany/redditor/internal/tracing"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	require.False(t, cfg.Debug)
	require.Equal(t, "INFO", cfg.LogLevel)
	require.Equal(t, "redditor/0.1.0", cfg.Reddit.UserAgent)
	require.Equal(t, time.Second, cfg.Reddit.MinRequestInterval)
	require.Equal(t, 3, cfg.Reddit.MaxRetries)
	require.Equal(t, "sqlite:///./redditor.db", cfg.Database.URL)
	require.Equal(t, "0.0.0.0:8000", cfg.Server.Addr)
	require.False(t, cfg.Tracing.Enabled)
	require.Equal(t, filepath.Join(".redditor", "traces.jsonl"), cfg.Tracing.FilePath)
	require.NoError(t, Validate(cfg))
}

func TestPredicates(t *testing.T) {
	cfg := Defaults()
	require.False(t, cfg.IsRedditConfigured())
	require.False(t, cfg.IsAIConfigured())

	cfg.Reddit.ClientID = "id"
	require.False(t, cfg.IsRedditConfigured(), "secret still missing")
	cfg.Reddit.ClientSecret = "secret"
	require.True(t, cfg.IsRedditConfigured())
	require.False(t, cfg.IsRedditUserConfigured())

	cfg.Reddit.Username = "bot"
	cfg.Reddit.Password = "hunter2"
	require.True(t, cfg.IsRedditUserConfigured())

	cfg.AI.OpenAIAPIKey = "sk-test"
	require.True(t, cfg.IsAIConfigured())
}

func TestValidateLogLevel(t *testing.T) {
	for _, level := range []string{"DEBUG", "info", "WARNING", "ERROR"} {
		require.NoError(t, ValidateLogLevel(level), level)
	}
	err := ValidateLogLevel("TRACE")
	require.ErrorContains(t, err, "log_level must be")
}

func TestValidateReddit(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*RedditConfig)
		wantErr string
	}{
		{"defaults", func(*RedditConfig) {}, ""},
		{"empty user agent", func(r *RedditConfig) { r.UserAgent = "  " }, "user_agent"},
		{"username without password", func(r *RedditConfig) { r.Username = "bot" }, "set together"},
		{"negative interval", func(r *RedditConfig) { r.MinRequestInterval = -time.Second }, "min_request_interval"},
		{"too many retries", func(r *RedditConfig) { r.MaxRetries = 11 }, "max_retries"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Defaults().Reddit
			tt.mutate(&r)
			err := ValidateReddit(r)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidateTracing(t *testing.T) {
	tests := []struct {
		name    string
		cfg     tracing.Config
		wantErr string
	}{
		{"disabled defaults", tracing.DefaultConfig(), ""},
		{"bad sample rate", tracing.Config{SampleRate: 1.5}, "sample_rate"},
		{"bad exporter", tracing.Config{Exporter: "jaeger", SampleRate: 1}, "tracing.exporter"},
		{"file without path", tracing.Config{Enabled: true, Exporter: tracing.ExporterFile, SampleRate: 1}, "file_path"},
		{"otlp without endpoint", tracing.Config{Enabled: true, Exporter: tracing.ExporterOTLP, SampleRate: 1}, "otlp_endpoint"},
		{"stdout", tracing.Config{Enabled: true, Exporter: tracing.ExporterStdout, SampleRate: 0.5}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTracing(tt.cfg)
			if tt.wantErr == "" {
				require.NoError(t, err)
				return
			}
			require.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestValidate_JoinsErrors(t *testing.T) {
	cfg := Defaults()
	cfg.LogLevel = "LOUD"
	cfg.Server.Addr = "no-port"
	cfg.Database.URL = "redditor.db"

	err := Validate(cfg)
	require.Error(t, err)
	require.ErrorContains(t, err, "log_level")
	require.ErrorContains(t, err, "server.addr")
	require.ErrorContains(t, err, "database.url")
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	require.NoError(t, WriteDefaultConfig(path, false))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfigTemplate(), string(data))

	err = WriteDefaultConfig(path, false)
	require.ErrorContains(t, err, "already exists")

	require.NoError(t, os.WriteFile(path, []byte("debug: true\n"), 0o600))
	require.NoError(t, WriteDefaultConfig(path, true))
	data, err = os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConfigTemplate(), string(data))
}

func TestDefaultConfigTemplate_LoadsAsDefaults(t *testing.T) {
	clearEnv(t)
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, WriteDefaultConfig(path, false))

	cfg, used, err := Load(LoadOptions{ConfigFile: path, EnvFile: filepath.Join(t.TempDir(), "none.env")})
	require.NoError(t, err)
	require.Equal(t, path, used)
	require.Equal(t, Defaults(), cfg)
}
