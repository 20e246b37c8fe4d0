// Package config provides redditor's settings, their defaults, validation and
// the commented default config file.
package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/agenticcompany/redditor/internal/log"
	"github.com/agenticcompany/redditor/internal/templates"
	"github.com/agenticcompany/redditor/internal/tracing"
)

// Config holds all redditor settings.
type Config struct {
	Debug    bool           `mapstructure:"debug"`
	LogLevel string         `mapstructure:"log_level"`
	LogFile  string         `mapstructure:"log_file"`
	Reddit   RedditConfig   `mapstructure:"reddit"`
	AI       AIConfig       `mapstructure:"ai"`
	Database DatabaseConfig `mapstructure:"database"`
	Server   ServerConfig   `mapstructure:"server"`
	Tracing  tracing.Config `mapstructure:"tracing"`
}

// RedditConfig holds Reddit API credentials and client tuning.
type RedditConfig struct {
	ClientID     string `mapstructure:"client_id"`
	ClientSecret string `mapstructure:"client_secret"`
	UserAgent    string `mapstructure:"user_agent"`
	// Username and Password enable the script-app password grant.
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`

	MinRequestInterval time.Duration `mapstructure:"min_request_interval"`
	MaxRetries         int           `mapstructure:"max_retries"`
	PostCacheTTL       time.Duration `mapstructure:"post_cache_ttl"`
}

// AIConfig holds AI provider keys. Only Anthropic is used for summaries;
// an OpenAI key still counts as AI being configured.
type AIConfig struct {
	OpenAIAPIKey    string `mapstructure:"openai_api_key"`
	AnthropicAPIKey string `mapstructure:"anthropic_api_key"`
	AnthropicModel  string `mapstructure:"anthropic_model"`
}

// DatabaseConfig is carried for display only; redditor keeps no state.
type DatabaseConfig struct {
	URL  string `mapstructure:"url"`
	Echo bool   `mapstructure:"echo"`
}

// ServerConfig configures `redditor serve`.
type ServerConfig struct {
	Addr string `mapstructure:"addr"`
}

// Defaults returns a Config with default values.
func Defaults() Config {
	tc := tracing.DefaultConfig()
	tc.FilePath = filepath.Join(".redditor", "traces.jsonl")
	return Config{
		LogLevel: "INFO",
		Reddit: RedditConfig{
			UserAgent:          "redditor/0.1.0",
			MinRequestInterval: time.Second,
			MaxRetries:         3,
			PostCacheTTL:       5 * time.Minute,
		},
		AI: AIConfig{
			AnthropicModel: "claude-haiku-4-5",
		},
		Database: DatabaseConfig{
			URL: "sqlite:///./redditor.db",
		},
		Server: ServerConfig{
			Addr: "0.0.0.0:8000",
		},
		Tracing: tc,
	}
}

// IsRedditConfigured reports whether both client id and secret are set.
func (c Config) IsRedditConfigured() bool {
	return c.Reddit.ClientID != "" && c.Reddit.ClientSecret != ""
}

// IsRedditUserConfigured reports whether the password grant can be used.
func (c Config) IsRedditUserConfigured() bool {
	return c.IsRedditConfigured() && c.Reddit.Username != "" && c.Reddit.Password != ""
}

// IsAIConfigured reports whether any AI key is set.
func (c Config) IsAIConfigured() bool {
	return c.AI.OpenAIAPIKey != "" || c.AI.AnthropicAPIKey != ""
}

// Validate checks every section and returns all problems joined.
func Validate(c Config) error {
	return errors.Join(
		ValidateLogLevel(c.LogLevel),
		ValidateReddit(c.Reddit),
		ValidateDatabase(c.Database),
		ValidateServer(c.Server),
		ValidateTracing(c.Tracing),
	)
}

// ValidateLogLevel checks log_level.
func ValidateLogLevel(level string) error {
	if _, err := log.ParseLevel(level); err != nil {
		return fmt.Errorf("log_level must be DEBUG, INFO, WARNING or ERROR, got %q", level)
	}
	return nil
}

// ValidateReddit checks the reddit section. Credentials may be empty.
func ValidateReddit(r RedditConfig) error {
	if strings.TrimSpace(r.UserAgent) == "" {
		return fmt.Errorf("reddit.user_agent must not be empty")
	}
	if (r.Username == "") != (r.Password == "") {
		return fmt.Errorf("reddit.username and reddit.password must be set together")
	}
	if r.MinRequestInterval < 0 {
		return fmt.Errorf("reddit.min_request_interval must not be negative, got %s", r.MinRequestInterval)
	}
	if r.MaxRetries < 0 || r.MaxRetries > 10 {
		return fmt.Errorf("reddit.max_retries must be between 0 and 10, got %d", r.MaxRetries)
	}
	return nil
}

// ValidateDatabase checks database.url has a scheme.
func ValidateDatabase(d DatabaseConfig) error {
	if d.URL == "" {
		return nil
	}
	if !strings.Contains(d.URL, "://") {
		return fmt.Errorf("database.url must be a URL like sqlite:///./redditor.db, got %q", d.URL)
	}
	return nil
}

// ValidateServer checks server.addr is host:port.
func ValidateServer(s ServerConfig) error {
	if _, _, err := net.SplitHostPort(s.Addr); err != nil {
		return fmt.Errorf("server.addr must be host:port, got %q", s.Addr)
	}
	return nil
}

// ValidateTracing checks the tracing section.
func ValidateTracing(t tracing.Config) error {
	if t.SampleRate < 0.0 || t.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", t.SampleRate)
	}
	switch t.Exporter {
	case "", tracing.ExporterNone, tracing.ExporterFile, tracing.ExporterStdout, tracing.ExporterOTLP:
	default:
		return fmt.Errorf("tracing.exporter must be \"none\", \"file\", \"stdout\", or \"otlp\", got %q", t.Exporter)
	}
	if t.Enabled {
		if t.Exporter == tracing.ExporterFile && t.FilePath == "" {
			return fmt.Errorf("tracing.file_path is required when exporter is \"file\"")
		}
		if t.Exporter == tracing.ExporterOTLP && t.OTLPEndpoint == "" {
			return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
		}
	}
	return nil
}

// DefaultConfigTemplate returns the default config file with comments.
func DefaultConfigTemplate() string {
	return templates.DefaultConfig()
}

// WriteDefaultConfig writes DefaultConfigTemplate to configPath, creating the
// parent directory. An existing file is left alone unless force is set.
func WriteDefaultConfig(configPath string, force bool) error {
	log.Debug(log.CatConfig, "writing default config", "path", configPath)

	if !force {
		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file %s already exists", configPath)
		}
	}

	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		log.ErrorErr(log.CatConfig, "failed to create config directory", err, "dir", dir)
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(DefaultConfigTemplate()), 0o600); err != nil {
		log.ErrorErr(log.CatConfig, "failed to write config file", err, "path", configPath)
		return fmt.Errorf("writing config file: %w", err)
	}

	log.Info(log.CatConfig, "created default config", "path", configPath)
	return nil
}
