package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/agenticcompany/redditor/internal/log"
)

// Binding ties a config key to its environment variable.
type Binding struct {
	Key    string
	Env    string
	Secret bool
}

// Bindings lists every setting with its environment variable.
var Bindings = []Binding{
	{Key: "debug", Env: "REDDITOR_DEBUG"},
	{Key: "log_level", Env: "REDDITOR_LOG_LEVEL"},
	{Key: "log_file", Env: "REDDITOR_LOG_FILE"},
	{Key: "reddit.client_id", Env: "REDDIT_CLIENT_ID", Secret: true},
	{Key: "reddit.client_secret", Env: "REDDIT_CLIENT_SECRET", Secret: true},
	{Key: "reddit.user_agent", Env: "REDDIT_USER_AGENT"},
	{Key: "reddit.username", Env: "REDDIT_USERNAME"},
	{Key: "reddit.password", Env: "REDDIT_PASSWORD", Secret: true},
	{Key: "reddit.min_request_interval", Env: "REDDITOR_REDDIT_MIN_REQUEST_INTERVAL"},
	{Key: "reddit.max_retries", Env: "REDDITOR_REDDIT_MAX_RETRIES"},
	{Key: "reddit.post_cache_ttl", Env: "REDDITOR_REDDIT_POST_CACHE_TTL"},
	{Key: "ai.openai_api_key", Env: "OPENAI_API_KEY", Secret: true},
	{Key: "ai.anthropic_api_key", Env: "ANTHROPIC_API_KEY", Secret: true},
	{Key: "ai.anthropic_model", Env: "REDDITOR_AI_ANTHROPIC_MODEL"},
	{Key: "database.url", Env: "DATABASE_URL"},
	{Key: "database.echo", Env: "DATABASE_ECHO"},
	{Key: "server.addr", Env: "REDDITOR_SERVER_ADDR"},
	{Key: "tracing.enabled", Env: "REDDITOR_TRACING_ENABLED"},
	{Key: "tracing.exporter", Env: "REDDITOR_TRACING_EXPORTER"},
	{Key: "tracing.file_path", Env: "REDDITOR_TRACING_FILE_PATH"},
	{Key: "tracing.otlp_endpoint", Env: "REDDITOR_TRACING_OTLP_ENDPOINT"},
	{Key: "tracing.sample_rate", Env: "REDDITOR_TRACING_SAMPLE_RATE"},
	{Key: "tracing.service_name", Env: "REDDITOR_TRACING_SERVICE_NAME"},
}

// LoadOptions controls where Load looks for settings.
type LoadOptions struct {
	// ConfigFile is an explicit config path. It must exist when set.
	ConfigFile string
	// EnvFile is a dotenv file. Default ".env"; a missing file is ignored.
	EnvFile string
	// SearchPaths are tried in order when ConfigFile is empty.
	// Default: .redditor/config.yaml, then ~/.config/redditor/config.yaml.
	SearchPaths []string
}

// DefaultSearchPaths returns the config locations tried when none is given.
func DefaultSearchPaths() []string {
	paths := []string{filepath.Join(".redditor", "config.yaml")}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "redditor", "config.yaml"))
	}
	return paths
}

// Load builds a Config from defaults, the config file, the dotenv file and
// the environment, in increasing order of precedence. It returns the config
// file used, if any. The result is not validated.
func Load(opts LoadOptions) (Config, string, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v, Defaults())

	for _, b := range Bindings {
		if err := v.BindEnv(b.Key, b.Env); err != nil {
			return Config{}, "", fmt.Errorf("binding %s: %w", b.Env, err)
		}
	}

	used, err := readConfigFile(v, opts)
	if err != nil {
		return Config{}, "", err
	}

	if err := applyDotenv(v, opts.EnvFile); err != nil {
		return Config{}, "", err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, "", fmt.Errorf("decoding config: %w", err)
	}
	return cfg, used, nil
}

func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("debug", d.Debug)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_file", d.LogFile)
	v.SetDefault("reddit.client_id", d.Reddit.ClientID)
	v.SetDefault("reddit.client_secret", d.Reddit.ClientSecret)
	v.SetDefault("reddit.user_agent", d.Reddit.UserAgent)
	v.SetDefault("reddit.username", d.Reddit.Username)
	v.SetDefault("reddit.password", d.Reddit.Password)
	v.SetDefault("reddit.min_request_interval", d.Reddit.MinRequestInterval)
	v.SetDefault("reddit.max_retries", d.Reddit.MaxRetries)
	v.SetDefault("reddit.post_cache_ttl", d.Reddit.PostCacheTTL)
	v.SetDefault("ai.openai_api_key", d.AI.OpenAIAPIKey)
	v.SetDefault("ai.anthropic_api_key", d.AI.AnthropicAPIKey)
	v.SetDefault("ai.anthropic_model", d.AI.AnthropicModel)
	v.SetDefault("database.url", d.Database.URL)
	v.SetDefault("database.echo", d.Database.Echo)
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("tracing.enabled", d.Tracing.Enabled)
	v.SetDefault("tracing.exporter", d.Tracing.Exporter)
	v.SetDefault("tracing.file_path", d.Tracing.FilePath)
	v.SetDefault("tracing.otlp_endpoint", d.Tracing.OTLPEndpoint)
	v.SetDefault("tracing.sample_rate", d.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", d.Tracing.ServiceName)
}

func readConfigFile(v *viper.Viper, opts LoadOptions) (string, error) {
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return "", fmt.Errorf("reading config %s: %w", opts.ConfigFile, err)
		}
		log.Debug(log.CatConfig, "loaded config", "path", opts.ConfigFile)
		return opts.ConfigFile, nil
	}

	paths := opts.SearchPaths
	if paths == nil {
		paths = DefaultSearchPaths()
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			continue
		}
		v.SetConfigFile(p)
		if err := v.ReadInConfig(); err != nil {
			return "", fmt.Errorf("reading config %s: %w", p, err)
		}
		log.Debug(log.CatConfig, "loaded config", "path", p)
		return p, nil
	}
	return "", nil
}

// applyDotenv copies dotenv values for variables the real environment does
// not set. The process environment is left untouched.
func applyDotenv(v *viper.Viper, envFile string) error {
	if envFile == "" {
		envFile = ".env"
	}
	values, err := godotenv.Read(envFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reading %s: %w", envFile, err)
	}
	for _, b := range Bindings {
		if _, set := os.LookupEnv(b.Env); set {
			continue
		}
		if val, ok := values[b.Env]; ok {
			v.Set(b.Key, val)
		}
	}
	log.Debug(log.CatConfig, "applied dotenv", "path", envFile)
	return nil
}
