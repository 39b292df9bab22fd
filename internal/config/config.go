// Package config handles loading and validating blogsmith configuration.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Defaults applied when neither the YAML file nor the environment sets a value.
const (
	DefaultModel       = "llama-3.1-8b-instant"
	DefaultBaseURL     = "https://api.groq.com/openai/v1"
	DefaultEnv         = "dev"
	DefaultPort        = 8000
	DefaultMaxInFlight = 40
	DefaultTimeout     = 60 * time.Second
)

// WildcardOrigin allows every origin when it appears in the origin list.
const WildcardOrigin = "*"

// ErrMissingAPIKey is returned by Load when GROQ_API_KEY is not set anywhere.
var ErrMissingAPIKey = errors.New("GROQ_API_KEY is required")

// ErrWriteTimeoutTooShort is returned by Load when the server write timeout
// would expire before a Groq call is allowed to finish.
var ErrWriteTimeoutTooShort = errors.New("server.write_timeout must be greater than groq.timeout")

// Config is the top-level configuration for blogsmith. It is built once by
// Load and never mutated afterwards, so handlers can share it freely.
type Config struct {
	App    AppConfig    `koanf:"app"`
	Server ServerConfig `koanf:"server"`
	Groq   GroqConfig   `koanf:"groq"`
	CORS   CORSConfig   `koanf:"cors"`
	Log    LogConfig    `koanf:"log"`
}

// AppConfig holds informational settings about the deployment.
type AppConfig struct {
	Env string `koanf:"env"` // e.g. "dev", "prod"; logged at startup, never branched on
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         int           `koanf:"port"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`

	// MaxInFlight bounds how many upstream calls may run at once.
	MaxInFlight int64 `koanf:"max_inflight"`
}

// GroqConfig holds the settings for the upstream completion provider.
type GroqConfig struct {
	APIKey  string        `koanf:"api_key"`
	Model   string        `koanf:"model"`
	BaseURL string        `koanf:"base_url"`
	Timeout time.Duration `koanf:"timeout"`
}

// CORSConfig holds the cross-origin policy inputs. AllowedOrigins is filled
// by Load from whichever shape the source provided (see ParseOrigins).
type CORSConfig struct {
	AllowedOrigins []string `koanf:"-"`
}

// LogConfig selects the slog handler.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// envKeys maps recognised environment variables to koanf key paths.
// Anything not listed here is ignored, so the rest of the process
// environment never leaks into the config tree.
var envKeys = map[string]string{
	"GROQ_API_KEY":    "groq.api_key",
	"GROQ_MODEL":      "groq.model",
	"GROQ_BASE_URL":   "groq.base_url",
	"GROQ_TIMEOUT":    "groq.timeout",
	"ALLOWED_ORIGINS": "cors.allowed_origins",
	"APP_ENV":         "app.env",
	"PORT":            "server.port",
	"MAX_INFLIGHT":    "server.max_inflight",
	"LOG_LEVEL":       "log.level",
	"LOG_FORMAT":      "log.format",
}

// Load reads configuration from an optional YAML file, layers environment
// variable overrides on top, applies defaults and returns a fully populated
// Config. An empty path or a missing file skips the YAML layer.
func Load(path string) (*Config, error) {
	// Load .env into the process environment. Variables that are already
	// set win; a missing .env file is not an error.
	_ = godotenv.Load()

	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("loading config file: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("checking config file: %w", err)
		}
	}

	// Env names are matched case-insensitively: groq_api_key works too.
	// Blank values count as unset so they can't erase a YAML setting.
	if err := k.Load(env.ProviderWithValue("", ".", func(key, value string) (string, any) {
		if value == "" {
			return "", nil
		}
		return envKeys[strings.ToUpper(key)], value
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	origins, err := originsFrom(k.Get("cors.allowed_origins"))
	if err != nil {
		return nil, fmt.Errorf("parsing allowed origins: %w", err)
	}
	cfg.CORS.AllowedOrigins = origins

	cfg.applyDefaults()

	if cfg.Groq.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if cfg.Server.WriteTimeout <= cfg.Groq.Timeout {
		return nil, fmt.Errorf("%w (write_timeout %s, groq timeout %s)",
			ErrWriteTimeoutTooShort, cfg.Server.WriteTimeout, cfg.Groq.Timeout)
	}

	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.App.Env == "" {
		c.App.Env = DefaultEnv
	}
	if c.Server.Port == 0 {
		c.Server.Port = DefaultPort
	}
	if c.Groq.Timeout == 0 {
		c.Groq.Timeout = DefaultTimeout
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30 * time.Second
	}
	// The write timeout has to outlive the slowest upstream call, otherwise
	// the connection is cut before the 200 or 502 can be written.
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 2 * c.Groq.Timeout
	}
	if c.Server.MaxInFlight <= 0 {
		c.Server.MaxInFlight = DefaultMaxInFlight
	}
	if c.Groq.Model == "" {
		c.Groq.Model = DefaultModel
	}
	if c.Groq.BaseURL == "" {
		c.Groq.BaseURL = DefaultBaseURL
	}
	c.Groq.BaseURL = strings.TrimRight(c.Groq.BaseURL, "/")
	if len(c.CORS.AllowedOrigins) == 0 {
		c.CORS.AllowedOrigins = []string{WildcardOrigin}
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// originsFrom accepts the raw koanf value for cors.allowed_origins: a YAML
// list, a string in any shape ParseOrigins understands, or nothing.
func originsFrom(v any) ([]string, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case string:
		return ParseOrigins(t)
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			s := strings.TrimSpace(fmt.Sprint(item))
			if s != "" {
				out = append(out, s)
			}
		}
		return out, nil
	case []string:
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported type %T", v)
	}
}

// ParseOrigins normalizes the textual forms of an origin list:
//
//	`["https://a.com","https://b.com"]`  JSON array
//	`https://a.com, https://b.com`       comma-separated, trimmed
//	`*` or `https://a.com`               single value
//
// The result is always a slice; "*" comes back as []string{"*"}.
func ParseOrigins(raw string) ([]string, error) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return nil, nil
	}

	if strings.HasPrefix(v, "[") && strings.HasSuffix(v, "]") {
		var list []string
		if err := json.Unmarshal([]byte(v), &list); err != nil {
			return nil, fmt.Errorf("decoding JSON origin list: %w", err)
		}
		return list, nil
	}

	if strings.Contains(v, ",") {
		var list []string
		for _, part := range strings.Split(v, ",") {
			if s := strings.TrimSpace(part); s != "" {
				list = append(list, s)
			}
		}
		return list, nil
	}

	return []string{v}, nil
}
