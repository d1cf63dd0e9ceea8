package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	env "github.com/Netflix/go-env"
)

const (
	DefaultListenAddr      = "127.0.0.1:8080"
	DefaultShutdownTimeout = 15 * time.Second
	// DefaultProviderTimeout bounds each remote provider call. The upstream
	// API has no server-side deadline we can rely on, so an unbounded request
	// would suspend its caller indefinitely.
	DefaultProviderTimeout = 10 * time.Second
	DefaultProviderAPIURL  = "https://api.opentok.com"
	DefaultTokenTTL        = 24 * time.Hour

	DefaultMode Mode = ModeDev
)

type Mode string

const (
	ModeDev  Mode = "dev"
	ModeProd Mode = "prod"
)

type LogFormat string

const (
	LogFormatText LogFormat = "text"
	LogFormatJSON LogFormat = "json"
)

// envConfig is the raw shape read from the environment. Fields that need
// parsing or mode-dependent defaults are kept as strings and resolved by
// load.
type envConfig struct {
	APIKey            string `env:"API_KEY,required=true"`
	APISecret         string `env:"API_SECRET,required=true"`
	PresenceSessionID string `env:"PRESENCE_SESSION,required=true"`

	ListenAddr      string        `env:"LISTEN_ADDR,default=127.0.0.1:8080"`
	Mode            string        `env:"MODE,default=dev"`
	LogFormat       string        `env:"LOG_FORMAT"`
	LogLevel        string        `env:"LOG_LEVEL"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT,default=15s"`

	ProviderAPIURL  string        `env:"PROVIDER_API_URL,default=https://api.opentok.com"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT,default=10s"`
	TokenTTL        time.Duration `env:"TOKEN_TTL,default=24h"`

	AllowedOrigins string `env:"ALLOWED_ORIGINS"`
}

type Config struct {
	// Provider credentials and the well-known presence session. All three are
	// required before any request is served; absence is fatal at startup.
	APIKey            string
	APISecret         string
	PresenceSessionID string

	ListenAddr      string
	Mode            Mode
	LogFormat       LogFormat
	LogLevel        slog.Level
	ShutdownTimeout time.Duration

	ProviderAPIURL  string
	ProviderTimeout time.Duration
	TokenTTL        time.Duration

	// AllowedOrigins is the browser Origin allowlist for the token-issuing
	// routes. Entries are normalized origins or "*". Empty means same-host
	// only.
	AllowedOrigins []string
}

func Load() (Config, error) {
	return load(os.Environ())
}

func load(environ []string) (Config, error) {
	es, err := env.EnvironToEnvSet(environ)
	if err != nil {
		return Config{}, fmt.Errorf("read environment: %w", err)
	}

	var raw envConfig
	if err := env.Unmarshal(es, &raw); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}

	cfg := Config{
		APIKey:            strings.TrimSpace(raw.APIKey),
		APISecret:         strings.TrimSpace(raw.APISecret),
		PresenceSessionID: strings.TrimSpace(raw.PresenceSessionID),
		ListenAddr:        raw.ListenAddr,
		ShutdownTimeout:   raw.ShutdownTimeout,
		ProviderAPIURL:    strings.TrimRight(raw.ProviderAPIURL, "/"),
		ProviderTimeout:   raw.ProviderTimeout,
		TokenTTL:          raw.TokenTTL,
	}

	// required=true rejects unset variables but not empty or blank ones, and
	// a blank credential is just as fatal.
	if cfg.APIKey == "" {
		return Config{}, fmt.Errorf("API_KEY must not be empty")
	}
	if cfg.APISecret == "" {
		return Config{}, fmt.Errorf("API_SECRET must not be empty")
	}
	if cfg.PresenceSessionID == "" {
		return Config{}, fmt.Errorf("PRESENCE_SESSION must not be empty")
	}

	switch Mode(strings.ToLower(strings.TrimSpace(raw.Mode))) {
	case ModeDev:
		cfg.Mode = ModeDev
	case ModeProd, "production":
		cfg.Mode = ModeProd
	default:
		return Config{}, fmt.Errorf("invalid MODE %q (expected dev or prod)", raw.Mode)
	}

	logFormat := raw.LogFormat
	if strings.TrimSpace(logFormat) == "" {
		logFormat = string(defaultLogFormatForMode(cfg.Mode))
	}
	switch LogFormat(strings.ToLower(strings.TrimSpace(logFormat))) {
	case LogFormatText:
		cfg.LogFormat = LogFormatText
	case LogFormatJSON:
		cfg.LogFormat = LogFormatJSON
	default:
		return Config{}, fmt.Errorf("invalid LOG_FORMAT %q (expected text or json)", raw.LogFormat)
	}

	logLevel := raw.LogLevel
	if strings.TrimSpace(logLevel) == "" {
		logLevel = defaultLogLevelForMode(cfg.Mode)
	}
	level, err := parseLogLevel(logLevel)
	if err != nil {
		return Config{}, err
	}
	cfg.LogLevel = level

	if cfg.ShutdownTimeout <= 0 {
		return Config{}, fmt.Errorf("SHUTDOWN_TIMEOUT must be > 0, got %s", cfg.ShutdownTimeout)
	}
	if cfg.ProviderTimeout <= 0 {
		return Config{}, fmt.Errorf("PROVIDER_TIMEOUT must be > 0, got %s", cfg.ProviderTimeout)
	}
	if cfg.TokenTTL <= 0 {
		return Config{}, fmt.Errorf("TOKEN_TTL must be > 0, got %s", cfg.TokenTTL)
	}
	if cfg.ProviderAPIURL == "" {
		return Config{}, fmt.Errorf("PROVIDER_API_URL must not be empty")
	}

	for _, entry := range strings.Split(raw.AllowedOrigins, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		cfg.AllowedOrigins = append(cfg.AllowedOrigins, entry)
	}

	return cfg, nil
}

func NewLogger(cfg Config) (*slog.Logger, error) {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	switch cfg.LogFormat {
	case LogFormatText:
		handler = slog.NewTextHandler(os.Stdout, opts)
	case LogFormatJSON:
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		return nil, fmt.Errorf("unsupported log format %q", cfg.LogFormat)
	}

	return slog.New(handler), nil
}

func defaultLogFormatForMode(mode Mode) LogFormat {
	if mode == ModeProd {
		return LogFormatJSON
	}
	return LogFormatText
}

func defaultLogLevelForMode(mode Mode) string {
	if mode == ModeProd {
		return "info"
	}
	return "debug"
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q (expected debug, info, warn, error)", raw)
	}
}
