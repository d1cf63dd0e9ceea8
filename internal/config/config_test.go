package config

import (
	"log/slog"
	"strings"
	"testing"
	"time"
)

func baseEnviron() []string {
	return []string{
		"API_KEY=46209827",
		"API_SECRET=topsecret",
		"PRESENCE_SESSION=2_MX40NjIwOTgyN35-presence",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := load(baseEnviron())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.APIKey != "46209827" {
		t.Errorf("APIKey=%q, want 46209827", cfg.APIKey)
	}
	if cfg.PresenceSessionID != "2_MX40NjIwOTgyN35-presence" {
		t.Errorf("PresenceSessionID=%q", cfg.PresenceSessionID)
	}
	if cfg.ListenAddr != DefaultListenAddr {
		t.Errorf("ListenAddr=%q, want %q", cfg.ListenAddr, DefaultListenAddr)
	}
	if cfg.Mode != ModeDev {
		t.Errorf("Mode=%q, want dev", cfg.Mode)
	}
	if cfg.LogFormat != LogFormatText {
		t.Errorf("LogFormat=%q, want text in dev mode", cfg.LogFormat)
	}
	if cfg.LogLevel != slog.LevelDebug {
		t.Errorf("LogLevel=%v, want debug in dev mode", cfg.LogLevel)
	}
	if cfg.ShutdownTimeout != DefaultShutdownTimeout {
		t.Errorf("ShutdownTimeout=%s, want %s", cfg.ShutdownTimeout, DefaultShutdownTimeout)
	}
	if cfg.ProviderTimeout != DefaultProviderTimeout {
		t.Errorf("ProviderTimeout=%s, want %s", cfg.ProviderTimeout, DefaultProviderTimeout)
	}
	if cfg.ProviderAPIURL != DefaultProviderAPIURL {
		t.Errorf("ProviderAPIURL=%q, want %q", cfg.ProviderAPIURL, DefaultProviderAPIURL)
	}
	if cfg.TokenTTL != DefaultTokenTTL {
		t.Errorf("TokenTTL=%s, want %s", cfg.TokenTTL, DefaultTokenTTL)
	}
	if len(cfg.AllowedOrigins) != 0 {
		t.Errorf("AllowedOrigins=%v, want empty", cfg.AllowedOrigins)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	tests := []struct {
		name    string
		environ []string
		wantSub string
	}{
		{
			name:    "missing api key",
			environ: []string{"API_SECRET=s", "PRESENCE_SESSION=p"},
		},
		{
			name:    "missing api secret",
			environ: []string{"API_KEY=k", "PRESENCE_SESSION=p"},
		},
		{
			name:    "missing presence session",
			environ: []string{"API_KEY=k", "API_SECRET=s"},
		},
		{
			name:    "blank api secret",
			environ: []string{"API_KEY=k", "API_SECRET=   ", "PRESENCE_SESSION=p"},
			wantSub: "API_SECRET",
		},
		{
			name:    "blank presence session",
			environ: []string{"API_KEY=k", "API_SECRET=s", "PRESENCE_SESSION="},
			wantSub: "PRESENCE_SESSION",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := load(tc.environ)
			if err == nil {
				t.Fatalf("expected error")
			}
			if tc.wantSub != "" && !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}

func TestLoadProdModeDefaults(t *testing.T) {
	cfg, err := load(append(baseEnviron(), "MODE=prod"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Mode != ModeProd {
		t.Errorf("Mode=%q, want prod", cfg.Mode)
	}
	if cfg.LogFormat != LogFormatJSON {
		t.Errorf("LogFormat=%q, want json in prod mode", cfg.LogFormat)
	}
	if cfg.LogLevel != slog.LevelInfo {
		t.Errorf("LogLevel=%v, want info in prod mode", cfg.LogLevel)
	}
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := load(append(baseEnviron(),
		"LISTEN_ADDR=0.0.0.0:9000",
		"LOG_FORMAT=json",
		"LOG_LEVEL=warn",
		"SHUTDOWN_TIMEOUT=3s",
		"PROVIDER_TIMEOUT=500ms",
		"PROVIDER_API_URL=https://provider.test/",
		"TOKEN_TTL=1h",
		"ALLOWED_ORIGINS=https://app.example.com, https://staging.example.com",
	))
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.ListenAddr != "0.0.0.0:9000" {
		t.Errorf("ListenAddr=%q", cfg.ListenAddr)
	}
	if cfg.LogFormat != LogFormatJSON || cfg.LogLevel != slog.LevelWarn {
		t.Errorf("log config=%q/%v", cfg.LogFormat, cfg.LogLevel)
	}
	if cfg.ShutdownTimeout != 3*time.Second {
		t.Errorf("ShutdownTimeout=%s", cfg.ShutdownTimeout)
	}
	if cfg.ProviderTimeout != 500*time.Millisecond {
		t.Errorf("ProviderTimeout=%s", cfg.ProviderTimeout)
	}
	if cfg.ProviderAPIURL != "https://provider.test" {
		t.Errorf("ProviderAPIURL=%q, want trailing slash trimmed", cfg.ProviderAPIURL)
	}
	if cfg.TokenTTL != time.Hour {
		t.Errorf("TokenTTL=%s", cfg.TokenTTL)
	}
	want := []string{"https://app.example.com", "https://staging.example.com"}
	if len(cfg.AllowedOrigins) != len(want) {
		t.Fatalf("AllowedOrigins=%v, want %v", cfg.AllowedOrigins, want)
	}
	for i := range want {
		if cfg.AllowedOrigins[i] != want[i] {
			t.Errorf("AllowedOrigins[%d]=%q, want %q", i, cfg.AllowedOrigins[i], want[i])
		}
	}
}

func TestLoadInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		extra string
	}{
		{"bad mode", "MODE=staging"},
		{"bad log format", "LOG_FORMAT=yaml"},
		{"bad log level", "LOG_LEVEL=verbose"},
		{"bad provider timeout", "PROVIDER_TIMEOUT=-1s"},
		{"bad shutdown timeout", "SHUTDOWN_TIMEOUT=0s"},
		{"bad token ttl", "TOKEN_TTL=-5m"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := load(append(baseEnviron(), tc.extra)); err == nil {
				t.Fatalf("expected error for %q", tc.extra)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	for _, format := range []LogFormat{LogFormatText, LogFormatJSON} {
		cfg := Config{LogFormat: format, LogLevel: slog.LevelInfo}
		logger, err := NewLogger(cfg)
		if err != nil {
			t.Fatalf("NewLogger(%q): %v", format, err)
		}
		if logger == nil {
			t.Fatalf("NewLogger(%q) returned nil", format)
		}
	}

	if _, err := NewLogger(Config{LogFormat: "xml"}); err == nil {
		t.Fatalf("expected error for unsupported format")
	}
}
