package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestLoad_MissingConfigFallsBackToDefaults(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv(tokenSecretEnv, "")

	cfg, err := Load(filepath.Join(home, "does-not-exist.toml"))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Backend.Mode != ModeSimulated {
		t.Fatalf("Backend.Mode = %q, want %q", cfg.Backend.Mode, ModeSimulated)
	}
	if cfg.Push.Interval != 5*time.Second || cfg.Push.StartupDelay != time.Second {
		t.Fatalf("Push = %+v, want 5s/1s", cfg.Push)
	}

	wantLogDir, err := expandPath(defaultLogDir)
	if err != nil {
		t.Fatalf("expandPath(defaultLogDir) returned error: %v", err)
	}
	if cfg.LogDir != wantLogDir {
		t.Fatalf("LogDir = %q, want %q", cfg.LogDir, wantLogDir)
	}
	if cfg.Storage.Driver != "file" || !strings.HasPrefix(cfg.Storage.Path, home) {
		t.Fatalf("Storage = %+v, want file driver under HOME", cfg.Storage)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
}

func TestLoad_ParsesAndTrimsConfig(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg, err := Load(writeConfig(t, `
[backend]
mode = "  HTTP "
url = "  portal.example.ac.id "
student_id = "2106701234"
token_secret = "s3cret"

[simulator]
seed = 42
latency_scale = 0
success_rates = { checkout_book = 0.25 }

[push]
interval = "750ms"
startup_delay = "0s"

[storage]
driver = "sqlite"
path = "  ~/.quad/state.db  "

[metrics]
listen = "127.0.0.1:9464"

[log]
dir = "~/.quad/logs"
`))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Backend.Mode != ModeHTTP || cfg.Backend.URL != "portal.example.ac.id" {
		t.Fatalf("Backend = %+v", cfg.Backend)
	}
	if cfg.Simulator.Seed != 42 || cfg.Simulator.LatencyScale != 0 {
		t.Fatalf("Simulator = %+v", cfg.Simulator)
	}
	if cfg.Simulator.SuccessRates["checkout_book"] != 0.25 {
		t.Fatalf("SuccessRates = %v", cfg.Simulator.SuccessRates)
	}
	if cfg.Push.Interval != 750*time.Millisecond || cfg.Push.StartupDelay != 0 {
		t.Fatalf("Push = %+v", cfg.Push)
	}
	if cfg.Storage.Driver != "sqlite" || cfg.Storage.Path != filepath.Join(home, ".quad/state.db") {
		t.Fatalf("Storage = %+v", cfg.Storage)
	}
	if cfg.Metrics.Listen != "127.0.0.1:9464" {
		t.Fatalf("Metrics.Listen = %q", cfg.Metrics.Listen)
	}
	if !strings.HasPrefix(cfg.LogDir, home) {
		t.Fatalf("LogDir = %q, want it under HOME %q", cfg.LogDir, home)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
}

func TestLoad_TokenSecretFromEnvironment(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(tokenSecretEnv, "from-env")

	cfg, err := Load(writeConfig(t, `
[backend]
mode = "http"
url = "portal.example.ac.id"
student_id = "2106701234"
`))
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Backend.TokenSecret != "from-env" {
		t.Fatalf("TokenSecret = %q, want from-env", cfg.Backend.TokenSecret)
	}
}

func TestLoad_InvalidTOMLFails(t *testing.T) {
	_, err := Load(writeConfig(t, `[backend`))
	if err == nil {
		t.Fatalf("Load returned nil error, want parse error")
	}
	if !strings.Contains(err.Error(), "parse config") {
		t.Fatalf("Load error = %q, want it to mention parse config", err.Error())
	}
}

func TestLoad_InvalidDurationFails(t *testing.T) {
	_, err := Load(writeConfig(t, "[push]\ninterval = \"soon\"\n"))
	if err == nil || !strings.Contains(err.Error(), "push.interval") {
		t.Fatalf("Load error = %v, want push.interval parse error", err)
	}
}

func TestValidate(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv(tokenSecretEnv, "")

	cases := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
		wantIs  error
	}{
		{"defaults", func(*Config) {}, "", nil},
		{"http without credentials", func(c *Config) { c.Backend.Mode = ModeHTTP }, "backend.url", ErrMissingCredentials},
		{"http missing secret", func(c *Config) {
			c.Backend = Backend{Mode: ModeHTTP, URL: "x", StudentID: "y"}
		}, "backend.token_secret", ErrMissingCredentials},
		{"unknown mode", func(c *Config) { c.Backend.Mode = "carrier-pigeon" }, "unknown backend mode", nil},
		{"bad probability", func(c *Config) { c.Simulator.SuccessRates = map[string]float64{"renew_book": 1.5} }, "renew_book", nil},
		{"negative latency", func(c *Config) { c.Simulator.LatencyScale = -1 }, "latency_scale", nil},
		{"zero interval", func(c *Config) { c.Push.Interval = 0 }, "push.interval", nil},
		{"unknown driver", func(c *Config) { c.Storage.Driver = "redis" }, "unknown storage driver", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate returned %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tc.wantErr) {
				t.Fatalf("Validate = %v, want error containing %q", err, tc.wantErr)
			}
			if tc.wantIs != nil && !errors.Is(err, tc.wantIs) {
				t.Fatalf("Validate = %v, want errors.Is %v", err, tc.wantIs)
			}
		})
	}
}

func TestExpandPath_ExpandsTildeAndReturnsAbs(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	got, err := expandPath("~/a/b")
	if err != nil {
		t.Fatalf("expandPath returned error: %v", err)
	}
	want := filepath.Join(home, "a/b")
	if got != want {
		t.Fatalf("expandPath = %q, want %q", got, want)
	}
}

func TestExpandPath_EmptyErrors(t *testing.T) {
	if _, err := expandPath("   "); err == nil {
		t.Fatalf("expandPath returned nil error, want error")
	}
}

func TestInfoLogPath_DefaultsWhenLogDirEmpty(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	var cfg Config
	got := cfg.InfoLogPath()
	if !strings.HasPrefix(got, home) {
		t.Fatalf("InfoLogPath = %q, want it under HOME %q", got, home)
	}
	if !strings.HasSuffix(got, filepath.FromSlash("/quad.INFO")) {
		t.Fatalf("InfoLogPath = %q, want it to end with /quad.INFO", got)
	}
}
