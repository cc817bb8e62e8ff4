package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

// ErrMissingCredentials is returned by Validate when the HTTP backend is
// selected without a target or credentials.
var ErrMissingCredentials = errors.New("backend credentials missing")

// Backend modes.
const (
	ModeSimulated = "simulated"
	ModeHTTP      = "http"
)

// Config is the resolved quad configuration.
type Config struct {
	Backend   Backend
	Simulator Simulator
	Push      Push
	Storage   Storage
	Metrics   Metrics
	LogDir    string
}

type Backend struct {
	Mode        string
	URL         string
	StudentID   string
	TokenSecret string
}

type Simulator struct {
	Seed         uint64
	LatencyScale float64
	// SuccessRates overrides per-endpoint success probabilities, keyed by
	// operation name (update_grade, checkout_book, return_book, renew_book).
	SuccessRates map[string]float64
}

type Push struct {
	Interval     time.Duration
	StartupDelay time.Duration
	Seed         uint64
}

type Storage struct {
	Driver string
	Path   string
}

type Metrics struct {
	Listen string // empty disables the endpoint
}

const (
	defaultConfigPath   = "~/.config/quad/config.toml"
	defaultLogDir       = "~/.local/share/quad/logs"
	defaultStoragePath  = "~/.local/share/quad/state"
	defaultDriver       = "file"
	defaultInterval     = 5 * time.Second
	defaultStartupDelay = time.Second
	tokenSecretEnv      = "QUAD_TOKEN_SECRET"
)

var drivers = []string{"file", "sqlite", "memory"}

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		Backend:   Backend{Mode: ModeSimulated, TokenSecret: os.Getenv(tokenSecretEnv)},
		Simulator: Simulator{LatencyScale: 1},
		Push:      Push{Interval: defaultInterval, StartupDelay: defaultStartupDelay},
		Storage:   Storage{Driver: defaultDriver, Path: mustExpand(defaultStoragePath)},
		LogDir:    mustExpand(defaultLogDir),
	}
}

type rawConfig struct {
	Backend struct {
		Mode        string `toml:"mode"`
		URL         string `toml:"url"`
		StudentID   string `toml:"student_id"`
		TokenSecret string `toml:"token_secret"`
	} `toml:"backend"`
	Simulator struct {
		Seed         uint64             `toml:"seed"`
		LatencyScale *float64           `toml:"latency_scale"`
		SuccessRates map[string]float64 `toml:"success_rates"`
	} `toml:"simulator"`
	Push struct {
		Interval     string `toml:"interval"`
		StartupDelay string `toml:"startup_delay"`
		Seed         uint64 `toml:"seed"`
	} `toml:"push"`
	Storage struct {
		Driver string `toml:"driver"`
		Path   string `toml:"path"`
	} `toml:"storage"`
	Metrics struct {
		Listen string `toml:"listen"`
	} `toml:"metrics"`
	Log struct {
		Dir string `toml:"dir"`
	} `toml:"log"`
}

// Load locates and parses the quad config, falling back to defaults when missing.
// Load does not validate; call Validate before using the backend settings.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw rawConfig
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	if mode := strings.ToLower(strings.TrimSpace(raw.Backend.Mode)); mode != "" {
		cfg.Backend.Mode = mode
	}
	cfg.Backend.URL = strings.TrimSpace(raw.Backend.URL)
	cfg.Backend.StudentID = strings.TrimSpace(raw.Backend.StudentID)
	if secret := strings.TrimSpace(raw.Backend.TokenSecret); secret != "" {
		cfg.Backend.TokenSecret = secret
	}

	cfg.Simulator.Seed = raw.Simulator.Seed
	if raw.Simulator.LatencyScale != nil {
		cfg.Simulator.LatencyScale = *raw.Simulator.LatencyScale
	}
	cfg.Simulator.SuccessRates = raw.Simulator.SuccessRates

	if cfg.Push.Interval, err = parseDuration("push.interval", raw.Push.Interval, defaultInterval); err != nil {
		return Config{}, err
	}
	if cfg.Push.StartupDelay, err = parseDuration("push.startup_delay", raw.Push.StartupDelay, defaultStartupDelay); err != nil {
		return Config{}, err
	}
	cfg.Push.Seed = raw.Push.Seed

	if driver := strings.ToLower(strings.TrimSpace(raw.Storage.Driver)); driver != "" {
		cfg.Storage.Driver = driver
	}
	if p := strings.TrimSpace(raw.Storage.Path); p != "" {
		cfg.Storage.Path = mustExpand(p)
	}

	cfg.Metrics.Listen = strings.TrimSpace(raw.Metrics.Listen)

	if dir := strings.TrimSpace(raw.Log.Dir); dir != "" {
		cfg.LogDir = mustExpand(dir)
	}

	return cfg, nil
}

// Validate reports settings the application cannot start with.
func (c Config) Validate() error {
	switch c.Backend.Mode {
	case ModeSimulated:
	case ModeHTTP:
		var missing []string
		if c.Backend.URL == "" {
			missing = append(missing, "backend.url")
		}
		if c.Backend.StudentID == "" {
			missing = append(missing, "backend.student_id")
		}
		if c.Backend.TokenSecret == "" {
			missing = append(missing, "backend.token_secret")
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: %s", ErrMissingCredentials, strings.Join(missing, ", "))
		}
	default:
		return fmt.Errorf("unknown backend mode %q", c.Backend.Mode)
	}

	if c.Simulator.LatencyScale < 0 {
		return fmt.Errorf("simulator.latency_scale must not be negative")
	}
	for op, p := range c.Simulator.SuccessRates {
		if p < 0 || p > 1 {
			return fmt.Errorf("simulator.success_rates.%s = %v, want a probability in [0, 1]", op, p)
		}
	}
	if c.Push.Interval <= 0 {
		return fmt.Errorf("push.interval must be positive")
	}

	known := false
	for _, d := range drivers {
		if c.Storage.Driver == d {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}
	return nil
}

// InfoLogPath returns the glog INFO symlink for the quad binary.
func (c Config) InfoLogPath() string {
	if strings.TrimSpace(c.LogDir) == "" {
		return mustExpand(defaultLogDir + "/quad.INFO")
	}
	return filepath.Join(c.LogDir, "quad.INFO")
}

func parseDuration(field, value string, fallback time.Duration) (time.Duration, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parse config: %s: %w", field, err)
	}
	return d, nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
