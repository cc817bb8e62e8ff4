// Package prefs persists dashboard preferences in ~/.config/quad/prefs.toml.
// Unreadable or malformed files never block startup; defaults are used instead.
package prefs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/golang/glog"
	toml "github.com/pelletier/go-toml/v2"
)

// Prefs holds user preferences for the dashboard.
type Prefs struct {
	Theme    string `toml:"theme"`
	StartTab string `toml:"start_tab"`
	// HomeStop is the bus stop used for the nearest-bus summary.
	HomeStop string `toml:"home_stop"`
}

const (
	defaultPrefsPath = "~/.config/quad/prefs.toml"
	defaultTheme     = "Dracula"
	defaultStartTab  = "grades"
	defaultHomeStop  = "Main Gate"
)

// Defaults returns the preferences used when nothing is saved.
func Defaults() Prefs {
	return Prefs{Theme: defaultTheme, StartTab: defaultStartTab, HomeStop: defaultHomeStop}
}

// DefaultPath returns the default preferences file path.
func DefaultPath() string {
	return defaultPrefsPath
}

// Load reads preferences from the given path, falling back to defaults if missing.
func Load(path string) (Prefs, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Defaults(), nil
	}

	prefs := Defaults()

	file, err := os.Open(resolved)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			glog.Warningf("prefs: open %s: %v", resolved, err)
		}
		return prefs, nil
	}
	defer func() { _ = file.Close() }()

	bytes, err := io.ReadAll(file)
	if err != nil {
		glog.Warningf("prefs: read %s: %v", resolved, err)
		return prefs, nil
	}

	if err := toml.Unmarshal(bytes, &prefs); err != nil {
		glog.Warningf("prefs: parse %s: %v", resolved, err)
		return Defaults(), nil
	}

	def := Defaults()
	if strings.TrimSpace(prefs.Theme) == "" {
		prefs.Theme = def.Theme
	}
	prefs.StartTab = strings.ToLower(strings.TrimSpace(prefs.StartTab))
	if prefs.StartTab == "" {
		prefs.StartTab = def.StartTab
	}
	if strings.TrimSpace(prefs.HomeStop) == "" {
		prefs.HomeStop = def.HomeStop
	}

	return prefs, nil
}

// Save writes preferences to the given path, creating directories as needed.
func Save(path string, p Prefs) error {
	resolved, err := resolvePath(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	dir := filepath.Dir(resolved)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create prefs dir: %w", err)
	}

	bytes, err := toml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal prefs: %w", err)
	}

	if err := os.WriteFile(resolved, bytes, 0o644); err != nil {
		return fmt.Errorf("write prefs: %w", err)
	}

	return nil
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultPrefsPath)
	}
	return expandPath(path)
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
