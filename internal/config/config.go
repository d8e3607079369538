// Package config loads stackview's TOML configuration. Every key is optional;
// missing keys keep their defaults.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

type Config struct {
	Display DisplayConfig `toml:"display"`
	Source  SourceConfig  `toml:"source"`
	TUI     TUIConfig     `toml:"tui"`
	Storage StorageConfig `toml:"storage"`
}

type DisplayConfig struct {
	Color           string `toml:"color"`
	DeltaWidth      int    `toml:"delta_width"`
	Timezone        string `toml:"timezone"`
	ShowReturns     bool   `toml:"show_returns"`
	UnknownFunction string `toml:"unknown_function"`
}

type SourceConfig struct {
	Format       string `toml:"format"`
	Follow       bool   `toml:"follow"`
	FollowPollMS int    `toml:"follow_poll_ms"`
}

type TUIConfig struct {
	Enabled    bool `toml:"enabled"`
	Scrollback int  `toml:"scrollback"`
}

type StorageConfig struct {
	DBPath    string `toml:"db_path"`
	BatchSize int    `toml:"batch_size"`
}

type LoadResult struct {
	Config   Config
	Warnings []string
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Display: DisplayConfig{
			Color:           "auto",
			DeltaWidth:      26,
			Timezone:        "local",
			ShowReturns:     false,
			UnknownFunction: "???",
		},
		Source: SourceConfig{
			Format:       "auto",
			Follow:       false,
			FollowPollMS: 250,
		},
		TUI: TUIConfig{
			Enabled:    false,
			Scrollback: 10000,
		},
		Storage: StorageConfig{
			DBPath:    "~/.local/share/stackview/traces.db",
			BatchSize: 256,
		},
	}
}

// DefaultPath is ~/.config/stackview/config.toml, or "" when the home
// directory is unknown.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "stackview", "config.toml")
}

func Load() (*LoadResult, error) {
	return LoadFrom(DefaultPath())
}

// LoadFrom reads path over the defaults. A missing file is not an error.
func LoadFrom(path string) (*LoadResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return &LoadResult{Config: DefaultConfig()}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	result, err := load(string(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return result, nil
}

func LoadFromString(data string) (*LoadResult, error) {
	return load(data)
}

// knownKeys lists the accepted keys of each section.
var knownKeys = map[string][]string{
	"display": {"color", "delta_width", "timezone", "show_returns", "unknown_function"},
	"source":  {"format", "follow", "follow_poll_ms"},
	"tui":     {"enabled", "scrollback"},
	"storage": {"db_path", "batch_size"},
}

type tomlFile struct {
	Display *DisplayConfig `toml:"display"`
	Source  *SourceConfig  `toml:"source"`
	TUI     *TUIConfig     `toml:"tui"`
	Storage *StorageConfig `toml:"storage"`
}

func load(data string) (*LoadResult, error) {
	result := &LoadResult{Config: DefaultConfig()}
	if data == "" {
		return result, nil
	}

	var raw map[string]any
	if _, err := toml.Decode(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	result.Warnings = unknownKeyWarnings(raw)

	var tf tomlFile
	if _, err := toml.Decode(data, &tf); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	mergeFromRaw(&result.Config, &tf, raw)

	if err := validate(&result.Config); err != nil {
		return nil, err
	}
	return result, nil
}

func unknownKeyWarnings(raw map[string]any) []string {
	var warnings []string
	for key, val := range raw {
		keys, known := knownKeys[key]
		if !known {
			warnings = append(warnings, fmt.Sprintf("unknown config key: %q", key))
			continue
		}
		section, ok := val.(map[string]any)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("config key %q should be a table", key))
			continue
		}
		for sub := range section {
			if !contains(keys, sub) {
				warnings = append(warnings, fmt.Sprintf("unknown config key: %q", key+"."+sub))
			}
		}
	}
	sort.Strings(warnings)
	return warnings
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func mergeFromRaw(cfg *Config, tf *tomlFile, raw map[string]any) {
	if tf.Display != nil {
		if section, ok := rawSection(raw, "display"); ok {
			if _, exists := section["color"]; exists {
				cfg.Display.Color = tf.Display.Color
			}
			if _, exists := section["delta_width"]; exists {
				cfg.Display.DeltaWidth = tf.Display.DeltaWidth
			}
			if _, exists := section["timezone"]; exists {
				cfg.Display.Timezone = tf.Display.Timezone
			}
			if _, exists := section["show_returns"]; exists {
				cfg.Display.ShowReturns = tf.Display.ShowReturns
			}
			if _, exists := section["unknown_function"]; exists {
				cfg.Display.UnknownFunction = tf.Display.UnknownFunction
			}
		}
	}
	if tf.Source != nil {
		if section, ok := rawSection(raw, "source"); ok {
			if _, exists := section["format"]; exists {
				cfg.Source.Format = tf.Source.Format
			}
			if _, exists := section["follow"]; exists {
				cfg.Source.Follow = tf.Source.Follow
			}
			if _, exists := section["follow_poll_ms"]; exists {
				cfg.Source.FollowPollMS = tf.Source.FollowPollMS
			}
		}
	}
	if tf.TUI != nil {
		if section, ok := rawSection(raw, "tui"); ok {
			if _, exists := section["enabled"]; exists {
				cfg.TUI.Enabled = tf.TUI.Enabled
			}
			if _, exists := section["scrollback"]; exists {
				cfg.TUI.Scrollback = tf.TUI.Scrollback
			}
		}
	}
	if tf.Storage != nil {
		if section, ok := rawSection(raw, "storage"); ok {
			if _, exists := section["db_path"]; exists {
				cfg.Storage.DBPath = tf.Storage.DBPath
			}
			if _, exists := section["batch_size"]; exists {
				cfg.Storage.BatchSize = tf.Storage.BatchSize
			}
		}
	}
}

func rawSection(raw map[string]any, key string) (map[string]any, bool) {
	v, ok := raw[key]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	return m, ok
}

var (
	colorModes = []string{"auto", "always", "never"}
	formats    = []string{"auto", "jsonl", "msgpack", "otlp", "otlp-proto", "sqlite"}
)

func validate(cfg *Config) error {
	var errs []string

	if !contains(colorModes, cfg.Display.Color) {
		errs = append(errs, fmt.Sprintf("display color must be one of %s, got %q", strings.Join(colorModes, "/"), cfg.Display.Color))
	}
	if cfg.Display.DeltaWidth < 1 {
		errs = append(errs, fmt.Sprintf("display delta_width must be positive, got %d", cfg.Display.DeltaWidth))
	}
	if _, err := cfg.Display.Location(); err != nil {
		errs = append(errs, fmt.Sprintf("display timezone: %v", err))
	}
	if cfg.Display.UnknownFunction == "" {
		errs = append(errs, "display unknown_function must not be empty")
	}

	if !contains(formats, cfg.Source.Format) {
		errs = append(errs, fmt.Sprintf("source format must be one of %s, got %q", strings.Join(formats, "/"), cfg.Source.Format))
	}
	if cfg.Source.FollowPollMS < 1 {
		errs = append(errs, fmt.Sprintf("source follow_poll_ms must be positive, got %d", cfg.Source.FollowPollMS))
	}

	if cfg.TUI.Scrollback < 1 {
		errs = append(errs, fmt.Sprintf("tui scrollback must be positive, got %d", cfg.TUI.Scrollback))
	}

	if cfg.Storage.DBPath == "" {
		errs = append(errs, "storage db_path must not be empty")
	}
	if cfg.Storage.BatchSize < 1 {
		errs = append(errs, fmt.Sprintf("storage batch_size must be positive, got %d", cfg.Storage.BatchSize))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation error: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Location resolves Timezone: "local", "utc" or an IANA zone name.
func (d DisplayConfig) Location() (*time.Location, error) {
	switch strings.ToLower(d.Timezone) {
	case "", "local":
		return time.Local, nil
	case "utc":
		return time.UTC, nil
	}
	return time.LoadLocation(d.Timezone)
}

// FollowPoll returns the follow-mode poll interval.
func (s SourceConfig) FollowPoll() time.Duration {
	return time.Duration(s.FollowPollMS) * time.Millisecond
}

// Encode renders cfg as TOML.
func Encode(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString("# stackview configuration\n\n")
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteDefault writes the default configuration to path, creating parent
// directories. An existing file is only replaced when force is set.
func WriteDefault(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	data, err := Encode(DefaultConfig())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}
