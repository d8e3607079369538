package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestConfigParser_Defaults(t *testing.T) {
	result, err := LoadFrom("/nonexistent/path/config.toml")
	if err != nil {
		t.Fatalf("expected no error for missing config file, got: %v", err)
	}

	cfg := result.Config

	if cfg.Display.Color != "auto" {
		t.Errorf("default color: want auto, got %s", cfg.Display.Color)
	}
	if cfg.Display.DeltaWidth != 26 {
		t.Errorf("default delta_width: want 26, got %d", cfg.Display.DeltaWidth)
	}
	if cfg.Display.Timezone != "local" {
		t.Errorf("default timezone: want local, got %s", cfg.Display.Timezone)
	}
	if cfg.Display.ShowReturns {
		t.Error("default show_returns: want false, got true")
	}
	if cfg.Display.UnknownFunction != "???" {
		t.Errorf("default unknown_function: want ???, got %s", cfg.Display.UnknownFunction)
	}
	if cfg.Source.Format != "auto" {
		t.Errorf("default format: want auto, got %s", cfg.Source.Format)
	}
	if cfg.Source.FollowPoll() != 250*time.Millisecond {
		t.Errorf("default follow poll: want 250ms, got %v", cfg.Source.FollowPoll())
	}
	if cfg.TUI.Enabled {
		t.Error("default tui enabled: want false, got true")
	}
	if cfg.TUI.Scrollback != 10000 {
		t.Errorf("default scrollback: want 10000, got %d", cfg.TUI.Scrollback)
	}
	if cfg.Storage.BatchSize != 256 {
		t.Errorf("default batch_size: want 256, got %d", cfg.Storage.BatchSize)
	}

	if len(result.Warnings) != 0 {
		t.Errorf("expected no warnings for missing file, got %v", result.Warnings)
	}
}

func TestConfigParser_PartialOverride(t *testing.T) {
	tomlData := `
[display]
color = "never"
show_returns = true

[storage]
db_path = "/tmp/traces.db"
`
	result, err := LoadFromString(tomlData)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := DefaultConfig()
	want.Display.Color = "never"
	want.Display.ShowReturns = true
	want.Storage.DBPath = "/tmp/traces.db"
	if diff := cmp.Diff(want, result.Config); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}
}

func TestConfigParser_ExplicitZeroValuesOverride(t *testing.T) {
	result, err := LoadFromString("[tui]\nenabled = false\n[source]\nfollow = true\n")
	if err != nil {
		t.Fatal(err)
	}
	if result.Config.TUI.Enabled {
		t.Error("tui enabled should stay false")
	}
	if !result.Config.Source.Follow {
		t.Error("source follow should be true")
	}
}

func TestConfigParser_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		toml string
		want string
	}{
		{"color", "[display]\ncolor = \"sometimes\"", "display color"},
		{"delta width", "[display]\ndelta_width = 0", "delta_width"},
		{"timezone", "[display]\ntimezone = \"Mars/Olympus\"", "timezone"},
		{"unknown function", "[display]\nunknown_function = \"\"", "unknown_function"},
		{"format", "[source]\nformat = \"ctf\"", "source format"},
		{"poll", "[source]\nfollow_poll_ms = -5", "follow_poll_ms"},
		{"scrollback", "[tui]\nscrollback = 0", "scrollback"},
		{"db path", "[storage]\ndb_path = \"\"", "db_path"},
		{"batch size", "[storage]\nbatch_size = 0", "batch_size"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromString(tt.toml)
			if err == nil {
				t.Fatal("expected validation error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q should mention %q", err, tt.want)
			}
		})
	}
}

func TestConfigParser_AllErrorsReported(t *testing.T) {
	_, err := LoadFromString("[display]\ndelta_width = -1\n[tui]\nscrollback = -1\n")
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"delta_width", "scrollback"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q should mention %q", err, want)
		}
	}
}

func TestConfigParser_UnknownKeys(t *testing.T) {
	tomlData := `
[mysterious_section]
foo = "bar"

[display]
colour = "never"
`
	result, err := LoadFromString(tomlData)
	if err != nil {
		t.Fatalf("unknown keys should not cause errors, got: %v", err)
	}

	want := []string{
		`unknown config key: "display.colour"`,
		`unknown config key: "mysterious_section"`,
	}
	if diff := cmp.Diff(want, result.Warnings); diff != "" {
		t.Errorf("warnings mismatch (-want +got):\n%s", diff)
	}
	if result.Config.Display.Color != "auto" {
		t.Errorf("misspelled key must not change color, got %s", result.Config.Display.Color)
	}
}

func TestConfigParser_InvalidTOML(t *testing.T) {
	if _, err := LoadFromString("[display\ncolor = "); err == nil {
		t.Error("expected parse error")
	}
}

func TestConfigParser_LoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("[display]\ntimezone = \"UTC\"\n"), 0644); err != nil {
		t.Fatal(err)
	}

	result, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	loc, err := result.Config.Display.Location()
	if err != nil {
		t.Fatal(err)
	}
	if loc != time.UTC {
		t.Errorf("expected UTC, got %v", loc)
	}
}

func TestDisplayLocation(t *testing.T) {
	tests := []struct {
		tz   string
		want string
	}{
		{"local", time.Local.String()},
		{"", time.Local.String()},
		{"utc", "UTC"},
		{"Asia/Tokyo", "Asia/Tokyo"},
	}
	for _, tt := range tests {
		loc, err := DisplayConfig{Timezone: tt.tz}.Location()
		if err != nil {
			t.Errorf("Location(%q): %v", tt.tz, err)
			continue
		}
		if loc.String() != tt.want {
			t.Errorf("Location(%q): expected %q, got %q", tt.tz, tt.want, loc.String())
		}
	}
}

func TestWriteDefault(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	if err := WriteDefault(path, false); err != nil {
		t.Fatalf("WriteDefault: %v", err)
	}
	result, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("reloading written config: %v", err)
	}
	if diff := cmp.Diff(DefaultConfig(), result.Config); diff != "" {
		t.Errorf("written config does not round-trip (-want +got):\n%s", diff)
	}
	if len(result.Warnings) != 0 {
		t.Errorf("written config produced warnings: %v", result.Warnings)
	}

	if err := WriteDefault(path, false); err == nil {
		t.Error("expected refusal to overwrite without force")
	}
	if err := WriteDefault(path, true); err != nil {
		t.Errorf("forced overwrite failed: %v", err)
	}
}
