package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg == nil {
		t.Fatal("Default() returned nil")
	}

	if cfg.ClaudeCommand != "claude" {
		t.Errorf("ClaudeCommand = %q, want 'claude'", cfg.ClaudeCommand)
	}

	if cfg.ListenAddr != "127.0.0.1:7343" {
		t.Errorf("ListenAddr = %q, want '127.0.0.1:7343'", cfg.ListenAddr)
	}

	if cfg.BufferCap != 0 {
		t.Errorf("BufferCap = %d, want 0 (built-in default)", cfg.BufferCap)
	}

	if len(cfg.PromptMarkers) != 0 {
		t.Errorf("PromptMarkers = %v, want empty (built-in markers)", cfg.PromptMarkers)
	}
}

func TestDefaultDataDir(t *testing.T) {
	// Save and restore XDG_CONFIG_HOME
	oldXDG := os.Getenv("XDG_CONFIG_HOME")
	defer os.Setenv("XDG_CONFIG_HOME", oldXDG)

	os.Setenv("XDG_CONFIG_HOME", "/custom/config")
	dir := defaultDataDir()
	if dir != "/custom/config/funhoud" {
		t.Errorf("with XDG_CONFIG_HOME: got %q, want '/custom/config/funhoud'", dir)
	}

	os.Unsetenv("XDG_CONFIG_HOME")
	dir = defaultDataDir()
	if !strings.HasSuffix(dir, ".config/funhoud") {
		t.Errorf("without XDG_CONFIG_HOME: got %q, expected to end with '.config/funhoud'", dir)
	}
}

func TestDurationAccessors(t *testing.T) {
	cfg := Default()
	cfg.IdleTimeoutMs = 1500
	cfg.StatusThrottleMs = 50

	if got := cfg.IdleTimeout(); got != 1500*time.Millisecond {
		t.Errorf("IdleTimeout() = %v, want 1.5s", got)
	}
	if got := cfg.StatusThrottle(); got != 50*time.Millisecond {
		t.Errorf("StatusThrottle() = %v, want 50ms", got)
	}
}

func TestMergeConfig(t *testing.T) {
	dst := Default()
	src := &Config{
		ClaudeCommand: "claude-next",
		BufferCap:     500,
		PromptMarkers: []string{"Proceed?"},
		Keys:          KeyBindings{Quit: "Q"},
	}

	mergeConfig(dst, src)

	if dst.ClaudeCommand != "claude-next" {
		t.Errorf("ClaudeCommand = %q, want 'claude-next'", dst.ClaudeCommand)
	}
	if dst.BufferCap != 500 {
		t.Errorf("BufferCap = %d, want 500", dst.BufferCap)
	}
	if len(dst.PromptMarkers) != 1 || dst.PromptMarkers[0] != "Proceed?" {
		t.Errorf("PromptMarkers = %v, want [Proceed?]", dst.PromptMarkers)
	}
	if dst.Keys.Quit != "Q" {
		t.Errorf("Keys.Quit = %q, want 'Q'", dst.Keys.Quit)
	}
	// Unset fields keep defaults
	if dst.Keys.NavDown != "j" {
		t.Errorf("Keys.NavDown = %q, want 'j'", dst.Keys.NavDown)
	}
	if dst.ListenAddr != "127.0.0.1:7343" {
		t.Errorf("ListenAddr = %q, want default", dst.ListenAddr)
	}
}

func TestEnsureDataDir(t *testing.T) {
	cfg := Default()
	cfg.DataDir = t.TempDir() + "/nested/funhoud"

	if err := cfg.EnsureDataDir(); err != nil {
		t.Fatalf("EnsureDataDir() error = %v", err)
	}
	if _, err := os.Stat(cfg.DataDir); err != nil {
		t.Errorf("data dir not created: %v", err)
	}
}
