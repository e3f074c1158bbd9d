package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_NoConfigFile(t *testing.T) {
	tmpDir := t.TempDir()

	oldHome := os.Getenv("HOME")
	oldXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("HOME", tmpDir)
	os.Unsetenv("XDG_CONFIG_HOME")
	defer func() {
		os.Setenv("HOME", oldHome)
		os.Setenv("XDG_CONFIG_HOME", oldXDG)
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if cfg.Keys.Quit != "q" {
		t.Errorf("cfg.Keys.Quit = %q, want %q", cfg.Keys.Quit, "q")
	}
	if cfg.ClaudeCommand != "claude" {
		t.Errorf("cfg.ClaudeCommand = %q, want 'claude'", cfg.ClaudeCommand)
	}
}

func TestLoad_WithConfigFile(t *testing.T) {
	tmpDir := t.TempDir()

	dataDir := filepath.Join(tmpDir, ".config", "funhoud")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		t.Fatal(err)
	}

	configContent := `claude_command: "claude-beta"
listen_addr: "127.0.0.1:9000"
idle_timeout_ms: 1000
prompt_markers:
  - "Proceed?"
  - "Continue?"
keys:
  quit: "Q"
theme:
  colors:
    selection_bg: "green"
`
	configPath := filepath.Join(dataDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatal(err)
	}

	oldHome := os.Getenv("HOME")
	oldXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("HOME", tmpDir)
	os.Unsetenv("XDG_CONFIG_HOME")
	defer func() {
		os.Setenv("HOME", oldHome)
		os.Setenv("XDG_CONFIG_HOME", oldXDG)
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v, want nil", err)
	}

	if cfg.ClaudeCommand != "claude-beta" {
		t.Errorf("cfg.ClaudeCommand = %q, want 'claude-beta'", cfg.ClaudeCommand)
	}
	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("cfg.ListenAddr = %q, want '127.0.0.1:9000'", cfg.ListenAddr)
	}
	if cfg.IdleTimeoutMs != 1000 {
		t.Errorf("cfg.IdleTimeoutMs = %d, want 1000", cfg.IdleTimeoutMs)
	}
	if len(cfg.PromptMarkers) != 2 || cfg.PromptMarkers[0] != "Proceed?" {
		t.Errorf("cfg.PromptMarkers = %v, want [Proceed? Continue?]", cfg.PromptMarkers)
	}
	if cfg.Keys.Quit != "Q" {
		t.Errorf("cfg.Keys.Quit = %q, want 'Q'", cfg.Keys.Quit)
	}
	if cfg.Theme.Colors.SelectionBg != "green" {
		t.Errorf("cfg.Theme.Colors.SelectionBg = %q, want 'green'", cfg.Theme.Colors.SelectionBg)
	}
	// Merged defaults survive
	if cfg.Keys.NavDown != "j" {
		t.Errorf("cfg.Keys.NavDown = %q, want 'j'", cfg.Keys.NavDown)
	}
	if cfg.Theme.Colors.SelectionFg != "white" {
		t.Errorf("cfg.Theme.Colors.SelectionFg = %q, want 'white'", cfg.Theme.Colors.SelectionFg)
	}
}

func TestLoad_DuplicateKeysRejected(t *testing.T) {
	tmpDir := t.TempDir()

	dataDir := filepath.Join(tmpDir, ".config", "funhoud")
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		t.Fatal(err)
	}

	configContent := `keys:
  quit: "x"
`
	configPath := filepath.Join(dataDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatal(err)
	}

	oldHome := os.Getenv("HOME")
	oldXDG := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("HOME", tmpDir)
	os.Unsetenv("XDG_CONFIG_HOME")
	defer func() {
		os.Setenv("HOME", oldHome)
		os.Setenv("XDG_CONFIG_HOME", oldXDG)
	}()

	// "x" now collides with the terminate binding
	if _, err := Load(); err == nil {
		t.Error("Load() error = nil, want duplicate keybinding error")
	}
}
