// Package config handles application configuration.
package config

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration.
type Config struct {
	// DataDir is the directory for config and persistent data
	DataDir string `yaml:"-"`

	// ClaudeCommand is the command to run Claude Code
	ClaudeCommand string `yaml:"claude_command"`

	// DefaultShell is the shell sessions run the command in
	DefaultShell string `yaml:"default_shell"`

	// ListenAddr is the address the window host serves on
	ListenAddr string `yaml:"listen_addr"`

	// BufferCap is the replay buffer capacity in chunks (0 uses the
	// built-in default)
	BufferCap int `yaml:"buffer_cap"`

	// IdleTimeoutMs is the output-silence window before a running
	// session is marked as waiting for input (0 uses the built-in
	// default)
	IdleTimeoutMs int `yaml:"idle_timeout_ms"`

	// StatusThrottleMs is the minimum gap between repeated identical
	// status notifications (0 uses the built-in default)
	StatusThrottleMs int `yaml:"status_throttle_ms"`

	// PromptMarkers are substrings of CLI output that indicate an open
	// question (empty uses the built-in markers)
	PromptMarkers []string `yaml:"prompt_markers"`

	// Keys contains dock keybinding configuration
	Keys KeyBindings `yaml:"keys"`

	// Theme contains dock theme/appearance configuration
	Theme Theme `yaml:"theme"`
}

// KeyBindings holds all configurable dock keybindings.
type KeyBindings struct {
	Quit      string `yaml:"quit"`
	NavDown   string `yaml:"nav_down"`
	NavUp     string `yaml:"nav_up"`
	Attach    string `yaml:"attach"`
	Detach    string `yaml:"detach"`
	Terminate string `yaml:"terminate"`
	Refresh   string `yaml:"refresh"`
}

// Theme holds theme configuration.
type Theme struct {
	Colors ThemeColors            `yaml:"colors"`
	Status map[string]StatusStyle `yaml:"status"`
}

// ThemeColors holds color configuration.
type ThemeColors struct {
	SelectionBg string `yaml:"selection_bg"`
	SelectionFg string `yaml:"selection_fg"`
	StatusBarBg string `yaml:"statusbar_bg"`
	StatusBarFg string `yaml:"statusbar_fg"`
}

// StatusStyle holds style configuration for a session status.
type StatusStyle struct {
	Icon  string `yaml:"icon"`
	Color string `yaml:"color"`
	Label string `yaml:"label"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		DataDir:       defaultDataDir(),
		ClaudeCommand: "claude",
		DefaultShell:  getDefaultShell(),
		ListenAddr:    "127.0.0.1:7343",
		Keys:          DefaultKeyBindings(),
		Theme:         DefaultTheme(),
	}
}

// DefaultKeyBindings returns the default dock keybindings.
func DefaultKeyBindings() KeyBindings {
	return KeyBindings{
		Quit:      "q",
		NavDown:   "j",
		NavUp:     "k",
		Attach:    "enter",
		Detach:    "ctrl+q",
		Terminate: "x",
		Refresh:   "r",
	}
}

// DefaultTheme returns the default theme configuration.
func DefaultTheme() Theme {
	return Theme{
		Colors: ThemeColors{
			SelectionBg: "blue",
			SelectionFg: "white",
			StatusBarBg: "blue",
			StatusBarFg: "white",
		},
		Status: map[string]StatusStyle{
			"initializing": {
				Icon:  "○", // ○
				Color: "white",
				Label: "INIT",
			},
			"running": {
				Icon:  "◐", // ◐
				Color: "yellow",
				Label: "RUNNING",
			},
			"waiting_input": {
				Icon:  "\U0001F514", // 🔔
				Color: "magenta",
				Label: "WAITING",
			},
			"asking_question": {
				Icon:  "?",
				Color: "cyan",
				Label: "QUESTION",
			},
			"stopped": {
				Icon:  "✓", // ✓
				Color: "green",
				Label: "STOPPED",
			},
			"error": {
				Icon:  "✗", // ✗
				Color: "red",
				Label: "ERROR",
			},
		},
	}
}

// IdleTimeout returns the configured idle timeout, or zero when unset.
func (c *Config) IdleTimeout() time.Duration {
	return time.Duration(c.IdleTimeoutMs) * time.Millisecond
}

// StatusThrottle returns the configured status throttle, or zero when unset.
func (c *Config) StatusThrottle() time.Duration {
	return time.Duration(c.StatusThrottleMs) * time.Millisecond
}

// Load loads configuration from the config file, falling back to defaults.
func Load() (*Config, error) {
	cfg := Default()

	configPath := cfg.ConfigFile()
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, err
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, err
	}

	mergeConfig(cfg, &fileCfg)

	if err := ValidateKeys(&cfg.Keys); err != nil {
		return nil, err
	}

	return cfg, nil
}

// mergeConfig merges file configuration into the default configuration.
// Only non-zero values from file are applied.
func mergeConfig(dst, src *Config) {
	if src.ClaudeCommand != "" {
		dst.ClaudeCommand = src.ClaudeCommand
	}
	if src.DefaultShell != "" {
		dst.DefaultShell = src.DefaultShell
	}
	if src.ListenAddr != "" {
		dst.ListenAddr = src.ListenAddr
	}
	if src.BufferCap != 0 {
		dst.BufferCap = src.BufferCap
	}
	if src.IdleTimeoutMs != 0 {
		dst.IdleTimeoutMs = src.IdleTimeoutMs
	}
	if src.StatusThrottleMs != 0 {
		dst.StatusThrottleMs = src.StatusThrottleMs
	}
	if len(src.PromptMarkers) > 0 {
		dst.PromptMarkers = src.PromptMarkers
	}

	mergeKeyBindings(&dst.Keys, &src.Keys)
	mergeTheme(&dst.Theme, &src.Theme)
}

// mergeKeyBindings merges keybindings from src into dst.
func mergeKeyBindings(dst, src *KeyBindings) {
	if src.Quit != "" {
		dst.Quit = src.Quit
	}
	if src.NavDown != "" {
		dst.NavDown = src.NavDown
	}
	if src.NavUp != "" {
		dst.NavUp = src.NavUp
	}
	if src.Attach != "" {
		dst.Attach = src.Attach
	}
	if src.Detach != "" {
		dst.Detach = src.Detach
	}
	if src.Terminate != "" {
		dst.Terminate = src.Terminate
	}
	if src.Refresh != "" {
		dst.Refresh = src.Refresh
	}
}

// mergeTheme merges theme configuration from src into dst.
func mergeTheme(dst, src *Theme) {
	if src.Colors.SelectionBg != "" {
		dst.Colors.SelectionBg = src.Colors.SelectionBg
	}
	if src.Colors.SelectionFg != "" {
		dst.Colors.SelectionFg = src.Colors.SelectionFg
	}
	if src.Colors.StatusBarBg != "" {
		dst.Colors.StatusBarBg = src.Colors.StatusBarBg
	}
	if src.Colors.StatusBarFg != "" {
		dst.Colors.StatusBarFg = src.Colors.StatusBarFg
	}

	if src.Status != nil {
		for key, style := range src.Status {
			if existing, ok := dst.Status[key]; ok {
				if style.Icon != "" {
					existing.Icon = style.Icon
				}
				if style.Color != "" {
					existing.Color = style.Color
				}
				if style.Label != "" {
					existing.Label = style.Label
				}
				dst.Status[key] = existing
			} else {
				dst.Status[key] = style
			}
		}
	}
}

// defaultDataDir returns the default data directory.
func defaultDataDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "funhoud")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".funhoud"
	}
	return filepath.Join(home, ".config", "funhoud")
}

// getDefaultShell returns the user's default shell.
func getDefaultShell() string {
	if shell := os.Getenv("SHELL"); shell != "" {
		return shell
	}
	return "/bin/bash"
}

// ConfigFile returns the path to the config file.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "config.yaml")
}

// EnsureDataDir creates the data directory if it doesn't exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0755)
}
