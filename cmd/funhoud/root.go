package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FScoward/funhou-sub000/internal/config"
	"github.com/FScoward/funhou-sub000/internal/mux"
	"github.com/FScoward/funhou-sub000/internal/version"
)

var flagConfigDir string

var rootCmd = &cobra.Command{
	Use:   "funhoud",
	Short: "Session host for Claude Code processes",
	Long: `funhoud owns long-lived Claude Code CLI processes behind PTYs and
multiplexes them to attach points: dedicated windows served over a local
WebSocket endpoint, and an in-terminal dock.

Sessions survive their viewers. Closing a window or detaching the dock
leaves the process running; reattaching replays the buffered output.`,
	Version: version.Short(),
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "override the config/data directory")
}

// loadConfig loads configuration, honoring the --config-dir override.
func loadConfig() (*config.Config, error) {
	if flagConfigDir != "" {
		cfg := config.Default()
		cfg.DataDir = flagConfigDir
		return cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

// newMultiplexer builds a multiplexer from configuration.
func newMultiplexer(cfg *config.Config) *mux.Multiplexer {
	return mux.New(mux.Options{
		Spawn:          mux.CommandSpawner(cfg.DefaultShell, cfg.ClaudeCommand),
		PromptMarkers:  cfg.PromptMarkers,
		BufferCap:      cfg.BufferCap,
		IdleTimeout:    cfg.IdleTimeout(),
		StatusThrottle: cfg.StatusThrottle(),
	})
}
