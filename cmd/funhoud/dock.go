package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FScoward/funhou-sub000/internal/dock"
	"github.com/FScoward/funhou-sub000/internal/mux"
)

var flagDockCwd []string

var dockCmd = &cobra.Command{
	Use:   "dock",
	Short: "Run the in-terminal session dock",
	Long: `Start an in-process session host with a compact terminal UI. Each
--cwd flag spawns one session; the dock lists them with live status and
can attach to any of them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDock()
	},
}

func init() {
	dockCmd.Flags().StringArrayVar(&flagDockCwd, "cwd", nil, "working directory to start a session in (repeatable)")
	rootCmd.AddCommand(dockCmd)
}

func runDock() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	m := newMultiplexer(cfg)
	defer m.Shutdown(true)

	for _, cwd := range flagDockCwd {
		m.CreateSession(mux.CreateRequest{Cwd: cwd, Cols: 80, Rows: 24})
	}

	d, err := dock.New(cfg, m)
	if err != nil {
		return err
	}
	return d.Run()
}
