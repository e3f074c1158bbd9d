package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/FScoward/funhou-sub000/internal/bridge"
	"github.com/FScoward/funhou-sub000/internal/claudelogs"
	"github.com/FScoward/funhou-sub000/internal/winhost"
)

var flagListenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the headless session host",
	Long: `Start the session host: spawned sessions are served to windows over
a local WebSocket endpoint, and a small HTTP API lets the desktop shell
create, open, and terminate sessions.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&flagListenAddr, "listen", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.EnsureDataDir(); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	addr := cfg.ListenAddr
	if flagListenAddr != "" {
		addr = flagListenAddr
	}

	m := newMultiplexer(cfg)
	host := winhost.New(nil)
	br := bridge.New(m, host)
	host.OnWindowClosed(func(winID string) {
		if id, ok := bridge.SessionIDFromWindow(winID); ok {
			br.HandleWindowClosed(id)
		}
	})

	// Log discovery is best effort; the host works without it.
	store, err := claudelogs.New()
	if err != nil {
		log.Printf("serve: session log discovery disabled: %v", err)
		store = nil
	}

	api := newAPI(m, br, store)

	root := http.NewServeMux()
	root.Handle("/window/", host.Handler())
	root.Handle("/api/", http.StripPrefix("/api", api))

	srv := &http.Server{Addr: addr, Handler: root}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("serve: listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("listening on %s: %w", addr, err)
	case sig := <-sigCh:
		log.Printf("serve: %s received, shutting down", sig)
	}

	api.Close()
	br.Close()
	m.Shutdown(true)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
