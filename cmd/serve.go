package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agenticcompany/redditor/internal/config"
	"github.com/agenticcompany/redditor/internal/log"
	"github.com/agenticcompany/redditor/internal/pipelines"
	"github.com/agenticcompany/redditor/internal/server"
	"github.com/agenticcompany/redditor/internal/watcher"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API exposing pipelines, lifecycle events and metrics.

Endpoints:
  GET  /                      service info
  GET  /health                liveness
  GET  /pipelines             registered pipelines
  GET  /pipelines/{name}      one pipeline
  POST /pipelines/{name}/run  run with {"config": {...}}
  GET  /events                run lifecycle events (SSE)
  GET  /metrics               Prometheus metrics

The config file in use is watched while serving. Saving it re-applies
log_level and rebuilds the pipelines with the new credentials.

Example:
  redditor serve                     # listen on server.addr (default 0.0.0.0:8000)
  redditor serve --addr :9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if addr == "" {
				addr = a.cfg.Server.Addr
			}
			if err := config.ValidateServer(config.ServerConfig{Addr: addr}); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx, cmd, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Address to listen on (overrides server.addr)")
	return cmd
}

// serve runs the API until ctx is done, then shuts it down gracefully.
func (a *app) serve(ctx context.Context, cmd *cobra.Command, addr string) error {
	srv, err := server.NewServer(server.ServerConfig{
		Addr: addr,
		HandlerConfig: server.HandlerConfig{
			Registry: a.registry,
			Runner:   a.runner,
			Events:   a.events,
			Version:  a.version,
		},
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(out, "Redditor API listening on %s\n", srv.Addr())
	_, _ = fmt.Fprintln(out, "Press Ctrl+C to stop")

	if a.cfgUsed != "" {
		stopWatch, err := a.watchConfig(ctx, out)
		if err != nil {
			log.ErrorErr(log.CatConfig, "Config reload disabled", err, "path", a.cfgUsed)
		} else {
			defer stopWatch()
		}
	}

	select {
	case <-ctx.Done():
		_, _ = fmt.Fprintln(out, "\nShutting down...")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()

	// Closing the broker ends open /events streams so Shutdown can finish.
	a.events.Close()
	if err := srv.Stop(shutdownCtx); err != nil {
		log.ErrorErr(log.CatServer, "Error stopping API server", err)
		return err
	}

	_, _ = fmt.Fprintln(out, "Server stopped")
	return nil
}

// watchConfig reloads a.cfgUsed whenever it changes until ctx is done.
func (a *app) watchConfig(ctx context.Context, out io.Writer) (func(), error) {
	w, err := watcher.New(watcher.DefaultConfig(a.cfgUsed))
	if err != nil {
		return nil, err
	}
	changes, err := w.Start()
	if err != nil {
		_ = w.Stop()
		return nil, err
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-changes:
				if !ok {
					return
				}
				if err := a.reloadConfig(); err != nil {
					log.ErrorErr(log.CatConfig, "Config reload failed", err, "path", a.cfgUsed)
					_, _ = fmt.Fprintf(out, "Config reload failed: %v\n", err)
					continue
				}
				_, _ = fmt.Fprintf(out, "Reloaded configuration from %s\n", a.cfgUsed)
			}
		}
	}()

	return func() {
		_ = w.Stop()
		<-done
	}, nil
}

// reloadConfig re-reads the config file. A file that fails to load or
// validate leaves the running configuration untouched.
func (a *app) reloadConfig() error {
	cfg, _, err := config.Load(config.LoadOptions{ConfigFile: a.cfgUsed})
	if err != nil {
		return err
	}
	if a.debug {
		cfg.Debug = true
		cfg.LogLevel = "DEBUG"
	}
	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	if err := pipelines.ReloadBuiltins(a.registry, a.newDeps(cfg)); err != nil {
		return err
	}
	log.SetMinLevel(level)
	log.Info(log.CatConfig, "Configuration reloaded", "path", a.cfgUsed, "log_level", level)
	return nil
}
