package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/warp/timetrack/api"
	"github.com/warp/timetrack/seed"
)

var (
	serveAddr string
	seedDemo  bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE:  runServe,
	}
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address")
	serveCmd.Flags().BoolVar(&seedDemo, "seed-demo", false, "load the demo directory on startup")
}

// runServe starts the server and blocks until SIGINT/SIGTERM:
//  1. Stop accepting new connections
//  2. Wait for active requests to complete (30s timeout)
//  3. Stop the session monitor and close the database
func runServe(cmd *cobra.Command, args []string) error {
	if cmd.Flags().Changed("addr") {
		cfg.Server.Addr = serveAddr
	}
	ctx := cmd.Context()

	store, err := openStore(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer store.Close()

	if seedDemo {
		if err := seed.Apply(ctx, store, seed.Demo()); err != nil {
			return err
		}
		logger.Info("demo directory loaded")
	}

	tracker := newTracker(store)

	monitor := api.NewSessionMonitor(tracker, logger)
	monitor.CheckInterval = cfg.Tracking.MonitorInterval
	monitor.Threshold = cfg.Tracking.LongSessionThreshold
	monitor.Enabled = cfg.Tracking.MonitorInterval > 0
	monitor.Start()
	defer monitor.Stop()

	router := api.NewRouter(api.NewHandler(tracker, logger), api.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		Monitor:        monitor,
	})

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("server starting",
			slog.String("addr", cfg.Server.Addr),
			slog.String("driver", cfg.Database.Driver),
			slog.String("timezone", cfg.Tracking.Timezone))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errc:
		return err
	case <-quit:
	}

	logger.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("server stopped")
	return nil
}
