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

	"github.com/doorman-io/doorman/internal/bus"
	"github.com/doorman-io/doorman/internal/config"
	"github.com/doorman-io/doorman/internal/controller"
	"github.com/doorman-io/doorman/internal/httpapi"
	"github.com/doorman-io/doorman/internal/registry"
	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:     "serve",
	Short:   "Run the door controller daemon",
	GroupID: "system",
	RunE: func(cmd *cobra.Command, args []string) error {
		// The daemon is configured by environment, not by the CLI flags.
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: cfg.LogLevel,
		}))
		slog.SetDefault(logger)

		// Load the door registry. Doors that fail validation are skipped
		// and announced as alerts; an empty fleet still serves.
		reg, err := registry.Load(cfg.RegistryPath)
		if err != nil {
			return err
		}
		if reg.Len() == 0 {
			logger.Warn("registry has no usable doors", "path", cfg.RegistryPath)
		}
		for _, sk := range reg.Skipped() {
			logger.Warn("door skipped", "door", sk.ID, "reason", sk.Reason)
		}

		// Connect to NATS.
		conn, err := bus.Connect(cfg.NATSURL, "doorman-controller",
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				logger.Warn("nats disconnected", "err", err)
			}),
			nats.ReconnectHandler(func(nc *nats.Conn) {
				logger.Info("nats reconnected", "url", nc.ConnectedUrl())
			}),
		)
		if err != nil {
			return err
		}

		subj := bus.NewSubjects(cfg.SubjectPrefix)

		// Start the controller loop.
		ctrl := controller.New(reg, conn, subj, logger)
		subCtx, subCancel := context.WithCancel(context.Background())
		ctrlDone := make(chan error, 1)
		go func() {
			ctrlDone <- ctrl.Run(subCtx, conn)
		}()

		// Start the admin API: snapshots, SSE event stream, metrics.
		api := httpapi.New(ctrl.Tracker(), reg, logger)
		go func() {
			if err := api.Pump(subCtx, conn, subj); err != nil {
				logger.Error("event pump error", "err", err)
			}
		}()

		httpServer := &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: api.NewHandler(cfg.AuthToken),
		}
		go func() {
			logger.Info("admin API listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("admin API error", "err", err)
			}
		}()

		logger.Info("doorman started",
			"doors", reg.Len(),
			"skipped", len(reg.Skipped()),
			"nats_url", cfg.NATSURL,
			"subject_prefix", cfg.SubjectPrefix,
		)

		// Wait for SIGINT or SIGTERM, or for the controller to fail.
		var runErr error
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		select {
		case sig := <-sigCh:
			logger.Info("received signal, shutting down", "signal", sig)
		case err := <-ctrlDone:
			if err != nil {
				logger.Error("controller error", "err", err)
				runErr = err
			}
		}

		// Graceful shutdown: stop consuming bus traffic first so no new
		// work is admitted, then drain the HTTP side, then hang up.
		subCancel()
		logger.Info("controller stopped")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("admin API shutdown error", "err", err)
		}
		logger.Info("admin API stopped")

		if err := conn.Close(); err != nil {
			logger.Error("error closing NATS connection", "err", err)
		}

		logger.Info("shutdown complete")
		return runErr
	},
}
