// Package app runs the long-lived components of the service until shutdown.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Runner serves until ctx is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// Scheduler is started once and stopped on shutdown.
type Scheduler interface {
	Start() error
	Stop() error
}

// App ties the HTTP server and the task scheduler to one lifecycle.
type App struct {
	logger    *slog.Logger
	server    Runner
	scheduler Scheduler
}

// New creates an App. scheduler may be nil.
func New(logger *slog.Logger, server Runner, scheduler Scheduler) *App {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &App{
		logger:    logger.With("component", "app"),
		server:    server,
		scheduler: scheduler,
	}
}

// Run blocks until ctx is cancelled or a component fails. A failing component
// cancels the others.
func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.logger.Info("Starting HTTP server...")
		if err := a.server.Run(gCtx); err != nil {
			return err
		}
		a.logger.Info("HTTP server stopped.")

		if gCtx.Err() == nil {
			a.logger.Warn("HTTP server stopped unexpectedly without context cancellation.")
			return fmt.Errorf("http server stopped unexpectedly")
		}
		return nil
	})

	if a.scheduler != nil {
		g.Go(func() error {
			a.logger.Info("Starting scheduler...")
			if err := a.scheduler.Start(); err != nil {
				a.logger.Error("Failed to start scheduler", "error", err)
				return fmt.Errorf("failed to start scheduler: %w", err)
			}

			<-gCtx.Done()
			a.logger.Info("Shutdown signal received, stopping scheduler...")

			if err := a.scheduler.Stop(); err != nil {
				a.logger.Error("Error stopping scheduler", "error", err)
			}
			return nil
		})
	}

	a.logger.Info("Orchestrator running. Waiting for shutdown signal or error...")
	err := g.Wait()

	if err != nil && !errors.Is(err, context.Canceled) {
		a.logger.Error("Orchestrator stopped due to error", "error", err)
		return err
	}

	a.logger.Info("Orchestrator stopped gracefully.")
	return nil
}
