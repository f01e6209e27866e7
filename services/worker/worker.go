// Package worker runs unattended full scans on a fixed interval, next to
// the interactive bot commands.
package worker

import (
	"context"
	"time"

	"github.com/maxfraid/cs2crap/internal/scanner"
	"github.com/maxfraid/cs2crap/logger"
	"github.com/maxfraid/cs2crap/services/publisher"
)

// Runner is the scan entry point the worker drives
type Runner interface {
	Run(ctx context.Context, opts scanner.Options) scanner.Session
}

// RouteProvider supplies the current route toggles before each pass
type RouteProvider interface {
	Routes() scanner.RouteSet
}

// Worker handles the periodic scan-and-publish process
type Worker struct {
	runner   Runner
	routes   RouteProvider
	pub      publisher.Publisher
	interval time.Duration
	log      *logger.Logger
}

// NewWorker creates a new worker; pub may be nil when no stream is configured
func NewWorker(runner Runner, routes RouteProvider, pub publisher.Publisher, interval time.Duration) *Worker {
	return &Worker{
		runner:   runner,
		routes:   routes,
		pub:      pub,
		interval: interval,
		log:      logger.ForWorker(),
	}
}

// Start runs scan passes until ctx is cancelled
func (w *Worker) Start(ctx context.Context) {
	for {
		start := time.Now()
		w.runOnce(ctx)
		w.log.Info().Dur("elapsed", time.Since(start)).Msg("Scan pass finished")

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.interval):
		}
	}
}

// runOnce executes a single full-database pass and trims the streams after
func (w *Worker) runOnce(ctx context.Context) {
	routes := scanner.DefaultRoutes()
	if w.routes != nil {
		routes = w.routes.Routes()
	}
	if !routes.Any() {
		w.log.Info().Msg("All routes disabled, skipping pass")
		return
	}

	session := w.runner.Run(ctx, scanner.Options{All: true, Routes: routes})
	if session.Refused {
		w.log.Info().Msg("Another scan pass is active, skipping")
		return
	}
	if session.Cancelled {
		return
	}

	if w.pub != nil {
		if err := w.pub.TrimStreams(); err != nil {
			w.log.Error().Err(err).Msg("Stream trimming failed")
		}
	}
}
