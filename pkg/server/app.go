package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"StockForecaster/pkg/config"
	xhttp "StockForecaster/pkg/http"
	"StockForecaster/pkg/http/middleware"
	applogger "StockForecaster/pkg/logger"
)

const (
	janitorInterval = time.Minute
	limiterIdle     = 10 * time.Minute
)

// ForgetfulLimiter is a request limiter whose idle per-key state can be dropped.
type ForgetfulLimiter interface {
	middleware.Limiter
	Forget(idle time.Duration) int
}

// Purger drops expired entries from an in-process cache.
type Purger interface {
	Purge() int
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    xhttp.Handler
	limiter    ForgetfulLimiter
	purger     Purger
	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, h xhttp.Handler) *App {
	if l == nil {
		l = applogger.Nop()
	}
	return &App{cfg: cfg, log: l, handler: h}
}

// SetLimiter enables per-IP rate limiting.
func (a *App) SetLimiter(l ForgetfulLimiter) { a.limiter = l }

// SetPurger registers a cache swept by the janitor.
func (a *App) SetPurger(p Purger) { a.purger = p }

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsPath := a.cfg.Metrics.Path
	if !a.cfg.Metrics.Enabled {
		metricsPath = ""
	}
	opts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(a.log),
		xhttp.WithMetricsPath(metricsPath),
	}
	if a.limiter != nil {
		opts = append(opts, xhttp.WithRateLimiter(a.limiter))
	}
	a.httpServer = xhttp.NewServer(a.handler, opts...)

	go a.janitor(ctx)

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	// Wait for interrupt
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// janitor periodically drops idle limiter buckets and expired cache entries.
func (a *App) janitor(ctx context.Context) {
	if a.limiter == nil && a.purger == nil {
		return
	}
	t := time.NewTicker(janitorInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if a.limiter != nil {
				if n := a.limiter.Forget(limiterIdle); n > 0 {
					a.log.Debug("rate limiter buckets dropped", applogger.Int("count", n))
				}
			}
			if a.purger != nil {
				if n := a.purger.Purge(); n > 0 {
					a.log.Debug("cache entries purged", applogger.Int("count", n))
				}
			}
		}
	}
}

// shutdown gracefully stops the HTTP server. Infrastructure clients are
// closed by the DI cleanup.
func (a *App) shutdown(ctx context.Context) error {
	a.log.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		return err
	}

	a.log.Info("shutdown complete")
	return nil
}
