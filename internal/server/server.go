// Package server wires configuration, storage, auditing and services into a
// running CRM instance, and serves its Prometheus metrics.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/tahakubilay/Full-CRM-Claude/internal/audit"
	"github.com/tahakubilay/Full-CRM-Claude/internal/config"
	"github.com/tahakubilay/Full-CRM-Claude/internal/db"
	"github.com/tahakubilay/Full-CRM-Claude/internal/entity"
	"github.com/tahakubilay/Full-CRM-Claude/internal/logger"
	"github.com/tahakubilay/Full-CRM-Claude/internal/metrics"
	"github.com/tahakubilay/Full-CRM-Claude/internal/service"
	"gorm.io/gorm"
)

// App is an initialized CRM instance.
type App struct {
	Config   *config.Config
	DB       *gorm.DB
	Services *service.Services
	Activity *audit.DBSink // nil unless activity is stored in the database

	closers []func()
}

// Open loads configuration, initializes logging and the database, runs
// migrations and builds the services.
func Open(configFile string) (*App, error) {
	cfg, err := config.Load(configFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Init(cfg.Log.Format, cfg.Log.Level)

	database, err := db.New(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Debug("Database initialized", "driver", cfg.Database.Driver)

	if err := db.Migrate(database); err != nil {
		closeDB(database)
		return nil, err
	}

	app, err := New(cfg, database)
	if err != nil {
		closeDB(database)
		return nil, err
	}
	app.closers = append(app.closers, func() { closeDB(database) })
	return app, nil
}

// New builds the audit sinks and services over an open database.
func New(cfg *config.Config, database *gorm.DB) (*App, error) {
	app := &App{Config: cfg, DB: database}

	sink, err := app.auditSink(cfg.Audit)
	if err != nil {
		app.Close()
		return nil, err
	}

	svcs, err := service.NewServices(database, entity.NewGormProvider(database), sink, cfg.Docgen)
	if err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.Services = svcs
	return app, nil
}

func (a *App) auditSink(cfg config.AuditConfig) (audit.Sink, error) {
	var sinks []audit.Sink
	if cfg.Sink == "db" || cfg.Sink == "both" {
		a.Activity = audit.NewDBSink(a.DB)
		sinks = append(sinks, a.Activity)
	}
	if cfg.Sink == "valkey" || cfg.Sink == "both" {
		vs, err := audit.NewValkeySink(cfg.ValkeyAddr, cfg.Channel)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize activity sink: %w", err)
		}
		a.closers = append(a.closers, vs.Close)
		sinks = append(sinks, vs)
	}

	switch len(sinks) {
	case 0:
		return audit.Nop, nil
	case 1:
		return sinks[0], nil
	}
	return audit.Multi(sinks...), nil
}

// Close releases the sinks and the database, newest first.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func closeDB(database *gorm.DB) {
	if sqlDB, err := database.DB(); err == nil {
		sqlDB.Close()
	}
}

// NewRegistry returns a registry holding the CRM collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	metrics.RegisterCollectors(reg)
	return reg
}

// ServeMetrics serves /metrics on ln until ctx is cancelled.
func ServeMetrics(ctx context.Context, ln net.Listener, reg *prometheus.Registry) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("Metrics listening", "address", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("metrics server forced to shutdown: %w", err)
	}
	slog.Info("Metrics server stopped")
	return nil
}

// RunWithSignalHandling runs fn until it returns or SIGINT/SIGTERM arrives.
func RunWithSignalHandling(fn func(ctx context.Context) error) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx)
}
