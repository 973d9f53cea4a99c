// Package app wires configuration, logging, observability, the
// credential store, and the exchange client into one application
// container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/raglet/raglet/internal/auth"
	"github.com/raglet/raglet/internal/config"
	"github.com/raglet/raglet/internal/log"
	"github.com/raglet/raglet/internal/observability"
	"github.com/raglet/raglet/internal/ragsvc"
)

// App holds the assembled application dependencies.
type App struct {
	Config    *config.Config
	Logger    log.Logger
	Store     *auth.Store
	Guard     *auth.Guard
	Client    *ragsvc.Client
	Telemetry *observability.Telemetry

	logCloser io.Closer
}

// Options tweak how Setup builds the App.
type Options struct {
	// LogToFile routes logs to the state-dir log file instead of
	// stderr. The TUI needs this so the alt screen stays clean.
	LogToFile bool
}

// Setup loads and validates configuration and builds the dependency
// graph. Call Close when done.
func Setup(ctx context.Context, opts Options) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	logCfg := log.Config{Level: cfg.LogLevel, JSON: cfg.LogJSON}
	var (
		logger    log.Logger
		logCloser io.Closer
	)
	if opts.LogToFile {
		logger, logCloser, err = log.NewFile(cfg.ChatLogPath(), logCfg)
		if err != nil {
			return nil, fmt.Errorf("opening log file: %w", err)
		}
	} else {
		logger = log.New(logCfg)
	}

	telemetry := observability.NewNop()
	if cfg.Telemetry {
		telemetry, err = observability.Setup(ctx, observability.Config{
			Enabled:     true,
			ServiceName: "raglet",
			Version:     Version,
		})
		if err != nil {
			if logCloser != nil {
				_ = logCloser.Close()
			}
			return nil, fmt.Errorf("setting up telemetry: %w", err)
		}
	}

	store := auth.NewStore(cfg.CredentialPath(), logger)
	client := ragsvc.New(cfg.ServerURL, store, logger, ragsvc.Options{
		Timeout:   time.Duration(cfg.RequestTimeout) * time.Second,
		Telemetry: telemetry,
	})

	return &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Guard:     auth.NewGuard(store),
		Client:    client,
		Telemetry: telemetry,
		logCloser: logCloser,
	}, nil
}

// Version is injected at build time via ldflags.
var Version = "development"

// Close releases resources in reverse construction order.
func (a *App) Close() error {
	var errs []error
	if a.Telemetry != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.Telemetry.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutting down telemetry: %w", err))
		}
	}
	if a.logCloser != nil {
		if err := a.logCloser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing log file: %w", err))
		}
	}
	return errors.Join(errs...)
}
