package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfindex/internal/app"
	"github.com/kailas-cloud/shelfindex/internal/config"
	logpkg "github.com/kailas-cloud/shelfindex/internal/logger"
	"github.com/kailas-cloud/shelfindex/internal/version"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "shelfindex:", err)
		os.Exit(1)
	}
}

func run() error {
	env := config.GetEnv()
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("shelfindex starting",
		zap.String("version", version.String()),
		zap.String("env", env),
		zap.Int("http_port", cfg.HTTP.Port),
		zap.String("db_driver", cfg.Database.Driver),
		zap.Strings("db_addrs", cfg.Database.Addrs),
		zap.Bool("catalog", cfg.Catalog.DSN != ""),
		zap.Bool("semantic", cfg.Embedding.Enabled()),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, &cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	defer a.Close()

	// Workers outlive request contexts; they stop through Queue.Stop.
	a.Queue.Start(logpkg.ContextWithLogger(context.Background(), logger))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           newRouter(&cfg, a, logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       config.Duration(cfg.HTTP.ReadTimeoutSec),
		WriteTimeout:      config.Duration(cfg.HTTP.WriteTimeoutSec),
	}

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", zap.String("addr", srv.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Duration(cfg.HTTP.ShutdownSec))
	defer cancel()

	// In-flight requests finish first; pending indexing jobs get what is
	// left of the window.
	var errs []error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.Queue.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("indexing queue did not drain: %w", err))
	}
	if err := errors.Join(errs...); err != nil {
		return err
	}

	logger.Info("shelfindex stopped")
	return nil
}
