package commands

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"github.com/kailas-cloud/shelfindex/internal/app"
	"github.com/kailas-cloud/shelfindex/internal/config"
	logpkg "github.com/kailas-cloud/shelfindex/internal/logger"
)

// drainTimeout bounds how long a command waits for queued jobs.
const drainTimeout = 30 * time.Minute

// openApp loads configuration from --config or ENV and wires the services.
// The returned context carries the command logger.
func openApp(ctx context.Context, cmd *cli.Command) (context.Context, *app.App, func(), error) {
	env := config.GetEnv()

	var (
		cfg config.Config
		err error
	)
	if path := cmd.String("config"); path != "" {
		cfg, err = config.LoadFile(path)
	} else {
		cfg, err = config.Load(env)
	}
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("create logger: %w", err)
	}

	a, err := app.New(ctx, &cfg, logger)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, nil, err
	}
	cleanup := func() {
		a.Close()
		_ = logger.Sync()
	}
	return logpkg.ContextWithLogger(ctx, logger), a, cleanup, nil
}

func out(cmd *cli.Command) io.Writer {
	return cmd.Root().Writer
}

// drain stops q and waits for every queued job, logging the outcome.
func drain(ctx context.Context, q queue) error {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), drainTimeout)
	defer cancel()
	if err := q.Stop(stopCtx); err != nil {
		return fmt.Errorf("wait for indexing jobs: %w", err)
	}
	logpkg.FromContext(ctx).Debug("Indexing queue drained", zap.Duration("timeout", drainTimeout))
	return nil
}
