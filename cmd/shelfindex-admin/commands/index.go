package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/urfave/cli/v3"

	"github.com/kailas-cloud/shelfindex/internal/repository/index"
)

type indexAdmin interface {
	Name() string
	Drop(ctx context.Context) error
	EnsureIndex(ctx context.Context) error
}

// DropIndexAction drops the document index and optionally recreates it.
func DropIndexAction(ctx context.Context, cmd *cli.Command) error {
	ctx, a, cleanup, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	return dropIndex(ctx, out(cmd), a.Index, cmd.Bool("recreate"))
}

func dropIndex(ctx context.Context, w io.Writer, idx indexAdmin, recreate bool) error {
	if err := idx.Drop(ctx); err != nil {
		return fmt.Errorf("drop index %s: %w", idx.Name(), err)
	}
	_, _ = fmt.Fprintf(w, "dropped index %s\n", idx.Name())

	if !recreate {
		return nil
	}
	if err := idx.EnsureIndex(ctx); err != nil {
		return fmt.Errorf("recreate index %s: %w", idx.Name(), err)
	}
	_, _ = fmt.Fprintf(w, "created index %s\n", idx.Name())
	return nil
}

type indexStats interface {
	Stats(ctx context.Context) (index.Stats, error)
}

// IndexStatsAction prints the document count of the live index.
func IndexStatsAction(ctx context.Context, cmd *cli.Command) error {
	ctx, a, cleanup, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	return printStats(ctx, out(cmd), a.Index)
}

func printStats(ctx context.Context, w io.Writer, idx indexStats) error {
	st, err := idx.Stats(ctx)
	if err != nil {
		return fmt.Errorf("index stats: %w", err)
	}
	state := "ready"
	if st.Building {
		state = "building"
	}
	_, _ = fmt.Fprintf(w, "index %s: %d document(s), %s\n", st.Name, st.Documents, state)
	return nil
}
