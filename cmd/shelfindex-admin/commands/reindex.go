package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v3"
)

type queue interface {
	Start(ctx context.Context)
	Stop(ctx context.Context) error
}

type reindexer interface {
	Reindex(ctx context.Context) (int, error)
	ReindexBook(ctx context.Context, id int64) error
}

type documentIndexer interface {
	IndexDocument(ctx context.Context, id int64, category string, data []byte) error
}

// ReindexAction schedules index jobs for one or all books and waits for them.
func ReindexAction(ctx context.Context, cmd *cli.Command) error {
	ctx, a, cleanup, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	if a.Catalog == nil {
		return errors.New("reindex needs the catalog: set catalog.dsn")
	}
	return reindex(ctx, out(cmd), a.Catalog, a.Queue, cmd.Int64("id"))
}

// reindex starts q, schedules jobs through books and drains q. id zero
// means every book.
func reindex(ctx context.Context, w io.Writer, books reindexer, q queue, id int64) error {
	q.Start(ctx)

	var scheduled int
	var err error
	if id != 0 {
		if err = books.ReindexBook(ctx, id); err == nil {
			scheduled = 1
		}
	} else {
		scheduled, err = books.Reindex(ctx)
	}

	// Jobs already queued still run when scheduling stopped early.
	if drainErr := drain(ctx, q); drainErr != nil {
		err = errors.Join(err, drainErr)
	}
	if err != nil {
		return fmt.Errorf("reindex: %w", err)
	}

	_, _ = fmt.Fprintf(w, "reindexed %d book(s)\n", scheduled)
	return nil
}

// IndexFileAction indexes a local PDF directly, bypassing catalog and queue.
func IndexFileAction(ctx context.Context, cmd *cli.Command) error {
	ctx, a, cleanup, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	return indexFile(ctx, out(cmd), a.Indexing, cmd.Int64("id"), cmd.String("genre"), cmd.String("file"))
}

func indexFile(ctx context.Context, w io.Writer, idx documentIndexer, id int64, genre, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // operator-supplied path
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := idx.IndexDocument(ctx, id, genre, data); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "indexed document %d (%d bytes)\n", id, len(data))
	return nil
}
