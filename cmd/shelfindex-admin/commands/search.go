package commands

import (
	"context"
	"fmt"
	"io"

	"github.com/olekukonko/tablewriter"
	"github.com/urfave/cli/v3"

	"github.com/kailas-cloud/shelfindex/internal/domain/search/mode"
	"github.com/kailas-cloud/shelfindex/internal/domain/search/request"
	"github.com/kailas-cloud/shelfindex/internal/domain/search/result"
)

type searcher interface {
	Search(ctx context.Context, req *request.Request) ([]result.Result, error)
}

// SearchAction runs one query and prints id, score and category per hit.
func SearchAction(ctx context.Context, cmd *cli.Command) error {
	ctx, a, cleanup, err := openApp(ctx, cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	return search(ctx, out(cmd), a.Search, mode.Mode(cmd.String("mode")), cmd.String("query"), cmd.Int("limit"))
}

func search(ctx context.Context, w io.Writer, s searcher, m mode.Mode, query string, limit int) error {
	req, err := request.New(query, m, limit)
	if err != nil {
		return err
	}
	results, err := s.Search(ctx, &req)
	if err != nil {
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header("ID", "SCORE", "CATEGORY")
	for i := range results {
		r := &results[i]
		if err := table.Append(fmt.Sprintf("%d", r.ID()), fmt.Sprintf("%.4f", r.Score()), r.Category()); err != nil {
			return fmt.Errorf("render results: %w", err)
		}
	}
	return table.Render()
}
