// Package commands implements the shelfindex admin CLI.
package commands

import (
	"github.com/urfave/cli/v3"

	"github.com/kailas-cloud/shelfindex/internal/version"
)

// Root returns the top-level admin command.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "shelfindex-admin",
		Usage:   "maintenance tasks for the shelfindex search index",
		Version: version.String(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "path to a YAML config file (default: config/<ENV>.yaml)",
				Sources: cli.EnvVars("SHELFINDEX_CONFIG"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:  "reindex",
				Usage: "re-extract and re-index catalog books",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:  "id",
						Usage: "index only this book",
					},
				},
				Action: ReindexAction,
			},
			{
				Name:  "index-file",
				Usage: "index a local PDF under a document id",
				Flags: []cli.Flag{
					&cli.Int64Flag{
						Name:     "id",
						Usage:    "document id",
						Required: true,
					},
					&cli.StringFlag{
						Name:  "genre",
						Usage: "category stored with the document",
					},
					&cli.StringFlag{
						Name:     "file",
						Usage:    "path to the PDF",
						Required: true,
					},
				},
				Action: IndexFileAction,
			},
			{
				Name:  "drop-index",
				Usage: "drop the document index; document hashes stay in the store",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "recreate",
						Usage: "create an empty index afterwards",
					},
				},
				Action: DropIndexAction,
			},
			{
				Name:   "index-stats",
				Usage:  "print the document count of the index",
				Action: IndexStatsAction,
			},
			{
				Name:  "search",
				Usage: "run a search and print the matching ids",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "mode",
						Usage: "context, expanded or semantic",
						Value: "context",
					},
					&cli.StringFlag{
						Name:     "query",
						Usage:    "query text",
						Required: true,
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "maximum number of hits",
						Value: 20,
					},
				},
				Action: SearchAction,
			},
		},
	}
}
