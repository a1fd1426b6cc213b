package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/kailas-cloud/shelfindex/cmd/shelfindex-admin/commands"
	"github.com/kailas-cloud/shelfindex/internal/db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := commands.Root().Run(ctx, os.Args); err != nil {
		if cmd, ok := db.Command(err); ok {
			fmt.Fprintf(os.Stderr, "error: index store command %s failed: %v\n", cmd, err)
		} else {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		stop()
		os.Exit(1) //nolint:gocritic // stop is called explicitly above
	}
}
