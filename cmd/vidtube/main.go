package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/vidtube/backend/internal/app"
)

const usage = `usage: vidtube <command> [args]

commands:
  serve                run the HTTP API
  migrate [up|status]  apply or list schema migrations
  seed <name>          load seeds/<name>_seed.sql`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err := app.Run(context.Background(), os.Args[1:]); err != nil {
		slog.Error("vidtube exited", "command", os.Args[1], "error", err)
		os.Exit(1)
	}
}
