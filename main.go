package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v3"
)

var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

func main() {
	cmd := &cli.Command{
		EnableShellCompletion: true,
		Suggest:               true,
		Name:                  "drawio-schema-diff",
		Version:               Version,
		Usage:                 "drawio-schema-diff [command]",
		Description:           `Compares the schema described by SQL migration files against a hand-drawn draw.io ER diagram, and generates diagrams from migrations`,
		DefaultCommand:        "help",
		Commands:              commands,
	}

	// Graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
