// Package main is the entry point for the lexbridge command.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	// Links the chroma lexers into the process image.
	_ "github.com/dshills/lexbridge/internal/native/chromamod"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd := newRootCmd(os.Stdin, os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
