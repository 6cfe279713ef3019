// ./main.go
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/xkilldash9x/pagewright/cmd"
)

// main is the entry point for the pagewright CLI.
func main() {
	// Cancel in-flight commands on SIGINT/SIGTERM so pages and Chrome are shut down.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := cmd.Execute(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		stop()
		os.Exit(1)
	}
}
