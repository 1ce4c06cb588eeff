// routekit sweeps a source directory and routes dated files and archives
// to their destinations.
//
// Usage:
//
//	routekit run      [--source=<dir>] [--use-cases=<file>] [--report=<xlsx>] [--metrics=<prom>]
//	routekit watch    [--source=<dir>] [--use-cases=<file>] [--debounce=<duration>]
//	routekit validate [--use-cases=<file>]
//
// Every flag falls back to its BEAVER_ROUTEKIT_* environment variable.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
