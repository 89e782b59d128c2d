// Command starmatch inspects and syncs Starmatch level progress.
//
// Usage:
//
//	starmatch levels
//	starmatch complete 1 9 --player alice
//	starmatch sync --player alice
//	starmatch test ./internal/harness/testdata/scenarios
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/roach88/starmatch/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := cli.NewRootCommand().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "starmatch: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
