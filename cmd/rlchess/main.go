// Command rlchess is the on-chain chess client.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/roach88/rlchess/internal/cli"
	"github.com/roach88/rlchess/internal/telemetry"
)

func main() {
	ctx := context.Background()

	shutdown, err := telemetry.Setup(ctx, "rlchess")
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: tracing disabled: %v\n", err)
	}

	err = cli.NewRootCommand().ExecuteContext(ctx)

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = shutdown(flushCtx)
	cancel()

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(cli.GetExitCode(err))
	}
}
