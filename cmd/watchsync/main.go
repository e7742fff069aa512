package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/watchsync/internal/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	_ = logging.Close()
	if err != nil {
		fmt.Fprintf(os.Stderr, "watchsync: %v\n", err)
		os.Exit(1)
	}
}
