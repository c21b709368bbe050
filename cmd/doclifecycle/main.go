package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
)

// doclifecycle is the operator CLI: it runs the api or relay in the
// foreground and drives documents directly against the configured store.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand(os.Stdout).Run(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}
