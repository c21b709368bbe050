package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"vihadmin/internal/app/bootstrap"
	"vihadmin/internal/platform/config"
)

// Worker process entrypoint.
// Data flow:
// 1) Load config.
// 2) Build app wiring.
// 3) Relay the lifecycle outbox to the event bus until stopped.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}

	app, err := bootstrap.BuildWorker(ctx, cfg)
	if err != nil {
		log.Fatalf("bootstrap worker failed: %v", err)
	}
	defer func() {
		if err := app.Close(); err != nil {
			log.Printf("worker shutdown close failed: %v", err)
		}
	}()

	if err := app.Run(ctx); err != nil {
		log.Printf("vihadmin worker stopped with error: %v", err)
	}
}
