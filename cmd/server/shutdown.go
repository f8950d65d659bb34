package main

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type httpServer interface {
	Shutdown(ctx context.Context) error
}

type jobPool interface {
	Stop(timeout time.Duration) error
}

// shutdown drains the HTTP server and stops the worker pool concurrently.
// Handlers blocked on an extracting job only return once the pool cancels
// it, so the pool must not wait behind the server's grace period.
func shutdown(ctx context.Context, srv httpServer, pool jobPool, poolTimeout time.Duration, logger *slog.Logger) {
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := pool.Stop(poolTimeout); err != nil {
			logger.Error("worker pool shutdown error", "error", err)
		}
	}()

	// Stop accepting new requests; streams in progress get the grace period.
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	wg.Wait()
}
