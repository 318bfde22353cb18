package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"example.com/challenges/internal/config"
	"example.com/challenges/internal/outbox"
	"example.com/challenges/internal/persistence/postgres"
	httptransport "example.com/challenges/internal/transport/http"
)

const defaultDLQBatchSize = 50

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.PostgresURL, cfg.PostgresMaxConns)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	manager := outbox.NewDLQManager(pool, cfg.DLQMaxRetries, cfg.DLQBaseDelay, outbox.WithReplayRate(cfg.DLQReplayRate))

	metricsSrv := httptransport.NewMetricsServer(cfg.MetricsAddress, pool)
	go func() {
		log.Printf("dlq manager metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	ticker := time.NewTicker(cfg.DLQPollInterval)
	defer ticker.Stop()

	log.Printf("DLQ manager started (interval=%s, maxRetries=%d, replayRate=%.2f/s)", cfg.DLQPollInterval, cfg.DLQMaxRetries, cfg.DLQReplayRate)

loop:
	for {
		select {
		case <-ctx.Done():
			log.Println("dlq manager received shutdown signal")
			break loop
		case <-ticker.C:
			processed, err := manager.RunOnce(ctx, defaultDLQBatchSize)
			if err != nil {
				log.Printf("dlq manager error: %v", err)
			} else if processed > 0 {
				log.Printf("dlq manager processed %d entries", processed)
			}
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}
}
