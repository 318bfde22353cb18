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

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := postgres.NewPool(ctx, cfg.PostgresURL, cfg.PostgresMaxConns)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()

	producer := outbox.NewKafkaProducer(cfg.KafkaBrokers, outbox.WithWriteTimeout(10*time.Second))
	defer producer.Close()

	registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL)
	dispatcher := outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize)

	metricsSrv := httptransport.NewMetricsServer(cfg.MetricsAddress, pool)
	go func() {
		log.Printf("outbox metrics listening on %s", cfg.MetricsAddress)
		if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("metrics server error: %v", err)
		}
	}()

	log.Printf("outbox dispatcher started (interval=%s, batch=%d)", cfg.OutboxPollInterval, cfg.OutboxBatchSize)
	go dispatcher.Start(ctx)

	<-ctx.Done()
	log.Println("outbox dispatcher shutdown requested")
	dispatcher.Wait()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
		log.Printf("metrics server shutdown error: %v", err)
	}
}
