package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"support-mail-ingest/internal/config"
	"support-mail-ingest/internal/extract"
	"support-mail-ingest/internal/logging"
	"support-mail-ingest/internal/poller"
	"support-mail-ingest/internal/queue"
	"support-mail-ingest/internal/tickets"
	"support-mail-ingest/internal/worker"

	"github.com/redis/go-redis/v9"
)

var pollFailureCount atomic.Int32

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		logging.Log.Fatalf("Error reading configuration file: %v", err)
	}
	logging.SetLevel(cfg.LogLevel)

	rdb := redis.NewClient(&redis.Options{
		Addr: cfg.Redis.Addr(),
		DB:   cfg.Redis.DB,
	})
	emailQueue := queue.New(rdb, cfg.Redis.QueueName)
	extractor := extract.New(cfg.Extractor)
	ticketAPI := tickets.New(cfg.Tickets.BaseURL)

	w := worker.New(emailQueue, extractor, ticketAPI, cfg.Worker)
	w.Start()

	p := poller.New(cfg, emailQueue)

	logging.Log.Infof("Starting support email ingestion, polling every %s", cfg.Poller.Interval)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	ctx := context.Background()
	pollOnce(ctx, p)

	ticker := time.NewTicker(cfg.Poller.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pollOnce(ctx, p)
		case s := <-sig:
			logging.Log.Infof("Received %s, shutting down", s)
			w.Stop()
			if err := rdb.Close(); err != nil {
				logging.Log.Errorf("Error closing Redis client: %v", err)
			}
			return
		}
	}
}

// pollOnce runs one poll cycle and tracks consecutive failures. Failed
// cycles are retried on the next tick; the counter only feeds escalating
// log noise so a dead mailbox is visible in the logs.
func pollOnce(ctx context.Context, p *poller.Poller) {
	if err := p.Poll(ctx); err != nil {
		failures := pollFailureCount.Add(1)
		if failures >= 5 {
			logging.Log.Warnf("Poll cycle failed %d times in a row: %v", failures, err)
		} else {
			logging.Log.Errorf("Poll cycle error: %v", err)
		}
		return
	}
	pollFailureCount.Store(0)
}
