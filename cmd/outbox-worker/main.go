// Command outbox-worker drains the transactional outbox into Kafka. Runs as
// a separate process so the API server never talks to Kafka on its write
// path.
package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"github.com/twmb/franz-go/pkg/kgo"

	"certflow/internal/ledger/outbox"
	"certflow/internal/platform/config"
	"certflow/internal/platform/logger"
)

const pollInterval = 2 * time.Second

func main() {
	cfg := config.FromEnv()
	log := logger.New()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		log.Error("open database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		log.Error("ping database", "error", err)
		os.Exit(1)
	}

	client, err := kgo.NewClient(
		kgo.SeedBrokers(strings.Split(cfg.KafkaBrokers, ",")...),
		kgo.RequiredAcks(kgo.AllISRAcks()),
	)
	if err != nil {
		log.Error("create kafka client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	if err := outbox.EnsureTopic(ctx, client, cfg.AuditTopic); err != nil {
		log.Error("ensure audit topic", "error", err)
		os.Exit(1)
	}

	worker := outbox.NewWorker(db, client, cfg.AuditTopic, pollInterval, log)
	log.Info("starting outbox worker", "topic", cfg.AuditTopic)
	if err := worker.Run(ctx); err != nil && ctx.Err() == nil {
		log.Error("outbox worker exited", "error", err)
		os.Exit(1)
	}
}
