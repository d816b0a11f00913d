package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"portal/internal/config"
	"portal/internal/logger"
	"portal/internal/metrics"
	"portal/internal/notify"
	"portal/internal/queue"
	"portal/internal/store"
)

// Worker consumes registration notifications from Redis and sends the
// confirmation e-mails.
func main() {
	cfg := config.Load()

	sugar, err := logger.New(cfg.LogDir, cfg.IsProduction())
	if err != nil {
		log.Fatalf("logger init failed: %v", err)
	}
	defer func() { _ = sugar.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.QueueBackend == "memory" {
		sugar.Fatalw("the memory queue is per-process; the API delivers notifications itself", "queue_backend", cfg.QueueBackend)
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer redisClient.Close()
	if !redisClient.Healthy(ctx) {
		sugar.Warnw("redis not reachable yet, will keep retrying", "addr", cfg.RedisAddr)
	}

	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey)
	q.OnError(func(err error) { sugar.Warnw("redis queue error", "err", err) })

	var sender notify.Sender
	if cfg.SMTPConfigured() {
		sender = notify.NewSMTPSender(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPass, cfg.MailFrom)
		sugar.Infow("smtp configured", "host", cfg.SMTPHost, "port", cfg.SMTPPort)
	} else {
		sender = notify.NewLogSender(sugar)
		sugar.Warnw("SMTP_HOST not set; confirmations are logged, not sent")
	}

	m := metrics.New(prometheus.DefaultRegisterer)
	w := notify.NewWorker(q, sender, cfg.SiteURL, cfg.NotifyTimeout, m, sugar)
	if err := w.Run(ctx); err != nil {
		sugar.Fatalw("worker failed", "err", err)
	}
}
