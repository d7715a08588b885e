// Command cleanup-job runs one pass of the expired-gig cleanup and exits.
// It is meant for an external scheduler such as a cron job.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"ms-gigs/internal/clock"
	"ms-gigs/internal/config"
	"ms-gigs/internal/events"
	"ms-gigs/internal/gigs"
	"ms-gigs/internal/kafka"
	"ms-gigs/internal/library"
	"ms-gigs/internal/logger"
	"ms-gigs/internal/scheduler"
	"ms-gigs/internal/store/redisstore"
)

func main() {
	cfg := config.Load()
	log := logger.NewLogger(cfg.LogDir, "gigs-cleanup")
	defer log.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client, err := redisstore.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB, log)
	if err != nil {
		log.Fatal("REDIS", err.Error())
	}
	st := redisstore.New(client, cfg.Redis.Prefix, log)
	defer st.Close()

	var pub events.Publisher = events.Discard
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka.Brokers, kafka.Topics(cfg.Kafka.Topics), log)
		defer producer.Close()
		pub = producer
	}

	clk := clock.Real()
	svc := gigs.NewService(st, library.NewService(st, clk, log), pub, clk, log, gigs.Options{
		Location:         cfg.Location(),
		DefaultQueueSize: cfg.Gigs.DefaultQueueSize,
	})

	report, err := scheduler.NewCleanupScheduler(svc, clk, log, cfg.Timers.CleanupInterval).RunOnce(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "cleanup failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("checked=%d cancelled=%d failed=%d\n", report.CheckedCount, report.CancelledCount, report.FailedCount)
}
