package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/uptrace/bun"

	"ms-gigs/internal/api"
	"ms-gigs/internal/archive"
	"ms-gigs/internal/auth"
	"ms-gigs/internal/clock"
	"ms-gigs/internal/config"
	"ms-gigs/internal/events"
	"ms-gigs/internal/geo"
	"ms-gigs/internal/gigs"
	"ms-gigs/internal/kafka"
	"ms-gigs/internal/library"
	"ms-gigs/internal/logger"
	"ms-gigs/internal/models"
	"ms-gigs/internal/presence"
	"ms-gigs/internal/qr"
	"ms-gigs/internal/requests"
	"ms-gigs/internal/scheduler"
	"ms-gigs/internal/session"
	"ms-gigs/internal/sse"
	"ms-gigs/internal/store"
	"ms-gigs/internal/store/memory"
	"ms-gigs/internal/store/redisstore"
	"ms-gigs/internal/swap"
)

func openStore(ctx context.Context, cfg *config.Config, log *logger.Logger) (store.DocumentStore, *redis.Client) {
	if cfg.Redis.StoreBackend == "memory" {
		log.Warn("STORE", "Using in-memory document store; state is lost on restart")
		return memory.New(), nil
	}
	client, err := redisstore.Connect(ctx, cfg.Redis.Addr, cfg.Redis.DB, log)
	if err != nil {
		log.Fatal("REDIS", err.Error())
	}
	return redisstore.New(client, cfg.Redis.Prefix, log), client
}

func buildVerifier(ctx context.Context, cfg *config.Config, client *redis.Client, log *logger.Logger) auth.Verifier {
	var v auth.Verifier
	if cfg.Auth.OIDCIssuer != "" {
		oidcVerifier, err := auth.NewOIDCVerifier(ctx, cfg.Auth.OIDCIssuer)
		if err != nil {
			log.Fatal("AUTH", fmt.Sprintf("OIDC discovery for %s failed: %v", cfg.Auth.OIDCIssuer, err))
		}
		log.Info("AUTH", fmt.Sprintf("Verifying tokens against issuer %s", cfg.Auth.OIDCIssuer))
		v = oidcVerifier
	} else {
		log.Info("AUTH", "Verifying HS256 tokens with the shared secret")
		v = auth.NewHMACVerifier(cfg.Auth.JWTSecret)
	}
	if client != nil {
		return auth.NewCachedVerifier(v, client, cfg.Auth.TokenCacheTTL, log)
	}
	return v
}

func openArchive(ctx context.Context, cfg *config.Config, log *logger.Logger) *bun.DB {
	db, err := archive.Open(ctx, cfg.Archive.Driver, cfg.Archive.DSN)
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Failed to open archive database: %v", err))
	}
	log.LogDatabase("CONNECT", cfg.Archive.Driver, "archive database ready")

	if cfg.Archive.Driver == archive.DriverPostgres && cfg.Archive.Migrations {
		m := archive.NewMigrator(cfg.Archive.DSN, log)
		if err := m.Up(); err != nil {
			log.Fatal("DATABASE", fmt.Sprintf("Archive migrations failed: %v", err))
		}
		if err := m.Close(); err != nil {
			log.Warn("DATABASE", fmt.Sprintf("Closing migrator: %v", err))
		}
		return db
	}
	if err := archive.EnsureSchema(ctx, db); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Archive schema setup failed: %v", err))
	}
	return db
}

func main() {
	cfg := config.Load()
	log := logger.NewLogger(cfg.LogDir, "gigs")
	defer log.Close()

	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()
	st, redisClient := openStore(ctx, cfg, log)
	defer st.Close()
	verifier := buildVerifier(ctx, cfg, redisClient, log)

	bus := events.NewLocalBus(log)
	var pub events.Publisher = bus
	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		topics := kafka.Topics(cfg.Kafka.Topics)
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, topics.All(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers, topics, log)
		defer producer.Close()
		pub = events.Fanout{bus, producer}
	}

	lib := library.NewService(st, clk, log)
	gigService := gigs.NewService(st, lib, pub, clk, log, gigs.Options{
		Location:         cfg.Location(),
		DefaultQueueSize: cfg.Gigs.DefaultQueueSize,
	})
	requestService := requests.NewService(st, pub, clk, log)
	tracker := presence.NewTracker(st, clk, log)
	swapper := swap.NewEngine(st, pub, clk, log)
	emitter := sse.NewGigEmitter()

	handler := &api.Handler{
		Gigs:      gigService,
		Requests:  requestService,
		Presence:  tracker,
		Library:   lib,
		Emitter:   emitter,
		QR:        qr.NewGenerator(cfg.Server.PublicBaseURL, qr.DefaultSize),
		Proximity: geo.Checker{Radius: cfg.Gigs.VoteRadiusMeters},
		Clock:     clk,
		Logger:    log,
	}
	if pinger, ok := st.(api.Pinger); ok {
		handler.Backend = pinger
	}

	if cfg.Archive.Enabled {
		db := openArchive(ctx, cfg, log)
		defer db.Close()
		repo := archive.NewRepository(db, clk, log)
		handler.Archive = repo
		if cfg.Kafka.Enabled {
			consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.Lifecycle, cfg.Kafka.GroupID, log)
			defer consumer.Close()
			go consumer.Start(ctx, repo.Handle)
			log.LogKafka("SUBSCRIBE", cfg.Kafka.Topics.Lifecycle, "archiving ended gigs from the lifecycle topic")
		} else {
			bus.On(repo.Handle, models.EventGigEnded)
		}
	}

	manager := session.NewManager(session.Deps{
		Gigs:     gigService,
		Swapper:  swapper,
		Store:    st,
		Notifier: emitter,
		Clock:    clk,
		Logger:   log,
	}, session.Config{
		AutoEndInterval:  cfg.Timers.AutoEndInterval,
		LivenessInterval: cfg.Timers.LivenessInterval,
	})
	defer manager.Close()
	bus.On(manager.Handle, models.EventGigLive, models.EventGigEnded, models.EventGigCancelled)

	live, err := gigService.AllLive(ctx)
	if err != nil {
		log.Error("SESSION", fmt.Sprintf("Could not list live gigs to resume: %v", err))
	} else {
		manager.Resume(live)
		log.Info("SESSION", fmt.Sprintf("Resumed %d live gig sessions", len(live)))
	}

	if cfg.Timers.CleanupEnabled {
		go scheduler.NewCleanupScheduler(gigService, clk, log, cfg.Timers.CleanupInterval).Run(ctx)
	}

	// No write timeout: gig streams stay open for the whole show.
	server := &http.Server{
		Addr:        cfg.Server.Port,
		Handler:     api.NewRouter(handler, verifier),
		ReadTimeout: cfg.Server.ReadTimeout,
		IdleTimeout: cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("Gig service running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("HTTP", fmt.Sprintf("HTTP server error: %v", err))
			os.Exit(1)
		}
	}()

	log.Info("APP", "Service started successfully, waiting for shutdown signal")
	<-ctx.Done()

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server Shutdown Failed: %v", err))
	} else {
		log.Info("HTTP", "Gig service shutdown complete")
	}
}
