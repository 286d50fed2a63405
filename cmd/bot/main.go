package main

import (
	"context"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/anronharry/TG-bot/internal/bot"
	"github.com/anronharry/TG-bot/internal/chat"
	"github.com/anronharry/TG-bot/internal/config"
	"github.com/anronharry/TG-bot/internal/credentials"
	"github.com/anronharry/TG-bot/internal/httpapi"
	"github.com/anronharry/TG-bot/internal/logging"
	"github.com/anronharry/TG-bot/internal/providers"
	"github.com/anronharry/TG-bot/internal/queue"
	"github.com/anronharry/TG-bot/internal/ratelimit"
	"github.com/anronharry/TG-bot/internal/registry"
	"github.com/anronharry/TG-bot/internal/session"
	"github.com/anronharry/TG-bot/internal/storage"
	"github.com/anronharry/TG-bot/internal/telegram"
	"github.com/anronharry/TG-bot/internal/users"
	"github.com/anronharry/TG-bot/internal/wizard"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	logging.ConfigureFromEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Durable store
	db, err := storage.NewDB(cfg.StorageDB())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("Failed to migrate schema: %v", err)
	}

	enc, err := storage.NewEncryptionFromSecret(cfg.EncryptionKey)
	if err != nil {
		log.Fatalf("Failed to initialise encryption: %v", err)
	}

	descriptors, err := cfg.Descriptors()
	if err != nil {
		log.Fatalf("Failed to load catalog seeds: %v", err)
	}

	catalog := db.NewCatalogRepository()
	added, err := catalog.SeedDescriptors(ctx, descriptors, enc)
	if err != nil {
		log.Fatalf("Failed to seed catalog: %v", err)
	}
	logging.Infof("Catalog seeded: %d new of %d configured", added, len(descriptors))

	// Fast cache; the bot keeps running on a cold cache when Redis is down
	var redisClient *storage.RedisClient
	if rc, err := storage.NewRedisClient(cfg.StorageRedis()); err != nil {
		logging.Warningf("Redis unavailable, running with degraded cache: %v", err)
	} else {
		redisClient = rc
		defer redisClient.Close()
	}
	cache := storage.NewFastCache(redisClient)

	userRepo := db.NewUserRepository()
	customModels := db.NewCustomModelRepository()
	historyRepo := db.NewHistoryRepository()

	// History persistence, optionally queued
	var historyWriter session.HistoryWriter = historyRepo
	var historyWorker *storage.HistoryQueueWorker
	if cfg.History.Async {
		historyWorker, err = newHistoryWorker(cfg, cache, historyRepo)
		if err != nil {
			log.Fatalf("Failed to start history queue: %v", err)
		}
		// Stop drains the queue, so the worker outlives the signal context
		historyWorker.Start(context.WithoutCancel(ctx))
		historyWriter = historyWorker
	}

	resolver := credentials.NewResolver(credentials.Options{
		Catalog:      catalog,
		Personal:     customModels,
		Credentials:  db.NewCredentialRepository(),
		Cipher:       enc,
		Descriptors:  descriptors,
		ProviderKeys: cfg.ProviderKeys(),
	})
	adapter := providers.NewAdapter(providers.AdapterOptions{Timeout: cfg.Provider.RequestTimeout})
	modelRegistry := registry.New(catalog, customModels, userRepo, cache)
	sessions := session.NewManager(cache, historyWriter, historyRepo, session.Config{
		ContextTTL:         cfg.Session.ContextTTL,
		ContextMaxMessages: cfg.Session.ContextMaxMessages,
		RecentSessions:     cfg.Session.RecentSessions,
		HistoryLimit:       cfg.Session.HistoryLimit,
	})

	sink, err := newTurnSink(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to create turn log sink: %v", err)
	}

	orchestrator := chat.NewOrchestrator(modelRegistry, resolver, adapter, sessions, sink, chat.Prompts{
		Default: cfg.Prompts.System,
		Admin:   cfg.Prompts.Admin,
	})

	var limiter ratelimit.Limiter = ratelimit.NewNoopLimiter()
	if cache.Available() {
		limiter = ratelimit.NewRateLimiterWithWindow(cache.Client(), cfg.RateLimit.Window)
	}
	guard := ratelimit.NewGuard(limiter, ratelimit.Limits{Global: cfg.RateLimit.Global, User: cfg.RateLimit.User})

	wiz := wizard.New(adapter, customModels, enc, wizard.DefaultIdleTimeout)
	go wiz.Run(ctx, time.Minute)
	go cleanupCatalogCache(ctx, db, 5*time.Minute)

	transport, err := telegram.NewTransport(telegram.Config{
		Token:             cfg.Telegram.Token,
		MessagesPerSecond: cfg.Telegram.MessagesPerSecond,
		RequestTimeout:    cfg.Delivery.SendTimeout,
		Debug:             cfg.Telegram.Debug,
	})
	if err != nil {
		log.Fatalf("Failed to create telegram transport: %v", err)
	}

	b := bot.New(bot.Options{
		Transport: transport,
		Delivery: bot.DeliveryConfig{
			MaxRetries:  cfg.Delivery.MaxRetries,
			RetryDelay:  cfg.Delivery.RetryDelay,
			SendTimeout: cfg.Delivery.SendTimeout,
			DeleteDelay: cfg.Delivery.DeleteDelay,
		},
		Users:        users.NewService(userRepo, cache, cfg.Telegram.AdminIDs),
		Registry:     modelRegistry,
		Sessions:     sessions,
		Generator:    orchestrator,
		Keys:         resolver,
		Wizard:       wiz,
		Validator:    adapter,
		CustomModels: customModels,
		Guard:        guard,
		GroupID:      cfg.Telegram.GroupID,
	})

	// Health endpoint
	server := httpapi.NewServer(cfg.HTTPPort, httpapi.NewRouter(httpapi.NewHealthHandler(db, cache)))
	go func() {
		logging.Infof("Health endpoint listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Errorf("Health server error: %v", err)
		}
	}()

	poller := telegram.NewPoller(transport, b, telegram.PollerConfig{
		Workers:     cfg.Telegram.Workers,
		DropPending: cfg.Telegram.DropPending,
	})
	log.Printf("Bot @%s started", transport.Username())
	poller.Run(ctx)

	log.Println("Shutting down bot...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("Health server forced to shutdown: %v", err)
	}

	// Pending scheduled deletes are dropped
	if err := b.Delivery().Flush(shutdownCtx); err != nil {
		log.Printf("Delivery flush interrupted: %v", err)
	}

	if err := sink.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown turn log sink: %v", err)
	}

	if historyWorker != nil {
		done := make(chan struct{})
		go func() {
			historyWorker.Stop()
			close(done)
		}()
		select {
		case <-done:
		case <-shutdownCtx.Done():
			log.Printf("History queue did not drain before the deadline")
		}
	}

	log.Println("Bot exited")
}

// cleanupCatalogCache evicts expired catalog cache entries until ctx is done
func cleanupCatalogCache(ctx context.Context, db *storage.DB, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := db.CleanupExpiredCacheEntries(); n > 0 {
				logging.Debugf("Evicted %d expired catalog cache entries", n)
			}
		}
	}
}

// newHistoryWorker builds the queued history path. The Redis backend
// shares the fast cache connection.
func newHistoryWorker(cfg *config.Config, cache *storage.FastCache, writer storage.HistoryWriter) (*storage.HistoryQueueWorker, error) {
	qcfg := queue.DefaultConfig("history")

	var (
		q   queue.Queue
		dlq queue.DeadLetterQueue
	)
	if cfg.History.QueueRedis && cache.Available() {
		qcfg.UseRedis = true
		q = queue.NewRedisQueueWithClient(cache.Client(), qcfg)
		dlq = queue.NewRedisDeadLetterQueueWithClient(cache.Client(), qcfg)
	} else {
		if cfg.History.QueueRedis {
			logging.Warningf("HISTORY_QUEUE_REDIS set but Redis is unavailable, using the in-memory queue")
		}
		var err error
		q, dlq, err = queue.New(qcfg)
		if err != nil {
			return nil, err
		}
	}
	return storage.NewHistoryQueueWorker(q, dlq, writer, qcfg), nil
}

// newTurnSink picks the turn audit sinks from config
func newTurnSink(ctx context.Context, cfg *config.Config) (logging.Sink, error) {
	var sinks logging.MultiSink

	if cfg.LoggingSink.Enabled {
		s3Sink, err := logging.NewS3Sink(ctx, logging.S3SinkConfig{
			BufferSize:    cfg.LoggingSink.BufferSize,
			FlushSize:     cfg.LoggingSink.FlushSize,
			FlushInterval: cfg.LoggingSink.FlushInterval,
			S3Bucket:      cfg.LoggingSink.S3Bucket,
			S3Region:      cfg.LoggingSink.S3Region,
			S3Prefix:      cfg.LoggingSink.S3Prefix,
			S3Endpoint:    cfg.LoggingSink.S3Endpoint,
			PodName:       cfg.LoggingSink.PodName,
		})
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, s3Sink)
	}

	if cfg.TurnLog.FilePathTemplate != "" {
		fileSink, err := logging.NewFileSink(
			cfg.TurnLog.FilePathTemplate,
			cfg.TurnLog.MaxSize,
			cfg.TurnLog.MaxFiles,
			cfg.TurnLog.BufferSize,
			cfg.TurnLog.FlushInterval,
		)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, fileSink)
	}

	switch len(sinks) {
	case 0:
		return logging.NewNoopSink(), nil
	case 1:
		return sinks[0], nil
	default:
		return sinks, nil
	}
}
