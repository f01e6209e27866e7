package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/maxfraid/cs2crap/config"
	"github.com/maxfraid/cs2crap/internal/bot"
	"github.com/maxfraid/cs2crap/internal/fetcher"
	"github.com/maxfraid/cs2crap/internal/market"
	"github.com/maxfraid/cs2crap/internal/notify"
	"github.com/maxfraid/cs2crap/internal/scanner"
	"github.com/maxfraid/cs2crap/internal/steam"
	"github.com/maxfraid/cs2crap/logger"
	"github.com/maxfraid/cs2crap/services/cache"
	"github.com/maxfraid/cs2crap/services/publisher"
	"github.com/maxfraid/cs2crap/services/store"
	"github.com/maxfraid/cs2crap/services/worker"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	log.Info().
		Str("environment", cfg.Environment).
		Dur("scan_interval", cfg.ScanInterval).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	services := initializeServices(ctx, &cfg)
	defer services.Cleanup()

	// Item database and reference prices
	st, err := store.Open(cfg.ItemsDBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open item database")
	}
	log.Info().Int("items", st.Len()).Str("path", cfg.ItemsDBPath).Msg("Item database loaded")

	refs := market.NewLoader(cfg.RefPricesURL, cfg.RefPricesPath)
	if err := refs.LoadSnapshot(); err != nil {
		log.Warn().Err(err).Msg("No reference price snapshot, will fetch on first scan")
	}

	// Fetcher and market clients
	timeouts := fetcher.Range{Min: cfg.FetchTimeoutMin, Max: cfg.FetchTimeoutMax}
	f := fetcher.New(fetcher.FileProxySource{Path: cfg.ProxyListPath}, services.Cache)
	client := steam.NewClient(f, cfg.HistogramURL, timeouts)
	catalog := steam.NewCatalog(f, cfg.SearchRenderURL, timeouts)

	// Sinks
	notifier := notify.NewNotifier(cfg.BotToken, cfg.ChatID)
	dispatcher := notify.NewDispatcher(notifier, services.Publisher)

	// Scanner and command bot
	sc := scanner.New(st, client, refs, catalog, dispatcher, cfg.MinVolume)
	b := bot.New(cfg.BotToken, cfg.ChatID, sc, dispatcher)

	botDone := make(chan struct{})
	go func() {
		log.Info().Msg("Starting command bot")
		b.Run(ctx)
		close(botDone)
	}()

	// Optional unattended scans
	if cfg.ScanInterval > 0 {
		w := worker.NewWorker(sc, b, services.Publisher, cfg.ScanInterval)
		go func() {
			log.Info().Dur("interval", cfg.ScanInterval).Msg("Starting interval worker")
			w.Start(ctx)
		}()
	}

	// Wait for shutdown signal
	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
		<-botDone
	case <-botDone:
		log.Info().Msg("Bot exited")
	}

	log.Info().Msg("Shutting down gracefully...")
}

// Services holds the optional shared infrastructure
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
}

// initializeServices wires memcached and Redis when configured, falling
// back to in-process equivalents so a bare deployment still runs.
func initializeServices(ctx context.Context, cfg *config.Config) *Services {
	services := &Services{}

	if cfg.MemcacheAddr != "" {
		services.Cache = cache.NewMemcacheService(cfg.MemcacheAddr)
		logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
	} else {
		services.Cache = cache.NewMemoryCacheService()
		logger.Info("No memcached configured, rate-limit blocks are process-local")
	}

	if cfg.RedisAddr != "" {
		services.Publisher = publisher.NewRedisPublisher(
			ctx,
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	return services
}
