package cmd

import (
	"context"
	"fmt"
	"net/http"

	"sjsage522/pricetracker/config"
	"sjsage522/pricetracker/internal/extractor"
	"sjsage522/pricetracker/internal/fetcher"
	"sjsage522/pricetracker/internal/search"
	"sjsage522/pricetracker/internal/storage"
	"sjsage522/pricetracker/logger"
	"sjsage522/pricetracker/services/cache"
	"sjsage522/pricetracker/services/coordinator"
	"sjsage522/pricetracker/services/notifier"
	"sjsage522/pricetracker/services/publisher"
	"sjsage522/pricetracker/services/scheduler"
)

// Services holds all the initialized services
type Services struct {
	Store       *storage.SQLStore
	Cache       cache.CacheService
	Publisher   publisher.Publisher
	Sender      notifier.Sender
	Coordinator *coordinator.Coordinator
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	log := logger.Default
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close publisher")
		}
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			log.Warn().Err(err).Msg("Failed to close database")
		}
	}
}

// Scheduler builds the refresh scheduler on top of the services
func (s *Services) Scheduler(cfg *config.Config, runOnStart bool) *scheduler.Scheduler {
	return scheduler.New(s.Store, s.Coordinator, s.Publisher, scheduler.Options{
		Interval:     cfg.RefreshInterval,
		DrainTimeout: cfg.ShutdownDrain,
		RunOnStart:   runOnStart,
	})
}

// initializeServices initializes all required services
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	log := logger.Default
	services := &Services{}

	// Initialize database, migrations run on open
	store, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	services.Store = store
	log.Info().Str("driver", cfg.DBDriver).Msg("Database ready")

	// Initialize cache service for host blocks
	if cfg.MemcacheAddr != "" {
		mc := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := mc.Ping(); err != nil {
			log.Warn().Err(err).Str("addr", cfg.MemcacheAddr).Msg("Memcache unreachable, using in-process cache")
			services.Cache = cache.NewMemoryService()
		} else {
			services.Cache = mc
			log.Info().Str("addr", cfg.MemcacheAddr).Msg("Connected to Memcache")
		}
	} else {
		services.Cache = cache.NewMemoryService()
	}

	// Initialize publisher
	services.Publisher = publisher.NopPublisher{}
	if cfg.RedisAddr != "" {
		redisPublisher := publisher.NewRedisPublisher(cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream, int(cfg.RedisStreamMaxLength))
		if err := redisPublisher.Ping(ctx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.RedisAddr).Msg("Redis unreachable, price-drop events disabled")
			_ = redisPublisher.Close()
		} else {
			services.Publisher = redisPublisher
			log.Info().
				Str("addr", cfg.RedisAddr).
				Int("db", cfg.RedisDB).
				Str("stream", cfg.RedisStream).
				Msg("Connected to Redis")
		}
	}

	// Initialize mail sender
	if cfg.MailEnabled() {
		sender, err := notifier.NewSMTPSender(cfg.SMTPConfig())
		if err != nil {
			services.Cleanup()
			return nil, fmt.Errorf("failed to create mail sender: %w", err)
		}
		services.Sender = sender
	} else {
		log.Warn().Msg("MAIL_USERNAME not set, notifications are logged instead of sent")
		services.Sender = notifier.NewLogSender()
	}

	client := &http.Client{
		Timeout: cfg.FetchTimeout,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 10,
		},
	}

	pageFetcher := fetcher.New(client, services.Cache, fetcher.Options{
		UserAgent:     cfg.UserAgent,
		Timeout:       cfg.FetchTimeout,
		RatePerHost:   cfg.RatePerHost,
		RespectRobots: cfg.RespectRobots,
		BlockDuration: cfg.HostBlock,
	})

	resolver := search.New(client, search.Options{
		Endpoint: cfg.SearchEndpoint,
		APIKey:   cfg.SearchAPIKey,
		CX:       cfg.SearchCX,
		Timeout:  cfg.FetchTimeout,
	}, log.WithField("component", "search"))

	services.Coordinator = coordinator.New(coordinator.Deps{
		Fetcher:    pageFetcher,
		Dispatcher: extractor.NewDefaultRegistry(),
		Repository: store,
		Notifier:   notifier.New(store, services.Sender, services.Publisher),
		Resolver:   resolver,
	}, coordinator.Options{
		MaxInflightGlobal:  cfg.MaxInflightGlobal,
		MaxInflightPerHost: cfg.MaxInflightPerHost,
	})

	return services, nil
}
