package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"go-medsearch-proxy/internal/cache"
	"go-medsearch-proxy/internal/cache/l1"
	"go-medsearch-proxy/internal/cache/l2"
	"go-medsearch-proxy/internal/cache/memory"
	"go-medsearch-proxy/internal/cache/multi"
	"go-medsearch-proxy/internal/cache/noop"
	"go-medsearch-proxy/internal/config"
	"go-medsearch-proxy/internal/httpserver"
	"go-medsearch-proxy/internal/interfaces"
	"go-medsearch-proxy/internal/models"
	"go-medsearch-proxy/internal/podcast"
	"go-medsearch-proxy/internal/scheduler"
	"go-medsearch-proxy/internal/search"
	"go-medsearch-proxy/internal/upstream"
)

// CompositionRoot holds all application dependencies and provides a centralized
// place for dependency injection and service initialization.
type CompositionRoot struct {
	// Configuration
	Config *config.Config
	Logger *zap.Logger

	// Cache components, keyed by endpoint
	Caches      map[string]interfaces.Cache
	redisClient *l2.GoRedisClient
	redisErr    error

	// Services
	ClinicalTrials *search.Service
	Brave          *search.Service
	Synthesizer    *podcast.Synthesizer
	Processor      *podcast.Processor
	HTTPServer     *httpserver.Server

	schedulers []*scheduler.Scheduler
}

// NewCompositionRoot creates and initializes all application dependencies.
//
// Initialization order:
// 1. Logger (needed by all other components)
// 2. Environment and configuration
// 3. Search services, each with its own cache
// 4. Podcast synthesizer and job processor
// 5. HTTP Server (uses all above components)
// 6. Background schedulers
func NewCompositionRoot() (*CompositionRoot, error) {
	root := &CompositionRoot{
		Caches: make(map[string]interfaces.Cache),
	}

	// Initialize logger first
	if err := root.initLogger(); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Load configuration
	if err := root.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	root.initSearch()
	root.initPodcast()
	root.initHTTPServer()
	root.initSchedulers()

	return root, nil
}

// initLogger initializes the application logger
func (r *CompositionRoot) initLogger() error {
	logger, err := zap.NewProduction()
	if err != nil {
		return err
	}
	r.Logger = logger
	return nil
}

// loadConfig loads an optional .env file and the application configuration.
// A missing config file falls back to the built-in defaults.
func (r *CompositionRoot) loadConfig() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.Logger.Warn("Failed to load .env file", zap.Error(err))
	}

	configPath := os.Getenv("PROXY_CONFIG_FILE")
	if configPath == "" {
		configPath = defaultConfigPath
	}

	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		r.Logger.Info("Config file not found, using defaults", zap.String("path", configPath))
		r.Config = config.Default()
		return nil
	}

	cfg, err := config.LoadConfig(configPath, r.Logger)
	if err != nil {
		return err
	}

	r.Config = cfg
	return nil
}

// initSearch builds the search services of enabled endpoints
func (r *CompositionRoot) initSearch() {
	cfg := r.Config
	if cfg.ClinicalTrials.Enabled {
		r.ClinicalTrials = r.newSearchService(search.NewClinicalTrials(), cfg.ClinicalTrials)
	}
	if cfg.Brave.Enabled {
		r.Brave = r.newSearchService(search.NewBrave(), cfg.Brave)
	}
}

func (r *CompositionRoot) newSearchService(provider search.Provider, endpointCfg config.SearchEndpointConfig) *search.Service {
	name := provider.Name()
	targets := BuildTargets(name, endpointCfg.Targets, r.Logger)
	if len(targets) == 0 {
		r.Logger.Warn("Endpoint has no usable targets, disabling", zap.String("endpoint", name))
		return nil
	}

	store := r.newCache(name, r.Config.SearchCacheTTL(endpointCfg), r.Config.SearchCacheCapacity(endpointCfg))
	client := upstream.NewClient(&http.Client{}, endpointCfg.Timeout, r.Logger)

	r.Logger.Info("Search endpoint initialized",
		zap.String("endpoint", name),
		zap.Int("targets", len(targets)),
		zap.Duration("timeout", endpointCfg.Timeout))

	return search.NewService(search.Options{
		Provider: provider,
		Cache:    store,
		Fingerprint: cache.NewFingerprinter(cache.FingerprintOptions{
			DefaultPageSize: endpointCfg.DefaultPageSize,
			DefaultFilters:  endpointCfg.DefaultFilters,
			Paging:          provider.Paging(),
		}),
		Upstream:       upstream.NewFallback(name, client, r.Logger),
		Targets:        targets,
		Timeout:        endpointCfg.Timeout,
		MaxPageSize:    endpointCfg.MaxPageSize,
		DefaultFilters: endpointCfg.DefaultFilters,
	}, r.Logger)
}

// initPodcast builds the synthesizer and its job processor
func (r *CompositionRoot) initPodcast() {
	cfg := r.Config.Podcast
	if !cfg.Enabled {
		return
	}

	targets := BuildTargets(podcast.Endpoint, cfg.Targets, r.Logger)
	if len(targets) == 0 {
		r.Logger.Warn("Endpoint has no usable targets, disabling", zap.String("endpoint", podcast.Endpoint))
		return
	}

	ttl := cfg.CacheTTL
	if ttl == 0 {
		ttl = r.Config.Cache.TTL
	}
	client := upstream.NewClient(&http.Client{}, cfg.Timeout, r.Logger)

	r.Synthesizer = podcast.NewSynthesizer(podcast.Options{
		Cache:           r.newCache(podcast.Endpoint, ttl, cfg.CacheCapacity),
		Upstream:        upstream.NewFallback(podcast.Endpoint, client, r.Logger),
		Targets:         targets,
		SpeakerVoices:   cfg.SpeakerVoices,
		MaxChars:        cfg.MaxChars,
		ModelID:         cfg.ModelID,
		Stability:       cfg.Stability,
		SimilarityBoost: cfg.SimilarityBoost,
		Timeout:         cfg.Timeout,
	}, r.Logger)

	r.Processor = podcast.NewProcessor(r.newJobQueue(), r.Synthesizer, clock.New(), r.Logger)

	r.Logger.Info("Podcast endpoint initialized",
		zap.Int("voices", len(targets)),
		zap.String("queue", cfg.Queue.Backend))
}

func (r *CompositionRoot) newJobQueue() interfaces.JobQueue {
	queueCfg := r.Config.Podcast.Queue
	if queueCfg.Backend == "redis" {
		if client := r.redis(); client != nil {
			return podcast.NewRedisQueue(client, r.Config.Redis.KeyPrefix, queueCfg.JobRetention, r.Logger)
		}
		r.Logger.Warn("Redis unavailable, falling back to in-memory job queue")
	}

	queue := podcast.NewMemoryQueue(queueCfg.JobRetention, clock.New())
	r.schedulers = append(r.schedulers, scheduler.New("podcast-queue-sweep", r.Config.Cache.SweepInterval, func(_ context.Context) {
		if removed := queue.Sweep(); removed > 0 {
			r.Logger.Debug("Swept finished podcast jobs", zap.Int("removed", removed))
		}
	}, r.Logger))
	return queue
}

// newCache builds the configured cache backend for one endpoint. Backends
// that fail to initialize degrade to no caching.
func (r *CompositionRoot) newCache(name string, ttl time.Duration, capacity int) interfaces.Cache {
	backend := r.Config.Cache.Backend
	var c interfaces.Cache

	switch backend {
	case models.CacheBackendMemory:
		c = memory.NewStore(name, ttl, capacity, r.Logger)
	case models.CacheBackendBigCache:
		bc, err := l1.NewBigCache(name, ttl, &r.Config.Cache.BigCache, r.Logger)
		if err != nil {
			r.Logger.Warn("Failed to initialize BigCache, caching disabled", zap.String("cache", name), zap.Error(err))
			c = noop.NewNoOpCache()
		} else {
			c = bc
		}
	case models.CacheBackendRedis:
		if client := r.redis(); client != nil {
			c = l2.NewRedisCache(name, ttl, &r.Config.Redis, client, r.Logger)
		} else {
			c = noop.NewNoOpCache()
		}
	case models.CacheBackendMulti:
		levels := []interfaces.Cache{memory.NewStore(name, ttl, capacity, r.Logger)}
		if client := r.redis(); client != nil {
			levels = append(levels, l2.NewRedisCache(name, ttl, &r.Config.Redis, client, r.Logger))
		}
		c = multi.NewMultiCache(levels, r.Logger)
	default:
		c = noop.NewNoOpCache()
	}

	r.Caches[name] = c
	r.Logger.Info("Cache initialized",
		zap.String("cache", name),
		zap.String("backend", string(backend)),
		zap.Duration("ttl", ttl),
		zap.Int("capacity", capacity))
	return c
}

// redis returns the shared Redis client, connecting on first use. A failed
// connection is remembered and not retried.
func (r *CompositionRoot) redis() *l2.GoRedisClient {
	if r.redisClient != nil || r.redisErr != nil {
		return r.redisClient
	}

	redisURL := GetRedisURL(r.Logger)
	client, err := l2.NewRedisClient(&r.Config.Redis, redisURL, r.Logger)
	if err != nil {
		r.Logger.Warn("Failed to connect to Redis", zap.Error(err))
		r.redisErr = err
		return nil
	}

	r.redisClient = client
	r.Logger.Info("Redis initialized")
	return client
}

// initHTTPServer initializes the HTTP server
func (r *CompositionRoot) initHTTPServer() {
	opts := httpserver.Options{
		Config:       r.Config.Server,
		CacheBackend: r.Config.Cache.Backend,
		Caches:       make(map[string]interfaces.Sizer),
	}

	// Typed nil pointers must not reach the interface fields
	if r.ClinicalTrials != nil {
		opts.ClinicalTrials = r.ClinicalTrials
	}
	if r.Brave != nil {
		opts.Brave = r.Brave
	}
	if r.Synthesizer != nil {
		opts.Synthesizer = r.Synthesizer
		opts.Jobs = r.Processor
	}

	for name, c := range r.Caches {
		if sizer, ok := c.(interfaces.Sizer); ok {
			opts.Caches[name] = sizer
		}
	}

	r.HTTPServer = httpserver.NewServer(opts, r.Logger)
}

// initSchedulers registers the cache sweeper and the podcast job processor
func (r *CompositionRoot) initSchedulers() {
	var sweepers []interfaces.Sweeper
	for _, c := range r.Caches {
		if sweeper, ok := c.(interfaces.Sweeper); ok {
			sweepers = append(sweepers, sweeper)
		}
	}
	if len(sweepers) > 0 {
		r.schedulers = append(r.schedulers, scheduler.New("cache-sweep", r.Config.Cache.SweepInterval, func(_ context.Context) {
			removed := 0
			for _, sweeper := range sweepers {
				removed += sweeper.Sweep()
			}
			if removed > 0 {
				r.Logger.Debug("Swept expired cache entries", zap.Int("removed", removed))
			}
		}, r.Logger))
	}

	if r.Processor != nil {
		r.schedulers = append(r.schedulers, scheduler.New("podcast-processor", r.Config.Podcast.Queue.PollInterval, r.Processor.Tick, r.Logger))
	}
}

// StartSchedulers starts every background task
func (r *CompositionRoot) StartSchedulers() {
	for _, s := range r.schedulers {
		s.Start()
	}
}

// Cleanup performs cleanup of all resources
func (r *CompositionRoot) Cleanup() error {
	var errs []error

	for _, s := range r.schedulers {
		s.Stop()
	}

	for name, c := range r.Caches {
		if bc, ok := c.(*l1.BigCache); ok {
			if err := bc.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close cache %s: %w", name, err))
			}
		}
	}

	if r.redisClient != nil {
		if err := r.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}

	// Sync logger last so the messages above are flushed
	if r.Logger != nil {
		if err := r.Logger.Sync(); err != nil {
			errs = append(errs, fmt.Errorf("failed to sync logger: %w", err))
		}
	}

	return errors.Join(errs...)
}
