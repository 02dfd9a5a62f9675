package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"go-medsearch-proxy/internal/models"
)

var validate = validator.New()

// Config represents the main configuration structure
type Config struct {
	Server         ServerConfig         `yaml:"server"`
	Cache          CacheConfig          `yaml:"cache"`
	Redis          RedisConfig          `yaml:"redis"`
	ClinicalTrials SearchEndpointConfig `yaml:"clinical_trials"`
	Brave          SearchEndpointConfig `yaml:"brave"`
	Podcast        PodcastConfig        `yaml:"podcast"`
}

// ServerConfig configures the inbound HTTP server
type ServerConfig struct {
	Addr            string        `yaml:"addr"`
	SocketPath      string        `yaml:"socket_path"` // serve on a Unix socket instead of Addr when set
	ReadTimeout     time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" validate:"gt=0"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" validate:"gt=0"`
	CORS            CORSConfig    `yaml:"cors"`
}

// CORSConfig configures preflight answers
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins" validate:"min=1"`
	AllowedHeaders []string `yaml:"allowed_headers"`
	MaxAge         int      `yaml:"max_age" validate:"gte=0"`
}

// CacheConfig holds the defaults shared by every endpoint cache
type CacheConfig struct {
	Backend       models.CacheBackend `yaml:"backend" validate:"oneof=memory bigcache redis multi none"`
	TTL           time.Duration       `yaml:"ttl" validate:"gt=0"`
	Capacity      int                 `yaml:"capacity" validate:"gte=0"`
	SweepInterval time.Duration       `yaml:"sweep_interval" validate:"gt=0"`
	BigCache      BigCacheConfig      `yaml:"bigcache"`
}

// BigCacheConfig configures the bigcache backend
type BigCacheConfig struct {
	Shards             int           `yaml:"shards" validate:"gt=0"`
	HardMaxCacheSizeMB int           `yaml:"hard_max_cache_size_mb" validate:"gte=0"`
	MaxEntrySize       int           `yaml:"max_entry_size" validate:"gt=0"`
	CleanWindow        time.Duration `yaml:"clean_window" validate:"gt=0"`
}

// RedisConfig configures the shared Redis connection. The URL comes from the
// environment, never from this file.
type RedisConfig struct {
	ConnectTimeout time.Duration `yaml:"connect_timeout" validate:"gt=0"`
	ReadTimeout    time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout   time.Duration `yaml:"write_timeout" validate:"gt=0"`
	PoolSize       int           `yaml:"pool_size" validate:"gt=0"`
	IdleTimeout    time.Duration `yaml:"idle_timeout" validate:"gte=0"`
	KeyPrefix      string        `yaml:"key_prefix"`
}

// TargetConfig describes one upstream target. Credentials are read from the
// environment variable named by CredentialEnv.
type TargetConfig struct {
	Name          string          `yaml:"name" validate:"required"`
	BaseURL       string          `yaml:"base_url" validate:"required,url"`
	AuthType      models.AuthType `yaml:"auth_type" validate:"oneof=no-auth header-auth query-auth"`
	AuthName      string          `yaml:"auth_name" validate:"required_unless=AuthType no-auth"`
	CredentialEnv string          `yaml:"credential_env" validate:"required_unless=AuthType no-auth"`
	VoiceID       string          `yaml:"voice_id"`
}

// SearchEndpointConfig configures one search endpoint
type SearchEndpointConfig struct {
	Enabled         bool                `yaml:"enabled"`
	Timeout         time.Duration       `yaml:"timeout" validate:"gt=0"`
	DefaultPageSize int                 `yaml:"default_page_size" validate:"gt=0"`
	MaxPageSize     int                 `yaml:"max_page_size" validate:"gtefield=DefaultPageSize"`
	CacheTTL        time.Duration       `yaml:"cache_ttl" validate:"gte=0"`      // zero inherits cache.ttl
	CacheCapacity   int                 `yaml:"cache_capacity" validate:"gte=0"` // zero inherits cache.capacity
	DefaultFilters  map[string][]string `yaml:"default_filters"`
	Targets         []TargetConfig      `yaml:"targets" validate:"required_if=Enabled true,dive"`
}

// PodcastConfig configures text-to-speech synthesis and the job queue
type PodcastConfig struct {
	Enabled         bool              `yaml:"enabled"`
	Timeout         time.Duration     `yaml:"timeout" validate:"gt=0"`
	MaxChars        int               `yaml:"max_chars" validate:"gt=0"`
	ModelID         string            `yaml:"model_id" validate:"required"`
	Stability       float64           `yaml:"stability" validate:"gte=0,lte=1"`
	SimilarityBoost float64           `yaml:"similarity_boost" validate:"gte=0,lte=1"`
	CacheTTL        time.Duration     `yaml:"cache_ttl" validate:"gte=0"`
	CacheCapacity   int               `yaml:"cache_capacity" validate:"gte=0"`
	SpeakerVoices   map[string]string `yaml:"speaker_voices"`
	Targets         []TargetConfig    `yaml:"targets" validate:"required_if=Enabled true,dive"`
	Queue           QueueConfig       `yaml:"queue"`
}

// QueueConfig configures the podcast job queue
type QueueConfig struct {
	Backend      string        `yaml:"backend" validate:"oneof=memory redis"`
	PollInterval time.Duration `yaml:"poll_interval" validate:"gt=0"`
	JobRetention time.Duration `yaml:"job_retention" validate:"gt=0"`
}

// LoadConfig loads configuration from file path
func LoadConfig(configPath string, logger *zap.Logger) (*Config, error) {
	logger.Info("Loading configuration", zap.String("path", configPath))

	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var config Config
	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(&config); err != nil {
		return nil, fmt.Errorf("failed to decode YAML config: %w", err)
	}

	// Apply defaults
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// Default returns the configuration used when no file is present
func Default() *Config {
	config := &Config{
		ClinicalTrials: SearchEndpointConfig{Enabled: true},
		Brave:          SearchEndpointConfig{Enabled: true},
		Podcast:        PodcastConfig{Enabled: true},
	}
	config.applyDefaults()
	return config
}

// Validate checks the configuration after defaults were applied
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// SearchCacheTTL returns the effective TTL of a search endpoint cache
func (c *Config) SearchCacheTTL(e SearchEndpointConfig) time.Duration {
	if e.CacheTTL > 0 {
		return e.CacheTTL
	}
	return c.Cache.TTL
}

// SearchCacheCapacity returns the effective capacity of a search endpoint cache
func (c *Config) SearchCacheCapacity(e SearchEndpointConfig) int {
	if e.CacheCapacity > 0 {
		return e.CacheCapacity
	}
	return c.Cache.Capacity
}

// applyDefaults sets default values for missing configuration
func (c *Config) applyDefaults() {
	s := &c.Server
	if s.Addr == "" && s.SocketPath == "" {
		s.Addr = ":8080"
	}
	setDuration(&s.ReadTimeout, 30*time.Second)
	setDuration(&s.WriteTimeout, 60*time.Second)
	setDuration(&s.IdleTimeout, 60*time.Second)
	setDuration(&s.ShutdownTimeout, 30*time.Second)
	if s.MaxBodyBytes == 0 {
		s.MaxBodyBytes = 1 << 20
	}
	if len(s.CORS.AllowedOrigins) == 0 {
		s.CORS.AllowedOrigins = []string{"*"}
	}
	if len(s.CORS.AllowedHeaders) == 0 {
		s.CORS.AllowedHeaders = []string{"authorization", "x-client-info", "apikey", "content-type"}
	}
	if s.CORS.MaxAge == 0 {
		s.CORS.MaxAge = 86400
	}

	if c.Cache.Backend == "" {
		c.Cache.Backend = models.CacheBackendMemory
	}
	setDuration(&c.Cache.TTL, time.Hour)
	if c.Cache.Capacity == 0 {
		c.Cache.Capacity = 100
	}
	setDuration(&c.Cache.SweepInterval, 5*time.Minute)
	b := &c.Cache.BigCache
	if b.Shards == 0 {
		b.Shards = 64
	}
	if b.HardMaxCacheSizeMB == 0 {
		b.HardMaxCacheSizeMB = 128
	}
	if b.MaxEntrySize == 0 {
		b.MaxEntrySize = 1 << 20
	}
	setDuration(&b.CleanWindow, c.Cache.SweepInterval)

	r := &c.Redis
	setDuration(&r.ConnectTimeout, 2*time.Second)
	setDuration(&r.ReadTimeout, time.Second)
	setDuration(&r.WriteTimeout, time.Second)
	if r.PoolSize == 0 {
		r.PoolSize = 10
	}
	setDuration(&r.IdleTimeout, 5*time.Minute)
	if r.KeyPrefix == "" {
		r.KeyPrefix = "medsearch"
	}

	applySearchDefaults(&c.ClinicalTrials, 20, 100, []TargetConfig{{
		Name:     "clinicaltrials.gov",
		BaseURL:  "https://clinicaltrials.gov",
		AuthType: models.NoAuth,
	}})
	applySearchDefaults(&c.Brave, 20, 20, []TargetConfig{
		{
			Name:          "brave-primary",
			BaseURL:       "https://api.search.brave.com",
			AuthType:      models.HeaderAuth,
			AuthName:      "X-Subscription-Token",
			CredentialEnv: "BRAVE_API_KEY",
		},
		{
			Name:          "brave-secondary",
			BaseURL:       "https://api.search.brave.com",
			AuthType:      models.HeaderAuth,
			AuthName:      "X-Subscription-Token",
			CredentialEnv: "BRAVE_API_KEY_SECONDARY",
		},
	})

	p := &c.Podcast
	setDuration(&p.Timeout, 60*time.Second)
	if p.MaxChars == 0 {
		p.MaxChars = 5000
	}
	if p.ModelID == "" {
		p.ModelID = "eleven_multilingual_v2"
	}
	if p.Stability == 0 {
		p.Stability = 0.5
	}
	if p.SimilarityBoost == 0 {
		p.SimilarityBoost = 0.75
	}
	if p.CacheCapacity == 0 {
		p.CacheCapacity = 20
	}
	if len(p.Targets) == 0 {
		p.Targets = []TargetConfig{
			{
				Name:          "elevenlabs-primary-voice",
				BaseURL:       "https://api.elevenlabs.io",
				AuthType:      models.HeaderAuth,
				AuthName:      "xi-api-key",
				CredentialEnv: "ELEVENLABS_API_KEY",
				VoiceID:       "21m00Tcm4TlvDq8ikWAM",
			},
			{
				Name:          "elevenlabs-fallback-voice",
				BaseURL:       "https://api.elevenlabs.io",
				AuthType:      models.HeaderAuth,
				AuthName:      "xi-api-key",
				CredentialEnv: "ELEVENLABS_API_KEY",
				VoiceID:       "EXAVITQu4vr4xnSDxMaL",
			},
		}
	}
	applyTargetDefaults(p.Targets)
	if p.Queue.Backend == "" {
		p.Queue.Backend = "memory"
	}
	setDuration(&p.Queue.PollInterval, 10*time.Second)
	setDuration(&p.Queue.JobRetention, 24*time.Hour)
}

func applySearchDefaults(e *SearchEndpointConfig, pageSize, maxPageSize int, targets []TargetConfig) {
	setDuration(&e.Timeout, 15*time.Second)
	if e.DefaultPageSize == 0 {
		e.DefaultPageSize = pageSize
	}
	if e.MaxPageSize == 0 {
		e.MaxPageSize = maxPageSize
	}
	if len(e.Targets) == 0 {
		e.Targets = targets
	}
	applyTargetDefaults(e.Targets)
}

func applyTargetDefaults(targets []TargetConfig) {
	for i := range targets {
		if targets[i].AuthType == "" {
			targets[i].AuthType = models.NoAuth
		}
	}
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}
