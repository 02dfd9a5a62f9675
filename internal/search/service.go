package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"go-medsearch-proxy/internal/apperrors"
	"go-medsearch-proxy/internal/interfaces"
	"go-medsearch-proxy/internal/metrics"
	"go-medsearch-proxy/internal/models"
)

// Ensure Service implements interfaces.Searcher
var _ interfaces.Searcher = (*Service)(nil)

var validate = validator.New()

// Options wires a search Service
type Options struct {
	Provider       Provider
	Cache          interfaces.Cache
	Fingerprint    interfaces.FingerprintBuilder
	Upstream       interfaces.FallbackCaller
	Targets        []models.Target
	// Timeout bounds one upstream attempt; a fetch may try every target
	Timeout        time.Duration
	MaxPageSize    int
	DefaultFilters map[string][]string
}

// Service runs the cache-then-upstream flow for one search endpoint.
// Concurrent misses on the same key share one upstream call.
type Service struct {
	provider       Provider
	cache          interfaces.Cache
	fingerprint    interfaces.FingerprintBuilder
	upstream       interfaces.FallbackCaller
	targets        []models.Target
	timeout        time.Duration
	maxPageSize    int
	defaultFilters map[string][]string
	allowed        map[string]struct{}
	group          singleflight.Group
	logger         *zap.Logger
}

// NewService creates a new search Service
func NewService(opts Options, logger *zap.Logger) *Service {
	allowed := make(map[string]struct{})
	for _, f := range opts.Provider.AllowedFilters() {
		allowed[f] = struct{}{}
	}
	return &Service{
		provider:       opts.Provider,
		cache:          opts.Cache,
		fingerprint:    opts.Fingerprint,
		upstream:       opts.Upstream,
		targets:        opts.Targets,
		timeout:        opts.Timeout,
		maxPageSize:    opts.MaxPageSize,
		defaultFilters: opts.DefaultFilters,
		allowed:        allowed,
		logger:         logger.With(zap.String("endpoint", opts.Provider.Name())),
	}
}

// Search returns the serialized search response for req, from cache when a
// fresh entry exists
func (s *Service) Search(ctx context.Context, req *models.SearchRequest) (*models.SearchResult, error) {
	if err := s.validate(req); err != nil {
		return nil, err
	}

	endpoint := s.provider.Name()
	key := s.fingerprint.Build(req)
	metrics.RecordCacheRequest(endpoint)

	if body, found := s.cacheGet(key); found {
		metrics.RecordCacheHit(endpoint)
		s.logger.Debug("Cache hit", zap.String("key", key))
		return &models.SearchResult{Body: body, Key: key, CacheStatus: models.CacheHit}, nil
	}
	metrics.RecordCacheMiss(endpoint)

	// The key folds case, the upstream call and the echoed query do not
	normalized := s.fingerprint.Normalize(req)
	normalized.Query = strings.Join(strings.Fields(req.Query), " ")

	// The shared call must not die with whichever caller started it, so it
	// runs detached with its own deadline. Each caller still waits only as
	// long as its own context allows.
	ch := s.group.DoChan(key, func() (interface{}, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.fetchBudget())
		defer cancel()
		return s.fetch(fetchCtx, key, normalized)
	})

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s search for %q: %w", endpoint, key, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return &models.SearchResult{Body: res.Val.([]byte), Key: key, CacheStatus: models.CacheMiss}, nil
	}
}

// fetchBudget leaves room for one full attempt against every target
func (s *Service) fetchBudget() time.Duration {
	return s.timeout * time.Duration(max(1, len(s.targets)))
}

func (s *Service) fetch(ctx context.Context, key string, req models.SearchRequest) ([]byte, error) {
	filters := mergeFilters(s.defaultFilters, req.Filters)
	payload := s.provider.BuildPayload(req, filters)

	resp, err := s.upstream.CallWithFallback(ctx, s.targets, payload)
	if err != nil {
		return nil, err
	}

	body, err := s.provider.Transform(resp.Body, req.Query)
	if err != nil {
		return nil, &apperrors.UpstreamError{
			Kind:    apperrors.UpstreamFailure,
			Target:  resp.Target,
			Message: "malformed upstream response",
			Err:     err,
		}
	}

	// A result that arrives after the deadline is dropped, not stored
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.cachePut(key, body)
	s.logger.Info("Cached upstream result",
		zap.String("key", key),
		zap.String("target", resp.Target),
		zap.Int("attempts", resp.Attempts),
		zap.Int("bytes", len(body)))

	return body, nil
}

func (s *Service) validate(req *models.SearchRequest) error {
	if req == nil {
		return apperrors.NewValidationError("body", "request body is required")
	}
	if strings.TrimSpace(req.Query) == "" {
		return apperrors.NewValidationError("query", "is required")
	}
	if err := validate.Struct(req); err != nil {
		return apperrors.FromValidator(err)
	}
	if s.maxPageSize > 0 && req.PageSize > s.maxPageSize {
		return apperrors.NewValidationError("pageSize", fmt.Sprintf("must be at most %d", s.maxPageSize))
	}

	var unknown []string
	for key := range req.Filters {
		if _, ok := s.allowed[key]; !ok {
			unknown = append(unknown, key)
		}
	}
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return apperrors.NewValidationError("filters", "unsupported filter "+strings.Join(unknown, ", "))
	}

	return s.provider.Validate(req)
}

// cacheGet treats any cache fault as a miss
func (s *Service) cacheGet(key string) (val []byte, found bool) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Cache get failed", zap.String("key", key), zap.Any("panic", r))
			metrics.RecordCacheError(s.provider.Name(), string(apperrors.CacheFailure))
			val, found = nil, false
		}
	}()
	return s.cache.Get(key)
}

// cachePut never lets a cache fault fail the request
func (s *Service) cachePut(key string, val []byte) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Cache put failed", zap.String("key", key), zap.Any("panic", r))
			metrics.RecordCacheError(s.provider.Name(), string(apperrors.CacheFailure))
		}
	}()
	s.cache.Put(key, val)
}
