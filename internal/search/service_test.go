package search

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"go-medsearch-proxy/internal/apperrors"
	"go-medsearch-proxy/internal/cache"
	"go-medsearch-proxy/internal/cache/memory"
	"go-medsearch-proxy/internal/interfaces/mock"
	"go-medsearch-proxy/internal/models"
	"go-medsearch-proxy/internal/upstream"
)

const ctStudiesBody = `{"studies":[{"protocolSection":{"identificationModule":{"nctId":"NCT0001","briefTitle":"Diabetes Study"},"designModule":{"enrollmentInfo":{"count":120}}}}],"totalCount":1}`

var trialDefaults = map[string][]string{"sort": {"relevance"}}

func testTargets() []models.Target {
	return []models.Target{{Name: "clinicaltrials.gov", BaseURL: "https://clinicaltrials.gov", AuthType: models.NoAuth}}
}

func newTestService(t *testing.T, store *memory.Store, caller *mock.MockFallbackCaller) *Service {
	return NewService(Options{
		Provider: NewClinicalTrials(),
		Cache:    store,
		Fingerprint: cache.NewFingerprinter(cache.FingerprintOptions{
			DefaultPageSize: 20,
			DefaultFilters:  trialDefaults,
			Paging:          cache.PageByToken,
		}),
		Upstream:       caller,
		Targets:        testTargets(),
		Timeout:        time.Second,
		MaxPageSize:    100,
		DefaultFilters: trialDefaults,
	}, zaptest.NewLogger(t))
}

func okResponse(body string) *models.UpstreamResponse {
	return &models.UpstreamResponse{Target: "clinicaltrials.gov", StatusCode: http.StatusOK, Body: []byte(body), Attempts: 1}
}

func TestService_MissThenHit(t *testing.T) {
	ctrl := gomock.NewController(t)
	caller := mock.NewMockFallbackCaller(ctrl)
	store := memory.NewStore("test", time.Hour, 100, zap.NewNop())
	svc := newTestService(t, store, caller)

	caller.EXPECT().CallWithFallback(gomock.Any(), testTargets(), gomock.Any()).
		Return(okResponse(ctStudiesBody), nil).Times(1)

	first, err := svc.Search(context.Background(), &models.SearchRequest{Query: "diabetes"})
	require.NoError(t, err)
	assert.Equal(t, models.CacheMiss, first.CacheStatus)
	assert.Equal(t, "diabetes|default-filters|pageSize=20", first.Key)

	second, err := svc.Search(context.Background(), &models.SearchRequest{Query: "  Diabetes", PageSize: 20})
	require.NoError(t, err)
	assert.Equal(t, models.CacheHit, second.CacheStatus)
	assert.Equal(t, first.Body, second.Body, "hit is byte-identical to the miss")

	var resp models.SearchResponse[models.Trial]
	require.NoError(t, json.Unmarshal(first.Body, &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "medium", *resp.Results[0].EnrollmentCategory)
}

func TestService_ExpiryTriggersNewCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	caller := mock.NewMockFallbackCaller(ctrl)
	mockClock := clock.NewMock()
	store := memory.NewStoreWithClock("test", time.Hour, 100, mockClock, zap.NewNop())
	svc := newTestService(t, store, caller)

	caller.EXPECT().CallWithFallback(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(okResponse(ctStudiesBody), nil).Times(2)

	_, err := svc.Search(context.Background(), &models.SearchRequest{Query: "diabetes"})
	require.NoError(t, err)

	mockClock.Add(59 * time.Minute)
	res, err := svc.Search(context.Background(), &models.SearchRequest{Query: "diabetes"})
	require.NoError(t, err)
	assert.Equal(t, models.CacheHit, res.CacheStatus)

	mockClock.Add(time.Minute)
	res, err = svc.Search(context.Background(), &models.SearchRequest{Query: "diabetes"})
	require.NoError(t, err)
	assert.Equal(t, models.CacheMiss, res.CacheStatus)
}

func TestService_UpstreamErrorNotCached(t *testing.T) {
	ctrl := gomock.NewController(t)
	caller := mock.NewMockFallbackCaller(ctrl)
	store := memory.NewStore("test", time.Hour, 100, zap.NewNop())
	svc := newTestService(t, store, caller)

	exhausted := &apperrors.ExhaustedError{Attempts: 1, Last: &apperrors.UpstreamError{
		Kind: apperrors.UpstreamFailure, Target: "clinicaltrials.gov", StatusCode: http.StatusServiceUnavailable,
	}}
	caller.EXPECT().CallWithFallback(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, exhausted)

	_, err := svc.Search(context.Background(), &models.SearchRequest{Query: "diabetes"})

	assert.Equal(t, apperrors.UpstreamFailure, apperrors.CategoryOf(err))
	assert.Equal(t, 0, store.Len())
}

func TestService_MalformedUpstreamBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	caller := mock.NewMockFallbackCaller(ctrl)
	store := memory.NewStore("test", time.Hour, 100, zap.NewNop())
	svc := newTestService(t, store, caller)

	caller.EXPECT().CallWithFallback(gomock.Any(), gomock.Any(), gomock.Any()).Return(okResponse("<html>"), nil)

	_, err := svc.Search(context.Background(), &models.SearchRequest{Query: "diabetes"})

	assert.Equal(t, apperrors.UpstreamFailure, apperrors.CategoryOf(err))
	assert.Equal(t, 0, store.Len())
}

func TestService_Validation(t *testing.T) {
	ctrl := gomock.NewController(t)
	caller := mock.NewMockFallbackCaller(ctrl)
	store := memory.NewStore("test", time.Hour, 100, zap.NewNop())
	svc := newTestService(t, store, caller)
	// No upstream call is expected for invalid input

	tests := []struct {
		name  string
		req   *models.SearchRequest
		field string
	}{
		{name: "nil", req: nil, field: "body"},
		{name: "blank query", req: &models.SearchRequest{Query: "   "}, field: "query"},
		{name: "page size too large", req: &models.SearchRequest{Query: "x", PageSize: 101}, field: "pageSize"},
		{name: "unknown filter", req: &models.SearchRequest{Query: "x", Filters: map[string]models.FilterValue{"color": {"red"}}}, field: "filters"},
		{name: "provider rule", req: &models.SearchRequest{Query: "x", Offset: 3}, field: "offset"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Search(context.Background(), tt.req)

			var validationErr *apperrors.ValidationError
			require.True(t, errors.As(err, &validationErr))
			assert.Equal(t, tt.field, validationErr.Field)
		})
	}
}

func TestService_CachePanicIsMiss(t *testing.T) {
	ctrl := gomock.NewController(t)
	caller := mock.NewMockFallbackCaller(ctrl)
	faulty := mock.NewMockCache(ctrl)

	svc := NewService(Options{
		Provider:    NewClinicalTrials(),
		Cache:       faulty,
		Fingerprint: cache.NewFingerprinter(cache.FingerprintOptions{DefaultPageSize: 20}),
		Upstream:    caller,
		Targets:     testTargets(),
		Timeout:     time.Second,
	}, zaptest.NewLogger(t))

	faulty.EXPECT().Get(gomock.Any()).DoAndReturn(func(string) ([]byte, bool) { panic("corrupted") })
	faulty.EXPECT().Put(gomock.Any(), gomock.Any()).DoAndReturn(func(string, []byte) { panic("full disk") })
	caller.EXPECT().CallWithFallback(gomock.Any(), gomock.Any(), gomock.Any()).Return(okResponse(ctStudiesBody), nil)

	res, err := svc.Search(context.Background(), &models.SearchRequest{Query: "diabetes"})

	require.NoError(t, err)
	assert.Equal(t, models.CacheMiss, res.CacheStatus)
}

func TestService_ConcurrentMissesShareOneCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	caller := mock.NewMockFallbackCaller(ctrl)
	store := memory.NewStore("test", time.Hour, 100, zap.NewNop())
	svc := newTestService(t, store, caller)

	release := make(chan struct{})
	started := make(chan struct{})
	caller.EXPECT().CallWithFallback(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, []models.Target, models.Payload) (*models.UpstreamResponse, error) {
			close(started)
			<-release
			return okResponse(ctStudiesBody), nil
		}).Times(1)

	const callers = 5
	var wg sync.WaitGroup
	bodies := make([][]byte, callers)

	wg.Add(1)
	go func() {
		defer wg.Done()
		res, err := svc.Search(context.Background(), &models.SearchRequest{Query: "diabetes"})
		if assert.NoError(t, err) {
			bodies[0] = res.Body
		}
	}()
	<-started

	for i := 1; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := svc.Search(context.Background(), &models.SearchRequest{Query: "diabetes"})
			if assert.NoError(t, err) {
				bodies[i] = res.Body
			}
		}(i)
	}

	// Give the waiters time to join the in-flight call
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	for i := 1; i < callers; i++ {
		assert.Equal(t, bodies[0], bodies[i])
	}
}

func TestService_CallerDeadlineDoesNotCancelSharedCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	caller := mock.NewMockFallbackCaller(ctrl)
	store := memory.NewStore("test", time.Hour, 100, zap.NewNop())
	svc := newTestService(t, store, caller)

	done := make(chan struct{})
	caller.EXPECT().CallWithFallback(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, _ []models.Target, _ models.Payload) (*models.UpstreamResponse, error) {
			defer close(done)
			time.Sleep(100 * time.Millisecond)
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return okResponse(ctStudiesBody), nil
		})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.Search(ctx, &models.SearchRequest{Query: "diabetes"})
	assert.Equal(t, apperrors.UpstreamTimeout, apperrors.CategoryOf(err))

	<-done
	assert.Eventually(t, func() bool { return store.Len() == 1 }, time.Second, 10*time.Millisecond,
		"shared call completes within its own deadline and is stored")
}

// End-to-end: real upstream client and fallback against an httptest server
func TestService_DiabetesScenario(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "diabetes", r.URL.Query().Get("query.term"))
		assert.Equal(t, "20", r.URL.Query().Get("pageSize"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(ctStudiesBody))
	}))
	defer server.Close()

	logger := zaptest.NewLogger(t)
	mockClock := clock.NewMock()
	store := memory.NewStoreWithClock("clinicaltrials", time.Hour, 100, mockClock, logger)
	client := upstream.NewClient(server.Client(), time.Second, logger)

	svc := NewService(Options{
		Provider: NewClinicalTrials(),
		Cache:    store,
		Fingerprint: cache.NewFingerprinter(cache.FingerprintOptions{
			DefaultPageSize: 20,
			DefaultFilters:  trialDefaults,
		}),
		Upstream:       upstream.NewFallback(ClinicalTrialsEndpoint, client, logger),
		Targets:        []models.Target{{Name: "ct", BaseURL: server.URL, AuthType: models.NoAuth}},
		Timeout:        time.Second,
		MaxPageSize:    100,
		DefaultFilters: trialDefaults,
	}, logger)

	first, err := svc.Search(context.Background(), &models.SearchRequest{Query: "diabetes"})
	require.NoError(t, err)
	assert.Equal(t, "diabetes|default-filters|pageSize=20", first.Key)
	assert.Equal(t, models.CacheMiss, first.CacheStatus)
	assert.EqualValues(t, 1, calls.Load())

	second, err := svc.Search(context.Background(), &models.SearchRequest{Query: "diabetes"})
	require.NoError(t, err)
	assert.Equal(t, models.CacheHit, second.CacheStatus)
	assert.Equal(t, first.Body, second.Body)
	assert.EqualValues(t, 1, calls.Load())

	mockClock.Add(time.Hour)

	third, err := svc.Search(context.Background(), &models.SearchRequest{Query: "diabetes"})
	require.NoError(t, err)
	assert.Equal(t, models.CacheMiss, third.CacheStatus)
	assert.EqualValues(t, 2, calls.Load())
}

// A primary that times out must still leave room for the fallback when the
// client and the service share one attempt timeout
func TestService_FallbackAfterPrimaryTimeout(t *testing.T) {
	var primaryCalls, fallbackCalls atomic.Int32
	primary := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		primaryCalls.Add(1)
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
	}))
	defer primary.Close()
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fallbackCalls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(ctStudiesBody))
	}))
	defer fallback.Close()

	logger := zaptest.NewLogger(t)
	timeout := 200 * time.Millisecond
	store := memory.NewStore("clinicaltrials", time.Hour, 100, logger)
	client := upstream.NewClient(&http.Client{}, timeout, logger)

	svc := NewService(Options{
		Provider: NewClinicalTrials(),
		Cache:    store,
		Fingerprint: cache.NewFingerprinter(cache.FingerprintOptions{
			DefaultPageSize: 20,
			DefaultFilters:  trialDefaults,
		}),
		Upstream: upstream.NewFallback(ClinicalTrialsEndpoint, client, logger),
		Targets: []models.Target{
			{Name: "primary", BaseURL: primary.URL, AuthType: models.NoAuth},
			{Name: "fallback", BaseURL: fallback.URL, AuthType: models.NoAuth},
		},
		Timeout:        timeout,
		MaxPageSize:    100,
		DefaultFilters: trialDefaults,
	}, logger)

	res, err := svc.Search(context.Background(), &models.SearchRequest{Query: "diabetes"})

	require.NoError(t, err)
	assert.Equal(t, models.CacheMiss, res.CacheStatus)
	assert.EqualValues(t, 1, primaryCalls.Load())
	assert.EqualValues(t, 1, fallbackCalls.Load())
	assert.Equal(t, 1, store.Len())
}

func TestService_FetchBudgetCoversEveryTarget(t *testing.T) {
	svc := NewService(Options{
		Provider: NewBrave(),
		Targets:  make([]models.Target, 3),
		Timeout:  time.Second,
	}, zap.NewNop())
	assert.Equal(t, 3*time.Second, svc.fetchBudget())

	svc = NewService(Options{Provider: NewBrave(), Timeout: time.Second}, zap.NewNop())
	assert.Equal(t, time.Second, svc.fetchBudget())
}

func TestService_SendsOriginalQueryCase(t *testing.T) {
	ctrl := gomock.NewController(t)
	caller := mock.NewMockFallbackCaller(ctrl)
	store := memory.NewStore("test", time.Hour, 100, zap.NewNop())
	svc := newTestService(t, store, caller)

	caller.EXPECT().CallWithFallback(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, _ []models.Target, payload models.Payload) (*models.UpstreamResponse, error) {
			assert.Equal(t, "Type 2 Diabetes", payload.Query.Get("query.term"))
			return okResponse(ctStudiesBody), nil
		})

	res, err := svc.Search(context.Background(), &models.SearchRequest{Query: "  Type 2   Diabetes "})
	require.NoError(t, err)
	assert.Equal(t, "type+2+diabetes|default-filters|pageSize=20", res.Key)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(res.Body, &body))
	assert.Equal(t, "Type 2 Diabetes", body["query"])
}
