package nutrition

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/noot-app/foodscan-mcp-server/internal/config"
	"github.com/noot-app/foodscan-mcp-server/internal/query"
	"github.com/noot-app/foodscan-mcp-server/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedProvider returns the queued errors in order, then rec
type scriptedProvider struct {
	mu    sync.Mutex
	errs  []error
	rec   *types.NutritionRecord
	calls int
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Lookup(ctx context.Context, name string) (*types.NutritionRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if len(p.errs) > 0 {
		err := p.errs[0]
		p.errs = p.errs[1:]
		return nil, err
	}
	if p.rec == nil {
		return nil, ErrNoMatch
	}
	rec := *p.rec
	return &rec, nil
}

func (p *scriptedProvider) Calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) Total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total time.Duration
	for _, d := range s.delays {
		total += d
	}
	return total
}

func newTestResolver(t *testing.T, provider Provider, opts ...ResolverOption) (*Resolver, *Cache) {
	t.Helper()
	logger := config.NewTestLogger(io.Discard, "debug")
	cache := NewCache(filepath.Join(t.TempDir(), "cache.json"), logger)
	return NewResolver(cache, provider, NewFallbackTable(), logger, opts...), cache
}

func TestResolver_RemoteThenCache(t *testing.T) {
	provider := &scriptedProvider{rec: &types.NutritionRecord{FoodName: "Mango, raw", Calories: 60, Protein: 0.8, Carbs: 15, Fat: 0.4}}
	resolver, cache := newTestResolver(t, provider)
	ctx := context.Background()

	first := resolver.Resolve(ctx, "Mango")
	second := resolver.Resolve(ctx, "  mango ")

	assert.Equal(t, types.SourceRemote, first.Source)
	assert.Equal(t, types.SourceCache, second.Source)
	assert.Equal(t, first.Calories, second.Calories)
	assert.Equal(t, first.Protein, second.Protein)
	assert.Equal(t, first.Carbs, second.Carbs)
	assert.Equal(t, first.Fat, second.Fat)
	assert.Equal(t, 1, provider.Calls())

	stored, ok := cache.Get("mango")
	require.True(t, ok)
	assert.Equal(t, types.SourceRemote, stored.Source, "cached entry keeps its original source tag")
}

func TestResolver_RateLimitBackoffSequence(t *testing.T) {
	provider := &scriptedProvider{errs: []error{ErrRateLimited, ErrRateLimited, ErrRateLimited, ErrRateLimited}}
	sleeper := &sleepRecorder{}
	resolver, cache := newTestResolver(t, provider, WithSleep(sleeper.Sleep))

	rec := resolver.Resolve(context.Background(), "Durian")

	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second}, sleeper.delays)
	assert.Equal(t, 7*time.Second, sleeper.Total())
	assert.Equal(t, 4, provider.Calls(), "one request plus three retries")

	assert.True(t, rec.Placeholder)
	assert.Equal(t, types.SourceFallback, rec.Source)
	assert.Equal(t, 100, rec.Calories)
	assert.Equal(t, 5.0, rec.Protein)
	assert.Equal(t, 15.0, rec.Carbs)
	assert.Equal(t, 3.0, rec.Fat)
	assert.Equal(t, 0, cache.Len(), "fallback results are not cached")
}

func TestResolver_RetryPolicy(t *testing.T) {
	tests := []struct {
		name         string
		errs         []error
		rec          *types.NutritionRecord
		expectDelays []time.Duration
		expectCalls  int
		expectSource types.Source
	}{
		{
			name:         "transport errors use fixed delay",
			errs:         []error{ErrTransport, ErrTransport, ErrTransport, ErrTransport},
			expectDelays: []time.Duration{time.Second, time.Second, time.Second},
			expectCalls:  4,
			expectSource: types.SourceFallback,
		},
		{
			name:         "recovers after transient errors",
			errs:         []error{fmt.Errorf("%w: reset", ErrTransport), ErrRateLimited},
			rec:          &types.NutritionRecord{FoodName: "Kiwi", Calories: 61},
			expectDelays: []time.Duration{time.Second, 2 * time.Second},
			expectCalls:  3,
			expectSource: types.SourceRemote,
		},
		{
			name:         "status error is terminal",
			errs:         []error{&StatusError{Provider: "usda", Code: 500}},
			expectDelays: nil,
			expectCalls:  1,
			expectSource: types.SourceFallback,
		},
		{
			name:         "no match is terminal",
			errs:         []error{ErrNoMatch},
			expectDelays: nil,
			expectCalls:  1,
			expectSource: types.SourceFallback,
		},
		{
			name:         "malformed response is terminal",
			errs:         []error{ErrMalformedResponse},
			expectDelays: nil,
			expectCalls:  1,
			expectSource: types.SourceFallback,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &scriptedProvider{errs: tt.errs, rec: tt.rec}
			sleeper := &sleepRecorder{}
			resolver, _ := newTestResolver(t, provider, WithSleep(sleeper.Sleep))

			rec := resolver.Resolve(context.Background(), "kiwi")

			assert.Equal(t, tt.expectDelays, sleeper.delays)
			assert.Equal(t, tt.expectCalls, provider.Calls())
			assert.Equal(t, tt.expectSource, rec.Source)
		})
	}
}

func TestResolver_FallbackChain(t *testing.T) {
	provider := &scriptedProvider{errs: []error{ErrNoMatch}}
	resolver, _ := newTestResolver(t, provider)

	rec := resolver.Resolve(context.Background(), "Banana")
	assert.Equal(t, types.SourceFallback, rec.Source)
	assert.Equal(t, "Banana", rec.FoodName)
	assert.Equal(t, 89, rec.Calories)
	assert.False(t, rec.Placeholder)
}

func TestResolver_AlwaysReturnsRecord(t *testing.T) {
	sleeper := &sleepRecorder{}
	resolver, _ := newTestResolver(t, &scriptedProvider{errs: []error{ErrTransport, ErrTransport, ErrTransport, ErrTransport}}, WithSleep(sleeper.Sleep))

	for _, name := range []string{"Zzyzx Fruit", "", "   ", "????"} {
		rec := resolver.Resolve(context.Background(), name)
		assert.Equal(t, types.SourceFallback, rec.Source, "name %q", name)
		assert.GreaterOrEqual(t, rec.Calories, 0)
	}
}

func TestResolver_NoProvider(t *testing.T) {
	resolver, _ := newTestResolver(t, nil)

	rec := resolver.Resolve(context.Background(), "salmon fillet")
	assert.Equal(t, "Salmon", rec.FoodName)
	assert.Equal(t, types.SourceFallback, rec.Source)
	assert.NoError(t, resolver.HealthCheck(context.Background()))
}

func TestResolver_SanitizesRemoteRecord(t *testing.T) {
	provider := &scriptedProvider{rec: &types.NutritionRecord{FoodName: "Odd", Calories: -5, Protein: -1}}
	resolver, _ := newTestResolver(t, provider)

	rec := resolver.Resolve(context.Background(), "odd")
	assert.Equal(t, 0, rec.Calories)
	assert.Equal(t, 0.0, rec.Protein)
}

func TestResolver_CancelledDuringBackoffFallsBack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	provider := &scriptedProvider{errs: []error{ErrRateLimited, ErrRateLimited}}
	resolver, _ := newTestResolver(t, provider, WithSleep(func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}))

	rec := resolver.Resolve(ctx, "Durian")
	assert.True(t, rec.Placeholder)
	assert.Equal(t, 1, provider.Calls())
}

func TestResolver_Override(t *testing.T) {
	provider := &scriptedProvider{rec: &types.NutritionRecord{FoodName: "Granola", Calories: 471}}
	resolver, cache := newTestResolver(t, provider)

	rec, err := resolver.Override("Granola", types.NutritionRecord{Calories: 400, Protein: 10})
	require.NoError(t, err)
	assert.Equal(t, types.SourceUserProvided, rec.Source)
	assert.Equal(t, "Granola", rec.FoodName)

	stored, ok := cache.Get("granola")
	require.True(t, ok)
	assert.Equal(t, 400, stored.Calories)
	assert.Equal(t, types.SourceUserProvided, stored.Source)

	// later resolution is served from cache, never from the provider
	got := resolver.Resolve(context.Background(), "granola")
	assert.Equal(t, 400, got.Calories)
	assert.Equal(t, 0, provider.Calls())
}

func TestResolver_WithUSDAServer(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.Write([]byte(appleSearchResponse))
	}))
	defer srv.Close()

	logger := config.NewTestLogger(io.Discard, "debug")
	sleeper := &sleepRecorder{}
	client := NewUSDAClient(srv.URL, "k", 5*time.Second, logger)
	resolver, _ := newTestResolver(t, client, WithSleep(sleeper.Sleep))

	rec := resolver.Resolve(context.Background(), "Apple")
	assert.Equal(t, types.SourceRemote, rec.Source)
	assert.Equal(t, "Apples, raw, with skin", rec.FoodName)
	assert.Equal(t, []time.Duration{time.Second}, sleeper.delays)
	assert.Equal(t, int32(2), hits.Load())
}

func TestOpenFoodFactsProvider(t *testing.T) {
	logger := config.NewTestLogger(io.Discard, "debug")
	engine := query.NewMockEngine(logger)
	provider := NewOpenFoodFactsProvider(engine, logger)
	ctx := context.Background()

	rec, err := provider.Lookup(ctx, "nutella")
	require.NoError(t, err)
	assert.Equal(t, "Nutella", rec.FoodName)
	assert.Equal(t, 539, rec.Calories)
	assert.Contains(t, rec.Ingredients, "hazelnuts")

	_, err = provider.Lookup(ctx, "durian")
	assert.ErrorIs(t, err, ErrNoMatch)

	engine.SetError(fmt.Errorf("duckdb unavailable"))
	_, err = provider.Lookup(ctx, "nutella")
	assert.ErrorIs(t, err, ErrTransport)
	assert.Error(t, provider.HealthCheck(ctx))
}

func TestResolver_IngredientsServedFromCache(t *testing.T) {
	logger := config.NewTestLogger(io.Discard, "debug")
	engine := query.NewMockEngine(logger)
	resolver, cache := newTestResolver(t, NewOpenFoodFactsProvider(engine, logger))
	ctx := context.Background()

	first := resolver.Resolve(ctx, "Nutella")
	assert.Equal(t, types.SourceRemote, first.Source)
	assert.Contains(t, first.Ingredients, "hazelnuts")
	calls := engine.Calls()
	assert.Equal(t, 1, calls)

	second := resolver.Resolve(ctx, "Nutella")
	assert.Equal(t, types.SourceCache, second.Source)
	assert.Equal(t, first.Ingredients, second.Ingredients)
	assert.Equal(t, calls, engine.Calls(), "cached request must not query the dataset")

	// ingredients survive a reload from disk
	require.NoError(t, cache.Save())
	reloaded := NewCache(cache.path, logger)
	require.NoError(t, reloaded.Load())
	rec, ok := reloaded.Get("Nutella")
	require.True(t, ok)
	assert.Contains(t, rec.Ingredients, "hazelnuts")
}

// gatedProvider blocks each lookup until release is closed
type gatedProvider struct {
	started chan struct{}
	release chan struct{}
	ctxErr  chan error
}

func (p *gatedProvider) Name() string { return "gated" }

func (p *gatedProvider) Lookup(ctx context.Context, name string) (*types.NutritionRecord, error) {
	close(p.started)
	<-p.release
	p.ctxErr <- ctx.Err()
	return &types.NutritionRecord{FoodName: name, Calories: 42, Protein: 1, Carbs: 10, Fat: 0.2}, nil
}

func TestResolver_InFlightRemoteSurvivesCancellation(t *testing.T) {
	provider := &gatedProvider{
		started: make(chan struct{}),
		release: make(chan struct{}),
		ctxErr:  make(chan error, 1),
	}
	resolver, cache := newTestResolver(t, provider)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan types.NutritionRecord, 1)
	go func() { done <- resolver.Resolve(ctx, "Durian") }()

	<-provider.started
	cancel()
	close(provider.release)

	rec := <-done
	assert.Equal(t, types.SourceRemote, rec.Source)
	assert.Equal(t, 42, rec.Calories)
	assert.NoError(t, <-provider.ctxErr, "provider call must not see the caller's cancellation")

	cached, ok := cache.Get("Durian")
	require.True(t, ok)
	assert.Equal(t, 42, cached.Calories)
	assert.Equal(t, 1, cache.Len())
}
