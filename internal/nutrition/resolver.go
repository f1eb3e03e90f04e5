package nutrition

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/noot-app/foodscan-mcp-server/internal/retry"
	"github.com/noot-app/foodscan-mcp-server/internal/types"
)

const (
	// DefaultMaxRetries is the number of retries after the first remote request
	DefaultMaxRetries = 3
	// TransportRetryDelay is the fixed wait after a transport error
	TransportRetryDelay = time.Second
	// DefaultCallTimeout bounds a single remote request
	DefaultCallTimeout = 10 * time.Second
)

// Resolver turns a food name into a nutrition record using, in order, the
// cache, the remote provider, the fallback table and finally a placeholder
type Resolver struct {
	cache       *Cache
	provider    Provider
	fallback    *FallbackTable
	maxRetries  int
	sleep       retry.SleepFunc
	callTimeout time.Duration
	log         *slog.Logger
}

// ResolverOption configures a Resolver
type ResolverOption func(*Resolver)

// WithSleep replaces the retry sleep, mainly so tests can observe delays
func WithSleep(sleep retry.SleepFunc) ResolverOption {
	return func(r *Resolver) { r.sleep = sleep }
}

// WithMaxRetries overrides DefaultMaxRetries
func WithMaxRetries(n int) ResolverOption {
	return func(r *Resolver) { r.maxRetries = n }
}

// WithCallTimeout overrides DefaultCallTimeout
func WithCallTimeout(d time.Duration) ResolverOption {
	return func(r *Resolver) {
		if d > 0 {
			r.callTimeout = d
		}
	}
}

// NewResolver wires a resolver. provider may be nil, in which case only the
// cache and fallback table are consulted.
func NewResolver(cache *Cache, provider Provider, fallback *FallbackTable, logger *slog.Logger, opts ...ResolverOption) *Resolver {
	r := &Resolver{
		cache:       cache,
		provider:    provider,
		fallback:    fallback,
		maxRetries:  DefaultMaxRetries,
		sleep:       retry.Sleep,
		callTimeout: DefaultCallTimeout,
		log:         logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve always returns a record. Remote and parse failures fall through to
// the fallback table and then to a placeholder. foodName is cleaned with
// CleanName first, so raw labels and display names share a cache entry.
func (r *Resolver) Resolve(ctx context.Context, foodName string) types.NutritionRecord {
	start := time.Now()
	foodName = CleanName(foodName)
	key := Normalize(foodName)

	if rec, ok := r.cache.Get(key); ok {
		r.log.Debug("Nutrition resolved from cache", "food", key, "duration", time.Since(start))
		return rec.WithSource(types.SourceCache)
	}

	if r.provider != nil && key != "" {
		rec, err := r.fetchRemote(ctx, key)
		if err == nil {
			r.log.Debug("Nutrition resolved remotely",
				"food", key,
				"provider", r.provider.Name(),
				"duration", time.Since(start))
			return rec
		}
		r.log.Info("Remote nutrition lookup failed, using fallback",
			"food", key,
			"provider", r.provider.Name(),
			"error", err,
			"duration", time.Since(start))
	}

	if rec, ok := r.fallback.Lookup(key); ok {
		r.log.Debug("Nutrition resolved from fallback table", "food", key, "match", rec.FoodName)
		return rec
	}

	r.log.Debug("No nutrition source knows food, using placeholder", "food", key)
	return r.fallback.Placeholder(foodName)
}

// fetchRemote queries the provider under the retry policy and writes a
// successful result through to the cache. The request itself is detached from
// ctx cancellation so an abandoned lookup can still complete and populate the
// cache; only the waits between retries observe ctx.
func (r *Resolver) fetchRemote(ctx context.Context, key string) (types.NutritionRecord, error) {
	var found *types.NutritionRecord

	cfg := retry.Config{
		MaxRetries: r.maxRetries,
		Backoff:    backoff,
		Sleep:      r.sleep,
	}

	err := retry.DoWithLog(ctx, cfg, r.provider.Name(), func() error {
		callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.callTimeout)
		defer cancel()

		rec, err := r.provider.Lookup(callCtx, key)
		if err != nil {
			return err
		}
		found = rec
		return nil
	}, func(attempt int, err error, next time.Duration) {
		r.log.Warn("Retrying nutrition lookup",
			"food", key,
			"retry", attempt,
			"delay", next,
			"error", err)
	})
	if err != nil {
		return types.NutritionRecord{}, err
	}

	rec := found.Sanitize()
	rec.Source = types.SourceRemote
	rec.ResolvedAt = time.Now().UTC()
	if rec.FoodName == "" {
		rec.FoodName = key
	}

	if _, err := r.cache.Put(key, rec); err != nil {
		r.log.Warn("Failed to persist nutrition cache", "food", key, "error", err)
	}
	return rec, nil
}

// Override stores a user-provided record for name, replacing any remote or
// fallback entry
func (r *Resolver) Override(name string, rec types.NutritionRecord) (types.NutritionRecord, error) {
	name = CleanName(name)
	rec = rec.Sanitize()
	rec.Source = types.SourceUserProvided
	rec.ResolvedAt = time.Now().UTC()
	rec.Placeholder = false
	if rec.FoodName == "" {
		rec.FoodName = name
	}

	_, err := r.cache.Put(name, rec)
	return rec, err
}

// Placeholder returns the nominal record for name
func (r *Resolver) Placeholder(name string) types.NutritionRecord {
	return r.fallback.Placeholder(name)
}

// HealthCheck reports whether the provider (when it supports probing) is usable
func (r *Resolver) HealthCheck(ctx context.Context) error {
	if hc, ok := r.provider.(interface{ HealthCheck(context.Context) error }); ok {
		return hc.HealthCheck(ctx)
	}
	return nil
}

// backoff retries transport errors after a fixed delay and rate limits with
// 2^n seconds, n being the retries so far
func backoff(err error, retries int) (time.Duration, bool) {
	switch {
	case errors.Is(err, ErrRateLimited):
		return time.Duration(1<<retries) * time.Second, true
	case errors.Is(err, ErrTransport):
		return TransportRetryDelay, true
	default:
		return 0, false
	}
}
