// Package app wires configuration into the running recognition pipeline.
// The HTTP server, the MCP tools and the CLI all share one App.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/noot-app/foodscan-mcp-server/internal/classify"
	"github.com/noot-app/foodscan-mcp-server/internal/config"
	"github.com/noot-app/foodscan-mcp-server/internal/dataset"
	"github.com/noot-app/foodscan-mcp-server/internal/feedback"
	"github.com/noot-app/foodscan-mcp-server/internal/health"
	"github.com/noot-app/foodscan-mcp-server/internal/nutrition"
	"github.com/noot-app/foodscan-mcp-server/internal/query"
	"github.com/noot-app/foodscan-mcp-server/internal/recognition"
	"github.com/noot-app/foodscan-mcp-server/internal/types"
)

// HealthCacheDuration bounds how often the provider is actually probed
const HealthCacheDuration = 10 * time.Second

// App holds the long-lived components of the pipeline
type App struct {
	Config       *config.Config
	Cache        *nutrition.Cache
	Resolver     *nutrition.Resolver
	Advisor      *health.Engine
	Feedback     *feedback.Store
	Orchestrator *recognition.Orchestrator

	engine      query.QueryEngine
	dataManager *dataset.Manager
	log         *slog.Logger

	healthMu        sync.RWMutex
	lastHealthCheck time.Time
	lastHealthError error
}

// Status summarizes the app for the health endpoint
type Status struct {
	Provider           string `json:"provider"`
	ImageClassifier    bool   `json:"image_classifier"`
	CachedFoods        int    `json:"cached_foods"`
	CacheMemoryOnly    bool   `json:"cache_memory_only"`
	FeedbackEntries    int    `json:"feedback_entries"`
	FeedbackMemoryOnly bool   `json:"feedback_memory_only"`
}

// Initializer builds an App from configuration
type Initializer struct {
	config *config.Config
	log    *slog.Logger

	// classifiers and engineFactory are replaced in tests
	classifiers   func(ctx context.Context, cfg *config.Config, logger *slog.Logger) classify.Selection
	engineFactory func(parquetPath string, logger *slog.Logger) (query.QueryEngine, error)
}

// NewInitializer creates an initializer for cfg
func NewInitializer(cfg *config.Config, logger *slog.Logger) *Initializer {
	return &Initializer{
		config:        cfg,
		log:           logger,
		classifiers:   classify.Select,
		engineFactory: query.NewQueryEngine,
	}
}

// Initialize loads the persisted stores, selects the nutrition provider and
// classifiers, and assembles the orchestrator
func (in *Initializer) Initialize(ctx context.Context) (*App, error) {
	start := time.Now()
	cfg := in.config
	in.log.Info("Initializing food scan pipeline...")

	if cfg.IsDevelopment() {
		in.log.Warn("🚧 DEVELOPMENT MODE ENABLED 🚧",
			"environment", cfg.Environment,
			"note", "Detailed error messages will be returned to clients")
	}

	a := &App{
		Config:   cfg,
		Cache:    nutrition.NewCache(cfg.CachePath, in.log),
		Advisor:  health.NewEngine(in.log),
		Feedback: feedback.NewStore(cfg.FeedbackPath, in.log),
		log:      in.log,
	}

	// unreadable stores start empty
	_ = a.Cache.Load()
	_ = a.Feedback.Load()

	provider, err := in.provider(ctx, a)
	if err != nil {
		return nil, err
	}

	a.Resolver = nutrition.NewResolver(a.Cache, provider, nutrition.NewFallbackTable(), in.log,
		nutrition.WithCallTimeout(cfg.RemoteTimeout))

	a.Orchestrator = recognition.New(a.Resolver, a.Advisor, a.Feedback, recognition.Options{
		MinConfidence:     cfg.MinConfidence,
		RelaxedConfidence: cfg.RelaxedConfidence,
		HighConfidence:    cfg.HighConfidence,
		Timeout:           cfg.RequestTimeout,
		Workers:           cfg.ResolveWorkers,
	}, in.log, recognition.WithClassifiers(in.classifiers(ctx, cfg, in.log)))

	in.log.Info("Pipeline initialized successfully",
		"provider", cfg.NutritionProvider,
		"cached_foods", a.Cache.Len(),
		"feedback_entries", a.Feedback.Len(),
		"duration", time.Since(start))
	return a, nil
}

func (in *Initializer) provider(ctx context.Context, a *App) (nutrition.Provider, error) {
	cfg := in.config
	switch cfg.NutritionProvider {
	case config.ProviderUSDA, "":
		return nutrition.NewUSDAClient(cfg.USDABaseURL, cfg.USDAAPIKey, cfg.RemoteTimeout, in.log), nil

	case config.ProviderOpenFoodFacts:
		a.dataManager = dataset.NewManager(cfg, in.log)
		if err := a.dataManager.EnsureDataset(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure dataset: %w", err)
		}

		engine, err := in.engineFactory(cfg.ParquetPath, in.log)
		if err != nil {
			return nil, fmt.Errorf("failed to create query engine: %w", err)
		}
		if err := engine.TestConnection(ctx); err != nil {
			engine.Close()
			return nil, fmt.Errorf("failed to test connection: %w", err)
		}
		a.engine = engine

		return nutrition.NewOpenFoodFactsProvider(engine, in.log), nil

	case "none", "offline":
		in.log.Info("No remote nutrition provider, using cache and fallback table only")
		return nil, nil
	}
	return nil, fmt.Errorf("unknown nutrition provider %q", cfg.NutritionProvider)
}

// Profile builds the per-request health profile. Nil conditions and an empty
// goal fall back to the configured defaults.
func (a *App) Profile(conditions []string, goal string) (types.HealthProfile, error) {
	if conditions == nil {
		conditions = a.Config.HealthConditions
	}
	if goal == "" {
		goal = a.Config.DietaryGoal
	}

	ids, err := health.ParseConditions(conditions)
	if err != nil {
		return types.HealthProfile{}, err
	}
	g, err := health.ParseGoal(goal)
	if err != nil {
		return types.HealthProfile{}, err
	}
	return types.HealthProfile{Conditions: ids, Goal: g}, nil
}

// CheckHealth probes the nutrition provider, reusing the last result for
// HealthCacheDuration so the endpoint cannot be used to hammer the provider
func (a *App) CheckHealth(ctx context.Context) error {
	a.healthMu.RLock()
	if time.Since(a.lastHealthCheck) < HealthCacheDuration {
		err := a.lastHealthError
		a.healthMu.RUnlock()
		a.log.Debug("Health check: using cached result",
			"cached_error", err != nil,
			"cache_age", time.Since(a.lastHealthCheck))
		return err
	}
	a.healthMu.RUnlock()

	a.healthMu.Lock()
	defer a.healthMu.Unlock()

	// another goroutine may have refreshed while we waited for the lock
	if time.Since(a.lastHealthCheck) < HealthCacheDuration {
		return a.lastHealthError
	}

	a.log.Debug("Health check: probing nutrition provider")
	err := a.Resolver.HealthCheck(ctx)
	a.lastHealthCheck = time.Now()
	a.lastHealthError = err
	return err
}

// Status reports store sizes and degraded modes
func (a *App) Status() Status {
	return Status{
		Provider:           a.Config.NutritionProvider,
		ImageClassifier:    a.Orchestrator.CanClassifyImages(),
		CachedFoods:        a.Cache.Len(),
		CacheMemoryOnly:    a.Cache.MemoryOnly(),
		FeedbackEntries:    a.Feedback.Len(),
		FeedbackMemoryOnly: a.Feedback.MemoryOnly(),
	}
}

// RefreshDataset re-checks the Open Food Facts dataset. It is a no-op for
// other providers.
func (a *App) RefreshDataset(ctx context.Context) error {
	if a.dataManager == nil {
		return nil
	}
	return a.dataManager.EnsureDataset(ctx)
}

// HasDataset reports whether the app keeps a local dataset to refresh
func (a *App) HasDataset() bool {
	return a.dataManager != nil
}

// Close releases the query engine, if any
func (a *App) Close() error {
	if a.engine == nil {
		return nil
	}
	return a.engine.Close()
}
