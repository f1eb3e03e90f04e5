package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/noot-app/foodscan-mcp-server/internal/classify"
	"github.com/noot-app/foodscan-mcp-server/internal/config"
	"github.com/noot-app/foodscan-mcp-server/internal/query"
	"github.com/noot-app/foodscan-mcp-server/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T, provider string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	return &config.Config{
		Environment:        "test",
		NutritionProvider:  provider,
		CachePath:          filepath.Join(dir, "nutrition_cache.json"),
		FeedbackPath:       filepath.Join(dir, "recognition_feedback.json"),
		ParquetPath:        filepath.Join(dir, "product-database.parquet"),
		MetadataPath:       filepath.Join(dir, "metadata.json"),
		LockFile:           filepath.Join(dir, "refresh.lock"),
		DisableRemoteCheck: true,
	}
}

func testInitializer(cfg *config.Config, engine query.QueryEngine) *Initializer {
	in := NewInitializer(cfg, config.NewTestLogger(io.Discard, "error"))
	in.classifiers = func(context.Context, *config.Config, *slog.Logger) classify.Selection {
		return classify.Selection{}
	}
	in.engineFactory = func(string, *slog.Logger) (query.QueryEngine, error) {
		if engine == nil {
			return nil, errors.New("no engine")
		}
		return engine, nil
	}
	return in
}

func TestInitialize_OfflineProvider(t *testing.T) {
	cfg := testConfig(t, "none")
	a, err := testInitializer(cfg, nil).Initialize(context.Background())
	require.NoError(t, err)
	defer a.Close()

	assert.False(t, a.Orchestrator.CanClassifyImages())
	assert.False(t, a.HasDataset())
	assert.NoError(t, a.RefreshDataset(context.Background()))

	analysis, err := a.Orchestrator.AnalyzeCandidates(context.Background(),
		[]types.Candidate{{Label: "apple", Confidence: 0.9}}, types.HealthProfile{})
	require.NoError(t, err)
	require.Len(t, analysis.Foods, 1)
	assert.Equal(t, types.SourceFallback, analysis.Foods[0].Nutrition.Source)
}

func TestInitialize_LoadsPersistedStores(t *testing.T) {
	cfg := testConfig(t, "none")
	require.NoError(t, os.WriteFile(cfg.CachePath,
		[]byte(`{"kimchi":{"food_name":"Kimchi","calories":15,"source":"remote"}}`), 0644))

	a, err := testInitializer(cfg, nil).Initialize(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, a.Status().CachedFoods)
	rec := a.Resolver.Resolve(context.Background(), "Kimchi")
	assert.Equal(t, 15, rec.Calories)
	assert.Equal(t, types.SourceCache, rec.Source)
}

func TestInitialize_CorruptStoresStartEmpty(t *testing.T) {
	cfg := testConfig(t, "none")
	require.NoError(t, os.WriteFile(cfg.CachePath, []byte("{not json"), 0644))
	require.NoError(t, os.WriteFile(cfg.FeedbackPath, []byte("[oops"), 0644))

	a, err := testInitializer(cfg, nil).Initialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, a.Status().CachedFoods)
	assert.Equal(t, 0, a.Status().FeedbackEntries)
}

func TestInitialize_OpenFoodFacts(t *testing.T) {
	cfg := testConfig(t, config.ProviderOpenFoodFacts)
	require.NoError(t, os.WriteFile(cfg.ParquetPath, []byte("parquet"), 0644))

	engine := query.NewMockEngine(config.NewTestLogger(io.Discard, "error"))
	a, err := testInitializer(cfg, engine).Initialize(context.Background())
	require.NoError(t, err)
	defer a.Close()

	assert.True(t, a.HasDataset())

	analysis, err := a.Orchestrator.AnalyzeCandidates(context.Background(),
		[]types.Candidate{{Label: "Nutella", Confidence: 0.9}},
		types.HealthProfile{Conditions: []types.ConditionID{types.ConditionNutAllergy}})
	require.NoError(t, err)
	require.Len(t, analysis.Foods, 1)
	food := analysis.Foods[0]
	assert.Equal(t, 539, food.Nutrition.Calories)
	assert.Equal(t, types.SourceRemote, food.Nutrition.Source)
	require.NotEmpty(t, food.Warnings)
	assert.Equal(t, types.ConditionNutAllergy, food.Warnings[0].Condition)

	// a repeat request is answered from the cache, ingredients included
	calls := engine.Calls()
	analysis, err = a.Orchestrator.AnalyzeCandidates(context.Background(),
		[]types.Candidate{{Label: "Nutella", Confidence: 0.9}},
		types.HealthProfile{Conditions: []types.ConditionID{types.ConditionNutAllergy}})
	require.NoError(t, err)
	require.Len(t, analysis.Foods, 1)
	assert.Equal(t, types.SourceCache, analysis.Foods[0].Nutrition.Source)
	assert.NotEmpty(t, analysis.Foods[0].Warnings)
	assert.Equal(t, calls, engine.Calls())
}

func TestInitialize_Errors(t *testing.T) {
	t.Run("unknown provider", func(t *testing.T) {
		_, err := testInitializer(testConfig(t, "edamam"), nil).Initialize(context.Background())
		assert.ErrorContains(t, err, "unknown nutrition provider")
	})

	t.Run("engine creation fails", func(t *testing.T) {
		cfg := testConfig(t, config.ProviderOpenFoodFacts)
		require.NoError(t, os.WriteFile(cfg.ParquetPath, []byte("parquet"), 0644))
		_, err := testInitializer(cfg, nil).Initialize(context.Background())
		assert.ErrorContains(t, err, "failed to create query engine")
	})

	t.Run("engine connection fails", func(t *testing.T) {
		cfg := testConfig(t, config.ProviderOpenFoodFacts)
		require.NoError(t, os.WriteFile(cfg.ParquetPath, []byte("parquet"), 0644))
		engine := query.NewMockEngine(config.NewTestLogger(io.Discard, "error"))
		engine.SetError(errors.New("bad parquet"))
		_, err := testInitializer(cfg, engine).Initialize(context.Background())
		assert.ErrorContains(t, err, "failed to test connection")
	})
}

func TestApp_Profile(t *testing.T) {
	cfg := testConfig(t, "none")
	cfg.HealthConditions = []string{"Nut Allergy"}
	cfg.DietaryGoal = "heartHealth"
	a, err := testInitializer(cfg, nil).Initialize(context.Background())
	require.NoError(t, err)

	tests := []struct {
		name       string
		conditions []string
		goal       string
		expected   types.HealthProfile
		expectErr  bool
	}{
		{
			name:     "defaults from config",
			expected: types.HealthProfile{Conditions: []types.ConditionID{types.ConditionNutAllergy}, Goal: types.GoalHeartHealth},
		},
		{
			name:       "explicit empty list overrides defaults",
			conditions: []string{},
			goal:       "weight-loss",
			expected:   types.HealthProfile{Conditions: []types.ConditionID{}, Goal: types.GoalWeightLoss},
		},
		{
			name:       "explicit conditions",
			conditions: []string{"diabetes", "celiac_disease"},
			expected: types.HealthProfile{
				Conditions: []types.ConditionID{types.ConditionDiabetes, types.ConditionCeliacDisease},
				Goal:       types.GoalHeartHealth,
			},
		},
		{name: "unknown condition", conditions: []string{"vampirism"}, expectErr: true},
		{name: "unknown goal", goal: "immortality", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			profile, err := a.Profile(tt.conditions, tt.goal)
			if tt.expectErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, profile)
		})
	}
}

func TestApp_CheckHealth(t *testing.T) {
	cfg := testConfig(t, config.ProviderOpenFoodFacts)
	require.NoError(t, os.WriteFile(cfg.ParquetPath, []byte("parquet"), 0644))
	engine := query.NewMockEngine(config.NewTestLogger(io.Discard, "error"))
	a, err := testInitializer(cfg, engine).Initialize(context.Background())
	require.NoError(t, err)

	t.Run("first call probes", func(t *testing.T) {
		assert.NoError(t, a.CheckHealth(context.Background()))
		assert.False(t, a.lastHealthCheck.IsZero())
	})

	t.Run("result is cached", func(t *testing.T) {
		first := a.lastHealthCheck
		engine.SetError(errors.New("database gone"))
		assert.NoError(t, a.CheckHealth(context.Background()))
		assert.Equal(t, first, a.lastHealthCheck)
	})

	t.Run("expired cache probes again", func(t *testing.T) {
		a.lastHealthCheck = a.lastHealthCheck.Add(-2 * HealthCacheDuration)
		assert.EqualError(t, a.CheckHealth(context.Background()), "database gone")
		engine.SetError(nil)
		assert.EqualError(t, a.CheckHealth(context.Background()), "database gone", "errors are cached too")
	})
}
