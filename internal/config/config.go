package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Provider names accepted by NUTRITION_PROVIDER
const (
	ProviderUSDA          = "usda"
	ProviderOpenFoodFacts = "openfoodfacts"
)

// Config holds all configuration for the food scan server
type Config struct {
	// Server
	Environment string
	AuthToken   string
	Port        string

	// Local state
	DataDir      string
	CachePath    string
	FeedbackPath string

	// Nutrition provider
	NutritionProvider string
	USDABaseURL       string
	USDAAPIKey        string
	RemoteTimeout     time.Duration

	// Open Food Facts dataset (only used by the openfoodfacts provider)
	ParquetURL           string
	ParquetPath          string
	MetadataPath         string
	LockFile             string
	RefreshIntervalHours int
	DisableRemoteCheck   bool
	IgnoreLock           bool

	// Classifiers
	ClassifierURL        string
	ClassifierAPIKey     string
	AWSRegion            string
	RekognitionMaxLabels int

	// Recognition pipeline
	MinConfidence     float64
	RelaxedConfidence float64
	HighConfidence    float64
	RequestTimeout    time.Duration
	ResolveWorkers    int

	// Default health profile
	HealthConditions []string
	DietaryGoal      string
}

// Load reads configuration from environment variables, after loading .env
// from the working directory when present
func Load() *Config {
	return LoadWithEnvFile(".env")
}

// LoadWithEnvFile loads envFile (if it exists) and then reads configuration
// from the environment. Variables already set in the environment take
// precedence over the file. An empty envFile skips file loading.
func LoadWithEnvFile(envFile string) *Config {
	if envFile != "" {
		if _, err := os.Stat(envFile); err == nil {
			_ = godotenv.Load(envFile)
		}
	}

	dataDir := getEnv("DATA_DIR", "./data")

	return &Config{
		Environment: getEnv("ENV", "production"),
		AuthToken:   getEnv("AUTH_TOKEN", "super-secret-token"),
		Port:        getEnv("PORT", "8080"),

		DataDir:      dataDir,
		CachePath:    getEnv("NUTRITION_CACHE_PATH", filepath.Join(dataDir, "nutrition_cache.json")),
		FeedbackPath: getEnv("FEEDBACK_PATH", filepath.Join(dataDir, "recognition_feedback.json")),

		NutritionProvider: strings.ToLower(getEnv("NUTRITION_PROVIDER", ProviderUSDA)),
		USDABaseURL:       getEnv("USDA_BASE_URL", "https://api.nal.usda.gov/fdc/v1"),
		USDAAPIKey:        getEnv("USDA_API_KEY", "DEMO_KEY"),
		RemoteTimeout:     time.Duration(getEnvInt("REMOTE_TIMEOUT_SECONDS", 10)) * time.Second,

		ParquetURL:           getEnv("PARQUET_URL", "https://huggingface.co/datasets/openfoodfacts/product-database/resolve/main/food.parquet"),
		ParquetPath:          getEnv("PARQUET_PATH", filepath.Join(dataDir, "product-database.parquet")),
		MetadataPath:         getEnv("METADATA_PATH", filepath.Join(dataDir, "metadata.json")),
		LockFile:             getEnv("LOCK_FILE", filepath.Join(dataDir, "refresh.lock")),
		RefreshIntervalHours: getEnvInt("REFRESH_INTERVAL_HOURS", 24),
		DisableRemoteCheck:   getEnvBool("DISABLE_REMOTE_CHECK", false),
		IgnoreLock:           getEnvBool("IGNORE_LOCK", false),

		ClassifierURL:        getEnv("CLASSIFIER_URL", ""),
		ClassifierAPIKey:     getEnv("CLASSIFIER_API_KEY", ""),
		AWSRegion:            getEnv("AWS_REGION", ""),
		RekognitionMaxLabels: getEnvInt("REKOGNITION_MAX_LABELS", 10),

		MinConfidence:     getEnvFloat("MIN_CONFIDENCE", 0.3),
		RelaxedConfidence: getEnvFloat("RELAXED_CONFIDENCE", 0.2),
		HighConfidence:    getEnvFloat("HIGH_CONFIDENCE", 0.7),
		RequestTimeout:    time.Duration(getEnvInt("REQUEST_TIMEOUT_SECONDS", 15)) * time.Second,
		ResolveWorkers:    getEnvInt("RESOLVE_WORKERS", 0),

		HealthConditions: splitList(os.Getenv("HEALTH_CONDITIONS")),
		DietaryGoal:      getEnv("DIETARY_GOAL", ""),
	}
}

// IsDevelopment reports whether detailed errors may be returned to clients
func (c *Config) IsDevelopment() bool {
	switch strings.ToLower(c.Environment) {
	case "development", "dev", "local":
		return true
	}
	return false
}

// RefreshInterval returns the dataset refresh interval as a duration
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshIntervalHours) * time.Hour
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
