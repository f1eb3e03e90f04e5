package cmd

import (
	"context"
	"path/filepath"

	"github.com/noot-app/foodscan-mcp-server/internal/app"
	"github.com/noot-app/foodscan-mcp-server/internal/config"
	"github.com/noot-app/foodscan-mcp-server/internal/dataset"
	"github.com/noot-app/foodscan-mcp-server/internal/mcpgo"
	"github.com/noot-app/foodscan-mcp-server/internal/server"
	"github.com/spf13/cobra"
)

// loadConfig is swapped out in tests
var loadConfig = config.Load

// newRootCmd builds the command tree. A fresh tree per call keeps flag state
// from leaking between runs.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "foodscan-mcp-server",
		Short: "Food recognition to nutrition and health advice, over MCP, REST and CLI",
		Long: `Food Scan MCP Server turns an image (or a list of recognized labels) into
named foods with nutrition facts and health warnings for a user profile.

The server operates in three modes:

1. HTTP Mode (default): REST API under /v1 plus the MCP endpoint at /mcp
   - Requires Bearer token authentication (except /health)

2. STDIO Mode (--stdio): For local MCP clients
   - Uses stdio pipes for communication
   - No authentication required

3. Fetch Database Mode (--fetch-db): Download the Open Food Facts dataset and exit
   - Only needed for NUTRITION_PROVIDER=openfoodfacts

Available MCP Tools:
- analyze_food_labels: Analyze pre-computed recognition labels
- analyze_food_image: Classify a base64 image and analyze the result
- resolve_nutrition: Nutrition facts for one food name
- check_food_warnings: Health warnings for a food against a profile
- submit_feedback: Record whether a recognized label was correct

Authentication (HTTP Mode Only):
Use the AUTH_TOKEN environment variable to set the bearer token.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fetchDB, _ := cmd.Flags().GetBool("fetch-db"); fetchDB {
				return runFetchDBMode(cmd)
			}
			if stdio, _ := cmd.Flags().GetBool("stdio"); stdio {
				return runStdioMode(cmd)
			}
			return runHTTPMode(cmd)
		},
	}

	rootCmd.Flags().Bool("stdio", false, "Run in stdio mode for local MCP clients (default: HTTP mode)")
	rootCmd.Flags().Bool("fetch-db", false, "Fetch the Open Food Facts dataset and exit")

	rootCmd.AddCommand(newAnalyzeCmd(), newFeedbackCmd(), newVersionCmd())
	return rootCmd
}

// runFetchDBMode fetches the dataset and exits
func runFetchDBMode(cmd *cobra.Command) error {
	logger := config.NewLogger(config.LogModeCLI)
	cfg := loadConfig()

	logger.Info("🗄️  Starting database fetch",
		"mode", "fetch-db",
		"target_dir", filepath.Dir(cfg.ParquetPath))
	logger.Info("⚠️  Large dataset warning",
		"message", "The Open Food Facts dataset is approximately 4+ GB in size")

	if err := dataset.NewManager(cfg, logger).EnsureDataset(cmd.Context()); err != nil {
		logger.Error("Failed to fetch dataset", "error", err)
		return err
	}

	logger.Info("✅ Database fetch completed successfully",
		"parquet_path", cfg.ParquetPath,
		"metadata_path", cfg.MetadataPath)
	return nil
}

// runStdioMode serves MCP over stdio
func runStdioMode(cmd *cobra.Command) error {
	// stdout carries MCP framing, so logs go to stderr
	logger := config.NewLogger(config.LogModeStdio)
	cfg := loadConfig()

	logger.Info("🔌 Starting Food Scan MCP Server in STDIO mode",
		"mode", "stdio",
		"auth", "not required for stdio mode",
		"provider", cfg.NutritionProvider)

	a, err := app.NewInitializer(cfg, logger).Initialize(cmd.Context())
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		return err
	}
	defer a.Close()

	return mcpgo.NewServer(a, logger).ServeStdio()
}

// runHTTPMode serves REST and MCP over HTTP
func runHTTPMode(cmd *cobra.Command) error {
	logger := config.NewLogger(config.LogModeHTTP)
	cfg := loadConfig()

	logger.Info("🌐 Starting Food Scan MCP Server in HTTP mode",
		"mode", "http",
		"auth", "Bearer token required (except /health endpoint)",
		"provider", cfg.NutritionProvider,
		"port", cfg.Port)

	a, err := app.NewInitializer(cfg, logger).Initialize(cmd.Context())
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		return err
	}

	// Start closes the app on shutdown
	return server.New(a, logger).Start(cmd.Context())
}

// Execute runs the command tree with a background context
func Execute() error {
	return newRootCmd().ExecuteContext(context.Background())
}

// Run is the main entry point for the CLI application
func Run() error {
	return Execute()
}
