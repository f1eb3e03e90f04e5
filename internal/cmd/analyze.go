package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/noot-app/foodscan-mcp-server/internal/app"
	"github.com/noot-app/foodscan-mcp-server/internal/classify"
	"github.com/noot-app/foodscan-mcp-server/internal/config"
	"github.com/noot-app/foodscan-mcp-server/internal/recognition"
	"github.com/spf13/cobra"
)

type analyzeOptions struct {
	labels     string
	imagePath  string
	conditions []string
	goal       string
}

func newAnalyzeCmd() *cobra.Command {
	var opts analyzeOptions

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze recognition labels or an image file and print the result as JSON",
		Example: `  foodscan-mcp-server analyze --labels "Apple=0.95,Rock=0.1"
  foodscan-mcp-server analyze --image lunch.jpg --conditions diabetes,nutAllergy --goal weightLoss`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (opts.labels == "") == (opts.imagePath == "") {
				return errors.New("exactly one of --labels or --image is required")
			}
			// an unset flag falls back to the configured default profile
			if !cmd.Flags().Changed("conditions") {
				opts.conditions = nil
			}
			return runAnalyze(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.labels, "labels", "", `Comma separated labels with optional confidences, e.g. "Apple=0.95,Rock=0.1"`)
	cmd.Flags().StringVar(&opts.imagePath, "image", "", "Path to an image file to classify")
	cmd.Flags().StringSliceVar(&opts.conditions, "conditions", nil, "Health conditions (IDs or display names)")
	cmd.Flags().StringVar(&opts.goal, "goal", "", "Dietary goal")
	return cmd
}

func runAnalyze(cmd *cobra.Command, opts analyzeOptions) error {
	logger := config.NewLogger(config.LogModeCLI)
	cfg := loadConfig()
	ctx := cmd.Context()

	a, err := app.NewInitializer(cfg, logger).Initialize(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize: %w", err)
	}
	defer a.Close()

	profile, err := a.Profile(opts.conditions, opts.goal)
	if err != nil {
		return err
	}

	var analysis *recognition.Analysis
	if opts.labels != "" {
		candidates, err := classify.ParseLabels(opts.labels)
		if err != nil {
			return err
		}
		analysis, err = a.Orchestrator.AnalyzeCandidates(ctx, candidates, profile)
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}
	} else {
		data, err := os.ReadFile(opts.imagePath)
		if err != nil {
			return fmt.Errorf("failed to read image: %w", err)
		}
		img, err := classify.NewImage(data)
		if err != nil {
			return err
		}
		analysis, err = a.Orchestrator.Analyze(ctx, img, profile)
		if err != nil {
			return fmt.Errorf("analysis failed: %w", err)
		}
	}

	return printJSON(cmd.OutOrStdout(), analysis)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
