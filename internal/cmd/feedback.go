package cmd

import (
	"github.com/noot-app/foodscan-mcp-server/internal/config"
	"github.com/noot-app/foodscan-mcp-server/internal/feedback"
	"github.com/noot-app/foodscan-mcp-server/internal/types"
	"github.com/spf13/cobra"
)

func newFeedbackCmd() *cobra.Command {
	var (
		sub       feedback.Submission
		verdict   string
		corrected string
		notes     string
		list      bool
	)

	cmd := &cobra.Command{
		Use:   "feedback",
		Short: "Record whether a recognized label was correct, or list recorded feedback",
		Example: `  foodscan-mcp-server feedback --label Hotdog --verdict incorrect --corrected "Corn Dog" --confidence 0.8
  foodscan-mcp-server feedback --list`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := config.NewLogger(config.LogModeCLI)
			cfg := loadConfig()

			store := feedback.NewStore(cfg.FeedbackPath, logger)
			if err := store.Load(); err != nil {
				logger.Warn("Continuing with an empty feedback log", "error", err)
			}

			if list {
				return printJSON(cmd.OutOrStdout(), store.Entries())
			}

			sub.Verdict = types.Verdict(verdict)
			if cmd.Flags().Changed("corrected") {
				sub.CorrectedLabel = &corrected
			}
			if cmd.Flags().Changed("notes") {
				sub.Notes = &notes
			}

			entry, err := store.Submit(cmd.Context(), sub)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), entry)
		},
	}

	cmd.Flags().StringVar(&sub.Label, "label", "", "The label that was shown")
	cmd.Flags().StringVar(&verdict, "verdict", "", "correct, incorrect or partially_correct")
	cmd.Flags().StringVar(&corrected, "corrected", "", "The label it should have been")
	cmd.Flags().Float64Var(&sub.Confidence, "confidence", 0, "Confidence of the original recognition (0-1)")
	cmd.Flags().StringVar(&notes, "notes", "", "Free text notes")
	cmd.Flags().BoolVar(&list, "list", false, "Print the recorded feedback instead of adding to it")
	return cmd
}
