package mcpgo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/noot-app/foodscan-mcp-server/internal/classify"
	"github.com/noot-app/foodscan-mcp-server/internal/feedback"
	"github.com/noot-app/foodscan-mcp-server/internal/recognition"
	"github.com/noot-app/foodscan-mcp-server/internal/types"
)

// WarningsResponse represents the response from check_food_warnings
type WarningsResponse struct {
	FoodName             string          `json:"food_name"`
	Warnings             []types.Warning `json:"warnings"`
	IsRecommended        bool            `json:"is_recommended"`
	RecommendationReason *string         `json:"recommendation_reason,omitempty"`
}

type analyzeLabelsArgs struct {
	Candidates []types.Candidate `json:"candidates"`
	Labels     string            `json:"labels"`
}

// withProfile appends the optional health profile arguments
func withProfile(opts ...mcp.ToolOption) []mcp.ToolOption {
	return append(opts, profileOptions...)
}

var profileOptions = []mcp.ToolOption{
	mcp.WithArray("conditions",
		mcp.Description("Health conditions to check against, e.g. [\"nutAllergy\", \"Diabetes\"]. Defaults to the server's configured profile."),
		mcp.WithStringItems(),
	),
	mcp.WithString("goal",
		mcp.Description("Dietary goal such as weightLoss or heartHealth. Defaults to the server's configured goal."),
	),
}

func (s *Server) addTools() {
	labelsTool := mcp.NewTool("analyze_food_labels", withProfile(
		mcp.WithDescription("Run recognition on classifier labels you already have: weak labels are filtered out, each food gets nutrition and health warnings, and results come back sorted by confidence. Pass either candidates or labels."),
		mcp.WithArray("candidates",
			mcp.Description("Classifier output as objects with label and confidence (0-1)"),
			mcp.Items(map[string]any{
				"type": "object",
				"properties": map[string]any{
					"label":      map[string]any{"type": "string"},
					"confidence": map[string]any{"type": "number", "minimum": 0, "maximum": 1},
				},
				"required": []string{"label", "confidence"},
			}),
		),
		mcp.WithString("labels",
			mcp.Description("Shorthand list like \"Apple=0.95,Banana=0.6\". A label without a confidence counts as 1."),
		),
		mcp.WithOutputSchema[recognition.Analysis](),
		mcp.WithIdempotentHintAnnotation(true),
	)...)
	s.mcpServer.AddTool(labelsTool, s.handleAnalyzeLabels)

	imageTool := mcp.NewTool("analyze_food_image", withProfile(
		mcp.WithDescription("Recognize the foods in a photo and return nutrition and health warnings for each. Requires an image classifier to be configured on the server."),
		mcp.WithString("image_base64",
			mcp.Required(),
			mcp.MinLength(1),
			mcp.Description("JPEG or PNG image, base64 encoded. A data: URI is accepted."),
		),
		mcp.WithOutputSchema[recognition.Analysis](),
	)...)
	s.mcpServer.AddTool(imageTool, s.handleAnalyzeImage)

	nutritionTool := mcp.NewTool("resolve_nutrition",
		mcp.WithDescription("Look up nutrition for a food name. Always returns a record; source tells whether it came from the cache, the remote provider, the built-in table, or is a placeholder."),
		mcp.WithString("food_name",
			mcp.Required(),
			mcp.MinLength(1),
			mcp.Description("Food name, e.g. \"banana\""),
		),
		mcp.WithOutputSchema[types.NutritionRecord](),
		mcp.WithIdempotentHintAnnotation(true),
	)
	s.mcpServer.AddTool(nutritionTool, s.handleResolveNutrition)

	warningsTool := mcp.NewTool("check_food_warnings", withProfile(
		mcp.WithDescription("Check a food against health conditions and a dietary goal without running recognition"),
		mcp.WithString("food_name",
			mcp.Required(),
			mcp.MinLength(1),
			mcp.Description("Food name to check"),
		),
		mcp.WithArray("ingredients",
			mcp.Description("Known ingredients of the food"),
			mcp.WithStringItems(),
		),
		mcp.WithOutputSchema[WarningsResponse](),
		mcp.WithIdempotentHintAnnotation(true),
	)...)
	s.mcpServer.AddTool(warningsTool, s.handleCheckWarnings)

	feedbackTool := mcp.NewTool("submit_feedback",
		mcp.WithDescription("Record whether a recognition result was right. Repeated corrections of the same label change how future results are named."),
		mcp.WithString("label",
			mcp.Required(),
			mcp.MinLength(1),
			mcp.Description("The label that was shown (original_label of the result)"),
		),
		mcp.WithString("verdict",
			mcp.Required(),
			mcp.Enum(string(types.VerdictCorrect), string(types.VerdictIncorrect), string(types.VerdictPartiallyCorrect)),
		),
		mcp.WithString("corrected_label",
			mcp.Description("What the food actually was"),
		),
		mcp.WithNumber("confidence",
			mcp.Description("Confidence the result was shown with"),
			mcp.DefaultNumber(0),
			mcp.Min(0),
			mcp.Max(1),
		),
		mcp.WithString("notes"),
		mcp.WithOutputSchema[types.FeedbackEntry](),
	)
	s.mcpServer.AddTool(feedbackTool, s.handleSubmitFeedback)
}

func (s *Server) handleAnalyzeLabels(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	s.log.Debug("handleAnalyzeLabels: Starting tool call", "arguments", request.GetArguments())

	var args analyzeLabelsArgs
	if err := request.BindArguments(&args); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Invalid arguments: %v", err)), nil
	}

	candidates := args.Candidates
	if args.Labels != "" {
		parsed, err := classify.ParseLabels(args.Labels)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("Invalid labels: %v", err)), nil
		}
		candidates = append(candidates, parsed...)
	}
	if len(candidates) == 0 {
		return mcp.NewToolResultError("Provide at least one candidate or label"), nil
	}

	profile, err := s.profile(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	analysis, err := s.app.Orchestrator.AnalyzeCandidates(ctx, candidates, profile)
	if err != nil {
		s.log.Error("Label analysis failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Analysis failed: %v", err)), nil
	}
	return structured(s, "handleAnalyzeLabels", analysis)
}

func (s *Server) handleAnalyzeImage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	encoded, err := request.RequireString("image_base64")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'image_base64': %v", err)), nil
	}
	s.log.Debug("handleAnalyzeImage: Starting tool call", "encoded_size", len(encoded))

	img, err := classify.DecodeImage(encoded)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	profile, err := s.profile(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	analysis, err := s.app.Orchestrator.Analyze(ctx, img, profile)
	if errors.Is(err, classify.ErrNoClassifier) {
		return mcp.NewToolResultError("No image classifier is configured on this server; use analyze_food_labels instead"), nil
	}
	if err != nil {
		s.log.Error("Image analysis failed", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Analysis failed: %v", err)), nil
	}
	return structured(s, "handleAnalyzeImage", analysis)
}

func (s *Server) handleResolveNutrition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("food_name")
	if err != nil || strings.TrimSpace(name) == "" {
		return mcp.NewToolResultError("Parameter 'food_name' must be a non-empty string"), nil
	}

	rec := s.app.Resolver.Resolve(ctx, name)
	return structured(s, "handleResolveNutrition", rec)
}

func (s *Server) handleCheckWarnings(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := request.RequireString("food_name")
	if err != nil || strings.TrimSpace(name) == "" {
		return mcp.NewToolResultError("Parameter 'food_name' must be a non-empty string"), nil
	}

	profile, err := s.profile(request)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	response := WarningsResponse{
		FoodName: name,
		Warnings: s.app.Advisor.Evaluate(name, request.GetStringSlice("ingredients", nil), profile.Conditions),
	}
	response.IsRecommended, response.RecommendationReason = s.app.Advisor.Recommend(name, profile)
	return structured(s, "handleCheckWarnings", response)
}

func (s *Server) handleSubmitFeedback(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	label, err := request.RequireString("label")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'label': %v", err)), nil
	}
	verdict, err := request.RequireString("verdict")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Missing required parameter 'verdict': %v", err)), nil
	}

	sub := feedback.Submission{
		Label:      label,
		Verdict:    types.Verdict(verdict),
		Confidence: request.GetFloat("confidence", 0),
	}
	if v := request.GetString("corrected_label", ""); v != "" {
		sub.CorrectedLabel = &v
	}
	if v := request.GetString("notes", ""); v != "" {
		sub.Notes = &v
	}

	entry, err := s.app.Feedback.Submit(ctx, sub)
	if err != nil {
		s.log.Warn("Feedback rejected", "error", err)
		return mcp.NewToolResultError(err.Error()), nil
	}
	return structured(s, "handleSubmitFeedback", entry)
}

// profile reads the optional conditions and goal arguments
func (s *Server) profile(request mcp.CallToolRequest) (types.HealthProfile, error) {
	return s.app.Profile(request.GetStringSlice("conditions", nil), request.GetString("goal", ""))
}

// structured returns both structured content and a JSON text fallback for
// clients that ignore structuredContent
func structured(s *Server, handler string, response any) (*mcp.CallToolResult, error) {
	responseJSON, err := json.MarshalIndent(response, "", "  ")
	if err != nil {
		s.log.Error(handler+": Failed to marshal response", "error", err)
		return mcp.NewToolResultError(fmt.Sprintf("Failed to marshal response: %v", err)), nil
	}

	s.log.Debug(handler+": Returning structured result", "response_size", len(responseJSON))
	return mcp.NewToolResultStructured(response, string(responseJSON)), nil
}
