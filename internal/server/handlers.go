package server

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/noot-app/foodscan-mcp-server/internal/classify"
	"github.com/noot-app/foodscan-mcp-server/internal/feedback"
	"github.com/noot-app/foodscan-mcp-server/internal/recognition"
	"github.com/noot-app/foodscan-mcp-server/internal/types"
)

// AnalyzeRequest is the JSON form of POST /v1/analyze. Raw image bodies take
// the profile from the conditions and goal query parameters instead.
type AnalyzeRequest struct {
	ImageBase64 string   `json:"image_base64"`
	Conditions  []string `json:"conditions"`
	Goal        string   `json:"goal"`
}

// AnalyzeLabelsRequest is the body of POST /v1/analyze/labels
type AnalyzeLabelsRequest struct {
	Candidates []types.Candidate `json:"candidates"`
	Labels     string            `json:"labels"`
	Conditions []string          `json:"conditions"`
	Goal       string            `json:"goal"`
}

// FeedbackRequest is the body of POST /v1/feedback
type FeedbackRequest struct {
	Label          string        `json:"label"`
	Verdict        types.Verdict `json:"verdict"`
	CorrectedLabel *string       `json:"corrected_label,omitempty"`
	Confidence     float64       `json:"confidence"`
	Notes          *string       `json:"notes,omitempty"`
}

// FeedbackListResponse is the body of GET /v1/feedback
type FeedbackListResponse struct {
	Count   int                   `json:"count"`
	Entries []types.FeedbackEntry `json:"entries"`
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var (
		img        classify.Image
		conditions []string
		goal       string
		err        error
	)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "application/json" {
		var req AnalyzeRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.sendErrorResponse(w, err, "bad request", http.StatusBadRequest)
			return
		}
		img, err = classify.DecodeImage(req.ImageBase64)
		conditions, goal = req.Conditions, req.Goal
	} else {
		var data []byte
		data, err = io.ReadAll(http.MaxBytesReader(w, r.Body, MaxImageBytes))
		if err != nil {
			s.sendErrorResponse(w, err, "image too large or unreadable", http.StatusRequestEntityTooLarge)
			return
		}
		img, err = classify.NewImage(data)
		conditions, goal = queryList(r, "conditions"), r.URL.Query().Get("goal")
	}
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	profile, err := s.app.Profile(conditions, goal)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	analysis, err := s.app.Orchestrator.Analyze(r.Context(), img, profile)
	s.writeAnalysis(w, analysis, err)
}

func (s *Server) handleAnalyzeLabels(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeLabelsRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendErrorResponse(w, err, "bad request", http.StatusBadRequest)
		return
	}

	candidates := req.Candidates
	if req.Labels != "" {
		parsed, err := classify.ParseLabels(req.Labels)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		candidates = append(candidates, parsed...)
	}
	if len(candidates) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "candidates or labels required"})
		return
	}

	profile, err := s.app.Profile(req.Conditions, req.Goal)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	analysis, err := s.app.Orchestrator.AnalyzeCandidates(r.Context(), candidates, profile)
	s.writeAnalysis(w, analysis, err)
}

// writeAnalysis maps pipeline errors to status codes. An analysis that found
// no food is still a 200 with state "failed".
func (s *Server) writeAnalysis(w http.ResponseWriter, analysis *recognition.Analysis, err error) {
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, analysis)
	case errors.Is(err, classify.ErrNoClassifier):
		s.sendErrorResponse(w, err, "no image classifier configured", http.StatusNotImplemented)
	case errors.Is(err, classify.ErrInvalidImage):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		s.log.Error("Analysis failed", "error", err)
		s.sendErrorResponse(w, err, "analysis failed", http.StatusBadGateway)
	}
}

func (s *Server) handleGetNutrition(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "food name required"})
		return
	}

	start := time.Now()
	rec := s.app.Resolver.Resolve(r.Context(), name)
	s.log.Debug("Nutrition resolved", "food", name, "source", rec.Source, "duration", time.Since(start))
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handlePutNutrition(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(chi.URLParam(r, "name"))
	if name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "food name required"})
		return
	}

	var rec types.NutritionRecord
	if err := decodeJSON(w, r, &rec); err != nil {
		s.sendErrorResponse(w, err, "bad request", http.StatusBadRequest)
		return
	}

	stored, err := s.app.Resolver.Override(name, rec)
	if err != nil {
		// the override is kept in memory even when the cache file cannot be written
		s.log.Warn("Nutrition override not persisted", "food", name, "error", err)
	}
	writeJSON(w, http.StatusOK, stored)
}

func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request) {
	var req FeedbackRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.sendErrorResponse(w, err, "bad request", http.StatusBadRequest)
		return
	}

	entry, err := s.app.Feedback.Submit(r.Context(), feedback.Submission{
		Label:          req.Label,
		Verdict:        req.Verdict,
		CorrectedLabel: req.CorrectedLabel,
		Confidence:     req.Confidence,
		Notes:          req.Notes,
	})
	if errors.Is(err, feedback.ErrInvalidSubmission) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		s.sendErrorResponse(w, err, "feedback not recorded", http.StatusInternalServerError)
		return
	}

	s.log.Info("Feedback recorded", "label", entry.OriginalLabel, "verdict", entry.Verdict)
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	entries := s.app.Feedback.Entries()
	writeJSON(w, http.StatusOK, FeedbackListResponse{Count: len(entries), Entries: entries})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxJSONBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// queryList reads a comma separated query parameter. A parameter that is
// present but empty yields an empty, non-nil list.
func queryList(r *http.Request, key string) []string {
	values, ok := r.URL.Query()[key]
	if !ok {
		return nil
	}
	out := []string{}
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
