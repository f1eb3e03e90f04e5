package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/noot-app/foodscan-mcp-server/internal/types"
)

// HTTPModel calls a hosted food recognition model that speaks the
// Clarifai "outputs" protocol
type HTTPModel struct {
	url    string
	apiKey string
	client *http.Client
	log    *slog.Logger
}

type modelRequest struct {
	Inputs []modelInput `json:"inputs"`
}

type modelInput struct {
	Data struct {
		Image struct {
			Base64 string `json:"base64"`
		} `json:"image"`
	} `json:"data"`
}

type modelResponse struct {
	Status struct {
		Code        int    `json:"code"`
		Description string `json:"description"`
	} `json:"status"`
	Outputs []struct {
		Data struct {
			Concepts []struct {
				Name  string  `json:"name"`
				Value float64 `json:"value"`
			} `json:"concepts"`
		} `json:"data"`
	} `json:"outputs"`
}

// NewHTTPModel creates a client for the model at url
func NewHTTPModel(url, apiKey string, timeout time.Duration, logger *slog.Logger) *HTTPModel {
	return &HTTPModel{
		url:    url,
		apiKey: apiKey,
		client: &http.Client{Timeout: timeout},
		log:    logger,
	}
}

func (m *HTTPModel) Kind() Kind { return KindCustomModel }

// Classify posts the base64 image and returns the model's concepts in the
// order the model ranked them
func (m *HTTPModel) Classify(ctx context.Context, img Image) ([]types.Candidate, error) {
	start := time.Now()

	var in modelInput
	in.Data.Image.Base64 = img.Base64()
	body, err := json.Marshal(modelRequest{Inputs: []modelInput{in}})
	if err != nil {
		return nil, fmt.Errorf("failed to encode model request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create model request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.apiKey != "" {
		req.Header.Set("Authorization", "Key "+m.apiKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("model request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("model returned status %d", resp.StatusCode)
	}

	var decoded modelResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to parse model response: %w", err)
	}

	candidates := make([]types.Candidate, 0)
	if len(decoded.Outputs) > 0 {
		for _, c := range decoded.Outputs[0].Data.Concepts {
			if c.Name == "" {
				continue
			}
			candidates = append(candidates, types.Candidate{Label: c.Name, Confidence: clamp(c.Value)})
		}
	}

	m.log.Debug("Custom model classified image",
		"candidates", len(candidates),
		"duration", time.Since(start))
	return candidates, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
