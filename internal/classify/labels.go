package classify

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/noot-app/foodscan-mcp-server/internal/types"
)

// Labels is a Source over candidates computed elsewhere, for callers that run
// their own classifier
type Labels []types.Candidate

func (l Labels) Kind() Kind { return KindProvided }

// Classify ignores the image and returns a copy of the candidates
func (l Labels) Classify(ctx context.Context, _ Image) ([]types.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]types.Candidate, len(l))
	copy(out, l)
	return out, nil
}

// ParseLabels parses "Apple=0.95,Rock=0.1". A label without a confidence
// defaults to 1.
func ParseLabels(s string) (Labels, error) {
	var out Labels
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		label, conf := part, 1.0
		if idx := strings.LastIndex(part, "="); idx >= 0 {
			label = strings.TrimSpace(part[:idx])
			v, err := strconv.ParseFloat(strings.TrimSpace(part[idx+1:]), 64)
			if err != nil {
				return nil, fmt.Errorf("invalid confidence in %q: %w", part, err)
			}
			conf = v
		}

		if label == "" {
			return nil, fmt.Errorf("missing label in %q", part)
		}
		if math.IsNaN(conf) || conf < 0 || conf > 1 {
			return nil, fmt.Errorf("confidence for %q must be between 0 and 1", label)
		}
		out = append(out, types.Candidate{Label: label, Confidence: conf})
	}
	return out, nil
}
