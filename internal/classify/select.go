package classify

import (
	"context"
	"log/slog"

	"github.com/noot-app/foodscan-mcp-server/internal/config"
)

// Selection holds the sources picked at startup. Primary is nil when no
// image classifier is available; Enhanced is nil when no alternate strategy
// exists.
type Selection struct {
	Primary  Source
	Enhanced Source
}

// Select picks classification sources from configuration: a custom model
// takes precedence over the Rekognition classifier, and the Rekognition
// object detector serves as the enhanced pass whenever AWS is configured.
func Select(ctx context.Context, cfg *config.Config, logger *slog.Logger) Selection {
	var sel Selection

	if cfg.ClassifierURL != "" {
		sel.Primary = NewHTTPModel(cfg.ClassifierURL, cfg.ClassifierAPIKey, cfg.RequestTimeout, logger)
	}

	if cfg.AWSRegion != "" {
		client, err := NewRekognitionClient(ctx, cfg.AWSRegion)
		if err != nil {
			logger.Warn("Rekognition unavailable", "region", cfg.AWSRegion, "error", err)
		} else {
			if sel.Primary == nil {
				sel.Primary = NewRekognition(client, KindDefaultClassifier, cfg.RekognitionMaxLabels, cfg.RelaxedConfidence, logger)
			}
			sel.Enhanced = NewRekognition(client, KindObjectDetector, cfg.RekognitionMaxLabels, cfg.RelaxedConfidence, logger)
		}
	}

	attrs := []any{"primary", kindOf(sel.Primary), "enhanced", kindOf(sel.Enhanced)}
	if sel.Primary == nil {
		logger.Info("No image classifier configured, only label analysis is available", attrs...)
	} else {
		logger.Info("Image classifiers selected", attrs...)
	}
	return sel
}

func kindOf(s Source) Kind {
	if s == nil {
		return ""
	}
	return s.Kind()
}
