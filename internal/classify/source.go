// Package classify turns images into food label candidates. Each strategy
// implements Source and is chosen once at startup by Select.
package classify

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/noot-app/foodscan-mcp-server/internal/types"
)

// Kind names a classification strategy
type Kind string

const (
	KindCustomModel       Kind = "custom_model"
	KindDefaultClassifier Kind = "default_classifier"
	KindObjectDetector    Kind = "object_detector"
	KindProvided          Kind = "provided"
)

var (
	// ErrNoClassifier means no image classifier is configured
	ErrNoClassifier = errors.New("no image classifier configured")
	// ErrInvalidImage means the image payload could not be decoded
	ErrInvalidImage = errors.New("invalid image")
)

// Image is a raw encoded image (JPEG, PNG, ...)
type Image struct {
	Data        []byte
	ContentType string
}

// Source produces candidates for an image. Implementations return an empty
// slice, not an error, when nothing is detected.
type Source interface {
	Kind() Kind
	Classify(ctx context.Context, img Image) ([]types.Candidate, error)
}

// NewImage wraps raw bytes, sniffing the content type
func NewImage(data []byte) (Image, error) {
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: empty payload", ErrInvalidImage)
	}
	return Image{Data: data, ContentType: http.DetectContentType(data)}, nil
}

// DecodeImage accepts plain base64 or a data URI
// ("data:image/jpeg;base64,...")
func DecodeImage(encoded string) (Image, error) {
	payload := strings.TrimSpace(encoded)
	if strings.HasPrefix(payload, "data:") {
		idx := strings.Index(payload, ";base64,")
		if idx < 0 {
			return Image{}, fmt.Errorf("%w: data URI is not base64 encoded", ErrInvalidImage)
		}
		payload = payload[idx+len(";base64,"):]
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return Image{}, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return NewImage(data)
}

// Base64 returns the standard base64 encoding of the image bytes
func (img Image) Base64() string {
	return base64.StdEncoding.EncodeToString(img.Data)
}
