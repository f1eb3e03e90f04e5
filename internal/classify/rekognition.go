package classify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/rekognition"
	rektypes "github.com/aws/aws-sdk-go-v2/service/rekognition/types"

	"github.com/noot-app/foodscan-mcp-server/internal/types"
)

// DetectLabelsAPI is the part of the Rekognition client we use
type DetectLabelsAPI interface {
	DetectLabels(ctx context.Context, params *rekognition.DetectLabelsInput, optFns ...func(*rekognition.Options)) (*rekognition.DetectLabelsOutput, error)
}

// foodCategory is the Rekognition label category holding foods and drinks
const foodCategory = "Food and Beverage"

var (
	// foodParents are taxonomy parents that mark a label as something edible
	foodParents = map[string]bool{
		"food": true, "fruit": true, "vegetable": true, "produce": true, "meal": true,
		"dessert": true, "beverage": true, "drink": true, "seafood": true, "bread": true,
		"meat": true, "dish": true, "snack": true, "confectionery": true, "sweets": true,
	}

	// genericLabels name a kind of food or a scene rather than a food
	genericLabels = map[string]bool{
		"food": true, "fruit": true, "vegetable": true, "produce": true, "meal": true,
		"dish": true, "plant": true, "beverage": true, "drink": true, "dessert": true,
		"snack": true, "lunch": true, "dinner": true, "breakfast": true, "brunch": true,
		"supper": true, "cuisine": true, "platter": true, "plate": true, "bowl": true,
		"tableware": true, "cutlery": true, "dining table": true, "table": true,
		"person": true, "human": true, "hand": true, "indoors": true, "kitchen": true,
		"restaurant": true, "citrus fruit": true, "sweets": true, "confectionery": true,
	}
)

// isFoodLabel keeps labels Rekognition places under food. Generic names are
// always dropped; labels that come without taxonomy are kept otherwise.
func isFoodLabel(label rektypes.Label) bool {
	if genericLabels[strings.ToLower(aws.ToString(label.Name))] {
		return false
	}
	if len(label.Categories) == 0 && len(label.Parents) == 0 {
		return true
	}
	for _, c := range label.Categories {
		if aws.ToString(c.Name) == foodCategory {
			return true
		}
	}
	for _, p := range label.Parents {
		if foodParents[strings.ToLower(aws.ToString(p.Name))] {
			return true
		}
	}
	return false
}

// Rekognition classifies images with AWS Rekognition DetectLabels. In
// classifier mode every food label becomes a candidate; in detector mode every
// detected instance of a food label does. Scene and generic labels such as
// "Plant" or "Produce" are dropped.
type Rekognition struct {
	client        DetectLabelsAPI
	kind          Kind
	maxLabels     int32
	minConfidence float32
	log           *slog.Logger
}

// NewRekognition wraps an existing client. kind must be KindDefaultClassifier
// or KindObjectDetector. minConfidence is on the 0-1 scale.
func NewRekognition(client DetectLabelsAPI, kind Kind, maxLabels int, minConfidence float64, logger *slog.Logger) *Rekognition {
	if maxLabels <= 0 {
		maxLabels = 10
	}
	return &Rekognition{
		client:        client,
		kind:          kind,
		maxLabels:     int32(maxLabels),
		minConfidence: float32(minConfidence * 100),
		log:           logger,
	}
}

// NewRekognitionClient loads the default AWS credential chain for region
func NewRekognitionClient(ctx context.Context, region string) (*rekognition.Client, error) {
	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("unable to load AWS config: %w", err)
	}
	return rekognition.NewFromConfig(cfg), nil
}

func (r *Rekognition) Kind() Kind { return r.kind }

func (r *Rekognition) Classify(ctx context.Context, img Image) ([]types.Candidate, error) {
	start := time.Now()

	out, err := r.client.DetectLabels(ctx, &rekognition.DetectLabelsInput{
		Image:         &rektypes.Image{Bytes: img.Data},
		MaxLabels:     aws.Int32(r.maxLabels),
		MinConfidence: aws.Float32(r.minConfidence),
		Features:      []rektypes.DetectLabelsFeatureName{rektypes.DetectLabelsFeatureNameGeneralLabels},
		Settings: &rektypes.DetectLabelsSettings{
			GeneralLabels: &rektypes.GeneralLabelsSettings{
				LabelCategoryInclusionFilters: []string{foodCategory},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("rekognition detect labels failed: %w", err)
	}

	candidates := make([]types.Candidate, 0, len(out.Labels))
	for _, label := range out.Labels {
		name := aws.ToString(label.Name)
		if name == "" || !isFoodLabel(label) {
			continue
		}

		if r.kind == KindObjectDetector {
			for _, inst := range label.Instances {
				candidates = append(candidates, types.Candidate{
					Label:      name,
					Confidence: percent(inst.Confidence, label.Confidence),
				})
			}
			continue
		}

		candidates = append(candidates, types.Candidate{
			Label:      name,
			Confidence: percent(label.Confidence, nil),
		})
	}

	r.log.Debug("Rekognition classified image",
		"mode", r.kind,
		"labels", len(out.Labels),
		"candidates", len(candidates),
		"duration", time.Since(start))
	return candidates, nil
}

// percent converts a 0-100 confidence to 0-1, falling back to alt when v is
// missing
func percent(v, alt *float32) float64 {
	if v == nil {
		v = alt
	}
	if v == nil {
		return 0
	}
	return clamp(float64(aws.ToFloat32(v)) / 100)
}
