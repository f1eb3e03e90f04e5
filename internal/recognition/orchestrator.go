// Package recognition turns classifier output into enriched, ordered food
// results: candidates are filtered, resolved to nutrition and health advice in
// parallel, corrected from user feedback and sorted by confidence.
package recognition

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/noot-app/foodscan-mcp-server/internal/classify"
	"github.com/noot-app/foodscan-mcp-server/internal/nutrition"
	"github.com/noot-app/foodscan-mcp-server/internal/types"
)

// ErrNoCandidates is recorded on an analysis that found no food after both
// filtering passes
var ErrNoCandidates = errors.New("no food detected")

// State is a step of a recognition request
type State string

const (
	StateIdle      State = "idle"
	StateFiltering State = "filtering"
	StateResolving State = "resolving"
	StateJoining   State = "joining"
	StateCorrected State = "corrected"
	StateDone      State = "done"
	StateFailed    State = "failed"
)

// Pass names one classification run
type Pass string

const (
	PassStandard Pass = "standard"
	PassRelaxed  Pass = "relaxed"
	PassEnhanced Pass = "enhanced"
)

// Analysis is the outcome of one recognition request
type Analysis struct {
	RequestID  string                 `json:"request_id"`
	State      State                  `json:"state"`
	Foods      []types.RecognizedFood `json:"foods"`
	Passes     []Pass                 `json:"passes"`
	Source     classify.Kind          `json:"source,omitempty"`
	Reason     string                 `json:"reason,omitempty"`
	DurationMS int64                  `json:"duration_ms"`
}

// Failed reports whether no food was detected
func (a *Analysis) Failed() bool {
	return a.State == StateFailed
}

// Resolver resolves a food name to nutrition. Resolve must always return a
// record.
type Resolver interface {
	Resolve(ctx context.Context, foodName string) types.NutritionRecord
	Placeholder(foodName string) types.NutritionRecord
}

// Advisor evaluates a food against a health profile
type Advisor interface {
	Evaluate(foodName string, ingredients []string, conditions []types.ConditionID) []types.Warning
	Recommend(foodName string, profile types.HealthProfile) (bool, *string)
}

// Corrections supplies learned label renames keyed by normalized label
type Corrections interface {
	Corrections() map[string]string
}

// Options tunes the pipeline
type Options struct {
	MinConfidence     float64
	RelaxedConfidence float64
	HighConfidence    float64
	Timeout           time.Duration
	Workers           int
}

// DefaultOptions returns the standard thresholds: 0.3 to keep a candidate,
// 0.2 on the relaxed pass, 0.7 to skip the enhanced pass, 15s per request
func DefaultOptions() Options {
	return Options{
		MinConfidence:     0.3,
		RelaxedConfidence: 0.2,
		HighConfidence:    0.7,
		Timeout:           15 * time.Second,
		Workers:           runtime.NumCPU(),
	}
}

// Orchestrator coordinates one recognition request at a time per call; it is
// safe for concurrent use and keeps no state between requests
type Orchestrator struct {
	resolver    Resolver
	advisor     Advisor
	corrections Corrections
	primary     classify.Source
	enhanced    classify.Source
	opts        Options
	log         *slog.Logger
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithClassifiers sets the image sources used by Analyze. Either may be nil.
func WithClassifiers(sel classify.Selection) Option {
	return func(o *Orchestrator) {
		o.primary = sel.Primary
		o.enhanced = sel.Enhanced
	}
}

// New creates an orchestrator. corrections may be nil.
func New(resolver Resolver, advisor Advisor, corrections Corrections, opts Options, logger *slog.Logger, options ...Option) *Orchestrator {
	defaults := DefaultOptions()
	if opts.MinConfidence <= 0 {
		opts.MinConfidence = defaults.MinConfidence
	}
	if opts.RelaxedConfidence <= 0 {
		opts.RelaxedConfidence = defaults.RelaxedConfidence
	}
	if opts.HighConfidence <= 0 {
		opts.HighConfidence = defaults.HighConfidence
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.Workers <= 0 {
		opts.Workers = defaults.Workers
	}

	o := &Orchestrator{
		resolver:    resolver,
		advisor:     advisor,
		corrections: corrections,
		opts:        opts,
		log:         logger,
	}
	for _, opt := range options {
		opt(o)
	}
	return o
}

// maxStages counts the timeout-bounded stages of one Analyze call: standard,
// relaxed and enhanced classification, then resolution
const maxStages = 4

// MaxDuration bounds how long one Analyze call can run before it returns
func (o *Orchestrator) MaxDuration() time.Duration {
	return maxStages * o.opts.Timeout
}

// CanClassifyImages reports whether Analyze has an image source
func (o *Orchestrator) CanClassifyImages() bool {
	return o.primary != nil
}

// Analyze classifies img and enriches the detected foods. A request where
// nothing is detected returns an Analysis in StateFailed, not an error.
// Errors are returned for classifier failures and caller cancellation.
func (o *Orchestrator) Analyze(ctx context.Context, img classify.Image, profile types.HealthProfile) (*Analysis, error) {
	if o.primary == nil {
		return nil, classify.ErrNoClassifier
	}
	return o.run(ctx, o.primary, o.enhanced, img, profile)
}

// AnalyzeCandidates runs the pipeline over candidates computed by the caller.
// There is no enhanced pass.
func (o *Orchestrator) AnalyzeCandidates(ctx context.Context, candidates []types.Candidate, profile types.HealthProfile) (*Analysis, error) {
	return o.run(ctx, classify.Labels(candidates), nil, classify.Image{}, profile)
}

func (o *Orchestrator) run(ctx context.Context, primary, enhanced classify.Source, img classify.Image, profile types.HealthProfile) (*Analysis, error) {
	start := time.Now()
	analysis := &Analysis{
		RequestID: uuid.NewString(),
		State:     StateIdle,
		Foods:     []types.RecognizedFood{},
		Source:    primary.Kind(),
	}
	log := o.log.With("request_id", analysis.RequestID, "source", primary.Kind())

	analysis.State = StateFiltering
	candidates, threshold, err := o.filterPasses(ctx, primary, img, analysis)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		analysis.State = StateFailed
		analysis.Reason = ErrNoCandidates.Error()
		analysis.DurationMS = time.Since(start).Milliseconds()
		log.Info("No food detected", "passes", analysis.Passes, "duration", time.Since(start))
		return analysis, nil
	}

	if enhanced != nil && !anyAtLeast(candidates, o.opts.HighConfidence) {
		better, err := o.classify(ctx, enhanced, img, threshold)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("Enhanced classification failed, keeping standard candidates", "error", err)
		} else if len(better) > 0 {
			candidates = better
			analysis.Source = enhanced.Kind()
		}
		analysis.Passes = append(analysis.Passes, PassEnhanced)
	}

	analysis.State = StateResolving
	foods, err := o.resolveAll(ctx, candidates, profile)
	if err != nil {
		return nil, err
	}
	analysis.State = StateJoining

	o.applyCorrections(foods, log)
	analysis.State = StateCorrected

	slices.SortStableFunc(foods, func(a, b types.RecognizedFood) int {
		return cmp.Compare(b.Confidence, a.Confidence)
	})
	analysis.Foods = foods
	analysis.State = StateDone
	analysis.DurationMS = time.Since(start).Milliseconds()

	log.Info("Recognition completed",
		"foods", len(foods),
		"passes", analysis.Passes,
		"duration", time.Since(start))
	return analysis, nil
}

// filterPasses runs the standard pass and, when it keeps nothing, one relaxed
// re-run of the whole classification. It returns the surviving candidates
// and the threshold that produced them.
func (o *Orchestrator) filterPasses(ctx context.Context, src classify.Source, img classify.Image, analysis *Analysis) ([]types.Candidate, float64, error) {
	analysis.Passes = append(analysis.Passes, PassStandard)
	candidates, err := o.classify(ctx, src, img, o.opts.MinConfidence)
	if err != nil {
		return nil, 0, err
	}
	if len(candidates) > 0 {
		return candidates, o.opts.MinConfidence, nil
	}

	analysis.Passes = append(analysis.Passes, PassRelaxed)
	candidates, err = o.classify(ctx, src, img, o.opts.RelaxedConfidence)
	if err != nil {
		return nil, 0, err
	}
	return candidates, o.opts.RelaxedConfidence, nil
}

func (o *Orchestrator) classify(ctx context.Context, src classify.Source, img classify.Image, threshold float64) ([]types.Candidate, error) {
	ctx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	raw, err := src.Classify(ctx, img)
	if err != nil {
		return nil, fmt.Errorf("%s classification failed: %w", src.Kind(), err)
	}
	kept := Filter(raw, threshold)
	o.log.Debug("Candidates filtered",
		"source", src.Kind(),
		"threshold", threshold,
		"received", len(raw),
		"kept", len(kept))
	return kept, nil
}

// resolveAll fans out one resolution per candidate over a bounded worker
// pool and waits for every one of them. Results keep candidate order.
func (o *Orchestrator) resolveAll(ctx context.Context, candidates []types.Candidate, profile types.HealthProfile) ([]types.RecognizedFood, error) {
	reqCtx, cancel := context.WithTimeout(ctx, o.opts.Timeout)
	defer cancel()

	foods := make([]types.RecognizedFood, len(candidates))
	g := new(errgroup.Group)
	g.SetLimit(o.opts.Workers)

	for i, c := range candidates {
		g.Go(func() error {
			foods[i] = o.recognize(reqCtx, c, profile)
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		o.log.Debug("Recognition request abandoned, discarding results", "error", err)
		return nil, err
	}
	return foods, nil
}

// recognize builds one RecognizedFood. The recommendation is worked out
// while nutrition resolves; warnings wait for the record because they scan
// the ingredients it carries.
func (o *Orchestrator) recognize(ctx context.Context, c types.Candidate, profile types.HealthProfile) types.RecognizedFood {
	name := nutrition.CleanName(c.Label)

	var (
		wg          sync.WaitGroup
		record      types.NutritionRecord
		recommended bool
		reason      *string
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		record = o.resolveWithin(ctx, name)
	}()
	go func() {
		defer wg.Done()
		recommended, reason = o.advisor.Recommend(name, profile)
	}()
	wg.Wait()

	return types.RecognizedFood{
		Name:                 name,
		Confidence:           c.Confidence,
		Nutrition:            record,
		Warnings:             o.advisor.Evaluate(name, record.Ingredients, profile.Conditions),
		IsRecommended:        recommended,
		RecommendationReason: reason,
		OriginalLabel:        c.Label,
	}
}

// resolveWithin returns the placeholder when ctx ends first. The resolution
// keeps running in the background so its cache write still lands.
func (o *Orchestrator) resolveWithin(ctx context.Context, name string) types.NutritionRecord {
	if ctx.Err() != nil {
		return o.resolver.Placeholder(name)
	}

	done := make(chan types.NutritionRecord, 1)
	go func() {
		done <- o.resolver.Resolve(ctx, name)
	}()

	select {
	case rec := <-done:
		return rec
	case <-ctx.Done():
		o.log.Warn("Nutrition resolution timed out, using placeholder", "food", name, "error", ctx.Err())
		return o.resolver.Placeholder(name)
	}
}

// applyCorrections renames foods whose label users previously marked as
// incorrect. Nutrition stays as resolved for the original name.
func (o *Orchestrator) applyCorrections(foods []types.RecognizedFood, log *slog.Logger) {
	if o.corrections == nil {
		return
	}
	corrections := o.corrections.Corrections()
	if len(corrections) == 0 {
		return
	}

	for i := range foods {
		f := &foods[i]
		corrected, ok := corrections[nutrition.Normalize(f.OriginalLabel)]
		if !ok {
			corrected, ok = corrections[nutrition.Normalize(f.Name)]
		}
		if !ok {
			continue
		}
		log.Debug("Applying learned correction", "from", f.Name, "to", corrected)
		f.Name = corrected
	}
}

// Filter keeps candidates with confidence at or above threshold, in order
func Filter(candidates []types.Candidate, threshold float64) []types.Candidate {
	kept := make([]types.Candidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Confidence >= threshold {
			kept = append(kept, c)
		}
	}
	return kept
}

func anyAtLeast(candidates []types.Candidate, threshold float64) bool {
	for _, c := range candidates {
		if c.Confidence >= threshold {
			return true
		}
	}
	return false
}
