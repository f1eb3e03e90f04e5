// Package feedback keeps the append-only log of user judgements about
// recognition results and derives label corrections from it.
package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/noot-app/foodscan-mcp-server/internal/nutrition"
	"github.com/noot-app/foodscan-mcp-server/internal/store"
	"github.com/noot-app/foodscan-mcp-server/internal/types"
)

// ErrInvalidSubmission is returned when a submission fails validation
var ErrInvalidSubmission = errors.New("invalid feedback submission")

// Submission is what a caller sends to record feedback
type Submission struct {
	Label          string
	Verdict        types.Verdict
	CorrectedLabel *string
	Confidence     float64
	Notes          *string
}

// Store is a JSON-file backed feedback log. Every Submit rewrites the file.
type Store struct {
	mu         sync.RWMutex
	path       string
	entries    []types.FeedbackEntry
	memoryOnly bool
	now        func() time.Time
	log        *slog.Logger
}

// NewStore creates an empty store backed by path. An empty path keeps the log
// in memory only.
func NewStore(path string, logger *slog.Logger) *Store {
	return &Store{
		path:       path,
		memoryOnly: path == "",
		now:        time.Now,
		log:        logger,
	}
}

// Load reads the log from disk. A missing or corrupt file leaves the store
// empty; the error is returned for logging only.
func (s *Store) Load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = nil
	if s.path == "" {
		return nil
	}

	var onDisk []types.FeedbackEntry
	if err := store.ReadJSON(s.path, &onDisk); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Debug("No feedback log on disk", "path", s.path)
			return nil
		}
		s.log.Warn("Feedback log unreadable, starting empty", "path", s.path, "error", err)
		return err
	}

	s.entries = onDisk
	s.log.Info("Feedback log loaded", "path", s.path, "entries", len(s.entries))
	return nil
}

// Submit validates sub, appends it to the log and persists the log
func (s *Store) Submit(ctx context.Context, sub Submission) (types.FeedbackEntry, error) {
	if err := ctx.Err(); err != nil {
		return types.FeedbackEntry{}, err
	}

	label := strings.TrimSpace(sub.Label)
	if label == "" {
		return types.FeedbackEntry{}, fmt.Errorf("%w: label is required", ErrInvalidSubmission)
	}
	if !sub.Verdict.Valid() {
		return types.FeedbackEntry{}, fmt.Errorf("%w: unknown verdict %q", ErrInvalidSubmission, sub.Verdict)
	}
	if math.IsNaN(sub.Confidence) || sub.Confidence < 0 || sub.Confidence > 1 {
		return types.FeedbackEntry{}, fmt.Errorf("%w: confidence %.2f outside [0, 1]", ErrInvalidSubmission, sub.Confidence)
	}

	entry := types.FeedbackEntry{
		ID:                  uuid.NewString(),
		OriginalLabel:       label,
		CorrectedLabel:      trimmed(sub.CorrectedLabel),
		ConfidenceAtCapture: sub.Confidence,
		Verdict:             sub.Verdict,
		Notes:               trimmed(sub.Notes),
		Timestamp:           s.now().UTC(),
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, entry)
	s.persistLocked()

	s.log.Info("Feedback recorded",
		"id", entry.ID,
		"label", entry.OriginalLabel,
		"verdict", entry.Verdict)
	return entry, nil
}

// Entries returns a copy of the log in submission order
func (s *Store) Entries() []types.FeedbackEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.FeedbackEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len returns the number of entries
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// MemoryOnly reports whether the store has stopped writing to disk
func (s *Store) MemoryOnly() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.memoryOnly
}

// Corrections maps a normalized original label to the label users corrected
// it to. Only incorrect verdicts with a correction count. When users disagree
// the most frequent correction wins, and among equally frequent ones the most
// recently submitted.
func (s *Store) Corrections() map[string]string {
	type tally struct {
		label string
		count int
		last  int
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	votes := make(map[string]map[string]*tally)
	for i, e := range s.entries {
		if e.Verdict != types.VerdictIncorrect || e.CorrectedLabel == nil {
			continue
		}
		from := nutrition.Normalize(e.OriginalLabel)
		to := nutrition.Normalize(*e.CorrectedLabel)
		if from == "" || to == "" || from == to {
			continue
		}
		if votes[from] == nil {
			votes[from] = make(map[string]*tally)
		}
		t, ok := votes[from][to]
		if !ok {
			t = &tally{}
			votes[from][to] = t
		}
		t.label = *e.CorrectedLabel
		t.count++
		t.last = i
	}

	out := make(map[string]string, len(votes))
	for from, candidates := range votes {
		var best *tally
		for _, t := range candidates {
			if best == nil || t.count > best.count || (t.count == best.count && t.last > best.last) {
				best = t
			}
		}
		out[from] = best.label
	}
	return out
}

func (s *Store) persistLocked() {
	if s.memoryOnly {
		return
	}
	if err := store.WriteJSON(s.path, s.entries); err != nil {
		s.memoryOnly = true
		s.log.Error("Feedback persist failed, continuing in memory only",
			"path", s.path,
			"error", err)
	}
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
