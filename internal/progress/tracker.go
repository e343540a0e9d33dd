// Package progress converts phase-local progress into a weighted overall
// percentage with an ETA and emits it to a status sink.
package progress

import (
	"math"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-mx/internal/model"
)

// ErrInvalidWeights is returned when weights are negative or do not sum to 100.
var ErrInvalidWeights = eris.New("progress: task weights must be non-negative and sum to 100")

const weightTolerance = 1e-6

// ValidateWeights checks w against ErrInvalidWeights.
func ValidateWeights(w model.TaskWeights) error {
	for _, v := range []float64{w.Processing, w.MXLookup, w.Deduplication, w.Enrichment} {
		if v < 0 || math.IsNaN(v) {
			return eris.Wrapf(ErrInvalidWeights, "got %+v", w)
		}
	}
	if math.Abs(w.Sum()-100) > weightTolerance {
		return eris.Wrapf(ErrInvalidWeights, "sum is %.2f", w.Sum())
	}
	return nil
}

// Calculate scales current/total by weight and adds it to base. An empty
// phase (total <= 0) counts as finished.
func Calculate(current, total int, weight, base float64) float64 {
	if total <= 0 {
		return base + weight
	}
	if current < 0 {
		current = 0
	}
	if current > total {
		current = total
	}
	return base + float64(current)/float64(total)*weight
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock replaces time.Now for ETA computation.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		t.now = now
	}
}

// Tracker emits ProcessingStatus updates for one run. Progress never moves
// backwards and exactly one terminal status is emitted. It is safe for
// concurrent use; the sink is never called concurrently.
type Tracker struct {
	weights model.TaskWeights
	sink    model.StatusFunc
	now     func() time.Time
	start   time.Time

	mu   sync.Mutex
	last float64
	done bool
}

// NewTracker validates weights and starts the ETA clock. A nil sink discards
// updates.
func NewTracker(weights model.TaskWeights, sink model.StatusFunc, opts ...Option) (*Tracker, error) {
	if err := ValidateWeights(weights); err != nil {
		return nil, err
	}
	t := &Tracker{
		weights: weights,
		sink:    sink,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.start = t.now()
	return t, nil
}

// Base returns the cumulative weight of the phases before phase.
func (t *Tracker) Base(phase model.PhaseName) float64 {
	w := t.weights
	switch phase {
	case model.PhaseExtracting:
		return 0
	case model.PhaseClassifying:
		return w.Processing
	case model.PhaseDeduplicating:
		return w.Processing + w.MXLookup
	case model.PhaseEnriching:
		return w.Processing + w.MXLookup + w.Deduplication
	case model.PhaseComplete:
		return 100
	default:
		return 0
	}
}

// Weight returns the share of progress owned by phase.
func (t *Tracker) Weight(phase model.PhaseName) float64 {
	switch phase {
	case model.PhaseExtracting:
		return t.weights.Processing
	case model.PhaseClassifying:
		return t.weights.MXLookup
	case model.PhaseDeduplicating:
		return t.weights.Deduplication
	case model.PhaseEnriching:
		return t.weights.Enrichment
	default:
		return 0
	}
}

// Phase reports current/total progress within phase under label.
func (t *Tracker) Phase(phase model.PhaseName, label string, current, total int) {
	t.Update(label, Calculate(current, total, t.Weight(phase), t.Base(phase)))
}

// Update emits a non-terminal status. Values below the last emitted
// progress are raised to it; values above 100 are capped.
func (t *Tracker) Update(label string, progress float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	if progress < t.last || math.IsNaN(progress) {
		progress = t.last
	}
	if progress > 100 {
		progress = 100
	}
	t.last = progress
	t.emit(model.ProcessingStatus{
		CurrentTask: label,
		Progress:    progress,
		ETASeconds:  t.eta(progress),
	})
}

// Complete emits the terminal success status. Later calls are ignored.
func (t *Tracker) Complete() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	t.last = 100
	t.emit(model.ProcessingStatus{
		CurrentTask: model.TaskComplete,
		Progress:    100,
		IsComplete:  true,
	})
}

// Fail emits the terminal error status carrying reason. Progress stays at
// its last value. Later calls are ignored.
func (t *Tracker) Fail(reason error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.done {
		return
	}
	t.done = true
	label := model.TaskFailedPrefix
	if reason != nil {
		label += ": " + reason.Error()
	}
	t.emit(model.ProcessingStatus{
		CurrentTask: label,
		Progress:    t.last,
		IsComplete:  true,
	})
}

// Progress returns the last emitted progress.
func (t *Tracker) Progress() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.last
}

// Done reports whether a terminal status was emitted.
func (t *Tracker) Done() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.done
}

// ETA extrapolates remaining seconds linearly from elapsed time.
func (t *Tracker) ETA(progress float64) int {
	return t.eta(progress)
}

func (t *Tracker) eta(progress float64) int {
	if progress <= 0 || progress >= 100 {
		return 0
	}
	elapsed := t.now().Sub(t.start).Seconds()
	if elapsed <= 0 {
		return 0
	}
	return int(math.Ceil((100 - progress) * (elapsed / progress)))
}

func (t *Tracker) emit(s model.ProcessingStatus) {
	if t.sink != nil {
		t.sink(s)
	}
}
