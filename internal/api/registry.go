package api

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"

	"github.com/sells-group/contact-mx/internal/model"
	"github.com/sells-group/contact-mx/internal/pipeline"
)

// ErrRegistryFull is returned by Create when every slot holds a running run.
var ErrRegistryFull = eris.New("api: too many active runs")

// RunState is the lifecycle state of a submitted run.
type RunState string

const (
	RunRunning   RunState = "running"
	RunComplete  RunState = "complete"
	RunFailed    RunState = "failed"
	RunCancelled RunState = "cancelled"
)

// Run tracks one background pipeline run.
type Run struct {
	ID        string
	CreatedAt time.Time
	Header    []string

	cancel context.CancelFunc

	mu       sync.RWMutex
	state    RunState
	status   model.ProcessingStatus
	result   *pipeline.RunResult
	err      error
	finished time.Time
}

// RunView is the JSON shape of a run.
type RunView struct {
	ID         string                 `json:"id"`
	State      RunState               `json:"state"`
	Status     model.ProcessingStatus `json:"status"`
	Scenario   model.ScenarioKind     `json:"scenario,omitempty"`
	Records    int                    `json:"records"`
	Degraded   []model.Classification `json:"degraded,omitempty"`
	Stats      *pipeline.RunStats     `json:"stats,omitempty"`
	Error      string                 `json:"error,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
	FinishedAt *time.Time             `json:"finishedAt,omitempty"`
}

func (r *Run) setStatus(s model.ProcessingStatus) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

func (r *Run) finish(res *pipeline.RunResult, err error, now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.result = res
	r.err = err
	r.finished = now
	switch {
	case err == nil:
		r.state = RunComplete
	case r.state == RunCancelled:
	default:
		r.state = RunFailed
	}
}

// State returns the current lifecycle state.
func (r *Run) State() RunState {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Result returns the run result once complete.
func (r *Run) Result() (*pipeline.RunResult, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.result, r.state == RunComplete
}

// View snapshots the run for serialization.
func (r *Run) View() RunView {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v := RunView{
		ID:        r.ID,
		State:     r.state,
		Status:    r.status,
		CreatedAt: r.CreatedAt,
	}
	if r.result != nil {
		v.Scenario = r.result.Scenario
		v.Records = len(r.result.Records)
		v.Degraded = r.result.Degraded
		stats := r.result.Stats
		v.Stats = &stats
	}
	if r.err != nil {
		v.Error = r.err.Error()
	}
	if !r.finished.IsZero() {
		f := r.finished
		v.FinishedAt = &f
	}
	return v
}

// Registry holds runs in memory, keyed by id.
type Registry struct {
	mu      sync.RWMutex
	runs    map[string]*Run
	maxRuns int
}

// NewRegistry creates a registry that keeps at most maxRuns runs. When full,
// the oldest finished run is evicted. If all runs are still running, Create
// fails with ErrRegistryFull. A non-positive maxRuns keeps all.
func NewRegistry(maxRuns int) *Registry {
	return &Registry{runs: make(map[string]*Run), maxRuns: maxRuns}
}

// Create registers a new running run.
func (g *Registry) Create(header []string, cancel context.CancelFunc, now time.Time) (*Run, error) {
	run := &Run{
		ID:        uuid.NewString(),
		CreatedAt: now,
		Header:    header,
		cancel:    cancel,
		state:     RunRunning,
		status:    model.ProcessingStatus{CurrentTask: model.TaskParsing},
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if g.maxRuns > 0 && len(g.runs) >= g.maxRuns && !g.evictLocked() {
		return nil, ErrRegistryFull
	}
	g.runs[run.ID] = run
	return run, nil
}

// evictLocked drops the oldest finished run and reports whether one existed.
func (g *Registry) evictLocked() bool {
	var oldest *Run
	for _, r := range g.runs {
		if r.State() == RunRunning {
			continue
		}
		if oldest == nil || r.CreatedAt.Before(oldest.CreatedAt) {
			oldest = r
		}
	}
	if oldest == nil {
		return false
	}
	delete(g.runs, oldest.ID)
	return true
}

// Get looks up a run by id.
func (g *Registry) Get(id string) (*Run, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	r, ok := g.runs[id]
	return r, ok
}

// List returns all runs, newest first.
func (g *Registry) List() []*Run {
	g.mu.RLock()
	out := make([]*Run, 0, len(g.runs))
	for _, r := range g.runs {
		out = append(out, r)
	}
	g.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// Cancel stops a running run and removes it from the registry.
func (g *Registry) Cancel(id string) bool {
	g.mu.Lock()
	r, ok := g.runs[id]
	if ok {
		delete(g.runs, id)
	}
	g.mu.Unlock()
	if !ok {
		return false
	}

	r.mu.Lock()
	if r.state == RunRunning {
		r.state = RunCancelled
	}
	r.mu.Unlock()
	if r.cancel != nil {
		r.cancel()
	}
	return true
}
