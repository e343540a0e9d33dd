package pipeline

import (
	"fmt"
	"time"

	"github.com/sells-group/contact-mx/internal/model"
)

// RunStats counts what happened during a run.
type RunStats struct {
	Rows          int           `json:"rows"`
	Slots         int           `json:"slots"`
	Extracted     int           `json:"extracted"`
	Skipped       int           `json:"skipped"`
	UniqueDomains int           `json:"unique_domains"`
	Duplicates    int           `json:"duplicates"`
	Enriched      int           `json:"enriched"`
	Duration      time.Duration `json:"duration_ns"`
}

// RunResult is the output of a successful run.
type RunResult struct {
	Records  []model.ContactRecord  `json:"records"`
	Scenario model.ScenarioKind     `json:"scenario"`
	Degraded []model.Classification `json:"degraded,omitempty"`
	Stats    RunStats               `json:"stats"`
}

// RunError reports the phase a run failed in.
type RunError struct {
	Phase model.PhaseName
	Err   error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("pipeline: %s: %v", e.Phase, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}
