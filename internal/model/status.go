package model

// ProcessingStatus is emitted to the progress sink during a run.
type ProcessingStatus struct {
	CurrentTask string  `json:"currentTask"`
	Progress    float64 `json:"progress"`
	ETASeconds  int     `json:"eta"`
	IsComplete  bool    `json:"isComplete"`
}

// StatusFunc receives ProcessingStatus updates.
type StatusFunc func(ProcessingStatus)

// TaskWeights splits the 0-100 progress range across pipeline phases.
type TaskWeights struct {
	Processing    float64 `json:"processing" mapstructure:"processing"`
	MXLookup      float64 `json:"mx_lookup" mapstructure:"mx_lookup"`
	Deduplication float64 `json:"deduplication" mapstructure:"deduplication"`
	Enrichment    float64 `json:"enrichment" mapstructure:"enrichment"`
}

// DefaultTaskWeights returns the 40/40/10/10 split.
func DefaultTaskWeights() TaskWeights {
	return TaskWeights{
		Processing:    40,
		MXLookup:      40,
		Deduplication: 10,
		Enrichment:    10,
	}
}

// Sum returns the total of all weights.
func (w TaskWeights) Sum() float64 {
	return w.Processing + w.MXLookup + w.Deduplication + w.Enrichment
}

// PhaseName identifies a pipeline phase.
type PhaseName string

const (
	PhaseParsing       PhaseName = "parsing"
	PhaseExtracting    PhaseName = "extracting"
	PhaseClassifying   PhaseName = "classifying"
	PhaseDeduplicating PhaseName = "deduplicating"
	PhaseEnriching     PhaseName = "enriching"
	PhaseComplete      PhaseName = "complete"
)

// Task labels shown to users while a run progresses.
const (
	TaskParsing       = "Parsing CSV data"
	TaskProcessing    = "Processing emails"
	TaskMXLookup      = "Looking up email providers"
	TaskDeduplication = "Removing duplicates"
	TaskEnrichment    = "Enriching data"
	TaskComplete      = "Processing complete"
	TaskFailedPrefix  = "Error processing file"
)
