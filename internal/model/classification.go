package model

import "time"

// ClassificationSource records where a provider label came from.
type ClassificationSource string

const (
	SourceInvalid     ClassificationSource = "invalid"
	SourceCache       ClassificationSource = "cache"
	SourceStore       ClassificationSource = "store"
	SourceLookup      ClassificationSource = "lookup"
	SourceCircuitOpen ClassificationSource = "circuit_open"
)

// Classification is the detailed outcome of classifying one domain.
// Degraded is set when the provider fell back to "others" because the
// lookup failed rather than because the MX records matched nothing.
// ErrorClass is one of "abort", "permanent", "transient" or "unknown" when
// Err is set. Persisted reports a successful write to the persistent store.
type Classification struct {
	Domain     string               `json:"domain"`
	Provider   string               `json:"provider"`
	Source     ClassificationSource `json:"source"`
	Attempts   int                  `json:"attempts"`
	Degraded   bool                 `json:"degraded"`
	Err        string               `json:"error,omitempty"`
	ErrorClass string               `json:"errorClass,omitempty"`
	Persisted  bool                 `json:"persisted,omitempty"`
}

// DomainEntry is one persisted domain to provider mapping.
type DomainEntry struct {
	Domain    string    `json:"domain"`
	Provider  string    `json:"provider"`
	UpdatedAt time.Time `json:"updated_at"`
}
