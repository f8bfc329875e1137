// Package feature defines the unit of work flowing through the phase
// pipeline: one feature, its dependencies, its phase history, and the
// artifacts each phase produces.
package feature

import (
	"fmt"
	"time"
)

// Phase identifies where a feature currently sits in the TDD pipeline.
type Phase string

const (
	// PhasePending means the feature has not been started.
	PhasePending Phase = "pending"
	// PhaseRed means failing tests are being written and verified.
	PhaseRed Phase = "red"
	// PhaseYellow means implementation is in progress until tests pass.
	PhaseYellow Phase = "yellow"
	// PhaseGreen means the feature was accepted. Terminal success.
	PhaseGreen Phase = "green"
	// PhaseFailed means the retry budget was exhausted. Terminal failure.
	PhaseFailed Phase = "failed"
	// PhaseBlocked means a dependency failed and the feature never started.
	PhaseBlocked Phase = "blocked"
	// PhaseCancelled means the run was cancelled while the feature was pending or in flight.
	PhaseCancelled Phase = "cancelled"
)

// Terminal reports whether a phase is a final state for this run.
func (p Phase) Terminal() bool {
	switch p {
	case PhaseGreen, PhaseFailed, PhaseBlocked, PhaseCancelled:
		return true
	}
	return false
}

// Outcome records how a phase entry in the history ended.
type Outcome string

const (
	OutcomeEntered   Outcome = "entered"
	OutcomePassed    Outcome = "passed"
	OutcomeRetried   Outcome = "retried"
	OutcomeEscalated Outcome = "escalated"
	OutcomeBlocked   Outcome = "blocked"
	OutcomeCancelled Outcome = "cancelled"
)

// Artifact keys used in Feature.Artifacts.
const (
	ArtifactTests          = "tests"
	ArtifactImplementation = "implementation"
	ArtifactReview         = "review"
)

// PhaseRecord is one append-only audit trail entry.
type PhaseRecord struct {
	Phase     Phase     `yaml:"phase" json:"phase"`
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	Outcome   Outcome   `yaml:"outcome" json:"outcome"`
	Detail    string    `yaml:"detail,omitempty" json:"detail,omitempty"`
}

// Metrics collects per-feature execution statistics for the final report.
type Metrics struct {
	PhaseDurations map[Phase]time.Duration `yaml:"phase_durations" json:"phase_durations"`
	Retries        int                     `yaml:"retries" json:"retries"`
	CacheHits      int                     `yaml:"cache_hits" json:"cache_hits"`
	CacheMisses    int                     `yaml:"cache_misses" json:"cache_misses"`
	ReviewScore    float64                 `yaml:"review_score,omitempty" json:"review_score,omitempty"`
}

// Feature is one unit of independently trackable work. Its mutable
// state is owned by exactly one orchestrator task for the lifetime of
// a run; the coordinator hands ownership over at start and takes the
// terminal result back.
type Feature struct {
	ID           string   `yaml:"id" json:"id"`
	Title        string   `yaml:"title" json:"title"`
	Description  string   `yaml:"description" json:"description"`
	Dependencies []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`

	Phase      Phase             `yaml:"-" json:"phase"`
	History    []PhaseRecord     `yaml:"-" json:"history"`
	Artifacts  map[string]string `yaml:"-" json:"artifacts"`
	RetryCount int               `yaml:"-" json:"retry_count"`
	Metrics    Metrics           `yaml:"-" json:"metrics"`
}

// New creates a feature in the pending phase with initialized maps.
func New(id, title, description string, deps []string) *Feature {
	return &Feature{
		ID:           id,
		Title:        title,
		Description:  description,
		Dependencies: deps,
		Phase:        PhasePending,
		Artifacts:    make(map[string]string),
		Metrics:      Metrics{PhaseDurations: make(map[Phase]time.Duration)},
	}
}

// Record appends an audit trail entry. The history is append-only.
func (f *Feature) Record(phase Phase, outcome Outcome, detail string) {
	f.History = append(f.History, PhaseRecord{
		Phase:     phase,
		Timestamp: time.Now().UTC(),
		Outcome:   outcome,
		Detail:    detail,
	})
}

// SetArtifact stores phase output. Artifacts are immutable once a phase
// completed successfully, so overwriting an existing key is an error.
func (f *Feature) SetArtifact(key, content string) error {
	if f.Artifacts == nil {
		f.Artifacts = make(map[string]string)
	}
	if _, exists := f.Artifacts[key]; exists {
		return fmt.Errorf("artifact %q for feature %s already set", key, f.ID)
	}
	f.Artifacts[key] = content
	return nil
}

// Normalize fills the zero-value fields of a feature loaded from a
// manifest so the rest of the pipeline can assume initialized state.
func (f *Feature) Normalize() {
	if f.Phase == "" {
		f.Phase = PhasePending
	}
	if f.Artifacts == nil {
		f.Artifacts = make(map[string]string)
	}
	if f.Metrics.PhaseDurations == nil {
		f.Metrics.PhaseDurations = make(map[Phase]time.Duration)
	}
}
