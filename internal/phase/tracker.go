// Package phase enforces legal phase transitions for a single feature
// and records its audit trail. One tracker is owned by exactly one
// orchestrator task; nothing here is safe for concurrent use and
// nothing needs to be.
package phase

import (
	"fmt"

	"featureforge/internal/feature"
)

// InvalidTransitionError identifies a disallowed transition attempt.
// The orchestrator surfaces it; state is never silently coerced.
type InvalidTransitionError struct {
	FeatureID string
	From      feature.Phase
	To        feature.Phase
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("feature %s: invalid phase transition %s -> %s", e.FeatureID, e.From, e.To)
}

// TestsShouldFailError is raised when RED execution unexpectedly shows
// all tests passing. Tests must fail in RED by construction.
type TestsShouldFailError struct {
	FeatureID string
}

func (e *TestsShouldFailError) Error() string {
	return fmt.Sprintf("feature %s: generated tests pass before implementation exists", e.FeatureID)
}

// InsufficientCoverageError refuses the YELLOW -> GREEN transition when
// coverage is below the configured minimum.
type InsufficientCoverageError struct {
	FeatureID string
	Coverage  float64
	Minimum   float64
}

func (e *InsufficientCoverageError) Error() string {
	return fmt.Sprintf("feature %s: coverage %.1f%% below required %.1f%%", e.FeatureID, e.Coverage, e.Minimum)
}

// transition is one row of the legal-transition table.
type transition struct {
	from feature.Phase
	to   feature.Phase
}

// transitions is the full set of legal moves. YELLOW self-loops for
// retry-within-phase; GREEN and FAILED accept nothing further.
var transitions = map[transition]bool{
	{feature.PhasePending, feature.PhaseRed}:       true,
	{feature.PhasePending, feature.PhaseBlocked}:   true,
	{feature.PhasePending, feature.PhaseCancelled}: true,

	{feature.PhaseRed, feature.PhaseYellow}:    true,
	{feature.PhaseRed, feature.PhaseFailed}:    true,
	{feature.PhaseRed, feature.PhaseCancelled}: true,

	{feature.PhaseYellow, feature.PhaseYellow}:    true,
	{feature.PhaseYellow, feature.PhaseGreen}:     true,
	{feature.PhaseYellow, feature.PhaseFailed}:    true,
	{feature.PhaseYellow, feature.PhaseCancelled}: true,
}

// Tracker drives phase transitions for one feature.
type Tracker struct {
	feat *feature.Feature
}

// NewTracker wraps a feature. The caller must hold exclusive ownership
// of the feature's mutable state.
func NewTracker(f *feature.Feature) *Tracker {
	f.Normalize()
	return &Tracker{feat: f}
}

// Current returns the feature's current phase.
func (t *Tracker) Current() feature.Phase {
	return t.feat.Phase
}

// IsTerminal reports whether the feature reached a terminal state.
func (t *Tracker) IsTerminal() bool {
	return t.feat.Phase.Terminal()
}

// CanTransition reports whether moving to the target phase is legal now.
func (t *Tracker) CanTransition(to feature.Phase) bool {
	return transitions[transition{t.feat.Phase, to}]
}

// Transition moves the feature to the target phase, recording the
// outcome in the history. Entering a new phase resets the retry count;
// the YELLOW self-loop increments it instead.
func (t *Tracker) Transition(to feature.Phase, outcome feature.Outcome, detail string) error {
	from := t.feat.Phase
	if !transitions[transition{from, to}] {
		return &InvalidTransitionError{FeatureID: t.feat.ID, From: from, To: to}
	}

	if from == to {
		t.feat.RetryCount++
		t.feat.Metrics.Retries++
	} else {
		t.feat.RetryCount = 0
	}

	t.feat.Phase = to
	t.feat.Record(to, outcome, detail)
	return nil
}

// Retry records a retry attempt within the current phase without a
// transition. RED attempts retry this way; YELLOW uses its self-loop.
func (t *Tracker) Retry(detail string) {
	t.feat.RetryCount++
	t.feat.Metrics.Retries++
	t.feat.Record(t.feat.Phase, feature.OutcomeRetried, detail)
}
