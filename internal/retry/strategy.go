// Package retry owns the single continue-vs-escalate policy for failed
// phase attempts. All retry decisions in the pipeline go through here;
// orchestrators never roll their own retry loops.
package retry

import (
	"fmt"
	"strings"

	"github.com/zeebo/blake3"
)

// DefaultMaxRetries is the retry budget per phase when none is configured.
const DefaultMaxRetries = 3

// MaxDiagnosticLength truncates the full diagnostic dump appended on
// third and later attempts.
const MaxDiagnosticLength = 2000

// Action is the outcome of a retry decision.
type Action int

const (
	// ActionRetry means attempt the phase again with enriched hints.
	ActionRetry Action = iota
	// ActionEscalate means stop retrying and fail the feature.
	ActionEscalate
)

// Decision is the tagged result of consulting the strategy.
type Decision struct {
	Action Action
	// Hints carries every accumulated hint, oldest first, when the
	// action is ActionRetry.
	Hints []string
	// Reason explains the escalation when the action is ActionEscalate.
	Reason string
}

// Context tracks retry state within a single phase. It is created at
// phase entry and discarded at phase exit.
type Context struct {
	AttemptNumber         int
	PreviousFailureReason string
	AccumulatedHints      []string

	lastSignature string
}

// NewContext creates a fresh retry context for a phase entry.
func NewContext() *Context {
	return &Context{}
}

// Strategy decides whether a failed attempt is retried or escalated.
type Strategy struct {
	maxRetries int
}

// NewStrategy creates a strategy with the given per-phase retry budget.
// Non-positive budgets fall back to the default.
func NewStrategy(maxRetries int) *Strategy {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxRetries
	}
	return &Strategy{maxRetries: maxRetries}
}

// MaxRetries returns the configured budget.
func (s *Strategy) MaxRetries() int {
	return s.maxRetries
}

// Decide evaluates one failed attempt. It escalates when the budget is
// exhausted or when the same failure signature repeats across two
// consecutive attempts (stagnation); otherwise it returns a retry
// decision whose hints include all prior hints plus the newest.
func (s *Strategy) Decide(rc *Context, failureReason, failureDetails string) Decision {
	rc.AttemptNumber++
	rc.PreviousFailureReason = failureReason

	sig := signature(failureReason, failureDetails)
	if rc.lastSignature != "" && rc.lastSignature == sig {
		return Decision{
			Action: ActionEscalate,
			Reason: fmt.Sprintf("stagnation detected: identical failure on attempts %d and %d", rc.AttemptNumber-1, rc.AttemptNumber),
		}
	}
	rc.lastSignature = sig

	if rc.AttemptNumber >= s.maxRetries {
		return Decision{
			Action: ActionEscalate,
			Reason: fmt.Sprintf("retry budget exhausted after %d attempts: %s", rc.AttemptNumber, failureReason),
		}
	}

	rc.AccumulatedHints = append(rc.AccumulatedHints, s.buildHint(rc.AttemptNumber, failureReason, failureDetails))

	hints := make([]string, len(rc.AccumulatedHints))
	copy(hints, rc.AccumulatedHints)
	return Decision{Action: ActionRetry, Hints: hints}
}

// buildHint escalates hint detail with each attempt: a minimal pointer
// first, categorized analysis second, full diagnostics after that.
func (s *Strategy) buildHint(attempt int, failureReason, failureDetails string) string {
	switch {
	case attempt <= 1:
		line := firstLine(failureDetails)
		if line == "" {
			line = failureReason
		}
		return fmt.Sprintf("previous attempt failed: %s", line)
	case attempt == 2:
		kind := Classify(failureDetails)
		return fmt.Sprintf("previous attempt failed with a %s error: %s", kind, firstLine(failureDetails))
	default:
		dump := failureDetails
		if len(dump) > MaxDiagnosticLength {
			dump = dump[:MaxDiagnosticLength] + "\n... (truncated)"
		}
		return fmt.Sprintf("previous attempt failed (%s). Full diagnostics:\n%s", failureReason, dump)
	}
}

// signature produces a stable hash of normalized failure text, used to
// detect a failure repeating unchanged between attempts.
func signature(reason, details string) string {
	normalized := strings.TrimSpace(reason) + "\n" + strings.TrimSpace(details)
	sum := blake3.Sum256([]byte(normalized))
	return fmt.Sprintf("%x", sum[:])
}
