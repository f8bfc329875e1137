// Package collab defines the boundary contracts between the phase
// pipeline and its external collaborators: the generation backend that
// produces tests, implementations, and reviews, and the execution
// sandbox that runs them. Implementations live elsewhere; the pipeline
// depends only on these interfaces.
package collab

import (
	"context"
	"fmt"
)

// GenerationKind selects what the backend should produce.
type GenerationKind string

const (
	KindTests          GenerationKind = "tests"
	KindImplementation GenerationKind = "implementation"
	KindReview         GenerationKind = "review"
)

// GenerationRequest carries everything the backend needs for one
// generation call. Hints accumulate across retry attempts within a
// phase, oldest first.
type GenerationRequest struct {
	Kind        GenerationKind
	FeatureID   string
	Title       string
	Description string
	// Upstream maps artifact names to content the generation should
	// build on (e.g. the generated tests when implementing).
	Upstream map[string]string
	Hints    []string
}

// GenerationBackend produces content from a request. Free-text model
// output must be schema-parsed by the backend before it crosses this
// boundary; the pipeline never parses raw model output.
type GenerationBackend interface {
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// ExecutionRequest asks the sandbox to run tests against code.
// ExpectFailure flags the RED-phase run where passing tests are an
// error, not a success.
type ExecutionRequest struct {
	FeatureID     string
	Code          string
	Tests         string
	ExpectFailure bool
}

// ExecutionResult is the sandbox's verdict on one run.
type ExecutionResult struct {
	Passed          bool
	TotalTests      int
	PassedTests     int
	FailedTests     int
	FailureDetails  string
	CoveragePercent float64
}

// ExecutionSandbox runs code and tests in isolation.
type ExecutionSandbox interface {
	Execute(ctx context.Context, req ExecutionRequest) (*ExecutionResult, error)
}

// GenerationError wraps a failed generation call.
type GenerationError struct {
	Kind      GenerationKind
	FeatureID string
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation of %s for feature %s failed: %v", e.Kind, e.FeatureID, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// ExecutionError wraps a failed sandbox call (the run itself failed,
// as opposed to tests failing inside a successful run).
type ExecutionError struct {
	FeatureID string
	Err       error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution for feature %s failed: %v", e.FeatureID, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}
