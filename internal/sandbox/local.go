// Package sandbox provides execution sandboxes for generated code:
// a local process runner for trusted environments and a Docker-backed
// runner for isolation. Both parse test runner output into the shared
// execution result contract.
package sandbox

import (
	"context"
	"fmt"
	"os"

	"github.com/bitfield/script"

	"featureforge/internal/collab"
)

// LocalSandbox runs generated code with the host Go toolchain in a
// throwaway working directory. No isolation; use DockerSandbox when
// the generated code is untrusted.
type LocalSandbox struct {
	// TestCommand is the command run inside the staged directory.
	TestCommand string
}

// NewLocalSandbox creates a local sandbox with the default test command.
func NewLocalSandbox() *LocalSandbox {
	return &LocalSandbox{TestCommand: "go test -cover ./..."}
}

// Execute stages the code and tests into a temp module and runs the
// test command, parsing the output into a structured result. The run
// failing to start is an ExecutionError; tests failing inside a
// successful run is a normal result.
func (s *LocalSandbox) Execute(ctx context.Context, req collab.ExecutionRequest) (*collab.ExecutionResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, &collab.ExecutionError{FeatureID: req.FeatureID, Err: err}
	}

	dir, err := s.stage(req)
	if err != nil {
		return nil, &collab.ExecutionError{FeatureID: req.FeatureID, Err: err}
	}
	defer os.RemoveAll(dir)

	// script.Exec has no working-directory option, so wrap in sh -c.
	cmd := fmt.Sprintf("sh -c 'cd %s && %s'", dir, s.TestCommand)
	output, runErr := script.Exec(cmd).String()

	result := ParseTestOutput(output)

	// go test exits non-zero when tests fail; that is a parseable
	// outcome, not an execution error. Only an empty parse with an
	// error means the run itself broke.
	if runErr != nil && result.TotalTests == 0 && result.FailureDetails == "" {
		return nil, &collab.ExecutionError{FeatureID: req.FeatureID, Err: fmt.Errorf("test command failed: %w (output: %s)", runErr, output)}
	}

	return result, nil
}

func (s *LocalSandbox) stage(req collab.ExecutionRequest) (string, error) {
	return stageModule(req)
}
