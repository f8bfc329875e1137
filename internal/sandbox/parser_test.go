// Copyright (c) 2025 FeatureForge Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package sandbox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingOutput = `=== RUN   TestLogin
--- PASS: TestLogin (0.00s)
=== RUN   TestLogout
--- PASS: TestLogout (0.01s)
PASS
coverage: 87.5% of statements
ok  	sandbox/auth	0.012s	coverage: 87.5% of statements
`

const failingOutput = `=== RUN   TestLogin
--- PASS: TestLogin (0.00s)
=== RUN   TestLogout
--- FAIL: TestLogout (0.00s)
    auth_test.go:42: expected session cleared, got active
    auth_test.go:43: cookie still present
=== RUN   TestRefresh
--- PASS: TestRefresh (0.00s)
FAIL
coverage: 61.2% of statements
FAIL	sandbox/auth	0.015s
`

const buildFailureOutput = `# sandbox/auth [sandbox/auth.test]
./feature.go:12:6: undefined: SessionStore
FAIL	sandbox/auth [build failed]
`

const panicOutput = `=== RUN   TestLogin
--- FAIL: TestLogin (0.00s)
panic: runtime error: invalid memory address or nil pointer dereference [recovered]
	goroutine 6 [running]:
FAIL	sandbox/auth	0.008s
`

func TestParsePassingRun(t *testing.T) {
	result := ParseTestOutput(passingOutput)

	assert.True(t, result.Passed)
	assert.Equal(t, 2, result.TotalTests)
	assert.Equal(t, 2, result.PassedTests)
	assert.Equal(t, 0, result.FailedTests)
	assert.Equal(t, 87.5, result.CoveragePercent)
	assert.Empty(t, result.FailureDetails)
}

func TestParseFailingRun(t *testing.T) {
	result := ParseTestOutput(failingOutput)

	assert.False(t, result.Passed)
	assert.Equal(t, 3, result.TotalTests)
	assert.Equal(t, 2, result.PassedTests)
	assert.Equal(t, 1, result.FailedTests)
	assert.Equal(t, 61.2, result.CoveragePercent)

	assert.Contains(t, result.FailureDetails, "--- FAIL: TestLogout")
	assert.Contains(t, result.FailureDetails, "expected session cleared")
	assert.Contains(t, result.FailureDetails, "cookie still present")
	assert.NotContains(t, result.FailureDetails, "TestRefresh", "passing tests stay out of the details")
	assert.NotContains(t, result.FailureDetails, "=== RUN")
}

func TestParseBuildFailure(t *testing.T) {
	result := ParseTestOutput(buildFailureOutput)

	assert.False(t, result.Passed)
	assert.Greater(t, result.FailedTests, 0)
	assert.Contains(t, result.FailureDetails, "undefined: SessionStore")
}

func TestParsePanic(t *testing.T) {
	result := ParseTestOutput(panicOutput)

	assert.False(t, result.Passed)
	assert.Contains(t, result.FailureDetails, "panic: runtime error")
}

// TestParseEmptyOutput covers the degenerate case: nothing ran, so
// nothing passed.
func TestParseEmptyOutput(t *testing.T) {
	result := ParseTestOutput("")

	assert.False(t, result.Passed, "a run with zero tests proves nothing")
	assert.Equal(t, 0, result.TotalTests)
	assert.Empty(t, result.FailureDetails)
}

func TestParseDetailsTruncated(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("--- FAIL: TestHuge (0.00s)\n")
	for i := 0; i < 500; i++ {
		sb.WriteString("    huge_test.go:1: another twenty-byte assertion failure line\n")
	}

	result := ParseTestOutput(sb.String())

	require.False(t, result.Passed)
	assert.Contains(t, result.FailureDetails, "(truncated)")
	assert.LessOrEqual(t, len(result.FailureDetails), maxFailureDetailLength+100)
}
