// Copyright (c) 2025 FeatureForge Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package sandbox

import (
	"regexp"
	"strconv"
	"strings"

	"featureforge/internal/collab"
)

// Maximum failure detail length kept in a result.
const maxFailureDetailLength = 4000

// outputPatterns caches the compiled regexes used to parse test runner
// output into a structured result.
type outputPatterns struct {
	testFail  *regexp.Regexp
	testPass  *regexp.Regexp
	pkgFail   *regexp.Regexp
	panicLine *regexp.Regexp
	buildFail *regexp.Regexp
	coverage  *regexp.Regexp
	runLine   *regexp.Regexp
}

var patterns = &outputPatterns{
	testFail:  regexp.MustCompile(`^\s*---\s*FAIL:\s*(\S+)`),
	testPass:  regexp.MustCompile(`^\s*---\s*PASS:\s*(\S+)`),
	pkgFail:   regexp.MustCompile(`^FAIL\s+(\S+)`),
	panicLine: regexp.MustCompile(`^panic:`),
	buildFail: regexp.MustCompile(`^#\s+(\S+)`),
	coverage:  regexp.MustCompile(`coverage:\s+(\d+(?:\.\d+)?)%`),
	runLine:   regexp.MustCompile(`^===\s+(RUN|CONT|PAUSE)\s+`),
}

// ParseTestOutput turns raw `go test` output into an execution result.
// Only failure lines are retained in FailureDetails; PASS noise and
// timing lines are dropped.
func ParseTestOutput(raw string) *collab.ExecutionResult {
	result := &collab.ExecutionResult{}
	var failureLines []string
	inFailure := false

	for _, line := range strings.Split(raw, "\n") {
		switch {
		case patterns.testFail.MatchString(line), patterns.panicLine.MatchString(line), patterns.buildFail.MatchString(line):
			result.FailedTests++
			inFailure = true
			failureLines = append(failureLines, line)
		case patterns.testPass.MatchString(line):
			result.PassedTests++
			inFailure = false
		case patterns.runLine.MatchString(line), patterns.pkgFail.MatchString(line):
			inFailure = false
		case strings.HasPrefix(line, "ok ") || strings.HasPrefix(line, "PASS"):
			inFailure = false
		default:
			if inFailure && strings.TrimSpace(line) != "" {
				failureLines = append(failureLines, line)
			}
		}

		if m := patterns.coverage.FindStringSubmatch(line); m != nil {
			if pct, err := strconv.ParseFloat(m[1], 64); err == nil {
				result.CoveragePercent = pct
			}
		}
	}

	result.TotalTests = result.PassedTests + result.FailedTests
	result.Passed = result.FailedTests == 0 && result.TotalTests > 0

	details := strings.Join(failureLines, "\n")
	if len(details) > maxFailureDetailLength {
		details = details[:maxFailureDetailLength] + "\n... (truncated)"
	}
	result.FailureDetails = details

	return result
}
