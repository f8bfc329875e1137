package retry

import (
	"regexp"
	"strings"
)

// FailureKind categorizes a failure from its text so retry hints can
// point the generator at the right class of problem.
type FailureKind string

const (
	FailureAssertion FailureKind = "assertion"
	FailureImport    FailureKind = "import"
	FailureBuild     FailureKind = "build"
	FailureRuntime   FailureKind = "runtime"
	FailureTimeout   FailureKind = "timeout"
	FailureUnknown   FailureKind = "unknown"
)

var (
	assertionRegex = regexp.MustCompile(`(?i)(---\s*FAIL:|assert|expected .* got|want .* got|Error Trace:)`)
	importRegex    = regexp.MustCompile(`(?i)(cannot find package|no required module|undefined:|imported and not used|could not import)`)
	buildRegex     = regexp.MustCompile(`(?i)(syntax error|build failed|cannot use .* as|missing return|declared and not used)`)
	runtimeRegex   = regexp.MustCompile(`(?i)(panic:|runtime error|nil pointer|index out of range|deadlock)`)
	timeoutRegex   = regexp.MustCompile(`(?i)(timed out|timeout|context deadline exceeded|context canceled)`)
)

// Classify pattern-matches failure text into a failure kind. Order
// matters: runtime and timeout signatures are more specific than the
// generic assertion patterns.
func Classify(details string) FailureKind {
	switch {
	case details == "":
		return FailureUnknown
	case timeoutRegex.MatchString(details):
		return FailureTimeout
	case runtimeRegex.MatchString(details):
		return FailureRuntime
	case importRegex.MatchString(details):
		return FailureImport
	case buildRegex.MatchString(details):
		return FailureBuild
	case assertionRegex.MatchString(details):
		return FailureAssertion
	}
	return FailureUnknown
}

// firstLine returns the first non-empty line of failure text.
func firstLine(details string) string {
	for _, line := range strings.Split(details, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
