// Package orchestrator drives a single feature through the RED, YELLOW,
// and GREEN phases, calling out to the generation backend and execution
// sandbox, consulting the cache before every expensive call, and routing
// every failure through the retry strategy. One orchestrator task owns
// one feature's mutable state for the whole run.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"time"

	"featureforge/internal/cache"
	"featureforge/internal/collab"
	"featureforge/internal/feature"
	"featureforge/internal/phase"
	"featureforge/internal/retry"
)

// Logger is the structured logging surface the orchestrator needs.
type Logger interface {
	Infof(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Debugf(format string, args ...interface{})
	Warnf(format string, args ...interface{})
}

// Options tunes a single orchestrator.
type Options struct {
	MinCoverage  float64
	CallTimeout  time.Duration
	MaxRetries   int
	EnableReview bool
}

// Orchestrator is a pure coordination layer: all generation and
// execution happens in the collaborators.
type Orchestrator struct {
	backend  collab.GenerationBackend
	sandbox  collab.ExecutionSandbox
	cache    *cache.Manager
	strategy *retry.Strategy
	opts     Options
	logger   Logger
}

// New creates an orchestrator. The cache is shared across orchestrators;
// everything else is per-run configuration.
func New(backend collab.GenerationBackend, sandbox collab.ExecutionSandbox, c *cache.Manager, opts Options, logger Logger) *Orchestrator {
	return &Orchestrator{
		backend:  backend,
		sandbox:  sandbox,
		cache:    c,
		strategy: retry.NewStrategy(opts.MaxRetries),
		opts:     opts,
		logger:   logger,
	}
}

// yellowResult is the cached YELLOW phase output: the implementation
// plus the coverage it achieved, so a warm run needs no sandbox call.
type yellowResult struct {
	Content  string  `json:"content"`
	Coverage float64 `json:"coverage"`
}

// RunFeature drives one feature from PENDING to a terminal phase.
// Upstream carries the artifacts of the feature's dependencies. The
// returned error reports only internal invariant violations; feature
// failure is expressed through the terminal phase.
func (o *Orchestrator) RunFeature(ctx context.Context, feat *feature.Feature, upstream map[string]string) error {
	tracker := phase.NewTracker(feat)

	if err := tracker.Transition(feature.PhaseRed, feature.OutcomeEntered, ""); err != nil {
		return err
	}

	ok, err := o.runRed(ctx, tracker, feat, upstream)
	if err != nil || !ok {
		return err
	}

	ok, err = o.runYellow(ctx, tracker, feat, upstream)
	if err != nil || !ok {
		return err
	}

	return o.runGreen(ctx, tracker, feat, upstream)
}

// runRed generates tests and confirms they fail without an
// implementation. Returns false when the feature reached a terminal
// state (FAILED or CANCELLED) instead of advancing.
func (o *Orchestrator) runRed(ctx context.Context, tracker *phase.Tracker, feat *feature.Feature, upstream map[string]string) (bool, error) {
	started := time.Now()
	defer func() { feat.Metrics.PhaseDurations[feature.PhaseRed] = time.Since(started) }()

	fp := cache.Fingerprint(featureContent(feat), string(feature.PhaseRed), upstream)
	if tests, hit := o.cache.Get(fp); hit {
		feat.Metrics.CacheHits++
		o.logger.Debugf("feature %s: RED cache hit", feat.ID)
		if err := feat.SetArtifact(feature.ArtifactTests, tests); err != nil {
			return false, err
		}
		return true, tracker.Transition(feature.PhaseYellow, feature.OutcomeEntered, "cached failing tests")
	}
	feat.Metrics.CacheMisses++

	rc := retry.NewContext()
	var hints []string

	for {
		if cancelled, err := o.checkCancelled(ctx, tracker); cancelled || err != nil {
			return false, err
		}

		tests, reason, details := o.redAttempt(ctx, feat, upstream, hints)
		if ctx.Err() != nil {
			_, err := o.cancel(tracker)
			return false, err
		}

		if reason == "" {
			if err := feat.SetArtifact(feature.ArtifactTests, tests); err != nil {
				return false, err
			}
			o.cache.Put(fp, tests)
			feat.Record(feature.PhaseRed, feature.OutcomePassed, "tests confirmed failing")
			return true, tracker.Transition(feature.PhaseYellow, feature.OutcomeEntered, "")
		}

		decision := o.strategy.Decide(rc, reason, details)
		if decision.Action == retry.ActionEscalate {
			o.logger.Warnf("feature %s: RED escalated: %s", feat.ID, decision.Reason)
			return false, tracker.Transition(feature.PhaseFailed, feature.OutcomeEscalated, decision.Reason)
		}
		hints = decision.Hints
		tracker.Retry(reason)
		o.logger.Infof("feature %s: RED retry %d: %s", feat.ID, rc.AttemptNumber, reason)
	}
}

// redAttempt performs one generate-and-verify cycle. An empty reason
// means success and tests holds the verified artifact.
func (o *Orchestrator) redAttempt(ctx context.Context, feat *feature.Feature, upstream map[string]string, hints []string) (tests, reason, details string) {
	tests, err := o.generate(ctx, collab.GenerationRequest{
		Kind:        collab.KindTests,
		FeatureID:   feat.ID,
		Title:       feat.Title,
		Description: feat.Description,
		Upstream:    upstream,
		Hints:       hints,
	})
	if err != nil {
		return "", fmt.Sprintf("test generation failed: %v", err), err.Error()
	}

	result, err := o.execute(ctx, collab.ExecutionRequest{
		FeatureID:     feat.ID,
		Tests:         tests,
		ExpectFailure: true,
	})
	if err != nil {
		return "", fmt.Sprintf("test verification failed: %v", err), err.Error()
	}

	if result.Passed {
		terr := &phase.TestsShouldFailError{FeatureID: feat.ID}
		return "", terr.Error(), result.FailureDetails
	}
	if result.TotalTests == 0 && result.FailureDetails == "" {
		return "", "generated tests did not run", ""
	}

	return tests, "", ""
}

// runYellow loops implementation attempts until tests pass and coverage
// clears the bar, or the strategy escalates.
func (o *Orchestrator) runYellow(ctx context.Context, tracker *phase.Tracker, feat *feature.Feature, upstream map[string]string) (bool, error) {
	started := time.Now()
	defer func() { feat.Metrics.PhaseDurations[feature.PhaseYellow] = time.Since(started) }()

	up := mergeUpstream(upstream, feature.ArtifactTests, feat.Artifacts[feature.ArtifactTests])
	fp := cache.Fingerprint(featureContent(feat), string(feature.PhaseYellow), up)

	if cached, hit := o.cache.Get(fp); hit {
		var yr yellowResult
		if err := json.Unmarshal([]byte(cached), &yr); err == nil && yr.Coverage >= o.opts.MinCoverage {
			feat.Metrics.CacheHits++
			o.logger.Debugf("feature %s: YELLOW cache hit", feat.ID)
			if err := feat.SetArtifact(feature.ArtifactImplementation, yr.Content); err != nil {
				return false, err
			}
			return true, tracker.Transition(feature.PhaseGreen, feature.OutcomePassed, "cached implementation")
		}
		// Corrupt entry or a raised coverage bar: treat as a miss and
		// attempt fresh.
		feat.Metrics.CacheMisses++
	} else {
		feat.Metrics.CacheMisses++
	}

	rc := retry.NewContext()
	var hints []string

	for {
		if cancelled, err := o.checkCancelled(ctx, tracker); cancelled || err != nil {
			return false, err
		}

		impl, coverage, reason, details := o.yellowAttempt(ctx, feat, up, hints)
		if ctx.Err() != nil {
			_, err := o.cancel(tracker)
			return false, err
		}

		if reason == "" {
			if err := feat.SetArtifact(feature.ArtifactImplementation, impl); err != nil {
				return false, err
			}
			payload, _ := json.Marshal(yellowResult{Content: impl, Coverage: coverage})
			o.cache.Put(fp, string(payload))
			return true, tracker.Transition(feature.PhaseGreen, feature.OutcomePassed, fmt.Sprintf("all tests pass, coverage %.1f%%", coverage))
		}

		decision := o.strategy.Decide(rc, reason, details)
		if decision.Action == retry.ActionEscalate {
			o.logger.Warnf("feature %s: YELLOW escalated: %s", feat.ID, decision.Reason)
			return false, tracker.Transition(feature.PhaseFailed, feature.OutcomeEscalated, decision.Reason)
		}
		hints = decision.Hints
		if err := tracker.Transition(feature.PhaseYellow, feature.OutcomeRetried, reason); err != nil {
			return false, err
		}
		o.logger.Infof("feature %s: YELLOW retry %d: %s", feat.ID, rc.AttemptNumber, reason)
	}
}

// yellowAttempt performs one implement-and-verify cycle. An empty
// reason means tests pass and coverage clears the configured minimum.
func (o *Orchestrator) yellowAttempt(ctx context.Context, feat *feature.Feature, upstream map[string]string, hints []string) (impl string, coverage float64, reason, details string) {
	impl, err := o.generate(ctx, collab.GenerationRequest{
		Kind:        collab.KindImplementation,
		FeatureID:   feat.ID,
		Title:       feat.Title,
		Description: feat.Description,
		Upstream:    upstream,
		Hints:       hints,
	})
	if err != nil {
		return "", 0, fmt.Sprintf("implementation generation failed: %v", err), err.Error()
	}

	result, err := o.execute(ctx, collab.ExecutionRequest{
		FeatureID: feat.ID,
		Code:      impl,
		Tests:     feat.Artifacts[feature.ArtifactTests],
	})
	if err != nil {
		return "", 0, fmt.Sprintf("test execution failed: %v", err), err.Error()
	}

	if !result.Passed {
		return "", 0, fmt.Sprintf("%d of %d tests failing", result.FailedTests, result.TotalTests), result.FailureDetails
	}

	if result.CoveragePercent < o.opts.MinCoverage {
		cerr := &phase.InsufficientCoverageError{
			FeatureID: feat.ID,
			Coverage:  result.CoveragePercent,
			Minimum:   o.opts.MinCoverage,
		}
		return "", 0, cerr.Error(), fmt.Sprintf("coverage %.1f%%", result.CoveragePercent)
	}

	return impl, result.CoveragePercent, "", ""
}

var reviewScoreRegex = regexp.MustCompile(`(?mi)^Score:\s*(\d+(?:\.\d+)?)\s*/\s*10`)

// runGreen records the acceptance, optionally annotating it with a
// review. GREEN never fails the feature; a review problem only costs
// the annotation.
func (o *Orchestrator) runGreen(ctx context.Context, tracker *phase.Tracker, feat *feature.Feature, upstream map[string]string) error {
	started := time.Now()
	defer func() { feat.Metrics.PhaseDurations[feature.PhaseGreen] = time.Since(started) }()

	if !o.opts.EnableReview {
		return nil
	}

	review, err := o.generate(ctx, collab.GenerationRequest{
		Kind:        collab.KindReview,
		FeatureID:   feat.ID,
		Title:       feat.Title,
		Description: feat.Description,
		Upstream: mergeUpstream(map[string]string{
			feature.ArtifactTests: feat.Artifacts[feature.ArtifactTests],
		}, feature.ArtifactImplementation, feat.Artifacts[feature.ArtifactImplementation]),
	})
	if err != nil {
		o.logger.Warnf("feature %s: review skipped: %v", feat.ID, err)
		feat.Record(feature.PhaseGreen, feature.OutcomePassed, fmt.Sprintf("review unavailable: %v", err))
		return nil
	}

	if err := feat.SetArtifact(feature.ArtifactReview, review); err != nil {
		return err
	}
	if m := reviewScoreRegex.FindStringSubmatch(review); m != nil {
		if score, err := strconv.ParseFloat(m[1], 64); err == nil {
			feat.Metrics.ReviewScore = score
		}
	}
	feat.Record(feature.PhaseGreen, feature.OutcomePassed, "review recorded")
	return nil
}

// generate calls the backend under the per-call timeout.
func (o *Orchestrator) generate(ctx context.Context, req collab.GenerationRequest) (string, error) {
	callCtx, cancel := o.callContext(ctx)
	defer cancel()
	return o.backend.Generate(callCtx, req)
}

// execute calls the sandbox under the per-call timeout.
func (o *Orchestrator) execute(ctx context.Context, req collab.ExecutionRequest) (*collab.ExecutionResult, error) {
	callCtx, cancel := o.callContext(ctx)
	defer cancel()
	return o.sandbox.Execute(callCtx, req)
}

func (o *Orchestrator) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.opts.CallTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.opts.CallTimeout)
}

// checkCancelled handles run-level cancellation at a suspension point.
func (o *Orchestrator) checkCancelled(ctx context.Context, tracker *phase.Tracker) (bool, error) {
	if ctx.Err() == nil {
		return false, nil
	}
	return o.cancel(tracker)
}

func (o *Orchestrator) cancel(tracker *phase.Tracker) (bool, error) {
	if tracker.IsTerminal() {
		return true, nil
	}
	return true, tracker.Transition(feature.PhaseCancelled, feature.OutcomeCancelled, "run cancelled")
}

// featureContent is the feature text included in fingerprints.
func featureContent(feat *feature.Feature) string {
	return feat.Title + "\n" + feat.Description
}

// mergeUpstream copies the upstream map and adds one artifact.
func mergeUpstream(upstream map[string]string, key, value string) map[string]string {
	merged := make(map[string]string, len(upstream)+1)
	for k, v := range upstream {
		merged[k] = v
	}
	if value != "" {
		merged[key] = value
	}
	return merged
}
