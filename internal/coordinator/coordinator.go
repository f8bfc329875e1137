// Package coordinator is the top-level run driver: it orders features
// by dependency, fans groups out to per-feature orchestrator tasks
// under a concurrency limit, enforces the group barrier, and aggregates
// the completion report. Individual feature failures never fail the
// run; only structural problems (cycles, bad configuration) do.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"featureforge/internal/cache"
	"featureforge/internal/config"
	"featureforge/internal/deporder"
	"featureforge/internal/feature"
	"featureforge/internal/orchestrator"
	"featureforge/internal/report"
)

// FeatureRunner drives a single feature to a terminal phase. Satisfied
// by *orchestrator.Orchestrator; tests substitute their own.
type FeatureRunner interface {
	RunFeature(ctx context.Context, feat *feature.Feature, upstream map[string]string) error
}

// Coordinator owns the feature collection for one run.
type Coordinator struct {
	runner FeatureRunner
	cache  *cache.Manager
	cfg    *config.Config
	logger orchestrator.Logger
}

// New creates a coordinator. The cache must be the same instance the
// runner consults so the report's hit rate is accurate.
func New(runner FeatureRunner, c *cache.Manager, cfg *config.Config, logger orchestrator.Logger) *Coordinator {
	return &Coordinator{runner: runner, cache: c, cfg: cfg, logger: logger}
}

// Run executes the feature set to completion and returns the report.
// The feature set is final: nothing may add or remove features once
// ordering has been computed. The returned error is non-nil only for
// structural failures; a context cancellation still yields a report
// with partial results.
func (c *Coordinator) Run(ctx context.Context, features []*feature.Feature) (*report.CompletionReport, error) {
	if len(features) == 0 {
		return nil, fmt.Errorf("no features to run")
	}
	if err := c.cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	for _, f := range features {
		f.Normalize()
	}

	groups, err := deporder.Order(features)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	startedAt := time.Now()
	byID := make(map[string]*feature.Feature, len(features))
	for _, f := range features {
		byID[f.ID] = f
	}

	c.logger.Infof("run %s: %d features in %d groups: %s", runID, len(features), len(groups), deporder.Describe(groups))

	for i, group := range groups {
		runnable := c.partitionGroup(ctx, group, byID)
		if len(runnable) == 0 {
			continue
		}

		c.logger.Infof("run %s: group %d/%d starting %d features", runID, i+1, len(groups), len(runnable))
		c.executeGroup(ctx, runnable, byID)
	}

	rep := report.Build(runID, startedAt, features, c.cache.Stats().HitRate())
	c.logger.Infof("run %s complete: %s", runID, rep.Summary())
	return rep, nil
}

// partitionGroup marks features that cannot start (cancelled run,
// failed dependencies) and returns the IDs that can.
func (c *Coordinator) partitionGroup(ctx context.Context, group deporder.Group, byID map[string]*feature.Feature) []string {
	var runnable []string

	for _, id := range group {
		feat := byID[id]

		if ctx.Err() != nil {
			feat.Phase = feature.PhaseCancelled
			feat.Record(feature.PhaseCancelled, feature.OutcomeCancelled, "run cancelled before start")
			continue
		}

		if blockedBy := c.blockingDependency(feat, byID); blockedBy != "" {
			feat.Phase = feature.PhaseBlocked
			feat.Record(feature.PhaseBlocked, feature.OutcomeBlocked, fmt.Sprintf("dependency %s did not succeed", blockedBy))
			c.logger.Warnf("feature %s blocked by %s", feat.ID, blockedBy)
			continue
		}

		runnable = append(runnable, id)
	}
	return runnable
}

// blockingDependency returns the ID of a dependency that prevents the
// feature from starting, or "". A FAILED dependency blocks dependents
// unless partial failure is tolerated; BLOCKED and CANCELLED
// dependencies always block, so blockage propagates transitively.
func (c *Coordinator) blockingDependency(feat *feature.Feature, byID map[string]*feature.Feature) string {
	for _, dep := range feat.Dependencies {
		switch byID[dep].Phase {
		case feature.PhaseGreen:
		case feature.PhaseFailed:
			if !c.cfg.ToleratePartialFailure {
				return dep
			}
		default:
			return dep
		}
	}
	return ""
}

// executeGroup runs one group's features concurrently under the
// configured limit and waits for all of them: a strict barrier. Each
// task holds exclusive ownership of its feature's mutable state.
func (c *Coordinator) executeGroup(ctx context.Context, ids []string, byID map[string]*feature.Feature) {
	var wg sync.WaitGroup
	semaphore := make(chan struct{}, c.cfg.ConcurrencyLimit)

	for _, id := range ids {
		wg.Add(1)
		go func(feat *feature.Feature) {
			defer wg.Done()

			semaphore <- struct{}{}
			defer func() { <-semaphore }()

			upstream := c.upstreamArtifacts(feat, byID)
			if err := c.runner.RunFeature(ctx, feat, upstream); err != nil {
				// An invariant violation inside the tracker. The run
				// continues; the feature is failed with the evidence.
				c.logger.Errorf("feature %s: orchestration error: %v", feat.ID, err)
				if !feat.Phase.Terminal() {
					feat.Phase = feature.PhaseFailed
					feat.Record(feature.PhaseFailed, feature.OutcomeEscalated, err.Error())
				}
				return
			}
			c.logger.Infof("feature %s finished: %s", feat.ID, feat.Phase)
		}(byID[id])
	}

	wg.Wait()
}

// upstreamArtifacts namespaces dependency artifacts by feature ID so a
// change in any dependency's output changes every dependent's cache
// fingerprint.
func (c *Coordinator) upstreamArtifacts(feat *feature.Feature, byID map[string]*feature.Feature) map[string]string {
	upstream := make(map[string]string)
	for _, dep := range feat.Dependencies {
		depFeat := byID[dep]
		for name, content := range depFeat.Artifacts {
			upstream[dep+"/"+name] = content
		}
	}
	return upstream
}
