package durable

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"featureforge/internal/deporder"
	"featureforge/internal/feature"
)

// PipelineWorkflow executes a feature set with group-barrier semantics.
// Ordering is computed deterministically from the input, so the
// workflow replays safely. Each activity owns the internal retry
// strategy for its feature; Temporal-level activity retries are
// disabled to keep the retry budget in one place.
func PipelineWorkflow(ctx workflow.Context, input WorkflowInput) (*WorkflowResult, error) {
	logger := workflow.GetLogger(ctx)

	input.Config.ApplyDefaults()
	if err := input.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	groups, err := deporder.Order(toFeatures(input.Features))
	if err != nil {
		return nil, err
	}
	logger.Info("Pipeline schedule computed", "groups", len(groups), "plan", deporder.Describe(groups))

	specs := make(map[string]FeatureSpec, len(input.Features))
	for _, s := range input.Features {
		specs[s.ID] = s
	}

	// A feature can spend up to max_retries call timeouts per phase;
	// size the activity timeout to cover the worst case across phases.
	perFeature := time.Duration(input.Config.CallTimeoutSeconds*input.Config.MaxRetries*4) * time.Second
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: perFeature,
		HeartbeatTimeout:    time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	result := &WorkflowResult{}
	outcomes := make(map[string]FeatureOutcome, len(input.Features))

	for _, group := range groups {
		futures := make(map[string]workflow.Future)

		for _, id := range group {
			spec := specs[id]

			if blockedBy := blockingDependency(spec, outcomes, input.Config.ToleratePartialFailure); blockedBy != "" {
				logger.Warn("Feature blocked", "feature", id, "dependency", blockedBy)
				outcomes[id] = FeatureOutcome{ID: id, TerminalState: feature.PhaseBlocked}
				continue
			}

			in := FeatureInput{Spec: spec, Upstream: upstreamFor(spec, outcomes)}
			futures[id] = workflow.ExecuteActivity(ctx, "RunFeature", in)
		}

		// Barrier: the whole group must reach a terminal state before
		// the next group starts. Iterate the group slice, not the map,
		// to keep replay deterministic.
		for _, id := range group {
			future, ok := futures[id]
			if !ok {
				continue
			}
			var out FeatureOutput
			if err := future.Get(ctx, &out); err != nil {
				logger.Error("Feature activity failed", "feature", id, "error", err)
				outcomes[id] = FeatureOutcome{ID: id, TerminalState: feature.PhaseFailed}
				continue
			}
			outcomes[id] = out.Outcome
		}
	}

	for _, spec := range input.Features {
		out := outcomes[spec.ID]
		result.Outcomes = append(result.Outcomes, out)
		switch out.TerminalState {
		case feature.PhaseGreen:
			result.Green++
		case feature.PhaseFailed:
			result.Failed++
		case feature.PhaseBlocked:
			result.Blocked++
		case feature.PhaseCancelled:
			result.Cancelled++
		}
	}

	logger.Info("Pipeline complete", "green", result.Green, "failed", result.Failed, "blocked", result.Blocked)
	return result, nil
}

func blockingDependency(spec FeatureSpec, outcomes map[string]FeatureOutcome, toleratePartial bool) string {
	for _, dep := range spec.DependsOn {
		out, done := outcomes[dep]
		if !done {
			return dep
		}
		switch out.TerminalState {
		case feature.PhaseGreen:
		case feature.PhaseFailed:
			if !toleratePartial {
				return dep
			}
		default:
			return dep
		}
	}
	return ""
}

func upstreamFor(spec FeatureSpec, outcomes map[string]FeatureOutcome) map[string]string {
	upstream := make(map[string]string)
	for _, dep := range spec.DependsOn {
		for name, content := range outcomes[dep].Artifacts {
			upstream[dep+"/"+name] = content
		}
	}
	return upstream
}
