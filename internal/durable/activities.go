package durable

import (
	"context"

	"go.temporal.io/sdk/activity"

	"featureforge/internal/feature"
	"featureforge/internal/orchestrator"
)

// Activities hosts the per-feature pipeline activity. The runner and
// its shared cache live for the worker's lifetime, so warm cache
// entries survive across workflow runs on the same worker.
type Activities struct {
	runner *orchestrator.Orchestrator
}

// NewActivities wraps an orchestrator for activity registration.
func NewActivities(runner *orchestrator.Orchestrator) *Activities {
	return &Activities{runner: runner}
}

// RunFeature drives one feature to a terminal phase. The activity
// never returns an error for a feature that merely failed: FAILED is a
// valid outcome the workflow must see, not an activity fault.
func (a *Activities) RunFeature(ctx context.Context, input FeatureInput) (*FeatureOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Running feature", "feature", input.Spec.ID)
	activity.RecordHeartbeat(ctx, "starting")

	feat := feature.New(input.Spec.ID, input.Spec.Title, input.Spec.Description, input.Spec.DependsOn)
	if err := a.runner.RunFeature(ctx, feat, input.Upstream); err != nil {
		return nil, err
	}

	logger.Info("Feature finished", "feature", feat.ID, "state", feat.Phase)
	return &FeatureOutput{
		Outcome: FeatureOutcome{
			ID:            feat.ID,
			TerminalState: feat.Phase,
			Artifacts:     feat.Artifacts,
			Retries:       feat.Metrics.Retries,
		},
	}, nil
}
