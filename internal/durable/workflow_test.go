package durable

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"featureforge/internal/config"
	"featureforge/internal/feature"
)

// fakeActivity stands in for the real per-feature activity, driving
// each feature to a scripted terminal state.
type fakeActivity struct {
	mu        sync.Mutex
	outcomes  map[string]feature.Phase // default GREEN
	executed  []string
	upstreams map[string]map[string]string
}

func newFakeActivity() *fakeActivity {
	return &fakeActivity{
		outcomes:  make(map[string]feature.Phase),
		upstreams: make(map[string]map[string]string),
	}
}

func (f *fakeActivity) RunFeature(ctx context.Context, in FeatureInput) (*FeatureOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.executed = append(f.executed, in.Spec.ID)
	f.upstreams[in.Spec.ID] = in.Upstream

	phase := f.outcomes[in.Spec.ID]
	if phase == "" {
		phase = feature.PhaseGreen
	}
	out := FeatureOutcome{ID: in.Spec.ID, TerminalState: phase}
	if phase == feature.PhaseGreen {
		out.Artifacts = map[string]string{
			feature.ArtifactImplementation: "impl for " + in.Spec.ID,
		}
	}
	return &FeatureOutput{Outcome: out}, nil
}

func (f *fakeActivity) ran(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.executed {
		if e == id {
			return true
		}
	}
	return false
}

func newWorkflowEnv(t *testing.T, fake *fakeActivity) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var suite testsuite.WorkflowTestSuite
	env := suite.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(PipelineWorkflow)
	env.RegisterActivityWithOptions(fake.RunFeature, activity.RegisterOptions{Name: "RunFeature"})
	return env
}

func specChain() []FeatureSpec {
	return []FeatureSpec{
		{ID: "auth", Title: "Authentication", Description: "login"},
		{ID: "api", Title: "REST API", Description: "endpoints", DependsOn: []string{"auth"}},
	}
}

func TestPipelineWorkflowChain(t *testing.T) {
	fake := newFakeActivity()
	env := newWorkflowEnv(t, fake)

	env.ExecuteWorkflow(PipelineWorkflow, WorkflowInput{Features: specChain()})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result WorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, 2, result.Green)
	assert.Equal(t, []string{"auth", "api"}, fake.executed, "dependency order holds")
	assert.Equal(t, "impl for auth", fake.upstreams["api"]["auth/implementation"])
}

func TestPipelineWorkflowFailureBlocksDependents(t *testing.T) {
	fake := newFakeActivity()
	fake.outcomes["auth"] = feature.PhaseFailed
	env := newWorkflowEnv(t, fake)

	env.ExecuteWorkflow(PipelineWorkflow, WorkflowInput{Features: specChain()})

	require.NoError(t, env.GetWorkflowError())
	var result WorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Blocked)
	assert.False(t, fake.ran("api"), "blocked features never become activities")
}

func TestPipelineWorkflowToleratesPartialFailure(t *testing.T) {
	fake := newFakeActivity()
	fake.outcomes["auth"] = feature.PhaseFailed
	env := newWorkflowEnv(t, fake)

	env.ExecuteWorkflow(PipelineWorkflow, WorkflowInput{
		Features: specChain(),
		Config:   config.Config{ToleratePartialFailure: true},
	})

	require.NoError(t, env.GetWorkflowError())
	var result WorkflowResult
	require.NoError(t, env.GetWorkflowResult(&result))

	assert.True(t, fake.ran("api"))
	assert.Equal(t, 1, result.Green)
	assert.Equal(t, 1, result.Failed)
}

func TestPipelineWorkflowRejectsCycle(t *testing.T) {
	fake := newFakeActivity()
	env := newWorkflowEnv(t, fake)

	env.ExecuteWorkflow(PipelineWorkflow, WorkflowInput{Features: []FeatureSpec{
		{ID: "a", Title: "a", DependsOn: []string{"b"}},
		{ID: "b", Title: "b", DependsOn: []string{"a"}},
	}})

	require.True(t, env.IsWorkflowCompleted())
	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cyclic dependency")
	assert.Empty(t, fake.executed)
}

func TestPipelineWorkflowRejectsInvalidConfig(t *testing.T) {
	fake := newFakeActivity()
	env := newWorkflowEnv(t, fake)

	env.ExecuteWorkflow(PipelineWorkflow, WorkflowInput{
		Features: specChain(),
		Config:   config.Config{MinCoverage: 150},
	})

	err := env.GetWorkflowError()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid configuration")
}

func TestBlockingDependency(t *testing.T) {
	outcomes := map[string]FeatureOutcome{
		"green":   {ID: "green", TerminalState: feature.PhaseGreen},
		"failed":  {ID: "failed", TerminalState: feature.PhaseFailed},
		"blocked": {ID: "blocked", TerminalState: feature.PhaseBlocked},
	}

	spec := func(deps ...string) FeatureSpec { return FeatureSpec{ID: "x", DependsOn: deps} }

	assert.Equal(t, "", blockingDependency(spec("green"), outcomes, false))
	assert.Equal(t, "failed", blockingDependency(spec("green", "failed"), outcomes, false))
	assert.Equal(t, "", blockingDependency(spec("failed"), outcomes, true), "tolerated failure does not block")
	assert.Equal(t, "blocked", blockingDependency(spec("blocked"), outcomes, true), "blockage always propagates")
	assert.Equal(t, "missing", blockingDependency(spec("missing"), outcomes, false))
}

func TestUpstreamFor(t *testing.T) {
	outcomes := map[string]FeatureOutcome{
		"auth": {
			ID:            "auth",
			TerminalState: feature.PhaseGreen,
			Artifacts:     map[string]string{"tests": "t", "implementation": "i"},
		},
	}

	up := upstreamFor(FeatureSpec{ID: "api", DependsOn: []string{"auth"}}, outcomes)
	assert.Equal(t, map[string]string{"auth/tests": "t", "auth/implementation": "i"}, up)
}
