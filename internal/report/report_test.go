package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"featureforge/internal/feature"
)

func terminalFeature(id string, phase feature.Phase, retries int) *feature.Feature {
	f := feature.New(id, id, "description of "+id, nil)
	f.Phase = phase
	f.Metrics.Retries = retries
	f.Record(phase, feature.OutcomePassed, "")
	return f
}

func TestBuildAggregates(t *testing.T) {
	features := []*feature.Feature{
		terminalFeature("a", feature.PhaseGreen, 1),
		terminalFeature("b", feature.PhaseGreen, 0),
		terminalFeature("c", feature.PhaseFailed, 3),
		terminalFeature("d", feature.PhaseBlocked, 0),
		terminalFeature("e", feature.PhaseCancelled, 0),
	}

	rep := Build("run-1", time.Now().Add(-time.Second), features, 0.75)

	assert.Equal(t, "run-1", rep.RunID)
	assert.Len(t, rep.Features, 5)
	assert.Equal(t, 2, rep.Aggregate.Green)
	assert.Equal(t, 1, rep.Aggregate.Failed)
	assert.Equal(t, 1, rep.Aggregate.Blocked)
	assert.Equal(t, 1, rep.Aggregate.Cancelled)
	assert.Equal(t, 4, rep.Aggregate.RetriesTotal)
	assert.Equal(t, 0.75, rep.Aggregate.CacheHitRate)
	assert.Greater(t, rep.Aggregate.TotalDuration, time.Duration(0))
}

func TestFeatureLookup(t *testing.T) {
	rep := Build("run-1", time.Now(), []*feature.Feature{
		terminalFeature("auth", feature.PhaseGreen, 0),
	}, 0)

	require.NotNil(t, rep.Feature("auth"))
	assert.Equal(t, feature.PhaseGreen, rep.Feature("auth").TerminalState)
	assert.Nil(t, rep.Feature("ghost"))
}

func TestWriteYAML(t *testing.T) {
	rep := Build("run-1", time.Now(), []*feature.Feature{
		terminalFeature("auth", feature.PhaseGreen, 2),
	}, 0.5)

	var buf bytes.Buffer
	require.NoError(t, rep.WriteYAML(&buf))

	var decoded CompletionReport
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded.RunID)
	require.Len(t, decoded.Features, 1)
	assert.Equal(t, feature.PhaseGreen, decoded.Features[0].TerminalState)
	assert.Equal(t, 2, decoded.Features[0].Metrics.Retries)
}

func TestSummary(t *testing.T) {
	rep := Build("run-1", time.Now(), []*feature.Feature{
		terminalFeature("a", feature.PhaseGreen, 0),
		terminalFeature("b", feature.PhaseFailed, 0),
	}, 0.5)

	s := rep.Summary()
	assert.Contains(t, s, "1 green, 1 failed, 0 blocked, 0 cancelled")
	assert.Contains(t, s, "cache hit rate 50%")
}
