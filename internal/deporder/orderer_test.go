package deporder

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"featureforge/internal/feature"
)

func feat(id string, deps ...string) *feature.Feature {
	return feature.New(id, id, "description of "+id, deps)
}

func TestOrderIndependentFeaturesShareAGroup(t *testing.T) {
	groups, err := Order([]*feature.Feature{feat("auth"), feat("logging"), feat("metrics")})
	require.NoError(t, err)

	require.Len(t, groups, 1)
	assert.ElementsMatch(t, Group{"auth", "logging", "metrics"}, groups[0])
}

func TestOrderLinearChain(t *testing.T) {
	groups, err := Order([]*feature.Feature{
		feat("auth"),
		feat("api", "auth"),
		feat("ui", "api"),
	})
	require.NoError(t, err)

	require.Len(t, groups, 3)
	assert.Equal(t, Group{"auth"}, groups[0])
	assert.Equal(t, Group{"api"}, groups[1])
	assert.Equal(t, Group{"ui"}, groups[2])
}

func TestOrderDiamond(t *testing.T) {
	groups, err := Order([]*feature.Feature{
		feat("base"),
		feat("auth", "base"),
		feat("storage", "base"),
		feat("api", "auth", "storage"),
	})
	require.NoError(t, err)

	require.Len(t, groups, 3)
	assert.Equal(t, Group{"base"}, groups[0])
	assert.ElementsMatch(t, Group{"auth", "storage"}, groups[1])
	assert.Equal(t, Group{"api"}, groups[2])
}

// TestOrderDepthFollowsDeepestDependency verifies a feature lands one
// level past its deepest dependency, not its shallowest.
func TestOrderDepthFollowsDeepestDependency(t *testing.T) {
	groups, err := Order([]*feature.Feature{
		feat("a"),
		feat("b", "a"),
		feat("c", "a", "b"),
	})
	require.NoError(t, err)

	require.Len(t, groups, 3)
	assert.Equal(t, Group{"c"}, groups[2])
}

// TestOrderEveryDependencyInEarlierGroup checks the plan invariant on a
// wider graph: deps of group K members all sit in groups < K.
func TestOrderEveryDependencyInEarlierGroup(t *testing.T) {
	features := []*feature.Feature{
		feat("core"),
		feat("auth", "core"),
		feat("db", "core"),
		feat("api", "auth", "db"),
		feat("ui", "api"),
		feat("docs"),
		feat("cli", "core", "api"),
	}
	groups, err := Order(features)
	require.NoError(t, err)

	groupOf := make(map[string]int)
	for i, g := range groups {
		for _, id := range g {
			groupOf[id] = i
		}
	}

	for _, f := range features {
		for _, dep := range f.Dependencies {
			assert.Less(t, groupOf[dep], groupOf[f.ID],
				"dependency %s of %s must be in an earlier group", dep, f.ID)
		}
	}
}

func TestOrderCycleDetected(t *testing.T) {
	_, err := Order([]*feature.Feature{
		feat("a", "c"),
		feat("b", "a"),
		feat("c", "b"),
	})
	require.Error(t, err)

	var cyclic *CyclicDependencyError
	assert.True(t, errors.As(err, &cyclic))
	assert.Contains(t, err.Error(), "cyclic dependency")
}

func TestOrderSelfCycleDetected(t *testing.T) {
	_, err := Order([]*feature.Feature{feat("a", "a")})
	require.Error(t, err)

	var cyclic *CyclicDependencyError
	assert.True(t, errors.As(err, &cyclic))
}

func TestOrderUnknownDependency(t *testing.T) {
	_, err := Order([]*feature.Feature{feat("api", "ghost")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown feature "ghost"`)
}

func TestOrderDuplicateID(t *testing.T) {
	_, err := Order([]*feature.Feature{feat("api"), feat("api")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate feature id")
}

func TestOrderEmptySet(t *testing.T) {
	groups, err := Order(nil)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Empty(t, groups[0])
}

func TestDescribe(t *testing.T) {
	groups := []Group{{"auth", "db"}, {"api"}}
	assert.Equal(t, "[auth, db] -> [api]", Describe(groups))
}
