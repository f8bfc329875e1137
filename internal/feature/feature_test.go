package feature

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPhaseTerminal(t *testing.T) {
	terminal := []Phase{PhaseGreen, PhaseFailed, PhaseBlocked, PhaseCancelled}
	for _, p := range terminal {
		assert.True(t, p.Terminal(), "%s should be terminal", p)
	}
	for _, p := range []Phase{PhasePending, PhaseRed, PhaseYellow} {
		assert.False(t, p.Terminal(), "%s should not be terminal", p)
	}
}

func TestSetArtifactImmutable(t *testing.T) {
	f := New("auth", "Authentication", "login", nil)

	require.NoError(t, f.SetArtifact(ArtifactTests, "v1"))
	err := f.SetArtifact(ArtifactTests, "v2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `artifact "tests" for feature auth already set`)
	assert.Equal(t, "v1", f.Artifacts[ArtifactTests])
}

func TestRecordAppends(t *testing.T) {
	f := New("auth", "Authentication", "login", nil)
	f.Record(PhaseRed, OutcomeEntered, "")
	f.Record(PhaseRed, OutcomeRetried, "tests did not fail")

	require.Len(t, f.History, 2)
	assert.Equal(t, OutcomeEntered, f.History[0].Outcome)
	assert.Equal(t, "tests did not fail", f.History[1].Detail)
	assert.False(t, f.History[0].Timestamp.IsZero())
}

func TestNormalizeFillsZeroValues(t *testing.T) {
	f := &Feature{ID: "auth", Title: "Authentication"}
	f.Normalize()

	assert.Equal(t, PhasePending, f.Phase)
	assert.NotNil(t, f.Artifacts)
	assert.NotNil(t, f.Metrics.PhaseDurations)
}

const sampleManifest = `
features:
  - id: auth
    title: Authentication
    description: user login with sessions
  - id: api
    title: REST API
    description: JSON endpoints over auth
    depends_on: [auth]
`

func TestParseManifest(t *testing.T) {
	features, err := ParseManifest([]byte(sampleManifest))
	require.NoError(t, err)
	require.Len(t, features, 2)

	assert.Equal(t, "auth", features[0].ID)
	assert.Equal(t, PhasePending, features[0].Phase, "parsed features arrive normalized")
	assert.Equal(t, []string{"auth"}, features[1].Dependencies)
}

func TestParseManifestErrors(t *testing.T) {
	testCases := []struct {
		name    string
		input   string
		wantErr string
	}{
		{"empty", "features: []", "no features"},
		{"not yaml", ":\n:::", "failed to parse"},
		{"missing id", "features:\n  - title: x", "empty id"},
		{"duplicate id", "features:\n  - id: a\n  - id: a", `duplicate feature id "a"`},
		{"unknown dep", "features:\n  - id: a\n    depends_on: [ghost]", `unknown feature "ghost"`},
		{"self dep", "features:\n  - id: a\n    depends_on: [a]", "depends on itself"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseManifest([]byte(tc.input))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestLoadManifest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "features.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleManifest), 0o644))

	features, err := LoadManifest(path)
	require.NoError(t, err)
	assert.Len(t, features, 2)

	_, err = LoadManifest(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
