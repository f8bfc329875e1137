// Copyright (c) 2025 FeatureForge Contributors
//
// This software is released under the MIT License.
// See LICENSE file in the repository for details.

package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseNumberedPlan(t *testing.T) {
	plan := `
1. User authentication
   Description: login and session handling
2. Profile API (depends on: 1)
   Description: REST endpoints for user profiles
3. Admin dashboard (depends on: 1, 2)
`
	features, err := NewParser().Parse(plan)
	require.NoError(t, err)
	require.Len(t, features, 3)

	assert.Equal(t, "user-authentication", features[0].ID)
	assert.Equal(t, "User authentication", features[0].Title)
	assert.Equal(t, "login and session handling", features[0].Description)
	assert.Empty(t, features[0].Dependencies)

	assert.Equal(t, "profile-api", features[1].ID)
	assert.Equal(t, []string{"user-authentication"}, features[1].Dependencies)

	assert.Equal(t, []string{"user-authentication", "profile-api"}, features[2].Dependencies)
	assert.Equal(t, "Admin dashboard", features[2].Description, "title stands in for a missing description")
}

func TestParseBulletedPlan(t *testing.T) {
	plan := `
- User authentication
* Profile API
`
	features, err := NewParser().Parse(plan)
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Equal(t, "user-authentication", features[0].ID)
	assert.Equal(t, "profile-api", features[1].ID)
}

func TestParseSkipsCommentsAndBlankLines(t *testing.T) {
	plan := `
# sprint 14 plan

1. User authentication

# the next one needs auth
2. Profile API (depends on: 1)
`
	features, err := NewParser().Parse(plan)
	require.NoError(t, err)
	assert.Len(t, features, 2)
}

func TestParseDuplicateTitlesGetDistinctIDs(t *testing.T) {
	plan := `
1. Search
2. Search
3. Search
`
	features, err := NewParser().Parse(plan)
	require.NoError(t, err)
	require.Len(t, features, 3)

	assert.Equal(t, "search", features[0].ID)
	assert.Equal(t, "search-2", features[1].ID)
	assert.Equal(t, "search-3", features[2].ID)
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		name    string
		plan    string
		wantErr string
	}{
		{"empty", "   \n\t", "empty plan"},
		{"no items", "just prose, no list", "no recognizable items"},
		{"unknown dependency", "1. API (depends on: 9)", "unknown plan item 9"},
		{"self dependency", "1. API (depends on: 1)", "depends on itself"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewParser().Parse(tc.plan)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestSlugify(t *testing.T) {
	testCases := []struct {
		title string
		want  string
	}{
		{"User Authentication", "user-authentication"},
		{"REST API (v2)", "rest-api-v2"},
		{"  spaces  everywhere  ", "spaces-everywhere"},
		{"***", "feature"},
	}
	for _, tc := range testCases {
		assert.Equal(t, tc.want, slugify(tc.title))
	}
}
