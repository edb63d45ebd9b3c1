package version

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMaxSatisfying(t *testing.T) {
	testCases := []struct {
		name       string
		rng        string
		candidates []string
		expected   string
		found      bool
	}{
		{
			name:       "empty version or latest keyword returns highest",
			rng:        "",
			candidates: []string{"1.0.0", "1.1.0", "2.0.0"},
			expected:   "2.0.0",
			found:      true,
		},
		{
			name:       "latest tag normalizes to wildcard",
			rng:        "latest",
			candidates: []string{"1.0.0", "1.5.0", "2.3.1"},
			expected:   "2.3.1",
			found:      true,
		},
		{
			name:       "caret allows minor and patch updates within major",
			rng:        "^1.2.3",
			candidates: []string{"1.0.0", "1.2.3", "1.2.5", "1.3.0", "1.9.9", "2.0.0"},
			expected:   "1.9.9",
			found:      true,
		},
		{
			name:       "caret with major version 0 restricts to patch only",
			rng:        "^0.2.3",
			candidates: []string{"0.1.0", "0.2.3", "0.2.5", "0.3.0", "1.0.0"},
			expected:   "0.2.5",
			found:      true,
		},
		{
			name:       "tilde allows patch updates only",
			rng:        "~1.2.3",
			candidates: []string{"1.0.0", "1.2.3", "1.2.5", "1.2.9", "1.3.0"},
			expected:   "1.2.9",
			found:      true,
		},
		{
			name:       "caret 7.0.0 does not match 8.x",
			rng:        "^7.0.0",
			candidates: []string{"6.0.0", "7.0.0", "7.1.0", "8.0.0", "8.1.0"},
			expected:   "7.1.0",
			found:      true,
		},
		{
			name:       "wildcard x matches latest",
			rng:        "*",
			candidates: []string{"1.0.0", "2.0.0", "3.0.0"},
			expected:   "3.0.0",
			found:      true,
		},
		{
			name:       "no candidate satisfies the range",
			rng:        "^5.0.0",
			candidates: []string{"1.0.0", "2.0.0", "3.0.0"},
			expected:   "",
			found:      false,
		},
		{
			name:       "empty candidate set yields none",
			rng:        "^1.0.0",
			candidates: nil,
			expected:   "",
			found:      false,
		},
		{
			name:       "malformed candidate is skipped, not fatal",
			rng:        "*",
			candidates: []string{"not-a-version", "1.0.0", "2.0.0"},
			expected:   "2.0.0",
			found:      true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, found, err := MaxSatisfying(tc.candidates, tc.rng)
			require.NoError(t, err)
			assert.Equal(t, tc.found, found)
			assert.Equal(t, tc.expected, got)
		})
	}
}

func TestMaxSatisfyingUnparseableRange(t *testing.T) {
	_, _, err := MaxSatisfying([]string{"1.0.0"}, "not a range $$$")
	require.Error(t, err)
}

func TestSatisfies(t *testing.T) {
	ok, err := Satisfies("1.2.5", "^1.2.0")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = Satisfies("2.0.0", "^1.2.0")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = Satisfies("1.0.0", "latest")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSatisfiesUnparseableInputs(t *testing.T) {
	_, err := Satisfies("not-a-version", "^1.0.0")
	require.Error(t, err)

	_, err = Satisfies("1.0.0", "not a range $$$")
	require.Error(t, err)
}
