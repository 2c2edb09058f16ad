package similarity_test

import (
	"strings"
	"testing"

	"github.com/Bitfy-AI/docs-jana-sub007/pkg/similarity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDistance(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		a, b     string
		expected int
	}{
		{name: "equal strings", a: "workflow", b: "workflow", expected: 0},
		{name: "empty left", a: "", b: "abc", expected: 3},
		{name: "empty right", a: "abcd", b: "", expected: 4},
		{name: "both empty", a: "", b: "", expected: 0},
		{name: "substitution", a: "kitten", b: "sitten", expected: 1},
		{name: "classic", a: "kitten", b: "sitting", expected: 3},
		{name: "insertion", a: "flow", b: "flows", expected: 1},
		{name: "multibyte", a: "ação", b: "acao", expected: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, similarity.Distance(tt.a, tt.b))
		})
	}
}

func TestSimilarity(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"", "a", "Sync Orders", "  padded  ", "ação"} {
		assert.InDelta(t, 1.0, similarity.Similarity(s, s), 1e-9, "self similarity of %q", s)
		assert.Equal(t, len([]rune(s)), similarity.Distance(s, ""))
	}

	assert.InDelta(t, 1.0, similarity.Similarity("Orders Sync", "orders sync"), 1e-9)
	assert.InDelta(t, 1.0, similarity.Similarity(" orders ", "orders"), 1e-9)
	assert.InDelta(t, 0.0, similarity.Similarity("abc", ""), 1e-9)
	assert.InDelta(t, 1-1.0/6.0, similarity.Similarity("kitten", "sitten"), 1e-9)

	caseSensitive := similarity.Similarity("ABCD", "abcd", similarity.CaseSensitive())
	assert.InDelta(t, 0.0, caseSensitive, 1e-9)

	long := strings.Repeat("x", 40)
	assert.Greater(t, similarity.Similarity(long, long+"y"), 0.97)
}

func TestScore(t *testing.T) {
	t.Parallel()

	score, err := similarity.Score("flow", "flow")
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)

	_, err = similarity.Score(42, "flow")
	require.ErrorIs(t, err, similarity.ErrInvalidArgument)

	_, err = similarity.Score("flow", nil)
	require.ErrorIs(t, err, similarity.ErrInvalidArgument)
}
