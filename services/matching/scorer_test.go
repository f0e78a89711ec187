package matching

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScoreBlankValues(t *testing.T) {
	s := NewScorer()

	require.Zero(t, s.Score("", "acme gmbh"))
	require.Zero(t, s.Score("acme gmbh", ""))
	require.Zero(t, s.Score("", ""))
}

func TestScoreIdenticalAndSymmetric(t *testing.T) {
	s := NewScorer()

	require.Equal(t, 1.0, s.Score("acme gmbh", "acme gmbh"))

	a, b := "initech corporation", "initech corp"
	require.Equal(t, s.Score(a, b), s.Score(b, a))
	require.Greater(t, s.Score(a, b), 0.5)
}

func TestScoreAtLeastCutsOff(t *testing.T) {
	s := NewScorer()

	require.Zero(t, s.ScoreAtLeast("alpha", "omega", 0.90))
	require.Equal(t, 1.0, s.ScoreAtLeast("alpha", "alpha", 0.90))
}
