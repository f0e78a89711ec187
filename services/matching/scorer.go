package matching

import (
	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
)

// Scorer rates the textual closeness of two field values as a ratio in [0,1].
// Blank values score 0; callers normalize blanks away before scoring, so the
// both-blank case never reaches a comparison that matters.
type Scorer struct {
	metric *metrics.Levenshtein
}

func NewScorer() *Scorer {
	return &Scorer{metric: metrics.NewLevenshtein()}
}

func (s *Scorer) Score(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	return strutil.Similarity(a, b, s.metric)
}

// ScoreAtLeast returns the ratio when it clears min, otherwise 0. Fields
// below their minimum acceptable ratio contribute nothing to a match score.
func (s *Scorer) ScoreAtLeast(a, b string, min float64) float64 {
	ratio := s.Score(a, b)
	if ratio < min {
		return 0
	}
	return ratio
}
