package matching

import (
	"math"
	"time"
)

// DefaultThreshold is the accumulated score two licenses must reach to be
// considered the same customer when no contact identity links them.
const DefaultThreshold = 130

// DefaultDateWindow is the maximum gap between two maintenance windows before
// a pair is rejected without scoring.
const DefaultDateWindow = 90 * 24 * time.Hour

type scoredField struct {
	name     string
	weight   int
	minRatio float64
	value    func(*Projection) string
}

// Field order is fixed so scoring never depends on argument order.
var scoredFields = []scoredField{
	{"address", 80, 0.90, func(p *Projection) string { return p.Address }},
	{"company_name", 80, 0.90, func(p *Projection) string { return p.CompanyName }},
	{"company_domain", 30, 0.80, func(p *Projection) string { return p.CompanyDomain }},
	{"email_local_part", 30, 0.80, func(p *Projection) string { return p.EmailLocalPart }},
	{"contact_name", 30, 0.70, func(p *Projection) string { return p.ContactName }},
	{"phone", 30, 0.90, func(p *Projection) string { return p.Phone }},
}

var totalFieldWeight = func() int {
	total := 0
	for _, f := range scoredFields {
		total += f.weight
	}
	return total
}()

// Matcher decides whether two license projections belong to the same
// customer. Pairwise use is O(n^2) per product bucket, so it exits as early
// as the accumulated score allows in either direction.
type Matcher struct {
	scorer    *Scorer
	threshold int
	window    time.Duration

	// OnField, when set, observes each scored field. Diagnostics only.
	OnField func(field string, ratio float64, running int)
}

func NewMatcher(scorer *Scorer, threshold int, window time.Duration) *Matcher {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	if window <= 0 {
		window = DefaultDateWindow
	}
	return &Matcher{scorer: scorer, threshold: threshold, window: window}
}

// SimilarEnough is deterministic and symmetric: the same fields are compared
// in the same order regardless of argument order, and every field comparison
// is itself symmetric.
func (m *Matcher) SimilarEnough(a, b *Projection) bool {
	// Maintenance windows further apart than the window, in either
	// direction, cannot be the same customer timeline.
	if a.Start.After(b.End.Add(m.window)) || b.Start.After(a.End.Add(m.window)) {
		return false
	}

	// Shared resolved contact identity settles it without scoring. Identity
	// means the same underlying contact entity, not equal email strings.
	if a.TechContactID != "" &&
		(a.TechContactID == b.TechContactID || a.TechContactID == b.BillingContactID) {
		return true
	}
	if a.BillingContactID != "" &&
		(a.BillingContactID == b.BillingContactID || a.BillingContactID == b.TechContactID) {
		return true
	}

	score := 0
	remaining := totalFieldWeight
	for _, f := range scoredFields {
		remaining -= f.weight

		ratio := m.scorer.ScoreAtLeast(f.value(a), f.value(b), f.minRatio)
		if ratio > 0 {
			score += int(math.Round(float64(f.weight) * ratio))
		}
		if m.OnField != nil {
			m.OnField(f.name, ratio, score)
		}

		if score >= m.threshold {
			return true
		}
		if score+remaining < m.threshold {
			return false
		}
	}

	return score >= m.threshold
}
