package license

import (
	"math"
	"strings"
)

// TierUnlimited is the parsed value for unlimited-seat tiers. It compares
// greater than any concrete seat count so max() keeps it.
const TierUnlimited = math.MaxInt32

// ParseTier extracts the numeric seat count from a free-text tier field.
// Marketplace tiers look like "50 Users", "10000+ users", "Unlimited Users"
// or "Evaluation". Unparseable tiers yield 0.
func ParseTier(raw string) int {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return 0
	}
	if strings.Contains(raw, "unlimited") {
		return TierUnlimited
	}

	n := 0
	seen := false
	for _, r := range raw {
		if r < '0' || r > '9' {
			break
		}
		n = n*10 + int(r-'0')
		seen = true
	}
	if !seen {
		return 0
	}
	return n
}
