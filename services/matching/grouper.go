package matching

import (
	"sort"
	"time"

	"go.uber.org/zap"

	"dealsync/services/license"
)

// RelatedLicenseSet is one inferred customer timeline for one product:
// licenses (with their transactions) believed to belong to a single
// customer's continuous relationship. Immutable once built.
type RelatedLicenseSet struct {
	Licenses []*license.License
}

// Start is the earliest maintenance start in the set.
func (s *RelatedLicenseSet) Start() time.Time {
	if len(s.Licenses) == 0 {
		return time.Time{}
	}
	return s.Licenses[0].MaintenanceStart
}

// Grouper partitions a run's licenses into RelatedLicenseSets.
type Grouper struct {
	matcher       *Matcher
	massProviders map[string]bool
}

func NewGrouper(matcher *Matcher, massProviders map[string]bool) *Grouper {
	return &Grouper{matcher: matcher, massProviders: massProviders}
}

type bucketKey struct {
	product string
	hosting license.HostingType
}

type group struct {
	members []*license.License
}

// Group buckets licenses by (product, hosting), runs the matcher over every
// unordered pair within a bucket and unions positive matches. Licenses linked
// by an evaluated-from chain are unioned regardless of score: trial-to-
// purchase continuity is a known-true relationship, not an inferred one.
func (g *Grouper) Group(licenses []*license.License, idx *license.Index) []*RelatedLicenseSet {
	started := time.Now()

	groupOf := make(map[*license.License]*group, len(licenses))
	for _, l := range licenses {
		groupOf[l] = &group{members: []*license.License{l}}
	}

	buckets := make(map[bucketKey][]*license.License)
	for _, l := range licenses {
		key := bucketKey{product: l.ProductKey, hosting: l.Hosting}
		buckets[key] = append(buckets[key], l)
	}

	pairs := 0
	for _, bucket := range buckets {
		projections := make([]*Projection, len(bucket))
		for i, l := range bucket {
			projections[i] = Project(l, g.massProviders)
		}

		for i := 0; i < len(bucket); i++ {
			for j := i + 1; j < len(bucket); j++ {
				pairs++
				if g.matcher.SimilarEnough(projections[i], projections[j]) {
					union(groupOf, bucket[i], bucket[j])
				}
			}
		}
	}

	for _, l := range licenses {
		if from := idx.EvaluatedFrom(l); from != nil {
			union(groupOf, l, from)
		}
	}

	seen := make(map[*group]bool, len(licenses))
	sets := make([]*RelatedLicenseSet, 0, len(licenses))
	for _, l := range licenses {
		grp := groupOf[l]
		if seen[grp] {
			continue
		}
		seen[grp] = true

		members := append([]*license.License(nil), grp.members...)
		sort.SliceStable(members, func(i, j int) bool {
			if !members[i].MaintenanceStart.Equal(members[j].MaintenanceStart) {
				return members[i].MaintenanceStart.Before(members[j].MaintenanceStart)
			}
			return members[i].IDs.Primary() < members[j].IDs.Primary()
		})
		sets = append(sets, &RelatedLicenseSet{Licenses: members})
	}

	sort.SliceStable(sets, func(i, j int) bool {
		if !sets[i].Start().Equal(sets[j].Start()) {
			return sets[i].Start().Before(sets[j].Start())
		}
		return sets[i].Licenses[0].IDs.Primary() < sets[j].Licenses[0].IDs.Primary()
	})

	zap.L().Debug("license grouping finished",
		zap.Int("licenses", len(licenses)),
		zap.Int("buckets", len(buckets)),
		zap.Int("pairs_compared", pairs),
		zap.Int("groups", len(sets)),
		zap.Duration("elapsed", time.Since(started)),
	)

	return sets
}

// union merges the groups of a and b, repointing every member of the smaller
// group at the combined one. Bucket sizes are modest, so set-based merging
// beats a ranked union-find in simplicity without hurting in practice.
func union(groupOf map[*license.License]*group, a, b *license.License) {
	ga, gb := groupOf[a], groupOf[b]
	if ga == gb {
		return
	}
	if len(ga.members) < len(gb.members) {
		ga, gb = gb, ga
	}
	for _, member := range gb.members {
		groupOf[member] = ga
	}
	ga.members = append(ga.members, gb.members...)
}
