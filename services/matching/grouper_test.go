package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"dealsync/services/license"
)

func testGrouper() *Grouper {
	return NewGrouper(testMatcher(), map[string]bool{"gmail.com": true})
}

func customerLicense(alias, product string, hosting license.HostingType, start time.Time, fn func(l *license.License)) *license.License {
	l := &license.License{
		IDs:              license.AliasIDs{EntitlementID: alias},
		ProductKey:       product,
		Hosting:          hosting,
		Status:           license.StatusActive,
		Type:             license.TypeCommercial,
		MaintenanceStart: start,
		MaintenanceEnd:   start.AddDate(1, 0, 0),
		CompanyName:      "Acme GmbH",
		TechContact: &license.Contact{
			Email:   "it@acme.example",
			Address: "12 harbour st, sydney",
		},
	}
	if fn != nil {
		fn(l)
	}
	return l
}

func mustIndex(t *testing.T, licenses []*license.License) *license.Index {
	t.Helper()
	idx, err := license.NewIndex(licenses)
	require.NoError(t, err)
	return idx
}

func TestGroupTransitiveMatches(t *testing.T) {
	// a matches b, b matches c; all three land in one set even if a and c
	// drifted too far apart to match directly.
	a := customerLicense("E-1", "scheduler", license.Server, day(2024, 1, 1), nil)
	b := customerLicense("E-2", "scheduler", license.Server, day(2024, 3, 1), nil)
	c := customerLicense("E-3", "scheduler", license.Server, day(2024, 5, 1), func(l *license.License) {
		l.TechContact.Address = ""
		l.TechContact.Email = "it@acme.example"
		l.CompanyName = "Acme GmbH"
		l.TechContact.ID = "contact-9"
	})
	b.TechContact.ID = "contact-9"

	licenses := []*license.License{c, a, b}
	sets := testGrouper().Group(licenses, mustIndex(t, licenses))

	require.Len(t, sets, 1)
	require.Len(t, sets[0].Licenses, 3)
}

func TestGroupBucketsByProductAndHosting(t *testing.T) {
	// Identical customer details never group across product or hosting.
	a := customerLicense("E-1", "scheduler", license.Server, day(2024, 1, 1), nil)
	b := customerLicense("E-2", "reports", license.Server, day(2024, 1, 1), nil)
	c := customerLicense("E-3", "scheduler", license.Cloud, day(2024, 1, 1), nil)

	licenses := []*license.License{a, b, c}
	sets := testGrouper().Group(licenses, mustIndex(t, licenses))

	require.Len(t, sets, 3)
}

func TestGroupForcesEvaluatedFromChain(t *testing.T) {
	// The purchased license shares nothing textual with its trial, but the
	// evaluated-from link makes the relationship known-true.
	eval := customerLicense("E-EVAL", "scheduler", license.Server, day(2024, 1, 1), func(l *license.License) {
		l.Type = license.TypeEvaluation
		l.CompanyName = "trial signup"
		l.TechContact = &license.Contact{Email: "someone@gmail.com"}
	})
	paid := customerLicense("E-PAID", "scheduler", license.Server, day(2024, 2, 1), func(l *license.License) {
		l.EvaluatedFromID = "E-EVAL"
	})

	licenses := []*license.License{paid, eval}
	sets := testGrouper().Group(licenses, mustIndex(t, licenses))

	require.Len(t, sets, 1)
	require.Len(t, sets[0].Licenses, 2)
	// Members come out ordered by maintenance start.
	require.Equal(t, "E-EVAL", sets[0].Licenses[0].IDs.Primary())
	require.Equal(t, "E-PAID", sets[0].Licenses[1].IDs.Primary())
}

func TestGroupOutputOrderIsDeterministic(t *testing.T) {
	a := customerLicense("E-1", "scheduler", license.Server, day(2024, 1, 1), func(l *license.License) {
		l.CompanyName = "First Corp"
		l.TechContact = &license.Contact{Email: "it@first.example"}
	})
	b := customerLicense("E-2", "scheduler", license.Server, day(2024, 6, 1), func(l *license.License) {
		l.CompanyName = "Second Corp"
		l.TechContact = &license.Contact{Email: "it@second.example"}
	})

	forward := testGrouper().Group([]*license.License{a, b}, mustIndex(t, []*license.License{a, b}))
	reverse := testGrouper().Group([]*license.License{b, a}, mustIndex(t, []*license.License{b, a}))

	require.Len(t, forward, 2)
	require.Len(t, reverse, 2)
	require.Equal(t, forward[0].Licenses[0].IDs.Primary(), reverse[0].Licenses[0].IDs.Primary())
	require.Equal(t, forward[1].Licenses[0].IDs.Primary(), reverse[1].Licenses[0].IDs.Primary())
}
