package license

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAliasIDs(t *testing.T) {
	a := AliasIDs{EntitlementID: "E-1", LegacyLicenseID: "L-1"}

	require.Equal(t, []string{"E-1", "L-1"}, a.All())
	require.Equal(t, "E-1", a.Primary())
	require.False(t, a.Empty())

	require.True(t, a.Overlaps(AliasIDs{HostLicenseID: "L-1"}))
	require.False(t, a.Overlaps(AliasIDs{EntitlementID: "E-2"}))

	var empty AliasIDs
	require.True(t, empty.Empty())
	require.Empty(t, empty.Primary())
	require.False(t, empty.Overlaps(a))
}

func TestContactEmailParts(t *testing.T) {
	c := &Contact{Email: "Jordan.Smith@Example.COM"}
	require.Equal(t, "example.com", c.Domain())
	require.Equal(t, "jordan.smith", c.LocalPart())

	require.Empty(t, (&Contact{Email: "not-an-email"}).Domain())
	require.Empty(t, (&Contact{Email: "trailing@"}).Domain())
	require.Empty(t, (&Contact{Email: "@nolocal.com"}).LocalPart())

	var nilContact *Contact
	require.Empty(t, nilContact.Domain())
	require.Empty(t, nilContact.LocalPart())
}

func TestTypeEvaluation(t *testing.T) {
	require.True(t, TypeEvaluation.Evaluation())
	require.True(t, TypeOpenSource.Evaluation())
	require.False(t, TypeCommercial.Evaluation())
	require.False(t, TypeAcademic.Evaluation())
}

func TestHasNewSale(t *testing.T) {
	l := &License{Transactions: []*Transaction{
		{SaleType: SaleRenewal},
		{SaleType: SaleNew},
	}}
	require.True(t, l.HasNewSale())

	l = &License{Transactions: []*Transaction{{SaleType: SaleUpgrade}}}
	require.False(t, l.HasNewSale())

	require.False(t, (&License{}).HasNewSale())
}

func TestSameDay(t *testing.T) {
	morning := time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC)
	evening := time.Date(2024, 3, 10, 23, 30, 0, 0, time.UTC)
	nextDay := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)

	require.True(t, SameDay(morning, evening))
	require.False(t, SameDay(evening, nextDay))
}
