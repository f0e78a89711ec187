package license

import (
	"testing"

	"github.com/stretchr/testify/require"

	"dealsync/pkg/errutil"
)

func TestIndexResolvesAnyAlias(t *testing.T) {
	l := &License{IDs: AliasIDs{EntitlementID: "E-1", HostLicenseID: "H-1", LegacyLicenseID: "L-1"}}

	idx, err := NewIndex([]*License{l})
	require.NoError(t, err)

	require.Same(t, l, idx.ByAlias("E-1"))
	require.Same(t, l, idx.ByAlias("H-1"))
	require.Same(t, l, idx.ByAlias("L-1"))
	require.Nil(t, idx.ByAlias("unknown"))
	require.Nil(t, idx.ByAlias(""))
}

func TestIndexRejectsConflictingAliases(t *testing.T) {
	a := &License{IDs: AliasIDs{EntitlementID: "E-1"}}
	b := &License{IDs: AliasIDs{HostLicenseID: "E-1"}}

	_, err := NewIndex([]*License{a, b})
	require.Error(t, err)
	require.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))
}

func TestIndexEvaluatedFrom(t *testing.T) {
	eval := &License{IDs: AliasIDs{EntitlementID: "E-EVAL"}, Type: TypeEvaluation}
	paid := &License{IDs: AliasIDs{EntitlementID: "E-PAID"}, EvaluatedFromID: "E-EVAL"}

	idx, err := NewIndex([]*License{eval, paid})
	require.NoError(t, err)

	require.Same(t, eval, idx.EvaluatedFrom(paid))
	require.Nil(t, idx.EvaluatedFrom(eval))
}
