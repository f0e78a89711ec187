package reconcile

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"dealsync/pkg/config"
	"dealsync/pkg/errutil"
	"dealsync/services/deal"
	"dealsync/services/license"
	"dealsync/services/matching"
	"dealsync/services/testutil"
	"dealsync/services/timeline"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newTestService(t *testing.T, source Source) *Service {
	t.Helper()

	db := testutil.NewTestDB(t)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	catalog := license.NewCatalogFromProducts(
		config.ProductConfig{Key: "scheduler", Platform: "Jira"},
		config.ProductConfig{Key: "old-reports", Platform: "Jira", Archived: true},
	)
	partners := map[string]bool{"partner.example": true}
	mass := map[string]bool{"gmail.com": true}

	matcher := matching.NewMatcher(matching.NewScorer(), matching.DefaultThreshold, matching.DefaultDateWindow)

	svc := NewService(ServiceParams{
		DB:        db,
		Node:      node,
		Config:    cfg,
		Source:    source,
		Grouper:   matching.NewGrouper(matcher, mass),
		Events:    timeline.NewGenerator(catalog, partners, mass),
		Generator: deal.NewGenerator(node, catalog, ""),
		Store:     deal.NewStore(db),
	})
	require.NoError(t, svc.Migrate())
	return svc
}

func commercial(alias string, start time.Time, txns ...*license.Transaction) *license.License {
	return &license.License{
		IDs:              license.AliasIDs{EntitlementID: alias},
		ProductKey:       "scheduler",
		Hosting:          license.Server,
		Status:           license.StatusActive,
		Type:             license.TypeCommercial,
		MaintenanceStart: start,
		MaintenanceEnd:   start.AddDate(1, 0, 0),
		TierRaw:          "50 Users",
		CompanyName:      "Acme GmbH",
		Country:          "DE",
		TechContact:      &license.Contact{Email: "it@acme.example"},
		Transactions:     txns,
	}
}

func TestRunLicenseOnlyPurchase(t *testing.T) {
	l := commercial("E-1", day(2024, 1, 15))

	svc := newTestService(t, StaticSource{l})

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Created)
	require.Zero(t, report.Faults)

	deals, err := svc.store.All(context.Background())
	require.NoError(t, err)
	require.Len(t, deals, 1)

	// A paid license with no transaction history is still a won deal; the
	// close date falls back to the maintenance start and no revenue is known.
	props := deals[0].Current()
	require.Equal(t, deal.StageClosedWon, props.Stage)
	require.Zero(t, props.Amount)
	require.Equal(t, "2024-01-15", props.CloseDate)
	require.Empty(t, props.SaleType)
	require.Equal(t, []string{"E-1"}, props.AliasIDs)
}

func TestRunEvalThenUpgradeAndRenewalCreatesThreeDeals(t *testing.T) {
	upgrade := &license.Transaction{
		IDs:          license.AliasIDs{EntitlementID: "T-UP"},
		SaleType:     license.SaleUpgrade,
		SaleDate:     day(2024, 3, 1),
		VendorAmount: 300,
	}
	renewal := &license.Transaction{
		IDs:          license.AliasIDs{EntitlementID: "T-REN"},
		SaleType:     license.SaleRenewal,
		SaleDate:     day(2025, 3, 1),
		VendorAmount: 400,
	}

	eval := commercial("E-EVAL", day(2024, 1, 1))
	eval.Type = license.TypeEvaluation
	paid := commercial("E-PAID", day(2024, 2, 1), upgrade, renewal)
	paid.EvaluatedFromID = "E-EVAL"

	svc := newTestService(t, StaticSource{eval, paid})

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, report.Groups)
	require.Equal(t, 3, report.Created)
	require.Zero(t, report.Updated)
	require.Zero(t, report.Faults)

	deals, err := svc.store.All(context.Background())
	require.NoError(t, err)
	require.Len(t, deals, 3)

	// One deal per event: the eval-merged license purchase plus one per
	// transaction, each carrying its own vendor amount.
	amounts := make(map[float64]deal.Stage, len(deals))
	for _, d := range deals {
		amounts[d.Current().Amount] = d.Current().Stage
	}
	require.Equal(t, map[float64]deal.Stage{
		0:   deal.StageClosedWon,
		300: deal.StageClosedWon,
		400: deal.StageClosedWon,
	}, amounts)
}

func TestRunCreatesDealFromEvalToPurchaseChain(t *testing.T) {
	sale := &license.Transaction{
		IDs:          license.AliasIDs{EntitlementID: "T-1"},
		SaleType:     license.SaleNew,
		SaleDate:     day(2024, 2, 1),
		VendorAmount: 500,
	}
	eval := commercial("E-EVAL", day(2024, 1, 1))
	eval.Type = license.TypeEvaluation
	paid := commercial("E-PAID", day(2024, 2, 1), sale)
	paid.EvaluatedFromID = "E-EVAL"

	svc := newTestService(t, StaticSource{eval, paid})

	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	require.Equal(t, 2, report.Licenses)
	require.Equal(t, 1, report.Groups)
	require.Equal(t, 1, report.Created)
	require.Zero(t, report.Updated)
	require.Zero(t, report.Faults)

	deals, err := svc.store.All(context.Background())
	require.NoError(t, err)
	require.Len(t, deals, 1)

	props := deals[0].Current()
	require.Equal(t, deal.StageClosedWon, props.Stage)
	require.Equal(t, 500.0, props.Amount)
	require.Equal(t, []string{"T-1"}, props.AliasIDs)
}

func TestRunIsIdempotent(t *testing.T) {
	sale := &license.Transaction{
		IDs:          license.AliasIDs{EntitlementID: "T-1"},
		SaleType:     license.SaleNew,
		SaleDate:     day(2024, 2, 1),
		VendorAmount: 500,
	}
	paid := commercial("E-PAID", day(2024, 2, 1), sale)

	svc := newTestService(t, StaticSource{paid})

	first, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, first.Created)

	second, err := svc.Run(context.Background())
	require.NoError(t, err)
	require.Zero(t, second.Created)
	require.Zero(t, second.Updated)
	require.Equal(t, 1, second.Noops)

	deals, err := svc.store.All(context.Background())
	require.NoError(t, err)
	require.Len(t, deals, 1)

	latest, err := svc.LatestReport(context.Background())
	require.NoError(t, err)
	require.Equal(t, second.ID, latest.ID)
}

func TestRunLedgersIgnoredMassProviderRevenue(t *testing.T) {
	sale := &license.Transaction{
		IDs:          license.AliasIDs{EntitlementID: "T-1"},
		SaleType:     license.SaleNew,
		SaleDate:     day(2024, 2, 1),
		VendorAmount: 750,
	}
	l := commercial("E-1", day(2024, 2, 1), sale)
	l.TechContact = &license.Contact{Email: "someone@gmail.com"}

	svc := newTestService(t, StaticSource{l})

	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	require.Zero(t, report.Created)
	require.Equal(t, 1, report.Noops)
	require.Equal(t, 750.0, report.Ignored()[timeline.TagMassProviderOnly])

	deals, err := svc.store.All(context.Background())
	require.NoError(t, err)
	require.Empty(t, deals)
}

func TestRunIsolatesGroupFaults(t *testing.T) {
	broken := commercial("E-BAD", day(2024, 2, 1), &license.Transaction{
		IDs:      license.AliasIDs{EntitlementID: "T-BAD"},
		SaleType: license.SaleNew,
		SaleDate: day(2024, 2, 1),
	})
	broken.ProductKey = "unmapped-product"
	broken.CompanyName = "Broken Corp"
	broken.TechContact = &license.Contact{Email: "it@broken.example"}

	healthy := commercial("E-OK", day(2024, 3, 1), &license.Transaction{
		IDs:          license.AliasIDs{EntitlementID: "T-OK"},
		SaleType:     license.SaleNew,
		SaleDate:     day(2024, 3, 1),
		VendorAmount: 100,
	})

	svc := newTestService(t, StaticSource{broken, healthy})

	report, err := svc.Run(context.Background())
	require.NoError(t, err)

	// The misconfigured group is counted as a fault; the healthy one lands.
	require.Equal(t, 1, report.Faults)
	require.Equal(t, 1, report.Created)
}

func TestRunRejectsConflictingAliases(t *testing.T) {
	a := commercial("E-1", day(2024, 1, 1))
	b := commercial("E-2", day(2024, 1, 1))
	b.IDs.HostLicenseID = "E-1"

	svc := newTestService(t, StaticSource{a, b})

	_, err := svc.Run(context.Background())
	require.Error(t, err)
	require.Equal(t, errutil.StatusValidationFailed, errutil.StatusOf(err))
}

func TestApplyKeepsSameDealWritesOrdered(t *testing.T) {
	svc := newTestService(t, StaticSource{})

	d := &deal.Deal{ID: 201}
	d.SetProperties(deal.Properties{Stage: deal.StageClosedWon, Amount: 100, AliasIDs: []string{"T-1"}})

	// Three actions against one deal pointer, as happens when a deal's alias
	// set spans groups; they must land sequentially and leave the snapshot
	// consistent with the live properties.
	actions := []deal.Action{
		deal.Create{Deal: d},
		deal.Update{Deal: d},
		deal.Update{Deal: d},
	}
	require.NoError(t, svc.apply(context.Background(), actions))

	deals, err := svc.store.All(context.Background())
	require.NoError(t, err)
	require.Len(t, deals, 1)
	require.Equal(t, 100.0, deals[0].Amount)
	require.Empty(t, deal.Diff(deals[0].Synced(), deals[0].Current()))
}

func TestFileSource(t *testing.T) {
	licenses := []*license.License{commercial("E-1", day(2024, 1, 1))}
	raw, err := json.Marshal(licenses)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "licenses.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	src := &FileSource{Path: path}
	loaded, err := src.Licenses(context.Background())
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	require.Equal(t, "E-1", loaded[0].IDs.Primary())
	require.Equal(t, "scheduler", loaded[0].ProductKey)
}

func TestFileSourceWithoutPath(t *testing.T) {
	src := &FileSource{}
	_, err := src.Licenses(context.Background())
	require.Error(t, err)
	require.Equal(t, errutil.StatusConfigMissing, errutil.StatusOf(err))
}
