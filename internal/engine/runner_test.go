package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Greggwolin/landscape-sub017/pkg/depgraph"
	"github.com/Greggwolin/landscape-sub017/pkg/model"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

// landDealSnapshot is a minimal land deal: a 1,000,000 acquisition in period
// 0 and 2,000,000 of lot revenue spread over periods 1-12, with a single
// 100% equity tranche.
func landDealSnapshot(t *testing.T) *model.Snapshot {
	t.Helper()

	periods, err := model.GeneratePeriods("2026-01", "2027-01", model.Monthly)
	require.NoError(t, err)

	tree, err := model.NewContainerTree([]model.Container{
		{ID: 1, Kind: model.KindProject, Name: "Land deal"},
		{ID: 2, Kind: model.KindPhase, ParentID: 1, Name: "Phase 1", Order: 1},
		{ID: 3, Kind: model.KindParcel, ParentID: 2, Name: "Parcel A", Order: 1},
	})
	require.NoError(t, err)

	return &model.Snapshot{
		ProjectID:   "land-deal",
		ProjectName: "Land deal",
		Periods:     periods,
		Tree:        tree,
		Items: []model.FinancialItem{
			{
				ID:          1,
				ContainerID: 1,
				Name:        "Land acquisition",
				Category:    model.CapitalExpense,
				Amount:      decimal.NewFromInt(1000000),
				Timing:      model.TimingDescriptor{Kind: model.LumpSum, Period: 0},
			},
			{
				ID:          2,
				ContainerID: 3,
				Name:        "Lot sales",
				Category:    model.Revenue,
				Amount:      decimal.NewFromInt(2000000),
				Timing:      model.TimingDescriptor{Kind: model.SCurve, Start: 1, End: 12},
			},
		},
		Tranches: []model.EquityTranche{
			{ID: 1, Name: "Investor", Commitment: decimal.NewFromInt(1000000)},
		},
		Tiers: []model.WaterfallTier{
			{Index: 1, Rule: model.Split, Splits: map[model.TrancheID]decimal.Decimal{1: decimal.NewFromInt(100)}},
		},
		DiscountRate: decimal.NewFromInt(10),
	}
}

func TestRecalculateSimpleLandDeal(t *testing.T) {
	runner := NewRunner(nil, 0)
	snapshot := landDealSnapshot(t)

	result, err := runner.Recalculate(context.Background(), snapshot)
	require.NoError(t, err)

	root := snapshot.Tree.Root()
	net := result.Facts.NetSeries(root)
	require.Len(t, net, snapshot.Periods.Len())

	// The acquisition lands whole in period 0.
	assert.True(t, net[0].Equal(d(-1000000)), "period 0 net %s", net[0])
	// Revenue spreads over periods 1-12 only.
	for p := 1; p <= 12; p++ {
		assert.True(t, net[p].IsPositive(), "period %d net %s", p, net[p])
	}

	// Parcel revenue rolls up through the phase to the project root.
	for p := 1; p <= 12; p++ {
		parcel := result.Facts.Amount(3, p, model.Revenue)
		assert.True(t, result.Facts.Amount(root, p, model.Revenue).Equal(parcel))
	}

	// Conservation over the whole run: 2,000,000 in, 1,000,000 out.
	total := decimal.Zero
	for _, v := range net {
		total = total.Add(v)
	}
	assert.True(t, total.Equal(d(1000000)), "cumulative net %s", total)

	// The sole tranche funds the call and collects every distribution.
	require.NotNil(t, result.Waterfall)
	final := result.Waterfall.Final[1]
	assert.True(t, final.Contributed.Equal(d(1000000)))
	assert.True(t, final.Distributed.Equal(d(2000000)))

	require.True(t, result.Metrics.LeveredIRRDefined)
	require.True(t, result.Metrics.MultipleValid)
	assert.True(t, result.Metrics.EquityMultiple.Equal(d(2)), "multiple %s", result.Metrics.EquityMultiple)

	// With no debt the levered and unlevered views coincide.
	require.True(t, result.Metrics.UnleveredMultipleValid)
	assert.True(t, result.Metrics.UnleveredEquityMultiple.Equal(d(2)))
	assert.True(t, result.Metrics.LeveredNPV.Equal(result.Metrics.NPV))

	require.Len(t, result.Metrics.Tranches, 1)
	assert.True(t, result.Metrics.Tranches[0].Contributed.Equal(d(1000000)))
	assert.True(t, result.Metrics.Tranches[0].Distributed.Equal(d(2000000)))

	assert.Equal(t, int64(1), result.Metrics.CalculationVersion)
	assert.False(t, result.Metrics.DSCR.HasDebtService)
	assert.Empty(t, result.Warnings)
}

func TestRecalculateWithConstructionDebt(t *testing.T) {
	runner := NewRunner(nil, 0)
	snapshot := landDealSnapshot(t)
	snapshot.Facilities = []model.LoanFacility{
		{
			ID:         1,
			Name:       "Acquisition loan",
			Kind:       model.Construction,
			Commitment: decimal.NewFromInt(500000),
			AnnualRate: decimal.NewFromInt(6),
		},
	}

	result, err := runner.Recalculate(context.Background(), snapshot)
	require.NoError(t, err)
	require.Len(t, result.Debt, 1)

	// The loan funds half the acquisition; interest on the drawn balance
	// hits the same period. -1,000,000 + 500,000 - 2,500.
	net := result.Facts.NetSeries(snapshot.Tree.Root())
	assert.True(t, net[0].Equal(d(-502500)), "period 0 net %s", net[0])

	assert.True(t, result.Metrics.DSCR.HasDebtService)
	require.True(t, result.Metrics.LeveredIRRDefined)
	require.True(t, result.Metrics.UnleveredIRRDefined)

	// Debt service separates the two NPV and multiple views.
	assert.False(t, result.Metrics.LeveredNPV.Equal(result.Metrics.NPV))
	require.True(t, result.Metrics.UnleveredMultipleValid)
	assert.False(t, result.Metrics.UnleveredEquityMultiple.Equal(result.Metrics.EquityMultiple))
}

func TestRecalculateCacheHit(t *testing.T) {
	runner := NewRunner(nil, 0)
	snapshot := landDealSnapshot(t)

	first, err := runner.Recalculate(context.Background(), snapshot)
	require.NoError(t, err)
	second, err := runner.Recalculate(context.Background(), snapshot)
	require.NoError(t, err)

	// Unchanged inputs serve the identical published result.
	assert.Same(t, first, second)
	assert.Equal(t, first.RunID, second.RunID)
	assert.Equal(t, int64(1), second.Metrics.CalculationVersion)
}

func TestRecalculateConcurrentIdenticalInputs(t *testing.T) {
	runner := NewRunner(nil, 0)
	snapshot := landDealSnapshot(t)

	var wg sync.WaitGroup
	results := make([]*RunResult, 4)
	errs := make([]error, 4)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = runner.Recalculate(context.Background(), snapshot)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	// The project lease serializes the runs; whoever computes first
	// publishes, everyone else is served that same result from cache.
	for _, res := range results[1:] {
		assert.Same(t, results[0], res)
	}
	assert.Equal(t, int64(1), results[0].Metrics.CalculationVersion)
}

func TestRecalculateVersionsAreMonotonic(t *testing.T) {
	runner := NewRunner(nil, 0)

	first, err := runner.Recalculate(context.Background(), landDealSnapshot(t))
	require.NoError(t, err)
	assert.Equal(t, int64(1), first.Metrics.CalculationVersion)

	edited := landDealSnapshot(t)
	edited.Items[1].Amount = decimal.NewFromInt(2100000)
	second, err := runner.Recalculate(context.Background(), edited)
	require.NoError(t, err)
	assert.Equal(t, int64(2), second.Metrics.CalculationVersion)
	assert.NotEqual(t, first.RunID, second.RunID)

	latest := runner.Latest("land-deal")
	require.NotNil(t, latest)
	assert.Same(t, second, latest)
}

func TestRecalculateCancelledContext(t *testing.T) {
	runner := NewRunner(nil, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := runner.Recalculate(ctx, landDealSnapshot(t))
	var timeout *TimeoutError
	require.ErrorAs(t, err, &timeout)
	assert.Equal(t, "land-deal", timeout.ProjectID)

	// Nothing published.
	assert.Nil(t, runner.Latest("land-deal"))
}

func TestRecalculateCycleDoesNotPublish(t *testing.T) {
	runner := NewRunner(nil, 0)
	snapshot := landDealSnapshot(t)
	snapshot.Items[0].DependsOn = []model.ItemID{2}
	snapshot.Items[1].DependsOn = []model.ItemID{1}

	_, err := runner.Recalculate(context.Background(), snapshot)
	var cycle *depgraph.CircularDependencyError
	require.ErrorAs(t, err, &cycle)
	assert.Nil(t, runner.Latest("land-deal"))
}

func TestLatestUnknownProject(t *testing.T) {
	runner := NewRunner(nil, time.Second)
	assert.Nil(t, runner.Latest("nobody"))
}
