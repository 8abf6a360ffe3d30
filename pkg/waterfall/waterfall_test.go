package waterfall

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Greggwolin/landscape-sub017/pkg/model"
)

func d(v float64) decimal.Decimal { return decimal.NewFromFloat(v) }

func lpGpStructure() ([]model.EquityTranche, []model.WaterfallTier) {
	tranches := []model.EquityTranche{
		{ID: 1, Name: "LP", Commitment: decimal.NewFromInt(900000), PreferredRate: decimal.NewFromInt(8)},
		{ID: 2, Name: "GP", Commitment: decimal.NewFromInt(100000), PreferredRate: decimal.NewFromInt(8)},
	}
	tiers := []model.WaterfallTier{
		{Index: 1, Rule: model.ReturnOfCapital, Tranches: []model.TrancheID{1, 2}},
		{Index: 2, Rule: model.PreferredReturn, Tranches: []model.TrancheID{1, 2}},
		{Index: 3, Rule: model.Catchup, CatchupTranche: 2, CatchupTarget: decimal.NewFromInt(20)},
		{Index: 4, Rule: model.Split, Splits: map[model.TrancheID]decimal.Decimal{
			1: decimal.NewFromInt(80),
			2: decimal.NewFromInt(20),
		}},
	}
	return tranches, tiers
}

func TestValidateTiers(t *testing.T) {
	tranches, good := lpGpStructure()

	tests := []struct {
		name  string
		tiers []model.WaterfallTier
		want  string
	}{
		{
			name:  "empty list",
			tiers: nil,
			want:  "no tiers",
		},
		{
			name: "index gap",
			tiers: []model.WaterfallTier{
				{Index: 1, Rule: model.ReturnOfCapital, Tranches: []model.TrancheID{1}},
				{Index: 3, Rule: model.Split, Splits: map[model.TrancheID]decimal.Decimal{1: decimal.NewFromInt(100)}},
			},
			want: "no gaps",
		},
		{
			name: "unknown tranche",
			tiers: []model.WaterfallTier{
				{Index: 1, Rule: model.Split, Splits: map[model.TrancheID]decimal.Decimal{9: decimal.NewFromInt(100)}},
			},
			want: "unknown tranche",
		},
		{
			name: "split not 100",
			tiers: []model.WaterfallTier{
				{Index: 1, Rule: model.Split, Splits: map[model.TrancheID]decimal.Decimal{1: decimal.NewFromInt(60), 2: decimal.NewFromInt(30)}},
			},
			want: "not 100",
		},
		{
			name: "terminal tier not split",
			tiers: []model.WaterfallTier{
				{Index: 1, Rule: model.ReturnOfCapital, Tranches: []model.TrancheID{1, 2}},
			},
			want: "last tier must be a split",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTiers(tt.tiers, tranches)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	assert.NoError(t, ValidateTiers(good, tranches))
}

func TestDistributeSingleTrancheSplit(t *testing.T) {
	tranches := []model.EquityTranche{
		{ID: 1, Name: "Sole investor", Commitment: decimal.NewFromInt(1000000)},
	}
	tiers := []model.WaterfallTier{
		{Index: 1, Rule: model.Split, Splits: map[model.TrancheID]decimal.Decimal{1: decimal.NewFromInt(100)}},
	}

	netCash := []decimal.Decimal{d(-1000000), d(500000), d(700000), d(800000)}
	res, err := NewEngine(nil).Distribute(netCash, tranches, tiers, model.Monthly)
	require.NoError(t, err)

	assert.True(t, res.Contributions[1][0].Equal(d(1000000)))
	assert.True(t, res.ByTranche[1][1].Equal(d(500000)))
	assert.True(t, res.ByTranche[1][2].Equal(d(700000)))
	assert.True(t, res.ByTranche[1][3].Equal(d(800000)))
	assert.True(t, res.Final[1].Distributed.Equal(d(2000000)))
}

func TestDistributeConservationPerPeriod(t *testing.T) {
	tranches, tiers := lpGpStructure()
	netCash := []decimal.Decimal{d(-1000000), d(250000), d(400000), d(-50000), d(900000), d(1300000)}

	res, err := NewEngine(nil).Distribute(netCash, tranches, tiers, model.Monthly)
	require.NoError(t, err)

	for p, cash := range netCash {
		total := decimal.Zero
		for _, series := range res.ByTranche {
			total = total.Add(series[p])
		}
		if cash.IsPositive() {
			// Terminal split means all available cash distributes.
			assert.True(t, total.Equal(cash), "period %d distributed %s of %s", p, total, cash)
		} else {
			assert.True(t, total.IsZero(), "period %d distributed %s with no cash", p, total)
		}
	}
}

func TestReturnOfCapitalPaysDownProRata(t *testing.T) {
	tranches, tiers := lpGpStructure()
	// Contribute 1,000,000 then return 500,000.
	netCash := []decimal.Decimal{d(-1000000), d(500000)}

	res, err := NewEngine(nil).Distribute(netCash, tranches, tiers, model.Monthly)
	require.NoError(t, err)

	// Pro-rata 90/10 by unreturned capital (commitment split of the call).
	assert.True(t, res.ByTranche[1][1].GreaterThan(d(440000)))
	assert.True(t, res.ByTranche[2][1].LessThan(d(60000)))

	lp := res.Final[1]
	assert.True(t, lp.UnreturnedCapital.IsPositive())
	assert.True(t, lp.Contributed.Equal(d(900000)))
}

func TestPreferredReturnAccruesAndPays(t *testing.T) {
	tranches := []model.EquityTranche{
		{ID: 1, Name: "LP", Commitment: decimal.NewFromInt(1200000), PreferredRate: decimal.NewFromInt(12)},
	}
	tiers := []model.WaterfallTier{
		{Index: 1, Rule: model.ReturnOfCapital, Tranches: []model.TrancheID{1}},
		{Index: 2, Rule: model.PreferredReturn, Tranches: []model.TrancheID{1}},
		{Index: 3, Rule: model.Split, Splits: map[model.TrancheID]decimal.Decimal{1: decimal.NewFromInt(100)}},
	}

	// 1%/month on 1.2M = 12,000 accrued in period 1 (none in period 0; the
	// contribution lands at period end).
	netCash := []decimal.Decimal{d(-1200000), d(1224000)}
	res, err := NewEngine(nil).Distribute(netCash, tranches, tiers, model.Monthly)
	require.NoError(t, err)

	// Full return of capital plus both periods' accrued preferred.
	st := res.Final[1]
	assert.True(t, st.UnreturnedCapital.IsZero(), "unreturned %s", st.UnreturnedCapital)
	assert.True(t, st.AccruedPreferred.IsZero(), "accrued %s", st.AccruedPreferred)
	assert.True(t, st.Distributed.Equal(d(1224000)))
}

func TestCatchupHaltsAtBreakpoint(t *testing.T) {
	tranches := []model.EquityTranche{
		{ID: 1, Name: "LP", Commitment: decimal.NewFromInt(1000000)},
		{ID: 2, Name: "GP", Commitment: decimal.Zero},
	}
	tiers := []model.WaterfallTier{
		{Index: 1, Rule: model.ReturnOfCapital, Tranches: []model.TrancheID{1}},
		{Index: 2, Rule: model.PreferredReturn, Tranches: []model.TrancheID{1}},
		{Index: 3, Rule: model.Catchup, CatchupTranche: 2, CatchupTarget: decimal.NewFromInt(20)},
		{Index: 4, Rule: model.Split, Splits: map[model.TrancheID]decimal.Decimal{
			1: decimal.NewFromInt(80),
			2: decimal.NewFromInt(20),
		}},
	}

	// LP has zero preferred rate, so profit distributions before catch-up
	// are zero and the catch-up target resolves purely against the split.
	netCash := []decimal.Decimal{d(-1000000), d(1100000)}
	res, err := NewEngine(nil).Distribute(netCash, tranches, tiers, model.Monthly)
	require.NoError(t, err)

	// 1,000,000 returns capital; 100,000 of profit remains. With no prior
	// profit distributions the catch-up due is zero, so the split takes it
	// 80/20.
	assert.True(t, res.ByTranche[2][1].Equal(d(20000)), "GP got %s", res.ByTranche[2][1])
	assert.True(t, res.ByTranche[1][1].Equal(d(1080000)), "LP got %s", res.ByTranche[1][1])
}

func TestCatchupAfterPreferred(t *testing.T) {
	tranches := []model.EquityTranche{
		{ID: 1, Name: "LP", Commitment: decimal.NewFromInt(1200000), PreferredRate: decimal.NewFromInt(12)},
		{ID: 2, Name: "GP", Commitment: decimal.Zero},
	}
	tiers := []model.WaterfallTier{
		{Index: 1, Rule: model.ReturnOfCapital, Tranches: []model.TrancheID{1}},
		{Index: 2, Rule: model.PreferredReturn, Tranches: []model.TrancheID{1}},
		{Index: 3, Rule: model.Catchup, CatchupTranche: 2, CatchupTarget: decimal.NewFromInt(20)},
		{Index: 4, Rule: model.Split, Splits: map[model.TrancheID]decimal.Decimal{
			1: decimal.NewFromInt(80),
			2: decimal.NewFromInt(20),
		}},
	}

	// Period 1 returns all capital plus 12,000 preferred plus 3,000 extra.
	netCash := []decimal.Decimal{d(-1200000), d(1215000)}
	res, err := NewEngine(nil).Distribute(netCash, tranches, tiers, model.Monthly)
	require.NoError(t, err)

	// Preferred of 12,000 paid; catch-up due = (0.2*12000 - 0)/0.8 = 3,000,
	// exactly consuming the remainder before the split sees a cent.
	gp := res.ByTranche[2][1]
	assert.True(t, gp.Equal(d(3000)), "GP got %s", gp)

	// GP cumulative share of profit: 3,000 / 15,000 = 20%.
	total := res.ByTranche[1][1].Add(gp)
	assert.True(t, total.Equal(d(1215000)))
}

func TestCatchupCountsSplitDistributionsAcrossPeriods(t *testing.T) {
	tranches := []model.EquityTranche{
		{ID: 1, Name: "LP", Commitment: decimal.NewFromInt(1000000)},
		{ID: 2, Name: "GP", Commitment: decimal.Zero},
	}
	tiers := []model.WaterfallTier{
		{Index: 1, Rule: model.ReturnOfCapital, Tranches: []model.TrancheID{1}},
		{Index: 2, Rule: model.Catchup, CatchupTranche: 2, CatchupTarget: decimal.NewFromInt(20)},
		{Index: 3, Rule: model.Split, Splits: map[model.TrancheID]decimal.Decimal{
			1: decimal.NewFromInt(80),
			2: decimal.NewFromInt(20),
		}},
	}

	// Period 1 returns capital and splits 100,000 of profit 80/20, so the
	// GP already holds its 20% share entering period 2. The catch-up owes it
	// nothing more; period 2's profit splits 80/20 again.
	netCash := []decimal.Decimal{d(-1000000), d(1100000), d(100000)}
	res, err := NewEngine(nil).Distribute(netCash, tranches, tiers, model.Monthly)
	require.NoError(t, err)

	assert.True(t, res.ByTranche[2][1].Equal(d(20000)), "GP period 1 got %s", res.ByTranche[2][1])
	assert.True(t, res.ByTranche[2][2].Equal(d(20000)), "GP period 2 got %s", res.ByTranche[2][2])

	// GP holds exactly the target share of the 200,000 cumulative profit.
	gpTotal := res.Final[2].Distributed
	assert.True(t, gpTotal.Equal(d(40000)), "GP cumulative %s", gpTotal)
}

func TestCompoundingPreferredAccruesOnAccrual(t *testing.T) {
	simple := []model.EquityTranche{
		{ID: 1, Name: "LP", Commitment: decimal.NewFromInt(1000000), PreferredRate: decimal.NewFromInt(12)},
	}
	compounding := []model.EquityTranche{
		{ID: 1, Name: "LP", Commitment: decimal.NewFromInt(1000000), PreferredRate: decimal.NewFromInt(12), Compounding: true},
	}
	tiers := []model.WaterfallTier{
		{Index: 1, Rule: model.PreferredReturn, Tranches: []model.TrancheID{1}},
		{Index: 2, Rule: model.Split, Splits: map[model.TrancheID]decimal.Decimal{1: decimal.NewFromInt(100)}},
	}

	// Capital in, then three dry periods, then cash.
	netCash := []decimal.Decimal{d(-1000000), d(0), d(0), d(0), d(100000)}

	simpleRes, err := NewEngine(nil).Distribute(netCash, simple, tiers, model.Monthly)
	require.NoError(t, err)
	compoundRes, err := NewEngine(nil).Distribute(netCash, compounding, tiers, model.Monthly)
	require.NoError(t, err)

	// Both accrue over periods 1-4; compounding accrues on the unpaid
	// accrual as well, so its paid preferred is strictly larger.
	simplePref := simpleRes.Distributions[0]
	compoundPref := compoundRes.Distributions[0]
	assert.Equal(t, 1, simplePref.TierIndex)
	assert.True(t, compoundPref.Amount.GreaterThan(simplePref.Amount),
		"compounding %s vs simple %s", compoundPref.Amount, simplePref.Amount)
}

func TestDistributionsAreDeterministicallyOrdered(t *testing.T) {
	tranches, tiers := lpGpStructure()
	netCash := []decimal.Decimal{d(-1000000), d(500000), d(800000)}

	first, err := NewEngine(nil).Distribute(netCash, tranches, tiers, model.Monthly)
	require.NoError(t, err)
	second, err := NewEngine(nil).Distribute(netCash, tranches, tiers, model.Monthly)
	require.NoError(t, err)
	assert.Equal(t, first.Distributions, second.Distributions)
}
