// Package waterfall allocates distributable cash across ordered tiers of
// investor tranches: return of capital, preferred return, catch-up, and
// terminal splits.
package waterfall

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Greggwolin/landscape-sub017/pkg/model"
	"github.com/Greggwolin/landscape-sub017/pkg/moneyutil"
)

// OverflowError reports distributions exceeding a period's available cash.
// Tier evaluation caps every allocation at the remaining cash, so this can
// only fire on an internal arithmetic bug; it is fatal by design of the
// conservation invariant.
type OverflowError struct {
	PeriodSeq   int
	Available   decimal.Decimal
	Distributed decimal.Decimal
}

func (e *OverflowError) Error() string {
	return fmt.Sprintf("waterfall distributed %s against %s available in period %d",
		e.Distributed, e.Available, e.PeriodSeq)
}

// TierListError reports a malformed tier configuration.
type TierListError struct {
	Reason string
}

func (e *TierListError) Error() string {
	return fmt.Sprintf("invalid waterfall tier list: %s", e.Reason)
}

// Distribution records one allocation to a tranche.
type Distribution struct {
	PeriodSeq int
	TierIndex int
	TrancheID model.TrancheID
	Amount    decimal.Decimal
}

// TrancheState carries a tranche's running balances through the periods.
type TrancheState struct {
	Contributed       decimal.Decimal
	UnreturnedCapital decimal.Decimal
	AccruedPreferred  decimal.Decimal
	Distributed       decimal.Decimal
}

// Result is the full waterfall output: the distribution ledger plus
// per-tranche period series and final states.
type Result struct {
	Distributions []Distribution
	ByTranche     map[model.TrancheID][]decimal.Decimal
	Contributions map[model.TrancheID][]decimal.Decimal
	Final         map[model.TrancheID]TrancheState
}

// Engine runs the tier state machine.
type Engine struct {
	logger *zap.Logger
}

// NewEngine creates an Engine.
func NewEngine(logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{logger: logger}
}

// ValidateTiers enforces the structural tier-list invariants: indexes
// strictly increasing with no gaps, every referenced tranche known, split
// percentages totaling 100, and a terminal 100% Split so cash never falls
// off the end of the list.
func ValidateTiers(tiers []model.WaterfallTier, tranches []model.EquityTranche) error {
	if len(tiers) == 0 {
		return &TierListError{Reason: "no tiers defined"}
	}
	known := make(map[model.TrancheID]bool, len(tranches))
	for _, tr := range tranches {
		known[tr.ID] = true
	}

	for i, tier := range tiers {
		if tier.Index != i+1 {
			return &TierListError{Reason: fmt.Sprintf("tier at position %d has index %d; indexes must be 1..n with no gaps", i, tier.Index)}
		}
		for _, id := range tier.Tranches {
			if !known[id] {
				return &TierListError{Reason: fmt.Sprintf("tier %d references unknown tranche %d", tier.Index, id)}
			}
		}
		switch tier.Rule {
		case model.ReturnOfCapital, model.PreferredReturn:
			if len(tier.Tranches) == 0 {
				return &TierListError{Reason: fmt.Sprintf("tier %d (%s) has no member tranches", tier.Index, tier.Rule)}
			}
		case model.Catchup:
			if !known[tier.CatchupTranche] {
				return &TierListError{Reason: fmt.Sprintf("tier %d catch-up references unknown tranche %d", tier.Index, tier.CatchupTranche)}
			}
			if !tier.CatchupTarget.IsPositive() || tier.CatchupTarget.GreaterThanOrEqual(decimal.NewFromInt(100)) {
				return &TierListError{Reason: fmt.Sprintf("tier %d catch-up target %s outside (0, 100)", tier.Index, tier.CatchupTarget)}
			}
		case model.Split:
			total := decimal.Zero
			for id, pct := range tier.Splits {
				if !known[id] {
					return &TierListError{Reason: fmt.Sprintf("tier %d split references unknown tranche %d", tier.Index, id)}
				}
				total = total.Add(pct)
			}
			if !total.Equal(decimal.NewFromInt(100)) {
				return &TierListError{Reason: fmt.Sprintf("tier %d split percentages total %s, not 100", tier.Index, total)}
			}
		default:
			return &TierListError{Reason: fmt.Sprintf("tier %d has unknown rule %q", tier.Index, tier.Rule)}
		}
	}

	if tiers[len(tiers)-1].Rule != model.Split {
		return &TierListError{Reason: "last tier must be a split covering 100%"}
	}
	return nil
}

// Distribute walks the tier state machine over the net cash-flow series.
// Negative periods are equity contributions allocated pro-rata by
// commitment; positive periods are distributed through the tiers in index
// order. Conservation holds per period: total distributions never exceed
// available cash, enforced with a fatal OverflowError.
func (e *Engine) Distribute(netCash []decimal.Decimal, tranches []model.EquityTranche, tiers []model.WaterfallTier, freq model.Frequency) (*Result, error) {
	if err := ValidateTiers(tiers, tranches); err != nil {
		return nil, err
	}
	periodsPerYear, err := freq.PeriodsPerYear()
	if err != nil {
		return nil, err
	}

	n := len(netCash)
	res := &Result{
		ByTranche:     make(map[model.TrancheID][]decimal.Decimal, len(tranches)),
		Contributions: make(map[model.TrancheID][]decimal.Decimal, len(tranches)),
		Final:         make(map[model.TrancheID]TrancheState, len(tranches)),
	}
	states := make(map[model.TrancheID]*TrancheState, len(tranches))
	byID := make(map[model.TrancheID]model.EquityTranche, len(tranches))
	commitments := make(map[int64]decimal.Decimal, len(tranches))
	for _, tr := range tranches {
		states[tr.ID] = &TrancheState{}
		byID[tr.ID] = tr
		commitments[int64(tr.ID)] = tr.Commitment
		res.ByTranche[tr.ID] = make([]decimal.Decimal, n)
		res.Contributions[tr.ID] = make([]decimal.Decimal, n)
	}

	// profitDistributed tracks cumulative distributions beyond return of
	// capital; profitByTranche tracks each tranche's share of it across the
	// preferred, catch-up, and split tiers. The catch-up breakpoint is
	// defined against both, so promote paid through a prior period's split
	// counts toward the target.
	profitDistributed := decimal.Zero
	profitByTranche := make(map[model.TrancheID]decimal.Decimal)

	for p := 0; p < n; p++ {
		// Accrue preferred before any cash moves this period.
		for _, tr := range tranches {
			st := states[tr.ID]
			base := st.UnreturnedCapital
			if tr.Compounding {
				base = base.Add(st.AccruedPreferred)
			}
			accrual := moneyutil.RoundCents(base.Mul(moneyutil.PeriodicRate(tr.PreferredRate, periodsPerYear)))
			st.AccruedPreferred = st.AccruedPreferred.Add(accrual)
		}

		if netCash[p].IsNegative() {
			// Capital call: allocated pro-rata by commitment.
			calls := moneyutil.SplitProRata(netCash[p].Abs(), commitments)
			for id, amt := range calls {
				st := states[model.TrancheID(id)]
				st.Contributed = st.Contributed.Add(amt)
				st.UnreturnedCapital = st.UnreturnedCapital.Add(amt)
				res.Contributions[model.TrancheID(id)][p] = amt
			}
			continue
		}

		available := moneyutil.RoundCents(netCash[p])
		if available.IsZero() {
			continue
		}
		remaining := available

		for _, tier := range tiers {
			if remaining.IsZero() {
				break
			}
			switch tier.Rule {
			case model.ReturnOfCapital:
				basis := map[int64]decimal.Decimal{}
				owed := decimal.Zero
				for _, id := range tier.Tranches {
					basis[int64(id)] = states[id].UnreturnedCapital
					owed = owed.Add(states[id].UnreturnedCapital)
				}
				pay := moneyutil.Min(remaining, owed)
				for id, amt := range moneyutil.SplitProRata(pay, basis) {
					tid := model.TrancheID(id)
					states[tid].UnreturnedCapital = states[tid].UnreturnedCapital.Sub(amt)
					remaining = e.pay(res, states, p, tier.Index, tid, amt, remaining)
				}

			case model.PreferredReturn:
				basis := map[int64]decimal.Decimal{}
				owed := decimal.Zero
				for _, id := range tier.Tranches {
					basis[int64(id)] = states[id].AccruedPreferred
					owed = owed.Add(states[id].AccruedPreferred)
				}
				pay := moneyutil.Min(remaining, owed)
				for id, amt := range moneyutil.SplitProRata(pay, basis) {
					tid := model.TrancheID(id)
					states[tid].AccruedPreferred = states[tid].AccruedPreferred.Sub(amt)
					remaining = e.pay(res, states, p, tier.Index, tid, amt, remaining)
					profitDistributed = profitDistributed.Add(amt)
					profitByTranche[tid] = profitByTranche[tid].Add(amt)
				}

			case model.Catchup:
				target := moneyutil.Percent(tier.CatchupTarget)
				got := profitByTranche[tier.CatchupTranche]
				// Solve for x: (got + x) = target * (profitDistributed + x),
				// halting exactly at the breakpoint even mid-period.
				denom := decimal.NewFromInt(1).Sub(target)
				due := target.Mul(profitDistributed).Sub(got).Div(denom)
				pay := moneyutil.RoundCents(moneyutil.Min(remaining, moneyutil.NonNegative(due)))
				if pay.IsPositive() {
					profitByTranche[tier.CatchupTranche] = got.Add(pay)
					remaining = e.pay(res, states, p, tier.Index, tier.CatchupTranche, pay, remaining)
					profitDistributed = profitDistributed.Add(pay)
				}

			case model.Split:
				basis := map[int64]decimal.Decimal{}
				for id, pct := range tier.Splits {
					basis[int64(id)] = pct
				}
				pay := remaining
				for id, amt := range moneyutil.SplitProRata(pay, basis) {
					tid := model.TrancheID(id)
					remaining = e.pay(res, states, p, tier.Index, tid, amt, remaining)
					profitDistributed = profitDistributed.Add(amt)
					profitByTranche[tid] = profitByTranche[tid].Add(amt)
				}
			}
		}

		distributed := available.Sub(remaining)
		if distributed.GreaterThan(available) || remaining.IsNegative() {
			return nil, &OverflowError{PeriodSeq: p, Available: available, Distributed: distributed}
		}
	}

	for id, st := range states {
		res.Final[id] = *st
	}
	sort.Slice(res.Distributions, func(i, j int) bool {
		a, b := res.Distributions[i], res.Distributions[j]
		if a.PeriodSeq != b.PeriodSeq {
			return a.PeriodSeq < b.PeriodSeq
		}
		if a.TierIndex != b.TierIndex {
			return a.TierIndex < b.TierIndex
		}
		return a.TrancheID < b.TrancheID
	})

	e.logger.Debug(fmt.Sprintf("waterfall produced %d distributions", len(res.Distributions)),
		zap.String("op", "waterfall.Distribute"),
	)
	return res, nil
}

// pay records a distribution and returns the reduced remaining cash. A zero
// amount records nothing.
func (e *Engine) pay(res *Result, states map[model.TrancheID]*TrancheState, period, tier int, id model.TrancheID, amount, remaining decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return remaining
	}
	states[id].Distributed = states[id].Distributed.Add(amount)
	res.ByTranche[id][period] = res.ByTranche[id][period].Add(amount)
	res.Distributions = append(res.Distributions, Distribution{
		PeriodSeq: period,
		TierIndex: tier,
		TrancheID: id,
		Amount:    amount,
	})
	return remaining.Sub(amount)
}
