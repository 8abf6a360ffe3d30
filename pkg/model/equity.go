package model

import "github.com/shopspring/decimal"

// TrancheID identifies an investor class within a project.
type TrancheID int64

// EquityTranche is an investor class with a capital commitment and preferred
// return terms. PreferredRate is an annual percentage; when Compounding is
// set, unpaid preferred accrues on itself.
type EquityTranche struct {
	ID            TrancheID
	Name          string
	Commitment    decimal.Decimal
	PreferredRate decimal.Decimal
	Compounding   bool
}

// TierRule is the closed set of waterfall tier behaviors.
type TierRule string

const (
	ReturnOfCapital TierRule = "return_of_capital"
	PreferredReturn TierRule = "preferred_return"
	Catchup         TierRule = "catchup"
	Split           TierRule = "split"
)

// WaterfallTier is one ordered rule in the distribution waterfall.
//
//   - ReturnOfCapital / PreferredReturn: Tranches lists the member classes.
//   - Catchup: CatchupTranche receives cash until its cumulative share of
//     profit distributions reaches CatchupTarget percent.
//   - Split: Splits allocates remaining cash by percentage; the percentages
//     must total 100 and the last tier in any list must be a Split.
type WaterfallTier struct {
	Index          int
	Rule           TierRule
	Tranches       []TrancheID
	Splits         map[TrancheID]decimal.Decimal
	CatchupTranche TrancheID
	CatchupTarget  decimal.Decimal
}
