package model

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Category classifies a financial item's contribution to cash flow.
type Category string

const (
	Revenue          Category = "revenue"
	OperatingExpense Category = "operating_expense"
	CapitalExpense   Category = "capital_expense"
	Financing        Category = "financing"
	Distribution     Category = "distribution"
)

// Sign returns +1 for inflow categories and -1 for outflow categories.
// Cash-flow facts are stored signed so aggregation is a plain sum.
func (c Category) Sign() (int, error) {
	switch c {
	case Revenue, Financing:
		return 1, nil
	case OperatingExpense, CapitalExpense, Distribution:
		return -1, nil
	default:
		return 0, fmt.Errorf("unknown category %q", c)
	}
}

// ItemID identifies a financial item within a project.
type ItemID int64

// DistributionKind selects how an item's total amount is spread over time.
type DistributionKind string

const (
	LumpSum DistributionKind = "lump_sum"
	Linear  DistributionKind = "linear"
	SCurve  DistributionKind = "s_curve"
	Custom  DistributionKind = "custom"
)

// TimingDescriptor describes the time distribution of an item's amount.
// Period applies to LumpSum; Start/End to Linear, SCurve, and Custom; Skew
// only to SCurve; Weights only to Custom.
type TimingDescriptor struct {
	Kind    DistributionKind
	Period  int
	Start   int
	End     int
	Skew    float64
	Weights []decimal.Decimal
}

// EscalationRule derives an item's per-period amounts by escalating the base
// item's prior-period materialized fact. Floor and Cap bound the effective
// rate when set. Schedule, when non-empty, supplies explicit per-period
// rates (the CPI table case) overriding Rate; an externally registered
// RateProvider overrides both.
type EscalationRule struct {
	BaseItem ItemID
	Rate     decimal.Decimal
	Floor    *decimal.Decimal
	Cap      *decimal.Decimal
	Schedule []decimal.Decimal
}

// EffectiveRate returns the configured rate for a period, before any
// externally registered provider is consulted.
func (r *EscalationRule) EffectiveRate(periodSeq int) decimal.Decimal {
	if len(r.Schedule) > 0 {
		return RateSchedule{Rates: r.Schedule, Default: r.Rate}.RateFor(periodSeq)
	}
	return r.Rate
}

// FinancialItem is a user-defined line contributing to cash flow. Amounts are
// entered as positive magnitudes; the category determines the cash-flow sign.
// Escalation is nil for directly-distributed items; when set, the item is a
// derived rule and Amount/Timing are ignored.
type FinancialItem struct {
	ID          ItemID
	ContainerID ContainerID
	Name        string
	Category    Category
	Subcategory string
	Amount      decimal.Decimal
	Timing      TimingDescriptor
	DependsOn   []ItemID
	Escalation  *EscalationRule
}

// References returns every item id this item reads from, including the
// escalation base. The resolver uses this to build the dependency graph.
func (fi FinancialItem) References() []ItemID {
	refs := append([]ItemID(nil), fi.DependsOn...)
	if fi.Escalation != nil {
		refs = append(refs, fi.Escalation.BaseItem)
	}
	return refs
}

// RateProvider supplies an effective escalation rate per period. Index-linked
// escalations (CPI) plug in here; the config layer supplies a fixed-rate
// provider when no schedule is configured.
type RateProvider interface {
	RateFor(periodSeq int) decimal.Decimal
}

// FixedRate is a RateProvider returning the same rate every period.
type FixedRate struct {
	Rate decimal.Decimal
}

// RateFor implements RateProvider.
func (f FixedRate) RateFor(int) decimal.Decimal { return f.Rate }

// RateSchedule is a RateProvider backed by an explicit per-period table,
// falling back to Default for periods past the end of the table.
type RateSchedule struct {
	Rates   []decimal.Decimal
	Default decimal.Decimal
}

// RateFor implements RateProvider.
func (s RateSchedule) RateFor(periodSeq int) decimal.Decimal {
	if periodSeq >= 0 && periodSeq < len(s.Rates) {
		return s.Rates[periodSeq]
	}
	return s.Default
}
