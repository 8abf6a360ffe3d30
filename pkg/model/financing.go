package model

import "github.com/shopspring/decimal"

// FacilityKind distinguishes draw-funded construction debt from amortizing
// permanent debt.
type FacilityKind string

const (
	Construction FacilityKind = "construction"
	Permanent    FacilityKind = "permanent"
)

// FacilityID identifies a loan facility within a project.
type FacilityID int64

// LoanFacility holds the financing terms for one debt facility. Rates are
// annual percentages (6.0 = 6%). InterestOnlyPeriods counts calculation
// periods after StartPeriod before amortization begins; AmortizationPeriods
// is the level-payment term in calculation periods.
//
// For construction facilities, draws are sized each period from the unfunded
// capital need unless DrawSchedule is set, in which case the scheduled draws
// are taken verbatim (and may legitimately fail with an over-draw if they
// exceed the commitment). InterestReserve is a carve-out of the commitment
// used to fund interest before cash flow is tapped when
// ReserveFundedUpfront is true.
type LoanFacility struct {
	ID                   FacilityID
	Name                 string
	Kind                 FacilityKind
	Commitment           decimal.Decimal
	AnnualRate           decimal.Decimal
	StartPeriod          int
	InterestOnlyPeriods  int
	AmortizationPeriods  int
	InterestReserve      decimal.Decimal
	ReserveFundedUpfront bool
	DrawSchedule         map[int]decimal.Decimal
}
