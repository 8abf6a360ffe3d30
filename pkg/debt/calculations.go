// Package debt produces amortization and draw schedules, interest reserve
// usage, and DSCR for loan facilities against a pre-debt cash-flow series.
package debt

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Greggwolin/landscape-sub017/pkg/model"
	"github.com/Greggwolin/landscape-sub017/pkg/moneyutil"
)

// OverDrawError reports cumulative draws exceeding the facility commitment.
// It indicates a structurally invalid financing assumption and aborts the
// run.
type OverDrawError struct {
	Facility  model.FacilityID
	PeriodSeq int
	Requested decimal.Decimal
	Unfunded  decimal.Decimal
}

func (e *OverDrawError) Error() string {
	return fmt.Sprintf("facility %d over-drawn in period %d: requested %s with %s unfunded commitment",
		e.Facility, e.PeriodSeq, e.Requested, e.Unfunded)
}

// PeriodFact holds one period's debt activity for a facility. Draw and
// ReserveDraw are loan inflows; Interest and Principal are payments out of
// cash flow (ReserveDraw-funded interest appears in both so the facts net to
// the true cash impact). Balance is the end-of-period outstanding balance.
type PeriodFact struct {
	PeriodSeq   int
	Draw        decimal.Decimal
	ReserveDraw decimal.Decimal
	Interest    decimal.Decimal
	Principal   decimal.Decimal
	Balance     decimal.Decimal
	DSCR        decimal.Decimal
	DSCRValid   bool
}

// Facts is the full per-period debt service output for one facility.
type Facts struct {
	Facility model.FacilityID
	Periods  []PeriodFact
}

// Service returns interest plus principal for the period.
func (f PeriodFact) Service() decimal.Decimal { return f.Interest.Add(f.Principal) }

// Series extracts one component as a signed cash-flow series of the given
// length: draws and reserve draws positive, payments negative.
func (f *Facts) Series(n int) (draws, reserveDraws, interest, principal []decimal.Decimal) {
	draws = make([]decimal.Decimal, n)
	reserveDraws = make([]decimal.Decimal, n)
	interest = make([]decimal.Decimal, n)
	principal = make([]decimal.Decimal, n)
	for _, pf := range f.Periods {
		draws[pf.PeriodSeq] = pf.Draw
		reserveDraws[pf.PeriodSeq] = pf.ReserveDraw
		interest[pf.PeriodSeq] = pf.Interest.Neg()
		principal[pf.PeriodSeq] = pf.Principal.Neg()
	}
	return draws, reserveDraws, interest, principal
}

// Calculator produces debt service facts for loan facilities.
type Calculator struct {
	logger *zap.Logger
}

// NewCalculator creates a Calculator.
func NewCalculator(logger *zap.Logger) *Calculator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Calculator{logger: logger}
}

// LevelPayment computes the standard annuity payment for a principal over n
// periods at the given periodic rate fraction. A zero rate divides the
// principal evenly.
func LevelPayment(principal decimal.Decimal, periodicRate decimal.Decimal, n int) decimal.Decimal {
	if n <= 0 {
		return decimal.Zero
	}
	if periodicRate.IsZero() {
		return principal.Div(decimal.NewFromInt(int64(n)))
	}
	r, _ := periodicRate.Float64()
	p, _ := principal.Float64()
	power := math.Pow(1.0+r, float64(n))
	payment := p * r * power / (power - 1.0)
	return decimal.NewFromFloat(payment)
}

// Calculate produces the facility's full schedule. preDebt is the signed
// pre-financing net cash flow per period (capital need shows as negative);
// noi is the net operating income series used for DSCR. Low-DSCR periods are
// flagged as warnings, never errors.
func (c *Calculator) Calculate(facility model.LoanFacility, preDebt, noi []decimal.Decimal, freq model.Frequency) (*Facts, []model.Warning, error) {
	periodsPerYear, err := freq.PeriodsPerYear()
	if err != nil {
		return nil, nil, err
	}
	rate := moneyutil.PeriodicRate(facility.AnnualRate, periodsPerYear)

	facts := &Facts{Facility: facility.ID}
	var warnings []model.Warning

	balance := decimal.Zero
	drawn := decimal.Zero
	reserveLeft := facility.InterestReserve
	var payment decimal.Decimal
	amortPeriods := 0

	for p := facility.StartPeriod; p < len(preDebt); p++ {
		pf := PeriodFact{PeriodSeq: p}
		unfunded := facility.Commitment.Sub(drawn)

		// Size this period's draw.
		switch facility.Kind {
		case model.Construction:
			if facility.DrawSchedule != nil {
				if req, ok := facility.DrawSchedule[p]; ok {
					if req.GreaterThan(unfunded) {
						return nil, warnings, &OverDrawError{Facility: facility.ID, PeriodSeq: p, Requested: req, Unfunded: unfunded}
					}
					pf.Draw = req
				}
			} else {
				need := moneyutil.NonNegative(preDebt[p].Neg())
				pf.Draw = moneyutil.Min(need, unfunded)
			}
		case model.Permanent:
			// Permanent debt funds in full at its start period.
			if p == facility.StartPeriod {
				pf.Draw = unfunded
			}
		}
		drawn = drawn.Add(pf.Draw)
		balance = balance.Add(pf.Draw)

		// Interest accrues on the outstanding balance after this period's
		// draw.
		pf.Interest = moneyutil.RoundCents(balance.Mul(rate))

		// Reserve-funded interest: the reserve draw offsets the interest
		// payment so the net cash impact is zero while the reserve lasts.
		if facility.ReserveFundedUpfront && reserveLeft.IsPositive() && pf.Interest.IsPositive() {
			pf.ReserveDraw = moneyutil.Min(pf.Interest, reserveLeft)
			reserveLeft = reserveLeft.Sub(pf.ReserveDraw)
		}

		// Principal begins after the interest-only window.
		inIO := p < facility.StartPeriod+facility.InterestOnlyPeriods
		if !inIO && facility.AmortizationPeriods > 0 && balance.IsPositive() {
			if amortPeriods == 0 {
				payment = moneyutil.RoundCents(LevelPayment(balance, rate, facility.AmortizationPeriods))
				c.logger.Debug(fmt.Sprintf("facility %d amortization begins: payment %s over %d periods",
					facility.ID, payment, facility.AmortizationPeriods),
					zap.String("op", "debt.Calculate"),
				)
			}
			amortPeriods++
			principal := payment.Sub(pf.Interest)
			// Final payment clears the exact remaining balance so rounding
			// never strands a residual cent.
			if amortPeriods >= facility.AmortizationPeriods || principal.GreaterThanOrEqual(balance) {
				principal = balance
			}
			pf.Principal = moneyutil.NonNegative(principal)
			balance = balance.Sub(pf.Principal)
		}

		pf.Balance = balance

		service := pf.Service()
		if service.IsPositive() && p < len(noi) {
			pf.DSCR = noi[p].Div(service).Round(4)
			pf.DSCRValid = true
			if pf.DSCR.LessThan(decimal.NewFromInt(1)) {
				warnings = append(warnings, model.Warning{
					Code:      model.WarnLowDSCR,
					PeriodSeq: p,
					SourceID:  int64(facility.ID),
					Message:   fmt.Sprintf("facility %q DSCR %s below 1.0", facility.Name, pf.DSCR),
				})
			}
		}

		facts.Periods = append(facts.Periods, pf)

		if balance.IsZero() && drawn.Equal(facility.Commitment) && facility.Kind == model.Permanent {
			break
		}
	}

	return facts, warnings, nil
}
