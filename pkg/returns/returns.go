// Package returns computes IRR, NPV, and equity multiples from cash-flow
// series. IRR values that do not exist for a series shape are reported as
// explicitly undefined rather than as errors.
package returns

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/Greggwolin/landscape-sub017/pkg/moneyutil"
)

const (
	maxIterations = 100
	tolerance     = 1e-9

	// Bisection bracket for the periodic rate when Newton-Raphson fails to
	// converge.
	bracketLow  = -0.99
	bracketHigh = 10.0
)

// Metrics holds the computed return figures for one cash-flow series. IRR is
// the periodic rate; AnnualIRR compounds it to a yearly figure. Defined
// flags distinguish legitimate "no valid value" outcomes (all-negative
// series, zero contributions) from real numbers.
type Metrics struct {
	IRR            float64
	AnnualIRR      float64
	IRRDefined     bool
	NPV            decimal.Decimal
	EquityMultiple decimal.Decimal
	MultipleValid  bool
}

// Compute derives IRR, NPV at the supplied annual discount rate (percent),
// and the equity multiple for a signed per-period cash-flow series.
func Compute(series []decimal.Decimal, annualDiscountRate decimal.Decimal, periodsPerYear int) Metrics {
	flows := make([]float64, len(series))
	for i, v := range series {
		flows[i], _ = v.Float64()
	}

	var m Metrics
	if rate, ok := IRR(flows); ok {
		m.IRR = rate
		m.AnnualIRR = math.Pow(1.0+rate, float64(periodsPerYear)) - 1.0
		m.IRRDefined = true
	}

	periodicDiscount, _ := moneyutil.PeriodicRate(annualDiscountRate, periodsPerYear).Float64()
	m.NPV = moneyutil.RoundCents(decimal.NewFromFloat(NPV(flows, periodicDiscount)))

	m.EquityMultiple, m.MultipleValid = EquityMultiple(series)
	return m
}

// NPV is the discounted sum of the series at the given periodic rate, with
// period 0 undiscounted.
func NPV(flows []float64, rate float64) float64 {
	total := 0.0
	for i, f := range flows {
		total += f / math.Pow(1.0+rate, float64(i))
	}
	return total
}

// IRR finds the periodic rate at which the series' NPV is zero, using
// Newton-Raphson with a bisection fallback bracketed to [-0.99, 10.0].
// It returns false when the series has no sign change (no IRR exists) or
// no root converges within the iteration budget.
func IRR(flows []float64) (float64, bool) {
	if !hasSignChange(flows) {
		return 0, false
	}

	if rate, ok := newtonRaphson(flows); ok {
		return rate, true
	}
	return bisect(flows)
}

func hasSignChange(flows []float64) bool {
	sawNegative, sawPositive := false, false
	for _, f := range flows {
		if f < 0 {
			sawNegative = true
		}
		if f > 0 {
			sawPositive = true
		}
	}
	return sawNegative && sawPositive
}

func newtonRaphson(flows []float64) (float64, bool) {
	rate := 0.1
	for i := 0; i < maxIterations; i++ {
		value := NPV(flows, rate)
		if math.Abs(value) < tolerance {
			return rate, true
		}
		derivative := npvDerivative(flows, rate)
		if derivative == 0 || math.IsNaN(derivative) || math.IsInf(derivative, 0) {
			return 0, false
		}
		next := rate - value/derivative
		if next <= bracketLow || next >= bracketHigh || math.IsNaN(next) {
			return 0, false
		}
		if math.Abs(next-rate) < tolerance {
			return next, true
		}
		rate = next
	}
	return 0, false
}

func npvDerivative(flows []float64, rate float64) float64 {
	total := 0.0
	for i, f := range flows {
		if i == 0 {
			continue
		}
		total -= float64(i) * f / math.Pow(1.0+rate, float64(i+1))
	}
	return total
}

func bisect(flows []float64) (float64, bool) {
	lo, hi := bracketLow, bracketHigh
	fLo, fHi := NPV(flows, lo), NPV(flows, hi)
	if fLo*fHi > 0 {
		return 0, false
	}
	for i := 0; i < maxIterations; i++ {
		mid := (lo + hi) / 2
		fMid := NPV(flows, mid)
		if math.Abs(fMid) < tolerance || (hi-lo)/2 < tolerance {
			return mid, true
		}
		if fLo*fMid < 0 {
			hi = mid
		} else {
			lo, fLo = mid, fMid
		}
	}
	return (lo + hi) / 2, true
}

// EquityMultiple is total distributions over total contributions. It is
// undefined (false) when the series has no contributions.
func EquityMultiple(series []decimal.Decimal) (decimal.Decimal, bool) {
	contributions := decimal.Zero
	distributions := decimal.Zero
	for _, v := range series {
		if v.IsNegative() {
			contributions = contributions.Add(v.Abs())
		} else {
			distributions = distributions.Add(v)
		}
	}
	if !contributions.IsPositive() {
		return decimal.Zero, false
	}
	return distributions.Div(contributions).Round(4), true
}

// TrancheMultiple is the equity multiple from explicit contribution and
// distribution series, as produced by the waterfall.
func TrancheMultiple(contributions, distributions []decimal.Decimal) (decimal.Decimal, bool) {
	paidIn := decimal.Zero
	for _, c := range contributions {
		paidIn = paidIn.Add(c)
	}
	paidOut := decimal.Zero
	for _, d := range distributions {
		paidOut = paidOut.Add(d)
	}
	if !paidIn.IsPositive() {
		return decimal.Zero, false
	}
	return paidOut.Div(paidIn).Round(4), true
}

// TrancheSeries folds contributions (negative) and distributions (positive)
// into one signed series for tranche-level IRR.
func TrancheSeries(contributions, distributions []decimal.Decimal) []decimal.Decimal {
	n := len(distributions)
	if len(contributions) > n {
		n = len(contributions)
	}
	series := make([]decimal.Decimal, n)
	for i := range series {
		if i < len(contributions) {
			series[i] = series[i].Sub(contributions[i])
		}
		if i < len(distributions) {
			series[i] = series[i].Add(distributions[i])
		}
	}
	return series
}
