// Package moneyutil provides currency arithmetic helpers built on exact
// decimal values. Every amount the engine materializes is rounded to cents;
// the helpers here guarantee that rounded pieces still sum to their whole.
package moneyutil

import (
	"sort"

	"github.com/shopspring/decimal"
)

// CentPlaces is the rounding precision for currency amounts.
const CentPlaces = 2

var hundred = decimal.NewFromInt(100)

// RoundCents rounds a value to two decimals, i.e. to represent real currency.
func RoundCents(v decimal.Decimal) decimal.Decimal {
	return v.Round(CentPlaces)
}

// Percent converts a percentage figure (6.0 = 6%) to its decimal fraction.
func Percent(p decimal.Decimal) decimal.Decimal {
	return p.Div(hundred)
}

// PeriodicRate converts an annual percentage rate to a per-period fraction.
func PeriodicRate(annualPercent decimal.Decimal, periodsPerYear int) decimal.Decimal {
	return Percent(annualPercent).Div(decimal.NewFromInt(int64(periodsPerYear)))
}

// ScaleWeights multiplies amount by each weight, rounding every piece to
// cents and assigning the residual to the last nonzero weight so the pieces
// sum to RoundCents(amount) exactly.
func ScaleWeights(amount decimal.Decimal, weights []decimal.Decimal) []decimal.Decimal {
	total := RoundCents(amount)
	pieces := make([]decimal.Decimal, len(weights))
	allocated := decimal.Zero
	lastActive := -1
	for i, w := range weights {
		pieces[i] = RoundCents(amount.Mul(w))
		allocated = allocated.Add(pieces[i])
		if !w.IsZero() {
			lastActive = i
		}
	}
	if lastActive >= 0 {
		pieces[lastActive] = pieces[lastActive].Add(total.Sub(allocated))
	}
	return pieces
}

// SplitProRata divides amount across keys proportionally to their basis
// values, rounding each share to cents. The residual cent lands on the
// lowest key so repeated runs split identically. Keys with zero basis
// receive zero; a zero basis total returns all-zero shares.
func SplitProRata(amount decimal.Decimal, basis map[int64]decimal.Decimal) map[int64]decimal.Decimal {
	shares := make(map[int64]decimal.Decimal, len(basis))
	total := decimal.Zero
	keys := make([]int64, 0, len(basis))
	for k, b := range basis {
		keys = append(keys, k)
		total = total.Add(b)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	if total.IsZero() {
		for _, k := range keys {
			shares[k] = decimal.Zero
		}
		return shares
	}

	amount = RoundCents(amount)
	allocated := decimal.Zero
	for _, k := range keys {
		share := RoundCents(amount.Mul(basis[k]).Div(total))
		shares[k] = share
		allocated = allocated.Add(share)
	}
	if residual := amount.Sub(allocated); !residual.IsZero() {
		for _, k := range keys {
			if !basis[k].IsZero() {
				shares[k] = shares[k].Add(residual)
				break
			}
		}
	}
	return shares
}

// Min returns the smaller of two decimals.
func Min(a, b decimal.Decimal) decimal.Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// Max returns the larger of two decimals.
func Max(a, b decimal.Decimal) decimal.Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

// Clamp bounds v by optional floor and cap values.
func Clamp(v decimal.Decimal, floor, cap *decimal.Decimal) decimal.Decimal {
	if floor != nil && v.LessThan(*floor) {
		return *floor
	}
	if cap != nil && v.GreaterThan(*cap) {
		return *cap
	}
	return v
}

// NonNegative returns v, or zero when v is negative.
func NonNegative(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	return v
}
