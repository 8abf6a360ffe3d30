// Package timing converts lump amounts into per-period distribution vectors
// according to a timing descriptor: lump-sum, straight-line, s-curve, or
// custom weights.
package timing

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/Greggwolin/landscape-sub017/pkg/model"
	"github.com/Greggwolin/landscape-sub017/pkg/moneyutil"
)

// WeightEpsilon is the allowed deviation from 1.0 for a custom weight sum.
const WeightEpsilon = 1e-6

// sCurveSteepness controls how concentrated the logistic s-curve is around
// its midpoint. 6 gives the conventional construction-spend shape.
const sCurveSteepness = 6.0

// Error reports an invalid timing descriptor.
type Error struct {
	Kind   model.DistributionKind
	Reason string
}

func (e *Error) Error() string {
	return fmt.Sprintf("timing error (%s): %s", e.Kind, e.Reason)
}

// Distribute spreads amount over the project's periods per the descriptor.
// The returned vector is indexed by period sequence and always sums to the
// cent-rounded amount exactly; rounding residue is assigned to the last
// active period.
func Distribute(amount decimal.Decimal, desc model.TimingDescriptor, periods model.Periods) ([]decimal.Decimal, error) {
	n := periods.Len()
	if n == 0 {
		return nil, &Error{Kind: desc.Kind, Reason: "project has no periods"}
	}

	weights, err := Weights(desc, periods)
	if err != nil {
		return nil, err
	}
	return moneyutil.ScaleWeights(amount, weights), nil
}

// Weights computes the normalized distribution weights for a descriptor
// without scaling by an amount. The weights sum to 1 over the active range.
func Weights(desc model.TimingDescriptor, periods model.Periods) ([]decimal.Decimal, error) {
	n := periods.Len()
	weights := make([]decimal.Decimal, n)

	switch desc.Kind {
	case model.LumpSum:
		if !periods.InRange(desc.Period) {
			return nil, &Error{Kind: desc.Kind, Reason: fmt.Sprintf("period %d outside range [0, %d]", desc.Period, periods.Last())}
		}
		weights[desc.Period] = decimal.NewFromInt(1)
		return weights, nil

	case model.Linear:
		if err := checkRange(desc, periods); err != nil {
			return nil, err
		}
		span := desc.End - desc.Start + 1
		w := decimal.NewFromInt(1).Div(decimal.NewFromInt(int64(span)))
		for seq := desc.Start; seq <= desc.End; seq++ {
			weights[seq] = w
		}
		return weights, nil

	case model.SCurve:
		if err := checkRange(desc, periods); err != nil {
			return nil, err
		}
		if desc.Skew < -1 || desc.Skew > 1 {
			return nil, &Error{Kind: desc.Kind, Reason: fmt.Sprintf("skew %g outside [-1, 1]", desc.Skew)}
		}
		raw := sCurveWeights(desc.End-desc.Start+1, desc.Skew)
		for i, w := range raw {
			weights[desc.Start+i] = w
		}
		return weights, nil

	case model.Custom:
		if err := checkRange(desc, periods); err != nil {
			return nil, err
		}
		span := desc.End - desc.Start + 1
		if len(desc.Weights) != span {
			return nil, &Error{Kind: desc.Kind, Reason: fmt.Sprintf("%d weights for a %d-period range", len(desc.Weights), span)}
		}
		sum := decimal.Zero
		for _, w := range desc.Weights {
			sum = sum.Add(w)
		}
		if diff, _ := sum.Sub(decimal.NewFromInt(1)).Abs().Float64(); diff > WeightEpsilon {
			return nil, &Error{Kind: desc.Kind, Reason: fmt.Sprintf("weights sum to %s, not 1", sum)}
		}
		// Normalize away the permitted epsilon so conservation stays exact.
		for i, w := range desc.Weights {
			weights[desc.Start+i] = w.Div(sum)
		}
		return weights, nil

	default:
		return nil, &Error{Kind: desc.Kind, Reason: "unknown distribution kind"}
	}
}

func checkRange(desc model.TimingDescriptor, periods model.Periods) error {
	if desc.Start > desc.End {
		return &Error{Kind: desc.Kind, Reason: fmt.Sprintf("start %d after end %d", desc.Start, desc.End)}
	}
	if desc.Start < 0 || desc.End > periods.Last() {
		return &Error{Kind: desc.Kind, Reason: fmt.Sprintf("range [%d, %d] outside project periods [0, %d]", desc.Start, desc.End, periods.Last())}
	}
	return nil
}

// sCurveWeights builds n logistic-curve weights normalized to sum to 1.
// Skew shifts the curve midpoint: negative front-loads spending, positive
// back-loads it, zero is symmetric.
func sCurveWeights(n int, skew float64) []decimal.Decimal {
	if n == 1 {
		return []decimal.Decimal{decimal.NewFromInt(1)}
	}

	mid := 0.5 + 0.25*skew
	logistic := func(t float64) float64 {
		return 1.0 / (1.0 + math.Exp(-sCurveSteepness*(t-mid)))
	}
	lo, hi := logistic(0), logistic(1)

	raw := make([]float64, n)
	for i := 0; i < n; i++ {
		a := logistic(float64(i) / float64(n))
		b := logistic(float64(i+1) / float64(n))
		raw[i] = (b - a) / (hi - lo)
	}

	// Convert to decimal and renormalize exactly.
	weights := make([]decimal.Decimal, n)
	sum := decimal.Zero
	for i, w := range raw {
		weights[i] = decimal.NewFromFloat(w)
		sum = sum.Add(weights[i])
	}
	for i := range weights {
		weights[i] = weights[i].Div(sum)
	}
	return weights
}
