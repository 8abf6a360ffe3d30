package engine

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Greggwolin/landscape-sub017/pkg/model"
	"github.com/Greggwolin/landscape-sub017/pkg/returns"
)

// TrancheReturn holds the computed returns for one investor class.
type TrancheReturn struct {
	TrancheID      model.TrancheID
	Contributed    decimal.Decimal
	Distributed    decimal.Decimal
	IRR            decimal.Decimal
	IRRDefined     bool
	EquityMultiple decimal.Decimal
	MultipleValid  bool
}

// DSCRSummary condenses the per-period coverage ratios of all facilities.
type DSCRSummary struct {
	MinDSCR        decimal.Decimal
	MinPeriodSeq   int
	HasDebtService bool
	BelowOneCount  int
}

// ProjectMetrics is the versioned metrics snapshot for a calculation run.
// A new run creates a new version; prior versions are never mutated.
type ProjectMetrics struct {
	ProjectID          string
	CalculationVersion int64
	RunID              uuid.UUID

	UnleveredIRR        decimal.Decimal
	UnleveredIRRDefined bool
	LeveredIRR          decimal.Decimal
	LeveredIRRDefined   bool

	// NPV is discounted from the pre-financing series; LeveredNPV from the
	// post-debt series.
	NPV        decimal.Decimal
	LeveredNPV decimal.Decimal

	EquityMultiple          decimal.Decimal
	MultipleValid           bool
	UnleveredEquityMultiple decimal.Decimal
	UnleveredMultipleValid  bool

	DSCR     DSCRSummary
	Tranches []TrancheReturn
}

func buildMetrics(result *RunResult, snapshot *model.Snapshot, unlevered, levered returns.Metrics) ProjectMetrics {
	m := ProjectMetrics{
		ProjectID: snapshot.ProjectID,
		RunID:     result.RunID,

		UnleveredIRR:        decimalFromFloat(unlevered.AnnualIRR),
		UnleveredIRRDefined: unlevered.IRRDefined,
		LeveredIRR:          decimalFromFloat(levered.AnnualIRR),
		LeveredIRRDefined:   levered.IRRDefined,
		NPV:                 unlevered.NPV,
		LeveredNPV:          levered.NPV,

		EquityMultiple:          levered.EquityMultiple,
		MultipleValid:           levered.MultipleValid,
		UnleveredEquityMultiple: unlevered.EquityMultiple,
		UnleveredMultipleValid:  unlevered.MultipleValid,
	}

	for _, facts := range result.Debt {
		for _, pf := range facts.Periods {
			if !pf.DSCRValid {
				continue
			}
			if !m.DSCR.HasDebtService || pf.DSCR.LessThan(m.DSCR.MinDSCR) {
				m.DSCR.MinDSCR = pf.DSCR
				m.DSCR.MinPeriodSeq = pf.PeriodSeq
			}
			m.DSCR.HasDebtService = true
			if pf.DSCR.LessThan(decimal.NewFromInt(1)) {
				m.DSCR.BelowOneCount++
			}
		}
	}

	if result.Waterfall != nil {
		ppy := periodsPerYear(snapshot.Periods.Frequency)
		for _, tranche := range snapshot.Tranches {
			contributions := result.Waterfall.Contributions[tranche.ID]
			distributions := result.Waterfall.ByTranche[tranche.ID]
			series := returns.TrancheSeries(contributions, distributions)
			metrics := returns.Compute(series, snapshot.DiscountRate, ppy)
			multiple, valid := returns.TrancheMultiple(contributions, distributions)

			final := result.Waterfall.Final[tranche.ID]
			m.Tranches = append(m.Tranches, TrancheReturn{
				TrancheID:      tranche.ID,
				Contributed:    final.Contributed,
				Distributed:    final.Distributed,
				IRR:            decimalFromFloat(metrics.AnnualIRR),
				IRRDefined:     metrics.IRRDefined,
				EquityMultiple: multiple,
				MultipleValid:  valid,
			})
		}
	}

	return m
}
