package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/Greggwolin/landscape-sub017/pkg/model"
)

// ToSnapshot validates the configuration and converts it to an immutable
// model snapshot ready for calculation. All structural violations are
// collected into the returned ValidationError, not just the first.
func (conf *Configuration) ToSnapshot() (*model.Snapshot, error) {
	if errs := conf.Validate(); len(errs) > 0 {
		return nil, &ValidationError{Problems: errs}
	}

	periods, err := model.GeneratePeriods(conf.Project.StartDate, conf.Project.EndDate, model.Frequency(conf.Project.Frequency))
	if err != nil {
		return nil, err
	}

	containers := make([]model.Container, len(conf.Containers))
	for i, c := range conf.Containers {
		containers[i] = model.Container{
			ID:       model.ContainerID(c.ID),
			Kind:     model.ContainerKind(c.Kind),
			ParentID: model.ContainerID(c.Parent),
			Name:     c.Name,
			Order:    c.Order,
		}
	}
	tree, err := model.NewContainerTree(containers)
	if err != nil {
		return nil, err
	}

	snapshot := &model.Snapshot{
		ProjectID:    conf.Project.ID,
		ProjectName:  conf.Project.Name,
		Periods:      periods,
		Tree:         tree,
		DiscountRate: decimal.NewFromFloat(conf.Project.DiscountRate),
	}

	for _, it := range conf.Items {
		item := model.FinancialItem{
			ID:          model.ItemID(it.ID),
			ContainerID: model.ContainerID(it.Container),
			Name:        it.Name,
			Category:    model.Category(it.Category),
			Subcategory: it.Subcategory,
			Amount:      decimal.NewFromFloat(it.Amount),
			Timing: model.TimingDescriptor{
				Kind:    model.DistributionKind(it.Timing.Kind),
				Period:  it.Timing.Period,
				Start:   it.Timing.Start,
				End:     it.Timing.End,
				Skew:    it.Timing.Skew,
				Weights: toDecimals(it.Timing.Weights),
			},
		}
		for _, dep := range it.DependsOn {
			item.DependsOn = append(item.DependsOn, model.ItemID(dep))
		}
		if esc := it.Escalation; esc != nil {
			item.Escalation = &model.EscalationRule{
				BaseItem: model.ItemID(esc.BaseItem),
				Rate:     decimal.NewFromFloat(esc.Rate),
				Floor:    toDecimalPtr(esc.Floor),
				Cap:      toDecimalPtr(esc.Cap),
				Schedule: toDecimals(esc.RateSchedule),
			}
		}
		snapshot.Items = append(snapshot.Items, item)
	}

	for _, f := range conf.Facilities {
		facility := model.LoanFacility{
			ID:                   model.FacilityID(f.ID),
			Name:                 f.Name,
			Kind:                 model.FacilityKind(f.Kind),
			Commitment:           decimal.NewFromFloat(f.Commitment),
			AnnualRate:           decimal.NewFromFloat(f.AnnualRate),
			StartPeriod:          f.StartPeriod,
			InterestOnlyPeriods:  f.InterestOnlyPeriods,
			AmortizationPeriods:  f.AmortizationPeriods,
			InterestReserve:      decimal.NewFromFloat(f.InterestReserve),
			ReserveFundedUpfront: f.ReserveFundedUpfront,
		}
		if len(f.DrawSchedule) > 0 {
			facility.DrawSchedule = make(map[int]decimal.Decimal, len(f.DrawSchedule))
			for seq, amt := range f.DrawSchedule {
				facility.DrawSchedule[seq] = decimal.NewFromFloat(amt)
			}
		}
		snapshot.Facilities = append(snapshot.Facilities, facility)
	}

	for _, tr := range conf.Tranches {
		snapshot.Tranches = append(snapshot.Tranches, model.EquityTranche{
			ID:            model.TrancheID(tr.ID),
			Name:          tr.Name,
			Commitment:    decimal.NewFromFloat(tr.Commitment),
			PreferredRate: decimal.NewFromFloat(tr.PreferredRate),
			Compounding:   tr.Compounding,
		})
	}

	for _, tier := range conf.Tiers {
		converted := model.WaterfallTier{
			Index:          tier.Index,
			Rule:           model.TierRule(tier.Rule),
			CatchupTranche: model.TrancheID(tier.CatchupTranche),
			CatchupTarget:  decimal.NewFromFloat(tier.CatchupTarget),
		}
		for _, id := range tier.Tranches {
			converted.Tranches = append(converted.Tranches, model.TrancheID(id))
		}
		if len(tier.Splits) > 0 {
			converted.Splits = make(map[model.TrancheID]decimal.Decimal, len(tier.Splits))
			for id, pct := range tier.Splits {
				converted.Splits[model.TrancheID(id)] = decimal.NewFromFloat(pct)
			}
		}
		snapshot.Tiers = append(snapshot.Tiers, converted)
	}

	return snapshot, nil
}

func toDecimals(values []float64) []decimal.Decimal {
	if len(values) == 0 {
		return nil
	}
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func toDecimalPtr(v *float64) *decimal.Decimal {
	if v == nil {
		return nil
	}
	d := decimal.NewFromFloat(*v)
	return &d
}

// Describe renders a short human identifier for logs.
func (conf *Configuration) Describe() string {
	return fmt.Sprintf("%s (%s)", conf.Project.Name, conf.Project.ID)
}
