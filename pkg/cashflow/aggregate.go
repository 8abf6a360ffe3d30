package cashflow

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Greggwolin/landscape-sub017/pkg/model"
	"github.com/Greggwolin/landscape-sub017/pkg/moneyutil"
	"github.com/Greggwolin/landscape-sub017/pkg/timing"
)

// MissingFactError reports an item reading a fact that has not been
// materialized yet. With a correct evaluation order this cannot happen, so
// it is fatal.
type MissingFactError struct {
	Item model.ItemID
	Base model.ItemID
}

func (e *MissingFactError) Error() string {
	return fmt.Sprintf("item %d read base item %d before its facts were produced", e.Item, e.Base)
}

// Aggregator evaluates an ordered item set into a fact table. Rate providers
// may be registered per escalation item to supply index-linked rates; items
// without a provider use their fixed configured rate.
type Aggregator struct {
	logger    *zap.Logger
	providers map[model.ItemID]model.RateProvider
}

// NewAggregator creates an Aggregator.
func NewAggregator(logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		logger:    logger,
		providers: make(map[model.ItemID]model.RateProvider),
	}
}

// SetRateProvider registers an escalation rate source for one item.
func (a *Aggregator) SetRateProvider(id model.ItemID, p model.RateProvider) {
	a.providers[id] = p
}

// Aggregate evaluates every item in resolver order, period by period, and
// rolls the resulting facts up the container tree. The ctx is checked
// between periods only, so cancellation never leaves a period half-written.
// Re-running on an unchanged input set produces an identical table.
func (a *Aggregator) Aggregate(ctx context.Context, itemsInOrder []model.FinancialItem, periods model.Periods, tree *model.ContainerTree) (*Table, []model.Warning, error) {
	table := NewTable(periods, tree)
	var warnings []model.Warning

	// Distribution vectors are pure functions of the descriptor, computed
	// once per item up front. Derived (escalation) items are evaluated
	// inside the period loop because they read materialized facts.
	vectors := make(map[model.ItemID][]decimal.Decimal, len(itemsInOrder))
	for _, item := range itemsInOrder {
		if item.Escalation != nil {
			continue
		}
		vec, err := timing.Distribute(item.Amount, item.Timing, periods)
		if err != nil {
			return nil, warnings, err
		}
		vectors[item.ID] = vec
	}

	produced := make(map[model.ItemID]bool, len(itemsInOrder))
	// escalated tracks each derived item's own prior-period amount so
	// escalations compound on computed values.
	escalated := make(map[model.ItemID]decimal.Decimal)

	for p := 0; p < periods.Len(); p++ {
		if err := ctx.Err(); err != nil {
			return nil, warnings, err
		}

		for _, item := range itemsInOrder {
			var amount decimal.Decimal
			if item.Escalation != nil {
				var err error
				amount, err = a.escalate(item, p, table, produced, escalated)
				if err != nil {
					return nil, warnings, err
				}
				escalated[item.ID] = amount
			} else {
				amount = vectors[item.ID][p]
			}

			if amount.IsZero() {
				continue
			}

			sign, err := item.Category.Sign()
			if err != nil {
				return nil, warnings, err
			}
			signed := amount.Mul(decimal.NewFromInt(int64(sign)))

			if item.Category == model.Revenue && signed.IsNegative() {
				warnings = append(warnings, model.Warning{
					Code:      model.WarnNegativeRevenue,
					PeriodSeq: p,
					SourceID:  int64(item.ID),
					Message:   fmt.Sprintf("revenue item %q produced %s", item.Name, signed),
				})
			}

			table.append(Fact{
				ContainerID: item.ContainerID,
				PeriodSeq:   p,
				Category:    item.Category,
				Subcategory: item.Subcategory,
				Amount:      signed,
				SourceID:    item.ID,
			})
		}

		for _, item := range itemsInOrder {
			produced[item.ID] = true
		}
	}

	table.rollup()

	a.logger.Debug(fmt.Sprintf("aggregated %d facts over %d periods", len(table.facts), periods.Len()),
		zap.String("op", "cashflow.Aggregate"),
	)
	return table, warnings, nil
}

// escalate derives an escalation item's amount for period p. Period zero
// seeds from the base item's own amount; later periods grow the item's prior
// computed amount by the effective rate, clamped to the rule's bounds. A
// zero prior amount re-seeds from the base so an escalation can begin when
// its base starts.
func (a *Aggregator) escalate(item model.FinancialItem, p int, table *Table, produced map[model.ItemID]bool, escalated map[model.ItemID]decimal.Decimal) (decimal.Decimal, error) {
	rule := item.Escalation
	if p == 0 {
		return decimal.Zero, nil
	}
	if !produced[rule.BaseItem] {
		return decimal.Zero, &MissingFactError{Item: item.ID, Base: rule.BaseItem}
	}

	// Base for compounding is the prior period's materialized value: the
	// base item's fact plus any escalation already layered on top.
	prior := table.SourceSeries(rule.BaseItem)[p-1].Abs()
	if esc, ok := escalated[item.ID]; ok {
		prior = prior.Add(esc)
	}
	if prior.IsZero() {
		return decimal.Zero, nil
	}

	rate := rule.EffectiveRate(p)
	if provider, ok := a.providers[item.ID]; ok {
		rate = provider.RateFor(p)
	}
	rate = moneyutil.Clamp(rate, rule.Floor, rule.Cap)

	grown := prior.Mul(decimal.NewFromInt(1).Add(moneyutil.Percent(rate)))
	return moneyutil.RoundCents(grown.Sub(table.SourceSeries(rule.BaseItem)[p].Abs())), nil
}

// MergeDebtFacts appends financing-category facts (draws, interest,
// principal, reserve draws) produced by the debt service calculator and
// re-rolls the table. Debt facts attach to the container owning the
// facility, normally the project root.
func (a *Aggregator) MergeDebtFacts(table *Table, containerID model.ContainerID, sourceID model.ItemID, subcategory string, series []decimal.Decimal) {
	for p, amt := range series {
		if amt.IsZero() {
			continue
		}
		table.append(Fact{
			ContainerID: containerID,
			PeriodSeq:   p,
			Category:    model.Financing,
			Subcategory: subcategory,
			Amount:      amt,
			SourceID:    sourceID,
		})
	}
	table.rollup()
}
