// Package cashflow materializes per-period, per-container cash-flow facts
// from an ordered item set and rolls them up the container hierarchy.
package cashflow

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/Greggwolin/landscape-sub017/pkg/model"
)

// Fact is one immutable computed cash-flow amount. Amounts are signed:
// inflows positive, outflows negative.
type Fact struct {
	ContainerID model.ContainerID
	PeriodSeq   int
	Category    model.Category
	Subcategory string
	Amount      decimal.Decimal
	SourceID    model.ItemID
}

type cellKey struct {
	Container model.ContainerID
	Period    int
	Category  model.Category
}

// Table is the run-scoped cash-flow fact table: the direct facts in
// deterministic production order plus rolled-up totals per
// (container, period, category).
type Table struct {
	periods model.Periods
	tree    *model.ContainerTree
	facts   []Fact
	direct  map[cellKey]decimal.Decimal
	rolled  map[cellKey]decimal.Decimal
}

// NewTable creates an empty fact table over the given periods and tree.
func NewTable(periods model.Periods, tree *model.ContainerTree) *Table {
	return &Table{
		periods: periods,
		tree:    tree,
		direct:  make(map[cellKey]decimal.Decimal),
		rolled:  make(map[cellKey]decimal.Decimal),
	}
}

// Periods returns the period range the table spans.
func (t *Table) Periods() model.Periods { return t.periods }

// Tree returns the container tree the table rolls up through.
func (t *Table) Tree() *model.ContainerTree { return t.tree }

// Facts returns every direct fact in production order (period-major, then
// evaluation order). The slice is the table's own storage; callers must not
// mutate it.
func (t *Table) Facts() []Fact { return t.facts }

func (t *Table) append(f Fact) {
	t.facts = append(t.facts, f)
	key := cellKey{f.ContainerID, f.PeriodSeq, f.Category}
	t.direct[key] = t.direct[key].Add(f.Amount)
}

// Direct returns the sum of facts attached directly to the container for the
// given period and category, excluding children.
func (t *Table) Direct(c model.ContainerID, period int, cat model.Category) decimal.Decimal {
	return t.direct[cellKey{c, period, cat}]
}

// Amount returns the rolled-up amount for (container, period, category):
// the container's direct facts plus all descendants'.
func (t *Table) Amount(c model.ContainerID, period int, cat model.Category) decimal.Decimal {
	return t.rolled[cellKey{c, period, cat}]
}

// rollup recomputes rolled-up totals bottom-to-top. It is safe to call
// repeatedly; each call rebuilds from the direct facts, so the operation is
// idempotent and order-independent.
func (t *Table) rollup() {
	t.rolled = make(map[cellKey]decimal.Decimal, len(t.direct))
	categories := []model.Category{model.Revenue, model.OperatingExpense, model.CapitalExpense, model.Financing, model.Distribution}

	for _, id := range t.tree.BottomUpOrder() {
		for p := 0; p < t.periods.Len(); p++ {
			for _, cat := range categories {
				sum := t.direct[cellKey{id, p, cat}]
				for _, child := range t.tree.Children(id) {
					sum = sum.Add(t.rolled[cellKey{child, p, cat}])
				}
				if !sum.IsZero() {
					t.rolled[cellKey{id, p, cat}] = sum
				}
			}
		}
	}
}

// NetSeries returns the signed net cash flow per period for a container
// across all categories, rolled up.
func (t *Table) NetSeries(c model.ContainerID) []decimal.Decimal {
	series := make([]decimal.Decimal, t.periods.Len())
	for p := range series {
		net := decimal.Zero
		for _, cat := range []model.Category{model.Revenue, model.OperatingExpense, model.CapitalExpense, model.Financing, model.Distribution} {
			net = net.Add(t.Amount(c, p, cat))
		}
		series[p] = net
	}
	return series
}

// CategorySeries returns the rolled-up per-period series for one category.
func (t *Table) CategorySeries(c model.ContainerID, cat model.Category) []decimal.Decimal {
	series := make([]decimal.Decimal, t.periods.Len())
	for p := range series {
		series[p] = t.Amount(c, p, cat)
	}
	return series
}

// NOISeries returns net operating income per period (revenue plus operating
// expense, both signed) for the container.
func (t *Table) NOISeries(c model.ContainerID) []decimal.Decimal {
	series := make([]decimal.Decimal, t.periods.Len())
	for p := range series {
		series[p] = t.Amount(c, p, model.Revenue).Add(t.Amount(c, p, model.OperatingExpense))
	}
	return series
}

// SourceSeries returns the per-period amounts produced by one item.
func (t *Table) SourceSeries(id model.ItemID) []decimal.Decimal {
	series := make([]decimal.Decimal, t.periods.Len())
	for _, f := range t.facts {
		if f.SourceID == id {
			series[f.PeriodSeq] = series[f.PeriodSeq].Add(f.Amount)
		}
	}
	return series
}

// Categories returns the categories present in the table, sorted.
func (t *Table) Categories() []model.Category {
	seen := map[model.Category]bool{}
	for _, f := range t.facts {
		seen[f.Category] = true
	}
	cats := make([]model.Category, 0, len(seen))
	for cat := range seen {
		cats = append(cats, cat)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i] < cats[j] })
	return cats
}
