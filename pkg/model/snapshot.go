package model

import (
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/shopspring/decimal"
)

// Snapshot is the immutable input set for one calculation run: the container
// tree, the period range, and every financial fact the engine reads. The
// engine never mutates a snapshot; an edit upstream produces a new one.
type Snapshot struct {
	ProjectID    string
	ProjectName  string
	Periods      Periods
	Tree         *ContainerTree
	Items        []FinancialItem
	Facilities   []LoanFacility
	Tranches     []EquityTranche
	Tiers        []WaterfallTier
	DiscountRate decimal.Decimal
}

// ContentHash returns a stable digest of every input that affects calculation
// output. Two snapshots with the same hash produce byte-identical results, so
// the hash is the run cache key.
func (s *Snapshot) ContentHash() uint64 {
	h := xxhash.New()

	write := func(format string, args ...interface{}) {
		_, _ = fmt.Fprintf(h, format, args...)
	}

	write("project|%s|%s|%s\n", s.ProjectID, s.Periods.Frequency, s.DiscountRate.String())
	for _, p := range s.Periods.List {
		write("period|%d|%s\n", p.Seq, p.Label())
	}

	if s.Tree != nil {
		for _, id := range s.Tree.IDs() {
			c := s.Tree.Node(id)
			write("container|%d|%s|%d|%d\n", c.ID, c.Kind, c.ParentID, c.Order)
		}
	}

	items := append([]FinancialItem(nil), s.Items...)
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	for _, it := range items {
		write("item|%d|%d|%s|%s|%s|%s|%d|%d|%d|%g\n",
			it.ID, it.ContainerID, it.Category, it.Subcategory, it.Amount.String(),
			it.Timing.Kind, it.Timing.Period, it.Timing.Start, it.Timing.End, it.Timing.Skew)
		for _, w := range it.Timing.Weights {
			write("weight|%s\n", w.String())
		}
		refs := append([]ItemID(nil), it.DependsOn...)
		sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
		for _, r := range refs {
			write("ref|%d\n", r)
		}
		if esc := it.Escalation; esc != nil {
			write("esc|%d|%s|%s|%s\n", esc.BaseItem, esc.Rate.String(), decimalPtr(esc.Floor), decimalPtr(esc.Cap))
			for _, r := range esc.Schedule {
				write("escrate|%s\n", r.String())
			}
		}
	}

	facilities := append([]LoanFacility(nil), s.Facilities...)
	sort.Slice(facilities, func(i, j int) bool { return facilities[i].ID < facilities[j].ID })
	for _, f := range facilities {
		write("facility|%d|%s|%s|%s|%d|%d|%d|%s|%t\n",
			f.ID, f.Kind, f.Commitment.String(), f.AnnualRate.String(),
			f.StartPeriod, f.InterestOnlyPeriods, f.AmortizationPeriods,
			f.InterestReserve.String(), f.ReserveFundedUpfront)
		seqs := make([]int, 0, len(f.DrawSchedule))
		for seq := range f.DrawSchedule {
			seqs = append(seqs, seq)
		}
		sort.Ints(seqs)
		for _, seq := range seqs {
			write("draw|%d|%s\n", seq, f.DrawSchedule[seq].String())
		}
	}

	tranches := append([]EquityTranche(nil), s.Tranches...)
	sort.Slice(tranches, func(i, j int) bool { return tranches[i].ID < tranches[j].ID })
	for _, tr := range tranches {
		write("tranche|%d|%s|%s|%t\n", tr.ID, tr.Commitment.String(), tr.PreferredRate.String(), tr.Compounding)
	}

	for _, tier := range s.Tiers {
		write("tier|%d|%s|%d|%s\n", tier.Index, tier.Rule, tier.CatchupTranche, tier.CatchupTarget.String())
		members := append([]TrancheID(nil), tier.Tranches...)
		sort.Slice(members, func(i, j int) bool { return members[i] < members[j] })
		for _, m := range members {
			write("member|%d\n", m)
		}
		splitIDs := make([]TrancheID, 0, len(tier.Splits))
		for id := range tier.Splits {
			splitIDs = append(splitIDs, id)
		}
		sort.Slice(splitIDs, func(i, j int) bool { return splitIDs[i] < splitIDs[j] })
		for _, id := range splitIDs {
			write("split|%d|%s\n", id, tier.Splits[id].String())
		}
	}

	return h.Sum64()
}

func decimalPtr(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.String()
}
