package config

import (
	"fmt"
	"math"
	"strings"

	"github.com/Greggwolin/landscape-sub017/pkg/model"
)

// WeightSumEpsilon is the allowed deviation from 1.0 for custom timing
// weights at validation time.
const WeightSumEpsilon = 1e-6

// ValidationError collects every structural problem found in a snapshot
// configuration so the caller can point the user at all offending inputs in
// one pass.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid snapshot: %s", strings.Join(e.Problems, "; "))
}

var validCategories = map[string]bool{
	"revenue": true, "operating_expense": true, "capital_expense": true,
	"financing": true, "distribution": true,
}

var validKinds = map[string]bool{
	"project": true, "area": true, "phase": true, "parcel": true, "lot": true,
}

var validTimings = map[string]bool{
	"lump_sum": true, "linear": true, "s_curve": true, "custom": true,
}

var validFrequencies = map[string]bool{
	"monthly": true, "quarterly": true, "annual": true,
}

var validTierRules = map[string]bool{
	"return_of_capital": true, "preferred_return": true, "catchup": true, "split": true,
}

var validFacilityKinds = map[string]bool{
	"construction": true, "permanent": true,
}

// Validate returns every structural violation in the configuration. An
// empty slice means the configuration can be converted to a snapshot.
func (conf *Configuration) Validate() []string {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if conf.Project.ID == "" {
		add("project id is required")
	}
	if !validFrequencies[conf.Project.Frequency] {
		add("project frequency %q is not monthly, quarterly, or annual", conf.Project.Frequency)
	}
	if conf.Project.StartDate == "" || conf.Project.EndDate == "" {
		add("project start and end dates are required")
	}

	// Timing descriptors are range-checked against the generated period
	// count when the period setup itself is valid.
	periodCount := -1
	if validFrequencies[conf.Project.Frequency] && conf.Project.StartDate != "" && conf.Project.EndDate != "" {
		if periods, err := model.GeneratePeriods(conf.Project.StartDate, conf.Project.EndDate, model.Frequency(conf.Project.Frequency)); err != nil {
			add("project period range: %v", err)
		} else {
			periodCount = periods.Len()
		}
	}

	containerIDs := make(map[int64]bool, len(conf.Containers))
	for _, c := range conf.Containers {
		if containerIDs[c.ID] {
			add("duplicate container id %d", c.ID)
		}
		containerIDs[c.ID] = true
		if !validKinds[c.Kind] {
			add("container %d has unknown kind %q", c.ID, c.Kind)
		}
	}

	itemIDs := make(map[int64]bool, len(conf.Items))
	for _, it := range conf.Items {
		if itemIDs[it.ID] {
			add("duplicate item id %d", it.ID)
		}
		itemIDs[it.ID] = true
	}

	for _, it := range conf.Items {
		if !containerIDs[it.Container] {
			add("item %d references unknown container %d", it.ID, it.Container)
		}
		if !validCategories[it.Category] {
			add("item %d has unknown category %q", it.ID, it.Category)
		}
		for _, dep := range it.DependsOn {
			if !itemIDs[dep] {
				add("item %d depends on unknown item %d", it.ID, dep)
			}
		}
		if esc := it.Escalation; esc != nil {
			if !itemIDs[esc.BaseItem] {
				add("item %d escalates unknown base item %d", it.ID, esc.BaseItem)
			}
			if esc.BaseItem == it.ID {
				add("item %d escalates itself", it.ID)
			}
			continue
		}

		if !validTimings[it.Timing.Kind] {
			add("item %d has unknown timing kind %q", it.ID, it.Timing.Kind)
			continue
		}
		switch it.Timing.Kind {
		case "lump_sum":
			if periodCount >= 0 && (it.Timing.Period < 0 || it.Timing.Period >= periodCount) {
				add("item %d lump-sum period %d outside 0..%d", it.ID, it.Timing.Period, periodCount-1)
			}
		case "linear", "s_curve", "custom":
			if it.Timing.Start > it.Timing.End {
				add("item %d timing start %d after end %d", it.ID, it.Timing.Start, it.Timing.End)
			} else if periodCount >= 0 && (it.Timing.Start < 0 || it.Timing.End >= periodCount) {
				add("item %d timing range %d..%d outside 0..%d", it.ID, it.Timing.Start, it.Timing.End, periodCount-1)
			}
		}
		if it.Timing.Kind == "s_curve" && (it.Timing.Skew < -1 || it.Timing.Skew > 1) {
			add("item %d s-curve skew %g outside [-1, 1]", it.ID, it.Timing.Skew)
		}
		if it.Timing.Kind == "custom" {
			sum := 0.0
			for _, w := range it.Timing.Weights {
				sum += w
			}
			if math.Abs(sum-1.0) > WeightSumEpsilon {
				add("item %d custom weights sum to %g, not 1", it.ID, sum)
			}
		}
	}

	trancheIDs := make(map[int64]bool, len(conf.Tranches))
	for _, tr := range conf.Tranches {
		if trancheIDs[tr.ID] {
			add("duplicate tranche id %d", tr.ID)
		}
		trancheIDs[tr.ID] = true
		if tr.Commitment < 0 {
			add("tranche %d has negative commitment", tr.ID)
		}
	}

	for _, f := range conf.Facilities {
		if !validFacilityKinds[f.Kind] {
			add("facility %d has unknown kind %q", f.ID, f.Kind)
		}
		if f.Commitment <= 0 {
			add("facility %d commitment must be positive", f.ID)
		}
	}

	if len(conf.Tranches) > 0 {
		problems = append(problems, conf.validateTiers(trancheIDs)...)
	}

	return problems
}

// validateTiers checks tier ordering and composition. The waterfall engine
// re-validates at construction; checking here too lets the UI report tier
// problems alongside every other input problem.
func (conf *Configuration) validateTiers(trancheIDs map[int64]bool) []string {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if len(conf.Tiers) == 0 {
		add("tranches defined but no waterfall tiers")
		return problems
	}

	for i, tier := range conf.Tiers {
		if tier.Index != i+1 {
			add("tier at position %d has index %d; indexes must be 1..n with no gaps", i, tier.Index)
		}
		if !validTierRules[tier.Rule] {
			add("tier %d has unknown rule %q", tier.Index, tier.Rule)
			continue
		}
		for _, id := range tier.Tranches {
			if !trancheIDs[id] {
				add("tier %d references unknown tranche %d", tier.Index, id)
			}
		}
		if tier.Rule == "split" {
			total := 0.0
			for id, pct := range tier.Splits {
				if !trancheIDs[id] {
					add("tier %d split references unknown tranche %d", tier.Index, id)
				}
				total += pct
			}
			if math.Abs(total-100.0) > WeightSumEpsilon {
				add("tier %d split percentages total %g, not 100", tier.Index, total)
			}
		}
	}
	if last := conf.Tiers[len(conf.Tiers)-1]; last.Rule != "split" {
		add("last tier must be a split covering 100%%")
	}

	return problems
}
