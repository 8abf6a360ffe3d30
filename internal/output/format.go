// Package output provides utilities for formatting and displaying
// calculation results.
package output

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Greggwolin/landscape-sub017/internal/engine"
)

// PrettyFormat outputs a human-readable rather than machine-readable table:
// the rolled-up project cash flow by period and category, debt service,
// tranche distributions, and the metrics snapshot.
func PrettyFormat(result *engine.RunResult) {
	p := message.NewPrinter(language.English)
	table := result.Facts
	root := table.Tree().Root()
	categories := table.Categories()

	fmt.Printf("--- Cash flow (version %d) ---\n", result.Metrics.CalculationVersion)
	header := "Period  "
	for _, cat := range categories {
		header += fmt.Sprintf("| %-18s ", cat)
	}
	fmt.Println(header + "| Net")
	for seq := 0; seq < table.Periods().Len(); seq++ {
		row := fmt.Sprintf("%-7s ", table.Periods().List[seq].Label())
		net := decimal.Zero
		for _, cat := range categories {
			amt := table.Amount(root, seq, cat)
			net = net.Add(amt)
			row += p.Sprintf("| $%17.2f ", money(amt))
		}
		fmt.Println(row + p.Sprintf("| $%.2f", money(net)))
	}

	for _, facts := range result.Debt {
		fmt.Printf("\n--- Debt service (facility %d) ---\n", facts.Facility)
		fmt.Println("Period | Draw          | Interest      | Principal     | Balance       | DSCR")
		for _, pf := range facts.Periods {
			dscr := "-"
			if pf.DSCRValid {
				dscr = pf.DSCR.String()
			}
			_, _ = p.Printf("%6d | $%12.2f | $%12.2f | $%12.2f | $%12.2f | %s\n",
				pf.PeriodSeq, money(pf.Draw), money(pf.Interest), money(pf.Principal), money(pf.Balance), dscr)
		}
	}

	if result.Waterfall != nil {
		fmt.Printf("\n--- Tranche distributions ---\n")
		for _, tr := range result.Metrics.Tranches {
			irr := "undefined"
			if tr.IRRDefined {
				irr = tr.IRR.Mul(decimal.NewFromInt(100)).Round(2).String() + "%"
			}
			multiple := "undefined"
			if tr.MultipleValid {
				multiple = tr.EquityMultiple.String() + "x"
			}
			_, _ = p.Printf("Tranche %d: contributed $%.2f, distributed $%.2f, IRR %s, multiple %s\n",
				tr.TrancheID, money(tr.Contributed), money(tr.Distributed), irr, multiple)
		}
	}

	fmt.Printf("\n--- Metrics ---\n")
	fmt.Printf("Unlevered IRR: %s\n", irrString(result.Metrics.UnleveredIRR, result.Metrics.UnleveredIRRDefined))
	fmt.Printf("Levered IRR:   %s\n", irrString(result.Metrics.LeveredIRR, result.Metrics.LeveredIRRDefined))
	_, _ = p.Printf("Unlevered NPV: $%.2f\n", money(result.Metrics.NPV))
	_, _ = p.Printf("Levered NPV:   $%.2f\n", money(result.Metrics.LeveredNPV))
	if result.Metrics.MultipleValid {
		fmt.Printf("Levered equity multiple: %sx\n", result.Metrics.EquityMultiple)
	}
	if result.Metrics.UnleveredMultipleValid {
		fmt.Printf("Unlevered equity multiple: %sx\n", result.Metrics.UnleveredEquityMultiple)
	}
	if result.Metrics.DSCR.HasDebtService {
		fmt.Printf("Min DSCR: %s (period %d), %d periods below 1.0\n",
			result.Metrics.DSCR.MinDSCR, result.Metrics.DSCR.MinPeriodSeq, result.Metrics.DSCR.BelowOneCount)
	}

	if len(result.Warnings) > 0 {
		fmt.Printf("\n--- Warnings ---\n")
		for _, w := range result.Warnings {
			fmt.Println(w.String())
		}
	}
}

// CsvFormat outputs the rolled-up project cash flow in comma-separated value
// format.
func CsvFormat(result *engine.RunResult) {
	table := result.Facts
	root := table.Tree().Root()
	categories := table.Categories()

	cols := make([]string, 0, len(categories)+2)
	cols = append(cols, `"period"`)
	for _, cat := range categories {
		cols = append(cols, fmt.Sprintf(`"%s"`, cat))
	}
	cols = append(cols, `"net"`)
	fmt.Println(strings.Join(cols, ","))

	for seq := 0; seq < table.Periods().Len(); seq++ {
		row := []string{fmt.Sprintf(`"%s"`, table.Periods().List[seq].Label())}
		net := decimal.Zero
		for _, cat := range categories {
			amt := table.Amount(root, seq, cat)
			net = net.Add(amt)
			row = append(row, fmt.Sprintf(`"%s"`, amt.StringFixed(2)))
		}
		row = append(row, fmt.Sprintf(`"%s"`, net.StringFixed(2)))
		fmt.Println(strings.Join(row, ","))
	}
}

func money(d decimal.Decimal) float64 {
	f, _ := d.Float64()
	return f
}

func irrString(rate decimal.Decimal, defined bool) string {
	if !defined {
		return "undefined"
	}
	return rate.Mul(decimal.NewFromInt(100)).Round(2).String() + "%"
}
