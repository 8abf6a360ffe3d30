package model

import (
	"fmt"
	"time"
)

// DateTimeLayout is the format expected in config files and is also the
// output date format.
const DateTimeLayout = "2006-01"

// Frequency is the calculation period granularity.
type Frequency string

const (
	Monthly   Frequency = "monthly"
	Quarterly Frequency = "quarterly"
	Annual    Frequency = "annual"
)

// Months returns the number of calendar months covered by one period.
func (f Frequency) Months() (int, error) {
	switch f {
	case Monthly:
		return 1, nil
	case Quarterly:
		return 3, nil
	case Annual:
		return 12, nil
	default:
		return 0, fmt.Errorf("unknown frequency %q", f)
	}
}

// PeriodsPerYear returns how many periods make up a year at this frequency.
func (f Frequency) PeriodsPerYear() (int, error) {
	months, err := f.Months()
	if err != nil {
		return 0, err
	}
	return 12 / months, nil
}

// Period is a discrete time bucket with a sequence index. Periods are totally
// ordered by Seq and immutable once generated.
type Period struct {
	Seq   int
	Start time.Time
	End   time.Time
}

// Label renders the period's start month in the standard layout.
func (p Period) Label() string { return p.Start.Format(DateTimeLayout) }

// Periods is the ordered period range for a project, indexed by Seq.
type Periods struct {
	Frequency Frequency
	List      []Period
}

// GeneratePeriods builds the full period range for a project from its start
// date, end date, and frequency. Both dates use the 2006-01 layout; the end
// month is included in the final period.
func GeneratePeriods(startDate, endDate string, freq Frequency) (Periods, error) {
	months, err := freq.Months()
	if err != nil {
		return Periods{}, err
	}
	start, err := time.Parse(DateTimeLayout, startDate)
	if err != nil {
		return Periods{}, fmt.Errorf("invalid start date %q: %w", startDate, err)
	}
	end, err := time.Parse(DateTimeLayout, endDate)
	if err != nil {
		return Periods{}, fmt.Errorf("invalid end date %q: %w", endDate, err)
	}
	if end.Before(start) {
		return Periods{}, fmt.Errorf("end date %s precedes start date %s", endDate, startDate)
	}

	var list []Period
	seq := 0
	for cur := start; !cur.After(end); cur = cur.AddDate(0, months, 0) {
		list = append(list, Period{
			Seq:   seq,
			Start: cur,
			End:   cur.AddDate(0, months, 0).AddDate(0, 0, -1),
		})
		seq++
	}
	return Periods{Frequency: freq, List: list}, nil
}

// Len returns the number of periods.
func (p Periods) Len() int { return len(p.List) }

// Last returns the final sequence index, or -1 for an empty range.
func (p Periods) Last() int { return len(p.List) - 1 }

// InRange reports whether seq names a period in the range.
func (p Periods) InRange(seq int) bool { return seq >= 0 && seq < len(p.List) }
