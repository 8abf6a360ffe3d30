package model

import "fmt"

// WarningCode identifies an advisory condition surfaced alongside results.
type WarningCode string

const (
	WarnNegativeRevenue WarningCode = "negative_revenue"
	WarnLowDSCR         WarningCode = "low_dscr"
)

// Warning is a non-fatal advisory collected during a run. Warnings never
// block publishing results.
type Warning struct {
	Code      WarningCode
	PeriodSeq int
	SourceID  int64
	Message   string
}

func (w Warning) String() string {
	return fmt.Sprintf("%s (period %d): %s", w.Code, w.PeriodSeq, w.Message)
}
