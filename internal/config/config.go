// Package config defines the project snapshot schema, loads it from YAML,
// and converts it into the engine's model types.
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Configuration is the full input document for one project: the inventory
// tree, period setup, financial items, financing, and equity structure, plus
// logging and output options for the CLI.
type Configuration struct {
	Project    Project
	Containers []Container
	Items      []Item
	Facilities []Facility
	Tranches   []Tranche
	Tiers      []Tier
	Logging    LoggingConfig `yaml:"logging,omitempty"`
	Output     OutputConfig  `yaml:"output,omitempty"`
}

// Project holds analysis-setup parameters. Periods are generated once from
// StartDate, EndDate, and Frequency; regenerating them invalidates all
// downstream facts, so edits produce a whole new snapshot.
type Project struct {
	ID           string
	Name         string
	StartDate    string // 2006-01 layout
	EndDate      string
	Frequency    string  // monthly, quarterly, annual
	DiscountRate float64 // annual percent
}

// Container is one node of the inventory tree. Parent is zero for the
// project root.
type Container struct {
	ID     int64
	Kind   string // project, area, phase, parcel, lot
	Parent int64
	Name   string
	Order  int
}

// Timing describes how an item's amount distributes over periods.
type Timing struct {
	Kind    string // lump_sum, linear, s_curve, custom
	Period  int
	Start   int
	End     int
	Skew    float64
	Weights []float64
}

// Escalation marks an item as a derived rule escalating a base item. When
// RateSchedule is set it supplies the effective per-period rates; otherwise
// Rate applies every period.
type Escalation struct {
	BaseItem     int64
	Rate         float64
	Floor        *float64
	Cap          *float64
	RateSchedule []float64
}

// Item is one financial line. Amounts are positive magnitudes; the category
// determines the cash-flow sign.
type Item struct {
	ID          int64
	Container   int64
	Name        string
	Category    string // revenue, operating_expense, capital_expense, financing, distribution
	Subcategory string
	Amount      float64
	Timing      Timing
	DependsOn   []int64
	Escalation  *Escalation
}

// Facility holds loan facility terms.
type Facility struct {
	ID                   int64
	Name                 string
	Kind                 string // construction, permanent
	Commitment           float64
	AnnualRate           float64
	StartPeriod          int
	InterestOnlyPeriods  int
	AmortizationPeriods  int
	InterestReserve      float64
	ReserveFundedUpfront bool
	DrawSchedule         map[int]float64
}

// Tranche is an investor class.
type Tranche struct {
	ID            int64
	Name          string
	Commitment    float64
	PreferredRate float64
	Compounding   bool
}

// Tier is one waterfall rule. Splits maps tranche id to percent.
type Tier struct {
	Index          int
	Rule           string // return_of_capital, preferred_return, catchup, split
	Tranches       []int64
	Splits         map[int64]float64
	CatchupTranche int64
	CatchupTarget  float64
}

// LoggingConfig holds logging configuration options.
type LoggingConfig struct {
	Level      string `yaml:"level,omitempty"`      // debug, info, warn, error
	Format     string `yaml:"format,omitempty"`     // json, console
	OutputFile string `yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options.
type OutputConfig struct {
	Format string `yaml:"format,omitempty"` // pretty, csv
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// snapshot there.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := viper.New()
	v.SetConfigFile(configPath)
	v.AutomaticEnv()

	v.SetConfigType("yml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file, %s", err)
	}

	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}

	return &configuration, nil
}
