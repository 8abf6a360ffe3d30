// Package engine orchestrates a full calculation run: dependency resolution,
// aggregation, debt service, the equity waterfall, and return metrics,
// published as immutable versioned results.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/Greggwolin/landscape-sub017/pkg/cashflow"
	"github.com/Greggwolin/landscape-sub017/pkg/debt"
	"github.com/Greggwolin/landscape-sub017/pkg/depgraph"
	"github.com/Greggwolin/landscape-sub017/pkg/model"
	"github.com/Greggwolin/landscape-sub017/pkg/returns"
	"github.com/Greggwolin/landscape-sub017/pkg/waterfall"
)

// DefaultRunTimeout bounds a single calculation run. Large portfolios finish
// well inside this; it exists to cut off runaway runs, not to pace them.
const DefaultRunTimeout = 10 * time.Minute

// TimeoutError reports a run cancelled by its deadline or caller. Previously
// published results are untouched.
type TimeoutError struct {
	ProjectID string
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("calculation for project %s timed out", e.ProjectID)
}

// RunResult is the immutable output of one calculation run.
type RunResult struct {
	RunID      uuid.UUID
	InputHash  uint64
	Facts      *cashflow.Table
	Debt       []*debt.Facts
	Waterfall  *waterfall.Result
	Metrics    ProjectMetrics
	Warnings   []model.Warning
	ComputedAt time.Time
}

// Runner executes calculation runs. Runs for distinct projects proceed in
// parallel; runs for the same project are serialized by a weight-1 lease so
// two runs never race to publish a latest version. Results are cached by
// input content hash.
type Runner struct {
	logger  *zap.Logger
	timeout time.Duration

	mu        sync.Mutex
	leases    map[string]*semaphore.Weighted
	versions  map[string]int64
	latest    map[string]*RunResult
	cache     map[string]map[uint64]*RunResult
	providers map[model.ItemID]model.RateProvider
}

// SetRateProviders registers escalation rate sources (the pluggable CPI
// hook) applied to every subsequent run.
func (r *Runner) SetRateProviders(providers map[model.ItemID]model.RateProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers = providers
}

// NewRunner creates a Runner with the given run timeout; zero means
// DefaultRunTimeout.
func NewRunner(logger *zap.Logger, timeout time.Duration) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = DefaultRunTimeout
	}
	return &Runner{
		logger:   logger,
		timeout:  timeout,
		leases:   make(map[string]*semaphore.Weighted),
		versions: make(map[string]int64),
		latest:   make(map[string]*RunResult),
		cache:    make(map[string]map[uint64]*RunResult),
	}
}

func (r *Runner) lease(projectID string) *semaphore.Weighted {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.leases[projectID]; !ok {
		r.leases[projectID] = semaphore.NewWeighted(1)
	}
	return r.leases[projectID]
}

// Latest returns the most recently published result for a project, or nil.
// Results are stale-but-valid: a caller re-requesting before a new version
// publishes sees the prior version unchanged.
func (r *Runner) Latest(projectID string) *RunResult {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.latest[projectID]
}

// Recalculate runs a full calculation for the snapshot. An unchanged input
// set is served from cache without re-entering the pipeline. On any fatal
// error or timeout no new version is published.
func (r *Runner) Recalculate(ctx context.Context, snapshot *model.Snapshot) (*RunResult, error) {
	hash := snapshot.ContentHash()

	r.mu.Lock()
	if cached, ok := r.cache[snapshot.ProjectID][hash]; ok {
		r.mu.Unlock()
		r.logger.Debug("serving calculation from cache",
			zap.String("op", "engine.Recalculate"),
			zap.String("project", snapshot.ProjectID),
			zap.Uint64("input_hash", hash),
		)
		return cached, nil
	}
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	lease := r.lease(snapshot.ProjectID)
	if err := lease.Acquire(ctx, 1); err != nil {
		return nil, &TimeoutError{ProjectID: snapshot.ProjectID}
	}
	defer lease.Release(1)

	// A concurrent run for the same inputs may have published while this
	// caller waited on the lease.
	r.mu.Lock()
	if cached, ok := r.cache[snapshot.ProjectID][hash]; ok {
		r.mu.Unlock()
		return cached, nil
	}
	r.mu.Unlock()

	result, err := r.run(ctx, snapshot, hash)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, &TimeoutError{ProjectID: snapshot.ProjectID}
		}
		return nil, err
	}

	r.mu.Lock()
	r.versions[snapshot.ProjectID]++
	result.Metrics.CalculationVersion = r.versions[snapshot.ProjectID]
	r.latest[snapshot.ProjectID] = result
	if r.cache[snapshot.ProjectID] == nil {
		r.cache[snapshot.ProjectID] = make(map[uint64]*RunResult)
	}
	r.cache[snapshot.ProjectID][hash] = result
	r.mu.Unlock()

	r.logger.Info("published calculation",
		zap.String("op", "engine.Recalculate"),
		zap.String("project", snapshot.ProjectID),
		zap.Int64("version", result.Metrics.CalculationVersion),
		zap.String("run_id", result.RunID.String()),
		zap.Int("warnings", len(result.Warnings)),
	)
	return result, nil
}

// run executes the pipeline against an immutable snapshot.
func (r *Runner) run(ctx context.Context, snapshot *model.Snapshot, hash uint64) (*RunResult, error) {
	result := &RunResult{
		RunID:      uuid.New(),
		InputHash:  hash,
		ComputedAt: time.Now().UTC(),
	}

	ordered, err := depgraph.Resolve(r.logger, snapshot.Items)
	if err != nil {
		return nil, err
	}

	aggregator := cashflow.NewAggregator(r.logger)
	r.mu.Lock()
	for id, provider := range r.providers {
		aggregator.SetRateProvider(id, provider)
	}
	r.mu.Unlock()
	table, warnings, err := aggregator.Aggregate(ctx, ordered, snapshot.Periods, snapshot.Tree)
	if err != nil {
		return nil, err
	}
	result.Warnings = append(result.Warnings, warnings...)

	root := snapshot.Tree.Root()
	preDebtNet := table.NetSeries(root)
	unleveredMetrics := returns.Compute(preDebtNet, snapshot.DiscountRate, periodsPerYear(snapshot.Periods.Frequency))

	// Debt service consumes the pre-debt series and merges back into the
	// fact table as financing-category facts.
	calculator := debt.NewCalculator(r.logger)
	noi := table.NOISeries(root)
	for _, facility := range snapshot.Facilities {
		facts, debtWarnings, err := calculator.Calculate(facility, preDebtNet, noi, snapshot.Periods.Frequency)
		if err != nil {
			return nil, err
		}
		result.Debt = append(result.Debt, facts)
		result.Warnings = append(result.Warnings, debtWarnings...)

		draws, reserveDraws, interest, principal := facts.Series(snapshot.Periods.Len())
		sourceID := model.ItemID(-int64(facility.ID))
		aggregator.MergeDebtFacts(table, root, sourceID, "draw", draws)
		aggregator.MergeDebtFacts(table, root, sourceID, "interest_reserve_draw", reserveDraws)
		aggregator.MergeDebtFacts(table, root, sourceID, "interest", interest)
		aggregator.MergeDebtFacts(table, root, sourceID, "principal", principal)
	}
	result.Facts = table

	postDebtNet := table.NetSeries(root)
	leveredMetrics := returns.Compute(postDebtNet, snapshot.DiscountRate, periodsPerYear(snapshot.Periods.Frequency))

	if len(snapshot.Tranches) > 0 {
		wf := waterfall.NewEngine(r.logger)
		dist, err := wf.Distribute(postDebtNet, snapshot.Tranches, snapshot.Tiers, snapshot.Periods.Frequency)
		if err != nil {
			return nil, err
		}
		result.Waterfall = dist
	}

	result.Metrics = buildMetrics(result, snapshot, unleveredMetrics, leveredMetrics)
	return result, nil
}

func periodsPerYear(freq model.Frequency) int {
	ppy, err := freq.PeriodsPerYear()
	if err != nil {
		return 12
	}
	return ppy
}

// decimalFromFloat rounds a float metric for snapshot storage.
func decimalFromFloat(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f).Round(6)
}
