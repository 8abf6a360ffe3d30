// Package depgraph orders financial items so that every item is evaluated
// after the items it references. Cycles are detected exactly and reported
// with their full membership.
package depgraph

import (
	"container/heap"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/Greggwolin/landscape-sub017/pkg/model"
)

// CircularDependencyError names every item participating in a reference
// cycle, in cycle order starting from the smallest id.
type CircularDependencyError struct {
	Cycle []model.ItemID
}

func (e *CircularDependencyError) Error() string {
	parts := make([]string, len(e.Cycle))
	for i, id := range e.Cycle {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return fmt.Sprintf("circular dependency among items [%s]", strings.Join(parts, " -> "))
}

// UnknownReferenceError reports an item referencing an id not in the set.
// The inbound snapshot contract promises this never happens; it is still
// checked so a collaborator bug surfaces as a typed error, not a panic.
type UnknownReferenceError struct {
	Item model.ItemID
	Ref  model.ItemID
}

func (e *UnknownReferenceError) Error() string {
	return fmt.Sprintf("item %d references unknown item %d", e.Item, e.Ref)
}

// Resolve returns a total evaluation order over items respecting every
// declared reference: if B references A, A precedes B. Ties are broken by
// item id ascending so the order is reproducible across runs. The sort is
// Kahn's algorithm with a min-heap ready set; no recursion, so deep
// reference chains cannot exhaust the stack.
func Resolve(logger *zap.Logger, items []model.FinancialItem) ([]model.FinancialItem, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	byID := make(map[model.ItemID]model.FinancialItem, len(items))
	for _, it := range items {
		byID[it.ID] = it
	}

	// dependents[a] lists items that read a; indegree counts unevaluated
	// references per item.
	dependents := make(map[model.ItemID][]model.ItemID, len(items))
	indegree := make(map[model.ItemID]int, len(items))
	for _, it := range items {
		if _, ok := indegree[it.ID]; !ok {
			indegree[it.ID] = 0
		}
		for _, ref := range it.References() {
			if _, ok := byID[ref]; !ok {
				return nil, &UnknownReferenceError{Item: it.ID, Ref: ref}
			}
			dependents[ref] = append(dependents[ref], it.ID)
			indegree[it.ID]++
		}
	}

	ready := &idHeap{}
	heap.Init(ready)
	for id, deg := range indegree {
		if deg == 0 {
			heap.Push(ready, id)
		}
	}

	order := make([]model.FinancialItem, 0, len(items))
	for ready.Len() > 0 {
		id := heap.Pop(ready).(model.ItemID)
		order = append(order, byID[id])
		deps := dependents[id]
		sort.Slice(deps, func(i, j int) bool { return deps[i] < deps[j] })
		for _, dep := range deps {
			indegree[dep]--
			if indegree[dep] == 0 {
				heap.Push(ready, dep)
			}
		}
	}

	if len(order) != len(items) {
		cycle := findCycle(byID, indegree)
		logger.Error("dependency resolution failed",
			zap.String("op", "depgraph.Resolve"),
			zap.Int("cycle_size", len(cycle)),
		)
		return nil, &CircularDependencyError{Cycle: cycle}
	}

	logger.Debug(fmt.Sprintf("resolved evaluation order for %d items", len(order)),
		zap.String("op", "depgraph.Resolve"),
	)
	return order, nil
}

// findCycle walks the subgraph of items that never reached indegree zero and
// returns one complete cycle path. The walk is iterative.
func findCycle(byID map[model.ItemID]model.FinancialItem, indegree map[model.ItemID]int) []model.ItemID {
	remaining := make(map[model.ItemID]bool)
	for id, deg := range indegree {
		if deg > 0 {
			remaining[id] = true
		}
	}

	// Start from the smallest remaining id for a deterministic report.
	var start model.ItemID
	first := true
	for id := range remaining {
		if first || id < start {
			start = id
			first = false
		}
	}
	if first {
		return nil
	}

	// Follow references within the remaining subgraph until an id repeats;
	// the repeated segment is the cycle.
	visitedAt := map[model.ItemID]int{}
	var path []model.ItemID
	cur := start
	for {
		if at, seen := visitedAt[cur]; seen {
			return append([]model.ItemID(nil), path[at:]...)
		}
		visitedAt[cur] = len(path)
		path = append(path, cur)

		refs := byID[cur].References()
		sort.Slice(refs, func(i, j int) bool { return refs[i] < refs[j] })
		next := cur
		for _, ref := range refs {
			if remaining[ref] {
				next = ref
				break
			}
		}
		cur = next
	}
}

// idHeap is a min-heap of item ids.
type idHeap []model.ItemID

func (h idHeap) Len() int            { return len(h) }
func (h idHeap) Less(i, j int) bool  { return h[i] < h[j] }
func (h idHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *idHeap) Push(x interface{}) { *h = append(*h, x.(model.ItemID)) }
func (h *idHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
