package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Greggwolin/landscape-sub017/pkg/model"
)

func item(id model.ItemID, deps ...model.ItemID) model.FinancialItem {
	return model.FinancialItem{ID: id, Category: model.Revenue, DependsOn: deps}
}

func ids(items []model.FinancialItem) []model.ItemID {
	out := make([]model.ItemID, len(items))
	for i, it := range items {
		out[i] = it.ID
	}
	return out
}

func TestResolveRespectsReferences(t *testing.T) {
	// Revenue depends on absorption, absorption depends on construction.
	items := []model.FinancialItem{
		item(3, 2), // revenue reads absorption
		item(2, 1), // absorption reads construction
		item(1),    // construction
	}

	order, err := Resolve(zap.NewNop(), items)
	require.NoError(t, err)
	assert.Equal(t, []model.ItemID{1, 2, 3}, ids(order))
}

func TestResolveTieBreaksByID(t *testing.T) {
	items := []model.FinancialItem{
		item(30),
		item(10),
		item(20),
	}
	order, err := Resolve(zap.NewNop(), items)
	require.NoError(t, err)
	assert.Equal(t, []model.ItemID{10, 20, 30}, ids(order))
}

func TestResolveIsDeterministic(t *testing.T) {
	items := []model.FinancialItem{
		item(5, 1), item(4, 1), item(3), item(2, 3), item(1),
	}
	first, err := Resolve(zap.NewNop(), items)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := Resolve(zap.NewNop(), items)
		require.NoError(t, err)
		assert.Equal(t, ids(first), ids(again))
	}
}

func TestResolveDiamond(t *testing.T) {
	// 1 feeds 2 and 3; 4 reads both.
	items := []model.FinancialItem{
		item(4, 2, 3),
		item(3, 1),
		item(2, 1),
		item(1),
	}
	order, err := Resolve(zap.NewNop(), items)
	require.NoError(t, err)
	assert.Equal(t, []model.ItemID{1, 2, 3, 4}, ids(order))
}

func TestResolveReportsFullCycle(t *testing.T) {
	// A depends on B, B depends on C, C depends on A.
	items := []model.FinancialItem{
		item(1, 2),
		item(2, 3),
		item(3, 1),
	}

	_, err := Resolve(zap.NewNop(), items)
	require.Error(t, err)

	var cycleErr *CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
	assert.ElementsMatch(t, []model.ItemID{1, 2, 3}, cycleErr.Cycle)
	assert.Contains(t, cycleErr.Error(), "circular dependency")
}

func TestResolveCycleAmidAcyclicItems(t *testing.T) {
	items := []model.FinancialItem{
		item(1),
		item(2, 1),
		item(10, 11),
		item(11, 10),
	}

	_, err := Resolve(zap.NewNop(), items)
	var cycleErr *CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
	assert.ElementsMatch(t, []model.ItemID{10, 11}, cycleErr.Cycle)
}

func TestResolveSelfReference(t *testing.T) {
	items := []model.FinancialItem{item(7, 7)}
	_, err := Resolve(zap.NewNop(), items)
	var cycleErr *CircularDependencyError
	require.ErrorAs(t, err, &cycleErr)
	assert.Equal(t, []model.ItemID{7}, cycleErr.Cycle)
}

func TestResolveUnknownReference(t *testing.T) {
	items := []model.FinancialItem{item(1, 99)}
	_, err := Resolve(zap.NewNop(), items)
	var refErr *UnknownReferenceError
	require.ErrorAs(t, err, &refErr)
	assert.Equal(t, model.ItemID(1), refErr.Item)
	assert.Equal(t, model.ItemID(99), refErr.Ref)
}

func TestResolveEscalationBaseIsDependency(t *testing.T) {
	base := item(1)
	escalated := model.FinancialItem{
		ID:         2,
		Category:   model.Revenue,
		Escalation: &model.EscalationRule{BaseItem: 1},
	}

	order, err := Resolve(zap.NewNop(), []model.FinancialItem{escalated, base})
	require.NoError(t, err)
	assert.Equal(t, []model.ItemID{1, 2}, ids(order))
}

func TestResolveDeepChainIterative(t *testing.T) {
	// A 50k-deep chain would blow a recursive sort's stack.
	const depth = 50000
	items := make([]model.FinancialItem, depth)
	items[0] = item(1)
	for i := 1; i < depth; i++ {
		items[i] = item(model.ItemID(i+1), model.ItemID(i))
	}

	order, err := Resolve(zap.NewNop(), items)
	require.NoError(t, err)
	require.Len(t, order, depth)
	assert.Equal(t, model.ItemID(1), order[0].ID)
	assert.Equal(t, model.ItemID(depth), order[depth-1].ID)
}
