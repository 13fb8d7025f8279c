package engine

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/ritzau/kpi-graph/pkg/influence"
	"github.com/ritzau/kpi-graph/pkg/model"
	"github.com/ritzau/kpi-graph/pkg/pubsub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func edge(parent, child string, weight float64) model.EdgeInput {
	return model.EdgeInput{
		ParentKpiID:       parent,
		ChildKpiID:        child,
		RelationshipType:  model.RelationshipDrives,
		CalculationMethod: model.CalculationWeightedAvg,
		Weight:            weight,
		CreatedBy:         "test",
	}
}

func mustInsert(t *testing.T, e *Engine, parent, child string, weight float64) model.KpiEdge {
	t.Helper()
	inserted, err := e.InsertEdge(context.Background(), edge(parent, child, weight))
	require.NoError(t, err)
	return inserted
}

func TestInsertAndQueryRoundTrip(t *testing.T) {
	e := New(Options{})
	ab := mustInsert(t, e, "A", "B", 0.5)
	mustInsert(t, e, "B", "C", 0.5)

	got, err := e.GetEdge(ab.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.ParentKpiID)
	assert.True(t, got.IsActive)

	assert.Equal(t, []string{"A"}, e.GetRoots())
	assert.Equal(t, [][]string{{"A", "B", "C"}}, e.GetPaths("C"))

	trees := e.GetTree("")
	require.Len(t, trees, 1)
	assert.Equal(t, "A", trees[0].KpiID)
	assert.Equal(t, 3, trees[0].Size())

	result := e.GetInfluence("A", 0)
	require.Len(t, result.Records, 2)
	assert.Equal(t, influence.DefaultMaxDepth, result.MaxDepth)
	assert.InDelta(t, 0.25, result.Records[1].InfluenceStrength, 1e-9)
}

func TestInsertRejectsSelfLoop(t *testing.T) {
	e := New(Options{})

	_, err := e.InsertEdge(context.Background(), edge("A", "A", 1))

	var selfLoop *model.SelfLoopError
	require.ErrorAs(t, err, &selfLoop)
	assert.Equal(t, "A", selfLoop.KpiID)
	assert.Empty(t, e.ListEdges(model.EdgeFilter{}))
}

func TestInsertRejectsCycle(t *testing.T) {
	e := New(Options{})
	mustInsert(t, e, "A", "B", 1)
	mustInsert(t, e, "B", "C", 1)

	_, err := e.InsertEdge(context.Background(), edge("C", "A", 1))

	var cycle *model.CycleDetectedError
	require.ErrorAs(t, err, &cycle)
	assert.Equal(t, []string{"A", "B", "C"}, cycle.Path)
	assert.True(t, errors.Is(err, model.ErrCycleDetected))
	assert.Len(t, e.ListEdges(model.EdgeFilter{}), 2, "rejected edge must not be stored")
}

func TestInsertAllowsParallelEdgesAndDiamonds(t *testing.T) {
	e := New(Options{})
	mustInsert(t, e, "A", "B", 0.5)
	mustInsert(t, e, "A", "B", 0.5)
	mustInsert(t, e, "A", "C", 0.5)
	mustInsert(t, e, "B", "D", 0.5)
	mustInsert(t, e, "C", "D", 0.5)

	assert.Len(t, e.ListEdges(model.EdgeFilter{ParentKpiID: "A"}), 3)
	assert.Empty(t, e.Audit().Cycles)
}

func TestCheckCycleDoesNotMutate(t *testing.T) {
	e := New(Options{})
	mustInsert(t, e, "A", "B", 1)

	check := e.CheckCycle("B", "A")
	assert.True(t, check.WouldCreateCycle)
	assert.NotEmpty(t, check.Reason)

	check = e.CheckCycle("B", "C")
	assert.False(t, check.WouldCreateCycle)
	assert.Len(t, e.ListEdges(model.EdgeFilter{}), 1)
}

func TestUpdateEdge(t *testing.T) {
	e := New(Options{})
	ab := mustInsert(t, e, "A", "B", 0.5)
	bc := mustInsert(t, e, "B", "C", 0.5)

	weight := 0.9
	updated, err := e.UpdateEdge(context.Background(), ab.ID, model.EdgePatch{Weight: &weight})
	require.NoError(t, err)
	assert.Equal(t, 0.9, updated.Weight)
	assert.Equal(t, ab.CreatedAt, updated.CreatedAt)

	t.Run("moving an endpoint into a cycle is rejected", func(t *testing.T) {
		a := "A"
		_, err := e.UpdateEdge(context.Background(), bc.ID, model.EdgePatch{ChildKpiID: &a})
		assert.ErrorIs(t, err, model.ErrCycleDetected)

		got, err := e.GetEdge(bc.ID)
		require.NoError(t, err)
		assert.Equal(t, "C", got.ChildKpiID)
	})

	t.Run("moving an endpoint onto itself is a self loop", func(t *testing.T) {
		b := "B"
		_, err := e.UpdateEdge(context.Background(), bc.ID, model.EdgePatch{ChildKpiID: &b})
		assert.ErrorIs(t, err, model.ErrSelfLoop)
	})

	t.Run("unknown id", func(t *testing.T) {
		_, err := e.UpdateEdge(context.Background(), "missing", model.EdgePatch{Weight: &weight})
		assert.ErrorIs(t, err, model.ErrNotFound)
	})
}

func TestInvalidEdgesAreRejected(t *testing.T) {
	e := New(Options{})
	ab := mustInsert(t, e, "A", "B", 0.5)

	t.Run("insert without parent", func(t *testing.T) {
		_, err := e.InsertEdge(context.Background(), edge("", "B", 0.5))
		assert.ErrorIs(t, err, model.ErrInvalidEdge)
	})

	t.Run("insert with NaN weight", func(t *testing.T) {
		_, err := e.InsertEdge(context.Background(), edge("A", "C", math.NaN()))
		assert.ErrorIs(t, err, model.ErrInvalidEdge)
	})

	t.Run("update clearing an endpoint", func(t *testing.T) {
		empty := ""
		_, err := e.UpdateEdge(context.Background(), ab.ID, model.EdgePatch{ParentKpiID: &empty})
		assert.ErrorIs(t, err, model.ErrInvalidEdge)
	})

	t.Run("update to an infinite weight", func(t *testing.T) {
		inf := math.Inf(1)
		_, err := e.UpdateEdge(context.Background(), ab.ID, model.EdgePatch{Weight: &inf})
		assert.ErrorIs(t, err, model.ErrInvalidEdge)
	})

	t.Run("reload", func(t *testing.T) {
		err := e.Reload(context.Background(), []model.EdgeInput{edge("X", "Y", 1), edge("Y", "", 1)})
		assert.ErrorIs(t, err, model.ErrInvalidEdge)
	})

	got, err := e.GetEdge(ab.ID)
	require.NoError(t, err)
	assert.Equal(t, "A", got.ParentKpiID)
	assert.Equal(t, 0.5, got.Weight)
	assert.Equal(t, []string{"A"}, e.GetRoots())
	assert.Len(t, e.ListEdges(model.EdgeFilter{}), 1)
}

func TestReactivationIsValidated(t *testing.T) {
	e := New(Options{})
	ab := mustInsert(t, e, "A", "B", 1)

	inactive := false
	_, err := e.UpdateEdge(context.Background(), ab.ID, model.EdgePatch{IsActive: &inactive})
	require.NoError(t, err)

	// B -> A is legal while A -> B is inactive
	mustInsert(t, e, "B", "A", 1)

	active := true
	_, err = e.UpdateEdge(context.Background(), ab.ID, model.EdgePatch{IsActive: &active})
	assert.ErrorIs(t, err, model.ErrCycleDetected)
}

func TestInactiveEdgesHiddenFromTraversals(t *testing.T) {
	e := New(Options{})
	ab := mustInsert(t, e, "A", "B", 1)
	mustInsert(t, e, "B", "C", 1)

	inactive := false
	_, err := e.UpdateEdge(context.Background(), ab.ID, model.EdgePatch{IsActive: &inactive})
	require.NoError(t, err)

	assert.Equal(t, []string{"B"}, e.GetRoots())
	assert.Len(t, e.ListEdges(model.EdgeFilter{}), 2)
	assert.Len(t, e.ListEdges(model.EdgeFilter{ActiveOnly: true}), 1)
	assert.Empty(t, e.GetInfluence("A", 0).Records)
}

func TestRemoveEdge(t *testing.T) {
	e := New(Options{})
	ab := mustInsert(t, e, "A", "B", 1)

	require.NoError(t, e.RemoveEdge(context.Background(), ab.ID))
	_, err := e.GetEdge(ab.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, e.RemoveEdge(context.Background(), ab.ID), model.ErrNotFound)
}

func TestCancelledContext(t *testing.T) {
	e := New(Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.InsertEdge(ctx, edge("A", "B", 1))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, e.ListEdges(model.EdgeFilter{}))
}

func TestReload(t *testing.T) {
	e := New(Options{})
	old := mustInsert(t, e, "X", "Y", 1)

	err := e.Reload(context.Background(), []model.EdgeInput{
		edge("A", "B", 0.5),
		edge("A", "C", 0.5),
	})
	require.NoError(t, err)

	_, err = e.GetEdge(old.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.Equal(t, []string{"A"}, e.GetRoots())
	assert.True(t, e.CheckBalance("A").Balanced)
}

func TestReloadIsAllOrNothing(t *testing.T) {
	e := New(Options{})
	kept := mustInsert(t, e, "X", "Y", 1)

	err := e.Reload(context.Background(), []model.EdgeInput{
		edge("A", "B", 1),
		edge("B", "C", 1),
		edge("C", "A", 1),
	})
	assert.ErrorIs(t, err, model.ErrCycleDetected)

	err = e.Reload(context.Background(), []model.EdgeInput{edge("A", "B", 1), edge("Q", "Q", 1)})
	assert.ErrorIs(t, err, model.ErrSelfLoop)

	edges := e.ListEdges(model.EdgeFilter{})
	require.Len(t, edges, 1)
	assert.Equal(t, kept.ID, edges[0].ID)
}

func TestAudit(t *testing.T) {
	e := New(Options{})
	mustInsert(t, e, "A", "B", 0.4)
	mustInsert(t, e, "A", "C", 0.4)
	mustInsert(t, e, "B", "D", 1.5)

	report := e.Audit()

	assert.False(t, report.Healthy())
	assert.Empty(t, report.Cycles)
	require.Len(t, report.OutOfRange, 1)
	assert.Equal(t, "D", report.OutOfRange[0].ChildKpiID)
	require.Len(t, report.Unbalanced, 2)
	assert.Equal(t, "A", report.Unbalanced[0].ParentKpiID)
	assert.InDelta(t, 0.8, report.Unbalanced[0].WeightSum, 1e-9)
	assert.Equal(t, 3, report.Summary.ActiveEdges)
	assert.Equal(t, 4, report.Summary.KpiCount)
}

func TestMutationsArePublished(t *testing.T) {
	publisher := pubsub.NewSSEPublisher()
	defer publisher.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sub, err := publisher.Subscribe(ctx, pubsub.TopicKpiEdges)
	require.NoError(t, err)

	e := New(Options{Publisher: publisher})
	ab := mustInsert(t, e, "A", "B", 1)
	require.NoError(t, e.RemoveEdge(context.Background(), ab.ID))

	// Rejected mutations publish nothing
	_, err = e.InsertEdge(context.Background(), edge("C", "C", 1))
	require.Error(t, err)

	var types []string
	var last pubsub.EdgeChange
	for n := 0; n < 2; n++ {
		select {
		case event := <-sub.Events():
			types = append(types, event.Type)
			require.NoError(t, json.Unmarshal(event.Data, &last))
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for edge event")
		}
	}

	assert.Equal(t, []string{pubsub.EventEdgeInserted, pubsub.EventEdgeRemoved}, types)
	assert.Equal(t, ab.ID, last.EdgeID)
	assert.Equal(t, 0, last.EdgeCount)

	select {
	case event := <-sub.Events():
		t.Fatalf("unexpected event %s", event.Type)
	default:
	}
}

func TestConcurrentInsertsNeverCloseACycle(t *testing.T) {
	e := New(Options{})
	mustInsert(t, e, "A", "B", 1)

	// A -> B exists, so B -> A and A -> B race; whichever way the lock falls
	// the store must stay acyclic
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		i := i
		go func() {
			in := edge("B", "A", 1)
			if i%2 == 0 {
				in = edge("A", "B", 1)
			}
			_, err := e.InsertEdge(context.Background(), in)
			errs <- err
		}()
	}
	for n := 0; n < 20; n++ {
		<-errs
	}

	assert.Empty(t, e.Audit().Cycles)
	assert.Empty(t, e.ListEdges(model.EdgeFilter{ParentKpiID: "B"}))
}
