package cycles

import (
	"fmt"

	"github.com/ritzau/kpi-graph/pkg/graph"
	"github.com/ritzau/kpi-graph/pkg/model"
	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// WouldCreateCycle reports whether adding parent -> child to the active edges
// would let some KPI reach itself. It never fails; callers decide what to do
// with a positive verdict.
func WouldCreateCycle(src graph.EdgeSource, parent, child string) model.CycleCheck {
	return check(graph.Snapshot(src), parent, child)
}

// WouldCreateCycleExcluding is WouldCreateCycle with one existing edge left
// out, for re-validating an edge that is being moved or re-activated
func WouldCreateCycleExcluding(src graph.EdgeSource, parent, child, edgeID string) model.CycleCheck {
	return check(graph.SnapshotExcluding(src, edgeID), parent, child)
}

func check(kg *graph.KpiGraph, parent, child string) model.CycleCheck {
	result := model.CycleCheck{ParentKpiID: parent, ChildKpiID: child}

	if parent == child {
		result.WouldCreateCycle = true
		result.Reason = fmt.Sprintf("KPI %q cannot be its own parent", parent)
		result.Path = []string{parent}
		return result
	}

	// The new edge closes a loop iff parent is already reachable from child.
	// Both traversals keep their own visited sets, so a store that already
	// holds a cycle cannot trap them.
	if route := closingRoute(kg, child, parent); route != nil {
		result.WouldCreateCycle = true
		result.Path = route
		result.Reason = fmt.Sprintf("%s already reaches %s via %s; adding %s -> %s would close a cycle",
			child, parent, model.FormatPath(route), parent, child)
		return result
	}

	result.Reason = fmt.Sprintf("%s is not reachable from %s; the hierarchy stays acyclic", parent, child)
	return result
}

// closingRoute returns the shortest KPI route from -> ... -> to, or nil
func closingRoute(kg *graph.KpiGraph, from, to string) []string {
	fromID, ok := kg.ID(from)
	if !ok {
		return nil
	}
	toID, ok := kg.ID(to)
	if !ok {
		return nil
	}

	g := kg.Graph()
	if !topo.PathExistsIn(g, simple.Node(fromID), simple.Node(toID)) {
		return nil
	}

	nodes, _ := path.DijkstraFrom(simple.Node(fromID), g).To(toID)
	route := make([]string, 0, len(nodes))
	for _, n := range nodes {
		route = append(route, kg.KpiID(n.ID()))
	}
	return route
}
