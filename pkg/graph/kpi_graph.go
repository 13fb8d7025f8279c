package graph

import (
	"github.com/ritzau/kpi-graph/pkg/model"
	"gonum.org/v1/gonum/graph/simple"
)

// EdgeSource is the read side of the edge store that graph algorithms traverse
type EdgeSource interface {
	FindByParent(parentKpiID string) []model.KpiEdge
	FindByChild(childKpiID string) []model.KpiEdge
	All(activeOnly bool) []model.KpiEdge
}

// KpiGraph is a gonum snapshot of the active KPI edges.
// Parallel edges between the same pair collapse to one gonum edge; the snapshot
// answers reachability questions, not weight questions.
type KpiGraph struct {
	graph *simple.DirectedGraph
	ids   map[string]int64 // KPI id -> graph node id
	kpis  []string         // graph node id -> KPI id
}

// NewKpiGraph creates an empty KPI graph
func NewKpiGraph() *KpiGraph {
	return &KpiGraph{
		graph: simple.NewDirectedGraph(),
		ids:   make(map[string]int64),
	}
}

// Snapshot builds a KPI graph from the current active edges of src
func Snapshot(src EdgeSource) *KpiGraph {
	return SnapshotExcluding(src, "")
}

// SnapshotExcluding is Snapshot without the edge with id edgeID
func SnapshotExcluding(src EdgeSource, edgeID string) *KpiGraph {
	kg := NewKpiGraph()
	for _, edge := range src.All(true) {
		if edgeID != "" && edge.ID == edgeID {
			continue
		}
		kg.AddEdge(edge.ParentKpiID, edge.ChildKpiID)
	}
	return kg
}

// AddKpi adds a KPI node and returns its graph id
func (kg *KpiGraph) AddKpi(kpiID string) int64 {
	if id, exists := kg.ids[kpiID]; exists {
		return id
	}

	id := int64(len(kg.kpis))
	kg.ids[kpiID] = id
	kg.kpis = append(kg.kpis, kpiID)
	kg.graph.AddNode(simple.Node(id))
	return id
}

// AddEdge adds a parent -> child edge, creating both KPIs as needed.
// Self loops are ignored; simple graphs cannot hold them.
func (kg *KpiGraph) AddEdge(parent, child string) {
	from := kg.AddKpi(parent)
	to := kg.AddKpi(child)
	if from == to || kg.graph.HasEdgeFromTo(from, to) {
		return
	}
	kg.graph.SetEdge(kg.graph.NewEdge(simple.Node(from), simple.Node(to)))
}

// ID returns the graph id for a KPI
func (kg *KpiGraph) ID(kpiID string) (int64, bool) {
	id, ok := kg.ids[kpiID]
	return id, ok
}

// KpiID returns the KPI id for a graph id
func (kg *KpiGraph) KpiID(id int64) string {
	if id < 0 || int(id) >= len(kg.kpis) {
		return ""
	}
	return kg.kpis[id]
}

// Graph returns the underlying directed graph
func (kg *KpiGraph) Graph() *simple.DirectedGraph {
	return kg.graph
}

// Kpis returns every KPI id in the snapshot, in first-seen order
func (kg *KpiGraph) Kpis() []string {
	out := make([]string, len(kg.kpis))
	copy(out, kg.kpis)
	return out
}

// Successors returns the KPIs directly reachable from kpiID
func (kg *KpiGraph) Successors(kpiID string) []string {
	id, ok := kg.ids[kpiID]
	if !ok {
		return nil
	}

	var out []string
	iter := kg.graph.From(id)
	for iter.Next() {
		out = append(out, kg.kpis[iter.Node().ID()])
	}
	return out
}
