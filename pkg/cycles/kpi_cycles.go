package cycles

import (
	"sort"

	"github.com/ritzau/kpi-graph/pkg/graph"
	"gonum.org/v1/gonum/graph/topo"
)

// KpiCycle is a set of KPIs that reach each other through active edges
type KpiCycle struct {
	Kpis []string `json:"kpis"` // Sorted KPI ids in the strongly connected component
}

// FindKpiCycles audits the active edges for cycles. A store only mutated
// through the validator never has any.
func FindKpiCycles(src graph.EdgeSource) []KpiCycle {
	kg := graph.Snapshot(src)

	cycles := make([]KpiCycle, 0)
	for _, scc := range topo.TarjanSCC(kg.Graph()) {
		// Single nodes are trivial components; self loops never reach the graph
		if len(scc) < 2 {
			continue
		}
		kpis := make([]string, 0, len(scc))
		for _, node := range scc {
			if kpiID := kg.KpiID(node.ID()); kpiID != "" {
				kpis = append(kpis, kpiID)
			}
		}
		sort.Strings(kpis)
		cycles = append(cycles, KpiCycle{Kpis: kpis})
	}

	// TarjanSCC order depends on map iteration; sort for stable reports
	sort.Slice(cycles, func(i, j int) bool { return cycles[i].Kpis[0] < cycles[j].Kpis[0] })
	return cycles
}
