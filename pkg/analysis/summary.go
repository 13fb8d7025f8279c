package analysis

import (
	"github.com/ritzau/kpi-graph/pkg/graph"
)

// Summary gives headline counts for a KPI edge set
type Summary struct {
	TotalEdges    int     `json:"totalEdges"`
	ActiveEdges   int     `json:"activeEdges"`
	KpiCount      int     `json:"kpiCount"` // Distinct KPIs touched by an active edge
	RootCount     int     `json:"rootCount"`
	ActivePercent float64 `json:"activePercent"`
}

// Summarize counts edges, KPIs and roots
func Summarize(src graph.EdgeSource) Summary {
	all := src.All(false)
	kpis := make(map[string]bool)

	s := Summary{TotalEdges: len(all)}
	for _, edge := range all {
		if !edge.IsActive {
			continue
		}
		s.ActiveEdges++
		kpis[edge.ParentKpiID] = true
		kpis[edge.ChildKpiID] = true
	}
	s.KpiCount = len(kpis)
	s.RootCount = len(graph.FindRoots(src))

	s.ActivePercent = 100.0
	if s.TotalEdges > 0 {
		s.ActivePercent = float64(s.ActiveEdges) / float64(s.TotalEdges) * 100.0
	}
	return s
}
