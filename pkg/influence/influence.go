package influence

import (
	"github.com/ritzau/kpi-graph/pkg/model"
)

// DefaultMaxDepth bounds traversal when the caller does not choose a depth.
// It guarantees termination even on a store that holds a forced cycle.
const DefaultMaxDepth = 5

// ParentSource is the lookup influence propagation needs
type ParentSource interface {
	FindByParent(parentKpiID string) []model.KpiEdge
}

// Compute returns the influence of kpiID on every descendant reachable within
// maxDepth hops, one record per path. Strength is the product of the edge
// weights along the path. Direct records come first in edge order, followed by
// each direct child's indirect records depth-first.
func Compute(src ParentSource, kpiID string, maxDepth int) model.InfluenceResult {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	result := model.InfluenceResult{
		Source:   kpiID,
		MaxDepth: maxDepth,
		Records:  make([]model.InfluenceRecord, 0),
	}

	direct := src.FindByParent(kpiID)
	for _, edge := range direct {
		result.Records = append(result.Records, model.InfluenceRecord{
			KpiID:             edge.ChildKpiID,
			InfluenceStrength: edge.Weight,
			Depth:             1,
			RelationshipType:  edge.RelationshipType,
			Path:              []string{kpiID, edge.ChildKpiID},
		})
	}
	result.DirectCount = len(result.Records)

	w := walker{src: src, maxDepth: maxDepth, result: &result}
	for i := 0; i < result.DirectCount; i++ {
		rec := result.Records[i]
		w.descend(rec.Path, rec.InfluenceStrength, 1)
	}

	result.TotalCount = len(result.Records)
	return result
}

type walker struct {
	src      ParentSource
	maxDepth int
	result   *model.InfluenceResult
}

// descend appends records for every edge leaving the last KPI on path
func (w *walker) descend(path []string, strength float64, depth int) {
	edges := w.src.FindByParent(path[len(path)-1])
	if len(edges) == 0 {
		return
	}
	if depth >= w.maxDepth {
		w.result.Truncated = true
		return
	}

	for _, edge := range edges {
		next := make([]string, len(path), len(path)+1)
		copy(next, path)
		next = append(next, edge.ChildKpiID)

		combined := strength * edge.Weight
		w.result.Records = append(w.result.Records, model.InfluenceRecord{
			KpiID:             edge.ChildKpiID,
			InfluenceStrength: combined,
			Depth:             depth + 1,
			RelationshipType:  edge.RelationshipType,
			Path:              next,
		})
		w.descend(next, combined, depth+1)
	}
}
