package analysis

import (
	"math"

	"github.com/ritzau/kpi-graph/pkg/graph"
	"github.com/ritzau/kpi-graph/pkg/model"
)

// DefaultBalanceTolerance is how far a child weight sum may stray from 1.0
const DefaultBalanceTolerance = 0.01

// BalanceReport describes how a parent's influence is split across its children.
// It is advisory: an unbalanced parent is never rejected.
type BalanceReport struct {
	ParentKpiID string  `json:"parentKpiId"`
	ChildCount  int     `json:"childCount"`
	WeightSum   float64 `json:"weightSum"`
	Tolerance   float64 `json:"tolerance"`
	Balanced    bool    `json:"balanced"`
}

// CheckBalance sums the weights of the active edges leaving parentKpiID
func CheckBalance(src graph.EdgeSource, parentKpiID string, tolerance float64) BalanceReport {
	if tolerance <= 0 {
		tolerance = DefaultBalanceTolerance
	}

	report := BalanceReport{ParentKpiID: parentKpiID, Tolerance: tolerance}
	for _, edge := range src.FindByParent(parentKpiID) {
		report.ChildCount++
		report.WeightSum += edge.Weight
	}
	report.Balanced = report.ChildCount > 0 && math.Abs(report.WeightSum-1.0) <= tolerance
	return report
}

// UnbalancedParents checks every KPI with active children and returns the unbalanced ones
func UnbalancedParents(src graph.EdgeSource, tolerance float64) []BalanceReport {
	seen := make(map[string]bool)
	reports := make([]BalanceReport, 0)
	for _, edge := range src.All(true) {
		if seen[edge.ParentKpiID] {
			continue
		}
		seen[edge.ParentKpiID] = true
		if r := CheckBalance(src, edge.ParentKpiID, tolerance); !r.Balanced {
			reports = append(reports, r)
		}
	}
	return reports
}

// OutOfRangeWeights returns active edges whose weight lies outside [0,1]
func OutOfRangeWeights(src graph.EdgeSource) []model.KpiEdge {
	out := make([]model.KpiEdge, 0)
	for _, edge := range src.All(true) {
		if edge.Weight < 0 || edge.Weight > 1 || math.IsNaN(edge.Weight) {
			out = append(out, edge)
		}
	}
	return out
}
