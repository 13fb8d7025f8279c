package graph

import (
	"sort"

	"github.com/ritzau/kpi-graph/pkg/logging"
	"github.com/ritzau/kpi-graph/pkg/model"
)

// FindRoots returns the KPIs that parent at least one active edge and are
// the child of none, sorted by id
func FindRoots(src EdgeSource) []string {
	parents := make(map[string]bool)
	children := make(map[string]bool)
	for _, edge := range src.All(true) {
		parents[edge.ParentKpiID] = true
		children[edge.ChildKpiID] = true
	}

	roots := make([]string, 0)
	for kpiID := range parents {
		if !children[kpiID] {
			roots = append(roots, kpiID)
		}
	}
	sort.Strings(roots)
	return roots
}

// BuildForest builds one tree per root
func BuildForest(src EdgeSource) []*model.TreeNode {
	roots := FindRoots(src)
	forest := make([]*model.TreeNode, 0, len(roots))
	for _, rootID := range roots {
		forest = append(forest, BuildTree(src, rootID))
	}
	return forest
}

// BuildTree expands the hierarchy below rootID.
// Each branch carries its own copy of the KPIs on its descent path; a KPI that
// reappears on its own path is emitted as a leaf marked CircularReference.
func BuildTree(src EdgeSource, rootID string) *model.TreeNode {
	root := &model.TreeNode{KpiID: rootID}
	expand(src, root, map[string]bool{rootID: true})
	return root
}

func expand(src EdgeSource, node *model.TreeNode, onPath map[string]bool) {
	node.Children = make([]*model.TreeNode, 0)
	for _, edge := range src.FindByParent(node.KpiID) {
		child := &model.TreeNode{
			KpiID:            edge.ChildKpiID,
			EdgeID:           edge.ID,
			Weight:           edge.Weight,
			RelationshipType: edge.RelationshipType,
		}
		node.Children = append(node.Children, child)

		if onPath[edge.ChildKpiID] {
			logging.Warn("circular reference in KPI hierarchy",
				"kpi", edge.ChildKpiID, "parent", node.KpiID, "edge", edge.ID)
			child.Children = make([]*model.TreeNode, 0)
			child.CircularReference = true
			continue
		}

		expand(src, child, extendPath(onPath, edge.ChildKpiID))
	}
}

// FindAllPaths returns every root-first path that ends at targetKpiID.
// Parallel edges between the same pair yield the same KPI sequence and are
// reported once. A KPI without incoming active edges has the single path [target].
func FindAllPaths(src EdgeSource, targetKpiID string) [][]string {
	return pathsTo(src, targetKpiID, map[string]bool{targetKpiID: true})
}

func pathsTo(src EdgeSource, kpiID string, onPath map[string]bool) [][]string {
	var paths [][]string
	seen := make(map[string]bool)

	for _, edge := range src.FindByChild(kpiID) {
		parent := edge.ParentKpiID
		if seen[parent] {
			continue
		}
		seen[parent] = true

		if onPath[parent] {
			logging.Warn("circular reference while walking KPI lineage",
				"kpi", parent, "child", kpiID, "edge", edge.ID)
			continue
		}

		for _, upper := range pathsTo(src, parent, extendPath(onPath, parent)) {
			path := make([]string, 0, len(upper)+1)
			path = append(path, upper...)
			paths = append(paths, append(path, kpiID))
		}
	}

	if len(paths) == 0 {
		return [][]string{{kpiID}}
	}
	return paths
}

// extendPath returns a copy of onPath with kpiID added, so sibling branches
// never observe each other's visits
func extendPath(onPath map[string]bool, kpiID string) map[string]bool {
	next := make(map[string]bool, len(onPath)+1)
	for k := range onPath {
		next[k] = true
	}
	next[kpiID] = true
	return next
}
