package graph

import (
	"reflect"
	"sort"
	"strings"
	"testing"

	"github.com/ritzau/kpi-graph/pkg/model"
)

// edgeList is a minimal EdgeSource that keeps every edge, including ones a
// real store would have rejected
type edgeList []model.KpiEdge

func (l edgeList) FindByParent(id string) []model.KpiEdge {
	var out []model.KpiEdge
	for _, e := range l {
		if e.IsActive && e.ParentKpiID == id {
			out = append(out, e)
		}
	}
	return out
}

func (l edgeList) FindByChild(id string) []model.KpiEdge {
	var out []model.KpiEdge
	for _, e := range l {
		if e.IsActive && e.ChildKpiID == id {
			out = append(out, e)
		}
	}
	return out
}

func (l edgeList) All(activeOnly bool) []model.KpiEdge {
	var out []model.KpiEdge
	for _, e := range l {
		if !activeOnly || e.IsActive {
			out = append(out, e)
		}
	}
	return out
}

func edges(pairs ...string) edgeList {
	var l edgeList
	for i, p := range pairs {
		parts := strings.Split(p, "->")
		l = append(l, model.KpiEdge{
			ID:          string(rune('a' + i)),
			ParentKpiID: parts[0],
			ChildKpiID:  parts[1],
			Weight:      1,
			IsActive:    true,
		})
	}
	return l
}

func TestFindRoots_Chain(t *testing.T) {
	roots := FindRoots(edges("A->B", "B->C"))

	if !reflect.DeepEqual(roots, []string{"A"}) {
		t.Errorf("Expected roots [A], got %v", roots)
	}
}

func TestFindRoots_IgnoresInactiveEdges(t *testing.T) {
	l := edges("A->B", "X->A")
	l[1].IsActive = false

	roots := FindRoots(l)

	if !reflect.DeepEqual(roots, []string{"A"}) {
		t.Errorf("Expected roots [A] once X->A is inactive, got %v", roots)
	}
}

func TestFindRoots_MultipleTrees(t *testing.T) {
	roots := FindRoots(edges("B->C", "A->C", "D->E"))

	if !reflect.DeepEqual(roots, []string{"A", "B", "D"}) {
		t.Errorf("Expected sorted roots [A B D], got %v", roots)
	}
}

func TestBuildTree_Diamond(t *testing.T) {
	tree := BuildTree(edges("A->B", "A->C", "B->D", "C->D"), "A")

	if tree.KpiID != "A" || len(tree.Children) != 2 {
		t.Fatalf("Expected A with 2 children, got %+v", tree)
	}
	for _, child := range tree.Children {
		if len(child.Children) != 1 || child.Children[0].KpiID != "D" {
			t.Errorf("Expected %s to have child D, got %+v", child.KpiID, child.Children)
		}
		if child.Children[0].CircularReference {
			t.Error("Diamond reconvergence must not be flagged circular")
		}
	}
	if tree.Size() != 5 {
		t.Errorf("Expected 5 nodes (D appears twice), got %d", tree.Size())
	}
}

func TestBuildTree_ForcedCycleTerminates(t *testing.T) {
	tree := BuildTree(edges("A->B", "B->C", "C->A"), "A")

	b := tree.Children[0]
	c := b.Children[0]
	if len(c.Children) != 1 {
		t.Fatalf("Expected C to list A as child, got %+v", c.Children)
	}

	back := c.Children[0]
	if back.KpiID != "A" || !back.CircularReference {
		t.Errorf("Expected repeated A marked circular, got %+v", back)
	}
	if len(back.Children) != 0 {
		t.Errorf("Circular node must not be expanded, got %d children", len(back.Children))
	}
}

func TestBuildTree_SiblingsDoNotShareVisits(t *testing.T) {
	// E is reached from both B and C; neither branch should see the other's visit
	tree := BuildTree(edges("A->B", "A->C", "B->E", "C->E", "E->F"), "A")

	for _, child := range tree.Children {
		e := child.Children[0]
		if e.CircularReference || len(e.Children) != 1 {
			t.Errorf("Branch via %s: expected E expanded normally, got %+v", child.KpiID, e)
		}
	}
}

func TestBuildTree_LeafRoot(t *testing.T) {
	tree := BuildTree(edgeList{}, "lonely")

	if tree.KpiID != "lonely" || len(tree.Children) != 0 {
		t.Errorf("Expected bare root node, got %+v", tree)
	}
}

func TestBuildForest(t *testing.T) {
	forest := BuildForest(edges("A->B", "D->E", "E->F"))

	if len(forest) != 2 {
		t.Fatalf("Expected 2 trees, got %d", len(forest))
	}
	if forest[0].KpiID != "A" || forest[1].KpiID != "D" {
		t.Errorf("Expected trees rooted at A and D, got %s and %s", forest[0].KpiID, forest[1].KpiID)
	}
	if forest[1].Size() != 3 {
		t.Errorf("Expected D tree of 3 nodes, got %d", forest[1].Size())
	}
}

func TestFindAllPaths_Diamond(t *testing.T) {
	paths := FindAllPaths(edges("A->B", "A->C", "B->D", "C->D"), "D")

	got := make([]string, 0, len(paths))
	for _, p := range paths {
		got = append(got, strings.Join(p, ","))
	}
	sort.Strings(got)

	want := []string{"A,B,D", "A,C,D"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Expected paths %v, got %v", want, got)
	}
}

func TestFindAllPaths_NoIncomingEdges(t *testing.T) {
	paths := FindAllPaths(edges("A->B"), "A")
	if !reflect.DeepEqual(paths, [][]string{{"A"}}) {
		t.Errorf("Expected [[A]], got %v", paths)
	}

	paths = FindAllPaths(edgeList{}, "unknown")
	if !reflect.DeepEqual(paths, [][]string{{"unknown"}}) {
		t.Errorf("Expected [[unknown]], got %v", paths)
	}
}

func TestFindAllPaths_ParallelEdgesReportedOnce(t *testing.T) {
	l := edges("A->B", "A->B")
	l[1].RelationshipType = model.RelationshipCorrelates

	paths := FindAllPaths(l, "B")

	if !reflect.DeepEqual(paths, [][]string{{"A", "B"}}) {
		t.Errorf("Expected single path [A B], got %v", paths)
	}
}

func TestFindAllPaths_ForcedCycleTerminates(t *testing.T) {
	paths := FindAllPaths(edges("R->A", "A->B", "B->A"), "B")

	if !reflect.DeepEqual(paths, [][]string{{"R", "A", "B"}}) {
		t.Errorf("Expected [[R A B]], got %v", paths)
	}
}

func TestSnapshot(t *testing.T) {
	l := edges("A->B", "A->B", "B->C", "C->D")
	l[3].IsActive = false

	kg := Snapshot(l)

	if len(kg.Kpis()) != 3 {
		t.Errorf("Expected 3 KPIs in snapshot, got %v", kg.Kpis())
	}
	if kg.Graph().Edges().Len() != 2 {
		t.Errorf("Expected parallel edges collapsed to 2 gonum edges, got %d", kg.Graph().Edges().Len())
	}
	if !reflect.DeepEqual(kg.Successors("A"), []string{"B"}) {
		t.Errorf("Expected successors of A = [B], got %v", kg.Successors("A"))
	}
	if _, ok := kg.ID("D"); ok {
		t.Error("KPI only reachable via inactive edge should not be in snapshot")
	}

	id, _ := kg.ID("C")
	if kg.KpiID(id) != "C" {
		t.Errorf("Expected round trip to C, got %q", kg.KpiID(id))
	}
}
