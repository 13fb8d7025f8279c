package model

// TreeNode is one KPI in a hierarchy tree rooted at a root KPI.
// The edge fields describe the edge leading into this node and are empty on roots.
type TreeNode struct {
	KpiID             string           `json:"kpiId"`
	Children          []*TreeNode      `json:"children"`
	CircularReference bool             `json:"circularReference,omitempty"`
	EdgeID            string           `json:"edgeId,omitempty"`
	Weight            float64          `json:"weight,omitempty"`
	RelationshipType  RelationshipType `json:"relationshipType,omitempty"`
}

// Size returns the number of nodes in the tree
func (n *TreeNode) Size() int {
	if n == nil {
		return 0
	}
	size := 1
	for _, child := range n.Children {
		size += child.Size()
	}
	return size
}

// InfluenceRecord is the influence of a source KPI on one descendant along one path.
// A descendant reachable through several paths gets one record per path.
type InfluenceRecord struct {
	KpiID             string           `json:"kpiId"`
	InfluenceStrength float64          `json:"influenceStrength"`
	Depth             int              `json:"depth"`
	RelationshipType  RelationshipType `json:"relationshipType"` // Type of the last edge on the path
	Path              []string         `json:"path"`             // Source first, this KPI last
}

// InfluenceResult holds every influence record for a source KPI
type InfluenceResult struct {
	Source      string            `json:"source"`
	MaxDepth    int               `json:"maxDepth"`
	Records     []InfluenceRecord `json:"records"`
	DirectCount int               `json:"directCount"`
	TotalCount  int               `json:"totalCount"`
	Truncated   bool              `json:"truncated"` // Active edges continued past MaxDepth
}

// CycleCheck is the verdict on a prospective parent -> child edge
type CycleCheck struct {
	ParentKpiID      string   `json:"parentKpiId"`
	ChildKpiID       string   `json:"childKpiId"`
	WouldCreateCycle bool     `json:"wouldCreateCycle"`
	Reason           string   `json:"reason"`
	Path             []string `json:"path,omitempty"` // Existing child -> ... -> parent route the edge would close
}
