package model

import "time"

// RelationshipType tags the semantic kind of a KPI relationship.
// The set is open: any string is accepted and carried through untouched.
type RelationshipType string

const (
	RelationshipDrives     RelationshipType = "Drives"     // Parent causally drives the child
	RelationshipCorrelates RelationshipType = "Correlates" // Parent and child move together
	RelationshipComposes   RelationshipType = "Composes"   // Child is a component of the parent
)

// CalculationMethod describes how downstream consumers should interpret an edge weight
type CalculationMethod string

const (
	CalculationAdditive       CalculationMethod = "additive"
	CalculationMultiplicative CalculationMethod = "multiplicative"
	CalculationWeightedAvg    CalculationMethod = "weighted_average"
)

// KpiEdge is a directed, weighted relationship from a parent KPI to a child KPI.
// KPI ids are opaque; nothing here checks that a KPI record exists for them.
type KpiEdge struct {
	ID                string            `json:"id" yaml:"id"`
	ParentKpiID       string            `json:"parentKpiId" yaml:"parentKpiId"`
	ChildKpiID        string            `json:"childKpiId" yaml:"childKpiId"`
	RelationshipType  RelationshipType  `json:"relationshipType" yaml:"relationshipType"`
	CalculationMethod CalculationMethod `json:"calculationMethod" yaml:"calculationMethod"`
	Weight            float64           `json:"weight" yaml:"weight"`       // Intended range [0,1]
	IsActive          bool              `json:"isActive" yaml:"isActive"`   // Inactive edges are ignored by all traversals
	CreatedBy         string            `json:"createdBy" yaml:"createdBy"` // Provenance only
	CreatedAt         time.Time         `json:"createdAt" yaml:"createdAt"`
	UpdatedAt         time.Time         `json:"updatedAt" yaml:"updatedAt"`
}

// EdgeInput is the user-supplied payload for creating an edge
type EdgeInput struct {
	ParentKpiID       string            `json:"parentKpiId" yaml:"parent"`
	ChildKpiID        string            `json:"childKpiId" yaml:"child"`
	RelationshipType  RelationshipType  `json:"relationshipType" yaml:"type"`
	CalculationMethod CalculationMethod `json:"calculationMethod" yaml:"method"`
	Weight            float64           `json:"weight" yaml:"weight"`
	CreatedBy         string            `json:"createdBy" yaml:"createdBy"`
}

// EdgePatch holds the fields to merge into an existing edge. Nil fields are left unchanged.
type EdgePatch struct {
	ParentKpiID       *string            `json:"parentKpiId,omitempty"`
	ChildKpiID        *string            `json:"childKpiId,omitempty"`
	RelationshipType  *RelationshipType  `json:"relationshipType,omitempty"`
	CalculationMethod *CalculationMethod `json:"calculationMethod,omitempty"`
	Weight            *float64           `json:"weight,omitempty"`
	IsActive          *bool              `json:"isActive,omitempty"`
}

// Apply merges the patch into edge and reports whether the patch touches the
// graph structure (endpoints moved or the edge was re-activated).
func (p EdgePatch) Apply(edge *KpiEdge) (structural bool) {
	if p.ParentKpiID != nil && *p.ParentKpiID != edge.ParentKpiID {
		edge.ParentKpiID = *p.ParentKpiID
		structural = true
	}
	if p.ChildKpiID != nil && *p.ChildKpiID != edge.ChildKpiID {
		edge.ChildKpiID = *p.ChildKpiID
		structural = true
	}
	if p.RelationshipType != nil {
		edge.RelationshipType = *p.RelationshipType
	}
	if p.CalculationMethod != nil {
		edge.CalculationMethod = *p.CalculationMethod
	}
	if p.Weight != nil {
		edge.Weight = *p.Weight
	}
	if p.IsActive != nil {
		if *p.IsActive && !edge.IsActive {
			structural = true
		}
		edge.IsActive = *p.IsActive
	}
	return structural
}

// EdgeFilter narrows ListEdges results. Zero values match everything.
type EdgeFilter struct {
	ParentKpiID      string           `json:"parentKpiId,omitempty"`
	ChildKpiID       string           `json:"childKpiId,omitempty"`
	RelationshipType RelationshipType `json:"relationshipType,omitempty"`
	ActiveOnly       bool             `json:"activeOnly,omitempty"`
}

// Matches returns true if the edge passes every set criterion
func (f EdgeFilter) Matches(e *KpiEdge) bool {
	if f.ActiveOnly && !e.IsActive {
		return false
	}
	if f.ParentKpiID != "" && e.ParentKpiID != f.ParentKpiID {
		return false
	}
	if f.ChildKpiID != "" && e.ChildKpiID != f.ChildKpiID {
		return false
	}
	if f.RelationshipType != "" && e.RelationshipType != f.RelationshipType {
		return false
	}
	return true
}
