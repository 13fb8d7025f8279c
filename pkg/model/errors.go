package model

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// Sentinels for errors.Is checks across package boundaries
var (
	ErrSelfLoop      = errors.New("self loop")
	ErrCycleDetected = errors.New("cycle detected")
	ErrNotFound      = errors.New("not found")
	ErrInvalidEdge   = errors.New("invalid edge")
)

// SelfLoopError is returned when an edge would point a KPI at itself
type SelfLoopError struct {
	KpiID string
}

func (e *SelfLoopError) Error() string {
	return fmt.Sprintf("self loop: KPI %q cannot be its own parent", e.KpiID)
}

func (e *SelfLoopError) Is(target error) bool { return target == ErrSelfLoop }

// CycleDetectedError is returned when an edge would close a directed cycle among active edges
type CycleDetectedError struct {
	ParentKpiID string
	ChildKpiID  string
	Reason      string
	Path        []string
}

func (e *CycleDetectedError) Error() string {
	msg := fmt.Sprintf("cycle detected: edge %s -> %s", e.ParentKpiID, e.ChildKpiID)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *CycleDetectedError) Is(target error) bool { return target == ErrCycleDetected }

// NotFoundError is returned when an edge id does not exist
type NotFoundError struct {
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("edge %q not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// InvalidEdgeError is returned when an edge field holds a value no query can work with
type InvalidEdgeError struct {
	Field  string
	Reason string
}

func (e *InvalidEdgeError) Error() string {
	return fmt.Sprintf("invalid edge: %s %s", e.Field, e.Reason)
}

func (e *InvalidEdgeError) Is(target error) bool { return target == ErrInvalidEdge }

// ValidateEdge checks the fields every stored edge must satisfy: both
// endpoints set and a finite weight. Weights outside [0,1] are allowed and
// reported by the audit instead.
func ValidateEdge(parent, child string, weight float64) error {
	switch {
	case parent == "":
		return &InvalidEdgeError{Field: "parentKpiId", Reason: "is required"}
	case child == "":
		return &InvalidEdgeError{Field: "childKpiId", Reason: "is required"}
	case math.IsNaN(weight) || math.IsInf(weight, 0):
		return &InvalidEdgeError{Field: "weight", Reason: fmt.Sprintf("must be finite, got %v", weight)}
	}
	return nil
}

// FormatPath renders a KPI path as "a -> b -> c"
func FormatPath(path []string) string {
	return strings.Join(path, " -> ")
}
