package seed

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ritzau/kpi-graph/pkg/model"
	"gopkg.in/yaml.v3"
)

// DefaultCreatedBy is recorded on seeded edges that name no author
const DefaultCreatedBy = "seed"

// File is the on-disk layout of a seed file:
//
//	edges:
//	  - parent: revenue
//	    child: conversions
//	    type: Drives
//	    method: weighted_average
//	    weight: 0.6
type File struct {
	Edges []model.EdgeInput `yaml:"edges"`
}

// Load reads and validates a seed file
func Load(path string) ([]model.EdgeInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read seed file '%s': %w", path, err)
	}

	edges, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("invalid seed file '%s': %w", path, err)
	}
	return edges, nil
}

// Parse decodes seed YAML in strict mode so that misspelled keys are reported
// instead of silently dropped. An empty document yields no edges.
func Parse(data []byte) ([]model.EdgeInput, error) {
	var file File
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("YAML syntax error: %w", err)
	}

	edges := make([]model.EdgeInput, 0, len(file.Edges))
	for i, edge := range file.Edges {
		if edge.ParentKpiID == "" || edge.ChildKpiID == "" {
			return nil, fmt.Errorf("edge %d: parent and child are required", i)
		}
		if err := model.ValidateEdge(edge.ParentKpiID, edge.ChildKpiID, edge.Weight); err != nil {
			return nil, fmt.Errorf("edge %d: %w", i, err)
		}
		if edge.RelationshipType == "" {
			edge.RelationshipType = model.RelationshipDrives
		}
		if edge.CreatedBy == "" {
			edge.CreatedBy = DefaultCreatedBy
		}
		edges = append(edges, edge)
	}
	return edges, nil
}
