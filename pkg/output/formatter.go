package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/ritzau/kpi-graph/pkg/engine"
	"github.com/ritzau/kpi-graph/pkg/model"
)

var (
	bold   = color.New(color.Bold)
	red    = color.New(color.FgRed)
	green  = color.New(color.FgGreen)
	yellow = color.New(color.FgYellow)
	cyan   = color.New(color.FgCyan)
	faint  = color.New(color.Faint)
)

// PrintForest prints each tree as an indented outline
func PrintForest(w io.Writer, trees []*model.TreeNode) {
	bold.Fprintln(w, "KPI Hierarchy")
	bold.Fprintln(w, "=============")
	if len(trees) == 0 {
		yellow.Fprintln(w, "No active edges.")
		return
	}
	for _, root := range trees {
		printNode(w, root, "", true, true)
	}
	fmt.Fprintln(w)
}

func printNode(w io.Writer, node *model.TreeNode, prefix string, last, root bool) {
	branch := ""
	childPrefix := prefix
	if !root {
		branch = "├── "
		childPrefix = prefix + "│   "
		if last {
			branch = "└── "
			childPrefix = prefix + "    "
		}
	}

	fmt.Fprint(w, prefix+branch)
	if root {
		bold.Fprint(w, node.KpiID)
	} else {
		cyan.Fprint(w, node.KpiID)
		faint.Fprintf(w, " (%s, w=%g)", node.RelationshipType, node.Weight)
	}
	if node.CircularReference {
		red.Fprint(w, " ↺ circular reference")
	}
	fmt.Fprintln(w)

	for i, child := range node.Children {
		printNode(w, child, childPrefix, i == len(node.Children)-1, false)
	}
}

// PrintPaths prints every root-first lineage path ending at kpiID
func PrintPaths(w io.Writer, kpiID string, paths [][]string) {
	bold.Fprintf(w, "Paths to %s\n", kpiID)
	for _, p := range paths {
		fmt.Fprintf(w, "  %s\n", model.FormatPath(p))
	}
	fmt.Fprintln(w)
}

// PrintInfluence prints one line per influence record, indented by depth
func PrintInfluence(w io.Writer, result model.InfluenceResult) {
	bold.Fprintf(w, "Influence of %s (max depth %d)\n", result.Source, result.MaxDepth)
	if len(result.Records) == 0 {
		yellow.Fprintln(w, "  No descendants.")
		fmt.Fprintln(w)
		return
	}

	for _, rec := range result.Records {
		indent := strings.Repeat("  ", rec.Depth)
		strength := green
		if rec.InfluenceStrength < 0.1 {
			strength = faint
		}
		fmt.Fprintf(w, "%s%s ", indent, rec.KpiID)
		strength.Fprintf(w, "%.4f", rec.InfluenceStrength)
		faint.Fprintf(w, "  via %s\n", model.FormatPath(rec.Path))
	}
	fmt.Fprintf(w, "Direct: %d, total: %d\n", result.DirectCount, result.TotalCount)
	if result.Truncated {
		yellow.Fprintf(w, "Truncated at depth %d; raise --max-depth to see more\n", result.MaxDepth)
	}
	fmt.Fprintln(w)
}

// PrintAudit prints summary counts and every diagnostic finding
func PrintAudit(w io.Writer, report engine.AuditReport) {
	s := report.Summary
	bold.Fprintln(w, "Audit")
	bold.Fprintln(w, "=====")
	fmt.Fprintf(w, "Edges: %d (%d active, %.0f%%)\n", s.TotalEdges, s.ActiveEdges, s.ActivePercent)
	fmt.Fprintf(w, "KPIs: %d, roots: %d\n", s.KpiCount, s.RootCount)

	if len(report.Cycles) > 0 {
		red.Fprintf(w, "CYCLES: %d\n", len(report.Cycles))
		for _, c := range report.Cycles {
			red.Fprintf(w, "  %s\n", strings.Join(c.Kpis, ", "))
		}
	}

	if len(report.OutOfRange) > 0 {
		yellow.Fprintf(w, "Weights outside [0,1]: %d\n", len(report.OutOfRange))
		for _, e := range report.OutOfRange {
			fmt.Fprintf(w, "  %s -> %s: %g\n", e.ParentKpiID, e.ChildKpiID, e.Weight)
		}
	}

	if len(report.Unbalanced) > 0 {
		yellow.Fprintf(w, "Unbalanced parents: %d\n", len(report.Unbalanced))
		for _, b := range report.Unbalanced {
			fmt.Fprintf(w, "  %s: %d children sum to %.3f\n", b.ParentKpiID, b.ChildCount, b.WeightSum)
		}
	}

	if report.Healthy() {
		green.Fprintln(w, "✓ No cycles and all weights in range")
	}
}
