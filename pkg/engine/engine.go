package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/ritzau/kpi-graph/pkg/analysis"
	"github.com/ritzau/kpi-graph/pkg/cycles"
	"github.com/ritzau/kpi-graph/pkg/graph"
	"github.com/ritzau/kpi-graph/pkg/influence"
	"github.com/ritzau/kpi-graph/pkg/logging"
	"github.com/ritzau/kpi-graph/pkg/metrics"
	"github.com/ritzau/kpi-graph/pkg/model"
	"github.com/ritzau/kpi-graph/pkg/pubsub"
	"github.com/ritzau/kpi-graph/pkg/store"
)

// Options configures an Engine
type Options struct {
	Store            *store.EdgeStore // Defaults to an empty store
	Publisher        pubsub.Publisher // Optional change feed
	MaxDepth         int              // Influence depth when the caller passes 0
	BalanceTolerance float64
}

// Engine is the entry point to the KPI hierarchy. Mutations run one at a time
// and validation happens inside the same critical section as the write, so a
// cycle can never slip in between check and insert. Queries share a read lock
// and always see the edge set between two mutations.
type Engine struct {
	mu               sync.RWMutex
	store            *store.EdgeStore
	publisher        pubsub.Publisher
	maxDepth         int
	balanceTolerance float64
}

// AuditReport collects every diagnostic over the current edge set
type AuditReport struct {
	Summary    analysis.Summary         `json:"summary"`
	Cycles     []cycles.KpiCycle        `json:"cycles"`
	OutOfRange []model.KpiEdge          `json:"outOfRange"`
	Unbalanced []analysis.BalanceReport `json:"unbalanced"`
}

// Healthy is true when the edge set has no cycles and no out-of-range weights
func (r AuditReport) Healthy() bool {
	return len(r.Cycles) == 0 && len(r.OutOfRange) == 0
}

// New creates an engine
func New(opts Options) *Engine {
	if opts.Store == nil {
		opts.Store = store.New()
	}
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = influence.DefaultMaxDepth
	}
	if opts.BalanceTolerance <= 0 {
		opts.BalanceTolerance = analysis.DefaultBalanceTolerance
	}

	e := &Engine{
		store:            opts.Store,
		publisher:        opts.Publisher,
		maxDepth:         opts.MaxDepth,
		balanceTolerance: opts.BalanceTolerance,
	}
	e.recordSize()
	return e
}

// InsertEdge validates and stores a new edge
func (e *Engine) InsertEdge(ctx context.Context, in model.EdgeInput) (model.KpiEdge, error) {
	if err := ctx.Err(); err != nil {
		return model.KpiEdge{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := model.ValidateEdge(in.ParentKpiID, in.ChildKpiID, in.Weight); err != nil {
		return model.KpiEdge{}, e.reject(ctx, "insert", err)
	}
	if in.ParentKpiID == in.ChildKpiID {
		return model.KpiEdge{}, e.reject(ctx, "insert", &model.SelfLoopError{KpiID: in.ParentKpiID})
	}
	if check := cycles.WouldCreateCycle(e.store, in.ParentKpiID, in.ChildKpiID); check.WouldCreateCycle {
		return model.KpiEdge{}, e.reject(ctx, "insert", cycleError(check))
	}

	edge, err := e.store.Insert(in)
	if err != nil {
		return model.KpiEdge{}, e.reject(ctx, "insert", err)
	}

	logEdge(ctx, "edge inserted", edge)
	e.changed(ctx, "insert", pubsub.EventEdgeInserted, pubsub.EdgeChange{EdgeID: edge.ID, Edge: &edge})
	return edge, nil
}

// UpdateEdge merges patch into an existing edge. Moving an endpoint or
// re-activating the edge is validated like a fresh insert.
func (e *Engine) UpdateEdge(ctx context.Context, id string, patch model.EdgePatch) (model.KpiEdge, error) {
	if err := ctx.Err(); err != nil {
		return model.KpiEdge{}, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	current, err := e.store.Get(id)
	if err != nil {
		return model.KpiEdge{}, e.reject(ctx, "update", err)
	}

	proposed := current
	structural := patch.Apply(&proposed)
	if err := model.ValidateEdge(proposed.ParentKpiID, proposed.ChildKpiID, proposed.Weight); err != nil {
		return model.KpiEdge{}, e.reject(ctx, "update", err)
	}
	if structural && proposed.IsActive {
		logging.TraceContext(ctx, "validating structural update",
			"id", id, "parent", proposed.ParentKpiID, "child", proposed.ChildKpiID)
		if proposed.ParentKpiID == proposed.ChildKpiID {
			return model.KpiEdge{}, e.reject(ctx, "update", &model.SelfLoopError{KpiID: proposed.ParentKpiID})
		}
		check := cycles.WouldCreateCycleExcluding(e.store, proposed.ParentKpiID, proposed.ChildKpiID, id)
		if check.WouldCreateCycle {
			return model.KpiEdge{}, e.reject(ctx, "update", cycleError(check))
		}
	}

	edge, err := e.store.Update(id, patch)
	if err != nil {
		return model.KpiEdge{}, e.reject(ctx, "update", err)
	}

	logEdge(ctx, "edge updated", edge)
	e.changed(ctx, "update", pubsub.EventEdgeUpdated, pubsub.EdgeChange{EdgeID: edge.ID, Edge: &edge})
	return edge, nil
}

// RemoveEdge deletes an edge
func (e *Engine) RemoveEdge(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.store.Remove(id); err != nil {
		return e.reject(ctx, "remove", err)
	}

	logging.InfoContext(ctx, "edge removed", "id", id)
	e.changed(ctx, "remove", pubsub.EventEdgeRemoved, pubsub.EdgeChange{EdgeID: id})
	return nil
}

// Reload replaces every edge with inputs. The batch is validated as a whole
// in order; if any edge is a self loop or closes a cycle nothing changes.
func (e *Engine) Reload(ctx context.Context, inputs []model.EdgeInput) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	staged := store.New()
	for i, in := range inputs {
		if err := model.ValidateEdge(in.ParentKpiID, in.ChildKpiID, in.Weight); err != nil {
			return e.reject(ctx, "reload", fmt.Errorf("edge %d: %w", i, err))
		}
		if in.ParentKpiID != in.ChildKpiID {
			if check := cycles.WouldCreateCycle(staged, in.ParentKpiID, in.ChildKpiID); check.WouldCreateCycle {
				return e.reject(ctx, "reload", fmt.Errorf("edge %d: %w", i, cycleError(check)))
			}
		}
		if _, err := staged.Insert(in); err != nil {
			return e.reject(ctx, "reload", fmt.Errorf("edge %d: %w", i, err))
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.store.Replace(staged.All(false))
	logging.InfoContext(ctx, "edges reloaded", "count", len(inputs))
	e.changed(ctx, "reload", pubsub.EventEdgesReloaded, pubsub.EdgeChange{})
	return nil
}

// GetEdge returns one edge by id
func (e *Engine) GetEdge(id string) (model.KpiEdge, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.Get(id)
}

// ListEdges returns the edges matching filter in insertion order
func (e *Engine) ListEdges(filter model.EdgeFilter) []model.KpiEdge {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.store.List(filter)
}

// GetTree returns the tree under rootID, or one tree per root when rootID is empty
func (e *Engine) GetTree(rootID string) []*model.TreeNode {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if rootID == "" {
		return graph.BuildForest(e.store)
	}
	return []*model.TreeNode{graph.BuildTree(e.store, rootID)}
}

// GetRoots returns the root KPIs
func (e *Engine) GetRoots() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return graph.FindRoots(e.store)
}

// GetPaths returns every root-first lineage path ending at kpiID
func (e *Engine) GetPaths(kpiID string) [][]string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return graph.FindAllPaths(e.store, kpiID)
}

// GetInfluence computes per-path influence from kpiID; maxDepth 0 uses the
// engine default
func (e *Engine) GetInfluence(kpiID string, maxDepth int) model.InfluenceResult {
	if maxDepth <= 0 {
		maxDepth = e.maxDepth
	}

	e.mu.RLock()
	result := influence.Compute(e.store, kpiID, maxDepth)
	e.mu.RUnlock()

	metrics.InfluenceRecords.Observe(float64(result.TotalCount))
	if result.Truncated {
		logging.Debug("influence traversal truncated", "kpi", kpiID, "maxDepth", maxDepth)
	}
	return result
}

// CheckCycle reports whether parent -> child could be inserted without closing a cycle
func (e *Engine) CheckCycle(parent, child string) model.CycleCheck {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return cycles.WouldCreateCycle(e.store, parent, child)
}

// CheckBalance reports how parentKpiID's child weights add up
func (e *Engine) CheckBalance(parentKpiID string) analysis.BalanceReport {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return analysis.CheckBalance(e.store, parentKpiID, e.balanceTolerance)
}

// Audit runs every diagnostic over the current edge set
func (e *Engine) Audit() AuditReport {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return AuditReport{
		Summary:    analysis.Summarize(e.store),
		Cycles:     cycles.FindKpiCycles(e.store),
		OutOfRange: analysis.OutOfRangeWeights(e.store),
		Unbalanced: analysis.UnbalancedParents(e.store, e.balanceTolerance),
	}
}

// MaxDepth returns the default influence depth
func (e *Engine) MaxDepth() int {
	return e.maxDepth
}

func cycleError(check model.CycleCheck) *model.CycleDetectedError {
	return &model.CycleDetectedError{
		ParentKpiID: check.ParentKpiID,
		ChildKpiID:  check.ChildKpiID,
		Reason:      check.Reason,
		Path:        check.Path,
	}
}

// reject logs and counts a refused mutation, then hands the error back
func (e *Engine) reject(ctx context.Context, operation string, err error) error {
	reason := "invalid"
	switch {
	case errors.Is(err, model.ErrSelfLoop):
		reason = "self_loop"
	case errors.Is(err, model.ErrCycleDetected):
		reason = "cycle"
	case errors.Is(err, model.ErrNotFound):
		reason = "not_found"
	case errors.Is(err, model.ErrInvalidEdge):
		reason = "invalid"
	}
	metrics.RejectedMutations.WithLabelValues(operation, reason).Inc()
	logging.WarnContext(ctx, "edge mutation rejected", "operation", operation, "reason", reason, "error", err)
	return err
}

// changed runs after every successful mutation. Caller holds the write lock.
func (e *Engine) changed(ctx context.Context, operation, eventType string, change pubsub.EdgeChange) {
	metrics.EdgeMutations.WithLabelValues(operation).Inc()
	e.recordSize()

	if e.publisher == nil {
		return
	}
	change.EdgeCount = e.store.Len()
	if err := e.publisher.Publish(pubsub.TopicKpiEdges, eventType, change); err != nil {
		logging.WarnContext(ctx, "failed to publish edge change", "event", eventType, "error", err)
	}
}

func (e *Engine) recordSize() {
	total := e.store.Len()
	active := len(e.store.All(true))
	metrics.EdgesStored.WithLabelValues("active").Set(float64(active))
	metrics.EdgesStored.WithLabelValues("inactive").Set(float64(total - active))
}

func logEdge(ctx context.Context, msg string, edge model.KpiEdge) {
	logging.InfoContext(ctx, msg,
		"id", edge.ID,
		"parent", edge.ParentKpiID,
		"child", edge.ChildKpiID,
		"type", string(edge.RelationshipType),
		"weight", edge.Weight,
		"active", edge.IsActive,
	)
}
