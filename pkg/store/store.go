package store

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/ritzau/kpi-graph/pkg/model"
	"github.com/tidwall/btree"
)

// entry is an edge keyed by its insertion sequence number
type entry struct {
	seq  uint64
	edge *model.KpiEdge
}

func entryLess(a, b entry) bool { return a.seq < b.seq }

func seqLess(a, b uint64) bool { return a < b }

// EdgeStore owns the canonical set of KPI edges.
// Listings always come back in insertion order. The store does not check acyclicity;
// callers validate with the cycles package before inserting.
type EdgeStore struct {
	mu       sync.RWMutex
	edges    *btree.BTreeG[entry]
	ids      map[string]uint64                // edge id -> sequence number
	byParent map[string]*btree.BTreeG[uint64] // parent KPI -> sequence numbers
	byChild  map[string]*btree.BTreeG[uint64] // child KPI -> sequence numbers
	nextSeq  uint64
	now      func() time.Time
}

// Option configures an EdgeStore
type Option func(*EdgeStore)

// WithClock overrides the timestamp source
func WithClock(now func() time.Time) Option {
	return func(s *EdgeStore) {
		s.now = now
	}
}

// New creates an empty edge store
func New(opts ...Option) *EdgeStore {
	s := &EdgeStore{now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	s.reset()
	return s
}

func (s *EdgeStore) reset() {
	s.edges = btree.NewBTreeG[entry](entryLess)
	s.ids = make(map[string]uint64)
	s.byParent = make(map[string]*btree.BTreeG[uint64])
	s.byChild = make(map[string]*btree.BTreeG[uint64])
	s.nextSeq = 0
}

// Insert adds a new active edge with a fresh id and timestamps
func (s *EdgeStore) Insert(in model.EdgeInput) (model.KpiEdge, error) {
	if in.ParentKpiID == in.ChildKpiID {
		return model.KpiEdge{}, &model.SelfLoopError{KpiID: in.ParentKpiID}
	}

	now := s.now()
	edge := &model.KpiEdge{
		ID:                uuid.New().String(),
		ParentKpiID:       in.ParentKpiID,
		ChildKpiID:        in.ChildKpiID,
		RelationshipType:  in.RelationshipType,
		CalculationMethod: in.CalculationMethod,
		Weight:            in.Weight,
		IsActive:          true,
		CreatedBy:         in.CreatedBy,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.add(edge)
	return *edge, nil
}

// add appends an edge and indexes it. Caller holds the write lock.
func (s *EdgeStore) add(edge *model.KpiEdge) {
	seq := s.nextSeq
	s.nextSeq++
	s.edges.Set(entry{seq: seq, edge: edge})
	s.ids[edge.ID] = seq
	index(s.byParent, edge.ParentKpiID, seq)
	index(s.byChild, edge.ChildKpiID, seq)
}

// Update merges patch into the edge with the given id and refreshes UpdatedAt
func (s *EdgeStore) Update(id string, patch model.EdgePatch) (model.KpiEdge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok := s.ids[id]
	if !ok {
		return model.KpiEdge{}, &model.NotFoundError{ID: id}
	}
	current, _ := s.edges.Get(entry{seq: seq})

	updated := *current.edge
	patch.Apply(&updated)
	if updated.ParentKpiID == updated.ChildKpiID {
		return model.KpiEdge{}, &model.SelfLoopError{KpiID: updated.ParentKpiID}
	}
	updated.UpdatedAt = s.now()

	if updated.ParentKpiID != current.edge.ParentKpiID {
		unindex(s.byParent, current.edge.ParentKpiID, seq)
		index(s.byParent, updated.ParentKpiID, seq)
	}
	if updated.ChildKpiID != current.edge.ChildKpiID {
		unindex(s.byChild, current.edge.ChildKpiID, seq)
		index(s.byChild, updated.ChildKpiID, seq)
	}
	*current.edge = updated
	return updated, nil
}

// Remove physically deletes the edge with the given id
func (s *EdgeStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok := s.ids[id]
	if !ok {
		return &model.NotFoundError{ID: id}
	}
	removed, _ := s.edges.Delete(entry{seq: seq})
	delete(s.ids, id)
	unindex(s.byParent, removed.edge.ParentKpiID, seq)
	unindex(s.byChild, removed.edge.ChildKpiID, seq)
	return nil
}

// Get returns a copy of the edge with the given id
func (s *EdgeStore) Get(id string) (model.KpiEdge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seq, ok := s.ids[id]
	if !ok {
		return model.KpiEdge{}, &model.NotFoundError{ID: id}
	}
	e, _ := s.edges.Get(entry{seq: seq})
	return *e.edge, nil
}

// FindByParent returns the active edges leaving parentKpiID
func (s *EdgeStore) FindByParent(parentKpiID string) []model.KpiEdge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.byParent[parentKpiID])
}

// FindByChild returns the active edges entering childKpiID
func (s *EdgeStore) FindByChild(childKpiID string) []model.KpiEdge {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lookup(s.byChild[childKpiID])
}

func (s *EdgeStore) lookup(seqs *btree.BTreeG[uint64]) []model.KpiEdge {
	if seqs == nil {
		return nil
	}
	result := make([]model.KpiEdge, 0, seqs.Len())
	seqs.Scan(func(seq uint64) bool {
		if e, ok := s.edges.Get(entry{seq: seq}); ok && e.edge.IsActive {
			result = append(result, *e.edge)
		}
		return true
	})
	return result
}

// All returns every edge, optionally only the active ones
func (s *EdgeStore) All(activeOnly bool) []model.KpiEdge {
	return s.List(model.EdgeFilter{ActiveOnly: activeOnly})
}

// List returns the edges matching filter
func (s *EdgeStore) List(filter model.EdgeFilter) []model.KpiEdge {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]model.KpiEdge, 0, s.edges.Len())
	s.edges.Scan(func(e entry) bool {
		if filter.Matches(e.edge) {
			result = append(result, *e.edge)
		}
		return true
	})
	return result
}

// Len returns the number of stored edges, active or not
func (s *EdgeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.edges.Len()
}

// Replace swaps the whole edge set for edges, keeping their ids and timestamps.
// Edges without an id get a fresh one.
func (s *EdgeStore) Replace(edges []model.KpiEdge) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.reset()
	for i := range edges {
		edge := edges[i]
		if edge.ID == "" {
			edge.ID = uuid.New().String()
		}
		s.add(&edge)
	}
}

// Reset drops every edge
func (s *EdgeStore) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reset()
}

func index(idx map[string]*btree.BTreeG[uint64], key string, seq uint64) {
	seqs, ok := idx[key]
	if !ok {
		seqs = btree.NewBTreeG[uint64](seqLess)
		idx[key] = seqs
	}
	seqs.Set(seq)
}

func unindex(idx map[string]*btree.BTreeG[uint64], key string, seq uint64) {
	seqs, ok := idx[key]
	if !ok {
		return
	}
	seqs.Delete(seq)
	if seqs.Len() == 0 {
		delete(idx, key)
	}
}
