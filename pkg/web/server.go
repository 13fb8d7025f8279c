package web

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ritzau/kpi-graph/pkg/engine"
	"github.com/ritzau/kpi-graph/pkg/logging"
	"github.com/ritzau/kpi-graph/pkg/metrics"
	"github.com/ritzau/kpi-graph/pkg/model"
	"github.com/ritzau/kpi-graph/pkg/pubsub"
)

// Server exposes the KPI engine over HTTP
type Server struct {
	router     *mux.Router
	engine     *engine.Engine
	publisher  *pubsub.SSEPublisher
	mu         sync.Mutex
	httpServer *http.Server
}

// NewPublisher creates the SSE publisher shared by the engine and the server,
// with buffering configured for every topic the server streams
func NewPublisher() *pubsub.SSEPublisher {
	p := pubsub.NewSSEPublisher()

	// kpi_edges: new subscribers get the latest change so they know the current edge count
	p.ConfigureTopic(pubsub.TopicKpiEdges, pubsub.TopicConfig{
		BufferSize: 1,
		ReplayAll:  false,
	})

	// store_status: buffer last 10 events, replay only last event to new subscribers
	p.ConfigureTopic(pubsub.TopicStoreStatus, pubsub.TopicConfig{
		BufferSize: 10,
		ReplayAll:  false,
	})
	return p
}

// NewServer creates a new web server
func NewServer(eng *engine.Engine, publisher *pubsub.SSEPublisher) *Server {
	s := &Server{
		router:    mux.NewRouter(),
		engine:    eng,
		publisher: publisher,
	}
	s.setupRoutes()
	return s
}

// PublishStoreStatus publishes a seed loading or reload status event
func (s *Server) PublishStoreStatus(state, message, source string) error {
	status := pubsub.StoreStatus{
		State:   state,
		Message: message,
		Source:  source,
	}
	return s.publisher.Publish(pubsub.TopicStoreStatus, state, status)
}

func (s *Server) setupRoutes() {
	s.router.Use(logging.RequestIDMiddleware, logging.RecoveryMiddleware, metricsMiddleware)

	// SSE subscription endpoints
	s.router.HandleFunc("/api/subscribe/kpi_edges", s.handleSubscribe(pubsub.TopicKpiEdges)).Methods("GET")
	s.router.HandleFunc("/api/subscribe/store_status", s.handleSubscribe(pubsub.TopicStoreStatus)).Methods("GET")

	s.router.HandleFunc("/api/edges", s.handleListEdges).Methods("GET")
	s.router.HandleFunc("/api/edges", s.handleCreateEdge).Methods("POST")
	s.router.HandleFunc("/api/edges/{id}", s.handleGetEdge).Methods("GET")
	s.router.HandleFunc("/api/edges/{id}", s.handleUpdateEdge).Methods("PATCH")
	s.router.HandleFunc("/api/edges/{id}", s.handleDeleteEdge).Methods("DELETE")

	s.router.HandleFunc("/api/tree", s.handleTree).Methods("GET")
	s.router.HandleFunc("/api/tree/{root}", s.handleTree).Methods("GET")
	s.router.HandleFunc("/api/roots", s.handleRoots).Methods("GET")

	s.router.HandleFunc("/api/kpis/{id}/paths", s.handlePaths).Methods("GET")
	s.router.HandleFunc("/api/kpis/{id}/influence", s.handleInfluence).Methods("GET")
	s.router.HandleFunc("/api/kpis/{id}/balance", s.handleBalance).Methods("GET")

	s.router.HandleFunc("/api/cycle-check", s.handleCycleCheck).Methods("GET")
	s.router.HandleFunc("/api/audit", s.handleAudit).Methods("GET")

	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")
}

// Handler returns the routed handler, for tests and embedding
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleSubscribe(topic string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("Access-Control-Allow-Origin", "*")

		// Initial comment establishes the connection (Safari compatibility)
		fmt.Fprintf(w, ": connected\n\n")
		if flusher, ok := w.(http.Flusher); ok {
			flusher.Flush()
		}

		sub, err := s.publisher.Subscribe(r.Context(), topic)
		if err != nil {
			logging.ErrorContext(r.Context(), "failed to subscribe", "topic", topic, "error", err)
			return
		}
		defer sub.Close()

		for event := range sub.Events() {
			if err := pubsub.WriteSSE(w, event); err != nil {
				logging.WarnContext(r.Context(), "error writing SSE event", "topic", topic, "error", err)
				return
			}
			if flusher, ok := w.(http.Flusher); ok {
				flusher.Flush()
			}
		}
	}
}

func (s *Server) handleListEdges(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.EdgeFilter{
		ParentKpiID:      q.Get("parent"),
		ChildKpiID:       q.Get("child"),
		RelationshipType: model.RelationshipType(q.Get("type")),
	}
	if active := q.Get("active"); active != "" {
		activeOnly, err := strconv.ParseBool(active)
		if err != nil {
			writeError(w, r, badRequest("invalid active flag %q", active))
			return
		}
		filter.ActiveOnly = activeOnly
	}

	writeJSON(w, http.StatusOK, s.engine.ListEdges(filter))
}

func (s *Server) handleCreateEdge(w http.ResponseWriter, r *http.Request) {
	var input model.EdgeInput
	if err := decodeBody(w, r, &input); err != nil {
		writeError(w, r, err)
		return
	}
	if input.ParentKpiID == "" || input.ChildKpiID == "" {
		writeError(w, r, badRequest("parentKpiId and childKpiId are required"))
		return
	}

	edge, err := s.engine.InsertEdge(r.Context(), input)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, edge)
}

func (s *Server) handleGetEdge(w http.ResponseWriter, r *http.Request) {
	edge, err := s.engine.GetEdge(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, edge)
}

func (s *Server) handleUpdateEdge(w http.ResponseWriter, r *http.Request) {
	var patch model.EdgePatch
	if err := decodeBody(w, r, &patch); err != nil {
		writeError(w, r, err)
		return
	}

	edge, err := s.engine.UpdateEdge(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, edge)
}

func (s *Server) handleDeleteEdge(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.RemoveEdge(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTree(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.GetTree(mux.Vars(r)["root"]))
}

func (s *Server) handleRoots(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.GetRoots())
}

func (s *Server) handlePaths(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.GetPaths(mux.Vars(r)["id"]))
}

// maxDepthFactor caps a requested influence depth at this multiple of the
// configured default. Layered diamonds have exponentially many paths.
const maxDepthFactor = 10

func (s *Server) handleInfluence(w http.ResponseWriter, r *http.Request) {
	maxDepth := 0
	if v := r.URL.Query().Get("maxDepth"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, r, badRequest("maxDepth must be a positive integer, got %q", v))
			return
		}
		maxDepth = min(n, s.engine.MaxDepth()*maxDepthFactor)
	}

	writeJSON(w, http.StatusOK, s.engine.GetInfluence(mux.Vars(r)["id"], maxDepth))
}

func (s *Server) handleBalance(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.CheckBalance(mux.Vars(r)["id"]))
}

func (s *Server) handleCycleCheck(w http.ResponseWriter, r *http.Request) {
	parent := r.URL.Query().Get("parent")
	child := r.URL.Query().Get("child")
	if parent == "" || child == "" {
		writeError(w, r, badRequest("parent and child are required"))
		return
	}

	writeJSON(w, http.StatusOK, s.engine.CheckCycle(parent, child))
}

func (s *Server) handleAudit(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Audit())
}

// Start starts the web server on the specified port and blocks until it stops
func (s *Server) Start(port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.mu.Lock()
	s.httpServer = srv
	s.mu.Unlock()

	logging.Info("starting web server", "url", fmt.Sprintf("http://localhost:%d", port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown closes every SSE stream and stops the server gracefully
func (s *Server) Shutdown(ctx context.Context) error {
	s.publisher.Close()

	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// metricsMiddleware records request count and latency per route template
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route := "unmatched"
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		wrapped := logging.NewStatusRecorder(w)
		start := time.Now()
		next.ServeHTTP(wrapped, r)

		metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(wrapped.Status())).Inc()
	})
}
