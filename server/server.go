// Package server exposes an Engine over HTTP: start runs, follow their event
// streams via SSE or websocket, snapshot the live execution graph, cancel,
// and scrape metrics. Finished runs are served from the engine's event log,
// so the API looks the same while a run executes and after it is gone from
// the active registry.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	json "github.com/goccy/go-json"

	"github.com/braidworks/braid/core"
	"github.com/braidworks/braid/engine"
	"github.com/braidworks/braid/eventlog"
	"github.com/braidworks/braid/graph"
	"github.com/braidworks/braid/logging"
	"github.com/braidworks/braid/runner"
	"github.com/braidworks/braid/stream"
)

// Options configure a Server.
type Options struct {
	// Logger receives request handling diagnostics. Defaults to NoOp.
	Logger logging.Logger

	// BaseContext is the parent context of every run started over HTTP.
	// Runs must outlive the request that started them, so this is never the
	// request context. Defaults to context.Background(); supply a context
	// tied to process shutdown to stop runs on exit.
	BaseContext context.Context
}

// Server translates HTTP requests into engine operations.
type Server struct {
	engine *engine.Engine
	logger logging.Logger
	base   context.Context
}

// New creates a Server around eng.
func New(eng *engine.Engine, optFns ...func(o *Options)) *Server {
	opts := Options{
		Logger:      logging.NoOpLogger{},
		BaseContext: context.Background(),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &Server{
		engine: eng,
		logger: opts.Logger,
		base:   opts.BaseContext,
	}
}

// WithLogger overrides the server's logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithBaseContext sets the parent context for runs started over HTTP.
func WithBaseContext(ctx context.Context) func(o *Options) {
	return func(o *Options) { o.BaseContext = ctx }
}

// Handler returns the server's routing table.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", s.engine.Metrics().Handler())

	r.Route("/api", func(api chi.Router) {
		api.Get("/tasks", s.handleTasks)
		api.Post("/runs", s.handleStartRun)
		api.Get("/runs", s.handleListRuns)
		api.Route("/runs/{runID}", func(rr chi.Router) {
			rr.Get("/", s.handleRun)
			rr.Post("/cancel", s.handleCancel)
			rr.Get("/graph", s.handleGraph)
			rr.Get("/events", s.handleEventsSSE)
			rr.Get("/ws", s.handleEventsWS)
		})
	})

	return enableCORS(r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "time": time.Now().UTC()})
}

func (s *Server) handleTasks(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tasks": s.engine.Tasks()})
}

type startRunRequest struct {
	Task  string `json:"task"`
	Input string `json:"input"`
}

func (s *Server) handleStartRun(w http.ResponseWriter, r *http.Request) {
	var req startRunRequest
	if err := decodeJSON(r.Body, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if req.Task == "" || req.Input == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("task and input are required"))
		return
	}
	if _, ok := s.engine.Task(req.Task); !ok {
		writeError(w, http.StatusNotFound, errNotFound("task"))
		return
	}

	run, err := s.engine.Start(s.base, req.Task, core.NewUserMessage(req.Input))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	// The handle's primary stream has no consumer over HTTP; connected
	// clients follow the run through subscriptions instead.
	go func() {
		for range run.Events() {
		}
	}()

	s.logger.Info("server.run.started", "run_id", run.ID(), "task", req.Task)

	writeJSON(w, http.StatusAccepted, map[string]any{"run_id": run.ID(), "task": req.Task})
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	active := s.engine.ActiveRuns()
	items := make([]map[string]any, 0, len(active))
	for _, run := range active {
		items = append(items, map[string]any{"run_id": run.ID(), "task": run.Name(), "status": "running"})
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": items})
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	root, err := s.snapshot(r.Context(), runID)
	if err != nil {
		s.writeLookupError(w, runID, err)
		return
	}

	summary := map[string]any{"run_id": runID, "status": root.Status}
	if len(root.Children) > 0 {
		task := root.Children[0]
		summary["task"] = task.Name
		summary["usage"] = task.Usage
		summary["steps"] = task.Steps
		if task.Error != nil {
			summary["error"] = task.Error
		}
	}
	writeJSON(w, http.StatusOK, summary)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")
	if err := s.engine.Cancel(runID); err != nil {
		if errors.Is(err, runner.ErrNotFound) {
			writeError(w, http.StatusNotFound, errNotFound("run"))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"run_id": runID, "status": "canceling"})
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "runID")

	root, err := s.snapshot(r.Context(), runID)
	if err != nil {
		s.writeLookupError(w, runID, err)
		return
	}
	writeJSON(w, http.StatusOK, root)
}

// snapshot resolves a run's graph root, live for active runs and replayed
// from the event log for finished ones.
func (s *Server) snapshot(ctx context.Context, runID string) (graph.Node, error) {
	if run, ok := s.engine.ActiveRun(runID); ok {
		root, ok := run.Graph()
		if !ok {
			// Active but no events admitted yet.
			return graph.Node{ID: graph.RootID, Kind: graph.KindRoot, Status: graph.StatusPending}, nil
		}
		return root, nil
	}

	g, err := eventlog.Replay(ctx, s.engine.Log(), runID)
	if err != nil {
		return graph.Node{}, err
	}
	root, ok := g.Root()
	if !ok {
		return graph.Node{}, eventlog.ErrNotFound
	}
	return root, nil
}

// follow returns runID's event stream: a subscription replaying history and
// following live for an active run, or the stored log for a finished one.
func (s *Server) follow(ctx context.Context, runID string) (<-chan core.Event, error) {
	if run, ok := s.engine.ActiveRun(runID); ok {
		return run.Subscribe(), nil
	}

	events, err := s.engine.Log().Read(ctx, runID)
	if err != nil {
		return nil, err
	}
	replay := stream.NewSideChannel[core.Event]()
	for _, ev := range events {
		replay.Push(ev)
	}
	replay.Close()
	return replay.Out(), nil
}

func (s *Server) writeLookupError(w http.ResponseWriter, runID string, err error) {
	if errors.Is(err, eventlog.ErrNotFound) {
		writeError(w, http.StatusNotFound, errNotFound("run"))
		return
	}
	s.logger.Error("server.run.lookup", "run_id", runID, "error", err.Error())
	writeError(w, http.StatusInternalServerError, err)
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func errNotFound(target string) error {
	return fmt.Errorf("%s not found", target)
}

func decodeJSON(r io.Reader, v any) error {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}
