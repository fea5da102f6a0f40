// Package server exposes one running simulation over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/TFMV/schelling/engine"
	"github.com/TFMV/schelling/logging"
	"github.com/TFMV/schelling/metrics"
	"github.com/TFMV/schelling/models"
	"github.com/TFMV/schelling/render"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config for the server
type Config struct {
	Port      int
	Policy    engine.Policy       // default policy for /api/step
	Collector *metrics.Collector  // optional, refreshed after each step
	Gatherer  prometheus.Gatherer // optional, served on /metrics
	Logger    *slog.Logger
}

// Server serialises all access to a single engine. The engine itself is
// not safe for concurrent use.
type Server struct {
	mu     sync.Mutex
	engine *engine.Engine
	config Config
}

// New wraps eng with the given configuration
func New(eng *engine.Engine, config Config) *Server {
	if config.Policy == nil {
		config.Policy = engine.GreedyRandom{}
	}
	if config.Logger == nil {
		config.Logger = logging.NewNop()
	}
	s := &Server{engine: eng, config: config}
	s.observe()
	return s
}

// Handler returns the router for the API
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Get("/health", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/params", s.handleParams)
		r.Get("/state", s.handleState)
		r.Get("/counts", s.handleCounts)
		r.Get("/report", s.handleReport)
		r.Get("/unsatisfied", s.handleUnsatisfied)
		r.Get("/nodes", s.handleNodes)
		r.Post("/step", s.handleStep)
		r.Post("/converge", s.handleConverge)
	})
	r.Get("/render", s.handleRender)

	if s.config.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(s.config.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Start launches the web server and shuts it down when ctx is cancelled
func (s *Server) Start(ctx context.Context) error {
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.config.Logger.Info("starting server", "port", s.config.Port, "run_id", s.engine.ID())
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.config.Logger.Info("shutting down server")
		return server.Shutdown(shutdownCtx)
	}
}

// observe refreshes the gauges; callers hold mu or own the engine exclusively
func (s *Server) observe() {
	if s.config.Collector != nil {
		s.config.Collector.Observe(s.engine.Report())
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "run_id": s.engine.ID()})
}

func (s *Server) handleParams(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	params := s.engine.Params()
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, params)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	snap := s.engine.Snapshot()
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleCounts(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	counts := s.engine.NumberOfStates()
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, counts)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	report := s.engine.Report()
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, report)
}

func (s *Server) handleUnsatisfied(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	nodes := s.engine.UnsatisfiedNodes()
	s.mu.Unlock()
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(nodes),
		"nodes": nodes,
	})
}

// handleNodes lists the nodes holding the state named in the "state" query
// parameter (positive, negative or empty).
func (s *Server) handleNodes(w http.ResponseWriter, r *http.Request) {
	state, err := models.ParseState(r.URL.Query().Get("state"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	snap := s.engine.Snapshot()
	s.mu.Unlock()

	nodes := snap.NodesWithState(state)
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"state": state.String(),
		"count": len(nodes),
		"nodes": nodes,
	})
}

// handleStep runs one step of the configured policy, or of the policy named
// in the "policy" query parameter.
func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	policy := s.config.Policy
	if name := r.URL.Query().Get("policy"); name != "" {
		budget, err := intParam(r, "budget", 0)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		policy, err = engine.GetPolicy(name, budget)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	s.mu.Lock()
	res := policy.Step(s.engine)
	report := s.engine.Report()
	if s.config.Collector != nil {
		s.config.Collector.Observe(report)
	}
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"step":   res,
		"report": report,
	})
}

func (s *Server) handleConverge(w http.ResponseWriter, r *http.Request) {
	rounds, err := intParam(r, "max", 100)
	if err != nil || rounds < 0 {
		http.Error(w, "invalid max", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	attempts := s.engine.EvolveToConvergence(rounds)
	report := s.engine.Report()
	if s.config.Collector != nil {
		s.config.Collector.Observe(report)
	}
	s.mu.Unlock()

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"attempts": attempts,
		"report":   report,
	})
}

func (s *Server) handleRender(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = "svg"
	}
	renderer, err := render.GetRenderer(format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	options := render.NewDefaultOptions(format)
	if cell, err := intParam(r, "cell", 0); err == nil && cell > 0 {
		options.CellSize = cell
	}
	if v := r.URL.Query().Get("noise"); v != "" {
		if noise, err := strconv.ParseFloat(v, 64); err == nil {
			options.NoiseIntensity = noise
		}
	}

	s.mu.Lock()
	snap := s.engine.Snapshot()
	report := s.engine.Report()
	options.NoiseSeed = int64(s.engine.Params().Seed)
	s.mu.Unlock()
	options.Title = fmt.Sprintf("Unsatisfied nodes %d - Surface %d", report.Unsatisfied, report.Surface)

	output, err := renderer.Render(snap, options)
	if err != nil {
		http.Error(w, "Error rendering lattice: "+err.Error(), http.StatusInternalServerError)
		return
	}

	switch format {
	case "svg":
		w.Header().Set("Content-Type", "image/svg+xml")
	case "png":
		w.Header().Set("Content-Type", "image/png")
	case "json":
		w.Header().Set("Content-Type", "application/json")
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	}
	if _, err := w.Write(output); err != nil {
		s.config.Logger.Warn("failed to write render response", "format", format, "error", err)
	}
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", name, err)
	}
	return n, nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		s.config.Logger.Warn("failed to write JSON response", "error", err)
	}
}
