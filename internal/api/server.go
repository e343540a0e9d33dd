// Package api exposes pipeline runs and single-domain classification over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/contact-mx/internal/pipeline"
	"github.com/sells-group/contact-mx/internal/tabular"
)

const (
	// DefaultMaxBodyBytes caps uploaded CSV bodies.
	DefaultMaxBodyBytes = 32 << 20
	// DefaultMaxRuns bounds the in-memory run registry.
	DefaultMaxRuns = 100
)

// Option configures a Server.
type Option func(*Server)

// WithAllowedOrigins sets the CORS allowed origins. Default: "*".
func WithAllowedOrigins(origins []string) Option {
	return func(s *Server) {
		if len(origins) > 0 {
			s.origins = origins
		}
	}
}

// WithMaxBodyBytes caps request body size for run submissions.
func WithMaxBodyBytes(n int64) Option {
	return func(s *Server) {
		if n > 0 {
			s.maxBody = n
		}
	}
}

// WithRegistry replaces the default run registry.
func WithRegistry(r *Registry) Option {
	return func(s *Server) { s.runs = r }
}

// Server serves the HTTP API. Runs execute in the background under the
// context passed to NewServer and stop when it is cancelled.
type Server struct {
	ctx      context.Context
	pipeline *pipeline.Pipeline
	runs     *Registry
	origins  []string
	maxBody  int64
	now      func() time.Time
	wg       sync.WaitGroup
}

// NewServer creates a Server for p.
func NewServer(ctx context.Context, p *pipeline.Pipeline, opts ...Option) *Server {
	s := &Server{
		ctx:      ctx,
		pipeline: p,
		runs:     NewRegistry(DefaultMaxRuns),
		origins:  []string{"*"},
		maxBody:  DefaultMaxBodyBytes,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Runs returns the run registry.
func (s *Server) Runs() *Registry {
	return s.runs
}

// Wait blocks until all background runs have returned.
func (s *Server) Wait() {
	s.wg.Wait()
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/runs", s.handleCreateRun)
		r.Get("/runs", s.handleListRuns)
		r.Get("/runs/{id}", s.handleGetRun)
		r.Delete("/runs/{id}", s.handleCancelRun)
		r.Get("/runs/{id}/export", s.handleExport)
		r.Get("/classify/{domain}", s.handleClassify)
	})
	return r
}

func (s *Server) handleCreateRun(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil {
		writeError(w, http.StatusServiceUnavailable, "pipeline not configured")
		return
	}

	opts := tabular.CSVOptions{}
	if strings.HasPrefix(r.Header.Get("Content-Type"), "text/tab-separated-values") {
		opts.Delimiter = '\t'
	}
	body := http.MaxBytesReader(w, r.Body, s.maxBody)
	tbl, err := tabular.ReadCSV(r.Context(), body, opts)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid csv: %v", err))
		return
	}

	ctx, cancel := context.WithCancel(s.ctx)
	run, err := s.runs.Create(tbl.Header, cancel, s.now())
	if err != nil {
		cancel()
		w.Header().Set("Retry-After", "30")
		writeError(w, http.StatusServiceUnavailable, "too many active runs")
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()

		res, err := s.pipeline.Run(ctx, tbl.Rows, run.setStatus)
		run.finish(res, err, s.now())
		if err != nil {
			zap.L().Warn("api: run failed", zap.String("run_id", run.ID), zap.Error(err))
			return
		}
		zap.L().Info("api: run complete",
			zap.String("run_id", run.ID),
			zap.Int("records", len(res.Records)),
			zap.Int("degraded", len(res.Degraded)),
		)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     run.ID,
		"status": "accepted",
	})
}

func (s *Server) handleListRuns(w http.ResponseWriter, _ *http.Request) {
	runs := s.runs.List()
	out := make([]RunView, 0, len(runs))
	for _, run := range runs {
		out = append(out, run.View())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runs.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run.View())
}

func (s *Server) handleCancelRun(w http.ResponseWriter, r *http.Request) {
	if !s.runs.Cancel(chi.URLParam(r, "id")) {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	run, ok := s.runs.Get(chi.URLParam(r, "id"))
	if !ok {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	res, done := run.Result()
	if !done {
		writeError(w, http.StatusConflict, fmt.Sprintf("run is %s", run.State()))
		return
	}

	switch format := r.URL.Query().Get("format"); format {
	case "", "csv":
		w.Header().Set("Content-Type", "text/csv; charset=utf-8")
		w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, run.ID))
		if err := tabular.WriteCSV(w, res.Records, run.Header); err != nil {
			zap.L().Error("api: write csv export", zap.String("run_id", run.ID), zap.Error(err))
		}
	case "json":
		w.Header().Set("Content-Type", "application/json")
		if err := tabular.WriteJSON(w, res.Records); err != nil {
			zap.L().Error("api: write json export", zap.String("run_id", run.ID), zap.Error(err))
		}
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unsupported format %q", format))
	}
}

func (s *Server) handleClassify(w http.ResponseWriter, r *http.Request) {
	if s.pipeline == nil || s.pipeline.Classifier() == nil {
		writeError(w, http.StatusServiceUnavailable, "classifier not configured")
		return
	}
	c := s.pipeline.Classifier().Resolve(r.Context(), chi.URLParam(r, "domain"))
	writeJSON(w, http.StatusOK, c)
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Duration("duration", time.Since(start)),
		)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Debug("api: encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
