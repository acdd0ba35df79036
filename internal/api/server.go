// Package api serves a read-only HTTP view of the stored traffic table and
// the rendered map artifacts.
package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/traffic-cli/internal/config"
	"github.com/sells-group/traffic-cli/internal/geo"
	"github.com/sells-group/traffic-cli/internal/metrics"
	"github.com/sells-group/traffic-cli/internal/pipeline"
	"github.com/sells-group/traffic-cli/internal/store"
)

// Paging limits for /api/records.
const (
	DefaultLimit = 100
	MaxLimit     = 1000

	// adjacencyRowCap bounds the rows loaded for /api/adjacency. The source
	// offset ceiling keeps stored tables well below it.
	adjacencyRowCap = 10000
)

// Server holds the dependencies of the browse API.
type Server struct {
	cfg     *config.Config
	store   store.Store
	metrics *metrics.Metrics
}

// New creates a Server. m may be nil, in which case a private registry is used.
func New(cfg *config.Config, st store.Store, m *metrics.Metrics) *Server {
	if m == nil {
		m = metrics.New()
	}
	return &Server{cfg: cfg, store: st, metrics: m}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.Server.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	r.Use(s.countRequests)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/api/records", s.handleRecords)
	r.Get("/api/adjacency", s.handleAdjacency)
	r.Handle("/metrics", s.metrics.Handler())

	maps := http.StripPrefix("/maps/", http.FileServer(http.Dir(s.outputDir())))
	r.Get("/maps/*", maps.ServeHTTP)

	return r
}

func (s *Server) outputDir() string {
	if s.cfg.Render.OutputDir == "" {
		return "."
	}
	return s.cfg.Render.OutputDir
}

// countRequests increments the request counter once the route pattern is known.
func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.HTTPRequests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
	})
}

type recordsResponse struct {
	Table   string           `json:"table"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
	Columns []string         `json:"columns"`
	Rows    []map[string]any `json:"rows"`
}

func (s *Server) handleRecords(w http.ResponseWriter, r *http.Request) {
	limit, err := intParam(r, "limit", DefaultLimit)
	if err != nil || limit <= 0 {
		writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	offset, err := intParam(r, "offset", 0)
	if err != nil || offset < 0 {
		writeError(w, http.StatusBadRequest, "offset must be a non-negative integer")
		return
	}

	t, err := s.store.ReadTable(r.Context(), s.cfg.Store.Table, limit, offset)
	if err != nil {
		zap.L().Error("api: read records failed", zap.String("table", s.cfg.Store.Table), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read stored table")
		return
	}

	resp := recordsResponse{
		Table:   s.cfg.Store.Table,
		Limit:   limit,
		Offset:  offset,
		Columns: t.Columns(),
		Rows:    make([]map[string]any, 0, t.Len()),
	}
	for _, rec := range t.Rows() {
		resp.Rows = append(resp.Rows, rec)
	}
	writeJSON(w, http.StatusOK, resp)
}

type adjacencyResponse struct {
	Rows    int             `json:"rows"`
	Entries []geo.Adjacency `json:"entries"`
}

func (s *Server) handleAdjacency(w http.ResponseWriter, r *http.Request) {
	opts, err := pipeline.AdjacencyOptions(s.cfg.Adjacency)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	t, err := s.store.ReadTable(r.Context(), s.cfg.Store.Table, adjacencyRowCap, 0)
	if err != nil {
		zap.L().Error("api: read records failed", zap.String("table", s.cfg.Store.Table), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to read stored table")
		return
	}

	adj, err := geo.FindAdjacent(t, opts)
	if err != nil {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if adj == nil {
		adj = []geo.Adjacency{}
	}
	writeJSON(w, http.StatusOK, adjacencyResponse{Rows: t.Len(), Entries: adj})
}

func intParam(r *http.Request, name string, def int) (int, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
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
