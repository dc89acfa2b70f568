package api

import (
	"encoding/json"
	"net/http"

	chi "github.com/go-chi/chi/v5"

	"github.com/legacyscape/depgraph/internal/common"
	"github.com/legacyscape/depgraph/internal/graph"
)

// Server exposes the query engine over HTTP. It holds no business logic of
// its own: every handler decodes parameters, calls the engine and encodes the
// result.
type Server struct {
	router chi.Router
	engine *graph.Engine
}

func NewServer(engine *graph.Engine) *Server {
	s := &Server{router: chi.NewRouter(), engine: engine}
	s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	s.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.router.Get("/v1/stats", s.handleStats)
	s.router.Get("/v1/logs", s.handleLogs)
	s.router.Get("/v1/search", s.handleSearch)
	s.router.Get("/v1/node/{id}", s.handleNode)
	s.router.Get("/v1/jobs/{job}/dependencies", s.handleDependencies)
	s.router.Get("/v1/jobs/{job}/dependents", s.handleDependents)
	s.router.Get("/v1/jobs/{job}/cross-folder", s.handleCrossFolder)
	s.router.Get("/v1/jobs/{job}/chain", s.handleChain)
	s.router.Get("/v1/folders/{folder}/hierarchy", s.handleHierarchy)
	s.router.Get("/v1/orphans", s.handleOrphans)
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Stats())
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"logs": common.LogEntries()})
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, err error) {
	logger := common.Logger()
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "error", err)
	} else {
		logger.Warn("request failed", "status", status, "error", err)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
