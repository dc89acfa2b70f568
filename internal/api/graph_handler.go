package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"

	chi "github.com/go-chi/chi/v5"

	"github.com/legacyscape/depgraph/internal/common"
	"github.com/legacyscape/depgraph/internal/graph"
)

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("missing q parameter"))
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	nodeType := graph.NodeType(r.URL.Query().Get("type"))
	results := s.engine.Search(query, nodeType, limit)
	writeJSON(w, http.StatusOK, map[string]interface{}{"results": results})
}

func (s *Server) handleNode(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	n := s.engine.Graph().Node(id)
	if n == nil {
		writeError(w, http.StatusNotFound, graph.ErrNotFound)
		return
	}
	payload := map[string]interface{}{"node": n}
	if n.Type == graph.NodeJob {
		if cross, err := s.engine.CrossFolder(n.Name); err == nil && len(cross) > 0 {
			payload["cross_folder_deps"] = cross
		}
	}
	writeJSON(w, http.StatusOK, payload)
}

func (s *Server) handleDependencies(w http.ResponseWriter, r *http.Request) {
	s.jobLinks(w, r, s.engine.DependenciesOf, "dependencies")
}

func (s *Server) handleDependents(w http.ResponseWriter, r *http.Request) {
	s.jobLinks(w, r, s.engine.DependentsOf, "dependents")
}

func (s *Server) handleCrossFolder(w http.ResponseWriter, r *http.Request) {
	s.jobLinks(w, r, s.engine.CrossFolder, "cross_folder")
}

func (s *Server) jobLinks(w http.ResponseWriter, r *http.Request, fn func(string) ([]graph.JobLink, error), key string) {
	job := chi.URLParam(r, "job")
	links, err := fn(job)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"job": job, key: links})
}

func (s *Server) handleChain(w http.ResponseWriter, r *http.Request) {
	logger := common.Logger()
	job := chi.URLParam(r, "job")
	depth := 0
	if v := r.URL.Query().Get("depth"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			depth = parsed
		}
	}
	result, err := s.engine.Chain(r.Context(), job, depth)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	logger.Debug("api: chain expansion served",
		"job", job, "nodes", len(result.Nodes), "truncated", result.Stats.Truncated)
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleHierarchy(w http.ResponseWriter, r *http.Request) {
	folder := chi.URLParam(r, "folder")
	scope := graph.NodeFolder
	if v := r.URL.Query().Get("scope"); v != "" {
		scope = graph.NodeType(v)
	}
	depth := 0
	if v := r.URL.Query().Get("depth"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			depth = parsed
		}
	}
	tree, err := s.engine.Hierarchy(scope, folder, depth)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, tree)
}

func (s *Server) handleOrphans(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	writeJSON(w, http.StatusOK, map[string]interface{}{"orphans": s.engine.Orphans(kind)})
}

func statusFor(err error) int {
	if errors.Is(err, graph.ErrNotFound) {
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}
