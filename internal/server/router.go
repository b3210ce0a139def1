package server

import (
	"net/http"
	"strings"

	"github.com/gradekeep/gradekeep/internal/server/middleware"
	"github.com/gradekeep/gradekeep/internal/server/response"
)

const apiPrefix = "/api/v1"

// setupRouter creates the HTTP handler with routes and middleware.
func (s *Server) setupRouter() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/", s.handleIndex)

	// Return 204 to keep favicon requests out of the error logs.
	mux.HandleFunc("/favicon.ico", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc(apiPrefix+"/health", s.handleHealth)

	mux.HandleFunc(apiPrefix+"/merge", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			response.MethodNotAllowed(w, r.Method)
			return
		}
		s.handleMerge(w, r)
	})

	mux.HandleFunc(apiPrefix+"/workspaces/", s.routeWorkspace)

	return middleware.Chain(
		middleware.Recovery(s.logger),
		middleware.Logger(s.logger),
	)(mux)
}

// routeWorkspace dispatches /workspaces/{token}, /workspaces/{token}/archive,
// and /workspaces/{token}/files/{name}.
func (s *Server) routeWorkspace(w http.ResponseWriter, r *http.Request) {
	parts := splitPath(strings.TrimPrefix(r.URL.Path, apiPrefix+"/workspaces/"))
	if len(parts) == 0 {
		response.BadRequest(w, "workspace token required", "")
		return
	}
	token := parts[0]

	switch {
	case len(parts) == 1 && r.Method == http.MethodGet:
		s.handleListWorkspace(w, token)
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.handleDeleteWorkspace(w, token)
	case len(parts) == 2 && parts[1] == "archive" && r.Method == http.MethodGet:
		s.handleArchive(w, token)
	case len(parts) == 3 && parts[1] == "files" && r.Method == http.MethodGet:
		s.handleDownload(w, r, token, parts[2])
	default:
		response.NotFound(w, "unknown workspace endpoint")
	}
}

// splitPath splits a URL path into parts, removing empty strings.
func splitPath(path string) []string {
	parts := []string{}
	for _, part := range strings.Split(path, "/") {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}
