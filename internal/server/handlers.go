package server

import (
	"errors"
	"io/fs"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/me/dockscreen/internal/docking"
	"github.com/me/dockscreen/internal/report"
	"github.com/me/dockscreen/internal/store"
)

type endpointInfo struct {
	Path        string   `json:"path"`
	Methods     []string `json:"methods"`
	Description string   `json:"description"`
}

type discoveryResponse struct {
	Name      string         `json:"name"`
	Version   string         `json:"version"`
	Endpoints []endpointInfo `json:"endpoints"`
}

func (s *Server) handleDiscovery(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	respondOK(w, reqID, discoveryResponse{
		Name:    "dockscreen API",
		Version: "v1",
		Endpoints: []endpointInfo{
			{"/api/v1/health", []string{"GET"}, "Server health and version"},
			{"/api/v1/manifest", []string{"GET"}, "Manifest of generated views"},
			{"/api/v1/runs", []string{"GET"}, "Recorded docking runs, newest first"},
			{"/api/v1/runs/{id}", []string{"GET"}, "One run with its ranked results"},
			{"/views/{file}", []string{"GET"}, "Generated view pages"},
		},
	})
}

type healthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	GoVersion string `json:"go_version"`
	Uptime    string `json:"uptime"`
	Store     string `json:"store"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	storeState := "disabled"
	if s.store != nil {
		storeState = "available"
	}
	respondOK(w, reqID, healthResponse{
		Status:    "healthy",
		Version:   s.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Store:     storeState,
	})
}

func (s *Server) handleManifest(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	m, err := report.ReadManifest(s.viewsDir)
	if errors.Is(err, fs.ErrNotExist) {
		respondError(w, reqID, http.StatusNotFound, notFound("manifest", s.viewsDir))
		return
	}
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&APIError{Code: ErrInternal, Message: err.Error()})
		return
	}
	respondOK(w, reqID, m)
}

func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireStore(w, reqID) {
		return
	}

	opts := store.ListOptions{}
	q := r.URL.Query()
	var err error
	if v := q.Get("limit"); v != "" {
		if opts.Limit, err = strconv.Atoi(v); err != nil {
			respondError(w, reqID, http.StatusBadRequest,
				&APIError{Code: ErrValidation, Message: "limit must be an integer"})
			return
		}
	}
	if v := q.Get("offset"); v != "" {
		if opts.Offset, err = strconv.Atoi(v); err != nil {
			respondError(w, reqID, http.StatusBadRequest,
				&APIError{Code: ErrValidation, Message: "offset must be an integer"})
			return
		}
	}
	opts.Clamp()

	runs, total, err := s.store.ListRuns(r.Context(), opts)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&APIError{Code: ErrInternal, Message: err.Error()})
		return
	}
	if runs == nil {
		runs = []*store.Run{}
	}
	respondList(w, reqID, runs, &Pagination{
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
		HasMore: opts.Offset+opts.Limit < total,
	})
}

type runDetail struct {
	*store.Run
	Results []docking.Result `json:"results"`
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	reqID := RequestIDFromContext(r.Context())
	if !s.requireStore(w, reqID) {
		return
	}
	id := chi.URLParam(r, "id")

	run, err := s.store.GetRun(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&APIError{Code: ErrInternal, Message: err.Error()})
		return
	}
	if run == nil {
		respondError(w, reqID, http.StatusNotFound, notFound("run", id))
		return
	}
	results, err := s.store.ListResults(r.Context(), id)
	if err != nil {
		respondError(w, reqID, http.StatusInternalServerError,
			&APIError{Code: ErrInternal, Message: err.Error()})
		return
	}
	respondOK(w, reqID, runDetail{Run: run, Results: results})
}

func (s *Server) requireStore(w http.ResponseWriter, reqID string) bool {
	if s.store != nil {
		return true
	}
	respondError(w, reqID, http.StatusServiceUnavailable,
		&APIError{Code: ErrUnavailable, Message: "run history is disabled"})
	return false
}
