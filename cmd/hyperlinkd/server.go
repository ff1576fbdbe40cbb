package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/manifest"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/metrics"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/observability"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/pipeline"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/review"
	"github.com/Gurmittoor/hyperlinklaw-sub003/internal/storage"
)

type serverDeps struct {
	docs     *storage.DocumentRepository
	pages    *storage.PageRepository
	links    *storage.LinkRepository
	pipeline *pipeline.CasePipeline
	review   *review.Service
	metrics  *metrics.Metrics
	registry *prometheus.Registry
}

type server struct {
	logger *observability.Logger
	deps   serverDeps

	// Last completed run per case, for the manifest endpoints. The link table
	// itself is the durable record; the manifest summary is session state.
	mu      sync.RWMutex
	results map[uuid.UUID]*pipeline.CaseResult
}

func newServer(logger *observability.Logger, deps serverDeps) *server {
	return &server{
		logger:  logger,
		deps:    deps,
		results: make(map[uuid.UUID]*pipeline.CaseResult),
	}
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Minute))

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.deps.registry, promhttp.HandlerOpts{}))

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cases/{caseID}", func(r chi.Router) {
			r.Post("/documents", s.handleRegisterDocument)
			r.Post("/process", s.handleProcessCase)
			r.Get("/links", s.handleListLinks)
			r.Post("/links/override", s.handleOverride)
			r.Get("/status", s.handleStatus)
			r.Get("/manifest.json", s.handleManifestJSON)
			r.Get("/manifest.csv", s.handleManifestCSV)
		})
		r.Post("/links/{linkID}/approve", s.handleApprove)
		r.Post("/links/{linkID}/reject", s.handleReject)
	})

	return r
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type registerDocumentRequest struct {
	Filename  string `json:"filename"`
	Role      string `json:"role"`
	PageCount int    `json:"pageCount"`
	PDFPath   string `json:"pdfPath"`
}

func (s *server) handleRegisterDocument(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseID(w, chi.URLParam(r, "caseID"))
	if !ok {
		return
	}

	var req registerDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	role := storage.DocumentRole(req.Role)
	if role != storage.RoleSource && role != storage.RoleTarget {
		writeError(w, http.StatusBadRequest, "role must be source or target")
		return
	}
	if req.Filename == "" || req.PageCount < 1 {
		writeError(w, http.StatusBadRequest, "filename and a positive pageCount are required")
		return
	}

	doc := &storage.Document{
		CaseID:    caseID,
		Filename:  req.Filename,
		Role:      role,
		PageCount: req.PageCount,
		PDFPath:   req.PDFPath,
	}
	if err := s.deps.docs.Create(r.Context(), doc); err != nil {
		if errors.Is(err, storage.ErrDuplicateTarget) {
			writeError(w, http.StatusConflict, "case already has a target document")
			return
		}
		s.logger.Error().Err(err).Msg("Document registration failed")
		writeError(w, http.StatusInternalServerError, "registration failed")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"documentId": doc.ID.String()})
}

// handleProcessCase runs the full pipeline synchronously. A run that finds
// zero references is a success with an empty manifest, not an error; only a
// pipeline fault is a 5xx.
func (s *server) handleProcessCase(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseID(w, chi.URLParam(r, "caseID"))
	if !ok {
		return
	}

	result, err := s.deps.pipeline.ProcessCase(r.Context(), caseID)
	if err != nil {
		if errors.Is(err, storage.ErrNoTargetDocument) {
			writeError(w, http.StatusConflict, "case has no target document; nothing can be linked")
			return
		}
		s.logger.Error().Err(err).Str("case_id", caseID.String()).Msg("Case processing failed")
		writeError(w, http.StatusInternalServerError, "case processing failed")
		return
	}

	s.mu.Lock()
	s.results[caseID] = result
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, result.Manifest)
}

func (s *server) handleListLinks(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseID(w, chi.URLParam(r, "caseID"))
	if !ok {
		return
	}
	links, err := s.deps.links.ListByCase(r.Context(), caseID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Link listing failed")
		writeError(w, http.StatusInternalServerError, "link listing failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"links": links, "count": len(links)})
}

func (s *server) handleOverride(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseID(w, chi.URLParam(r, "caseID"))
	if !ok {
		return
	}

	var req review.OverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	result, err := s.deps.review.Override(r.Context(), caseID, req)
	switch {
	case errors.Is(err, review.ErrBadIdentifier), errors.Is(err, review.ErrBadPage):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case errors.Is(err, storage.ErrLinksNotBuilt):
		writeError(w, http.StatusConflict, "links have not been built for this case")
		return
	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "no link matches the identifier")
		return
	case err != nil:
		s.logger.Error().Err(err).Msg("Override failed")
		writeError(w, http.StatusInternalServerError, "override failed")
		return
	}

	s.deps.metrics.Overrides.Inc()
	writeJSON(w, http.StatusOK, result)
}

func (s *server) handleApprove(w http.ResponseWriter, r *http.Request) {
	s.handleStatusChange(w, r, s.deps.review.Approve)
}

func (s *server) handleReject(w http.ResponseWriter, r *http.Request) {
	s.handleStatusChange(w, r, s.deps.review.Reject)
}

func (s *server) handleStatusChange(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id uuid.UUID) error) {
	linkID, ok := parseID(w, chi.URLParam(r, "linkID"))
	if !ok {
		return
	}
	if err := fn(r.Context(), linkID); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			writeError(w, http.StatusNotFound, "link not found")
			return
		}
		s.logger.Error().Err(err).Msg("Status change failed")
		writeError(w, http.StatusInternalServerError, "status change failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	caseID, ok := parseID(w, chi.URLParam(r, "caseID"))
	if !ok {
		return
	}
	counts, err := s.deps.links.CountByStatus(r.Context(), caseID)
	if err != nil {
		s.logger.Error().Err(err).Msg("Status query failed")
		writeError(w, http.StatusInternalServerError, "status query failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"caseId": caseID.String(), "byStatus": counts})
}

func (s *server) handleManifestJSON(w http.ResponseWriter, r *http.Request) {
	result, ok := s.lastResult(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/json")
	if err := result.Manifest.WriteJSON(w); err != nil {
		s.logger.Error().Err(err).Msg("Manifest write failed")
	}
}

func (s *server) handleManifestCSV(w http.ResponseWriter, r *http.Request) {
	result, ok := s.lastResult(w, r)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", "attachment; filename=candidate-map.csv")
	if err := manifest.WriteCSV(w, manifest.Rows(result.Links)); err != nil {
		s.logger.Error().Err(err).Msg("Candidate map write failed")
	}
}

func (s *server) lastResult(w http.ResponseWriter, r *http.Request) (*pipeline.CaseResult, bool) {
	caseID, ok := parseID(w, chi.URLParam(r, "caseID"))
	if !ok {
		return nil, false
	}
	s.mu.RLock()
	result, found := s.results[caseID]
	s.mu.RUnlock()
	if !found {
		writeError(w, http.StatusNotFound, "no completed run for this case; POST /process first")
		return nil, false
	}
	return result, true
}

func parseID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
