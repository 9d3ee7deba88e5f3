// Package httpapi is the thin HTTP surface over the scan lifecycle core:
// routing, JSON mapping and the rate-limit gate. No lifecycle logic lives
// here.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hashnet666/hydra-scanner-backend/internal/model"
	"github.com/hashnet666/hydra-scanner-backend/internal/ratelimit"
	"github.com/hashnet666/hydra-scanner-backend/internal/scans"
	"github.com/hashnet666/hydra-scanner-backend/internal/session"
)

type Server struct {
	manager  *scans.Manager
	sessions *session.Store
	limiter  *ratelimit.Limiter
}

func New(manager *scans.Manager, sessions *session.Store, limiter *ratelimit.Limiter) *Server {
	return &Server{manager: manager, sessions: sessions, limiter: limiter}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(cors)
	r.Use(s.rateLimit)

	r.Get("/", s.handleStatus)
	r.Post("/session", s.handleCreateSession)
	r.Get("/session/{id}/scans", s.handleListScans)
	r.Post("/scan", s.handleSubmit)
	r.Get("/scan/{id}", s.handleGetScan)
	r.Delete("/scan/{id}", s.handleCancelScan)
	return r
}

// rateLimit gates every operation by caller address. It runs before any
// session or job lookup, so a rejected request never touches the registries
// while an accepted one consumes its slot regardless of the outcome.
func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.limiter.Allow(clientKey(r)) {
			writeError(w, http.StatusTooManyRequests, "rate_limited")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "Hydra Scanner API",
		"version": "2.0",
	})
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := s.sessions.Create()
	slog.DebugContext(r.Context(), "session created", "session_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"session_id": id})
}

type submitRequest struct {
	SessionID string   `json:"session_id"`
	Hosts     []string `json:"hosts"`
	Protocol  string   `json:"protocol"`
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	if req.Protocol == "" {
		req.Protocol = "http"
	}

	id, err := s.manager.Submit(r.Context(), req.SessionID, req.Hosts, req.Protocol)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"scan_id":       id,
		"total_targets": len(req.Hosts),
		"protocol":      req.Protocol,
		"status":        "started",
	})
}

func (s *Server) handleGetScan(w http.ResponseWriter, r *http.Request) {
	view, err := s.manager.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) handleCancelScan(w http.ResponseWriter, r *http.Request) {
	if err := s.manager.Cancel(chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

func (s *Server) handleListScans(w http.ResponseWriter, r *http.Request) {
	jobsCreated, jobs, err := s.manager.ListSession(chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"jobs_created": jobsCreated,
		"active_jobs":  jobs,
	})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, model.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, model.ErrInvalidSession):
		writeError(w, http.StatusUnauthorized, "invalid_session")
	case errors.Is(err, model.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad_request")
	case errors.Is(err, model.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate_limited")
	default:
		slog.Error("unhandled api error", "error", err)
		writeError(w, http.StatusInternalServerError, "internal")
	}
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response", "error", err)
	}
}
