package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/coursesnap/coursesnap/internal/batch"
	"github.com/coursesnap/coursesnap/internal/images"
	"github.com/coursesnap/coursesnap/internal/session"
	"github.com/coursesnap/coursesnap/internal/storage"
)

type Handler struct {
	sessionStore *storage.SessionStore
	orchestrator *batch.Orchestrator
	fetcher      *images.Fetcher
}

func New(store *storage.SessionStore, orch *batch.Orchestrator) *Handler {
	return &Handler{
		sessionStore: store,
		orchestrator: orch,
		fetcher:      images.NewFetcher(),
	}
}

// Routes registers every endpoint on a new mux
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/sessions", h.HandleListSessions)
	mux.HandleFunc("POST /api/sessions", h.HandleCreateSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.HandleSessionDetail)
	mux.HandleFunc("DELETE /api/sessions/{id}", h.HandleDeleteSession)
	mux.HandleFunc("POST /api/sessions/{id}/images", h.HandleUpload)
	mux.HandleFunc("POST /api/sessions/{id}/reset", h.HandleReset)
	mux.HandleFunc("GET /api/sessions/{id}/export", h.HandleExport)
	mux.HandleFunc("GET /healthcheck", func(w http.ResponseWriter, r *http.Request) {
		if _, err := w.Write([]byte("OK")); err != nil {
			slog.Error("Unable to write healthcheck", "err", err)
		}
	})
	mux.HandleFunc("GET /", h.HandleStatic)
	return mux
}

// sessionResponse is a snapshot plus the derived progress percentage
type sessionResponse struct {
	session.Snapshot
	Progress int `json:"progress"`
}

func newSessionResponse(snap session.Snapshot) sessionResponse {
	return sessionResponse{Snapshot: snap, Progress: snap.Progress()}
}

// Response helpers
func (h *Handler) writeJSON(w http.ResponseWriter, data any) {
	h.writeJSONStatus(w, http.StatusOK, data)
}

func (h *Handler) writeJSONStatus(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, code int) {
	if code >= http.StatusInternalServerError {
		slog.Error(message)
	} else {
		slog.Debug("Request rejected", "status", code, "message", message)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(map[string]string{"error": message}); err != nil {
		slog.Error("Unable to encode JSON response", "err", err)
	}
}

// Session helpers
func (h *Handler) getSessionOrError(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	sess, exists := h.sessionStore.Get(r.PathValue("id"))
	if !exists {
		h.writeError(w, "Session not found", http.StatusNotFound)
		return nil, false
	}
	return sess, true
}
