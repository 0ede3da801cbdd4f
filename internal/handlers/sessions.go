package handlers

import (
	"errors"
	"net/http"
	"sort"

	"github.com/coursesnap/coursesnap/internal/session"
)

func (h *Handler) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessionStore.GetAll()
	list := make([]sessionResponse, 0, len(sessions))
	for _, sess := range sessions {
		list = append(list, newSessionResponse(sess.Snapshot()))
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	h.writeJSON(w, list)
}

func (h *Handler) HandleCreateSession(w http.ResponseWriter, r *http.Request) {
	sess := h.sessionStore.Create()
	h.writeJSONStatus(w, http.StatusCreated, newSessionResponse(sess.Snapshot()))
}

func (h *Handler) HandleSessionDetail(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, newSessionResponse(sess.Snapshot()))
}

func (h *Handler) HandleDeleteSession(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	h.sessionStore.Delete(sess.ID)
	w.WriteHeader(http.StatusNoContent)
}

// HandleReset acknowledges an error and returns the session to idle
func (h *Handler) HandleReset(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.getSessionOrError(w, r)
	if !ok {
		return
	}
	if err := sess.Reset(); err != nil {
		if errors.Is(err, session.ErrInvalidTransition) {
			h.writeError(w, err.Error(), http.StatusConflict)
			return
		}
		h.writeError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, newSessionResponse(sess.Snapshot()))
}
