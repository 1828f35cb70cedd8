// Package viewer provides the HTTP surface of a viewer session: full
// renders, producer signals, visibility reports and user interaction.
package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"Threadview/internal/api/handlers"
	"Threadview/internal/core/lifecycle"
	"Threadview/internal/core/threads"
	"Threadview/internal/core/viewer"
)

// Session is the viewer state the handlers drive.
type Session interface {
	Render(ctx context.Context) (*viewer.View, error)
	View() *viewer.View
	Signal(ctx context.Context, name string) (*viewer.SignalResult, error)
	Viewport(ctx context.Context, entries []lifecycle.Entry, vp *lifecycle.Viewport) []lifecycle.Update
	Activate(ctx context.Context, id, key string) (lifecycle.Update, error)
	Select(ctx context.Context, id string) (bool, error)
	ScrollTo(ctx context.Context, id string) error
}

// Handler serves the viewer endpoints.
type Handler struct {
	session Session
}

// NewHandler creates a viewer handler.
func NewHandler(session Session) *Handler {
	return &Handler{session: session}
}

// ViewportRequest is the body of POST /api/viewport.
type ViewportRequest struct {
	Viewport *lifecycle.Viewport `json:"viewport,omitempty"`
	Entries  []lifecycle.Entry   `json:"entries"`
}

// ActivateRequest is the optional body of POST /api/embeds/{id}/activate.
type ActivateRequest struct {
	Key string `json:"key"`
}

// HandleView handles GET /api/view
// It re-renders every message of a visible session; a hidden session gets
// its empty view. With ?format=html only the markup is
// returned; with ?cached=1 the current rendering is returned as is.
func (h *Handler) HandleView(w http.ResponseWriter, r *http.Request) {
	var v *viewer.View
	if r.URL.Query().Get("cached") == "1" {
		v = h.session.View()
	} else {
		var err error
		v, err = h.session.Render(r.Context())
		if err != nil {
			handleServiceError(w, err)
			return
		}
	}

	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(v.HTML)); err != nil {
			slog.Warn("[API] failed to write view", "error", err)
		}
		return
	}
	handlers.WriteJSON(w, v)
}

// HandleSignal handles POST /api/signals/{name}
func (h *Handler) HandleSignal(w http.ResponseWriter, r *http.Request) {
	res, err := h.session.Signal(r.Context(), chi.URLParam(r, "name"))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	handlers.WriteJSON(w, res)
}

// HandleViewport handles POST /api/viewport
//
// Request body: { "entries": [{"id", "intersecting"?, "top"?, "bottom"?}], "viewport"?: {"top", "height"} }
func (h *Handler) HandleViewport(w http.ResponseWriter, r *http.Request) {
	var req ViewportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
		return
	}
	if len(req.Entries) == 0 {
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "entries are required")
		return
	}

	updates := h.session.Viewport(r.Context(), req.Entries, req.Viewport)
	if updates == nil {
		updates = []lifecycle.Update{}
	}
	handlers.WriteJSON(w, map[string]interface{}{"updates": updates})
}

// HandleActivate handles POST /api/embeds/{id}/activate
func (h *Handler) HandleActivate(w http.ResponseWriter, r *http.Request) {
	var req ActivateRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "Invalid request body")
			return
		}
	}

	update, err := h.session.Activate(r.Context(), chi.URLParam(r, "id"), req.Key)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	handlers.WriteJSON(w, update)
}

// HandleSelect handles POST /api/messages/{id}/select
// Selecting the selected message clears the selection.
func (h *Handler) HandleSelect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	selected, err := h.session.Select(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	handlers.WriteJSON(w, map[string]interface{}{
		"id":       id,
		"selected": selected,
	})
}

// HandleScroll handles POST /api/messages/{id}/scroll
// It waits briefly for the message to be rendered.
func (h *Handler) HandleScroll(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.session.ScrollTo(r.Context(), id); err != nil {
		handleServiceError(w, err)
		return
	}
	handlers.WriteJSON(w, map[string]interface{}{"id": id})
}

// handleServiceError converts service errors to HTTP responses
func handleServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, viewer.ErrUnknownSignal):
		handlers.WriteError(w, http.StatusNotFound, "UnknownSignal", err.Error())
	case errors.Is(err, lifecycle.ErrUnknownPlaceholder):
		handlers.WriteError(w, http.StatusNotFound, "PlaceholderNotFound", "No such embed placeholder")
	case errors.Is(err, lifecycle.ErrUnsupportedKey):
		handlers.WriteError(w, http.StatusBadRequest, "InvalidRequest", "Only Enter and Space activate embeds")
	case errors.Is(err, threads.ErrMessageNotFound):
		handlers.WriteError(w, http.StatusNotFound, "MessageNotFound", "Message is not rendered")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		handlers.WriteError(w, http.StatusRequestTimeout, "Timeout", "Request cancelled")
	default:
		slog.Error("[API] viewer request failed", "error", err)
		handlers.WriteError(w, http.StatusInternalServerError, "InternalServerError", "An internal error occurred")
	}
}
