package web

import (
	"context"
	"html/template"
	"log/slog"
	"net/http"

	"Threadview/internal/core/viewer"
)

// Renderer produces the current rendering of the viewer.
type Renderer interface {
	Render(ctx context.Context) (*viewer.View, error)
}

// ViewerPageData is passed to viewer.html.
type ViewerPageData struct {
	// Messages is markup produced by the message renderer, which escapes
	// all message text itself.
	Messages     template.HTML
	Title        string
	BlobPrefix   string
	ScrollTarget string
	Count        int
	Visible      bool
}

// Handlers serves the viewer page.
type Handlers struct {
	templates  *Templates
	session    Renderer
	blobPrefix string
}

// NewHandlers creates page handlers.
func NewHandlers(templates *Templates, session Renderer, blobPrefix string) *Handlers {
	return &Handlers{
		templates:  templates,
		session:    session,
		blobPrefix: blobPrefix,
	}
}

// ViewerHandler handles GET /
func (h *Handlers) ViewerHandler(w http.ResponseWriter, r *http.Request) {
	v, err := h.session.Render(r.Context())
	if err != nil {
		slog.Error("[WEB] failed to render viewer", "error", err)
		http.Error(w, "Failed to render viewer", http.StatusInternalServerError)
		return
	}

	data := ViewerPageData{
		Title:        "Thread Viewer",
		Messages:     template.HTML(v.HTML),
		BlobPrefix:   h.blobPrefix,
		ScrollTarget: v.ScrollTarget,
		Count:        v.Messages,
		Visible:      v.Visible,
	}

	if err := h.templates.Render(w, "viewer.html", data); err != nil {
		slog.Error("[WEB] failed to render template", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}
