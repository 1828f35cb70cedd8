package lifecycle

import (
	"context"

	"Threadview/internal/core/embeds"
	"Threadview/internal/core/resolver"
)

// Resolver materializes the element for a placeholder.
type Resolver interface {
	Resolve(ctx context.Context, p embeds.Placeholder) resolver.Element
}

// Revoker releases object URL handles.
type Revoker interface {
	Revoke(idOrURL string)
}

// Rect is an element's vertical extent in document coordinates.
type Rect struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// Viewport is the visible scroll region in document coordinates.
type Viewport struct {
	Top    float64 `json:"top"`
	Height float64 `json:"height"`
}

// Entry is one visibility observation. Clients report either an explicit
// Intersecting flag or the element's rectangle; with a rectangle, the
// controller decides visibility against the viewport and root margin.
type Entry struct {
	Intersecting *bool    `json:"intersecting,omitempty"`
	Top          *float64 `json:"top,omitempty"`
	Bottom       *float64 `json:"bottom,omitempty"`
	ID           string   `json:"id"`
}

// Update is the new markup of an element whose state changed.
type Update struct {
	ID     string `json:"id"`
	HTML   string `json:"html"`
	Loaded bool   `json:"loaded"`
}

// Visible reports whether r intersects the viewport grown by margin on
// both edges.
func Visible(r Rect, vp Viewport, margin float64) bool {
	return r.Bottom >= vp.Top-margin && r.Top <= vp.Top+vp.Height+margin
}

// intersecting resolves an entry to a visibility decision. ok is false
// when the entry carries neither a flag nor a usable rectangle.
func (e Entry) intersecting(vp *Viewport, margin float64) (visible, ok bool) {
	if e.Intersecting != nil {
		return *e.Intersecting, true
	}
	if e.Top == nil || e.Bottom == nil || vp == nil {
		return false, false
	}
	return Visible(Rect{Top: *e.Top, Bottom: *e.Bottom}, *vp, margin), true
}
