package lifecycle

import (
	"log/slog"
	"sync"

	"Threadview/internal/core/resolver"
)

type nativeVideo struct {
	src    string
	active bool
}

// VideoController parks off-screen attachment videos: leaving view pauses
// the element and moves its source to data-src, entering view restores the
// source and asks the client to reload it. It is independent of the
// placeholder state machine.
type VideoController struct {
	videos map[string]*nativeVideo
	margin float64
	mu     sync.Mutex
}

// NewVideoController creates an empty controller using margin as the root
// margin for rectangle-based entries.
func NewVideoController(margin float64) *VideoController {
	return &VideoController{
		videos: make(map[string]*nativeVideo),
		margin: margin,
	}
}

// Register adds an active video. Registering a known id replaces its source.
func (vc *VideoController) Register(id, src string) {
	if id == "" || src == "" {
		return
	}
	vc.mu.Lock()
	defer vc.mu.Unlock()
	vc.videos[id] = &nativeVideo{src: src, active: true}
}

// Len returns the number of registered videos.
func (vc *VideoController) Len() int {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	return len(vc.videos)
}

// Active reports whether id currently holds its source.
func (vc *VideoController) Active(id string) (active, ok bool) {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	v, ok := vc.videos[id]
	if !ok {
		return false, false
	}
	return v.active, true
}

// HandleIntersections toggles videos that changed side. Unknown ids are
// ignored.
func (vc *VideoController) HandleIntersections(entries []Entry, vp *Viewport) []Update {
	vc.mu.Lock()
	defer vc.mu.Unlock()

	var out []Update
	for _, e := range entries {
		v, ok := vc.videos[e.ID]
		if !ok {
			continue
		}
		visible, ok := e.intersecting(vp, vc.margin)
		if !ok || visible == v.active {
			continue
		}

		v.active = visible
		out = append(out, Update{
			ID:     e.ID,
			HTML:   resolver.NativeVideoMarkup(e.ID, v.src, v.active),
			Loaded: v.active,
		})
		if visible {
			slog.Debug("[LIFECYCLE] video restored", "id", e.ID)
		} else {
			slog.Debug("[LIFECYCLE] video parked", "id", e.ID)
		}
	}
	return out
}

// Reset forgets every video.
func (vc *VideoController) Reset() {
	vc.mu.Lock()
	defer vc.mu.Unlock()
	vc.videos = make(map[string]*nativeVideo)
}
