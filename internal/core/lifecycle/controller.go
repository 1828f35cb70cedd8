// Package lifecycle drives embed placeholders between unloaded and loaded
// as they enter and leave the observed region, and toggles native
// attachment videos on and off screen.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"Threadview/internal/core/embeds"

	"golang.org/x/sync/errgroup"
)

// record is the controller's state for one placeholder.
type record struct {
	view       embeds.View
	objectURL  string
	p          embeds.Placeholder
	generation uint64
}

// Controller owns the placeholder index of one viewer session.
type Controller struct {
	resolver Resolver
	objects  Revoker
	index    map[string]*record
	order    []string
	cfg      Config
	mu       sync.Mutex
}

// NewController creates an empty controller.
func NewController(res Resolver, objects Revoker, cfg Config) (*Controller, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: resolver", ErrNilDependency)
	}
	if objects == nil {
		return nil, fmt.Errorf("%w: object URL revoker", ErrNilDependency)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{
		resolver: res,
		objects:  objects,
		cfg:      cfg,
		index:    make(map[string]*record),
	}, nil
}

// Register adds placeholders to the index in their initial unloaded state.
// Placeholders without an id or with an id already present are skipped.
func (c *Controller) Register(ps ...embeds.Placeholder) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range ps {
		if p.ID == "" {
			continue
		}
		if _, exists := c.index[p.ID]; exists {
			continue
		}
		p.Loaded = false
		c.index[p.ID] = &record{p: p, view: embeds.InitialView(p)}
		c.order = append(c.order, p.ID)
	}
}

// Len returns the number of indexed placeholders.
func (c *Controller) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.index)
}

// Placeholder returns the current record for id.
func (c *Controller) Placeholder(id string) (embeds.Placeholder, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.index[id]
	if !ok {
		return embeds.Placeholder{}, false
	}
	return rec.p, true
}

// Render returns the current markup for id.
func (c *Controller) Render(id string) (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	rec, ok := c.index[id]
	if !ok {
		return "", false
	}
	return embeds.RenderPlaceholder(rec.p, rec.view), true
}

// HandleIntersections applies a batch of visibility observations. Entries
// for unknown ids are ignored. Loads in a batch run concurrently, bounded
// by MaxConcurrentLoads; the call returns once they have all settled.
func (c *Controller) HandleIntersections(ctx context.Context, entries []Entry, vp *Viewport) []Update {
	var toLoad, changed []string

	for _, e := range entries {
		visible, ok := e.intersecting(vp, c.cfg.RootMargin)
		if !ok {
			continue
		}
		p, known := c.Placeholder(e.ID)
		if !known {
			continue
		}

		switch {
		case visible && !p.Loaded:
			toLoad = append(toLoad, e.ID)
		case !visible && p.Loaded:
			if c.unload(e.ID) {
				changed = append(changed, e.ID)
			}
		}
	}

	var g errgroup.Group
	g.SetLimit(c.cfg.MaxConcurrentLoads)
	var mu sync.Mutex
	for _, id := range toLoad {
		id := id
		g.Go(func() error {
			if c.load(ctx, id) {
				mu.Lock()
				changed = append(changed, id)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	return c.updates(changed)
}

// Activate loads an unloaded placeholder in response to a click (key "")
// or a keyboard activation (Enter or Space), regardless of visibility.
// Activating a loaded placeholder is a no-op that returns its current
// markup.
func (c *Controller) Activate(ctx context.Context, id, key string) (Update, error) {
	if !activationKey(key) {
		return Update{}, fmt.Errorf("%w: %q", ErrUnsupportedKey, key)
	}
	if _, ok := c.Placeholder(id); !ok {
		return Update{}, fmt.Errorf("%w: %s", ErrUnknownPlaceholder, id)
	}

	c.load(ctx, id)

	ups := c.updates([]string{id})
	if len(ups) == 0 {
		return Update{}, fmt.Errorf("%w: %s", ErrUnknownPlaceholder, id)
	}
	return ups[0], nil
}

func activationKey(key string) bool {
	switch strings.ToLower(key) {
	case "", "click", "enter", " ", "space", "spacebar":
		return true
	}
	return false
}

// load marks id loaded and resolves it. The loaded flag is set before
// resolution starts, so concurrent activations resolve at most once.
// Returns false when id was already loaded or unknown.
func (c *Controller) load(ctx context.Context, id string) bool {
	c.mu.Lock()
	rec, ok := c.index[id]
	if !ok || rec.p.Loaded {
		c.mu.Unlock()
		return false
	}
	rec.p.Loaded = true
	rec.view = loadingView(rec.p)
	gen := rec.generation
	p := rec.p
	c.mu.Unlock()

	el := c.resolver.Resolve(ctx, p)

	c.mu.Lock()
	defer c.mu.Unlock()

	current, ok := c.index[id]
	if !ok || current != rec || rec.generation != gen {
		// Unloaded or discarded while resolving.
		if el.ObjectURL != "" {
			c.objects.Revoke(el.ObjectURL)
		}
		slog.Debug("[LIFECYCLE] dropped late resolution",
			"id", id,
			"embed_type", p.Family,
		)
		return false
	}

	rec.view = embeds.View{
		Content:     el.HTML,
		Height:      el.Height,
		AspectRatio: el.AspectRatio,
	}
	rec.objectURL = el.ObjectURL

	slog.Debug("[LIFECYCLE] loaded",
		"id", id,
		"embed_type", p.Family,
		"kind", el.Kind,
		"cached", el.Cached,
	)
	return true
}

// unload restores the unloaded affordance. Sticky families are left alone.
func (c *Controller) unload(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	rec, ok := c.index[id]
	if !ok || !rec.p.Loaded || rec.p.Family.Sticky() {
		return false
	}

	if rec.objectURL != "" {
		c.objects.Revoke(rec.objectURL)
		rec.objectURL = ""
	}
	rec.generation++
	rec.p.Loaded = false
	rec.view = embeds.UnloadedView(rec.p)

	slog.Debug("[LIFECYCLE] unloaded", "id", id, "embed_type", rec.p.Family)
	return true
}

func (c *Controller) updates(ids []string) []Update {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Update, 0, len(ids))
	for _, id := range ids {
		rec, ok := c.index[id]
		if !ok {
			continue
		}
		out = append(out, Update{
			ID:     id,
			HTML:   embeds.RenderPlaceholder(rec.p, rec.view),
			Loaded: rec.p.Loaded,
		})
	}
	return out
}

// Reset empties the index and releases every object URL it holds.
// Resolutions still in flight are dropped when they complete.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, rec := range c.index {
		if rec.objectURL != "" {
			c.objects.Revoke(rec.objectURL)
		}
	}
	c.index = make(map[string]*record)
	c.order = nil
}

// IDs returns the indexed ids in registration order.
func (c *Controller) IDs() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.order...)
}

func loadingView(p embeds.Placeholder) embeds.View {
	switch p.Family {
	case embeds.FamilyTweet:
		return embeds.InitialView(p)
	case embeds.FamilyStreamable:
		return embeds.View{Content: `<div class="play-button-overlay" style="color: #ccc;">▶ Checking cache...</div>`}
	}
	return embeds.View{Content: `<div class="play-button-overlay" style="color: #ccc;">▶ Loading...</div>`}
}
