// Package viewer holds the state of one open thread viewer: what has been
// rendered, which placeholders and videos are being tracked, the selected
// message, and whether the viewer is shown at all.
package viewer

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"Threadview/internal/core/embeds"
	"Threadview/internal/core/lifecycle"
	"Threadview/internal/core/threads"

	"github.com/oklog/ulid/v2"
	"golang.org/x/net/html"
)

// Signal names the producer sends.
const (
	SignalDataUpdated      = "data-updated"
	SignalDisplayCleared   = "display-cleared"
	SignalToggleVisibility = "toggle-visibility"
)

// Resolver resolves both embed placeholders and message attachments.
type Resolver interface {
	lifecycle.Resolver
	threads.AttachmentResolver
}

// View is a full rendering of the session.
type View struct {
	Counts       embeds.Counts `json:"counts"`
	HTML         string        `json:"html"`
	SelectedID   string        `json:"selectedId,omitempty"`
	ScrollTarget string        `json:"scrollTarget,omitempty"`
	Messages     int           `json:"messages"`
	Placeholders int           `json:"placeholders"`
	Visible      bool          `json:"visible"`
}

// Frame is a batch of messages appended after the initial render.
type Frame struct {
	Counts   embeds.Counts `json:"counts"`
	ID       string        `json:"id"`
	HTML     string        `json:"html"`
	Messages int           `json:"messages"`
}

// SignalResult reports what a signal changed. At most one of View and
// Frame is set.
type SignalResult struct {
	View    *View  `json:"view,omitempty"`
	Frame   *Frame `json:"frame,omitempty"`
	Signal  string `json:"signal"`
	Visible bool   `json:"visible"`
}

// Session is one viewer instance.
type Session struct {
	slots      threads.SlotStore
	reader     *threads.Reader
	renderer   *threads.Renderer
	controller *lifecycle.Controller
	videos     *lifecycle.VideoController
	tracker    *threads.Tracker
	objects    lifecycle.Revoker
	loc        *time.Location
	now        func() time.Time

	// Guarded by mu.
	sections   []string
	objectURLs []string
	rendered   map[string]bool
	lastID     string
	selected   string
	visible    bool

	cfg Config
	mu  sync.Mutex
}

// NewSession creates a hidden, empty session. Call Restore to reopen it
// when the producer left it visible.
func NewSession(slots threads.SlotStore, res Resolver, objects lifecycle.Revoker, cfg Config) (*Session, error) {
	if slots == nil {
		return nil, fmt.Errorf("%w: slot store", ErrNilDependency)
	}
	if res == nil {
		return nil, fmt.Errorf("%w: resolver", ErrNilDependency)
	}
	if objects == nil {
		return nil, fmt.Errorf("%w: object URL revoker", ErrNilDependency)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	loc, err := cfg.location()
	if err != nil {
		return nil, err
	}

	reader, err := threads.NewReader(slots)
	if err != nil {
		return nil, err
	}
	controller, err := lifecycle.NewController(res, objects, cfg.Lifecycle)
	if err != nil {
		return nil, err
	}

	return &Session{
		slots:      slots,
		reader:     reader,
		renderer:   threads.NewRenderer(res, threads.WithLocation(loc)),
		controller: controller,
		videos:     lifecycle.NewVideoController(cfg.Lifecycle.RootMargin),
		tracker:    threads.NewTracker(),
		objects:    objects,
		loc:        loc,
		now:        time.Now,
		rendered:   make(map[string]bool),
		cfg:        cfg,
	}, nil
}

// Restore opens the session if the visibility slot says it was open.
func (s *Session) Restore(ctx context.Context) (*View, error) {
	raw, _, err := s.slots.GetSlot(ctx, threads.SlotViewerVisible)
	if err != nil {
		return nil, err
	}
	if raw != "true" {
		return s.View(), nil
	}
	s.mu.Lock()
	s.visible = true
	s.mu.Unlock()
	return s.Render(ctx)
}

// Render discards everything rendered so far and renders every message of
// the active threads. A hidden session stays hidden and its empty view is
// returned; only the visibility signal opens it.
func (s *Session) Render(ctx context.Context) (*View, error) {
	s.mu.Lock()
	visible := s.visible
	s.mu.Unlock()
	if !visible {
		return s.View(), nil
	}

	snap, err := s.reader.Load(ctx)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.visible {
		return s.viewLocked(), nil
	}

	s.teardownLocked()
	s.selected = snap.SelectedID

	msgs := snap.Ordered()
	var b strings.Builder
	counts := s.renderMessagesLocked(ctx, s.renderer.NewBatch(), snap, msgs, &b)
	s.sections = append(s.sections, b.String())
	s.tracker.Seed(msgs)

	embeds.RecordCounts(ctx, counts)
	slog.Info("[VIEWER] rendered",
		"messages", len(msgs),
		"placeholders", s.controller.Len(),
		"videos", s.videos.Len(),
	)

	v := s.viewLocked()
	v.Counts = counts
	return v, nil
}

// View returns the current rendering without changing anything.
func (s *Session) View() *View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

func (s *Session) viewLocked() *View {
	v := &View{
		Visible:      s.visible,
		SelectedID:   s.selected,
		Messages:     len(s.rendered),
		Placeholders: s.controller.Len(),
		Counts:       embeds.Counts{},
	}
	if !s.visible {
		return v
	}
	v.HTML = strings.Join(s.sections, "")
	switch {
	case s.selected != "" && s.rendered[s.selected]:
		v.ScrollTarget = s.selected
	case s.lastID != "":
		v.ScrollTarget = s.lastID
	}
	return v
}

// Signal applies a producer notification.
func (s *Session) Signal(ctx context.Context, name string) (*SignalResult, error) {
	switch name {
	case SignalDataUpdated:
		return s.dataUpdated(ctx)
	case SignalDisplayCleared:
		s.mu.Lock()
		s.teardownLocked()
		visible := s.visible
		s.mu.Unlock()
		slog.Info("[VIEWER] display cleared")
		return &SignalResult{Signal: name, Visible: visible}, nil
	case SignalToggleVisibility:
		return s.toggle(ctx)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownSignal, name)
}

// dataUpdated appends the messages not rendered yet as a new frame.
// Messages linking tweets go ahead of the frame divider. Hidden sessions
// ignore the signal.
func (s *Session) dataUpdated(ctx context.Context) (*SignalResult, error) {
	res := &SignalResult{Signal: SignalDataUpdated}

	s.mu.Lock()
	visible := s.visible
	s.mu.Unlock()
	if !visible {
		return res, nil
	}
	res.Visible = true

	snap, err := s.reader.Load(ctx)
	if err != nil {
		return nil, err
	}

	fresh := s.tracker.NewMessages(snap.Ordered())
	if len(fresh) == 0 {
		slog.Debug("[VIEWER] no new messages")
		return res, nil
	}

	var tweets, others []threads.Message
	for _, m := range fresh {
		if embeds.ContainsTweet(m.Text) {
			tweets = append(tweets, m)
		} else {
			others = append(others, m)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	frame := &Frame{
		ID:       "otk-frame-" + strings.ToLower(ulid.Make().String()),
		Messages: len(fresh),
		Counts:   embeds.Counts{},
	}

	var b strings.Builder
	batch := s.renderer.NewBatch()
	if len(tweets) > 0 {
		b.WriteString(`<div class="new-tweets" id="` + frame.ID + `-tweets">`)
		frame.Counts.Add(s.renderMessagesLocked(ctx, batch, snap, tweets, &b))
		b.WriteString(`</div>`)
	}
	b.WriteString(`<div class="frame-divider" id="` + frame.ID + `" style="margin-bottom:20px;">` +
		`<hr style="border-top:2px dashed #007bff; margin:20px 0;">` +
		`<p style="text-align:center; color:#007bff; font-weight:bold;">New messages loaded at ` +
		html.EscapeString(s.now().In(s.loc).Format(threads.TimeLayout)) + `</p></div>`)
	frame.Counts.Add(s.renderMessagesLocked(ctx, batch, snap, others, &b))

	frame.HTML = b.String()
	s.sections = append(s.sections, frame.HTML)

	embeds.RecordCounts(ctx, frame.Counts)
	slog.Info("[VIEWER] appended frame",
		"frame", frame.ID,
		"messages", len(fresh),
		"tweet_messages", len(tweets),
	)

	res.Frame = frame
	return res, nil
}

func (s *Session) toggle(ctx context.Context) (*SignalResult, error) {
	s.mu.Lock()
	visible := s.visible
	s.mu.Unlock()

	if !visible {
		if err := s.slots.SetSlot(ctx, threads.SlotViewerVisible, "true"); err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.visible = true
		s.mu.Unlock()
		v, err := s.Render(ctx)
		if err != nil {
			return nil, err
		}
		return &SignalResult{Signal: SignalToggleVisibility, Visible: true, View: v}, nil
	}

	if err := s.slots.SetSlot(ctx, threads.SlotViewerVisible, "false"); err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.teardownLocked()
	s.visible = false
	s.mu.Unlock()

	slog.Info("[VIEWER] hidden")
	return &SignalResult{Signal: SignalToggleVisibility, Visible: false}, nil
}

// renderMessagesLocked renders msgs into b as part of batch and starts
// tracking their placeholders, videos and object URLs.
func (s *Session) renderMessagesLocked(ctx context.Context, batch *threads.Batch, snap *threads.Snapshot, msgs []threads.Message, b *strings.Builder) embeds.Counts {
	counts := embeds.Counts{}
	for _, m := range msgs {
		out := batch.Render(ctx, snap, m)
		b.WriteString(out.HTML)

		s.controller.Register(out.Placeholders...)
		for _, v := range out.Videos {
			s.videos.Register(v.MediaID, v.Source)
		}
		s.objectURLs = append(s.objectURLs, out.ObjectURLs...)
		counts.Add(out.Counts)

		id := strconv.FormatInt(m.ID, 10)
		s.rendered[id] = true
		s.lastID = id
	}
	return counts
}

// teardownLocked drops all rendered state and releases its object URLs.
func (s *Session) teardownLocked() {
	s.controller.Reset()
	s.videos.Reset()
	s.tracker.Reset()
	for _, u := range s.objectURLs {
		s.objects.Revoke(u)
	}
	s.objectURLs = nil
	s.sections = nil
	s.rendered = make(map[string]bool)
	s.lastID = ""
}

// Select toggles the selection of message id and writes it back to the
// selection slot. Returns whether id is selected afterwards.
func (s *Session) Select(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	deselect := s.selected == id
	s.mu.Unlock()

	if deselect {
		if err := s.slots.DeleteSlot(ctx, threads.SlotSelectedMessage); err != nil {
			return true, err
		}
	} else if err := s.slots.SetSlot(ctx, threads.SlotSelectedMessage, id); err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if deselect {
		s.selected = ""
		return false, nil
	}
	s.selected = id
	return true, nil
}

// Selected returns the selected message id, or "".
func (s *Session) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Rendered reports whether message id is part of the current rendering.
func (s *Session) Rendered(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rendered[id]
}

// ScrollTo waits for message id to be rendered. Returns
// threads.ErrMessageNotFound when it never appears.
func (s *Session) ScrollTo(ctx context.Context, id string) error {
	return threads.WaitForMessage(ctx, id, s.Rendered, s.cfg.retryPolicy())
}

// Viewport applies visibility observations to placeholders and attachment
// videos.
func (s *Session) Viewport(ctx context.Context, entries []lifecycle.Entry, vp *lifecycle.Viewport) []lifecycle.Update {
	updates := s.controller.HandleIntersections(ctx, entries, vp)
	return append(updates, s.videos.HandleIntersections(entries, vp)...)
}

// Activate loads a placeholder on click or keyboard activation.
func (s *Session) Activate(ctx context.Context, id, key string) (lifecycle.Update, error) {
	return s.controller.Activate(ctx, id, key)
}

// Close releases everything the session holds.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teardownLocked()
}
