package threads

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"Threadview/internal/core/embeds"
	"Threadview/internal/core/resolver"

	"golang.org/x/net/html"
)

// TimeLayout formats message headers.
const TimeLayout = "1/2/2006, 3:04:05 PM"

// Rendered is one top-level message with everything a session needs to
// track for it.
type Rendered struct {
	Counts       embeds.Counts
	HTML         string
	Placeholders []embeds.Placeholder
	Videos       []resolver.Element
	ObjectURLs   []string
	ID           int64
}

// Renderer builds message markup with quoted messages expanded above the
// quoting text.
type Renderer struct {
	attachments AttachmentResolver
	loc         *time.Location
}

// RendererOption configures a Renderer.
type RendererOption func(*Renderer)

// WithLocation sets the zone used for header timestamps. Default UTC.
func WithLocation(loc *time.Location) RendererOption {
	return func(r *Renderer) {
		if loc != nil {
			r.loc = loc
		}
	}
}

// NewRenderer creates a renderer. attachments may be nil, in which case
// attachments are omitted.
func NewRenderer(attachments AttachmentResolver, opts ...RendererOption) *Renderer {
	r := &Renderer{
		attachments: attachments,
		loc:         time.UTC,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render renders msg as a top-level entry of snap in a batch of its own.
func (r *Renderer) Render(ctx context.Context, snap *Snapshot, msg Message) Rendered {
	return r.NewBatch().Render(ctx, snap, msg)
}

// Batch renders messages that are displayed together. The first
// occurrence of an image in a batch is shown full size, later ones as
// thumbnails.
type Batch struct {
	r     *Renderer
	shown map[int64]bool
}

// NewBatch starts a batch with no images shown yet.
func (r *Renderer) NewBatch() *Batch {
	return &Batch{r: r, shown: make(map[int64]bool)}
}

// Render renders msg as a top-level entry of snap.
func (bt *Batch) Render(ctx context.Context, snap *Snapshot, msg Message) Rendered {
	out := Rendered{
		ID:     msg.ID,
		Counts: embeds.Counts{},
	}
	out.HTML = bt.render(ctx, snap, msg, 0, map[int64]bool{}, &out)
	return out
}

func (bt *Batch) attachment(ctx context.Context, a resolver.Attachment) resolver.Element {
	if resolver.IsImage(a) && a.Tim != 0 && !bt.shown[a.Tim] {
		bt.shown[a.Tim] = true
		return bt.r.attachments.ResolveFullImage(ctx, a)
	}
	return bt.r.attachments.ResolveAttachment(ctx, a)
}

func (bt *Batch) render(ctx context.Context, snap *Snapshot, msg Message, depth int, ancestors map[int64]bool, out *Rendered) string {
	if ancestors[msg.ID] {
		return fmt.Sprintf("<!-- Skipping circular quote to post %d -->", msg.ID)
	}

	var b strings.Builder
	id := strconv.FormatInt(msg.ID, 10)

	if depth == 0 {
		class := "message"
		if snap.SelectedID == id {
			class += " selected-message"
		}
		b.WriteString(`<div class="` + class + `" data-message-id="` + id + `"` +
			` style="background-color:#fff; border-radius:4px; padding:6px 8px 10px; margin-bottom:15px; border-bottom:1px solid #ccc;">`)
	} else {
		bg := "#fff"
		if depth%2 == 1 {
			bg = "rgba(0,0,0,0.05)"
		}
		b.WriteString(`<div class="quoted-message" data-quoted-id="` + id + `"` +
			` style="background-color:` + bg + `; border-radius:4px; padding:6px 8px; margin-bottom:8px;">`)
	}

	ancestors[msg.ID] = true
	for _, qid := range embeds.QuotedIDs(msg.Text) {
		quoted, ok := snap.Find(qid)
		if !ok {
			continue
		}
		b.WriteString(bt.render(ctx, snap, quoted, depth+1, ancestors, out))
	}
	delete(ancestors, msg.ID)

	b.WriteString(`<div class="post" style="display:flex; align-items:flex-start;">`)
	if depth == 0 {
		b.WriteString(`<div class="thread-color" style="width:15px; height:40px; background-color:` +
			html.EscapeString(snap.Color(msg.ThreadID)) +
			`; border-radius:3px; margin-right:10px; flex-shrink:0;"></div>`)
	}

	b.WriteString(`<div style="display:flex; flex-direction:column;">`)
	b.WriteString(`<div class="post-header" style="font-size:12px; color:#555; white-space:nowrap;">#` + id + " " +
		html.EscapeString(time.Unix(msg.Time, 0).In(bt.r.loc).Format(TimeLayout)) + `</div>`)

	res := embeds.Transform(msg.Text)
	out.Counts.Add(res.Counts)
	out.Placeholders = append(out.Placeholders, res.Placeholders...)
	b.WriteString(`<div class="post-content" style="white-space:pre-wrap;">` + res.HTML + `</div>`)

	if msg.Attachment != nil && bt.r.attachments != nil {
		el := bt.attachment(ctx, *msg.Attachment)
		if el.ObjectURL != "" {
			out.ObjectURLs = append(out.ObjectURLs, el.ObjectURL)
		}
		if el.Kind == resolver.KindNativeVideo {
			out.Videos = append(out.Videos, el)
		}
		b.WriteString(el.HTML)
	}

	b.WriteString(`</div></div></div>`)
	return b.String()
}
