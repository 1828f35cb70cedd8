package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"Threadview/internal/core/mediacache"

	"github.com/oklog/ulid/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

const (
	unavailableImage     = `data:image/svg+xml,%3Csvg xmlns="http://www.w3.org/2000/svg" width="120" height="120" viewBox="0 0 120 120"%3E%3Crect width="120" height="120" fill="%23e0e0e0"%3E%3C/rect%3E%3Ctext x="50%" y="50%" dominant-baseline="middle" text-anchor="middle" font-family="sans-serif" font-size="14px" fill="%23757575"%3EImg N/A%3C/text%3E%3C/svg%3E`
	unavailableFullImage = `data:image/svg+xml,%3Csvg xmlns="http://www.w3.org/2000/svg" width="200" height="150" viewBox="0 0 200 150"%3E%3Crect width="200" height="150" fill="%23d3d3d3"%3E%3C/rect%3E%3Ctext x="50%" y="50%" dominant-baseline="middle" text-anchor="middle" font-family="sans-serif" font-size="16px" fill="%23707070"%3EImage Unavailable%3C/text%3E%3C/svg%3E`

	// missingTTL is how long a file the board answered 4xx for is shown as
	// unavailable without asking again.
	missingTTL = 10 * time.Minute
)

// ThumbnailURL returns the attachment's thumbnail URL.
func (s *Service) ThumbnailURL(a Attachment) string {
	return fmt.Sprintf("%s/%s/%ds.jpg", strings.TrimRight(s.cfg.AttachmentBase, "/"), s.cfg.Board, a.Tim)
}

// FullURL returns the attachment's original file URL.
func (s *Service) FullURL(a Attachment) string {
	return fmt.Sprintf("%s/%s/%d%s", strings.TrimRight(s.cfg.AttachmentBase, "/"), s.cfg.Board, a.Tim, a.Ext)
}

// IsImage reports whether a is a still image (as opposed to a video or
// other file).
func IsImage(a Attachment) bool {
	switch strings.ToLower(a.Ext) {
	case ".jpg", ".jpeg", ".png", ".gif":
		return true
	}
	return false
}

// ResolveAttachment renders a message attachment. Images render as
// thumbnails; videos become native elements for the video controller.
func (s *Service) ResolveAttachment(ctx context.Context, a Attachment) Element {
	if a.Tim == 0 {
		return Element{}
	}

	ctx, span := tracer.Start(ctx, "ResolveAttachment", trace.WithAttributes(
		attribute.Int64("attachment.tim", a.Tim),
		attribute.String("attachment.ext", a.Ext),
	))
	defer span.End()

	switch {
	case IsImage(a):
		return s.resolveImage(ctx, a, false)
	case strings.EqualFold(a.Ext, ".webm"), strings.EqualFold(a.Ext, ".mp4"):
		return s.nativeVideo(a)
	default:
		full := html.EscapeString(s.FullURL(a))
		return Element{
			Kind: KindLink,
			HTML: `<a class="attachment-link" href="` + full + `" target="_blank" rel="noopener noreferrer">` +
				html.EscapeString(a.Filename+a.Ext) + `</a>`,
		}
	}
}

// ResolveFullImage renders an image attachment at full size. Non-image
// attachments resolve as ResolveAttachment does.
func (s *Service) ResolveFullImage(ctx context.Context, a Attachment) Element {
	if a.Tim == 0 || !IsImage(a) {
		return s.ResolveAttachment(ctx, a)
	}

	ctx, span := tracer.Start(ctx, "ResolveFullImage", trace.WithAttributes(
		attribute.Int64("attachment.tim", a.Tim),
		attribute.String("attachment.ext", a.Ext),
	))
	defer span.End()

	return s.resolveImage(ctx, a, true)
}

// resolveImage serves the image from the cache when present. Otherwise the
// element points at the board directly and the file is fetched and cached
// in the background, so rendering never waits on the network.
func (s *Service) resolveImage(ctx context.Context, a Attachment, full bool) Element {
	src := s.ThumbnailURL(a)
	if full {
		src = s.FullURL(a)
	}

	if rec, ok := s.cache.Get(ctx, src); ok {
		contentType := rec.ContentType
		if contentType == "" {
			contentType = "image/jpeg"
		}
		objURL := s.objects.Create(rec.Blob, contentType)
		return Element{
			Kind:      KindImage,
			HTML:      s.imageMarkup(a, objURL, full),
			ObjectURL: objURL,
			Cached:    true,
		}
	}

	if _, gone := s.missing.Get(src); gone {
		return unavailableElement(full)
	}

	s.cacheAsync(src, a.Filename, a.Ext)
	return Element{
		Kind: KindImage,
		HTML: s.imageMarkup(a, src, full),
	}
}

// cacheAsync fetches url and writes it to the cache without blocking
// display. A 4xx answer marks the file missing for later renders.
func (s *Service) cacheAsync(url, filename, ext string) {
	s.writes.Add(1)
	go func() {
		defer s.writes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.cfg.FetchTimeout)
		defer cancel()

		_, err, _ := s.fetches.Do(url, func() (interface{}, error) {
			var resp *Response
			err := s.guarded(providerAttachments, func() error {
				r, err := s.fetcher.Fetch(ctx, url)
				if err != nil {
					return err
				}
				resp = r
				return nil
			})
			if err != nil {
				return nil, err
			}
			if len(resp.Data) == 0 {
				return nil, fmt.Errorf("%w: empty body", ErrFetchFailed)
			}

			contentType := resp.ContentType
			if contentType == "" {
				contentType = "image/jpeg"
			}
			s.put(ctx, url, mediacache.Blob{Type: contentType, Data: resp.Data}, filename, ext)
			return resp, nil
		})
		if err != nil {
			var statusErr *StatusError
			if errors.As(err, &statusErr) && statusErr.StatusCode >= 400 && statusErr.StatusCode < 500 && statusErr.StatusCode != 429 {
				s.missing.Set(url, true, missingTTL)
			}
			slog.Info("[RESOLVER] attachment not cached",
				"url", url,
				"error", err,
			)
		}
	}()
}

func (s *Service) imageMarkup(a Attachment, src string, full bool) string {
	thumb := html.EscapeString(s.ThumbnailURL(a))
	fullSrc := html.EscapeString(s.FullURL(a))

	if full {
		return `<div class="attachment"><img src="` + html.EscapeString(src) + `"` +
			` alt="` + html.EscapeString(a.Filename) + `"` +
			` title="` + html.EscapeString("Click to view thumbnail for "+a.Filename) + `"` +
			` data-is-thumbnail="false" data-thumb-src="` + thumb + `" data-full-src="` + fullSrc + `"` +
			` data-fallback-src="` + html.EscapeString(unavailableFullImage) + `"` +
			` style="max-width:100%; max-height:70vh; width:auto; height:auto; object-fit:contain; cursor:pointer; margin-top:5px; border-radius:3px; display:block;"></div>`
	}

	title := fmt.Sprintf("Click to view %s (%dx%d)", a.Filename, a.W, a.H)
	return `<div class="attachment"><img src="` + html.EscapeString(src) + `"` +
		` alt="` + html.EscapeString(a.Filename) + `"` +
		` title="` + html.EscapeString(title) + `"` +
		` data-is-thumbnail="true" data-thumb-src="` + thumb + `" data-full-src="` + fullSrc + `"` +
		` data-fallback-src="` + html.EscapeString(unavailableImage) + `"` +
		` style="max-width:` + dimension(a.TnW) + `; max-height:` + dimension(a.TnH) + `; cursor:pointer; margin-top:5px; border-radius:3px; display:block;"></div>`
}

func unavailableElement(full bool) Element {
	if full {
		return Element{
			Kind: KindImage,
			HTML: `<div class="attachment"><img src="` + html.EscapeString(unavailableFullImage) + `" alt="Full image deleted or unavailable" title="Full image deleted or unavailable"` +
				` style="width:200px; height:150px; object-fit:contain; border:1px dashed #aaa; padding:10px; background-color:#f0f0f0; display:block;"></div>`,
		}
	}
	return Element{
		Kind: KindImage,
		HTML: `<div class="attachment"><img src="` + html.EscapeString(unavailableImage) + `" alt="Image deleted or unavailable" title="Image deleted or unavailable"` +
			` style="width:120px; height:120px; object-fit:contain; border:1px dashed #aaa; padding:5px; display:block;"></div>`,
	}
}

func dimension(px int) string {
	if px <= 0 {
		return "150px"
	}
	return strconv.Itoa(px) + "px"
}

func (s *Service) nativeVideo(a Attachment) Element {
	id := "video-" + strings.ToLower(ulid.Make().String())
	src := s.FullURL(a)
	return Element{
		Kind:    KindNativeVideo,
		HTML:    NativeVideoMarkup(id, src, true),
		MediaID: id,
		Source:  src,
	}
}

// NativeVideoMarkup renders an attachment video. When active is false the
// source is parked in data-src so the element holds no media.
func NativeVideoMarkup(id, src string, active bool) string {
	var b strings.Builder
	b.WriteString(`<video class="attachment-video" id="` + html.EscapeString(id) + `"`)
	if active {
		b.WriteString(` src="` + html.EscapeString(src) + `"`)
	} else {
		b.WriteString(` data-src="` + html.EscapeString(src) + `"`)
	}
	b.WriteString(` controls loop preload="metadata" style="max-width: 100%; display: block; margin-top: 5px;"></video>`)
	return b.String()
}
