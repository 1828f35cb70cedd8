package resolver

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"Threadview/internal/core/mediacache"

	"golang.org/x/net/html"
)

const videoStyle = "width: 100%; min-height: 360px; aspect-ratio: 16 / 9; max-width: 640px; border: none; margin: 8px 0; display: block; background-color: #000;"

// StreamableMediaURL is the guessed direct mp4 for a video id. It doubles
// as the cache key.
func (s *Service) StreamableMediaURL(id string) string {
	return s.cfg.StreamableMediaBase + id + ".mp4"
}

// resolveStreamable serves the video from the cache, then from the
// network, and falls back to the hosted player when neither works.
func (s *Service) resolveStreamable(ctx context.Context, id string) Element {
	mediaURL := s.StreamableMediaURL(id)

	if rec, ok := s.cache.Get(ctx, mediaURL); ok {
		slog.Debug("[RESOLVER] streamable cache hit", "video_id", id, "url", mediaURL)
		contentType := rec.ContentType
		if contentType == "" {
			contentType = "video/mp4"
		}
		el := s.videoElement(rec.Blob, contentType)
		el.Cached = true
		return el
	}

	resp, err := s.fetchVideo(ctx, mediaURL, id)
	if err != nil {
		slog.Info("[RESOLVER] streamable direct fetch failed, using player",
			"video_id", id,
			"url", mediaURL,
			"error", err,
		)
		return s.streamableIframe(id)
	}

	return s.videoElement(resp.Data, resp.ContentType)
}

// fetchVideo fetches and validates a direct video. Concurrent fetches of
// the same URL share one request, and only that request writes the cache.
func (s *Service) fetchVideo(ctx context.Context, mediaURL, id string) (*Response, error) {
	v, err, shared := s.fetches.Do(mediaURL, func() (interface{}, error) {
		var resp *Response
		err := s.guarded(providerStreamable, func() error {
			r, err := s.fetcher.Fetch(ctx, mediaURL)
			if err != nil {
				return err
			}
			resp = r
			return nil
		})
		if err != nil {
			return nil, err
		}

		if !strings.HasPrefix(strings.ToLower(resp.ContentType), "video/") {
			return nil, fmt.Errorf("%w: content type %q", ErrNotVideo, resp.ContentType)
		}
		if len(resp.Data) == 0 {
			return nil, fmt.Errorf("%w: empty body", ErrFetchFailed)
		}

		s.storeAsync(mediaURL, mediacache.Blob{Type: resp.ContentType, Data: resp.Data}, id+".mp4", ".mp4")
		return resp, nil
	})
	if err != nil {
		return nil, err
	}
	if shared {
		slog.Debug("[RESOLVER] shared in-flight fetch", "url", mediaURL)
	}
	return v.(*Response), nil
}

// videoElement registers data as an object URL and wraps it in a <video>.
func (s *Service) videoElement(data []byte, contentType string) Element {
	url := s.objects.Create(data, contentType)
	return Element{
		Kind:        KindVideo,
		HTML:        `<video src="` + html.EscapeString(url) + `" controls preload="metadata" style="` + videoStyle + `"></video>`,
		Height:      "auto",
		AspectRatio: "16 / 9",
		ObjectURL:   url,
	}
}

func (s *Service) streamableIframe(id string) Element {
	src := s.cfg.StreamableEmbedBase + id + "?loop=false"
	return Element{
		Kind:   KindIframe,
		HTML:   wrapIframe(`<iframe src="` + html.EscapeString(src) + `" style="width: 100%; min-height: 360px; aspect-ratio: 16 / 9; max-width: 640px; border: none;" allowfullscreen></iframe>`),
		Height: "360px",
	}
}
