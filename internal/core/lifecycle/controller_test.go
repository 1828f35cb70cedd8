package lifecycle

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"Threadview/internal/core/embeds"
	"Threadview/internal/core/objecturl"
	"Threadview/internal/core/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/patrickmn/go-cache.(*janitor).Run"))
}

// fakeResolver implements Resolver, handing out one object URL per
// streamable resolution.
type fakeResolver struct {
	objects *objecturl.Registry
	gate    chan struct{}
	started chan string
	calls   map[string]int
	mu      sync.Mutex
}

func newFakeResolver(objects *objecturl.Registry) *fakeResolver {
	return &fakeResolver{objects: objects, calls: make(map[string]int)}
}

func (r *fakeResolver) Resolve(ctx context.Context, p embeds.Placeholder) resolver.Element {
	r.mu.Lock()
	r.calls[p.ID]++
	gate, started := r.gate, r.started
	r.mu.Unlock()

	if started != nil {
		started <- p.ID
	}
	if gate != nil {
		<-gate
	}

	switch p.Family {
	case embeds.FamilyStreamable:
		url := r.objects.Create([]byte("video"), "video/mp4")
		return resolver.Element{Kind: resolver.KindVideo, HTML: `<video src="` + url + `"></video>`, Height: "auto", AspectRatio: "16 / 9", ObjectURL: url}
	case embeds.FamilyTweet:
		return resolver.Element{Kind: resolver.KindError, HTML: `<div class="custom-tweet-error">Failed to load tweet: incomplete</div>`}
	default:
		return resolver.Element{Kind: resolver.KindIframe, HTML: "<iframe></iframe>", Height: "360px"}
	}
}

func (r *fakeResolver) callCount(id string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[id]
}

func newTestController(t *testing.T) (*Controller, *fakeResolver, *objecturl.Registry) {
	t.Helper()
	objects := objecturl.NewRegistry("/blob/", time.Minute)
	res := newFakeResolver(objects)
	c, err := NewController(res, objects, DefaultConfig())
	require.NoError(t, err)
	return c, res, objects
}

func flag(b bool) *bool { return &b }

func TestNewController_NilDependencies(t *testing.T) {
	_, err := NewController(nil, objecturl.NewRegistry("/blob/", time.Minute), DefaultConfig())
	assert.ErrorIs(t, err, ErrNilDependency)

	_, err = NewController(newFakeResolver(nil), nil, DefaultConfig())
	assert.ErrorIs(t, err, ErrNilDependency)
}

func TestActivate_LoadsExactlyOnce(t *testing.T) {
	c, res, _ := newTestController(t)
	c.Register(embeds.Placeholder{ID: "embed-1", Family: embeds.FamilyTwitchClip, ResourceID: "clip"})

	up, err := c.Activate(context.Background(), "embed-1", "")
	require.NoError(t, err)
	assert.True(t, up.Loaded)
	assert.Contains(t, up.HTML, "<iframe></iframe>")
	assert.Contains(t, up.HTML, "height: 360px")

	up, err = c.Activate(context.Background(), "embed-1", "Enter")
	require.NoError(t, err)
	assert.True(t, up.Loaded)
	assert.Equal(t, 1, res.callCount("embed-1"))
}

func TestActivate_ConcurrentActivationsResolveOnce(t *testing.T) {
	c, res, _ := newTestController(t)
	c.Register(embeds.Placeholder{ID: "embed-1", Family: embeds.FamilyYouTube, ResourceID: "v"})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.Activate(context.Background(), "embed-1", " ")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, res.callCount("embed-1"))
}

func TestActivate_Errors(t *testing.T) {
	c, _, _ := newTestController(t)
	c.Register(embeds.Placeholder{ID: "embed-1", Family: embeds.FamilyYouTube, ResourceID: "v"})

	_, err := c.Activate(context.Background(), "embed-1", "Tab")
	assert.ErrorIs(t, err, ErrUnsupportedKey)

	_, err = c.Activate(context.Background(), "missing", "")
	assert.ErrorIs(t, err, ErrUnknownPlaceholder)
}

func TestHandleIntersections_UnloadRestoresAffordance(t *testing.T) {
	families := []embeds.Family{embeds.FamilyYouTube, embeds.FamilyTwitchClip, embeds.FamilyTwitchVOD, embeds.FamilyStreamable}

	for _, f := range families {
		t.Run(string(f), func(t *testing.T) {
			c, _, objects := newTestController(t)
			c.Register(embeds.Placeholder{ID: "embed-1", Family: f, ResourceID: "abc"})
			ctx := context.Background()

			ups := c.HandleIntersections(ctx, []Entry{{ID: "embed-1", Intersecting: flag(true)}}, nil)
			require.Len(t, ups, 1)
			require.True(t, ups[0].Loaded)

			ups = c.HandleIntersections(ctx, []Entry{{ID: "embed-1", Intersecting: flag(false)}}, nil)
			require.Len(t, ups, 1)
			assert.False(t, ups[0].Loaded)
			assert.Contains(t, ups[0].HTML, "play-button-overlay")
			assert.Contains(t, ups[0].HTML, "aspect-ratio: 16 / 9")
			assert.NotContains(t, ups[0].HTML, "height:")
			assert.Equal(t, int64(0), objects.Live())

			p, ok := c.Placeholder("embed-1")
			require.True(t, ok)
			assert.False(t, p.Loaded)
		})
	}
}

func TestHandleIntersections_StreamableReentryResolvesAgain(t *testing.T) {
	c, res, objects := newTestController(t)
	c.Register(embeds.Placeholder{ID: "embed-1", Family: embeds.FamilyStreamable, ResourceID: "abc"})
	ctx := context.Background()

	in := []Entry{{ID: "embed-1", Intersecting: flag(true)}}
	out := []Entry{{ID: "embed-1", Intersecting: flag(false)}}

	c.HandleIntersections(ctx, in, nil)
	c.HandleIntersections(ctx, out, nil)
	ups := c.HandleIntersections(ctx, in, nil)

	require.Len(t, ups, 1)
	assert.Contains(t, ups[0].HTML, "<video")
	assert.Equal(t, 2, res.callCount("embed-1"))
	assert.Equal(t, int64(1), objects.Live())
	assert.Equal(t, int64(1), objects.Released())
}

func TestHandleIntersections_TweetIsSticky(t *testing.T) {
	c, res, _ := newTestController(t)
	c.Register(embeds.Placeholder{ID: "embed-t", Family: embeds.FamilyTweet, ResourceID: "42", OriginalURL: "https://x.com/a/status/42"})
	ctx := context.Background()

	ups := c.HandleIntersections(ctx, []Entry{{ID: "embed-t", Intersecting: flag(true)}}, nil)
	require.Len(t, ups, 1)
	assert.True(t, ups[0].Loaded)
	assert.Contains(t, ups[0].HTML, "Failed to load tweet")

	ups = c.HandleIntersections(ctx, []Entry{{ID: "embed-t", Intersecting: flag(false)}}, nil)
	assert.Empty(t, ups)

	ups = c.HandleIntersections(ctx, []Entry{{ID: "embed-t", Intersecting: flag(true)}}, nil)
	assert.Empty(t, ups)

	html, ok := c.Render("embed-t")
	require.True(t, ok)
	assert.Contains(t, html, "Failed to load tweet")
	assert.Contains(t, html, `data-loaded="true"`)
	assert.Equal(t, 1, res.callCount("embed-t"))
}

func TestHandleIntersections_LateResolutionIsDropped(t *testing.T) {
	c, res, objects := newTestController(t)
	res.gate = make(chan struct{})
	res.started = make(chan string, 1)
	c.Register(embeds.Placeholder{ID: "embed-1", Family: embeds.FamilyStreamable, ResourceID: "abc"})
	ctx := context.Background()

	done := make(chan []Update)
	go func() {
		done <- c.HandleIntersections(ctx, []Entry{{ID: "embed-1", Intersecting: flag(true)}}, nil)
	}()
	<-res.started

	// Leaves view while the fetch is still running.
	ups := c.HandleIntersections(ctx, []Entry{{ID: "embed-1", Intersecting: flag(false)}}, nil)
	require.Len(t, ups, 1)
	assert.False(t, ups[0].Loaded)

	close(res.gate)
	assert.Empty(t, <-done)

	html, ok := c.Render("embed-1")
	require.True(t, ok)
	assert.NotContains(t, html, "<video")
	assert.Contains(t, html, "Streamable Video")
	assert.Equal(t, int64(0), objects.Live())
}

func TestHandleIntersections_Geometry(t *testing.T) {
	c, _, _ := newTestController(t)
	c.Register(
		embeds.Placeholder{ID: "near", Family: embeds.FamilyYouTube, ResourceID: "a"},
		embeds.Placeholder{ID: "far", Family: embeds.FamilyYouTube, ResourceID: "b"},
	)
	vp := &Viewport{Top: 1000, Height: 800}
	top := func(v float64) *float64 { return &v }

	ups := c.HandleIntersections(context.Background(), []Entry{
		{ID: "near", Top: top(2300), Bottom: top(2600)}, // within the 700px margin below
		{ID: "far", Top: top(2600), Bottom: top(2900)},  // beyond it
		{ID: "unknown", Intersecting: flag(true)},
	}, vp)

	require.Len(t, ups, 1)
	assert.Equal(t, "near", ups[0].ID)
}

func TestVisible(t *testing.T) {
	vp := Viewport{Top: 1000, Height: 500}
	assert.True(t, Visible(Rect{Top: 1100, Bottom: 1200}, vp, 0))
	assert.False(t, Visible(Rect{Top: 1600, Bottom: 1700}, vp, 0))
	assert.True(t, Visible(Rect{Top: 1600, Bottom: 1700}, vp, 700))
	assert.True(t, Visible(Rect{Top: 0, Bottom: 400}, vp, 700))
	assert.False(t, Visible(Rect{Top: 0, Bottom: 200}, vp, 700))
}

func TestReset_RevokesObjectURLs(t *testing.T) {
	c, _, objects := newTestController(t)
	c.Register(
		embeds.Placeholder{ID: "a", Family: embeds.FamilyStreamable, ResourceID: "a"},
		embeds.Placeholder{ID: "b", Family: embeds.FamilyStreamable, ResourceID: "b"},
	)
	c.HandleIntersections(context.Background(), []Entry{
		{ID: "a", Intersecting: flag(true)},
		{ID: "b", Intersecting: flag(true)},
	}, nil)
	require.Equal(t, int64(2), objects.Live())

	c.Reset()
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int64(0), objects.Live())
}

func TestRegister_SkipsDuplicatesAndKeepsOrder(t *testing.T) {
	c, _, _ := newTestController(t)
	c.Register(
		embeds.Placeholder{ID: "b", Family: embeds.FamilyYouTube},
		embeds.Placeholder{ID: "a", Family: embeds.FamilyYouTube},
		embeds.Placeholder{ID: "b", Family: embeds.FamilyStreamable},
		embeds.Placeholder{Family: embeds.FamilyYouTube},
	)
	assert.Equal(t, []string{"b", "a"}, c.IDs())

	p, _ := c.Placeholder("b")
	assert.Equal(t, embeds.FamilyYouTube, p.Family)
}

func TestLoadingView(t *testing.T) {
	p := embeds.Placeholder{Family: embeds.FamilyStreamable}
	assert.True(t, strings.Contains(loadingView(p).Content, "Checking cache"))
}
