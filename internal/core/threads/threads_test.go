package threads

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"Threadview/internal/core/embeds"
	"Threadview/internal/core/resolver"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memSlots struct {
	values map[string]string
	err    error
	mu     sync.Mutex
}

func newMemSlots(values map[string]string) *memSlots {
	if values == nil {
		values = make(map[string]string)
	}
	return &memSlots{values: values}
}

func (m *memSlots) GetSlot(ctx context.Context, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", false, m.err
	}
	v, ok := m.values[key]
	return v, ok, nil
}

func (m *memSlots) SetSlot(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[key] = value
	return nil
}

func (m *memSlots) DeleteSlot(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.values, key)
	return nil
}

type stubAttachments struct {
	el resolver.Element
}

func (s stubAttachments) ResolveAttachment(ctx context.Context, a resolver.Attachment) resolver.Element {
	return s.el
}

func (s stubAttachments) ResolveFullImage(ctx context.Context, a resolver.Attachment) resolver.Element {
	return s.el
}

// sizedAttachments labels each image with the size it was resolved at.
type sizedAttachments struct{}

func (sizedAttachments) ResolveAttachment(ctx context.Context, a resolver.Attachment) resolver.Element {
	return resolver.Element{Kind: resolver.KindImage, HTML: fmt.Sprintf("[thumb %d]", a.Tim)}
}

func (sizedAttachments) ResolveFullImage(ctx context.Context, a resolver.Attachment) resolver.Element {
	return resolver.Element{Kind: resolver.KindImage, HTML: fmt.Sprintf("[full %d]", a.Tim)}
}

func loadSnapshot(t *testing.T, values map[string]string) *Snapshot {
	t.Helper()
	r, err := NewReader(newMemSlots(values))
	require.NoError(t, err)
	snap, err := r.Load(context.Background())
	require.NoError(t, err)
	return snap
}

func TestNewReader_NilStore(t *testing.T) {
	_, err := NewReader(nil)
	assert.ErrorIs(t, err, ErrNilDependency)
}

func TestReader_Load(t *testing.T) {
	snap := loadSnapshot(t, map[string]string{
		SlotActiveThreads: `[100, "200"]`,
		SlotMessages: `{
			"100": [{"id": 3, "time": 30, "text": "third"}, {"id": 1, "time": 10, "text": "first"}],
			"200": [{"id": 2, "time": 20, "text": "second", "attachment": {"filename": "cat", "ext": ".jpg", "tim": 99, "tn_w": 100, "tn_h": 80}}],
			"300": [{"id": 4, "time": 5, "text": "inactive thread"}]
		}`,
		SlotThreadColors:    `{"100": "#e6194B"}`,
		SlotSelectedMessage: "2",
		SlotViewerVisible:   "false",
	})

	assert.Equal(t, []ThreadID{"100", "200"}, snap.ActiveThreads)
	assert.Equal(t, "2", snap.SelectedID)
	assert.False(t, snap.Visible)

	ordered := snap.Ordered()
	require.Len(t, ordered, 3)
	assert.Equal(t, []int64{1, 2, 3}, []int64{ordered[0].ID, ordered[1].ID, ordered[2].ID})
	assert.Equal(t, ThreadID("200"), ordered[1].ThreadID)
	require.NotNil(t, ordered[1].Attachment)
	assert.Equal(t, 100, ordered[1].Attachment.TnW)

	assert.Equal(t, "#e6194B", snap.Color("100"))
	assert.Equal(t, DefaultThreadColor, snap.Color("200"))

	_, ok := snap.Find(4)
	assert.False(t, ok, "messages of inactive threads are not searched")
	m, ok := snap.Find(3)
	require.True(t, ok)
	assert.Equal(t, "third", m.Text)
}

func TestReader_MissingAndMalformedSlotsReadAsEmpty(t *testing.T) {
	snap := loadSnapshot(t, map[string]string{
		SlotActiveThreads: `not json`,
		SlotMessages:      `{"1": "wrong shape"}`,
	})

	assert.Empty(t, snap.ActiveThreads)
	assert.Empty(t, snap.Messages)
	assert.Empty(t, snap.Colors)
	assert.Empty(t, snap.SelectedID)
	assert.False(t, snap.Visible)
	assert.Empty(t, snap.Ordered())
}

func TestReader_StoreFailureIsReturned(t *testing.T) {
	slots := newMemSlots(nil)
	slots.err = errors.New("store unavailable")
	r, err := NewReader(slots)
	require.NoError(t, err)

	_, err = r.Load(context.Background())
	assert.Error(t, err)
}

func TestSnapshot_OrderedBreaksTimeTiesByID(t *testing.T) {
	snap := &Snapshot{
		ActiveThreads: []ThreadID{"a"},
		Messages: map[ThreadID][]Message{
			"a": {{ID: 9, Time: 1}, {ID: 4, Time: 1}},
		},
	}
	ordered := snap.Ordered()
	assert.Equal(t, int64(4), ordered[0].ID)
	assert.Equal(t, int64(9), ordered[1].ID)
}

func quoteSnapshot() *Snapshot {
	return &Snapshot{
		ActiveThreads: []ThreadID{"t"},
		Colors:        map[ThreadID]string{"t": "#123456"},
		Messages: map[ThreadID][]Message{
			"t": {
				{ID: 1, Time: 1, Text: "origin https://youtu.be/abc", ThreadID: "t"},
				{ID: 2, Time: 2, Text: "&gt;&gt;1 replying", ThreadID: "t"},
				{ID: 3, Time: 3, Text: ">>2 and >>999", ThreadID: "t"},
			},
		},
	}
}

func TestRenderer_QuotesRenderAboveWithAlternatingShade(t *testing.T) {
	snap := quoteSnapshot()
	msg, _ := snap.Find(3)

	out := NewRenderer(nil).Render(context.Background(), snap, msg)

	assert.Equal(t, int64(3), out.ID)
	i2 := strings.Index(out.HTML, `data-quoted-id="2"`)
	i1 := strings.Index(out.HTML, `data-quoted-id="1"`)
	own := strings.Index(out.HTML, "#3 ")
	require.True(t, i2 > 0 && i1 > i2 && own > i1, "quoted messages precede the quoting text")

	assert.Contains(t, out.HTML, `data-quoted-id="2" style="background-color:rgba(0,0,0,0.05)`)
	assert.Contains(t, out.HTML, `data-quoted-id="1" style="background-color:#fff`)
	assert.Equal(t, 1, strings.Count(out.HTML, `class="thread-color"`), "swatch only at depth 0")
	assert.Contains(t, out.HTML, "background-color:#123456")
	assert.NotContains(t, out.HTML, `data-quoted-id="999"`)

	require.Len(t, out.Placeholders, 1, "embeds inside quoted messages are collected")
	assert.Equal(t, embeds.FamilyYouTube, out.Placeholders[0].Family)
	assert.Equal(t, 1, out.Counts[embeds.FamilyYouTube])
}

func TestRenderer_QuoteCycleTerminates(t *testing.T) {
	snap := &Snapshot{
		ActiveThreads: []ThreadID{"t"},
		Messages: map[ThreadID][]Message{
			"t": {
				{ID: 1, Time: 1, Text: ">>2", ThreadID: "t"},
				{ID: 2, Time: 2, Text: ">>1", ThreadID: "t"},
				{ID: 5, Time: 5, Text: ">>5 self", ThreadID: "t"},
			},
		},
	}

	m1, _ := snap.Find(1)
	out := NewRenderer(nil).Render(context.Background(), snap, m1)
	assert.Contains(t, out.HTML, `data-quoted-id="2"`)
	assert.Contains(t, out.HTML, "<!-- Skipping circular quote to post 1 -->")

	m5, _ := snap.Find(5)
	out = NewRenderer(nil).Render(context.Background(), snap, m5)
	assert.Contains(t, out.HTML, "<!-- Skipping circular quote to post 5 -->")
}

func TestRenderer_SiblingQuotesOfSameMessageBothRender(t *testing.T) {
	snap := &Snapshot{
		ActiveThreads: []ThreadID{"t"},
		Messages: map[ThreadID][]Message{
			"t": {
				{ID: 1, Time: 1, Text: "base", ThreadID: "t"},
				{ID: 2, Time: 2, Text: ">>1", ThreadID: "t"},
				{ID: 3, Time: 3, Text: ">>1 >>2", ThreadID: "t"},
			},
		},
	}
	m3, _ := snap.Find(3)
	out := NewRenderer(nil).Render(context.Background(), snap, m3)
	assert.Equal(t, 2, strings.Count(out.HTML, `data-quoted-id="1"`))
	assert.NotContains(t, out.HTML, "Skipping circular")
}

func TestRenderer_HeaderSelectionAndEscaping(t *testing.T) {
	snap := &Snapshot{
		SelectedID:    "7",
		ActiveThreads: []ThreadID{"t"},
		Messages: map[ThreadID][]Message{
			"t": {{ID: 7, Time: 0, Text: "<b>bold</b>", ThreadID: "t"}},
		},
	}
	m, _ := snap.Find(7)
	out := NewRenderer(nil).Render(context.Background(), snap, m)

	assert.Contains(t, out.HTML, `class="message selected-message" data-message-id="7"`)
	assert.Contains(t, out.HTML, "#7 1/1/1970, 12:00:00 AM")
	assert.Contains(t, out.HTML, "&lt;b&gt;bold&lt;/b&gt;")
	assert.Contains(t, out.HTML, "background-color:"+DefaultThreadColor)
}

func TestRenderer_Attachments(t *testing.T) {
	snap := &Snapshot{
		ActiveThreads: []ThreadID{"t"},
		Messages: map[ThreadID][]Message{
			"t": {{ID: 1, Text: "vid", ThreadID: "t", Attachment: &resolver.Attachment{Tim: 5, Ext: ".webm"}}},
		},
	}
	m, _ := snap.Find(1)

	video := resolver.Element{Kind: resolver.KindNativeVideo, HTML: `<video id="video-x"></video>`, MediaID: "video-x", Source: "https://i.example/b/5.webm"}
	out := NewRenderer(stubAttachments{el: video}).Render(context.Background(), snap, m)
	assert.Contains(t, out.HTML, `<video id="video-x"></video>`)
	require.Len(t, out.Videos, 1)
	assert.Equal(t, "video-x", out.Videos[0].MediaID)

	image := resolver.Element{Kind: resolver.KindImage, HTML: `<img src="blob:x">`, ObjectURL: "blob:x"}
	out = NewRenderer(stubAttachments{el: image}).Render(context.Background(), snap, m)
	assert.Equal(t, []string{"blob:x"}, out.ObjectURLs)
	assert.Empty(t, out.Videos)
}

func imageSnapshot() *Snapshot {
	return &Snapshot{
		ActiveThreads: []ThreadID{"t"},
		Messages: map[ThreadID][]Message{
			"t": {
				{ID: 1, Time: 1, Text: "cat", ThreadID: "t", Attachment: &resolver.Attachment{Tim: 10, Ext: ".jpg"}},
				{ID: 2, Time: 2, Text: ">>1", ThreadID: "t", Attachment: &resolver.Attachment{Tim: 20, Ext: ".png"}},
				{ID: 3, Time: 3, Text: "again", ThreadID: "t", Attachment: &resolver.Attachment{Tim: 10, Ext: ".jpg"}},
				{ID: 4, Time: 4, Text: "clip", ThreadID: "t", Attachment: &resolver.Attachment{Tim: 30, Ext: ".webm"}},
			},
		},
	}
}

func TestBatch_FirstImageOccurrenceIsFullSize(t *testing.T) {
	snap := imageSnapshot()
	batch := NewRenderer(sizedAttachments{}).NewBatch()
	ctx := context.Background()

	var html []string
	for _, m := range snap.Ordered() {
		html = append(html, batch.Render(ctx, snap, m).HTML)
	}

	require.Len(t, html, 4)
	assert.Contains(t, html[0], "[full 10]")
	assert.Contains(t, html[1], "[thumb 10]", "quoted repeat is a thumbnail")
	assert.Contains(t, html[1], "[full 20]")
	assert.Contains(t, html[2], "[thumb 10]")
	assert.NotContains(t, html[2], "[full 10]")
	assert.Contains(t, html[3], "[thumb 30]", "videos never take the full-size path")
}

func TestRenderer_EachRenderStartsFresh(t *testing.T) {
	snap := imageSnapshot()
	r := NewRenderer(sizedAttachments{})
	ctx := context.Background()

	m1, _ := snap.Find(1)
	m3, _ := snap.Find(3)
	assert.Contains(t, r.Render(ctx, snap, m1).HTML, "[full 10]")
	assert.Contains(t, r.Render(ctx, snap, m3).HTML, "[full 10]")
}

func TestTracker(t *testing.T) {
	tr := NewTracker()
	tr.Seed([]Message{{ID: 1}, {ID: 2}})
	assert.Equal(t, 2, tr.Len())

	fresh := tr.NewMessages([]Message{{ID: 1}, {ID: 3}, {ID: 2}, {ID: 4}})
	require.Len(t, fresh, 2)
	assert.Equal(t, int64(3), fresh[0].ID)
	assert.Equal(t, int64(4), fresh[1].ID)

	assert.Empty(t, tr.NewMessages([]Message{{ID: 3}, {ID: 4}}))
	assert.True(t, tr.Known(4))

	tr.Reset()
	assert.Equal(t, 0, tr.Len())
	assert.False(t, tr.Known(1))
}

func TestWaitForMessage(t *testing.T) {
	policy := RetryPolicy{Attempts: 3, Delay: time.Millisecond}

	calls := 0
	err := WaitForMessage(context.Background(), "5", func(id string) bool {
		calls++
		return calls == 2
	}, policy)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = WaitForMessage(context.Background(), "5", func(string) bool {
		calls++
		return false
	}, policy)
	assert.ErrorIs(t, err, ErrMessageNotFound)
	assert.Equal(t, 3, calls)
}

func TestWaitForMessage_HonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WaitForMessage(ctx, "5", func(string) bool { return false }, RetryPolicy{Attempts: 5, Delay: time.Hour})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestThreadID_AcceptsNumbersAndStrings(t *testing.T) {
	snap := loadSnapshot(t, map[string]string{SlotActiveThreads: `[12345678901, "abc"]`})
	assert.Equal(t, []ThreadID{"12345678901", "abc"}, snap.ActiveThreads)
}
