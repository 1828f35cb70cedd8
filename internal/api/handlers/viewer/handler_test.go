package viewer

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Threadview/internal/core/lifecycle"
	"Threadview/internal/core/threads"
	"Threadview/internal/core/viewer"
)

type fakeSession struct {
	view        *viewer.View
	signalErr   error
	activateErr error
	scrollErr   error
	entries     []lifecycle.Entry
	lastSignal  string
	lastKey     string
	selected    bool
}

func (f *fakeSession) Render(ctx context.Context) (*viewer.View, error) { return f.view, nil }
func (f *fakeSession) View() *viewer.View                                { return f.view }

func (f *fakeSession) Signal(ctx context.Context, name string) (*viewer.SignalResult, error) {
	f.lastSignal = name
	if f.signalErr != nil {
		return nil, f.signalErr
	}
	return &viewer.SignalResult{Signal: name, Visible: true}, nil
}

func (f *fakeSession) Viewport(ctx context.Context, entries []lifecycle.Entry, vp *lifecycle.Viewport) []lifecycle.Update {
	f.entries = entries
	return []lifecycle.Update{{ID: entries[0].ID, HTML: "<iframe></iframe>", Loaded: true}}
}

func (f *fakeSession) Activate(ctx context.Context, id, key string) (lifecycle.Update, error) {
	f.lastKey = key
	if f.activateErr != nil {
		return lifecycle.Update{}, f.activateErr
	}
	return lifecycle.Update{ID: id, HTML: "<iframe></iframe>", Loaded: true}, nil
}

func (f *fakeSession) Select(ctx context.Context, id string) (bool, error) {
	f.selected = !f.selected
	return f.selected, nil
}

func (f *fakeSession) ScrollTo(ctx context.Context, id string) error { return f.scrollErr }

func createTestRequest(method, target string, body []byte, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	return body
}

func TestHandleView_JSONAndHTML(t *testing.T) {
	sess := &fakeSession{view: &viewer.View{HTML: "<div class=\"message\"></div>", Visible: true}}
	h := NewHandler(sess)

	rec := httptest.NewRecorder()
	h.HandleView(rec, createTestRequest(http.MethodGet, "/api/view", nil, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Body.String(), `"visible":true`)

	rec = httptest.NewRecorder()
	h.HandleView(rec, createTestRequest(http.MethodGet, "/api/view?format=html", nil, nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "<div class=\"message\"></div>", rec.Body.String())
}

func TestHandleSignal(t *testing.T) {
	sess := &fakeSession{}
	h := NewHandler(sess)

	rec := httptest.NewRecorder()
	h.HandleSignal(rec, createTestRequest(http.MethodPost, "/api/signals/data-updated", nil, map[string]string{"name": "data-updated"}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "data-updated", sess.lastSignal)

	sess.signalErr = viewer.ErrUnknownSignal
	rec = httptest.NewRecorder()
	h.HandleSignal(rec, createTestRequest(http.MethodPost, "/api/signals/bogus", nil, map[string]string{"name": "bogus"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "UnknownSignal", decodeError(t, rec)["error"])
}

func TestHandleViewport(t *testing.T) {
	sess := &fakeSession{}
	h := NewHandler(sess)

	body := []byte(`{"entries":[{"id":"embed-1","intersecting":true}]}`)
	rec := httptest.NewRecorder()
	h.HandleViewport(rec, createTestRequest(http.MethodPost, "/api/viewport", body, nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, sess.entries, 1)
	assert.True(t, *sess.entries[0].Intersecting)

	var resp struct {
		Updates []lifecycle.Update `json:"updates"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Updates, 1)
	assert.Equal(t, "embed-1", resp.Updates[0].ID)
}

func TestHandleViewport_InvalidBody(t *testing.T) {
	h := NewHandler(&fakeSession{})

	tests := []struct {
		name string
		body string
	}{
		{"malformed", `{"entries":`},
		{"no entries", `{"entries":[]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.HandleViewport(rec, createTestRequest(http.MethodPost, "/api/viewport", []byte(tt.body), nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Equal(t, "InvalidRequest", decodeError(t, rec)["error"])
		})
	}
}

func TestHandleActivate(t *testing.T) {
	tests := []struct {
		err      error
		name     string
		wantType string
		wantCode int
	}{
		{name: "loads", wantCode: http.StatusOK},
		{name: "unknown placeholder", err: lifecycle.ErrUnknownPlaceholder, wantCode: http.StatusNotFound, wantType: "PlaceholderNotFound"},
		{name: "unsupported key", err: lifecycle.ErrUnsupportedKey, wantCode: http.StatusBadRequest, wantType: "InvalidRequest"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess := &fakeSession{activateErr: tt.err}
			h := NewHandler(sess)

			rec := httptest.NewRecorder()
			req := createTestRequest(http.MethodPost, "/api/embeds/embed-1/activate", []byte(`{"key":"Enter"}`), map[string]string{"id": "embed-1"})
			h.HandleActivate(rec, req)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "Enter", sess.lastKey)
			if tt.wantType != "" {
				assert.Equal(t, tt.wantType, decodeError(t, rec)["error"])
			}
		})
	}
}

func TestHandleSelect_Toggles(t *testing.T) {
	h := NewHandler(&fakeSession{})
	params := map[string]string{"id": "42"}

	rec := httptest.NewRecorder()
	h.HandleSelect(rec, createTestRequest(http.MethodPost, "/api/messages/42/select", nil, params))
	assert.JSONEq(t, `{"id":"42","selected":true}`, rec.Body.String())

	rec = httptest.NewRecorder()
	h.HandleSelect(rec, createTestRequest(http.MethodPost, "/api/messages/42/select", nil, params))
	assert.JSONEq(t, `{"id":"42","selected":false}`, rec.Body.String())
}

func TestHandleScroll_NotRendered(t *testing.T) {
	sess := &fakeSession{scrollErr: threads.ErrMessageNotFound}
	h := NewHandler(sess)

	rec := httptest.NewRecorder()
	h.HandleScroll(rec, createTestRequest(http.MethodPost, "/api/messages/9/scroll", nil, map[string]string{"id": "9"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "MessageNotFound", decodeError(t, rec)["error"])

	sess.scrollErr = nil
	rec = httptest.NewRecorder()
	h.HandleScroll(rec, createTestRequest(http.MethodPost, "/api/messages/9/scroll", nil, map[string]string{"id": "9"}))
	assert.Equal(t, http.StatusOK, rec.Code)
}
