package resolver

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"Threadview/internal/core/objecturl"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingFetcher implements Fetcher with a canned result
type countingFetcher struct {
	resp  *Response
	err   error
	calls int
	mu    sync.Mutex
}

func (f *countingFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.resp, f.err
}

func newTestRegistry() *objecturl.Registry {
	return objecturl.NewRegistry("/blob/", time.Minute)
}

func TestHTTPFetcher_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Threadview/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("data"))
	}))
	defer server.Close()

	f := NewHTTPFetcher(NewHTTPClient(5*time.Second, true), 1024)
	resp, err := f.Fetch(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "video/mp4", resp.ContentType)
	assert.Equal(t, []byte("data"), resp.Data)
}

func TestHTTPFetcher_NonSuccessStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	f := NewHTTPFetcher(NewHTTPClient(5*time.Second, true), 1024)
	_, err := f.Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrFetchFailed)
	assert.Contains(t, err.Error(), "403")

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.Equal(t, http.StatusForbidden, statusErr.StatusCode)
}

func TestHTTPFetcher_SizeCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(strings.Repeat("x", 100)))
	}))
	defer server.Close()

	f := NewHTTPFetcher(NewHTTPClient(5*time.Second, true), 10)
	_, err := f.Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, ErrTooLarge)
}

func TestHTTPClient_BlocksPrivateHosts(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach a loopback server")
	}))
	defer server.Close()

	f := NewHTTPFetcher(NewHTTPClient(5*time.Second, false), 1024)
	_, err := f.Fetch(context.Background(), server.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "private address")
}

func TestIsPrivateIP(t *testing.T) {
	for _, tc := range []struct {
		ip      string
		private bool
	}{
		{"127.0.0.1", true},
		{"10.1.2.3", true},
		{"192.168.0.10", true},
		{"169.254.1.1", true},
		{"::1", true},
		{"8.8.8.8", false},
		{"2606:4700::1111", false},
	} {
		assert.Equal(t, tc.private, isPrivateIP(net.ParseIP(tc.ip)), tc.ip)
	}
}
