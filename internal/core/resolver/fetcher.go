package resolver

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// Response is a fully read fetch result.
type Response struct {
	ContentType string
	Data        []byte
}

// StatusError is a non-2xx answer from a provider.
type StatusError struct {
	Status     string
	StatusCode int
}

func (e *StatusError) Error() string {
	return e.Status
}

// Fetcher retrieves a URL.
type Fetcher interface {
	// Fetch returns the body of a 2xx response. Non-2xx statuses return
	// ErrFetchFailed wrapping a *StatusError; bodies over the size cap
	// return ErrTooLarge.
	Fetch(ctx context.Context, url string) (*Response, error)
}

// HTTPFetcher implements Fetcher over an http.Client with a body size cap.
type HTTPFetcher struct {
	client       *http.Client
	maxSizeBytes int64
}

// NewHTTPFetcher creates a fetcher. maxSizeBytes <= 0 disables the cap.
func NewHTTPFetcher(client *http.Client, maxSizeBytes int64) *HTTPFetcher {
	return &HTTPFetcher{client: client, maxSizeBytes: maxSizeBytes}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create request: %v", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", "Threadview/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: %w", ErrFetchFailed, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
		})
	}

	body := io.Reader(resp.Body)
	if f.maxSizeBytes > 0 {
		if resp.ContentLength > f.maxSizeBytes {
			return nil, fmt.Errorf("%w: content length %d exceeds maximum %d bytes",
				ErrTooLarge, resp.ContentLength, f.maxSizeBytes)
		}
		// Read one extra byte to detect bodies that lie about their length.
		body = io.LimitReader(resp.Body, f.maxSizeBytes+1)
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response body: %v", ErrFetchFailed, err)
	}
	if f.maxSizeBytes > 0 && int64(len(data)) > f.maxSizeBytes {
		return nil, fmt.Errorf("%w: response body exceeds maximum %d bytes", ErrTooLarge, f.maxSizeBytes)
	}

	return &Response{
		ContentType: resp.Header.Get("Content-Type"),
		Data:        data,
	}, nil
}
