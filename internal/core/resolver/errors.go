package resolver

import "errors"

var (
	// ErrFetchFailed is returned when a network fetch fails or returns a
	// non-success status.
	ErrFetchFailed = errors.New("fetch failed")

	// ErrNotVideo is returned when a direct-video URL answers with a
	// non-video content type.
	ErrNotVideo = errors.New("response is not a video")

	// ErrTooLarge is returned when a response body exceeds the fetch size cap.
	ErrTooLarge = errors.New("response exceeds size limit")

	// ErrCircuitOpen is returned when a provider is skipped because its
	// circuit breaker is open.
	ErrCircuitOpen = errors.New("provider circuit open")

	// ErrMalformedURL is returned when an embed URL cannot be decomposed
	// into the parts a provider needs.
	ErrMalformedURL = errors.New("malformed embed URL")

	// ErrIncompleteData is returned when a preview API answers without the
	// fields needed to render a card.
	ErrIncompleteData = errors.New("tweet data incomplete or not found from API")

	// ErrNilDependency is returned when a required dependency is nil.
	ErrNilDependency = errors.New("required dependency is nil")
)
