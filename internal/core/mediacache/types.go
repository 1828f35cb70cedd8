package mediacache

import (
	"strings"
	"time"
)

// MediaType is the coarse classification stored with each record.
type MediaType string

const (
	MediaTypeImage MediaType = "image"
	MediaTypeVideo MediaType = "video"
	MediaTypeOther MediaType = "other"
)

// ClassifyMediaType maps a declared content type onto a MediaType by prefix.
func ClassifyMediaType(contentType string) MediaType {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	switch {
	case strings.HasPrefix(ct, "image/"):
		return MediaTypeImage
	case strings.HasPrefix(ct, "video/"):
		return MediaTypeVideo
	default:
		return MediaTypeOther
	}
}

// Blob is a payload together with its declared content type.
type Blob struct {
	Type string
	Data []byte
}

// Size returns the payload length in bytes.
func (b Blob) Size() int64 {
	return int64(len(b.Data))
}

// Record is one cached resource, keyed by URL.
type Record struct {
	// Timestamp is the last access time; it drives LRU eviction.
	Timestamp   time.Time
	URL         string
	Filename    string
	OriginalExt string
	MediaType   MediaType
	ContentType string
	Blob        []byte
	Size        int64
}

// Entry is the metadata view of a record used by eviction.
type Entry struct {
	Timestamp time.Time
	URL       string
	Size      int64
}

// Usage summarizes what the store currently holds.
type Usage struct {
	Records int64 `json:"records"`
	Bytes   int64 `json:"bytes"`
}
