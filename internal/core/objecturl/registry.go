// Package objecturl hands out short-lived URLs for in-memory blobs.
//
// Each handle has a single owner (the element displaying it). The owner
// revokes the handle once the element has loaded or is replaced; handles
// that are never revoked expire after the idle TTL.
package objecturl

import (
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/patrickmn/go-cache"
)

// ErrNotFound is returned when a handle is unknown, revoked or expired.
var ErrNotFound = errors.New("object URL not found")

// Object is a blob registered under a handle.
type Object struct {
	Created     time.Time
	ID          string
	ContentType string
	Data        []byte
}

// Registry maps handles to blobs.
type Registry struct {
	items   *cache.Cache
	prefix  string
	live    atomic.Int64
	revoked atomic.Int64
}

// NewRegistry creates a registry whose URLs start with prefix (for example
// "/blob/"). Unrevoked handles expire after ttl.
func NewRegistry(prefix string, ttl time.Duration) *Registry {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	r := &Registry{
		items:  cache.New(ttl, ttl/2),
		prefix: prefix,
	}
	r.items.OnEvicted(func(id string, _ interface{}) {
		r.live.Add(-1)
		r.revoked.Add(1)
		slog.Debug("[OBJECT-URL] released", "id", id)
	})
	return r
}

// Create registers data and returns its URL.
func (r *Registry) Create(data []byte, contentType string) string {
	id := ulid.Make().String()
	r.items.SetDefault(id, &Object{
		ID:          id,
		ContentType: contentType,
		Data:        data,
		Created:     time.Now(),
	})
	r.live.Add(1)
	return r.prefix + id
}

// Lookup returns the object behind id.
func (r *Registry) Lookup(id string) (*Object, error) {
	v, ok := r.items.Get(id)
	if !ok {
		return nil, ErrNotFound
	}
	return v.(*Object), nil
}

// Revoke releases a handle given either its id or its full URL. Unknown
// handles are ignored.
func (r *Registry) Revoke(idOrURL string) {
	id := r.ID(idOrURL)
	if id == "" {
		return
	}
	// Delete fires OnEvicted for present keys only.
	r.items.Delete(id)
}

// ID extracts the handle from a URL produced by Create. Returns "" for
// URLs this registry did not produce.
func (r *Registry) ID(idOrURL string) string {
	if r.prefix != "" && strings.HasPrefix(idOrURL, r.prefix) {
		return strings.TrimPrefix(idOrURL, r.prefix)
	}
	if _, err := ulid.ParseStrict(idOrURL); err == nil {
		return idOrURL
	}
	return ""
}

// Owns reports whether url was produced by this registry.
func (r *Registry) Owns(url string) bool {
	return r.prefix != "" && strings.HasPrefix(url, r.prefix)
}

// Live returns the number of unreleased handles.
func (r *Registry) Live() int64 {
	return r.live.Load()
}

// Released returns the number of handles released so far.
func (r *Registry) Released() int64 {
	return r.revoked.Load()
}

// Clear releases every handle.
func (r *Registry) Clear() {
	for id := range r.items.Items() {
		r.items.Delete(id)
	}
}
