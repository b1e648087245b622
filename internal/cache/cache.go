// Package cache stores response snapshots in generation-tagged buckets.
// Exactly one generation is current at a time; activating a new generation
// garbage-collects every bucket tagged with a different id.
package cache

import (
	"context"
	"net/http"
	"time"
)

// Entry is a snapshot of a successful upstream response.
type Entry struct {
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	CachedAt time.Time   `json:"cached_at"`
}

// Key builds the request key an entry is stored under.
func Key(method, url string) string {
	return method + " " + url
}

// Store persists cache entries per generation bucket.
type Store interface {
	// Put writes an entry into the given generation's bucket,
	// creating the bucket if it does not exist.
	Put(ctx context.Context, generation, key string, entry Entry) error

	// Get returns the entry stored under key in the given generation's
	// bucket, and whether it was found.
	Get(ctx context.Context, generation, key string) (Entry, bool, error)

	// Generations lists the ids of all existing buckets.
	Generations(ctx context.Context) ([]string, error)

	// Drop deletes a generation's bucket and all entries in it.
	Drop(ctx context.Context, generation string) error
}
