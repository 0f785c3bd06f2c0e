// Package repository implements the read-through repositories: User,
// Signer, and Link storage backed by the hub adapter and the connection
// pool, enforcing foreign-key-safe upserts under a single transaction.
package repository

import (
	"errors"

	"golang.org/x/sync/singleflight"

	"hubgateway/internal/db"
	"hubgateway/internal/hub"
)

// ErrNotFound is returned by lookups that find no row and have no
// upstream fallback (e.g. Repository.GetSigner).
var ErrNotFound = errors.New("repository: not found")

// Repository bundles the dependencies every concrete repository needs:
// the connection pool, the hub adapter, and a singleflight group that
// collapses concurrent fetch-and-store calls for the same key so a burst
// of cache misses produces one upstream fetch, not N.
type Repository struct {
	Pool *db.Pool
	Hub  hub.HubClient

	// FailClosedReads disables the "DB error = cache miss" availability
	// bias on the read-through paths: real storage errors propagate
	// instead of falling through to the hub. A missing users row in
	// GetUserProfile still falls through either way.
	FailClosedReads bool

	flight singleflight.Group
}

func New(pool *db.Pool, h hub.HubClient) *Repository {
	return &Repository{Pool: pool, Hub: h}
}
