// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package cache provides the key/value TTL store used as a read-through
// layer in front of search calls.
package cache

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache is the collaborator contract: get, set with TTL, invalidate.
// Implementations must be safe for use from concurrent requests.
type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, ttl time.Duration)
	Invalidate(key string)
}

// TTL is an in-process Cache backed by go-cache.
type TTL struct {
	c *gocache.Cache
}

// NewTTL returns a cache whose entries default to defaultTTL when Set is
// called with a non-positive ttl. Expired entries are swept in the
// background at twice the default TTL.
func NewTTL(defaultTTL time.Duration) *TTL {
	if defaultTTL <= 0 {
		defaultTTL = time.Hour
	}
	return &TTL{c: gocache.New(defaultTTL, 2*defaultTTL)}
}

// Get returns the value for key if present and unexpired.
func (t *TTL) Get(key string) (any, bool) {
	return t.c.Get(key)
}

// Set stores value under key for ttl. A non-positive ttl uses the default.
func (t *TTL) Set(key string, value any, ttl time.Duration) {
	if ttl <= 0 {
		ttl = gocache.DefaultExpiration
	}
	t.c.Set(key, value, ttl)
}

// Invalidate removes key from the cache.
func (t *TTL) Invalidate(key string) {
	t.c.Delete(key)
}
