package cache

import (
	"context"
	"sync"
	"sync/atomic"
)

// Opener builds a Cache on first use.
type Opener func(ctx context.Context) (*Cache, error)

// Handle lazily opens a single Cache. Concurrent first calls to Get observe exactly one
// instance; a failed open is retried by the next caller.
type Handle struct {
	open  Opener
	mu    sync.Mutex
	cache atomic.Pointer[Cache]
}

// NewHandle returns a handle that opens its cache with open.
func NewHandle(open Opener) *Handle {
	return &Handle{open: open}
}

// Get returns the shared cache, opening it if needed.
func (h *Handle) Get(ctx context.Context) (*Cache, error) {
	if c := h.cache.Load(); c != nil {
		return c, nil
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if c := h.cache.Load(); c != nil {
		return c, nil
	}
	c, err := h.open(ctx)
	if err != nil {
		return nil, err
	}
	h.cache.Store(c)
	return c, nil
}

// Close closes the shared cache if it was opened. A later Get opens a fresh one.
func (h *Handle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	c := h.cache.Swap(nil)
	if c == nil {
		return nil
	}
	return c.Close()
}
