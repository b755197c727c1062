package entrez

import (
	"context"
	"sync"
	"time"

	"github.com/tidwall/tinylru"

	"github.com/seqgate/seqgate/internal/port/outbound"
)

type cacheEntry struct {
	body      []byte
	expiresAt time.Time
}

// CachingClient wraps a RemoteClient with an LRU of successful responses.
// Failures are never cached.
type CachingClient struct {
	next outbound.RemoteClient
	ttl  time.Duration
	now  func() time.Time

	mu  sync.Mutex
	lru tinylru.LRU
}

// NewCachingClient caches up to size responses for ttl each.
func NewCachingClient(next outbound.RemoteClient, size int, ttl time.Duration) *CachingClient {
	c := &CachingClient{next: next, ttl: ttl, now: time.Now}
	c.lru.Resize(size)
	return c
}

// Search returns a cached body or delegates.
func (c *CachingClient) Search(ctx context.Context, query string, field outbound.SearchField) ([]byte, error) {
	key := "search|" + string(field) + "|" + query
	return c.load(key, func() ([]byte, error) { return c.next.Search(ctx, query, field) })
}

// Fetch returns a cached body or delegates.
func (c *CachingClient) Fetch(ctx context.Context, id string, format outbound.RecordFormat) ([]byte, error) {
	key := "fetch|" + string(format) + "|" + id
	return c.load(key, func() ([]byte, error) { return c.next.Fetch(ctx, id, format) })
}

// Len returns the number of cached entries, expired ones included.
func (c *CachingClient) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lru.Len()
}

func (c *CachingClient) load(key string, fetch func() ([]byte, error)) ([]byte, error) {
	c.mu.Lock()
	if v, ok := c.lru.Get(key); ok {
		e := v.(cacheEntry)
		if c.now().Before(e.expiresAt) {
			c.mu.Unlock()
			return e.body, nil
		}
		c.lru.Delete(key)
	}
	c.mu.Unlock()

	body, err := fetch()
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.lru.Set(key, cacheEntry{body: body, expiresAt: c.now().Add(c.ttl)})
	c.mu.Unlock()
	return body, nil
}

var _ outbound.RemoteClient = (*CachingClient)(nil)
