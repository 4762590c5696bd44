package fetchcache

import (
	"sync"
	"time"
)

// DefaultTTL keeps a fetched body around long enough for one sync run to
// reuse it across subscriptions pointing at the same URL.
const DefaultTTL = 15 * time.Minute

// Entry is one cached fetch: the body together with the cache validators the
// remote sent alongside it. Validators from any later probe must never be
// stored against this body; they may describe newer content.
type Entry struct {
	Body         string
	Etag         string
	LastModified string
}

type record struct {
	entry     Entry
	fetchedAt time.Time
}

// Cache is a URL-keyed cache of calendar fetches. It is a best-effort
// optimization: concurrent writers may race and the last write wins.
type Cache struct {
	ttl     time.Duration
	now     func() time.Time
	mu      sync.Mutex
	entries map[string]record
}

func New(ttl time.Duration) *Cache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Cache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]record),
	}
}

// NewWithClock is New with an injectable clock, so expiry is testable.
func NewWithClock(ttl time.Duration, now func() time.Time) *Cache {
	c := New(ttl)
	c.now = now
	return c
}

func (c *Cache) Get(url string) (Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, ok := c.entries[url]
	if !ok {
		return Entry{}, false
	}
	if c.now().Sub(r.fetchedAt) > c.ttl {
		delete(c.entries, url)
		return Entry{}, false
	}
	return r.entry, true
}

func (c *Cache) Put(url string, e Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[url] = record{entry: e, fetchedAt: c.now()}
}
