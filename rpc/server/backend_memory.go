package server

import (
	"sync"
	"time"

	"github.com/ValentinKolb/dGrid/lib/pof"
	"github.com/puzpuzpuz/xsync/v3"
)

// memoryEntry is one stored entry. The original key is kept for Keys.
type memoryEntry struct {
	key      any
	value    any
	deadline int64
}

// memoryCache holds the entries of one named cache
type memoryCache struct {
	entries *xsync.MapOf[string, memoryEntry]

	// expiry schedules entries with a deadline for purging. Reads check the
	// deadline of the entry itself, the queue only reclaims memory.
	expiryMu sync.Mutex
	expiry   *expiryQueue
}

// memoryBackend keeps all caches in process memory
type memoryBackend struct {
	ctx    pof.IPofContext
	caches *xsync.MapOf[string, *memoryCache]
	now    func() time.Time
}

// NewMemoryBackend creates an in-memory backend. ctx canonicalises keys.
func NewMemoryBackend(ctx pof.IPofContext) ICacheBackend {
	return newMemoryBackend(ctx, time.Now)
}

func newMemoryBackend(ctx pof.IPofContext, now func() time.Time) *memoryBackend {
	return &memoryBackend{
		ctx:    ctx,
		caches: xsync.NewMapOf[string, *memoryCache](),
		now:    now,
	}
}

// cache returns the named cache, creating it if needed
func (b *memoryBackend) cache(name string) *memoryCache {
	c, _ := b.caches.LoadOrCompute(name, func() *memoryCache {
		backendLogger.Debugf("Created memory cache %q", name)
		return &memoryCache{
			entries: xsync.NewMapOf[string, memoryEntry](),
			expiry:  newExpiryQueue(),
		}
	})
	return c
}

func (c *memoryCache) schedule(key string, deadline int64) {
	c.expiryMu.Lock()
	defer c.expiryMu.Unlock()
	if deadline == 0 {
		c.expiry.cancel(key)
	} else {
		c.expiry.schedule(key, deadline)
	}
}

// --------------------------------------------------------------------------
// Interface Methods (docu see server.ICacheBackend)
// --------------------------------------------------------------------------

func (b *memoryBackend) Get(cache string, key any) (any, bool, error) {
	ck, err := canonicalKey(b.ctx, key)
	if err != nil {
		return nil, false, err
	}
	e, ok := b.cache(cache).entries.Load(ck)
	if !ok || expired(e.deadline, b.now()) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (b *memoryBackend) Put(cache string, key, value any, expiry time.Duration) (any, bool, error) {
	ck, err := canonicalKey(b.ctx, key)
	if err != nil {
		return nil, false, err
	}
	now := b.now()
	entry := memoryEntry{key: key, value: value, deadline: deadlineOf(now, expiry)}

	c := b.cache(cache)
	var previous any
	var replaced bool
	c.entries.Compute(ck, func(old memoryEntry, loaded bool) (memoryEntry, bool) {
		if loaded && !expired(old.deadline, now) {
			previous, replaced = old.value, true
		}
		return entry, false
	})
	c.schedule(ck, entry.deadline)
	return previous, replaced, nil
}

func (b *memoryBackend) PutAll(cache string, entries map[any]any, expiry time.Duration) (int64, error) {
	var n int64
	for k, v := range entries {
		if _, _, err := b.Put(cache, k, v, expiry); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func (b *memoryBackend) GetAll(cache string, keys []any) (map[any]any, error) {
	out := make(map[any]any, len(keys))
	for _, k := range keys {
		if err := checkMapKey(k); err != nil {
			return nil, err
		}
		v, ok, err := b.Get(cache, k)
		if err != nil {
			return nil, err
		}
		if ok {
			out[k] = v
		}
	}
	return out, nil
}

func (b *memoryBackend) Remove(cache string, key any) (any, bool, error) {
	ck, err := canonicalKey(b.ctx, key)
	if err != nil {
		return nil, false, err
	}
	c := b.cache(cache)
	e, ok := c.entries.LoadAndDelete(ck)
	if !ok {
		return nil, false, nil
	}
	c.schedule(ck, 0)
	if expired(e.deadline, b.now()) {
		return nil, false, nil
	}
	return e.value, true, nil
}

func (b *memoryBackend) ContainsKey(cache string, key any) (bool, error) {
	_, ok, err := b.Get(cache, key)
	return ok, err
}

func (b *memoryBackend) Size(cache string) (int64, error) {
	now := b.now()
	var n int64
	b.cache(cache).entries.Range(func(_ string, e memoryEntry) bool {
		if !expired(e.deadline, now) {
			n++
		}
		return true
	})
	return n, nil
}

func (b *memoryBackend) Clear(cache string) (int64, error) {
	now := b.now()
	c := b.cache(cache)
	var n int64
	c.entries.Range(func(k string, _ memoryEntry) bool {
		if e, ok := c.entries.LoadAndDelete(k); ok && !expired(e.deadline, now) {
			n++
		}
		return true
	})
	c.expiryMu.Lock()
	c.expiry.reset()
	c.expiryMu.Unlock()
	return n, nil
}

func (b *memoryBackend) Keys(cache string) ([]any, error) {
	now := b.now()
	keys := make([]any, 0)
	b.cache(cache).entries.Range(func(_ string, e memoryEntry) bool {
		if !expired(e.deadline, now) {
			keys = append(keys, e.key)
		}
		return true
	})
	return keys, nil
}

func (b *memoryBackend) Purge() (int, error) {
	now := b.now()
	removed := 0
	b.caches.Range(func(name string, c *memoryCache) bool {
		c.expiryMu.Lock()
		due := c.expiry.popDue(now.UnixNano())
		c.expiryMu.Unlock()
		for _, ck := range due {
			c.entries.Compute(ck, func(old memoryEntry, loaded bool) (memoryEntry, bool) {
				if loaded && expired(old.deadline, now) {
					removed++
					return old, true
				}
				return old, !loaded
			})
		}
		return true
	})
	if removed > 0 {
		backendLogger.Debugf("Purged %d expired entries", removed)
	}
	return removed, nil
}

func (b *memoryBackend) Close() error {
	b.caches.Clear()
	return nil
}
