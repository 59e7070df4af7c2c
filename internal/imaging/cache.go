package imaging

import (
	"container/list"
	"sync"
)

// lruCache bounds cached results by entry count and aggregate bytes,
// evicting least-recently-used entries once either limit is exceeded.
type lruCache struct {
	mu         sync.Mutex
	maxEntries int
	maxBytes   int64
	curBytes   int64
	order      *list.List // front = most recent
	entries    map[string]*list.Element
}

type cacheEntry struct {
	id    string
	value *Ingested
	size  int64
}

func newLRUCache(maxEntries int, maxBytes int64) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		order:      list.New(),
		entries:    make(map[string]*list.Element),
	}
}

func (c *lruCache) get(id string) (*Ingested, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[id]
	if !ok {
		return nil, false
	}
	c.order.MoveToFront(el)
	return el.Value.(*cacheEntry).value, true
}

func (c *lruCache) put(id string, v *Ingested) {
	size := int64(len(v.Full) + len(v.Thumb))

	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[id]; ok {
		e := el.Value.(*cacheEntry)
		c.curBytes += size - e.size
		e.value, e.size = v, size
		c.order.MoveToFront(el)
	} else {
		c.entries[id] = c.order.PushFront(&cacheEntry{id: id, value: v, size: size})
		c.curBytes += size
	}

	for (c.maxEntries > 0 && c.order.Len() > c.maxEntries) ||
		(c.maxBytes > 0 && c.curBytes > c.maxBytes) {
		oldest := c.order.Back()
		if oldest == nil {
			break
		}
		c.evict(oldest)
	}
}

func (c *lruCache) remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[id]; ok {
		c.evict(el)
	}
}

func (c *lruCache) evict(el *list.Element) {
	e := el.Value.(*cacheEntry)
	c.order.Remove(el)
	delete(c.entries, e.id)
	c.curBytes -= e.size
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}
