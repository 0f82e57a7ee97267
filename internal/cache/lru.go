// internal/cache/lru.go
//
// Small LRU of rendered admin fragments, grouped by namespace.
//
// Context
// -------
// The admin list pages ("subdomains", "domains") read every record on each
// render.  The web layer caches the rendered rows here, and every write in
// the action layer calls Invalidate(namespace) so the next render goes back
// to the store.
//
// Notes
// -----
// • Safe for concurrent use; one mutex guards the list and the index.
// • Invalidate is O(n) in the cache size, which stays small.
// • Oxford commas, two spaces after periods.
package cache

import (
	"container/list"
	"sync"
)

type entryKey struct {
	ns  string
	key string
}

type entry struct {
	k   entryKey
	val []byte
}

// LRU is a least-recently-used cache of byte slices keyed by
// (namespace, key).
type LRU struct {
	mu   sync.Mutex
	cap  int
	ll   *list.List
	dict map[entryKey]*list.Element
}

// New returns an LRU with the given capacity.  Panics on cap < 1.
func New(capacity int) *LRU {
	if capacity < 1 {
		panic("cache: capacity must be ≥1")
	}
	return &LRU{
		cap:  capacity,
		ll:   list.New(),
		dict: make(map[entryKey]*list.Element, capacity),
	}
}

// Get retrieves a value and marks it MRU.
func (c *LRU) Get(ns, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ele, hit := c.dict[entryKey{ns, key}]; hit {
		c.ll.MoveToFront(ele)
		return ele.Value.(*entry).val, true
	}
	return nil, false
}

// Add inserts or updates a value, evicting the oldest entry when full.
func (c *LRU) Add(ns, key string, val []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	k := entryKey{ns, key}
	if ele, hit := c.dict[k]; hit {
		ele.Value.(*entry).val = val
		c.ll.MoveToFront(ele)
		return
	}
	c.dict[k] = c.ll.PushFront(&entry{k: k, val: val})
	if c.ll.Len() > c.cap {
		c.removeElement(c.ll.Back())
	}
}

// Invalidate drops every entry under ns.
func (c *LRU) Invalidate(ns string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for ele := c.ll.Front(); ele != nil; {
		next := ele.Next()
		if ele.Value.(*entry).k.ns == ns {
			c.removeElement(ele)
		}
		ele = next
	}
}

// Len reports current size.
func (c *LRU) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

func (c *LRU) removeElement(ele *list.Element) {
	c.ll.Remove(ele)
	delete(c.dict, ele.Value.(*entry).k)
}
