package resolver

import (
	"container/list"
	"net"
	"sync"
	"time"
)

// cache is the LRU-bounded, TTL-expiring resolver cache from spec.md's
// "Resolver cache entry" data model: domain -> IP list, IP -> domain
// list, keyed generically here since both directions share the same
// count/byte-size/TTL/LRU-eviction behavior. Grounded on spec.md §4.6
// directly — the teacher pack has no analogous bounded cache, only
// bassosimone/nop's unbounded per-call DNS exchange.
type cache struct {
	mu sync.Mutex

	maxEntries int
	maxBytes   int

	bytes int
	ll    *list.List               // most-recently-used at the front
	items map[string]*list.Element // key -> *entry wrapped in *list.Element
}

type cacheEntry struct {
	key     string
	ips     []net.IP
	names   []string
	size    int
	expires time.Time
}

func newCache(maxEntries, maxBytes int) *cache {
	return &cache{
		maxEntries: maxEntries,
		maxBytes:   maxBytes,
		ll:         list.New(),
		items:      make(map[string]*list.Element),
	}
}

func ipEntrySize(key string, ips []net.IP) int {
	n := len(key)
	for _, ip := range ips {
		n += len(ip)
	}
	return n
}

func nameEntrySize(key string, names []string) int {
	n := len(key)
	for _, name := range names {
		n += len(name)
	}
	return n
}

func (c *cache) getIPs(key string) ([]net.IP, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*cacheEntry)
	if time.Now().After(e.expires) {
		c.removeLocked(el)
		return nil, false
	}
	c.ll.MoveToFront(el)
	return e.ips, true
}

func (c *cache) putIPs(key string, ips []net.IP, ttl time.Duration) {
	c.put(key, &cacheEntry{key: key, ips: ips, size: ipEntrySize(key, ips), expires: expiryFor(ttl)})
}

func (c *cache) getNames(key string) ([]string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.items[key]
	if !ok {
		return nil, false
	}
	e := el.Value.(*cacheEntry)
	if time.Now().After(e.expires) {
		c.removeLocked(el)
		return nil, false
	}
	c.ll.MoveToFront(el)
	return e.names, true
}

func (c *cache) putNames(key string, names []string, ttl time.Duration) {
	c.put(key, &cacheEntry{key: key, names: names, size: nameEntrySize(key, names), expires: expiryFor(ttl)})
}

func expiryFor(ttl time.Duration) time.Time {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return time.Now().Add(ttl)
}

// put inserts or replaces e, evicting by LRU until the count and byte
// budgets are satisfied, spec.md's "entries are evicted at expiration or
// on cache-full by LRU" invariant.
func (c *cache) put(key string, e *cacheEntry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		old := el.Value.(*cacheEntry)
		c.bytes -= old.size
		el.Value = e
		c.ll.MoveToFront(el)
		c.bytes += e.size
	} else {
		el := c.ll.PushFront(e)
		c.items[key] = el
		c.bytes += e.size
	}

	for (c.maxEntries > 0 && c.ll.Len() > c.maxEntries) || (c.maxBytes > 0 && c.bytes > c.maxBytes) {
		back := c.ll.Back()
		if back == nil {
			break
		}
		c.removeLocked(back)
	}
}

func (c *cache) removeLocked(el *list.Element) {
	e := el.Value.(*cacheEntry)
	c.bytes -= e.size
	delete(c.items, e.key)
	c.ll.Remove(el)
}
