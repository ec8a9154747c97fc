package api

import (
	"sync"

	"github.com/couchcryptid/covid-report-etl/internal/domain"
)

// responseCache is a thread-safe LRU of encoded query responses. Entries
// belong to one published result; storing under another result empties the
// cache, and lookups against any other result miss.
type responseCache struct {
	maxEntries int
	mu         sync.Mutex
	generation *domain.IngestionResult
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key  string
	body []byte
	prev *entry
	next *entry
}

func newResponseCache(maxEntries int) *responseCache {
	return &responseCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *responseCache) get(generation *domain.IngestionResult, key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation == nil || generation != c.generation {
		return nil, false
	}
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	c.moveToFront(e)
	return e.body, true
}

// put stores body under generation. Callers only put for the result that is
// currently published.
func (c *responseCache) put(generation *domain.IngestionResult, key string, body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if generation != c.generation {
		c.reset(generation)
	}

	if e, ok := c.entries[key]; ok {
		e.body = body
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, body: body}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *responseCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *responseCache) reset(generation *domain.IngestionResult) {
	c.generation = generation
	c.entries = make(map[string]*entry)
	c.head, c.tail = nil, nil
}

func (c *responseCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *responseCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *responseCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *responseCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
