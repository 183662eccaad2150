package memory

import (
	"container/list"
	"sync"
)

// keyedLocks serializes work per dedupe key with one mutex per key. The key
// space is unbounded, so idle mutexes are evicted in LRU order once the table
// exceeds its capacity. A mutex someone still holds is never evicted.
type keyedLocks struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[string]*list.Element
}

type lockEntry struct {
	key  string
	lock sync.Mutex
	refs int
}

func newKeyedLocks(capacity int) *keyedLocks {
	return &keyedLocks{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[string]*list.Element),
	}
}

// Lock blocks until the caller holds the mutex for key and returns the
// release function
func (l *keyedLocks) Lock(key string) func() {
	l.mu.Lock()

	elem, ok := l.entries[key]
	if !ok {
		elem = l.order.PushFront(&lockEntry{key: key})
		l.entries[key] = elem
	} else {
		l.order.MoveToFront(elem)
	}

	entry := elem.Value.(*lockEntry)
	entry.refs++
	l.evict()
	l.mu.Unlock()

	entry.lock.Lock()

	return func() {
		entry.lock.Unlock()
		l.mu.Lock()
		entry.refs--
		l.mu.Unlock()
	}
}

// evict drops least-recently-used idle entries while over capacity. Caller
// holds l.mu.
func (l *keyedLocks) evict() {
	for elem := l.order.Back(); elem != nil && l.order.Len() > l.capacity; {
		prev := elem.Prev()
		entry := elem.Value.(*lockEntry)
		if entry.refs == 0 {
			l.order.Remove(elem)
			delete(l.entries, entry.key)
		}
		elem = prev
	}
}
