package cache

// lruNode is a node in a doubly-linked LRU list.
// The node stores its key for O(1) deletion from the parent map.
type lruNode[K comparable, V any] struct {
	key   K
	value V
	prev  *lruNode[K, V]
	next  *lruNode[K, V]
}

// LRU is a map bounded by entry count. The head of the list is the most
// recently used entry, the tail the least recently used.
type LRU[K comparable, V any] struct {
	entries  map[K]*lruNode[K, V]
	head     *lruNode[K, V]
	tail     *lruNode[K, V]
	capacity int
	onEvict  func(K, V)
}

// NewLRU creates an LRU holding at most capacity entries. A capacity of 0
// means unbounded. onEvict, if non-nil, is called for every entry dropped
// to make room; it is not called by Clear.
func NewLRU[K comparable, V any](capacity int, onEvict func(K, V)) *LRU[K, V] {
	return &LRU[K, V]{
		entries:  make(map[K]*lruNode[K, V]),
		capacity: max(capacity, 0),
		onEvict:  onEvict,
	}
}

// Len returns the number of entries.
func (l *LRU[K, V]) Len() int {
	return len(l.entries)
}

// Capacity returns the entry limit, 0 when unbounded.
func (l *LRU[K, V]) Capacity() int {
	return l.capacity
}

// Get returns the value for key and marks it most recently used.
func (l *LRU[K, V]) Get(key K) (V, bool) {
	node, ok := l.entries[key]
	if !ok {
		var zero V
		return zero, false
	}
	l.moveToFront(node)
	return node.value, true
}

// Add inserts or replaces key and evicts least recently used entries while
// over capacity. It returns the number of evicted entries.
func (l *LRU[K, V]) Add(key K, value V) int {
	if node, ok := l.entries[key]; ok {
		node.value = value
		l.moveToFront(node)
		return 0
	}
	node := &lruNode[K, V]{key: key, value: value}
	l.pushFront(node)
	l.entries[key] = node

	evicted := 0
	for l.capacity > 0 && len(l.entries) > l.capacity {
		oldest := l.tail
		l.unlink(oldest)
		delete(l.entries, oldest.key)
		evicted++
		if l.onEvict != nil {
			l.onEvict(oldest.key, oldest.value)
		}
	}
	return evicted
}

// Clear removes all entries.
func (l *LRU[K, V]) Clear() {
	clear(l.entries)
	l.head = nil
	l.tail = nil
}

func (l *LRU[K, V]) pushFront(node *lruNode[K, V]) {
	node.prev = nil
	node.next = l.head
	if l.head != nil {
		l.head.prev = node
	}
	l.head = node
	if l.tail == nil {
		l.tail = node
	}
}

func (l *LRU[K, V]) moveToFront(node *lruNode[K, V]) {
	if node == l.head {
		return
	}
	l.unlink(node)
	l.pushFront(node)
}

// unlink removes a node from the list and clears its links.
func (l *LRU[K, V]) unlink(node *lruNode[K, V]) {
	if node.prev != nil {
		node.prev.next = node.next
	} else {
		l.head = node.next
	}
	if node.next != nil {
		node.next.prev = node.prev
	} else {
		l.tail = node.prev
	}
	node.prev = nil
	node.next = nil
}
