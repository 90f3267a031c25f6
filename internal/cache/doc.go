// Package cache provides the bounded least-recently-used table backing the
// compiled program cache.
//
//	c := cache.NewLRU[string, int](128, nil)
//	c.Add("key", 42)
//	value, ok := c.Get("key")
//
// LRU is not safe for concurrent use; owners guard it with their own lock so
// that eviction and the owner's side tables change atomically together.
package cache
