// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package cache

// This file provides a fetch-through LRU cache keyed by string.
// Values are stored as given; callers that hand out mutable documents
// are responsible for copying them on the way in and out.

import (
	"sync"

	lrupkg "github.com/hashicorp/golang-lru/v2"
)

// lru is a least-recently-used cache with a fixed capacity.  The cache
// can be safely accessed from multiple goroutines.
type lru struct {
	items *lrupkg.Cache[string, interface{}]

	// epoch counts removals
	lock  sync.Mutex
	epoch uint64
}

func newLRU(size int) *lru {
	if size < 1 {
		size = 1
	}
	items, err := lrupkg.New[string, interface{}](size)
	if err != nil {
		// only a non-positive size fails
		panic(err)
	}
	return &lru{items: items}
}

// Get retrieves an item from the cache.  If it is not present, calls
// the fetch function, and if that succeeds, saves the item and
// returns it.  This returns an error only if the item is not present
// and the fetch function returns an error.
//
// The fetch function runs without the lock held.  If anything is
// removed from the cache while it runs, the fetched item is returned
// but not saved, since it may predate the removal.
func (lru *lru) Get(key string, fetch func(string) (interface{}, error)) (interface{}, error) {
	if value, present := lru.items.Get(key); present {
		return value, nil
	}
	lru.lock.Lock()
	epoch := lru.epoch
	lru.lock.Unlock()

	// Otherwise call the fetch function
	value, err := fetch(key)
	if err != nil {
		return value, err
	}

	lru.lock.Lock()
	defer lru.lock.Unlock()
	if lru.epoch == epoch {
		lru.items.Add(key, value)
	}
	return value, nil
}

// Peek looks for an item in the cache and returns it if present.
// This does not affect the recency of the item.
func (lru *lru) Peek(key string) (interface{}, bool) {
	return lru.items.Peek(key)
}

// Put adds an item to the LRU cache, possibly evicting something.
func (lru *lru) Put(key string, value interface{}) {
	lru.lock.Lock()
	defer lru.lock.Unlock()
	lru.items.Add(key, value)
}

// Remove takes items out of the cache.  Keys that do not exist are
// ignored.
func (lru *lru) Remove(keys ...string) {
	lru.lock.Lock()
	defer lru.lock.Unlock()
	lru.epoch++
	for _, key := range keys {
		lru.items.Remove(key)
	}
}

// Purge empties the cache.
func (lru *lru) Purge() {
	lru.lock.Lock()
	defer lru.lock.Unlock()
	lru.epoch++
	lru.items.Purge()
}

// Len returns the number of items in the cache.
func (lru *lru) Len() int {
	return lru.items.Len()
}
