// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package cache

import (
	"testing"

	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/stretchr/testify/assert"
)

func fetchImage(oid string) (interface{}, error) {
	return &mediamanager.Image{OID: oid}, nil
}

func failFetch(oid string) (interface{}, error) {
	return nil, mediamanager.ErrNoSuchImage{OID: oid}
}

type LRUAssertions struct {
	*assert.Assertions
	LRU *lru
}

func NewLRUAssertions(t assert.TestingT, size int) *LRUAssertions {
	return &LRUAssertions{
		assert.New(t),
		newLRU(size),
	}
}

// Fetch gets an image from the cache, adding it if absent.
func (a *LRUAssertions) Fetch(oid string) {
	value, err := a.LRU.Get(oid, fetchImage)
	if a.NoError(err) && a.IsType(&mediamanager.Image{}, value) {
		a.Equal(oid, value.(*mediamanager.Image).OID)
	}
}

// FetchPresent gets an image that must already be cached.
func (a *LRUAssertions) FetchPresent(oid string) {
	value, err := a.LRU.Get(oid, failFetch)
	if a.NoError(err) && a.IsType(&mediamanager.Image{}, value) {
		a.Equal(oid, value.(*mediamanager.Image).OID)
	}
}

// FetchMissing gets an image that is neither cached nor fetchable.
func (a *LRUAssertions) FetchMissing(oid string) {
	_, err := a.LRU.Get(oid, failFetch)
	a.Equal(mediamanager.ErrNoSuchImage{OID: oid}, err)
}

func (a *LRUAssertions) Has(oid string) {
	value, present := a.LRU.Peek(oid)
	if a.True(present, "%v not cached", oid) {
		a.Equal(oid, value.(*mediamanager.Image).OID)
	}
}

func (a *LRUAssertions) DoesNotHave(oid string) {
	_, present := a.LRU.Peek(oid)
	a.False(present, "%v cached", oid)
}

func TestLRUSimple(t *testing.T) {
	a := NewLRUAssertions(t, 2)
	a.LRU.Put("cat", &mediamanager.Image{OID: "cat"})
	a.Has("cat")
	a.DoesNotHave("dog")
	a.Equal(1, a.LRU.Len())
}

// TestLRUEviction checks that a third item evicts the oldest.
func TestLRUEviction(t *testing.T) {
	a := NewLRUAssertions(t, 2)
	a.Fetch("cat")
	a.Fetch("dog")
	a.Has("cat")
	a.Has("dog")

	a.Fetch("fish")
	a.DoesNotHave("cat")
	a.Has("dog")
	a.Has("fish")
	a.Equal(2, a.LRU.Len())
}

func TestLRUFetchError(t *testing.T) {
	a := NewLRUAssertions(t, 2)
	a.Fetch("cat")
	a.Fetch("dog")

	a.FetchMissing("fish")
	a.Has("cat")
	a.Has("dog")
	a.DoesNotHave("fish")

	a.FetchPresent("cat")
	a.FetchPresent("dog")
}

// TestLRUOrder checks that getting an item protects it from eviction.
func TestLRUOrder(t *testing.T) {
	a := NewLRUAssertions(t, 2)
	a.Fetch("cat")
	a.Fetch("dog")
	a.Fetch("cat")

	a.Fetch("fish")
	a.Has("cat")
	a.DoesNotHave("dog")
	a.Has("fish")
}

func TestLRUPutReplaces(t *testing.T) {
	a := NewLRUAssertions(t, 2)
	a.LRU.Put("cat", &mediamanager.Image{OID: "cat", Name: "old"})
	a.LRU.Put("dog", &mediamanager.Image{OID: "dog"})
	a.LRU.Put("cat", &mediamanager.Image{OID: "cat", Name: "new"})
	a.Equal(2, a.LRU.Len())

	value, _ := a.LRU.Peek("cat")
	a.Equal("new", value.(*mediamanager.Image).Name)

	// the replacement counts as a use
	a.Fetch("fish")
	a.Has("cat")
	a.DoesNotHave("dog")
}

func TestLRURemoval(t *testing.T) {
	a := NewLRUAssertions(t, 2)
	a.Fetch("cat")
	a.LRU.Remove("cat")
	a.DoesNotHave("cat")

	a.LRU.Remove("never-there")

	a.Fetch("cat")
	a.Fetch("dog")
	a.LRU.Remove("dog", "also-never-there")
	a.Fetch("fish")
	a.Has("cat")
	a.DoesNotHave("dog")
	a.Has("fish")
}

func TestLRUPurge(t *testing.T) {
	a := NewLRUAssertions(t, 3)
	a.Fetch("cat")
	a.Fetch("dog")
	a.LRU.Purge()
	a.Equal(0, a.LRU.Len())
	a.DoesNotHave("cat")
	a.Fetch("cat")
	a.Has("cat")
}

// TestLRUStaleFetch checks that a fetch overlapping a removal is not
// saved.
func TestLRUStaleFetch(t *testing.T) {
	a := NewLRUAssertions(t, 2)
	value, err := a.LRU.Get("cat", func(oid string) (interface{}, error) {
		a.LRU.Remove(oid)
		return fetchImage(oid)
	})
	if a.NoError(err) {
		a.Equal("cat", value.(*mediamanager.Image).OID)
	}
	a.DoesNotHave("cat")

	a.Fetch("cat")
	a.Has("cat")
}
