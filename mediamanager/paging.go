// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mediamanager

import (
	"sort"
)

// DefaultPageSize is the page size used when a PageRequest does not
// name one.
const DefaultPageSize = 10

// Cursor is a store-native position in a newest-first listing of
// import batches.  Key is the creation time in nanoseconds and ID
// breaks ties.
type Cursor struct {
	Key int64  `codec:"k" json:"k"`
	ID  string `codec:"i" json:"i"`

	// Backward cursors select the page immediately before
	// (newer than) the position, rather than after it.
	Backward bool `codec:"b,omitempty" json:"b,omitempty"`
}

// CursorFor returns the cursor positioned at an import batch.
func CursorFor(b *ImportBatch) Cursor {
	return Cursor{Key: b.CreatedAt.UnixNano(), ID: b.OID}
}

// before reports whether c sorts strictly before other in
// newest-first order.
func (c Cursor) before(other Cursor) bool {
	if c.Key != other.Key {
		return c.Key > other.Key
	}
	return c.ID > other.ID
}

// PageRequest asks for one page of a listing.
type PageRequest struct {
	// Cursor is the position to page from; nil means the first
	// page.
	Cursor *Cursor

	// PageSize is the maximum number of items returned.
	PageSize int
}

// ImportBatchPage is one page of import batches.
type ImportBatchPage struct {
	Items []*ImportBatch

	// Cursors holds the position of each item in Items.
	Cursors []Cursor

	// Next is the cursor for the following (older) page, or nil
	// if there is none.
	Next *Cursor

	// Previous is the cursor for the preceding (newer) page, or
	// nil if there is none.
	Previous *Cursor
}

// SortNewestFirst sorts import batches by creation time, newest
// first, in the same order cursors use.
func SortNewestFirst(batches []*ImportBatch) {
	sort.SliceStable(batches, func(i, j int) bool {
		return CursorFor(batches[i]).before(CursorFor(batches[j]))
	})
}

// PageImportBatches selects one page out of a complete listing of
// import batches.  The listing must already be in newest-first order
// (see SortNewestFirst).
func PageImportBatches(all []*ImportBatch, req PageRequest) ImportBatchPage {
	size := req.PageSize
	if size <= 0 {
		size = DefaultPageSize
	}

	// start and end are the half-open range of all selected
	start, end := 0, 0
	switch {
	case req.Cursor == nil:
		start = 0
		end = size
	case req.Cursor.Backward:
		// everything strictly before the cursor, take the last
		// size of them
		end = sort.Search(len(all), func(i int) bool {
			return !CursorFor(all[i]).before(*req.Cursor)
		})
		start = end - size
	default:
		// everything strictly after the cursor
		start = sort.Search(len(all), func(i int) bool {
			return req.Cursor.before(CursorFor(all[i]))
		})
		end = start + size
	}
	if start < 0 {
		start = 0
	}
	if end > len(all) {
		end = len(all)
	}
	if start > end {
		start = end
	}

	page := ImportBatchPage{
		Items:   all[start:end],
		Cursors: make([]Cursor, end-start),
	}
	for i, b := range page.Items {
		page.Cursors[i] = CursorFor(b)
	}
	if end > start {
		if end < len(all) {
			next := page.Cursors[len(page.Cursors)-1]
			page.Next = &next
		}
		if start > 0 {
			prev := page.Cursors[0]
			prev.Backward = true
			page.Previous = &prev
		}
	}
	return page
}
