// Copyright 2015-2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package memory provides an in-process, in-memory implementation of
// a media manager backend.  There is no persistence, nor is there any
// automatic sharing.  The entire system is behind a single global
// semaphore to protect against concurrent updates.
//
// This is mostly intended as a simple reference implementation that
// can be used for testing, including in-process testing of
// higher-level components such as the REST server.  It is generally
// tuned for correctness, not performance or scalability.
package memory

import (
	"strconv"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-mediamanager/importer"
	"github.com/diffeo/go-mediamanager/mediamanager"
)

// New creates a new media manager backend that operates purely in
// memory.
func New() mediamanager.Service {
	return NewWithClock(clock.New())
}

// NewWithClock creates a new in-memory backend with an alternate
// time source.  In particular, clock.NewMock() creates a mock time
// source whose time only advances when explicitly requested.
func NewWithClock(clk clock.Clock) mediamanager.Service {
	s := &memService{
		clock:   clk,
		images:  make(map[string]*storedImage),
		batches: make(map[string]*mediamanager.ImportBatch),
		syncs:   make(map[string]*mediamanager.SyncState),
		changed: make(chan struct{}),
	}
	s.importer = &importer.Importer{
		Store:     s,
		Clock:     clk,
		URLPrefix: "/media/",
	}
	return s
}

// storedImage is an image plus its position in insertion order.
type storedImage struct {
	image *mediamanager.Image
	order int64
}

type memService struct {
	sem      sync.Mutex
	clock    clock.Clock
	importer *importer.Importer

	// images holds originals and variants alike, by oid.
	images map[string]*storedImage

	// batches holds import batches by oid.
	batches map[string]*mediamanager.ImportBatch

	// syncs holds synchronization session states by id.
	syncs map[string]*mediamanager.SyncState

	// nextOrder numbers images in insertion order.
	nextOrder int64

	// seq is the update sequence of the most recent change;
	// changes holds every change ever made.
	seq     int64
	changes []mediamanager.DocChange

	// changed is closed and replaced every time a change is
	// recorded, waking any listening changes feeds.
	changed chan struct{}
}

// globalLock locks the service.  Pair this with globalUnlock, as
//
//     s.globalLock()
//     defer s.globalUnlock()
func (s *memService) globalLock() {
	s.sem.Lock()
}

// globalUnlock unlocks the service.
func (s *memService) globalUnlock() {
	s.sem.Unlock()
}

// nextRev produces the revision that follows rev.  Revisions are
// "N" for increasing N.
func nextRev(rev string) string {
	n, _ := strconv.Atoi(rev)
	return strconv.Itoa(n + 1)
}

// record appends a change to the change log and wakes listeners.
// Must be called under the global lock.
func (s *memService) record(docType string, op mediamanager.DocOp, oid, origID string, doc mediamanager.Document) {
	s.seq++
	s.changes = append(s.changes, mediamanager.DocChange{
		Seq:     s.seq,
		DocType: docType,
		Op:      op,
		ID:      oid,
		OrigID:  origID,
		Doc:     doc,
	})
	close(s.changed)
	s.changed = make(chan struct{})
}

func (s *memService) Document(oid string) (mediamanager.Document, error) {
	s.globalLock()
	defer s.globalUnlock()

	if stored, present := s.images[oid]; present {
		return stored.image.Copy(), nil
	}
	if batch, present := s.batches[oid]; present {
		return batch.Copy(), nil
	}
	return nil, nil
}
