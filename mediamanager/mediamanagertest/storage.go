// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mediamanagertest

import (
	"time"

	"github.com/diffeo/go-mediamanager/mediamanager"
)

// TestSync checks a synchronization session's lifecycle.
func (s *Suite) TestSync() {
	s.saveImage("a.jpg")

	syncer, err := s.Service.Sync()
	s.Require().NoError(err)
	state, err := s.Service.SyncState(syncer.ID())
	if s.NoError(err) {
		s.Equal(mediamanager.SyncInit, state.Status)
	}

	var kinds []mediamanager.SyncEventKind
	var last mediamanager.SyncEvent
	for ev := range syncer.Run() {
		kinds = append(kinds, ev.Kind)
		last = ev
	}
	if s.NotEmpty(kinds) {
		s.Equal(mediamanager.SyncStartedEvent, kinds[0])
		s.Equal(mediamanager.SyncCompletedEvent, kinds[len(kinds)-1])
	}
	s.Equal(mediamanager.SyncCompleted, last.State.Status)

	state, err = s.Service.SyncState(syncer.ID())
	if s.NoError(err) {
		s.Equal(mediamanager.SyncCompleted, state.Status)
		s.True(state.DocsRead >= 1)
	}

	// a second run does nothing
	for range syncer.Run() {
		s.Fail("second run produced an event")
	}

	_, err = s.Service.SyncState("missing")
	s.Equal(mediamanager.ErrNoSuchSync{ID: "missing"}, err)
}

// nextChange waits a bounded time for a change on a feed.
func (s *Suite) nextChange(changes <-chan mediamanager.DocChange) (mediamanager.DocChange, bool) {
	select {
	case change, ok := <-changes:
		return change, ok
	case <-time.After(5 * time.Second):
		s.Fail("timed out waiting for a change")
		return mediamanager.DocChange{}, false
	}
}

// TestChangesFeed checks that mutations show up on a changes feed.
func (s *Suite) TestChangesFeed() {
	before := s.saveImage("before.jpg")

	feed, err := s.Service.ChangesFeed(mediamanager.ChangesFeedOptions{})
	s.Require().NoError(err)
	defer feed.Close()
	changes := feed.Listen()

	img := s.saveImage("a.jpg")
	change, ok := s.nextChange(changes)
	if s.True(ok) {
		s.Equal(img.OID, change.ID)
		s.Equal(mediamanager.DocCreated, change.Op)
		s.Equal("doc.image.created", change.Event())
		s.True(change.Seq > feed.Since())
	}

	_, err = s.Service.SendToTrash([]string{before.OID})
	s.Require().NoError(err)
	change, ok = s.nextChange(changes)
	if s.True(ok) {
		s.Equal(before.OID, change.ID)
		s.Equal("doc.image.updated", change.Event())
	}

	_, err = s.Service.DeleteImages([]string{img.OID})
	s.Require().NoError(err)
	change, ok = s.nextChange(changes)
	if s.True(ok) {
		s.Equal(img.OID, change.ID)
		s.Equal("doc.image.deleted", change.Event())
	}

	s.NoError(feed.Close())
	for range changes {
		// drain anything buffered until the channel closes
	}
}

// TestChangesFeedVariantDelete checks that deleting an image with
// variants reports the variants' originals.
func (s *Suite) TestChangesFeedVariantDelete() {
	batch, _ := s.runImport(s.makeImportDir(1), mediamanager.ImportOptions{})
	full, err := s.Service.ImportBatch(batch.OID, mediamanager.ImportBatchOptions{IncludeImages: true})
	s.Require().NoError(err)
	s.Require().Len(full.Images, 1)
	orig := full.Images[0]
	s.Require().Len(orig.Variants, 1)

	feed, err := s.Service.ChangesFeed(mediamanager.ChangesFeedOptions{})
	s.Require().NoError(err)
	defer feed.Close()
	changes := feed.Listen()

	_, err = s.Service.DeleteImages([]string{orig.OID})
	s.Require().NoError(err)

	seen := make(map[string]mediamanager.DocChange)
	for len(seen) < 2 {
		change, ok := s.nextChange(changes)
		if !ok {
			break
		}
		seen[change.ID] = change
	}
	if variant, ok := seen[orig.Variants[0].OID]; s.True(ok) {
		s.Equal(mediamanager.DocDeleted, variant.Op)
		s.Equal(orig.OID, variant.OrigID)
	}
	if original, ok := seen[orig.OID]; s.True(ok) {
		s.Equal(mediamanager.DocDeleted, original.Op)
		s.Equal("", original.OrigID)
	}

	doc, err := s.Service.Document(orig.OID)
	s.NoError(err)
	s.Nil(doc)
}

// TestChangesFeedAppFilter checks filtering a feed by application.
func (s *Suite) TestChangesFeedAppFilter() {
	feed, err := s.Service.ChangesFeed(mediamanager.ChangesFeedOptions{AppID: "mine"})
	s.Require().NoError(err)
	defer feed.Close()
	changes := feed.Listen()

	s.saveImage("theirs.jpg")
	mine, err := s.Service.SaveImage(&mediamanager.Image{Name: "mine.jpg", AppID: "mine"})
	s.Require().NoError(err)

	change, ok := s.nextChange(changes)
	if s.True(ok) {
		s.Equal(mine.OID, change.ID)
	}
}
