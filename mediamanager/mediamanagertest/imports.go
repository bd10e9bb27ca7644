// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mediamanagertest

import (
	"github.com/diffeo/go-mediamanager/mediamanager"
)

// TestImportNoFiles checks that importing an empty directory fails.
func (s *Suite) TestImportNoFiles() {
	dir := s.makeImportDir(0)
	batch, events, err := s.Service.ImportBatchFs(dir, mediamanager.ImportOptions{})
	s.Equal(mediamanager.ErrNoFilesFound{Dir: dir}, err)
	s.Nil(batch)
	s.Nil(events)
}

// TestImportLifecycle checks the events and final state of a
// successful import.
func (s *Suite) TestImportLifecycle() {
	dir := s.makeImportDir(3)
	batch, events := s.runImport(dir, mediamanager.ImportOptions{AppID: "app"})
	s.Equal(mediamanager.ImportInit, batch.Status)
	s.Equal(dir, batch.Path)
	s.Equal(3, batch.NumToImport)

	if s.NotEmpty(events) {
		s.Equal(mediamanager.ImportStartedEvent, events[0].Kind)
		s.Equal(mediamanager.ImportCompletedEvent, events[len(events)-1].Kind)
	}
	counts := make(map[mediamanager.ImportEventKind]int)
	for _, ev := range events {
		counts[ev.Kind]++
		if ev.Kind.PerImage() {
			s.NotNil(ev.Image)
		}
	}
	s.Equal(3, counts[mediamanager.ImageCreatedEvent])
	s.Equal(3, counts[mediamanager.ImageVariantCreatedEvent])
	s.Equal(3, counts[mediamanager.ImageImportedEvent])

	final, err := s.Service.ImportBatch(batch.OID, mediamanager.ImportBatchOptions{IncludeImages: true})
	if !s.NoError(err) {
		return
	}
	s.Equal(mediamanager.ImportCompleted, final.Status)
	s.Equal(3, final.NumAttempted)
	s.Equal(3, final.NumSuccess)
	s.Equal(0, final.NumError)
	s.Equal("app", final.AppID)
	if s.Len(final.Images, 3) {
		s.Equal("img0.png", final.Images[0].Name)
		s.Equal("img2.png", final.Images[2].Name)
		s.Equal("10x4", final.Images[2].Geometry)
		s.Len(final.Images[0].Variants, 1)
	}

	// variants are not originals
	images, err := s.Service.Images(mediamanager.ImageFilter{})
	if s.NoError(err) {
		s.Len(images, 3)
	}

	_, err = s.Service.ImportBatch("missing", mediamanager.ImportBatchOptions{})
	s.Equal(mediamanager.ErrNoSuchImportBatch{OID: "missing"}, err)
}

// TestImportBatchTrashFilter checks that a batch's images can be
// filtered by trash state.
func (s *Suite) TestImportBatchTrashFilter() {
	batch, _ := s.runImport(s.makeImportDir(2), mediamanager.ImportOptions{})
	full, err := s.Service.ImportBatch(batch.OID, mediamanager.ImportBatchOptions{IncludeImages: true})
	s.Require().NoError(err)
	s.Require().Len(full.Images, 2)
	_, err = s.Service.SendToTrash([]string{full.Images[0].OID})
	s.Require().NoError(err)

	for _, tc := range []struct {
		state mediamanager.TrashState
		count int
	}{
		{mediamanager.TrashOut, 1},
		{mediamanager.TrashIn, 1},
		{mediamanager.TrashAny, 2},
	} {
		b, err := s.Service.ImportBatch(batch.OID, mediamanager.ImportBatchOptions{
			IncludeImages: true,
			TrashState:    tc.state,
		})
		if s.NoError(err) {
			s.Len(b.Images, tc.count, "%v", tc.state)
		}
	}
}

// TestRecentAndPaged checks both ways of listing import batches.
func (s *Suite) TestRecentAndPaged() {
	var created []string
	for i := 0; i < 5; i++ {
		batch, _ := s.runImport(s.makeImportDir(1), mediamanager.ImportOptions{})
		created = append([]string{batch.OID}, created...)
	}

	recent, err := s.Service.RecentImportBatches(3, mediamanager.ImportBatchOptions{})
	if s.NoError(err) && s.Len(recent, 3) {
		s.Equal(created[0], recent[0].OID)
		s.Equal(created[2], recent[2].OID)
	}

	page, err := s.Service.ImportBatches(mediamanager.PageRequest{PageSize: 2})
	if !s.NoError(err) {
		return
	}
	if s.Len(page.Items, 2) {
		s.Equal(created[0], page.Items[0].OID)
	}
	s.Nil(page.Previous)
	s.Require().NotNil(page.Next)

	page, err = s.Service.ImportBatches(mediamanager.PageRequest{Cursor: page.Next, PageSize: 2})
	s.Require().NoError(err)
	if s.Len(page.Items, 2) {
		s.Equal(created[2], page.Items[0].OID)
		s.Equal(created[3], page.Items[1].OID)
	}
	s.Require().NotNil(page.Previous)
	s.Require().NotNil(page.Next)

	last, err := s.Service.ImportBatches(mediamanager.PageRequest{Cursor: page.Next, PageSize: 2})
	if s.NoError(err) && s.Len(last.Items, 1) {
		s.Equal(created[4], last.Items[0].OID)
		s.Nil(last.Next)
	}

	first, err := s.Service.ImportBatches(mediamanager.PageRequest{Cursor: page.Previous, PageSize: 2})
	if s.NoError(err) && s.Len(first.Items, 2) {
		s.Equal(created[0], first.Items[0].OID)
		s.Nil(first.Previous)
	}
}

// TestUpdateImportBatch checks patching an import batch.
func (s *Suite) TestUpdateImportBatch() {
	batch, _ := s.runImport(s.makeImportDir(1), mediamanager.ImportOptions{})

	updated, err := s.Service.UpdateImportBatch(mediamanager.Doc{
		"oid":    batch.OID,
		"status": "aborted",
		"app_id": "other",
	})
	if s.NoError(err) {
		s.Equal(mediamanager.ImportAborted, updated.Status)
		s.Equal("other", updated.AppID)
		s.Equal(batch.Path, updated.Path)
	}

	_, err = s.Service.UpdateImportBatch(mediamanager.Doc{"status": "COMPLETED"})
	s.Equal(mediamanager.ErrNoOID, err)

	_, err = s.Service.UpdateImportBatch(mediamanager.Doc{"oid": "missing"})
	s.Equal(mediamanager.ErrNoSuchImportBatch{OID: "missing"}, err)

	_, err = s.Service.UpdateImportBatch(mediamanager.Doc{"oid": batch.OID, "status": "bogus"})
	s.IsType(mediamanager.ErrInvalidAttribute{}, err)

	_, err = s.Service.UpdateImportBatch(mediamanager.Doc{"oid": batch.OID, "_rev": "stale"})
	s.Equal(mediamanager.ErrConflict, err)
}
