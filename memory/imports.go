// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package memory

import (
	"github.com/diffeo/go-mediamanager/mediamanager"
)

// SaveImportBatch is part of importer.Store.  It writes without a
// revision check.
func (s *memService) SaveImportBatch(batch *mediamanager.ImportBatch) (*mediamanager.ImportBatch, error) {
	s.globalLock()
	defer s.globalUnlock()
	return s.putBatch(batch), nil
}

// putBatch writes an import batch under the global lock and records
// the change.
func (s *memService) putBatch(batch *mediamanager.ImportBatch) *mediamanager.ImportBatch {
	batch = batch.Copy()
	batch.Images = nil
	batch.DocID = batch.OID
	op := mediamanager.DocCreated
	if old, present := s.batches[batch.OID]; present {
		op = mediamanager.DocUpdated
		batch.Rev = nextRev(old.Rev)
	} else {
		batch.Rev = nextRev("")
	}
	s.batches[batch.OID] = batch
	s.record(mediamanager.ImportBatchDocType, op, batch.OID, "", batch.Copy())
	return batch.Copy()
}

func (s *memService) ImportBatchFs(dir string, opts mediamanager.ImportOptions) (*mediamanager.ImportBatch, <-chan mediamanager.ImportEvent, error) {
	return s.importer.Start(dir, opts)
}

// withImages copies a batch and, if requested, attaches its images.
// Must be called under the global lock.
func (s *memService) withImages(batch *mediamanager.ImportBatch, opts mediamanager.ImportBatchOptions) *mediamanager.ImportBatch {
	batch = batch.Copy()
	if opts.IncludeImages {
		filter := mediamanager.ImageFilter{
			TrashState: opts.TrashState,
			BatchID:    batch.OID,
		}
		batch.Images = copyImages(s.sortedImages(filter.Matches))
		for _, img := range batch.Images {
			img.Variants = s.variantsOf(img.OID)
		}
	}
	return batch
}

func (s *memService) ImportBatch(oid string, opts mediamanager.ImportBatchOptions) (*mediamanager.ImportBatch, error) {
	s.globalLock()
	defer s.globalUnlock()

	batch, present := s.batches[oid]
	if !present {
		return nil, mediamanager.ErrNoSuchImportBatch{OID: oid}
	}
	return s.withImages(batch, opts), nil
}

// newestFirst returns every batch, most recently created first.
// Must be called under the global lock.
func (s *memService) newestFirst() []*mediamanager.ImportBatch {
	all := make([]*mediamanager.ImportBatch, 0, len(s.batches))
	for _, batch := range s.batches {
		all = append(all, batch)
	}
	mediamanager.SortNewestFirst(all)
	return all
}

func (s *memService) RecentImportBatches(n int, opts mediamanager.ImportBatchOptions) ([]*mediamanager.ImportBatch, error) {
	s.globalLock()
	defer s.globalUnlock()

	all := s.newestFirst()
	if n >= 0 && n < len(all) {
		all = all[:n]
	}
	result := make([]*mediamanager.ImportBatch, len(all))
	for i, batch := range all {
		result[i] = s.withImages(batch, opts)
	}
	return result, nil
}

func (s *memService) ImportBatches(req mediamanager.PageRequest) (mediamanager.ImportBatchPage, error) {
	s.globalLock()
	defer s.globalUnlock()

	page := mediamanager.PageImportBatches(s.newestFirst(), req)
	items := make([]*mediamanager.ImportBatch, len(page.Items))
	for i, batch := range page.Items {
		items[i] = batch.Copy()
	}
	page.Items = items
	return page, nil
}

func (s *memService) UpdateImportBatch(patch mediamanager.Doc) (*mediamanager.ImportBatch, error) {
	oid := patch.String("oid")
	if oid == "" {
		return nil, mediamanager.ErrNoOID
	}

	s.globalLock()
	defer s.globalUnlock()

	batch, present := s.batches[oid]
	if !present {
		return nil, mediamanager.ErrNoSuchImportBatch{OID: oid}
	}
	updated, err := mediamanager.PatchImportBatch(batch, patch)
	if err != nil {
		return nil, err
	}
	updated.UpdatedAt = s.clock.Now()
	return s.putBatch(updated), nil
}
