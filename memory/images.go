// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package memory

import (
	"sort"

	"github.com/diffeo/go-mediamanager/importer"
	"github.com/diffeo/go-mediamanager/mediamanager"
)

// sortedImages returns the stored images matching a predicate in
// insertion order.  Must be called under the global lock.
func (s *memService) sortedImages(pred func(*mediamanager.Image) bool) []*storedImage {
	var result []*storedImage
	for _, stored := range s.images {
		if pred(stored.image) {
			result = append(result, stored)
		}
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].order < result[j].order
	})
	return result
}

// copyImages copies the images out of a list of stored images.
func copyImages(stored []*storedImage) []*mediamanager.Image {
	result := make([]*mediamanager.Image, len(stored))
	for i, s := range stored {
		result[i] = s.image.Copy()
	}
	return result
}

// variantsOf returns copies of the variants of one original.  Must
// be called under the global lock.
func (s *memService) variantsOf(oid string) []*mediamanager.Image {
	return copyImages(s.sortedImages(func(img *mediamanager.Image) bool {
		return img.OrigID == oid
	}))
}

func (s *memService) Images(filter mediamanager.ImageFilter) ([]*mediamanager.Image, error) {
	s.globalLock()
	defer s.globalUnlock()

	images := copyImages(s.sortedImages(filter.Matches))
	for _, img := range images {
		img.Variants = s.variantsOf(img.OID)
	}
	return images, nil
}

func (s *memService) Image(oid string, opts mediamanager.ImageOptions) (*mediamanager.Image, error) {
	s.globalLock()
	defer s.globalUnlock()

	stored, present := s.images[oid]
	if !present {
		return nil, mediamanager.ErrNoSuchImage{OID: oid}
	}
	img := stored.image.Copy()
	if opts.IncludeVariants {
		img.Variants = s.variantsOf(oid)
	}
	return img, nil
}

// put writes one image under the global lock, checking revisions,
// and records the change.
func (s *memService) put(img *mediamanager.Image, checkRev bool) (*mediamanager.Image, error) {
	now := s.clock.Now()
	img = img.Copy()
	img.Variants = nil
	op := mediamanager.DocUpdated
	if img.OID == "" {
		img.OID = importer.NewOID()
	}
	stored, present := s.images[img.OID]
	if present {
		if checkRev && img.Rev != "" && img.Rev != stored.image.Rev {
			return nil, mediamanager.ErrConflict
		}
		img.Rev = nextRev(stored.image.Rev)
		img.CreatedAt = stored.image.CreatedAt
	} else {
		op = mediamanager.DocCreated
		img.Rev = nextRev("")
		if img.CreatedAt.IsZero() {
			img.CreatedAt = now
		}
		s.nextOrder++
		stored = &storedImage{order: s.nextOrder}
		s.images[img.OID] = stored
	}
	if img.Disposition == "" {
		img.Disposition = mediamanager.OriginalImage
	}
	if img.Disposition == mediamanager.OriginalImage && img.Tags == nil {
		img.Tags = []string{}
	}
	if img.Name == "" {
		img.Name = mediamanager.NameFromPath(img.Path)
	}
	img.DocID = img.OID
	img.UpdatedAt = now
	stored.image = img
	s.record(mediamanager.ImageDocType, op, img.OID, img.OrigID, img.Copy())
	return img.Copy(), nil
}

func (s *memService) SaveImage(img *mediamanager.Image) (*mediamanager.Image, error) {
	s.globalLock()
	defer s.globalUnlock()
	return s.put(img, true)
}

// CreateImages is part of importer.Store.
func (s *memService) CreateImages(imgs []*mediamanager.Image) ([]*mediamanager.Image, error) {
	s.globalLock()
	defer s.globalUnlock()

	result := make([]*mediamanager.Image, len(imgs))
	for i, img := range imgs {
		saved, err := s.put(img, false)
		if err != nil {
			return nil, err
		}
		result[i] = saved
	}
	return result, nil
}

// remove deletes one image and its variants under the global lock.
// Returns nil if the image does not exist.
func (s *memService) remove(oid string) *mediamanager.Image {
	stored, present := s.images[oid]
	if !present {
		return nil
	}
	for _, v := range s.variantsOf(oid) {
		delete(s.images, v.OID)
		s.record(mediamanager.ImageDocType, mediamanager.DocDeleted, v.OID, v.OrigID,
			mediamanager.Doc{"oid": v.OID, "orig_id": v.OrigID, "app_id": v.AppID})
	}
	delete(s.images, oid)
	img := stored.image
	s.record(mediamanager.ImageDocType, mediamanager.DocDeleted, img.OID, img.OrigID,
		mediamanager.Doc{"oid": img.OID, "app_id": img.AppID})
	return img.Copy()
}

func (s *memService) DeleteImages(oids []string) ([]*mediamanager.Image, error) {
	s.globalLock()
	defer s.globalUnlock()

	result := []*mediamanager.Image{}
	for _, oid := range oids {
		if img := s.remove(oid); img != nil {
			result = append(result, img)
		}
	}
	return result, nil
}

// setTrash changes the trash flag on a set of images.
func (s *memService) setTrash(oids []string, inTrash bool) ([]*mediamanager.Image, error) {
	s.globalLock()
	defer s.globalUnlock()

	for _, oid := range oids {
		if _, present := s.images[oid]; !present {
			return nil, mediamanager.ErrNoSuchImage{OID: oid}
		}
	}
	result := make([]*mediamanager.Image, 0, len(oids))
	for _, oid := range oids {
		img := s.images[oid].image.Copy()
		img.InTrash = inTrash
		saved, err := s.put(img, false)
		if err != nil {
			return nil, err
		}
		result = append(result, saved)
	}
	return result, nil
}

func (s *memService) SendToTrash(oids []string) ([]*mediamanager.Image, error) {
	return s.setTrash(oids, true)
}

func (s *memService) RestoreFromTrash(oids []string) ([]*mediamanager.Image, error) {
	return s.setTrash(oids, false)
}

func (s *memService) FindImagesByTrashState(state mediamanager.TrashState) ([]*mediamanager.Image, error) {
	return s.Images(mediamanager.ImageFilter{TrashState: state})
}

func (s *memService) EmptyTrash() ([]string, error) {
	s.globalLock()
	defer s.globalUnlock()

	filter := mediamanager.ImageFilter{TrashState: mediamanager.TrashIn}
	oids := []string{}
	for _, stored := range s.sortedImages(filter.Matches) {
		oids = append(oids, stored.image.OID)
	}
	for _, oid := range oids {
		s.remove(oid)
	}
	return oids, nil
}

// tagUnion collects the sorted distinct tags of some images.
func tagUnion(images []*mediamanager.Image) []string {
	seen := make(map[string]bool)
	result := []string{}
	for _, img := range images {
		for _, tag := range img.Tags {
			if !seen[tag] {
				seen[tag] = true
				result = append(result, tag)
			}
		}
	}
	sort.Strings(result)
	return result
}

func (s *memService) Tags() ([]string, error) {
	s.globalLock()
	defer s.globalUnlock()

	var images []*mediamanager.Image
	for _, stored := range s.images {
		images = append(images, stored.image)
	}
	return tagUnion(images), nil
}

func (s *memService) ImagesTags(oids []string) ([]string, error) {
	s.globalLock()
	defer s.globalUnlock()

	var images []*mediamanager.Image
	for _, oid := range oids {
		if stored, present := s.images[oid]; present {
			images = append(images, stored.image)
		}
	}
	return tagUnion(images), nil
}

// retag applies a tag transformation to each named image.
func (s *memService) retag(oids []string, change func([]string) []string) error {
	s.globalLock()
	defer s.globalUnlock()

	for _, oid := range oids {
		if _, present := s.images[oid]; !present {
			return mediamanager.ErrNoSuchImage{OID: oid}
		}
	}
	for _, oid := range oids {
		img := s.images[oid].image.Copy()
		img.Tags = change(img.Tags)
		if _, err := s.put(img, false); err != nil {
			return err
		}
	}
	return nil
}

func (s *memService) AddTags(oids []string, tags []string) error {
	return s.retag(oids, func(old []string) []string {
		return mediamanager.AddTags(old, tags)
	})
}

func (s *memService) ReplaceTags(oids []string, tags []string) error {
	return s.retag(oids, func([]string) []string {
		return mediamanager.AddTags(nil, tags)
	})
}

func (s *memService) RemoveTags(oids []string, tags []string) error {
	return s.retag(oids, func(old []string) []string {
		return mediamanager.RemoveTags(old, tags)
	})
}
