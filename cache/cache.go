// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package cache provides oid-based caching of media manager
// documents.  The cache wraps some other backend.  Most methods
// simply pass through, but fetching a single image or import batch by
// oid will return a cached copy if one is available.
//
// Consistency
//
// Every mutation made through the cache invalidates the documents it
// touches before returning, so a caller always reads its own writes.
// Imports invalidate each image as its progress events pass through.
// Changes made by other writers to a shared store (another process
// on the same PostgreSQL database, say) are seen through the
// backend's changes feed, and so become visible shortly after they
// happen rather than immediately.
//
// Caveats
//
// Only lookups by oid are cached.  Listings (Images, tag queries,
// RecentImportBatches and so on) always go to the backend.  An import
// batch fetched with IncludeImages is never cached, since its image
// list changes whenever an image is trashed.
package cache

import (
	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/sirupsen/logrus"
)

// DefaultSize is the number of documents of each type kept.
const DefaultSize = 1024

// Cache is a caching mediamanager.Service.
type Cache struct {
	backend mediamanager.Service
	images  *lru
	batches *lru
	feed    mediamanager.ChangesFeed
	log     logrus.FieldLogger
}

// New creates a new caching backend, wrapping some other backend.
// It subscribes to the backend's changes feed; call Close to stop
// it.
func New(backend mediamanager.Service, log logrus.FieldLogger) *Cache {
	return NewWithSize(backend, DefaultSize, log)
}

// NewWithSize creates a new caching backend holding up to size images
// and size import batches.
func NewWithSize(backend mediamanager.Service, size int, log logrus.FieldLogger) *Cache {
	if log == nil {
		log = logrus.StandardLogger()
	}
	cache := &Cache{
		backend: backend,
		images:  newLRU(size),
		batches: newLRU(size),
		log:     log,
	}
	feed, err := backend.ChangesFeed(mediamanager.ChangesFeedOptions{})
	if err != nil {
		log.WithError(err).Warn("no changes feed, external changes will not invalidate the cache")
		return cache
	}
	cache.feed = feed
	go cache.follow(feed.Listen())
	return cache
}

// follow invalidates documents named in the changes feed until it
// closes.
func (cache *Cache) follow(changes <-chan mediamanager.DocChange) {
	for change := range changes {
		switch change.DocType {
		case mediamanager.ImportBatchDocType:
			cache.batches.Remove(change.ID)
		default:
			cache.invalidateImages(change.ID, change.OrigID)
		}
	}
}

// Close stops following the backend's changes feed.  The cache stays
// usable, but only invalidates on its own writes.
func (cache *Cache) Close() error {
	if cache.feed == nil {
		return nil
	}
	return cache.feed.Close()
}

func imageKey(oid string, variants bool) string {
	if variants {
		return oid + "+variants"
	}
	return oid
}

// invalidateImages forgets the named images in both their cached
// shapes.  Empty oids are ignored.
func (cache *Cache) invalidateImages(oids ...string) {
	for _, oid := range oids {
		if oid != "" {
			cache.images.Remove(imageKey(oid, false), imageKey(oid, true))
		}
	}
}

// invalidateResults forgets every image in a mutation's result, and
// the originals of any variants among them.
func (cache *Cache) invalidateResults(images []*mediamanager.Image) {
	for _, img := range images {
		cache.invalidateImages(img.OID, img.OrigID)
		for _, v := range img.Variants {
			cache.invalidateImages(v.OID)
		}
	}
}

func (cache *Cache) Images(filter mediamanager.ImageFilter) ([]*mediamanager.Image, error) {
	return cache.backend.Images(filter)
}

func (cache *Cache) Image(oid string, opts mediamanager.ImageOptions) (*mediamanager.Image, error) {
	value, err := cache.images.Get(imageKey(oid, opts.IncludeVariants), func(string) (interface{}, error) {
		return cache.backend.Image(oid, opts)
	})
	if err != nil {
		return nil, err
	}
	return value.(*mediamanager.Image).Copy(), nil
}

func (cache *Cache) SaveImage(img *mediamanager.Image) (*mediamanager.Image, error) {
	saved, err := cache.backend.SaveImage(img)
	if err == nil {
		cache.invalidateImages(saved.OID, saved.OrigID)
	}
	return saved, err
}

func (cache *Cache) DeleteImages(oids []string) ([]*mediamanager.Image, error) {
	images, err := cache.backend.DeleteImages(oids)
	cache.invalidateImages(oids...)
	cache.invalidateResults(images)
	return images, err
}

func (cache *Cache) SendToTrash(oids []string) ([]*mediamanager.Image, error) {
	images, err := cache.backend.SendToTrash(oids)
	cache.invalidateImages(oids...)
	return images, err
}

func (cache *Cache) RestoreFromTrash(oids []string) ([]*mediamanager.Image, error) {
	images, err := cache.backend.RestoreFromTrash(oids)
	cache.invalidateImages(oids...)
	return images, err
}

func (cache *Cache) FindImagesByTrashState(state mediamanager.TrashState) ([]*mediamanager.Image, error) {
	return cache.backend.FindImagesByTrashState(state)
}

// EmptyTrash deletes images, but only reports the originals, so it
// drops every cached image.
func (cache *Cache) EmptyTrash() ([]string, error) {
	oids, err := cache.backend.EmptyTrash()
	cache.images.Purge()
	return oids, err
}

func (cache *Cache) Tags() ([]string, error) {
	return cache.backend.Tags()
}

func (cache *Cache) ImagesTags(oids []string) ([]string, error) {
	return cache.backend.ImagesTags(oids)
}

func (cache *Cache) AddTags(oids []string, tags []string) error {
	err := cache.backend.AddTags(oids, tags)
	cache.invalidateImages(oids...)
	return err
}

func (cache *Cache) ReplaceTags(oids []string, tags []string) error {
	err := cache.backend.ReplaceTags(oids, tags)
	cache.invalidateImages(oids...)
	return err
}

func (cache *Cache) RemoveTags(oids []string, tags []string) error {
	err := cache.backend.RemoveTags(oids, tags)
	cache.invalidateImages(oids...)
	return err
}

// ImportBatchFs starts an import and relays its events, invalidating
// each image and the batch as events arrive.
func (cache *Cache) ImportBatchFs(dir string, opts mediamanager.ImportOptions) (*mediamanager.ImportBatch, <-chan mediamanager.ImportEvent, error) {
	batch, events, err := cache.backend.ImportBatchFs(dir, opts)
	if err != nil {
		return batch, events, err
	}
	out := make(chan mediamanager.ImportEvent)
	go func() {
		defer close(out)
		for ev := range events {
			if ev.Image != nil {
				cache.invalidateImages(ev.Image.OID, ev.Image.OrigID)
			}
			cache.invalidateResults(ev.Images)
			if ev.Batch != nil {
				cache.batches.Remove(ev.Batch.OID)
			}
			out <- ev
		}
	}()
	return batch, out, nil
}

func (cache *Cache) ImportBatch(oid string, opts mediamanager.ImportBatchOptions) (*mediamanager.ImportBatch, error) {
	if opts.IncludeImages {
		return cache.backend.ImportBatch(oid, opts)
	}
	value, err := cache.batches.Get(oid, func(string) (interface{}, error) {
		return cache.backend.ImportBatch(oid, opts)
	})
	if err != nil {
		return nil, err
	}
	return value.(*mediamanager.ImportBatch).Copy(), nil
}

func (cache *Cache) RecentImportBatches(n int, opts mediamanager.ImportBatchOptions) ([]*mediamanager.ImportBatch, error) {
	return cache.backend.RecentImportBatches(n, opts)
}

func (cache *Cache) ImportBatches(req mediamanager.PageRequest) (mediamanager.ImportBatchPage, error) {
	return cache.backend.ImportBatches(req)
}

func (cache *Cache) UpdateImportBatch(patch mediamanager.Doc) (*mediamanager.ImportBatch, error) {
	oid := patch.String("oid")
	batch, err := cache.backend.UpdateImportBatch(patch)
	cache.batches.Remove(oid)
	return batch, err
}

func (cache *Cache) Sync() (mediamanager.Synchronizer, error) {
	return cache.backend.Sync()
}

func (cache *Cache) SyncState(id string) (*mediamanager.SyncState, error) {
	return cache.backend.SyncState(id)
}

func (cache *Cache) ChangesFeed(opts mediamanager.ChangesFeedOptions) (mediamanager.ChangesFeed, error) {
	return cache.backend.ChangesFeed(opts)
}

func (cache *Cache) Document(oid string) (mediamanager.Document, error) {
	return cache.backend.Document(oid)
}
