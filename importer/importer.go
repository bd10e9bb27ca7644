// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package importer runs directory-driven import batches on behalf of
// a media manager backend.  The backend supplies a Store that can
// persist batches and images; the importer walks the directory, reads
// each image's header, creates the original and thumbnail variant
// documents, and reports progress as mediamanager.ImportEvent values.
package importer

import (
	"fmt"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
)

// Store is the persistence a backend provides to the importer.
type Store interface {
	// SaveImportBatch writes an import batch unconditionally,
	// returning the stored copy.
	SaveImportBatch(batch *mediamanager.ImportBatch) (*mediamanager.ImportBatch, error)

	// CreateImages writes new image documents, originals or
	// variants, returning the stored copies.
	CreateImages(images []*mediamanager.Image) ([]*mediamanager.Image, error)
}

// Importer runs import batches.
type Importer struct {
	// Store receives the documents the importer creates.  This
	// field is required.
	Store Store

	// Clock defines a time source.  If unset, uses a time source
	// backed by real wall-clock time.
	Clock clock.Clock

	// Concurrency states how many files are read in parallel.
	// If unset, uses runtime.NumCPU().
	Concurrency int

	// GroupSize states how many files are processed together.
	// Group events (import.images.*) fire once per group.  If
	// unset, defaults to 10.
	GroupSize int

	// ThumbnailBox is the edge of the square the thumbnail
	// variant is scaled to fit.  If unset, defaults to 132.
	ThumbnailBox int

	// URLPrefix is prepended to an image's oid to produce its
	// URL.
	URLPrefix string

	// Log receives diagnostics.  If unset, uses the logrus
	// standard logger.
	Log logrus.FieldLogger
}

// setDefaults sets default values for any Importer fields that are
// uninitialized.
func (imp *Importer) setDefaults() {
	if imp.Clock == nil {
		imp.Clock = clock.New()
	}
	if imp.Concurrency == 0 {
		imp.Concurrency = runtime.NumCPU()
	}
	if imp.GroupSize == 0 {
		imp.GroupSize = 10
	}
	if imp.ThumbnailBox == 0 {
		imp.ThumbnailBox = 132
	}
	if imp.Log == nil {
		imp.Log = logrus.StandardLogger()
	}
}

// NewOID creates a fresh document identifier.
func NewOID() string {
	return uuid.NewV4().String()
}

// Start creates a new import batch for dir and starts importing it in
// the background.  The caller must drain the returned channel; it is
// closed after the import.completed event.
func (imp *Importer) Start(dir string, opts mediamanager.ImportOptions) (*mediamanager.ImportBatch, <-chan mediamanager.ImportEvent, error) {
	imp.setDefaults()
	files, err := FindFiles(dir, opts.Recursive)
	if err != nil {
		return nil, nil, err
	}

	now := imp.Clock.Now()
	batch := &mediamanager.ImportBatch{
		OID:            NewOID(),
		AppID:          opts.AppID,
		Path:           dir,
		Status:         mediamanager.ImportInit,
		CreatedAt:      now,
		UpdatedAt:      now,
		NumToImport:    len(files),
		ImagesToImport: files,
	}
	batch, err = imp.Store.SaveImportBatch(batch)
	if err != nil {
		return nil, nil, err
	}

	events := make(chan mediamanager.ImportEvent, 16)
	go imp.run(batch.Copy(), files, events)
	return batch, events, nil
}

// run is the body of an import.  It owns batch.
func (imp *Importer) run(batch *mediamanager.ImportBatch, files []string, events chan<- mediamanager.ImportEvent) {
	defer close(events)
	log := imp.Log.WithFields(logrus.Fields{
		"batch": batch.OID,
		"dir":   batch.Path,
	})

	// events carry copies; the importer keeps changing its own
	emit := func(kind mediamanager.ImportEventKind, img *mediamanager.Image, imgs []*mediamanager.Image) {
		var imgsCopy []*mediamanager.Image
		if imgs != nil {
			imgsCopy = make([]*mediamanager.Image, len(imgs))
			for i, one := range imgs {
				imgsCopy[i] = one.Copy()
			}
		}
		events <- mediamanager.ImportEvent{
			Kind:   kind,
			Batch:  batch.Copy(),
			Image:  img.Copy(),
			Images: imgsCopy,
		}
	}
	save := func() {
		batch.UpdatedAt = imp.Clock.Now()
		saved, err := imp.Store.SaveImportBatch(batch)
		if err != nil {
			log.WithError(err).Error("could not save import batch")
			return
		}
		batch = saved
	}

	batch.Status = mediamanager.ImportStarted
	batch.StartedAt = imp.Clock.Now()
	save()
	emit(mediamanager.ImportStartedEvent, nil, nil)

	for start := 0; start < len(files); start += imp.GroupSize {
		end := start + imp.GroupSize
		if end > len(files) {
			end = len(files)
		}
		created, failed := imp.importGroup(batch, files[start:end], emit, log)
		batch.NumAttempted += end - start
		batch.NumSuccess += len(created)
		batch.NumError += failed
		save()
		if len(created) > 0 {
			emit(mediamanager.ImagesImportedEvent, nil, created)
			for _, img := range created {
				emit(mediamanager.ImageImportedEvent, img, nil)
			}
		}
	}

	batch.Status = mediamanager.ImportCompleted
	batch.CompletedAt = imp.Clock.Now()
	save()
	emit(mediamanager.ImportCompletedEvent, nil, nil)
	log.WithFields(logrus.Fields{
		"success": batch.NumSuccess,
		"error":   batch.NumError,
	}).Info("import completed")
}

// importGroup reads and stores one group of files, returning the
// original images created and the number of files that failed.
func (imp *Importer) importGroup(
	batch *mediamanager.ImportBatch,
	files []string,
	emit func(mediamanager.ImportEventKind, *mediamanager.Image, []*mediamanager.Image),
	log logrus.FieldLogger,
) ([]*mediamanager.Image, int) {
	infos := imp.readAll(files)

	var originals []*mediamanager.Image
	failed := 0
	for _, info := range infos {
		if info.err != nil {
			log.WithError(info.err).Warn("could not read image")
			failed++
			continue
		}
		originals = append(originals, imp.original(batch, info.fileInfo))
	}
	if len(originals) == 0 {
		return nil, failed
	}

	created, err := imp.Store.CreateImages(originals)
	if err != nil {
		log.WithError(err).Error("could not create images")
		return nil, failed + len(originals)
	}
	emit(mediamanager.ImagesCreatedEvent, nil, created)
	for _, img := range created {
		emit(mediamanager.ImageCreatedEvent, img, nil)
	}

	variants := make([]*mediamanager.Image, len(created))
	for i, img := range created {
		variants[i] = imp.thumbnail(img)
	}
	variants, err = imp.Store.CreateImages(variants)
	if err != nil {
		// the originals are still there and still usable
		log.WithError(err).Error("could not create variants")
	} else {
		emit(mediamanager.ImagesVariantCreatedEvent, nil, variants)
		for _, v := range variants {
			emit(mediamanager.ImageVariantCreatedEvent, v, nil)
		}
		byOrig := make(map[string][]*mediamanager.Image)
		for _, v := range variants {
			byOrig[v.OrigID] = append(byOrig[v.OrigID], v)
		}
		for _, img := range created {
			img.Variants = byOrig[img.OID]
		}
	}
	return created, failed
}

type readResult struct {
	fileInfo
	err error
}

// readAll reads a set of files concurrently, returning results in
// the same order as files.
func (imp *Importer) readAll(files []string) []readResult {
	results := make([]readResult, len(files))
	indexes := make(chan int)
	wg := sync.WaitGroup{}
	workers := imp.Concurrency
	if workers > len(files) {
		workers = len(files)
	}
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func() {
			defer wg.Done()
			for i := range indexes {
				info, err := readFile(files[i])
				results[i] = readResult{fileInfo: info, err: err}
			}
		}()
	}
	for i := range files {
		indexes <- i
	}
	close(indexes)
	wg.Wait()
	return results
}

func (imp *Importer) original(batch *mediamanager.ImportBatch, info fileInfo) *mediamanager.Image {
	oid := NewOID()
	now := imp.Clock.Now()
	return &mediamanager.Image{
		OID:           oid,
		Name:          filepath.Base(info.Path),
		Path:          info.Path,
		URL:           imp.URLPrefix + oid,
		Format:        info.Format,
		Geometry:      fmt.Sprintf("%dx%d", info.Width, info.Height),
		Size:          &mediamanager.Size{Width: info.Width, Height: info.Height},
		Filesize:      info.Filesize,
		Checksum:      info.Checksum,
		CreatedAt:     now,
		UpdatedAt:     now,
		TakenAt:       time.Unix(0, info.ModTime).UTC(),
		Tags:          []string{},
		BatchID:       batch.OID,
		Disposition:   mediamanager.OriginalImage,
		ImportRootDir: batch.Path,
		AppID:         batch.AppID,
	}
}

// thumbnail describes the thumbnail variant of an original.  Only
// the document is created here; rendering the pixels is left to the
// image store.
func (imp *Importer) thumbnail(orig *mediamanager.Image) *mediamanager.Image {
	oid := NewOID()
	width, height := 0, 0
	if orig.Size != nil {
		width, height = thumbnailSize(orig.Size.Width, orig.Size.Height, imp.ThumbnailBox)
	}
	now := imp.Clock.Now()
	return &mediamanager.Image{
		OID:         oid,
		Name:        "thumbnail-" + orig.Name,
		URL:         imp.URLPrefix + oid,
		Format:      orig.Format,
		Geometry:    fmt.Sprintf("%dx%d", width, height),
		Size:        &mediamanager.Size{Width: width, Height: height},
		CreatedAt:   now,
		UpdatedAt:   now,
		BatchID:     orig.BatchID,
		OrigID:      orig.OID,
		Disposition: mediamanager.VariantImage,
		AppID:       orig.AppID,
	}
}
