// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package mediamanager defines the abstract API to a media manager
// backend.
//
// The backend combines two collaborators.  An ImageService owns image
// documents, their tags and trash state, and directory-driven import
// batches.  A Storage owns the document store underneath: it can run
// a synchronization pass and publish a feed of document changes.  A
// Service is both.
//
// Documents come in a small number of shapes.  Image and ImportBatch
// are the canonical records; Doc is a loosely-shaped document used
// for legacy records, patches, and change-feed payloads.  All of them
// implement Document, which reports whether a named field is present
// and what its value is.
//
// Long-running work (imports, syncs, change feeds) reports progress
// over typed event channels.  Each event kind knows whether it fires
// exactly once or zero or more times; see ImportEventKind.Once() and
// SyncEventKind.Once().  Channels are closed when the work finishes.
//
// Identifiers passed to and returned from this package are raw
// backend identifiers.  The "$"-prefixed opaque form is a property of
// the external REST representation and is handled in the restdata
// package.
package mediamanager

import "time"

// ImageService is the image and import-batch half of a media manager
// backend.
type ImageService interface {
	// Images returns every original image matching filter.  Images
	// are returned in the backend's natural order, oldest first.
	Images(filter ImageFilter) ([]*Image, error)

	// Image retrieves a single image by its oid.  If the image
	// does not exist (or has been deleted) returns ErrNoSuchImage.
	Image(oid string, opts ImageOptions) (*Image, error)

	// SaveImage saves an image document.  If img.Rev is non-empty
	// and does not match the stored revision, returns ErrConflict.
	// The returned image carries its new revision.
	SaveImage(img *Image) (*Image, error)

	// DeleteImages permanently deletes the named images and their
	// variants.  Returns the images that were deleted.
	DeleteImages(oids []string) ([]*Image, error)

	// SendToTrash marks the named images as in the trash.
	SendToTrash(oids []string) ([]*Image, error)

	// RestoreFromTrash removes the named images from the trash.
	RestoreFromTrash(oids []string) ([]*Image, error)

	// FindImagesByTrashState returns the images matching a trash
	// state, without any other filtering.
	FindImagesByTrashState(state TrashState) ([]*Image, error)

	// EmptyTrash permanently deletes every image in the trash,
	// returning the oids of the deleted images.
	EmptyTrash() ([]string, error)

	// Tags returns every distinct tag in use, sorted.
	Tags() ([]string, error)

	// ImagesTags returns the sorted union of tags across the named
	// images.
	ImagesTags(oids []string) ([]string, error)

	// AddTags adds tags to each named image.
	AddTags(oids []string, tags []string) error

	// ReplaceTags replaces the tag set of each named image.
	ReplaceTags(oids []string, tags []string) error

	// RemoveTags removes tags from each named image.
	RemoveTags(oids []string, tags []string) error

	// ImportBatchFs starts importing every image file under dir.
	// The returned batch is in its initial state; the import
	// itself runs asynchronously and reports progress on the
	// returned channel, which is closed after the completed event.
	// If dir contains no importable files, returns
	// ErrNoFilesFound and no batch.
	ImportBatchFs(dir string, opts ImportOptions) (*ImportBatch, <-chan ImportEvent, error)

	// ImportBatch retrieves a single import batch.  If
	// opts.IncludeImages is set, the batch's Images field is
	// populated with its images filtered by opts.TrashState, in
	// import order.
	ImportBatch(oid string, opts ImportBatchOptions) (*ImportBatch, error)

	// RecentImportBatches returns up to n import batches, most
	// recently created first.
	RecentImportBatches(n int, opts ImportBatchOptions) ([]*ImportBatch, error)

	// ImportBatches returns one page of import batches, most
	// recently created first.
	ImportBatches(req PageRequest) (ImportBatchPage, error)

	// UpdateImportBatch applies a patch to an import batch.  The
	// patch must carry the batch's "oid".
	UpdateImportBatch(patch Doc) (*ImportBatch, error)
}

// Storage is the document-store half of a media manager backend.
type Storage interface {
	// Sync creates a new synchronization session.  Nothing
	// happens until its Run() method is called.
	Sync() (Synchronizer, error)

	// SyncState retrieves the state of a previously started
	// synchronization session.
	SyncState(id string) (*SyncState, error)

	// ChangesFeed creates a feed of document changes.  Nothing
	// is delivered until its Listen() method is called.
	ChangesFeed(opts ChangesFeedOptions) (ChangesFeed, error)

	// Document retrieves a raw document by its oid, of any type.
	// Returns nil and no error if the document does not exist.
	Document(oid string) (Document, error)
}

// Service is a complete media manager backend.
type Service interface {
	ImageService
	Storage
}

// Synchronizer is one synchronization session with the document
// store's replication peers.
type Synchronizer interface {
	// ID returns the identifier of this session, suitable for
	// passing to Storage.SyncState().
	ID() string

	// Run starts the synchronization.  It returns a channel of
	// lifecycle events, which is closed after the completed
	// event.  Run may only be called once.
	Run() <-chan SyncEvent
}

// ChangesFeed is a live subscription to document mutations.
type ChangesFeed interface {
	// ID returns an identifier for this feed.
	ID() string

	// Since returns the update sequence this feed started after.
	Since() int64

	// Listen starts delivering changes.  The returned channel is
	// closed when Close() is called.  Listen may only be called
	// once.
	Listen() <-chan DocChange

	// Close stops the feed.  It is safe to call more than once.
	Close() error
}

// ImageOptions modify the behavior of ImageService.Image().
type ImageOptions struct {
	// IncludeVariants populates the image's Variants field.
	IncludeVariants bool
}

// ImportOptions modify the behavior of ImageService.ImportBatchFs().
type ImportOptions struct {
	// AppID records the application that requested the import.
	AppID string

	// Recursive descends into subdirectories of the import
	// directory.
	Recursive bool
}

// ImportBatchOptions modify the retrieval of import batches.
type ImportBatchOptions struct {
	// IncludeImages populates the batch's Images field.
	IncludeImages bool

	// TrashState filters the images included when IncludeImages
	// is set.  The zero value is TrashOut.
	TrashState TrashState
}

// ChangesFeedOptions modify Storage.ChangesFeed().
type ChangesFeedOptions struct {
	// Since is the update sequence to start after.  Zero means
	// "only changes from now on"; a negative value means "from
	// the beginning of time".
	Since int64

	// AppID, if non-empty, limits the feed to import batches and
	// images attributed to that application.
	AppID string
}

// SyncStatus describes the state of a synchronization session.
type SyncStatus string

const (
	// SyncInit is the state of a session that has not started.
	SyncInit SyncStatus = "INIT"

	// SyncStarted is the state of a running session.
	SyncStarted SyncStatus = "STARTED"

	// SyncCompleted is the state of a session that finished.
	SyncCompleted SyncStatus = "COMPLETED"

	// SyncError is the state of a session that failed.
	SyncError SyncStatus = "ERROR"
)

// SyncState reports the progress of one synchronization session.
type SyncState struct {
	OID         string     `json:"oid"`
	Status      SyncStatus `json:"status"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt time.Time  `json:"completed_at"`
	DocsRead    int        `json:"docs_read"`
	DocsWritten int        `json:"docs_written"`
	Error       string     `json:"error,omitempty"`
}
