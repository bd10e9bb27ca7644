// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mediamanager

// ImportEventKind identifies one lifecycle event of an import batch.
type ImportEventKind int

const (
	// ImportStartedEvent fires once, when the batch begins
	// importing images.
	ImportStartedEvent ImportEventKind = iota

	// ImagesCreatedEvent fires when a group of original image
	// documents has been created.
	ImagesCreatedEvent

	// ImageCreatedEvent fires per original image document
	// created.
	ImageCreatedEvent

	// ImagesVariantCreatedEvent fires when variants have been
	// created for a group of images.
	ImagesVariantCreatedEvent

	// ImageVariantCreatedEvent fires per variant created.
	ImageVariantCreatedEvent

	// ImagesImportedEvent fires when a group of images has been
	// fully imported.
	ImagesImportedEvent

	// ImageImportedEvent fires per image fully imported.
	ImageImportedEvent

	// ImportCompletedEvent fires once, after every image has been
	// attempted.
	ImportCompletedEvent
)

// AllImportEventKinds lists every import event kind, in lifecycle
// order.
var AllImportEventKinds = []ImportEventKind{
	ImportStartedEvent,
	ImagesCreatedEvent,
	ImageCreatedEvent,
	ImagesVariantCreatedEvent,
	ImageVariantCreatedEvent,
	ImagesImportedEvent,
	ImageImportedEvent,
	ImportCompletedEvent,
}

// Once reports whether this kind of event fires exactly once per
// batch.  Other kinds fire zero or more times.
func (k ImportEventKind) Once() bool {
	return k == ImportStartedEvent || k == ImportCompletedEvent
}

// PerImage reports whether this kind of event describes a single
// image rather than the batch.
func (k ImportEventKind) PerImage() bool {
	switch k {
	case ImageCreatedEvent, ImageVariantCreatedEvent, ImageImportedEvent:
		return true
	}
	return false
}

// ImportEvent is one progress report from an import batch.
type ImportEvent struct {
	Kind ImportEventKind

	// Batch is a snapshot of the batch when the event fired.
	Batch *ImportBatch

	// Image is the image concerned, for per-image events.  For
	// variant events this is the variant.
	Image *Image

	// Images are the images concerned, for group events.
	Images []*Image
}

// SyncEventKind identifies one lifecycle event of a synchronization
// session.
type SyncEventKind int

const (
	// SyncStartedEvent fires once, when synchronization begins.
	SyncStartedEvent SyncEventKind = iota

	// SyncProgressEvent fires zero or more times while
	// synchronization runs.
	SyncProgressEvent

	// SyncCompletedEvent fires once, when synchronization ends,
	// successfully or not.
	SyncCompletedEvent
)

// Once reports whether this kind of event fires exactly once per
// session.
func (k SyncEventKind) Once() bool {
	return k != SyncProgressEvent
}

// SyncEvent is one progress report from a synchronization session.
type SyncEvent struct {
	Kind  SyncEventKind
	State SyncState
}

// Document types reported in DocChange.DocType.
const (
	ImageDocType       = "image"
	ImportBatchDocType = "importer"
)

// DocOp is the kind of mutation in a DocChange.
type DocOp int

const (
	// DocCreated means a new document was written.
	DocCreated DocOp = iota

	// DocUpdated means an existing document was rewritten.
	DocUpdated

	// DocDeleted means a document was removed.
	DocDeleted
)

// DocChange is one entry in a changes feed.
type DocChange struct {
	// Seq is the update sequence of this change; it increases
	// monotonically across the store.
	Seq int64

	// DocType is ImageDocType or ImportBatchDocType.
	DocType string

	// Op is the mutation.
	Op DocOp

	// ID is the oid of the changed document.
	ID string

	// OrigID, for a deleted variant, is the oid of the original
	// image it was derived from.
	OrigID string

	// Doc is the document after the change.  For deletions it
	// holds only identifying fields.
	Doc Document
}

// Event returns the notification event name for this change, such as
// "doc.image.created".
func (c DocChange) Event() string {
	op, _ := c.Op.MarshalText()
	return "doc." + c.DocType + "." + string(op)
}
