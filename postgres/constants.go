// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

const (
	// SQL table names:
	imageTable       = "image"
	imageTagTable    = "image_tag"
	importBatchTable = "import_batch"
	docChangeTable   = "doc_change"
	syncStateTable   = "sync_state"

	// SQL column names:
	imageOID         = imageTable + ".oid"
	imageRev         = imageTable + ".rev"
	imageSeq         = imageTable + ".seq"
	imageOrigID      = imageTable + ".orig_id"
	imageBatchID     = imageTable + ".batch_id"
	imageAppID       = imageTable + ".app_id"
	imageInTrash     = imageTable + ".in_trash"
	imageData        = imageTable + ".data"
	imageTagImage    = imageTagTable + ".image_oid"
	imageTagTag      = imageTagTable + ".tag"
	batchOID         = importBatchTable + ".oid"
	batchRev         = importBatchTable + ".rev"
	batchCreated     = importBatchTable + ".created_ns"
	batchData        = importBatchTable + ".data"
	changeSeq        = docChangeTable + ".seq"
	changeDocType    = docChangeTable + ".doc_type"
	changeOp         = docChangeTable + ".op"
	changeOID        = docChangeTable + ".oid"
	changeOrigID     = docChangeTable + ".orig_id"
	changeAppID      = docChangeTable + ".app_id"
	changeData       = docChangeTable + ".data"
	syncOID          = syncStateTable + ".oid"
	syncStatus       = syncStateTable + ".status"
	syncStartedAt    = syncStateTable + ".started_at"
	syncCompletedAt  = syncStateTable + ".completed_at"
	syncDocsRead     = syncStateTable + ".docs_read"
	syncDocsWritten  = syncStateTable + ".docs_written"
	syncError        = syncStateTable + ".error"
	imageOrderBySeq  = " ORDER BY " + imageSeq
	batchNewestFirst = " ORDER BY " + batchCreated + " DESC, " + batchOID + " DESC"

	// WHERE clause fragments:
	isImage         = imageOID + "=$1"
	isImportBatch   = batchOID + "=$1"
	isSync          = syncOID + "=$1"
	isOriginal      = imageOrigID + " IS NULL"
	isInTrash       = imageInTrash + "=TRUE"
	isNotInTrash    = imageInTrash + "=FALSE"
	variantOfAny    = imageOrigID + "=ANY($1)"
	imageIsAny      = imageOID + "=ANY($1)"
	tagOfThisImage  = imageTagImage + "=" + imageOID
	tagOfAnyImage   = imageTagImage + "=ANY($1)"
	changeAfterSeq  = changeSeq + ">$1"
	changeFromAppID = changeAppID + "=$2"

	// changeChannel is the LISTEN/NOTIFY channel announcing new
	// rows in the change table.
	changeChannel = "mediamanager_doc_change"

	// changeLock is the advisory lock key serializing writes to
	// the change table, so that sequence numbers commit in order.
	changeLock = 0x6d656469
)
