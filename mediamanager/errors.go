// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mediamanager

import (
	"errors"
	"fmt"
)

// ErrConflict is returned from save and update operations when the
// document revision supplied does not match the stored revision.
var ErrConflict = errors.New("Document update conflict")

// ErrNoOID is returned when a patch or document does not identify the
// document it applies to.
var ErrNoOID = errors.New("No 'oid' key in document")

// ErrSyncStarted is returned from Synchronizer.Run() if it is called
// a second time.
var ErrSyncStarted = errors.New("Synchronization already started")

// ErrNoFilesFound is returned from ImageService.ImportBatchFs() if
// the directory contains no importable images.
type ErrNoFilesFound struct {
	Dir string
}

func (err ErrNoFilesFound) Error() string {
	return fmt.Sprintf("No files found in directory %s .", err.Dir)
}

// ErrNoSuchImage is returned when looking up an image that does not
// exist.
type ErrNoSuchImage struct {
	OID string
}

func (err ErrNoSuchImage) Error() string {
	return fmt.Sprintf("No such image %v", err.OID)
}

// ErrNoSuchImportBatch is returned when looking up an import batch
// that does not exist.
type ErrNoSuchImportBatch struct {
	OID string
}

func (err ErrNoSuchImportBatch) Error() string {
	return fmt.Sprintf("No such import batch %v", err.OID)
}

// ErrNoSuchSync is returned from Storage.SyncState() for an unknown
// session.
type ErrNoSuchSync struct {
	ID string
}

func (err ErrNoSuchSync) Error() string {
	return fmt.Sprintf("No such synchronization %v", err.ID)
}

// ErrInvalidAttribute is returned when a document or patch carries a
// field value that fails validation.
type ErrInvalidAttribute struct {
	Name   string
	Reason string
}

func (err ErrInvalidAttribute) Error() string {
	return fmt.Sprintf("Invalid attribute %v: %v", err.Name, err.Reason)
}
