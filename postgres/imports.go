// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"database/sql"
	"fmt"

	"github.com/diffeo/go-mediamanager/mediamanager"
)

// loadImportBatch fetches one import batch by oid, or nil if there
// is none.
func loadImportBatch(tx *sql.Tx, oid string) (*mediamanager.ImportBatch, error) {
	var data []byte
	query := buildSelect([]string{batchData}, []string{importBatchTable}, []string{isImportBatch})
	err := tx.QueryRow(query, oid).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return bytesToImportBatch(data)
}

// newestFirst selects up to limit import batches, most recently
// created first.  A negative limit selects every batch.
func newestFirst(tx *sql.Tx, limit int) ([]*mediamanager.ImportBatch, error) {
	query := buildSelect([]string{batchData}, []string{importBatchTable}, nil) + batchNewestFirst
	if limit >= 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}
	rows, err := tx.Query(query)
	if err != nil {
		return nil, err
	}
	result := []*mediamanager.ImportBatch{}
	err = scanRows(rows, func() error {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return err
		}
		batch, err := bytesToImportBatch(data)
		if err == nil {
			result = append(result, batch)
		}
		return err
	})
	return result, err
}

// putBatch writes an import batch and records the change.
func (s *pgService) putBatch(tx *sql.Tx, batch *mediamanager.ImportBatch) (*mediamanager.ImportBatch, error) {
	batch = batch.Copy()
	batch.Images = nil
	batch.DocID = batch.OID

	var rev int
	query := buildSelect([]string{batchRev}, []string{importBatchTable}, []string{isImportBatch})
	err := tx.QueryRow(query, batch.OID).Scan(&rev)
	exists := true
	if err == sql.ErrNoRows {
		exists = false
	} else if err != nil {
		return nil, err
	}
	batch.Rev = revToString(rev + 1)

	data, err := encodeDoc(batch)
	if err != nil {
		return nil, err
	}
	var (
		params queryParams
		fields fieldList
		op     mediamanager.DocOp
	)
	fields.Add(&params, "rev", rev+1)
	fields.Add(&params, "created_ns", batch.CreatedAt.UnixNano())
	fields.Add(&params, "app_id", nullString(batch.AppID))
	fields.Add(&params, "data", data)
	if exists {
		op = mediamanager.DocUpdated
		query = buildUpdate(importBatchTable, fields.UpdateChanges(),
			[]string{batchOID + "=" + params.Param(batch.OID)})
	} else {
		op = mediamanager.DocCreated
		fields.Add(&params, "oid", batch.OID)
		query = fields.InsertStatement(importBatchTable)
	}
	if _, err = tx.Exec(query, params...); err != nil {
		return nil, err
	}
	err = s.record(tx, mediamanager.ImportBatchDocType, op, batch.OID, "", batch.AppID, batch)
	if err != nil {
		return nil, err
	}
	return batch, nil
}

// SaveImportBatch is part of importer.Store.  It writes without a
// revision check.
func (s *pgService) SaveImportBatch(batch *mediamanager.ImportBatch) (saved *mediamanager.ImportBatch, err error) {
	err = withTx(s, false, func(tx *sql.Tx) (err error) {
		saved, err = s.putBatch(tx, batch)
		return
	})
	return
}

func (s *pgService) ImportBatchFs(dir string, opts mediamanager.ImportOptions) (*mediamanager.ImportBatch, <-chan mediamanager.ImportEvent, error) {
	return s.importer.Start(dir, opts)
}

// withImages attaches a batch's images, if requested.
func withImages(tx *sql.Tx, batch *mediamanager.ImportBatch, opts mediamanager.ImportBatchOptions) error {
	if !opts.IncludeImages {
		return nil
	}
	images, err := findImages(tx, mediamanager.ImageFilter{
		TrashState: opts.TrashState,
		BatchID:    batch.OID,
	})
	batch.Images = images
	return err
}

func (s *pgService) ImportBatch(oid string, opts mediamanager.ImportBatchOptions) (batch *mediamanager.ImportBatch, err error) {
	err = withTx(s, true, func(tx *sql.Tx) error {
		batch, err = loadImportBatch(tx, oid)
		if err != nil {
			return err
		}
		if batch == nil {
			return mediamanager.ErrNoSuchImportBatch{OID: oid}
		}
		return withImages(tx, batch, opts)
	})
	if err != nil {
		batch = nil
	}
	return
}

func (s *pgService) RecentImportBatches(n int, opts mediamanager.ImportBatchOptions) (batches []*mediamanager.ImportBatch, err error) {
	err = withTx(s, true, func(tx *sql.Tx) error {
		batches, err = newestFirst(tx, n)
		if err != nil {
			return err
		}
		for _, batch := range batches {
			if err := withImages(tx, batch, opts); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		batches = nil
	}
	return
}

func (s *pgService) ImportBatches(req mediamanager.PageRequest) (page mediamanager.ImportBatchPage, err error) {
	err = withTx(s, true, func(tx *sql.Tx) error {
		all, err := newestFirst(tx, -1)
		if err == nil {
			page = mediamanager.PageImportBatches(all, req)
		}
		return err
	})
	return
}

func (s *pgService) UpdateImportBatch(patch mediamanager.Doc) (updated *mediamanager.ImportBatch, err error) {
	oid := patch.String("oid")
	if oid == "" {
		return nil, mediamanager.ErrNoOID
	}
	err = withTx(s, false, func(tx *sql.Tx) error {
		batch, err := loadImportBatch(tx, oid)
		if err != nil {
			return err
		}
		if batch == nil {
			return mediamanager.ErrNoSuchImportBatch{OID: oid}
		}
		batch, err = mediamanager.PatchImportBatch(batch, patch)
		if err != nil {
			return err
		}
		batch.UpdatedAt = s.clock.Now()
		updated, err = s.putBatch(tx, batch)
		return err
	})
	if err != nil {
		updated = nil
	}
	return
}
