// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mediamanager

import (
	"strings"
)

// AddTags returns the tag list old with every tag in add appended,
// skipping tags already present and empty tags.  old is not
// modified.  The result is never nil.
func AddTags(old, add []string) []string {
	result := make([]string, 0, len(old)+len(add))
	seen := make(map[string]bool)
	for _, lists := range [][]string{old, add} {
		for _, tag := range lists {
			tag = strings.TrimSpace(tag)
			if tag == "" || seen[tag] {
				continue
			}
			seen[tag] = true
			result = append(result, tag)
		}
	}
	return result
}

// RemoveTags returns the tag list old without any tag in remove.  old
// is not modified.  The result is never nil.
func RemoveTags(old, remove []string) []string {
	drop := make(map[string]bool)
	for _, tag := range remove {
		drop[strings.TrimSpace(tag)] = true
	}
	result := []string{}
	for _, tag := range old {
		if !drop[tag] {
			result = append(result, tag)
		}
	}
	return result
}

// ValidateImportBatch checks the fields of an import batch that a
// client may change.
func ValidateImportBatch(b *ImportBatch) error {
	switch b.Status {
	case ImportInit, ImportStarted, ImportCompleted, ImportAborted:
	default:
		return ErrInvalidAttribute{Name: "status", Reason: "unknown status " + string(b.Status)}
	}
	if b.NumToImport < 0 || b.NumAttempted < 0 || b.NumSuccess < 0 || b.NumError < 0 {
		return ErrInvalidAttribute{Name: "num_*", Reason: "counters must not be negative"}
	}
	return nil
}

// PatchImportBatch applies a patch to a copy of an import batch,
// checking the patch's revision if it carries one.  The oid and
// created_at fields cannot be changed.
func PatchImportBatch(batch *ImportBatch, patch Doc) (*ImportBatch, error) {
	if rev := patch.String("_rev"); rev != "" && rev != batch.Rev {
		return nil, ErrConflict
	}
	result := batch.Copy()
	err := ApplyPatch(result, patch)
	if err != nil {
		return nil, ErrInvalidAttribute{Name: "patch", Reason: err.Error()}
	}
	result.OID = batch.OID
	result.DocID = batch.DocID
	result.Rev = batch.Rev
	result.CreatedAt = batch.CreatedAt
	result.Status = ImportStatus(strings.ToUpper(string(result.Status)))
	if err := ValidateImportBatch(result); err != nil {
		return nil, err
	}
	return result, nil
}
