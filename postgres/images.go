// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package postgres

import (
	"database/sql"
	"sort"
	"strings"

	"github.com/diffeo/go-mediamanager/importer"
	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/lib/pq"
)

// loadImage fetches one image by oid, or nil if there is none.
func loadImage(tx *sql.Tx, oid string) (*mediamanager.Image, error) {
	var data []byte
	query := buildSelect([]string{imageData}, []string{imageTable}, []string{isImage})
	err := tx.QueryRow(query, oid).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return bytesToImage(data)
}

// queryImages selects images in insertion order.
func queryImages(tx *sql.Tx, conditions []string, params queryParams) ([]*mediamanager.Image, error) {
	query := buildSelect([]string{imageData}, []string{imageTable}, conditions) + imageOrderBySeq
	rows, err := tx.Query(query, params...)
	if err != nil {
		return nil, err
	}
	result := []*mediamanager.Image{}
	err = scanRows(rows, func() error {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return err
		}
		img, err := bytesToImage(data)
		if err == nil {
			result = append(result, img)
		}
		return err
	})
	return result, err
}

// attachVariants fills in the Variants field of each image.
func attachVariants(tx *sql.Tx, images []*mediamanager.Image) error {
	if len(images) == 0 {
		return nil
	}
	oids := make([]string, len(images))
	byOID := make(map[string]*mediamanager.Image, len(images))
	for i, img := range images {
		oids[i] = img.OID
		byOID[img.OID] = img
		img.Variants = nil
	}
	variants, err := queryImages(tx, []string{variantOfAny}, queryParams{pq.Array(oids)})
	if err != nil {
		return err
	}
	for _, v := range variants {
		if orig, present := byOID[v.OrigID]; present {
			orig.Variants = append(orig.Variants, v)
		}
	}
	return nil
}

// hasTag is an SQL condition true if the image carries tag.
func hasTag(params *queryParams, tag string) string {
	return "EXISTS(" + buildSelect(
		[]string{"1"},
		[]string{imageTagTable},
		[]string{tagOfThisImage, imageTagTag + "=" + params.Param(tag)},
	) + ")"
}

// hasAnyTag is an SQL condition true if the image carries any tag.
var hasAnyTag = "EXISTS(" + buildSelect(
	[]string{"1"},
	[]string{imageTagTable},
	[]string{tagOfThisImage},
) + ")"

// tagRuleCondition converts one filter rule to SQL, mirroring
// mediamanager.FilterRule.Matches.
func tagRuleCondition(rule mediamanager.FilterRule, params *queryParams) string {
	if rule.Field != "tags" {
		return "FALSE"
	}
	var parts []string
	switch rule.Op {
	case mediamanager.OpEq:
		if len(rule.Data) == 0 {
			return "NOT " + hasAnyTag
		}
		for _, tag := range rule.Data {
			parts = append(parts, hasTag(params, tag))
		}
	case mediamanager.OpNe:
		if len(rule.Data) == 0 {
			return hasAnyTag
		}
		for _, tag := range rule.Data {
			parts = append(parts, "NOT "+hasTag(params, tag))
		}
	default:
		return "FALSE"
	}
	return "(" + strings.Join(parts, " AND ") + ")"
}

// tagFilterCondition converts a tag filter to a single SQL
// condition, or the empty string if it matches everything.
func tagFilterCondition(filter *mediamanager.TagFilter, params *queryParams) string {
	if filter == nil || len(filter.Rules) == 0 {
		return ""
	}
	parts := make([]string, len(filter.Rules))
	for i, rule := range filter.Rules {
		parts[i] = tagRuleCondition(rule, params)
	}
	join := " OR "
	if filter.GroupOp == mediamanager.GroupAnd {
		join = " AND "
	}
	return "(" + strings.Join(parts, join) + ")"
}

// imageFilterConditions converts an image filter to SQL conditions
// over the image table.
func imageFilterConditions(filter mediamanager.ImageFilter, params *queryParams) []string {
	conditions := []string{isOriginal}
	switch filter.TrashState {
	case mediamanager.TrashIn:
		conditions = append(conditions, isInTrash)
	case mediamanager.TrashAny:
	default:
		conditions = append(conditions, isNotInTrash)
	}
	if filter.BatchID != "" {
		conditions = append(conditions, imageBatchID+"="+params.Param(filter.BatchID))
	}
	if tags := tagFilterCondition(filter.Tags, params); tags != "" {
		conditions = append(conditions, tags)
	}
	return conditions
}

// findImages selects the originals matching filter, with their
// variants.
func findImages(tx *sql.Tx, filter mediamanager.ImageFilter) ([]*mediamanager.Image, error) {
	var params queryParams
	images, err := queryImages(tx, imageFilterConditions(filter, &params), params)
	if err != nil {
		return nil, err
	}
	return images, attachVariants(tx, images)
}

func (s *pgService) Images(filter mediamanager.ImageFilter) (images []*mediamanager.Image, err error) {
	err = withTx(s, true, func(tx *sql.Tx) (err error) {
		images, err = findImages(tx, filter)
		return
	})
	return
}

func (s *pgService) Image(oid string, opts mediamanager.ImageOptions) (img *mediamanager.Image, err error) {
	err = withTx(s, true, func(tx *sql.Tx) error {
		img, err = loadImage(tx, oid)
		if err != nil {
			return err
		}
		if img == nil {
			return mediamanager.ErrNoSuchImage{OID: oid}
		}
		if opts.IncludeVariants {
			return attachVariants(tx, []*mediamanager.Image{img})
		}
		return nil
	})
	if err != nil {
		img = nil
	}
	return
}

// writeTags replaces the tag rows of one image.
func writeTags(tx *sql.Tx, img *mediamanager.Image) error {
	_, err := tx.Exec("DELETE FROM "+imageTagTable+" WHERE "+imageTagImage+"=$1", img.OID)
	if err != nil {
		return err
	}
	seen := make(map[string]bool)
	for _, tag := range img.Tags {
		if seen[tag] {
			continue
		}
		seen[tag] = true
		var (
			params queryParams
			fields fieldList
		)
		fields.Add(&params, "image_oid", img.OID)
		fields.Add(&params, "tag", tag)
		_, err = tx.Exec(fields.InsertStatement(imageTagTable), params...)
		if err != nil {
			return err
		}
	}
	return nil
}

// putImage writes one image, checking revisions if requested, and
// records the change.
func (s *pgService) putImage(tx *sql.Tx, img *mediamanager.Image, checkRev bool) (*mediamanager.Image, error) {
	now := s.clock.Now()
	img = img.Copy()
	img.Variants = nil
	if img.OID == "" {
		img.OID = importer.NewOID()
	}
	old, err := loadImage(tx, img.OID)
	if err != nil {
		return nil, err
	}
	op := mediamanager.DocUpdated
	if old != nil {
		if checkRev && img.Rev != "" && img.Rev != old.Rev {
			return nil, mediamanager.ErrConflict
		}
		img.Rev = revToString(stringToRev(old.Rev) + 1)
		img.CreatedAt = old.CreatedAt
	} else {
		op = mediamanager.DocCreated
		img.Rev = revToString(1)
		if img.CreatedAt.IsZero() {
			img.CreatedAt = now
		}
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

	data, err := encodeDoc(img)
	if err != nil {
		return nil, err
	}
	var (
		params queryParams
		fields fieldList
		query  string
	)
	fields.Add(&params, "rev", stringToRev(img.Rev))
	fields.Add(&params, "orig_id", nullString(img.OrigID))
	fields.Add(&params, "batch_id", nullString(img.BatchID))
	fields.Add(&params, "app_id", nullString(img.AppID))
	fields.Add(&params, "in_trash", img.InTrash)
	fields.Add(&params, "data", data)
	if old == nil {
		fields.Add(&params, "oid", img.OID)
		query = fields.InsertStatement(imageTable)
	} else {
		query = buildUpdate(imageTable, fields.UpdateChanges(),
			[]string{imageOID + "=" + params.Param(img.OID)})
	}
	if _, err = tx.Exec(query, params...); err != nil {
		return nil, err
	}
	if err = writeTags(tx, img); err != nil {
		return nil, err
	}
	err = s.record(tx, mediamanager.ImageDocType, op, img.OID, img.OrigID, img.AppID, img)
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (s *pgService) SaveImage(img *mediamanager.Image) (saved *mediamanager.Image, err error) {
	err = withTx(s, false, func(tx *sql.Tx) (err error) {
		saved, err = s.putImage(tx, img, true)
		return
	})
	return
}

// CreateImages is part of importer.Store.
func (s *pgService) CreateImages(imgs []*mediamanager.Image) (result []*mediamanager.Image, err error) {
	err = withTx(s, false, func(tx *sql.Tx) error {
		result = make([]*mediamanager.Image, len(imgs))
		for i, img := range imgs {
			saved, err := s.putImage(tx, img, false)
			if err != nil {
				return err
			}
			result[i] = saved
		}
		return nil
	})
	if err != nil {
		result = nil
	}
	return
}

// deleteImageRow removes one image and records its deletion.
func (s *pgService) deleteImageRow(tx *sql.Tx, img *mediamanager.Image, doc mediamanager.Doc) error {
	_, err := tx.Exec("DELETE FROM "+imageTable+" WHERE "+isImage, img.OID)
	if err != nil {
		return err
	}
	return s.record(tx, mediamanager.ImageDocType, mediamanager.DocDeleted, img.OID, img.OrigID, img.AppID, doc)
}

// remove deletes one image and its variants.  Returns nil if the
// image does not exist.
func (s *pgService) remove(tx *sql.Tx, oid string) (*mediamanager.Image, error) {
	img, err := loadImage(tx, oid)
	if err != nil || img == nil {
		return nil, err
	}
	variants, err := queryImages(tx, []string{imageOrigID + "=$1"}, queryParams{oid})
	if err != nil {
		return nil, err
	}
	for _, v := range variants {
		err = s.deleteImageRow(tx, v, mediamanager.Doc{"oid": v.OID, "orig_id": v.OrigID, "app_id": v.AppID})
		if err != nil {
			return nil, err
		}
	}
	err = s.deleteImageRow(tx, img, mediamanager.Doc{"oid": img.OID, "app_id": img.AppID})
	if err != nil {
		return nil, err
	}
	return img, nil
}

func (s *pgService) DeleteImages(oids []string) (result []*mediamanager.Image, err error) {
	err = withTx(s, false, func(tx *sql.Tx) error {
		result = []*mediamanager.Image{}
		for _, oid := range oids {
			img, err := s.remove(tx, oid)
			if err != nil {
				return err
			}
			if img != nil {
				result = append(result, img)
			}
		}
		return nil
	})
	if err != nil {
		result = nil
	}
	return
}

// loadAll fetches every named image, failing if any is missing.
func loadAll(tx *sql.Tx, oids []string) ([]*mediamanager.Image, error) {
	result := make([]*mediamanager.Image, 0, len(oids))
	for _, oid := range oids {
		img, err := loadImage(tx, oid)
		if err != nil {
			return nil, err
		}
		if img == nil {
			return nil, mediamanager.ErrNoSuchImage{OID: oid}
		}
		result = append(result, img)
	}
	return result, nil
}

// setTrash changes the trash flag on a set of images.
func (s *pgService) setTrash(oids []string, inTrash bool) (result []*mediamanager.Image, err error) {
	err = withTx(s, false, func(tx *sql.Tx) error {
		images, err := loadAll(tx, oids)
		if err != nil {
			return err
		}
		result = make([]*mediamanager.Image, 0, len(images))
		for _, img := range images {
			img.InTrash = inTrash
			saved, err := s.putImage(tx, img, false)
			if err != nil {
				return err
			}
			result = append(result, saved)
		}
		return nil
	})
	if err != nil {
		result = nil
	}
	return
}

func (s *pgService) SendToTrash(oids []string) ([]*mediamanager.Image, error) {
	return s.setTrash(oids, true)
}

func (s *pgService) RestoreFromTrash(oids []string) ([]*mediamanager.Image, error) {
	return s.setTrash(oids, false)
}

func (s *pgService) FindImagesByTrashState(state mediamanager.TrashState) ([]*mediamanager.Image, error) {
	return s.Images(mediamanager.ImageFilter{TrashState: state})
}

func (s *pgService) EmptyTrash() (oids []string, err error) {
	err = withTx(s, false, func(tx *sql.Tx) error {
		trashed, err := queryImages(tx, []string{isOriginal, isInTrash}, nil)
		if err != nil {
			return err
		}
		oids = []string{}
		for _, img := range trashed {
			if _, err := s.remove(tx, img.OID); err != nil {
				return err
			}
			oids = append(oids, img.OID)
		}
		return nil
	})
	if err != nil {
		oids = nil
	}
	return
}

// queryTags collects the distinct tags selected by a query, sorted.
func queryTags(s *pgService, conditions []string, params queryParams) ([]string, error) {
	query := "SELECT DISTINCT " + imageTagTag + " FROM " + imageTagTable
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	result := []string{}
	err := queryAndScan(s, query, params, func(rows *sql.Rows) error {
		var tag string
		err := rows.Scan(&tag)
		if err == nil {
			result = append(result, tag)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	// the database's collation need not be byte order
	sort.Strings(result)
	return result, nil
}

func (s *pgService) Tags() ([]string, error) {
	return queryTags(s, nil, nil)
}

func (s *pgService) ImagesTags(oids []string) ([]string, error) {
	return queryTags(s, []string{tagOfAnyImage}, queryParams{pq.Array(oids)})
}

// retag applies a tag transformation to each named image.
func (s *pgService) retag(oids []string, change func([]string) []string) error {
	return withTx(s, false, func(tx *sql.Tx) error {
		images, err := loadAll(tx, oids)
		if err != nil {
			return err
		}
		for _, img := range images {
			img.Tags = change(img.Tags)
			if _, err := s.putImage(tx, img, false); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *pgService) AddTags(oids []string, tags []string) error {
	return s.retag(oids, func(old []string) []string {
		return mediamanager.AddTags(old, tags)
	})
}

func (s *pgService) ReplaceTags(oids []string, tags []string) error {
	return s.retag(oids, func([]string) []string {
		return mediamanager.AddTags(nil, tags)
	})
}

func (s *pgService) RemoveTags(oids []string, tags []string) error {
	return s.retag(oids, func(old []string) []string {
		return mediamanager.RemoveTags(old, tags)
	})
}
