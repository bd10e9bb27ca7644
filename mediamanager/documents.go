// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mediamanager

import (
	"path"
	"time"
)

// Document is anything that can report named fields.  Field returns
// the value of a field and whether it is present at all; an absent
// field is different from a present zero value.
type Document interface {
	Field(name string) (interface{}, bool)
}

// Doc is a loosely-shaped document, such as a legacy record that
// predates the canonical fields, an update patch, or a change-feed
// payload.
type Doc map[string]interface{}

// Field returns a field from the underlying map.  A nil value counts
// as absent.
func (d Doc) Field(name string) (interface{}, bool) {
	v, present := d[name]
	if !present || v == nil {
		return nil, false
	}
	return v, true
}

// String returns a string-valued field, or the empty string.
func (d Doc) String(name string) string {
	if s, ok := d[name].(string); ok {
		return s
	}
	return ""
}

// Size is the pixel size of an image.
type Size struct {
	Width  int `json:"width" mapstructure:"width"`
	Height int `json:"height" mapstructure:"height"`
}

// Disposition values for Image.Disposition.
const (
	OriginalImage = "original"
	VariantImage  = "variant"
)

// Image is the canonical image document.  Originals are imported from
// disk; variants (thumbnails and the like) are derived from an
// original and point back at it through OrigID.
type Image struct {
	DocID         string    `json:"_id,omitempty" mapstructure:"_id"`
	Rev           string    `json:"_rev,omitempty" mapstructure:"_rev"`
	OID           string    `json:"oid" mapstructure:"oid"`
	Name          string    `json:"name" mapstructure:"name"`
	Path          string    `json:"path" mapstructure:"path"`
	URL           string    `json:"url,omitempty" mapstructure:"url"`
	Format        string    `json:"format,omitempty" mapstructure:"format"`
	Geometry      string    `json:"geometry,omitempty" mapstructure:"geometry"`
	Size          *Size     `json:"size,omitempty" mapstructure:"size"`
	Filesize      int64     `json:"filesize,omitempty" mapstructure:"filesize"`
	Checksum      string    `json:"checksum,omitempty" mapstructure:"checksum"`
	CreatedAt     time.Time `json:"created_at" mapstructure:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" mapstructure:"updated_at"`
	TakenAt       time.Time `json:"taken_at" mapstructure:"taken_at"`
	Tags          []string  `json:"tags" mapstructure:"tags"`
	InTrash       bool      `json:"in_trash" mapstructure:"in_trash"`
	BatchID       string    `json:"batch_id,omitempty" mapstructure:"batch_id"`
	OrigID        string    `json:"orig_id,omitempty" mapstructure:"orig_id"`
	Disposition   string    `json:"disposition,omitempty" mapstructure:"disposition"`
	ImportRootDir string    `json:"import_root_dir,omitempty" mapstructure:"import_root_dir"`
	AppID         string    `json:"app_id,omitempty" mapstructure:"app_id"`
	Variants      []*Image  `json:"variants,omitempty" mapstructure:"variants"`
}

// Field implements Document.  Empty strings, zero times, and nil
// slices are reported as absent; Tags and InTrash are always present
// on originals.
func (img *Image) Field(name string) (interface{}, bool) {
	switch name {
	case "_id":
		return presentString(img.DocID)
	case "_rev":
		return presentString(img.Rev)
	case "oid":
		return presentString(img.OID)
	case "name":
		return presentString(img.Name)
	case "path":
		return presentString(img.Path)
	case "url":
		return presentString(img.URL)
	case "format":
		return presentString(img.Format)
	case "geometry":
		return presentString(img.Geometry)
	case "size":
		if img.Size == nil {
			return nil, false
		}
		return map[string]interface{}{
			"width":  img.Size.Width,
			"height": img.Size.Height,
		}, true
	case "filesize":
		if img.Filesize == 0 {
			return nil, false
		}
		return img.Filesize, true
	case "checksum":
		return presentString(img.Checksum)
	case "created_at":
		return presentTime(img.CreatedAt)
	case "updated_at":
		return presentTime(img.UpdatedAt)
	case "taken_at":
		return presentTime(img.TakenAt)
	case "tags":
		if img.Tags == nil {
			if img.Disposition == VariantImage {
				return nil, false
			}
			return []string{}, true
		}
		return img.Tags, true
	case "in_trash":
		if img.Disposition == VariantImage {
			return nil, false
		}
		return img.InTrash, true
	case "batch_id":
		return presentString(img.BatchID)
	case "orig_id":
		return presentString(img.OrigID)
	case "disposition":
		return presentString(img.Disposition)
	case "import_root_dir":
		return presentString(img.ImportRootDir)
	case "app_id":
		return presentString(img.AppID)
	case "variants":
		if len(img.Variants) == 0 {
			return nil, false
		}
		docs := make([]Document, len(img.Variants))
		for i, v := range img.Variants {
			docs[i] = v
		}
		return docs, true
	default:
		return nil, false
	}
}

// Copy returns a deep copy of an image.
func (img *Image) Copy() *Image {
	if img == nil {
		return nil
	}
	result := *img
	if img.Size != nil {
		size := *img.Size
		result.Size = &size
	}
	if img.Tags != nil {
		result.Tags = append([]string{}, img.Tags...)
	}
	if img.Variants != nil {
		result.Variants = make([]*Image, len(img.Variants))
		for i, v := range img.Variants {
			result.Variants[i] = v.Copy()
		}
	}
	return &result
}

// HasTag determines whether an image carries a specific tag.
func (img *Image) HasTag(tag string) bool {
	for _, t := range img.Tags {
		if t == tag {
			return true
		}
	}
	return false
}

// ImportStatus is the lifecycle state of an import batch.
type ImportStatus string

const (
	// ImportInit is the state of a batch that has been created but
	// not started.
	ImportInit ImportStatus = "INIT"

	// ImportStarted is the state of a batch whose images are being
	// imported.
	ImportStarted ImportStatus = "STARTED"

	// ImportCompleted is the state of a batch that has attempted
	// every image.
	ImportCompleted ImportStatus = "COMPLETED"

	// ImportAborted is the state of a batch that was stopped
	// before it attempted every image.
	ImportAborted ImportStatus = "ABORTED"
)

// ImportBatch tracks one directory-driven import.
type ImportBatch struct {
	DocID          string       `json:"_id,omitempty" mapstructure:"_id"`
	Rev            string       `json:"_rev,omitempty" mapstructure:"_rev"`
	OID            string       `json:"oid" mapstructure:"oid"`
	AppID          string       `json:"app_id,omitempty" mapstructure:"app_id"`
	Path           string       `json:"path" mapstructure:"path"`
	Status         ImportStatus `json:"status" mapstructure:"status"`
	CreatedAt      time.Time    `json:"created_at" mapstructure:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at" mapstructure:"updated_at"`
	StartedAt      time.Time    `json:"started_at" mapstructure:"started_at"`
	CompletedAt    time.Time    `json:"completed_at" mapstructure:"completed_at"`
	NumToImport    int          `json:"num_to_import" mapstructure:"num_to_import"`
	NumAttempted   int          `json:"num_attempted" mapstructure:"num_attempted"`
	NumSuccess     int          `json:"num_success" mapstructure:"num_success"`
	NumError       int          `json:"num_error" mapstructure:"num_error"`
	ImagesToImport []string     `json:"images_to_import,omitempty" mapstructure:"images_to_import"`
	Images         []*Image     `json:"images,omitempty" mapstructure:"-"`
}

// Field implements Document.  The counters are always present.
func (b *ImportBatch) Field(name string) (interface{}, bool) {
	switch name {
	case "_id":
		return presentString(b.DocID)
	case "_rev":
		return presentString(b.Rev)
	case "oid":
		return presentString(b.OID)
	case "app_id":
		return presentString(b.AppID)
	case "path":
		return presentString(b.Path)
	case "status":
		return presentString(string(b.Status))
	case "created_at":
		return presentTime(b.CreatedAt)
	case "updated_at":
		return presentTime(b.UpdatedAt)
	case "started_at":
		return presentTime(b.StartedAt)
	case "completed_at":
		return presentTime(b.CompletedAt)
	case "num_to_import":
		return b.NumToImport, true
	case "num_attempted":
		return b.NumAttempted, true
	case "num_success":
		return b.NumSuccess, true
	case "num_error":
		return b.NumError, true
	case "images_to_import":
		if b.ImagesToImport == nil {
			return nil, false
		}
		return b.ImagesToImport, true
	case "images":
		if b.Images == nil {
			return nil, false
		}
		docs := make([]Document, len(b.Images))
		for i, img := range b.Images {
			docs[i] = img
		}
		return docs, true
	default:
		return nil, false
	}
}

// Copy returns a copy of an import batch, including copies of its
// images.
func (b *ImportBatch) Copy() *ImportBatch {
	if b == nil {
		return nil
	}
	result := *b
	if b.ImagesToImport != nil {
		result.ImagesToImport = append([]string{}, b.ImagesToImport...)
	}
	if b.Images != nil {
		result.Images = make([]*Image, len(b.Images))
		for i, img := range b.Images {
			result.Images[i] = img.Copy()
		}
	}
	return &result
}

// Field implements Document.
func (s *SyncState) Field(name string) (interface{}, bool) {
	switch name {
	case "oid":
		return presentString(s.OID)
	case "status":
		return presentString(string(s.Status))
	case "started_at":
		return presentTime(s.StartedAt)
	case "completed_at":
		return presentTime(s.CompletedAt)
	case "docs_read":
		return s.DocsRead, true
	case "docs_written":
		return s.DocsWritten, true
	case "error":
		return presentString(s.Error)
	default:
		return nil, false
	}
}

// NameFromPath derives an image name from the final segment of a
// file path.
func NameFromPath(p string) string {
	if p == "" {
		return ""
	}
	return path.Base(p)
}

func presentString(s string) (interface{}, bool) {
	if s == "" {
		return nil, false
	}
	return s, true
}

func presentTime(t time.Time) (interface{}, bool) {
	if t.IsZero() {
		return nil, false
	}
	return t, true
}
