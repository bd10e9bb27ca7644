// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/diffeo/go-mediamanager/restdata"
	"github.com/sirupsen/logrus"
)

// fieldMapping maps one internal document field to its external
// representation name.
type fieldMapping struct {
	External string
	Internal string
}

// sigilFields are the external names whose values are identifiers.
var sigilFields = map[string]bool{
	"id":          true,
	"app_id":      true,
	"importer_id": true,
	"orig_id":     true,
}

// upperFields are the external names whose values are stored upper
// case.
var upperFields = map[string]bool{
	"state":  true,
	"status": true,
}

// transformer converts between internal documents and their external
// representations.
type transformer struct {
	// Short is the field list of the short form, used in
	// collections and for variants.
	Short []fieldMapping

	// Full is the field list of the full form, used for single
	// instances.
	Full []fieldMapping

	// Reverse lists the external fields ToInternal accepts.
	Reverse []fieldMapping

	Log logrus.FieldLogger
}

var imageShortFields = []fieldMapping{
	{"id", "oid"},
	{"name", "name"},
	{"url", "url"},
	{"geometry", "geometry"},
	{"size", "size"},
	{"filesize", "filesize"},
	{"created_at", "created_at"},
	{"taken_at", "taken_at"},
	{"tags", "tags"},
	{"in_trash", "in_trash"},
	{"variants", "variants"},
}

var imageFullFields = append(append([]fieldMapping{}, imageShortFields...),
	fieldMapping{"path", "path"},
	fieldMapping{"format", "format"},
	fieldMapping{"checksum", "checksum"},
	fieldMapping{"updated_at", "updated_at"},
	fieldMapping{"disposition", "disposition"},
	fieldMapping{"import_root_dir", "import_root_dir"},
	fieldMapping{"importer_id", "batch_id"},
	fieldMapping{"orig_id", "orig_id"},
	fieldMapping{"app_id", "app_id"},
)

var imageReverseFields = []fieldMapping{
	{"id", "oid"},
	{"_rev", "_rev"},
	{"name", "name"},
	{"tags", "tags"},
	{"taken_at", "taken_at"},
	{"in_trash", "in_trash"},
}

var importerFields = []fieldMapping{
	{"id", "oid"},
	{"app_id", "app_id"},
	{"import_dir", "path"},
	{"state", "status"},
	{"created_at", "created_at"},
	{"updated_at", "updated_at"},
	{"started_at", "started_at"},
	{"completed_at", "completed_at"},
	{"num_to_import", "num_to_import"},
	{"num_imported", "num_attempted"},
	{"num_success", "num_success"},
	{"num_error", "num_error"},
}

var syncStateFields = []fieldMapping{
	{"id", "oid"},
	{"state", "status"},
	{"started_at", "started_at"},
	{"completed_at", "completed_at"},
	{"docs_read", "docs_read"},
	{"docs_written", "docs_written"},
	{"error", "error"},
}

func newImageTransformer(log logrus.FieldLogger) *transformer {
	return &transformer{
		Short:   imageShortFields,
		Full:    imageFullFields,
		Reverse: imageReverseFields,
		Log:     log,
	}
}

func newImporterTransformer(log logrus.FieldLogger) *transformer {
	return &transformer{
		Short:   importerFields,
		Full:    importerFields,
		Reverse: importerFields,
		Log:     log,
	}
}

func newSyncStateTransformer(log logrus.FieldLogger) *transformer {
	return &transformer{
		Short:   syncStateFields,
		Full:    syncStateFields,
		Reverse: nil,
		Log:     log,
	}
}

// errNotDocument is returned when a transform is asked to convert
// something that is not a mediamanager.Document.
var errNotDocument = errors.New("value is not a document")

// ShortForm converts a document to its short external form.
func (t *transformer) ShortForm(doc mediamanager.Document) (restdata.Rep, error) {
	return t.transform(doc, t.Short)
}

// FullForm converts a document to its full external form.
func (t *transformer) FullForm(doc mediamanager.Document) (restdata.Rep, error) {
	return t.transform(doc, t.Full)
}

// ShortForms converts a list of documents to short form.  Documents
// that fail to convert are logged and left out of the result.
func (t *transformer) ShortForms(docs []mediamanager.Document) []restdata.Rep {
	return t.forms(docs, t.Short)
}

// FullForms converts a list of documents to full form, like
// ShortForms.
func (t *transformer) FullForms(docs []mediamanager.Document) []restdata.Rep {
	return t.forms(docs, t.Full)
}

func (t *transformer) forms(docs []mediamanager.Document, fields []fieldMapping) []restdata.Rep {
	reps := make([]restdata.Rep, 0, len(docs))
	for _, doc := range docs {
		rep, err := t.transform(doc, fields)
		if err != nil {
			t.log().WithError(err).Error("dropping document that failed to transform")
			continue
		}
		reps = append(reps, rep)
	}
	return reps
}

// NewestFirst returns the documents in reverse order.  Backends list
// images oldest first.
func NewestFirst(docs []mediamanager.Document) []mediamanager.Document {
	out := make([]mediamanager.Document, len(docs))
	for i, doc := range docs {
		out[len(docs)-1-i] = doc
	}
	return out
}

func (t *transformer) log() logrus.FieldLogger {
	if t.Log == nil {
		return logrus.StandardLogger()
	}
	return t.Log
}

// transform applies a field list to one document.  A panic while
// reading the document becomes an error.
func (t *transformer) transform(doc mediamanager.Document, fields []fieldMapping) (rep restdata.Rep, err error) {
	if isNilDocument(doc) {
		return nil, errNotDocument
	}
	defer func() {
		if recovered := recover(); recovered != nil {
			rep = nil
			err = fmt.Errorf("transform failed: %v", recovered)
		}
	}()

	rep = restdata.Rep{}
	for _, m := range fields {
		value, present := doc.Field(m.Internal)
		if !present {
			continue
		}
		switch {
		case sigilFields[m.External]:
			s, isString := value.(string)
			if !isString {
				return nil, fmt.Errorf("identifier %q is a %T", m.Internal, value)
			}
			rep[m.External] = restdata.EncodeID(s)
		case m.External == "variants":
			variants, isList := value.([]mediamanager.Document)
			if !isList {
				return nil, fmt.Errorf("variants is a %T", value)
			}
			reps := make([]restdata.Rep, 0, len(variants))
			for _, variant := range variants {
				vrep, err := t.transform(variant, t.Short)
				if err != nil {
					return nil, err
				}
				reps = append(reps, vrep)
			}
			rep[m.External] = reps
		default:
			rep[m.External] = value
		}
	}

	// Older records may lack the canonical fields
	if _, hasID := rep["id"]; !hasID {
		if id, present := doc.Field("_id"); present {
			if s, isString := id.(string); isString && s != "" {
				rep["id"] = restdata.EncodeID(s)
			}
		}
	}
	if _, hasName := rep["name"]; !hasName && mentions(fields, "name") {
		if path, present := doc.Field("path"); present {
			if s, isString := path.(string); isString && s != "" {
				rep["name"] = mediamanager.NameFromPath(s)
			}
		}
	}
	return rep, nil
}

// mentions reports whether a field list has an external name.
func mentions(fields []fieldMapping, external string) bool {
	for _, m := range fields {
		if m.External == external {
			return true
		}
	}
	return false
}

// isNilDocument catches both a nil interface and a typed nil pointer.
func isNilDocument(doc mediamanager.Document) bool {
	if doc == nil {
		return true
	}
	v := reflect.ValueOf(doc)
	return (v.Kind() == reflect.Ptr || v.Kind() == reflect.Map) && v.IsNil()
}

// ToInternal converts an external representation into an internal
// patch.  Only fields the transformer accepts are copied.  The
// document identifier comes from id if it is non-empty, else from
// the representation's own "id".
func (t *transformer) ToInternal(id string, attrs map[string]interface{}) (mediamanager.Doc, error) {
	doc := mediamanager.Doc{}
	for _, m := range t.Reverse {
		value, present := attrs[m.External]
		if !present || value == nil {
			continue
		}
		if sigilFields[m.External] || upperFields[m.External] {
			s, isString := value.(string)
			if !isString {
				return nil, mediamanager.ErrInvalidAttribute{
					Name:   m.External,
					Reason: fmt.Sprintf("expected a string, got %T", value),
				}
			}
			if sigilFields[m.External] {
				value = restdata.DecodeID(s)
			} else {
				value = strings.ToUpper(s)
			}
		}
		doc[m.Internal] = value
	}
	if id != "" {
		doc["oid"] = restdata.DecodeID(id)
	}
	return doc, nil
}

// imageDocuments converts an image list to the Document interface.
func imageDocuments(images []*mediamanager.Image) []mediamanager.Document {
	docs := make([]mediamanager.Document, len(images))
	for i, img := range images {
		docs[i] = img
	}
	return docs
}

func batchDocuments(batches []*mediamanager.ImportBatch) []mediamanager.Document {
	docs := make([]mediamanager.Document, len(batches))
	for i, b := range batches {
		docs[i] = b
	}
	return docs
}
