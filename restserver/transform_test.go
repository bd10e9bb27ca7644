// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"testing"
	"time"

	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/diffeo/go-mediamanager/restdata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testTime = time.Date(2016, 3, 4, 5, 6, 7, 0, time.UTC)

func testImage() *mediamanager.Image {
	return &mediamanager.Image{
		OID:         "aaa-bbb-ccc",
		Name:        "anImage.jpg",
		Path:        "/some/path/to/anImage.jpg",
		URL:         "http://localhost:5984/some_db/aaa-bbb-ccc",
		Format:      "JPEG",
		Geometry:    "100x50",
		Size:        &mediamanager.Size{Width: 100, Height: 50},
		Filesize:    1234,
		Checksum:    "SOME_CHECKSUM",
		CreatedAt:   testTime,
		TakenAt:     testTime,
		BatchID:     "batch",
		Disposition: mediamanager.OriginalImage,
		Variants: []*mediamanager.Image{
			{
				OID:         "variant",
				Name:        "anImage-thumb.jpg",
				Format:      "JPEG",
				OrigID:      "aaa-bbb-ccc",
				Disposition: mediamanager.VariantImage,
			},
		},
	}
}

func assertShortForm(t *testing.T, rep restdata.Rep, img *mediamanager.Image) {
	assert.Equal(t, "$"+img.OID, rep["id"])
	assert.Equal(t, img.Name, rep["name"])
	assert.Equal(t, img.URL, rep["url"])
	assert.Equal(t, img.Geometry, rep["geometry"])
	assert.Equal(t, map[string]interface{}{"width": 100, "height": 50}, rep["size"])
	assert.Equal(t, img.Filesize, rep["filesize"])
	assert.Equal(t, img.CreatedAt, rep["created_at"])
	assert.Equal(t, img.TakenAt, rep["taken_at"])
}

func TestImageShortForm(t *testing.T) {
	tr := newImageTransformer(nil)
	img := testImage()
	rep, err := tr.ShortForm(img)
	require.NoError(t, err)
	assertShortForm(t, rep, img)
	assert.Equal(t, []string{}, rep["tags"])
	assert.Equal(t, false, rep["in_trash"])

	for _, key := range []string{"path", "format", "checksum", "importer_id"} {
		assert.NotContains(t, rep, key)
	}
	// absent fields are absent, not empty
	assert.NotContains(t, rep, "updated_at")

	if variants, ok := rep["variants"].([]restdata.Rep); assert.True(t, ok) && assert.Len(t, variants, 1) {
		assert.Equal(t, "$variant", variants[0]["id"])
		assert.NotContains(t, variants[0], "format")
		assert.NotContains(t, variants[0], "in_trash")
	}
}

func TestImageFullForm(t *testing.T) {
	tr := newImageTransformer(nil)
	img := testImage()
	rep, err := tr.FullForm(img)
	require.NoError(t, err)
	assertShortForm(t, rep, img)
	assert.Equal(t, img.Path, rep["path"])
	assert.Equal(t, img.Format, rep["format"])
	assert.Equal(t, img.Checksum, rep["checksum"])
	assert.Equal(t, "$batch", rep["importer_id"])
	assert.NotContains(t, rep, "orig_id")

	// variants are short form even inside a full form
	if variants, ok := rep["variants"].([]restdata.Rep); assert.True(t, ok) && assert.Len(t, variants, 1) {
		assert.NotContains(t, variants[0], "orig_id")
		assert.NotContains(t, variants[0], "format")
	}
}

func TestLegacyFallback(t *testing.T) {
	tr := newImageTransformer(nil)
	rep, err := tr.ShortForm(mediamanager.Doc{
		"_id":  "legacy",
		"path": "/old/photos/cat.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "$legacy", rep["id"])
	assert.Equal(t, "cat.png", rep["name"])

	// canonical fields win
	rep, err = tr.ShortForm(mediamanager.Doc{
		"_id":  "legacy",
		"oid":  "canonical",
		"name": "dog.png",
		"path": "/old/photos/cat.png",
	})
	require.NoError(t, err)
	assert.Equal(t, "$canonical", rep["id"])
	assert.Equal(t, "dog.png", rep["name"])
}

func TestSigilIdempotent(t *testing.T) {
	tr := newImageTransformer(nil)
	rep, err := tr.ShortForm(mediamanager.Doc{"oid": "$abc"})
	require.NoError(t, err)
	assert.Equal(t, "$abc", rep["id"])

	rep, err = tr.ShortForm(mediamanager.Doc{"_id": "$abc"})
	require.NoError(t, err)
	assert.Equal(t, "$abc", rep["id"])
}

func TestTransformFailure(t *testing.T) {
	tr := newImageTransformer(nil)
	_, err := tr.ShortForm(mediamanager.Doc{"oid": 17})
	assert.Error(t, err)

	_, err = tr.ShortForm((*mediamanager.Image)(nil))
	assert.Error(t, err)

	reps := tr.ShortForms([]mediamanager.Document{
		mediamanager.Doc{"oid": "good"},
		mediamanager.Doc{"oid": 17},
		panicDocument{},
		mediamanager.Doc{"oid": "also-good"},
	})
	if assert.Len(t, reps, 2) {
		assert.Equal(t, "$good", reps[0]["id"])
		assert.Equal(t, "$also-good", reps[1]["id"])
	}
}

// panicDocument is a malformed document whose fields cannot be read.
type panicDocument struct{}

func (panicDocument) Field(name string) (interface{}, bool) {
	panic("malformed document")
}

func TestNewestFirst(t *testing.T) {
	docs := []mediamanager.Document{
		mediamanager.Doc{"oid": "1"},
		mediamanager.Doc{"oid": "2"},
		mediamanager.Doc{"oid": "3"},
	}
	reps := newImageTransformer(nil).ShortForms(NewestFirst(docs))
	ids := make([]interface{}, len(reps))
	for i, rep := range reps {
		ids[i] = rep["id"]
	}
	assert.Equal(t, []interface{}{"$3", "$2", "$1"}, ids)
}

func testBatch() *mediamanager.ImportBatch {
	return &mediamanager.ImportBatch{
		OID:          "batch",
		AppID:        "app",
		Path:         "/import/dir",
		Status:       mediamanager.ImportStarted,
		CreatedAt:    testTime,
		UpdatedAt:    testTime,
		StartedAt:    testTime,
		NumToImport:  5,
		NumAttempted: 3,
		NumSuccess:   2,
		NumError:     1,
	}
}

func TestImporterFullForm(t *testing.T) {
	tr := newImporterTransformer(nil)
	batch := testBatch()
	rep, err := tr.FullForm(batch)
	require.NoError(t, err)
	assert.Equal(t, "$batch", rep["id"])
	assert.Equal(t, "$app", rep["app_id"])
	assert.Equal(t, "/import/dir", rep["import_dir"])
	assert.Equal(t, "STARTED", rep["state"])
	assert.Equal(t, testTime, rep["created_at"])
	assert.Equal(t, testTime, rep["started_at"])
	assert.Equal(t, 5, rep["num_to_import"])
	assert.Equal(t, 3, rep["num_imported"])
	assert.Equal(t, 2, rep["num_success"])
	assert.Equal(t, 1, rep["num_error"])
	assert.NotContains(t, rep, "completed_at")
	assert.NotContains(t, rep, "name")
}

// TestImporterRoundTrip checks that converting a full form back to
// internal fields reproduces the original values.
func TestImporterRoundTrip(t *testing.T) {
	tr := newImporterTransformer(nil)
	batch := testBatch()
	rep, err := tr.FullForm(batch)
	require.NoError(t, err)

	doc, err := tr.ToInternal("", rep)
	require.NoError(t, err)
	for _, m := range importerFields {
		want, present := batch.Field(m.Internal)
		if !present {
			assert.NotContains(t, doc, m.Internal)
			continue
		}
		assert.Equal(t, want, doc[m.Internal], m.Internal)
	}

	doc, err = tr.ToInternal("$other", rep)
	require.NoError(t, err)
	assert.Equal(t, "other", doc["oid"])
}

func TestToInternal(t *testing.T) {
	tr := newImporterTransformer(nil)
	doc, err := tr.ToInternal("", map[string]interface{}{
		"id":      "$batch",
		"app_id":  "$app",
		"state":   "completed",
		"unknown": "dropped",
	})
	require.NoError(t, err)
	assert.Equal(t, mediamanager.Doc{
		"oid":    "batch",
		"app_id": "app",
		"status": "COMPLETED",
	}, doc)

	_, err = tr.ToInternal("", map[string]interface{}{"state": 3})
	assert.IsType(t, mediamanager.ErrInvalidAttribute{}, err)
}
