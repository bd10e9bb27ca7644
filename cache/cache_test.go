// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package cache_test

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/diffeo/go-mediamanager/cache"
	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/diffeo/go-mediamanager/mediamanager/mediamanagertest"
	"github.com/diffeo/go-mediamanager/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// Suite runs the generic media manager tests through a cache over an
// in-memory backend.
type Suite struct {
	mediamanagertest.Suite
	cache *cache.Cache
}

func (s *Suite) SetupTest() {
	s.Suite.SetupTest()
	s.cache = cache.New(memory.NewWithClock(s.Clock), nil)
	s.Service = s.cache
}

func (s *Suite) TearDownTest() {
	s.NoError(s.cache.Close())
	s.Suite.TearDownTest()
}

func TestMediaManager(t *testing.T) {
	suite.Run(t, &Suite{})
}

// Both returns a backend and a cache over it.
func both(t *testing.T) (mediamanager.Service, *cache.Cache) {
	backend := memory.New()
	c := cache.New(backend, nil)
	t.Cleanup(func() { assert.NoError(t, c.Close()) })
	return backend, c
}

// eventually polls f until it returns true.
func eventually(t *testing.T, f func() bool, msg string) {
	deadline := time.Now().Add(5 * time.Second)
	for !f() {
		if time.Now().After(deadline) {
			require.FailNow(t, msg)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

// TestReadOwnWrites checks that writes through the cache are
// immediately visible.
func TestReadOwnWrites(t *testing.T) {
	_, c := both(t)
	img, err := c.SaveImage(&mediamanager.Image{OID: "cat", Name: "cat.jpg"})
	require.NoError(t, err)

	got, err := c.Image("cat", mediamanager.ImageOptions{})
	require.NoError(t, err)
	assert.Equal(t, "cat.jpg", got.Name)

	img.Name = "kitten.jpg"
	_, err = c.SaveImage(img)
	require.NoError(t, err)
	got, err = c.Image("cat", mediamanager.ImageOptions{})
	require.NoError(t, err)
	assert.Equal(t, "kitten.jpg", got.Name)

	require.NoError(t, c.AddTags([]string{"cat"}, []string{"pet"}))
	got, err = c.Image("cat", mediamanager.ImageOptions{IncludeVariants: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"pet"}, got.Tags)

	_, err = c.SendToTrash([]string{"cat"})
	require.NoError(t, err)
	got, err = c.Image("cat", mediamanager.ImageOptions{})
	require.NoError(t, err)
	assert.True(t, got.InTrash)

	_, err = c.DeleteImages([]string{"cat"})
	require.NoError(t, err)
	_, err = c.Image("cat", mediamanager.ImageOptions{})
	assert.Equal(t, mediamanager.ErrNoSuchImage{OID: "cat"}, err)
}

// TestCachedCopies checks that callers cannot change cached
// documents.
func TestCachedCopies(t *testing.T) {
	_, c := both(t)
	_, err := c.SaveImage(&mediamanager.Image{OID: "cat", Name: "cat.jpg"})
	require.NoError(t, err)

	got, err := c.Image("cat", mediamanager.ImageOptions{})
	require.NoError(t, err)
	got.Name = "scribbled"

	got, err = c.Image("cat", mediamanager.ImageOptions{})
	require.NoError(t, err)
	assert.Equal(t, "cat.jpg", got.Name)
}

// TestExternalWrites checks that changes made directly to the backend
// reach the cache through the changes feed.
func TestExternalWrites(t *testing.T) {
	backend, c := both(t)
	img, err := backend.SaveImage(&mediamanager.Image{OID: "cat", Name: "cat.jpg"})
	require.NoError(t, err)
	_, err = c.Image("cat", mediamanager.ImageOptions{})
	require.NoError(t, err)

	img.Name = "tiger.jpg"
	_, err = backend.SaveImage(img)
	require.NoError(t, err)

	eventually(t, func() bool {
		got, err := c.Image("cat", mediamanager.ImageOptions{})
		return err == nil && got.Name == "tiger.jpg"
	}, "cache never saw the external write")
}

func writePNG(t *testing.T, path string) {
	f, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(f, image.NewGray(image.Rect(0, 0, 4, 4))))
	require.NoError(t, f.Close())
}

// TestImportInvalidates checks that images read while an import runs
// pick up their variants once the import is done.
func TestImportInvalidates(t *testing.T) {
	_, c := both(t)
	dir := t.TempDir()
	_, _, err := c.ImportBatchFs(dir, mediamanager.ImportOptions{})
	assert.Equal(t, mediamanager.ErrNoFilesFound{Dir: dir}, err)

	writePNG(t, filepath.Join(dir, "a.png"))
	batch, events, err := c.ImportBatchFs(dir, mediamanager.ImportOptions{})
	require.NoError(t, err)

	// cache the batch while it is still running
	_, err = c.ImportBatch(batch.OID, mediamanager.ImportBatchOptions{})
	require.NoError(t, err)

	var oid string
	for ev := range events {
		if ev.Kind == mediamanager.ImageCreatedEvent {
			oid = ev.Image.OID
			// cache the original before it has a variant
			_, err := c.Image(oid, mediamanager.ImageOptions{IncludeVariants: true})
			assert.NoError(t, err)
		}
	}
	require.NotEmpty(t, oid)

	img, err := c.Image(oid, mediamanager.ImageOptions{IncludeVariants: true})
	require.NoError(t, err)
	assert.Len(t, img.Variants, 1)

	cached, err := c.ImportBatch(batch.OID, mediamanager.ImportBatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, mediamanager.ImportCompleted, cached.Status)
	assert.Equal(t, 1, cached.NumSuccess)

	updated, err := c.UpdateImportBatch(mediamanager.Doc{"oid": batch.OID, "status": "ABORTED"})
	require.NoError(t, err)
	assert.Equal(t, mediamanager.ImportAborted, updated.Status)
	cached, err = c.ImportBatch(batch.OID, mediamanager.ImportBatchOptions{})
	require.NoError(t, err)
	assert.Equal(t, mediamanager.ImportAborted, cached.Status)
}
