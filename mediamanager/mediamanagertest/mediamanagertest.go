// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

// Package mediamanagertest provides generic functional tests for the
// media manager backend interface.  A typical backend test module
// needs to wrap Suite to create its backend:
//
//     package mybackend
//
//     import (
//             "testing"
//             "github.com/diffeo/go-mediamanager/mediamanager/mediamanagertest"
//             "github.com/stretchr/testify/suite"
//     )
//
//     // Suite is the per-backend generic test suite.
//     type Suite struct{
//             mediamanagertest.Suite
//     }
//
//     // SetupTest creates a fresh backend for every test.
//     func (s *Suite) SetupTest() {
//             s.Suite.SetupTest()
//             s.Service = NewWithClock(s.Clock)
//     }
//
//     // TestMediaManager runs the generic tests.
//     func TestMediaManager(t *testing.T) {
//             suite.Run(t, &Suite{})
//     }
package mediamanagertest

import (
	"image"
	"image/png"
	"io/ioutil"
	"os"
	"path/filepath"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/stretchr/testify/suite"
)

// Suite is the generic media manager backend test suite.
type Suite struct {
	suite.Suite

	// Clock contains the alternate time source to be used in
	// tests.  It is pre-initialized to a mock clock.
	Clock *clock.Mock

	// Service contains the backend under test.  It is set by
	// importing packages.
	Service mediamanager.Service

	// dirs are temporary directories to remove after the test.
	dirs []string
}

// SetupSuite does one-time initialization for the test suite.
func (s *Suite) SetupSuite() {
	s.Clock = clock.NewMock()
	s.Clock.Set(time.Date(2016, 3, 4, 5, 6, 7, 0, time.UTC))
}

// SetupTest does per-test initialization.  Embedding suites should
// call this and then set Service.
func (s *Suite) SetupTest() {
	s.dirs = nil
}

// TearDownTest removes temporary files.
func (s *Suite) TearDownTest() {
	for _, dir := range s.dirs {
		os.RemoveAll(dir)
	}
}

// makeImportDir creates a temporary directory holding n small PNG
// files named img0.png, img1.png, ...
func (s *Suite) makeImportDir(n int) string {
	dir, err := ioutil.TempDir("", "mediamanagertest")
	s.Require().NoError(err)
	s.dirs = append(s.dirs, dir)
	for i := 0; i < n; i++ {
		name := filepath.Join(dir, "img"+string(rune('0'+i))+".png")
		f, err := os.Create(name)
		s.Require().NoError(err)
		err = png.Encode(f, image.NewGray(image.Rect(0, 0, 8+i, 4)))
		f.Close()
		s.Require().NoError(err)
	}
	return dir
}

// saveImage creates a new original image with some tags.
func (s *Suite) saveImage(name string, tags ...string) *mediamanager.Image {
	if tags == nil {
		tags = []string{}
	}
	img, err := s.Service.SaveImage(&mediamanager.Image{
		Name:        name,
		Path:        "/photos/" + name,
		Tags:        tags,
		Disposition: mediamanager.OriginalImage,
	})
	s.Require().NoError(err)
	s.Clock.Add(time.Second)
	return img
}

// runImport imports a directory and waits for it to finish,
// returning the batch and every event seen.
func (s *Suite) runImport(dir string, opts mediamanager.ImportOptions) (*mediamanager.ImportBatch, []mediamanager.ImportEvent) {
	batch, events, err := s.Service.ImportBatchFs(dir, opts)
	s.Require().NoError(err)
	var seen []mediamanager.ImportEvent
	for ev := range events {
		seen = append(seen, ev)
	}
	s.Clock.Add(time.Second)
	return batch, seen
}

// oids extracts the oids from a list of images.
func oids(images []*mediamanager.Image) []string {
	result := make([]string, len(images))
	for i, img := range images {
		result[i] = img.OID
	}
	return result
}
