// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package mediamanagertest

import (
	"github.com/diffeo/go-mediamanager/mediamanager"
)

// TestImageSaveAndFetch checks basic image storage.
func (s *Suite) TestImageSaveAndFetch() {
	img := s.saveImage("a.jpg", "beach")
	s.NotEmpty(img.OID)
	s.NotEmpty(img.Rev)
	s.Equal(s.Clock.Now().Add(-1e9).UTC(), img.CreatedAt.UTC())

	fetched, err := s.Service.Image(img.OID, mediamanager.ImageOptions{})
	if s.NoError(err) {
		s.Equal(img.OID, fetched.OID)
		s.Equal("a.jpg", fetched.Name)
		s.Equal([]string{"beach"}, fetched.Tags)
		s.False(fetched.InTrash)
	}

	_, err = s.Service.Image("missing", mediamanager.ImageOptions{})
	s.Equal(mediamanager.ErrNoSuchImage{OID: "missing"}, err)
}

// TestImageConflict checks that stale revisions are rejected.
func (s *Suite) TestImageConflict() {
	img := s.saveImage("a.jpg")

	first := img.Copy()
	first.Name = "b.jpg"
	updated, err := s.Service.SaveImage(first)
	if !s.NoError(err) {
		return
	}
	s.NotEqual(img.Rev, updated.Rev)

	stale := img.Copy()
	stale.Name = "c.jpg"
	_, err = s.Service.SaveImage(stale)
	s.Equal(mediamanager.ErrConflict, err)

	fetched, err := s.Service.Image(img.OID, mediamanager.ImageOptions{})
	if s.NoError(err) {
		s.Equal("b.jpg", fetched.Name)
	}
}

// TestImageOrder checks that Images returns oldest first.
func (s *Suite) TestImageOrder() {
	a := s.saveImage("a.jpg")
	b := s.saveImage("b.jpg")
	c := s.saveImage("c.jpg")

	images, err := s.Service.Images(mediamanager.ImageFilter{})
	if s.NoError(err) {
		s.Equal([]string{a.OID, b.OID, c.OID}, oids(images))
	}
}

// TestTrash checks moving images to and from the trash.
func (s *Suite) TestTrash() {
	a := s.saveImage("a.jpg")
	b := s.saveImage("b.jpg")

	trashed, err := s.Service.SendToTrash([]string{a.OID})
	if s.NoError(err) && s.Len(trashed, 1) {
		s.True(trashed[0].InTrash)
	}

	in, err := s.Service.FindImagesByTrashState(mediamanager.TrashIn)
	if s.NoError(err) {
		s.Equal([]string{a.OID}, oids(in))
	}
	out, err := s.Service.FindImagesByTrashState(mediamanager.TrashOut)
	if s.NoError(err) {
		s.Equal([]string{b.OID}, oids(out))
	}
	all, err := s.Service.FindImagesByTrashState(mediamanager.TrashAny)
	if s.NoError(err) {
		s.Equal([]string{a.OID, b.OID}, oids(all))
	}

	_, err = s.Service.RestoreFromTrash([]string{a.OID})
	s.NoError(err)
	in, err = s.Service.FindImagesByTrashState(mediamanager.TrashIn)
	if s.NoError(err) {
		s.Empty(in)
	}

	_, err = s.Service.SendToTrash([]string{"missing"})
	s.Equal(mediamanager.ErrNoSuchImage{OID: "missing"}, err)
}

// TestEmptyTrash checks permanent deletion of trashed images.
func (s *Suite) TestEmptyTrash() {
	a := s.saveImage("a.jpg")
	b := s.saveImage("b.jpg")
	_, err := s.Service.SendToTrash([]string{a.OID})
	s.Require().NoError(err)

	deleted, err := s.Service.EmptyTrash()
	if s.NoError(err) {
		s.Equal([]string{a.OID}, deleted)
	}

	_, err = s.Service.Image(a.OID, mediamanager.ImageOptions{})
	s.Equal(mediamanager.ErrNoSuchImage{OID: a.OID}, err)
	_, err = s.Service.Image(b.OID, mediamanager.ImageOptions{})
	s.NoError(err)
}

// TestDeleteImages checks bulk deletion.
func (s *Suite) TestDeleteImages() {
	a := s.saveImage("a.jpg")
	b := s.saveImage("b.jpg")

	deleted, err := s.Service.DeleteImages([]string{a.OID, "missing"})
	if s.NoError(err) {
		s.Equal([]string{a.OID}, oids(deleted))
	}
	images, err := s.Service.Images(mediamanager.ImageFilter{TrashState: mediamanager.TrashAny})
	if s.NoError(err) {
		s.Equal([]string{b.OID}, oids(images))
	}
}

// TestTagFilters checks the tag filter rules.
func (s *Suite) TestTagFilters() {
	untagged := s.saveImage("none.jpg")
	beach := s.saveImage("beach.jpg", "beach")
	both := s.saveImage("both.jpg", "beach", "sunset")
	sunset := s.saveImage("sunset.jpg", "sunset")

	find := func(filter *mediamanager.TagFilter) []string {
		images, err := s.Service.Images(mediamanager.ImageFilter{Tags: filter})
		s.Require().NoError(err)
		return oids(images)
	}

	s.Equal([]string{untagged.OID}, find(&mediamanager.TagFilter{
		GroupOp: mediamanager.GroupOr,
		Rules:   []mediamanager.FilterRule{{Field: "tags", Op: mediamanager.OpEq, Data: []string{}}},
	}))
	s.Equal([]string{beach.OID, both.OID}, find(&mediamanager.TagFilter{
		Rules: []mediamanager.FilterRule{{Field: "tags", Op: mediamanager.OpEq, Data: []string{"beach"}}},
	}))
	s.Equal([]string{beach.OID, both.OID, sunset.OID}, find(&mediamanager.TagFilter{
		GroupOp: mediamanager.GroupOr,
		Rules: []mediamanager.FilterRule{
			{Field: "tags", Op: mediamanager.OpEq, Data: []string{"beach"}},
			{Field: "tags", Op: mediamanager.OpEq, Data: []string{"sunset"}},
		},
	}))
	s.Equal([]string{both.OID}, find(&mediamanager.TagFilter{
		GroupOp: mediamanager.GroupAnd,
		Rules: []mediamanager.FilterRule{
			{Field: "tags", Op: mediamanager.OpEq, Data: []string{"beach"}},
			{Field: "tags", Op: mediamanager.OpEq, Data: []string{"sunset"}},
		},
	}))
	s.Equal([]string{beach.OID, both.OID, sunset.OID}, find(&mediamanager.TagFilter{
		Rules: []mediamanager.FilterRule{{Field: "tags", Op: mediamanager.OpNe, Data: []string{}}},
	}))
}

// TestTagging checks the bulk tagging operations.
func (s *Suite) TestTagging() {
	a := s.saveImage("a.jpg", "x")
	b := s.saveImage("b.jpg")
	both := []string{a.OID, b.OID}

	s.NoError(s.Service.AddTags(both, []string{"y", "x"}))
	tags, err := s.Service.ImagesTags([]string{b.OID})
	if s.NoError(err) {
		s.Equal([]string{"x", "y"}, tags)
	}

	s.NoError(s.Service.RemoveTags([]string{a.OID}, []string{"x"}))
	tags, err = s.Service.ImagesTags([]string{a.OID})
	if s.NoError(err) {
		s.Equal([]string{"y"}, tags)
	}

	s.NoError(s.Service.ReplaceTags(both, []string{"z"}))
	tags, err = s.Service.Tags()
	if s.NoError(err) {
		s.Equal([]string{"z"}, tags)
	}

	err = s.Service.AddTags([]string{"missing"}, []string{"z"})
	s.Equal(mediamanager.ErrNoSuchImage{OID: "missing"}, err)
}
