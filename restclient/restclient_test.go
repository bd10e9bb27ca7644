// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/diffeo/go-mediamanager/memory"
	"github.com/diffeo/go-mediamanager/restdata"
	"github.com/diffeo/go-mediamanager/restserver"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
)

// Suite runs the client against a live server over an in-memory
// backend.
type Suite struct {
	suite.Suite
	Clock   *clock.Mock
	Service mediamanager.Service
	Server  *httptest.Server
	Client  *Client
}

func TestRestClient(t *testing.T) {
	suite.Run(t, &Suite{})
}

func (s *Suite) SetupTest() {
	s.Clock = clock.NewMock()
	s.Clock.Set(time.Date(2016, 3, 1, 12, 0, 0, 0, time.UTC))
	s.Service = memory.NewWithClock(s.Clock)
	router, err := restserver.NewRouter(s.Service, nil, nil)
	s.Require().NoError(err)
	s.Server = httptest.NewServer(router)
	s.Client, err = New(s.Server.URL + restdata.PathPrefix)
	s.Require().NoError(err)
}

func (s *Suite) TearDownTest() {
	s.Server.Close()
}

func (s *Suite) saveImage(oid string, tags ...string) {
	_, err := s.Service.SaveImage(&mediamanager.Image{
		OID:  oid,
		Path: "/photos/" + oid + ".jpg",
		Tags: tags,
	})
	s.Require().NoError(err)
	s.Clock.Add(time.Second)
}

func ids(reps []restdata.Rep) []string {
	result := make([]string, len(reps))
	for i, rep := range reps {
		result[i], _ = rep["id"].(string)
	}
	return result
}

func (s *Suite) TestImages() {
	s.saveImage("a", "red")
	s.saveImage("b", "red", "blue")
	s.saveImage("c")

	reps, err := s.Client.Images(ImageQuery{})
	if s.NoError(err) {
		s.Equal([]string{"$c", "$b", "$a"}, ids(reps))
	}

	reps, err = s.Client.Images(ImageQuery{Tags: []string{"red"}})
	if s.NoError(err) {
		s.Equal([]string{"$b", "$a"}, ids(reps))
	}

	reps, err = s.Client.Images(ImageQuery{Tags: []string{"red", "blue"}, MatchAll: true})
	if s.NoError(err) {
		s.Equal([]string{"$b"}, ids(reps))
	}

	reps, err = s.Client.Images(ImageQuery{Untagged: true})
	if s.NoError(err) {
		s.Equal([]string{"$c"}, ids(reps))
	}
}

func (s *Suite) TestImage() {
	s.saveImage("a", "red")

	rep, err := s.Client.Image("a")
	if s.NoError(err) {
		s.Equal("$a", rep["id"])
		s.Equal("a.jpg", rep["name"])
	}

	// The sigil is optional
	rep, err = s.Client.Image("$a")
	if s.NoError(err) {
		s.Equal("$a", rep["id"])
	}

	rep, err = s.Client.Image("missing")
	if s.NoError(err) {
		s.Empty(rep)
	}
}

func (s *Suite) TestUpdateImage() {
	s.saveImage("a")

	rep, err := s.Client.UpdateImage("a", "", restdata.Rep{"name": "renamed.jpg"})
	if s.NoError(err) {
		s.Equal("renamed.jpg", rep["name"])
	}

	_, err = s.Client.UpdateImage("a", "no-such-revision", restdata.Rep{"name": "again.jpg"})
	if s.Error(err) {
		if apiErr, ok := err.(restdata.APIError); s.True(ok, "%T", err) {
			s.Equal(restdata.Conflict, apiErr.Code)
		}
	}
}

func (s *Suite) TestTrash() {
	s.saveImage("a")
	s.saveImage("b")

	rep, err := s.Client.SendToTrash("a")
	if s.NoError(err) {
		s.Equal(true, rep["in_trash"])
	}

	reps, err := s.Client.Images(ImageQuery{TrashState: mediamanager.TrashIn})
	if s.NoError(err) {
		s.Equal([]string{"$a"}, ids(reps))
	}

	_, err = s.Client.RestoreFromTrash("a")
	s.NoError(err)
	reps, err = s.Client.Images(ImageQuery{})
	if s.NoError(err) {
		s.Equal([]string{"$b", "$a"}, ids(reps))
	}

	_, err = s.Client.SendToTrash("b")
	s.NoError(err)
	reps, err = s.Client.DeleteImages(mediamanager.TrashIn)
	if s.NoError(err) {
		s.Equal([]string{"$b"}, ids(reps))
	}

	rep, err = s.Client.DeleteImage("a")
	if s.NoError(err) {
		s.Equal("$a", rep["id"])
	}
	reps, err = s.Client.Images(ImageQuery{TrashState: mediamanager.TrashAny})
	if s.NoError(err) {
		s.Empty(reps)
	}
}

func (s *Suite) TestTags() {
	s.saveImage("a", "red")
	s.saveImage("b", "blue")

	tags, err := s.Client.Tags()
	if s.NoError(err) {
		s.Equal([]string{"blue", "red"}, tags)
	}

	s.NoError(s.Client.AddTags([]string{"a", "b"}, []string{"green"}))
	tags, err = s.Client.ImagesTags([]string{"a"})
	if s.NoError(err) {
		s.Equal([]string{"green", "red"}, tags)
	}

	s.NoError(s.Client.ReplaceTags([]string{"a"}, []string{"gold"}))
	tags, err = s.Client.ImagesTags([]string{"a"})
	if s.NoError(err) {
		s.Equal([]string{"gold"}, tags)
	}

	s.NoError(s.Client.RemoveTags([]string{"a", "b"}, []string{"gold", "green"}))
	tags, err = s.Client.Tags()
	if s.NoError(err) {
		s.Equal([]string{"blue"}, tags)
	}
}

func (s *Suite) TestImportersEmpty() {
	reps, err := s.Client.RecentImporters(10)
	if s.NoError(err) {
		s.Empty(reps)
	}

	reps, paging, err := s.Client.ImportersPage("", 5)
	if s.NoError(err) {
		s.Empty(reps)
		if s.NotNil(paging) {
			s.Equal(5, paging.PageSize)
			s.Equal(restdata.NoCursor, paging.Cursors.Next)
		}
	}

	_, err = s.Client.Import(restdata.ImportRequest{})
	if s.Error(err) {
		if apiErr, ok := err.(restdata.APIError); s.True(ok, "%T", err) {
			s.Equal(restdata.BadRequest, apiErr.Code)
		}
	}
}

func (s *Suite) TestSync() {
	rep, err := s.Client.StartSync()
	if !s.NoError(err) {
		return
	}
	id, _ := rep["id"].(string)
	s.NotEmpty(id)

	rep, err = s.Client.Synchronizer(id)
	if s.NoError(err) {
		s.Equal(id, rep["id"])
	}
}

func (s *Suite) TestChangesFeed() {
	id, _, err := s.Client.OpenChangesFeed(restdata.ChangesFeedRequest{})
	if !s.NoError(err) {
		return
	}
	s.NotEmpty(id)
	s.NoError(s.Client.CloseChangesFeed(id))

	// A second close names a feed that no longer exists
	s.Error(s.Client.CloseChangesFeed(id))
}

func TestNewRequiresAbsoluteURL(t *testing.T) {
	_, err := New("")
	assert.Equal(t, ErrNoBaseURL, err)

	_, err = New("/v0")
	assert.Equal(t, ErrNoBaseURL, err)

	c, err := New("http://localhost:5984/v0")
	if assert.NoError(t, err) {
		assert.Equal(t, "/v0/", c.URL.Path)
	}
}

func TestNonEnvelopeError(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	c, err := New(server.URL)
	if !assert.NoError(t, err) {
		return
	}
	_, err = c.Tags()
	if assert.Error(t, err) {
		if httpErr, ok := err.(ErrorHTTP); assert.True(t, ok, "%T", err) {
			assert.Equal(t, http.StatusNotFound, httpErr.Response.StatusCode)
			assert.Contains(t, httpErr.Body, "not found")
		}
	}
}
