// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"image"
	"image/color"
	"image/png"
	"io"
	"io/ioutil"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/diffeo/go-mediamanager/memory"
	"github.com/diffeo/go-mediamanager/restdata"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/suite"
)

// recordingPublisher keeps every notification it is sent.
type recordingPublisher struct {
	lock   sync.Mutex
	events []restdata.Notification
	notify chan struct{}
}

func newRecordingPublisher() *recordingPublisher {
	return &recordingPublisher{notify: make(chan struct{}, 1024)}
}

func (p *recordingPublisher) Publish(resource, event string, data interface{}) {
	p.lock.Lock()
	p.events = append(p.events, restdata.Notification{Resource: resource, Event: event, Data: data})
	p.lock.Unlock()
	p.notify <- struct{}{}
}

// waitFor waits until an event has been published, and returns
// everything published so far.
func (p *recordingPublisher) waitFor(event string) ([]restdata.Notification, bool) {
	timeout := time.After(5 * time.Second)
	for {
		p.lock.Lock()
		events := append([]restdata.Notification{}, p.events...)
		p.lock.Unlock()
		for _, ev := range events {
			if ev.Event == event {
				return events, true
			}
		}
		select {
		case <-p.notify:
		case <-timeout:
			return events, false
		}
	}
}

// APISuite drives the REST API over an in-memory backend.
type APISuite struct {
	suite.Suite
	Clock     *clock.Mock
	Service   mediamanager.Service
	Publisher *recordingPublisher
	API       *API
	Router    *mux.Router
	dirs      []string
}

func TestAPI(t *testing.T) {
	suite.Run(t, &APISuite{})
}

func (s *APISuite) SetupTest() {
	s.Clock = clock.NewMock()
	s.Clock.Set(testTime)
	s.Service = memory.NewWithClock(s.Clock)
	s.Publisher = newRecordingPublisher()
	var err error
	s.API, err = NewAPI(s.Service, s.Publisher, nil)
	s.Require().NoError(err)
	s.Router = mux.NewRouter()
	s.API.PopulateRouter(s.Router)
}

func (s *APISuite) TearDownTest() {
	s.NoError(s.API.Close())
	for _, dir := range s.dirs {
		os.RemoveAll(dir)
	}
	s.dirs = nil
}

// do sends one request and decodes the response envelope.
func (s *APISuite) do(method, path, body string) (int, restdata.Response) {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	s.Router.ServeHTTP(rec, req)

	var resp restdata.Response
	s.Require().NoError(resp.UnmarshalJSON(rec.Body.Bytes()), rec.Body.String())
	s.Equal(restdata.V0JSONMediaType, rec.Header().Get("Content-Type"))
	return rec.Code, resp
}

// reps converts a collection representation to a list of maps.
func (s *APISuite) reps(rep interface{}) []map[string]interface{} {
	list, ok := rep.([]interface{})
	s.Require().True(ok, "representation is a %T", rep)
	out := make([]map[string]interface{}, len(list))
	for i, item := range list {
		out[i], ok = item.(map[string]interface{})
		s.Require().True(ok, "item is a %T", item)
	}
	return out
}

func (s *APISuite) ids(rep interface{}) []string {
	var ids []string
	for _, r := range s.reps(rep) {
		ids = append(ids, r["id"].(string))
	}
	return ids
}

func (s *APISuite) saveImage(oid string, tags ...string) *mediamanager.Image {
	img, err := s.Service.SaveImage(&mediamanager.Image{
		OID:  oid,
		Name: oid + ".jpg",
		Path: "/photos/" + oid + ".jpg",
		Tags: tags,
	})
	s.Require().NoError(err)
	s.Clock.Add(time.Second)
	return img
}

// makeImportDir writes n small PNG files to a new directory.
func (s *APISuite) makeImportDir(n int) string {
	dir, err := ioutil.TempDir("", "restserver")
	s.Require().NoError(err)
	s.dirs = append(s.dirs, dir)
	for i := 0; i < n; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 8+i, 4))
		img.Set(0, 0, color.RGBA{R: 255, A: 255})
		f, err := os.Create(filepath.Join(dir, "img"+string(rune('a'+i))+".png"))
		s.Require().NoError(err)
		s.Require().NoError(png.Encode(f, img))
		s.Require().NoError(f.Close())
	}
	return dir
}

// runImport imports a directory through the backend directly and
// waits for it to finish.
func (s *APISuite) runImport(dir string) *mediamanager.ImportBatch {
	batch, events, err := s.Service.ImportBatchFs(dir, mediamanager.ImportOptions{})
	s.Require().NoError(err)
	for range events {
	}
	batch, err = s.Service.ImportBatch(batch.OID, mediamanager.ImportBatchOptions{
		IncludeImages: true,
		TrashState:    mediamanager.TrashAny,
	})
	s.Require().NoError(err)
	s.Clock.Add(time.Second)
	return batch
}

// TestUntaggedImages checks that an empty tags query selects images
// without tags.
func (s *APISuite) TestUntaggedImages() {
	s.saveImage("tagged", "t1")
	s.saveImage("untagged")

	code, resp := s.do("GET", "/v0/images?tags=", "")
	s.Equal(http.StatusOK, code)
	s.Equal(0, resp.Status)
	s.Equal("images", resp.Name)
	reps := s.reps(resp.Rep)
	if s.Len(reps, 1) {
		s.Equal("$untagged", reps[0]["id"])
		s.Equal("untagged.jpg", reps[0]["name"])
		s.NotContains(reps[0], "path")
	}
}

func (s *APISuite) TestImagesIndex() {
	s.saveImage("a", "red")
	s.saveImage("b", "red", "blue")
	s.saveImage("c", "blue")

	_, resp := s.do("GET", "/v0/images", "")
	s.Equal([]string{"$c", "$b", "$a"}, s.ids(resp.Rep))

	_, resp = s.do("GET", "/v0/images?tags=red", "")
	s.Equal([]string{"$b", "$a"}, s.ids(resp.Rep))

	_, resp = s.do("GET", "/v0/images?tags=red,blue", "")
	s.Equal([]string{"$c", "$b", "$a"}, s.ids(resp.Rep))

	_, resp = s.do("GET", "/v0/images?tags=red,blue&tag_query_op=AND", "")
	s.Equal([]string{"$b"}, s.ids(resp.Rep))

	code, resp := s.do("GET", "/v0/images?tag_query_op=XOR&tags=red", "")
	s.Equal(http.StatusBadRequest, code)
	s.Equal(restdata.BadRequest, resp.ErrorCode)

	code, resp = s.do("GET", "/v0/images?trashState=sideways", "")
	s.Equal(http.StatusBadRequest, code)
	s.Equal(restdata.BadRequest, resp.ErrorCode)
}

func (s *APISuite) TestImageRead() {
	s.saveImage("abc", "t1")

	code, resp := s.do("GET", "/v0/images/$abc", "")
	s.Equal(http.StatusOK, code)
	s.Equal("image", resp.Name)
	rep, ok := resp.Rep.(map[string]interface{})
	if s.True(ok) {
		s.Equal("$abc", rep["id"])
		s.Equal("/photos/abc.jpg", rep["path"])
		s.Equal([]interface{}{"t1"}, rep["tags"])
	}

	// a missing image is an empty representation
	code, resp = s.do("GET", "/v0/images/$missing", "")
	s.Equal(http.StatusOK, code)
	s.Equal(0, resp.Status)
	s.Equal(map[string]interface{}{}, resp.Rep)
}

// TestTrashRoundTrip moves an image in and out of the trash.
func (s *APISuite) TestTrashRoundTrip() {
	s.saveImage("abc")
	s.saveImage("def")

	code, resp := s.do("PUT", "/v0/images/$abc?in_trash=true", "")
	s.Equal(http.StatusOK, code)
	s.Equal("image", resp.Name)

	_, resp = s.do("GET", "/v0/images?trashState=in", "")
	s.Equal([]string{"$abc"}, s.ids(resp.Rep))
	_, resp = s.do("GET", "/v0/images", "")
	s.Equal([]string{"$def"}, s.ids(resp.Rep))
	_, resp = s.do("GET", "/v0/images?trashState=any", "")
	s.Len(s.reps(resp.Rep), 2)

	_, resp = s.do("PUT", "/v0/images/$abc?in_trash=false", "")
	s.Equal(0, resp.Status)
	_, resp = s.do("GET", "/v0/images?trashState=in", "")
	s.Empty(s.reps(resp.Rep))
}

func (s *APISuite) TestImageUpdate() {
	img := s.saveImage("abc")

	code, resp := s.do("PUT", "/v0/images/$abc",
		`{"name":"renamed.jpg","tags":["x","y"],"_rev":"`+img.Rev+`"}`)
	s.Equal(http.StatusOK, code)
	rep, ok := resp.Rep.(map[string]interface{})
	if s.True(ok) {
		s.Equal("renamed.jpg", rep["name"])
		s.Equal([]interface{}{"x", "y"}, rep["tags"])
	}

	code, resp = s.do("PUT", "/v0/images/$abc", `{"name":"again.jpg","_rev":"stale"}`)
	s.Equal(http.StatusConflict, code)
	s.Equal(restdata.Conflict, resp.ErrorCode)
}

// TestImageUpdateMissing checks that changing an image that does not
// exist is the client's error.
func (s *APISuite) TestImageUpdateMissing() {
	for _, path := range []string{
		"/v0/images/$nope",
		"/v0/images/$nope?in_trash=true",
		"/v0/images/$nope?in_trash=false",
	} {
		code, resp := s.do("PUT", path, `{"name":"x"}`)
		s.Equal(http.StatusBadRequest, code, path)
		s.Equal(restdata.BadRequest, resp.ErrorCode, path)
	}
}

func (s *APISuite) TestTrashBadValue() {
	s.saveImage("abc")
	_, err := s.Service.SendToTrash([]string{"abc"})
	s.Require().NoError(err)

	code, resp := s.do("PUT", "/v0/images/$abc?in_trash=maybe", "")
	s.Equal(http.StatusBadRequest, code)
	s.Equal(restdata.BadRequest, resp.ErrorCode)

	// still in the trash
	_, resp = s.do("GET", "/v0/images?trashState=in", "")
	s.Equal([]string{"$abc"}, s.ids(resp.Rep))
}

func (s *APISuite) TestImagesDelete() {
	s.saveImage("keep")
	s.saveImage("one")
	s.saveImage("trashed")
	_, err := s.Service.SendToTrash([]string{"trashed"})
	s.Require().NoError(err)

	code, resp := s.do("DELETE", "/v0/images", "")
	s.Equal(http.StatusBadRequest, code)
	s.Equal(restdata.BadRequest, resp.ErrorCode)

	code, resp = s.do("DELETE", "/v0/images?trashState=in", "")
	s.Equal(http.StatusOK, code)
	s.Equal([]string{"$trashed"}, s.ids(resp.Rep))

	code, resp = s.do("DELETE", "/v0/images/$one", "")
	s.Equal(http.StatusOK, code)
	s.Equal("image", resp.Name)

	_, resp = s.do("GET", "/v0/images?trashState=any", "")
	s.Equal([]string{"$keep"}, s.ids(resp.Rep))

	_, resp = s.do("DELETE", "/v0/images?trashState=out", "")
	s.Equal(0, resp.Status)
	_, resp = s.do("GET", "/v0/images?trashState=any", "")
	s.Empty(s.reps(resp.Rep))
}

func (s *APISuite) TestNotImplemented() {
	code, resp := s.do("POST", "/v0/images/$abc", `{}`)
	s.Equal(http.StatusNotFound, code)
	s.Equal(restdata.NotImplemented, resp.ErrorCode)

	code, resp = s.do("POST", "/v0/images", `{}`)
	s.Equal(http.StatusNotFound, code)
	s.Equal(restdata.NotImplemented, resp.ErrorCode)
}

// TestImportNoFiles checks the error for an empty import directory.
func (s *APISuite) TestImportNoFiles() {
	code, resp := s.do("POST", "/v0/importers", `{"import_dir":"/x"}`)
	s.Equal(http.StatusNotFound, code)
	s.Equal(1, resp.Status)
	s.Equal(restdata.NoFilesFound, resp.ErrorCode)
	s.Equal("No files found in directory /x .", resp.ErrorMessage)

	code, resp = s.do("POST", "/v0/importers", `{}`)
	s.Equal(http.StatusBadRequest, code)
	s.Equal(restdata.BadRequest, resp.ErrorCode)
}

func (s *APISuite) TestImportCreate() {
	dir := s.makeImportDir(2)
	code, resp := s.do("POST", "/v0/importers", `{"import_dir":"`+dir+`","app_id":"$app"}`)
	s.Equal(http.StatusOK, code)
	s.Equal("importer", resp.Name)
	rep, ok := resp.Rep.(map[string]interface{})
	s.Require().True(ok)
	s.Equal(dir, rep["import_dir"])
	s.Equal("$app", rep["app_id"])
	s.Equal("INIT", rep["state"])
	id, _ := rep["id"].(string)
	s.Require().True(strings.HasPrefix(id, "$"))

	events, ok := s.Publisher.waitFor("import.completed")
	s.Require().True(ok, "import never completed")
	seen := make(map[string]int)
	for _, ev := range events {
		s.Equal(ImportersChannel, ev.Resource)
		seen[ev.Event]++
	}
	s.Equal(1, seen["import.started"])
	s.Equal(2, seen["import.image.created"])
	s.Equal(2, seen["import.image.variant.created"])
	s.Equal(2, seen["import.image.imported"])
	s.True(seen["import.images.imported"] >= 1)
	s.Equal(1, seen["import.completed"])

	last := events[len(events)-1]
	if data, ok := last.Data.(restdata.Rep); s.True(ok) {
		s.Equal(id, data["id"])
		s.Equal("COMPLETED", data["state"])
		s.Equal(2, data["num_success"])
	}

	code, resp = s.do("GET", "/v0/importers/"+id, "")
	s.Equal(http.StatusOK, code)
	s.Equal("importer", resp.Name)
}

// TestImportersImagesTrash checks that an importer's images default
// to those not in the trash.
func (s *APISuite) TestImportersImagesTrash() {
	batch := s.runImport(s.makeImportDir(2))
	s.Require().Len(batch.Images, 2)
	trashed := batch.Images[0].OID
	kept := batch.Images[1].OID
	_, err := s.Service.SendToTrash([]string{trashed})
	s.Require().NoError(err)

	path := "/v0/importers/$" + batch.OID + "/images"
	code, resp := s.do("GET", path, "")
	s.Equal(http.StatusOK, code)
	s.Equal("importer", resp.Name)
	rep, ok := resp.Rep.(map[string]interface{})
	s.Require().True(ok)
	s.Equal("$"+batch.OID, rep["id"])
	s.Equal([]string{"$" + kept}, s.ids(rep["images"]))

	_, resp = s.do("GET", path+"?trashState=in", "")
	rep = resp.Rep.(map[string]interface{})
	s.Equal([]string{"$" + trashed}, s.ids(rep["images"]))

	_, resp = s.do("GET", path+"?trashState=any", "")
	rep = resp.Rep.(map[string]interface{})
	s.Equal([]string{"$" + trashed, "$" + kept}, s.ids(rep["images"]))

	code, resp = s.do("GET", "/v0/importers/$nope/images", "")
	s.Equal(http.StatusBadRequest, code)
	s.Equal(restdata.BadRequest, resp.ErrorCode)
}

func (s *APISuite) TestImportersIndex() {
	var oids []string
	for i := 0; i < 3; i++ {
		oids = append(oids, s.runImport(s.makeImportDir(1)).OID)
	}

	_, resp := s.do("GET", "/v0/importers?n=2", "")
	s.Equal("importers", resp.Name)
	s.Nil(resp.Paging)
	s.Equal([]string{"$" + oids[2], "$" + oids[1]}, s.ids(resp.Rep))

	_, resp = s.do("GET", "/v0/importers?cursor=-1&page_size=2", "")
	s.Equal([]string{"$" + oids[2], "$" + oids[1]}, s.ids(resp.Rep))
	s.Require().NotNil(resp.Paging)
	s.Equal(2, resp.Paging.PageSize)
	s.Equal(restdata.NoCursor, resp.Paging.Cursors.Previous)
	next := resp.Paging.Cursors.Next
	s.NotEqual(restdata.NoCursor, next)

	_, resp = s.do("GET", "/v0/importers?page_size=2&cursor="+next, "")
	s.Equal([]string{"$" + oids[0]}, s.ids(resp.Rep))
	s.Equal(restdata.NoCursor, resp.Paging.Cursors.Next)
	prev := resp.Paging.Cursors.Previous
	s.NotEqual(restdata.NoCursor, prev)

	_, resp = s.do("GET", "/v0/importers?page_size=2&cursor="+prev, "")
	s.Equal([]string{"$" + oids[2], "$" + oids[1]}, s.ids(resp.Rep))

	// garbage cursors start from the beginning
	_, resp = s.do("GET", "/v0/importers?page_size=2&cursor=garbage", "")
	s.Equal([]string{"$" + oids[2], "$" + oids[1]}, s.ids(resp.Rep))

	code, resp := s.do("GET", "/v0/importers?n=zero", "")
	s.Equal(http.StatusBadRequest, code)
	s.Equal(restdata.BadRequest, resp.ErrorCode)
}

func (s *APISuite) TestImportersUpdate() {
	batch := s.runImport(s.makeImportDir(1))

	code, resp := s.do("PUT", "/v0/importers/$"+batch.OID, `{"state":"aborted"}`)
	s.Equal(http.StatusOK, code)
	rep, ok := resp.Rep.(map[string]interface{})
	if s.True(ok) {
		s.Equal("ABORTED", rep["state"])
	}

	code, resp = s.do("PUT", "/v0/importers/$"+batch.OID, `{"state":"bogus"}`)
	s.Equal(http.StatusNotFound, code)
	s.Equal(restdata.AttributeValidationFailure, resp.ErrorCode)
}

func (s *APISuite) TestTags() {
	s.saveImage("a", "red")
	s.saveImage("b", "blue")

	_, resp := s.do("GET", "/v0/tags", "")
	s.Equal("tags", resp.Name)
	s.Equal([]interface{}{"blue", "red"}, resp.Rep)

	_, resp = s.do("GET", "/v0/tags?images=$a", "")
	s.Equal([]interface{}{"red"}, resp.Rep)
}

func (s *APISuite) TestTagger() {
	s.saveImage("a")
	s.saveImage("b", "old")

	code, resp := s.do("POST", "/v0/tagger", `{"add":{"images":["$a","$b"],"tags":["t1"]}}`)
	s.Equal(http.StatusOK, code)
	s.Equal(0, resp.Status)
	_, resp = s.do("GET", "/v0/tags?images=$b", "")
	s.Equal([]interface{}{"old", "t1"}, resp.Rep)

	_, resp = s.do("POST", "/v0/tagger", `{"replace":{"images":["$b"],"tags":["new"]}}`)
	s.Equal(0, resp.Status)
	_, resp = s.do("GET", "/v0/tags?images=$b", "")
	s.Equal([]interface{}{"new"}, resp.Rep)

	_, resp = s.do("POST", "/v0/tagger", `{"remove":{"images":["$a"],"tags":["t1"]}}`)
	s.Equal(0, resp.Status)
	_, resp = s.do("GET", "/v0/tags?images=$a", "")
	s.Equal([]interface{}{}, resp.Rep)

	code, resp = s.do("POST", "/v0/tagger", `{}`)
	s.Equal(http.StatusBadRequest, code)
	s.Equal(1, resp.Status)
	s.Equal(restdata.BadRequest, resp.ErrorCode)

	code, resp = s.do("POST", "/v0/tagger",
		`{"add":{"images":["$a"],"tags":["x"]},"remove":{"images":["$a"],"tags":["x"]}}`)
	s.Equal(http.StatusBadRequest, code)
	s.Equal(restdata.BadRequest, resp.ErrorCode)
}

func (s *APISuite) TestSynchronizers() {
	s.saveImage("a")

	code, resp := s.do("POST", "/v0/storage/synchronizers", "")
	s.Equal(http.StatusOK, code)
	s.Equal("synchronizer", resp.Name)
	rep := resp.Rep.(map[string]interface{})
	id, _ := rep["id"].(string)

	events, ok := s.Publisher.waitFor("sync.completed")
	s.Require().True(ok)
	s.Equal("sync.started", events[0].Event)
	s.Equal(SynchronizersChannel, events[0].Resource)

	_, resp = s.do("GET", "/v0/storage/synchronizers/"+id, "")
	rep = resp.Rep.(map[string]interface{})
	s.Equal("COMPLETED", rep["state"])

	code, resp = s.do("GET", "/v0/storage/synchronizers/$nope", "")
	s.Equal(http.StatusBadRequest, code)
}

func (s *APISuite) TestChangesFeed() {
	code, resp := s.do("POST", "/v0/storage/changes-feed", `{}`)
	s.Equal(http.StatusOK, code)
	s.Equal("changes-feed", resp.Name)
	rep := resp.Rep.(map[string]interface{})
	id, _ := rep["id"].(string)
	s.Require().True(strings.HasPrefix(id, "$"))

	s.saveImage("a")
	events, ok := s.Publisher.waitFor("doc.image.created")
	s.Require().True(ok)
	last := events[len(events)-1]
	s.Equal(ChangesFeedChannel, last.Resource)
	if data, ok := last.Data.(restdata.Rep); s.True(ok) {
		s.Equal("$a", data["id"])
	}

	_, err := s.Service.DeleteImages([]string{"a"})
	s.Require().NoError(err)
	events, ok = s.Publisher.waitFor("doc.image.deleted")
	s.Require().True(ok)
	last = events[len(events)-1]
	s.Equal(restdata.Rep{"id": "$a"}, last.Data)

	code, _ = s.do("DELETE", "/v0/storage/changes-feed/"+id, "")
	s.Equal(http.StatusOK, code)
	code, resp = s.do("DELETE", "/v0/storage/changes-feed/"+id, "")
	s.Equal(http.StatusBadRequest, code)
	s.Equal(restdata.BadRequest, resp.ErrorCode)
}

// TestChangesFeedVariantDelete checks that deleting a variant whose
// original survives is reported as an update of the original.
func (s *APISuite) TestChangesFeedVariantDelete() {
	batch := s.runImport(s.makeImportDir(1))
	orig := batch.Images[0]
	s.Require().Len(orig.Variants, 1)

	event, data := s.API.changeNotification(mediamanager.DocChange{
		DocType: mediamanager.ImageDocType,
		Op:      mediamanager.DocDeleted,
		ID:      orig.Variants[0].OID,
		OrigID:  orig.OID,
	})
	s.Equal("doc.image.updated", event)
	if rep, ok := data.(restdata.Rep); s.True(ok) {
		s.Equal("$"+orig.OID, rep["id"])
	}

	event, data = s.API.changeNotification(mediamanager.DocChange{
		DocType: mediamanager.ImageDocType,
		Op:      mediamanager.DocDeleted,
		ID:      "gone-variant",
		OrigID:  "gone-original",
	})
	s.Equal("doc.image.deleted", event)
	s.Equal(restdata.Rep{"id": "$gone-variant"}, data)
}
