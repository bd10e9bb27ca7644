// Copyright 2015 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"net/http"
	"sync"

	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/diffeo/go-mediamanager/restdata"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// Publisher accepts notifications for subscribers.  The notify
// package provides one.
type Publisher interface {
	Publish(resource, event string, data interface{})
}

// API holds the persistent state for the media manager REST API.
// Its resource tables are built once by NewAPI and never change.
type API struct {
	Service   mediamanager.Service
	Publisher Publisher
	Log       logrus.FieldLogger

	// Handlers lists every resource, in routing order.
	Handlers []*resourceHandler

	images     *transformer
	importers  *transformer
	syncStates *transformer

	importersImagesName string

	feedsLock sync.Mutex
	feeds     map[string]mediamanager.ChangesFeed
}

// NewAPI builds the resource tables for a backend.  pub may be nil,
// in which case events are dropped.  It fails only if the resource
// descriptors are malformed.
func NewAPI(service mediamanager.Service, pub Publisher, log logrus.FieldLogger) (*API, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	api := &API{
		Service:    service,
		Publisher:  pub,
		Log:        log,
		images:     newImageTransformer(log),
		importers:  newImporterTransformer(log),
		syncStates: newSyncStateTransformer(log),
		feeds:      make(map[string]mediamanager.ChangesFeed),
	}

	prefix := restdata.PathPrefix
	type spec struct {
		path string
		opts ResourceOptions
		make func(*Resource) *resourceHandler
	}
	specs := []spec{
		{"/images", ResourceOptions{InstName: InstName("image")}, api.newImagesHandler},
		{"/importers", ResourceOptions{InstName: InstName("importer")}, api.newImportersHandler},
		{"/tags", ResourceOptions{InstName: InstName("tag")}, api.newTagsHandler},
		{"/tagger", ResourceOptions{InstName: InstName("tagger")}, api.newTaggerHandler},
		{"/storage/synchronizers", ResourceOptions{InstName: InstName("synchronizer")}, api.newSynchronizersHandler},
		{"/storage/changes-feed", ResourceOptions{InstName: InstName("changes-feed")}, api.newChangesFeedHandler},
	}
	for _, s := range specs {
		s.opts.PathPrefix = prefix
		r, err := NewResource(s.path, s.opts)
		if err != nil {
			return nil, err
		}
		api.Handlers = append(api.Handlers, s.make(r))
	}

	r, err := newImportersImagesResource(prefix)
	if err != nil {
		return nil, err
	}
	h, err := api.newImportersImagesHandler(r)
	if err != nil {
		return nil, err
	}
	api.Handlers = append(api.Handlers, h)
	return api, nil
}

// newImportersImagesResource builds the composite resource behind
// /importers/$id/images.
func newImportersImagesResource(prefix string) (*Resource, error) {
	images, err := NewResource("/images", ResourceOptions{InstName: InstName("image")})
	if err != nil {
		return nil, err
	}
	importers, err := NewResource("/importers", ResourceOptions{
		InstName:    InstName("importer"),
		SubResource: images,
	})
	if err != nil {
		return nil, err
	}
	return NewResource("", ResourceOptions{
		PathPrefix:  prefix,
		InstName:    InstName(""),
		SubResource: importers,
	})
}

// publish sends a notification, if there is anywhere to send it.
func (api *API) publish(resource, event string, data interface{}) {
	if api.Publisher != nil {
		api.Publisher.Publish(resource, event, data)
	}
}

// Close closes every open changes feed.
func (api *API) Close() error {
	api.feedsLock.Lock()
	defer api.feedsLock.Unlock()
	var firstErr error
	for id, feed := range api.feeds {
		if err := feed.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(api.feeds, id)
	}
	return firstErr
}

// NewRouter creates a new HTTP handler that processes all media
// manager requests under /v0.  For more control over this setup,
// call NewAPI and PopulateRouter instead.
func NewRouter(service mediamanager.Service, pub Publisher, log logrus.FieldLogger) (http.Handler, error) {
	api, err := NewAPI(service, pub, log)
	if err != nil {
		return nil, err
	}
	r := mux.NewRouter()
	api.PopulateRouter(r)
	return r, nil
}

// PopulateRouter adds all media manager URL paths to a router.  Each
// resource gets an instance route and a collection route; instance
// routes are added first since a collection pattern with a parent id
// can otherwise shadow them.
func (api *API) PopulateRouter(r *mux.Router) {
	for _, h := range api.Handlers {
		instance := h.Resource.RequestPath(InstanceRequest)
		r.MatcherFunc(pathMatcher(instance)).
			Name(h.Resource.FullPath() + "#instance").
			Handler(&routeHandler{Handler: h, Pattern: instance, Instance: true})
	}
	for _, h := range api.Handlers {
		collection := h.Resource.RequestPath(CollectionRequest)
		r.MatcherFunc(pathMatcher(collection)).
			Name(h.Resource.FullPath() + "#collection").
			Handler(&routeHandler{Handler: h, Pattern: collection})
	}
}

func pathMatcher(re interface{ MatchString(string) bool }) mux.MatcherFunc {
	return func(req *http.Request, match *mux.RouteMatch) bool {
		return re.MatchString(req.URL.Path)
	}
}
