// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/diffeo/go-mediamanager/restdata"
)

// Notification resources for storage events.
const (
	SynchronizersChannel = "/storage/synchronizers"
	ChangesFeedChannel   = "/storage/changes-feed"
)

func (api *API) newSynchronizersHandler(r *Resource) *resourceHandler {
	return &resourceHandler{
		Resource:  r,
		Create:    api.synchronizersCreate,
		Read:      api.synchronizersRead,
		Transform: api.syncStateTransform,
		Log:       api.Log,
	}
}

// synchronizersCreate starts a synchronization pass and publishes
// its events on SynchronizersChannel.
func (api *API) synchronizersCreate(ctx *context) (interface{}, error) {
	syncer, err := api.Service.Sync()
	if err != nil {
		return nil, err
	}
	state, err := api.Service.SyncState(syncer.ID())
	if err != nil {
		return nil, err
	}
	events := syncer.Run()
	go func() {
		log := api.log().WithField("synchronizer", syncer.ID())
		for ev := range events {
			data, err := api.syncStates.FullForm(&ev.State)
			if err != nil {
				log.WithError(err).Error("dropping sync event")
				continue
			}
			api.publish(SynchronizersChannel, ev.Kind.String(), data)
		}
	}()
	ctx.IsInstRef = true
	return state, nil
}

func (api *API) synchronizersRead(ctx *context) (interface{}, error) {
	return api.Service.SyncState(ctx.ID)
}

func (api *API) syncStateTransform(ctx *context, result interface{}) (interface{}, error) {
	if state, ok := result.(*mediamanager.SyncState); ok {
		return api.syncStates.FullForm(state)
	}
	return result, nil
}

func (api *API) newChangesFeedHandler(r *Resource) *resourceHandler {
	return &resourceHandler{
		Resource: r,
		Create:   api.changesFeedCreate,
		Delete:   api.changesFeedDelete,
		Log:      api.Log,
	}
}

// changesFeedCreate opens a changes feed and publishes its changes on
// ChangesFeedChannel until the feed is deleted.
func (api *API) changesFeedCreate(ctx *context) (interface{}, error) {
	var req restdata.ChangesFeedRequest
	if err := decodeAttrs(ctx, &req); err != nil {
		return nil, err
	}
	feed, err := api.Service.ChangesFeed(mediamanager.ChangesFeedOptions{
		Since: req.Since,
		AppID: restdata.DecodeID(req.AppID),
	})
	if err != nil {
		return nil, err
	}

	api.feedsLock.Lock()
	api.feeds[feed.ID()] = feed
	api.feedsLock.Unlock()

	changes := feed.Listen()
	go func() {
		for change := range changes {
			event, data := api.changeNotification(change)
			api.publish(ChangesFeedChannel, event, data)
		}
	}()
	ctx.IsInstRef = true
	return restdata.Rep{
		"id":    restdata.EncodeID(feed.ID()),
		"since": feed.Since(),
	}, nil
}

// changesFeedDelete closes a changes feed.
func (api *API) changesFeedDelete(ctx *context) (interface{}, error) {
	if ctx.ID == "" {
		return nil, restdata.ErrBadRequest("changes feed id is required")
	}
	api.feedsLock.Lock()
	feed, present := api.feeds[ctx.ID]
	delete(api.feeds, ctx.ID)
	api.feedsLock.Unlock()
	if !present {
		return nil, restdata.ErrBadRequest("no such changes feed %v", restdata.EncodeID(ctx.ID))
	}
	if err := feed.Close(); err != nil {
		return nil, err
	}
	return restdata.Rep{"id": restdata.EncodeID(ctx.ID)}, nil
}

// changeNotification builds the event name and payload for one
// change.  A deleted document that was derived from another, such as
// a variant, is reported as an update of its original if the
// original still exists, since the deletion is part of rewriting the
// original.  Otherwise a deletion carries only the id.
func (api *API) changeNotification(change mediamanager.DocChange) (string, interface{}) {
	if change.Op == mediamanager.DocDeleted {
		if change.OrigID != "" {
			orig, err := api.Service.Document(change.OrigID)
			if err != nil {
				api.log().WithError(err).WithField("orig_id", change.OrigID).Warn("could not fetch original document")
			} else if orig != nil {
				updated := change
				updated.Op = mediamanager.DocUpdated
				updated.DocType = mediamanager.ImageDocType
				if rep, err := api.documentRep(updated.DocType, orig); err == nil {
					return updated.Event(), rep
				}
			}
		}
		return change.Event(), restdata.Rep{"id": restdata.EncodeID(change.ID)}
	}
	rep, err := api.documentRep(change.DocType, change.Doc)
	if err != nil {
		api.log().WithError(err).WithField("id", change.ID).Error("could not transform changed document")
		return change.Event(), restdata.Rep{"id": restdata.EncodeID(change.ID)}
	}
	return change.Event(), rep
}

// documentRep renders a changed document in full form.
func (api *API) documentRep(docType string, doc mediamanager.Document) (restdata.Rep, error) {
	if docType == mediamanager.ImportBatchDocType {
		return api.importers.FullForm(doc)
	}
	return api.images.FullForm(doc)
}
