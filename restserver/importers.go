// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/diffeo/go-mediamanager/restdata"
	"github.com/sirupsen/logrus"
)

// ImportersChannel is the notification resource import events are
// published on.
const ImportersChannel = "/importers"

// newImportersHandler builds the /importers resource.
func (api *API) newImportersHandler(r *Resource) *resourceHandler {
	return &resourceHandler{
		Resource:  r,
		Index:     api.importersIndex,
		Create:    api.importersCreate,
		Read:      api.importersRead,
		Update:    api.importersUpdate,
		Transform: api.importersTransform,
		Log:       api.Log,
	}
}

// importersCreate starts an import of a directory.  Its progress is
// published on ImportersChannel.
func (api *API) importersCreate(ctx *context) (interface{}, error) {
	var req restdata.ImportRequest
	if err := decodeAttrs(ctx, &req); err != nil {
		return nil, err
	}
	if req.ImportDir == "" {
		return nil, restdata.ErrBadRequest("import_dir is required")
	}
	batch, events, err := api.Service.ImportBatchFs(req.ImportDir, mediamanager.ImportOptions{
		AppID:     restdata.DecodeID(req.AppID),
		Recursive: req.Recursive,
	})
	if err != nil {
		return nil, err
	}
	go api.publishImport(batch.OID, events)
	ctx.IsInstRef = true
	return batch, nil
}

// publishImport republishes an import's events until the batch
// completes.
func (api *API) publishImport(oid string, events <-chan mediamanager.ImportEvent) {
	log := api.log().WithField("importer", oid)
	for ev := range events {
		data, err := api.importEventData(ev)
		if err != nil {
			log.WithError(err).WithField("event", ev.Kind.String()).Error("dropping import event")
			continue
		}
		log.WithField("event", ev.Kind.String()).Debug("import event")
		api.publish(ImportersChannel, ev.Kind.String(), data)
	}
}

// importEventData builds the notification payload of an import
// event.  Per-image events carry the image in short form; the rest
// carry the importer, with any images of a group event under
// "images".
func (api *API) importEventData(ev mediamanager.ImportEvent) (interface{}, error) {
	if ev.Kind.PerImage() {
		return api.images.ShortForm(ev.Image)
	}
	rep, err := api.importers.FullForm(ev.Batch)
	if err != nil {
		return nil, err
	}
	if ev.Images != nil {
		rep["images"] = api.images.ShortForms(imageDocuments(ev.Images))
	}
	return rep, nil
}

// importersIndex lists import batches.  With a "cursor" parameter it
// returns one page of "page_size" batches; otherwise it returns the
// "n" most recent batches.
func (api *API) importersIndex(ctx *context) (interface{}, error) {
	if ctx.HasParam("cursor") {
		pageSize, err := ctx.IntParam("page_size", mediamanager.DefaultPageSize)
		if err != nil {
			return nil, err
		}
		req := mediamanager.PageRequest{PageSize: pageSize}
		if cursor, ok := restdata.DecodeCursor(ctx.Query.Get("cursor")); ok {
			req.Cursor = &cursor
		}
		page, err := api.Service.ImportBatches(req)
		if err != nil {
			return nil, err
		}
		return paged{
			Items:  page.Items,
			Paging: restdata.BuildPaging(page, pageSize),
		}, nil
	}

	n, err := ctx.IntParam("n", mediamanager.DefaultPageSize)
	if err != nil {
		return nil, err
	}
	return api.Service.RecentImportBatches(n, mediamanager.ImportBatchOptions{})
}

func (api *API) importersRead(ctx *context) (interface{}, error) {
	return api.Service.ImportBatch(ctx.ID, mediamanager.ImportBatchOptions{})
}

// importersUpdate applies the body as a patch.  The batch is named by
// the path, or failing that by the body's "id".
func (api *API) importersUpdate(ctx *context) (interface{}, error) {
	patch, err := api.importers.ToInternal(ctx.ID, ctx.Attrs)
	if err != nil {
		return nil, err
	}
	if patch.String("oid") == "" {
		return nil, restdata.ErrBadRequest("importer id is required")
	}
	if rev, ok := ctx.Attrs["_rev"].(string); ok {
		patch["_rev"] = rev
	}
	return api.Service.UpdateImportBatch(patch)
}

// importersTransform renders import batches in full form.
func (api *API) importersTransform(ctx *context, result interface{}) (interface{}, error) {
	switch r := result.(type) {
	case []*mediamanager.ImportBatch:
		return api.importers.FullForms(batchDocuments(r)), nil
	case *mediamanager.ImportBatch:
		return api.importers.FullForm(r)
	default:
		return result, nil
	}
}

// newImportersImagesHandler builds the read-only
// /importers/$id/images resource.  r must have an importers level
// with an images level below it, or this returns
// ErrMissingSubResource.
func (api *API) newImportersImagesHandler(r *Resource) (*resourceHandler, error) {
	if r.Sub == nil || r.Sub.Path == "" {
		return nil, ErrMissingSubResource{Parent: r.Name, Want: "importers"}
	}
	if r.Sub.Sub == nil || r.Sub.Sub.Path == "" {
		return nil, ErrMissingSubResource{Parent: r.Sub.Name, Want: "images"}
	}
	api.importersImagesName = r.Sub.InstName
	return &resourceHandler{
		Resource:  r,
		Index:     api.importersImagesIndex,
		Transform: api.importersImagesTransform,
		Log:       api.Log,
	}, nil
}

func (api *API) importersImagesIndex(ctx *context) (interface{}, error) {
	state, err := ctx.TrashStateParam()
	if err != nil {
		return nil, err
	}
	ctx.ResourceName = api.importersImagesName
	return api.Service.ImportBatch(ctx.ParentID(), mediamanager.ImportBatchOptions{
		IncludeImages: true,
		TrashState:    state,
	})
}

// importersImagesTransform renders the importer in full form with
// its images, in batch order, in short form.
func (api *API) importersImagesTransform(ctx *context, result interface{}) (interface{}, error) {
	batch, ok := result.(*mediamanager.ImportBatch)
	if !ok {
		return result, nil
	}
	rep, err := api.importers.FullForm(batch)
	if err != nil {
		return nil, err
	}
	rep["images"] = api.images.ShortForms(imageDocuments(batch.Images))
	return rep, nil
}

func (api *API) log() logrus.FieldLogger {
	if api.Log == nil {
		return logrus.StandardLogger()
	}
	return api.Log
}
