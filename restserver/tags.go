// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"github.com/diffeo/go-mediamanager/restdata"
)

func (api *API) newTagsHandler(r *Resource) *resourceHandler {
	return &resourceHandler{
		Resource:  r,
		Index:     api.tagsIndex,
		Transform: tagsTransform,
		Log:       api.Log,
	}
}

// tagsTransform sends an empty list rather than null.
func tagsTransform(ctx *context, result interface{}) (interface{}, error) {
	if tags, ok := result.([]string); ok && tags == nil {
		return []string{}, nil
	}
	return result, nil
}

// tagsIndex lists every tag, or with an "images" parameter, the
// tags of the named images.
func (api *API) tagsIndex(ctx *context) (interface{}, error) {
	if ctx.HasParam("images") {
		return api.Service.ImagesTags(restdata.ParseIDList(ctx.Query.Get("images")))
	}
	return api.Service.Tags()
}

func (api *API) newTaggerHandler(r *Resource) *resourceHandler {
	return &resourceHandler{
		Resource: r,
		Create:   api.taggerCreate,
		Log:      api.Log,
	}
}

// taggerCreate runs exactly one of the add, replace, or remove
// actions.
func (api *API) taggerCreate(ctx *context) (interface{}, error) {
	var req restdata.TaggerRequest
	if err := decodeAttrs(ctx, &req); err != nil {
		return nil, err
	}
	var (
		action *restdata.TagAction
		apply  func([]string, []string) error
		count  int
	)
	if req.Add != nil {
		action, apply = req.Add, api.Service.AddTags
		count++
	}
	if req.Replace != nil {
		action, apply = req.Replace, api.Service.ReplaceTags
		count++
	}
	if req.Remove != nil {
		action, apply = req.Remove, api.Service.RemoveTags
		count++
	}
	if count != 1 {
		return nil, restdata.ErrBadRequest("exactly one of add, replace, or remove is required")
	}
	if err := apply(restdata.DecodeIDs(action.Images), action.Tags); err != nil {
		return nil, err
	}
	return nil, nil
}
