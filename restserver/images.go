// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"strings"

	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/diffeo/go-mediamanager/restdata"
)

// newImagesHandler builds the /images resource.
func (api *API) newImagesHandler(r *Resource) *resourceHandler {
	return &resourceHandler{
		Resource:  r,
		Index:     api.imagesIndex,
		Read:      api.imagesRead,
		Update:    api.imagesUpdate,
		Delete:    api.imagesDelete,
		Transform: api.imagesTransform,
		Log:       api.Log,
	}
}

// tagFilter builds an image tag filter from the "tags" and
// "tag_query_op" query parameters.  It returns nil if there is no
// tag query at all.  An empty tag list selects untagged images.
func tagFilter(ctx *context) (*mediamanager.TagFilter, error) {
	if !ctx.HasParam("tags") {
		return nil, nil
	}
	filter := &mediamanager.TagFilter{GroupOp: mediamanager.GroupOr}
	switch op := strings.ToUpper(ctx.Query.Get("tag_query_op")); op {
	case "", string(mediamanager.GroupOr):
	case string(mediamanager.GroupAnd):
		filter.GroupOp = mediamanager.GroupAnd
	default:
		return nil, restdata.ErrBadRequest("invalid tag_query_op %q", op)
	}

	var tags []string
	for _, tag := range strings.Split(ctx.Query.Get("tags"), ",") {
		if tag = strings.TrimSpace(tag); tag != "" {
			tags = append(tags, tag)
		}
	}
	if len(tags) == 0 {
		filter.Rules = []mediamanager.FilterRule{{
			Field: "tags",
			Op:    mediamanager.OpEq,
			Data:  []string{},
		}}
		return filter, nil
	}
	for _, tag := range tags {
		filter.Rules = append(filter.Rules, mediamanager.FilterRule{
			Field: "tags",
			Op:    mediamanager.OpEq,
			Data:  []string{tag},
		})
	}
	return filter, nil
}

func (api *API) imagesIndex(ctx *context) (interface{}, error) {
	var (
		filter mediamanager.ImageFilter
		err    error
	)
	filter.Tags, err = tagFilter(ctx)
	if err == nil {
		filter.TrashState, err = ctx.TrashStateParam()
	}
	if err != nil {
		return nil, err
	}
	return api.Service.Images(filter)
}

func (api *API) imagesRead(ctx *context) (interface{}, error) {
	img, err := api.Service.Image(ctx.ID, mediamanager.ImageOptions{IncludeVariants: true})
	if _, missing := err.(mediamanager.ErrNoSuchImage); missing {
		return restdata.Rep{}, nil
	}
	if err != nil {
		return nil, err
	}
	return img, nil
}

// imagesUpdate either moves an image in or out of the trash, if the
// "in_trash" query parameter is given, or applies the body as a
// patch to the image.
func (api *API) imagesUpdate(ctx *context) (interface{}, error) {
	if ctx.HasParam("in_trash") {
		inTrash, err := ctx.BoolParam("in_trash")
		if err != nil {
			return nil, err
		}
		var images []*mediamanager.Image
		if inTrash {
			images, err = api.Service.SendToTrash([]string{ctx.ID})
		} else {
			images, err = api.Service.RestoreFromTrash([]string{ctx.ID})
		}
		if err != nil {
			return nil, err
		}
		if len(images) == 0 {
			return restdata.Rep{}, nil
		}
		return images[0], nil
	}

	patch, err := api.images.ToInternal(ctx.ID, ctx.Attrs)
	if err != nil {
		return nil, err
	}
	img, err := api.Service.Image(ctx.ID, mediamanager.ImageOptions{})
	if err != nil {
		return nil, err
	}
	img = img.Copy()
	if rev := patch.String("_rev"); rev != "" && rev != img.Rev {
		return nil, mediamanager.ErrConflict
	}
	delete(patch, "oid")
	delete(patch, "_rev")
	if err = mediamanager.ApplyPatch(img, patch); err != nil {
		return nil, mediamanager.ErrInvalidAttribute{Name: "image", Reason: err.Error()}
	}
	return api.Service.SaveImage(img)
}

// imagesDelete deletes one image, or with no id, every image in a
// trash state.
func (api *API) imagesDelete(ctx *context) (interface{}, error) {
	if ctx.ID != "" {
		images, err := api.Service.DeleteImages([]string{ctx.ID})
		if err != nil {
			return nil, err
		}
		if len(images) == 0 {
			return restdata.Rep{}, nil
		}
		return images[0], nil
	}

	if !ctx.HasParam("trashState") {
		return nil, restdata.ErrBadRequest("delete requires an image id or a trashState")
	}
	state, err := ctx.TrashStateParam()
	if err != nil {
		return nil, err
	}
	if state == mediamanager.TrashIn {
		oids, err := api.Service.EmptyTrash()
		if err != nil {
			return nil, err
		}
		reps := make([]restdata.Rep, len(oids))
		for i, oid := range oids {
			reps[i] = restdata.Rep{"id": restdata.EncodeID(oid)}
		}
		return reps, nil
	}
	images, err := api.Service.FindImagesByTrashState(state)
	if err != nil {
		return nil, err
	}
	oids := make([]string, len(images))
	for i, img := range images {
		oids[i] = img.OID
	}
	if len(oids) == 0 {
		return []*mediamanager.Image{}, nil
	}
	return api.Service.DeleteImages(oids)
}

// imagesTransform renders a list of images in short form, newest
// first, and a single image in full form.
func (api *API) imagesTransform(ctx *context, result interface{}) (interface{}, error) {
	switch r := result.(type) {
	case []*mediamanager.Image:
		return api.images.ShortForms(NewestFirst(imageDocuments(r))), nil
	case *mediamanager.Image:
		return api.images.FullForm(r)
	default:
		return result, nil
	}
}
