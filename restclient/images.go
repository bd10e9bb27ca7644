// Copyright 2016 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restclient

import (
	"github.com/diffeo/go-mediamanager/mediamanager"
	"github.com/diffeo/go-mediamanager/restdata"
)

// ImageQuery selects images from the images collection.
type ImageQuery struct {
	// Tags selects images with any of these tags, or with all of
	// them if MatchAll is set.
	Tags []string

	// Untagged selects images with no tags at all.  It overrides
	// Tags.
	Untagged bool

	// MatchAll requires every tag in Tags to match.
	MatchAll bool

	// TrashState restricts the result by trash state.
	TrashState mediamanager.TrashState
}

func (q ImageQuery) vars() (map[string]interface{}, error) {
	state, err := q.TrashState.MarshalText()
	if err != nil {
		return nil, err
	}
	vars := map[string]interface{}{"trashState": string(state)}
	switch {
	case q.Untagged:
		vars["tags"] = ""
	case len(q.Tags) > 0:
		vars["tags"] = q.Tags
		if q.MatchAll {
			vars["tag_query_op"] = string(mediamanager.GroupAnd)
		}
	}
	return vars, nil
}

// Images lists images matching a query, newest first, in short form.
func (c *Client) Images(q ImageQuery) ([]restdata.Rep, error) {
	vars, err := q.vars()
	if err != nil {
		return nil, err
	}
	resp, err := c.Call("GET", "images{?tags,tag_query_op,trashState}", vars, nil)
	if err != nil {
		return nil, err
	}
	return toReps(resp.Rep), nil
}

// Image fetches one image in full form, with its variants.  A
// missing image is an empty representation, not an error.
func (c *Client) Image(id string) (restdata.Rep, error) {
	resp, err := c.Call("GET", "images/{id}", map[string]interface{}{"id": id}, nil)
	if err != nil {
		return nil, err
	}
	return toRep(resp.Rep), nil
}

// UpdateImage applies a patch to an image.  If rev is non-empty, the
// update fails with a conflict unless it is the image's current
// revision.
func (c *Client) UpdateImage(id, rev string, patch restdata.Rep) (restdata.Rep, error) {
	body := restdata.Rep{}
	for k, v := range patch {
		body[k] = v
	}
	if rev != "" {
		body["_rev"] = rev
	}
	resp, err := c.Call("PUT", "images/{id}", map[string]interface{}{"id": id}, body)
	if err != nil {
		return nil, err
	}
	return toRep(resp.Rep), nil
}

func (c *Client) moveTrash(id string, inTrash bool) (restdata.Rep, error) {
	vars := map[string]interface{}{"id": id, "in_trash": "false"}
	if inTrash {
		vars["in_trash"] = "true"
	}
	resp, err := c.Call("PUT", "images/{id}{?in_trash}", vars, nil)
	if err != nil {
		return nil, err
	}
	return toRep(resp.Rep), nil
}

// SendToTrash moves an image into the trash.
func (c *Client) SendToTrash(id string) (restdata.Rep, error) {
	return c.moveTrash(id, true)
}

// RestoreFromTrash moves an image out of the trash.
func (c *Client) RestoreFromTrash(id string) (restdata.Rep, error) {
	return c.moveTrash(id, false)
}

// DeleteImage permanently deletes one image and its variants.
func (c *Client) DeleteImage(id string) (restdata.Rep, error) {
	resp, err := c.Call("DELETE", "images/{id}", map[string]interface{}{"id": id}, nil)
	if err != nil {
		return nil, err
	}
	return toRep(resp.Rep), nil
}

// DeleteImages permanently deletes every image in a trash state.
// Deleting TrashIn empties the trash.
func (c *Client) DeleteImages(state mediamanager.TrashState) ([]restdata.Rep, error) {
	text, err := state.MarshalText()
	if err != nil {
		return nil, err
	}
	resp, err := c.Call("DELETE", "images{?trashState}", map[string]interface{}{"trashState": string(text)}, nil)
	if err != nil {
		return nil, err
	}
	return toReps(resp.Rep), nil
}

// Tags lists every tag in use.
func (c *Client) Tags() ([]string, error) {
	resp, err := c.Call("GET", "tags", map[string]interface{}{}, nil)
	if err != nil {
		return nil, err
	}
	return toStrings(resp.Rep), nil
}

// ImagesTags lists the tags on any of a set of images.
func (c *Client) ImagesTags(ids []string) ([]string, error) {
	resp, err := c.Call("GET", "tags{?images}", map[string]interface{}{"images": encodeIDs(ids)}, nil)
	if err != nil {
		return nil, err
	}
	return toStrings(resp.Rep), nil
}

func (c *Client) tagger(req restdata.TaggerRequest) error {
	_, err := c.Call("POST", "tagger", map[string]interface{}{}, req)
	return err
}

// AddTags adds tags to images.
func (c *Client) AddTags(ids, tags []string) error {
	return c.tagger(restdata.TaggerRequest{Add: &restdata.TagAction{Images: encodeIDs(ids), Tags: tags}})
}

// ReplaceTags sets the tags of images.
func (c *Client) ReplaceTags(ids, tags []string) error {
	return c.tagger(restdata.TaggerRequest{Replace: &restdata.TagAction{Images: encodeIDs(ids), Tags: tags}})
}

// RemoveTags removes tags from images.
func (c *Client) RemoveTags(ids, tags []string) error {
	return c.tagger(restdata.TaggerRequest{Remove: &restdata.TagAction{Images: encodeIDs(ids), Tags: tags}})
}

func encodeIDs(ids []string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = restdata.EncodeID(id)
	}
	return out
}
